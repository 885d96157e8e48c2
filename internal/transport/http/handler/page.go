package handler

import (
	"github.com/ErlanBelekov/backup-desk/internal/domain"
	"github.com/ErlanBelekov/backup-desk/internal/password"
	"github.com/ErlanBelekov/backup-desk/internal/transport/http/middleware"
	"github.com/ErlanBelekov/backup-desk/internal/usecase"
	"github.com/gin-gonic/gin"
)

// Template names.
const (
	tmplSignUp            = "signup"
	tmplSignIn            = "signin"
	tmplForgotPassword    = "forgot_password"
	tmplResetPassword     = "reset_password"
	tmplEmailConfirmation = "email_confirmation"
	tmplDashboard         = "dashboard"
)

// Page is the data every screen template renders from.
type Page struct {
	Title       string
	Error       string
	Notice      string
	Email       string
	FieldErrors map[string]string

	// password screens
	Requirements []password.Requirement
	Strength     password.Level

	// forgot-password
	Sent bool

	// dashboard
	Profile   *domain.Profile
	UserEmail string
}

func passwordPage(title, pw string) Page {
	return Page{
		Title:        title,
		Requirements: password.Requirements(pw),
		Strength:     password.Strength(pw),
	}
}

// ActionsFactory builds the auth actions for one screen request.
type ActionsFactory func(nav usecase.Navigator) *usecase.AuthActions

// ProfileFactory builds a profile accessor for one screen request.
type ProfileFactory func() *usecase.ProfileAccessor

// redirect records where an action wants to go; the handler turns it into
// a 303 once the action returns.
type redirect struct {
	to string
}

func (r *redirect) Navigate(path string) { r.to = path }

func sessionFrom(c *gin.Context) *domain.Session {
	v, ok := c.Get(middleware.SessionKey)
	if !ok {
		return nil
	}
	s, _ := v.(*domain.Session)
	return s
}
