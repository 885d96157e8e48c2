package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/ErlanBelekov/backup-desk/internal/domain"
	"github.com/ErlanBelekov/backup-desk/internal/guard"
	"github.com/gin-gonic/gin"
)

// otpVerifier is the subset of *auth.Client the confirm link needs.
// Defined here (point of use) so tests can inject a fake.
type otpVerifier interface {
	VerifyOTP(ctx context.Context, tokenHash string, typ domain.OTPType) error
}

type AuthHandler struct {
	newActions ActionsFactory
	otp        otpVerifier
	logger     *slog.Logger
}

func NewAuthHandler(newActions ActionsFactory, otp otpVerifier, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{
		newActions: newActions,
		otp:        otp,
		logger:     logger.With("component", "auth_handler"),
	}
}

type signUpForm struct {
	Email           string `form:"email"           binding:"required,email"`
	Password        string `form:"password"        binding:"required,min=8,strongpassword"`
	ConfirmPassword string `form:"confirmPassword" binding:"required,eqfield=Password"`
}

type signInForm struct {
	Email    string `form:"email"    binding:"required,email"`
	Password string `form:"password" binding:"required"`
	// Accepted and ignored; sessions always persist.
	RememberMe bool `form:"rememberMe"`
}

type emailForm struct {
	Email string `form:"email" binding:"required,email"`
}

type resetPasswordForm struct {
	Password        string `form:"password"        binding:"required,min=8,strongpassword"`
	ConfirmPassword string `form:"confirmPassword" binding:"required,eqfield=Password"`
}

// GET /signup
func (h *AuthHandler) SignUpPage(c *gin.Context) {
	c.HTML(http.StatusOK, tmplSignUp, passwordPage("Sign up", ""))
}

// POST /signup
// Success redirects to /email-confirmation. A failed profile insert stays on
// the form with its message even though the account now exists.
func (h *AuthHandler) SignUp(c *gin.Context) {
	var form signUpForm
	bindErr := c.ShouldBind(&form)

	page := passwordPage("Sign up", form.Password)
	page.Email = form.Email
	if bindErr != nil {
		h.renderInvalid(c, tmplSignUp, page, bindErr)
		return
	}

	nav := &redirect{}
	actions := h.newActions(nav)
	if err := actions.SignUp(c.Request.Context(), form.Email, form.Password); err != nil {
		page.Error = actions.Error()
		c.HTML(statusFor(err), tmplSignUp, page)
		return
	}
	c.Redirect(http.StatusSeeOther, nav.to)
}

// GET /signin
func (h *AuthHandler) SignInPage(c *gin.Context) {
	c.HTML(http.StatusOK, tmplSignIn, Page{Title: "Sign in"})
}

// POST /signin
// On success the browser is sent back to /signin, where the guard now sees a
// session and forwards to the dashboard.
func (h *AuthHandler) SignIn(c *gin.Context) {
	var form signInForm
	bindErr := c.ShouldBind(&form)

	page := Page{Title: "Sign in", Email: form.Email}
	if bindErr != nil {
		h.renderInvalid(c, tmplSignIn, page, bindErr)
		return
	}

	actions := h.newActions(&redirect{})
	if err := actions.SignIn(c.Request.Context(), form.Email, form.Password); err != nil {
		page.Error = actions.Error()
		c.HTML(statusFor(err), tmplSignIn, page)
		return
	}
	c.Redirect(http.StatusSeeOther, guard.PathSignIn)
}

// GET /forgot-password
func (h *AuthHandler) ForgotPasswordPage(c *gin.Context) {
	c.HTML(http.StatusOK, tmplForgotPassword, Page{Title: "Reset password"})
}

// POST /forgot-password
func (h *AuthHandler) ForgotPassword(c *gin.Context) {
	var form emailForm
	bindErr := c.ShouldBind(&form)

	page := Page{Title: "Reset password", Email: form.Email}
	if bindErr != nil {
		h.renderInvalid(c, tmplForgotPassword, page, bindErr)
		return
	}

	actions := h.newActions(&redirect{})
	if !actions.ResetPassword(c.Request.Context(), form.Email) {
		page.Error = actions.Error()
		c.HTML(http.StatusBadRequest, tmplForgotPassword, page)
		return
	}
	page.Sent = true
	c.HTML(http.StatusOK, tmplForgotPassword, page)
}

// GET /reset-password
func (h *AuthHandler) ResetPasswordPage(c *gin.Context) {
	c.HTML(http.StatusOK, tmplResetPassword, passwordPage("Set new password", ""))
}

// POST /reset-password
func (h *AuthHandler) ResetPassword(c *gin.Context) {
	var form resetPasswordForm
	bindErr := c.ShouldBind(&form)

	page := passwordPage("Set new password", form.Password)
	if bindErr != nil {
		h.renderInvalid(c, tmplResetPassword, page, bindErr)
		return
	}

	nav := &redirect{}
	actions := h.newActions(nav)
	if !actions.UpdatePassword(c.Request.Context(), form.Password) {
		page.Error = actions.Error()
		c.HTML(http.StatusBadRequest, tmplResetPassword, page)
		return
	}
	c.Redirect(http.StatusSeeOther, nav.to)
}

// GET /email-confirmation
func (h *AuthHandler) EmailConfirmation(c *gin.Context) {
	c.HTML(http.StatusOK, tmplEmailConfirmation, Page{Title: "Verify your email"})
}

// GET /auth/confirm?token_hash=<hash>&type=<otp type>&next=<path>
// Target of the links in confirmation and recovery emails. Recovery links
// land on /reset-password with the new session in place.
func (h *AuthHandler) Confirm(c *gin.Context) {
	hash := c.Query("token_hash")
	typ := domain.OTPType(c.Query("type"))
	if hash == "" || !typ.Valid() {
		c.HTML(http.StatusBadRequest, tmplSignIn, Page{Title: "Sign in", Error: errInvalidLink})
		return
	}

	if err := h.otp.VerifyOTP(c.Request.Context(), hash, typ); err != nil {
		h.logger.WarnContext(c.Request.Context(), "verify email link", "type", typ, "error", err)
		c.HTML(statusFor(err), tmplSignIn, Page{Title: "Sign in", Error: domain.UserMessage(err, errInvalidLink)})
		return
	}

	target := guard.PathDashboard
	if typ == domain.OTPRecovery {
		target = guard.PathResetPassword
	} else if next := c.Query("next"); isLocalPath(next) {
		target = next
	}
	c.Redirect(http.StatusSeeOther, target)
}

func (h *AuthHandler) renderInvalid(c *gin.Context, tmpl string, page Page, err error) {
	fields, ok := fieldErrors(err)
	if !ok {
		h.logger.WarnContext(c.Request.Context(), "bind form", "error", err)
		page.Error = errInvalidForm
	}
	page.FieldErrors = fields
	c.HTML(http.StatusUnprocessableEntity, tmpl, page)
}

// isLocalPath rejects absolute and protocol-relative URLs so a crafted link
// cannot redirect off-site.
func isLocalPath(p string) bool {
	return strings.HasPrefix(p, "/") && !strings.HasPrefix(p, "//") && !strings.Contains(p, `\`)
}
