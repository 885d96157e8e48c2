package httptransport

import (
	"fmt"
	"html/template"
	"io/fs"
	"log/slog"
	"net/http"

	"github.com/ErlanBelekov/backup-desk/internal/guard"
	"github.com/ErlanBelekov/backup-desk/internal/password"
	"github.com/ErlanBelekov/backup-desk/internal/transport/http/handler"
	"github.com/ErlanBelekov/backup-desk/internal/transport/http/middleware"
	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"

	sloggin "github.com/samber/slog-gin"
)

// Handlers groups the screen handlers the router mounts.
type Handlers struct {
	Auth      *handler.AuthHandler
	Dashboard *handler.DashboardHandler
	API       *handler.APIHandler
}

// RegisterValidators installs the custom binding tags on gin's validator.
func RegisterValidators() error {
	v, ok := binding.Validator.Engine().(*validator.Validate)
	if !ok {
		return fmt.Errorf("unexpected binding engine %T", binding.Validator.Engine())
	}
	return password.RegisterValidation(v)
}

func NewRouter(
	logger *slog.Logger,
	sessions middleware.SessionState,
	routes guard.Routes,
	trustedOrigins []string,
	tmpl *template.Template,
	static fs.FS,
	h Handlers,
) (*gin.Engine, error) {
	if err := RegisterValidators(); err != nil {
		return nil, err
	}
	origin, err := middleware.Origin(trustedOrigins)
	if err != nil {
		return nil, err
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestID())
	r.Use(middleware.Security())
	r.Use(sloggin.New(logger))
	r.Use(middleware.Metrics())
	r.Use(origin)
	r.Use(middleware.Guard(guard.New(routes), sessions))
	r.SetHTMLTemplate(tmpl)

	r.StaticFS(guard.PathStatic, http.FS(static))

	// Auth screens
	r.GET(guard.PathSignUp, h.Auth.SignUpPage)
	r.POST(guard.PathSignUp, h.Auth.SignUp)
	r.GET(guard.PathSignIn, h.Auth.SignInPage)
	r.POST(guard.PathSignIn, h.Auth.SignIn)

	// Public screens
	r.GET(guard.PathForgotPassword, h.Auth.ForgotPasswordPage)
	r.POST(guard.PathForgotPassword, h.Auth.ForgotPassword)
	r.GET(guard.PathResetPassword, h.Auth.ResetPasswordPage)
	r.POST(guard.PathResetPassword, h.Auth.ResetPassword)
	r.GET(guard.PathEmailConfirmation, h.Auth.EmailConfirmation)
	r.GET(guard.PathAuthConfirm, h.Auth.Confirm)
	r.POST(guard.PathPasswordStrength, h.API.PasswordStrength)

	// Protected screens
	r.GET(guard.PathDashboard, h.Dashboard.Dashboard)
	r.POST(guard.PathProfile, h.Dashboard.UpdateProfile)
	r.POST(guard.PathSignOut, h.Dashboard.SignOut)
	r.GET(guard.PathSessionAPI, h.API.Session)

	// The guard has already redirected every unmatched path; what reaches
	// here is a public prefix with nothing behind it.
	r.NoRoute(func(c *gin.Context) {
		c.String(http.StatusNotFound, "not found")
	})

	return r, nil
}
