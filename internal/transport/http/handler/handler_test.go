package handler_test

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/ErlanBelekov/backup-desk/internal/backend"
	"github.com/ErlanBelekov/backup-desk/internal/domain"
	"github.com/ErlanBelekov/backup-desk/internal/password"
	"github.com/ErlanBelekov/backup-desk/internal/transport/http/handler"
	"github.com/ErlanBelekov/backup-desk/internal/transport/http/middleware"
	"github.com/ErlanBelekov/backup-desk/internal/usecase"
	"github.com/ErlanBelekov/backup-desk/internal/web"
	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

func init() {
	gin.SetMode(gin.TestMode)
	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		if err := password.RegisterValidation(v); err != nil {
			panic(err)
		}
	}
}

// ---- fakes ----

// fakeAuthClient satisfies the auth client the actions and the confirm
// handler depend on. Unset functions succeed.
type fakeAuthClient struct {
	signUp     func(ctx context.Context, email, password, redirectTo string) (*domain.User, error)
	signIn     func(ctx context.Context, email, password string) error
	signOut    func(ctx context.Context) error
	reset      func(ctx context.Context, email, redirectTo string) error
	updateUser func(ctx context.Context, attrs backend.UserAttributes) (*domain.User, error)
	verifyOTP  func(ctx context.Context, tokenHash string, typ domain.OTPType) error
}

func (f *fakeAuthClient) SignUp(ctx context.Context, email, password, redirectTo string) (*domain.User, error) {
	if f.signUp == nil {
		return nil, nil
	}
	return f.signUp(ctx, email, password, redirectTo)
}

func (f *fakeAuthClient) SignInWithPassword(ctx context.Context, email, password string) error {
	if f.signIn == nil {
		return nil
	}
	return f.signIn(ctx, email, password)
}

func (f *fakeAuthClient) SignOut(ctx context.Context) error {
	if f.signOut == nil {
		return nil
	}
	return f.signOut(ctx)
}

func (f *fakeAuthClient) ResetPasswordForEmail(ctx context.Context, email, redirectTo string) error {
	if f.reset == nil {
		return nil
	}
	return f.reset(ctx, email, redirectTo)
}

func (f *fakeAuthClient) UpdateUser(ctx context.Context, attrs backend.UserAttributes) (*domain.User, error) {
	if f.updateUser == nil {
		return &domain.User{}, nil
	}
	return f.updateUser(ctx, attrs)
}

func (f *fakeAuthClient) VerifyOTP(ctx context.Context, tokenHash string, typ domain.OTPType) error {
	if f.verifyOTP == nil {
		return nil
	}
	return f.verifyOTP(ctx, tokenHash, typ)
}

type fakeProfileRepo struct {
	findByID func(ctx context.Context, id string) (*domain.Profile, error)
	create   func(ctx context.Context, p *domain.Profile) error
	update   func(ctx context.Context, id string, u domain.ProfileUpdate) error
}

func (r *fakeProfileRepo) FindByID(ctx context.Context, id string) (*domain.Profile, error) {
	if r.findByID == nil {
		return &domain.Profile{ID: id, Email: "a@b.co"}, nil
	}
	return r.findByID(ctx, id)
}

func (r *fakeProfileRepo) Create(ctx context.Context, p *domain.Profile) error {
	if r.create == nil {
		return nil
	}
	return r.create(ctx, p)
}

func (r *fakeProfileRepo) Update(ctx context.Context, id string, u domain.ProfileUpdate) error {
	if r.update == nil {
		return nil
	}
	return r.update(ctx, id, u)
}

// ---- helpers ----

var (
	discardLogger = slog.New(slog.NewTextHandler(io.Discard, nil))
	testSession   = &domain.Session{AccessToken: "at", RefreshToken: "rt", User: domain.User{ID: "u1", Email: "a@b.co"}}
)

// newTestEngine wires every screen route. When session is non-nil it is
// placed on the context the way the guard middleware does.
func newTestEngine(t *testing.T, client *fakeAuthClient, profiles *fakeProfileRepo, session *domain.Session) *gin.Engine {
	t.Helper()
	tmpl, err := web.Templates()
	if err != nil {
		t.Fatalf("templates: %v", err)
	}

	newActions := func(nav usecase.Navigator) *usecase.AuthActions {
		return usecase.NewAuthActions(client, profiles, nil, nav, "http://localhost:3000", discardLogger)
	}
	newProfile := func() *usecase.ProfileAccessor {
		return usecase.NewProfileAccessor(profiles, discardLogger)
	}
	authH := handler.NewAuthHandler(newActions, client, discardLogger)
	dashH := handler.NewDashboardHandler(newProfile, newActions, discardLogger)
	apiH := handler.NewAPIHandler()

	r := gin.New()
	r.SetHTMLTemplate(tmpl)
	r.Use(func(c *gin.Context) {
		if session != nil {
			c.Set(middleware.SessionKey, session)
		}
		c.Next()
	})
	r.GET("/signup", authH.SignUpPage)
	r.POST("/signup", authH.SignUp)
	r.GET("/signin", authH.SignInPage)
	r.POST("/signin", authH.SignIn)
	r.GET("/forgot-password", authH.ForgotPasswordPage)
	r.POST("/forgot-password", authH.ForgotPassword)
	r.GET("/reset-password", authH.ResetPasswordPage)
	r.POST("/reset-password", authH.ResetPassword)
	r.GET("/email-confirmation", authH.EmailConfirmation)
	r.GET("/auth/confirm", authH.Confirm)
	r.GET("/dashboard", dashH.Dashboard)
	r.POST("/profile", dashH.UpdateProfile)
	r.POST("/signout", dashH.SignOut)
	r.POST("/api/password-strength", apiH.PasswordStrength)
	r.GET("/api/session", apiH.Session)
	return r
}

func postForm(r *gin.Engine, path string, form url.Values) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	r.ServeHTTP(w, req)
	return w
}

func get(r *gin.Engine, path string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
	return w
}

func assertRedirect(t *testing.T, w *httptest.ResponseRecorder, want string) {
	t.Helper()
	if w.Code != http.StatusSeeOther {
		t.Fatalf("status = %d, want 303; body: %s", w.Code, w.Body.String())
	}
	if loc := w.Header().Get("Location"); loc != want {
		t.Errorf("Location = %q, want %q", loc, want)
	}
}

func assertBodyContains(t *testing.T, w *httptest.ResponseRecorder, want string) {
	t.Helper()
	if !strings.Contains(w.Body.String(), want) {
		t.Errorf("body does not contain %q:\n%s", want, w.Body.String())
	}
}
