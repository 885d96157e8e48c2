package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/ErlanBelekov/backup-desk/internal/backend"
	"github.com/ErlanBelekov/backup-desk/internal/domain"
	"github.com/ErlanBelekov/backup-desk/internal/guard"
	"github.com/ErlanBelekov/backup-desk/internal/metrics"
	"github.com/ErlanBelekov/backup-desk/internal/repository"
)

const (
	msgSignUpFailed         = "An error occurred during sign up"
	msgSignInFailed         = "Invalid login credentials"
	msgSignOutFailed        = "Error signing out"
	msgResetFailed          = "Error sending password reset email"
	msgUpdatePasswordFailed = "Error updating password"
	msgProfileCreation      = "Failed to create user profile"
)

// authClient is the subset of *auth.Client the actions need.
// Defined here (point of use) so tests can inject a fake.
type authClient interface {
	SignUp(ctx context.Context, email, password, redirectTo string) (*domain.User, error)
	SignInWithPassword(ctx context.Context, email, password string) error
	SignOut(ctx context.Context) error
	ResetPasswordForEmail(ctx context.Context, email, redirectTo string) error
	UpdateUser(ctx context.Context, attrs backend.UserAttributes) (*domain.User, error)
}

// Navigator receives the screen an action wants to move to.
type Navigator interface {
	Navigate(path string)
}

type NavigatorFunc func(path string)

func (f NavigatorFunc) Navigate(path string) { f(path) }

// OrphanReporter is told about accounts that were created without a
// profile row. It reports; it does not repair.
type OrphanReporter interface {
	ReportOrphan(ctx context.Context, userID, email string, cause error)
}

// AuthActions backs one screen instance. Loading and Error describe the most
// recent action. The loading flag is informational and does not stop a
// second submission from running concurrently.
type AuthActions struct {
	client   authClient
	profiles repository.ProfileRepository
	orphans  OrphanReporter
	nav      Navigator
	siteURL  string
	logger   *slog.Logger

	mu      sync.Mutex
	loading bool
	errMsg  string
}

// NewAuthActions wires a screen's actions. orphans may be nil.
func NewAuthActions(
	client authClient,
	profiles repository.ProfileRepository,
	orphans OrphanReporter,
	nav Navigator,
	siteURL string,
	logger *slog.Logger,
) *AuthActions {
	return &AuthActions{
		client:   client,
		profiles: profiles,
		orphans:  orphans,
		nav:      nav,
		siteURL:  strings.TrimRight(siteURL, "/"),
		logger:   logger.With("component", "auth_actions"),
	}
}

func (a *AuthActions) Loading() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.loading
}

// Error is the message to render inline, or "".
func (a *AuthActions) Error() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.errMsg
}

// begin marks the action in flight and returns the function that must run
// when it finishes, whatever the outcome.
func (a *AuthActions) begin(action string, clearError bool) func(err *error) {
	start := time.Now()
	a.mu.Lock()
	a.loading = true
	if clearError {
		a.errMsg = ""
	}
	a.mu.Unlock()

	return func(err *error) {
		a.mu.Lock()
		a.loading = false
		a.mu.Unlock()

		outcome := "ok"
		if *err != nil {
			outcome = string(domain.KindOf(*err))
		}
		metrics.AuthActionsTotal.WithLabelValues(action, outcome).Inc()
		metrics.AuthActionDuration.WithLabelValues(action).Observe(time.Since(start).Seconds())
	}
}

func (a *AuthActions) fail(ctx context.Context, action string, err error, fallback string) {
	msg := domain.UserMessage(err, fallback)
	a.mu.Lock()
	a.errMsg = msg
	a.mu.Unlock()
	a.logger.ErrorContext(ctx, action, "kind", domain.KindOf(err), "error", err)
}

// SignUp creates the account and then its profile row. The two calls are not
// atomic: if the profile insert fails the account stays, the screen shows
// "Failed to create user profile" and no navigation happens.
func (a *AuthActions) SignUp(ctx context.Context, email, password string) (err error) {
	done := a.begin("sign_up", true)
	defer done(&err)

	user, err := a.client.SignUp(ctx, email, password, a.siteURL+guard.PathDashboard)
	if err != nil {
		a.fail(ctx, "sign up", err, msgSignUpFailed)
		return err
	}

	if user != nil {
		if err = a.createProfile(ctx, user.ID, email); err != nil {
			a.fail(ctx, "sign up", err, msgSignUpFailed)
			return err
		}
	}

	a.nav.Navigate(guard.PathEmailConfirmation)
	return nil
}

func (a *AuthActions) createProfile(ctx context.Context, userID, email string) error {
	err := a.profiles.Create(ctx, &domain.Profile{ID: userID, Email: email})
	if err == nil {
		return nil
	}

	metrics.OrphanedAccountsTotal.Inc()
	a.logger.ErrorContext(ctx, "account created without profile", "user_id", userID, "error", err)
	if a.orphans != nil {
		a.orphans.ReportOrphan(ctx, userID, email, err)
	}
	return &domain.AuthError{
		Kind:    domain.KindProfileCreation,
		Message: msgProfileCreation,
		Err:     fmt.Errorf("%w: %w", domain.ErrProfileCreation, err),
	}
}

// SignIn does not navigate; the route guard reacts to the new session.
func (a *AuthActions) SignIn(ctx context.Context, email, password string) (err error) {
	done := a.begin("sign_in", true)
	defer done(&err)

	if err = a.client.SignInWithPassword(ctx, email, password); err != nil {
		a.fail(ctx, "sign in", err, msgSignInFailed)
		return err
	}
	return nil
}

// SignOut keeps any previous error until it fails itself.
func (a *AuthActions) SignOut(ctx context.Context) (err error) {
	done := a.begin("sign_out", false)
	defer done(&err)

	if err = a.client.SignOut(ctx); err != nil {
		a.fail(ctx, "sign out", err, msgSignOutFailed)
		return err
	}
	a.nav.Navigate(guard.PathSignIn)
	return nil
}

// ResetPassword requests the reset email. It never navigates.
func (a *AuthActions) ResetPassword(ctx context.Context, email string) bool {
	var err error
	done := a.begin("reset_password", true)
	defer done(&err)

	if err = a.client.ResetPasswordForEmail(ctx, email, a.siteURL+guard.PathResetPassword); err != nil {
		a.fail(ctx, "reset password", err, msgResetFailed)
		return false
	}
	return true
}

// UpdatePassword changes the password of the current session's user.
func (a *AuthActions) UpdatePassword(ctx context.Context, newPassword string) bool {
	var err error
	done := a.begin("update_password", true)
	defer done(&err)

	if _, err = a.client.UpdateUser(ctx, backend.UserAttributes{Password: newPassword}); err != nil {
		a.fail(ctx, "update password", err, msgUpdatePasswordFailed)
		return false
	}
	a.nav.Navigate(guard.PathSignIn)
	return true
}
