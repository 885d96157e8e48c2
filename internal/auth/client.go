// Package auth holds the process's view of the backend session: it loads the
// persisted session, keeps it refreshed, and notifies subscribers whenever it
// changes.
package auth

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/ErlanBelekov/backup-desk/internal/backend"
	"github.com/ErlanBelekov/backup-desk/internal/domain"
	"github.com/ErlanBelekov/backup-desk/internal/metrics"
	"github.com/ErlanBelekov/backup-desk/internal/repository"
)

const defaultRefreshMargin = 60 * time.Second

// API is the subset of *backend.Client the auth client drives.
type API interface {
	SignUp(ctx context.Context, email, password, redirectTo string) (*domain.User, *domain.Session, error)
	SignInWithPassword(ctx context.Context, email, password string) (*domain.Session, error)
	RefreshSession(ctx context.Context, refreshToken string) (*domain.Session, error)
	Logout(ctx context.Context, accessToken string) error
	Recover(ctx context.Context, email, redirectTo string) error
	UpdateUser(ctx context.Context, accessToken string, attrs backend.UserAttributes) (*domain.User, error)
	VerifyOTP(ctx context.Context, tokenHash string, typ domain.OTPType) (*domain.Session, error)
}

// StateChangeFunc receives every auth event together with the session that
// is current after it (nil after sign-out).
type StateChangeFunc func(event domain.AuthEvent, s *domain.Session)

type Client struct {
	api      API
	store    repository.SessionRepository
	verifier backend.TokenVerifier
	logger   *slog.Logger
	margin   time.Duration
	now      func() time.Time

	// refreshMu serialises refreshes; refresh tokens are single use.
	refreshMu sync.Mutex
	// loadMu serialises the first load so mu is never held across I/O.
	loadMu sync.Mutex

	mu      sync.RWMutex
	session *domain.Session
	loaded  bool
	subs    map[int]StateChangeFunc
	nextSub int
}

type Option func(*Client)

// WithVerifier checks persisted sessions before trusting them.
func WithVerifier(v backend.TokenVerifier) Option {
	return func(c *Client) { c.verifier = v }
}

// WithRefreshMargin sets how long before expiry a session is refreshed.
func WithRefreshMargin(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.margin = d
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(c *Client) { c.now = now }
}

func NewClient(api API, store repository.SessionRepository, logger *slog.Logger, opts ...Option) *Client {
	c := &Client{
		api:    api,
		store:  store,
		logger: logger.With("component", "auth_client"),
		margin: defaultRefreshMargin,
		now:    time.Now,
		subs:   make(map[int]StateChangeFunc),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// OnAuthStateChange registers fn and returns the function that removes it.
// The returned function is safe to call more than once.
func (c *Client) OnAuthStateChange(fn StateChangeFunc) (unsubscribe func()) {
	c.mu.Lock()
	id := c.nextSub
	c.nextSub++
	c.subs[id] = fn
	c.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			c.mu.Lock()
			delete(c.subs, id)
			c.mu.Unlock()
		})
	}
}

// AccessToken returns the current access token, or "" when signed out.
func (c *Client) AccessToken() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.session == nil {
		return ""
	}
	return c.session.AccessToken
}

// GetSession returns the current session, loading it from the store on first
// use and refreshing it when it is about to expire.
func (c *Client) GetSession(ctx context.Context) (*domain.Session, error) {
	c.ensureLoaded(ctx)

	c.mu.RLock()
	current := c.session
	c.mu.RUnlock()

	if current == nil {
		return nil, nil
	}
	if current.ExpiresWithin(c.now(), c.margin) {
		if err := c.refresh(ctx, current); err != nil {
			return nil, err
		}
		c.mu.RLock()
		current = c.session
		c.mu.RUnlock()
	}
	return current, nil
}

func (c *Client) ensureLoaded(ctx context.Context) {
	c.loadMu.Lock()
	defer c.loadMu.Unlock()

	c.mu.RLock()
	loaded := c.loaded
	c.mu.RUnlock()
	if loaded {
		return
	}

	s, stale := c.loadStored(ctx)

	c.mu.Lock()
	won := !c.loaded
	if won {
		c.session = s
		c.loaded = true
	}
	c.mu.Unlock()

	// a sign-in or sign-out during the load already replaced the stored row
	if won && stale {
		c.forget(ctx)
	}
}

// loadStored reads and checks the persisted session. stale reports that the
// stored row should be deleted.
func (c *Client) loadStored(ctx context.Context) (s *domain.Session, stale bool) {
	s, err := c.store.Load(ctx)
	if err != nil {
		c.logger.WarnContext(ctx, "load stored session", "error", err)
		return nil, false
	}
	if s == nil || c.verifier == nil {
		return s, false
	}

	claims, err := c.verifier.Verify(ctx, s.AccessToken)
	if err != nil {
		if domain.KindOf(err) == domain.KindNetwork {
			c.logger.WarnContext(ctx, "stored session not verified, key set unreachable", "error", err)
			return s, false
		}
		c.logger.WarnContext(ctx, "discarding stored session", "error", err)
		return nil, true
	}
	if claims.Subject != s.User.ID {
		c.logger.WarnContext(ctx, "discarding stored session, subject mismatch")
		return nil, true
	}
	if s.ExpiresAt.IsZero() {
		s.ExpiresAt = claims.ExpiresAt
	}
	if s.User.Email == "" {
		s.User.Email = claims.Email
	}
	return s, false
}

func (c *Client) forget(ctx context.Context) {
	if err := c.store.Delete(ctx); err != nil {
		c.logger.WarnContext(ctx, "delete stored session", "error", err)
	}
}

// SignUp creates the account. When the backend auto-confirms, the returned
// session becomes current.
func (c *Client) SignUp(ctx context.Context, email, password, redirectTo string) (*domain.User, error) {
	user, sess, err := c.api.SignUp(ctx, email, password, redirectTo)
	if err != nil {
		return nil, err
	}
	if sess != nil {
		c.setSession(ctx, sess, domain.EventSignedIn)
	}
	return user, nil
}

func (c *Client) SignInWithPassword(ctx context.Context, email, password string) error {
	sess, err := c.api.SignInWithPassword(ctx, email, password)
	if err != nil {
		return err
	}
	c.setSession(ctx, sess, domain.EventSignedIn)
	return nil
}

// SignOut revokes the session on the backend and drops it locally. A backend
// that no longer knows the session counts as success.
func (c *Client) SignOut(ctx context.Context) error {
	token := c.AccessToken()
	if token != "" {
		err := c.api.Logout(ctx, token)
		if err != nil && !backend.IsStatus(err, http.StatusUnauthorized, http.StatusForbidden, http.StatusNotFound) {
			return err
		}
	}
	c.removeSession(ctx)
	return nil
}

func (c *Client) ResetPasswordForEmail(ctx context.Context, email, redirectTo string) error {
	return c.api.Recover(ctx, email, redirectTo)
}

// UpdateUser changes credentials for the current session.
func (c *Client) UpdateUser(ctx context.Context, attrs backend.UserAttributes) (*domain.User, error) {
	c.mu.RLock()
	current := c.session
	c.mu.RUnlock()
	if current == nil {
		return nil, &domain.AuthError{
			Kind:    domain.KindSessionMissing,
			Message: "Auth session missing!",
			Err:     domain.ErrSessionMissing,
		}
	}

	user, err := c.api.UpdateUser(ctx, current.AccessToken, attrs)
	if err != nil {
		return nil, err
	}

	next := *current
	next.User = *user
	c.setSession(ctx, &next, domain.EventUserUpdated)
	return user, nil
}

// VerifyOTP redeems an email link. Recovery links yield a PASSWORD_RECOVERY
// event so the reset screen can follow.
func (c *Client) VerifyOTP(ctx context.Context, tokenHash string, typ domain.OTPType) error {
	sess, err := c.api.VerifyOTP(ctx, tokenHash, typ)
	if err != nil {
		return err
	}
	event := domain.EventSignedIn
	if typ == domain.OTPRecovery {
		event = domain.EventPasswordRecovery
	}
	c.setSession(ctx, sess, event)
	return nil
}

// Refresh renews the current session when it is inside the refresh margin.
func (c *Client) Refresh(ctx context.Context) error {
	c.mu.RLock()
	current := c.session
	c.mu.RUnlock()
	if current == nil || !current.ExpiresWithin(c.now(), c.margin) {
		return nil
	}
	return c.refresh(ctx, current)
}

// refresh exchanges the refresh token. A rejected refresh token ends the
// session; transport failures leave it in place for the next attempt.
func (c *Client) refresh(ctx context.Context, current *domain.Session) error {
	c.refreshMu.Lock()
	defer c.refreshMu.Unlock()

	c.mu.RLock()
	latest := c.session
	c.mu.RUnlock()
	if latest == nil || latest.RefreshToken != current.RefreshToken {
		// signed out or already refreshed by a concurrent caller
		return nil
	}

	next, err := c.api.RefreshSession(ctx, current.RefreshToken)
	if err != nil {
		if domain.KindOf(err) == domain.KindNetwork || backend.IsStatus(err,
			http.StatusInternalServerError, http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout) {
			c.logger.WarnContext(ctx, "session refresh failed, will retry", "error", err)
			metrics.SessionRefreshTotal.WithLabelValues("retry").Inc()
			return err
		}
		c.logger.InfoContext(ctx, "refresh token rejected, signing out", "error", err)
		metrics.SessionRefreshTotal.WithLabelValues("rejected").Inc()
		c.removeSession(ctx)
		return &domain.AuthError{Kind: domain.KindSessionMissing, Message: "Your session has expired", Err: domain.ErrRefreshTokenGone}
	}
	if next.User.ID == "" {
		next.User = current.User
	}
	metrics.SessionRefreshTotal.WithLabelValues("ok").Inc()
	c.setSession(ctx, next, domain.EventTokenRefreshed)
	return nil
}

func (c *Client) setSession(ctx context.Context, s *domain.Session, event domain.AuthEvent) {
	if err := c.store.Save(ctx, s); err != nil {
		c.logger.WarnContext(ctx, "persist session", "error", err)
	}
	c.mu.Lock()
	c.session = s
	c.loaded = true
	subs := c.snapshotLocked()
	c.mu.Unlock()
	c.emit(ctx, subs, event, s)
}

func (c *Client) removeSession(ctx context.Context) {
	c.forget(ctx)
	c.mu.Lock()
	c.session = nil
	c.loaded = true
	subs := c.snapshotLocked()
	c.mu.Unlock()
	c.emit(ctx, subs, domain.EventSignedOut, nil)
}

func (c *Client) snapshotLocked() []StateChangeFunc {
	out := make([]StateChangeFunc, 0, len(c.subs))
	for _, fn := range c.subs {
		out = append(out, fn)
	}
	return out
}

// emit runs outside the lock so subscribers may call back into the client.
func (c *Client) emit(ctx context.Context, subs []StateChangeFunc, event domain.AuthEvent, s *domain.Session) {
	metrics.AuthEventsTotal.WithLabelValues(string(event)).Inc()
	c.logger.InfoContext(ctx, "auth state changed", "event", event, "subscribers", len(subs))
	for _, fn := range subs {
		fn(event, s)
	}
}
