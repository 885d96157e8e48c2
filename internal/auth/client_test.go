package auth_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/ErlanBelekov/backup-desk/internal/auth"
	"github.com/ErlanBelekov/backup-desk/internal/backend"
	"github.com/ErlanBelekov/backup-desk/internal/domain"
	"github.com/ErlanBelekov/backup-desk/internal/infrastructure/memory"
	"github.com/ErlanBelekov/backup-desk/internal/metrics"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ---- fakes ----

type fakeAPI struct {
	signUp     func(ctx context.Context, email, password, redirectTo string) (*domain.User, *domain.Session, error)
	signIn     func(ctx context.Context, email, password string) (*domain.Session, error)
	refresh    func(ctx context.Context, refreshToken string) (*domain.Session, error)
	logout     func(ctx context.Context, accessToken string) error
	recover    func(ctx context.Context, email, redirectTo string) error
	updateUser func(ctx context.Context, accessToken string, attrs backend.UserAttributes) (*domain.User, error)
	verifyOTP  func(ctx context.Context, tokenHash string, typ domain.OTPType) (*domain.Session, error)
}

func (f *fakeAPI) SignUp(ctx context.Context, email, password, redirectTo string) (*domain.User, *domain.Session, error) {
	return f.signUp(ctx, email, password, redirectTo)
}

func (f *fakeAPI) SignInWithPassword(ctx context.Context, email, password string) (*domain.Session, error) {
	return f.signIn(ctx, email, password)
}

func (f *fakeAPI) RefreshSession(ctx context.Context, refreshToken string) (*domain.Session, error) {
	return f.refresh(ctx, refreshToken)
}

func (f *fakeAPI) Logout(ctx context.Context, accessToken string) error {
	return f.logout(ctx, accessToken)
}

func (f *fakeAPI) Recover(ctx context.Context, email, redirectTo string) error {
	return f.recover(ctx, email, redirectTo)
}

func (f *fakeAPI) UpdateUser(ctx context.Context, accessToken string, attrs backend.UserAttributes) (*domain.User, error) {
	return f.updateUser(ctx, accessToken, attrs)
}

func (f *fakeAPI) VerifyOTP(ctx context.Context, tokenHash string, typ domain.OTPType) (*domain.Session, error) {
	return f.verifyOTP(ctx, tokenHash, typ)
}

type fakeVerifier struct {
	claims *backend.Claims
	err    error
}

func (v *fakeVerifier) Verify(_ context.Context, _ string) (*backend.Claims, error) {
	return v.claims, v.err
}

type recorder struct {
	mu     sync.Mutex
	events []domain.AuthEvent
	last   *domain.Session
}

func (r *recorder) record(e domain.AuthEvent, s *domain.Session) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
	r.last = s
}

// ---- helpers ----

var testNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func newSession(access, refresh string, expiresAt time.Time) *domain.Session {
	return &domain.Session{
		AccessToken:  access,
		RefreshToken: refresh,
		TokenType:    "bearer",
		ExpiresAt:    expiresAt,
		User:         domain.User{ID: "user-1", Email: "a@example.com"},
	}
}

func newClient(api *fakeAPI, store *memory.SessionRepository, opts ...auth.Option) *auth.Client {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	opts = append([]auth.Option{auth.WithClock(func() time.Time { return testNow })}, opts...)
	return auth.NewClient(api, store, logger, opts...)
}

// ---- GetSession ----

func TestGetSession_EmptyStore_ReturnsNil(t *testing.T) {
	c := newClient(&fakeAPI{}, memory.NewSessionRepository())

	s, err := c.GetSession(context.Background())
	require.NoError(t, err)
	assert.Nil(t, s)
}

func TestGetSession_LoadsPersistedSession(t *testing.T) {
	store := memory.NewSessionRepository()
	require.NoError(t, store.Save(context.Background(), newSession("a", "r", testNow.Add(time.Hour))))

	s, err := newClient(&fakeAPI{}, store).GetSession(context.Background())
	require.NoError(t, err)
	require.NotNil(t, s)
	assert.Equal(t, "a", s.AccessToken)
}

func TestGetSession_ExpiringSession_IsRefreshed(t *testing.T) {
	store := memory.NewSessionRepository()
	require.NoError(t, store.Save(context.Background(), newSession("old", "r1", testNow.Add(10*time.Second))))

	api := &fakeAPI{
		refresh: func(_ context.Context, rt string) (*domain.Session, error) {
			assert.Equal(t, "r1", rt)
			return &domain.Session{AccessToken: "new", RefreshToken: "r2", ExpiresAt: testNow.Add(time.Hour)}, nil
		},
	}
	c := newClient(api, store)
	rec := &recorder{}
	c.OnAuthStateChange(rec.record)

	s, err := c.GetSession(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "new", s.AccessToken)
	assert.Equal(t, "user-1", s.User.ID, "user carried over from the previous session")
	assert.Equal(t, []domain.AuthEvent{domain.EventTokenRefreshed}, rec.events)

	persisted, _ := store.Load(context.Background())
	assert.Equal(t, "r2", persisted.RefreshToken)
}

func TestGetSession_VerifierRejects_DiscardsStoredSession(t *testing.T) {
	store := memory.NewSessionRepository()
	require.NoError(t, store.Save(context.Background(), newSession("forged", "r", testNow.Add(time.Hour))))

	c := newClient(&fakeAPI{}, store, auth.WithVerifier(&fakeVerifier{err: &domain.AuthError{Kind: domain.KindUnclassified, Err: domain.ErrTokenInvalid}}))

	s, err := c.GetSession(context.Background())
	require.NoError(t, err)
	assert.Nil(t, s)
	persisted, _ := store.Load(context.Background())
	assert.Nil(t, persisted)
}

func TestGetSession_VerifierSubjectMismatch_DiscardsStoredSession(t *testing.T) {
	store := memory.NewSessionRepository()
	require.NoError(t, store.Save(context.Background(), newSession("a", "r", testNow.Add(time.Hour))))

	c := newClient(&fakeAPI{}, store, auth.WithVerifier(&fakeVerifier{claims: &backend.Claims{Subject: "someone-else"}}))

	s, err := c.GetSession(context.Background())
	require.NoError(t, err)
	assert.Nil(t, s)
}

type blockingVerifier struct {
	entered chan struct{}
}

func (v *blockingVerifier) Verify(ctx context.Context, _ string) (*backend.Claims, error) {
	close(v.entered)
	<-ctx.Done()
	return nil, &domain.AuthError{Kind: domain.KindNetwork, Err: ctx.Err()}
}

func TestGetSession_SlowVerifier_DoesNotBlockReaders(t *testing.T) {
	store := memory.NewSessionRepository()
	require.NoError(t, store.Save(context.Background(), newSession("a", "r", testNow.Add(time.Hour))))

	v := &blockingVerifier{entered: make(chan struct{})}
	c := newClient(&fakeAPI{}, store, auth.WithVerifier(v))

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	type result struct {
		s   *domain.Session
		err error
	}
	done := make(chan result, 1)
	go func() {
		s, err := c.GetSession(ctx)
		done <- result{s, err}
	}()
	<-v.entered

	readers := make(chan struct{})
	go func() {
		_ = c.AccessToken()
		unsubscribe := c.OnAuthStateChange(func(domain.AuthEvent, *domain.Session) {})
		unsubscribe()
		close(readers)
	}()
	select {
	case <-readers:
	case <-time.After(100 * time.Millisecond):
		t.Fatal("AccessToken or OnAuthStateChange blocked behind the initial load")
	}

	select {
	case r := <-done:
		require.NoError(t, r.err)
		require.NotNil(t, r.s, "unreachable key set keeps the stored session")
		assert.Equal(t, "a", r.s.AccessToken)
	case <-time.After(5 * time.Second):
		t.Fatal("GetSession ignored the context deadline")
	}
}

// ---- SignIn / SignOut ----

func TestSignIn_PublishesSignedIn(t *testing.T) {
	before := testutil.ToFloat64(metrics.AuthEventsTotal.WithLabelValues(string(domain.EventSignedIn)))
	api := &fakeAPI{
		signIn: func(_ context.Context, _, _ string) (*domain.Session, error) {
			return newSession("a", "r", testNow.Add(time.Hour)), nil
		},
	}
	store := memory.NewSessionRepository()
	c := newClient(api, store)
	rec := &recorder{}
	c.OnAuthStateChange(rec.record)

	require.NoError(t, c.SignInWithPassword(context.Background(), "a@example.com", "Password1!"))

	assert.Equal(t, []domain.AuthEvent{domain.EventSignedIn}, rec.events)
	assert.Equal(t, "a", c.AccessToken())
	persisted, _ := store.Load(context.Background())
	assert.NotNil(t, persisted)
	assert.Equal(t, before+1, testutil.ToFloat64(metrics.AuthEventsTotal.WithLabelValues(string(domain.EventSignedIn))))
}

func TestSignIn_Error_LeavesNoSession(t *testing.T) {
	wantErr := &domain.AuthError{Kind: domain.KindBackend, Message: "Invalid login credentials"}
	api := &fakeAPI{
		signIn: func(_ context.Context, _, _ string) (*domain.Session, error) { return nil, wantErr },
	}
	c := newClient(api, memory.NewSessionRepository())

	err := c.SignInWithPassword(context.Background(), "a@example.com", "nope")
	assert.ErrorIs(t, err, wantErr)
	assert.Empty(t, c.AccessToken())
}

func TestSignOut_ClearsSessionAndPublishes(t *testing.T) {
	var revoked string
	api := &fakeAPI{
		signIn: func(_ context.Context, _, _ string) (*domain.Session, error) {
			return newSession("a", "r", testNow.Add(time.Hour)), nil
		},
		logout: func(_ context.Context, token string) error {
			revoked = token
			return nil
		},
	}
	store := memory.NewSessionRepository()
	c := newClient(api, store)
	require.NoError(t, c.SignInWithPassword(context.Background(), "a@example.com", "Password1!"))

	rec := &recorder{}
	c.OnAuthStateChange(rec.record)
	require.NoError(t, c.SignOut(context.Background()))

	assert.Equal(t, "a", revoked)
	assert.Equal(t, []domain.AuthEvent{domain.EventSignedOut}, rec.events)
	assert.Nil(t, rec.last)
	s, err := c.GetSession(context.Background())
	require.NoError(t, err)
	assert.Nil(t, s)
	persisted, _ := store.Load(context.Background())
	assert.Nil(t, persisted)
}

func TestSignOut_BackendAlreadyForgotSession_StillSignsOut(t *testing.T) {
	api := &fakeAPI{
		signIn: func(_ context.Context, _, _ string) (*domain.Session, error) {
			return newSession("a", "r", testNow.Add(time.Hour)), nil
		},
		logout: func(_ context.Context, _ string) error {
			return &domain.AuthError{Kind: domain.KindBackend, Status: http.StatusUnauthorized, Message: "invalid JWT"}
		},
	}
	c := newClient(api, memory.NewSessionRepository())
	require.NoError(t, c.SignInWithPassword(context.Background(), "a@example.com", "Password1!"))

	require.NoError(t, c.SignOut(context.Background()))
	assert.Empty(t, c.AccessToken())
}

func TestSignOut_NetworkError_KeepsSession(t *testing.T) {
	api := &fakeAPI{
		signIn: func(_ context.Context, _, _ string) (*domain.Session, error) {
			return newSession("a", "r", testNow.Add(time.Hour)), nil
		},
		logout: func(_ context.Context, _ string) error {
			return &domain.AuthError{Kind: domain.KindNetwork, Message: "Failed to reach the authentication service"}
		},
	}
	c := newClient(api, memory.NewSessionRepository())
	require.NoError(t, c.SignInWithPassword(context.Background(), "a@example.com", "Password1!"))

	require.Error(t, c.SignOut(context.Background()))
	assert.Equal(t, "a", c.AccessToken())
}

// ---- UpdateUser / VerifyOTP ----

func TestUpdateUser_WithoutSession_IsSessionMissing(t *testing.T) {
	c := newClient(&fakeAPI{}, memory.NewSessionRepository())

	_, err := c.UpdateUser(context.Background(), backend.UserAttributes{Password: "Password1!"})
	assert.ErrorIs(t, err, domain.ErrSessionMissing)
	assert.Equal(t, domain.KindSessionMissing, domain.KindOf(err))
	assert.Equal(t, "Auth session missing!", domain.UserMessage(err, "fallback"))
}

func TestVerifyOTP_Recovery_PublishesPasswordRecovery(t *testing.T) {
	api := &fakeAPI{
		verifyOTP: func(_ context.Context, hash string, typ domain.OTPType) (*domain.Session, error) {
			assert.Equal(t, "hash", hash)
			assert.Equal(t, domain.OTPRecovery, typ)
			return newSession("a", "r", testNow.Add(time.Hour)), nil
		},
		updateUser: func(_ context.Context, token string, attrs backend.UserAttributes) (*domain.User, error) {
			assert.Equal(t, "a", token)
			assert.Equal(t, "Password1!", attrs.Password)
			return &domain.User{ID: "user-1", Email: "a@example.com"}, nil
		},
	}
	c := newClient(api, memory.NewSessionRepository())
	rec := &recorder{}
	c.OnAuthStateChange(rec.record)

	require.NoError(t, c.VerifyOTP(context.Background(), "hash", domain.OTPRecovery))
	_, err := c.UpdateUser(context.Background(), backend.UserAttributes{Password: "Password1!"})
	require.NoError(t, err)

	assert.Equal(t, []domain.AuthEvent{domain.EventPasswordRecovery, domain.EventUserUpdated}, rec.events)
}

// ---- Refresh ----

func TestRefresh_RejectedRefreshToken_SignsOut(t *testing.T) {
	api := &fakeAPI{
		signIn: func(_ context.Context, _, _ string) (*domain.Session, error) {
			return newSession("a", "r", testNow.Add(5*time.Second)), nil
		},
		refresh: func(_ context.Context, _ string) (*domain.Session, error) {
			return nil, &domain.AuthError{Kind: domain.KindBackend, Status: http.StatusBadRequest, Code: "refresh_token_not_found", Message: "Invalid Refresh Token"}
		},
	}
	c := newClient(api, memory.NewSessionRepository())
	require.NoError(t, c.SignInWithPassword(context.Background(), "a@example.com", "Password1!"))
	rec := &recorder{}
	c.OnAuthStateChange(rec.record)

	err := c.Refresh(context.Background())
	assert.ErrorIs(t, err, domain.ErrRefreshTokenGone)
	assert.Equal(t, []domain.AuthEvent{domain.EventSignedOut}, rec.events)
	assert.Empty(t, c.AccessToken())
}

func TestRefresh_NetworkFailure_KeepsSession(t *testing.T) {
	api := &fakeAPI{
		signIn: func(_ context.Context, _, _ string) (*domain.Session, error) {
			return newSession("a", "r", testNow.Add(5*time.Second)), nil
		},
		refresh: func(_ context.Context, _ string) (*domain.Session, error) {
			return nil, &domain.AuthError{Kind: domain.KindNetwork, Err: errors.New("dial tcp: refused")}
		},
	}
	c := newClient(api, memory.NewSessionRepository())
	require.NoError(t, c.SignInWithPassword(context.Background(), "a@example.com", "Password1!"))

	require.Error(t, c.Refresh(context.Background()))
	assert.Equal(t, "a", c.AccessToken())
}

func TestRefresh_NotDue_DoesNothing(t *testing.T) {
	api := &fakeAPI{
		signIn: func(_ context.Context, _, _ string) (*domain.Session, error) {
			return newSession("a", "r", testNow.Add(time.Hour)), nil
		},
	}
	c := newClient(api, memory.NewSessionRepository())
	require.NoError(t, c.SignInWithPassword(context.Background(), "a@example.com", "Password1!"))

	// refresh is nil on the fake; calling it would panic
	require.NoError(t, c.Refresh(context.Background()))
}

func TestOnAuthStateChange_UnsubscribeStopsDelivery(t *testing.T) {
	api := &fakeAPI{
		signIn: func(_ context.Context, _, _ string) (*domain.Session, error) {
			return newSession("a", "r", testNow.Add(time.Hour)), nil
		},
	}
	c := newClient(api, memory.NewSessionRepository())
	rec := &recorder{}
	unsubscribe := c.OnAuthStateChange(rec.record)
	unsubscribe()
	unsubscribe()

	require.NoError(t, c.SignInWithPassword(context.Background(), "a@example.com", "Password1!"))
	assert.Empty(t, rec.events)
}

func TestNewRefresher_InvalidSchedule(t *testing.T) {
	c := newClient(&fakeAPI{}, memory.NewSessionRepository())
	_, err := auth.NewRefresher(c, "not a schedule", slog.New(slog.NewTextHandler(io.Discard, nil)))
	assert.Error(t, err)
}
