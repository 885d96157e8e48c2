package backend

import (
	"context"
	"net/http"
	"net/url"
	"time"

	"github.com/ErlanBelekov/backup-desk/internal/domain"
)

type userResponse struct {
	ID               string     `json:"id"`
	Email            string     `json:"email"`
	EmailConfirmedAt *time.Time `json:"email_confirmed_at"`
	CreatedAt        time.Time  `json:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at"`
}

func (u userResponse) toDomain() domain.User {
	return domain.User{
		ID:               u.ID,
		Email:            u.Email,
		EmailConfirmedAt: u.EmailConfirmedAt,
		CreatedAt:        u.CreatedAt,
		UpdatedAt:        u.UpdatedAt,
	}
}

type sessionResponse struct {
	AccessToken  string        `json:"access_token"`
	TokenType    string        `json:"token_type"`
	ExpiresIn    int           `json:"expires_in"`
	ExpiresAt    int64         `json:"expires_at"`
	RefreshToken string        `json:"refresh_token"`
	User         *userResponse `json:"user"`
}

func (s sessionResponse) toDomain(now time.Time) *domain.Session {
	sess := &domain.Session{
		AccessToken:  s.AccessToken,
		RefreshToken: s.RefreshToken,
		TokenType:    s.TokenType,
		ExpiresIn:    s.ExpiresIn,
	}
	switch {
	case s.ExpiresAt > 0:
		sess.ExpiresAt = time.Unix(s.ExpiresAt, 0)
	case s.ExpiresIn > 0:
		sess.ExpiresAt = now.Add(time.Duration(s.ExpiresIn) * time.Second)
	}
	if s.User != nil {
		sess.User = s.User.toDomain()
	}
	return sess
}

// signUpResponse is either a full session (auto-confirmed accounts) or a bare
// user awaiting email confirmation.
type signUpResponse struct {
	sessionResponse
	userResponse
}

type credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// SignUp creates the account. The session is nil when the backend requires
// email confirmation first.
func (c *Client) SignUp(ctx context.Context, email, password, redirectTo string) (*domain.User, *domain.Session, error) {
	q := url.Values{}
	if redirectTo != "" {
		q.Set("redirect_to", redirectTo)
	}

	var resp signUpResponse
	err := c.do(ctx, request{
		method: http.MethodPost,
		path:   authPrefix + "/signup",
		query:  q,
		body:   credentials{Email: email, Password: password},
	}, &resp)
	if err != nil {
		return nil, nil, err
	}

	if resp.AccessToken != "" {
		sess := resp.sessionResponse.toDomain(time.Now())
		u := sess.User
		return &u, sess, nil
	}
	if resp.userResponse.ID == "" {
		return nil, nil, nil
	}
	u := resp.userResponse.toDomain()
	return &u, nil, nil
}

func (c *Client) SignInWithPassword(ctx context.Context, email, password string) (*domain.Session, error) {
	return c.token(ctx, "password", credentials{Email: email, Password: password})
}

func (c *Client) RefreshSession(ctx context.Context, refreshToken string) (*domain.Session, error) {
	return c.token(ctx, "refresh_token", map[string]string{"refresh_token": refreshToken})
}

func (c *Client) token(ctx context.Context, grant string, body any) (*domain.Session, error) {
	var resp sessionResponse
	err := c.do(ctx, request{
		method: http.MethodPost,
		path:   authPrefix + "/token",
		query:  url.Values{"grant_type": {grant}},
		body:   body,
	}, &resp)
	if err != nil {
		return nil, err
	}
	return resp.toDomain(time.Now()), nil
}

// Logout revokes the refresh tokens behind accessToken.
func (c *Client) Logout(ctx context.Context, accessToken string) error {
	return c.do(ctx, request{
		method:      http.MethodPost,
		path:        authPrefix + "/logout",
		accessToken: accessToken,
	}, nil)
}

// Recover asks the backend to email a password-reset link.
func (c *Client) Recover(ctx context.Context, email, redirectTo string) error {
	q := url.Values{}
	if redirectTo != "" {
		q.Set("redirect_to", redirectTo)
	}
	return c.do(ctx, request{
		method: http.MethodPost,
		path:   authPrefix + "/recover",
		query:  q,
		body:   map[string]string{"email": email},
	}, nil)
}

type UserAttributes struct {
	Email    string `json:"email,omitempty"`
	Password string `json:"password,omitempty"`
}

func (c *Client) UpdateUser(ctx context.Context, accessToken string, attrs UserAttributes) (*domain.User, error) {
	var resp userResponse
	err := c.do(ctx, request{
		method:      http.MethodPut,
		path:        authPrefix + "/user",
		body:        attrs,
		accessToken: accessToken,
	}, &resp)
	if err != nil {
		return nil, err
	}
	u := resp.toDomain()
	return &u, nil
}

// VerifyOTP exchanges the token_hash from an email link for a session.
func (c *Client) VerifyOTP(ctx context.Context, tokenHash string, typ domain.OTPType) (*domain.Session, error) {
	var resp sessionResponse
	err := c.do(ctx, request{
		method: http.MethodPost,
		path:   authPrefix + "/verify",
		body:   map[string]string{"token_hash": tokenHash, "type": string(typ)},
	}, &resp)
	if err != nil {
		return nil, err
	}
	return resp.toDomain(time.Now()), nil
}
