package domain

import (
	"errors"
	"time"
)

var (
	ErrSessionMissing   = errors.New("auth session missing")
	ErrProfileNotFound  = errors.New("profile not found")
	ErrProfileCreation  = errors.New("failed to create user profile")
	ErrTokenInvalid     = errors.New("token is invalid or expired")
	ErrRefreshTokenGone = errors.New("refresh token is invalid or revoked")
)

type User struct {
	ID               string
	Email            string
	EmailConfirmedAt *time.Time
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// Session is the token bundle issued by the backend. It is treated as
// read-only once published.
type Session struct {
	AccessToken  string
	RefreshToken string
	TokenType    string
	ExpiresIn    int
	ExpiresAt    time.Time
	User         User
}

// ExpiresWithin reports whether the access token expires before now+margin.
func (s *Session) ExpiresWithin(now time.Time, margin time.Duration) bool {
	if s.ExpiresAt.IsZero() {
		return false
	}
	return !now.Add(margin).Before(s.ExpiresAt)
}

type AuthEvent string

const (
	EventInitialSession   AuthEvent = "INITIAL_SESSION"
	EventSignedIn         AuthEvent = "SIGNED_IN"
	EventSignedOut        AuthEvent = "SIGNED_OUT"
	EventTokenRefreshed   AuthEvent = "TOKEN_REFRESHED"
	EventUserUpdated      AuthEvent = "USER_UPDATED"
	EventPasswordRecovery AuthEvent = "PASSWORD_RECOVERY"
)

// OTPType is the verification flavour carried by email links.
type OTPType string

const (
	OTPSignup      OTPType = "signup"
	OTPRecovery    OTPType = "recovery"
	OTPEmail       OTPType = "email"
	OTPInvite      OTPType = "invite"
	OTPEmailChange OTPType = "email_change"
	OTPMagicLink   OTPType = "magiclink"
)

func (t OTPType) Valid() bool {
	switch t {
	case OTPSignup, OTPRecovery, OTPEmail, OTPInvite, OTPEmailChange, OTPMagicLink:
		return true
	}
	return false
}
