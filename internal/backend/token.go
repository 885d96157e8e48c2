package backend

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/ErlanBelekov/backup-desk/internal/domain"
	"github.com/golang-jwt/jwt/v5"
	"github.com/lestrrat-go/jwx/v2/jwk"
	"github.com/lestrrat-go/jwx/v2/jws"
	jwxjwt "github.com/lestrrat-go/jwx/v2/jwt"
)

// Claims is the subset of access-token claims the front-end relies on.
type Claims struct {
	Subject   string
	Email     string
	ExpiresAt time.Time
}

// TokenVerifier checks an access token's signature and returns its claims.
// Expiry is reported, not enforced: an expired token is still a valid input
// for refresh.
type TokenVerifier interface {
	Verify(ctx context.Context, raw string) (*Claims, error)
}

// NewTokenVerifier picks JWKS verification when jwksURL is set, HS256 when a
// shared secret is set, and unverified decoding otherwise. timeout bounds
// each key set fetch.
func NewTokenVerifier(ctx context.Context, jwksURL string, secret []byte, timeout time.Duration) (TokenVerifier, error) {
	switch {
	case jwksURL != "":
		return NewJWKSVerifier(ctx, jwksURL, timeout)
	case len(secret) > 0:
		return &HMACVerifier{key: secret}, nil
	default:
		return UnverifiedDecoder{}, nil
	}
}

type HMACVerifier struct {
	key []byte
}

func NewHMACVerifier(key []byte) *HMACVerifier {
	return &HMACVerifier{key: key}
}

func (v *HMACVerifier) Verify(_ context.Context, raw string) (*Claims, error) {
	token, err := jwt.Parse(raw, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return v.key, nil
	}, jwt.WithoutClaimsValidation())
	if err != nil || !token.Valid {
		return nil, invalidToken(err)
	}
	return mapClaims(token)
}

// UnverifiedDecoder reads claims without checking the signature. Only used
// when no verification material is configured.
type UnverifiedDecoder struct{}

func (UnverifiedDecoder) Verify(_ context.Context, raw string) (*Claims, error) {
	token, _, err := jwt.NewParser().ParseUnverified(raw, jwt.MapClaims{})
	if err != nil {
		return nil, invalidToken(err)
	}
	return mapClaims(token)
}

func mapClaims(token *jwt.Token) (*Claims, error) {
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, invalidToken(errors.New("unexpected claims type"))
	}
	sub, err := claims.GetSubject()
	if err != nil || sub == "" {
		return nil, invalidToken(errors.New("missing sub"))
	}
	out := &Claims{Subject: sub}
	if exp, err := claims.GetExpirationTime(); err == nil && exp != nil {
		out.ExpiresAt = exp.Time
	}
	out.Email, _ = claims["email"].(string)
	return out, nil
}

// JWKSVerifier verifies asymmetric tokens against the backend's key set.
// Keys are cached and refreshed every 15 minutes.
type JWKSVerifier struct {
	cache *jwk.Cache
	url   string
}

func NewJWKSVerifier(ctx context.Context, jwksURL string, timeout time.Duration) (*JWKSVerifier, error) {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	c := jwk.NewCache(ctx)
	if err := c.Register(jwksURL,
		jwk.WithMinRefreshInterval(15*time.Minute),
		jwk.WithHTTPClient(&http.Client{Timeout: timeout}),
	); err != nil {
		return nil, fmt.Errorf("jwk cache register: %w", err)
	}
	return &JWKSVerifier{cache: c, url: jwksURL}, nil
}

func (v *JWKSVerifier) Verify(ctx context.Context, raw string) (*Claims, error) {
	set, err := v.cache.Get(ctx, v.url)
	if err != nil {
		return nil, networkError(fmt.Errorf("fetch jwks: %w", err))
	}
	tok, err := jwxjwt.Parse([]byte(raw),
		jwxjwt.WithKeySet(set, jws.WithInferAlgorithmFromKey(true)),
		jwxjwt.WithValidate(false),
	)
	if err != nil || tok == nil {
		return nil, invalidToken(err)
	}
	if tok.Subject() == "" {
		return nil, invalidToken(errors.New("missing sub"))
	}
	out := &Claims{Subject: tok.Subject(), ExpiresAt: tok.Expiration()}
	if v, ok := tok.Get("email"); ok {
		out.Email, _ = v.(string)
	}
	return out, nil
}

func invalidToken(cause error) *domain.AuthError {
	err := domain.ErrTokenInvalid
	if cause != nil {
		err = fmt.Errorf("%w: %v", domain.ErrTokenInvalid, cause)
	}
	return &domain.AuthError{Kind: domain.KindUnclassified, Err: err}
}
