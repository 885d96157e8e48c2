package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/ErlanBelekov/backup-desk/internal/domain"
)

type SessionRepository struct {
	db *sql.DB
}

func NewSessionRepository(db *sql.DB) *SessionRepository {
	return &SessionRepository{db: db}
}

func (r *SessionRepository) Load(ctx context.Context) (*domain.Session, error) {
	var (
		s         domain.Session
		expiresAt int64
	)
	err := r.db.QueryRowContext(ctx, `
		SELECT access_token, refresh_token, token_type, expires_in, expires_at, user_id, user_email
		FROM auth_session WHERE slot = 1`,
	).Scan(&s.AccessToken, &s.RefreshToken, &s.TokenType, &s.ExpiresIn, &expiresAt, &s.User.ID, &s.User.Email)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("load session: %w", err)
	}
	if expiresAt > 0 {
		s.ExpiresAt = time.Unix(expiresAt, 0)
	}
	return &s, nil
}

func (r *SessionRepository) Save(ctx context.Context, s *domain.Session) error {
	var expiresAt int64
	if !s.ExpiresAt.IsZero() {
		expiresAt = s.ExpiresAt.Unix()
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO auth_session (slot, access_token, refresh_token, token_type, expires_in, expires_at, user_id, user_email, saved_at)
		VALUES (1, ?, ?, ?, ?, ?, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT (slot) DO UPDATE SET
			access_token  = excluded.access_token,
			refresh_token = excluded.refresh_token,
			token_type    = excluded.token_type,
			expires_in    = excluded.expires_in,
			expires_at    = excluded.expires_at,
			user_id       = excluded.user_id,
			user_email    = excluded.user_email,
			saved_at      = CURRENT_TIMESTAMP`,
		s.AccessToken, s.RefreshToken, s.TokenType, s.ExpiresIn, expiresAt, s.User.ID, s.User.Email,
	)
	if err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	return nil
}

func (r *SessionRepository) Delete(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM auth_session WHERE slot = 1`); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}
