package repository

import (
	"context"

	"github.com/ErlanBelekov/backup-desk/internal/domain"
)

// SessionRepository persists the single current session across restarts.
// Load returns (nil, nil) when nothing is stored.
type SessionRepository interface {
	Load(ctx context.Context) (*domain.Session, error)
	Save(ctx context.Context, s *domain.Session) error
	Delete(ctx context.Context) error
}
