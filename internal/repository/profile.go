package repository

import (
	"context"

	"github.com/ErlanBelekov/backup-desk/internal/domain"
)

type ProfileRepository interface {
	FindByID(ctx context.Context, id string) (*domain.Profile, error)
	Create(ctx context.Context, p *domain.Profile) error
	Update(ctx context.Context, id string, u domain.ProfileUpdate) error
}
