package usecase

import (
	"context"
	"log/slog"
	"sync"

	"github.com/ErlanBelekov/backup-desk/internal/domain"
	"github.com/ErlanBelekov/backup-desk/internal/repository"
)

const (
	msgFetchProfileFailed  = "Failed to fetch profile"
	msgUpdateProfileFailed = "Failed to update profile"
)

// ProfileAccessor loads one user's profile and keeps a local copy that
// updates are merged into.
type ProfileAccessor struct {
	repo   repository.ProfileRepository
	logger *slog.Logger

	mu      sync.Mutex
	userID  string
	profile *domain.Profile
	loading bool
	errMsg  string
}

func NewProfileAccessor(repo repository.ProfileRepository, logger *slog.Logger) *ProfileAccessor {
	return &ProfileAccessor{
		repo:    repo,
		logger:  logger.With("component", "profile_accessor"),
		loading: true,
	}
}

// Fetch loads the profile for userID. An empty userID fetches nothing.
// A missing row yields an error wrapping domain.ErrProfileNotFound.
func (p *ProfileAccessor) Fetch(ctx context.Context, userID string) (*domain.Profile, error) {
	p.mu.Lock()
	p.userID = userID
	if userID == "" {
		p.loading = false
		p.mu.Unlock()
		return nil, nil
	}
	p.mu.Unlock()

	prof, err := p.repo.FindByID(ctx, userID)

	p.mu.Lock()
	defer p.mu.Unlock()
	p.loading = false
	if err != nil {
		p.errMsg = domain.UserMessage(err, msgFetchProfileFailed)
		p.logger.WarnContext(ctx, "fetch profile", "user_id", userID, "error", err)
		return nil, err
	}
	p.profile = prof
	return prof, nil
}

// Update applies a partial update and merges it into the cached profile.
// No version check is made; the last write wins.
func (p *ProfileAccessor) Update(ctx context.Context, u domain.ProfileUpdate) bool {
	p.mu.Lock()
	p.loading = true
	p.errMsg = ""
	userID := p.userID
	p.mu.Unlock()

	var err error
	if userID == "" {
		err = domain.NewValidationError(msgUpdateProfileFailed)
	} else {
		err = p.repo.Update(ctx, userID, u)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	p.loading = false
	if err != nil {
		p.errMsg = domain.UserMessage(err, msgUpdateProfileFailed)
		p.logger.WarnContext(ctx, "update profile", "user_id", userID, "error", err)
		return false
	}
	if p.profile != nil {
		merged := u.Apply(*p.profile)
		p.profile = &merged
	}
	return true
}

func (p *ProfileAccessor) Profile() *domain.Profile {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.profile
}

func (p *ProfileAccessor) Loading() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.loading
}

func (p *ProfileAccessor) Error() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.errMsg
}
