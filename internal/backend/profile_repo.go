package backend

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"time"

	"github.com/ErlanBelekov/backup-desk/internal/domain"
)

const profilesTable = restPrefix + "/profiles"

// codeNoRows is what the data API returns when a single-object request
// matched zero rows.
const codeNoRows = "PGRST116"

// TokenSource supplies the caller's access token so row-level policies apply.
type TokenSource interface {
	AccessToken() string
}

type profileRow struct {
	ID        string     `json:"id"`
	Email     string     `json:"email"`
	CreatedAt *time.Time `json:"created_at,omitempty"`
	UpdatedAt *time.Time `json:"updated_at,omitempty"`
}

func (r profileRow) toDomain() *domain.Profile {
	return &domain.Profile{ID: r.ID, Email: r.Email, CreatedAt: r.CreatedAt, UpdatedAt: r.UpdatedAt}
}

type profilePatch struct {
	Email     *string    `json:"email,omitempty"`
	UpdatedAt *time.Time `json:"updated_at,omitempty"`
}

// ProfileRepository stores profiles through the hosted data API.
type ProfileRepository struct {
	client *Client
	tokens TokenSource
}

func NewProfileRepository(client *Client, tokens TokenSource) *ProfileRepository {
	return &ProfileRepository{client: client, tokens: tokens}
}

func (r *ProfileRepository) FindByID(ctx context.Context, id string) (*domain.Profile, error) {
	var row profileRow
	err := r.client.do(ctx, request{
		method:      http.MethodGet,
		path:        profilesTable,
		query:       url.Values{"select": {"*"}, "id": {"eq." + id}},
		accessToken: r.tokens.AccessToken(),
		header:      http.Header{"Accept": {"application/vnd.pgrst.object+json"}},
	}, &row)
	if err != nil {
		var ae *domain.AuthError
		if errors.As(err, &ae) && (ae.Code == codeNoRows || ae.Status == http.StatusNotAcceptable) {
			return nil, &domain.AuthError{
				Kind:    domain.KindNotFound,
				Status:  ae.Status,
				Code:    ae.Code,
				Message: "Profile not found",
				Err:     domain.ErrProfileNotFound,
			}
		}
		return nil, err
	}
	return row.toDomain(), nil
}

func (r *ProfileRepository) Create(ctx context.Context, p *domain.Profile) error {
	return r.client.do(ctx, request{
		method:      http.MethodPost,
		path:        profilesTable,
		body:        []profileRow{{ID: p.ID, Email: p.Email, CreatedAt: p.CreatedAt, UpdatedAt: p.UpdatedAt}},
		accessToken: r.tokens.AccessToken(),
		header:      http.Header{"Prefer": {"return=minimal"}},
	}, nil)
}

// Update applies a partial update. Last write wins; there is no version check.
func (r *ProfileRepository) Update(ctx context.Context, id string, u domain.ProfileUpdate) error {
	return r.client.do(ctx, request{
		method:      http.MethodPatch,
		path:        profilesTable,
		query:       url.Values{"id": {"eq." + id}},
		body:        profilePatch{Email: u.Email, UpdatedAt: u.UpdatedAt},
		accessToken: r.tokens.AccessToken(),
		header:      http.Header{"Prefer": {"return=minimal"}},
	}, nil)
}
