package postgres

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/ErlanBelekov/backup-desk/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ProfileRepository reads and writes public.profiles directly. It is used
// instead of the data API when DATABASE_URL is configured.
type ProfileRepository struct {
	pool *pgxpool.Pool
}

func NewProfileRepository(pool *pgxpool.Pool) *ProfileRepository {
	return &ProfileRepository{pool: pool}
}

func (r *ProfileRepository) FindByID(ctx context.Context, id string) (*domain.Profile, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT id, email, created_at, updated_at FROM profiles WHERE id = $1`, id)

	var p domain.Profile
	if err := row.Scan(&p.ID, &p.Email, &p.CreatedAt, &p.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, &domain.AuthError{
				Kind:    domain.KindNotFound,
				Message: "Profile not found",
				Err:     domain.ErrProfileNotFound,
			}
		}
		return nil, storeError("find profile", err)
	}
	return &p, nil
}

func (r *ProfileRepository) Create(ctx context.Context, p *domain.Profile) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO profiles (id, email, created_at, updated_at)
		VALUES ($1, $2, COALESCE($3, now()), COALESCE($4, now()))`,
		p.ID, p.Email, p.CreatedAt, p.UpdatedAt,
	)
	if err != nil {
		return storeError("insert profile", err)
	}
	return nil
}

// Update builds a SET clause from the non-nil fields only. Last write wins.
func (r *ProfileRepository) Update(ctx context.Context, id string, u domain.ProfileUpdate) error {
	if u.Empty() {
		return nil
	}

	var (
		sets []string
		args []any
	)
	add := func(col string, v any) {
		args = append(args, v)
		sets = append(sets, col+" = $"+strconv.Itoa(len(args)))
	}
	if u.Email != nil {
		add("email", *u.Email)
	}
	if u.UpdatedAt != nil {
		add("updated_at", *u.UpdatedAt)
	}
	args = append(args, id)

	query := fmt.Sprintf(`UPDATE profiles SET %s WHERE id = $%d`, strings.Join(sets, ", "), len(args))
	if _, err := r.pool.Exec(ctx, query, args...); err != nil {
		return storeError("update profile", err)
	}
	return nil
}

func storeError(op string, err error) *domain.AuthError {
	return &domain.AuthError{
		Kind:    domain.KindBackend,
		Message: "Profile storage is unavailable",
		Err:     fmt.Errorf("%s: %w", op, err),
	}
}
