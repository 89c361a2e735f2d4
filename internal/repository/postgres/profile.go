package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/utafrali/farmmarket/internal/domain"
	"github.com/utafrali/farmmarket/pkg/database"
	apperrors "github.com/utafrali/farmmarket/pkg/errors"
)

// ProfileRepository implements repository.ProfileRepository using PostgreSQL.
type ProfileRepository struct {
	pool database.DBTX
}

// NewProfileRepository creates a new PostgreSQL-backed profile repository.
func NewProfileRepository(pool database.DBTX) *ProfileRepository {
	return &ProfileRepository{pool: pool}
}

// GetAuthor loads the author snapshot for userID.
func (r *ProfileRepository) GetAuthor(ctx context.Context, userID string) (_ *domain.Author, err error) {
	query := `SELECT id, full_name, COALESCE(avatar_url, ''), role FROM profiles WHERE id = $1`

	ctx, end := database.TraceQuery(ctx, "GetAuthor", query)
	defer func() { end(err) }()

	var a domain.Author
	err = r.pool.QueryRow(ctx, query, userID).Scan(&a.UserID, &a.FullName, &a.AvatarURL, &a.Role)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NotFound("profile", userID)
		}
		return nil, fmt.Errorf("get profile: %w", err)
	}
	return &a, nil
}
