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

// ReviewRepository implements repository.ReviewRepository using PostgreSQL.
type ReviewRepository struct {
	pool database.DBTX
}

// NewReviewRepository creates a new PostgreSQL-backed review repository.
func NewReviewRepository(pool database.DBTX) *ReviewRepository {
	return &ReviewRepository{pool: pool}
}

const reviewColumns = `id, product_id, user_id, parent_id, rating, comment, created_at`

// ListByProduct returns every review and reply of a product. Row order is
// irrelevant; the thread builder orders them.
func (r *ReviewRepository) ListByProduct(ctx context.Context, productID string) (_ []domain.ReviewRecord, err error) {
	query := `SELECT ` + reviewColumns + ` FROM reviews WHERE product_id = $1`

	ctx, end := database.TraceQuery(ctx, "ListReviewsByProduct", query)
	defer func() { end(err) }()

	rows, err := r.pool.Query(ctx, query, productID)
	if err != nil {
		return nil, fmt.Errorf("list reviews: %w", err)
	}
	defer rows.Close()

	reviews := make([]domain.ReviewRecord, 0)
	for rows.Next() {
		rec, err := scanReview(rows)
		if err != nil {
			return nil, fmt.Errorf("scan review row: %w", err)
		}
		reviews = append(reviews, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate review rows: %w", err)
	}
	return reviews, nil
}

// GetByID retrieves a single review.
func (r *ReviewRepository) GetByID(ctx context.Context, id string) (_ *domain.ReviewRecord, err error) {
	query := `SELECT ` + reviewColumns + ` FROM reviews WHERE id = $1`

	ctx, end := database.TraceQuery(ctx, "GetReview", query)
	defer func() { end(err) }()

	rec, err := scanReview(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NotFound("review", id)
		}
		return nil, fmt.Errorf("get review: %w", err)
	}
	return &rec, nil
}

// Create inserts a review or reply.
func (r *ReviewRepository) Create(ctx context.Context, review *domain.ReviewRecord) (err error) {
	query := `
		INSERT INTO reviews (id, product_id, user_id, parent_id, rating, comment, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`

	ctx, end := database.TraceQuery(ctx, "CreateReview", query)
	defer func() { end(err) }()

	_, err = r.pool.Exec(ctx, query,
		review.ID,
		review.ProductID,
		review.UserID,
		review.ParentID,
		review.Rating,
		review.Comment,
		review.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert review: %w", err)
	}
	return nil
}

func scanReview(row pgx.Row) (domain.ReviewRecord, error) {
	var rec domain.ReviewRecord
	err := row.Scan(
		&rec.ID,
		&rec.ProductID,
		&rec.UserID,
		&rec.ParentID,
		&rec.Rating,
		&rec.Comment,
		&rec.CreatedAt,
	)
	return rec, err
}
