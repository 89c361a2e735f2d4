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

// ProductRepository implements repository.ProductRepository using PostgreSQL.
type ProductRepository struct {
	pool database.DBTX
}

// NewProductRepository creates a new PostgreSQL-backed product repository.
func NewProductRepository(pool database.DBTX) *ProductRepository {
	return &ProductRepository{pool: pool}
}

const productColumns = `id, farmer_id, name, unit, price, COALESCE(image_url, ''), stock`

// GetByID retrieves a product by its ID.
func (r *ProductRepository) GetByID(ctx context.Context, id string) (_ *domain.Product, err error) {
	query := `SELECT ` + productColumns + ` FROM products WHERE id = $1`

	ctx, end := database.TraceQuery(ctx, "GetProduct", query)
	defer func() { end(err) }()

	p, err := scanProduct(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NotFound("product", id)
		}
		return nil, fmt.Errorf("get product: %w", err)
	}
	return &p, nil
}

// ListByFarmer returns the products a farmer offers, by name.
func (r *ProductRepository) ListByFarmer(ctx context.Context, farmerID string) (_ []domain.Product, err error) {
	query := `SELECT ` + productColumns + ` FROM products WHERE farmer_id = $1 ORDER BY name`

	ctx, end := database.TraceQuery(ctx, "ListProductsByFarmer", query)
	defer func() { end(err) }()

	rows, err := r.pool.Query(ctx, query, farmerID)
	if err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}
	defer rows.Close()

	products := make([]domain.Product, 0)
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, fmt.Errorf("scan product row: %w", err)
		}
		products = append(products, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate product rows: %w", err)
	}
	return products, nil
}

func scanProduct(row pgx.Row) (domain.Product, error) {
	var p domain.Product
	err := row.Scan(&p.ID, &p.FarmerID, &p.Name, &p.Unit, &p.Price, &p.ImageURL, &p.Stock)
	return p, err
}
