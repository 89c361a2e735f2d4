// Package seed loads a small demo catalog: a few farmers, one buyer and
// the products the farmers sell. Seeding is idempotent; rows that already
// exist are left untouched.
package seed

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/utafrali/farmmarket/internal/domain"
	"github.com/utafrali/farmmarket/pkg/database"
)

// namespace derives stable IDs so repeated runs target the same rows.
var namespace = uuid.MustParse("6f1c2b7e-93a4-4d0e-8f52-5b8e1a7d3c90")

// ID returns the deterministic UUID for a seed key such as "farmer:green-acres".
func ID(key string) string {
	return uuid.NewSHA1(namespace, []byte(key)).String()
}

// Profile is a seeded user.
type Profile struct {
	Key      string
	FullName string
	Role     string
	Phone    string
}

// Product is a seeded catalog entry owned by the farmer with FarmerKey.
type Product struct {
	Key       string
	FarmerKey string
	Name      string
	Unit      string
	Price     int64
	Stock     int
}

// Catalog is the data Run inserts.
type Catalog struct {
	Profiles []Profile
	Products []Product
}

// DefaultCatalog returns the demo data set.
func DefaultCatalog() Catalog {
	return Catalog{
		Profiles: []Profile{
			{Key: "farmer:green-acres", FullName: "Green Acres Farm", Role: domain.RoleFarmer, Phone: "+15550100001"},
			{Key: "farmer:hilltop-dairy", FullName: "Hilltop Dairy", Role: domain.RoleFarmer, Phone: "+15550100002"},
			{Key: "farmer:busy-bee", FullName: "Busy Bee Apiary", Role: domain.RoleFarmer, Phone: "+15550100003"},
			{Key: "customer:demo", FullName: "Demo Buyer", Role: domain.RoleCustomer},
		},
		Products: []Product{
			{Key: "product:heirloom-tomatoes", FarmerKey: "farmer:green-acres", Name: "Heirloom Tomatoes", Unit: "kg", Price: 450, Stock: 120},
			{Key: "product:baby-spinach", FarmerKey: "farmer:green-acres", Name: "Baby Spinach", Unit: "bag", Price: 300, Stock: 80},
			{Key: "product:free-range-eggs", FarmerKey: "farmer:hilltop-dairy", Name: "Free-Range Eggs", Unit: "dozen", Price: 600, Stock: 60},
			{Key: "product:raw-milk", FarmerKey: "farmer:hilltop-dairy", Name: "Whole Milk", Unit: "liter", Price: 250, Stock: 40},
			{Key: "product:wildflower-honey", FarmerKey: "farmer:busy-bee", Name: "Wildflower Honey", Unit: "jar", Price: 1200, Stock: 25},
		},
	}
}

// Stats counts rows actually inserted by Run.
type Stats struct {
	Profiles int
	Products int
}

// Run inserts the catalog inside one transaction.
func Run(ctx context.Context, db database.DBTX, catalog Catalog, logger *slog.Logger) (Stats, error) {
	var stats Stats

	farmers := make(map[string]bool, len(catalog.Profiles))
	for _, p := range catalog.Profiles {
		if p.Role == domain.RoleFarmer {
			farmers[p.Key] = true
		}
	}
	for _, p := range catalog.Products {
		if !farmers[p.FarmerKey] {
			return stats, fmt.Errorf("product %q references unknown farmer %q", p.Key, p.FarmerKey)
		}
	}

	tx, err := db.Begin(ctx)
	if err != nil {
		return stats, fmt.Errorf("begin seed transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	for _, p := range catalog.Profiles {
		inserted, err := insertProfile(ctx, tx, p)
		if err != nil {
			return stats, err
		}
		if inserted {
			stats.Profiles++
		}
	}
	for _, p := range catalog.Products {
		inserted, err := insertProduct(ctx, tx, p)
		if err != nil {
			return stats, err
		}
		if inserted {
			stats.Products++
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return stats, fmt.Errorf("commit seed transaction: %w", err)
	}

	logger.InfoContext(ctx, "seed data loaded",
		slog.Int("profiles", stats.Profiles),
		slog.Int("products", stats.Products),
		slog.Int("skipped", len(catalog.Profiles)+len(catalog.Products)-stats.Profiles-stats.Products),
	)
	return stats, nil
}

func insertProfile(ctx context.Context, tx pgx.Tx, p Profile) (bool, error) {
	var phone *string
	if p.Phone != "" {
		phone = &p.Phone
	}
	tag, err := tx.Exec(ctx,
		`INSERT INTO profiles (id, full_name, role, phone)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (id) DO NOTHING`,
		ID(p.Key), p.FullName, p.Role, phone,
	)
	if err != nil {
		return false, fmt.Errorf("seed profile %q: %w", p.Key, err)
	}
	return tag.RowsAffected() == 1, nil
}

func insertProduct(ctx context.Context, tx pgx.Tx, p Product) (bool, error) {
	tag, err := tx.Exec(ctx,
		`INSERT INTO products (id, farmer_id, name, unit, price, stock)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 ON CONFLICT (id) DO NOTHING`,
		ID(p.Key), ID(p.FarmerKey), p.Name, p.Unit, p.Price, p.Stock,
	)
	if err != nil {
		return false, fmt.Errorf("seed product %q: %w", p.Key, err)
	}
	return tag.RowsAffected() == 1, nil
}
