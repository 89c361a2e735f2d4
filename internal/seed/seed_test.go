package seed

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	pgxmock "github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/utafrali/farmmarket/internal/domain"
	"github.com/utafrali/farmmarket/pkg/database"
)

func newMock(t *testing.T) pgxmock.PgxPoolIface {
	t.Helper()
	mock, err := database.NewMockPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	return mock
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func smallCatalog() Catalog {
	return Catalog{
		Profiles: []Profile{
			{Key: "farmer:a", FullName: "Farm A", Role: domain.RoleFarmer, Phone: "+15550000001"},
			{Key: "customer:b", FullName: "Buyer B", Role: domain.RoleCustomer},
		},
		Products: []Product{
			{Key: "product:kale", FarmerKey: "farmer:a", Name: "Kale", Unit: "bunch", Price: 275, Stock: 10},
		},
	}
}

func TestID_Deterministic(t *testing.T) {
	assert.Equal(t, ID("farmer:a"), ID("farmer:a"))
	assert.NotEqual(t, ID("farmer:a"), ID("farmer:b"))
	assert.Len(t, ID("farmer:a"), 36)
}

func TestRun_InsertsCatalog(t *testing.T) {
	mock := newMock(t)
	phone := "+15550000001"

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO profiles").
		WithArgs(ID("farmer:a"), "Farm A", domain.RoleFarmer, &phone).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec("INSERT INTO profiles").
		WithArgs(ID("customer:b"), "Buyer B", domain.RoleCustomer, (*string)(nil)).
		WillReturnResult(pgxmock.NewResult("INSERT", 0))
	mock.ExpectExec("INSERT INTO products").
		WithArgs(ID("product:kale"), ID("farmer:a"), "Kale", "bunch", int64(275), 10).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()

	stats, err := Run(context.Background(), mock, smallCatalog(), discardLogger())
	require.NoError(t, err)
	assert.Equal(t, Stats{Profiles: 1, Products: 1}, stats)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRun_RollsBackOnFailure(t *testing.T) {
	mock := newMock(t)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO profiles").WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec("INSERT INTO profiles").WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec("INSERT INTO products").WillReturnError(errors.New("foreign key violation"))
	mock.ExpectRollback()

	_, err := Run(context.Background(), mock, smallCatalog(), discardLogger())
	require.Error(t, err)
	assert.Contains(t, err.Error(), `seed product "product:kale"`)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRun_UnknownFarmer(t *testing.T) {
	mock := newMock(t)
	catalog := smallCatalog()
	catalog.Products[0].FarmerKey = "customer:b"

	_, err := Run(context.Background(), mock, catalog, discardLogger())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown farmer")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDefaultCatalog_ProductsBelongToFarmers(t *testing.T) {
	catalog := DefaultCatalog()
	farmers := map[string]bool{}
	for _, p := range catalog.Profiles {
		if p.Role == domain.RoleFarmer {
			farmers[p.Key] = true
		}
	}
	for _, p := range catalog.Products {
		assert.True(t, farmers[p.FarmerKey], p.Key)
		assert.Positive(t, p.Price, p.Key)
	}
}
