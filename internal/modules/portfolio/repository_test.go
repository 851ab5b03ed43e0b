package portfolio

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openfolio/portfolio-analyzer/internal/database"
)

func newTestRepo(t *testing.T) *Repository {
	t.Helper()

	db, err := database.New(database.Config{
		Path: filepath.Join(t.TempDir(), "portfolio.db"),
		Name: "portfolio",
	})
	require.NoError(t, err)
	require.NoError(t, db.Migrate())
	t.Cleanup(func() { _ = db.Close() })

	return NewRepository(db.Conn(), zerolog.Nop())
}

func TestRepository_CreateAndGet(t *testing.T) {
	repo := newTestRepo(t)

	created, err := repo.Create(CreatePortfolioRequest{Name: "Retirement", Description: "Long term"})
	require.NoError(t, err)
	require.NotEmpty(t, created.ID)

	loaded, err := repo.Get(created.ID)
	require.NoError(t, err)
	assert.Equal(t, "Retirement", loaded.Name)
	assert.Equal(t, "Long term", loaded.Description)
	assert.Empty(t, loaded.Assets)
	assert.Empty(t, loaded.Transactions)
}

func TestRepository_GetNotFound(t *testing.T) {
	repo := newTestRepo(t)

	_, err := repo.Get("missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRepository_Update(t *testing.T) {
	repo := newTestRepo(t)

	created, err := repo.Create(CreatePortfolioRequest{Name: "Old"})
	require.NoError(t, err)

	updated, err := repo.Update(created.ID, CreatePortfolioRequest{Name: "New", Description: "Renamed"})
	require.NoError(t, err)
	assert.Equal(t, "New", updated.Name)
	assert.Equal(t, "Renamed", updated.Description)

	_, err = repo.Update("missing", CreatePortfolioRequest{Name: "X"})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRepository_DeleteCascades(t *testing.T) {
	repo := newTestRepo(t)

	created, err := repo.Create(CreatePortfolioRequest{Name: "Doomed"})
	require.NoError(t, err)

	_, err = repo.AddAsset(created.ID, AddAssetRequest{
		Symbol:        "AAPL",
		Name:          "Apple",
		Quantity:      10,
		PurchasePrice: 150,
		AssetType:     AssetTypeStock,
	})
	require.NoError(t, err)

	require.NoError(t, repo.Delete(created.ID))

	_, err = repo.Get(created.ID)
	assert.ErrorIs(t, err, ErrNotFound)

	assert.ErrorIs(t, repo.Delete(created.ID), ErrNotFound)
}

func TestRepository_AddAsset(t *testing.T) {
	repo := newTestRepo(t)

	created, err := repo.Create(CreatePortfolioRequest{Name: "Growth"})
	require.NoError(t, err)

	purchaseDate := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	p, err := repo.AddAsset(created.ID, AddAssetRequest{
		Symbol:        "MSFT",
		Name:          "Microsoft",
		Quantity:      5,
		PurchasePrice: 400,
		PurchaseDate:  purchaseDate,
		AssetType:     AssetTypeStock,
	})
	require.NoError(t, err)
	require.Len(t, p.Assets, 1)

	asset := p.Assets[0]
	assert.Equal(t, "MSFT", asset.Symbol)
	assert.Equal(t, 5.0, asset.Quantity)
	assert.Equal(t, 400.0, asset.PurchasePrice)
	assert.True(t, asset.PurchaseDate.Equal(purchaseDate))
	assert.True(t, p.UpdatedAt.After(created.UpdatedAt) || p.UpdatedAt.Equal(created.UpdatedAt))

	_, err = repo.AddAsset("missing", AddAssetRequest{Symbol: "X", Quantity: 1, PurchasePrice: 1, AssetType: AssetTypeStock})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRepository_AddTransaction(t *testing.T) {
	repo := newTestRepo(t)

	created, err := repo.Create(CreatePortfolioRequest{Name: "Trading"})
	require.NoError(t, err)

	p, err := repo.AddTransaction(created.ID, AddTransactionRequest{
		AssetSymbol:     "AAPL",
		TransactionType: TransactionBuy,
		Quantity:        3,
		Price:           180,
	})
	require.NoError(t, err)
	require.Len(t, p.Transactions, 1)

	tx := p.Transactions[0]
	assert.NotEmpty(t, tx.ID)
	assert.Equal(t, TransactionBuy, tx.TransactionType)
	assert.Equal(t, 3.0, tx.Quantity)
	assert.Equal(t, 180.0, tx.Price)
	assert.False(t, tx.Date.IsZero())
}

func TestRepository_List(t *testing.T) {
	repo := newTestRepo(t)

	_, err := repo.Create(CreatePortfolioRequest{Name: "First"})
	require.NoError(t, err)
	second, err := repo.Create(CreatePortfolioRequest{Name: "Second"})
	require.NoError(t, err)
	_, err = repo.AddAsset(second.ID, AddAssetRequest{
		Symbol:        "VTI",
		Name:          "Vanguard Total Market",
		Quantity:      2,
		PurchasePrice: 250,
		AssetType:     AssetTypeETF,
	})
	require.NoError(t, err)

	portfolios, err := repo.List()
	require.NoError(t, err)
	require.Len(t, portfolios, 2)
	assert.Equal(t, "First", portfolios[0].Name)
	assert.Len(t, portfolios[1].Assets, 1)
}
