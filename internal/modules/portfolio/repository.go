package portfolio

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// ErrNotFound is returned when a portfolio id does not exist
var ErrNotFound = errors.New("portfolio not found")

// Repository persists portfolios, assets and transactions in SQLite
type Repository struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewRepository creates a portfolio repository
func NewRepository(db *sql.DB, log zerolog.Logger) *Repository {
	return &Repository{
		db:  db,
		log: log.With().Str("repository", "portfolio").Logger(),
	}
}

// Create inserts a new empty portfolio and returns it
func (r *Repository) Create(req CreatePortfolioRequest) (*Portfolio, error) {
	now := time.Now().UTC()
	p := &Portfolio{
		ID:           uuid.New().String(),
		Name:         req.Name,
		Description:  req.Description,
		Assets:       []Asset{},
		Transactions: []Transaction{},
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	_, err := r.db.Exec(
		`INSERT INTO portfolios (id, name, description, created_at, updated_at) VALUES (?, ?, ?, ?, ?)`,
		p.ID, p.Name, p.Description, p.CreatedAt, p.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create portfolio: %w", err)
	}

	r.log.Info().Str("portfolio_id", p.ID).Str("name", p.Name).Msg("Portfolio created")
	return p, nil
}

// Update renames a portfolio and bumps its updated_at timestamp
func (r *Repository) Update(id string, req CreatePortfolioRequest) (*Portfolio, error) {
	res, err := r.db.Exec(
		`UPDATE portfolios SET name = ?, description = ?, updated_at = ? WHERE id = ?`,
		req.Name, req.Description, time.Now().UTC(), id,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to update portfolio: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("failed to check update result: %w", err)
	}
	if affected == 0 {
		return nil, ErrNotFound
	}
	return r.Get(id)
}

// Delete removes a portfolio; assets and transactions cascade
func (r *Repository) Delete(id string) error {
	res, err := r.db.Exec(`DELETE FROM portfolios WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete portfolio: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check delete result: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	r.log.Info().Str("portfolio_id", id).Msg("Portfolio deleted")
	return nil
}

// Get loads a portfolio with its assets and transactions
func (r *Repository) Get(id string) (*Portfolio, error) {
	p := &Portfolio{Assets: []Asset{}, Transactions: []Transaction{}}

	var description sql.NullString
	err := r.db.QueryRow(
		`SELECT id, name, description, created_at, updated_at FROM portfolios WHERE id = ?`, id,
	).Scan(&p.ID, &p.Name, &description, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load portfolio: %w", err)
	}
	p.Description = description.String

	if p.Assets, err = r.loadAssets(id); err != nil {
		return nil, err
	}
	if p.Transactions, err = r.loadTransactions(id); err != nil {
		return nil, err
	}
	return p, nil
}

// List returns all portfolios with their holdings
func (r *Repository) List() ([]*Portfolio, error) {
	rows, err := r.db.Query(
		`SELECT id, name, description, created_at, updated_at FROM portfolios ORDER BY created_at`,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list portfolios: %w", err)
	}
	defer rows.Close()

	portfolios := []*Portfolio{}
	for rows.Next() {
		p := &Portfolio{Assets: []Asset{}, Transactions: []Transaction{}}
		var description sql.NullString
		if err := rows.Scan(&p.ID, &p.Name, &description, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan portfolio: %w", err)
		}
		p.Description = description.String
		portfolios = append(portfolios, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate portfolios: %w", err)
	}

	for _, p := range portfolios {
		if p.Assets, err = r.loadAssets(p.ID); err != nil {
			return nil, err
		}
		if p.Transactions, err = r.loadTransactions(p.ID); err != nil {
			return nil, err
		}
	}
	return portfolios, nil
}

// AddAsset appends a holding to a portfolio
func (r *Repository) AddAsset(portfolioID string, req AddAssetRequest) (*Portfolio, error) {
	if _, err := r.Get(portfolioID); err != nil {
		return nil, err
	}

	purchaseDate := req.PurchaseDate
	if purchaseDate.IsZero() {
		purchaseDate = time.Now().UTC()
	}

	_, err := r.db.Exec(
		`INSERT INTO assets (id, portfolio_id, symbol, name, quantity, purchase_price, purchase_date, asset_type)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		uuid.New().String(), portfolioID, req.Symbol, req.Name,
		req.Quantity, req.PurchasePrice, purchaseDate, req.AssetType,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to add asset: %w", err)
	}
	if err := r.touch(portfolioID); err != nil {
		return nil, err
	}

	r.log.Info().
		Str("portfolio_id", portfolioID).
		Str("symbol", req.Symbol).
		Float64("quantity", req.Quantity).
		Msg("Asset added")
	return r.Get(portfolioID)
}

// AddTransaction appends a transaction record to a portfolio
func (r *Repository) AddTransaction(portfolioID string, req AddTransactionRequest) (*Portfolio, error) {
	if _, err := r.Get(portfolioID); err != nil {
		return nil, err
	}

	date := req.Date
	if date.IsZero() {
		date = time.Now().UTC()
	}

	_, err := r.db.Exec(
		`INSERT INTO transactions (id, portfolio_id, asset_symbol, transaction_type, quantity, price, date)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		uuid.New().String(), portfolioID, req.AssetSymbol, req.TransactionType,
		req.Quantity, req.Price, date,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to add transaction: %w", err)
	}
	if err := r.touch(portfolioID); err != nil {
		return nil, err
	}
	return r.Get(portfolioID)
}

func (r *Repository) touch(portfolioID string) error {
	_, err := r.db.Exec(`UPDATE portfolios SET updated_at = ? WHERE id = ?`, time.Now().UTC(), portfolioID)
	if err != nil {
		return fmt.Errorf("failed to touch portfolio: %w", err)
	}
	return nil
}

func (r *Repository) loadAssets(portfolioID string) ([]Asset, error) {
	rows, err := r.db.Query(
		`SELECT id, symbol, name, quantity, purchase_price, purchase_date, asset_type
		 FROM assets WHERE portfolio_id = ? ORDER BY purchase_date`, portfolioID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load assets: %w", err)
	}
	defer rows.Close()

	assets := []Asset{}
	for rows.Next() {
		var a Asset
		if err := rows.Scan(&a.ID, &a.Symbol, &a.Name, &a.Quantity, &a.PurchasePrice, &a.PurchaseDate, &a.AssetType); err != nil {
			return nil, fmt.Errorf("failed to scan asset: %w", err)
		}
		assets = append(assets, a)
	}
	return assets, rows.Err()
}

func (r *Repository) loadTransactions(portfolioID string) ([]Transaction, error) {
	rows, err := r.db.Query(
		`SELECT id, asset_symbol, transaction_type, quantity, price, date
		 FROM transactions WHERE portfolio_id = ? ORDER BY date`, portfolioID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load transactions: %w", err)
	}
	defer rows.Close()

	transactions := []Transaction{}
	for rows.Next() {
		var t Transaction
		if err := rows.Scan(&t.ID, &t.AssetSymbol, &t.TransactionType, &t.Quantity, &t.Price, &t.Date); err != nil {
			return nil, fmt.Errorf("failed to scan transaction: %w", err)
		}
		transactions = append(transactions, t)
	}
	return transactions, rows.Err()
}
