package portfolio

import (
	"fmt"
	"strings"
	"time"
)

// Asset types recognized by allocation and rebalancing logic
const (
	AssetTypeStock = "stock"
	AssetTypeBond  = "bond"
	AssetTypeETF   = "etf"
)

// Transaction types
const (
	TransactionBuy  = "buy"
	TransactionSell = "sell"
)

// Portfolio is a named collection of holdings with its transaction history
type Portfolio struct {
	ID           string        `json:"id"`
	Name         string        `json:"name"`
	Description  string        `json:"description,omitempty"`
	Assets       []Asset       `json:"assets"`
	Transactions []Transaction `json:"transactions"`
	CreatedAt    time.Time     `json:"created_at"`
	UpdatedAt    time.Time     `json:"updated_at"`
}

// Asset is a single holding within a portfolio
type Asset struct {
	ID            string    `json:"-"`
	Symbol        string    `json:"symbol"`
	Name          string    `json:"name"`
	Quantity      float64   `json:"quantity"`
	PurchasePrice float64   `json:"purchase_price"`
	PurchaseDate  time.Time `json:"purchase_date"`
	AssetType     string    `json:"asset_type"`
}

// CostValue returns the holding's value at its purchase price
func (a *Asset) CostValue() float64 {
	return a.Quantity * a.PurchasePrice
}

// Transaction records a buy or sell against a portfolio. The transaction log
// is append-only; it does not adjust holdings.
type Transaction struct {
	ID              string    `json:"id"`
	AssetSymbol     string    `json:"asset_symbol"`
	TransactionType string    `json:"transaction_type"`
	Quantity        float64   `json:"quantity"`
	Price           float64   `json:"price"`
	Date            time.Time `json:"date"`
}

// CreatePortfolioRequest is the payload for creating or renaming a portfolio
type CreatePortfolioRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

// Validate checks the create/update payload
func (r *CreatePortfolioRequest) Validate() error {
	if strings.TrimSpace(r.Name) == "" {
		return fmt.Errorf("name is required")
	}
	return nil
}

// AddAssetRequest is the payload for adding a holding
type AddAssetRequest struct {
	Symbol        string    `json:"symbol"`
	Name          string    `json:"name"`
	Quantity      float64   `json:"quantity"`
	PurchasePrice float64   `json:"purchase_price"`
	PurchaseDate  time.Time `json:"purchase_date"`
	AssetType     string    `json:"asset_type"`
}

// Validate checks the add-asset payload
func (r *AddAssetRequest) Validate() error {
	if strings.TrimSpace(r.Symbol) == "" {
		return fmt.Errorf("symbol is required")
	}
	if r.Quantity <= 0 {
		return fmt.Errorf("quantity must be positive")
	}
	if r.PurchasePrice <= 0 {
		return fmt.Errorf("purchase_price must be positive")
	}
	switch r.AssetType {
	case AssetTypeStock, AssetTypeBond, AssetTypeETF:
	default:
		return fmt.Errorf("asset_type must be one of stock, bond, etf")
	}
	return nil
}

// AddTransactionRequest is the payload for recording a transaction
type AddTransactionRequest struct {
	AssetSymbol     string    `json:"asset_symbol"`
	TransactionType string    `json:"transaction_type"`
	Quantity        float64   `json:"quantity"`
	Price           float64   `json:"price"`
	Date            time.Time `json:"date"`
}

// Validate checks the transaction payload
func (r *AddTransactionRequest) Validate() error {
	if strings.TrimSpace(r.AssetSymbol) == "" {
		return fmt.Errorf("asset_symbol is required")
	}
	if r.TransactionType != TransactionBuy && r.TransactionType != TransactionSell {
		return fmt.Errorf("transaction_type must be buy or sell")
	}
	if r.Quantity <= 0 {
		return fmt.Errorf("quantity must be positive")
	}
	if r.Price <= 0 {
		return fmt.Errorf("price must be positive")
	}
	return nil
}

// PricedAsset is an asset annotated with its live price and value
type PricedAsset struct {
	Asset
	CurrentPrice float64 `json:"current_price"`
	TotalValue   float64 `json:"total_value"`
}

// PortfolioSummary is the listing view: the portfolio plus cost-basis totals
type PortfolioSummary struct {
	Portfolio
	TotalValue float64 `json:"total_value"`
	AssetCount int     `json:"asset_count"`
}

// AssetBreakdown describes one holding inside an Analysis, valued live
type AssetBreakdown struct {
	Symbol        string  `json:"symbol"`
	Name          string  `json:"name"`
	Quantity      float64 `json:"quantity"`
	CurrentPrice  float64 `json:"current_price"`
	PurchasePrice float64 `json:"purchase_price"`
	GainLoss      float64 `json:"gain_loss"`
	Value         float64 `json:"value"`
	Allocation    float64 `json:"allocation"`
	AssetType     string  `json:"asset_type"`
	DataSource    string  `json:"data_source"`
}

// Analysis is the live valuation of a portfolio
type Analysis struct {
	TotalValue       float64            `json:"total_value"`
	AssetAllocations map[string]float64 `json:"asset_allocations"`
	NumberOfAssets   int                `json:"number_of_assets"`
	Assets           []AssetBreakdown   `json:"assets"`
	LastUpdated      time.Time          `json:"last_updated"`
}

// RiskMetrics holds beta, Sharpe ratio and annualized volatility for a
// portfolio, measured against the market index.
type RiskMetrics struct {
	Beta        float64 `json:"beta"`
	SharpeRatio float64 `json:"sharpe_ratio"`
	Volatility  float64 `json:"volatility"`
	Error       string  `json:"error,omitempty"`
}

// RebalancingSuggestion tells the user how one asset class deviates from its
// target weight.
type RebalancingSuggestion struct {
	AssetType         string  `json:"asset_type"`
	CurrentPercentage float64 `json:"current_percentage"`
	TargetPercentage  float64 `json:"target_percentage"`
	SuggestedAction   string  `json:"suggested_action"`
	AdjustmentNeeded  float64 `json:"adjustment_needed"`
}

// MetricsAsset is one holding inside the cost-basis Metrics snapshot
type MetricsAsset struct {
	Symbol     string  `json:"symbol"`
	Name       string  `json:"name"`
	Value      float64 `json:"value"`
	Percentage float64 `json:"percentage"`
}

// Metrics is the offline portfolio snapshot computed from purchase prices
// only. No market data is fetched.
type Metrics struct {
	TotalValue      float64            `json:"total_value"`
	AssetAllocation map[string]float64 `json:"asset_allocation"`
	NumberOfAssets  int                `json:"number_of_assets"`
	Assets          []MetricsAsset     `json:"assets"`
	LastUpdated     time.Time          `json:"last_updated"`
}
