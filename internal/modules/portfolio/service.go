package portfolio

import (
	"context"
	"math"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/openfolio/portfolio-analyzer/internal/analytics"
	"github.com/openfolio/portfolio-analyzer/internal/history"
)

// RiskFreeRate is the fixed annual risk-free rate used for Sharpe ratios
const RiskFreeRate = 0.02

const (
	periodDay  = "1d"
	periodYear = "1y"

	// rebalancing fires only past this many percentage points of drift
	rebalanceThreshold = 5.0

	defaultMaxConcurrentFetches = 4
)

// rebalancing targets by asset type, in percent
var rebalanceTargets = []struct {
	assetType string
	target    float64
}{
	{AssetTypeStock, 60.0},
	{AssetTypeBond, 30.0},
	{AssetTypeETF, 10.0},
}

// HistoryProvider supplies historical price series per symbol
type HistoryProvider interface {
	Get(ctx context.Context, symbol, period string) (*history.Series, error)
}

// SectorProvider resolves the sector classification of a symbol. An empty
// string means the sector is unknown.
type SectorProvider interface {
	GetSector(ctx context.Context, symbol string) (string, error)
}

// Service computes valuation and risk metrics for portfolios. Per-asset data
// failures never fail a computation; the asset's purchase price substitutes.
type Service struct {
	histories     HistoryProvider
	sectors       SectorProvider
	marketSymbol  string
	maxConcurrent int
	log           zerolog.Logger
}

// NewService creates a portfolio metrics service. marketSymbol is the index
// used as the beta proxy, typically ^GSPC.
func NewService(histories HistoryProvider, sectors SectorProvider, marketSymbol string, log zerolog.Logger) *Service {
	return &Service{
		histories:     histories,
		sectors:       sectors,
		marketSymbol:  marketSymbol,
		maxConcurrent: defaultMaxConcurrentFetches,
		log:           log.With().Str("component", "portfolio_service").Logger(),
	}
}

// quote is the live price of a symbol, or its fallback
type quote struct {
	price float64
	live  bool
}

// currentPrices resolves the latest close for every distinct symbol in the
// holdings, fanning fetches out through a bounded worker group. Symbols whose
// fetch fails map to a non-live zero quote; callers substitute the purchase
// price.
func (s *Service) currentPrices(ctx context.Context, assets []Asset) map[string]quote {
	symbols := make([]string, 0, len(assets))
	seen := make(map[string]bool, len(assets))
	for _, a := range assets {
		if !seen[a.Symbol] {
			seen[a.Symbol] = true
			symbols = append(symbols, a.Symbol)
		}
	}

	var mu sync.Mutex
	quotes := make(map[string]quote, len(symbols))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.maxConcurrent)
	for _, symbol := range symbols {
		symbol := symbol
		g.Go(func() error {
			series, err := s.histories.Get(gctx, symbol, periodDay)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				s.log.Warn().Err(err).Str("symbol", symbol).Msg("Falling back to purchase price")
				quotes[symbol] = quote{}
				return nil
			}
			if price, ok := series.LastClose(); ok {
				quotes[symbol] = quote{price: price, live: true}
			} else {
				quotes[symbol] = quote{}
			}
			return nil
		})
	}
	_ = g.Wait()
	return quotes
}

// assetValue returns the live value of a holding, or its cost value when
// no live quote exists.
func assetValue(a Asset, q quote) (value float64, live bool) {
	if q.live {
		return a.Quantity * q.price, true
	}
	return a.CostValue(), false
}

// Analyze performs a live valuation of the portfolio with a per-asset
// breakdown including gain/loss and the source of each price.
func (s *Service) Analyze(ctx context.Context, p *Portfolio) *Analysis {
	quotes := s.currentPrices(ctx, p.Assets)

	analysis := &Analysis{
		AssetAllocations: map[string]float64{},
		NumberOfAssets:   len(p.Assets),
		Assets:           make([]AssetBreakdown, 0, len(p.Assets)),
		LastUpdated:      time.Now().UTC(),
	}

	typeValues := map[string]float64{}
	for _, asset := range p.Assets {
		q := quotes[asset.Symbol]
		value, live := assetValue(asset, q)

		currentPrice := asset.PurchasePrice
		source := "fallback"
		if live {
			currentPrice = q.price
			source = "live"
		}

		gainLoss := 0.0
		if asset.PurchasePrice != 0 {
			gainLoss = (currentPrice - asset.PurchasePrice) / asset.PurchasePrice * 100
		}

		analysis.TotalValue += value
		typeValues[asset.AssetType] += value
		analysis.Assets = append(analysis.Assets, AssetBreakdown{
			Symbol:        asset.Symbol,
			Name:          asset.Name,
			Quantity:      asset.Quantity,
			CurrentPrice:  currentPrice,
			PurchasePrice: asset.PurchasePrice,
			GainLoss:      round2(gainLoss),
			Value:         round2(value),
			AssetType:     asset.AssetType,
			DataSource:    source,
		})
	}

	if analysis.TotalValue > 0 {
		for i := range analysis.Assets {
			analysis.Assets[i].Allocation = round2(analysis.Assets[i].Value / analysis.TotalValue * 100)
		}
		for assetType, value := range typeValues {
			analysis.AssetAllocations[assetType] = round2(value / analysis.TotalValue * 100)
		}
	}
	analysis.TotalValue = round2(analysis.TotalValue)
	return analysis
}

// PriceAssets annotates each holding with its live price and value,
// substituting the purchase price where no live price exists.
func (s *Service) PriceAssets(ctx context.Context, assets []Asset) []PricedAsset {
	quotes := s.currentPrices(ctx, assets)

	priced := make([]PricedAsset, 0, len(assets))
	for _, asset := range assets {
		q := quotes[asset.Symbol]
		value, live := assetValue(asset, q)
		price := asset.PurchasePrice
		if live {
			price = q.price
		}
		priced = append(priced, PricedAsset{
			Asset:        asset,
			CurrentPrice: price,
			TotalValue:   round2(value),
		})
	}
	return priced
}

// TotalValue sums quantity times live price over the holdings, substituting
// the purchase price where no live price exists.
func (s *Service) TotalValue(ctx context.Context, p *Portfolio) float64 {
	quotes := s.currentPrices(ctx, p.Assets)
	total := 0.0
	for _, asset := range p.Assets {
		value, _ := assetValue(asset, quotes[asset.Symbol])
		total += value
	}
	return total
}

// AssetAllocation returns the percentage of live portfolio value held in
// each asset type, rounded to two decimals. Empty when the total is zero.
func (s *Service) AssetAllocation(ctx context.Context, p *Portfolio) map[string]float64 {
	quotes := s.currentPrices(ctx, p.Assets)

	total := 0.0
	typeValues := map[string]float64{}
	for _, asset := range p.Assets {
		value, _ := assetValue(asset, quotes[asset.Symbol])
		total += value
		typeValues[asset.AssetType] += value
	}
	if total == 0 {
		return map[string]float64{}
	}

	allocation := make(map[string]float64, len(typeValues))
	for assetType, value := range typeValues {
		allocation[assetType] = round2(value / total * 100)
	}
	return allocation
}

// RiskMetrics computes beta against the market index, the Sharpe ratio at the
// fixed risk-free rate, and annualized volatility, all from value-weighted
// 1-year daily portfolio returns. When no usable series exists the metrics
// are zeroed and the Error field explains why.
func (s *Service) RiskMetrics(ctx context.Context, p *Portfolio) *RiskMetrics {
	portfolioReturns := s.weightedReturns(ctx, p)
	if len(portfolioReturns) == 0 {
		return &RiskMetrics{Error: "no historical data available for any holding"}
	}

	marketReturns := s.marketReturns(ctx)

	beta := 0.0
	if n := min(len(portfolioReturns), len(marketReturns)); n >= 2 {
		pr := portfolioReturns[len(portfolioReturns)-n:]
		mr := marketReturns[len(marketReturns)-n:]
		if marketVariance := analytics.Variance(mr); marketVariance != 0 {
			beta = analytics.Covariance(pr, mr) / marketVariance
		}
	}

	volatility := analytics.AnnualizeVolatility(analytics.StdDev(portfolioReturns))

	dailyRiskFree := RiskFreeRate / analytics.TradingDaysPerYear
	excess := make([]float64, len(portfolioReturns))
	for i, r := range portfolioReturns {
		excess[i] = r - dailyRiskFree
	}
	sharpe := 0.0
	if excessStdDev := analytics.StdDev(excess); excessStdDev != 0 {
		sharpe = analytics.AnnualizeReturn(analytics.Mean(excess)) / analytics.AnnualizeVolatility(excessStdDev)
	}

	return &RiskMetrics{
		Beta:        round2(beta),
		SharpeRatio: round2(sharpe),
		Volatility:  round2(volatility),
	}
}

// SectorDiversification groups live allocation percentage by sector.
// Symbols whose sector cannot be resolved land in the Unknown bucket.
func (s *Service) SectorDiversification(ctx context.Context, p *Portfolio) map[string]float64 {
	quotes := s.currentPrices(ctx, p.Assets)

	total := 0.0
	values := make([]float64, len(p.Assets))
	for i, asset := range p.Assets {
		values[i], _ = assetValue(asset, quotes[asset.Symbol])
		total += values[i]
	}
	if total == 0 {
		return map[string]float64{}
	}

	sectorBySymbol := map[string]string{}
	diversification := map[string]float64{}
	for i, asset := range p.Assets {
		sector, cached := sectorBySymbol[asset.Symbol]
		if !cached {
			resolved, err := s.sectors.GetSector(ctx, asset.Symbol)
			if err != nil || resolved == "" {
				resolved = "Unknown"
			}
			sector = resolved
			sectorBySymbol[asset.Symbol] = sector
		}
		diversification[sector] += values[i] / total * 100
	}
	for sector, pct := range diversification {
		diversification[sector] = round2(pct)
	}
	return diversification
}

// RebalancingSuggestions compares the live allocation against the fixed
// 60/30/10 stock/bond/etf targets and suggests adjustments for asset types
// that drifted more than the threshold.
func (s *Service) RebalancingSuggestions(ctx context.Context, p *Portfolio) []RebalancingSuggestion {
	current := s.AssetAllocation(ctx, p)

	suggestions := []RebalancingSuggestion{}
	for _, t := range rebalanceTargets {
		difference := t.target - current[t.assetType]
		if math.Abs(difference) <= rebalanceThreshold {
			continue
		}
		action := TransactionSell
		if difference > 0 {
			action = TransactionBuy
		}
		suggestions = append(suggestions, RebalancingSuggestion{
			AssetType:         t.assetType,
			CurrentPercentage: round2(current[t.assetType]),
			TargetPercentage:  t.target,
			SuggestedAction:   action,
			AdjustmentNeeded:  round2(math.Abs(difference)),
		})
	}
	return suggestions
}

// Metrics is the offline valuation snapshot computed from purchase prices
// only. No market data is fetched.
func (s *Service) Metrics(p *Portfolio) *Metrics {
	metrics := &Metrics{
		AssetAllocation: map[string]float64{},
		NumberOfAssets:  len(p.Assets),
		Assets:          make([]MetricsAsset, 0, len(p.Assets)),
		LastUpdated:     time.Now().UTC(),
	}

	total := 0.0
	for _, asset := range p.Assets {
		total += asset.CostValue()
	}

	typeValues := map[string]float64{}
	for _, asset := range p.Assets {
		value := asset.CostValue()
		typeValues[asset.AssetType] += value

		percentage := 0.0
		if total > 0 {
			percentage = value / total * 100
		}
		metrics.Assets = append(metrics.Assets, MetricsAsset{
			Symbol:     asset.Symbol,
			Name:       asset.Name,
			Value:      round2(value),
			Percentage: round2(percentage),
		})
	}
	if total > 0 {
		for assetType, value := range typeValues {
			metrics.AssetAllocation[assetType] = round2(value / total * 100)
		}
	}
	metrics.TotalValue = round2(total)
	return metrics
}

// Summary aggregates all portfolios into one cost-basis snapshot with live
// risk metrics over the merged holdings.
func (s *Service) Summary(ctx context.Context, portfolios []*Portfolio) map[string]interface{} {
	merged := &Portfolio{}
	for _, p := range portfolios {
		merged.Assets = append(merged.Assets, p.Assets...)
	}

	if len(merged.Assets) == 0 {
		return map[string]interface{}{
			"total_value":      0.0,
			"asset_allocation": map[string]float64{},
			"risk_metrics":     &RiskMetrics{},
		}
	}

	metrics := s.Metrics(merged)
	return map[string]interface{}{
		"total_value":      metrics.TotalValue,
		"asset_allocation": metrics.AssetAllocation,
		"risk_metrics":     s.RiskMetrics(ctx, merged),
	}
}

// weightedReturns builds the 1-year value-weighted daily return series of the
// portfolio. Assets with no usable history are excluded and the remaining
// weights renormalized. Series are aligned by position from the most recent
// bar backwards.
func (s *Service) weightedReturns(ctx context.Context, p *Portfolio) []float64 {
	type assetSeries struct {
		returns []float64
		value   float64
	}

	var mu sync.Mutex
	collected := make([]assetSeries, 0, len(p.Assets))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.maxConcurrent)
	for _, asset := range p.Assets {
		asset := asset
		g.Go(func() error {
			series, err := s.histories.Get(gctx, asset.Symbol, periodYear)
			if err != nil || series.Empty() {
				s.log.Warn().Str("symbol", asset.Symbol).Msg("Excluding holding from return series")
				return nil
			}
			returns := analytics.Returns(series.Closes())
			if len(returns) == 0 {
				return nil
			}
			price, _ := series.LastClose()
			mu.Lock()
			collected = append(collected, assetSeries{returns: returns, value: asset.Quantity * price})
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	if len(collected) == 0 {
		return nil
	}

	totalValue := 0.0
	minLen := len(collected[0].returns)
	for _, as := range collected {
		totalValue += as.value
		if len(as.returns) < minLen {
			minLen = len(as.returns)
		}
	}
	if totalValue == 0 || minLen == 0 {
		return nil
	}

	weighted := make([]float64, minLen)
	for _, as := range collected {
		weight := as.value / totalValue
		tail := as.returns[len(as.returns)-minLen:]
		for i, r := range tail {
			weighted[i] += r * weight
		}
	}
	return weighted
}

// marketReturns fetches the 1-year daily return series of the market index
func (s *Service) marketReturns(ctx context.Context) []float64 {
	series, err := s.histories.Get(ctx, s.marketSymbol, periodYear)
	if err != nil || series.Empty() {
		s.log.Warn().Str("symbol", s.marketSymbol).Msg("Market index history unavailable")
		return nil
	}
	return analytics.Returns(series.Closes())
}

func round2(x float64) float64 {
	return math.Round(x*100) / 100
}
