package risk

import (
	"context"
	"math"
	"math/rand"
	"sort"
	"sync"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/openfolio/portfolio-analyzer/internal/analytics"
	"github.com/openfolio/portfolio-analyzer/internal/history"
	"github.com/openfolio/portfolio-analyzer/internal/modules/portfolio"
)

const (
	periodDay  = "1d"
	periodYear = "1y"

	// flat daily VaR assumed when no return series can be built
	fallbackVaRFraction = 0.02

	defaultMaxConcurrentFetches = 4
)

// HistoryProvider supplies historical price series per symbol
type HistoryProvider interface {
	Get(ctx context.Context, symbol, period string) (*history.Series, error)
}

// Service computes risk analytics over a portfolio's holdings. Like the
// metrics engine, per-asset data failures degrade the result instead of
// failing it.
type Service struct {
	histories     HistoryProvider
	maxConcurrent int
	log           zerolog.Logger
}

// NewService creates a risk analytics service
func NewService(histories HistoryProvider, log zerolog.Logger) *Service {
	return &Service{
		histories:     histories,
		maxConcurrent: defaultMaxConcurrentFetches,
		log:           log.With().Str("component", "risk_service").Logger(),
	}
}

// assetSeries pairs a holding's live value with its daily return series
type assetSeries struct {
	symbol  string
	value   float64
	returns []float64
}

// collectReturns fetches the 1-year return series for every holding through
// a bounded worker group. Holdings with no usable history are skipped.
// Results come back in holding order.
func (s *Service) collectReturns(ctx context.Context, assets []portfolio.Asset) []assetSeries {
	results := make([]*assetSeries, len(assets))
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.maxConcurrent)
	for i, asset := range assets {
		i, asset := i, asset
		g.Go(func() error {
			series, err := s.histories.Get(gctx, asset.Symbol, periodYear)
			if err != nil || series.Empty() {
				s.log.Warn().Str("symbol", asset.Symbol).Msg("No historical data for holding")
				return nil
			}
			returns := analytics.Returns(series.Closes())
			if len(returns) == 0 {
				return nil
			}
			price, _ := series.LastClose()
			mu.Lock()
			results[i] = &assetSeries{
				symbol:  asset.Symbol,
				value:   asset.Quantity * price,
				returns: returns,
			}
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	collected := make([]assetSeries, 0, len(assets))
	for _, r := range results {
		if r != nil {
			collected = append(collected, *r)
		}
	}
	return collected
}

// ValueAtRisk computes the historical-simulation VaR of the portfolio from
// value-weighted 1-year daily returns. With no usable series it falls back
// to a conservative flat estimate of the portfolio value, flagged by the
// Warning field.
func (s *Service) ValueAtRisk(ctx context.Context, p *portfolio.Portfolio, confidenceLevel float64) *VaRResult {
	collected := s.collectReturns(ctx, p.Assets)
	if len(collected) == 0 {
		value := s.portfolioValue(ctx, p)
		return &VaRResult{
			VaRAmount:       round2(value * fallbackVaRFraction),
			VaRPercentage:   fallbackVaRFraction * 100,
			ConfidenceLevel: confidenceLevel,
			Warning:         "using simplified VaR estimate due to data limitations",
		}
	}

	totalValue := 0.0
	for _, as := range collected {
		totalValue += as.value
	}
	if totalValue == 0 {
		return &VaRResult{ConfidenceLevel: confidenceLevel, Warning: "portfolio has no value"}
	}

	portfolioReturns := weightedSum(collected, totalValue)
	varReturn := analytics.Percentile(portfolioReturns, (1-confidenceLevel)*100)

	return &VaRResult{
		VaRAmount:       round2(math.Abs(varReturn * totalValue)),
		VaRPercentage:   round2(math.Abs(varReturn * 100)),
		ConfidenceLevel: confidenceLevel,
	}
}

// CorrelationMatrix computes the pairwise correlation of the holdings'
// 1-year daily return series. Matrix entries that are undefined (a series
// with zero variance) are null.
func (s *Service) CorrelationMatrix(ctx context.Context, p *portfolio.Portfolio) *CorrelationResult {
	collected := s.collectReturns(ctx, p.Assets)
	if len(collected) == 0 {
		return &CorrelationResult{
			CorrelationMatrix: map[string]map[string]*float64{},
			Assets:            []string{},
			Period:            periodYear,
			Warning:           "no historical price data available",
		}
	}

	// dedupe while keeping one series per symbol
	bySymbol := map[string][]float64{}
	symbols := []string{}
	for _, as := range collected {
		if _, ok := bySymbol[as.symbol]; !ok {
			bySymbol[as.symbol] = as.returns
			symbols = append(symbols, as.symbol)
		}
	}
	sort.Strings(symbols)

	series := make([][]float64, len(symbols))
	for i, symbol := range symbols {
		series[i] = bySymbol[symbol]
	}
	analytics.TruncateToCommonLength(series)

	matrix := make(map[string]map[string]*float64, len(symbols))
	for i, a := range symbols {
		row := make(map[string]*float64, len(symbols))
		for j, b := range symbols {
			corr := analytics.Correlation(series[i], series[j])
			if math.IsNaN(corr) {
				row[b] = nil
			} else {
				rounded := round3(corr)
				row[b] = &rounded
			}
		}
		matrix[a] = row
	}

	return &CorrelationResult{
		CorrelationMatrix: matrix,
		Assets:            symbols,
		Period:            periodYear,
	}
}

// EfficientFrontier samples numPortfolios random weight vectors over the
// holdings and reports each sample's daily return, risk and Sharpe ratio,
// plus the max-Sharpe sample as the optimal portfolio.
func (s *Service) EfficientFrontier(ctx context.Context, p *portfolio.Portfolio, numPortfolios int) *FrontierResult {
	collected := s.collectReturns(ctx, p.Assets)
	if len(collected) == 0 {
		return &FrontierResult{
			EfficientFrontier: []FrontierPortfolio{},
			Error:             "no historical data available",
		}
	}

	// one series per symbol
	bySymbol := map[string][]float64{}
	symbols := []string{}
	for _, as := range collected {
		if _, ok := bySymbol[as.symbol]; !ok {
			bySymbol[as.symbol] = as.returns
			symbols = append(symbols, as.symbol)
		}
	}

	series := make([][]float64, len(symbols))
	for i, symbol := range symbols {
		series[i] = bySymbol[symbol]
	}
	analytics.TruncateToCommonLength(series)

	meanReturns := make([]float64, len(symbols))
	for i := range series {
		meanReturns[i] = analytics.Mean(series[i])
	}
	cov := analytics.CovarianceMatrix(series)

	frontier := make([]FrontierPortfolio, 0, numPortfolios)
	var optimal *FrontierPortfolio
	for n := 0; n < numPortfolios; n++ {
		weights := randomWeights(len(symbols))

		expectedReturn := 0.0
		for i, w := range weights {
			expectedReturn += meanReturns[i] * w
		}
		riskLevel := analytics.PortfolioRisk(weights, cov)

		sharpe := 0.0
		if riskLevel != 0 {
			sharpe = (expectedReturn - portfolio.RiskFreeRate) / riskLevel
		}

		weightMap := make(map[string]float64, len(symbols))
		for i, symbol := range symbols {
			weightMap[symbol] = round4(weights[i])
		}
		sample := FrontierPortfolio{
			Weights: weightMap,
			Return:  round4(expectedReturn),
			Risk:    round4(riskLevel),
			Sharpe:  round4(sharpe),
		}
		frontier = append(frontier, sample)

		if optimal == nil || sample.Sharpe > optimal.Sharpe {
			last := sample
			optimal = &last
		}
	}

	return &FrontierResult{
		EfficientFrontier: frontier,
		OptimalPortfolio:  optimal,
	}
}

// StressTest revalues the portfolio under each scenario's price shock and
// reports the change versus the current live value. With no scenarios the
// default uniform shock set applies.
func (s *Service) StressTest(ctx context.Context, p *portfolio.Portfolio, scenarios []StressScenario) *StressReport {
	if len(scenarios) == 0 {
		scenarios = DefaultScenarios()
	}

	prices := s.currentPrices(ctx, p.Assets)
	currentValue := 0.0
	for _, asset := range p.Assets {
		currentValue += asset.Quantity * prices[asset.Symbol]
	}

	outcomes := make([]StressOutcome, 0, len(scenarios))
	for _, scenario := range scenarios {
		scenarioValue := 0.0
		for _, asset := range p.Assets {
			shock := scenario.Impact
			if scenario.Shocks != nil {
				shock = scenario.Shocks[asset.Symbol]
			}
			scenarioValue += asset.Quantity * prices[asset.Symbol] * (1 + shock)
		}

		changePct := 0.0
		if currentValue != 0 {
			changePct = (scenarioValue - currentValue) / currentValue * 100
		}
		outcomes = append(outcomes, StressOutcome{
			Scenario:         scenario.Name,
			Impact:           scenario.Impact,
			Shocks:           scenario.Shocks,
			PortfolioValue:   round2(scenarioValue),
			ChangeAmount:     round2(scenarioValue - currentValue),
			ChangePercentage: round2(changePct),
		})
	}

	return &StressReport{
		CurrentValue: round2(currentValue),
		Scenarios:    outcomes,
	}
}

// currentPrices resolves the live price per symbol, falling back to the
// purchase price.
func (s *Service) currentPrices(ctx context.Context, assets []portfolio.Asset) map[string]float64 {
	prices := make(map[string]float64, len(assets))
	var mu sync.Mutex

	// seed fallbacks first so every symbol has a price
	for _, asset := range assets {
		prices[asset.Symbol] = asset.PurchasePrice
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.maxConcurrent)
	seen := map[string]bool{}
	for _, asset := range assets {
		if seen[asset.Symbol] {
			continue
		}
		seen[asset.Symbol] = true
		symbol := asset.Symbol
		g.Go(func() error {
			series, err := s.histories.Get(gctx, symbol, periodDay)
			if err != nil {
				return nil
			}
			if price, ok := series.LastClose(); ok {
				mu.Lock()
				prices[symbol] = price
				mu.Unlock()
			}
			return nil
		})
	}
	_ = g.Wait()
	return prices
}

// portfolioValue is the live value with purchase-price fallback
func (s *Service) portfolioValue(ctx context.Context, p *portfolio.Portfolio) float64 {
	prices := s.currentPrices(ctx, p.Assets)
	total := 0.0
	for _, asset := range p.Assets {
		total += asset.Quantity * prices[asset.Symbol]
	}
	return total
}

// weightedSum builds the value-weighted portfolio return series, aligning
// the per-asset series by position from the most recent bar backwards.
func weightedSum(collected []assetSeries, totalValue float64) []float64 {
	minLen := len(collected[0].returns)
	for _, as := range collected[1:] {
		if len(as.returns) < minLen {
			minLen = len(as.returns)
		}
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

func randomWeights(n int) []float64 {
	weights := make([]float64, n)
	sum := 0.0
	for i := range weights {
		weights[i] = rand.Float64()
		sum += weights[i]
	}
	if sum == 0 {
		weights[0] = 1
		return weights
	}
	for i := range weights {
		weights[i] /= sum
	}
	return weights
}

func round2(x float64) float64 { return math.Round(x*100) / 100 }

func round3(x float64) float64 { return math.Round(x*1000) / 1000 }

func round4(x float64) float64 { return math.Round(x*10000) / 10000 }
