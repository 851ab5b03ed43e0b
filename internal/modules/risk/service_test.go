package risk

import (
	"context"
	"fmt"
	"math"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openfolio/portfolio-analyzer/internal/clients/yahoo"
	"github.com/openfolio/portfolio-analyzer/internal/history"
	"github.com/openfolio/portfolio-analyzer/internal/modules/portfolio"
)

type fakeHistory struct {
	series map[string]*history.Series
}

func (f *fakeHistory) Get(ctx context.Context, symbol, period string) (*history.Series, error) {
	if s, ok := f.series[symbol+"_"+period]; ok {
		return s, nil
	}
	return nil, fmt.Errorf("no data for %s: %w", symbol, history.ErrDataUnavailable)
}

func (f *fakeHistory) add(symbol, period string, closes ...float64) {
	bars := make([]yahoo.HistoricalPrice, len(closes))
	for i, c := range closes {
		bars[i] = yahoo.HistoricalPrice{Close: c}
	}
	f.series[symbol+"_"+period] = &history.Series{Symbol: symbol, Period: period, Bars: bars}
}

func newFakeHistory() *fakeHistory {
	return &fakeHistory{series: map[string]*history.Series{}}
}

func newTestService(histories HistoryProvider) *Service {
	return NewService(histories, zerolog.Nop())
}

func stockAsset(symbol string, quantity, purchasePrice float64) portfolio.Asset {
	return portfolio.Asset{Symbol: symbol, Name: symbol, Quantity: quantity, PurchasePrice: purchasePrice, AssetType: portfolio.AssetTypeStock}
}

func TestValueAtRisk(t *testing.T) {
	histories := newFakeHistory()
	// daily moves both up and down so the lower tail is negative
	histories.add("AAPL", "1y", 100, 98, 101, 97, 103, 99, 104, 100, 106, 102)
	svc := newTestService(histories)

	p := &portfolio.Portfolio{Assets: []portfolio.Asset{stockAsset("AAPL", 10, 100)}}
	result := svc.ValueAtRisk(context.Background(), p, 0.95)

	assert.Empty(t, result.Warning)
	assert.Equal(t, 0.95, result.ConfidenceLevel)
	assert.Greater(t, result.VaRAmount, 0.0)
	assert.Greater(t, result.VaRPercentage, 0.0)
}

func TestValueAtRisk_HigherConfidenceIsAtLeastAsLarge(t *testing.T) {
	histories := newFakeHistory()
	histories.add("AAPL", "1y", 100, 95, 102, 91, 105, 98, 107, 96, 110, 101)
	svc := newTestService(histories)

	p := &portfolio.Portfolio{Assets: []portfolio.Asset{stockAsset("AAPL", 10, 100)}}

	low := svc.ValueAtRisk(context.Background(), p, 0.90)
	high := svc.ValueAtRisk(context.Background(), p, 0.99)

	assert.GreaterOrEqual(t, high.VaRAmount, low.VaRAmount)
}

func TestValueAtRisk_FallbackEstimate(t *testing.T) {
	svc := newTestService(newFakeHistory())

	p := &portfolio.Portfolio{Assets: []portfolio.Asset{stockAsset("GONE", 10, 100)}}
	result := svc.ValueAtRisk(context.Background(), p, 0.95)

	assert.NotEmpty(t, result.Warning)
	// flat 2% of the purchase-price valuation
	assert.InDelta(t, 20.0, result.VaRAmount, 1e-9)
	assert.InDelta(t, 2.0, result.VaRPercentage, 1e-9)
}

func TestCorrelationMatrix(t *testing.T) {
	histories := newFakeHistory()
	histories.add("A", "1y", 100, 110, 99, 108, 102)
	// B moves exactly opposite to A in return space
	histories.add("B", "1y", 100, 90, 101, 92, 98)
	svc := newTestService(histories)

	p := &portfolio.Portfolio{Assets: []portfolio.Asset{
		stockAsset("A", 1, 100),
		stockAsset("B", 1, 100),
	}}
	result := svc.CorrelationMatrix(context.Background(), p)

	assert.Empty(t, result.Warning)
	assert.Equal(t, []string{"A", "B"}, result.Assets)
	assert.Equal(t, "1y", result.Period)

	require.NotNil(t, result.CorrelationMatrix["A"]["A"])
	assert.InDelta(t, 1.0, *result.CorrelationMatrix["A"]["A"], 1e-9)

	ab := result.CorrelationMatrix["A"]["B"]
	ba := result.CorrelationMatrix["B"]["A"]
	require.NotNil(t, ab)
	require.NotNil(t, ba)
	assert.InDelta(t, *ab, *ba, 1e-9) // symmetric
	assert.Less(t, *ab, 0.0)
}

func TestCorrelationMatrix_FlatSeriesIsNull(t *testing.T) {
	histories := newFakeHistory()
	histories.add("A", "1y", 100, 101, 99, 102, 100)
	histories.add("FLAT", "1y", 50, 50, 50, 50, 50) // zero-variance returns
	svc := newTestService(histories)

	p := &portfolio.Portfolio{Assets: []portfolio.Asset{
		stockAsset("A", 1, 100),
		stockAsset("FLAT", 1, 50),
	}}
	result := svc.CorrelationMatrix(context.Background(), p)

	assert.Nil(t, result.CorrelationMatrix["A"]["FLAT"])
	assert.Nil(t, result.CorrelationMatrix["FLAT"]["FLAT"])
}

func TestCorrelationMatrix_NoData(t *testing.T) {
	svc := newTestService(newFakeHistory())

	p := &portfolio.Portfolio{Assets: []portfolio.Asset{stockAsset("GONE", 1, 10)}}
	result := svc.CorrelationMatrix(context.Background(), p)

	assert.NotEmpty(t, result.Warning)
	assert.Empty(t, result.Assets)
}

func TestEfficientFrontier(t *testing.T) {
	histories := newFakeHistory()
	histories.add("A", "1y", 100, 102, 101, 104, 103, 106, 105, 108)
	histories.add("B", "1y", 50, 49, 51, 50, 52, 51, 53, 52)
	svc := newTestService(histories)

	p := &portfolio.Portfolio{Assets: []portfolio.Asset{
		stockAsset("A", 10, 100),
		stockAsset("B", 20, 50),
	}}
	result := svc.EfficientFrontier(context.Background(), p, 200)

	assert.Empty(t, result.Error)
	require.Len(t, result.EfficientFrontier, 200)
	require.NotNil(t, result.OptimalPortfolio)

	maxSharpe := math.Inf(-1)
	for _, sample := range result.EfficientFrontier {
		sum := 0.0
		for _, w := range sample.Weights {
			assert.GreaterOrEqual(t, w, 0.0)
			sum += w
		}
		assert.InDelta(t, 1.0, sum, 1e-3)
		if sample.Sharpe > maxSharpe {
			maxSharpe = sample.Sharpe
		}
	}
	assert.Equal(t, maxSharpe, result.OptimalPortfolio.Sharpe)
}

func TestEfficientFrontier_SingleReturnObservation(t *testing.T) {
	// two bars per symbol leave one return each, so the sample covariance
	// is undefined; risk and sharpe must degrade to zero, never NaN
	histories := newFakeHistory()
	histories.add("A", "1y", 100, 110)
	histories.add("B", "1y", 50, 51)
	svc := newTestService(histories)

	p := &portfolio.Portfolio{Assets: []portfolio.Asset{
		stockAsset("A", 10, 100),
		stockAsset("B", 20, 50),
	}}
	result := svc.EfficientFrontier(context.Background(), p, 50)

	assert.Empty(t, result.Error)
	require.Len(t, result.EfficientFrontier, 50)
	require.NotNil(t, result.OptimalPortfolio)

	for _, sample := range result.EfficientFrontier {
		assert.Equal(t, 0.0, sample.Risk)
		assert.Equal(t, 0.0, sample.Sharpe)
		assert.False(t, math.IsNaN(sample.Return))
	}
}

func TestEfficientFrontier_NoData(t *testing.T) {
	svc := newTestService(newFakeHistory())

	p := &portfolio.Portfolio{Assets: []portfolio.Asset{stockAsset("GONE", 1, 10)}}
	result := svc.EfficientFrontier(context.Background(), p, 10)

	assert.NotEmpty(t, result.Error)
	assert.Empty(t, result.EfficientFrontier)
	assert.Nil(t, result.OptimalPortfolio)
}

func TestStressTest_DefaultScenarios(t *testing.T) {
	histories := newFakeHistory()
	histories.add("AAPL", "1d", 200)
	svc := newTestService(histories)

	p := &portfolio.Portfolio{Assets: []portfolio.Asset{stockAsset("AAPL", 10, 150)}}
	report := svc.StressTest(context.Background(), p, nil)

	assert.InDelta(t, 2000.0, report.CurrentValue, 1e-9)
	require.Len(t, report.Scenarios, 4)

	crash := report.Scenarios[0]
	assert.Equal(t, "Market Crash", crash.Scenario)
	assert.InDelta(t, 1600.0, crash.PortfolioValue, 1e-9)
	assert.InDelta(t, -400.0, crash.ChangeAmount, 1e-9)
	assert.InDelta(t, -20.0, crash.ChangePercentage, 1e-9)
}

func TestStressTest_ZeroShockIsNeutral(t *testing.T) {
	histories := newFakeHistory()
	histories.add("AAPL", "1d", 100)
	svc := newTestService(histories)

	p := &portfolio.Portfolio{Assets: []portfolio.Asset{stockAsset("AAPL", 5, 80)}}
	report := svc.StressTest(context.Background(), p, []StressScenario{{Name: "Calm", Impact: 0}})

	require.Len(t, report.Scenarios, 1)
	assert.InDelta(t, report.CurrentValue, report.Scenarios[0].PortfolioValue, 1e-9)
	assert.InDelta(t, 0.0, report.Scenarios[0].ChangePercentage, 1e-9)
}

func TestStressTest_PerSymbolShocks(t *testing.T) {
	histories := newFakeHistory()
	histories.add("AAPL", "1d", 100)
	histories.add("MSFT", "1d", 200)
	svc := newTestService(histories)

	p := &portfolio.Portfolio{Assets: []portfolio.Asset{
		stockAsset("AAPL", 10, 100), // 1000
		stockAsset("MSFT", 5, 200),  // 1000
	}}
	report := svc.StressTest(context.Background(), p, []StressScenario{
		{Name: "Tech Selloff", Shocks: map[string]float64{"AAPL": -0.5}},
	})

	require.Len(t, report.Scenarios, 1)
	// only AAPL halves; MSFT untouched
	assert.InDelta(t, 1500.0, report.Scenarios[0].PortfolioValue, 1e-9)
	assert.InDelta(t, -25.0, report.Scenarios[0].ChangePercentage, 1e-9)
}

func TestStressTest_FallbackPrices(t *testing.T) {
	svc := newTestService(newFakeHistory())

	p := &portfolio.Portfolio{Assets: []portfolio.Asset{stockAsset("GONE", 10, 100)}}
	report := svc.StressTest(context.Background(), p, nil)

	assert.InDelta(t, 1000.0, report.CurrentValue, 1e-9)
}
