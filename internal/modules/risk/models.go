package risk

// VaRResult is the Value-at-Risk of a portfolio at one confidence level.
// Warning is set when the flat fallback estimate was used.
type VaRResult struct {
	VaRAmount       float64 `json:"var_amount"`
	VaRPercentage   float64 `json:"var_percentage"`
	ConfidenceLevel float64 `json:"confidence_level"`
	Warning         string  `json:"warning,omitempty"`
}

// CorrelationResult is the pairwise correlation matrix of the holdings'
// return series. Undefined correlations (zero-variance series) are null.
type CorrelationResult struct {
	CorrelationMatrix map[string]map[string]*float64 `json:"correlation_matrix"`
	Assets            []string                       `json:"assets"`
	Period            string                         `json:"period"`
	Warning           string                         `json:"warning,omitempty"`
}

// FrontierPortfolio is one sampled weight vector with its daily return,
// risk and Sharpe ratio.
type FrontierPortfolio struct {
	Weights map[string]float64 `json:"weights"`
	Return  float64            `json:"return"`
	Risk    float64            `json:"risk"`
	Sharpe  float64            `json:"sharpe"`
}

// FrontierResult is the sampled efficient frontier plus the max-Sharpe
// portfolio.
type FrontierResult struct {
	EfficientFrontier []FrontierPortfolio `json:"efficient_frontier"`
	OptimalPortfolio  *FrontierPortfolio  `json:"optimal_portfolio"`
	Error             string              `json:"error,omitempty"`
}

// StressScenario shocks holdings either uniformly (Impact) or per symbol
// (Shocks). Shocks take precedence when present.
type StressScenario struct {
	Name   string             `json:"name"`
	Impact float64            `json:"impact,omitempty"`
	Shocks map[string]float64 `json:"shocks,omitempty"`
}

// StressOutcome is the portfolio value under one scenario
type StressOutcome struct {
	Scenario         string             `json:"scenario"`
	Impact           float64            `json:"impact,omitempty"`
	Shocks           map[string]float64 `json:"shocks,omitempty"`
	PortfolioValue   float64            `json:"portfolio_value"`
	ChangeAmount     float64            `json:"change_amount"`
	ChangePercentage float64            `json:"change_percentage"`
}

// StressReport is the full stress-test result
type StressReport struct {
	CurrentValue float64         `json:"current_value"`
	Scenarios    []StressOutcome `json:"scenarios"`
}

// DefaultScenarios is the uniform shock set applied when the caller
// supplies none.
func DefaultScenarios() []StressScenario {
	return []StressScenario{
		{Name: "Market Crash", Impact: -0.20},
		{Name: "Recession", Impact: -0.10},
		{Name: "Interest Rate Hike", Impact: -0.05},
		{Name: "Inflation Spike", Impact: -0.15},
	}
}
