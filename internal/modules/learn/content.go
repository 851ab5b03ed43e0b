// Package learn serves static educational content about the metrics the
// analyzer computes and the asset classes it tracks.
package learn

// metricGuides keys are lowercase metric names as used in the URL
var metricGuides = map[string]map[string]interface{}{
	"beta": {
		"name":        "Beta",
		"description": "A measure of a stock's volatility compared to the overall market.",
		"interpretation": map[string]string{
			"beta > 1": "Stock is more volatile than the market",
			"beta = 1": "Stock moves in line with the market",
			"beta < 1": "Stock is less volatile than the market",
		},
		"example": "A stock with beta 1.5 means it's 50% more volatile than the market",
		"formula": "Beta = Covariance(Stock Returns, Market Returns) / Variance(Market Returns)",
	},
	"sharpe_ratio": {
		"name":        "Sharpe Ratio",
		"description": "A measure of risk-adjusted returns, indicating how much excess return you get for the extra volatility.",
		"interpretation": map[string]string{
			"ratio > 1": "Good risk-adjusted returns",
			"ratio > 2": "Very good risk-adjusted returns",
			"ratio > 3": "Excellent risk-adjusted returns",
		},
		"example": "A Sharpe ratio of 1.5 means the investment returns 1.5 units of return per unit of risk",
		"formula": "Sharpe Ratio = (Portfolio Return - Risk-Free Rate) / Portfolio Standard Deviation",
	},
	"var": {
		"name":        "Value at Risk (VaR)",
		"description": "A measure of the potential loss in value of a portfolio over a defined period for a given confidence interval.",
		"interpretation": map[string]string{
			"high_var": "Higher potential losses",
			"low_var":  "Lower potential losses",
		},
		"example": "A 95% VaR of $10,000 means there's a 5% chance of losing more than $10,000",
		"formula": "VaR = Portfolio Value x Z-Score x Portfolio Standard Deviation",
	},
	"correlation": {
		"name":        "Correlation",
		"description": "A measure of how two assets move in relation to each other.",
		"interpretation": map[string]string{
			"correlation = 1":  "Perfect positive correlation",
			"correlation = 0":  "No correlation",
			"correlation = -1": "Perfect negative correlation",
		},
		"example": "A correlation of 0.7 between stocks A and B means they tend to move in the same direction",
		"formula": "Correlation = Covariance(A,B) / (Standard Deviation(A) x Standard Deviation(B))",
	},
	"diversification": {
		"name":        "Diversification",
		"description": "A risk management strategy that mixes a wide variety of investments within a portfolio.",
		"benefits": []string{
			"Reduces portfolio volatility",
			"Minimizes the impact of any single investment",
			"Improves risk-adjusted returns",
		},
		"example": "A diversified portfolio might include stocks, bonds, real estate, and commodities",
		"tips": []string{
			"Spread investments across different asset classes",
			"Consider geographic diversification",
			"Include both growth and value investments",
		},
	},
}

type assetCategory struct {
	Name              string   `json:"name"`
	Examples          []string `json:"examples"`
	Benefits          []string `json:"benefits"`
	TypicalAllocation string   `json:"typical_allocation"`
}

type investmentMethod struct {
	Method      string   `json:"method"`
	Description string   `json:"description"`
	Advantages  []string `json:"advantages"`
}

type assetClassGuide struct {
	Description          string             `json:"description"`
	Categories           []assetCategory    `json:"categories"`
	InvestmentMethods    []investmentMethod `json:"investment_methods"`
	Risks                []string           `json:"risks"`
	PortfolioIntegration []string           `json:"portfolio_integration"`
}

var etfGuide = assetClassGuide{
	Description: "Exchange-Traded Funds (ETFs) are investment funds traded on stock exchanges, offering diversified exposure to various assets.",
	Categories: []assetCategory{
		{
			Name:              "Index ETFs",
			Examples:          []string{"SPY", "VTI", "QQQ"},
			Benefits:          []string{"Broad market exposure", "Low cost", "High liquidity"},
			TypicalAllocation: "40-60% of portfolio",
		},
		{
			Name:              "Sector ETFs",
			Examples:          []string{"XLF", "XLK", "XLE"},
			Benefits:          []string{"Industry-specific exposure", "Tactical allocation", "Thematic investing"},
			TypicalAllocation: "10-30% of portfolio",
		},
		{
			Name:              "Smart Beta ETFs",
			Examples:          []string{"USMV", "QUAL", "MTUM"},
			Benefits:          []string{"Factor-based investing", "Enhanced diversification", "Potential outperformance"},
			TypicalAllocation: "10-20% of portfolio",
		},
	},
	InvestmentMethods: []investmentMethod{
		{
			Method:      "Core-Satellite",
			Description: "Using broad market ETFs as core holdings with specialized ETFs as satellite positions",
			Advantages:  []string{"Balanced approach", "Cost-effective", "Easy to rebalance"},
		},
		{
			Method:      "Asset Allocation",
			Description: "Using ETFs to build a diversified portfolio across asset classes",
			Advantages:  []string{"Complete diversification", "Low maintenance", "Easy to adjust"},
		},
		{
			Method:      "Tactical Trading",
			Description: "Using ETFs for short-term market opportunities",
			Advantages:  []string{"High liquidity", "Lower risk than individual stocks", "Sector rotation strategies"},
		},
	},
	Risks: []string{
		"Market risk",
		"Tracking error",
		"Trading volume/liquidity risk",
		"Management fee impact",
		"Complex ETF structures (leveraged/inverse)",
	},
	PortfolioIntegration: []string{
		"Use broad market ETFs as portfolio foundation",
		"Add sector ETFs for tactical positions",
		"Consider factor ETFs for enhanced returns",
		"Monitor total expense ratios",
		"Regular rebalancing to maintain allocations",
	},
}

var stockGuide = assetClassGuide{
	Description: "Stocks represent ownership in a company and are one of the most common investment vehicles.",
	Categories: []assetCategory{
		{
			Name:              "Growth Stocks",
			Examples:          []string{"AAPL", "MSFT", "AMZN"},
			Benefits:          []string{"High potential returns", "Capital appreciation", "Market leadership potential"},
			TypicalAllocation: "20-40% of portfolio",
		},
		{
			Name:              "Value Stocks",
			Examples:          []string{"BRK.B", "JNJ", "PG"},
			Benefits:          []string{"Lower valuations", "Dividend income", "Defensive characteristics"},
			TypicalAllocation: "20-40% of portfolio",
		},
		{
			Name:              "Dividend Stocks",
			Examples:          []string{"KO", "PEP", "VZ"},
			Benefits:          []string{"Regular income", "Lower volatility", "Inflation protection"},
			TypicalAllocation: "10-30% of portfolio",
		},
	},
	InvestmentMethods: []investmentMethod{
		{
			Method:      "Individual Stocks",
			Description: "Direct ownership of company shares",
			Advantages:  []string{"Full control over portfolio", "No management fees", "Tax efficiency"},
		},
		{
			Method:      "ETFs",
			Description: "Exchange-traded funds that track stock indices or sectors",
			Advantages:  []string{"Diversification", "Lower costs", "Easy to trade"},
		},
		{
			Method:      "Mutual Funds",
			Description: "Professionally managed investment vehicles",
			Advantages:  []string{"Professional management", "Broad diversification", "Regular investment options"},
		},
	},
	Risks: []string{
		"Market volatility",
		"Company-specific risks",
		"Economic cycle sensitivity",
		"Interest rate sensitivity",
		"Political and regulatory risks",
	},
	PortfolioIntegration: []string{
		"Start with a core position in broad market ETFs",
		"Add individual stocks for specific themes or opportunities",
		"Maintain sector diversification",
		"Consider both growth and value styles",
		"Regular rebalancing to maintain target allocation",
	},
}

var bondGuide = assetClassGuide{
	Description: "Bonds are debt securities that provide regular interest payments and return of principal at maturity.",
	Categories: []assetCategory{
		{
			Name:              "Government Bonds",
			Examples:          []string{"U.S. Treasury Bonds", "T-Bills", "TIPS"},
			Benefits:          []string{"Highest credit quality", "Tax advantages", "Liquidity"},
			TypicalAllocation: "20-40% of portfolio",
		},
		{
			Name:              "Corporate Bonds",
			Examples:          []string{"Investment Grade", "High Yield", "Convertible Bonds"},
			Benefits:          []string{"Higher yields than government bonds", "Diversification", "Regular income"},
			TypicalAllocation: "10-30% of portfolio",
		},
		{
			Name:              "Municipal Bonds",
			Examples:          []string{"State Bonds", "Local Government Bonds"},
			Benefits:          []string{"Tax-exempt income", "Lower default risk", "Community investment"},
			TypicalAllocation: "5-15% of portfolio",
		},
	},
	InvestmentMethods: []investmentMethod{
		{
			Method:      "Individual Bonds",
			Description: "Direct ownership of bond securities",
			Advantages:  []string{"Known return at maturity", "No management fees", "Customizable duration"},
		},
		{
			Method:      "Bond ETFs",
			Description: "Exchange-traded funds that track bond indices",
			Advantages:  []string{"Diversification", "Liquidity", "Lower minimum investment"},
		},
		{
			Method:      "Bond Mutual Funds",
			Description: "Professionally managed bond portfolios",
			Advantages:  []string{"Professional management", "Active duration management", "Regular income distributions"},
		},
	},
	Risks: []string{
		"Interest rate risk",
		"Credit risk",
		"Inflation risk",
		"Liquidity risk",
		"Call risk",
	},
	PortfolioIntegration: []string{
		"Use bonds to reduce portfolio volatility",
		"Match bond duration to investment horizon",
		"Consider tax implications",
		"Diversify across bond types",
		"Regular rebalancing to maintain target allocation",
	},
}
