// Package analytics provides the pure numerical functions shared by the
// portfolio and risk engines. No I/O happens here.
package analytics

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// TradingDaysPerYear is the annualization constant used throughout
const TradingDaysPerYear = 252

// Returns computes per-bar percentage changes of a price sequence. The first
// bar has no defined return and is dropped. Bars following a zero price are
// skipped to avoid division by zero.
func Returns(closes []float64) []float64 {
	if len(closes) < 2 {
		return nil
	}
	returns := make([]float64, 0, len(closes)-1)
	for i := 1; i < len(closes); i++ {
		if closes[i-1] == 0 {
			continue
		}
		returns = append(returns, (closes[i]-closes[i-1])/closes[i-1])
	}
	return returns
}

// Mean returns the arithmetic mean, 0 for an empty slice
func Mean(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	return stat.Mean(xs, nil)
}

// StdDev returns the sample standard deviation, 0 when undefined
func StdDev(xs []float64) float64 {
	if len(xs) < 2 {
		return 0
	}
	return stat.StdDev(xs, nil)
}

// Variance returns the sample variance, 0 when undefined
func Variance(xs []float64) float64 {
	if len(xs) < 2 {
		return 0
	}
	return stat.Variance(xs, nil)
}

// Covariance returns the sample covariance of two equal-length series,
// 0 when undefined
func Covariance(a, b []float64) float64 {
	if len(a) != len(b) || len(a) < 2 {
		return 0
	}
	return stat.Covariance(a, b, nil)
}

// Correlation returns the Pearson correlation coefficient. NaN is returned
// when either series has zero variance; callers surface that as null.
func Correlation(a, b []float64) float64 {
	if len(a) != len(b) || len(a) < 2 {
		return math.NaN()
	}
	return stat.Correlation(a, b, nil)
}

// Percentile returns the q-th percentile (0-100) using linear interpolation
// between the two nearest ranks. Returns 0 for an empty slice.
func Percentile(xs []float64, q float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	sorted := make([]float64, len(xs))
	copy(sorted, xs)
	sort.Float64s(sorted)

	if q <= 0 {
		return sorted[0]
	}
	if q >= 100 {
		return sorted[len(sorted)-1]
	}

	rank := q / 100 * float64(len(sorted)-1)
	lower := int(math.Floor(rank))
	upper := int(math.Ceil(rank))
	if lower == upper {
		return sorted[lower]
	}
	frac := rank - float64(lower)
	return sorted[lower]*(1-frac) + sorted[upper]*frac
}

// AnnualizeReturn scales a mean daily return to a yearly figure
func AnnualizeReturn(dailyMean float64) float64 {
	return dailyMean * TradingDaysPerYear
}

// AnnualizeVolatility scales a daily standard deviation to a yearly figure
func AnnualizeVolatility(dailyStdDev float64) float64 {
	return dailyStdDev * math.Sqrt(TradingDaysPerYear)
}

// CovarianceMatrix builds the sample covariance matrix of the given return
// series. All series must have equal length; callers align them first.
// Rows of the observation matrix are days, columns are assets.
func CovarianceMatrix(series [][]float64) *mat.SymDense {
	n := len(series)
	if n == 0 {
		return nil
	}
	obs := len(series[0])

	data := make([]float64, obs*n)
	for day := 0; day < obs; day++ {
		for asset := 0; asset < n; asset++ {
			data[day*n+asset] = series[asset][day]
		}
	}

	cov := mat.NewSymDense(n, nil)
	stat.CovarianceMatrix(cov, mat.NewDense(obs, n, data), nil)
	return cov
}

// PortfolioRisk returns sqrt(w' Σ w) for a weight vector and covariance
// matrix, 0 when the quadratic form is not positive. A covariance matrix
// built from single-observation series is all-NaN (sample covariance needs
// n ≥ 2), so NaN maps to 0 as well.
func PortfolioRisk(weights []float64, cov *mat.SymDense) float64 {
	if cov == nil || len(weights) != cov.SymmetricDim() {
		return 0
	}
	w := mat.NewVecDense(len(weights), weights)
	quad := mat.Inner(w, cov, w)
	if math.IsNaN(quad) || quad <= 0 {
		return 0
	}
	return math.Sqrt(quad)
}

// TruncateToCommonLength trims every series to the shortest length so they
// can be aligned by position. Empty input returns 0.
func TruncateToCommonLength(series [][]float64) int {
	if len(series) == 0 {
		return 0
	}
	minLen := len(series[0])
	for _, s := range series[1:] {
		if len(s) < minLen {
			minLen = len(s)
		}
	}
	for i := range series {
		series[i] = series[i][:minLen]
	}
	return minLen
}
