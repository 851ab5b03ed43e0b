package history

import (
	"time"

	"github.com/openfolio/portfolio-analyzer/internal/clients/yahoo"
)

// Series is an immutable, chronologically ordered price history for one
// (symbol, period) pair.
type Series struct {
	Symbol    string                  `json:"symbol"`
	Period    string                  `json:"period"`
	Bars      []yahoo.HistoricalPrice `json:"bars"`
	FetchedAt time.Time               `json:"fetched_at"`
}

// Empty reports whether the series holds no bars
func (s *Series) Empty() bool {
	return s == nil || len(s.Bars) == 0
}

// Closes returns the close prices in chronological order
func (s *Series) Closes() []float64 {
	if s == nil {
		return nil
	}
	closes := make([]float64, len(s.Bars))
	for i, bar := range s.Bars {
		closes[i] = bar.Close
	}
	return closes
}

// LastClose returns the most recent close price, if any
func (s *Series) LastClose() (float64, bool) {
	if s.Empty() {
		return 0, false
	}
	return s.Bars[len(s.Bars)-1].Close, true
}
