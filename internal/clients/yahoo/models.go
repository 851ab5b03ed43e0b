package yahoo

import (
	"errors"
	"time"
)

// Sentinel errors distinguishing upstream failure modes. A 429 is transient
// and retryable, a malformed payload is not.
var (
	ErrRateLimited       = errors.New("yahoo: rate limited")
	ErrMalformedResponse = errors.New("yahoo: malformed response")
)

// HistoricalPrice is a single daily OHLCV bar
type HistoricalPrice struct {
	Date     time.Time `json:"date"`
	Open     float64   `json:"open"`
	High     float64   `json:"high"`
	Low      float64   `json:"low"`
	Close    float64   `json:"close"`
	Volume   int64     `json:"volume"`
	AdjClose float64   `json:"adj_close"`
}

// ValidPeriods are the ranges accepted by the chart endpoint
var ValidPeriods = []string{"1d", "5d", "1mo", "3mo", "6mo", "1y", "2y", "5y", "10y", "ytd", "max"}
