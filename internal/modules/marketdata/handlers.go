// Package marketdata exposes the administrative and debugging surface of
// the price history store: cache statistics, cache clearing, and a raw
// history endpoint with technical indicators.
package marketdata

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/openfolio/portfolio-analyzer/internal/clients/yahoo"
	"github.com/openfolio/portfolio-analyzer/internal/history"
	"github.com/openfolio/portfolio-analyzer/pkg/formulas"
)

const (
	smaPeriod       = 20
	rsiPeriod       = 14
	bollingerPeriod = 20
	bollingerStdDev = 2.0
)

// HistoryStore is the slice of the price history store these handlers use
type HistoryStore interface {
	Get(ctx context.Context, symbol, period string) (*history.Series, error)
	Clear(symbol string) error
	ClearAll() error
	GetStats() (*history.Stats, error)
}

// Handler handles market-data HTTP requests
type Handler struct {
	store HistoryStore
	log   zerolog.Logger
}

// NewHandler creates a new market-data handler
func NewHandler(store HistoryStore, log zerolog.Logger) *Handler {
	return &Handler{
		store: store,
		log:   log.With().Str("handler", "marketdata").Logger(),
	}
}

// RegisterCacheRoutes attaches the cache administration routes
func (h *Handler) RegisterCacheRoutes(r chi.Router) {
	r.Get("/stats", h.HandleCacheStats)
	r.Delete("/", h.HandleClearCache)
}

// RegisterMarketRoutes attaches the market history routes
func (h *Handler) RegisterMarketRoutes(r chi.Router) {
	r.Get("/{symbol}/history", h.HandleHistory)
}

// HandleCacheStats reports the state of the on-disk history cache
func (h *Handler) HandleCacheStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.store.GetStats()
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	h.writeJSON(w, http.StatusOK, stats)
}

// HandleClearCache drops cached history for one symbol, or everything when
// no symbol is given.
func (h *Handler) HandleClearCache(w http.ResponseWriter, r *http.Request) {
	symbol := r.URL.Query().Get("symbol")

	var err error
	if symbol == "" {
		err = h.store.ClearAll()
	} else {
		err = h.store.Clear(symbol)
	}
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	message := "Cache cleared for all symbols"
	if symbol != "" {
		message = fmt.Sprintf("Cache cleared for %s", symbol)
	}
	h.writeJSON(w, http.StatusOK, map[string]string{"message": message})
}

// HandleHistory returns the raw price history of a symbol plus common
// technical indicators computed over it.
func (h *Handler) HandleHistory(w http.ResponseWriter, r *http.Request) {
	symbol := strings.ToUpper(chi.URLParam(r, "symbol"))

	period := r.URL.Query().Get("period")
	if period == "" {
		period = "1y"
	}
	if !validPeriod(period) {
		h.writeError(w, http.StatusBadRequest,
			fmt.Sprintf("invalid period %q, valid periods: %s", period, strings.Join(yahoo.ValidPeriods, ", ")))
		return
	}

	series, err := h.store.Get(r.Context(), symbol, period)
	if errors.Is(err, history.ErrDataUnavailable) {
		h.writeError(w, http.StatusNotFound, fmt.Sprintf("no data available for %s", symbol))
		return
	}
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	closes := series.Closes()
	indicators := map[string]interface{}{}
	if sma, ok := formulas.SMA(closes, smaPeriod); ok {
		indicators["sma_20"] = sma
	}
	if rsi, ok := formulas.RSI(closes, rsiPeriod); ok {
		indicators["rsi_14"] = rsi
	}
	if bands := formulas.Bollinger(closes, bollingerPeriod, bollingerStdDev); bands != nil {
		indicators["bollinger"] = bands
	}

	response := map[string]interface{}{
		"symbol":     symbol,
		"period":     period,
		"bars":       series.Bars,
		"bar_count":  len(series.Bars),
		"fetched_at": series.FetchedAt,
		"indicators": indicators,
	}
	if lastClose, ok := series.LastClose(); ok {
		response["latest_close"] = lastClose
	}
	h.writeJSON(w, http.StatusOK, response)
}

func validPeriod(period string) bool {
	for _, p := range yahoo.ValidPeriods {
		if p == period {
			return true
		}
	}
	return false
}

// Helper methods

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}
