package learn

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/openfolio/portfolio-analyzer/internal/modules/portfolio"
)

// PortfolioReader loads stored portfolios by id
type PortfolioReader interface {
	Get(id string) (*portfolio.Portfolio, error)
}

// MetricsProvider computes the offline portfolio snapshot
type MetricsProvider interface {
	Metrics(p *portfolio.Portfolio) *portfolio.Metrics
}

// Handler serves the educational endpoints
type Handler struct {
	repo    PortfolioReader
	metrics MetricsProvider
	log     zerolog.Logger
}

// NewHandler creates a new learn handler
func NewHandler(repo PortfolioReader, metrics MetricsProvider, log zerolog.Logger) *Handler {
	return &Handler{
		repo:    repo,
		metrics: metrics,
		log:     log.With().Str("handler", "learn").Logger(),
	}
}

// RegisterRoutes attaches the learn routes to a router
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/metrics/{metric}", h.HandleMetricGuide)
	r.Get("/etfs", h.HandleETFGuide)
	r.Get("/stocks", h.HandleStockGuide)
	r.Get("/bonds", h.HandleBondGuide)
	r.Get("/portfolio-analysis/{portfolioID}", h.HandlePortfolioWalkthrough)
}

// HandleMetricGuide explains one financial metric
func (h *Handler) HandleMetricGuide(w http.ResponseWriter, r *http.Request) {
	metric := strings.ToLower(chi.URLParam(r, "metric"))
	guide, ok := metricGuides[metric]
	if !ok {
		names := make([]string, 0, len(metricGuides))
		for name := range metricGuides {
			names = append(names, name)
		}
		sort.Strings(names)
		h.writeError(w, http.StatusNotFound,
			fmt.Sprintf("Metric '%s' not found. Available metrics: %s", metric, strings.Join(names, ", ")))
		return
	}
	h.writeJSON(w, http.StatusOK, guide)
}

// HandleETFGuide explains ETF investing
func (h *Handler) HandleETFGuide(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, etfGuide)
}

// HandleStockGuide explains stock investing
func (h *Handler) HandleStockGuide(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, stockGuide)
}

// HandleBondGuide explains bond investing
func (h *Handler) HandleBondGuide(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, bondGuide)
}

// HandlePortfolioWalkthrough pairs a portfolio's offline metrics with
// guidance on reading them.
func (h *Handler) HandlePortfolioWalkthrough(w http.ResponseWriter, r *http.Request) {
	p, err := h.repo.Get(chi.URLParam(r, "portfolioID"))
	if errors.Is(err, portfolio.ErrNotFound) {
		h.writeError(w, http.StatusNotFound, "Portfolio not found")
		return
	}
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	metrics := h.metrics.Metrics(p)
	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"metrics":             metrics,
		"educational_content": walkthroughContent(metrics),
	})
}

func walkthroughContent(metrics *portfolio.Metrics) map[string]interface{} {
	return map[string]interface{}{
		"portfolio_summary": map[string]interface{}{
			"total_value": metrics.TotalValue,
			"explanation": "This represents the current market value of all your investments combined.",
			"tips": []string{
				"Regularly monitor your total portfolio value",
				"Consider rebalancing if allocations drift significantly",
				"Track performance against your investment goals",
			},
		},
		"asset_allocation": map[string]interface{}{
			"current_allocation": metrics.AssetAllocation,
			"explanation":        "This shows how your investments are distributed across different asset types.",
			"recommendations": map[string]string{
				"stocks": "Consider 40-60% for growth",
				"bonds":  "Consider 20-40% for stability",
				"etfs":   "Consider 10-20% for diversification",
			},
			"tips": []string{
				"Rebalance when allocations deviate by more than 5%",
				"Consider your age and risk tolerance",
				"Diversify within each asset class",
			},
		},
		"risk_metrics": map[string]interface{}{
			"beta":         "Measures portfolio volatility compared to the market",
			"sharpe_ratio": "Indicates risk-adjusted returns",
			"var":          "Shows potential maximum loss",
			"tips": []string{
				"Higher returns usually come with higher risk",
				"Diversification can help reduce risk",
				"Regular rebalancing helps maintain risk levels",
			},
		},
	}
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

