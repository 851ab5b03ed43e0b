package portfolio

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
)

// Handler handles portfolio HTTP requests
type Handler struct {
	repo    *Repository
	service *Service
	log     zerolog.Logger
}

// NewHandler creates a new portfolio handler
func NewHandler(repo *Repository, service *Service, log zerolog.Logger) *Handler {
	return &Handler{
		repo:    repo,
		service: service,
		log:     log.With().Str("handler", "portfolio").Logger(),
	}
}

// RegisterRoutes attaches the portfolio routes to a router
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/", h.HandleCreatePortfolio)
	r.Get("/", h.HandleListPortfolios)
	r.Get("/summary", h.HandleGetSummary)
	r.Get("/{portfolioID}", h.HandleGetPortfolio)
	r.Put("/{portfolioID}", h.HandleUpdatePortfolio)
	r.Delete("/{portfolioID}", h.HandleDeletePortfolio)
	r.Post("/{portfolioID}/assets", h.HandleAddAsset)
	r.Post("/{portfolioID}/transactions", h.HandleAddTransaction)
	r.Get("/{portfolioID}/analysis", h.HandleAnalyze)
}

// HandleCreatePortfolio creates a new empty portfolio
func (h *Handler) HandleCreatePortfolio(w http.ResponseWriter, r *http.Request) {
	var req CreatePortfolioRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if err := req.Validate(); err != nil {
		h.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	p, err := h.repo.Create(req)
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	h.writeJSON(w, http.StatusCreated, p)
}

// HandleListPortfolios lists all portfolios with cost-basis totals
func (h *Handler) HandleListPortfolios(w http.ResponseWriter, r *http.Request) {
	portfolios, err := h.repo.List()
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	result := make([]PortfolioSummary, 0, len(portfolios))
	for _, p := range portfolios {
		total := 0.0
		for _, asset := range p.Assets {
			total += asset.CostValue()
		}
		result = append(result, PortfolioSummary{
			Portfolio:  *p,
			TotalValue: total,
			AssetCount: len(p.Assets),
		})
	}
	h.writeJSON(w, http.StatusOK, result)
}

// HandleGetSummary aggregates all portfolios into one snapshot
func (h *Handler) HandleGetSummary(w http.ResponseWriter, r *http.Request) {
	portfolios, err := h.repo.List()
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	h.writeJSON(w, http.StatusOK, h.service.Summary(r.Context(), portfolios))
}

// HandleGetPortfolio returns one portfolio with live-priced holdings
func (h *Handler) HandleGetPortfolio(w http.ResponseWriter, r *http.Request) {
	p, ok := h.loadPortfolio(w, r)
	if !ok {
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"id":           p.ID,
		"name":         p.Name,
		"description":  p.Description,
		"assets":       h.service.PriceAssets(r.Context(), p.Assets),
		"transactions": p.Transactions,
		"created_at":   p.CreatedAt,
		"updated_at":   p.UpdatedAt,
	})
}

// HandleUpdatePortfolio renames a portfolio
func (h *Handler) HandleUpdatePortfolio(w http.ResponseWriter, r *http.Request) {
	var req CreatePortfolioRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if err := req.Validate(); err != nil {
		h.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	p, err := h.repo.Update(chi.URLParam(r, "portfolioID"), req)
	if errors.Is(err, ErrNotFound) {
		h.writeError(w, http.StatusNotFound, "Portfolio not found")
		return
	}
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	h.writeJSON(w, http.StatusOK, p)
}

// HandleDeletePortfolio removes a portfolio and its holdings
func (h *Handler) HandleDeletePortfolio(w http.ResponseWriter, r *http.Request) {
	err := h.repo.Delete(chi.URLParam(r, "portfolioID"))
	if errors.Is(err, ErrNotFound) {
		h.writeError(w, http.StatusNotFound, "Portfolio not found")
		return
	}
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]string{"message": "Portfolio deleted"})
}

// HandleAddAsset adds a holding to a portfolio
func (h *Handler) HandleAddAsset(w http.ResponseWriter, r *http.Request) {
	var req AddAssetRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if err := req.Validate(); err != nil {
		h.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	p, err := h.repo.AddAsset(chi.URLParam(r, "portfolioID"), req)
	if errors.Is(err, ErrNotFound) {
		h.writeError(w, http.StatusNotFound, "Portfolio not found")
		return
	}
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	h.writeJSON(w, http.StatusOK, p)
}

// HandleAddTransaction records a transaction against a portfolio
func (h *Handler) HandleAddTransaction(w http.ResponseWriter, r *http.Request) {
	var req AddTransactionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if err := req.Validate(); err != nil {
		h.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	p, err := h.repo.AddTransaction(chi.URLParam(r, "portfolioID"), req)
	if errors.Is(err, ErrNotFound) {
		h.writeError(w, http.StatusNotFound, "Portfolio not found")
		return
	}
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	h.writeJSON(w, http.StatusOK, p)
}

// HandleAnalyze returns the full live analysis of a portfolio
func (h *Handler) HandleAnalyze(w http.ResponseWriter, r *http.Request) {
	p, ok := h.loadPortfolio(w, r)
	if !ok {
		return
	}

	ctx := r.Context()
	analysis := h.service.Analyze(ctx, p)

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"total_value":             analysis.TotalValue,
		"asset_allocations":       analysis.AssetAllocations,
		"number_of_assets":        analysis.NumberOfAssets,
		"assets":                  analysis.Assets,
		"risk_metrics":            h.service.RiskMetrics(ctx, p),
		"sector_diversification":  h.service.SectorDiversification(ctx, p),
		"rebalancing_suggestions": h.service.RebalancingSuggestions(ctx, p),
		"last_updated":            analysis.LastUpdated,
	})
}

func (h *Handler) loadPortfolio(w http.ResponseWriter, r *http.Request) (*Portfolio, bool) {
	p, err := h.repo.Get(chi.URLParam(r, "portfolioID"))
	if errors.Is(err, ErrNotFound) {
		h.writeError(w, http.StatusNotFound, "Portfolio not found")
		return nil, false
	}
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, err.Error())
		return nil, false
	}
	return p, true
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
