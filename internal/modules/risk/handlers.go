package risk

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/openfolio/portfolio-analyzer/internal/modules/portfolio"
)

const (
	defaultConfidenceLevel = 0.95
	defaultNumPortfolios   = 100
	maxNumPortfolios       = 10000
)

// PortfolioReader loads stored portfolios by id
type PortfolioReader interface {
	Get(id string) (*portfolio.Portfolio, error)
}

// Handler handles risk analytics HTTP requests
type Handler struct {
	repo    PortfolioReader
	service *Service
	log     zerolog.Logger
}

// NewHandler creates a new risk handler
func NewHandler(repo PortfolioReader, service *Service, log zerolog.Logger) *Handler {
	return &Handler{
		repo:    repo,
		service: service,
		log:     log.With().Str("handler", "risk").Logger(),
	}
}

// RegisterRoutes attaches the risk routes under /{portfolioID}/risk
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/{portfolioID}/risk", func(r chi.Router) {
		r.Get("/var", h.HandleValueAtRisk)
		r.Get("/correlation", h.HandleCorrelationMatrix)
		r.Get("/efficient-frontier", h.HandleEfficientFrontier)
		r.Post("/stress", h.HandleStressTest)
	})
}

// HandleValueAtRisk computes VaR at the requested confidence level
func (h *Handler) HandleValueAtRisk(w http.ResponseWriter, r *http.Request) {
	p, ok := h.loadPortfolio(w, r)
	if !ok {
		return
	}

	confidenceLevel := defaultConfidenceLevel
	if raw := r.URL.Query().Get("confidence_level"); raw != "" {
		parsed, err := strconv.ParseFloat(raw, 64)
		if err != nil || parsed <= 0 || parsed >= 1 {
			h.writeError(w, http.StatusBadRequest, "confidence_level must be between 0 and 1 exclusive")
			return
		}
		confidenceLevel = parsed
	}

	h.writeJSON(w, http.StatusOK, h.service.ValueAtRisk(r.Context(), p, confidenceLevel))
}

// HandleCorrelationMatrix returns the holdings' return correlation matrix
func (h *Handler) HandleCorrelationMatrix(w http.ResponseWriter, r *http.Request) {
	p, ok := h.loadPortfolio(w, r)
	if !ok {
		return
	}
	h.writeJSON(w, http.StatusOK, h.service.CorrelationMatrix(r.Context(), p))
}

// HandleEfficientFrontier samples random portfolios over the holdings
func (h *Handler) HandleEfficientFrontier(w http.ResponseWriter, r *http.Request) {
	p, ok := h.loadPortfolio(w, r)
	if !ok {
		return
	}

	numPortfolios := defaultNumPortfolios
	if raw := r.URL.Query().Get("num_portfolios"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 || parsed > maxNumPortfolios {
			h.writeError(w, http.StatusBadRequest, "num_portfolios must be between 1 and 10000")
			return
		}
		numPortfolios = parsed
	}

	h.writeJSON(w, http.StatusOK, h.service.EfficientFrontier(r.Context(), p, numPortfolios))
}

// HandleStressTest revalues the portfolio under shock scenarios. An empty
// body or empty scenario list runs the default scenario set.
func (h *Handler) HandleStressTest(w http.ResponseWriter, r *http.Request) {
	p, ok := h.loadPortfolio(w, r)
	if !ok {
		return
	}

	var body struct {
		Scenarios []StressScenario `json:"scenarios"`
	}
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			h.writeError(w, http.StatusBadRequest, "Invalid request body")
			return
		}
	}

	h.writeJSON(w, http.StatusOK, h.service.StressTest(r.Context(), p, body.Scenarios))
}

func (h *Handler) loadPortfolio(w http.ResponseWriter, r *http.Request) (*portfolio.Portfolio, bool) {
	p, err := h.repo.Get(chi.URLParam(r, "portfolioID"))
	if errors.Is(err, portfolio.ErrNotFound) {
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
