package server

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/sonicagent/engine/internal/domain"
)

// respondJSON writes a JSON response with the given status
func respondJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload != nil {
		json.NewEncoder(w).Encode(payload)
	}
}

// respondError writes a JSON error response
func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}

func (s *Server) handlePortfolio(w http.ResponseWriter, r *http.Request) {
	wallet := chi.URLParam(r, "wallet")
	if wallet == "" {
		respondError(w, http.StatusBadRequest, "wallet is required")
		return
	}

	view, err := s.agent.GetPortfolioView(r.Context(), wallet)
	if err != nil {
		s.log.Error().Err(err).Str("wallet", wallet).Msg("Failed to build portfolio view")
		respondError(w, http.StatusBadGateway, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, view)
}

func (s *Server) handleRebalance(w http.ResponseWriter, r *http.Request) {
	wallet := chi.URLParam(r, "wallet")
	if wallet == "" {
		respondError(w, http.StatusBadRequest, "wallet is required")
		return
	}
	dryRun := r.URL.Query().Get("dry_run") == "true"

	result, err := s.agent.RunRebalance(r.Context(), wallet, dryRun)
	if err != nil {
		s.log.Error().Err(err).Str("wallet", wallet).Bool("dry_run", dryRun).Msg("Rebalance failed")
		respondError(w, http.StatusConflict, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, result)
}

func (s *Server) handleRecommendations(w http.ResponseWriter, r *http.Request) {
	wallet := chi.URLParam(r, "wallet")
	if wallet == "" {
		respondError(w, http.StatusBadRequest, "wallet is required")
		return
	}

	recs, err := s.agent.GetRecommendations(r.Context(), wallet)
	if err != nil {
		s.log.Error().Err(err).Str("wallet", wallet).Msg("Failed to load recommendations")
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, recs)
}

func (s *Server) handleExecuteRecommendation(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		respondError(w, http.StatusBadRequest, "recommendation id is required")
		return
	}

	result, err := s.agent.ExecuteRecommendation(r.Context(), id)
	if err != nil {
		s.log.Error().Err(err).Str("recommendation", id).Msg("Failed to execute recommendation")
		respondError(w, http.StatusConflict, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, result)
}

func (s *Server) handleTrades(w http.ResponseWriter, r *http.Request) {
	wallet := chi.URLParam(r, "wallet")
	if wallet == "" {
		respondError(w, http.StatusBadRequest, "wallet is required")
		return
	}

	limit := 50
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 || parsed > 500 {
			respondError(w, http.StatusBadRequest, "limit must be between 1 and 500")
			return
		}
		limit = parsed
	}

	trades, err := s.agent.ListTrades(r.Context(), wallet, limit)
	if err != nil {
		s.log.Error().Err(err).Str("wallet", wallet).Msg("Failed to list trades")
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if trades == nil {
		trades = []domain.TradeRecord{}
	}
	respondJSON(w, http.StatusOK, trades)
}
