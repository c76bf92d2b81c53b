package rest

import (
	"net/http"
	"strconv"
)

// PredictGame handles POST /api/v1/games/{gameID}/predict?force=true
func (h *Handler) PredictGame(w http.ResponseWriter, r *http.Request) {
	gameID, ok := idParam(w, r, "gameID")
	if !ok {
		return
	}
	force, ok := forceParam(w, r)
	if !ok {
		return
	}

	prediction, err := h.svc.Predictions.Predict(r.Context(), gameID, force)
	if err != nil {
		respondServiceError(w, "Failed to predict game", err)
		return
	}

	respondJSON(w, http.StatusCreated, prediction)
}

// PredictDate handles POST /api/v1/predictions?date=YYYY-MM-DD
func (h *Handler) PredictDate(w http.ResponseWriter, r *http.Request) {
	date, ok := h.dateParam(w, r)
	if !ok {
		return
	}
	force, ok := forceParam(w, r)
	if !ok {
		return
	}

	result, err := h.svc.Predictions.PredictAllScheduled(r.Context(), date, force)
	if err != nil {
		respondServiceError(w, "Failed to predict games", err)
		return
	}

	respondJSON(w, http.StatusOK, result)
}

// GetPredictionsByDate handles GET /api/v1/predictions?date=YYYY-MM-DD
func (h *Handler) GetPredictionsByDate(w http.ResponseWriter, r *http.Request) {
	date, ok := h.dateParam(w, r)
	if !ok {
		return
	}

	predictions, err := h.svc.Games.PredictionsByDate(r.Context(), date)
	if err != nil {
		respondServiceError(w, "Failed to fetch predictions", err)
		return
	}

	respondJSON(w, http.StatusOK, predictions)
}

// EvaluatePredictions handles POST /api/v1/predictions/evaluate
func (h *Handler) EvaluatePredictions(w http.ResponseWriter, r *http.Request) {
	summary, err := h.svc.Predictions.EvaluatePending(r.Context())
	if err != nil {
		respondServiceError(w, "Failed to evaluate predictions", err)
		return
	}

	respondJSON(w, http.StatusOK, summary)
}

// GetConfidenceReport handles GET /api/v1/predictions/report
func (h *Handler) GetConfidenceReport(w http.ResponseWriter, r *http.Request) {
	report, err := h.svc.Predictions.ConfidenceBreakdown(r.Context())
	if err != nil {
		respondServiceError(w, "Failed to build confidence report", err)
		return
	}

	respondJSON(w, http.StatusOK, report)
}

func forceParam(w http.ResponseWriter, r *http.Request) (bool, bool) {
	raw := r.URL.Query().Get("force")
	if raw == "" {
		return false, true
	}
	force, err := strconv.ParseBool(raw)
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid force flag", err)
		return false, false
	}
	return force, true
}
