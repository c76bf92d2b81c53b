package rest

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/fortuna/aurora/internal/backfill"
	"github.com/fortuna/aurora/internal/store"
	"github.com/gorilla/mux"
)

// BackfillHandler proxies API calls to the backfill service.
type BackfillHandler struct {
	service *backfill.Service
}

// NewBackfillHandler wires the REST layer to the backfill service.
func NewBackfillHandler(service *backfill.Service) *BackfillHandler {
	return &BackfillHandler{service: service}
}

type apiBackfillRequest struct {
	SeasonID  string `json:"season_id"`
	StartDate string `json:"start_date"`
	EndDate   string `json:"end_date"`
	DryRun    bool   `json:"dry_run"`
}

var errBackfillDisabled = errors.New("backfill service not configured")

// HandleBackfillRequest handles POST /api/v1/backfill
func (h *BackfillHandler) HandleBackfillRequest(w http.ResponseWriter, r *http.Request) {
	if h.service == nil {
		respondError(w, http.StatusServiceUnavailable, "Backfill unavailable", errBackfillDisabled)
		return
	}

	var req apiBackfillRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	backfillReq := backfill.Request{
		SeasonID: req.SeasonID,
		DryRun:   req.DryRun,
	}

	if req.StartDate != "" {
		start, err := store.ParseDate(req.StartDate)
		if err != nil {
			respondError(w, http.StatusBadRequest, "Invalid start_date format (YYYY-MM-DD)", err)
			return
		}
		backfillReq.StartDate = &start
	}

	if req.EndDate != "" {
		end, err := store.ParseDate(req.EndDate)
		if err != nil {
			respondError(w, http.StatusBadRequest, "Invalid end_date format (YYYY-MM-DD)", err)
			return
		}
		backfillReq.EndDate = &end
	}

	job, err := h.service.Enqueue(r.Context(), backfillReq)
	if err != nil {
		respondServiceError(w, "Failed to enqueue backfill job", err)
		return
	}

	respondJSON(w, http.StatusAccepted, map[string]interface{}{
		"job": job,
	})
}

// HandleBackfillStatus handles GET /api/v1/backfill/status
func (h *BackfillHandler) HandleBackfillStatus(w http.ResponseWriter, r *http.Request) {
	if h.service == nil {
		respondError(w, http.StatusServiceUnavailable, "Backfill unavailable", errBackfillDisabled)
		return
	}

	summary, err := h.service.GetStatus(r.Context())
	if err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to fetch status", err)
		return
	}

	respondJSON(w, http.StatusOK, buildStatusPayload(summary))
}

// HandleBackfillJob handles GET /api/v1/backfill/{jobID}
func (h *BackfillHandler) HandleBackfillJob(w http.ResponseWriter, r *http.Request) {
	if h.service == nil {
		respondError(w, http.StatusServiceUnavailable, "Backfill unavailable", errBackfillDisabled)
		return
	}

	job, ok := h.service.GetJob(mux.Vars(r)["jobID"])
	if !ok {
		respondError(w, http.StatusNotFound, "Backfill job not found", nil)
		return
	}

	respondJSON(w, http.StatusOK, job)
}

func buildStatusPayload(summary *backfill.StatusSummary) map[string]interface{} {
	response := map[string]interface{}{
		"status":  "idle",
		"message": "No active jobs",
		"history": []*backfill.Job{},
	}

	if summary.ActiveJob != nil {
		response["status"] = summary.ActiveJob.Status
		if summary.ActiveJob.StatusMessage != "" {
			response["message"] = summary.ActiveJob.StatusMessage
		}
		response["active_job"] = summary.ActiveJob
	}

	if len(summary.History) > 0 {
		response["history"] = summary.History
	}
	return response
}
