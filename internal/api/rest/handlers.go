package rest

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/fortuna/aurora/internal/backfill"
	"github.com/fortuna/aurora/internal/service"
	"github.com/fortuna/aurora/internal/standings"
	"github.com/fortuna/aurora/internal/store"
	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"
)

// Handler contains dependencies for HTTP handlers
type Handler struct {
	svc    Services
	logger *logrus.Logger
}

// NewHandler creates a new handler
func NewHandler(svc Services, logger *logrus.Logger) *Handler {
	if svc.Today == nil {
		svc.Today = func() string { return time.Now().UTC().Format(store.DateLayout) }
	}
	return &Handler{svc: svc, logger: logger}
}

// HealthCheck handles health check requests
func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	status := http.StatusOK
	checks := make(map[string]string, len(h.svc.Checks))
	for name, checker := range h.svc.Checks {
		if err := checker.HealthCheck(r.Context()); err != nil {
			checks[name] = err.Error()
			status = http.StatusServiceUnavailable
			continue
		}
		checks[name] = "ok"
	}

	state := "healthy"
	if status != http.StatusOK {
		state = "degraded"
	}
	respondJSON(w, status, map[string]interface{}{
		"status":  state,
		"service": "aurora",
		"checks":  checks,
	})
}

// GetGamesByDate returns all games on a specific date (default today)
func (h *Handler) GetGamesByDate(w http.ResponseWriter, r *http.Request) {
	date, ok := h.dateParam(w, r)
	if !ok {
		return
	}

	games, err := h.svc.Games.GamesByDate(r.Context(), date)
	if err != nil {
		respondServiceError(w, "Failed to fetch games", err)
		return
	}

	respondJSON(w, http.StatusOK, games)
}

// GetGame returns a single game with team details
func (h *Handler) GetGame(w http.ResponseWriter, r *http.Request) {
	gameID, ok := idParam(w, r, "gameID")
	if !ok {
		return
	}

	game, err := h.svc.Games.GetGame(r.Context(), gameID)
	if err != nil {
		respondServiceError(w, "Failed to fetch game", err)
		return
	}

	respondJSON(w, http.StatusOK, game)
}

// GetTeams returns all teams
func (h *Handler) GetTeams(w http.ResponseWriter, r *http.Request) {
	teams, err := h.svc.Games.Teams(r.Context())
	if err != nil {
		respondServiceError(w, "Failed to fetch teams", err)
		return
	}

	respondJSON(w, http.StatusOK, teams)
}

// GetTeam returns a single team
func (h *Handler) GetTeam(w http.ResponseWriter, r *http.Request) {
	teamID, ok := idParam(w, r, "teamID")
	if !ok {
		return
	}

	team, err := h.svc.Games.Team(r.Context(), teamID)
	if err != nil {
		respondServiceError(w, "Failed to fetch team", err)
		return
	}

	respondJSON(w, http.StatusOK, team)
}

// GetTeamStats returns the team's aggregated season statistics
func (h *Handler) GetTeamStats(w http.ResponseWriter, r *http.Request) {
	teamID, ok := idParam(w, r, "teamID")
	if !ok {
		return
	}

	stats, err := h.svc.Stats.TeamStats(r.Context(), teamID)
	if err != nil {
		respondServiceError(w, "Failed to compute team stats", err)
		return
	}

	respondJSON(w, http.StatusOK, stats)
}

// GetTeamRecentGames returns the team's last n final games
func (h *Handler) GetTeamRecentGames(w http.ResponseWriter, r *http.Request) {
	teamID, ok := idParam(w, r, "teamID")
	if !ok {
		return
	}

	n := 0
	if nStr := r.URL.Query().Get("n"); nStr != "" {
		parsed, err := strconv.Atoi(nStr)
		if err != nil || parsed < 1 || parsed > 82 {
			respondError(w, http.StatusBadRequest, "Invalid n (1-82)", err)
			return
		}
		n = parsed
	}

	if _, err := h.svc.Games.Team(r.Context(), teamID); err != nil {
		respondServiceError(w, "Failed to fetch team", err)
		return
	}

	games, err := h.svc.Stats.RecentGames(r.Context(), teamID, n)
	if err != nil {
		respondServiceError(w, "Failed to fetch recent games", err)
		return
	}

	respondJSON(w, http.StatusOK, games)
}

// GetStandings returns the in-memory standings cache
func (h *Handler) GetStandings(w http.ResponseWriter, r *http.Request) {
	teams := []standings.TeamInfo{}
	if h.svc.Standings != nil {
		teams = h.svc.Standings.All()
	}

	respondJSON(w, http.StatusOK, teams)
}

// dateParam reads ?date=YYYY-MM-DD, defaulting to today
func (h *Handler) dateParam(w http.ResponseWriter, r *http.Request) (string, bool) {
	date := r.URL.Query().Get("date")
	if date == "" {
		return h.svc.Today(), true
	}
	if _, err := store.ParseDate(date); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid date format (use YYYY-MM-DD)", err)
		return "", false
	}
	return date, true
}

func idParam(w http.ResponseWriter, r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(mux.Vars(r)[name], 10, 64)
	if err != nil || id <= 0 {
		respondError(w, http.StatusBadRequest, "Invalid "+name, err)
		return 0, false
	}
	return id, true
}

// respondServiceError maps service errors onto HTTP statuses
func respondServiceError(w http.ResponseWriter, message string, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, store.ErrNotFound), errors.Is(err, service.ErrGameNotFound):
		status = http.StatusNotFound
	case errors.Is(err, service.ErrNotScheduled), errors.Is(err, service.ErrAlreadyPredicted):
		status = http.StatusConflict
	case errors.Is(err, backfill.ErrInvalidRequest):
		status = http.StatusBadRequest
	case errors.Is(err, backfill.ErrQueueFull):
		status = http.StatusServiceUnavailable
	}
	respondError(w, status, message, err)
}

// respondJSON writes a JSON response
func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// respondError writes an error response
func respondError(w http.ResponseWriter, status int, message string, err error) {
	response := map[string]interface{}{
		"error":  message,
		"status": status,
	}
	if err != nil {
		response["details"] = err.Error()
	}

	respondJSON(w, status, response)
}
