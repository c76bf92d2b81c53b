package rest

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/fortuna/aurora/internal/backfill"
	"github.com/fortuna/aurora/internal/service"
	"github.com/fortuna/aurora/internal/standings"
	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"
)

// HealthChecker is a dependency the health endpoint pings
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// Services bundles what the handlers serve. Standings, Backfill and Checks
// are optional.
type Services struct {
	Games       *service.GameService
	Stats       *service.StatsService
	Predictions *service.PredictionService
	Standings   *standings.TeamCache
	Backfill    *backfill.Service
	Checks      map[string]HealthChecker
	// Today returns the league calendar date; defaults to the UTC date.
	Today func() string
}

// Server represents the REST API server
type Server struct {
	port   string
	server *http.Server
	router *mux.Router
}

// NewServer creates a new REST API server
func NewServer(port string, svc Services, logger *logrus.Logger) *Server {
	router := NewRouter(svc, logger)

	return &Server{
		port:   port,
		router: router,
		server: &http.Server{
			Addr:              fmt.Sprintf(":%s", port),
			Handler:           router,
			ReadHeaderTimeout: 10 * time.Second,
		},
	}
}

// NewRouter builds the route table
func NewRouter(svc Services, logger *logrus.Logger) *mux.Router {
	handler := NewHandler(svc, logger)
	backfillHandler := NewBackfillHandler(svc.Backfill)

	router := mux.NewRouter()

	router.Use(RecoveryMiddleware(logger))
	router.Use(LoggingMiddleware(logger))
	router.Use(CORSMiddleware)

	// Health check
	router.HandleFunc("/health", handler.HealthCheck).Methods("GET")

	api := router.PathPrefix("/api/v1").Subrouter()

	// Games
	api.HandleFunc("/games", handler.GetGamesByDate).Methods("GET")
	api.HandleFunc("/games/{gameID}", handler.GetGame).Methods("GET")
	api.HandleFunc("/games/{gameID}/predict", handler.PredictGame).Methods("POST")

	// Teams
	api.HandleFunc("/teams", handler.GetTeams).Methods("GET")
	api.HandleFunc("/teams/{teamID}", handler.GetTeam).Methods("GET")
	api.HandleFunc("/teams/{teamID}/stats", handler.GetTeamStats).Methods("GET")
	api.HandleFunc("/teams/{teamID}/recent", handler.GetTeamRecentGames).Methods("GET")
	api.HandleFunc("/standings", handler.GetStandings).Methods("GET")

	// Predictions
	api.HandleFunc("/predictions", handler.GetPredictionsByDate).Methods("GET")
	api.HandleFunc("/predictions", handler.PredictDate).Methods("POST")
	api.HandleFunc("/predictions/evaluate", handler.EvaluatePredictions).Methods("POST")
	api.HandleFunc("/predictions/report", handler.GetConfidenceReport).Methods("GET")

	// Backfill operations
	api.HandleFunc("/backfill", backfillHandler.HandleBackfillRequest).Methods("POST")
	api.HandleFunc("/backfill/status", backfillHandler.HandleBackfillStatus).Methods("GET")
	api.HandleFunc("/backfill/{jobID}", backfillHandler.HandleBackfillJob).Methods("GET")

	return router
}

// Handler returns the server's HTTP handler
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start starts the REST API server
func (s *Server) Start() error {
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}
