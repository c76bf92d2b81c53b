package websocket

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/fortuna/aurora/internal/store"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// Server pushes prediction events to WebSocket clients on /ws/predictions.
// It implements service.PredictionListener.
type Server struct {
	hub    *Hub
	server *http.Server
	ctx    context.Context
	cancel context.CancelFunc
	logger *logrus.Logger
}

// NewServer creates a new WebSocket server and starts its hub
func NewServer(logger *logrus.Logger) *Server {
	ctx, cancel := context.WithCancel(context.Background())
	s := &Server{
		hub:    NewHub(logger),
		ctx:    ctx,
		cancel: cancel,
		logger: logger,
	}
	go s.hub.Run(ctx)
	return s
}

// Handler returns the HTTP routes served by the WebSocket server
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws/predictions", s.handlePredictions)
	mux.HandleFunc("/ws/health", s.handleHealth)
	return mux
}

// Start listens on port until Shutdown
func (s *Server) Start(port string) error {
	s.server = &http.Server{
		Addr:              fmt.Sprintf(":%s", port),
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	s.logger.WithField("port", port).Info("WebSocket server listening")
	return s.server.ListenAndServe()
}

func (s *Server) handlePredictions(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.WithError(err).Warn("Failed to upgrade connection")
		return
	}

	client := NewClient(uuid.NewString(), conn, s.hub, s.logger)
	if !s.hub.Register(client) {
		conn.Close()
		return
	}

	// handler context, not the request's
	go client.WritePump(s.ctx)
	go client.ReadPump(s.ctx)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	fmt.Fprintf(w, `{"status": "healthy", "clients": %d}`, s.hub.ClientCount())
}

// ClientCount returns the number of connected clients
func (s *Server) ClientCount() int {
	return s.hub.ClientCount()
}

// PredictionCreated broadcasts a newly stored prediction
func (s *Server) PredictionCreated(ctx context.Context, p *store.Prediction) {
	s.hub.Broadcast(Event{Type: EventPredictionCreated, Payload: p, Timestamp: time.Now().UTC()})
}

// PredictionEvaluated broadcasts a prediction that has just been scored
func (s *Server) PredictionEvaluated(ctx context.Context, p *store.Prediction) {
	s.hub.Broadcast(Event{Type: EventPredictionEvaluated, Payload: p, Timestamp: time.Now().UTC()})
}

// Shutdown stops the hub and gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	s.cancel()
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}
