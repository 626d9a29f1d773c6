package metrics

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// StatusFunc reports the device connection for /health.
type StatusFunc func() (state, port string)

type Server struct {
	server *http.Server
	status StatusFunc
	logger *zap.Logger
}

// NewServer exposes /metrics and /health on addr.
func NewServer(addr string, status StatusFunc, logger *zap.Logger) *Server {
	router := mux.NewRouter()

	s := &Server{
		server: &http.Server{
			Addr:              addr,
			Handler:           router,
			ReadHeaderTimeout: 5 * time.Second,
		},
		status: status,
		logger: logger,
	}

	router.HandleFunc("/health", s.health).Methods("GET")
	router.Handle("/metrics", promhttp.Handler()).Methods("GET")

	return s
}

func (s *Server) Start() error {
	s.logger.Info("starting metrics server", zap.String("addr", s.server.Addr))
	return s.server.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down metrics server")
	return s.server.Shutdown(ctx)
}

func (s *Server) health(w http.ResponseWriter, _ *http.Request) {
	state, port := s.status()
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(map[string]string{
		"status": "ok",
		"device": state,
		"port":   port,
	}); err != nil {
		s.logger.Error("encoding health", zap.Error(err))
	}
}
