package server

import (
	"log/slog"

	"github.com/Tyrowin/gochat/internal/store"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// Server bundles the hub with the HTTP-facing pieces that depend on it.
type Server struct {
	cfg      Config
	hub      *Hub
	metrics  *Metrics
	registry *prometheus.Registry
	origins  *originPolicy
	upgrader websocket.Upgrader
	log      *slog.Logger
}

// New builds a Server around st. The hub is created but not started; call
// Hub().Run in its own goroutine.
func New(cfg Config, st store.Store, log *slog.Logger) *Server {
	if log == nil {
		log = slog.Default()
	}
	cfg = cfg.Sanitize()

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metrics := NewMetrics(reg)

	s := &Server{
		cfg:      cfg,
		hub:      NewHub(cfg, st, metrics, log),
		metrics:  metrics,
		registry: reg,
		origins:  newOriginPolicy(cfg.AllowedOrigins, log),
		log:      log,
	}
	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     s.origins.check,
	}
	return s
}

// Hub returns the server's hub.
func (s *Server) Hub() *Hub {
	return s.hub
}

// Config returns the sanitized configuration the server was built with.
func (s *Server) Config() Config {
	return s.cfg
}
