package metrics

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/systmms/vaultstore/internal/logging"
)

// ServerConfig configures the metrics HTTP server
type ServerConfig struct {
	// Addr is the listen address, e.g. ":9090" or "127.0.0.1:0"
	Addr string

	// Path is where metrics are served
	Path string

	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// DefaultServerConfig returns the server settings for addr
func DefaultServerConfig(addr string) ServerConfig {
	return ServerConfig{
		Addr:         addr,
		Path:         "/metrics",
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
	}
}

// Server serves the Prometheus metrics and a health endpoint
type Server struct {
	config   ServerConfig
	logger   *logging.Logger
	server   *http.Server
	listener net.Listener
}

// NewServer creates a metrics server
func NewServer(config ServerConfig, logger *logging.Logger) *Server {
	if logger == nil {
		logger = logging.Discard()
	}
	return &Server{config: config, logger: logger}
}

// Start registers the metrics and starts serving in the background
func (s *Server) Start() error {
	InitMetrics()

	mux := http.NewServeMux()
	mux.Handle(s.config.Path, Handler())
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})

	listener, err := net.Listen("tcp", s.config.Addr)
	if err != nil {
		return err
	}
	s.listener = listener
	s.server = &http.Server{
		Handler:      mux,
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
	}

	go func() {
		if err := s.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			// metrics are non-critical
			s.logger.Warn("Metrics server error: %v", err)
		}
	}()

	s.logger.Debug("Serving metrics on %s%s", listener.Addr(), s.config.Path)
	return nil
}

// Stop shuts the server down
func (s *Server) Stop(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

// Addr returns the bound address, or "" before Start
func (s *Server) Addr() string {
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}
