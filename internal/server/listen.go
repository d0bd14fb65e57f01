package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
)

// maxPortProbes bounds the search for a free port when the configured one
// is taken.
const maxPortProbes = 10

// Server wraps http.Server with port fallback and graceful shutdown.
type Server struct {
	httpServer *http.Server
	listener   net.Listener
	logger     *log.Logger
}

// Listen binds host:port, probing successive ports when the configured one
// is already in use. Returns the bound server; Addr reports the actual
// address.
func Listen(host string, port int, handler http.Handler, logger *log.Logger) (*Server, error) {
	var (
		listener net.Listener
		err      error
	)
	for probe := 0; probe < maxPortProbes; probe++ {
		addr := fmt.Sprintf("%s:%d", host, port+probe)
		listener, err = net.Listen("tcp", addr)
		if err == nil {
			if probe > 0 {
				logger.Warn("configured port in use, moved to fallback", "addr", addr)
			}
			break
		}
	}
	if listener == nil {
		return nil, fmt.Errorf("no free port in range %d-%d: %w", port, port+maxPortProbes-1, err)
	}

	return &Server{
		httpServer: &http.Server{
			Handler:           handler,
			ReadHeaderTimeout: 10 * time.Second,
		},
		listener: listener,
		logger:   logger,
	}, nil
}

// Addr returns the address the server is bound to.
func (s *Server) Addr() string {
	return s.listener.Addr().String()
}

// Serve blocks serving requests until Shutdown or a listener error.
func (s *Server) Serve() error {
	s.logger.Info("http server listening", "addr", s.Addr())
	if err := s.httpServer.Serve(s.listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown drains in-flight requests and closes the listener.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}
