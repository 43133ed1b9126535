// Package server serves the build artifact with the reload client injected,
// the reload websocket endpoint and a small status surface.
package server

import (
	"context"
	_ "embed"
	"net"
	"net/http"
	"path/filepath"
	"sync"
	"time"

	"github.com/conneroisu/specto/internal/coordinator"
	"github.com/conneroisu/specto/internal/errors"
	"github.com/conneroisu/specto/internal/logging"
)

// Reserved paths.
const (
	ReloadPath     = "/__specto/reload"
	StatusPagePath = "/__specto/status"
	StatusAPIPath  = "/api/status"
	HealthPath     = "/health"
)

const shutdownTimeout = 5 * time.Second

//go:embed client.js
var clientScript []byte

// StatusProvider reports the pipeline status.
type StatusProvider interface {
	Status() coordinator.Status
}

// Options configures a Server.
type Options struct {
	Address string
	// ArtifactPath is the compiler output. Its directory is the document root.
	ArtifactPath string
	// Reload serves the reload wire protocol.
	Reload http.Handler
	Status StatusProvider
	Logger logging.Logger
}

// Server is the development HTTP server.
type Server struct {
	opts     Options
	artifact string
	root     string
	logger   logging.Logger

	mutex      sync.Mutex
	listener   net.Listener
	httpServer *http.Server
}

// New creates a server. Nothing is bound until Listen or Serve.
func New(opts Options) *Server {
	if opts.Logger == nil {
		opts.Logger = logging.Nop()
	}

	artifact := filepath.Clean(opts.ArtifactPath)
	s := &Server{
		opts:     opts,
		artifact: artifact,
		root:     filepath.Dir(artifact),
		logger:   opts.Logger.WithComponent("server"),
	}
	s.httpServer = &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	return s
}

// Handler returns the HTTP routes.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc(ClientScriptPath, s.handleClientScript)
	if s.opts.Reload != nil {
		mux.Handle(ReloadPath, s.opts.Reload)
	}
	mux.HandleFunc(StatusPagePath, s.handleStatusPage)
	mux.HandleFunc(StatusAPIPath, s.handleStatusAPI)
	mux.HandleFunc(HealthPath, s.handleHealth)
	mux.HandleFunc("/", s.handleFiles)

	return s.logRequests(mux)
}

// Listen binds the listening socket. Failing to bind is a fatal setup error.
func (s *Server) Listen() (net.Addr, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if s.listener != nil {
		return s.listener.Addr(), nil
	}

	listener, err := net.Listen("tcp", s.opts.Address)
	if err != nil {
		return nil, errors.ErrBindFailed(s.opts.Address, err)
	}
	s.listener = listener

	return listener.Addr(), nil
}

// Serve serves HTTP until ctx is done, then shuts down gracefully. Open
// reload connections are not waited for; closing the hub ends them.
func (s *Server) Serve(ctx context.Context) error {
	if _, err := s.Listen(); err != nil {
		return err
	}

	s.mutex.Lock()
	listener := s.listener
	s.mutex.Unlock()

	s.logger.Info(ctx, "Serving", "url", "http://"+listener.Addr().String(), "root", s.root)

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- s.httpServer.Serve(listener)
	}()

	select {
	case err := <-serveErr:
		if err != nil && err != http.ErrServerClosed {
			return errors.NewServerError(errors.ErrCodeBindFailed, "server stopped unexpectedly", err)
		}
		return nil

	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			s.logger.Warn(shutdownCtx, err, "Server shutdown incomplete")
		}
		<-serveErr
		return nil
	}
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		s.logger.Debug(r.Context(), "Request", "method", r.Method, "path", r.URL.Path, "duration", time.Since(start))
	})
}
