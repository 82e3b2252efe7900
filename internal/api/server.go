// Package api provides the HTTP front end of the temper service.
//
// It exposes the aggregate reading list, the known-device list, and
// per-device queries over JSON, plus a WebSocket stream of polled
// readings. All device access goes through the registry's exclusive lock,
// so concurrent requests queue rather than interleave device I/O.
//
// The server follows the usual lifecycle pattern:
//
//	server, err := api.New(deps)
//	server.Start(ctx)
//	defer server.Close()
package api

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/nerrad567/temper-core/internal/infrastructure/config"
	"github.com/nerrad567/temper-core/internal/infrastructure/logging"
	"github.com/nerrad567/temper-core/internal/temper"
)

// gracefulShutdownTimeout is the maximum time to wait for in-flight
// requests to complete during shutdown.
const gracefulShutdownTimeout = 10 * time.Second

// Fixed server timeouts. Device acquisition under the global lock can
// take several seconds when a HID device is retrying, so the write
// timeout leaves generous headroom.
const (
	readTimeout  = 30 * time.Second
	writeTimeout = 60 * time.Second
	idleTimeout  = 120 * time.Second
)

// inheritedListenerFD is the file descriptor checked for a pre-bound
// listening socket at start-up, for socket-activated deployments.
const inheritedListenerFD = 3

// Deps holds the dependencies required by the API server.
type Deps struct {
	Config *config.Config
	Logger *logging.Logger
	Temper *temper.Temper

	// RequestLogging enables per-request log lines (the --logging flag).
	RequestLogging bool

	Version string
}

// Server is the HTTP API server for the temper service.
type Server struct {
	cfg        *config.Config
	logger     *logging.Logger
	temper     *temper.Temper
	reqLogging bool
	version    string

	baseURL string
	server  *http.Server
	hub     *Hub
	cancel  context.CancelFunc
}

// New creates a new API server with the given dependencies.
//
// The server is not started until Start() is called.
func New(deps Deps) (*Server, error) {
	if deps.Config == nil {
		return nil, fmt.Errorf("config is required")
	}
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if deps.Temper == nil {
		return nil, fmt.Errorf("device registry is required")
	}

	return &Server{
		cfg:        deps.Config,
		logger:     deps.Logger,
		temper:     deps.Temper,
		reqLogging: deps.RequestLogging,
		version:    deps.Version,
		baseURL:    fmt.Sprintf("%s://%s:%d", deps.Config.Scheme(), deps.Config.Hostname, deps.Config.Port),
	}, nil
}

// Hub returns the WebSocket hub. Available after Start().
func (s *Server) Hub() *Hub {
	return s.hub
}

// BaseURL returns the scheme://host:port prefix used for synthesised
// device URLs.
func (s *Server) BaseURL() string {
	return s.baseURL
}

// Start begins listening for HTTP connections.
//
// The listening socket is taken from file descriptor 3 when a bound
// socket was inherited there (decided once, never reevaluated); otherwise
// the configured hostname and port are bound. With TLS material
// configured the listener terminates TLS.
func (s *Server) Start(ctx context.Context) error {
	var srvCtx context.Context
	srvCtx, s.cancel = context.WithCancel(ctx)

	s.hub = NewHub(s.logger)
	go s.hub.Run(srvCtx)

	s.server = &http.Server{
		Handler:           s.buildRouter(),
		ReadTimeout:       readTimeout,
		ReadHeaderTimeout: readTimeout,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       idleTimeout,
	}

	listener, inherited, err := s.listen()
	if err != nil {
		return err
	}

	go func() {
		var serveErr error
		if s.cfg.TLSEnabled() {
			s.logger.Info("API server starting with TLS",
				"address", listener.Addr().String(),
				"cert", s.cfg.CertFile,
				"inherited_socket", inherited,
			)
			serveErr = s.server.ServeTLS(listener, s.cfg.CertFile, s.cfg.KeyFile)
		} else {
			s.logger.Info("API server starting",
				"address", listener.Addr().String(),
				"inherited_socket", inherited,
			)
			serveErr = s.server.Serve(listener)
		}
		if serveErr != nil && !errors.Is(serveErr, http.ErrServerClosed) {
			s.logger.Error("API server error", "error", serveErr)
		}
	}()

	return nil
}

// listen selects the listening socket: an inherited one when available,
// a fresh bind otherwise. Reports whether the socket was inherited.
func (s *Server) listen() (net.Listener, bool, error) {
	if ln := inheritedListener(); ln != nil {
		return ln, true, nil
	}

	addr := fmt.Sprintf("%s:%d", s.cfg.Hostname, s.cfg.Port)
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, false, fmt.Errorf("binding %s: %w", addr, err)
	}
	return ln, false, nil
}

// inheritedListener returns the listener pre-bound on fd 3, or nil when
// that descriptor is not a listening socket.
func inheritedListener() net.Listener {
	f := os.NewFile(inheritedListenerFD, "inherited-listener")
	if f == nil {
		return nil
	}
	defer f.Close()

	ln, err := net.FileListener(f)
	if err != nil {
		return nil
	}
	return ln
}

// Close gracefully shuts down the API server, waiting up to ten seconds
// for in-flight requests.
func (s *Server) Close() error {
	if s.server == nil {
		return nil
	}

	if s.cancel != nil {
		s.cancel()
	}

	ctx, cancel := context.WithTimeout(context.Background(), gracefulShutdownTimeout)
	defer cancel()

	s.logger.Info("API server shutting down")
	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutting down API server: %w", err)
	}
	return nil
}
