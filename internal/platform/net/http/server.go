package http

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"warcdex/internal/platform/config"
	perr "warcdex/internal/platform/errors"
	"warcdex/internal/platform/logger"

	"github.com/go-chi/chi/v5"
)

// DefaultAddr keeps the status server on loopback unless ADDR says otherwise
const DefaultAddr = "127.0.0.1:9464"

// Server serves the status routes until its context ends
type Server struct {
	addr  string
	mux   *chi.Mux
	srv   *http.Server
	bound chan string
}

// NewServer reads ADDR from cfg, normally prefixed CORE_STATUS_, and installs mw
// ahead of any route
func NewServer(cfg config.Conf, mw ...func(http.Handler) http.Handler) *Server {
	m := chi.NewRouter()
	m.Use(mw...)
	addr := cfg.MayString("ADDR", DefaultAddr)
	return &Server{
		addr:  addr,
		mux:   m,
		srv:   &http.Server{Addr: addr, Handler: m, ReadHeaderTimeout: 10 * time.Second},
		bound: make(chan string, 1),
	}
}

// Router is where modules mount their routes
func (s *Server) Router() Router { return AdaptChi(s.mux) }

// Addr is the configured listen address
func (s *Server) Addr() string { return s.addr }

// Bound yields the listener address once Run has bound it, which matters with port 0
func (s *Server) Bound() <-chan string { return s.bound }

// Run serves until ctx is done or Shutdown is called
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return perr.Wrapf(err, perr.ErrorCodeUnavailable, "status listen %s", s.addr)
	}
	logger.Named("status").Info().Str("addr", ln.Addr().String()).Msg("status server listening")
	s.bound <- ln.Addr().String()

	stop := context.AfterFunc(ctx, func() {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.srv.Shutdown(sctx)
	})
	defer stop()

	if err := s.srv.Serve(ln); !errors.Is(err, http.ErrServerClosed) {
		return perr.Wrap(err, perr.ErrorCodeUnavailable, "status serve")
	}
	return nil
}

// Shutdown stops the server gracefully
func (s *Server) Shutdown(ctx context.Context) error { return s.srv.Shutdown(ctx) }
