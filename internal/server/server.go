package server

import (
	"context"
	"net/http"
	"time"

	"github.com/hashicorp/go-hclog"
)

// Server wraps the key-derivation HTTP listener with graceful shutdown.
type Server struct {
	http *http.Server
	log  hclog.Logger
}

func New(addr string, handler http.Handler, log hclog.Logger) *Server {
	return &Server{
		http: &http.Server{Addr: addr, Handler: handler},
		log:  log.Named("http"),
	}
}

func (s *Server) Start() error {
	s.log.Info("listening", "addr", s.http.Addr)
	return s.http.ListenAndServe()
}

func (s *Server) Stop(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	s.log.Info("shutting down")
	return s.http.Shutdown(ctx)
}
