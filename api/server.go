// Package api 暴露追踪管理的 HTTP 控制面。
package api

import (
	"context"
	"time"

	"github.com/valyala/fasthttp"

	"github.com/sofiworker/mpcap/capture"
	"github.com/sofiworker/mpcap/logging"
)

type Server struct {
	mgr *capture.Manager
	log *logging.Logger
	srv *fasthttp.Server
}

type Option func(*Server)

func WithLogger(log *logging.Logger) Option {
	return func(s *Server) {
		if log != nil {
			s.log = log
		}
	}
}

func NewServer(mgr *capture.Manager, opts ...Option) *Server {
	s := &Server{
		mgr: mgr,
		log: logging.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.srv = &fasthttp.Server{
		Handler: s.handle,
		Name:    "mpcap",
	}
	return s
}

// Handler 返回统一入口，方便挂到外部 fasthttp Server 上。
func (s *Server) Handler() fasthttp.RequestHandler {
	return s.handle
}

func (s *Server) ListenAndServe(addr string) error {
	s.log.Infow("api listening", "addr", addr)
	return s.srv.ListenAndServe(addr)
}

func (s *Server) Shutdown(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return s.srv.ShutdownWithContext(shutdownCtx)
}
