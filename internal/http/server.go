package http

import (
	"context"
	"errors"
	"fmt"
	nethttp "net/http"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/paulexconde/surveydesk/internal/config"
	"github.com/paulexconde/surveydesk/internal/pkg/logger"
)

type Server struct {
	srv             *nethttp.Server
	log             *logger.Logger
	shutdownTimeout time.Duration
}

func NewServer(cfg config.ServerConfig, handler nethttp.Handler, log *logger.Logger) *Server {
	return &Server{
		srv: &nethttp.Server{
			Addr:         fmt.Sprintf(":%d", cfg.Port),
			Handler:      handler,
			ReadTimeout:  cfg.ReadTimeout,
			WriteTimeout: cfg.WriteTimeout,
		},
		log:             log,
		shutdownTimeout: cfg.ShutdownTimeout,
	}
}

// Run serves until ctx is cancelled, then drains in-flight requests.
func (s *Server) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		s.log.Info("Server running", "addr", s.srv.Addr)
		if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, nethttp.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
		defer cancel()

		s.log.Info("Shutting down server")
		return s.srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}
