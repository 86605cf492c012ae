package serving_agent

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/garr-ai/garr/pkg/logging"
)

type ServingAgent struct {
	logger    logging.Interface
	Config    Config
	predictor *Predictor
	server    *http.Server
}

// NewServingAgent builds the HTTP server around an already loaded predictor.
func NewServingAgent(config *Config, predictor *Predictor) (*ServingAgent, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	router := NewRouter(predictor, config.ZapLogger, prometheus.NewRegistry(), config.RequestLogger)

	return &ServingAgent{
		logger:    config.AnotherLogger,
		Config:    *config,
		predictor: predictor,
		server: &http.Server{
			Addr:              config.Addr(),
			Handler:           router,
			ReadHeaderTimeout: config.ReadHeaderTimeout,
			ErrorLog:          zap.NewStdLog(config.ZapLogger),
		},
	}, nil
}

// Start serves until SIGINT or SIGTERM, then shuts down gracefully.
func (s *ServingAgent) Start() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	ln, err := net.Listen("tcp", s.server.Addr)
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}

// Serve accepts connections on ln until ctx is done.
func (s *ServingAgent) Serve(ctx context.Context, ln net.Listener) error {
	s.logger.Infof("Serving predictions on %s (device %s, max length %d)",
		ln.Addr(), s.predictor.Device(), s.predictor.MaxLength())

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- s.server.Serve(ln)
	}()

	select {
	case err := <-serveErr:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		s.logger.Info("Termination signal received, shutting down serving agent ...")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.Config.ShutdownTimeout)
	defer cancel()
	if err := s.server.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-serveErr; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
