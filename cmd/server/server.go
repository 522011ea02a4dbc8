package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/Leegeev/topicbroker/pkg/config"
	"github.com/Leegeev/topicbroker/pkg/subpub"
)

const metricsShutdownTimeout = 5 * time.Second

var errBrokerStopped = errors.New("broker stopped before shutdown was requested")

// server ties the broker to its optional metrics endpoint and to the
// process lifetime.
type server struct {
	broker          *subpub.Broker
	metrics         *http.Server
	metricsLn       net.Listener
	shutdownTimeout time.Duration
	logger          *slog.Logger
}

func newServer(cfg *config.Config, logger *slog.Logger) (*server, error) {
	s := &server{
		shutdownTimeout: time.Duration(cfg.Server.ShutdownTimeoutS) * time.Second,
		logger:          logger,
	}

	if cfg.Metrics.ListenAddr != "" {
		ln, err := net.Listen("tcp", cfg.Metrics.ListenAddr)
		if err != nil {
			return nil, fmt.Errorf("metrics listen on %s: %w", cfg.Metrics.ListenAddr, err)
		}
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		s.metrics = &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}
		s.metricsLn = ln
	}

	broker, err := subpub.Listen(cfg.Server.ListenAddr,
		subpub.WithLogger(logger),
		subpub.WithAcceptRate(rate.Limit(cfg.Server.AcceptRate), cfg.Server.AcceptBurst),
	)
	if err != nil {
		if s.metricsLn != nil {
			_ = s.metricsLn.Close()
		}
		return nil, err
	}
	s.broker = broker
	return s, nil
}

// run serves until ctx is done, then drains the broker. It also returns when
// the broker stops on its own or the metrics endpoint fails.
func (s *server) run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)

	if s.metrics != nil {
		s.logger.Info("metrics endpoint started", "addr", s.metricsLn.Addr().String())
		g.Go(func() error {
			if err := s.metrics.Serve(s.metricsLn); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("metrics server: %w", err)
			}
			return nil
		})
	}

	g.Go(func() error {
		var stopped error
		select {
		case <-gctx.Done():
			s.logger.Info("shutdown requested")
		case <-s.broker.Done():
			stopped = errBrokerStopped
		}

		s.broker.Shutdown()
		err := s.join()
		if err == nil {
			s.logger.Info("broker drained")
		}

		if s.metrics != nil {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), metricsShutdownTimeout)
			defer cancel()
			if mErr := s.metrics.Shutdown(shutdownCtx); mErr != nil {
				s.logger.Warn("metrics endpoint shutdown incomplete", "error", mErr)
			}
		}
		return errors.Join(stopped, err)
	})

	return g.Wait()
}

// join waits for the broker to drain, bounded by the shutdown timeout when
// one is configured.
func (s *server) join() error {
	ctx := context.Background()
	if s.shutdownTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.shutdownTimeout)
		defer cancel()
	}
	if err := s.broker.Join(ctx); err != nil {
		return fmt.Errorf("broker drain incomplete: %w", err)
	}
	return nil
}
