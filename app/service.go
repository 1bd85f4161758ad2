// Package app wires configuration, storage, push delivery and the HTTP API
// into a runnable service.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	apidispatch "github.com/devsmilefactory/moversfinder-sub010/api/dispatch"
	"github.com/devsmilefactory/moversfinder-sub010/api/notify"
	"github.com/devsmilefactory/moversfinder-sub010/api/providers"
	"github.com/devsmilefactory/moversfinder-sub010/auth"
	"github.com/devsmilefactory/moversfinder-sub010/config"
	"github.com/devsmilefactory/moversfinder-sub010/core/dispatch"
	coremetrics "github.com/devsmilefactory/moversfinder-sub010/core/metrics"
	"github.com/devsmilefactory/moversfinder-sub010/core/model"
	coremon "github.com/devsmilefactory/moversfinder-sub010/core/monitoring"
	corepush "github.com/devsmilefactory/moversfinder-sub010/core/push"
	"github.com/devsmilefactory/moversfinder-sub010/infra/dedup"
	"github.com/devsmilefactory/moversfinder-sub010/infra/ingest"
	"github.com/devsmilefactory/moversfinder-sub010/infra/logger"
	inframetrics "github.com/devsmilefactory/moversfinder-sub010/infra/metrics"
	"github.com/devsmilefactory/moversfinder-sub010/infra/monitoring"
	infrapush "github.com/devsmilefactory/moversfinder-sub010/infra/push"
	"github.com/devsmilefactory/moversfinder-sub010/infra/store"
	"github.com/devsmilefactory/moversfinder-sub010/internal/eventbus"
	"github.com/devsmilefactory/moversfinder-sub010/jobs/retrysweep"
)

// Service orchestrates the dispatch manager, the optional ingest bridge and
// the HTTP API.
type Service struct {
	Manager *dispatch.Manager

	cfg     *config.Config
	store   *store.PostgresStore
	sender  corepush.Sender
	sink    coremetrics.MetricsSink
	bus     *eventbus.Bus
	guard   io.Closer
	source  ingest.Source
	monitor coremon.Monitor
	httpSrv *http.Server
	log     logger.Logger
}

// New creates a Service from the configuration.
func New(cfg *config.Config) (*Service, error) {
	logger.SetGlobalLevel(cfg.Logging.Level)
	logg := logger.New("service")

	monitor, err := monitoring.NewSentryMonitor(cfg.Sentry)
	if err != nil {
		return nil, fmt.Errorf("sentry: %w", err)
	}
	coremon.Init(monitor)

	st, err := store.Open(cfg.Database)
	if err != nil {
		return nil, err
	}

	sa, err := auth.LoadServiceAccount(cfg.Push.CredentialsFile)
	if err != nil {
		return nil, err
	}
	tokens, err := auth.NewManager(sa)
	if err != nil {
		return nil, err
	}
	sender, err := infrapush.NewFCMSenderWithClient(st, tokens, sa.ProjectID,
		logger.New("push"), &http.Client{Timeout: cfg.Push.Timeout()}, cfg.Push.SendEndpoint)
	if err != nil {
		return nil, err
	}

	sink, err := coremetrics.NewMetricsSink(cfg.Metrics.Sinks)
	if err != nil {
		return nil, fmt.Errorf("metrics sink: %w", err)
	}

	manager, err := dispatch.NewManager(st, st, st, dispatch.EligibilityFilter{},
		sender, cfg.Dispatch.DeliveryTimeout(), sink, logger.New("dispatch"))
	if err != nil {
		return nil, fmt.Errorf("dispatch manager: %w", err)
	}
	manager.SetBroadcastRadius(cfg.Dispatch.DefaultRadiusKm)
	manager.SetBroadcastStatuses(broadcastStatuses(cfg.Dispatch.BroadcastStatuses))

	bus := eventbus.New()
	manager.SetEventBus(bus)

	svc := &Service{Manager: manager, cfg: cfg, store: st, sender: sender, sink: sink, bus: bus, monitor: monitor, log: logg}

	if cfg.Dedup.Enabled {
		switch cfg.Dedup.Backend {
		case "memory":
			guard := dedup.NewMemoryGuard(cfg.Dedup.TTL())
			svc.guard = guard
			manager.SetDedupGuard(guard)
		default:
			pingCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			guard, err := dedup.NewRedisGuard(pingCtx, cfg.Dedup.Addr, cfg.Dedup.Password, cfg.Dedup.DB, cfg.Dedup.TTL())
			cancel()
			if err != nil {
				return nil, fmt.Errorf("dedup guard: %w", err)
			}
			svc.guard = guard
			manager.SetDedupGuard(guard)
		}
	}

	switch cfg.Ingest.Source {
	case "", "none":
	case "mqtt":
		src, err := ingest.NewMQTTSource(cfg.Ingest.MQTT, manager.HandleEvent, sink, logger.New("ingest"))
		if err != nil {
			return nil, fmt.Errorf("mqtt source: %w", err)
		}
		svc.source = src
	case "kafka":
		src, err := ingest.NewKafkaSource(cfg.Ingest.Kafka, manager.HandleEvent, sink, logger.New("ingest"))
		if err != nil {
			return nil, fmt.Errorf("kafka source: %w", err)
		}
		svc.source = src
	}

	mux := notify.NewMux(manager, st, logger.New("api"))
	mux.Handle("/api/dispatch/logs", apidispatch.NewLogHandler(st, cfg.HTTP.OpsToken))
	mux.Handle("/api/providers/nearby", requireBearer(cfg.HTTP.OpsToken,
		providers.NewNearbyHandler(st, cfg.Dispatch.DefaultRadiusKm)))
	svc.httpSrv = &http.Server{
		Addr:         cfg.HTTP.Address,
		Handler:      mux,
		ReadTimeout:  cfg.HTTP.ReadTimeout(),
		WriteTimeout: cfg.HTTP.WriteTimeout(),
	}
	return svc, nil
}

// Sweep re-attempts undelivered notifications through the push gateway. It
// backs the sweep subcommand and is safe to run while the service serves.
func (s *Service) Sweep(ctx context.Context, maxRetries, limit int) (retrysweep.Result, error) {
	sw, err := retrysweep.New(s.store, s.sender, logger.New("retrysweep"))
	if err != nil {
		return retrysweep.Result{}, err
	}
	return sw.Sweep(ctx, maxRetries, limit)
}

// requireBearer guards an operator endpoint when a token is configured.
func requireBearer(token string, next http.Handler) http.Handler {
	if token == "" {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer "+token {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// broadcastStatuses parses the configured status names, dropping unknown ones.
func broadcastStatuses(names []string) map[model.RideStatus]bool {
	out := make(map[model.RideStatus]bool, len(names))
	for _, n := range names {
		if st := model.ParseRideStatus(n); st != model.StatusUnknown {
			out[st] = true
		}
	}
	return out
}

// Run starts the service and blocks until the context is cancelled or the
// listener fails.
func (s *Service) Run(ctx context.Context) error {
	if err := s.store.Ping(ctx); err != nil {
		return fmt.Errorf("database ping: %w", err)
	}
	inframetrics.StartEventCollector(ctx, s.bus, s.sink)
	if s.source != nil {
		go func() {
			defer coremon.Recover()
			if err := s.source.Run(ctx); err != nil {
				s.log.Errorf("ingest source: %v", err)
			}
		}()
	}
	if s.cfg.Metrics.PrometheusEnabled() {
		go func() {
			defer coremon.Recover()
			if err := inframetrics.StartPromServer(ctx, s.cfg.Metrics.PrometheusPort); err != nil {
				s.log.Errorf("prom server: %v", err)
			}
		}()
	}

	errCh := make(chan error, 1)
	go func() {
		defer coremon.Recover()
		if err := s.httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()
	s.log.Infof("listening on %s", s.cfg.HTTP.Address)

	select {
	case <-ctx.Done():
	case err := <-errCh:
		return err
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.httpSrv.Shutdown(shutdownCtx)
}

// Close releases resources held by the service.
func (s *Service) Close() error {
	var errs []error
	if s.source != nil {
		errs = append(errs, s.source.Close())
	}
	if s.bus != nil {
		s.bus.Close()
	}
	if s.guard != nil {
		errs = append(errs, s.guard.Close())
	}
	if s.store != nil {
		errs = append(errs, s.store.Close())
	}
	if s.monitor != nil {
		s.monitor.Flush(2 * time.Second)
	}
	return errors.Join(errs...)
}
