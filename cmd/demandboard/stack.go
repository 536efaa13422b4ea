package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"github.com/jask/demandboard/internal/api"
	"github.com/jask/demandboard/internal/config"
	"github.com/jask/demandboard/internal/logging"
	"github.com/jask/demandboard/internal/refresh"
	"github.com/jask/demandboard/internal/store"
)

// clientStack is everything the polling commands share.
type clientStack struct {
	cfg      config.Config
	log      *logrus.Logger
	logFile  *os.File
	client   *api.Client
	stores   *store.Set
	registry *prometheus.Registry
}

// newClientStack loads config and builds the API client and stores. The
// board logs to the configured file; headless commands pass toStderr.
func newClientStack(toStderr bool) (*clientStack, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	st := &clientStack{cfg: cfg, registry: prometheus.NewRegistry()}
	level := logging.Level(cfg.Log.Level)
	if toStderr {
		st.log = logging.New(level, os.Stderr)
	} else if st.logFile, st.log, err = logging.FileLogger(level, cfg.Log.Path); err != nil {
		return nil, err
	}

	st.client = api.New(cfg.API.BaseURL,
		api.WithPaths(cfg.API.DemandBase, cfg.API.ProjectBase),
		api.WithPeersPath(cfg.API.PeersPath),
		api.WithTimeout(cfg.API.Timeout),
		api.WithLogger(st.log),
	)
	st.stores = store.NewSet(st.client, st.log)
	st.registry.MustRegister(collectors.NewGoCollector())
	return st, nil
}

func (st *clientStack) scheduler(notify refresh.NotifyFunc) *refresh.Scheduler {
	targets := make([]refresh.Target, 0, len(api.Kinds))
	for _, s := range st.stores.All() {
		targets = append(targets, s)
	}
	return refresh.New(targets,
		refresh.WithInterval(st.cfg.Refresh.Interval),
		refresh.WithNotify(notify),
		refresh.WithMetrics(refresh.NewMetrics(st.registry)),
		refresh.WithLogger(st.log),
	)
}

// serveMetrics exposes the registry when metrics.addr is set, until ctx ends.
func (st *clientStack) serveMetrics(ctx context.Context) {
	if st.cfg.Metrics.Addr == "" {
		return
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(st.registry, promhttp.HandlerOpts{}))
	srv := &http.Server{Addr: st.cfg.Metrics.Addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			st.log.WithError(err).Warn("metrics listener stopped")
		}
	}()
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()
	st.log.WithField("addr", st.cfg.Metrics.Addr).Info("serving metrics")
}

func (st *clientStack) Close() {
	if st.logFile != nil {
		_ = st.logFile.Close()
	}
}
