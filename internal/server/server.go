// Package server exposes the explanation pipeline over HTTP.
package server

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"slime/internal/config"
	"slime/internal/dataset"
	"slime/internal/pipeline"
	"slime/internal/store"
)

// Server serves explanations over HTTP.
type Server struct {
	cfg            *config.Config
	log            *zap.Logger
	pipe           *pipeline.Pipeline
	runs           *store.Store
	metrics        *Metrics
	metricsHandler http.Handler
	engine         *gin.Engine

	mu         sync.RWMutex
	background *dataset.Dataset
}

// New builds the server on the process default metrics registry. runs
// may be nil to disable persistence.
func New(cfg *config.Config, log *zap.Logger, runs *store.Store) (*Server, error) {
	return NewWithRegistry(cfg, log, runs, nil)
}

// NewWithRegistry registers the metrics on reg instead of the process
// default registry. A nil reg selects the default.
func NewWithRegistry(cfg *config.Config, log *zap.Logger, runs *store.Store, reg *prometheus.Registry) (*Server, error) {
	if log == nil {
		log = zap.NewNop()
	}
	gin.SetMode(gin.ReleaseMode)

	var metrics *Metrics
	var metricsHandler http.Handler
	if reg != nil {
		metrics = NewMetrics(reg)
		metricsHandler = promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
	} else {
		metrics = InitMetrics()
		metricsHandler = promhttp.Handler()
	}

	s := &Server{
		cfg:            cfg,
		log:            log,
		pipe:           pipeline.New(cfg, log),
		runs:           runs,
		metrics:        metrics,
		metricsHandler: metricsHandler,
	}

	if cfg.Server.Dataset != "" {
		if err := s.reloadDataset(); err != nil {
			return nil, err
		}
	}

	engine := gin.New()
	engine.Use(gin.Recovery())
	s.routes(engine)
	s.engine = engine
	return s, nil
}

func (s *Server) routes(r *gin.Engine) {
	r.GET("/healthz", s.handleHealth)
	r.GET("/metrics", gin.WrapH(s.metricsHandler))

	v1 := r.Group("/v1")
	{
		v1.POST("/explain", s.handleExplain)
		v1.POST("/explain/background", s.handleExplainBackground)
		v1.GET("/runs", s.handleListRuns)
		v1.GET("/runs/:id", s.handleGetRun)
		v1.DELETE("/runs/:id", s.handleDeleteRun)
	}
}

// Handler exposes the router for tests.
func (s *Server) Handler() http.Handler { return s.engine }

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:    s.cfg.Server.Addr,
		Handler: s.engine,
	}

	watchCtx, cancelWatch := context.WithCancel(ctx)
	defer cancelWatch()
	if s.cfg.Server.Dataset != "" {
		if err := s.watchDataset(watchCtx); err != nil {
			return err
		}
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info("http server listening", zap.String("addr", s.cfg.Server.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return <-errCh
}

// reloadDataset loads the background dataset from disk.
func (s *Server) reloadDataset() error {
	d, err := dataset.Load(s.cfg.Server.Dataset, s.cfg.Server.LabelColumn)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.background = d
	s.mu.Unlock()
	rows, cols := d.X.Dims()
	s.log.Info("background dataset loaded",
		zap.String("path", s.cfg.Server.Dataset),
		zap.Int("rows", rows),
		zap.Int("features", cols))
	return nil
}

// watchDataset hot-reloads the background dataset when the file
// changes on disk.
func (s *Server) watchDataset(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	if err := watcher.Add(s.cfg.Server.Dataset); err != nil {
		watcher.Close()
		return err
	}

	go func() {
		defer watcher.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-watcher.Events:
				if !ok {
					return
				}
				if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) {
					continue
				}
				if err := s.reloadDataset(); err != nil {
					s.log.Warn("dataset reload failed", zap.Error(err))
					continue
				}
				s.metrics.DatasetReloadsTotal.Inc()
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				s.log.Warn("dataset watcher error", zap.Error(err))
			}
		}
	}()
	return nil
}
