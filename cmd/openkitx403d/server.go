package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/go-redis/redis/v8"
	"github.com/jmhodges/clock"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/openkitx403/openkitx403/core"
	"github.com/openkitx403/openkitx403/httpserver"
	"github.com/openkitx403/openkitx403/log"
	"github.com/openkitx403/openkitx403/metrics"
	"github.com/openkitx403/openkitx403/replay"
	"github.com/openkitx403/openkitx403/verify"
)

// Server owns the demo resource this binary protects, the middleware
// guarding it, and the live core.Config that middleware reads on every
// request. Grounded on cmd/shell.go's AppShell pattern
// (_examples/sheurich-boulder, now deleted from this tree per DESIGN.md)
// for the overall build-then-serve shape, and on
// internal/design/watcher.go's fsnotify debounce for config hot-reload.
type Server struct {
	logger      *log.Logger
	scope       metrics.Scope
	clk         clock.Clock
	cfgFile     string
	cfgPtr      atomic.Pointer[core.Config]
	watcher     *fsnotify.Watcher
	replayDB    *sql.DB
	tokenGate   core.TokenGate
	listenAddr  string
	metricsAddr string
}

// NewServer builds a Server from the config file at cfgFile (empty means
// defaults + environment only).
func NewServer(cfgFile string) (*Server, error) {
	fc, err := LoadConfig(cfgFile)
	if err != nil {
		return nil, err
	}

	logger, err := log.New(log.Config{Level: log.Level(fc.LogLevel), Output: fc.LogOutput})
	if err != nil {
		return nil, fmt.Errorf("server: %w", err)
	}

	s := &Server{
		logger:      logger,
		scope:       metrics.NewPromScope(prometheus.DefaultRegisterer, "openkitx403d"),
		clk:         clock.Default(),
		cfgFile:     cfgFile,
		listenAddr:  fc.ListenAddr,
		metricsAddr: fc.MetricsAddr,
	}

	store, err := s.buildReplayStore(fc)
	if err != nil {
		return nil, err
	}

	cfg := fc.ToCoreConfig(store, s.tokenGate)
	s.cfgPtr.Store(&cfg)

	if cfgFile != "" {
		if err := s.watchConfig(); err != nil {
			logger.Warning("config hot-reload disabled: " + err.Error())
		}
	}

	return s, nil
}

func (s *Server) buildReplayStore(fc FileConfig) (core.ReplayStore, error) {
	switch fc.ReplayBackend {
	case "", "memory":
		return replay.NewLRU(s.clk, fc.ReplayMaxEntries)
	case "redis":
		opts, err := redis.ParseURL(fc.ReplayDSN)
		if err != nil {
			return nil, fmt.Errorf("server: parsing replay_dsn as redis URL: %w", err)
		}
		return replay.NewRedisStore(redis.NewClient(opts), "openkitx403:replay:"), nil
	case "mysql":
		db, err := sql.Open("mysql", fc.ReplayDSN)
		if err != nil {
			return nil, fmt.Errorf("server: opening mysql replay store: %w", err)
		}
		s.replayDB = db
		return replay.NewSQLStore(db, replay.DialectMySQL, s.clk, "openkitx403_replay"), nil
	case "sqlite":
		db, err := sql.Open("sqlite3", fc.ReplayDSN)
		if err != nil {
			return nil, fmt.Errorf("server: opening sqlite replay store: %w", err)
		}
		s.replayDB = db
		return replay.NewSQLStore(db, replay.DialectSQLite, s.clk, "openkitx403_replay"), nil
	default:
		return nil, fmt.Errorf("server: unknown replay_backend %q", fc.ReplayBackend)
	}
}

// watchConfig reloads s.cfgFile on write events and atomically swaps the
// live core.Config, matching spec.md §9's "configuration objects are
// immutable value types... downstream code takes a read-only handle" —
// the swap replaces the whole value, nothing is mutated in place.
func (s *Server) watchConfig() error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	if err := w.Add(s.cfgFile); err != nil {
		w.Close()
		return err
	}
	s.watcher = w

	go func() {
		for {
			select {
			case ev, ok := <-w.Events:
				if !ok {
					return
				}
				if ev.Op&(fsnotify.Write|fsnotify.Create) == 0 {
					continue
				}
				fc, err := LoadConfig(s.cfgFile)
				if err != nil {
					s.logger.Warning("config reload failed, keeping previous config: " + err.Error())
					continue
				}
				cfg := fc.ToCoreConfig(s.cfgPtr.Load().ReplayStore, s.tokenGate)
				s.cfgPtr.Store(&cfg)
				s.logger.Notice("config reloaded from " + s.cfgFile)
			case err, ok := <-w.Errors:
				if !ok {
					return
				}
				s.logger.AuditErr("config watcher error", err)
			}
		}
	}()
	return nil
}

// liveConfig is the config function handed to verify.NewDynamic and
// httpserver.NewMiddlewareDynamic: each call reads the current atomically-swapped Config
// rather than a stale copy captured at startup.
func (s *Server) liveConfig() core.Config {
	return *s.cfgPtr.Load()
}

// protectedHandler builds the demo resource's handler chain exactly once:
// verify.NewDynamic/httpserver.NewMiddlewareDynamic read s.liveConfig() on
// every call instead of capturing a snapshot, so config hot-reload takes
// effect without rebuilding the Verifier (and re-registering its scope's
// Prometheus collectors, which would panic on the second request — a
// fresh Verifier, and so a fresh metrics.Scope, must not be built per
// request). Split out of Run so tests can drive it without binding a port.
func (s *Server) protectedHandler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/resource", func(w http.ResponseWriter, r *http.Request) {
		addr, _ := httpserver.AddressFromContext(r.Context())
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"ok":true,"address":%q}`, addr)
	})

	v := verify.NewDynamic(s.liveConfig, s.clk, s.scope)
	mw := httpserver.NewMiddlewareDynamic(s.liveConfig, s.clk, v, s.logger)
	mw.SetAddressHeader = true
	return mw.RequireAuth(mux)
}

// Run starts the protected demo resource and the Prometheus metrics
// endpoint, blocking until ctx is cancelled (typically by SIGINT/SIGTERM),
// then shuts both down gracefully.
func (s *Server) Run(ctx context.Context, listenAddr, metricsAddr string) error {
	if listenAddr == "" {
		listenAddr = s.listenAddr
	}
	if metricsAddr == "" {
		metricsAddr = s.metricsAddr
	}

	resourceSrv := &http.Server{
		Addr:    listenAddr,
		Handler: otelhttp.NewHandler(s.protectedHandler(), "openkitx403d"),
	}

	metricsMux := http.NewServeMux()
	metricsMux.Handle("/metrics", promhttp.Handler())
	metricsSrv := &http.Server{Addr: metricsAddr, Handler: metricsMux}

	errc := make(chan error, 2)
	go func() { errc <- resourceSrv.ListenAndServe() }()
	go func() { errc <- metricsSrv.ListenAndServe() }()

	s.logger.Notice(fmt.Sprintf("listening on %s (metrics on %s)", listenAddr, metricsAddr))

	select {
	case <-ctx.Done():
	case err := <-errc:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.AuditErr("server exited unexpectedly", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = resourceSrv.Shutdown(shutdownCtx)
	_ = metricsSrv.Shutdown(shutdownCtx)
	if s.watcher != nil {
		s.watcher.Close()
	}
	if s.replayDB != nil {
		s.replayDB.Close()
	}
	s.logger.Notice("shutdown complete")
	return nil
}

// NotifyContext returns a context cancelled on SIGINT or SIGTERM, for
// main's call to Run.
func NotifyContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}
