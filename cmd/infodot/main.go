// Command infodot serves the InfoDot Q&A API over a tag-invalidated read
// cache.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/unkn0wn-root/tagcache/internal/broadcast"
	"github.com/unkn0wn-root/tagcache/internal/config"
	"github.com/unkn0wn-root/tagcache/internal/httpapi"
	"github.com/unkn0wn-root/tagcache/internal/queries"
	"github.com/unkn0wn-root/tagcache/internal/repository"
)

func main() {
	path := flag.String("config", os.Getenv("INFODOT_CONFIG"), "path to a YAML config file")
	flag.Parse()

	cfg, err := config.Load(*path)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	level := zap.NewAtomicLevel()
	log, err := newLogger(cfg.Log, level)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	defer func() { _ = log.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, *path, log, level); err != nil {
		log.Error("infodot stopped", zap.Error(err))
		os.Exit(1)
	}
}

func newLogger(c config.Log, level zap.AtomicLevel) (*zap.Logger, error) {
	lvl, err := zapcore.ParseLevel(c.Level)
	if err != nil {
		return nil, fmt.Errorf("log.level: %w", err)
	}
	level.SetLevel(lvl)
	zc := zap.NewProductionConfig()
	if c.Development {
		zc = zap.NewDevelopmentConfig()
	}
	zc.Level = level
	return zc.Build()
}

func run(ctx context.Context, cfg config.Config, path string, log *zap.Logger, level zap.AtomicLevel) error {
	var rdb goredis.UniversalClient
	if cfg.NeedsRedis() {
		rdb = goredis.NewClient(&goredis.Options{Addr: cfg.Redis.Addr, Password: cfg.Redis.Password, DB: cfg.Redis.DB})
		defer rdb.Close()
		if err := rdb.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("redis %s: %w", cfg.Redis.Addr, err)
		}
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	cs, closeHooks, err := buildCache(ctx, cfg, rdb, reg, log)
	if err != nil {
		return err
	}
	defer func() {
		closeHooks()
		_ = cs.Close(context.Background())
	}()

	db, err := buildStore(ctx, cfg.Store, log)
	if err != nil {
		return err
	}
	svc, err := queries.New(db, cs, cfg.Cache.Codec, log)
	if err != nil {
		return err
	}

	hub := broadcast.NewHub(log)
	go hub.Run()
	defer hub.Stop()

	pub, err := buildPublisher(ctx, cfg, rdb, hub, log)
	if err != nil {
		return err
	}
	async := broadcast.NewAsync(pub, cfg.Broadcast.Queue, cfg.Broadcast.Timeout, log)
	defer async.Close()

	repo := repository.New(db, cs, async, log)

	if cfg.Cache.WarmUp {
		go func() {
			if err := svc.WarmUp(ctx); err != nil {
				log.Warn("cache warm-up incomplete", zap.Error(err))
			}
		}()
	}
	if path != "" {
		go func() {
			err := config.Watch(ctx, path, log, func(c config.Config) {
				if lvl, err := zapcore.ParseLevel(c.Log.Level); err == nil {
					level.SetLevel(lvl)
				}
			})
			if err != nil {
				log.Warn("config watch disabled", zap.Error(err))
			}
		}()
	}

	api := httpapi.New(httpapi.Deps{
		Queries:        svc,
		Repo:           repo,
		Log:            log,
		AllowedOrigins: cfg.HTTP.AllowedOrigins,
		WS:             http.HandlerFunc(hub.ServeWS),
		Metrics:        promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
		Health: func(ctx context.Context) error {
			if rdb == nil {
				return nil
			}
			return rdb.Ping(ctx).Err()
		},
	})
	srv := &http.Server{
		Addr:         cfg.HTTP.Addr,
		Handler:      api.Routes(),
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
	}

	errc := make(chan error, 1)
	go func() {
		log.Info("listening", zap.String("addr", cfg.HTTP.Addr),
			zap.String("cache", cfg.Cache.Provider),
			zap.String("store", cfg.Store.Kind))
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	shutdown, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer cancel()
	log.Info("shutting down")
	return srv.Shutdown(shutdown)
}
