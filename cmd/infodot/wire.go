package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/eventbridge"
	"github.com/prometheus/client_golang/prometheus"
	goredis "github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"github.com/unkn0wn-root/tagcache"
	asynchook "github.com/unkn0wn-root/tagcache/hooks/async"
	promhooks "github.com/unkn0wn-root/tagcache/hooks/prom"
	sloghooks "github.com/unkn0wn-root/tagcache/hooks/slog"
	"github.com/unkn0wn-root/tagcache/internal/broadcast"
	"github.com/unkn0wn-root/tagcache/internal/config"
	"github.com/unkn0wn-root/tagcache/internal/queries"
	"github.com/unkn0wn-root/tagcache/internal/store"
	"github.com/unkn0wn-root/tagcache/internal/store/dynamo"
	memstore "github.com/unkn0wn-root/tagcache/internal/store/memory"
	logruslog "github.com/unkn0wn-root/tagcache/log/logrus"
	slogslog "github.com/unkn0wn-root/tagcache/log/slog"
	zaplog "github.com/unkn0wn-root/tagcache/log/zap"
	pr "github.com/unkn0wn-root/tagcache/provider"
	"github.com/unkn0wn-root/tagcache/provider/bigcache"
	"github.com/unkn0wn-root/tagcache/provider/breaker"
	"github.com/unkn0wn-root/tagcache/provider/memory"
	redisprovider "github.com/unkn0wn-root/tagcache/provider/redis"
	"github.com/unkn0wn-root/tagcache/provider/ristretto"
	ti "github.com/unkn0wn-root/tagcache/tagindex"
)

// buildCache assembles the cache store. The returned func stops hook workers.
func buildCache(ctx context.Context, cfg config.Config, rdb goredis.UniversalClient, reg prometheus.Registerer, log *zap.Logger) (*tagcache.Store, func(), error) {
	p, err := buildProvider(ctx, cfg.Cache, rdb, log)
	if err != nil {
		return nil, nil, err
	}

	var index ti.TagIndex
	if cfg.Cache.Index == "redis" {
		index = ti.NewRedis(rdb, cfg.Cache.Namespace)
	}

	clog, slogger, err := cacheLogger(cfg.Log, log)
	if err != nil {
		return nil, nil, err
	}

	var hooks tagcache.MultiHooks
	if cfg.Metrics.Enabled {
		ph, err := promhooks.New(promhooks.Options{Namespace: cfg.Metrics.Namespace, Registerer: reg, Classify: queries.OpLabel})
		if err != nil {
			return nil, nil, fmt.Errorf("metrics: %w", err)
		}
		hooks = append(hooks, ph)
	}
	if slogger != nil {
		hooks = append(hooks, sloghooks.New(slogger, sloghooks.Options{SelfHealEvery: 100, ProviderErrorEvery: 100}))
	}

	var h tagcache.Hooks = hooks
	stop := func() {}
	if cfg.Cache.HookQueue > 0 && len(hooks) > 0 {
		ah := asynchook.New(hooks, 1, cfg.Cache.HookQueue)
		h, stop = ah, ah.Close
	}

	cs, err := tagcache.NewStore(tagcache.Options{
		Namespace:    cfg.Cache.Namespace,
		Provider:     p,
		TagIndex:     index,
		Logger:       clog,
		Hooks:        h,
		DefaultTTL:   cfg.Cache.DefaultTTL,
		Disabled:     cfg.Cache.Disabled,
		SingleFlight: cfg.Cache.SingleFlight,
		FailClosed:   cfg.Cache.FailClosed,
	})
	if err != nil {
		stop()
		_ = p.Close(ctx)
		return nil, nil, err
	}
	return cs, stop, nil
}

func buildProvider(ctx context.Context, c config.Cache, rdb goredis.UniversalClient, log *zap.Logger) (pr.Provider, error) {
	var (
		p   pr.Provider
		err error
	)
	switch c.Provider {
	case "memory":
		p = memory.New(memory.Config{MaxEntries: c.MaxEntries, SweepInterval: time.Minute})
	case "ristretto":
		p, err = ristretto.New(ristretto.DefaultConfig(int64(c.MaxEntries)))
	case "bigcache":
		// bigcache expires by a global window; the longest policy TTL bounds it
		p, err = bigcache.New(ctx, bigcache.Config{
			LifeWindow:         time.Hour,
			CleanWindow:        time.Minute,
			MaxEntriesInWindow: c.MaxEntries,
			HardMaxCacheSizeMB: c.MaxSizeMB,
		})
	case "redis":
		p, err = redisprovider.New(redisprovider.Config{Client: rdb})
	default:
		return nil, fmt.Errorf("unknown cache provider %q", c.Provider)
	}
	if err != nil {
		return nil, fmt.Errorf("cache provider %s: %w", c.Provider, err)
	}
	if !c.Breaker.Enabled {
		return p, nil
	}
	bc := breaker.DefaultConfig("cache-" + c.Provider)
	bc.FailureThreshold = c.Breaker.FailureThreshold
	bc.MinRequests = c.Breaker.MinRequests
	bc.Timeout = c.Breaker.Timeout
	bc.OnStateChange = func(name string, from, to gobreaker.State) {
		log.Warn("cache breaker", zap.String("name", name), zap.Stringer("from", from), zap.Stringer("to", to))
	}
	return breaker.New(p, bc), nil
}

// cacheLogger adapts the configured logging library for the cache. For slog
// it also returns the logger so hooks can share it.
func cacheLogger(c config.Log, log *zap.Logger) (tagcache.Logger, *slog.Logger, error) {
	switch c.Kind {
	case "logrus":
		l := logrus.New()
		l.SetFormatter(&logrus.JSONFormatter{})
		lvl, err := logrus.ParseLevel(c.Level)
		if err != nil {
			return nil, nil, fmt.Errorf("log.level: %w", err)
		}
		l.SetLevel(lvl)
		return logruslog.New(l), nil, nil
	case "slog":
		var lvl slog.Level
		if err := lvl.UnmarshalText([]byte(c.Level)); err != nil {
			return nil, nil, fmt.Errorf("log.level: %w", err)
		}
		l := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
		return slogslog.New(l), l, nil
	default:
		return zaplog.New(log), nil, nil
	}
}

func buildStore(ctx context.Context, c config.Store, log *zap.Logger) (store.Store, error) {
	if c.Kind == "dynamodb" {
		db, err := dynamo.Open(ctx, c.Region, c.Endpoint, c.Table, log)
		if err != nil {
			return nil, err
		}
		return db, nil
	}
	return memstore.New(), nil
}

// buildPublisher picks where creation events go. With Redis enabled the hub
// is fed by the relay, so every instance's clients see every event.
func buildPublisher(ctx context.Context, cfg config.Config, rdb goredis.UniversalClient, hub *broadcast.Hub, log *zap.Logger) (broadcast.Publisher, error) {
	pubs := broadcast.Multi{}
	if cfg.Broadcast.Redis {
		rp := broadcast.NewRedis(rdb, "")
		pubs = append(pubs, rp)
		go func() {
			if err := rp.Relay(ctx, hub); err != nil {
				log.Error("broadcast relay stopped", zap.Error(err))
			}
		}()
	} else {
		pubs = append(pubs, hub)
	}
	if cfg.Broadcast.EventBus != "" {
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.Store.Region))
		if err != nil {
			return nil, fmt.Errorf("load aws config: %w", err)
		}
		client := eventbridge.NewFromConfig(awsCfg)
		pubs = append(pubs, broadcast.NewEventBridge(client, cfg.Broadcast.EventBus, cfg.Broadcast.Source))
	}
	return pubs, nil
}
