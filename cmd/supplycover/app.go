package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/Spok95/supplycover/internal/cache"
	"github.com/Spok95/supplycover/internal/config"
	"github.com/Spok95/supplycover/internal/domain/catalog"
	"github.com/Spok95/supplycover/internal/domain/commitments"
	"github.com/Spok95/supplycover/internal/domain/consumption"
	"github.com/Spok95/supplycover/internal/domain/inventory"
	"github.com/Spok95/supplycover/internal/engine"
	"github.com/Spok95/supplycover/internal/infra/db"
	"github.com/Spok95/supplycover/internal/infra/dw"
	"github.com/Spok95/supplycover/internal/infra/logger"
	"github.com/Spok95/supplycover/internal/infra/metrics"
	"github.com/Spok95/supplycover/internal/infra/tracing"
)

// app - собранные зависимости процесса. Close освобождает их в обратном порядке.
type app struct {
	cfg      config.Config
	log      *slog.Logger
	appPool  *pgxpool.Pool
	dwPool   *pgxpool.Pool
	store    *cache.Store
	engine   *engine.Engine
	metrics  *metrics.Metrics
	registry *prometheus.Registry
	tracing  tracing.Shutdown
}

func loadConfig(path string) (config.Config, *slog.Logger, error) {
	cfg, err := config.Load(path)
	if err != nil {
		return cfg, nil, err
	}
	return cfg, logger.New(cfg.App.Env), nil
}

func bootstrap(ctx context.Context, cfgPath string) (*app, error) {
	cfg, log, err := loadConfig(cfgPath)
	if err != nil {
		return nil, err
	}
	a := &app{cfg: cfg, log: log}

	a.tracing, err = tracing.Setup(ctx, cfg.Tracing, cfg.App.Env, log)
	if err != nil {
		return nil, fmt.Errorf("tracing: %w", err)
	}

	a.registry = prometheus.NewRegistry()
	a.registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	a.metrics = metrics.New(a.registry)

	a.appPool, err = db.Connect(ctx, cfg.Postgres.DSN, cfg.Postgres.Pool)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("app db: %w", err)
	}
	log.Info("app db connected")

	dwDSN := cfg.DW.DSN
	if dwDSN == "" {
		dwDSN = cfg.Postgres.DSN
	}
	a.dwPool, err = db.Connect(ctx, dwDSN, cfg.DW.Pool)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("dw: %w", err)
	}
	log.Info("dw connected", "schema", cfg.DW.Layout.Schema)

	a.store = cache.New(cache.Options{
		MaxSize:       cfg.Cache.MaxSize,
		DefaultTTL:    cfg.Cache.DefaultTTL,
		SweepInterval: cfg.Cache.SweepInterval,
		Recorder:      a.metrics,
		Log:           log,
	})

	layout := cfg.DW.Layout.WithDefaults()
	br := dw.NewBreaker("dw", cfg.DW.Breaker, log)
	cat := catalog.NewRepo(a.appPool)
	a.engine = engine.New(engine.Sources{
		Catalog:     cat,
		Notes:       cat,
		History:     cat,
		Consumption: consumption.NewRepo(a.dwPool, layout, br),
		Stock:       inventory.NewRepo(a.dwPool, layout, br),
		Commitments: commitments.NewRepo(a.appPool, cfg.Commitments),
	}, a.store, cfg.Engine,
		engine.WithLogger(log),
		engine.WithRecorder(a.metrics),
		engine.WithPolicy(policyFrom(cfg)),
		engine.WithClock(clockIn(cfg.Location())),
	)
	return a, nil
}

func policyFrom(cfg config.Config) cache.Policy {
	p := cache.DefaultPolicy()
	if cfg.Cache.DefaultTTL > 0 {
		p.Default = cfg.Cache.DefaultTTL
	}
	for ns, ttl := range cfg.Cache.TTLs {
		if ttl > 0 {
			p.TTLs[ns] = ttl
		}
	}
	return p
}

func clockIn(loc *time.Location) func() time.Time {
	return func() time.Time { return time.Now().In(loc) }
}

func (a *app) Close() {
	if a.store != nil {
		a.store.Stop()
	}
	if a.dwPool != nil {
		a.dwPool.Close()
	}
	if a.appPool != nil {
		a.appPool.Close()
	}
	if a.tracing != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := a.tracing(ctx); err != nil {
			a.log.Warn("tracing shutdown", "err", err)
		}
	}
}
