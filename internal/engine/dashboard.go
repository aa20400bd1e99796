package engine

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/Spok95/supplycover/internal/cache"
	"github.com/Spok95/supplycover/internal/domain/catalog"
	"github.com/Spok95/supplycover/internal/domain/consumption"
	"github.com/Spok95/supplycover/internal/domain/coverage"
	"github.com/Spok95/supplycover/internal/domain/inventory"
	"github.com/Spok95/supplycover/internal/domain/materials"
)

type Summary struct {
	TotalMaterials int `json:"total_materials"`
	NoRegistration int `json:"no_registration"`
	Attention      int `json:"attention"`
	Critical       int `json:"critical"`
}

// DashboardSummary проходит весь каталог пачками и считает только четыре счётчика.
func (e *Engine) DashboardSummary(ctx context.Context) (Summary, error) {
	ctx, span := e.tracer.Start(ctx, "engine.DashboardSummary")
	defer span.End()

	key := cache.DashboardKey()
	if s, ok := cache.Get[Summary](e.cache, key); ok {
		span.SetAttributes(attribute.Bool("cache.hit", true))
		return s, nil
	}

	total, err := e.src.Catalog.Count(ctx, catalog.Filters{})
	if err != nil {
		span.RecordError(err)
		return Summary{}, fmt.Errorf("%w: %w", ErrCatalogUnavailable, err)
	}

	now := e.now()
	window := consumption.Window(now)
	sum := Summary{TotalMaterials: total}
	batch := e.opts.DashboardBatch

	degraded := false
	for page := 1; ; page++ {
		items, err := e.src.Catalog.PageOnly(ctx, catalog.Filters{}, page, batch)
		if err != nil {
			span.RecordError(err)
			return Summary{}, fmt.Errorf("%w: %w", ErrCatalogUnavailable, err)
		}
		if len(items) == 0 {
			break
		}
		if e.accumulate(ctx, &sum, items, window, now) {
			degraded = true
		}
		if len(items) < batch {
			break
		}
	}

	span.SetAttributes(attribute.Int("materials", sum.TotalMaterials), attribute.Int("critical", sum.Critical))
	if degraded {
		span.SetAttributes(attribute.Bool("degraded", true))
		return sum, nil
	}
	e.cache.Set(key, sum, e.policy.TTLFor(key))
	return sum, nil
}

// accumulate добавляет пачку к счётчикам. true - пачка посчитана с отказавшим источником.
func (e *Engine) accumulate(ctx context.Context, sum *Summary, items []catalog.Item, window []consumption.Period, now time.Time) bool {
	codes := masters(items)
	if len(codes) == 0 {
		return false
	}
	var (
		totals = map[string]inventory.Totals{}
		regs   = map[string][]inventory.Registration{}
		series = map[string]consumption.Series{}
	)
	p := e.newPhase(ctx)
	fetch(p, SourceTotals, cache.TotalsKey(codes), &totals, func(ctx context.Context) (map[string]inventory.Totals, error) {
		return e.src.Stock.Totals(ctx, codes)
	})
	fetch(p, SourceRegistrations, cache.RegistrationsKey(codes), &regs, func(ctx context.Context) (map[string][]inventory.Registration, error) {
		return e.src.Stock.Registrations(ctx, codes)
	})
	fetch(p, SourceConsumption, cache.ConsumptionKey(codes, window), &series, func(ctx context.Context) (map[string]consumption.Series, error) {
		return e.src.Consumption.ByMastersAndMonths(ctx, codes, window)
	})
	p.wait(e.opts.FetchTimeout)

	for _, it := range items {
		k := materials.Key(it.Master)
		if k == "" {
			continue
		}
		a := assess(series[k], totals[k], inventory.FilterActive(regs[k], now), window)
		if len(a.active) == 0 {
			sum.NoRegistration++
		}
		switch a.status {
		case coverage.Attention:
			sum.Attention++
		case coverage.Critical:
			sum.Critical++
		}
	}
	return p.degraded()
}
