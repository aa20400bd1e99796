package engine

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"go.opentelemetry.io/otel/attribute"

	"github.com/Spok95/supplycover/internal/cache"
	"github.com/Spok95/supplycover/internal/domain/commitments"
	"github.com/Spok95/supplycover/internal/domain/consumption"
	"github.com/Spok95/supplycover/internal/domain/inventory"
)

// ActiveRegistration - действующая регистрация с расходом и запасом по её материалу.
type ActiveRegistration struct {
	Code        string `json:"code"`
	Description string `json:"description"`
	inventory.Registration
	Average      float64  `json:"average"`
	// Virtual - склад плюс ожидаемое поступление по строке витрины.
	Virtual      float64  `json:"virtual"`
	SupplyMonths *float64 `json:"supply_months"`
}

type ActiveRegistrations struct {
	Items  []ActiveRegistration `json:"items"`
	Months []consumption.Period `json:"months"`
}

// ActiveRegistrations собирает все действующие регистрации витрины. Без витрины ответа нет.
func (e *Engine) ActiveRegistrations(ctx context.Context) (ActiveRegistrations, error) {
	ctx, span := e.tracer.Start(ctx, "engine.ActiveRegistrations")
	defer span.End()

	key := cache.ActiveRegistrationsKey()
	if r, ok := cache.Get[ActiveRegistrations](e.cache, key); ok {
		span.SetAttributes(attribute.Bool("cache.hit", true))
		return r, nil
	}

	all, err := e.src.Stock.AllRegistrations(ctx)
	if err != nil {
		span.RecordError(err)
		e.sourceFailed(SourceAllRegistrations, err)
		return ActiveRegistrations{}, fmt.Errorf("%w: %w", ErrSourceUnavailable, err)
	}

	now := e.now()
	window := consumption.Window(now)
	active := make(map[string][]inventory.Registration, len(all))
	codes := make([]string, 0, len(all))
	for k, regs := range all {
		if act := inventory.FilterActive(regs, now); len(act) > 0 {
			active[k] = act
			codes = append(codes, k)
		}
	}
	sort.Strings(codes)
	out := ActiveRegistrations{Items: []ActiveRegistration{}, Months: window}
	if len(codes) == 0 {
		e.cache.Set(key, out, e.policy.TTLFor(key))
		return out, nil
	}

	var (
		desc   = map[string]string{}
		series = map[string]consumption.Series{}
	)
	p := e.newPhase(ctx)
	fetch(p, SourceDescriptions, cache.DescriptionsKey(codes), &desc, func(ctx context.Context) (map[string]string, error) {
		return e.src.Catalog.Descriptions(ctx, codes)
	})
	fetch(p, SourceConsumption, cache.ConsumptionKey(codes, window), &series, func(ctx context.Context) (map[string]consumption.Series, error) {
		return e.src.Consumption.ByMastersAndMonths(ctx, codes, window)
	})
	p.wait(e.opts.FetchTimeout)

	for _, k := range codes {
		avg := consumption.Summarize(series[k], window).Average
		for _, r := range active[k] {
			line := ActiveRegistration{
				Code:         k,
				Description:  desc[k],
				Registration: r,
				Average:      avg,
				Virtual:      r.InStock + r.Pending,
			}
			if avg > 0 {
				m := r.InStock / avg
				line.SupplyMonths = &m
			}
			out.Items = append(out.Items, line)
		}
	}
	span.SetAttributes(attribute.Int("registrations", len(out.Items)))
	if !p.degraded() {
		e.cache.Set(key, out, e.policy.TTLFor(key))
	}
	return out, nil
}

// PendingCommitments - страница эмпеньо с недопоставленным остатком.
func (e *Engine) PendingCommitments(ctx context.Context, f commitments.ListFilter) (commitments.ListPage, error) {
	if e.src.Commitments == nil {
		return commitments.ListPage{}, fmt.Errorf("commitments: %w", ErrNotConfigured)
	}
	ctx, span := e.tracer.Start(ctx, "engine.PendingCommitments")
	defer span.End()

	f = f.Normalized()
	key := cache.CommitmentListKey(f, f.Page, f.PageSize)
	if p, ok := cache.Get[commitments.ListPage](e.cache, key); ok {
		span.SetAttributes(attribute.Bool("cache.hit", true))
		return p, nil
	}
	page, err := e.src.Commitments.ListPending(ctx, f)
	if err != nil {
		span.RecordError(err)
		e.sourceFailed(SourceCommitments, err)
		return commitments.ListPage{}, fmt.Errorf("%w: %w", ErrSourceUnavailable, err)
	}
	e.cache.Set(key, page, e.policy.TTLFor(key))
	return page, nil
}

// CacheEntry - есть ли ключ в кэше и лежит ли под ним значение.
type CacheEntry struct {
	Key     string `json:"key"`
	Exists  bool   `json:"exists"`
	HasData bool   `json:"has_data"`
}

func (e *Engine) CheckCache(key string) CacheEntry {
	v, ok := e.cache.Get(key)
	return CacheEntry{Key: key, Exists: ok, HasData: ok && v != nil}
}

// Warmup заполняет кэш сводкой и первой страницей отчёта без фильтров.
func (e *Engine) Warmup(ctx context.Context) error {
	var errs []error
	if _, err := e.DashboardSummary(ctx); err != nil {
		errs = append(errs, fmt.Errorf("dashboard: %w", err))
	}
	if _, err := e.Items(ctx, Query{Page: 1}); err != nil {
		errs = append(errs, fmt.Errorf("items: %w", err))
	}
	err := errors.Join(errs...)
	if err != nil {
		e.log.Warn("cache warmup incomplete", "err", err)
		return err
	}
	e.log.Info("cache warmed up", "size", e.cache.Len())
	return nil
}
