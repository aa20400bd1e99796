package engine

import (
	"context"
	"fmt"

	"github.com/Spok95/supplycover/internal/cache"
	"github.com/Spok95/supplycover/internal/domain/catalog"
	"github.com/Spok95/supplycover/internal/domain/consumption"
	"github.com/Spok95/supplycover/internal/domain/coverage"
	"github.com/Spok95/supplycover/internal/domain/inventory"
	"github.com/Spok95/supplycover/internal/domain/materials"
)

// MaterialSummary - сводка по одному материалу для планирования закупки.
type MaterialSummary struct {
	Item    catalog.Item         `json:"item"`
	Months  []consumption.Period `json:"months"`
	Monthly []float64            `json:"monthly"`
	Average float64              `json:"average"`
	InStock float64              `json:"in_stock"`
	Pending float64              `json:"pending"`
	// Virtual - склад плюс ожидаемое поступление.
	Virtual float64 `json:"virtual"`
	// SupplyMonths - на сколько месяцев хватит склада (без ожидаемого поступления).
	SupplyMonths  *float64                 `json:"supply_months"`
	Registrations []inventory.Registration `json:"registrations"`
	Status        coverage.Status          `json:"status"`
}

// Material ищет материал по коду (в любом написании) или по описанию.
func (e *Engine) Material(ctx context.Context, term string) (*MaterialSummary, error) {
	ctx, span := e.tracer.Start(ctx, "engine.Material")
	defer span.End()

	it, err := e.src.Catalog.FindByCodeOrDescription(ctx, term)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("%w: %w", ErrCatalogUnavailable, err)
	}
	if it == nil {
		return nil, ErrMaterialNotFound
	}

	now := e.now()
	window := consumption.Window(now)
	codes := []string{it.Master}
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

	k := materials.Key(it.Master)
	a := assess(series[k], totals[k], inventory.FilterActive(regs[k], now), window)
	out := &MaterialSummary{
		Item:          *it,
		Months:        window,
		Monthly:       a.summary.Monthly,
		Average:       a.summary.Average,
		InStock:       a.totals.InStock,
		Pending:       a.totals.Pending,
		Virtual:       a.totals.Virtual(),
		Registrations: a.active,
		Status:        a.status,
	}
	if a.summary.Average > 0 {
		m := a.totals.InStock / a.summary.Average
		out.SupplyMonths = &m
	}
	return out, nil
}
