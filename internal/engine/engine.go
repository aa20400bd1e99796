// Package engine сводит каталог с аналитическими витринами: расход, остатки, регистрации,
// пре-эмпеньо. Все батч-запросы идут через общий кэш.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/Spok95/supplycover/internal/cache"
	"github.com/Spok95/supplycover/internal/domain/catalog"
	"github.com/Spok95/supplycover/internal/domain/commitments"
	"github.com/Spok95/supplycover/internal/domain/consumption"
	"github.com/Spok95/supplycover/internal/domain/coverage"
	"github.com/Spok95/supplycover/internal/domain/inventory"
	"github.com/Spok95/supplycover/internal/domain/materials"
)

// Recorder - метрики по источникам.
type Recorder interface {
	SourceFailed(source string)
	ObserveFetch(source string, d time.Duration)
}

type nopRecorder struct{}

func (nopRecorder) SourceFailed(string)                {}
func (nopRecorder) ObserveFetch(string, time.Duration) {}

type Options struct {
	FetchTimeout    time.Duration `mapstructure:"fetch_timeout"`
	DashboardBatch  int           `mapstructure:"dashboard_batch"`
	DefaultPageSize int           `mapstructure:"default_page_size"`
	MaxPageSize     int           `mapstructure:"max_page_size"`
}

func (o Options) withDefaults() Options {
	if o.FetchTimeout <= 0 {
		o.FetchTimeout = 10 * time.Second
	}
	if o.DashboardBatch <= 0 {
		o.DashboardBatch = 1000
	}
	if o.DefaultPageSize <= 0 {
		o.DefaultPageSize = 50
	}
	if o.MaxPageSize <= 0 {
		o.MaxPageSize = 500
	}
	return o
}

type Engine struct {
	src     Sources
	cache   *cache.Store
	policy  cache.Policy
	opts    Options
	now     func() time.Time
	log     *slog.Logger
	metrics Recorder
	tracer  trace.Tracer
}

type Option func(*Engine)

func WithClock(now func() time.Time) Option { return func(e *Engine) { e.now = now } }
func WithLogger(l *slog.Logger) Option      { return func(e *Engine) { e.log = l } }
func WithRecorder(r Recorder) Option        { return func(e *Engine) { e.metrics = r } }
func WithPolicy(p cache.Policy) Option      { return func(e *Engine) { e.policy = p } }

func New(src Sources, store *cache.Store, opts Options, options ...Option) *Engine {
	e := &Engine{
		src:     src,
		cache:   store,
		policy:  cache.DefaultPolicy(),
		opts:    opts.withDefaults(),
		now:     time.Now,
		log:     slog.Default(),
		metrics: nopRecorder{},
		tracer:  otel.Tracer("github.com/Spok95/supplycover/internal/engine"),
	}
	for _, o := range options {
		o(e)
	}
	e.log = e.log.With("component", "engine")
	return e
}

// Query - страница отчёта. Status и HasRegistration применяются после расчёта.
type Query struct {
	Filters         catalog.Filters
	Status          *coverage.Status
	HasRegistration *bool
	Page            int
	PageSize        int
}

// String - стабильное представление фильтров для ключа кэша.
func (q Query) String() string {
	v, _ := url.ParseQuery(q.Filters.Encode())
	if q.Status != nil {
		v.Set("status", string(*q.Status))
	}
	if q.HasRegistration != nil {
		v.Set("reg", strconv.FormatBool(*q.HasRegistration))
	}
	return v.Encode()
}

// Page - страница отчёта. Page и PageSize - фактически применённые после нормализации.
type Page struct {
	Items    []Item               `json:"items"`
	Total    int                  `json:"total"`
	Page     int                  `json:"page"`
	PageSize int                  `json:"page_size"`
	Months   []consumption.Period `json:"months"`
}

func (e *Engine) normalizePage(q Query) Query {
	if q.Page < 1 {
		q.Page = 1
	}
	if q.PageSize <= 0 {
		q.PageSize = e.opts.DefaultPageSize
	}
	if q.PageSize > e.opts.MaxPageSize {
		q.PageSize = e.opts.MaxPageSize
	}
	return q
}

// pageData - всё, что собрано по странице каталога. Пустые карты означают «нет данных».
type pageData struct {
	standardized  map[string]string
	series        map[string]consumption.Series
	last          map[string]consumption.MonthQty
	totals        map[string]inventory.Totals
	registrations map[string][]inventory.Registration
	general       map[string]float64
	notes         map[int64]catalog.Note
	active        map[string][]inventory.Registration
	pending       map[commitments.PairKey]string
}

// Items строит страницу отчёта. Ошибка возможна только при недоступном каталоге.
func (e *Engine) Items(ctx context.Context, q Query) (Page, error) {
	q = e.normalizePage(q)
	ctx, span := e.tracer.Start(ctx, "engine.Items")
	defer span.End()
	span.SetAttributes(attribute.Int("page", q.Page), attribute.Int("page_size", q.PageSize))

	key := cache.ItemsKey(q, q.Page, q.PageSize)
	if p, ok := cache.Get[Page](e.cache, key); ok {
		span.SetAttributes(attribute.Bool("cache.hit", true))
		return p, nil
	}

	items, total, err := e.src.Catalog.Page(ctx, q.Filters, q.Page, q.PageSize)
	if err != nil {
		span.RecordError(err)
		return Page{}, fmt.Errorf("%w: %w", ErrCatalogUnavailable, err)
	}

	now := e.now()
	window := consumption.Window(now)
	data, degraded := e.collect(ctx, items, window, now)

	out := Page{Items: make([]Item, 0, len(items)), Total: total, Page: q.Page, PageSize: q.PageSize, Months: window}
	for _, it := range items {
		if materials.Key(it.Master) == "" {
			continue
		}
		rows := buildRows(it, data, window)
		if !q.accepts(rows[0]) {
			continue
		}
		out.Items = append(out.Items, rows...)
	}

	// Страницу с пустыми полями от отказавшего источника не кэшируем.
	if degraded {
		span.SetAttributes(attribute.Bool("degraded", true))
		return out, nil
	}
	e.cache.Set(key, out, e.policy.TTLFor(key))
	return out, nil
}

func (q Query) accepts(it Item) bool {
	if q.Status != nil && it.Status != *q.Status {
		return false
	}
	if q.HasRegistration != nil && it.HasActiveRegistration != *q.HasRegistration {
		return false
	}
	return true
}

func masters(items []catalog.Item) []string {
	codes := make([]string, 0, len(items))
	for _, it := range items {
		codes = append(codes, it.Master)
	}
	return materials.Distinct(codes)
}

// collect: первая фаза - семь независимых батчей, вторая - пре-эмпеньо по действующим регистрациям.
// degraded = хотя бы один источник отказал или не успел.
func (e *Engine) collect(ctx context.Context, items []catalog.Item, window []consumption.Period, now time.Time) (d *pageData, degraded bool) {
	d = &pageData{
		standardized:  map[string]string{},
		series:        map[string]consumption.Series{},
		last:          map[string]consumption.MonthQty{},
		totals:        map[string]inventory.Totals{},
		registrations: map[string][]inventory.Registration{},
		general:       map[string]float64{},
		notes:         map[int64]catalog.Note{},
		active:        map[string][]inventory.Registration{},
		pending:       map[commitments.PairKey]string{},
	}
	codes := masters(items)
	if len(codes) == 0 {
		return d, false
	}
	ids := make([]int64, 0, len(items))
	for _, it := range items {
		ids = append(ids, it.ID)
	}
	current := window[len(window)-1]

	p := e.newPhase(ctx)
	fetch(p, SourceCodes, cache.CodesKey(codes), &d.standardized, func(ctx context.Context) (map[string]string, error) {
		return e.src.Stock.StandardizedCodes(ctx, codes)
	})
	fetch(p, SourceConsumption, cache.ConsumptionKey(codes, window), &d.series, func(ctx context.Context) (map[string]consumption.Series, error) {
		return e.src.Consumption.ByMastersAndMonths(ctx, codes, window)
	})
	fetch(p, SourceLastConsumption, cache.LastConsumptionKey(codes, current), &d.last, func(ctx context.Context) (map[string]consumption.MonthQty, error) {
		return e.src.Consumption.LastBefore(ctx, codes, current)
	})
	fetch(p, SourceTotals, cache.TotalsKey(codes), &d.totals, func(ctx context.Context) (map[string]inventory.Totals, error) {
		return e.src.Stock.Totals(ctx, codes)
	})
	fetch(p, SourceRegistrations, cache.RegistrationsKey(codes), &d.registrations, func(ctx context.Context) (map[string][]inventory.Registration, error) {
		return e.src.Stock.Registrations(ctx, codes)
	})
	fetch(p, SourceGeneralStock, cache.GeneralStockKey(codes), &d.general, func(ctx context.Context) (map[string]float64, error) {
		return e.src.Stock.GeneralStock(ctx, codes)
	})
	if e.src.Notes != nil {
		fetch(p, SourceNotes, cache.NotesKey(ids), &d.notes, func(ctx context.Context) (map[int64]catalog.Note, error) {
			return e.src.Notes.LastNotes(ctx, ids)
		})
	}
	p.wait(e.opts.FetchTimeout)
	degraded = p.degraded()

	var pairs []commitments.Pair
	var pairKeys []string
	for _, code := range codes {
		k := materials.Key(code)
		act := inventory.FilterActive(d.registrations[k], now)
		if len(act) == 0 {
			continue
		}
		d.active[k] = act
		for _, r := range act {
			pr := commitments.Pair{Code: code, Registration: r.Number}
			pairs = append(pairs, pr)
			pairKeys = append(pairKeys, commitments.KeyOf(pr).String())
		}
	}
	if len(pairs) > 0 && e.src.Commitments != nil {
		p2 := e.newPhase(ctx)
		fetch(p2, SourceCommitments, cache.CommitmentsKey(pairKeys), &d.pending, func(ctx context.Context) (map[commitments.PairKey]string, error) {
			return e.src.Commitments.ByMasterAndRegistration(ctx, pairs)
		})
		p2.wait(e.opts.FetchTimeout)
		degraded = degraded || p2.degraded()
	}
	return d, degraded
}

// Invalidate сбрасывает группу кэша (items, consumption, totals, registrations, all).
func (e *Engine) Invalidate(group string) (int, bool) {
	n, ok := e.cache.Invalidate(group)
	if ok {
		e.log.Info("cache invalidated", "group", group, "removed", n)
	}
	return n, ok
}

// InvalidatePattern удаляет ключи по маске ("consumption:*").
func (e *Engine) InvalidatePattern(pattern string) int {
	n := e.cache.DeletePattern(pattern)
	e.log.Info("cache invalidated", "pattern", pattern, "removed", n)
	return n
}

func (e *Engine) ClearCache() {
	e.cache.Clear()
	e.log.Info("cache cleared")
}

func (e *Engine) CacheStats() cache.Stats { return e.cache.Stats() }
