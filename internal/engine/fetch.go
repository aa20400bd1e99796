package engine

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/sourcegraph/conc"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/Spok95/supplycover/internal/cache"
)

// phase - группа независимых батч-запросов: стартуют параллельно, ждём не дольше таймаута.
// Результаты, пришедшие после дедлайна, отбрасываются.
type phase struct {
	e   *Engine
	ctx context.Context

	wg      conc.WaitGroup
	mu      sync.Mutex
	closed  bool
	failed  bool
	running map[string]struct{}
}

func (e *Engine) newPhase(ctx context.Context) *phase {
	// Запросы к хранилищу не отменяются вместе с запросом клиента.
	return &phase{e: e, ctx: context.WithoutCancel(ctx), running: make(map[string]struct{})}
}

// fetch берёт батч из кэша или запускает запрос в фоне. dst заполняется только до закрытия фазы.
// Пустой результат в кэш не кладётся.
func fetch[M ~map[K]V, K comparable, V any](p *phase, source, key string, dst *M, call func(ctx context.Context) (M, error)) {
	if v, ok := cache.Get[M](p.e.cache, key); ok {
		*dst = v
		return
	}

	p.mu.Lock()
	p.running[source] = struct{}{}
	p.mu.Unlock()

	p.wg.Go(func() {
		ctx, span := p.e.tracer.Start(p.ctx, "engine.fetch."+source)
		span.SetAttributes(attribute.String("cache.key", key))
		start := time.Now()
		v, err := call(ctx)
		p.e.metrics.ObserveFetch(source, time.Since(start))
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()

		p.mu.Lock()
		defer p.mu.Unlock()
		if p.closed {
			p.e.log.Debug("late source result dropped", "source", source)
			return
		}
		delete(p.running, source)
		if err != nil {
			p.failed = true
			p.e.sourceFailed(source, err)
			return
		}
		*dst = v
		if len(v) > 0 {
			p.e.cache.Set(key, v, p.e.policy.TTLFor(key))
		}
	})
}

// wait ждёт все запросы фазы, но не дольше timeout. Незавершённые считаются отказом источника.
func (p *phase) wait(timeout time.Duration) {
	done := make(chan struct{})
	go func() {
		defer close(done)
		if r := p.wg.WaitAndRecover(); r != nil {
			p.e.log.Error("source fetch panicked", "err", r.AsError())
		}
	}()

	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case <-done:
	case <-timer.C:
	}

	p.mu.Lock()
	p.closed = true
	late := make([]string, 0, len(p.running))
	for s := range p.running {
		late = append(late, s)
	}
	if len(late) > 0 {
		p.failed = true
	}
	p.mu.Unlock()

	sort.Strings(late)
	for _, s := range late {
		p.e.sourceFailed(s, errNoResult)
	}
}

// degraded - был ли в фазе отказ источника. Имеет смысл после wait.
func (p *phase) degraded() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.failed
}

func (e *Engine) sourceFailed(source string, err error) {
	serr := &SourceError{Source: source, Err: err}
	e.log.Warn("source unavailable, using empty data", "source", source, "err", serr)
	e.metrics.SourceFailed(source)
}
