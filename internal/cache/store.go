// Package cache - процессный кэш с TTL, ограничением размера и инвалидацией по маске.
package cache

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"
)

// Recorder получает события кэша (prometheus и т.п.). Пространство имён - часть ключа до ":".
type Recorder interface {
	Hit(namespace string)
	Miss(namespace string)
	Evicted()
	Swept(n int)
}

type nopRecorder struct{}

func (nopRecorder) Hit(string)  {}
func (nopRecorder) Miss(string) {}
func (nopRecorder) Evicted()    {}
func (nopRecorder) Swept(int)   {}

type entry struct {
	value       any
	insertedAt  time.Time
	ttl         time.Duration
	accessCount uint64
	lastAccess  time.Time
}

func (e *entry) expired(now time.Time) bool {
	return now.Sub(e.insertedAt) > e.ttl
}

type Options struct {
	MaxSize       int
	DefaultTTL    time.Duration
	SweepInterval time.Duration
	Now           func() time.Time
	Recorder      Recorder
	Log           *slog.Logger
}

type Stats struct {
	Size          int     `json:"size"`
	MaxSize       int     `json:"max_size"`
	Expired       int     `json:"expired"`
	TotalAccesses uint64  `json:"total_accesses"`
	Hits          uint64  `json:"hits"`
	Misses        uint64  `json:"misses"`
	Evictions     uint64  `json:"evictions"`
	HitRate       float64 `json:"hit_rate"`
}

type Store struct {
	mu         sync.Mutex
	items      map[string]*entry
	maxSize    int
	defaultTTL time.Duration
	sweepEvery time.Duration
	now        func() time.Time
	rec        Recorder
	log        *slog.Logger

	hits, misses, evictions uint64

	started  bool
	stopOnce sync.Once
	stop     chan struct{}
	done     chan struct{}
}

const (
	defaultMaxSize = 2000
	defaultTTL     = 10 * time.Minute
	defaultSweep   = 2 * time.Minute
)

func New(opts Options) *Store {
	s := &Store{
		items:      make(map[string]*entry),
		maxSize:    opts.MaxSize,
		defaultTTL: opts.DefaultTTL,
		sweepEvery: opts.SweepInterval,
		now:        opts.Now,
		rec:        opts.Recorder,
		log:        opts.Log,
		stop:       make(chan struct{}),
		done:       make(chan struct{}),
	}
	if s.maxSize <= 0 {
		s.maxSize = defaultMaxSize
	}
	if s.defaultTTL <= 0 {
		s.defaultTTL = defaultTTL
	}
	if s.sweepEvery <= 0 {
		s.sweepEvery = defaultSweep
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.rec == nil {
		s.rec = nopRecorder{}
	}
	if s.log == nil {
		s.log = slog.Default()
	}
	return s
}

// Set кладёт значение; ttl <= 0 - TTL по умолчанию.
// Если кэш заполнен и ключа ещё нет, сначала вытесняется ровно одна запись.
func (s *Store) Set(key string, value any, ttl time.Duration) {
	if ttl <= 0 {
		ttl = s.defaultTTL
	}
	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.items[key]; !exists && len(s.items) >= s.maxSize {
		s.evictLocked(now)
	}
	s.items[key] = &entry{
		value:      value,
		insertedAt: now,
		ttl:        ttl,
		lastAccess: now,
	}
}

// Get возвращает значение, если оно есть и не просрочено. Просроченная запись удаляется.
func (s *Store) Get(key string) (any, bool) {
	now := s.now()
	ns := namespaceOf(key)

	s.mu.Lock()
	e, ok := s.items[key]
	if !ok {
		s.misses++
		s.mu.Unlock()
		s.rec.Miss(ns)
		return nil, false
	}
	if e.expired(now) {
		delete(s.items, key)
		s.misses++
		s.mu.Unlock()
		s.rec.Miss(ns)
		return nil, false
	}
	e.accessCount++
	e.lastAccess = now
	s.hits++
	v := e.value
	s.mu.Unlock()

	s.rec.Hit(ns)
	return v, true
}

// Get - типизированная обёртка: значение другого типа считается промахом.
func Get[T any](s *Store, key string) (T, bool) {
	var zero T
	v, ok := s.Get(key)
	if !ok {
		return zero, false
	}
	t, ok := v.(T)
	if !ok {
		return zero, false
	}
	return t, true
}

func (s *Store) Has(key string) bool {
	_, ok := s.Get(key)
	return ok
}

func (s *Store) Delete(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.items[key]; !ok {
		return false
	}
	delete(s.items, key)
	return true
}

// DeletePattern удаляет все ключи, совпадающие с маской ("*" - любая подстрока), и возвращает их число.
func (s *Store) DeletePattern(pattern string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for k := range s.items {
		if matchGlob(pattern, k) {
			delete(s.items, k)
			n++
		}
	}
	return n
}

func (s *Store) Clear() {
	s.mu.Lock()
	s.items = make(map[string]*entry)
	s.mu.Unlock()
}

func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.items)
}

func (s *Store) Stats() Stats {
	now := s.now()
	s.mu.Lock()
	defer s.mu.Unlock()

	st := Stats{
		Size:      len(s.items),
		MaxSize:   s.maxSize,
		Hits:      s.hits,
		Misses:    s.misses,
		Evictions: s.evictions,
	}
	for _, e := range s.items {
		if e.expired(now) {
			st.Expired++
		}
		st.TotalAccesses += e.accessCount
	}
	if lookups := s.hits + s.misses; lookups > 0 {
		st.HitRate = float64(s.hits) / float64(lookups)
	}
	return st
}

// Sweep удаляет все просроченные записи и возвращает их число.
func (s *Store) Sweep() int {
	now := s.now()
	s.mu.Lock()
	n := 0
	for k, e := range s.items {
		if e.expired(now) {
			delete(s.items, k)
			n++
		}
	}
	s.mu.Unlock()

	if n > 0 {
		s.rec.Swept(n)
		s.log.Debug("cache sweep", "removed", n)
	}
	return n
}

// Start запускает фоновую очистку. Останавливается по ctx или Stop.
func (s *Store) Start(ctx context.Context) {
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return
	}
	s.started = true
	s.mu.Unlock()

	go func() {
		defer close(s.done)
		t := time.NewTicker(s.sweepEvery)
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-s.stop:
				return
			case <-t.C:
				s.Sweep()
			}
		}
	}()
}

// Stop останавливает фоновую очистку и ждёт её завершения. Безопасен при повторном вызове.
func (s *Store) Stop() {
	s.stopOnce.Do(func() {
		close(s.stop)
		s.mu.Lock()
		started := s.started
		s.mu.Unlock()
		if started {
			<-s.done
		}
	})
}

// evictLocked вытесняет запись с минимальным score = (now - lastAccess) / (accessCount + 1).
func (s *Store) evictLocked(now time.Time) {
	var (
		victim string
		best   float64
		found  bool
	)
	for k, e := range s.items {
		score := float64(now.Sub(e.lastAccess)) / float64(e.accessCount+1)
		if !found || score < best || (score == best && k < victim) {
			victim, best, found = k, score, true
		}
	}
	if !found {
		return
	}
	delete(s.items, victim)
	s.evictions++
	s.rec.Evicted()
}

func namespaceOf(key string) string {
	if i := strings.IndexByte(key, ':'); i >= 0 {
		return key[:i]
	}
	return key
}

// matchGlob сопоставляет ключ с маской целиком; "*" совпадает с любой (в т.ч. пустой) подстрокой.
func matchGlob(pattern, s string) bool {
	parts := strings.Split(pattern, "*")
	if len(parts) == 1 {
		return pattern == s
	}
	if !strings.HasPrefix(s, parts[0]) {
		return false
	}
	s = s[len(parts[0]):]
	last := parts[len(parts)-1]
	for _, p := range parts[1 : len(parts)-1] {
		i := strings.Index(s, p)
		if i < 0 {
			return false
		}
		s = s[i+len(p):]
	}
	return strings.HasSuffix(s, last)
}
