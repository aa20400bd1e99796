package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Spok95/supplycover/internal/cache"
	"github.com/Spok95/supplycover/internal/domain/catalog"
	"github.com/Spok95/supplycover/internal/domain/commitments"
	"github.com/Spok95/supplycover/internal/domain/coverage"
	"github.com/Spok95/supplycover/internal/engine"
	"github.com/Spok95/supplycover/internal/report"
)

// Service - то, что API берёт у движка.
type Service interface {
	Items(ctx context.Context, q engine.Query) (engine.Page, error)
	DashboardSummary(ctx context.Context) (engine.Summary, error)
	Material(ctx context.Context, term string) (*engine.MaterialSummary, error)
	SaveNote(ctx context.Context, in catalog.NoteInput) (catalog.HistoryEntry, error)
	ActiveRegistrations(ctx context.Context) (engine.ActiveRegistrations, error)
	PendingCommitments(ctx context.Context, f commitments.ListFilter) (commitments.ListPage, error)
	CheckCache(key string) engine.CacheEntry
	Warmup(ctx context.Context) error
	Invalidate(group string) (int, bool)
	InvalidatePattern(pattern string) int
	ClearCache()
	CacheStats() cache.Stats
}

type RequestRecorder interface {
	ObserveRequest(route string, status int, d time.Duration)
}

type Deps struct {
	Service Service
	Log     *slog.Logger
	// Metrics и Gatherer нужны только при включённых метриках.
	Metrics  RequestRecorder
	Gatherer prometheus.Gatherer
	// ExportPageSize - размер страницы при выгрузке всего отчёта.
	ExportPageSize int
}

type api struct {
	svc            Service
	log            *slog.Logger
	exportPageSize int
}

// NewRouter собирает маршруты API, /health и /metrics.
func NewRouter(d Deps) http.Handler {
	a := &api{svc: d.Service, log: d.Log, exportPageSize: d.ExportPageSize}
	if a.log == nil {
		a.log = slog.Default()
	}
	if a.exportPageSize <= 0 {
		a.exportPageSize = 500
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	if d.Metrics != nil {
		r.Use(observe(d.Metrics))
	}

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})
	if d.Gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(d.Gatherer, promhttp.HandlerOpts{}))
	}

	r.Route("/api", func(r chi.Router) {
		r.Get("/items", a.items)
		r.Get("/items/export.xlsx", a.export)
		r.Post("/items/{id}/history", a.saveNote)
		r.Get("/dashboard", a.dashboard)
		r.Get("/materials/{code}", a.material)
		r.Get("/registrations/active", a.activeRegistrations)
		r.Get("/commitments/pending", a.pendingCommitments)

		r.Get("/cache/stats", a.cacheStats)
		r.Get("/cache/check/{key}", a.checkCache)
		r.Post("/cache/warmup", a.warmup)
		r.Post("/cache/invalidate", a.invalidatePattern)
		r.Post("/cache/invalidate/{group}", a.invalidateGroup)
		r.Delete("/cache", a.clearCache)
	})
	return r
}

func observe(rec RequestRecorder) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r)
			route := "unmatched"
			if rc := chi.RouteContext(r.Context()); rc != nil && rc.RoutePattern() != "" {
				route = rc.RoutePattern()
			}
			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			rec.ObserveRequest(route, status, time.Since(start))
		})
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// fail переводит ошибку движка в HTTP-статус.
func (a *api) fail(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, engine.ErrMaterialNotFound):
		writeError(w, http.StatusNotFound, "material not found")
	case errors.Is(err, catalog.ErrItemNotFound):
		writeError(w, http.StatusBadRequest, "catalog item or user not found")
	case errors.Is(err, catalog.ErrDuplicateNote):
		writeError(w, http.StatusConflict, "note already exists")
	case errors.Is(err, engine.ErrCatalogUnavailable):
		a.log.Error("catalog unavailable", "path", r.URL.Path, "err", err)
		writeError(w, http.StatusServiceUnavailable, "catalog unavailable")
	case errors.Is(err, engine.ErrSourceUnavailable), errors.Is(err, engine.ErrNotConfigured):
		a.log.Error("source unavailable", "path", r.URL.Path, "err", err)
		writeError(w, http.StatusServiceUnavailable, "source unavailable")
	default:
		a.log.Error("request failed", "path", r.URL.Path, "err", err)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

// parseQuery: code, responsible, status, has_registration, page, page_size.
func parseQuery(r *http.Request) (engine.Query, error) {
	v := r.URL.Query()
	q := engine.Query{Filters: catalog.Filters{
		Code:        v.Get("code"),
		Responsible: v.Get("responsible"),
	}.Normalized()}

	if s := strings.TrimSpace(v.Get("status")); s != "" {
		st, err := coverage.ParseStatus(s)
		if err != nil {
			return q, err
		}
		q.Status = &st
	}
	if s := strings.TrimSpace(v.Get("has_registration")); s != "" {
		b, err := strconv.ParseBool(s)
		if err != nil {
			return q, fmt.Errorf("invalid has_registration %q", s)
		}
		q.HasRegistration = &b
	}
	for _, p := range []struct {
		name string
		dst  *int
	}{{"page", &q.Page}, {"page_size", &q.PageSize}} {
		s := strings.TrimSpace(v.Get(p.name))
		if s == "" {
			continue
		}
		n, err := strconv.Atoi(s)
		if err != nil || n < 0 {
			return q, fmt.Errorf("invalid %s %q", p.name, s)
		}
		*p.dst = n
	}
	return q, nil
}

func (a *api) items(w http.ResponseWriter, r *http.Request) {
	q, err := parseQuery(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	page, err := a.svc.Items(r.Context(), q)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

func (a *api) export(w http.ResponseWriter, r *http.Request) {
	q, err := parseQuery(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	page, err := report.Collect(r.Context(), a.svc, q, a.exportPageSize)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	name := fmt.Sprintf("cobertura_%s.xlsx", time.Now().Format("20060102_150405"))
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	if err := report.Write(w, page); err != nil {
		a.log.Error("xlsx export failed", "rows", len(page.Items), "err", err)
	}
}

func (a *api) dashboard(w http.ResponseWriter, r *http.Request) {
	s, err := a.svc.DashboardSummary(r.Context())
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, s)
}

func (a *api) material(w http.ResponseWriter, r *http.Request) {
	code := strings.TrimSpace(chi.URLParam(r, "code"))
	if code == "" {
		writeError(w, http.StatusBadRequest, "missing code")
		return
	}
	m, err := a.svc.Material(r.Context(), code)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, m)
}

func (a *api) activeRegistrations(w http.ResponseWriter, r *http.Request) {
	res, err := a.svc.ActiveRegistrations(r.Context())
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// pendingCommitments: code, empenho, page, page_size.
func (a *api) pendingCommitments(w http.ResponseWriter, r *http.Request) {
	v := r.URL.Query()
	f := commitments.ListFilter{Code: v.Get("code"), Commitment: v.Get("empenho")}
	for _, p := range []struct {
		name string
		dst  *int
	}{{"page", &f.Page}, {"page_size", &f.PageSize}} {
		s := strings.TrimSpace(v.Get(p.name))
		if s == "" {
			continue
		}
		n, err := strconv.Atoi(s)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid %s %q", p.name, s))
			return
		}
		*p.dst = n
	}
	page, err := a.svc.PendingCommitments(r.Context(), f)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

func (a *api) checkCache(w http.ResponseWriter, r *http.Request) {
	key, err := url.PathUnescape(chi.URLParam(r, "key"))
	key = strings.TrimSpace(key)
	if err != nil || key == "" {
		writeError(w, http.StatusBadRequest, "missing key")
		return
	}
	writeJSON(w, http.StatusOK, a.svc.CheckCache(key))
}

func (a *api) warmup(w http.ResponseWriter, r *http.Request) {
	if err := a.svc.Warmup(r.Context()); err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"warmed": true, "stats": a.svc.CacheStats()})
}

func (a *api) cacheStats(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, a.svc.CacheStats())
}

func (a *api) invalidateGroup(w http.ResponseWriter, r *http.Request) {
	group := chi.URLParam(r, "group")
	n, ok := a.svc.Invalidate(group)
	if !ok {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("unknown cache group %q", group))
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"group": group, "removed": n})
}

func (a *api) invalidatePattern(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Pattern string `json:"pattern"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || strings.TrimSpace(req.Pattern) == "" {
		writeError(w, http.StatusBadRequest, "pattern is required")
		return
	}
	n := a.svc.InvalidatePattern(req.Pattern)
	writeJSON(w, http.StatusOK, map[string]any{"pattern": req.Pattern, "removed": n})
}

func (a *api) clearCache(w http.ResponseWriter, _ *http.Request) {
	a.svc.ClearCache()
	w.WriteHeader(http.StatusNoContent)
}
