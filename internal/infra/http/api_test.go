package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Spok95/supplycover/internal/cache"
	"github.com/Spok95/supplycover/internal/domain/catalog"
	"github.com/Spok95/supplycover/internal/domain/commitments"
	"github.com/Spok95/supplycover/internal/domain/consumption"
	"github.com/Spok95/supplycover/internal/domain/coverage"
	"github.com/Spok95/supplycover/internal/engine"
)

type fakeService struct {
	queries   []engine.Query
	itemsErr  error
	matErr    error
	pattern   string
	cleared   bool
	notes     []catalog.NoteInput
	noteErr   error
	filters   []commitments.ListFilter
	regsErr   error
	warmErr   error
	warmed    bool
	checkedAt string
}

func (f *fakeService) SaveNote(_ context.Context, in catalog.NoteInput) (catalog.HistoryEntry, error) {
	if f.noteErr != nil {
		return catalog.HistoryEntry{}, f.noteErr
	}
	f.notes = append(f.notes, in)
	return catalog.HistoryEntry{ID: 5, NoteInput: in, CreatedAt: time.Date(2025, 6, 15, 9, 0, 0, 0, time.UTC)}, nil
}

func (f *fakeService) ActiveRegistrations(context.Context) (engine.ActiveRegistrations, error) {
	if f.regsErr != nil {
		return engine.ActiveRegistrations{}, f.regsErr
	}
	return engine.ActiveRegistrations{Items: []engine.ActiveRegistration{{Code: "586243", Average: 150}}}, nil
}

func (f *fakeService) PendingCommitments(_ context.Context, fl commitments.ListFilter) (commitments.ListPage, error) {
	f.filters = append(f.filters, fl)
	return commitments.ListPage{Items: []commitments.Commitment{{ID: 1, Material: "586243"}}, Total: 1, Page: 1, PageSize: 20}, nil
}

func (f *fakeService) CheckCache(key string) engine.CacheEntry {
	f.checkedAt = key
	return engine.CacheEntry{Key: key, Exists: key == "dashboard:summary", HasData: key == "dashboard:summary"}
}

func (f *fakeService) Warmup(context.Context) error {
	f.warmed = true
	return f.warmErr
}

func (f *fakeService) Items(_ context.Context, q engine.Query) (engine.Page, error) {
	f.queries = append(f.queries, q)
	if f.itemsErr != nil {
		return engine.Page{}, f.itemsErr
	}
	return engine.Page{
		Items:  []engine.Item{{ID: engine.RowID{CatalogID: 1}, Master: "586243", Status: coverage.Critical}},
		Total:  1,
		Months: []consumption.Period{202506},
	}, nil
}

func (f *fakeService) DashboardSummary(context.Context) (engine.Summary, error) {
	return engine.Summary{TotalMaterials: 10, NoRegistration: 2, Attention: 3, Critical: 4}, nil
}

func (f *fakeService) Material(_ context.Context, term string) (*engine.MaterialSummary, error) {
	if f.matErr != nil {
		return nil, f.matErr
	}
	if term != "586243" {
		return nil, engine.ErrMaterialNotFound
	}
	return &engine.MaterialSummary{Average: 150}, nil
}

func (f *fakeService) Invalidate(group string) (int, bool) {
	if group == "bogus" {
		return 0, false
	}
	return 3, true
}

func (f *fakeService) InvalidatePattern(p string) int {
	f.pattern = p
	return 2
}

func (f *fakeService) ClearCache() { f.cleared = true }

func (f *fakeService) CacheStats() cache.Stats { return cache.Stats{Size: 7, MaxSize: 1000} }

type routeRecorder struct {
	mu     sync.Mutex
	routes []string
}

func (r *routeRecorder) ObserveRequest(route string, status int, _ time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.routes = append(r.routes, fmt.Sprintf("%s %d", route, status))
}

func do(t *testing.T, h http.Handler, method, target string, body []byte) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, bytes.NewReader(body))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestItemsParsesQuery(t *testing.T) {
	svc := &fakeService{}
	h := NewRouter(Deps{Service: svc})

	rec := do(t, h, http.MethodGet, "/api/items?code=%20586%20&responsible=ana&status=critico&has_registration=false&page=2&page_size=20", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	require.Len(t, svc.queries, 1)
	q := svc.queries[0]
	assert.Equal(t, "586", q.Filters.Code)
	assert.Equal(t, "ana", q.Filters.Responsible)
	require.NotNil(t, q.Status)
	assert.Equal(t, coverage.Critical, *q.Status)
	require.NotNil(t, q.HasRegistration)
	assert.False(t, *q.HasRegistration)
	assert.Equal(t, 2, q.Page)
	assert.Equal(t, 20, q.PageSize)

	var page engine.Page
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &page))
	assert.Equal(t, 1, page.Total)
	assert.Equal(t, "586243", page.Items[0].Master)
}

func TestItemsBadQuery(t *testing.T) {
	h := NewRouter(Deps{Service: &fakeService{}})
	for _, target := range []string{
		"/api/items?status=green",
		"/api/items?has_registration=maybe",
		"/api/items?page=-1",
		"/api/items?page_size=x",
	} {
		rec := do(t, h, http.MethodGet, target, nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code, target)
	}
}

func TestCatalogUnavailableIs503(t *testing.T) {
	svc := &fakeService{itemsErr: fmt.Errorf("%w: %w", engine.ErrCatalogUnavailable, errors.New("dial tcp"))}
	h := NewRouter(Deps{Service: svc})

	rec := do(t, h, http.MethodGet, "/api/items", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.NotContains(t, rec.Body.String(), "dial tcp")
}

func TestMaterial(t *testing.T) {
	h := NewRouter(Deps{Service: &fakeService{}})

	rec := do(t, h, http.MethodGet, "/api/materials/586243", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"average":150`)

	rec = do(t, h, http.MethodGet, "/api/materials/999", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestDashboard(t *testing.T) {
	h := NewRouter(Deps{Service: &fakeService{}})
	rec := do(t, h, http.MethodGet, "/api/dashboard", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var s engine.Summary
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &s))
	assert.Equal(t, engine.Summary{TotalMaterials: 10, NoRegistration: 2, Attention: 3, Critical: 4}, s)
}

func TestExportXLSX(t *testing.T) {
	svc := &fakeService{}
	h := NewRouter(Deps{Service: svc, ExportPageSize: 100})

	rec := do(t, h, http.MethodGet, "/api/items/export.xlsx?code=586", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Disposition"), ".xlsx")
	assert.True(t, bytes.HasPrefix(rec.Body.Bytes(), []byte("PK")), "xlsx is a zip archive")

	require.Len(t, svc.queries, 1)
	assert.Equal(t, 100, svc.queries[0].PageSize)
	assert.Equal(t, "586", svc.queries[0].Filters.Code)
}

func TestCacheEndpoints(t *testing.T) {
	svc := &fakeService{}
	h := NewRouter(Deps{Service: svc})

	rec := do(t, h, http.MethodGet, "/api/cache/stats", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"size":7`)

	rec = do(t, h, http.MethodPost, "/api/cache/invalidate/consumption", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"removed":3`)

	rec = do(t, h, http.MethodPost, "/api/cache/invalidate/bogus", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, h, http.MethodPost, "/api/cache/invalidate", []byte(`{"pattern":"totals:*"}`))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "totals:*", svc.pattern)

	rec = do(t, h, http.MethodPost, "/api/cache/invalidate", []byte(`{}`))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, h, http.MethodDelete, "/api/cache", nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.True(t, svc.cleared)
}

func TestHealthAndMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	counter := prometheus.NewCounter(prometheus.CounterOpts{Name: "supplycover_test_total", Help: "test"})
	reg.MustRegister(counter)
	counter.Inc()

	rr := &routeRecorder{}
	h := NewRouter(Deps{Service: &fakeService{}, Metrics: rr, Gatherer: reg})

	rec := do(t, h, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "OK", rec.Body.String())

	rec = do(t, h, http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), "supplycover_test_total 1"))

	do(t, h, http.MethodGet, "/api/materials/999", nil)
	rr.mu.Lock()
	defer rr.mu.Unlock()
	assert.Contains(t, rr.routes, "/health 200")
	assert.Contains(t, rr.routes, "/api/materials/{code} 404")
}

func TestMetricsRouteAbsentWithoutGatherer(t *testing.T) {
	h := NewRouter(Deps{Service: &fakeService{}})
	rec := do(t, h, http.MethodGet, "/metrics", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestSaveNote(t *testing.T) {
	svc := &fakeService{}
	h := NewRouter(Deps{Service: svc})

	body := []byte(`{"classification":"  Curva A ","sector":"  ","unit_price":"12,50","pack_size":"abc","registration_balance":7,"observation":"ok"}`)
	rec := do(t, h, http.MethodPost, "/api/items/7/history", body)
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Contains(t, rec.Body.String(), `"id":5`)

	require.Len(t, svc.notes, 1)
	in := svc.notes[0]
	assert.Equal(t, int64(7), in.ItemID)
	require.NotNil(t, in.Classification)
	assert.Equal(t, "Curva A", *in.Classification)
	assert.Nil(t, in.Sector)
	require.True(t, in.UnitPrice.Valid)
	assert.Equal(t, "12.5", in.UnitPrice.Decimal.String())
	assert.False(t, in.PackSize.Valid, "non-numeric value is dropped")
	require.True(t, in.RegistrationBalance.Valid)
	assert.Equal(t, "7", in.RegistrationBalance.Decimal.String())

	rec = do(t, h, http.MethodPost, "/api/items/8/history", nil)
	assert.Equal(t, http.StatusCreated, rec.Code, "empty body is allowed")
}

func TestSaveNoteErrors(t *testing.T) {
	h := NewRouter(Deps{Service: &fakeService{}})
	for _, target := range []string{"/api/items/0/history", "/api/items/abc/history", "/api/items/-3/history"} {
		rec := do(t, h, http.MethodPost, target, []byte(`{}`))
		assert.Equal(t, http.StatusBadRequest, rec.Code, target)
	}
	rec := do(t, h, http.MethodPost, "/api/items/1/history", []byte(`{"classification":`))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	h = NewRouter(Deps{Service: &fakeService{noteErr: fmt.Errorf("%w: id 9", catalog.ErrItemNotFound)}})
	rec = do(t, h, http.MethodPost, "/api/items/9/history", []byte(`{}`))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	h = NewRouter(Deps{Service: &fakeService{noteErr: catalog.ErrDuplicateNote}})
	rec = do(t, h, http.MethodPost, "/api/items/9/history", []byte(`{}`))
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestActiveRegistrationsEndpoint(t *testing.T) {
	h := NewRouter(Deps{Service: &fakeService{}})
	rec := do(t, h, http.MethodGet, "/api/registrations/active", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"code":"586243"`)

	h = NewRouter(Deps{Service: &fakeService{regsErr: fmt.Errorf("%w: dial tcp", engine.ErrSourceUnavailable)}})
	rec = do(t, h, http.MethodGet, "/api/registrations/active", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.NotContains(t, rec.Body.String(), "dial tcp")
}

func TestPendingCommitmentsEndpoint(t *testing.T) {
	svc := &fakeService{}
	h := NewRouter(Deps{Service: svc})

	rec := do(t, h, http.MethodGet, "/api/commitments/pending?code=586&empenho=NE1&page=2&page_size=30", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, svc.filters, 1)
	assert.Equal(t, commitments.ListFilter{Code: "586", Commitment: "NE1", Page: 2, PageSize: 30}, svc.filters[0])
	assert.Contains(t, rec.Body.String(), `"total":1`)

	rec = do(t, h, http.MethodGet, "/api/commitments/pending?page=x", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCacheCheckAndWarmup(t *testing.T) {
	svc := &fakeService{}
	h := NewRouter(Deps{Service: svc})

	rec := do(t, h, http.MethodGet, "/api/cache/check/dashboard:summary", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "dashboard:summary", svc.checkedAt)
	assert.Contains(t, rec.Body.String(), `"exists":true`)

	rec = do(t, h, http.MethodPost, "/api/cache/warmup", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, svc.warmed)

	svc.warmErr = fmt.Errorf("items: %w", engine.ErrCatalogUnavailable)
	rec = do(t, h, http.MethodPost, "/api/cache/warmup", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
