package engine

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Spok95/supplycover/internal/cache"
	"github.com/Spok95/supplycover/internal/domain/commitments"
	"github.com/Spok95/supplycover/internal/domain/inventory"
)

func TestActiveRegistrations(t *testing.T) {
	f := newFixture()
	f.stock.registrations["100200"] = []inventory.Registration{
		{Number: "OLD", ValidUntil: "01/01/2024", Balance: ptr(5.0)},
	}
	e := f.engine(Options{})

	res, err := e.ActiveRegistrations(context.Background())
	require.NoError(t, err)
	require.Len(t, res.Items, 1)
	assert.Len(t, res.Months, 7)

	line := res.Items[0]
	assert.Equal(t, "586243", line.Code)
	assert.Equal(t, "LUVA CIRURGICA ESTERIL 7,5", line.Description)
	assert.Equal(t, "R1", line.Number)
	assert.Equal(t, 150.0, line.Average)
	assert.Equal(t, 1500.0, line.Virtual)
	require.NotNil(t, line.SupplyMonths)
	assert.InDelta(t, 1000.0/150.0, *line.SupplyMonths, 1e-9)

	f.stock.allErr = errors.New("dw down")
	cached, err := e.ActiveRegistrations(context.Background())
	require.NoError(t, err)
	assert.Equal(t, res, cached)
}

func TestActiveRegistrationsSourceFailure(t *testing.T) {
	f := newFixture()
	f.stock.allErr = errors.New("dw down")

	_, err := f.engine(Options{}).ActiveRegistrations(context.Background())
	assert.ErrorIs(t, err, ErrSourceUnavailable)
	assert.Equal(t, 1, f.rec.count(SourceAllRegistrations))
}

func TestActiveRegistrationsDegradedIsNotCached(t *testing.T) {
	f := newFixture()
	f.cons.err = errors.New("dw down")

	res, err := f.engine(Options{}).ActiveRegistrations(context.Background())
	require.NoError(t, err)
	require.Len(t, res.Items, 1)
	assert.Nil(t, res.Items[0].SupplyMonths)
	assert.False(t, f.store.Has(cache.ActiveRegistrationsKey()))
}

func TestPendingCommitments(t *testing.T) {
	f := newFixture()
	f.comm.list = commitments.ListPage{
		Items: []commitments.Commitment{{
			ID:           1,
			Material:     "586243",
			Balance:      4,
			UnitPrice:    decimal.NewNullDecimal(decimal.RequireFromString("2.5")),
			BalanceValue: decimal.NewNullDecimal(decimal.RequireFromString("10")),
			Status:       "Emitido",
		}},
		Total: 1, Page: 1, PageSize: 20,
	}
	e := f.engine(Options{})
	ctx := context.Background()

	page, err := e.PendingCommitments(ctx, commitments.ListFilter{Code: " 586243 "})
	require.NoError(t, err)
	assert.Equal(t, 1, page.Total)
	require.Len(t, f.comm.filters, 1)
	assert.Equal(t, commitments.ListFilter{Code: "586243", Page: 1, PageSize: 20}, f.comm.filters[0])

	_, err = e.PendingCommitments(ctx, commitments.ListFilter{Code: "586243"})
	require.NoError(t, err)
	assert.Len(t, f.comm.filters, 1, "second call served from cache")

	n, ok := e.Invalidate(cache.GroupRegistrations)
	require.True(t, ok)
	assert.GreaterOrEqual(t, n, 1)
	_, err = e.PendingCommitments(ctx, commitments.ListFilter{Code: "586243"})
	require.NoError(t, err)
	assert.Len(t, f.comm.filters, 2)
}

func TestPendingCommitmentsFailure(t *testing.T) {
	f := newFixture()
	f.comm.listErr = errors.New("conn refused")
	_, err := f.engine(Options{}).PendingCommitments(context.Background(), commitments.ListFilter{})
	assert.ErrorIs(t, err, ErrSourceUnavailable)
}

func TestCheckCacheAndWarmup(t *testing.T) {
	f := newFixture()
	e := f.engine(Options{})

	itemsKey := cache.ItemsKey(Query{}, 1, 50)
	assert.Equal(t, CacheEntry{Key: itemsKey}, e.CheckCache(itemsKey))

	require.NoError(t, e.Warmup(context.Background()))
	assert.Equal(t, CacheEntry{Key: itemsKey, Exists: true, HasData: true}, e.CheckCache(itemsKey))
	assert.True(t, e.CheckCache(cache.DashboardKey()).Exists)

	f.cat.err = errors.New("catalog down")
	e.ClearCache()
	err := e.Warmup(context.Background())
	assert.ErrorIs(t, err, ErrCatalogUnavailable)
}
