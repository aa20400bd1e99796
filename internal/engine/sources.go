package engine

import (
	"context"

	"github.com/Spok95/supplycover/internal/domain/catalog"
	"github.com/Spok95/supplycover/internal/domain/commitments"
	"github.com/Spok95/supplycover/internal/domain/consumption"
	"github.com/Spok95/supplycover/internal/domain/inventory"
)

// Все карты, которые возвращают источники, ключуются materials.Key(code).
// Отсутствие ключа означает «нет данных».

type CatalogSource interface {
	Page(ctx context.Context, f catalog.Filters, page, size int) ([]catalog.Item, int, error)
	// PageOnly - страница без подсчёта total.
	PageOnly(ctx context.Context, f catalog.Filters, page, size int) ([]catalog.Item, error)
	Count(ctx context.Context, f catalog.Filters) (int, error)
	FindByCodeOrDescription(ctx context.Context, term string) (*catalog.Item, error)
	Descriptions(ctx context.Context, codes []string) (map[string]string, error)
}

type NotesSource interface {
	LastNotes(ctx context.Context, ids []int64) (map[int64]catalog.Note, error)
}

type NoteWriter interface {
	SaveNote(ctx context.Context, in catalog.NoteInput) (catalog.HistoryEntry, error)
}

type ConsumptionSource interface {
	ByMastersAndMonths(ctx context.Context, codes []string, months []consumption.Period) (map[string]consumption.Series, error)
	LastBefore(ctx context.Context, codes []string, current consumption.Period) (map[string]consumption.MonthQty, error)
}

type StockSource interface {
	StandardizedCodes(ctx context.Context, codes []string) (map[string]string, error)
	Totals(ctx context.Context, codes []string) (map[string]inventory.Totals, error)
	Registrations(ctx context.Context, codes []string) (map[string][]inventory.Registration, error)
	GeneralStock(ctx context.Context, codes []string) (map[string]float64, error)
	AllRegistrations(ctx context.Context) (map[string][]inventory.Registration, error)
}

type CommitmentSource interface {
	ByMasterAndRegistration(ctx context.Context, pairs []commitments.Pair) (map[commitments.PairKey]string, error)
	ListPending(ctx context.Context, f commitments.ListFilter) (commitments.ListPage, error)
}

type Sources struct {
	Catalog     CatalogSource
	Notes       NotesSource
	History     NoteWriter
	Consumption ConsumptionSource
	Stock       StockSource
	Commitments CommitmentSource
}

// Имена источников в логах и метриках.
const (
	SourceCodes            = "standardized_codes"
	SourceConsumption      = "consumption"
	SourceLastConsumption  = "last_consumption"
	SourceTotals           = "totals"
	SourceRegistrations    = "registrations"
	SourceGeneralStock     = "general_stock"
	SourceNotes            = "notes"
	SourceCommitments      = "commitments"
	SourceDescriptions     = "descriptions"
	SourceAllRegistrations = "all_registrations"
)
