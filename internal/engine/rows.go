package engine

import (
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/shopspring/decimal"

	"github.com/Spok95/supplycover/internal/domain/catalog"
	"github.com/Spok95/supplycover/internal/domain/commitments"
	"github.com/Spok95/supplycover/internal/domain/consumption"
	"github.com/Spok95/supplycover/internal/domain/coverage"
	"github.com/Spok95/supplycover/internal/domain/inventory"
	"github.com/Spok95/supplycover/internal/domain/materials"
)

// RowID - позиция каталога и, если строк несколько, номер регистрации.
type RowID struct {
	CatalogID    int64   `json:"catalog_id"`
	Registration *string `json:"registration,omitempty"`
}

func (r RowID) String() string {
	if r.Registration == nil {
		return strconv.FormatInt(r.CatalogID, 10)
	}
	return strconv.FormatInt(r.CatalogID, 10) + "/" + *r.Registration
}

// RegistrationInfo - данные действующей регистрации в строке отчёта.
type RegistrationInfo struct {
	Number     string              `json:"number"`
	ValidUntil string              `json:"valid_until"`
	Balance    *float64            `json:"balance"`
	UnitPrice  decimal.NullDecimal `json:"unit_price"`
}

// Item - строка отчёта. При N действующих регистрациях позиция даёт N строк, без них - одну.
type Item struct {
	ID             RowID  `json:"id"`
	Master         string `json:"master"`
	Label          string `json:"label"`
	Classification string `json:"classification"`
	Responsible    string `json:"responsible"`
	Sector         string `json:"sector"`
	Presentation   string `json:"presentation"`
	XYZ            string `json:"xyz"`

	Monthly      []float64           `json:"monthly"`
	Average      float64             `json:"average"`
	LastPeriod   *consumption.Period `json:"last_period"`
	LastQty      float64             `json:"last_qty"`
	InStock      float64             `json:"in_stock"`
	GeneralStock float64             `json:"general_stock"`
	Pending      float64             `json:"pending"`
	Coverage     *float64            `json:"coverage"`

	Registration          *RegistrationInfo `json:"registration"`
	PendingCommitment     *string           `json:"pending_commitment"`
	HasActiveRegistration bool              `json:"has_active_registration"`
	Status                coverage.Status   `json:"status"`

	PackSize        *float64 `json:"pack_size"`
	StorageType     *string  `json:"storage_type"`
	StorageCapacity *string  `json:"storage_capacity"`
	Observation     *string  `json:"observation"`
}

const labelLimit = 80

// Label: стандартизованный код из витрины, иначе "код - описание" (описание до 80 символов).
func Label(it catalog.Item, standardized string) string {
	if s := strings.TrimSpace(standardized); s != "" {
		return s
	}
	desc := ""
	for _, d := range []string{it.MaterialDescription, it.Description, it.Acquisition} {
		if d = strings.TrimSpace(d); d != "" {
			desc = d
			break
		}
	}
	if desc == "" {
		return it.Master
	}
	if utf8.RuneCountInString(desc) > labelLimit {
		desc = string([]rune(desc)[:labelLimit]) + "..."
	}
	return it.Master + " - " + desc
}

// assessment - расчёт по позиции, общий для всех её строк.
type assessment struct {
	summary  consumption.Summary
	totals   inventory.Totals
	coverage float64
	defined  bool
	active   []inventory.Registration
	status   coverage.Status
}

func assess(series consumption.Series, totals inventory.Totals, active []inventory.Registration, window []consumption.Period) assessment {
	sum := consumption.Summarize(series, window)
	totals = inventory.Totals{InStock: coverage.ClampStock(totals.InStock), Pending: coverage.ClampStock(totals.Pending)}
	cov, ok := coverage.Compute(totals.InStock, totals.Pending, sum.Average)
	return assessment{
		summary:  sum,
		totals:   totals,
		coverage: cov,
		defined:  ok,
		active:   active,
		status:   coverage.Classify(cov, ok, len(active) > 0),
	}
}

func buildRows(it catalog.Item, d *pageData, window []consumption.Period) []Item {
	k := materials.Key(it.Master)
	a := assess(d.series[k], d.totals[k], d.active[k], window)

	base := Item{
		ID:                    RowID{CatalogID: it.ID},
		Master:                it.Master,
		Label:                 Label(it, d.standardized[k]),
		Classification:        it.Acquisition,
		Responsible:           it.Responsible,
		Sector:                it.Sector,
		Presentation:          it.Presentation,
		XYZ:                   it.XYZ,
		Monthly:               a.summary.Monthly,
		Average:               a.summary.Average,
		InStock:               a.totals.InStock,
		GeneralStock:          coverage.ClampStock(d.general[k]),
		Pending:               a.totals.Pending,
		HasActiveRegistration: len(a.active) > 0,
		Status:                a.status,
	}
	if a.defined {
		c := a.coverage
		base.Coverage = &c
	}
	if last, ok := d.last[k]; ok && consumption.Normalize(last.Qty) > 0 {
		p := last.Period
		base.LastPeriod = &p
		base.LastQty = consumption.Normalize(last.Qty)
	}
	if n, ok := d.notes[it.ID]; ok {
		base.PackSize = n.PackSize
		base.StorageType = n.StorageType
		base.StorageCapacity = n.StorageCapacity
		base.Observation = n.Observation
	}

	if len(a.active) == 0 {
		return []Item{base}
	}
	rows := make([]Item, 0, len(a.active))
	for _, r := range a.active {
		row := base
		nr := r.Number
		row.ID = RowID{CatalogID: it.ID, Registration: &nr}
		row.Registration = &RegistrationInfo{
			Number:     r.Number,
			ValidUntil: r.ValidUntil,
			Balance:    r.Balance,
			UnitPrice:  r.UnitPrice,
		}
		if num, ok := d.pending[commitments.KeyOf(commitments.Pair{Code: it.Master, Registration: r.Number})]; ok {
			n := num
			row.PendingCommitment = &n
		}
		rows = append(rows, row)
	}
	return rows
}
