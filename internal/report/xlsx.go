// Package report выгружает строки отчёта о покрытии в xlsx.
package report

import (
	"context"
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"github.com/Spok95/supplycover/internal/domain/consumption"
	"github.com/Spok95/supplycover/internal/engine"
)

const SheetName = "Cobertura"

// Pager - источник страниц отчёта (engine.Engine).
type Pager interface {
	Items(ctx context.Context, q engine.Query) (engine.Page, error)
}

// Collect проходит все страницы каталога с фильтрами q. Шаг берётся из применённого
// размера страницы: движок может урезать pageSize до своего максимума.
func Collect(ctx context.Context, p Pager, q engine.Query, pageSize int) (engine.Page, error) {
	if pageSize <= 0 {
		return engine.Page{}, fmt.Errorf("page size must be positive, got %d", pageSize)
	}
	q.PageSize = pageSize
	var out engine.Page
	for page := 1; ; page++ {
		q.Page = page
		res, err := p.Items(ctx, q)
		if err != nil {
			return engine.Page{}, err
		}
		if page == 1 {
			out.Total = res.Total
			out.Months = res.Months
		}
		out.Items = append(out.Items, res.Items...)
		size := res.PageSize
		if size <= 0 {
			size = pageSize
		}
		if page*size >= res.Total {
			break
		}
	}
	return out, nil
}

func header(months []consumption.Period) []any {
	row := []any{"Código", "Material", "Classificação", "Responsável", "Setor"}
	for _, m := range months {
		row = append(row, m.String())
	}
	return append(row,
		"Média", "Último consumo", "Qtde último consumo",
		"Estoque", "Estoque geral", "A receber", "Cobertura (meses)",
		"Registro", "Vigência", "Saldo registro", "Valor unitário",
		"Pré-empenho", "Status",
	)
}

func optional[T any](v *T) any {
	if v == nil {
		return ""
	}
	return *v
}

func itemRow(it engine.Item) []any {
	row := []any{it.Master, it.Label, it.Classification, it.Responsible, it.Sector}
	for _, q := range it.Monthly {
		row = append(row, q)
	}
	last := ""
	if it.LastPeriod != nil {
		last = it.LastPeriod.String()
	}
	row = append(row, it.Average, last, it.LastQty, it.InStock, it.GeneralStock, it.Pending, optional(it.Coverage))

	if r := it.Registration; r != nil {
		var price any = ""
		if r.UnitPrice.Valid {
			price = r.UnitPrice.Decimal.InexactFloat64()
		}
		row = append(row, r.Number, r.ValidUntil, optional(r.Balance), price)
	} else {
		row = append(row, "", "", "", "")
	}
	return append(row, optional(it.PendingCommitment), string(it.Status))
}

// Write пишет страницу одним листом: заголовок, затем по строке на Item.
func Write(w io.Writer, page engine.Page) error {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	sheet := f.GetSheetName(f.GetActiveSheetIndex())
	if err := f.SetSheetName(sheet, SheetName); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}

	head := header(page.Months)
	if err := f.SetSheetRow(SheetName, "A1", &head); err != nil {
		return fmt.Errorf("header: %w", err)
	}
	for i, it := range page.Items {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		row := itemRow(it)
		if err := f.SetSheetRow(SheetName, cell, &row); err != nil {
			return fmt.Errorf("row %d: %w", i+2, err)
		}
	}
	if err := f.SetPanes(SheetName, &excelize.Panes{Freeze: true, YSplit: 1, TopLeftCell: "A2", ActivePane: "bottomLeft"}); err != nil {
		return fmt.Errorf("freeze header: %w", err)
	}

	_, err := f.WriteTo(w)
	return err
}
