package commitments

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/Spok95/supplycover/internal/domain/materials"
	"github.com/Spok95/supplycover/internal/infra/dw"
)

const (
	DefaultListPageSize = 20
	MaxListPageSize     = 100
)

// ListFilter - фильтры списка эмпеньо с остатком к поставке.
type ListFilter struct {
	Code       string
	Commitment string
	Page       int
	PageSize   int
}

func (f ListFilter) Normalized() ListFilter {
	f.Code = strings.TrimSpace(f.Code)
	f.Commitment = strings.TrimSpace(f.Commitment)
	if f.Page < 1 {
		f.Page = 1
	}
	if f.PageSize <= 0 {
		f.PageSize = DefaultListPageSize
	}
	if f.PageSize > MaxListPageSize {
		f.PageSize = MaxListPageSize
	}
	return f
}

// String - стабильное представление для ключа кэша (без страницы).
func (f ListFilter) String() string {
	f = f.Normalized()
	v := url.Values{}
	if f.Code != "" {
		v.Set("code", f.Code)
	}
	if f.Commitment != "" {
		v.Set("empenho", f.Commitment)
	}
	return v.Encode()
}

// Commitment - эмпеньо, по которому поставка ещё не завершена.
type Commitment struct {
	ID           int64               `json:"id"`
	Supplier     *string             `json:"supplier"`
	Registration *string             `json:"registration"`
	Auction      *string             `json:"auction"`
	ValidUntil   *string             `json:"valid_until"`
	Item         *string             `json:"item"`
	Material     string              `json:"material"`
	Balance      float64             `json:"balance"`
	UnitPrice    decimal.NullDecimal `json:"unit_price"`
	BalanceValue decimal.NullDecimal `json:"balance_value"`
	Document     *string             `json:"document"`
	Status       string              `json:"status"`
}

type ListPage struct {
	Items    []Commitment `json:"items"`
	Total    int          `json:"total"`
	Page     int          `json:"page"`
	PageSize int          `json:"page_size"`
}

// Статусы позиции эмпеньо: частично поставлено (остаток в qt_saldo_item) и выпущено (весь объём в qt_de_embalagem).
const (
	statusPartial = "Atend. parcial"
	statusIssued  = "Emitido"
)

func listWhere(c Columns, f ListFilter, a *dw.Args) string {
	mat := "e." + dw.QuoteIdent(c.Material)
	partial, issued := a.Add(statusPartial), a.Add(statusIssued)
	conds := []string{
		"TRIM(COALESCE(e.status_item, '')) IN (" + partial + ", " + issued + ")",
		"UPPER(TRIM(COALESCE(e.fl_evento, ''))) = 'EMPENHO'",
		"UPPER(TRIM(COALESCE(e.status_pedido, ''))) <> 'GERADO'",
		"((TRIM(e.status_item) = " + partial + " AND COALESCE(e.qt_saldo_item, 0) > 0)" +
			" OR (TRIM(e.status_item) = " + issued + " AND COALESCE(e.qt_de_embalagem, 0) > 0))",
	}
	if f.Code != "" {
		variants := materials.Variants(f.Code)
		alts := make([]string, len(variants))
		for i, v := range variants {
			alts[i] = mat + "::text ILIKE " + a.Add(dw.ContainsPattern(v)) + ` ESCAPE '\'`
		}
		conds = append(conds, "("+strings.Join(alts, " OR ")+")")
	}
	if f.Commitment != "" {
		conds = append(conds, "e.nu_documento_siafi::text ILIKE "+a.Add(dw.ContainsPattern(f.Commitment))+` ESCAPE '\'`)
	}
	return "WHERE " + strings.Join(conds, "\n\t\t  AND ")
}

func listCountStatement(c Columns, f ListFilter) dw.Statement {
	var a dw.Args
	where := listWhere(c, f, &a)
	return dw.Statement{SQL: `SELECT COUNT(*) FROM ` + tableRef(c.Table) + ` e ` + where, Args: a.Values()}
}

func listPageStatement(c Columns, f ListFilter) dw.Statement {
	var a dw.Args
	where := listWhere(c, f, &a)
	mat := "e." + dw.QuoteIdent(c.Material)
	limit := a.Add(f.PageSize)
	offset := a.Add((f.Page - 1) * f.PageSize)
	sql := `
		SELECT e.id, e.nm_fornecedor::text, e.nu_registro_licitacao::text, e.nu_pregao::text,
		       e.dt_fim_vigencia::text, e.item::text, COALESCE(` + mat + `::text, ''),
		       (CASE WHEN TRIM(e.status_item) = $1 THEN COALESCE(e.qt_saldo_item, 0)
		             ELSE COALESCE(e.qt_de_embalagem, 0) END)::float8 AS qt_saldo,
		       e.vl_unidade::text, e.nu_documento_siafi::text, COALESCE(TRIM(e.status_item), '')
		FROM ` + tableRef(c.Table) + ` e
		` + where + `
		ORDER BY ` + mat + `, e.nu_documento_siafi NULLS LAST, e.id
		LIMIT ` + limit + ` OFFSET ` + offset
	return dw.Statement{SQL: sql, Args: a.Values()}
}

// ListPending - постраничный список эмпеньо, по которым ещё ждём поставку.
func (r *Repo) ListPending(ctx context.Context, f ListFilter) (ListPage, error) {
	f = f.Normalized()
	out := ListPage{Items: []Commitment{}, Page: f.Page, PageSize: f.PageSize}

	st := listCountStatement(r.cols, f)
	rows, err := r.db.Query(ctx, st.SQL, st.Args...)
	if err != nil {
		return ListPage{}, fmt.Errorf("count open commitments: %w", err)
	}
	for rows.Next() {
		if err := rows.Scan(&out.Total); err != nil {
			rows.Close()
			return ListPage{}, fmt.Errorf("scan open commitments count: %w", err)
		}
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return ListPage{}, fmt.Errorf("count open commitments: %w", err)
	}
	if out.Total == 0 {
		return out, nil
	}

	st = listPageStatement(r.cols, f)
	rows, err = r.db.Query(ctx, st.SQL, st.Args...)
	if err != nil {
		return ListPage{}, fmt.Errorf("query open commitments: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			c     Commitment
			price *string
		)
		if err := rows.Scan(&c.ID, &c.Supplier, &c.Registration, &c.Auction, &c.ValidUntil, &c.Item,
			&c.Material, &c.Balance, &price, &c.Document, &c.Status); err != nil {
			return ListPage{}, fmt.Errorf("scan open commitment: %w", err)
		}
		c.Material = strings.TrimSpace(c.Material)
		if price != nil {
			if d, err := decimal.NewFromString(strings.TrimSpace(*price)); err == nil {
				c.UnitPrice = decimal.NewNullDecimal(d)
				c.BalanceValue = decimal.NewNullDecimal(d.Mul(decimal.NewFromFloat(c.Balance)))
			}
		}
		out.Items = append(out.Items, c)
	}
	return out, rows.Err()
}
