package inventory

import (
	"context"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/Spok95/supplycover/internal/domain/materials"
	"github.com/Spok95/supplycover/internal/infra/dw"
)

// Repo читает остатки и регистрации из витрин v_df_consumo_estoque и v_df_estoque.
type Repo struct {
	db     dw.Querier
	layout dw.Layout
	br     *dw.Breaker
}

func NewRepo(db dw.Querier, layout dw.Layout, br *dw.Breaker) *Repo {
	return &Repo{db: db, layout: layout.WithDefaults(), br: br}
}

func standardizedStatement(l dw.Layout, codes []string) dw.Statement {
	prefix := dw.PrefixExpr(l.MaterialColumn)
	col := dw.QuoteIdent(l.MaterialColumn)
	var a dw.Args
	in := dw.List(&a, materials.ExpandAll(codes))
	sql := `
		SELECT DISTINCT ON (` + prefix + `) ` + prefix + ` AS master_code, ` + col + `::text AS codigo_padronizado
		FROM ` + l.ConsumptionStock() + `
		WHERE ` + prefix + ` IN (` + in + `)
		ORDER BY ` + prefix + `, ` + col
	return dw.Statement{SQL: sql, Args: a.Values()}
}

func totalsStatement(l dw.Layout, codes []string) dw.Statement {
	prefix := dw.PrefixExpr(l.MaterialColumn)
	var a dw.Args
	in := dw.List(&a, materials.ExpandAll(codes))
	sql := `
		SELECT ` + prefix + ` AS master_code,
		       COALESCE(SUM(qtde_em_estoque::numeric), 0)::float8 AS estoque_almoxarifados,
		       COALESCE(SUM(` + l.PendingColumn() + `::numeric), 0)::float8 AS saldo_empenhos
		FROM ` + l.ConsumptionStock() + `
		WHERE ` + prefix + ` IN (` + in + `)
		GROUP BY ` + prefix
	return dw.Statement{SQL: sql, Args: a.Values()}
}

// registrationsStatement: codes == nil - все материалы витрины.
func registrationsStatement(l dw.Layout, codes []string) dw.Statement {
	prefix := dw.PrefixExpr(l.MaterialColumn)
	var a dw.Args
	codeCond := ""
	if codes != nil {
		codeCond = prefix + ` IN (` + dw.List(&a, materials.ExpandAll(codes)) + `)
		  AND `
	}
	balanceCond := ""
	if l.SpecColumns {
		balanceCond = " AND COALESCE(qtde_a_empenhar::numeric, 0) > 0"
	}
	sql := `
		SELECT ` + prefix + ` AS master_code,
		       COALESCE(qtde_em_estoque::numeric, 0)::float8 AS estoque_almoxarifados,
		       COALESCE(` + l.PendingColumn() + `::numeric, 0)::float8 AS saldo_empenhos,
		       ` + l.RegistrationColumn() + `::text AS numero_registro,
		       fim_vigencia::text AS vigencia,
		       valor_unitario::text AS valor_unitario,
		       ` + l.RegistrationBalanceExpr() + `::float8 AS saldo_registro
		FROM ` + l.ConsumptionStock() + `
		WHERE ` + codeCond + `(fim_vigencia::date >= CURRENT_DATE OR fim_vigencia IS NULL)` + balanceCond
	return dw.Statement{SQL: sql, Args: a.Values()}
}

func generalStockStatement(l dw.Layout, codes []string) dw.Statement {
	prefix := dw.PrefixExpr(l.StockMaterialColumn)
	var a dw.Args
	in := dw.List(&a, materials.ExpandAll(codes))
	sql := `
		SELECT ` + prefix + ` AS master_code, COALESCE(SUM(saldo::numeric), 0)::float8 AS total
		FROM ` + l.Stock() + `
		WHERE ` + prefix + ` IN (` + in + `)
		GROUP BY ` + prefix
	return dw.Statement{SQL: sql, Args: a.Values()}
}

// StandardizedCodes - полный код из витрины (586.243-01) по каждому материалу.
func (r *Repo) StandardizedCodes(ctx context.Context, codes []string) (map[string]string, error) {
	out := make(map[string]string)
	if len(codes) == 0 {
		return out, nil
	}
	st := standardizedStatement(r.layout, codes)
	return dw.Run(r.br, func() (map[string]string, error) {
		rows, err := r.db.Query(ctx, st.SQL, st.Args...)
		if err != nil {
			return nil, fmt.Errorf("query standardized codes: %w", err)
		}
		defer rows.Close()

		for rows.Next() {
			var code string
			var std *string
			if err := rows.Scan(&code, &std); err != nil {
				return nil, fmt.Errorf("scan standardized code: %w", err)
			}
			k := materials.Key(code)
			if k == "" {
				continue
			}
			if _, ok := out[k]; ok {
				continue
			}
			if std != nil && strings.TrimSpace(*std) != "" {
				out[k] = strings.TrimSpace(*std)
			} else {
				out[k] = strings.TrimSpace(code)
			}
		}
		return out, rows.Err()
	})
}

// Totals - склад и ожидаемое поступление по материалу, суммарно по всем строкам витрины.
func (r *Repo) Totals(ctx context.Context, codes []string) (map[string]Totals, error) {
	out := make(map[string]Totals)
	if len(codes) == 0 {
		return out, nil
	}
	st := totalsStatement(r.layout, codes)
	return dw.Run(r.br, func() (map[string]Totals, error) {
		rows, err := r.db.Query(ctx, st.SQL, st.Args...)
		if err != nil {
			return nil, fmt.Errorf("query stock totals: %w", err)
		}
		defer rows.Close()

		for rows.Next() {
			var code string
			var t Totals
			if err := rows.Scan(&code, &t.InStock, &t.Pending); err != nil {
				return nil, fmt.Errorf("scan stock totals: %w", err)
			}
			k := materials.Key(code)
			if k == "" {
				continue
			}
			out[k] = out[k].Add(t)
		}
		return out, rows.Err()
	})
}

// Registrations - регистрации, у которых срок ещё не истёк по мнению витрины.
// Окончательный отбор действующих делает FilterActive.
func (r *Repo) Registrations(ctx context.Context, codes []string) (map[string][]Registration, error) {
	if len(codes) == 0 {
		return make(map[string][]Registration), nil
	}
	return r.registrations(ctx, registrationsStatement(r.layout, codes))
}

// AllRegistrations - то же по всей витрине, для сводки действующих регистраций.
func (r *Repo) AllRegistrations(ctx context.Context) (map[string][]Registration, error) {
	return r.registrations(ctx, registrationsStatement(r.layout, nil))
}

func (r *Repo) registrations(ctx context.Context, st dw.Statement) (map[string][]Registration, error) {
	return dw.Run(r.br, func() (map[string][]Registration, error) {
		out := make(map[string][]Registration)
		rows, err := r.db.Query(ctx, st.SQL, st.Args...)
		if err != nil {
			return nil, fmt.Errorf("query registrations: %w", err)
		}
		defer rows.Close()

		for rows.Next() {
			var (
				code                    string
				reg                     Registration
				number, validUntil, prc *string
			)
			if err := rows.Scan(&code, &reg.InStock, &reg.Pending, &number, &validUntil, &prc, &reg.Balance); err != nil {
				return nil, fmt.Errorf("scan registration: %w", err)
			}
			k := materials.Key(code)
			if k == "" {
				continue
			}
			if number != nil {
				reg.Number = strings.TrimSpace(*number)
			}
			if validUntil != nil {
				reg.ValidUntil = strings.TrimSpace(*validUntil)
			}
			if prc != nil {
				if d, err := decimal.NewFromString(strings.TrimSpace(*prc)); err == nil {
					reg.UnitPrice = decimal.NullDecimal{Decimal: d, Valid: true}
				}
			}
			out[k] = append(out[k], reg)
		}
		return out, rows.Err()
	})
}

// GeneralStock - остаток по всему комплексу (v_df_estoque.saldo).
func (r *Repo) GeneralStock(ctx context.Context, codes []string) (map[string]float64, error) {
	out := make(map[string]float64)
	if len(codes) == 0 {
		return out, nil
	}
	st := generalStockStatement(r.layout, codes)
	return dw.Run(r.br, func() (map[string]float64, error) {
		rows, err := r.db.Query(ctx, st.SQL, st.Args...)
		if err != nil {
			return nil, fmt.Errorf("query general stock: %w", err)
		}
		defer rows.Close()

		for rows.Next() {
			var code string
			var total float64
			if err := rows.Scan(&code, &total); err != nil {
				return nil, fmt.Errorf("scan general stock: %w", err)
			}
			k := materials.Key(code)
			if k == "" {
				continue
			}
			out[k] += total
		}
		return out, rows.Err()
	})
}
