package consumption

import (
	"context"
	"fmt"
	"strings"

	"github.com/Spok95/supplycover/internal/domain/materials"
	"github.com/Spok95/supplycover/internal/infra/dw"
)

// Repo читает расход из витрины движений (v_df_movimento): movimento_cd = 'RM', qtde_orig > 0.
type Repo struct {
	db     dw.Querier
	layout dw.Layout
	br     *dw.Breaker
}

func NewRepo(db dw.Querier, layout dw.Layout, br *dw.Breaker) *Repo {
	return &Repo{db: db, layout: layout.WithDefaults(), br: br}
}

const periodColumn = "mesano"

func monthsStatement(l dw.Layout, codes []string, months []Period) dw.Statement {
	prefix := dw.PrefixExpr(l.MovementMaterialColumn)
	period := dw.PeriodExpr(periodColumn)
	var a dw.Args
	inCodes := dw.List(&a, materials.ExpandAll(codes))
	ms := make([]int, len(months))
	for i, m := range months {
		ms[i] = int(m)
	}
	inMonths := dw.List(&a, ms)
	sql := `
		SELECT ` + prefix + ` AS master_code, ` + period + ` AS mesano, COALESCE(SUM(qtde_orig::numeric), 0)::float8 AS total
		FROM ` + l.Movement() + `
		WHERE ` + prefix + ` IN (` + inCodes + `)
		  AND ` + period + ` IN (` + inMonths + `)
		  AND movimento_cd = 'RM' AND qtde_orig::numeric > 0
		GROUP BY ` + prefix + `, ` + period
	return dw.Statement{SQL: sql, Args: a.Values()}
}

func lastBeforeStatement(l dw.Layout, codes []string, current Period) dw.Statement {
	prefix := dw.PrefixExpr(l.MovementMaterialColumn)
	period := dw.PeriodExpr(periodColumn)
	var a dw.Args
	inCodes := dw.List(&a, materials.ExpandAll(codes))
	cur := a.Add(int(current))
	sql := `
		SELECT DISTINCT ON (` + prefix + `)
		       ` + prefix + ` AS master_code, ` + period + ` AS mesano, COALESCE(SUM(qtde_orig::numeric), 0)::float8 AS qtde
		FROM ` + l.Movement() + `
		WHERE ` + prefix + ` IN (` + inCodes + `)
		  AND COALESCE(TRIM(movimento_cd::text), '') = 'RM'
		  AND COALESCE(qtde_orig::numeric, 0) > 0
		  AND ` + period + ` < ` + cur + `
		GROUP BY ` + prefix + `, ` + period + `
		ORDER BY ` + prefix + `, ` + period + ` DESC`
	return dw.Statement{SQL: sql, Args: a.Values()}
}

// ByMastersAndMonths - расход по месяцам для набора кодов одним запросом.
// Ключ результата - materials.Key кода.
func (r *Repo) ByMastersAndMonths(ctx context.Context, codes []string, months []Period) (map[string]Series, error) {
	out := make(map[string]Series)
	if len(codes) == 0 || len(months) == 0 {
		return out, nil
	}
	st := monthsStatement(r.layout, codes, months)
	return dw.Run(r.br, func() (map[string]Series, error) {
		rows, err := r.db.Query(ctx, st.SQL, st.Args...)
		if err != nil {
			return nil, fmt.Errorf("query consumption by months: %w", err)
		}
		defer rows.Close()

		for rows.Next() {
			var (
				code   string
				period int
				total  float64
			)
			if err := rows.Scan(&code, &period, &total); err != nil {
				return nil, fmt.Errorf("scan consumption row: %w", err)
			}
			if strings.TrimSpace(code) == "" {
				continue
			}
			k := materials.Key(code)
			out[k] = append(out[k], MonthQty{Period: Period(period), Qty: total})
		}
		return out, rows.Err()
	})
}

// LastBefore - последний месяц с расходом строго до current, по каждому коду.
func (r *Repo) LastBefore(ctx context.Context, codes []string, current Period) (map[string]MonthQty, error) {
	out := make(map[string]MonthQty)
	if len(codes) == 0 {
		return out, nil
	}
	st := lastBeforeStatement(r.layout, codes, current)
	return dw.Run(r.br, func() (map[string]MonthQty, error) {
		rows, err := r.db.Query(ctx, st.SQL, st.Args...)
		if err != nil {
			return nil, fmt.Errorf("query last consumption: %w", err)
		}
		defer rows.Close()

		for rows.Next() {
			var (
				code   string
				period int
				qty    float64
			)
			if err := rows.Scan(&code, &period, &qty); err != nil {
				return nil, fmt.Errorf("scan last consumption row: %w", err)
			}
			if strings.TrimSpace(code) == "" {
				continue
			}
			k := materials.Key(code)
			// два написания кода дают две строки; берём более поздний месяц
			if prev, ok := out[k]; ok && prev.Period >= Period(period) {
				continue
			}
			out[k] = MonthQty{Period: Period(period), Qty: qty}
		}
		return out, rows.Err()
	})
}
