// Package commitments ищет номера пре-эмпеньо (ещё не проведённых заявок) по паре материал + регистрация.
package commitments

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/Spok95/supplycover/internal/domain/materials"
	"github.com/Spok95/supplycover/internal/infra/dw"
)

// Pair - материал и номер его действующей регистрации.
type Pair struct {
	Code         string
	Registration string
}

// PairKey - ключ результата: канонический код материала и обрезанный номер регистрации.
type PairKey struct {
	Code         string
	Registration string
}

func KeyOf(p Pair) PairKey {
	return PairKey{Code: materials.Key(p.Code), Registration: strings.TrimSpace(p.Registration)}
}

// String - "код|регистрация", используется в ключах кэша.
func (k PairKey) String() string { return k.Code + "|" + k.Registration }

type Columns struct {
	Table    string `mapstructure:"table"`
	Material string `mapstructure:"material_column"`
	Number   string `mapstructure:"number_column"`
}

func (c Columns) WithDefaults() Columns {
	if c.Table == "" {
		c.Table = "public.empenho"
	}
	if c.Material == "" {
		c.Material = "cd_material"
	}
	if c.Number == "" {
		c.Number = "cd_empenho"
	}
	return c
}

type Repo struct {
	db   dw.Querier
	cols Columns
}

func NewRepo(db dw.Querier, cols Columns) *Repo {
	return &Repo{db: db, cols: cols.WithDefaults()}
}

func tableRef(name string) string {
	if schema, table, ok := strings.Cut(name, "."); ok {
		return dw.Relation(schema, table)
	}
	return dw.QuoteIdent(name)
}

// pendingStatement строит запрос по списку (вариант кода, регистрация) через VALUES.
// Пары без номера регистрации в запрос не попадают.
func pendingStatement(c Columns, pairs []Pair) (dw.Statement, bool) {
	seen := make(map[[2]string]struct{})
	var rows [][2]string
	for _, p := range pairs {
		nr := strings.TrimSpace(p.Registration)
		if nr == "" || strings.TrimSpace(p.Code) == "" {
			continue
		}
		for _, v := range materials.Variants(p.Code) {
			k := [2]string{v, nr}
			if _, ok := seen[k]; ok {
				continue
			}
			seen[k] = struct{}{}
			rows = append(rows, k)
		}
	}
	if len(rows) == 0 {
		return dw.Statement{}, false
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i][0] != rows[j][0] {
			return rows[i][0] < rows[j][0]
		}
		return rows[i][1] < rows[j][1]
	})

	var a dw.Args
	values := make([]string, len(rows))
	for i, r := range rows {
		values[i] = "(" + a.Add(r[0]) + "::text, " + a.Add(r[1]) + "::text)"
	}
	mat := "e." + dw.QuoteIdent(c.Material)
	num := "e." + dw.QuoteIdent(c.Number)
	sql := `
		SELECT DISTINCT ON (` + mat + `, e.nu_registro_licitacao)
		       ` + mat + `::text AS material,
		       e.nu_registro_licitacao::text AS numero_registro,
		       ` + num + `::text AS numero_pre_empenho
		FROM ` + tableRef(c.Table) + ` e
		WHERE UPPER(TRIM(COALESCE(e.fl_evento, ''))) = 'EMPENHO'
		  AND e.nu_documento_siafi IS NULL
		  AND e.nu_registro_licitacao IS NOT NULL
		  AND TRIM(e.nu_registro_licitacao) <> ''
		  AND UPPER(TRIM(COALESCE(e.status_pedido, ''))) = 'GERADO'
		  AND (` + mat + `::text, e.nu_registro_licitacao) IN (VALUES ` + strings.Join(values, ", ") + `)
		ORDER BY ` + mat + `, e.nu_registro_licitacao`
	return dw.Statement{SQL: sql, Args: a.Values()}, true
}

// ByMasterAndRegistration возвращает номер пре-эмпеньо по каждой паре, где он найден.
// Отсутствие ключа означает, что заявки нет.
func (r *Repo) ByMasterAndRegistration(ctx context.Context, pairs []Pair) (map[PairKey]string, error) {
	out := make(map[PairKey]string)
	st, ok := pendingStatement(r.cols, pairs)
	if !ok {
		return out, nil
	}
	rows, err := r.db.Query(ctx, st.SQL, st.Args...)
	if err != nil {
		return nil, fmt.Errorf("query pending commitments: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var material, registration string
		var number *string
		if err := rows.Scan(&material, &registration, &number); err != nil {
			return nil, fmt.Errorf("scan pending commitment: %w", err)
		}
		if number == nil {
			continue
		}
		k := KeyOf(Pair{Code: material, Registration: registration})
		if _, dup := out[k]; dup {
			continue
		}
		out[k] = *number
	}
	return out, rows.Err()
}
