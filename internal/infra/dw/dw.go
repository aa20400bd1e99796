// Package dw - доступ к аналитическому хранилищу: квотирование идентификаторов,
// сборка параметров и circuit breaker вокруг запросов.
package dw

import (
	"context"
	"regexp"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5"
)

// Querier - минимум от пула, который нужен репозиториям. *pgxpool.Pool подходит.
type Querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

var plainIdent = regexp.MustCompile(`(?i)^[a-z_][a-z0-9_]*$`)

// QuoteIdent оставляет простые имена как есть, остальные (z_6º_mes и т.п.) берёт в кавычки.
func QuoteIdent(name string) string {
	n := strings.Trim(strings.TrimSpace(name), `"`)
	if plainIdent.MatchString(n) {
		return n
	}
	return pgx.Identifier{n}.Sanitize()
}

// Relation - полное имя витрины; пустая схема означает search_path.
func Relation(schema, view string) string {
	if strings.TrimSpace(schema) == "" {
		return QuoteIdent(view)
	}
	return QuoteIdent(schema) + "." + QuoteIdent(view)
}

// PrefixExpr - код материала до "-" (562.898-01 -> 562.898).
func PrefixExpr(column string) string {
	return "TRIM(SPLIT_PART(" + QuoteIdent(column) + "::text, '-', 1))"
}

// PeriodExpr переводит дату mesano в целое YYYYMM.
func PeriodExpr(column string) string {
	c := QuoteIdent(column)
	return "(EXTRACT(YEAR FROM " + c + ")::int * 100 + EXTRACT(MONTH FROM " + c + ")::int)"
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// ContainsPattern - образец "%s%" для ILIKE ... ESCAPE '\' с экранированными % и _.
func ContainsPattern(s string) string {
	return "%" + likeEscaper.Replace(s) + "%"
}

// Args собирает позиционные параметры $1..$n.
type Args struct {
	values []any
}

func (a *Args) Add(v any) string {
	a.values = append(a.values, v)
	return "$" + strconv.Itoa(len(a.values))
}

// List добавляет все значения и возвращает "$i, $j, ..." для IN (...).
func List[T any](a *Args, vs []T) string {
	ph := make([]string, len(vs))
	for i, v := range vs {
		ph[i] = a.Add(v)
	}
	return strings.Join(ph, ", ")
}

func (a *Args) Values() []any { return a.values }

func (a *Args) Len() int { return len(a.values) }

// Statement - готовый запрос с параметрами.
type Statement struct {
	SQL  string
	Args []any
}
