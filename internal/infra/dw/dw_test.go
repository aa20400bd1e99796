package dw

import (
	"errors"
	"testing"
	"time"

	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQuoteIdent(t *testing.T) {
	assert.Equal(t, "codigo_padronizado", QuoteIdent("codigo_padronizado"))
	assert.Equal(t, "codigo_padronizado", QuoteIdent(` "codigo_padronizado" `))
	assert.Equal(t, `"z_6º_mes"`, QuoteIdent("z_6º_mes"))
	assert.Equal(t, `"bad""name"`, QuoteIdent(`bad"name`))
}

func TestRelation(t *testing.T) {
	assert.Equal(t, "v_df_movimento", Relation("", "v_df_movimento"))
	assert.Equal(t, "gad_dlih_safs.v_df_movimento", Relation("gad_dlih_safs", "v_df_movimento"))
}

func TestExpressions(t *testing.T) {
	assert.Equal(t, "TRIM(SPLIT_PART(mat_cod_antigo::text, '-', 1))", PrefixExpr("mat_cod_antigo"))
	assert.Equal(t, "(EXTRACT(YEAR FROM mesano)::int * 100 + EXTRACT(MONTH FROM mesano)::int)", PeriodExpr("mesano"))
}

func TestArgs(t *testing.T) {
	var a Args
	assert.Equal(t, "$1, $2", List(&a, []string{"586243", "586.243"}))
	assert.Equal(t, "$3", a.Add(202506))
	assert.Equal(t, []any{"586243", "586.243", 202506}, a.Values())
	assert.Equal(t, 3, a.Len())
}

func TestLayoutDefaults(t *testing.T) {
	l := Layout{Schema: "GAD_DLIH_SAFS"}.WithDefaults()
	assert.True(t, l.SpecColumns)
	assert.Equal(t, "qtde_a_receber", l.PendingColumn())
	assert.Equal(t, "numero_do_registro", l.RegistrationColumn())
	assert.Equal(t, "GAD_DLIH_SAFS.v_df_consumo_estoque", l.ConsumptionStock())

	p := Layout{}.WithDefaults()
	assert.False(t, p.SpecColumns)
	assert.Equal(t, "saldo_empenhos", p.PendingColumn())
	assert.Equal(t, "NULL::numeric", p.RegistrationBalanceExpr())
	assert.Equal(t, "v_df_estoque", p.Stock())
}

func TestBreakerOpensAfterFailures(t *testing.T) {
	b := NewBreaker("test", BreakerConfig{Enabled: true, MaxFailures: 2, OpenTimeout: time.Hour}, nil)
	boom := errors.New("boom")
	calls := 0
	fail := func() (int, error) { calls++; return 0, boom }

	for i := 0; i < 2; i++ {
		_, err := Run(b, fail)
		require.ErrorIs(t, err, boom)
	}
	_, err := Run(b, fail)
	assert.ErrorIs(t, err, gobreaker.ErrOpenState)
	assert.Equal(t, 2, calls)
	assert.Equal(t, "open", b.State())
}

func TestNilBreakerPassesThrough(t *testing.T) {
	b := NewBreaker("off", BreakerConfig{}, nil)
	assert.Nil(t, b)
	v, err := Run(b, func() (map[string]int, error) { return map[string]int{"a": 1}, nil })
	require.NoError(t, err)
	assert.Equal(t, 1, v["a"])
	assert.Equal(t, "disabled", b.State())
}

func TestContainsPattern(t *testing.T) {
	assert.Equal(t, `%586%`, ContainsPattern("586"))
	assert.Equal(t, `%50\%\_x%`, ContainsPattern("50%_x"))
}
