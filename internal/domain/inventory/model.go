package inventory

import "github.com/shopspring/decimal"

// Registration - строка витрины v_df_consumo_estoque: ценовая регистрация (ata) по материалу
// вместе со складским остатком и ожидаемым поступлением.
type Registration struct {
	Number     string              `json:"number"`
	ValidUntil string              `json:"valid_until"`
	UnitPrice  decimal.NullDecimal `json:"unit_price"`
	// Balance - остаток по регистрации (qtde_a_empenhar); nil, если витрина его не отдаёт.
	Balance *float64 `json:"balance"`
	InStock float64  `json:"in_stock"`
	Pending float64  `json:"pending"`
}

// Totals - суммы по материалу: склад и ожидаемое поступление по заявкам.
type Totals struct {
	InStock float64 `json:"in_stock"`
	Pending float64 `json:"pending"`
}

func (t Totals) Add(o Totals) Totals {
	return Totals{InStock: t.InStock + o.InStock, Pending: t.Pending + o.Pending}
}

// Virtual - склад плюс ожидаемое поступление.
func (t Totals) Virtual() float64 { return t.InStock + t.Pending }
