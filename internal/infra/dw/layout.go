package dw

import "strings"

// SpecSchema - схема, в которой витрины используют колонки qtde_a_receber / numero_do_registro / qtde_a_empenhar.
const SpecSchema = "gad_dlih_safs"

// Layout описывает, где и под какими именами лежат витрины. Колонки материала различаются по витринам.
type Layout struct {
	Schema                 string `mapstructure:"schema"`
	ConsumptionStockView   string `mapstructure:"consumption_stock_view"`
	MovementView           string `mapstructure:"movement_view"`
	StockView              string `mapstructure:"stock_view"`
	MaterialColumn         string `mapstructure:"material_column"`
	MovementMaterialColumn string `mapstructure:"movement_material_column"`
	StockMaterialColumn    string `mapstructure:"stock_material_column"`
	SpecColumns            bool   `mapstructure:"spec_columns"`
}

func (l Layout) WithDefaults() Layout {
	if l.ConsumptionStockView == "" {
		l.ConsumptionStockView = "v_df_consumo_estoque"
	}
	if l.MovementView == "" {
		l.MovementView = "v_df_movimento"
	}
	if l.StockView == "" {
		l.StockView = "v_df_estoque"
	}
	if l.MaterialColumn == "" {
		l.MaterialColumn = "codigo_padronizado"
	}
	if l.MovementMaterialColumn == "" {
		l.MovementMaterialColumn = "mat_cod_antigo"
	}
	if l.StockMaterialColumn == "" {
		l.StockMaterialColumn = "mat_cod_antigo"
	}
	if strings.EqualFold(strings.TrimSpace(l.Schema), SpecSchema) {
		l.SpecColumns = true
	}
	return l
}

func (l Layout) ConsumptionStock() string { return Relation(l.Schema, l.ConsumptionStockView) }
func (l Layout) Movement() string         { return Relation(l.Schema, l.MovementView) }
func (l Layout) Stock() string            { return Relation(l.Schema, l.StockView) }

// PendingColumn - остаток по выставленным заявкам (saldo de empenhos).
func (l Layout) PendingColumn() string {
	if l.SpecColumns {
		return "qtde_a_receber"
	}
	return "saldo_empenhos"
}

func (l Layout) RegistrationColumn() string {
	if l.SpecColumns {
		return "numero_do_registro"
	}
	return "numero_registro"
}

// RegistrationBalanceExpr - остаток по регистрации; без расширенных колонок его нет.
func (l Layout) RegistrationBalanceExpr() string {
	if l.SpecColumns {
		return "COALESCE(qtde_a_empenhar::numeric, 0)"
	}
	return "NULL::numeric"
}
