// Package coverage считает покрытие запаса в месяцах и уровень риска.
package coverage

import (
	"fmt"
	"math"
	"strings"
)

type Status string

const (
	Normal    Status = "Normal"
	Attention Status = "Atenção"
	Critical  Status = "Crítico"
)

// Пороги покрытия в месяцах.
const (
	CriticalBelow  = 1.0
	AttentionBelow = 3.0
)

// ClampStock - остатки не бывают отрицательными; NaN/Inf считаются нулём.
func ClampStock(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
		return 0
	}
	return v
}

// Compute = (склад + ожидаемое поступление) / средний расход.
// ok=false, если среднего расхода нет: такое покрытие не определено.
func Compute(stock, pending, avg float64) (float64, bool) {
	if math.IsNaN(avg) || avg <= 0 {
		return 0, false
	}
	return (ClampStock(stock) + ClampStock(pending)) / avg, true
}

// Classify: без действующей регистрации всегда Crítico, независимо от покрытия.
func Classify(cov float64, ok, hasActiveRegistration bool) Status {
	switch {
	case !hasActiveRegistration:
		return Critical
	case !ok:
		return Normal
	case cov < CriticalBelow:
		return Critical
	case cov < AttentionBelow:
		return Attention
	default:
		return Normal
	}
}

// ParseStatus понимает метки отчёта и их ASCII-варианты (atencao, critico).
func ParseStatus(s string) (Status, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "normal":
		return Normal, nil
	case "atenção", "atencao", "attention":
		return Attention, nil
	case "crítico", "critico", "critical":
		return Critical, nil
	}
	return "", fmt.Errorf("unknown status %q", s)
}
