package consumption

import "math"

// Normalize приводит количество к целому неотрицательному: floor(max(0, v)). NaN и Inf дают 0.
func Normalize(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
		return 0
	}
	return math.Floor(v)
}

// RollingAverage - среднее по месяцам с ненулевым расходом. Нет таких месяцев - 0.
func RollingAverage(values []float64) float64 {
	var sum float64
	n := 0
	for _, v := range values {
		v = Normalize(v)
		if v > 0 {
			sum += v
			n++
		}
	}
	if n == 0 {
		return 0
	}
	return sum / float64(n)
}

// AverageBefore - среднее по месяцам строго до current (текущий месяц не учитывается).
func AverageBefore(s Series, current Period) float64 {
	byPeriod := s.ByPeriod()
	values := make([]float64, 0, len(byPeriod))
	for p, q := range byPeriod {
		if p < current {
			values = append(values, q)
		}
	}
	return RollingAverage(values)
}

// LastNonZeroBefore - последний месяц до current с расходом > 0.
func LastNonZeroBefore(s Series, current Period) (MonthQty, bool) {
	var (
		last  MonthQty
		found bool
	)
	for p, q := range s.ByPeriod() {
		if p >= current || Normalize(q) <= 0 {
			continue
		}
		if !found || p > last.Period {
			last = MonthQty{Period: p, Qty: Normalize(q)}
			found = true
		}
	}
	return last, found
}

// Summary - помесячные значения по окну и среднее за месяцы до текущего.
type Summary struct {
	Monthly []float64 `json:"monthly"`
	Average float64   `json:"average"`
}

// Summarize раскладывает ряд по окну (последний элемент окна - текущий месяц).
func Summarize(s Series, window []Period) Summary {
	byPeriod := s.ByPeriod()
	monthly := make([]float64, len(window))
	for i, p := range window {
		monthly[i] = Normalize(byPeriod[p])
	}
	var current Period
	if len(window) > 0 {
		current = window[len(window)-1]
	}
	return Summary{Monthly: monthly, Average: AverageBefore(s, current)}
}
