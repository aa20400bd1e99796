package consumption

import (
	"fmt"
	"time"
)

// Period - месяц в формате YYYYMM (202506).
type Period int

// WindowSize - сколько месяцев показывает отчёт: шесть предыдущих и текущий.
const WindowSize = 7

func PeriodOf(t time.Time) Period {
	return Period(t.Year()*100 + int(t.Month()))
}

func (p Period) Year() int { return int(p) / 100 }

func (p Period) Month() time.Month { return time.Month(int(p) % 100) }

// AddMonths сдвигает период на n месяцев (n может быть отрицательным).
func (p Period) AddMonths(n int) Period {
	t := time.Date(p.Year(), p.Month(), 1, 0, 0, 0, 0, time.UTC).AddDate(0, n, 0)
	return PeriodOf(t)
}

// String - "MM/YYYY", как в отчёте.
func (p Period) String() string {
	if p <= 0 {
		return "-"
	}
	return fmt.Sprintf("%02d/%04d", int(p.Month()), p.Year())
}

// Window возвращает 7 периодов по возрастанию: текущий-6 ... текущий.
func Window(now time.Time) []Period {
	cur := PeriodOf(now)
	out := make([]Period, WindowSize)
	for i := 0; i < WindowSize; i++ {
		out[i] = cur.AddMonths(i - (WindowSize - 1))
	}
	return out
}

// MonthQty - расход материала за месяц (движения RM с положительным количеством).
type MonthQty struct {
	Period Period  `json:"period"`
	Qty    float64 `json:"qty"`
}

type Series []MonthQty

// ByPeriod суммирует записи по месяцам. Несколько строк на месяц бывают,
// когда витрина хранит один материал в двух написаниях кода.
func (s Series) ByPeriod() map[Period]float64 {
	out := make(map[Period]float64, len(s))
	for _, m := range s {
		out[m.Period] += m.Qty
	}
	return out
}
