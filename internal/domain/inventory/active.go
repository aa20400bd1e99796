package inventory

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

var dmy = regexp.MustCompile(`^(\d{1,2})/(\d{1,2})/(\d{4})$`)

var isoLayouts = []string{
	"2006-01-02",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04:05-07",
	"2006-01-02T15:04:05Z07:00",
	time.RFC3339Nano,
}

// ParseDate понимает DD/MM/YYYY (день и месяц можно одной цифрой) и ISO-формы, как их отдаёт ::text.
// Возвращается только дата, без времени.
func ParseDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	if m := dmy.FindStringSubmatch(s); m != nil {
		d, _ := strconv.Atoi(m[1])
		mo, _ := strconv.Atoi(m[2])
		y, _ := strconv.Atoi(m[3])
		t := time.Date(y, time.Month(mo), d, 0, 0, 0, 0, time.UTC)
		// 31/02/2025 и подобные не принимаем
		if t.Day() != d || int(t.Month()) != mo {
			return time.Time{}, false
		}
		return t, true
	}
	for _, layout := range isoLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC), true
		}
	}
	return time.Time{}, false
}

func dateOf(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// Active: номер есть и не "-", срок действия строго позже сегодняшнего дня, остаток по регистрации > 0.
func (r Registration) Active(today time.Time) bool {
	n := strings.TrimSpace(r.Number)
	if n == "" || n == "-" {
		return false
	}
	until, ok := ParseDate(r.ValidUntil)
	if !ok || !until.After(dateOf(today)) {
		return false
	}
	return r.Balance != nil && *r.Balance > 0
}

// FilterActive оставляет действующие регистрации в исходном порядке.
func FilterActive(regs []Registration, today time.Time) []Registration {
	out := make([]Registration, 0, len(regs))
	for _, r := range regs {
		if r.Active(today) {
			out = append(out, r)
		}
	}
	return out
}
