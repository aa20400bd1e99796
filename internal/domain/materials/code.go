package materials

import (
	"regexp"
	"sort"
	"strings"
)

var (
	plainDigits  = regexp.MustCompile(`^\d{4,}$`)
	dottedDigits = regexp.MustCompile(`^\d+\.\d+$`)
)

// Variants возвращает все допустимые написания кода материала.
// Каталог хранит 586243, аналитические витрины могут хранить 586.243, и наоборот.
// Результат всегда содержит сам (обрезанный) код первым элементом.
func Variants(code string) []string {
	t := strings.TrimSpace(code)
	out := []string{t}
	switch {
	case plainDigits.MatchString(t):
		out = append(out, t[:len(t)-3]+"."+t[len(t)-3:])
	case dottedDigits.MatchString(t):
		if plain := strings.Replace(t, ".", "", 1); plain != t {
			out = append(out, plain)
		}
	}
	return out
}

// Key - ключ сопоставления между источниками: все варианты одного кода дают один Key.
func Key(code string) string {
	t := strings.TrimSpace(code)
	if dottedDigits.MatchString(t) {
		return strings.Replace(t, ".", "", 1)
	}
	return t
}

// Prefix отрезает суффикс после "-" (562.898-01 -> 562.898), как это делают витрины.
func Prefix(code string) string {
	if i := strings.IndexByte(code, '-'); i >= 0 {
		code = code[:i]
	}
	return strings.TrimSpace(code)
}

// ExpandAll собирает уникальные варианты для набора кодов (для IN (...) в батч-запросах).
func ExpandAll(codes []string) []string {
	seen := make(map[string]struct{}, len(codes)*2)
	out := make([]string, 0, len(codes)*2)
	for _, c := range codes {
		if strings.TrimSpace(c) == "" {
			continue
		}
		for _, v := range Variants(c) {
			if _, ok := seen[v]; ok {
				continue
			}
			seen[v] = struct{}{}
			out = append(out, v)
		}
	}
	sort.Strings(out)
	return out
}

// Distinct возвращает уникальные непустые коды в порядке первого появления.
// Дубли определяются по Key, сохраняется написание из первого вхождения.
func Distinct(codes []string) []string {
	seen := make(map[string]struct{}, len(codes))
	out := make([]string, 0, len(codes))
	for _, c := range codes {
		t := strings.TrimSpace(c)
		if t == "" {
			continue
		}
		k := Key(t)
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, t)
	}
	return out
}
