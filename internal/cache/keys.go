package cache

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"
)

// Пространства имён ключей. Префикс ключа = пространство, по нему работают TTL и инвалидация.
const (
	NSCodes         = "codes"
	NSConsumption   = "consumption"
	NSRegistrations = "registrations"
	NSTotals        = "totals"
	NSCommitments   = "commitments"
	NSNotes         = "notes"
	NSItems         = "items"
	NSDashboard     = "dashboard"
)

// Policy - TTL по пространствам имён.
type Policy struct {
	Default time.Duration
	TTLs    map[string]time.Duration
}

func DefaultPolicy() Policy {
	return Policy{
		Default: 10 * time.Minute,
		TTLs: map[string]time.Duration{
			NSCodes:         60 * time.Minute,
			NSConsumption:   60 * time.Minute,
			NSRegistrations: 10 * time.Minute,
			NSTotals:        2 * time.Minute,
			NSCommitments:   5 * time.Minute,
			NSNotes:         5 * time.Minute,
			NSItems:         5 * time.Minute,
			NSDashboard:     15 * time.Minute,
		},
	}
}

func (p Policy) TTL(namespace string) time.Duration {
	if d, ok := p.TTLs[namespace]; ok && d > 0 {
		return d
	}
	return p.Default
}

// TTLFor берёт TTL по пространству имён ключа.
func (p Policy) TTLFor(key string) time.Duration {
	return p.TTL(namespaceOf(key))
}

func setPart(values []string) string {
	uniq := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		if _, ok := uniq[v]; ok {
			continue
		}
		uniq[v] = struct{}{}
		out = append(out, v)
	}
	sort.Strings(out)
	return strings.Join(out, ",")
}

func intsPart[T ~int | ~int64](values []T) string {
	parts := make([]string, len(values))
	for i, v := range values {
		parts[i] = strconv.FormatInt(int64(v), 10)
	}
	return strings.Join(parts, ",")
}

func CodesKey(codes []string) string {
	return NSCodes + ":" + setPart(codes)
}

func ConsumptionKey[T ~int](codes []string, months []T) string {
	return NSConsumption + ":" + setPart(codes) + ":" + intsPart(months)
}

func LastConsumptionKey[T ~int](codes []string, current T) string {
	return NSConsumption + ":last:" + setPart(codes) + ":" + strconv.Itoa(int(current))
}

func DescriptionsKey(codes []string) string {
	return NSCodes + ":desc:" + setPart(codes)
}

func RegistrationsKey(codes []string) string {
	return NSRegistrations + ":" + setPart(codes)
}

func TotalsKey(codes []string) string {
	return NSTotals + ":" + setPart(codes)
}

func GeneralStockKey(codes []string) string {
	return NSTotals + ":general:" + setPart(codes)
}

// CommitmentsKey: пары (код, регистрация) в виде "код|номер".
func CommitmentsKey(pairs []string) string {
	return NSCommitments + ":" + setPart(pairs)
}

func NotesKey(ids []int64) string {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = strconv.FormatInt(id, 10)
	}
	return NSNotes + ":" + setPart(parts)
}

// ItemsKey - ключ целой страницы отчёта. filters должен иметь стабильное строковое представление.
func ItemsKey(filters fmt.Stringer, page, pageSize int) string {
	return fmt.Sprintf("%s:%s:%d:%d", NSItems, filters.String(), page, pageSize)
}

// CommitmentListKey - страница списка открытых эмпеньо.
func CommitmentListKey(filters fmt.Stringer, page, pageSize int) string {
	return fmt.Sprintf("%s:list:%s:%d:%d", NSCommitments, filters.String(), page, pageSize)
}

// ActiveRegistrationsKey - сводка действующих регистраций по всей витрине.
func ActiveRegistrationsKey() string {
	return NSRegistrations + ":active"
}

func DashboardKey() string {
	return NSDashboard + ":summary"
}

// Группы инвалидации.
const (
	GroupItems         = "items"
	GroupConsumption   = "consumption"
	GroupTotals        = "totals"
	GroupRegistrations = "registrations"
	// GroupNotes - после записи истории контроля: заметки и всё, что их показывает.
	GroupNotes         = "notes"
	GroupAll           = "all"
)

var groupPatterns = map[string][]string{
	GroupItems:         {NSItems + ":*", NSDashboard + ":*"},
	GroupConsumption:   {NSConsumption + ":*"},
	GroupTotals:        {NSTotals + ":*"},
	GroupRegistrations: {NSRegistrations + ":*", NSCommitments + ":*"},
	GroupNotes:         {NSNotes + ":*", NSItems + ":*", NSDashboard + ":*"},
}

// Invalidate сбрасывает группу ключей. Возвращает число удалённых записей и false для неизвестной группы.
func (s *Store) Invalidate(group string) (int, bool) {
	if group == GroupAll {
		n := s.Len()
		s.Clear()
		return n, true
	}
	patterns, ok := groupPatterns[group]
	if !ok {
		return 0, false
	}
	n := 0
	for _, p := range patterns {
		n += s.DeletePattern(p)
	}
	return n, true
}
