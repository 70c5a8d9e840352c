// Package dayview группирует доставки подписки по дням и считает статистику статусов
// для таблицы доставок.
package dayview

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/mmeshcher/subscription-admin/internal/model"
)

// DuplicatePolicy определяет, как поступать с двумя доставками одного типа приёма пищи
// в одной группе.
type DuplicatePolicy string

const (
	// DuplicateOverwrite оставляет последнюю запись.
	DuplicateOverwrite DuplicatePolicy = "overwrite"
	// DuplicateError прерывает группировку с ошибкой ErrDuplicateMeal.
	DuplicateError DuplicatePolicy = "error"
	// DuplicateCollect оставляет последнюю запись, а предыдущие сохраняет в DeliveryGroup.Duplicates.
	DuplicateCollect DuplicatePolicy = "collect"
)

// ErrDuplicateMeal возвращается политикой DuplicateError.
var ErrDuplicateMeal = errors.New("duplicate meal type in delivery group")

// ParseDuplicatePolicy разбирает название политики. Пустая строка означает DuplicateOverwrite.
func ParseDuplicatePolicy(v string) (DuplicatePolicy, error) {
	switch p := DuplicatePolicy(strings.ToLower(strings.TrimSpace(v))); p {
	case "":
		return DuplicateOverwrite, nil
	case DuplicateOverwrite, DuplicateError, DuplicateCollect:
		return p, nil
	default:
		return "", fmt.Errorf("unknown duplicate meal policy %q", v)
	}
}

type groupKey struct {
	date   string
	status model.DeliveryStatus
}

// GroupByDeliveryDay разбивает доставки на группы по паре (дата, статус).
// Группы отсортированы по дате, затем по статусу. DayID и DayNumberCount группы
// берутся из оставшейся в группе записи с наименьшим DayID (при равенстве с
// наименьшим DayNumberCount, затем типом приёма пищи). Порядок входных записей
// влияет только на победителя при дублях.
func GroupByDeliveryDay(records []model.DeliveryRecord, policy DuplicatePolicy) ([]model.DeliveryGroup, error) {
	index := make(map[groupKey]int, len(records))
	groups := make([]model.DeliveryGroup, 0)

	for _, rec := range records {
		key := groupKey{date: rec.Date, status: statusOrUnknown(rec.Status)}

		i, ok := index[key]
		if !ok {
			groups = append(groups, model.DeliveryGroup{
				Date:        key.date,
				Status:      key.status,
				MealsByType: make(map[string]model.DeliveryRecord),
			})
			i = len(groups) - 1
			index[key] = i
		}

		g := &groups[i]
		if prev, exists := g.MealsByType[rec.MealTypeName]; exists {
			switch policy {
			case DuplicateError:
				return nil, fmt.Errorf("%w: %q on %q with status %q", ErrDuplicateMeal, rec.MealTypeName, key.date, key.status)
			case DuplicateCollect:
				if g.Duplicates == nil {
					g.Duplicates = make(map[string][]model.DeliveryRecord)
				}
				g.Duplicates[rec.MealTypeName] = append(g.Duplicates[rec.MealTypeName], prev)
			}
		}
		g.MealsByType[rec.MealTypeName] = rec
	}

	for i := range groups {
		rep := representative(groups[i])
		groups[i].DayID = rep.DayID
		groups[i].DayNumberCount = rep.DayNumberCount
	}

	sort.SliceStable(groups, func(i, j int) bool {
		if groups[i].Date != groups[j].Date {
			return groups[i].Date < groups[j].Date
		}
		return groups[i].Status < groups[j].Status
	})

	return groups, nil
}

// Flatten возвращает записи групп обратно одним списком. Повторная группировка
// результата даёт те же группы.
func Flatten(groups []model.DeliveryGroup) []model.DeliveryRecord {
	var out []model.DeliveryRecord
	for _, g := range groups {
		for _, name := range MealTypeNames(g) {
			out = append(out, g.Duplicates[name]...)
			out = append(out, g.MealsByType[name])
		}
	}
	return out
}

// representative выбирает запись, задающую DayID группы. Учитываются только записи,
// которые Flatten вернёт обратно.
func representative(g model.DeliveryGroup) model.DeliveryRecord {
	var (
		best  model.DeliveryRecord
		found bool
	)
	consider := func(rec model.DeliveryRecord) {
		if !found || lessRecord(rec, best) {
			best, found = rec, true
		}
	}
	for name, rec := range g.MealsByType {
		consider(rec)
		for _, dup := range g.Duplicates[name] {
			consider(dup)
		}
	}
	return best
}

func lessRecord(a, b model.DeliveryRecord) bool {
	if a.DayID != b.DayID {
		return a.DayID < b.DayID
	}
	if a.DayNumberCount != b.DayNumberCount {
		return a.DayNumberCount < b.DayNumberCount
	}
	return a.MealTypeName < b.MealTypeName
}

// MealTypeNames возвращает отсортированные типы приёмов пищи группы.
func MealTypeNames(g model.DeliveryGroup) []string {
	names := make([]string, 0, len(g.MealsByType))
	for name := range g.MealsByType {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func statusOrUnknown(s model.DeliveryStatus) model.DeliveryStatus {
	if s == "" {
		return model.StatusUnknown
	}
	return s
}
