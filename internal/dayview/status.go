package dayview

import (
	"sort"

	"github.com/mmeshcher/subscription-admin/internal/model"
)

// FilterAll означает отсутствие фильтра по статусу.
const FilterAll = "all"

// StatusSummary содержит количество групп по статусам и список встретившихся статусов.
type StatusSummary struct {
	Counts           map[string]int         `json:"counts"`
	DistinctStatuses []model.DeliveryStatus `json:"distinctStatuses"`
}

// StatusChip описывает кнопку фильтра по статусу.
type StatusChip struct {
	Value string `json:"value"`
	Label string `json:"label"`
	Color string `json:"color"`
	Count int    `json:"count"`
}

// AggregateStatuses считает группы по статусам.
func AggregateStatuses(groups []model.DeliveryGroup) StatusSummary {
	counts := map[string]int{FilterAll: len(groups)}
	for _, g := range groups {
		counts[string(g.Status)]++
	}

	distinct := make([]model.DeliveryStatus, 0, len(counts)-1)
	for s := range counts {
		if s == FilterAll {
			continue
		}
		distinct = append(distinct, model.DeliveryStatus(s))
	}
	sort.Slice(distinct, func(i, j int) bool { return distinct[i] < distinct[j] })

	return StatusSummary{Counts: counts, DistinctStatuses: distinct}
}

// Chips строит кнопки фильтра: «все» и по одной на каждый встретившийся статус.
func (s StatusSummary) Chips() []StatusChip {
	chips := make([]StatusChip, 0, len(s.DistinctStatuses)+1)
	chips = append(chips, StatusChip{Value: FilterAll, Label: "All", Count: s.Counts[FilterAll]})
	for _, st := range s.DistinctStatuses {
		chips = append(chips, StatusChip{
			Value: string(st),
			Label: st.Label(),
			Color: st.Color(),
			Count: s.Counts[string(st)],
		})
	}
	return chips
}

// FilterGroups возвращает группы с указанным статусом, сохраняя их порядок.
// Для FilterAll и пустой строки возвращаются все группы.
func FilterGroups(groups []model.DeliveryGroup, statusFilter string) []model.DeliveryGroup {
	if statusFilter == "" || statusFilter == FilterAll {
		return groups
	}

	res := make([]model.DeliveryGroup, 0, len(groups))
	for _, g := range groups {
		if string(g.Status) == statusFilter {
			res = append(res, g)
		}
	}
	return res
}
