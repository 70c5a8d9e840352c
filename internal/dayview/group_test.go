package dayview

import (
	"fmt"
	"math/rand"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mmeshcher/subscription-admin/internal/model"
)

func exampleRecords() []model.DeliveryRecord {
	return []model.DeliveryRecord{
		{DayID: 1, Date: "2024-06-01", Status: model.StatusHold, MealTypeName: "BREAKFAST", MealName: "Oats", DayNumberCount: 1},
		{DayID: 1, Date: "2024-06-01", Status: model.StatusHold, MealTypeName: "LUNCH", MealName: "Salad", DayNumberCount: 1},
		{DayID: 2, Date: "2024-06-02", Status: model.StatusDeliveried, MealTypeName: "BREAKFAST", MealName: "Toast", DayNumberCount: 2},
	}
}

func TestGroupByDeliveryDay_Example(t *testing.T) {
	groups, err := GroupByDeliveryDay(exampleRecords(), DuplicateOverwrite)
	require.NoError(t, err)
	require.Len(t, groups, 2)

	assert.Equal(t, "2024-06-01", groups[0].Date)
	assert.Equal(t, model.StatusHold, groups[0].Status)
	assert.Equal(t, int64(1), groups[0].DayID)
	assert.Equal(t, "Oats", groups[0].MealsByType["BREAKFAST"].MealName)
	assert.Equal(t, "Salad", groups[0].MealsByType["LUNCH"].MealName)

	assert.Equal(t, "2024-06-02", groups[1].Date)
	assert.Equal(t, model.StatusDeliveried, groups[1].Status)
	assert.Equal(t, "Toast", groups[1].MealsByType["BREAKFAST"].MealName)

	summary := AggregateStatuses(groups)
	assert.Equal(t, map[string]int{"all": 2, "Hold": 1, "Deliveried": 1}, summary.Counts)
	assert.Equal(t, []model.DeliveryStatus{model.StatusDeliveried, model.StatusHold}, summary.DistinctStatuses)
}

func TestGroupByDeliveryDay_SameDateDifferentStatus(t *testing.T) {
	records := []model.DeliveryRecord{
		{DayID: 5, Date: "2024-06-03", Status: model.StatusPending, MealTypeName: "LUNCH"},
		{DayID: 5, Date: "2024-06-03", Status: model.StatusHold, MealTypeName: "BREAKFAST"},
	}

	groups, err := GroupByDeliveryDay(records, DuplicateOverwrite)
	require.NoError(t, err)
	require.Len(t, groups, 2)
	assert.Equal(t, model.StatusHold, groups[0].Status)
	assert.Equal(t, model.StatusPending, groups[1].Status)
}

func TestGroupByDeliveryDay_MissingFields(t *testing.T) {
	groups, err := GroupByDeliveryDay([]model.DeliveryRecord{{MealTypeName: "LUNCH"}}, DuplicateOverwrite)
	require.NoError(t, err)
	require.Len(t, groups, 1)
	assert.Equal(t, "", groups[0].Date)
	assert.Equal(t, model.StatusUnknown, groups[0].Status)
}

func TestGroupByDeliveryDay_DuplicatePolicies(t *testing.T) {
	records := []model.DeliveryRecord{
		{DayID: 1, Date: "2024-06-01", Status: model.StatusPending, MealTypeName: "LUNCH", MealName: "Soup"},
		{DayID: 1, Date: "2024-06-01", Status: model.StatusPending, MealTypeName: "LUNCH", MealName: "Stew"},
	}

	t.Run("overwrite keeps last", func(t *testing.T) {
		groups, err := GroupByDeliveryDay(records, DuplicateOverwrite)
		require.NoError(t, err)
		require.Len(t, groups, 1)
		assert.Equal(t, "Stew", groups[0].MealsByType["LUNCH"].MealName)
		assert.Empty(t, groups[0].Duplicates)
	})

	t.Run("error", func(t *testing.T) {
		_, err := GroupByDeliveryDay(records, DuplicateError)
		assert.ErrorIs(t, err, ErrDuplicateMeal)
	})

	t.Run("collect keeps earlier records", func(t *testing.T) {
		groups, err := GroupByDeliveryDay(records, DuplicateCollect)
		require.NoError(t, err)
		require.Len(t, groups, 1)
		assert.Equal(t, "Stew", groups[0].MealsByType["LUNCH"].MealName)
		require.Len(t, groups[0].Duplicates["LUNCH"], 1)
		assert.Equal(t, "Soup", groups[0].Duplicates["LUNCH"][0].MealName)
	})
}

func TestParseDuplicatePolicy(t *testing.T) {
	p, err := ParseDuplicatePolicy("")
	require.NoError(t, err)
	assert.Equal(t, DuplicateOverwrite, p)

	p, err = ParseDuplicatePolicy("Collect")
	require.NoError(t, err)
	assert.Equal(t, DuplicateCollect, p)

	_, err = ParseDuplicatePolicy("merge")
	assert.Error(t, err)
}

func randomRecords(r *rand.Rand, n int) []model.DeliveryRecord {
	statuses := []model.DeliveryStatus{model.StatusPending, model.StatusHold, model.StatusDeliveried, ""}
	mealTypes := []string{"BREAKFAST", "LUNCH", "DINNER", "SNACK 1"}

	records := make([]model.DeliveryRecord, 0, n)
	for i := 0; i < n; i++ {
		day := r.Intn(6)
		records = append(records, model.DeliveryRecord{
			DayID:          int64(day*10 + r.Intn(3) + 1),
			Date:           fmt.Sprintf("2024-07-%02d", day+1),
			Status:         statuses[r.Intn(len(statuses))],
			MealTypeName:   mealTypes[r.Intn(len(mealTypes))],
			MealName:       fmt.Sprintf("meal-%d", i),
			DayNumberCount: day + r.Intn(2) + 1,
		})
	}
	return records
}

func sortedMealNames(records []model.DeliveryRecord) []string {
	names := make([]string, 0, len(records))
	for _, r := range records {
		names = append(names, r.MealName)
	}
	sort.Strings(names)
	return names
}

func TestGroupByDeliveryDay_PartitionProperty(t *testing.T) {
	r := rand.New(rand.NewSource(7))

	for iter := 0; iter < 50; iter++ {
		input := randomRecords(r, r.Intn(40))

		groups, err := GroupByDeliveryDay(input, DuplicateCollect)
		require.NoError(t, err)

		seen := make(map[groupKey]bool)
		for _, g := range groups {
			key := groupKey{date: g.Date, status: g.Status}
			assert.False(t, seen[key], "group key %v repeated", key)
			seen[key] = true

			for _, rec := range g.MealsByType {
				assert.Equal(t, g.Date, rec.Date)
				assert.Equal(t, g.Status, statusOrUnknown(rec.Status))
			}
		}

		assert.Equal(t, sortedMealNames(input), sortedMealNames(Flatten(groups)))
	}
}

func TestGroupByDeliveryDay_Idempotent(t *testing.T) {
	r := rand.New(rand.NewSource(11))

	for _, policy := range []DuplicatePolicy{DuplicateOverwrite, DuplicateCollect} {
		for iter := 0; iter < 50; iter++ {
			input := randomRecords(r, r.Intn(40))

			first, err := GroupByDeliveryDay(input, policy)
			require.NoError(t, err)

			second, err := GroupByDeliveryDay(Flatten(first), policy)
			require.NoError(t, err)

			assert.Equal(t, first, second, "policy %s", policy)
		}
	}
}

func TestGroupByDeliveryDay_RepresentativeDay(t *testing.T) {
	lunch := model.DeliveryRecord{DayID: 10, DayNumberCount: 3, Date: "2024-06-01", Status: model.StatusHold, MealTypeName: "LUNCH"}
	breakfast := model.DeliveryRecord{DayID: 11, DayNumberCount: 4, Date: "2024-06-01", Status: model.StatusHold, MealTypeName: "BREAKFAST"}

	tests := []struct {
		name    string
		records []model.DeliveryRecord
	}{
		{name: "lower day id first", records: []model.DeliveryRecord{lunch, breakfast}},
		{name: "lower day id last", records: []model.DeliveryRecord{breakfast, lunch}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			groups, err := GroupByDeliveryDay(tt.records, DuplicateOverwrite)
			require.NoError(t, err)
			require.Len(t, groups, 1)
			assert.Equal(t, int64(10), groups[0].DayID)
			assert.Equal(t, 3, groups[0].DayNumberCount)

			regrouped, err := GroupByDeliveryDay(Flatten(groups), DuplicateOverwrite)
			require.NoError(t, err)
			assert.Equal(t, groups, regrouped)
		})
	}

	t.Run("tie broken by day number count", func(t *testing.T) {
		other := breakfast
		other.DayID = 10
		other.DayNumberCount = 2

		groups, err := GroupByDeliveryDay([]model.DeliveryRecord{lunch, other}, DuplicateOverwrite)
		require.NoError(t, err)
		require.Len(t, groups, 1)
		assert.Equal(t, int64(10), groups[0].DayID)
		assert.Equal(t, 2, groups[0].DayNumberCount)
	})

	t.Run("overwritten record does not count", func(t *testing.T) {
		early := lunch
		early.DayID = 1
		early.DayNumberCount = 1

		groups, err := GroupByDeliveryDay([]model.DeliveryRecord{early, lunch, breakfast}, DuplicateOverwrite)
		require.NoError(t, err)
		require.Len(t, groups, 1)
		assert.Equal(t, int64(10), groups[0].DayID)
	})
}

func TestGroupByDeliveryDay_Ordering(t *testing.T) {
	records := []model.DeliveryRecord{
		{Date: "2024-06-03", Status: model.StatusPending, MealTypeName: "LUNCH"},
		{Date: "2024-06-01", Status: model.StatusPending, MealTypeName: "LUNCH"},
		{Date: "2024-06-01", Status: model.StatusCanceld, MealTypeName: "LUNCH"},
	}

	groups, err := GroupByDeliveryDay(records, DuplicateOverwrite)
	require.NoError(t, err)
	require.Len(t, groups, 3)
	assert.Equal(t, "2024-06-01", groups[0].Date)
	assert.Equal(t, model.StatusCanceld, groups[0].Status)
	assert.Equal(t, model.StatusPending, groups[1].Status)
	assert.Equal(t, "2024-06-03", groups[2].Date)
}
