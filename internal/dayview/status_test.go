package dayview

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mmeshcher/subscription-admin/internal/model"
)

func TestAggregateStatuses_Consistency(t *testing.T) {
	r := rand.New(rand.NewSource(3))

	for iter := 0; iter < 50; iter++ {
		groups, err := GroupByDeliveryDay(randomRecords(r, r.Intn(40)), DuplicateOverwrite)
		require.NoError(t, err)

		summary := AggregateStatuses(groups)

		sum := 0
		for _, s := range summary.DistinctStatuses {
			sum += summary.Counts[string(s)]
		}
		assert.Equal(t, len(groups), summary.Counts[FilterAll])
		assert.Equal(t, summary.Counts[FilterAll], sum)

		for _, s := range summary.DistinctStatuses {
			filtered := FilterGroups(groups, string(s))
			assert.Len(t, filtered, summary.Counts[string(s)])
			for _, g := range filtered {
				assert.Equal(t, s, g.Status)
			}
		}
	}
}

func TestFilterGroups_PreservesOrder(t *testing.T) {
	groups := []model.DeliveryGroup{
		{Date: "2024-06-01", Status: model.StatusHold},
		{Date: "2024-06-02", Status: model.StatusPending},
		{Date: "2024-06-03", Status: model.StatusHold},
	}

	assert.Equal(t, groups, FilterGroups(groups, FilterAll))
	assert.Equal(t, groups, FilterGroups(groups, ""))

	held := FilterGroups(groups, "Hold")
	require.Len(t, held, 2)
	assert.Equal(t, "2024-06-01", held[0].Date)
	assert.Equal(t, "2024-06-03", held[1].Date)

	assert.Empty(t, FilterGroups(groups, "Refund"))
}

func TestStatusSummary_Chips(t *testing.T) {
	groups := []model.DeliveryGroup{
		{Status: model.StatusHold},
		{Status: model.StatusHold},
		{Status: model.StatusCanceld},
	}

	chips := AggregateStatuses(groups).Chips()
	require.Len(t, chips, 3)
	assert.Equal(t, StatusChip{Value: "all", Label: "All", Count: 3}, chips[0])
	assert.Equal(t, "Canceld", chips[1].Value)
	assert.Equal(t, "Cancelled", chips[1].Label)
	assert.Equal(t, 1, chips[1].Count)
	assert.Equal(t, 2, chips[2].Count)
}

func TestAggregateStatuses_Empty(t *testing.T) {
	summary := AggregateStatuses(nil)
	assert.Equal(t, 0, summary.Counts[FilterAll])
	assert.Empty(t, summary.DistinctStatuses)
}
