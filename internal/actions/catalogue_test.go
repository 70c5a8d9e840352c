package actions

import (
	"encoding/json"
	"errors"
	"net/http"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mmeshcher/subscription-admin/internal/model"
	"github.com/mmeshcher/subscription-admin/internal/validation"
)

func TestActionRequests(t *testing.T) {
	tests := []struct {
		name   string
		action Action
		method string
		path   string
	}{
		{"hold", Hold{StartHoldDate: "2024-06-01"}, http.MethodPut, "/ActionsManager/subscription/9/hold"},
		{"activate", Activate{StartDate: "2024-06-01"}, http.MethodPut, "/ActionsManager/subscription/9/activate"},
		{"cancel", Cancel{Notes: "moved"}, http.MethodPut, "/ActionsManager/subscription/9/cancel"},
		{"restrict", Restrict{Days: []string{"2024-06-01"}}, http.MethodPut, "/ActionsManager/subscription/9/restrict"},
		{"unrestrict", Unrestrict{FromDate: "2024-06-01", ToDate: "2024-06-03"}, http.MethodPut, "/ActionsManager/subscription/9/unrestrict"},
		{"extend", Extend{DaysCount: 2}, http.MethodPut, "/ActionsManager/subscription/9/extend"},
		{"delete days", DeleteDays{Days: []string{"2024-06-01"}}, http.MethodDelete, "/ActionsManager/subscription/9/plan-days"},
		{"merge days", MergeDays{Days: []model.MergeDayDraft{{DayID: 1, DeliveryDate: "2024-06-01"}}}, http.MethodPut, "/ActionsManager/subscription/9/merge-days"},
		{"meal types", ChangeMealTypes{MealTypeIDs: []int64{1}}, http.MethodPut, "/ActionsManager/subscription/9/change-meal-types"},
		{"delivery days", ChangeDeliveryDays{DeliveryDayIDs: []int64{1}}, http.MethodPut, "/ActionsManager/subscription/9/change-delivery-days"},
		{"phone", ChangePhone{Phone: "050 123 4567"}, http.MethodPut, "/ActionsManager/subscription/9/change-phone"},
		{"address", ChangeAddress{Area: "Marina", Street: "1st"}, http.MethodPut, "/ActionsManager/subscription/9/change-address"},
		{"refund", Refund{InvoiceNumber: "INV-1"}, http.MethodPut, "/ActionsManager/subscription/refund"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.NoError(t, tt.action.Validate())

			req := tt.action.Request("9")
			assert.Equal(t, tt.method, req.Method)
			assert.Equal(t, tt.path, req.Path)
		})
	}
}

func TestRefundRequest_Query(t *testing.T) {
	req := Refund{InvoiceNumber: "INV-1"}.Request("9")
	assert.Equal(t, "9", req.Query.Get("Sid"))
	assert.Equal(t, "INV-1", req.Query.Get("InvoiceNumber"))
	assert.Nil(t, req.Body)
}

func TestActionValidation(t *testing.T) {
	invalid := map[string]Action{
		"hold without date":       Hold{},
		"activate with bad date":  Activate{StartDate: "June 1"},
		"cancel without reason":   Cancel{},
		"restrict without range":  Restrict{},
		"restrict reversed range": Restrict{FromDate: "2024-06-05", ToDate: "2024-06-01"},
		"extend by zero":          Extend{},
		"delete nothing":          DeleteDays{},
		"status outside vocab":    ChangeDaysStatus{Days: []string{"2024-06-01"}, Status: "Delivered"},
		"merge nothing":           MergeDays{},
		"no meal types":           ChangeMealTypes{},
		"no delivery days":        ChangeDeliveryDays{},
		"bad phone":               ChangePhone{Phone: "abc"},
		"address without street":  ChangeAddress{Area: "Marina"},
		"refund without invoice":  Refund{},
		"renew without plan":      Renew{CustomerID: 1},
	}

	for name, a := range invalid {
		t.Run(name, func(t *testing.T) {
			assert.ErrorIs(t, a.Validate(), validation.ErrInvalid)
		})
	}
}

func TestNewRenew(t *testing.T) {
	draft := model.ActionDraft{
		CustomerID:     1,
		PlanID:         2,
		Duration:       20,
		MealTypeIDs:    []int64{2, 1, 2},
		DeliveryDayIDs: []int64{5},
		StartDate:      "2024-07-01",
		GiftCode:       " GIFT ",
		PaymentMethod:  "cash",
	}
	quote := model.ZeroPriceQuote()
	quote.TotalAmount = decimal.NewFromInt(300)

	r := NewRenew("S-9", draft, quote)
	require.NoError(t, r.Validate())

	assert.Equal(t, []RenewMealType{{MealTypeID: 1}, {MealTypeID: 2}}, r.MealTypes)
	assert.Equal(t, []RenewDeliveryDay{{DeliveryDayID: 5}}, r.DeliveryDays)
	assert.Equal(t, "GIFT", r.GiftCode)
	assert.True(t, r.Invoice.TotalAmount.Equal(decimal.NewFromInt(300)))
	assert.Equal(t, "cash", r.Invoice.PaymentMethod)

	req := r.Request("S-9")
	assert.Equal(t, http.MethodPost, req.Method)
	assert.Equal(t, "/ActionsManager/subscription/RenewPlan", req.Path)
}

func TestDecodeAction(t *testing.T) {
	a, err := DecodeAction("hold", []byte(`{"startHoldDate":"2024-06-01","notes":"trip"}`))
	require.NoError(t, err)
	hold, ok := a.(*Hold)
	require.True(t, ok)
	assert.Equal(t, "2024-06-01", hold.StartHoldDate)
	assert.Equal(t, "trip", hold.Notes)

	_, err = DecodeAction("teleport", nil)
	assert.True(t, errors.Is(err, ErrUnknownAction))
	assert.True(t, errors.Is(err, validation.ErrInvalid))

	_, err = DecodeAction("extend", []byte(`{"daysCount":"many"}`))
	assert.ErrorIs(t, err, validation.ErrInvalid)

	assert.Contains(t, Kinds(), "change-days-status")
	assert.Len(t, Kinds(), 15)
}

func TestChangeDaysStatusBodyUsesCode(t *testing.T) {
	req := ChangeDaysStatus{Days: []string{"2024-06-01"}, Status: model.StatusPrepared}.Request("1")

	b, err := json.Marshal(req.Body)
	require.NoError(t, err)
	assert.JSONEq(t, `{"days":["2024-06-01"],"status":8}`, string(b))
}
