package actions

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/mmeshcher/subscription-admin/internal/model"
	"github.com/mmeshcher/subscription-admin/internal/validation"
)

// Request описывает HTTP-запрос к API относительно базового адреса.
type Request struct {
	Method string
	Path   string
	Query  url.Values
	Body   any
}

// Action описывает изменяющее действие над подпиской.
type Action interface {
	// Kind возвращает имя действия, используемое в маршрутах и журнале.
	Kind() string
	// Operation возвращает имя действия для сообщений об ошибках.
	Operation() string
	// Validate выполняет проверки, не требующие обращения к API.
	Validate() error
	// Request строит запрос к API для подписки sid.
	Request(sid string) Request
}

func subscriptionPath(sid, suffix string) string {
	return "/ActionsManager/subscription/" + url.PathEscape(sid) + "/" + suffix
}

// Hold приостанавливает подписку с указанной даты.
type Hold struct {
	StartHoldDate string `json:"startHoldDate"`
	Notes         string `json:"notes"`
}

func (Hold) Kind() string      { return "hold" }
func (Hold) Operation() string { return "Hold subscription" }

func (a Hold) Validate() error { return validation.Date("startHoldDate", a.StartHoldDate) }

func (a Hold) Request(sid string) Request {
	return Request{Method: http.MethodPut, Path: subscriptionPath(sid, "hold"), Body: a}
}

// Activate возобновляет приостановленную подписку.
type Activate struct {
	StartDate string `json:"startDate"`
	Notes     string `json:"notes"`
}

func (Activate) Kind() string      { return "activate" }
func (Activate) Operation() string { return "Activate subscription" }

func (a Activate) Validate() error { return validation.Date("startDate", a.StartDate) }

func (a Activate) Request(sid string) Request {
	return Request{Method: http.MethodPut, Path: subscriptionPath(sid, "activate"), Body: a}
}

// Cancel отменяет подписку.
type Cancel struct {
	Notes string `json:"notes"`
}

func (Cancel) Kind() string      { return "cancel" }
func (Cancel) Operation() string { return "Cancel subscription" }

func (a Cancel) Validate() error { return validation.Required("notes", a.Notes) }

func (a Cancel) Request(sid string) Request {
	return Request{Method: http.MethodPut, Path: subscriptionPath(sid, "cancel"), Body: a}
}

// Restrict запрещает доставку в диапазон дат или в перечисленные дни.
type Restrict struct {
	FromDate string   `json:"fromDate,omitempty"`
	ToDate   string   `json:"toDate,omitempty"`
	Days     []string `json:"days,omitempty"`
	Notes    string   `json:"notes"`
}

func (Restrict) Kind() string      { return "restrict" }
func (Restrict) Operation() string { return "Restrict subscription" }

func (a Restrict) Validate() error { return validateDateRangeOrDays(a.FromDate, a.ToDate, a.Days) }

func (a Restrict) Request(sid string) Request {
	return Request{Method: http.MethodPut, Path: subscriptionPath(sid, "restrict"), Body: a}
}

// Unrestrict снимает запрет доставки.
type Unrestrict Restrict

func (Unrestrict) Kind() string      { return "unrestrict" }
func (Unrestrict) Operation() string { return "Unrestrict subscription" }

func (a Unrestrict) Validate() error { return validateDateRangeOrDays(a.FromDate, a.ToDate, a.Days) }

func (a Unrestrict) Request(sid string) Request {
	return Request{Method: http.MethodPut, Path: subscriptionPath(sid, "unrestrict"), Body: a}
}

func validateDateRangeOrDays(from, to string, days []string) error {
	if len(days) > 0 {
		for _, d := range days {
			if err := validation.Date("days", d); err != nil {
				return err
			}
		}
		return nil
	}
	if from == "" && to == "" {
		return validation.Errorf("either a date range or a list of days is required")
	}
	if err := validation.Date("fromDate", from); err != nil {
		return err
	}
	if err := validation.Date("toDate", to); err != nil {
		return err
	}
	if to < from {
		return validation.Errorf("toDate %s is before fromDate %s", to, from)
	}
	return nil
}

// Extend продлевает подписку на указанное число дней.
type Extend struct {
	DaysCount int    `json:"daysCount"`
	Notes     string `json:"notes"`
}

func (Extend) Kind() string      { return "extend" }
func (Extend) Operation() string { return "Extend subscription" }

func (a Extend) Validate() error {
	if a.DaysCount <= 0 {
		return validation.Errorf("daysCount must be positive")
	}
	return nil
}

func (a Extend) Request(sid string) Request {
	return Request{Method: http.MethodPut, Path: subscriptionPath(sid, "extend"), Body: a}
}

// DeleteDays удаляет дни подписки без возможности восстановления.
type DeleteDays struct {
	Days  []string `json:"days"`
	Notes string   `json:"notes"`
}

func (DeleteDays) Kind() string      { return "delete-days" }
func (DeleteDays) Operation() string { return "Delete days" }

func (a DeleteDays) Validate() error {
	if len(a.Days) == 0 {
		return validation.Errorf("at least one day is required")
	}
	for _, d := range a.Days {
		if err := validation.Date("days", d); err != nil {
			return err
		}
	}
	return nil
}

func (a DeleteDays) Request(sid string) Request {
	return Request{Method: http.MethodDelete, Path: subscriptionPath(sid, "plan-days"), Body: a}
}

// ChangeDaysStatus меняет статус доставки выбранных дней.
type ChangeDaysStatus struct {
	Days   []string             `json:"days"`
	Status model.DeliveryStatus `json:"status"`
	Notes  string               `json:"notes"`
}

func (ChangeDaysStatus) Kind() string      { return "change-days-status" }
func (ChangeDaysStatus) Operation() string { return "Change days status" }

func (a ChangeDaysStatus) Validate() error {
	if len(a.Days) == 0 {
		return validation.Errorf("at least one day is required")
	}
	if !a.Status.Valid() {
		return validation.Errorf("unknown delivery status %q", a.Status)
	}
	return nil
}

func (a ChangeDaysStatus) Request(sid string) Request {
	code, _ := a.Status.Code()
	return Request{
		Method: http.MethodPut,
		Path:   subscriptionPath(sid, "change-days-status"),
		Query:  url.Values{"nots": []string{a.Notes}},
		Body: struct {
			Days   []string `json:"days"`
			Status int      `json:"status"`
		}{Days: a.Days, Status: code},
	}
}

// MergeDays объединяет выбранные дни подписки.
type MergeDays struct {
	Days  []model.MergeDayDraft `json:"days"`
	Notes string                `json:"notes"`
}

func (MergeDays) Kind() string      { return "merge-days" }
func (MergeDays) Operation() string { return "Merge days" }

func (a MergeDays) Validate() error {
	if len(a.Days) == 0 {
		return validation.Errorf("at least one day is required")
	}
	for _, d := range a.Days {
		if err := validation.Date("deliveryDate", d.DeliveryDate); err != nil {
			return err
		}
	}
	return nil
}

func (a MergeDays) Request(sid string) Request {
	return Request{Method: http.MethodPut, Path: subscriptionPath(sid, "merge-days"), Body: a}
}

// ChangeMealTypes заменяет типы приёмов пищи подписки.
type ChangeMealTypes struct {
	MealTypeIDs []int64 `json:"mealTypeIds"`
	Notes       string  `json:"notes"`
}

func (ChangeMealTypes) Kind() string      { return "change-meal-types" }
func (ChangeMealTypes) Operation() string { return "Change meal types" }

func (a ChangeMealTypes) Validate() error {
	if len(a.MealTypeIDs) == 0 {
		return validation.Errorf("at least one meal type is required")
	}
	return nil
}

func (a ChangeMealTypes) Request(sid string) Request {
	a.MealTypeIDs = UniqueIDs(a.MealTypeIDs)
	return Request{Method: http.MethodPut, Path: subscriptionPath(sid, "change-meal-types"), Body: a}
}

// ChangeDeliveryDays заменяет дни недели доставки.
type ChangeDeliveryDays struct {
	DeliveryDayIDs []int64 `json:"deliveryDayIds"`
	Notes          string  `json:"notes"`
}

func (ChangeDeliveryDays) Kind() string      { return "change-delivery-days" }
func (ChangeDeliveryDays) Operation() string { return "Change delivery days" }

func (a ChangeDeliveryDays) Validate() error {
	if len(a.DeliveryDayIDs) == 0 {
		return validation.Errorf("at least one delivery day is required")
	}
	return nil
}

func (a ChangeDeliveryDays) Request(sid string) Request {
	a.DeliveryDayIDs = UniqueIDs(a.DeliveryDayIDs)
	return Request{Method: http.MethodPut, Path: subscriptionPath(sid, "change-delivery-days"), Body: a}
}

// ChangePhone меняет номер телефона клиента.
type ChangePhone struct {
	Phone string `json:"phone"`
	Notes string `json:"notes"`
}

func (ChangePhone) Kind() string      { return "change-phone" }
func (ChangePhone) Operation() string { return "Change phone" }

func (a ChangePhone) Validate() error {
	_, err := validation.NormalizePhone(a.Phone)
	return err
}

func (a ChangePhone) Request(sid string) Request {
	if phone, err := validation.NormalizePhone(a.Phone); err == nil {
		a.Phone = phone
	}
	return Request{Method: http.MethodPut, Path: subscriptionPath(sid, "change-phone"), Body: a}
}

// ChangeAddress меняет адрес доставки.
type ChangeAddress struct {
	City      string `json:"city"`
	Area      string `json:"area"`
	Street    string `json:"street"`
	Building  string `json:"building"`
	Floor     string `json:"floor,omitempty"`
	Apartment string `json:"apartment,omitempty"`
	Landmark  string `json:"landmark,omitempty"`
	Notes     string `json:"notes"`
}

func (ChangeAddress) Kind() string      { return "change-address" }
func (ChangeAddress) Operation() string { return "Change address" }

func (a ChangeAddress) Validate() error {
	if err := validation.Required("area", a.Area); err != nil {
		return err
	}
	return validation.Required("street", a.Street)
}

func (a ChangeAddress) Request(sid string) Request {
	return Request{Method: http.MethodPut, Path: subscriptionPath(sid, "change-address"), Body: a}
}

// Refund оформляет возврат по счёту подписки.
type Refund struct {
	InvoiceNumber string `json:"invoiceNumber"`
}

func (Refund) Kind() string      { return "refund" }
func (Refund) Operation() string { return "Refund" }

func (a Refund) Validate() error { return validation.Required("invoiceNumber", a.InvoiceNumber) }

func (a Refund) Request(sid string) Request {
	return Request{
		Method: http.MethodPut,
		Path:   "/ActionsManager/subscription/refund",
		Query:  url.Values{"Sid": []string{sid}, "InvoiceNumber": []string{a.InvoiceNumber}},
	}
}

// RenewMealType описывает тип приёма пищи в запросе продления.
type RenewMealType struct {
	MealTypeID int64 `json:"mealTypeId"`
}

// RenewDeliveryDay описывает день доставки в запросе продления.
type RenewDeliveryDay struct {
	DeliveryDayID int64 `json:"deliveryDayId"`
}

// RenewInvoice описывает счёт, выставляемый при продлении.
type RenewInvoice struct {
	PlanAmount    decimal.Decimal `json:"planAmount"`
	TaxAmount     decimal.Decimal `json:"taxAmount"`
	TaxRate       decimal.Decimal `json:"taxRate"`
	DeliveryFees  decimal.Decimal `json:"deliveryFees"`
	DiscountValue decimal.Decimal `json:"discountValue"`
	TotalAmount   decimal.Decimal `json:"totalAmount"`
	PaymentMethod string          `json:"paymentMethod"`
}

// Renew продлевает подписку по тарифу с новым набором приёмов пищи и дней доставки.
type Renew struct {
	SID          string             `json:"sid"`
	CustomerID   int64              `json:"customerId"`
	PlanID       int64              `json:"planId"`
	Duration     int                `json:"duration"`
	StartDate    string             `json:"startDate"`
	MealTypes    []RenewMealType    `json:"mealTypes"`
	DeliveryDays []RenewDeliveryDay `json:"deliveryDays"`
	IsContainBag bool               `json:"isContainBag"`
	GiftCode     string             `json:"giftCode,omitempty"`
	Notes        string             `json:"notes"`
	Invoice      RenewInvoice       `json:"invoice"`
}

// NewRenew строит запрос продления из черновика формы и последнего расчёта стоимости.
func NewRenew(sid string, draft model.ActionDraft, quote model.PriceQuote) Renew {
	r := Renew{
		SID:          sid,
		CustomerID:   draft.CustomerID,
		PlanID:       draft.PlanID,
		Duration:     draft.Duration,
		StartDate:    draft.StartDate,
		IsContainBag: draft.IsContainBag,
		GiftCode:     strings.TrimSpace(draft.GiftCode),
		Notes:        draft.Notes,
		Invoice: RenewInvoice{
			PlanAmount:    quote.PlanAmount,
			TaxAmount:     quote.TaxAmount,
			TaxRate:       quote.TaxRate,
			DeliveryFees:  quote.DeliveryFees,
			DiscountValue: quote.DiscountValue,
			TotalAmount:   quote.TotalAmount,
			PaymentMethod: draft.PaymentMethod,
		},
	}
	for _, id := range UniqueIDs(draft.MealTypeIDs) {
		r.MealTypes = append(r.MealTypes, RenewMealType{MealTypeID: id})
	}
	for _, id := range UniqueIDs(draft.DeliveryDayIDs) {
		r.DeliveryDays = append(r.DeliveryDays, RenewDeliveryDay{DeliveryDayID: id})
	}
	return r
}

func (Renew) Kind() string      { return "renew" }
func (Renew) Operation() string { return "Renew plan" }

func (a Renew) Validate() error {
	switch {
	case a.CustomerID == 0:
		return validation.Errorf("customerId is required")
	case a.PlanID == 0:
		return validation.Errorf("planId is required")
	case a.Duration <= 0:
		return validation.Errorf("duration is required")
	case len(a.MealTypes) == 0:
		return validation.Errorf("at least one meal type is required")
	case len(a.DeliveryDays) == 0:
		return validation.Errorf("at least one delivery day is required")
	}
	return validation.Date("startDate", a.StartDate)
}

func (a Renew) Request(sid string) Request {
	if a.SID == "" {
		a.SID = sid
	}
	return Request{Method: http.MethodPost, Path: "/ActionsManager/subscription/RenewPlan", Body: a}
}

// PriceRequest описывает запрос расчёта стоимости тарифа.
type PriceRequest struct {
	CustomerID   int64   `json:"customerId"`
	PlanID       int64   `json:"planId"`
	Duration     int     `json:"duration"`
	MealsType    []int64 `json:"mealsType"`
	DeliveryDays []int64 `json:"deliveryDays"`
	IsContainBag bool    `json:"isContainBag"`
	GiftCode     string  `json:"giftCode"`
}

// NewPriceRequest строит запрос расчёта стоимости из черновика формы.
func NewPriceRequest(draft model.ActionDraft) PriceRequest {
	return PriceRequest{
		CustomerID:   draft.CustomerID,
		PlanID:       draft.PlanID,
		Duration:     draft.Duration,
		MealsType:    UniqueIDs(draft.MealTypeIDs),
		DeliveryDays: UniqueIDs(draft.DeliveryDayIDs),
		IsContainBag: draft.IsContainBag,
		GiftCode:     strings.TrimSpace(draft.GiftCode),
	}
}

// UniqueIDs возвращает отсортированные идентификаторы без повторов.
func UniqueIDs(ids []int64) []int64 {
	seen := make(map[int64]struct{}, len(ids))
	out := make([]int64, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

var catalogue = map[string]func() Action{
	Hold{}.Kind():               func() Action { return &Hold{} },
	Activate{}.Kind():           func() Action { return &Activate{} },
	Cancel{}.Kind():             func() Action { return &Cancel{} },
	Restrict{}.Kind():           func() Action { return &Restrict{} },
	Unrestrict{}.Kind():         func() Action { return &Unrestrict{} },
	Extend{}.Kind():             func() Action { return &Extend{} },
	DeleteDays{}.Kind():         func() Action { return &DeleteDays{} },
	ChangeDaysStatus{}.Kind():   func() Action { return &ChangeDaysStatus{} },
	MergeDays{}.Kind():          func() Action { return &MergeDays{} },
	ChangeMealTypes{}.Kind():    func() Action { return &ChangeMealTypes{} },
	ChangeDeliveryDays{}.Kind(): func() Action { return &ChangeDeliveryDays{} },
	ChangePhone{}.Kind():        func() Action { return &ChangePhone{} },
	ChangeAddress{}.Kind():      func() Action { return &ChangeAddress{} },
	Refund{}.Kind():             func() Action { return &Refund{} },
	Renew{}.Kind():              func() Action { return &Renew{} },
}

// Kinds возвращает имена всех действий каталога.
func Kinds() []string {
	kinds := make([]string, 0, len(catalogue))
	for k := range catalogue {
		kinds = append(kinds, k)
	}
	sort.Strings(kinds)
	return kinds
}

// ErrUnknownAction возвращается DecodeAction для действия вне каталога.
var ErrUnknownAction = fmt.Errorf("%w: unknown action", validation.ErrInvalid)

// DecodeAction разбирает тело запроса в действие указанного вида.
func DecodeAction(kind string, body []byte) (Action, error) {
	factory, ok := catalogue[kind]
	if !ok {
		return nil, fmt.Errorf("%w %q", ErrUnknownAction, kind)
	}

	a := factory()
	if len(body) > 0 {
		if err := json.Unmarshal(body, a); err != nil {
			return nil, validation.Errorf("decode %s body: %v", kind, err)
		}
	}
	return a, nil
}
