// Package model содержит доменные сущности панели управления подписками.
package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// DeliveryRecord описывает доставку одного приёма пищи в рамках дня подписки.
type DeliveryRecord struct {
	DayID          int64          `json:"dayId"`
	Date           string         `json:"date"`
	MealTypeName   string         `json:"mealTypeName"`
	MealName       string         `json:"mealName"`
	Status         DeliveryStatus `json:"status"`
	DayNumberCount int            `json:"dayNumberCount"`
}

// DeliveryGroup объединяет доставки одного дня с одинаковым статусом.
// Группа вычисляется на стороне клиента и не хранится.
type DeliveryGroup struct {
	Date           string                      `json:"date"`
	Status         DeliveryStatus              `json:"status"`
	DayID          int64                       `json:"dayId"`
	DayNumberCount int                         `json:"dayNumberCount"`
	MealsByType    map[string]DeliveryRecord   `json:"mealsByType"`
	Duplicates     map[string][]DeliveryRecord `json:"duplicates,omitempty"`
}

// MealType описывает тип приёма пищи тарифа.
type MealType struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// DeliveryDay описывает день недели, в который выполняется доставка.
type DeliveryDay struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// Subscription содержит нормализованные данные подписки клиента.
type Subscription struct {
	SID          string           `json:"sid"`
	CustomerID   int64            `json:"customerId"`
	CustomerName string           `json:"customerName"`
	Phone        string           `json:"phone"`
	PlanID       int64            `json:"planId"`
	PlanName     string           `json:"planName"`
	Status       string           `json:"status"`
	StartDate    string           `json:"startDate"`
	EndDate      string           `json:"endDate"`
	Duration     int              `json:"duration"`
	Address      string           `json:"address"`
	MealTypes    []MealType       `json:"mealTypes"`
	DeliveryDays []DeliveryDay    `json:"deliveryDays"`
	Days         []DeliveryRecord `json:"days"`
}

// ActionDraft хранит незавершённое состояние формы действия над подпиской.
type ActionDraft struct {
	CustomerID     int64   `json:"customerId"`
	PlanID         int64   `json:"planId"`
	Duration       int     `json:"duration"`
	MealTypeIDs    []int64 `json:"mealTypeIds"`
	DeliveryDayIDs []int64 `json:"deliveryDayIds"`
	IsContainBag   bool    `json:"isContainBag"`
	GiftCode       string  `json:"giftCode"`
	StartDate      string  `json:"startDate"`
	PaymentMethod  string  `json:"paymentMethod"`
	Notes          string  `json:"notes"`
}

// PriceQuote содержит расчёт стоимости тарифа, выполненный сервером.
type PriceQuote struct {
	PlanAmount    decimal.Decimal `json:"planAmount"`
	TaxAmount     decimal.Decimal `json:"taxAmount"`
	TaxRate       decimal.Decimal `json:"taxRate"`
	DeliveryFees  decimal.Decimal `json:"deliveryFees"`
	DiscountValue decimal.Decimal `json:"discountValue"`
	TotalAmount   decimal.Decimal `json:"totalAmount"`
}

// ZeroPriceQuote возвращает обнулённый расчёт стоимости.
func ZeroPriceQuote() PriceQuote {
	return PriceQuote{
		PlanAmount:    decimal.Zero,
		TaxAmount:     decimal.Zero,
		TaxRate:       decimal.Zero,
		DeliveryFees:  decimal.Zero,
		DiscountValue: decimal.Zero,
		TotalAmount:   decimal.Zero,
	}
}

// IsZero сообщает, что все суммы расчёта равны нулю.
func (q PriceQuote) IsZero() bool {
	return q.PlanAmount.IsZero() && q.TaxAmount.IsZero() && q.TaxRate.IsZero() &&
		q.DeliveryFees.IsZero() && q.DiscountValue.IsZero() && q.TotalAmount.IsZero()
}

// MergeDayDraft описывает редактируемое пользователем представление дня при объединении дней.
type MergeDayDraft struct {
	DayID          int64          `json:"dayId"`
	DeliveryDate   string         `json:"deliveryDate"`
	DayNumber      int            `json:"dayNumber"`
	DayName        string         `json:"dayName"`
	DeliveryStatus DeliveryStatus `json:"deliveryStatus"`
}

// ActionLogEntry описывает запись журнала отправленных действий.
type ActionLogEntry struct {
	ID        string    `json:"id"`
	SID       string    `json:"sid"`
	Action    string    `json:"action"`
	Payload   []byte    `json:"-"`
	Succeeded bool      `json:"succeeded"`
	Error     string    `json:"error,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}
