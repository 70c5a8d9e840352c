package model

import (
	"strconv"
	"strings"
)

// DeliveryStatus описывает статус доставки дня.
// Значения совпадают с теми, что передаёт сервер, включая нестандартное написание.
type DeliveryStatus string

const (
	StatusPending      DeliveryStatus = "Pending"
	StatusDeliveried   DeliveryStatus = "Deliveried"
	StatusNotDelivered DeliveryStatus = "NotDelivered"
	StatusHold         DeliveryStatus = "Hold"
	StatusResticited   DeliveryStatus = "Resticited"
	StatusCanceld      DeliveryStatus = "Canceld"
	StatusPickedUp     DeliveryStatus = "PickedUp"
	StatusRefund       DeliveryStatus = "Refund"
	StatusPrepared     DeliveryStatus = "Prepared"

	// StatusUnknown подставляется, когда в записи нет статуса.
	StatusUnknown DeliveryStatus = "Unknown"
)

// DeliveryStatuses перечисляет словарь статусов в порядке их числовых кодов.
var DeliveryStatuses = []DeliveryStatus{
	StatusPending,
	StatusDeliveried,
	StatusNotDelivered,
	StatusHold,
	StatusResticited,
	StatusCanceld,
	StatusPickedUp,
	StatusRefund,
	StatusPrepared,
}

// Code возвращает числовой код статуса, принятый API смены статуса дней.
func (s DeliveryStatus) Code() (int, bool) {
	switch s {
	case StatusPending:
		return 0, true
	case StatusDeliveried:
		return 1, true
	case StatusNotDelivered:
		return 2, true
	case StatusHold:
		return 3, true
	case StatusResticited:
		return 4, true
	case StatusCanceld:
		return 5, true
	case StatusPickedUp:
		return 6, true
	case StatusRefund:
		return 7, true
	case StatusPrepared:
		return 8, true
	default:
		return 0, false
	}
}

// Valid сообщает, входит ли статус в словарь сервера.
func (s DeliveryStatus) Valid() bool {
	_, ok := s.Code()
	return ok
}

// Label возвращает человекочитаемое название статуса.
func (s DeliveryStatus) Label() string {
	switch s {
	case StatusPending:
		return "Pending"
	case StatusDeliveried:
		return "Delivered"
	case StatusNotDelivered:
		return "Not delivered"
	case StatusHold:
		return "On hold"
	case StatusResticited:
		return "Restricted"
	case StatusCanceld:
		return "Cancelled"
	case StatusPickedUp:
		return "Picked up"
	case StatusRefund:
		return "Refunded"
	case StatusPrepared:
		return "Prepared"
	case "":
		return string(StatusUnknown)
	default:
		return string(s)
	}
}

// Color возвращает цвет, которым статус отображается в таблице доставок.
func (s DeliveryStatus) Color() string {
	switch s {
	case StatusPending:
		return "#f59e0b"
	case StatusDeliveried, StatusPickedUp:
		return "#16a34a"
	case StatusNotDelivered:
		return "#dc2626"
	case StatusHold:
		return "#6366f1"
	case StatusResticited:
		return "#9333ea"
	case StatusCanceld:
		return "#4b5563"
	case StatusRefund:
		return "#0891b2"
	case StatusPrepared:
		return "#2563eb"
	default:
		return "#9ca3af"
	}
}

// StatusFromCode возвращает статус по числовому коду.
func StatusFromCode(code int) (DeliveryStatus, bool) {
	if code < 0 || code >= len(DeliveryStatuses) {
		return "", false
	}
	return DeliveryStatuses[code], true
}

// ParseDeliveryStatus разбирает статус по имени (без учёта регистра) или по числовому коду.
func ParseDeliveryStatus(v string) (DeliveryStatus, bool) {
	v = strings.TrimSpace(v)
	if v == "" {
		return "", false
	}

	if code, err := strconv.Atoi(v); err == nil {
		return StatusFromCode(code)
	}

	for _, s := range DeliveryStatuses {
		if strings.EqualFold(string(s), v) {
			return s, true
		}
	}

	return "", false
}
