package actions

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/mmeshcher/subscription-admin/internal/model"
)

// Разные эндпоинты API называют одни и те же поля по-разному.
// Списки ниже перечисляют варианты в порядке предпочтения.
var (
	sidKeys          = []string{"sid", "SID", "Sid", "subscriptionId", "subscriptionID", "SubscriptionId", "id"}
	customerIDKeys   = []string{"customerId", "customerID", "CustomerID", "CustomerId", "customer_id"}
	customerNameKeys = []string{"customerName", "CustomerName", "fullName", "name"}
	phoneKeys        = []string{"phone", "phoneNumber", "PhoneNumber", "mobile", "Phone"}
	planIDKeys       = []string{"planId", "planID", "PlanID", "PlanId", "plan_id"}
	planNameKeys     = []string{"planName", "PlanName", "plan_name"}
	subStatusKeys    = []string{"status", "subscriptionStatus", "Status", "state"}
	startDateKeys    = []string{"startDate", "StartDate", "start_date"}
	endDateKeys      = []string{"endDate", "EndDate", "end_date"}
	durationKeys     = []string{"duration", "Duration", "planDuration", "daysCount"}
	addressKeys      = []string{"address", "Address", "deliveryAddress"}
	mealTypesKeys    = []string{"mealTypes", "MealTypes", "planMealTypes", "mealsType"}
	deliveryDaysKeys = []string{"deliveryDays", "DeliveryDays", "planDeliveryDays"}
	daysKeys         = []string{"days", "Days", "planDays", "subscriptionDays", "deliveries"}

	mealTypeIDKeys      = []string{"mealTypeId", "mealTypeID", "MealTypeID", "MealTypeId", "id"}
	mealTypeNameKeys    = []string{"mealTypeName", "MealTypeName", "mealType", "name"}
	deliveryDayIDKeys   = []string{"deliveryDayId", "deliveryDayID", "DeliveryDayID", "dayId", "id"}
	deliveryDayNameKeys = []string{"dayName", "DayName", "deliveryDayName", "name"}

	recordDayIDKeys     = []string{"dayId", "dayID", "DayId", "DayID", "planDayId"}
	recordDateKeys      = []string{"deliveryDate", "date", "DeliveryDate", "Date"}
	recordStatusKeys    = []string{"deliveryStatus", "status", "deliveryState", "state", "DeliveryStatus"}
	recordMealTypeKeys  = []string{"mealTypeName", "mealType", "MealTypeName"}
	recordMealNameKeys  = []string{"mealName", "MealName", "meal", "name"}
	recordDayNumberKeys = []string{"dayNumberCount", "DayNumberCount", "dayNumber", "dayCount"}
	recordMealsKeys     = []string{"meals", "Meals", "dayMeals"}

	planAmountKeys    = []string{"planAmount", "PlanAmount", "planPrice", "price"}
	taxAmountKeys     = []string{"taxAmount", "TaxAmount", "vatAmount", "tax"}
	taxRateKeys       = []string{"taxRate", "TaxRate", "vatRate", "tax_rate"}
	deliveryFeesKeys  = []string{"deliveryFees", "DeliveryFees", "deliveryFee", "delivery_fees"}
	discountValueKeys = []string{"discountValue", "DiscountValue", "discount", "discountAmount"}
	totalAmountKeys   = []string{"totalAmount", "TotalAmount", "total", "totalPrice"}
)

type object = map[string]any

func decodeAny(raw []byte) (any, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, err
	}
	return v, nil
}

func decodeObject(raw []byte) (object, error) {
	v, err := decodeAny(raw)
	if err != nil {
		return nil, err
	}
	obj, ok := v.(object)
	if !ok {
		return nil, fmt.Errorf("expected JSON object, got %T", v)
	}
	return obj, nil
}

// NormalizeSubscription приводит ответ API с подпиской к model.Subscription.
func NormalizeSubscription(raw json.RawMessage) (*model.Subscription, error) {
	if len(bytes.TrimSpace(raw)) == 0 {
		return nil, fmt.Errorf("empty subscription payload")
	}
	obj, err := decodeObject(raw)
	if err != nil {
		return nil, err
	}
	sub := subscriptionFromObject(obj)
	return &sub, nil
}

// NormalizeSubscriptions приводит результат поиска к списку подписок. API возвращает
// как массив, так и одиночный объект.
func NormalizeSubscriptions(raw json.RawMessage) ([]model.Subscription, error) {
	if len(bytes.TrimSpace(raw)) == 0 {
		return []model.Subscription{}, nil
	}
	v, err := decodeAny(raw)
	if err != nil {
		return nil, err
	}

	switch t := v.(type) {
	case nil:
		return []model.Subscription{}, nil
	case object:
		return []model.Subscription{subscriptionFromObject(t)}, nil
	case []any:
		subs := make([]model.Subscription, 0, len(t))
		for i, item := range t {
			obj, ok := item.(object)
			if !ok {
				return nil, fmt.Errorf("item %d: expected JSON object, got %T", i, item)
			}
			subs = append(subs, subscriptionFromObject(obj))
		}
		return subs, nil
	default:
		return nil, fmt.Errorf("unexpected search payload %T", v)
	}
}

func subscriptionFromObject(obj object) model.Subscription {
	customer, _ := obj["customer"].(object)
	plan, _ := obj["plan"].(object)

	sub := model.Subscription{
		SID:          str(pick(obj, sidKeys...)),
		CustomerID:   integer(pickFirst([]object{obj, customer}, customerIDKeys...)),
		CustomerName: str(pickFirst([]object{obj, customer}, customerNameKeys...)),
		Phone:        str(pickFirst([]object{obj, customer}, phoneKeys...)),
		PlanID:       integer(pickFirst([]object{obj, plan}, planIDKeys...)),
		PlanName:     str(pickFirst([]object{obj, plan}, planNameKeys...)),
		Status:       str(pick(obj, subStatusKeys...)),
		StartDate:    date(pick(obj, startDateKeys...)),
		EndDate:      date(pick(obj, endDateKeys...)),
		Duration:     int(integer(pick(obj, durationKeys...))),
		Address:      address(pickFirst([]object{obj, customer}, addressKeys...)),
	}
	if customer != nil && sub.CustomerID == 0 {
		sub.CustomerID = integer(pick(customer, "id", "Id"))
	}
	if plan != nil {
		if sub.PlanID == 0 {
			sub.PlanID = integer(pick(plan, "id", "Id"))
		}
		if sub.PlanName == "" {
			sub.PlanName = str(pick(plan, "name", "Name"))
		}
	}

	for _, item := range list(pick(obj, mealTypesKeys...)) {
		m, ok := item.(object)
		if !ok {
			continue
		}
		sub.MealTypes = append(sub.MealTypes, model.MealType{
			ID:   integer(pick(m, mealTypeIDKeys...)),
			Name: str(pick(m, mealTypeNameKeys...)),
		})
	}

	for _, item := range list(pick(obj, deliveryDaysKeys...)) {
		switch d := item.(type) {
		case object:
			sub.DeliveryDays = append(sub.DeliveryDays, model.DeliveryDay{
				ID:   integer(pick(d, deliveryDayIDKeys...)),
				Name: str(pick(d, deliveryDayNameKeys...)),
			})
		case string:
			sub.DeliveryDays = append(sub.DeliveryDays, model.DeliveryDay{Name: d})
		}
	}

	sub.Days = deliveryRecords(list(pick(obj, daysKeys...)))
	return sub
}

// NormalizeDeliveryRecords приводит список дней или приёмов пищи к model.DeliveryRecord.
// Дни с вложенным массивом meals разворачиваются в одну запись на приём пищи.
func NormalizeDeliveryRecords(raw json.RawMessage) ([]model.DeliveryRecord, error) {
	if len(bytes.TrimSpace(raw)) == 0 {
		return []model.DeliveryRecord{}, nil
	}
	v, err := decodeAny(raw)
	if err != nil {
		return nil, err
	}
	items, ok := v.([]any)
	if !ok && v != nil {
		return nil, fmt.Errorf("expected JSON array, got %T", v)
	}
	return deliveryRecords(items), nil
}

func deliveryRecords(items []any) []model.DeliveryRecord {
	records := make([]model.DeliveryRecord, 0, len(items))
	for _, item := range items {
		day, ok := item.(object)
		if !ok {
			continue
		}

		meals := list(pick(day, recordMealsKeys...))
		if meals == nil {
			records = append(records, deliveryRecord(day, nil))
			continue
		}
		for _, m := range meals {
			meal, ok := m.(object)
			if !ok {
				continue
			}
			records = append(records, deliveryRecord(meal, day))
		}
	}
	return records
}

// deliveryRecord собирает запись из полей приёма пищи, недостающие поля берутся у дня.
func deliveryRecord(meal, day object) model.DeliveryRecord {
	sources := []object{meal, day}

	dayID := pickFirst(sources, recordDayIDKeys...)
	if dayID == nil && day != nil {
		dayID = pick(day, "id", "Id")
	}

	rec := model.DeliveryRecord{
		DayID:          integer(dayID),
		Date:           date(pickFirst(sources, recordDateKeys...)),
		MealTypeName:   mealTypeName(pick(meal, recordMealTypeKeys...)),
		MealName:       str(pick(meal, recordMealNameKeys...)),
		Status:         status(pickFirst(sources, recordStatusKeys...)),
		DayNumberCount: int(integer(pickFirst(sources, recordDayNumberKeys...))),
	}
	return rec
}

// NormalizePriceQuote приводит ответ расчёта стоимости к model.PriceQuote.
// Отсутствующие суммы считаются нулевыми.
func NormalizePriceQuote(raw json.RawMessage) (model.PriceQuote, error) {
	if len(bytes.TrimSpace(raw)) == 0 {
		return model.PriceQuote{}, fmt.Errorf("empty price payload")
	}
	obj, err := decodeObject(raw)
	if err != nil {
		return model.PriceQuote{}, err
	}

	var q model.PriceQuote
	fields := []struct {
		dst  *decimal.Decimal
		keys []string
	}{
		{&q.PlanAmount, planAmountKeys},
		{&q.TaxAmount, taxAmountKeys},
		{&q.TaxRate, taxRateKeys},
		{&q.DeliveryFees, deliveryFeesKeys},
		{&q.DiscountValue, discountValueKeys},
		{&q.TotalAmount, totalAmountKeys},
	}
	for _, f := range fields {
		d, err := amount(pick(obj, f.keys...))
		if err != nil {
			return model.PriceQuote{}, fmt.Errorf("%s: %w", f.keys[0], err)
		}
		*f.dst = d
	}
	return q, nil
}

// pick возвращает первое непустое значение из перечисленных ключей.
func pick(obj object, keys ...string) any {
	if obj == nil {
		return nil
	}
	for _, k := range keys {
		v, ok := obj[k]
		if !ok || v == nil {
			continue
		}
		if s, isStr := v.(string); isStr && strings.TrimSpace(s) == "" {
			continue
		}
		return v
	}
	return nil
}

func pickFirst(sources []object, keys ...string) any {
	for _, src := range sources {
		if v := pick(src, keys...); v != nil {
			return v
		}
	}
	return nil
}

func list(v any) []any {
	items, _ := v.([]any)
	return items
}

func str(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(t)
	case json.Number:
		return t.String()
	case bool:
		return strconv.FormatBool(t)
	default:
		return fmt.Sprint(t)
	}
}

func integer(v any) int64 {
	switch t := v.(type) {
	case json.Number:
		if i, err := t.Int64(); err == nil {
			return i
		}
		if f, err := t.Float64(); err == nil {
			return int64(f)
		}
	case string:
		if i, err := strconv.ParseInt(strings.TrimSpace(t), 10, 64); err == nil {
			return i
		}
	}
	return 0
}

// date отрезает время у значений вида 2024-06-01T00:00:00.
func date(v any) string {
	s := str(v)
	if len(s) > 10 && s[4] == '-' && s[7] == '-' && (s[10] == 'T' || s[10] == ' ') {
		return s[:10]
	}
	return s
}

func status(v any) model.DeliveryStatus {
	switch t := v.(type) {
	case json.Number:
		if code, err := t.Int64(); err == nil {
			if s, ok := model.StatusFromCode(int(code)); ok {
				return s
			}
		}
		return model.DeliveryStatus(t.String())
	case string:
		s := strings.TrimSpace(t)
		if code, err := strconv.Atoi(s); err == nil {
			if st, ok := model.StatusFromCode(code); ok {
				return st
			}
		}
		return model.DeliveryStatus(s)
	default:
		return model.DeliveryStatus(str(v))
	}
}

func mealTypeName(v any) string {
	if obj, ok := v.(object); ok {
		return str(pick(obj, "name", "mealTypeName", "Name"))
	}
	return str(v)
}

func address(v any) string {
	obj, ok := v.(object)
	if !ok {
		return str(v)
	}
	var parts []string
	for _, k := range []string{"city", "area", "street", "building", "floor", "apartment", "landmark"} {
		if s := str(pick(obj, k)); s != "" {
			parts = append(parts, s)
		}
	}
	return strings.Join(parts, ", ")
}

func amount(v any) (decimal.Decimal, error) {
	switch t := v.(type) {
	case nil:
		return decimal.Zero, nil
	case json.Number:
		return decimal.NewFromString(t.String())
	case string:
		return decimal.NewFromString(strings.TrimSpace(t))
	default:
		return decimal.Zero, fmt.Errorf("unexpected amount type %T", v)
	}
}
