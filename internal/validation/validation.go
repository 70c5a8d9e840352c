// Package validation содержит проверки входных данных, выполняемые до обращения к API.
package validation

import (
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode"
)

// ErrInvalid оборачивает все ошибки валидации.
var ErrInvalid = errors.New("validation failed")

// DateLayout задаёт формат дат, которыми обменивается API.
const DateLayout = "2006-01-02"

// Errorf создаёт ошибку валидации с указанным описанием.
func Errorf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalid, fmt.Sprintf(format, args...))
}

// Required проверяет, что строковое поле заполнено.
func Required(field, value string) error {
	if strings.TrimSpace(value) == "" {
		return Errorf("%s is required", field)
	}
	return nil
}

// IsValidDate проверяет, что строка является датой в формате YYYY-MM-DD.
func IsValidDate(value string) bool {
	_, err := time.Parse(DateLayout, value)
	return err == nil
}

// Date проверяет обязательное поле даты.
func Date(field, value string) error {
	if err := Required(field, value); err != nil {
		return err
	}
	if !IsValidDate(value) {
		return Errorf("%s must be a date in YYYY-MM-DD format, got %q", field, value)
	}
	return nil
}

// NormalizePhone удаляет из номера пробелы, скобки и дефисы и проверяет, что осталось
// от 7 до 15 цифр с необязательным ведущим «+».
func NormalizePhone(phone string) (string, error) {
	phone = strings.TrimSpace(phone)
	if phone == "" {
		return "", Errorf("phone is required")
	}

	var b strings.Builder
	for i, ch := range phone {
		switch {
		case unicode.IsDigit(ch):
			b.WriteRune(ch)
		case ch == '+' && i == 0:
			b.WriteRune(ch)
		case ch == ' ' || ch == '-' || ch == '(' || ch == ')':
		default:
			return "", Errorf("phone %q contains invalid character %q", phone, ch)
		}
	}

	normalized := b.String()
	digits := len(strings.TrimPrefix(normalized, "+"))
	if digits < 7 || digits > 15 {
		return "", Errorf("phone %q must contain 7 to 15 digits", phone)
	}

	return normalized, nil
}

// IsValidSID проверяет идентификатор подписки: непустой, без пробелов и разделителей пути.
func IsValidSID(sid string) bool {
	if sid == "" {
		return false
	}
	for _, ch := range sid {
		if unicode.IsSpace(ch) || ch == '/' || ch == '?' || ch == '#' {
			return false
		}
	}
	return true
}
