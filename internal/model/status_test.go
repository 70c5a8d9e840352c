package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDeliveryStatusCodesFollowVocabularyOrder(t *testing.T) {
	for i, s := range DeliveryStatuses {
		code, ok := s.Code()
		assert.True(t, ok, s)
		assert.Equal(t, i, code, s)

		back, ok := StatusFromCode(code)
		assert.True(t, ok)
		assert.Equal(t, s, back)
	}

	_, ok := StatusUnknown.Code()
	assert.False(t, ok)
}

func TestParseDeliveryStatus(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  DeliveryStatus
		ok    bool
	}{
		{name: "exact name", input: "Deliveried", want: StatusDeliveried, ok: true},
		{name: "case insensitive", input: "resticited", want: StatusResticited, ok: true},
		{name: "numeric code", input: "5", want: StatusCanceld, ok: true},
		{name: "code out of range", input: "42", ok: false},
		{name: "corrected spelling is not accepted", input: "Delivered", ok: false},
		{name: "empty", input: " ", ok: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ParseDeliveryStatus(tt.input)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDeliveryStatusPresentation(t *testing.T) {
	assert.Equal(t, "Cancelled", StatusCanceld.Label())
	assert.Equal(t, "Unknown", DeliveryStatus("").Label())
	assert.Equal(t, "Mystery", DeliveryStatus("Mystery").Label())
	assert.Equal(t, "#9ca3af", DeliveryStatus("Mystery").Color())
	assert.Equal(t, StatusDeliveried.Color(), StatusPickedUp.Color())
}

func TestZeroPriceQuote(t *testing.T) {
	assert.True(t, ZeroPriceQuote().IsZero())
	assert.True(t, PriceQuote{}.IsZero())
}
