package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sample struct {
	Name  string `json:"name" validate:"required,min=2,max=5"`
	Phone string `json:"phone" validate:"max=3"`
	Qty   int    `json:"qty" validate:"gte=1"`
}

func TestValidateReportsJSONFieldName(t *testing.T) {
	err := Validate(sample{Name: "", Qty: 1})
	var ve *ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "name", ve.Field)
	assert.Equal(t, "is required", ve.Reason)
}

func TestValidateReasons(t *testing.T) {
	cases := []struct {
		in     sample
		field  string
		reason string
	}{
		{sample{Name: "a", Qty: 1}, "name", "must be at least 2 characters"},
		{sample{Name: "abcdef", Qty: 1}, "name", "must be at most 5 characters"},
		{sample{Name: "ab", Phone: "1234", Qty: 1}, "phone", "must be at most 3 characters"},
		{sample{Name: "ab", Qty: 0}, "qty", "must be at least 1"},
	}
	for _, c := range cases {
		var ve *ValidationError
		require.ErrorAs(t, Validate(c.in), &ve)
		assert.Equal(t, c.field, ve.Field)
		assert.Equal(t, c.reason, ve.Reason)
	}
	assert.NoError(t, Validate(sample{Name: "ab", Qty: 1}))
}
