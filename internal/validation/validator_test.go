package validation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type bidShape struct {
	Energy uint64 `json:"energy" validate:"amount"`
	Price  uint64 `json:"price" validate:"price"`
}

func TestValidator_AcceptsPositiveAmountAndPrice(t *testing.T) {
	v := NewValidator()
	err := v.Validate(bidShape{Energy: 10, Price: 5})
	require.NoError(t, err)
}

func TestValidator_RejectsZeroAmount(t *testing.T) {
	v := NewValidator()
	err := v.Validate(bidShape{Energy: 0, Price: 5})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "energy")
}

func TestValidator_RejectsZeroPrice(t *testing.T) {
	v := NewValidator()
	err := v.Validate(bidShape{Energy: 10, Price: 0})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "price")
}
