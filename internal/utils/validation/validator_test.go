package validation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStruct(t *testing.T) {
	type checkout struct {
		Items []struct {
			ItemID   uint `validate:"required"`
			Quantity int  `validate:"required,gt=0"`
		} `validate:"required,min=1,dive"`
	}

	var empty checkout
	err := Struct(empty)
	require.Error(t, err)
	assert.Contains(t, Describe(err), "Items")

	bad := checkout{Items: make([]struct {
		ItemID   uint `validate:"required"`
		Quantity int  `validate:"required,gt=0"`
	}, 1)}
	err = Struct(bad)
	require.Error(t, err)
	assert.Contains(t, Describe(err), "ItemID")
}

func TestDescribeNonValidationError(t *testing.T) {
	assert.Equal(t, "invalid request", Describe(assert.AnError))
}
