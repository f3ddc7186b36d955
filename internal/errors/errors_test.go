package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDomainError(t *testing.T) {
	assert.Equal(t, "insufficient spendable balance", ErrInsufficientBalance.Error())
	assert.Equal(t, http.StatusUnprocessableEntity, ErrInsufficientBalance.HTTPStatus())
	assert.Equal(t, http.StatusBadRequest, ErrValidation.HTTPStatus())
	assert.Equal(t, http.StatusConflict, ErrStorageConflict.HTTPStatus())

	e := &DomainError{Code: "X", Message: "x"}
	assert.Equal(t, http.StatusUnprocessableEntity, e.HTTPStatus(), "zero status defaults")
}

func TestDomainErrorUnwrapping(t *testing.T) {
	wrapped := fmt.Errorf("checkout: %w", ErrInsufficientStock)

	assert.ErrorIs(t, wrapped, ErrInsufficientStock)

	var derr *DomainError
	assert.True(t, stderrors.As(wrapped, &derr))
	assert.Equal(t, ErrInsufficientStock.Code, derr.Code)
}
