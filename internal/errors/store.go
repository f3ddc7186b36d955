package errors

import "net/http"

var (
	ErrItemNotFound = &DomainError{
		Code:    "ITEM_NOT_FOUND",
		Message: "store item not found",
		Status:  http.StatusNotFound,
	}
	ErrItemInactive = &DomainError{
		Code:    "ITEM_INACTIVE",
		Message: "store item is not active",
		Status:  http.StatusUnprocessableEntity,
	}
	ErrInsufficientStock = &DomainError{
		Code:    "INSUFFICIENT_STOCK",
		Message: "insufficient stock",
		Status:  http.StatusUnprocessableEntity,
	}
	ErrOrderNotFound = &DomainError{
		Code:    "ORDER_NOT_FOUND",
		Message: "order not found",
		Status:  http.StatusNotFound,
	}
	ErrOrderNotRefundable = &DomainError{
		Code:    "ORDER_NOT_REFUNDABLE",
		Message: "order is not in a refundable state",
		Status:  http.StatusConflict,
	}
)
