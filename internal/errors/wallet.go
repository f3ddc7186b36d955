package errors

import "net/http"

var (
	ErrWalletNotFound = &DomainError{
		Code:    "WALLET_NOT_FOUND",
		Message: "wallet not found",
		Status:  http.StatusNotFound,
	}
	ErrInvalidAmount = &DomainError{
		Code:    "INVALID_AMOUNT",
		Message: "amount must be positive",
		Status:  http.StatusBadRequest,
	}
	ErrInvalidOwner = &DomainError{
		Code:    "INVALID_OWNER",
		Message: "unknown owner kind",
		Status:  http.StatusBadRequest,
	}
	ErrInsufficientBalance = &DomainError{
		Code:    "INSUFFICIENT_BALANCE",
		Message: "insufficient spendable balance",
		Status:  http.StatusUnprocessableEntity,
	}
	ErrInsufficientBudget = &DomainError{
		Code:    "INSUFFICIENT_BUDGET",
		Message: "insufficient reward budget",
		Status:  http.StatusUnprocessableEntity,
	}
	ErrLockNotFound = &DomainError{
		Code:    "LOCK_NOT_FOUND",
		Message: "lock not found",
		Status:  http.StatusNotFound,
	}
	ErrLockReleased = &DomainError{
		Code:    "LOCK_RELEASED",
		Message: "lock already released",
		Status:  http.StatusConflict,
	}
)
