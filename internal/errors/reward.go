package errors

import "net/http"

var (
	ErrRewardsForbidden = &DomainError{
		Code:    "REWARDS_FORBIDDEN",
		Message: "no reward limit configured for this wallet or role",
		Status:  http.StatusForbidden,
	}
	ErrDailyLimitExceeded = &DomainError{
		Code:    "DAILY_LIMIT_EXCEEDED",
		Message: "daily reward limit exceeded",
		Status:  http.StatusUnprocessableEntity,
	}
	ErrMonthlyLimitExceeded = &DomainError{
		Code:    "MONTHLY_LIMIT_EXCEEDED",
		Message: "monthly reward limit exceeded",
		Status:  http.StatusUnprocessableEntity,
	}
	ErrBudgetNotAllowed = &DomainError{
		Code:    "BUDGET_NOT_ALLOWED",
		Message: "this owner kind cannot hold a reward budget",
		Status:  http.StatusForbidden,
	}
)
