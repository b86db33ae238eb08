package apperrors

import (
	"fmt"
	"net/http"
)

type ErrorType string

const (
	ErrConfig             ErrorType = "CONFIG_ERROR"
	ErrBadPacket          ErrorType = "BAD_PACKET"
	ErrNoTokenPrice       ErrorType = "NO_TOKEN_PRICE"
	ErrInsufficientNative ErrorType = "INSUFFICIENT_NATIVE"
	ErrNoSweepableOrders  ErrorType = "NO_SWEEPABLE_ORDERS"
	ErrZeroAddress        ErrorType = "ZERO_ADDRESS"
	ErrNoBalance          ErrorType = "NO_BALANCE"
	ErrReentrancy         ErrorType = "REENTRANCY"
	ErrAuthFailed         ErrorType = "AUTH_FAILED"
	ErrFrozen             ErrorType = "FROZEN"
	ErrInvalidRequest     ErrorType = "INVALID_REQUEST"
	ErrNotFound           ErrorType = "NOT_FOUND"
	ErrInternal           ErrorType = "INTERNAL_ERROR"
)

// AppError is the standard error struct for the application
type AppError struct {
	Type       ErrorType `json:"code"`
	Message    string    `json:"message"`
	Suggestion string    `json:"suggestion,omitempty"`
	HTTPStatus int       `json:"-"`
	Cause      error     `json:"-"`
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

func New(errType ErrorType, msg string, cause error) *AppError {
	return &AppError{
		Type:       errType,
		Message:    msg,
		Cause:      cause,
		HTTPStatus: mapTypeToStatus(errType),
		Suggestion: mapTypeToSuggestion(errType),
	}
}

func NewConfig(msg string) *AppError {
	return New(ErrConfig, msg, nil)
}

func NewInvalidRequest(msg string) *AppError {
	return New(ErrInvalidRequest, msg, nil)
}

func Wrap(err error) *AppError {
	if err == nil {
		return nil
	}
	if appErr, ok := err.(*AppError); ok {
		return appErr
	}
	return New(ErrInternal, err.Error(), err)
}

func mapTypeToStatus(t ErrorType) int {
	switch t {
	case ErrConfig, ErrNoSweepableOrders, ErrZeroAddress, ErrInvalidRequest:
		return http.StatusBadRequest
	case ErrBadPacket, ErrAuthFailed:
		return http.StatusUnauthorized
	case ErrInsufficientNative:
		return http.StatusPaymentRequired
	case ErrNoTokenPrice:
		return http.StatusUnprocessableEntity
	case ErrNoBalance, ErrReentrancy:
		return http.StatusConflict
	case ErrNotFound:
		return http.StatusNotFound
	case ErrFrozen:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func mapTypeToSuggestion(t ErrorType) string {
	switch t {
	case ErrBadPacket:
		return "Request a fresh packet from the price feeder and retry."
	case ErrNoTokenPrice:
		return "Include a price entry for every token in the batch."
	case ErrInsufficientNative:
		return "Attach at least the reported required value."
	case ErrNoSweepableOrders:
		return "Check batch shape and caller whitelist status."
	case ErrAuthFailed:
		return "Check API keys."
	case ErrFrozen:
		return "Settlement is halted; retry after the operator unfreezes."
	default:
		return ""
	}
}
