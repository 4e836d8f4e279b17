package domain

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/google/uuid"
)

// AppError is a structured application error with HTTP status code.
type AppError struct {
	Code    int    `json:"code"`
	Message string `json:"error"`
	Err     error  `json:"-"`
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// Common error constructors.

func ErrNotFound(msg string) *AppError {
	return &AppError{Code: http.StatusNotFound, Message: msg}
}

func ErrUnauthorized(msg string) *AppError {
	return &AppError{Code: http.StatusUnauthorized, Message: msg}
}

func ErrBadRequest(msg string) *AppError {
	return &AppError{Code: http.StatusBadRequest, Message: msg}
}

func ErrValidation(msg string) *AppError {
	return &AppError{Code: http.StatusUnprocessableEntity, Message: msg}
}

func ErrConflict(msg string) *AppError {
	return &AppError{Code: http.StatusConflict, Message: msg}
}

func ErrInternal(msg string, err error) *AppError {
	return &AppError{Code: http.StatusInternalServerError, Message: msg, Err: err}
}

// AsAppError attempts to extract an AppError from an error chain.
func AsAppError(err error) (*AppError, bool) {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

// Settlement error kinds. Each carries enough structure for the caller
// to log and decide retry-or-not; raw storage errors never cross the
// core's boundary untranslated.

var (
	// ErrPaymentNotFound: the payment id does not resolve. Nothing was
	// written; safe to reject outright.
	ErrPaymentNotFound = errors.New("payment not found")

	// ErrAlreadyProcessed: the payment is already terminal. Non-fatal;
	// callers treat it as a success echo, not a retry case.
	ErrAlreadyProcessed = errors.New("payment already processed")

	// ErrTierNotFound: the tier id does not resolve mid-settlement.
	// Fatal to the enclosing transaction.
	ErrTierNotFound = errors.New("subscription tier not found")

	// ErrOrderNotFound: the order id does not resolve.
	ErrOrderNotFound = errors.New("order not found")

	// ErrWalletNotFound: the merchant has no wallet row.
	ErrWalletNotFound = errors.New("merchant wallet not found")

	// ErrVariantNotFound: a line item references an unknown variant.
	ErrVariantNotFound = errors.New("product variant not found")

	// ErrNotRefundable: refund requested for a payment that is not
	// currently SUCCESS.
	ErrNotRefundable = errors.New("payment is not refundable")

	// ErrInvalidTransition: an order advance that the status table
	// forbids.
	ErrInvalidTransition = errors.New("illegal status transition")
)

// InsufficientStockError names the offending product when a reservation
// would drive variant stock below zero. It fails the whole order.
type InsufficientStockError struct {
	ProductID   uuid.UUID
	ProductName string
	Requested   int64
	Available   int64
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for %q: requested %d, available %d",
		e.ProductName, e.Requested, e.Available)
}
