// Package apperror carries the error taxonomy shared by the booking and payment
// core. Every error returned across a service boundary has a stable Kind that
// adaptors translate into transport status codes.
package apperror

import (
	"errors"
	"fmt"
	"net/http"
)

type Kind string

const (
	KindValidation        Kind = "validation"
	KindAuthorization     Kind = "authorization"
	KindNotFound          Kind = "not_found"
	KindConflict          Kind = "conflict"
	KindInvalidTransition Kind = "invalid_transition"
	KindSignatureMismatch Kind = "signature_mismatch"
	KindRefundIneligible  Kind = "refund_ineligible"
	KindNoRefundAvailable Kind = "no_refund_available"
	KindPaymentGateway    Kind = "payment_gateway"
	KindInternal          Kind = "internal"
)

type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches on Kind so errors.Is(err, apperror.ErrConflict) works for any conflict.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && t.Message == ""
}

// Sentinels usable with errors.Is.
var (
	ErrValidation        = &Error{Kind: KindValidation}
	ErrAuthorization     = &Error{Kind: KindAuthorization}
	ErrNotFound          = &Error{Kind: KindNotFound}
	ErrConflict          = &Error{Kind: KindConflict}
	ErrInvalidTransition = &Error{Kind: KindInvalidTransition}
	ErrSignatureMismatch = &Error{Kind: KindSignatureMismatch}
	ErrRefundIneligible  = &Error{Kind: KindRefundIneligible}
	ErrNoRefundAvailable = &Error{Kind: KindNoRefundAvailable}
	ErrPaymentGateway    = &Error{Kind: KindPaymentGateway}
)

func New(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

func Wrap(kind Kind, err error, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Err: err}
}

func Validation(format string, args ...any) *Error {
	return New(KindValidation, format, args...)
}

func Authorization(format string, args ...any) *Error {
	return New(KindAuthorization, format, args...)
}

func NotFound(format string, args ...any) *Error {
	return New(KindNotFound, format, args...)
}

func Conflict(format string, args ...any) *Error {
	return New(KindConflict, format, args...)
}

func InvalidTransition(from, to string) *Error {
	return New(KindInvalidTransition, "cannot move booking from %s to %s", from, to)
}

func SignatureMismatch() *Error {
	return New(KindSignatureMismatch, "payment signature verification failed")
}

func RefundIneligible(reason string) *Error {
	return New(KindRefundIneligible, "booking is not eligible for refund: %s", reason)
}

func NoRefundAvailable(daysUntilStart int) *Error {
	return New(KindNoRefundAvailable, "no refund available %d day(s) before start", daysUntilStart)
}

func PaymentGateway(err error, op string) *Error {
	return Wrap(KindPaymentGateway, err, "payment gateway %s failed", op)
}

// KindOf returns the Kind of the first *Error in the chain, or KindInternal.
func KindOf(err error) Kind {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Kind
	}
	return KindInternal
}

// Message returns the client-facing message; internal errors are masked.
func Message(err error) string {
	var appErr *Error
	if errors.As(err, &appErr) && appErr.Kind != KindInternal {
		return appErr.Message
	}
	return "Internal server error"
}

// HTTPStatus maps a Kind to the status code adaptors respond with.
func HTTPStatus(kind Kind) int {
	switch kind {
	case KindValidation:
		return http.StatusBadRequest
	case KindAuthorization:
		return http.StatusForbidden
	case KindNotFound:
		return http.StatusNotFound
	case KindConflict, KindInvalidTransition:
		return http.StatusConflict
	case KindSignatureMismatch, KindRefundIneligible, KindNoRefundAvailable:
		return http.StatusUnprocessableEntity
	case KindPaymentGateway:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
