// Package gateway talks to the payment provider. Every call is bounded by a
// timeout and fails with an apperror of kind payment_gateway.
package gateway

import (
	"context"
	"errors"
	"time"

	"adspace-booking/pkg/apperror"
)

type Order struct {
	ID       string
	Amount   int64
	Currency string
	Receipt  string
}

type Refund struct {
	ID        string
	PaymentID string
	Amount    int64
	Status    string
	Receipt   string
}

type Gateway interface {
	CreateOrder(ctx context.Context, amount int64, currency, receipt string, notes map[string]string) (*Order, error)
	Refund(ctx context.Context, gatewayPaymentID string, amount int64, receipt string, notes map[string]string) (*Refund, error)
	// FindRefundByReceipt returns nil, nil when no refund carries the receipt.
	FindRefundByReceipt(ctx context.Context, gatewayPaymentID, receipt string) (*Refund, error)
}

var ErrTimeout = errors.New("gateway call timed out")

// call runs fn with a deadline. A late result is discarded; the caller only
// ever sees success, the provider error, or ErrTimeout.
func call[T any](ctx context.Context, timeout time.Duration, op string, fn func() (T, error)) (T, error) {
	var zero T
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	type result struct {
		val T
		err error
	}
	done := make(chan result, 1)
	go func() {
		v, err := fn()
		done <- result{v, err}
	}()

	select {
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return zero, apperror.PaymentGateway(ErrTimeout, op)
		}
		return zero, apperror.PaymentGateway(ctx.Err(), op)
	case r := <-done:
		if r.err != nil {
			return zero, apperror.PaymentGateway(r.err, op)
		}
		return r.val, nil
	}
}
