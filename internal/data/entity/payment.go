package entity

import (
	"time"

	"github.com/google/uuid"
)

type PaymentStatus string

const (
	PaymentStatusCreated  PaymentStatus = "created"
	PaymentStatusPending  PaymentStatus = "pending"
	PaymentStatusSuccess  PaymentStatus = "success"
	PaymentStatusFailed   PaymentStatus = "failed"
	PaymentStatusRefunded PaymentStatus = "refunded"
)

// IsOpen reports whether the order can still be settled by a callback.
func (s PaymentStatus) IsOpen() bool {
	return s == PaymentStatusCreated || s == PaymentStatusPending
}

// Payment is never deleted; refunds mutate it in place for the audit trail.
type Payment struct {
	BaseNoDelete
	BookingID        uuid.UUID     `db:"booking_id"`
	BrandID          uuid.UUID     `db:"brand_id"`
	Amount           int64         `db:"amount"` // minor units
	Currency         string        `db:"currency"`
	GatewayOrderID   string        `db:"gateway_order_id"`
	GatewayPaymentID *string       `db:"gateway_payment_id"`
	Signature        *string       `db:"signature"`
	Status           PaymentStatus `db:"status"`
	Receipt          string        `db:"receipt"`
	CompletedAt      *time.Time    `db:"completed_at"`
	RefundID         *string       `db:"refund_id"`
	RefundAmount     *int64        `db:"refund_amount"` // minor units
	RefundReason     *string       `db:"refund_reason"`
	RefundedAt       *time.Time    `db:"refunded_at"`
}

func (p *Payment) Clone() *Payment {
	c := *p
	c.GatewayPaymentID = cloneString(p.GatewayPaymentID)
	c.Signature = cloneString(p.Signature)
	c.RefundID = cloneString(p.RefundID)
	c.RefundReason = cloneString(p.RefundReason)
	if p.CompletedAt != nil {
		t := *p.CompletedAt
		c.CompletedAt = &t
	}
	if p.RefundAmount != nil {
		a := *p.RefundAmount
		c.RefundAmount = &a
	}
	if p.RefundedAt != nil {
		t := *p.RefundedAt
		c.RefundedAt = &t
	}
	return &c
}

func cloneString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}
