package entity

import (
	"time"

	"github.com/google/uuid"
)

type BookingStatus string

const (
	BookingStatusPending   BookingStatus = "pending"
	BookingStatusConfirmed BookingStatus = "confirmed"
	BookingStatusRejected  BookingStatus = "rejected"
	BookingStatusActive    BookingStatus = "active"
	BookingStatusCompleted BookingStatus = "completed"
	BookingStatusCancelled BookingStatus = "cancelled"
)

type BookingPaymentStatus string

const (
	BookingPaymentPending  BookingPaymentStatus = "pending"
	BookingPaymentPaid     BookingPaymentStatus = "paid"
	BookingPaymentRefunded BookingPaymentStatus = "refunded"
)

const (
	MinBookingDays = 7
	MaxBookingDays = 365
	MaxNoteLength  = 500
)

// bookingTransitions is the complete lifecycle table. Anything absent is illegal.
var bookingTransitions = map[BookingStatus][]BookingStatus{
	BookingStatusPending:   {BookingStatusConfirmed, BookingStatusRejected, BookingStatusCancelled},
	BookingStatusConfirmed: {BookingStatusActive, BookingStatusCancelled},
	BookingStatusActive:    {BookingStatusCompleted, BookingStatusCancelled},
}

// CanTransitionTo reports whether the lifecycle table allows s -> next.
func (s BookingStatus) CanTransitionTo(next BookingStatus) bool {
	for _, allowed := range bookingTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

func (s BookingStatus) IsTerminal() bool {
	return len(bookingTransitions[s]) == 0
}

func (s BookingStatus) Valid() bool {
	switch s {
	case BookingStatusPending, BookingStatusConfirmed, BookingStatusRejected,
		BookingStatusActive, BookingStatusCompleted, BookingStatusCancelled:
		return true
	}
	return false
}

// Statuses that occupy a space's calendar.
var (
	OccupyingStatuses = []BookingStatus{BookingStatusConfirmed, BookingStatusActive}
	HoldingStatuses   = []BookingStatus{BookingStatusPending, BookingStatusConfirmed, BookingStatusActive}
)

type Booking struct {
	BaseNoDelete
	SpaceID         uuid.UUID            `db:"space_id"`
	BrandID         uuid.UUID            `db:"brand_id"`
	VenueOwnerID    uuid.UUID            `db:"venue_owner_id"`
	StartDate       time.Time            `db:"start_date"`
	EndDate         time.Time            `db:"end_date"`
	TotalPrice      float64              `db:"total_price"`
	Status          BookingStatus        `db:"status"`
	PaymentStatus   BookingPaymentStatus `db:"payment_status"`
	IsPaid          bool                 `db:"is_paid"`
	PaymentID       *uuid.UUID           `db:"payment_id"`
	Notes           *string              `db:"notes"`
	RejectionReason *string              `db:"rejection_reason"`
}

// Days is the booked duration in whole days.
func (b *Booking) Days() int {
	return int(b.EndDate.Sub(b.StartDate).Hours() / 24)
}

// Overlaps uses half-open intervals: [start, end).
func (b *Booking) Overlaps(start, end time.Time) bool {
	return b.StartDate.Before(end) && b.EndDate.After(start)
}

func (b *Booking) HasParty(userID uuid.UUID) bool {
	return b.BrandID == userID || b.VenueOwnerID == userID
}

// Clone returns a deep copy so callers never share pointer fields.
func (b *Booking) Clone() *Booking {
	c := *b
	if b.PaymentID != nil {
		id := *b.PaymentID
		c.PaymentID = &id
	}
	if b.Notes != nil {
		n := *b.Notes
		c.Notes = &n
	}
	if b.RejectionReason != nil {
		r := *b.RejectionReason
		c.RejectionReason = &r
	}
	return &c
}
