package response

import (
	"time"

	"adspace-booking/internal/data/entity"
	"adspace-booking/internal/settlement"
	"adspace-booking/pkg/utils"

	"github.com/google/uuid"
)

type BookingResponse struct {
	ID              string                      `json:"id"`
	SpaceID         string                      `json:"space_id"`
	BrandID         string                      `json:"brand_id"`
	VenueOwnerID    string                      `json:"venue_owner_id"`
	StartDate       string                      `json:"start_date"`
	EndDate         string                      `json:"end_date"`
	Days            int                         `json:"days"`
	TotalPrice      float64                     `json:"total_price"`
	Status          entity.BookingStatus        `json:"status"`
	PaymentStatus   entity.BookingPaymentStatus `json:"payment_status"`
	IsPaid          bool                        `json:"is_paid"`
	PaymentID       *string                     `json:"payment_id,omitempty"`
	Notes           *string                     `json:"notes,omitempty"`
	RejectionReason *string                     `json:"rejection_reason,omitempty"`
	CreatedAt       time.Time                   `json:"created_at"`
	UpdatedAt       time.Time                   `json:"updated_at"`
}

func BookingToResponse(b *entity.Booking) BookingResponse {
	resp := BookingResponse{
		ID:              b.ID.String(),
		SpaceID:         b.SpaceID.String(),
		BrandID:         b.BrandID.String(),
		VenueOwnerID:    b.VenueOwnerID.String(),
		StartDate:       b.StartDate.Format(utils.DateLayout),
		EndDate:         b.EndDate.Format(utils.DateLayout),
		Days:            b.Days(),
		TotalPrice:      b.TotalPrice,
		Status:          b.Status,
		PaymentStatus:   b.PaymentStatus,
		IsPaid:          b.IsPaid,
		Notes:           b.Notes,
		RejectionReason: b.RejectionReason,
		CreatedAt:       b.CreatedAt,
		UpdatedAt:       b.UpdatedAt,
	}
	if b.PaymentID != nil {
		id := b.PaymentID.String()
		resp.PaymentID = &id
	}
	return resp
}

func BookingsToResponse(bookings []*entity.Booking) []BookingResponse {
	out := make([]BookingResponse, 0, len(bookings))
	for _, b := range bookings {
		out = append(out, BookingToResponse(b))
	}
	return out
}

type SettlementResponse struct {
	BookingID          string  `json:"booking_id"`
	TotalPrice         float64 `json:"total_price"`
	Commission         float64 `json:"commission"`
	GST                float64 `json:"gst"`
	VenueOwnerReceives float64 `json:"venue_owner_receives"`
	PlatformEarns      float64 `json:"platform_earns"`
}

func SettlementToResponse(bookingID string, b settlement.Breakdown) SettlementResponse {
	return SettlementResponse{
		BookingID:          bookingID,
		TotalPrice:         b.TotalPrice,
		Commission:         b.Commission,
		GST:                b.GST,
		VenueOwnerReceives: b.VenueOwnerReceives,
		PlatformEarns:      b.PlatformEarns,
	}
}

type CalendarEntry struct {
	BookingID string               `json:"booking_id"`
	StartDate string               `json:"start_date"`
	EndDate   string               `json:"end_date"`
	Status    entity.BookingStatus `json:"status"`
}

type CalendarResponse struct {
	SpaceID  string          `json:"space_id"`
	From     string          `json:"from"`
	To       string          `json:"to"`
	Bookings []CalendarEntry `json:"bookings"`
}

type AvailabilityResponse struct {
	SpaceID   string `json:"space_id"`
	StartDate string `json:"start_date"`
	EndDate   string `json:"end_date"`
	Available bool   `json:"available"`
}

type SweepResponse struct {
	Cancelled []string `json:"cancelled"`
	Activated []string `json:"activated"`
	Completed []string `json:"completed"`
}

func SweepToResponse(cancelled, activated, completed []uuid.UUID) SweepResponse {
	return SweepResponse{
		Cancelled: idStrings(cancelled),
		Activated: idStrings(activated),
		Completed: idStrings(completed),
	}
}

func idStrings(ids []uuid.UUID) []string {
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		out = append(out, id.String())
	}
	return out
}
