package response

import (
	"adspace-booking/internal/data/entity"
)

type PaymentOrderResponse struct {
	PaymentID string               `json:"payment_id"`
	BookingID string               `json:"booking_id"`
	OrderID   string               `json:"order_id"`
	Amount    int64                `json:"amount"`
	Currency  string               `json:"currency"`
	Receipt   string               `json:"receipt"`
	Status    entity.PaymentStatus `json:"status"`
	KeyID     string               `json:"key_id,omitempty"`
}

func PaymentOrderToResponse(p *entity.Payment, keyID string) PaymentOrderResponse {
	return PaymentOrderResponse{
		PaymentID: p.ID.String(),
		BookingID: p.BookingID.String(),
		OrderID:   p.GatewayOrderID,
		Amount:    p.Amount,
		Currency:  p.Currency,
		Receipt:   p.Receipt,
		Status:    p.Status,
		KeyID:     keyID,
	}
}

type PaymentConfirmResponse struct {
	PaymentID        string               `json:"payment_id"`
	GatewayPaymentID string               `json:"gateway_payment_id"`
	Status           entity.PaymentStatus `json:"status"`
	Booking          BookingResponse      `json:"booking"`
}

func PaymentConfirmToResponse(p *entity.Payment, b *entity.Booking) PaymentConfirmResponse {
	resp := PaymentConfirmResponse{
		PaymentID: p.ID.String(),
		Status:    p.Status,
		Booking:   BookingToResponse(b),
	}
	if p.GatewayPaymentID != nil {
		resp.GatewayPaymentID = *p.GatewayPaymentID
	}
	return resp
}

type RefundResponse struct {
	RefundID       string          `json:"refund_id"`
	Amount         float64         `json:"amount"`
	AmountMinor    int64           `json:"amount_minor"`
	DaysUntilStart int             `json:"days_until_start"`
	Booking        BookingResponse `json:"booking"`
}
