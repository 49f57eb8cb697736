package request

type CreateBookingRequest struct {
	SpaceID   string  `json:"space_id" validate:"required,uuid"`
	StartDate string  `json:"start_date" validate:"required,datetime=2006-01-02"`
	EndDate   string  `json:"end_date" validate:"required,datetime=2006-01-02"`
	Notes     *string `json:"notes,omitempty" validate:"omitempty,max=500"`
}

type RejectBookingRequest struct {
	Reason string `json:"reason" validate:"required,max=500"`
}

type CancelBookingRequest struct {
	Reason string `json:"reason" validate:"max=500"`
}

type RefundRequest struct {
	Reason string `json:"reason" validate:"max=500"`
}

// DateRangeRequest is read from the query string of calendar and availability lookups.
type DateRangeRequest struct {
	StartDate string `validate:"omitempty,datetime=2006-01-02"`
	EndDate   string `validate:"omitempty,datetime=2006-01-02"`
}
