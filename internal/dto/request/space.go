package request

type CreateSpaceRequest struct {
	Name        string  `json:"name" validate:"required,min=3,max=120"`
	City        string  `json:"city" validate:"required,max=80"`
	PricePerDay float64 `json:"price_per_day" validate:"required,gt=0"`
}
