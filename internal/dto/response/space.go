package response

import (
	"adspace-booking/internal/data/entity"
)

type SpaceResponse struct {
	ID          string  `json:"id"`
	OwnerID     string  `json:"owner_id"`
	Name        string  `json:"name"`
	City        string  `json:"city"`
	PricePerDay float64 `json:"price_per_day"`
	IsActive    bool    `json:"is_active"`
}

func SpaceToResponse(s *entity.Space) SpaceResponse {
	return SpaceResponse{
		ID:          s.ID.String(),
		OwnerID:     s.OwnerID.String(),
		Name:        s.Name,
		City:        s.City,
		PricePerDay: s.PricePerDay,
		IsActive:    s.IsActive,
	}
}
