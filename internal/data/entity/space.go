package entity

import (
	"github.com/google/uuid"
)

// Space is an advertising placement a venue owner rents out per day.
type Space struct {
	Base
	OwnerID     uuid.UUID `db:"owner_id"`
	Name        string    `db:"name"`
	City        string    `db:"city"`
	PricePerDay float64   `db:"price_per_day"`
	IsActive    bool      `db:"is_active"`
}
