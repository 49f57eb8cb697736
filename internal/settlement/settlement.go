// Package settlement holds the pure money rules of the marketplace: platform
// commission, GST on commission, refund tiers and minor-unit conversion.
package settlement

import (
	"math"
	"time"
)

const (
	CommissionRate = 0.15
	GSTRate        = 0.18

	FullRefundMinDays = 7
	HalfRefundMinDays = 3
)

// Commission is floor(totalPrice * 15%).
func Commission(totalPrice float64) float64 {
	return math.Floor(totalPrice * CommissionRate)
}

// GST is charged on the commission: floor(commission * 18%).
func GST(commission float64) float64 {
	return math.Floor(commission * GSTRate)
}

func VenueOwnerReceives(totalPrice float64) float64 {
	return totalPrice - Commission(totalPrice)
}

func PlatformEarns(totalPrice float64) float64 {
	c := Commission(totalPrice)
	return c + GST(c)
}

type Breakdown struct {
	TotalPrice         float64 `json:"total_price"`
	Commission         float64 `json:"commission"`
	GST                float64 `json:"gst"`
	VenueOwnerReceives float64 `json:"venue_owner_receives"`
	PlatformEarns      float64 `json:"platform_earns"`
}

func Calculate(totalPrice float64) Breakdown {
	c := Commission(totalPrice)
	return Breakdown{
		TotalPrice:         totalPrice,
		Commission:         c,
		GST:                GST(c),
		VenueOwnerReceives: totalPrice - c,
		PlatformEarns:      c + GST(c),
	}
}

// ToMinorUnits converts a currency amount to paise: round(amount * 100).
func ToMinorUnits(amount float64) int64 {
	return int64(math.Round(amount * 100))
}

// DaysUntil counts whole days from now until start, floored. Negative once start has passed.
func DaysUntil(start, now time.Time) int {
	return int(math.Floor(start.Sub(now).Hours() / 24))
}

// RefundFraction is the tier applied for the given days until start.
func RefundFraction(daysUntilStart int) float64 {
	switch {
	case daysUntilStart >= FullRefundMinDays:
		return 1
	case daysUntilStart >= HalfRefundMinDays:
		return 0.5
	default:
		return 0
	}
}

// RefundAmount is floor(totalPrice * fraction) in whole currency units.
// A zero result means no refund is available.
func RefundAmount(totalPrice float64, start, now time.Time) (amount int64, daysUntilStart int) {
	daysUntilStart = DaysUntil(start, now)
	amount = int64(math.Floor(totalPrice * RefundFraction(daysUntilStart)))
	return amount, daysUntilStart
}
