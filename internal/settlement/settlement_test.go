package settlement_test

import (
	"testing"
	"time"

	"adspace-booking/internal/settlement"

	"github.com/stretchr/testify/assert"
)

func TestSettlementFigures(t *testing.T) {
	assert.Equal(t, 15000.0, settlement.Commission(100000))
	assert.Equal(t, 2700.0, settlement.GST(15000))
	assert.Equal(t, 85000.0, settlement.VenueOwnerReceives(100000))
	assert.Equal(t, 17700.0, settlement.PlatformEarns(100000))

	b := settlement.Calculate(100000)
	assert.Equal(t, settlement.Breakdown{
		TotalPrice:         100000,
		Commission:         15000,
		GST:                2700,
		VenueOwnerReceives: 85000,
		PlatformEarns:      17700,
	}, b)
}

func TestCommission_Floors(t *testing.T) {
	// 15% of 999 is 149.85
	assert.Equal(t, 149.0, settlement.Commission(999))
	// 18% of 149 is 26.82
	assert.Equal(t, 26.0, settlement.GST(149))
}

func TestToMinorUnits_Rounds(t *testing.T) {
	assert.Equal(t, int64(10000000), settlement.ToMinorUnits(100000))
	assert.Equal(t, int64(1999), settlement.ToMinorUnits(19.99))
	assert.Equal(t, int64(1), settlement.ToMinorUnits(0.005))
}

func TestRefundAmount_Tiers(t *testing.T) {
	now := time.Date(2026, 10, 18, 9, 0, 0, 0, time.UTC)
	start := func(days int) time.Time { return now.Add(time.Duration(days) * 24 * time.Hour) }

	tests := []struct {
		name   string
		days   int
		price  float64
		expect int64
	}{
		{"ten days is full refund", 10, 70001, 70001},
		{"exactly seven days is full refund", 7, 5000, 5000},
		{"five days is half refund", 5, 70001, 35000},
		{"three days is half refund", 3, 1000, 500},
		{"one day is nothing", 1, 70001, 0},
		{"start passed is nothing", -2, 70001, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			amount, days := settlement.RefundAmount(tt.price, start(tt.days), now)
			assert.Equal(t, tt.expect, amount)
			assert.Equal(t, tt.days, days)
		})
	}
}

func TestDaysUntil_FloorsPartialDays(t *testing.T) {
	now := time.Date(2026, 10, 18, 18, 0, 0, 0, time.UTC)
	start := time.Date(2026, 10, 25, 0, 0, 0, 0, time.UTC)

	// 6 days and 6 hours
	assert.Equal(t, 6, settlement.DaysUntil(start, now))
	assert.Equal(t, 0.5, settlement.RefundFraction(settlement.DaysUntil(start, now)))
}
