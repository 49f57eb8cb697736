package utils

import (
	"fmt"
	"strconv"
	"time"

	"golang.org/x/crypto/bcrypt"
)

// ParseInt converts string to int with default value
func ParseInt(value string, defaultValue int) int {
	if value == "" {
		return defaultValue
	}

	result, err := strconv.Atoi(value)
	if err != nil {
		return defaultValue
	}

	if result < 1 {
		return defaultValue
	}

	return result
}

// GenerateReceipt builds the gateway receipt for a booking payment order.
// Format: receipt_{bookingID}_{unix millis}
func GenerateReceipt(bookingID string, now time.Time) string {
	return fmt.Sprintf("receipt_%s_%d", bookingID, now.UnixMilli())
}

// RefundReceipt is stable per payment so a retried refund can be found at the gateway.
func RefundReceipt(paymentID string) string {
	return "refund_" + paymentID
}

func HashPassword(password string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	return string(bytes), err
}

func CheckPasswordHash(password, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

// DateLayout is the wire format for booking dates.
const DateLayout = "2006-01-02"

// ParseDate parses a YYYY-MM-DD date at UTC midnight.
func ParseDate(value string) (time.Time, error) {
	return time.ParseInLocation(DateLayout, value, time.UTC)
}

// TruncateDay drops the time of day, in UTC.
func TruncateDay(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
