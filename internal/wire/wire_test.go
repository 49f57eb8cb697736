package wire

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"adspace-booking/internal/data/repository/memstore"
	"adspace-booking/internal/gateway"
	"adspace-booking/internal/lock"
	"adspace-booking/internal/usecase"
	"adspace-booking/pkg/middleware"
	"adspace-booking/pkg/utils"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var testNow = time.Date(2026, 10, 18, 9, 0, 0, 0, time.UTC)

type envelope struct {
	Status  bool            `json:"status"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
	Errors  json.RawMessage `json:"errors"`
}

type testServer struct {
	t        *testing.T
	router   http.Handler
	verifier *gateway.SignatureVerifier
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	clock := &utils.FixedClock{T: testNow}
	config := &utils.Config{}
	config.Razorpay.Currency = "INR"
	config.Session.ExpiryHours = 24
	config.Cron.Secret = "cron-secret"

	verifier := gateway.NewSignatureVerifier("key_secret", "webhook_secret")
	app := Wiring(memstore.New(clock).Repository(), usecase.Deps{
		Gateway:  gateway.NewSandbox(),
		Verifier: verifier,
		Locker:   lock.NewMemoryLocker(),
		Clock:    clock,
	}, config, zap.NewNop())

	return &testServer{t: t, router: app.Router, verifier: verifier}
}

func (s *testServer) do(method, path, token string, body any, header ...string) (int, envelope) {
	s.t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(s.t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	for i := 0; i+1 < len(header); i += 2 {
		req.Header.Set(header[i], header[i+1])
	}

	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)

	var env envelope
	if rec.Header().Get("Content-Type") == "application/json" {
		require.NoError(s.t, json.Unmarshal(rec.Body.Bytes(), &env))
	}
	return rec.Code, env
}

func decode[T any](t *testing.T, raw json.RawMessage) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(raw, &v))
	return v
}

func (s *testServer) signup(username, role string) string {
	s.t.Helper()
	code, _ := s.do(http.MethodPost, "/api/register", "", map[string]string{
		"username": username,
		"email":    username + "@example.com",
		"password": "secret123",
		"role":     role,
	})
	require.Equal(s.t, http.StatusCreated, code)

	code, env := s.do(http.MethodPost, "/api/login", "", map[string]string{
		"username": username,
		"password": "secret123",
	})
	require.Equal(s.t, http.StatusOK, code)
	return decode[struct {
		Token string `json:"token"`
	}](s.t, env.Data).Token
}

func day(offset int) string {
	return utils.TruncateDay(testNow).AddDate(0, 0, offset).Format(utils.DateLayout)
}

func TestBookingLifecycleOverHTTP(t *testing.T) {
	s := newTestServer(t)
	brand := s.signup("acme", "brand")
	owner := s.signup("metro", "venue_owner")

	code, env := s.do(http.MethodPost, "/api/spaces", owner, map[string]any{
		"name": "Metro concourse screen", "city": "Pune", "price_per_day": 1000,
	})
	require.Equal(t, http.StatusCreated, code)
	spaceID := decode[struct {
		ID string `json:"id"`
	}](t, env.Data).ID

	code, _ = s.do(http.MethodPost, "/api/spaces", brand, map[string]any{
		"name": "Not mine", "city": "Pune", "price_per_day": 10,
	})
	assert.Equal(t, http.StatusForbidden, code)

	code, env = s.do(http.MethodPost, "/api/bookings", brand, map[string]any{
		"space_id": spaceID, "start_date": day(10), "end_date": day(17),
	})
	require.Equal(t, http.StatusCreated, code)
	booking := decode[struct {
		ID         string  `json:"id"`
		TotalPrice float64 `json:"total_price"`
		Status     string  `json:"status"`
	}](t, env.Data)
	assert.Equal(t, 7000.0, booking.TotalPrice)
	assert.Equal(t, "pending", booking.Status)

	code, env = s.do(http.MethodPost, "/api/bookings", brand, map[string]any{
		"space_id": spaceID, "start_date": day(12), "end_date": day(20),
	})
	assert.Equal(t, http.StatusConflict, code)
	assert.JSONEq(t, `{"kind":"conflict"}`, string(env.Errors))

	code, env = s.do(http.MethodPost, "/api/bookings/"+booking.ID+"/payment-order", brand, nil)
	require.Equal(t, http.StatusCreated, code)
	order := decode[struct {
		OrderID string `json:"order_id"`
		Amount  int64  `json:"amount"`
	}](t, env.Data)
	assert.Equal(t, int64(700000), order.Amount)

	verify := map[string]string{
		"booking_id":          booking.ID,
		"razorpay_order_id":   order.OrderID,
		"razorpay_payment_id": "pay_http",
		"razorpay_signature":  s.verifier.Sign(order.OrderID, "pay_other"),
	}
	code, env = s.do(http.MethodPost, "/api/payments/verify", brand, verify)
	assert.Equal(t, http.StatusUnprocessableEntity, code)
	assert.JSONEq(t, `{"kind":"signature_mismatch"}`, string(env.Errors))

	verify["razorpay_signature"] = s.verifier.Sign(order.OrderID, "pay_http")
	code, env = s.do(http.MethodPost, "/api/payments/verify", brand, verify)
	require.Equal(t, http.StatusOK, code)
	confirmed := decode[struct {
		Booking struct {
			Status string `json:"status"`
			IsPaid bool   `json:"is_paid"`
		} `json:"booking"`
	}](t, env.Data)
	assert.Equal(t, "confirmed", confirmed.Booking.Status)
	assert.True(t, confirmed.Booking.IsPaid)

	code, env = s.do(http.MethodGet, "/api/bookings/"+booking.ID+"/settlement", owner, nil)
	require.Equal(t, http.StatusOK, code)
	assert.JSONEq(t, `{"booking_id":"`+booking.ID+`","total_price":7000,"commission":1050,"gst":189,"venue_owner_receives":5950,"platform_earns":1239}`, string(env.Data))

	code, _ = s.do(http.MethodPut, "/api/bookings/"+booking.ID+"/reject", owner, map[string]string{"reason": "late"})
	assert.Equal(t, http.StatusConflict, code)

	code, env = s.do(http.MethodPost, "/api/bookings/"+booking.ID+"/refund", brand, map[string]string{"reason": "campaign moved"})
	require.Equal(t, http.StatusOK, code)
	refund := decode[struct {
		Amount         float64 `json:"amount"`
		DaysUntilStart int     `json:"days_until_start"`
	}](t, env.Data)
	assert.Equal(t, 7000.0, refund.Amount)
	assert.Equal(t, 9, refund.DaysUntilStart)

	code, env = s.do(http.MethodPost, "/api/bookings/"+booking.ID+"/refund", brand, nil)
	assert.Equal(t, http.StatusUnprocessableEntity, code)
	assert.JSONEq(t, `{"kind":"refund_ineligible"}`, string(env.Errors))
}

func TestAuthOverHTTP(t *testing.T) {
	s := newTestServer(t)

	code, _ := s.do(http.MethodGet, "/api/bookings", "", nil)
	assert.Equal(t, http.StatusUnauthorized, code)

	token := s.signup("acme", "brand")

	code, _ = s.do(http.MethodPost, "/api/login", "", map[string]string{"username": "acme", "password": "wrong-pass"})
	assert.Equal(t, http.StatusUnauthorized, code)

	code, env := s.do(http.MethodGet, "/api/bookings", token, nil)
	require.Equal(t, http.StatusOK, code)
	assert.Contains(t, string(env.Data), `"total":0`)

	code, _ = s.do(http.MethodPost, "/api/logout", token, nil)
	assert.Equal(t, http.StatusOK, code)

	code, _ = s.do(http.MethodGet, "/api/bookings", token, nil)
	assert.Equal(t, http.StatusUnauthorized, code)
}

func TestCronAndHealth(t *testing.T) {
	s := newTestServer(t)

	code, _ := s.do(http.MethodPost, "/api/cron/sweep", "", nil)
	assert.Equal(t, http.StatusUnauthorized, code)

	code, env := s.do(http.MethodPost, "/api/cron/sweep", "", nil, middleware.CronSecretHeader, "cron-secret")
	require.Equal(t, http.StatusOK, code)
	assert.JSONEq(t, `{"cancelled":[],"activated":[],"completed":[]}`, string(env.Data))

	code, _ = s.do(http.MethodPost, "/api/cron/cancel-unpaid", "", nil, middleware.CronSecretHeader, "cron-secret")
	assert.Equal(t, http.StatusOK, code)

	code, _ = s.do(http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, code)

	code, env = s.do(http.MethodGet, "/api/unknown", "", nil)
	assert.Equal(t, http.StatusNotFound, code)
	assert.False(t, env.Status)
}

func TestWebhookRejectsBadSignature(t *testing.T) {
	s := newTestServer(t)
	code, env := s.do(http.MethodPost, "/api/payments/webhook", "", map[string]string{"event": "payment.captured"},
		"X-Razorpay-Signature", "00")
	assert.Equal(t, http.StatusUnprocessableEntity, code)
	assert.JSONEq(t, `{"kind":"signature_mismatch"}`, string(env.Errors))
}
