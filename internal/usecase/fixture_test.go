package usecase

import (
	"context"
	"sync"
	"testing"
	"time"

	"adspace-booking/internal/data/entity"
	"adspace-booking/internal/data/repository"
	"adspace-booking/internal/data/repository/memstore"
	"adspace-booking/internal/dto/request"
	"adspace-booking/internal/dto/response"
	"adspace-booking/internal/events"
	"adspace-booking/internal/gateway"
	"adspace-booking/internal/lock"
	"adspace-booking/pkg/utils"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const (
	testKeySecret     = "key_secret"
	testWebhookSecret = "webhook_secret"
)

var testNow = time.Date(2026, 10, 18, 9, 0, 0, 0, time.UTC)

type mockGateway struct {
	mock.Mock
}

func (m *mockGateway) CreateOrder(ctx context.Context, amount int64, currency, receipt string, notes map[string]string) (*gateway.Order, error) {
	args := m.Called(ctx, amount, currency, receipt, notes)
	if o := args.Get(0); o != nil {
		return o.(*gateway.Order), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockGateway) Refund(ctx context.Context, gatewayPaymentID string, amount int64, receipt string, notes map[string]string) (*gateway.Refund, error) {
	args := m.Called(ctx, gatewayPaymentID, amount, receipt, notes)
	if r := args.Get(0); r != nil {
		return r.(*gateway.Refund), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockGateway) FindRefundByReceipt(ctx context.Context, gatewayPaymentID, receipt string) (*gateway.Refund, error) {
	args := m.Called(ctx, gatewayPaymentID, receipt)
	if r := args.Get(0); r != nil {
		return r.(*gateway.Refund), args.Error(1)
	}
	return nil, args.Error(1)
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []events.Event
}

func (p *recordingPublisher) Publish(_ context.Context, evs ...events.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, evs...)
	return nil
}

func (p *recordingPublisher) Close() error { return nil }

func (p *recordingPublisher) count(t events.Type) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := 0
	for _, e := range p.events {
		if e.Type == t {
			n++
		}
	}
	return n
}

type fixture struct {
	repo     *repository.Repository
	clock    *utils.FixedClock
	gw       *mockGateway
	pub      *recordingPublisher
	verifier *gateway.SignatureVerifier
	svc      *Service
	brand    Actor
	owner    Actor
	space    *entity.Space
}

// newFixture wires the services over memstore with one venue owner listing a
// space at 1000 per day.
func newFixture(t *testing.T) *fixture {
	t.Helper()

	clock := &utils.FixedClock{T: testNow}
	repo := memstore.New(clock).Repository()
	f := &fixture{
		repo:     repo,
		clock:    clock,
		gw:       &mockGateway{},
		pub:      &recordingPublisher{},
		verifier: gateway.NewSignatureVerifier(testKeySecret, testWebhookSecret),
		brand:    Actor{ID: uuid.New(), Role: entity.RoleBrand},
		owner:    Actor{ID: uuid.New(), Role: entity.RoleVenueOwner},
	}

	config := &utils.Config{}
	config.Razorpay.Currency = "INR"
	config.Razorpay.KeyID = "rzp_test_key"
	config.Session.ExpiryHours = 24
	config.Scheduler.UnpaidTTL = 24 * time.Hour

	f.svc = NewService(repo, Deps{
		Gateway:   f.gw,
		Verifier:  f.verifier,
		Locker:    lock.NewMemoryLocker(),
		Publisher: f.pub,
		Clock:     clock,
	}, config, zap.NewNop())
	f.svc.Refund.(*refundService).retry = func() backoff.BackOff {
		return backoff.WithMaxRetries(&backoff.ZeroBackOff{}, maxRetries)
	}

	f.space = f.addSpace(t, 1000)
	t.Cleanup(func() { f.gw.AssertExpectations(t) })
	return f
}

func (f *fixture) addSpace(t *testing.T, pricePerDay float64) *entity.Space {
	t.Helper()
	space := &entity.Space{
		Base:        entity.Base{ID: uuid.New(), CreatedAt: testNow, UpdatedAt: testNow},
		OwnerID:     f.owner.ID,
		Name:        "Station concourse screen",
		City:        "Bengaluru",
		PricePerDay: pricePerDay,
		IsActive:    true,
	}
	require.NoError(t, f.repo.Space.Create(context.Background(), space))
	return space
}

func day(offset int) string {
	return utils.TruncateDay(testNow).AddDate(0, 0, offset).Format(utils.DateLayout)
}

// book creates a booking starting offset days from today lasting days days.
func (f *fixture) book(t *testing.T, space *entity.Space, offset, days int) *response.BookingResponse {
	t.Helper()
	resp, err := f.svc.Booking.CreateBooking(context.Background(), f.brand, &request.CreateBookingRequest{
		SpaceID:   space.ID.String(),
		StartDate: day(offset),
		EndDate:   day(offset + days),
	})
	require.NoError(t, err)
	return resp
}

// pay issues an order through the mock gateway and confirms it with a valid
// signature.
func (f *fixture) pay(t *testing.T, bookingID string) (*response.PaymentOrderResponse, *response.PaymentConfirmResponse) {
	t.Helper()
	orderID := "order_" + bookingID[:8]
	f.gw.On("CreateOrder", mock.Anything, mock.AnythingOfType("int64"), "INR", mock.AnythingOfType("string"), mock.Anything).
		Return(&gateway.Order{ID: orderID, Currency: "INR"}, nil).Once()

	order, err := f.svc.Payment.CreateOrder(context.Background(), f.brand, bookingID)
	require.NoError(t, err)

	paymentID := "pay_" + bookingID[:8]
	confirmed, err := f.svc.Payment.ConfirmPayment(context.Background(), f.brand, &request.VerifyPaymentRequest{
		BookingID: bookingID,
		OrderID:   order.OrderID,
		PaymentID: paymentID,
		Signature: f.verifier.Sign(order.OrderID, paymentID),
	})
	require.NoError(t, err)
	return order, confirmed
}

func (f *fixture) booking(t *testing.T, id string) *entity.Booking {
	t.Helper()
	b, err := f.repo.Booking.FindByID(context.Background(), uuid.MustParse(id))
	require.NoError(t, err)
	require.NotNil(t, b)
	return b
}
