package usecase

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"testing"
	"time"

	"adspace-booking/internal/data/entity"
	"adspace-booking/internal/dto/request"
	"adspace-booking/internal/events"
	"adspace-booking/internal/gateway"
	"adspace-booking/pkg/apperror"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestCreateOrder_AmountInMinorUnits(t *testing.T) {
	f := newFixture(t)
	b := f.book(t, f.space, 10, 7)

	f.gw.On("CreateOrder", mock.Anything, int64(700000), "INR", mock.AnythingOfType("string"), mock.Anything).
		Return(&gateway.Order{ID: "order_1", Amount: 700000, Currency: "INR"}, nil).Once()

	order, err := f.svc.Payment.CreateOrder(context.Background(), f.brand, b.ID)
	require.NoError(t, err)
	assert.Equal(t, "order_1", order.OrderID)
	assert.Equal(t, int64(700000), order.Amount)
	assert.Equal(t, entity.PaymentStatusCreated, order.Status)
	assert.Contains(t, order.Receipt, "receipt_"+b.ID)

	// a second request reuses the open order without calling the gateway
	again, err := f.svc.Payment.CreateOrder(context.Background(), f.brand, b.ID)
	require.NoError(t, err)
	assert.Equal(t, order.PaymentID, again.PaymentID)
}

func TestCreateOrder_GatewayFailurePersistsNothing(t *testing.T) {
	f := newFixture(t)
	b := f.book(t, f.space, 10, 7)

	f.gw.On("CreateOrder", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(nil, apperror.PaymentGateway(gateway.ErrTimeout, "create order")).Once()

	_, err := f.svc.Payment.CreateOrder(context.Background(), f.brand, b.ID)
	assert.Equal(t, apperror.KindPaymentGateway, apperror.KindOf(err))
	assert.ErrorIs(t, err, gateway.ErrTimeout)

	open, err := f.repo.Payment.FindOpenByBookingID(context.Background(), uuid.MustParse(b.ID))
	require.NoError(t, err)
	assert.Nil(t, open)
}

func TestCreateOrder_Preconditions(t *testing.T) {
	f := newFixture(t)
	b := f.book(t, f.space, 10, 7)

	_, err := f.svc.Payment.CreateOrder(context.Background(), f.owner, b.ID)
	assert.Equal(t, apperror.KindAuthorization, apperror.KindOf(err))

	f.pay(t, b.ID)
	_, err = f.svc.Payment.CreateOrder(context.Background(), f.brand, b.ID)
	assert.Equal(t, apperror.KindConflict, apperror.KindOf(err), "paid booking gets a deterministic error, not a new order")

	rejected := f.book(t, f.space, 30, 7)
	_, err = f.svc.Booking.RejectBooking(context.Background(), f.owner, rejected.ID, &request.RejectBookingRequest{Reason: "no"})
	require.NoError(t, err)
	_, err = f.svc.Payment.CreateOrder(context.Background(), f.brand, rejected.ID)
	assert.Equal(t, apperror.KindConflict, apperror.KindOf(err))

	_, err = f.svc.Payment.CreateOrder(context.Background(), f.brand, uuid.NewString())
	assert.Equal(t, apperror.KindNotFound, apperror.KindOf(err))
}

func TestConfirmPayment_SettlesAtomically(t *testing.T) {
	f := newFixture(t)
	b := f.book(t, f.space, 10, 7)

	order, confirmed := f.pay(t, b.ID)

	assert.Equal(t, entity.PaymentStatusSuccess, confirmed.Status)
	assert.Equal(t, entity.BookingStatusConfirmed, confirmed.Booking.Status)
	assert.Equal(t, entity.BookingPaymentPaid, confirmed.Booking.PaymentStatus)
	assert.True(t, confirmed.Booking.IsPaid)
	require.NotNil(t, confirmed.Booking.PaymentID)
	assert.Equal(t, order.PaymentID, *confirmed.Booking.PaymentID)

	settled, err := f.repo.Payment.FindSettledByBookingID(context.Background(), uuid.MustParse(b.ID))
	require.NoError(t, err)
	require.NotNil(t, settled)
	assert.Equal(t, entity.PaymentStatusSuccess, settled.Status)
	assert.NotNil(t, settled.CompletedAt)
}

func TestConfirmPayment_ReplayIsNoOp(t *testing.T) {
	f := newFixture(t)
	b := f.book(t, f.space, 10, 7)
	order, first := f.pay(t, b.ID)

	paymentID := "pay_" + b.ID[:8]
	second, err := f.svc.Payment.ConfirmPayment(context.Background(), f.brand, &request.VerifyPaymentRequest{
		BookingID: b.ID,
		OrderID:   order.OrderID,
		PaymentID: paymentID,
		Signature: f.verifier.Sign(order.OrderID, paymentID),
	})
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Equal(t, 1, f.pub.count(events.BookingConfirmed))
}

func TestConfirmPayment_TamperedSignatureMutatesNothing(t *testing.T) {
	f := newFixture(t)
	b := f.book(t, f.space, 10, 7)

	f.gw.On("CreateOrder", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(&gateway.Order{ID: "order_t"}, nil).Once()
	order, err := f.svc.Payment.CreateOrder(context.Background(), f.brand, b.ID)
	require.NoError(t, err)

	sig := []byte(f.verifier.Sign(order.OrderID, "pay_t"))
	if sig[0] == 'a' {
		sig[0] = 'b'
	} else {
		sig[0] = 'a'
	}

	_, err = f.svc.Payment.ConfirmPayment(context.Background(), f.brand, &request.VerifyPaymentRequest{
		BookingID: b.ID,
		OrderID:   order.OrderID,
		PaymentID: "pay_t",
		Signature: string(sig),
	})
	assert.Equal(t, apperror.KindSignatureMismatch, apperror.KindOf(err))

	stored := f.booking(t, b.ID)
	assert.Equal(t, entity.BookingStatusPending, stored.Status)
	assert.False(t, stored.IsPaid)

	open, err := f.repo.Payment.FindOpenByBookingID(context.Background(), stored.ID)
	require.NoError(t, err)
	require.NotNil(t, open)
	assert.Equal(t, entity.PaymentStatusCreated, open.Status)
}

func TestConfirmPayment_OtherBrandRejected(t *testing.T) {
	f := newFixture(t)
	b := f.book(t, f.space, 10, 7)

	f.gw.On("CreateOrder", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(&gateway.Order{ID: "order_o"}, nil).Once()
	order, err := f.svc.Payment.CreateOrder(context.Background(), f.brand, b.ID)
	require.NoError(t, err)

	_, err = f.svc.Payment.ConfirmPayment(context.Background(), Actor{ID: uuid.New(), Role: entity.RoleBrand}, &request.VerifyPaymentRequest{
		BookingID: b.ID,
		OrderID:   order.OrderID,
		PaymentID: "pay_o",
		Signature: f.verifier.Sign(order.OrderID, "pay_o"),
	})
	assert.Equal(t, apperror.KindAuthorization, apperror.KindOf(err))
	assert.False(t, f.booking(t, b.ID).IsPaid)
}

func TestConfirmPayment_AfterUnpaidSweepIsConflict(t *testing.T) {
	f := newFixture(t)
	b := f.book(t, f.space, 10, 7)

	f.gw.On("CreateOrder", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(&gateway.Order{ID: "order_late"}, nil).Once()
	order, err := f.svc.Payment.CreateOrder(context.Background(), f.brand, b.ID)
	require.NoError(t, err)

	f.clock.Advance(25 * time.Hour)
	_, err = f.svc.Reconciliation.CancelUnpaid(context.Background())
	require.NoError(t, err)

	_, err = f.svc.Payment.ConfirmPayment(context.Background(), f.brand, &request.VerifyPaymentRequest{
		BookingID: b.ID,
		OrderID:   order.OrderID,
		PaymentID: "pay_late",
		Signature: f.verifier.Sign(order.OrderID, "pay_late"),
	})
	assert.Equal(t, apperror.KindConflict, apperror.KindOf(err))

	stored := f.booking(t, b.ID)
	assert.Equal(t, entity.BookingStatusCancelled, stored.Status)
	assert.False(t, stored.IsPaid)
}

func webhookSignature(body []byte) string {
	mac := hmac.New(sha256.New, []byte(testWebhookSecret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

func TestHandleWebhook(t *testing.T) {
	f := newFixture(t)
	b := f.book(t, f.space, 10, 7)

	f.gw.On("CreateOrder", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(&gateway.Order{ID: "order_wh"}, nil).Once()
	_, err := f.svc.Payment.CreateOrder(context.Background(), f.brand, b.ID)
	require.NoError(t, err)

	body := []byte(`{"event":"payment.captured","payload":{"payment":{"entity":{"id":"pay_wh","order_id":"order_wh","amount":700000,"status":"captured"}}}}`)

	_, err = f.svc.Payment.HandleWebhook(context.Background(), body, "deadbeef")
	assert.Equal(t, apperror.KindSignatureMismatch, apperror.KindOf(err))
	assert.False(t, f.booking(t, b.ID).IsPaid)

	handled, err := f.svc.Payment.HandleWebhook(context.Background(), body, webhookSignature(body))
	require.NoError(t, err)
	assert.True(t, handled)
	assert.Equal(t, entity.BookingStatusConfirmed, f.booking(t, b.ID).Status)

	// delivered again
	handled, err = f.svc.Payment.HandleWebhook(context.Background(), body, webhookSignature(body))
	require.NoError(t, err)
	assert.True(t, handled)
	assert.Equal(t, 1, f.pub.count(events.BookingConfirmed))

	other := []byte(`{"event":"order.paid","payload":{}}`)
	handled, err = f.svc.Payment.HandleWebhook(context.Background(), other, webhookSignature(other))
	require.NoError(t, err)
	assert.False(t, handled)
}

func TestAcquireBooking_HeldLockIsConflict(t *testing.T) {
	f := newFixture(t)
	b := f.book(t, f.space, 10, 7)

	ps := f.svc.Payment.(*paymentService)
	_, release, err := acquireBooking(context.Background(), ps.locker, uuid.MustParse(b.ID), ps.lockTTL, ps.log)
	require.NoError(t, err)
	defer release()

	_, err = f.svc.Payment.CreateOrder(context.Background(), f.brand, b.ID)
	assert.True(t, errors.Is(err, apperror.ErrConflict))
}
