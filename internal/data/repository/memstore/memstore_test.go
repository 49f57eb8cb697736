package memstore

import (
	"context"
	"sync"
	"testing"
	"time"

	"adspace-booking/internal/data/entity"
	"adspace-booking/internal/data/repository"
	"adspace-booking/pkg/apperror"
	"adspace-booking/pkg/utils"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var now = time.Date(2026, 10, 18, 9, 0, 0, 0, time.UTC)

func day(offset int) time.Time {
	return utils.TruncateDay(now).AddDate(0, 0, offset)
}

func newBooking(spaceID uuid.UUID, start, end time.Time) *entity.Booking {
	return &entity.Booking{
		BaseNoDelete:  entity.BaseNoDelete{ID: uuid.New(), CreatedAt: now, UpdatedAt: now},
		SpaceID:       spaceID,
		BrandID:       uuid.New(),
		VenueOwnerID:  uuid.New(),
		StartDate:     start,
		EndDate:       end,
		TotalPrice:    7000,
		Status:        entity.BookingStatusPending,
		PaymentStatus: entity.BookingPaymentPending,
	}
}

func TestCreateIfAvailable_ConcurrentOverlapSingleWinner(t *testing.T) {
	repo := New(&utils.FixedClock{T: now}).Repository()
	spaceID := uuid.New()

	const n = 20
	var wg sync.WaitGroup
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			b := newBooking(spaceID, day(10+i%3), day(20+i%3))
			errs[i] = repo.Booking.CreateIfAvailable(context.Background(), b, entity.HoldingStatuses)
		}(i)
	}
	wg.Wait()

	ok := 0
	for _, err := range errs {
		if err == nil {
			ok++
			continue
		}
		assert.Equal(t, apperror.KindConflict, apperror.KindOf(err))
	}
	assert.Equal(t, 1, ok)
}

func TestCreateIfAvailable_AdjacentRangesDoNotConflict(t *testing.T) {
	repo := New(&utils.FixedClock{T: now}).Repository()
	spaceID := uuid.New()
	ctx := context.Background()

	require.NoError(t, repo.Booking.CreateIfAvailable(ctx, newBooking(spaceID, day(10), day(20)), entity.HoldingStatuses))
	require.NoError(t, repo.Booking.CreateIfAvailable(ctx, newBooking(spaceID, day(20), day(30)), entity.HoldingStatuses))

	busy, err := repo.Booking.HasOverlap(ctx, spaceID, day(19), day(21), entity.HoldingStatuses, nil)
	require.NoError(t, err)
	assert.True(t, busy)
}

func TestTransitionStatus_GuardedOnCurrentStatus(t *testing.T) {
	repo := New(&utils.FixedClock{T: now}).Repository()
	ctx := context.Background()
	b := newBooking(uuid.New(), day(10), day(20))
	require.NoError(t, repo.Booking.CreateIfAvailable(ctx, b, entity.HoldingStatuses))

	got, err := repo.Booking.TransitionStatus(ctx, repository.Transition{
		BookingID: b.ID, From: entity.BookingStatusConfirmed, To: entity.BookingStatusActive, At: now,
	})
	require.NoError(t, err)
	assert.Nil(t, got)

	stored, err := repo.Booking.FindByID(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, entity.BookingStatusPending, stored.Status)
}

func TestSweeps_Idempotent(t *testing.T) {
	clock := &utils.FixedClock{T: now}
	store := New(clock)
	repo := store.Repository()
	ctx := context.Background()

	stale := newBooking(uuid.New(), day(10), day(20))
	stale.CreatedAt = now.Add(-25 * time.Hour)
	require.NoError(t, repo.Booking.CreateIfAvailable(ctx, stale, entity.HoldingStatuses))
	require.NoError(t, repo.Payment.Create(ctx, &entity.Payment{
		BaseNoDelete:   entity.BaseNoDelete{ID: uuid.New(), CreatedAt: now},
		BookingID:      stale.ID,
		GatewayOrderID: "order_stale",
		Receipt:        "receipt_stale",
		Status:         entity.PaymentStatusCreated,
	}))

	starting := newBooking(uuid.New(), day(0), day(10))
	starting.Status = entity.BookingStatusConfirmed
	require.NoError(t, repo.Booking.CreateIfAvailable(ctx, starting, entity.HoldingStatuses))

	ids, err := repo.Booking.CancelStaleUnpaid(ctx, now.Add(-24*time.Hour), now)
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{stale.ID}, ids)

	ids, err = repo.Booking.CancelStaleUnpaid(ctx, now.Add(-24*time.Hour), now)
	require.NoError(t, err)
	assert.Empty(t, ids)

	open, err := repo.Payment.FindOpenByBookingID(ctx, stale.ID)
	require.NoError(t, err)
	assert.NotNil(t, open, "the booking sweep leaves payments alone")

	n, err := repo.Payment.FailOrphanedOrders(ctx, now)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	n, err = repo.Payment.FailOrphanedOrders(ctx, now)
	require.NoError(t, err)
	assert.Zero(t, n)

	open, err = repo.Payment.FindOpenByBookingID(ctx, stale.ID)
	require.NoError(t, err)
	assert.Nil(t, open, "open orders of swept bookings are failed")

	ids, err = repo.Booking.ActivateStarted(ctx, now)
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{starting.ID}, ids)

	ids, err = repo.Booking.ActivateStarted(ctx, now)
	require.NoError(t, err)
	assert.Empty(t, ids)

	ids, err = repo.Booking.CompleteEnded(ctx, now.AddDate(0, 0, 10))
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{starting.ID}, ids)
}

func TestSettleAndRefund_Idempotent(t *testing.T) {
	repo := New(&utils.FixedClock{T: now}).Repository()
	ctx := context.Background()

	b := newBooking(uuid.New(), day(10), day(20))
	require.NoError(t, repo.Booking.CreateIfAvailable(ctx, b, entity.HoldingStatuses))
	p := &entity.Payment{
		BaseNoDelete:   entity.BaseNoDelete{ID: uuid.New(), CreatedAt: now},
		BookingID:      b.ID,
		BrandID:        b.BrandID,
		Amount:         700000,
		GatewayOrderID: "order_1",
		Receipt:        "receipt_1",
		Status:         entity.PaymentStatusCreated,
	}
	require.NoError(t, repo.Payment.Create(ctx, p))

	in := repository.SettleInput{GatewayOrderID: "order_1", GatewayPaymentID: "pay_1", Signature: "sig", At: now}
	first, err := repo.Payment.Settle(ctx, in)
	require.NoError(t, err)
	assert.True(t, first.Applied)
	assert.Equal(t, entity.BookingStatusConfirmed, first.Booking.Status)
	assert.True(t, first.Booking.IsPaid)

	second, err := repo.Payment.Settle(ctx, in)
	require.NoError(t, err)
	assert.False(t, second.Applied)
	assert.Equal(t, first.Booking, second.Booking)
	assert.Equal(t, first.Payment, second.Payment)

	_, err = repo.Payment.Settle(ctx, repository.SettleInput{GatewayOrderID: "order_1", GatewayPaymentID: "pay_2", At: now})
	assert.Equal(t, apperror.KindConflict, apperror.KindOf(err))

	refund := repository.RefundInput{PaymentID: p.ID, RefundID: "rfnd_1", Amount: 700000, Reason: "changed plans", At: now}
	res, err := repo.Payment.MarkRefunded(ctx, refund)
	require.NoError(t, err)
	assert.True(t, res.Applied)
	assert.Equal(t, entity.BookingStatusCancelled, res.Booking.Status)
	assert.Equal(t, entity.BookingPaymentRefunded, res.Booking.PaymentStatus)

	res, err = repo.Payment.MarkRefunded(ctx, refund)
	require.NoError(t, err)
	assert.False(t, res.Applied)

	refund.RefundID = "rfnd_2"
	_, err = repo.Payment.MarkRefunded(ctx, refund)
	assert.Equal(t, apperror.KindConflict, apperror.KindOf(err))
}

func TestSessions_ExpiredAndRevoked(t *testing.T) {
	clock := &utils.FixedClock{T: now}
	repo := New(clock).Repository()
	ctx := context.Background()

	user := &entity.User{Base: entity.Base{ID: uuid.New()}, Username: "brand", Email: "b@x.io", Role: entity.RoleBrand, IsActive: true}
	require.NoError(t, repo.User.Create(ctx, user))
	token := uuid.New()
	require.NoError(t, repo.Session.Create(ctx, &entity.Session{
		BaseSimple: entity.BaseSimple{ID: uuid.New(), CreatedAt: now},
		UserID:     user.ID,
		Token:      token,
		ExpiresAt:  now.Add(time.Hour),
	}))

	sess, err := repo.Session.FindValidSession(ctx, token)
	require.NoError(t, err)
	require.NotNil(t, sess)
	assert.Equal(t, entity.RoleBrand, sess.Role)

	clock.Advance(2 * time.Hour)
	sess, err = repo.Session.FindValidSession(ctx, token)
	require.NoError(t, err)
	assert.Nil(t, sess)

	require.NoError(t, repo.Session.Revoke(ctx, token))
	assert.ErrorIs(t, repo.Session.Revoke(ctx, token), repository.ErrSessionNotFound)
}
