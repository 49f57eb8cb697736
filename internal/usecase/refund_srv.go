package usecase

import (
	"context"
	"time"

	"adspace-booking/internal/data/entity"
	"adspace-booking/internal/data/repository"
	"adspace-booking/internal/dto/request"
	"adspace-booking/internal/dto/response"
	"adspace-booking/internal/events"
	"adspace-booking/internal/gateway"
	"adspace-booking/internal/lock"
	"adspace-booking/internal/settlement"
	"adspace-booking/pkg/apperror"
	"adspace-booking/pkg/utils"

	"go.uber.org/zap"
)

type RefundService interface {
	// RequestRefund refunds a paid booking before its start date. The amount
	// follows the day tiers in settlement. A refund the gateway already holds
	// for the booking is recorded instead of issuing a new one.
	RequestRefund(ctx context.Context, actor Actor, bookingID string, req *request.RefundRequest) (*response.RefundResponse, error)
}

type refundService struct {
	repo      *repository.Repository
	gateway   gateway.Gateway
	locker    lock.Locker
	lockTTL   time.Duration
	publisher events.Publisher
	clock     utils.Clock
	retry     retryPolicy
	log       *zap.Logger
}

func NewRefundService(repo *repository.Repository, deps Deps, log *zap.Logger) RefundService {
	return &refundService{
		repo:      repo,
		gateway:   deps.Gateway,
		locker:    deps.Locker,
		lockTTL:   deps.LockTTL,
		publisher: deps.Publisher,
		clock:     deps.Clock,
		retry:     defaultRetryPolicy,
		log:       log.With(zap.String("service", "refund")),
	}
}

// CheckRefundEligibility returns a RefundIneligible error naming the first
// failed condition, or nil.
func CheckRefundEligibility(b *entity.Booking, now time.Time) error {
	switch {
	case !b.IsPaid:
		return apperror.RefundIneligible("booking is not paid")
	case b.PaymentStatus == entity.BookingPaymentRefunded:
		return apperror.RefundIneligible("booking is already refunded")
	case b.Status == entity.BookingStatusCompleted || b.Status == entity.BookingStatusCancelled:
		return apperror.RefundIneligible("booking is " + string(b.Status))
	case !b.StartDate.After(now):
		return apperror.RefundIneligible("booking has already started")
	}
	return nil
}

func (s *refundService) RequestRefund(ctx context.Context, actor Actor, bookingID string, req *request.RefundRequest) (*response.RefundResponse, error) {
	if errs := utils.ValidateStruct(req); len(errs) > 0 {
		return nil, apperror.Validation("validation failed: %s", utils.FormatValidationErrors(errs))
	}

	booking, err := findBooking(ctx, s.repo, bookingID)
	if err != nil {
		return nil, err
	}
	if booking.BrandID != actor.ID {
		return nil, apperror.Authorization("only the brand can request a refund")
	}

	ctx, release, err := acquireBooking(ctx, s.locker, booking.ID, s.lockTTL, s.log)
	if err != nil {
		return nil, err
	}
	defer release()

	// re-read under the lock so eligibility sees any sweep or refund that
	// committed in between
	booking, err = findBooking(ctx, s.repo, bookingID)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	amount, days := settlement.RefundAmount(booking.TotalPrice, booking.StartDate, now)

	// A refund the gateway already holds for this payment is recorded whatever
	// the booking's tier or status is now.
	var payment *entity.Payment
	if booking.IsPaid && booking.PaymentStatus == entity.BookingPaymentPaid {
		payment, err = s.settledPayment(ctx, booking)
		if err != nil {
			return nil, err
		}
		existing, err := s.findIssuedRefund(ctx, payment)
		if err != nil {
			return nil, err
		}
		if existing != nil {
			s.log.Info("Reconciling refund already issued at gateway",
				zap.String("booking_id", bookingID),
				zap.String("refund_id", existing.ID),
			)
			return s.recordRefund(ctx, payment, existing, req.Reason, days)
		}
	}

	if err := CheckRefundEligibility(booking, now); err != nil {
		s.log.Info("Refund refused", zap.String("booking_id", bookingID), zap.Error(err))
		return nil, err
	}
	if amount <= 0 {
		s.log.Info("No refund available", zap.String("booking_id", bookingID), zap.Int("days_until_start", days))
		return nil, apperror.NoRefundAvailable(days)
	}
	if payment == nil {
		if payment, err = s.settledPayment(ctx, booking); err != nil {
			return nil, err
		}
	}

	refund, err := s.issueRefund(ctx, payment, amount*100, req.Reason)
	if err != nil {
		return nil, err
	}
	return s.recordRefund(ctx, payment, refund, req.Reason, days)
}

func (s *refundService) settledPayment(ctx context.Context, booking *entity.Booking) (*entity.Payment, error) {
	payment, err := s.repo.Payment.FindSettledByBookingID(ctx, booking.ID)
	if err != nil {
		return nil, err
	}
	if payment == nil || payment.GatewayPaymentID == nil {
		s.log.Error("Paid booking has no settled payment", zap.String("booking_id", booking.ID.String()))
		return nil, apperror.Conflict("no settled payment found for booking %s", booking.ID.String())
	}
	if payment.Status == entity.PaymentStatusRefunded {
		return nil, apperror.RefundIneligible("payment is already refunded")
	}
	return payment, nil
}

// findIssuedRefund asks the gateway for a refund already recorded under the
// payment's receipt. It returns nil, nil when there is none.
func (s *refundService) findIssuedRefund(ctx context.Context, payment *entity.Payment) (*gateway.Refund, error) {
	receipt := utils.RefundReceipt(payment.ID.String())
	existing, err := retryWithData(ctx, s.retry, isGatewayFailure, func() (*gateway.Refund, error) {
		return s.gateway.FindRefundByReceipt(ctx, *payment.GatewayPaymentID, receipt)
	})
	if err != nil {
		s.log.Error("Refund lookup failed", zap.Error(err), zap.String("payment_id", payment.ID.String()))
		return nil, err
	}
	return existing, nil
}

func (s *refundService) issueRefund(ctx context.Context, payment *entity.Payment, amountMinor int64, reason string) (*gateway.Refund, error) {
	notes := map[string]string{"booking_id": payment.BookingID.String()}
	if reason != "" {
		notes["reason"] = reason
	}
	refund, err := s.gateway.Refund(ctx, *payment.GatewayPaymentID, amountMinor, utils.RefundReceipt(payment.ID.String()), notes)
	if err != nil {
		s.log.Error("Gateway refund failed", zap.Error(err), zap.String("payment_id", payment.ID.String()))
		return nil, err
	}
	return refund, nil
}

// recordRefund applies a gateway refund locally, retrying storage failures
// against the same refund id until it lands or the policy gives up.
func (s *refundService) recordRefund(ctx context.Context, payment *entity.Payment, refund *gateway.Refund, reason string, days int) (*response.RefundResponse, error) {
	res, err := retryWithData(ctx, s.retry, isTransient, func() (*repository.SettleResult, error) {
		return s.repo.Payment.MarkRefunded(ctx, repository.RefundInput{
			PaymentID: payment.ID,
			RefundID:  refund.ID,
			Amount:    refund.Amount,
			Reason:    reason,
			At:        s.clock.Now(),
		})
	})
	if err != nil {
		// the gateway holds the refund; a retry finds it by receipt
		s.log.Error("Refund issued but local update failed",
			zap.Error(err),
			zap.String("booking_id", payment.BookingID.String()),
			zap.String("refund_id", refund.ID),
		)
		return nil, err
	}

	s.log.Info("Booking refunded",
		zap.String("booking_id", payment.BookingID.String()),
		zap.String("refund_id", refund.ID),
		zap.Int64("amount_minor", refund.Amount),
		zap.Int("days_until_start", days),
	)

	if res.Applied {
		evs := []events.Event{events.New(events.PaymentRefunded, res.Booking.ID, res.Payment.UpdatedAt, map[string]any{
			"payment_id": res.Payment.ID.String(),
			"refund_id":  refund.ID,
			"amount":     refund.Amount,
		})}
		if res.Booking.Status == entity.BookingStatusCancelled {
			evs = append(evs, events.New(events.BookingCancelled, res.Booking.ID, res.Booking.UpdatedAt, map[string]any{
				"cause": "refund",
			}))
		}
		publish(ctx, s.publisher, s.log, evs...)
	}

	return &response.RefundResponse{
		RefundID:       refund.ID,
		Amount:         float64(refund.Amount) / 100,
		AmountMinor:    refund.Amount,
		DaysUntilStart: days,
		Booking:        response.BookingToResponse(res.Booking),
	}, nil
}
