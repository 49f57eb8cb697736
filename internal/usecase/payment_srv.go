package usecase

import (
	"context"
	"encoding/json"
	"errors"
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

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const webhookPaymentCaptured = "payment.captured"

type PaymentService interface {
	// CreateOrder issues a gateway order for an unpaid booking, or returns the
	// order already open for it.
	CreateOrder(ctx context.Context, actor Actor, bookingID string) (*response.PaymentOrderResponse, error)
	// ConfirmPayment settles a checkout callback. Replays of a settled
	// callback return the current state.
	ConfirmPayment(ctx context.Context, actor Actor, req *request.VerifyPaymentRequest) (*response.PaymentConfirmResponse, error)
	// HandleWebhook settles payment.captured events. It reports whether the
	// event was acted on.
	HandleWebhook(ctx context.Context, body []byte, signature string) (bool, error)
	// ExpireOrphanedOrders fails open orders whose booking can no longer be
	// paid.
	ExpireOrphanedOrders(ctx context.Context) (int64, error)
}

type paymentService struct {
	repo      *repository.Repository
	gateway   gateway.Gateway
	verifier  *gateway.SignatureVerifier
	locker    lock.Locker
	lockTTL   time.Duration
	publisher events.Publisher
	clock     utils.Clock
	currency  string
	keyID     string
	log       *zap.Logger
}

func NewPaymentService(repo *repository.Repository, deps Deps, config *utils.Config, log *zap.Logger) PaymentService {
	currency := config.Razorpay.Currency
	if currency == "" {
		currency = "INR"
	}
	return &paymentService{
		repo:      repo,
		gateway:   deps.Gateway,
		verifier:  deps.Verifier,
		locker:    deps.Locker,
		lockTTL:   deps.LockTTL,
		publisher: deps.Publisher,
		clock:     deps.Clock,
		currency:  currency,
		keyID:     config.Razorpay.KeyID,
		log:       log.With(zap.String("service", "payment")),
	}
}

func (s *paymentService) CreateOrder(ctx context.Context, actor Actor, bookingID string) (*response.PaymentOrderResponse, error) {
	booking, err := findBooking(ctx, s.repo, bookingID)
	if err != nil {
		return nil, err
	}
	if err := orderable(booking, actor); err != nil {
		return nil, err
	}

	ctx, release, err := acquireBooking(ctx, s.locker, booking.ID, s.lockTTL, s.log)
	if err != nil {
		return nil, err
	}
	defer release()

	// re-read under the lock; a concurrent confirm may have landed
	booking, err = findBooking(ctx, s.repo, bookingID)
	if err != nil {
		return nil, err
	}
	if err := orderable(booking, actor); err != nil {
		return nil, err
	}

	open, err := s.repo.Payment.FindOpenByBookingID(ctx, booking.ID)
	if err != nil {
		return nil, err
	}
	if open != nil {
		s.log.Info("Returning open payment order",
			zap.String("booking_id", bookingID),
			zap.String("order_id", open.GatewayOrderID),
		)
		resp := response.PaymentOrderToResponse(open, s.keyID)
		return &resp, nil
	}

	now := s.clock.Now()
	amount := settlement.ToMinorUnits(booking.TotalPrice)
	receipt := utils.GenerateReceipt(booking.ID.String(), now)

	order, err := s.gateway.CreateOrder(ctx, amount, s.currency, receipt, map[string]string{
		"booking_id": booking.ID.String(),
		"brand_id":   booking.BrandID.String(),
	})
	if err != nil {
		s.log.Error("Gateway order creation failed", zap.Error(err), zap.String("booking_id", bookingID))
		return nil, err
	}

	payment := &entity.Payment{
		BaseNoDelete:   entity.BaseNoDelete{ID: uuid.New(), CreatedAt: now, UpdatedAt: now},
		BookingID:      booking.ID,
		BrandID:        booking.BrandID,
		Amount:         amount,
		Currency:       s.currency,
		GatewayOrderID: order.ID,
		Status:         entity.PaymentStatusCreated,
		Receipt:        receipt,
	}
	if err := s.repo.Payment.Create(ctx, payment); err != nil {
		if apperror.KindOf(err) == apperror.KindConflict {
			// another instance won without the lock; hand back its order
			if open, ferr := s.repo.Payment.FindOpenByBookingID(ctx, booking.ID); ferr == nil && open != nil {
				resp := response.PaymentOrderToResponse(open, s.keyID)
				return &resp, nil
			}
		}
		s.log.Error("Failed to persist payment order",
			zap.Error(err),
			zap.String("booking_id", bookingID),
			zap.String("order_id", order.ID),
		)
		return nil, err
	}

	s.log.Info("Payment order created",
		zap.String("booking_id", bookingID),
		zap.String("order_id", order.ID),
		zap.Int64("amount", amount),
	)

	resp := response.PaymentOrderToResponse(payment, s.keyID)
	return &resp, nil
}

func (s *paymentService) ConfirmPayment(ctx context.Context, actor Actor, req *request.VerifyPaymentRequest) (*response.PaymentConfirmResponse, error) {
	if errs := utils.ValidateStruct(req); len(errs) > 0 {
		return nil, apperror.Validation("validation failed: %s", utils.FormatValidationErrors(errs))
	}

	if !s.verifier.Verify(req.OrderID, req.PaymentID, req.Signature) {
		s.log.Warn("Payment signature mismatch",
			zap.String("order_id", req.OrderID),
			zap.String("payment_id", req.PaymentID),
		)
		return nil, apperror.SignatureMismatch()
	}

	payment, err := s.repo.Payment.FindByOrderID(ctx, req.OrderID)
	if err != nil {
		return nil, err
	}
	if payment == nil {
		return nil, apperror.NotFound("payment order %s not found", req.OrderID)
	}
	if payment.BookingID.String() != req.BookingID {
		return nil, apperror.Validation("order %s does not belong to booking %s", req.OrderID, req.BookingID)
	}

	booking, err := findBooking(ctx, s.repo, req.BookingID)
	if err != nil {
		return nil, err
	}
	if booking.BrandID != actor.ID && !actor.IsAdmin() {
		return nil, apperror.Authorization("only the brand can confirm this payment")
	}

	res, err := s.settle(ctx, req.OrderID, req.PaymentID, req.Signature)
	if err != nil {
		return nil, err
	}

	resp := response.PaymentConfirmToResponse(res.Payment, res.Booking)
	return &resp, nil
}

func (s *paymentService) HandleWebhook(ctx context.Context, body []byte, signature string) (bool, error) {
	if !s.verifier.VerifyWebhook(body, signature) {
		s.log.Warn("Webhook signature mismatch")
		return false, apperror.SignatureMismatch()
	}

	var event request.WebhookEvent
	if err := json.Unmarshal(body, &event); err != nil {
		return false, apperror.Validation("malformed webhook body")
	}
	if event.Event != webhookPaymentCaptured {
		s.log.Debug("Ignoring webhook event", zap.String("event", event.Event))
		return false, nil
	}

	captured := event.Payload.Payment.Entity
	if captured.OrderID == "" || captured.ID == "" {
		return false, apperror.Validation("webhook payment entity is missing order_id or id")
	}

	if _, err := s.settle(ctx, captured.OrderID, captured.ID, ""); err != nil {
		return false, err
	}
	return true, nil
}

func (s *paymentService) settle(ctx context.Context, orderID, paymentID, signature string) (*repository.SettleResult, error) {
	res, err := s.repo.Payment.Settle(ctx, repository.SettleInput{
		GatewayOrderID:   orderID,
		GatewayPaymentID: paymentID,
		Signature:        signature,
		At:               s.clock.Now(),
	})
	if err != nil {
		s.log.Warn("Payment settlement refused",
			zap.Error(err),
			zap.String("order_id", orderID),
			zap.String("payment_id", paymentID),
		)
		return nil, err
	}

	if !res.Applied {
		s.log.Info("Duplicate payment confirmation ignored", zap.String("order_id", orderID))
		return res, nil
	}

	s.log.Info("Payment settled",
		zap.String("booking_id", res.Booking.ID.String()),
		zap.String("order_id", orderID),
		zap.String("status", string(res.Booking.Status)),
	)
	publish(ctx, s.publisher, s.log, events.New(events.BookingConfirmed, res.Booking.ID, res.Booking.UpdatedAt, map[string]any{
		"payment_id":       res.Payment.ID.String(),
		"gateway_order_id": orderID,
		"amount":           res.Payment.Amount,
	}))
	return res, nil
}

// orderable checks the preconditions of issuing a payment order.
func orderable(booking *entity.Booking, actor Actor) error {
	if booking.BrandID != actor.ID {
		return apperror.Authorization("only the brand can pay for this booking")
	}
	if booking.IsPaid {
		return apperror.Conflict("booking %s is already paid", booking.ID.String())
	}
	if booking.Status.IsTerminal() {
		return apperror.Conflict("booking %s is %s", booking.ID.String(), booking.Status)
	}
	return nil
}

func (s *paymentService) ExpireOrphanedOrders(ctx context.Context) (int64, error) {
	n, err := s.repo.Payment.FailOrphanedOrders(ctx, s.clock.Now())
	if err != nil {
		return 0, err
	}
	if n > 0 {
		s.log.Info("Expired orphaned payment orders", zap.Int64("count", n))
	}
	return n, nil
}

// acquireBooking serializes order and refund calls on one booking across
// instances. The returned context expires lockSlack before the lease does, so
// no gateway call outlives it. An unreachable lock backend degrades to the
// storage constraints.
func acquireBooking(ctx context.Context, locker lock.Locker, bookingID uuid.UUID, ttl time.Duration, log *zap.Logger) (context.Context, func(), error) {
	lease, err := locker.Acquire(ctx, lock.BookingKey(bookingID.String()), ttl)
	if errors.Is(err, lock.ErrNotAcquired) {
		return nil, nil, apperror.Conflict("another payment operation is in progress for this booking")
	}
	if err != nil {
		log.Warn("Booking lock unavailable, continuing without it", zap.Error(err), zap.String("booking_id", bookingID.String()))
		return ctx, func() {}, nil
	}

	budget := ttl
	if budget > lockSlack {
		budget -= lockSlack
	}
	held, cancel := context.WithTimeout(ctx, budget)
	return held, func() {
		cancel()
		if err := lease.Release(context.WithoutCancel(ctx)); err != nil {
			log.Warn("Failed to release booking lock", zap.Error(err), zap.String("booking_id", bookingID.String()))
		}
	}, nil
}
