package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"adspace-booking/internal/data/entity"
	"adspace-booking/pkg/apperror"
	"adspace-booking/pkg/database"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"
)

type PaymentRepository interface {
	// Create stores a new gateway order. A second open order for the same
	// booking fails with a conflict.
	Create(ctx context.Context, payment *entity.Payment) error
	FindByID(ctx context.Context, id uuid.UUID) (*entity.Payment, error)
	FindByOrderID(ctx context.Context, gatewayOrderID string) (*entity.Payment, error)
	FindOpenByBookingID(ctx context.Context, bookingID uuid.UUID) (*entity.Payment, error)
	// FindSettledByBookingID returns the success or refunded payment of a booking.
	FindSettledByBookingID(ctx context.Context, bookingID uuid.UUID) (*entity.Payment, error)

	// Settle marks the order paid and the booking paid/confirmed in one transaction.
	Settle(ctx context.Context, in SettleInput) (*SettleResult, error)
	// MarkRefunded records a gateway refund on the payment and cancels the booking
	// in one transaction.
	MarkRefunded(ctx context.Context, in RefundInput) (*SettleResult, error)
	// FailOrphanedOrders fails the open orders of unpaid bookings that were
	// cancelled or rejected, and returns how many it touched.
	FailOrphanedOrders(ctx context.Context, at time.Time) (int64, error)
}

type SettleInput struct {
	GatewayOrderID   string
	GatewayPaymentID string
	Signature        string
	At               time.Time
}

type RefundInput struct {
	PaymentID uuid.UUID
	RefundID  string
	Amount    int64 // minor units
	Reason    string
	At        time.Time
}

// SettleResult carries the state after the call. Applied is false when the
// call found the change already in place.
type SettleResult struct {
	Booking *entity.Booking
	Payment *entity.Payment
	Applied bool
}

type paymentRepository struct {
	db  database.PgxIface
	log *zap.Logger
}

func NewPaymentRepository(db database.PgxIface, log *zap.Logger) PaymentRepository {
	return &paymentRepository{
		db:  db,
		log: log.With(zap.String("repository", "payment")),
	}
}

const paymentColumns = `id, booking_id, brand_id, amount, currency, gateway_order_id, gateway_payment_id,
	signature, status, receipt, completed_at, refund_id, refund_amount, refund_reason, refunded_at,
	created_at, updated_at`

func scanPayment(row pgx.Row) (*entity.Payment, error) {
	var p entity.Payment
	err := row.Scan(
		&p.ID,
		&p.BookingID,
		&p.BrandID,
		&p.Amount,
		&p.Currency,
		&p.GatewayOrderID,
		&p.GatewayPaymentID,
		&p.Signature,
		&p.Status,
		&p.Receipt,
		&p.CompletedAt,
		&p.RefundID,
		&p.RefundAmount,
		&p.RefundReason,
		&p.RefundedAt,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *paymentRepository) Create(ctx context.Context, payment *entity.Payment) error {
	query := `
		INSERT INTO payments (id, booking_id, brand_id, amount, currency, gateway_order_id,
		                      status, receipt, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`

	_, err := r.db.Exec(ctx, query,
		payment.ID,
		payment.BookingID,
		payment.BrandID,
		payment.Amount,
		payment.Currency,
		payment.GatewayOrderID,
		payment.Status,
		payment.Receipt,
		payment.CreatedAt,
		payment.UpdatedAt,
	)

	if constraint := database.UniqueViolation(err); constraint != "" {
		r.log.Warn("Duplicate payment order",
			zap.String("constraint", constraint),
			zap.String("booking_id", payment.BookingID.String()),
		)
		return apperror.Wrap(apperror.KindConflict, err, "booking already has an open payment order")
	}
	if err != nil {
		r.log.Error("Failed to create payment",
			zap.Error(err),
			zap.String("booking_id", payment.BookingID.String()),
			zap.String("gateway_order_id", payment.GatewayOrderID),
		)
		return fmt.Errorf("create payment %s: %w", payment.GatewayOrderID, err)
	}

	return nil
}

func (r *paymentRepository) FindByID(ctx context.Context, id uuid.UUID) (*entity.Payment, error) {
	query := `SELECT ` + paymentColumns + ` FROM payments WHERE id = $1`
	return r.findOne(ctx, query, id, zap.String("payment_id", id.String()))
}

func (r *paymentRepository) FindByOrderID(ctx context.Context, gatewayOrderID string) (*entity.Payment, error) {
	query := `SELECT ` + paymentColumns + ` FROM payments WHERE gateway_order_id = $1`
	return r.findOne(ctx, query, gatewayOrderID, zap.String("gateway_order_id", gatewayOrderID))
}

func (r *paymentRepository) FindOpenByBookingID(ctx context.Context, bookingID uuid.UUID) (*entity.Payment, error) {
	query := `
		SELECT ` + paymentColumns + `
		FROM payments
		WHERE booking_id = $1 AND status IN ('created', 'pending')
	`
	return r.findOne(ctx, query, bookingID, zap.String("booking_id", bookingID.String()))
}

func (r *paymentRepository) FindSettledByBookingID(ctx context.Context, bookingID uuid.UUID) (*entity.Payment, error) {
	query := `
		SELECT ` + paymentColumns + `
		FROM payments
		WHERE booking_id = $1 AND status IN ('success', 'refunded')
	`
	return r.findOne(ctx, query, bookingID, zap.String("booking_id", bookingID.String()))
}

func (r *paymentRepository) FailOrphanedOrders(ctx context.Context, at time.Time) (int64, error) {
	query := `
		UPDATE payments
		SET status = 'failed', updated_at = $1
		WHERE status IN ('created', 'pending')
		  AND booking_id IN (
			SELECT id FROM bookings
			WHERE status IN ('cancelled', 'rejected') AND is_paid = FALSE
		  )
	`
	tag, err := r.db.Exec(ctx, query, at)
	if err != nil {
		r.log.Error("Failed to expire orphaned orders", zap.Error(err))
		return 0, fmt.Errorf("fail orphaned orders: %w", err)
	}
	return tag.RowsAffected(), nil
}

func (r *paymentRepository) findOne(ctx context.Context, query string, arg any, field zap.Field) (*entity.Payment, error) {
	payment, err := scanPayment(r.db.QueryRow(ctx, query, arg))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		r.log.Error("Failed to find payment", zap.Error(err), field)
		return nil, fmt.Errorf("find payment: %w", err)
	}
	return payment, nil
}

func (r *paymentRepository) Settle(ctx context.Context, in SettleInput) (*SettleResult, error) {
	var (
		res *SettleResult
		err error
	)
	for attempt := 1; attempt <= maxTxAttempts; attempt++ {
		res, err = r.settle(ctx, in)
		if err == nil || !database.IsRetryable(err) {
			break
		}
	}
	if err != nil && apperror.KindOf(err) == apperror.KindInternal {
		r.log.Error("Failed to settle payment", zap.Error(err), zap.String("gateway_order_id", in.GatewayOrderID))
		return nil, fmt.Errorf("settle payment %s: %w", in.GatewayOrderID, err)
	}
	return res, err
}

func (r *paymentRepository) settle(ctx context.Context, in SettleInput) (res *SettleResult, err error) {
	tx, err := r.db.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	payment, err := scanPayment(tx.QueryRow(ctx,
		`SELECT `+paymentColumns+` FROM payments WHERE gateway_order_id = $1 FOR UPDATE`, in.GatewayOrderID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperror.NotFound("payment order %s not found", in.GatewayOrderID)
	}
	if err != nil {
		return nil, fmt.Errorf("lock payment: %w", err)
	}

	booking, err := scanBooking(tx.QueryRow(ctx,
		`SELECT `+bookingColumns+` FROM bookings WHERE id = $1 FOR UPDATE`, payment.BookingID))
	if err != nil {
		return nil, fmt.Errorf("lock booking %s: %w", payment.BookingID.String(), err)
	}

	if already, cerr := SettleOutcome(payment, booking, in.GatewayPaymentID); cerr != nil || already {
		if cerr != nil {
			return nil, cerr
		}
		_ = tx.Rollback(ctx)
		return &SettleResult{Booking: booking, Payment: payment}, nil
	}

	payment, err = scanPayment(tx.QueryRow(ctx, `
		UPDATE payments
		SET status = 'success', gateway_payment_id = $2, signature = $3, completed_at = $4, updated_at = $4
		WHERE id = $1 AND status IN ('created', 'pending')
		RETURNING `+paymentColumns,
		payment.ID, in.GatewayPaymentID, nullable(in.Signature), in.At))
	if err != nil {
		return nil, fmt.Errorf("mark payment success: %w", err)
	}

	booking, err = scanBooking(tx.QueryRow(ctx, `
		UPDATE bookings
		SET is_paid = TRUE,
		    payment_status = 'paid',
		    payment_id = $2,
		    status = CASE WHEN status = 'pending' THEN 'confirmed' ELSE status END,
		    updated_at = $3
		WHERE id = $1
		  AND is_paid = FALSE
		  AND status IN ('pending', 'confirmed', 'active')
		RETURNING `+bookingColumns,
		booking.ID, payment.ID, in.At))
	if err != nil {
		return nil, fmt.Errorf("mark booking paid: %w", err)
	}

	if err = tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit settlement: %w", err)
	}

	r.log.Info("Payment settled",
		zap.String("payment_id", payment.ID.String()),
		zap.String("booking_id", booking.ID.String()),
		zap.String("gateway_payment_id", in.GatewayPaymentID),
	)
	return &SettleResult{Booking: booking, Payment: payment, Applied: true}, nil
}

// SettleOutcome decides, on locked rows, whether a settle call is a replay
// of a completed settlement (already=true) or must be refused.
func SettleOutcome(payment *entity.Payment, booking *entity.Booking, gatewayPaymentID string) (already bool, err error) {
	switch {
	case payment.Status == entity.PaymentStatusSuccess || payment.Status == entity.PaymentStatusRefunded:
		if payment.GatewayPaymentID != nil && *payment.GatewayPaymentID == gatewayPaymentID {
			return true, nil
		}
		return false, apperror.Conflict("payment order %s is already settled", payment.GatewayOrderID)
	case !payment.Status.IsOpen():
		return false, apperror.Conflict("payment order %s is %s", payment.GatewayOrderID, payment.Status)
	case booking.IsPaid:
		return false, apperror.Conflict("booking %s is already paid", booking.ID.String())
	case booking.Status.IsTerminal():
		return false, apperror.Conflict("booking %s is %s and cannot be paid", booking.ID.String(), booking.Status)
	}
	return false, nil
}

func (r *paymentRepository) MarkRefunded(ctx context.Context, in RefundInput) (*SettleResult, error) {
	var (
		res *SettleResult
		err error
	)
	for attempt := 1; attempt <= maxTxAttempts; attempt++ {
		res, err = r.markRefunded(ctx, in)
		if err == nil || !database.IsRetryable(err) {
			break
		}
	}
	if err != nil && apperror.KindOf(err) == apperror.KindInternal {
		r.log.Error("Failed to record refund", zap.Error(err), zap.String("payment_id", in.PaymentID.String()))
		return nil, fmt.Errorf("record refund %s: %w", in.RefundID, err)
	}
	return res, err
}

func (r *paymentRepository) markRefunded(ctx context.Context, in RefundInput) (res *SettleResult, err error) {
	tx, err := r.db.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	payment, err := scanPayment(tx.QueryRow(ctx,
		`SELECT `+paymentColumns+` FROM payments WHERE id = $1 FOR UPDATE`, in.PaymentID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperror.NotFound("payment %s not found", in.PaymentID.String())
	}
	if err != nil {
		return nil, fmt.Errorf("lock payment: %w", err)
	}

	booking, err := scanBooking(tx.QueryRow(ctx,
		`SELECT `+bookingColumns+` FROM bookings WHERE id = $1 FOR UPDATE`, payment.BookingID))
	if err != nil {
		return nil, fmt.Errorf("lock booking %s: %w", payment.BookingID.String(), err)
	}

	if payment.Status == entity.PaymentStatusRefunded {
		if payment.RefundID != nil && *payment.RefundID == in.RefundID {
			_ = tx.Rollback(ctx)
			return &SettleResult{Booking: booking, Payment: payment}, nil
		}
		return nil, apperror.Conflict("payment %s is already refunded", payment.ID.String())
	}
	if payment.Status != entity.PaymentStatusSuccess {
		return nil, apperror.Conflict("payment %s is %s and cannot be refunded", payment.ID.String(), payment.Status)
	}

	payment, err = scanPayment(tx.QueryRow(ctx, `
		UPDATE payments
		SET status = 'refunded', refund_id = $2, refund_amount = $3, refund_reason = $4,
		    refunded_at = $5, updated_at = $5
		WHERE id = $1 AND status = 'success'
		RETURNING `+paymentColumns,
		payment.ID, in.RefundID, in.Amount, nullable(in.Reason), in.At))
	if err != nil {
		return nil, fmt.Errorf("mark payment refunded: %w", err)
	}

	// the refund is already issued at the gateway; record it even if a sweep
	// finished the booking in the meantime
	booking, err = scanBooking(tx.QueryRow(ctx, `
		UPDATE bookings
		SET payment_status = 'refunded',
		    status = CASE WHEN status IN ('pending', 'confirmed', 'active') THEN 'cancelled' ELSE status END,
		    updated_at = $2
		WHERE id = $1 AND payment_status = 'paid'
		RETURNING `+bookingColumns,
		booking.ID, in.At))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperror.Conflict("booking %s is not in paid state", payment.BookingID.String())
	}
	if err != nil {
		return nil, fmt.Errorf("mark booking refunded: %w", err)
	}

	if err = tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit refund: %w", err)
	}

	r.log.Info("Refund recorded",
		zap.String("payment_id", payment.ID.String()),
		zap.String("booking_id", booking.ID.String()),
		zap.String("refund_id", in.RefundID),
		zap.Int64("amount", in.Amount),
	)
	return &SettleResult{Booking: booking, Payment: payment, Applied: true}, nil
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
