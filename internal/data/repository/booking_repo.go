package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"adspace-booking/internal/data/entity"
	"adspace-booking/pkg/apperror"
	"adspace-booking/pkg/database"
	"adspace-booking/pkg/utils"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"
)

type BookingRepository interface {
	// CreateIfAvailable inserts the booking only if no booking in one of the
	// blocking statuses overlaps it. Check and insert are one atomic step.
	CreateIfAvailable(ctx context.Context, booking *entity.Booking, blocking []entity.BookingStatus) error
	FindByID(ctx context.Context, id uuid.UUID) (*entity.Booking, error)
	FindByParty(ctx context.Context, userID uuid.UUID, role entity.UserRole, limit, offset int) ([]*entity.Booking, error)
	CountByParty(ctx context.Context, userID uuid.UUID, role entity.UserRole) (int64, error)
	FindBySpaceInRange(ctx context.Context, spaceID uuid.UUID, start, end time.Time, statuses []entity.BookingStatus) ([]*entity.Booking, error)
	HasOverlap(ctx context.Context, spaceID uuid.UUID, start, end time.Time, statuses []entity.BookingStatus, excludeID *uuid.UUID) (bool, error)

	// TransitionStatus applies t only if the booking is still in t.From.
	// It returns nil, nil when the guard no longer holds.
	TransitionStatus(ctx context.Context, t Transition) (*entity.Booking, error)

	// Sweeps. Each filter equals the negation of its own postcondition.
	CancelStaleUnpaid(ctx context.Context, createdBefore, now time.Time) ([]uuid.UUID, error)
	ActivateStarted(ctx context.Context, now time.Time) ([]uuid.UUID, error)
	CompleteEnded(ctx context.Context, now time.Time) ([]uuid.UUID, error)
}

type Transition struct {
	BookingID     uuid.UUID
	From          entity.BookingStatus
	To            entity.BookingStatus
	Reason        *string
	RequireUnpaid bool
	At            time.Time
}

const maxTxAttempts = 3

type bookingRepository struct {
	db  database.PgxIface
	log *zap.Logger
}

func NewBookingRepository(db database.PgxIface, log *zap.Logger) BookingRepository {
	return &bookingRepository{
		db:  db,
		log: log.With(zap.String("repository", "booking")),
	}
}

const bookingColumns = `id, space_id, brand_id, venue_owner_id, start_date, end_date, total_price,
	status, payment_status, is_paid, payment_id, notes, rejection_reason, created_at, updated_at`

func scanBooking(row pgx.Row) (*entity.Booking, error) {
	var b entity.Booking
	err := row.Scan(
		&b.ID,
		&b.SpaceID,
		&b.BrandID,
		&b.VenueOwnerID,
		&b.StartDate,
		&b.EndDate,
		&b.TotalPrice,
		&b.Status,
		&b.PaymentStatus,
		&b.IsPaid,
		&b.PaymentID,
		&b.Notes,
		&b.RejectionReason,
		&b.CreatedAt,
		&b.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &b, nil
}

func statusStrings(statuses []entity.BookingStatus) []string {
	out := make([]string, len(statuses))
	for i, s := range statuses {
		out[i] = string(s)
	}
	return out
}

func (r *bookingRepository) CreateIfAvailable(ctx context.Context, booking *entity.Booking, blocking []entity.BookingStatus) error {
	var err error
	for attempt := 1; attempt <= maxTxAttempts; attempt++ {
		err = r.createIfAvailable(ctx, booking, blocking)
		if err == nil || !database.IsRetryable(err) {
			break
		}
		r.log.Warn("Retrying booking insert after serialization failure",
			zap.Int("attempt", attempt),
			zap.String("space_id", booking.SpaceID.String()),
		)
	}

	if err != nil && apperror.KindOf(err) != apperror.KindConflict {
		r.log.Error("Failed to create booking",
			zap.Error(err),
			zap.String("space_id", booking.SpaceID.String()),
			zap.String("brand_id", booking.BrandID.String()),
		)
		return fmt.Errorf("create booking %s: %w", booking.ID.String(), err)
	}
	return err
}

func (r *bookingRepository) createIfAvailable(ctx context.Context, booking *entity.Booking, blocking []entity.BookingStatus) (err error) {
	tx, err := r.db.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.Serializable})
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	// writers for one space queue here
	if _, err = tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, booking.SpaceID.String()); err != nil {
		return fmt.Errorf("lock space: %w", err)
	}

	var conflict bool
	err = tx.QueryRow(ctx, overlapQuery,
		booking.SpaceID, booking.StartDate, booking.EndDate, statusStrings(blocking), nil,
	).Scan(&conflict)
	if err != nil {
		return fmt.Errorf("check overlap: %w", err)
	}
	if conflict {
		return apperror.Conflict("space is already booked for the selected dates")
	}

	query := `
		INSERT INTO bookings (id, space_id, brand_id, venue_owner_id, start_date, end_date, total_price,
		                      status, payment_status, is_paid, payment_id, notes, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
	`
	_, err = tx.Exec(ctx, query,
		booking.ID,
		booking.SpaceID,
		booking.BrandID,
		booking.VenueOwnerID,
		booking.StartDate,
		booking.EndDate,
		booking.TotalPrice,
		booking.Status,
		booking.PaymentStatus,
		booking.IsPaid,
		booking.PaymentID,
		booking.Notes,
		booking.CreatedAt,
		booking.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert booking: %w", err)
	}

	return tx.Commit(ctx)
}

// half-open overlap: existing.start < new.end AND existing.end > new.start
const overlapQuery = `
	SELECT EXISTS (
		SELECT 1 FROM bookings
		WHERE space_id = $1
		  AND status = ANY($4)
		  AND start_date < $3
		  AND end_date > $2
		  AND ($5::uuid IS NULL OR id <> $5::uuid)
	)
`

func (r *bookingRepository) FindByID(ctx context.Context, id uuid.UUID) (*entity.Booking, error) {
	query := `SELECT ` + bookingColumns + ` FROM bookings WHERE id = $1`

	booking, err := scanBooking(r.db.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		r.log.Error("Failed to find booking by ID",
			zap.Error(err),
			zap.String("booking_id", id.String()),
		)
		return nil, fmt.Errorf("find booking by ID %s: %w", id.String(), err)
	}

	return booking, nil
}

// partyFilter picks the column that ties a user to a booking. Admins see everything.
func partyFilter(role entity.UserRole) string {
	switch role {
	case entity.RoleVenueOwner:
		return `venue_owner_id = $1`
	case entity.RoleAdmin:
		return `($1::uuid IS NOT NULL)`
	default:
		return `brand_id = $1`
	}
}

func (r *bookingRepository) FindByParty(ctx context.Context, userID uuid.UUID, role entity.UserRole, limit, offset int) ([]*entity.Booking, error) {
	query := `
		SELECT ` + bookingColumns + `
		FROM bookings
		WHERE ` + partyFilter(role) + `
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`

	rows, err := r.db.Query(ctx, query, userID, limit, offset)
	if err != nil {
		r.log.Error("Failed to find bookings by party",
			zap.Error(err),
			zap.String("user_id", userID.String()),
			zap.String("role", string(role)),
			zap.Int("limit", limit),
			zap.Int("offset", offset),
		)
		return nil, fmt.Errorf("find bookings for %s: %w", userID.String(), err)
	}

	return r.collect(rows)
}

func (r *bookingRepository) CountByParty(ctx context.Context, userID uuid.UUID, role entity.UserRole) (int64, error) {
	query := `SELECT COUNT(*) FROM bookings WHERE ` + partyFilter(role)

	var count int64
	if err := r.db.QueryRow(ctx, query, userID).Scan(&count); err != nil {
		r.log.Error("Failed to count bookings by party",
			zap.Error(err),
			zap.String("user_id", userID.String()),
		)
		return 0, fmt.Errorf("count bookings for %s: %w", userID.String(), err)
	}

	return count, nil
}

func (r *bookingRepository) FindBySpaceInRange(ctx context.Context, spaceID uuid.UUID, start, end time.Time, statuses []entity.BookingStatus) ([]*entity.Booking, error) {
	query := `
		SELECT ` + bookingColumns + `
		FROM bookings
		WHERE space_id = $1
		  AND status = ANY($4)
		  AND start_date < $3
		  AND end_date > $2
		ORDER BY start_date
	`

	rows, err := r.db.Query(ctx, query, spaceID, start, end, statusStrings(statuses))
	if err != nil {
		r.log.Error("Failed to find bookings by space",
			zap.Error(err),
			zap.String("space_id", spaceID.String()),
		)
		return nil, fmt.Errorf("find bookings for space %s: %w", spaceID.String(), err)
	}

	return r.collect(rows)
}

func (r *bookingRepository) HasOverlap(ctx context.Context, spaceID uuid.UUID, start, end time.Time, statuses []entity.BookingStatus, excludeID *uuid.UUID) (bool, error) {
	var conflict bool
	err := r.db.QueryRow(ctx, overlapQuery, spaceID, start, end, statusStrings(statuses), excludeID).Scan(&conflict)
	if err != nil {
		r.log.Error("Failed to check overlap",
			zap.Error(err),
			zap.String("space_id", spaceID.String()),
		)
		return false, fmt.Errorf("check overlap for space %s: %w", spaceID.String(), err)
	}
	return conflict, nil
}

func (r *bookingRepository) TransitionStatus(ctx context.Context, t Transition) (*entity.Booking, error) {
	query := `
		UPDATE bookings
		SET status = $3,
		    rejection_reason = COALESCE($4, rejection_reason),
		    updated_at = $5
		WHERE id = $1
		  AND status = $2
		  AND (NOT $6 OR is_paid = FALSE)
		RETURNING ` + bookingColumns

	booking, err := scanBooking(r.db.QueryRow(ctx, query,
		t.BookingID, t.From, t.To, t.Reason, t.At, t.RequireUnpaid,
	))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		r.log.Error("Failed to transition booking",
			zap.Error(err),
			zap.String("booking_id", t.BookingID.String()),
			zap.String("from", string(t.From)),
			zap.String("to", string(t.To)),
		)
		return nil, fmt.Errorf("transition booking %s: %w", t.BookingID.String(), err)
	}

	return booking, nil
}

func (r *bookingRepository) CancelStaleUnpaid(ctx context.Context, createdBefore, now time.Time) ([]uuid.UUID, error) {
	query := `
		UPDATE bookings
		SET status = 'cancelled', updated_at = $2
		WHERE status = 'pending'
		  AND is_paid = FALSE
		  AND created_at < $1
		RETURNING id
	`
	return r.sweep(ctx, "cancel stale unpaid", query, createdBefore, now)
}

func (r *bookingRepository) ActivateStarted(ctx context.Context, now time.Time) ([]uuid.UUID, error) {
	query := `
		UPDATE bookings
		SET status = 'active', updated_at = $2
		WHERE status = 'confirmed'
		  AND start_date <= $1
		RETURNING id
	`
	return r.sweep(ctx, "activate started", query, utils.TruncateDay(now), now)
}

func (r *bookingRepository) CompleteEnded(ctx context.Context, now time.Time) ([]uuid.UUID, error) {
	query := `
		UPDATE bookings
		SET status = 'completed', updated_at = $2
		WHERE status = 'active'
		  AND end_date <= $1
		RETURNING id
	`
	return r.sweep(ctx, "complete ended", query, utils.TruncateDay(now), now)
}

func (r *bookingRepository) sweep(ctx context.Context, name, query string, args ...any) ([]uuid.UUID, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		r.log.Error("Sweep failed", zap.Error(err), zap.String("sweep", name))
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("%s scan: %w", name, err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s rows: %w", name, err)
	}

	return ids, nil
}

func (r *bookingRepository) collect(rows pgx.Rows) ([]*entity.Booking, error) {
	defer rows.Close()

	var bookings []*entity.Booking
	for rows.Next() {
		booking, err := scanBooking(rows)
		if err != nil {
			r.log.Error("Failed to scan booking row", zap.Error(err))
			return nil, fmt.Errorf("scan booking row: %w", err)
		}
		bookings = append(bookings, booking)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate booking rows: %w", err)
	}

	return bookings, nil
}
