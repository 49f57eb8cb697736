// Package memstore implements the repository contracts in memory. One mutex
// guards all tables, so every conditional update is atomic in the same way the
// Postgres implementation's transactions are.
package memstore

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"adspace-booking/internal/data/entity"
	"adspace-booking/internal/data/repository"
	"adspace-booking/pkg/apperror"
	"adspace-booking/pkg/utils"

	"github.com/google/uuid"
)

type Store struct {
	mu       sync.Mutex
	clock    utils.Clock
	users    map[uuid.UUID]*entity.User
	sessions map[uuid.UUID]*entity.Session // by token
	spaces   map[uuid.UUID]*entity.Space
	bookings map[uuid.UUID]*entity.Booking
	payments map[uuid.UUID]*entity.Payment
}

func New(clock utils.Clock) *Store {
	return &Store{
		clock:    clock,
		users:    make(map[uuid.UUID]*entity.User),
		sessions: make(map[uuid.UUID]*entity.Session),
		spaces:   make(map[uuid.UUID]*entity.Space),
		bookings: make(map[uuid.UUID]*entity.Booking),
		payments: make(map[uuid.UUID]*entity.Payment),
	}
}

// Repository exposes the store through the same aggregate the services take.
func (s *Store) Repository() *repository.Repository {
	return &repository.Repository{
		User:    userRepo{s},
		Session: sessionRepo{s},
		Space:   spaceRepo{s},
		Booking: bookingRepo{s},
		Payment: paymentRepo{s},
	}
}

// ---- users ----

type userRepo struct{ s *Store }

func (r userRepo) Create(_ context.Context, user *entity.User) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	for _, u := range r.s.users {
		if strings.EqualFold(u.Email, user.Email) || u.Username == user.Username {
			return apperror.Conflict("user %s already exists", user.Username)
		}
	}
	c := *user
	r.s.users[user.ID] = &c
	return nil
}

func (r userRepo) FindByID(_ context.Context, id uuid.UUID) (*entity.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if u, ok := r.s.users[id]; ok && u.DeletedAt == nil {
		c := *u
		return &c, nil
	}
	return nil, nil
}

func (r userRepo) FindByEmail(_ context.Context, email string) (*entity.User, error) {
	return r.find(func(u *entity.User) bool { return strings.EqualFold(u.Email, email) })
}

func (r userRepo) FindByUsername(_ context.Context, username string) (*entity.User, error) {
	return r.find(func(u *entity.User) bool { return u.Username == username })
}

func (r userRepo) find(match func(*entity.User) bool) (*entity.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	for _, u := range r.s.users {
		if u.DeletedAt == nil && match(u) {
			c := *u
			return &c, nil
		}
	}
	return nil, nil
}

// ---- sessions ----

type sessionRepo struct{ s *Store }

func (r sessionRepo) Create(_ context.Context, session *entity.Session) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	c := *session
	r.s.sessions[session.Token] = &c
	return nil
}

func (r sessionRepo) FindValidSession(_ context.Context, token uuid.UUID) (*entity.Session, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	sess, ok := r.s.sessions[token]
	if !ok || sess.RevokedAt != nil || !sess.ExpiresAt.After(r.s.clock.Now()) {
		return nil, nil
	}
	user, ok := r.s.users[sess.UserID]
	if !ok || !user.IsActive || user.DeletedAt != nil {
		return nil, nil
	}
	c := *sess
	c.Role = user.Role
	return &c, nil
}

func (r sessionRepo) Revoke(_ context.Context, token uuid.UUID) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	sess, ok := r.s.sessions[token]
	if !ok || sess.RevokedAt != nil {
		return repository.ErrSessionNotFound
	}
	now := r.s.clock.Now()
	sess.RevokedAt = &now
	return nil
}

// ---- spaces ----

type spaceRepo struct{ s *Store }

func (r spaceRepo) Create(_ context.Context, space *entity.Space) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	c := *space
	r.s.spaces[space.ID] = &c
	return nil
}

func (r spaceRepo) FindByID(_ context.Context, id uuid.UUID) (*entity.Space, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if sp, ok := r.s.spaces[id]; ok && sp.DeletedAt == nil {
		c := *sp
		return &c, nil
	}
	return nil, nil
}

// ---- bookings ----

type bookingRepo struct{ s *Store }

func hasStatus(statuses []entity.BookingStatus, st entity.BookingStatus) bool {
	for _, s := range statuses {
		if s == st {
			return true
		}
	}
	return false
}

// overlapLocked must be called with the store mutex held.
func (s *Store) overlapLocked(spaceID uuid.UUID, start, end time.Time, statuses []entity.BookingStatus, excludeID *uuid.UUID) bool {
	for _, b := range s.bookings {
		if b.SpaceID != spaceID || !hasStatus(statuses, b.Status) {
			continue
		}
		if excludeID != nil && b.ID == *excludeID {
			continue
		}
		if b.Overlaps(start, end) {
			return true
		}
	}
	return false
}

func (r bookingRepo) CreateIfAvailable(_ context.Context, booking *entity.Booking, blocking []entity.BookingStatus) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if r.s.overlapLocked(booking.SpaceID, booking.StartDate, booking.EndDate, blocking, nil) {
		return apperror.Conflict("space is already booked for the selected dates")
	}
	r.s.bookings[booking.ID] = booking.Clone()
	return nil
}

func (r bookingRepo) FindByID(_ context.Context, id uuid.UUID) (*entity.Booking, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if b, ok := r.s.bookings[id]; ok {
		return b.Clone(), nil
	}
	return nil, nil
}

func partyMatch(b *entity.Booking, userID uuid.UUID, role entity.UserRole) bool {
	switch role {
	case entity.RoleAdmin:
		return true
	case entity.RoleVenueOwner:
		return b.VenueOwnerID == userID
	default:
		return b.BrandID == userID
	}
}

func (r bookingRepo) FindByParty(_ context.Context, userID uuid.UUID, role entity.UserRole, limit, offset int) ([]*entity.Booking, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	var matched []*entity.Booking
	for _, b := range r.s.bookings {
		if partyMatch(b, userID, role) {
			matched = append(matched, b.Clone())
		}
	}
	sort.Slice(matched, func(i, j int) bool {
		if matched[i].CreatedAt.Equal(matched[j].CreatedAt) {
			return matched[i].ID.String() < matched[j].ID.String()
		}
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})

	if offset >= len(matched) {
		return nil, nil
	}
	end := offset + limit
	if end > len(matched) {
		end = len(matched)
	}
	return matched[offset:end], nil
}

func (r bookingRepo) CountByParty(_ context.Context, userID uuid.UUID, role entity.UserRole) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	var n int64
	for _, b := range r.s.bookings {
		if partyMatch(b, userID, role) {
			n++
		}
	}
	return n, nil
}

func (r bookingRepo) FindBySpaceInRange(_ context.Context, spaceID uuid.UUID, start, end time.Time, statuses []entity.BookingStatus) ([]*entity.Booking, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	var out []*entity.Booking
	for _, b := range r.s.bookings {
		if b.SpaceID == spaceID && hasStatus(statuses, b.Status) && b.Overlaps(start, end) {
			out = append(out, b.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartDate.Before(out[j].StartDate) })
	return out, nil
}

func (r bookingRepo) HasOverlap(_ context.Context, spaceID uuid.UUID, start, end time.Time, statuses []entity.BookingStatus, excludeID *uuid.UUID) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	return r.s.overlapLocked(spaceID, start, end, statuses, excludeID), nil
}

func (r bookingRepo) TransitionStatus(_ context.Context, t repository.Transition) (*entity.Booking, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	b, ok := r.s.bookings[t.BookingID]
	if !ok || b.Status != t.From || (t.RequireUnpaid && b.IsPaid) {
		return nil, nil
	}
	b.Status = t.To
	if t.Reason != nil {
		reason := *t.Reason
		b.RejectionReason = &reason
	}
	b.UpdatedAt = t.At
	return b.Clone(), nil
}

func (r bookingRepo) CancelStaleUnpaid(_ context.Context, createdBefore, now time.Time) ([]uuid.UUID, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	var ids []uuid.UUID
	for _, b := range r.s.bookings {
		if b.Status != entity.BookingStatusPending || b.IsPaid || !b.CreatedAt.Before(createdBefore) {
			continue
		}
		b.Status = entity.BookingStatusCancelled
		b.UpdatedAt = now
		ids = append(ids, b.ID)
	}
	return sortIDs(ids), nil
}

func (r bookingRepo) ActivateStarted(_ context.Context, now time.Time) ([]uuid.UUID, error) {
	day := utils.TruncateDay(now)
	return r.advance(entity.BookingStatusConfirmed, entity.BookingStatusActive, now, func(b *entity.Booking) bool {
		return !b.StartDate.After(day)
	})
}

func (r bookingRepo) CompleteEnded(_ context.Context, now time.Time) ([]uuid.UUID, error) {
	day := utils.TruncateDay(now)
	return r.advance(entity.BookingStatusActive, entity.BookingStatusCompleted, now, func(b *entity.Booking) bool {
		return !b.EndDate.After(day)
	})
}

func (r bookingRepo) advance(from, to entity.BookingStatus, now time.Time, due func(*entity.Booking) bool) ([]uuid.UUID, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	var ids []uuid.UUID
	for _, b := range r.s.bookings {
		if b.Status == from && due(b) {
			b.Status = to
			b.UpdatedAt = now
			ids = append(ids, b.ID)
		}
	}
	return sortIDs(ids), nil
}

func sortIDs(ids []uuid.UUID) []uuid.UUID {
	sort.Slice(ids, func(i, j int) bool { return ids[i].String() < ids[j].String() })
	return ids
}

// ---- payments ----

type paymentRepo struct{ s *Store }

func (r paymentRepo) Create(_ context.Context, payment *entity.Payment) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	for _, p := range r.s.payments {
		if p.GatewayOrderID == payment.GatewayOrderID || p.Receipt == payment.Receipt {
			return apperror.Conflict("duplicate payment order %s", payment.GatewayOrderID)
		}
		if p.BookingID == payment.BookingID && p.Status.IsOpen() {
			return apperror.Conflict("booking already has an open payment order")
		}
	}
	r.s.payments[payment.ID] = payment.Clone()
	return nil
}

func (r paymentRepo) FindByID(_ context.Context, id uuid.UUID) (*entity.Payment, error) {
	return r.find(func(p *entity.Payment) bool { return p.ID == id })
}

func (r paymentRepo) FindByOrderID(_ context.Context, gatewayOrderID string) (*entity.Payment, error) {
	return r.find(func(p *entity.Payment) bool { return p.GatewayOrderID == gatewayOrderID })
}

func (r paymentRepo) FindOpenByBookingID(_ context.Context, bookingID uuid.UUID) (*entity.Payment, error) {
	return r.find(func(p *entity.Payment) bool { return p.BookingID == bookingID && p.Status.IsOpen() })
}

func (r paymentRepo) FindSettledByBookingID(_ context.Context, bookingID uuid.UUID) (*entity.Payment, error) {
	return r.find(func(p *entity.Payment) bool {
		return p.BookingID == bookingID &&
			(p.Status == entity.PaymentStatusSuccess || p.Status == entity.PaymentStatusRefunded)
	})
}

func (r paymentRepo) FailOrphanedOrders(_ context.Context, at time.Time) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	var n int64
	for _, p := range r.s.payments {
		if !p.Status.IsOpen() {
			continue
		}
		b, ok := r.s.bookings[p.BookingID]
		if !ok || b.IsPaid {
			continue
		}
		if b.Status == entity.BookingStatusCancelled || b.Status == entity.BookingStatusRejected {
			p.Status = entity.PaymentStatusFailed
			p.UpdatedAt = at
			n++
		}
	}
	return n, nil
}

func (r paymentRepo) find(match func(*entity.Payment) bool) (*entity.Payment, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	for _, p := range r.s.payments {
		if match(p) {
			return p.Clone(), nil
		}
	}
	return nil, nil
}

func (r paymentRepo) orderLocked(gatewayOrderID string) *entity.Payment {
	for _, p := range r.s.payments {
		if p.GatewayOrderID == gatewayOrderID {
			return p
		}
	}
	return nil
}

func (r paymentRepo) Settle(_ context.Context, in repository.SettleInput) (*repository.SettleResult, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	payment := r.orderLocked(in.GatewayOrderID)
	if payment == nil {
		return nil, apperror.NotFound("payment order %s not found", in.GatewayOrderID)
	}
	booking, ok := r.s.bookings[payment.BookingID]
	if !ok {
		return nil, apperror.NotFound("booking %s not found", payment.BookingID.String())
	}

	already, err := repository.SettleOutcome(payment, booking, in.GatewayPaymentID)
	if err != nil {
		return nil, err
	}
	if already {
		return &repository.SettleResult{Booking: booking.Clone(), Payment: payment.Clone()}, nil
	}

	at := in.At
	gatewayPaymentID := in.GatewayPaymentID
	payment.Status = entity.PaymentStatusSuccess
	payment.GatewayPaymentID = &gatewayPaymentID
	if in.Signature != "" {
		sig := in.Signature
		payment.Signature = &sig
	}
	payment.CompletedAt = &at
	payment.UpdatedAt = at

	paymentID := payment.ID
	booking.IsPaid = true
	booking.PaymentStatus = entity.BookingPaymentPaid
	booking.PaymentID = &paymentID
	if booking.Status == entity.BookingStatusPending {
		booking.Status = entity.BookingStatusConfirmed
	}
	booking.UpdatedAt = at

	return &repository.SettleResult{Booking: booking.Clone(), Payment: payment.Clone(), Applied: true}, nil
}

func (r paymentRepo) MarkRefunded(_ context.Context, in repository.RefundInput) (*repository.SettleResult, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	payment, ok := r.s.payments[in.PaymentID]
	if !ok {
		return nil, apperror.NotFound("payment %s not found", in.PaymentID.String())
	}
	booking, ok := r.s.bookings[payment.BookingID]
	if !ok {
		return nil, apperror.NotFound("booking %s not found", payment.BookingID.String())
	}

	if payment.Status == entity.PaymentStatusRefunded {
		if payment.RefundID != nil && *payment.RefundID == in.RefundID {
			return &repository.SettleResult{Booking: booking.Clone(), Payment: payment.Clone()}, nil
		}
		return nil, apperror.Conflict("payment %s is already refunded", payment.ID.String())
	}
	if payment.Status != entity.PaymentStatusSuccess {
		return nil, apperror.Conflict("payment %s is %s and cannot be refunded", payment.ID.String(), payment.Status)
	}
	if booking.PaymentStatus != entity.BookingPaymentPaid {
		return nil, apperror.Conflict("booking %s is not in paid state", booking.ID.String())
	}

	at := in.At
	refundID, amount := in.RefundID, in.Amount
	payment.Status = entity.PaymentStatusRefunded
	payment.RefundID = &refundID
	payment.RefundAmount = &amount
	if in.Reason != "" {
		reason := in.Reason
		payment.RefundReason = &reason
	}
	payment.RefundedAt = &at
	payment.UpdatedAt = at

	booking.PaymentStatus = entity.BookingPaymentRefunded
	if booking.Status.CanTransitionTo(entity.BookingStatusCancelled) {
		booking.Status = entity.BookingStatusCancelled
	}
	booking.UpdatedAt = at

	return &repository.SettleResult{Booking: booking.Clone(), Payment: payment.Clone(), Applied: true}, nil
}
