package usecase

import (
	"context"
	"time"

	"adspace-booking/internal/data/repository"
	"adspace-booking/internal/dto/response"
	"adspace-booking/internal/events"
	"adspace-booking/pkg/utils"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const defaultUnpaidTTL = 24 * time.Hour

// ReconciliationService advances bookings whose state depends on elapsed time.
// Every sweep filters on its own precondition, so repeated or concurrent runs
// converge on the same state.
type ReconciliationService interface {
	CancelUnpaid(ctx context.Context) ([]uuid.UUID, error)
	AdvanceLifecycle(ctx context.Context) (activated, completed []uuid.UUID, err error)
	Sweep(ctx context.Context) (*response.SweepResponse, error)
}

// orderExpirer is the payment side of the unpaid sweep.
type orderExpirer interface {
	ExpireOrphanedOrders(ctx context.Context) (int64, error)
}

type reconciliationService struct {
	repo      *repository.Repository
	orders    orderExpirer
	publisher events.Publisher
	clock     utils.Clock
	unpaidTTL time.Duration
	log       *zap.Logger
}

func NewReconciliationService(repo *repository.Repository, orders orderExpirer, deps Deps, config *utils.Config, log *zap.Logger) ReconciliationService {
	ttl := config.Scheduler.UnpaidTTL
	if ttl <= 0 {
		ttl = defaultUnpaidTTL
	}
	return &reconciliationService{
		repo:      repo,
		orders:    orders,
		publisher: deps.Publisher,
		clock:     deps.Clock,
		unpaidTTL: ttl,
		log:       log.With(zap.String("service", "reconciliation")),
	}
}

func (s *reconciliationService) CancelUnpaid(ctx context.Context) ([]uuid.UUID, error) {
	now := s.clock.Now()
	ids, err := s.repo.Booking.CancelStaleUnpaid(ctx, now.Add(-s.unpaidTTL), now)
	if err != nil {
		return nil, err
	}

	if len(ids) > 0 {
		s.log.Info("Cancelled unpaid bookings", zap.Int("count", len(ids)))
	}

	// the next run picks up whatever this one leaves open
	if _, err := s.orders.ExpireOrphanedOrders(ctx); err != nil {
		s.log.Warn("Failed to expire orders of cancelled bookings", zap.Error(err))
	}
	s.emit(ctx, events.BookingCancelled, ids, now, map[string]any{"cause": "unpaid"})
	return ids, nil
}

func (s *reconciliationService) AdvanceLifecycle(ctx context.Context) ([]uuid.UUID, []uuid.UUID, error) {
	now := s.clock.Now()

	activated, err := s.repo.Booking.ActivateStarted(ctx, now)
	if err != nil {
		return nil, nil, err
	}
	s.emit(ctx, events.BookingActivated, activated, now, nil)

	completed, err := s.repo.Booking.CompleteEnded(ctx, now)
	if err != nil {
		return activated, nil, err
	}
	s.emit(ctx, events.BookingCompleted, completed, now, nil)

	if len(activated) > 0 || len(completed) > 0 {
		s.log.Info("Advanced booking lifecycle",
			zap.Int("activated", len(activated)),
			zap.Int("completed", len(completed)),
		)
	}
	return activated, completed, nil
}

func (s *reconciliationService) Sweep(ctx context.Context) (*response.SweepResponse, error) {
	cancelled, err := s.CancelUnpaid(ctx)
	if err != nil {
		return nil, err
	}
	activated, completed, err := s.AdvanceLifecycle(ctx)
	if err != nil {
		return nil, err
	}

	resp := response.SweepToResponse(cancelled, activated, completed)
	return &resp, nil
}

func (s *reconciliationService) emit(ctx context.Context, t events.Type, ids []uuid.UUID, at time.Time, data map[string]any) {
	evs := make([]events.Event, 0, len(ids))
	for _, id := range ids {
		evs = append(evs, events.New(t, id, at, data))
	}
	publish(ctx, s.publisher, s.log, evs...)
}
