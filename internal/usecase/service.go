package usecase

import (
	"context"
	"time"

	"adspace-booking/internal/data/entity"
	"adspace-booking/internal/data/repository"
	"adspace-booking/internal/events"
	"adspace-booking/internal/gateway"
	"adspace-booking/internal/lock"
	"adspace-booking/pkg/utils"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

type Service struct {
	Auth           AuthService
	Space          SpaceService
	Booking        BookingService
	Payment        PaymentService
	Refund         RefundService
	Reconciliation ReconciliationService
}

// Deps are the collaborators the core calls out to.
type Deps struct {
	Gateway   gateway.Gateway
	Verifier  *gateway.SignatureVerifier
	Locker    lock.Locker
	Publisher events.Publisher
	Clock     utils.Clock
	// LockTTL is the booking lease. Zero sizes it from the gateway timeout.
	LockTTL time.Duration
}

// Actor is the authenticated caller of a core operation.
type Actor struct {
	ID   uuid.UUID
	Role entity.UserRole
}

func (a Actor) IsAdmin() bool { return a.Role == entity.RoleAdmin }

// SystemActor settles gateway webhooks, which carry no user session.
var SystemActor = Actor{Role: entity.RoleAdmin}

const (
	defaultGatewayTimeout = 10 * time.Second
	// lockSlack is the tail of a booking lease that work under it never uses.
	lockSlack = 5 * time.Second
)

// BookingLockTTL covers the longest section run under a booking lock: every
// refund lookup attempt and one refund call at the gateway timeout, plus the
// backoff of the lookup and of the local update.
func BookingLockTTL(gatewayTimeout time.Duration) time.Duration {
	if gatewayTimeout <= 0 {
		gatewayTimeout = defaultGatewayTimeout
	}
	return time.Duration(maxRetries+2)*gatewayTimeout + 2*retryMaxElapsed + lockSlack
}

func NewService(repo *repository.Repository, deps Deps, config *utils.Config, log *zap.Logger) *Service {
	if deps.Clock == nil {
		deps.Clock = utils.SystemClock()
	}
	if deps.Publisher == nil {
		deps.Publisher = events.Noop{}
	}
	if deps.Locker == nil {
		deps.Locker = lock.NewMemoryLocker()
	}
	if deps.LockTTL <= 0 {
		deps.LockTTL = BookingLockTTL(config.Razorpay.Timeout)
	}

	payment := NewPaymentService(repo, deps, config, log)
	return &Service{
		Auth:           NewAuthService(repo, deps.Clock, config, log),
		Space:          NewSpaceService(repo, deps.Clock, log),
		Booking:        NewBookingService(repo, deps, log),
		Payment:        payment,
		Refund:         NewRefundService(repo, deps, log),
		Reconciliation: NewReconciliationService(repo, payment, deps, config, log),
	}
}

// publish hands events to the publisher after the state change is durable.
// A failure is logged; committed state is never rolled back for it.
func publish(ctx context.Context, p events.Publisher, log *zap.Logger, evs ...events.Event) {
	if len(evs) == 0 {
		return
	}
	if err := p.Publish(ctx, evs...); err != nil {
		log.Error("Failed to publish events",
			zap.Error(err),
			zap.String("type", string(evs[0].Type)),
			zap.Int("count", len(evs)),
		)
	}
}
