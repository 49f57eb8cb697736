package usecase

import (
	"context"
	"time"

	"adspace-booking/internal/data/entity"
	"adspace-booking/internal/data/repository"
	"adspace-booking/internal/dto/request"
	"adspace-booking/internal/dto/response"
	"adspace-booking/internal/events"
	"adspace-booking/internal/settlement"
	"adspace-booking/pkg/apperror"
	"adspace-booking/pkg/utils"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

type BookingService interface {
	CreateBooking(ctx context.Context, actor Actor, req *request.CreateBookingRequest) (*response.BookingResponse, error)
	GetBooking(ctx context.Context, actor Actor, bookingID string) (*response.BookingResponse, error)
	ListBookings(ctx context.Context, actor Actor, req request.PaginatedRequest) (*response.PaginatedResponse[response.BookingResponse], error)
	RejectBooking(ctx context.Context, actor Actor, bookingID string, req *request.RejectBookingRequest) (*response.BookingResponse, error)
	CancelBooking(ctx context.Context, actor Actor, bookingID string, req *request.CancelBookingRequest) (*response.BookingResponse, error)
	GetSettlement(ctx context.Context, actor Actor, bookingID string) (*response.SettlementResponse, error)
}

type bookingService struct {
	repo      *repository.Repository
	publisher events.Publisher
	clock     utils.Clock
	log       *zap.Logger
}

func NewBookingService(repo *repository.Repository, deps Deps, log *zap.Logger) BookingService {
	return &bookingService{
		repo:      repo,
		publisher: deps.Publisher,
		clock:     deps.Clock,
		log:       log.With(zap.String("service", "booking")),
	}
}

func (s *bookingService) CreateBooking(ctx context.Context, actor Actor, req *request.CreateBookingRequest) (*response.BookingResponse, error) {
	if errs := utils.ValidateStruct(req); len(errs) > 0 {
		s.log.Warn("Create booking validation failed", zap.Any("errors", errs))
		return nil, apperror.Validation("validation failed: %s", utils.FormatValidationErrors(errs))
	}
	if actor.Role != entity.RoleBrand {
		return nil, apperror.Authorization("only brands can book spaces")
	}

	start, end, err := parseRange(req.StartDate, req.EndDate)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	if start.Before(utils.TruncateDay(now)) {
		return nil, apperror.Validation("start_date cannot be in the past")
	}

	days := daysBetween(start, end)
	if days < entity.MinBookingDays || days > entity.MaxBookingDays {
		return nil, apperror.Validation("booking must last between %d and %d days", entity.MinBookingDays, entity.MaxBookingDays)
	}

	spaceID, err := uuid.Parse(req.SpaceID)
	if err != nil {
		return nil, apperror.Validation("invalid space ID format")
	}
	space, err := s.repo.Space.FindByID(ctx, spaceID)
	if err != nil {
		s.log.Error("Failed to load space", zap.Error(err), zap.String("space_id", req.SpaceID))
		return nil, err
	}
	if space == nil {
		return nil, apperror.NotFound("space %s not found", req.SpaceID)
	}
	if !space.IsActive {
		return nil, apperror.Validation("space is not accepting bookings")
	}
	if space.OwnerID == actor.ID {
		return nil, apperror.Validation("cannot book your own space")
	}

	totalPrice := space.PricePerDay * float64(days)
	if totalPrice <= 0 {
		return nil, apperror.Validation("total price must be positive")
	}

	booking := &entity.Booking{
		BaseNoDelete:  entity.BaseNoDelete{ID: uuid.New(), CreatedAt: now, UpdatedAt: now},
		SpaceID:       space.ID,
		BrandID:       actor.ID,
		VenueOwnerID:  space.OwnerID,
		StartDate:     start,
		EndDate:       end,
		TotalPrice:    totalPrice,
		Status:        entity.BookingStatusPending,
		PaymentStatus: entity.BookingPaymentPending,
		Notes:         req.Notes,
	}

	if err := s.repo.Booking.CreateIfAvailable(ctx, booking, entity.HoldingStatuses); err != nil {
		if apperror.KindOf(err) == apperror.KindConflict {
			s.log.Info("Booking rejected by conflict check",
				zap.String("space_id", req.SpaceID),
				zap.String("start", req.StartDate),
				zap.String("end", req.EndDate),
			)
		} else {
			s.log.Error("Failed to create booking", zap.Error(err), zap.String("space_id", req.SpaceID))
		}
		return nil, err
	}

	s.log.Info("Booking created",
		zap.String("booking_id", booking.ID.String()),
		zap.String("brand_id", actor.ID.String()),
		zap.Float64("total_price", totalPrice),
	)
	publish(ctx, s.publisher, s.log, events.New(events.BookingCreated, booking.ID, now, map[string]any{
		"space_id":    booking.SpaceID.String(),
		"brand_id":    booking.BrandID.String(),
		"total_price": booking.TotalPrice,
	}))

	resp := response.BookingToResponse(booking)
	return &resp, nil
}

func (s *bookingService) GetBooking(ctx context.Context, actor Actor, bookingID string) (*response.BookingResponse, error) {
	booking, err := s.findVisible(ctx, actor, bookingID)
	if err != nil {
		return nil, err
	}
	resp := response.BookingToResponse(booking)
	return &resp, nil
}

func (s *bookingService) ListBookings(ctx context.Context, actor Actor, req request.PaginatedRequest) (*response.PaginatedResponse[response.BookingResponse], error) {
	bookings, err := s.repo.Booking.FindByParty(ctx, actor.ID, actor.Role, req.Limit(), req.Offset())
	if err != nil {
		s.log.Error("Failed to list bookings", zap.Error(err), zap.String("user_id", actor.ID.String()))
		return nil, err
	}

	total, err := s.repo.Booking.CountByParty(ctx, actor.ID, actor.Role)
	if err != nil {
		s.log.Error("Failed to count bookings", zap.Error(err), zap.String("user_id", actor.ID.String()))
		return nil, err
	}

	return response.NewPaginatedResponse(response.BookingsToResponse(bookings), req.Page, req.Limit(), total), nil
}

func (s *bookingService) RejectBooking(ctx context.Context, actor Actor, bookingID string, req *request.RejectBookingRequest) (*response.BookingResponse, error) {
	if errs := utils.ValidateStruct(req); len(errs) > 0 {
		return nil, apperror.Validation("validation failed: %s", utils.FormatValidationErrors(errs))
	}

	booking, err := s.find(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if booking.VenueOwnerID != actor.ID && !actor.IsAdmin() {
		return nil, apperror.Authorization("only the venue owner can reject this booking")
	}

	reason := req.Reason
	updated, err := s.transition(ctx, booking, entity.BookingStatusRejected, &reason, true)
	if err != nil {
		return nil, err
	}

	publish(ctx, s.publisher, s.log, events.New(events.BookingRejected, updated.ID, updated.UpdatedAt, map[string]any{
		"reason": reason,
	}))

	resp := response.BookingToResponse(updated)
	return &resp, nil
}

// CancelBooking withdraws a pending, unpaid booking. Paid bookings leave
// through the refund path instead.
func (s *bookingService) CancelBooking(ctx context.Context, actor Actor, bookingID string, req *request.CancelBookingRequest) (*response.BookingResponse, error) {
	if errs := utils.ValidateStruct(req); len(errs) > 0 {
		return nil, apperror.Validation("validation failed: %s", utils.FormatValidationErrors(errs))
	}

	booking, err := s.find(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if booking.BrandID != actor.ID && !actor.IsAdmin() {
		return nil, apperror.Authorization("only the brand can cancel this booking")
	}
	if booking.IsPaid {
		return nil, apperror.Conflict("booking is paid; request a refund instead")
	}
	if booking.Status != entity.BookingStatusPending {
		return nil, apperror.InvalidTransition(string(booking.Status), string(entity.BookingStatusCancelled))
	}

	var reason *string
	if req.Reason != "" {
		reason = &req.Reason
	}
	updated, err := s.transition(ctx, booking, entity.BookingStatusCancelled, reason, true)
	if err != nil {
		return nil, err
	}

	publish(ctx, s.publisher, s.log, events.New(events.BookingCancelled, updated.ID, updated.UpdatedAt, map[string]any{
		"cause": "brand",
	}))

	resp := response.BookingToResponse(updated)
	return &resp, nil
}

func (s *bookingService) GetSettlement(ctx context.Context, actor Actor, bookingID string) (*response.SettlementResponse, error) {
	booking, err := s.findVisible(ctx, actor, bookingID)
	if err != nil {
		return nil, err
	}
	if booking.PaymentStatus != entity.BookingPaymentPaid {
		return nil, apperror.Conflict("settlement is only available for paid bookings")
	}

	resp := response.SettlementToResponse(booking.ID.String(), settlement.Calculate(booking.TotalPrice))
	return &resp, nil
}

// transition applies from -> to as a single conditional update on the
// booking's current status. A concurrent writer that got there first turns
// into InvalidTransition against the fresh status.
func (s *bookingService) transition(ctx context.Context, booking *entity.Booking, to entity.BookingStatus, reason *string, requireUnpaid bool) (*entity.Booking, error) {
	if !booking.Status.CanTransitionTo(to) {
		return nil, apperror.InvalidTransition(string(booking.Status), string(to))
	}

	updated, err := s.repo.Booking.TransitionStatus(ctx, repository.Transition{
		BookingID:     booking.ID,
		From:          booking.Status,
		To:            to,
		Reason:        reason,
		RequireUnpaid: requireUnpaid,
		At:            s.clock.Now(),
	})
	if err != nil {
		s.log.Error("Failed to transition booking", zap.Error(err), zap.String("booking_id", booking.ID.String()))
		return nil, err
	}

	if updated == nil {
		current, err := s.repo.Booking.FindByID(ctx, booking.ID)
		if err != nil {
			return nil, err
		}
		from := booking.Status
		if current != nil {
			from = current.Status
			if current.IsPaid && requireUnpaid && current.Status == booking.Status {
				return nil, apperror.Conflict("booking was paid concurrently")
			}
		}
		s.log.Warn("Booking transition lost a race",
			zap.String("booking_id", booking.ID.String()),
			zap.String("expected", string(booking.Status)),
			zap.String("actual", string(from)),
		)
		return nil, apperror.InvalidTransition(string(from), string(to))
	}

	s.log.Info("Booking transitioned",
		zap.String("booking_id", booking.ID.String()),
		zap.String("from", string(booking.Status)),
		zap.String("to", string(to)),
	)
	return updated, nil
}

func (s *bookingService) find(ctx context.Context, bookingID string) (*entity.Booking, error) {
	return findBooking(ctx, s.repo, bookingID)
}

func (s *bookingService) findVisible(ctx context.Context, actor Actor, bookingID string) (*entity.Booking, error) {
	booking, err := s.find(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if !actor.IsAdmin() && !booking.HasParty(actor.ID) {
		return nil, apperror.Authorization("not allowed to view this booking")
	}
	return booking, nil
}

func findBooking(ctx context.Context, repo *repository.Repository, bookingID string) (*entity.Booking, error) {
	id, err := uuid.Parse(bookingID)
	if err != nil {
		return nil, apperror.Validation("invalid booking ID format")
	}

	booking, err := repo.Booking.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if booking == nil {
		return nil, apperror.NotFound("booking %s not found", bookingID)
	}
	return booking, nil
}

func daysBetween(start, end time.Time) int {
	return int(end.Sub(start).Hours() / 24)
}
