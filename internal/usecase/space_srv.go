package usecase

import (
	"context"
	"time"

	"adspace-booking/internal/data/entity"
	"adspace-booking/internal/data/repository"
	"adspace-booking/internal/dto/request"
	"adspace-booking/internal/dto/response"
	"adspace-booking/pkg/apperror"
	"adspace-booking/pkg/utils"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	defaultCalendarDays = 90
	maxCalendarDays     = 366
)

type SpaceService interface {
	CreateSpace(ctx context.Context, actor Actor, req *request.CreateSpaceRequest) (*response.SpaceResponse, error)
	GetSpace(ctx context.Context, spaceID string) (*response.SpaceResponse, error)
	// GetCalendar lists confirmed and active bookings overlapping the window.
	GetCalendar(ctx context.Context, spaceID string, req *request.DateRangeRequest) (*response.CalendarResponse, error)
	CheckAvailability(ctx context.Context, spaceID string, req *request.DateRangeRequest) (*response.AvailabilityResponse, error)
}

type spaceService struct {
	repo  *repository.Repository
	clock utils.Clock
	log   *zap.Logger
}

func NewSpaceService(repo *repository.Repository, clock utils.Clock, log *zap.Logger) SpaceService {
	return &spaceService{
		repo:  repo,
		clock: clock,
		log:   log.With(zap.String("service", "space")),
	}
}

func (s *spaceService) CreateSpace(ctx context.Context, actor Actor, req *request.CreateSpaceRequest) (*response.SpaceResponse, error) {
	if errs := utils.ValidateStruct(req); len(errs) > 0 {
		return nil, apperror.Validation("validation failed: %s", utils.FormatValidationErrors(errs))
	}
	if actor.Role != entity.RoleVenueOwner {
		return nil, apperror.Authorization("only venue owners can list spaces")
	}

	now := s.clock.Now()
	space := &entity.Space{
		Base:        entity.Base{ID: uuid.New(), CreatedAt: now, UpdatedAt: now},
		OwnerID:     actor.ID,
		Name:        req.Name,
		City:        req.City,
		PricePerDay: req.PricePerDay,
		IsActive:    true,
	}
	if err := s.repo.Space.Create(ctx, space); err != nil {
		return nil, err
	}

	s.log.Info("Space created", zap.String("space_id", space.ID.String()), zap.String("owner_id", actor.ID.String()))

	resp := response.SpaceToResponse(space)
	return &resp, nil
}

func (s *spaceService) GetSpace(ctx context.Context, spaceID string) (*response.SpaceResponse, error) {
	space, err := s.findSpace(ctx, spaceID)
	if err != nil {
		return nil, err
	}
	resp := response.SpaceToResponse(space)
	return &resp, nil
}

func (s *spaceService) GetCalendar(ctx context.Context, spaceID string, req *request.DateRangeRequest) (*response.CalendarResponse, error) {
	space, err := s.findSpace(ctx, spaceID)
	if err != nil {
		return nil, err
	}

	from, to, err := s.window(req)
	if err != nil {
		return nil, err
	}

	bookings, err := s.repo.Booking.FindBySpaceInRange(ctx, space.ID, from, to, entity.OccupyingStatuses)
	if err != nil {
		s.log.Error("Failed to load calendar", zap.Error(err), zap.String("space_id", spaceID))
		return nil, err
	}

	entries := make([]response.CalendarEntry, 0, len(bookings))
	for _, b := range bookings {
		entries = append(entries, response.CalendarEntry{
			BookingID: b.ID.String(),
			StartDate: b.StartDate.Format(utils.DateLayout),
			EndDate:   b.EndDate.Format(utils.DateLayout),
			Status:    b.Status,
		})
	}

	return &response.CalendarResponse{
		SpaceID:  space.ID.String(),
		From:     from.Format(utils.DateLayout),
		To:       to.Format(utils.DateLayout),
		Bookings: entries,
	}, nil
}

func (s *spaceService) CheckAvailability(ctx context.Context, spaceID string, req *request.DateRangeRequest) (*response.AvailabilityResponse, error) {
	space, err := s.findSpace(ctx, spaceID)
	if err != nil {
		return nil, err
	}
	if req.StartDate == "" || req.EndDate == "" {
		return nil, apperror.Validation("start_date and end_date are required")
	}

	start, end, err := parseRange(req.StartDate, req.EndDate)
	if err != nil {
		return nil, err
	}

	busy, err := s.repo.Booking.HasOverlap(ctx, space.ID, start, end, entity.OccupyingStatuses, nil)
	if err != nil {
		s.log.Error("Failed to check availability", zap.Error(err), zap.String("space_id", spaceID))
		return nil, err
	}

	return &response.AvailabilityResponse{
		SpaceID:   space.ID.String(),
		StartDate: req.StartDate,
		EndDate:   req.EndDate,
		Available: !busy,
	}, nil
}

func (s *spaceService) findSpace(ctx context.Context, spaceID string) (*entity.Space, error) {
	id, err := uuid.Parse(spaceID)
	if err != nil {
		return nil, apperror.Validation("invalid space ID format")
	}

	space, err := s.repo.Space.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if space == nil {
		return nil, apperror.NotFound("space %s not found", spaceID)
	}
	return space, nil
}

func (s *spaceService) window(req *request.DateRangeRequest) (time.Time, time.Time, error) {
	if errs := utils.ValidateStruct(req); len(errs) > 0 {
		return time.Time{}, time.Time{}, apperror.Validation("validation failed: %s", utils.FormatValidationErrors(errs))
	}

	from := utils.TruncateDay(s.clock.Now())
	if req.StartDate != "" {
		from, _ = utils.ParseDate(req.StartDate)
	}
	to := from.AddDate(0, 0, defaultCalendarDays)
	if req.EndDate != "" {
		to, _ = utils.ParseDate(req.EndDate)
	}

	if !to.After(from) {
		return time.Time{}, time.Time{}, apperror.Validation("end_date must be after start_date")
	}
	if to.Sub(from) > maxCalendarDays*24*time.Hour {
		return time.Time{}, time.Time{}, apperror.Validation("calendar window cannot exceed %d days", maxCalendarDays)
	}
	return from, to, nil
}

// parseRange parses a YYYY-MM-DD pair and requires end after start.
func parseRange(startStr, endStr string) (time.Time, time.Time, error) {
	start, err := utils.ParseDate(startStr)
	if err != nil {
		return time.Time{}, time.Time{}, apperror.Validation("start_date must be YYYY-MM-DD")
	}
	end, err := utils.ParseDate(endStr)
	if err != nil {
		return time.Time{}, time.Time{}, apperror.Validation("end_date must be YYYY-MM-DD")
	}
	if !end.After(start) {
		return time.Time{}, time.Time{}, apperror.Validation("end_date must be after start_date")
	}
	return start, end, nil
}
