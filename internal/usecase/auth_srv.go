package usecase

import (
	"context"
	"errors"
	"strings"
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

// ErrInvalidCredentials is returned for unknown users, wrong passwords and
// deactivated accounts alike.
var ErrInvalidCredentials = errors.New("invalid credentials")

type AuthService interface {
	Register(ctx context.Context, req *request.RegisterRequest) (*response.AuthResponse, error)
	Login(ctx context.Context, req *request.LoginRequest) (*response.AuthResponse, error)
	Logout(ctx context.Context, token string) error
}

type authService struct {
	repo   *repository.Repository
	clock  utils.Clock
	config *utils.Config
	log    *zap.Logger
}

func NewAuthService(repo *repository.Repository, clock utils.Clock, config *utils.Config, log *zap.Logger) AuthService {
	return &authService{
		repo:   repo,
		clock:  clock,
		config: config,
		log:    log.With(zap.String("service", "auth")),
	}
}

func (s *authService) Register(ctx context.Context, req *request.RegisterRequest) (*response.AuthResponse, error) {
	if errs := utils.ValidateStruct(req); len(errs) > 0 {
		s.log.Warn("Register validation failed", zap.Any("errors", errs))
		return nil, apperror.Validation("validation failed: %s", utils.FormatValidationErrors(errs))
	}

	existing, err := s.repo.User.FindByEmail(ctx, req.Email)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, apperror.Conflict("email already registered")
	}

	existing, err = s.repo.User.FindByUsername(ctx, req.Username)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, apperror.Conflict("username already taken")
	}

	hashed, err := utils.HashPassword(req.Password)
	if err != nil {
		s.log.Error("Failed to hash password", zap.Error(err))
		return nil, err
	}

	now := s.clock.Now()
	user := &entity.User{
		Base:         entity.Base{ID: uuid.New(), CreatedAt: now, UpdatedAt: now},
		Username:     req.Username,
		Email:        strings.ToLower(req.Email),
		PasswordHash: hashed,
		Role:         entity.UserRole(req.Role),
		IsActive:     true,
	}
	if err := s.repo.User.Create(ctx, user); err != nil {
		s.log.Error("Failed to create user", zap.Error(err), zap.String("username", req.Username))
		return nil, err
	}

	s.log.Info("User registered", zap.String("user_id", user.ID.String()), zap.String("role", req.Role))

	resp := response.AuthToResponse(user, nil)
	return &resp, nil
}

func (s *authService) Login(ctx context.Context, req *request.LoginRequest) (*response.AuthResponse, error) {
	if errs := utils.ValidateStruct(req); len(errs) > 0 {
		s.log.Warn("Login validation failed", zap.Any("errors", errs))
		return nil, apperror.Validation("validation failed: %s", utils.FormatValidationErrors(errs))
	}

	var user *entity.User
	var err error
	if strings.Contains(req.Username, "@") {
		user, err = s.repo.User.FindByEmail(ctx, req.Username)
	} else {
		user, err = s.repo.User.FindByUsername(ctx, req.Username)
	}
	if err != nil {
		s.log.Error("Failed to find user", zap.Error(err), zap.String("identifier", req.Username))
		return nil, err
	}

	if user == nil || !utils.CheckPasswordHash(req.Password, user.PasswordHash) {
		s.log.Warn("Invalid credentials", zap.String("identifier", req.Username))
		return nil, ErrInvalidCredentials
	}
	if !user.IsActive {
		s.log.Warn("Inactive user tried to login", zap.String("user_id", user.ID.String()))
		return nil, ErrInvalidCredentials
	}

	session, err := s.createSession(ctx, user.ID, req.UserAgent, req.IPAddress)
	if err != nil {
		s.log.Error("Failed to create session", zap.Error(err), zap.String("user_id", user.ID.String()))
		return nil, err
	}

	s.log.Info("User logged in", zap.String("user_id", user.ID.String()))

	resp := response.AuthToResponse(user, session)
	return &resp, nil
}

func (s *authService) Logout(ctx context.Context, token string) error {
	tokenUUID, err := uuid.Parse(token)
	if err != nil {
		return apperror.Validation("invalid token format")
	}

	if err := s.repo.Session.Revoke(ctx, tokenUUID); err != nil {
		if errors.Is(err, repository.ErrSessionNotFound) {
			return apperror.NotFound("session not found")
		}
		s.log.Error("Failed to revoke session", zap.Error(err))
		return err
	}

	s.log.Info("User logged out")
	return nil
}

func (s *authService) createSession(ctx context.Context, userID uuid.UUID, userAgent, ip string) (*entity.Session, error) {
	hours := s.config.Session.ExpiryHours
	if hours <= 0 {
		hours = 24
	}

	now := s.clock.Now()
	session := &entity.Session{
		BaseSimple: entity.BaseSimple{ID: uuid.New(), CreatedAt: now},
		UserID:     userID,
		Token:      uuid.New(),
		ExpiresAt:  now.Add(time.Duration(hours) * time.Hour),
	}
	if userAgent != "" {
		session.UserAgent = &userAgent
	}
	if ip != "" {
		session.IPAddress = &ip
	}

	if err := s.repo.Session.Create(ctx, session); err != nil {
		return nil, err
	}
	return session, nil
}
