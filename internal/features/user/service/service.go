package service

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	apperrors "lightning-tournament-backend/internal/common/errors"
	"lightning-tournament-backend/internal/common/logger"
	"lightning-tournament-backend/internal/common/validation"
	"lightning-tournament-backend/internal/features/session"
	"lightning-tournament-backend/internal/features/user/models"
	"lightning-tournament-backend/internal/features/user/repository"
)

type UserService interface {
	Register(ctx context.Context, req *models.RegisterRequest) (*models.AuthResponse, error)
	Login(ctx context.Context, req *models.LoginRequest) (*models.AuthResponse, error)
	GetUser(ctx context.Context, id string) (*models.UserResponse, error)
	IsAdmin(ctx context.Context, id string) (bool, error)
	UpdateLightningAddress(ctx context.Context, id, address string) error
	Logout(ctx context.Context, token string) error
	LogoutAll(ctx context.Context, userID string) (int, error)
}

type userService struct {
	repo     repository.UserRepository
	sessions *session.Service
}

func NewUserService(repo repository.UserRepository, sessions *session.Service) UserService {
	return &userService{repo: repo, sessions: sessions}
}

// Register создает пользователя и сразу открывает сессию.
func (s *userService) Register(ctx context.Context, req *models.RegisterRequest) (*models.AuthResponse, error) {
	username := strings.ToLower(strings.TrimSpace(req.Username))
	if err := validation.ValidateUsername(username); err != nil {
		return nil, apperrors.NewValidationError("username", err.Error())
	}
	if len(req.Password) < 8 || len(req.Password) > 128 {
		return nil, apperrors.NewValidationError("password", "must be 8-128 characters")
	}

	displayName := username
	if strings.TrimSpace(req.DisplayName) != "" {
		cleaned, err := validation.SanitizeDisplayName(req.DisplayName)
		if err != nil {
			return nil, apperrors.NewValidationError("displayName", err.Error())
		}
		displayName = cleaned
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, apperrors.NewInternalError("hash password", err)
	}

	now := time.Now().UTC()
	user := &models.User{
		ID:           uuid.NewString(),
		Username:     username,
		PasswordHash: string(hash),
		DisplayName:  displayName,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.repo.Create(ctx, user); err != nil {
		return nil, err
	}

	token, err := s.sessions.Create(ctx, user.ID)
	if err != nil {
		return nil, err
	}
	logger.Info().Str("user_id", user.ID).Msg("User registered")
	return &models.AuthResponse{UserID: user.ID, Token: token}, nil
}

// Login проверяет пароль. The failure reply never distinguishes a missing
// user from a wrong password.
func (s *userService) Login(ctx context.Context, req *models.LoginRequest) (*models.AuthResponse, error) {
	username := strings.ToLower(strings.TrimSpace(req.Username))
	if err := validation.ValidateUsername(username); err != nil {
		return nil, apperrors.NewUnauthorizedError("Invalid username or password")
	}

	user, err := s.repo.GetByUsername(ctx, username)
	if err != nil {
		return nil, apperrors.NewInternalError("load user", err)
	}
	if user == nil || user.PasswordHash == "" {
		// Burn a comparison anyway so both branches cost the same.
		_ = bcrypt.CompareHashAndPassword(dummyHash, []byte(req.Password))
		return nil, apperrors.NewUnauthorizedError("Invalid username or password")
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		return nil, apperrors.NewUnauthorizedError("Invalid username or password")
	}

	token, err := s.sessions.Create(ctx, user.ID)
	if err != nil {
		return nil, err
	}
	return &models.AuthResponse{UserID: user.ID, Token: token}, nil
}

// dummyHash is a bcrypt digest of an unguessable throwaway value.
var dummyHash = func() []byte {
	h, _ := bcrypt.GenerateFromPassword([]byte(uuid.NewString()), bcrypt.DefaultCost)
	return h
}()

func (s *userService) GetUser(ctx context.Context, id string) (*models.UserResponse, error) {
	user, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, apperrors.NewInternalError("load user", err)
	}
	if user == nil {
		return nil, apperrors.NewNotFoundError("user")
	}
	return models.ToUserResponse(user), nil
}

func (s *userService) IsAdmin(ctx context.Context, id string) (bool, error) {
	user, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return false, apperrors.NewInternalError("load user", err)
	}
	return user != nil && user.IsAdmin, nil
}

func (s *userService) UpdateLightningAddress(ctx context.Context, id, address string) error {
	address = strings.TrimSpace(address)
	if address != "" {
		if err := validation.ValidateLightningAddress(address); err != nil {
			return apperrors.NewValidationError("lightningAddress", err.Error())
		}
	}
	return s.repo.UpdateLightningAddress(ctx, id, address)
}

func (s *userService) Logout(ctx context.Context, token string) error {
	return s.sessions.Destroy(ctx, token)
}

func (s *userService) LogoutAll(ctx context.Context, userID string) (int, error) {
	return s.sessions.DestroyAllForUser(ctx, userID)
}
