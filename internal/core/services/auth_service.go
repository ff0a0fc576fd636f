package services

import (
	"context"
	"errors"

	"pledge-desk/internal/adapters/persistence/models"
	"pledge-desk/internal/adapters/persistence/repositories"
	"pledge-desk/internal/pkg/jwt"
	"pledge-desk/internal/pkg/logger"
	"pledge-desk/internal/pkg/password"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Auth errors
var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrUserInactive       = errors.New("user account is inactive")
	ErrUserAlreadyExists  = errors.New("user already exists")
)

// AuthService handles staff authentication
type AuthService struct {
	userRepo   repositories.UserRepository
	secret     string
	expiryMins int
	log        *zap.Logger
}

// NewAuthService creates a new auth service
func NewAuthService(userRepo repositories.UserRepository, secret string, expiryMins int, log *zap.Logger) *AuthService {
	return &AuthService{
		userRepo:   userRepo,
		secret:     secret,
		expiryMins: expiryMins,
		log:        logger.OrNop(log).Named("auth"),
	}
}

// LoginInput represents login input
type LoginInput struct {
	Username string `json:"username" validate:"required,max=50"`
	Password string `json:"password" validate:"required"`
}

// CreateUserInput represents a new staff account
type CreateUserInput struct {
	Username string `json:"username" validate:"required,min=3,max=50"`
	FullName string `json:"full_name" validate:"max=150"`
	Password string `json:"password" validate:"required,min=8"`
	Role     string `json:"role" validate:"required,oneof=CLERK MANAGER"`
}

// AuthResponse represents authentication response
type AuthResponse struct {
	User        *models.UserResponse `json:"user"`
	AccessToken string               `json:"access_token"`
	ExpiresIn   int                  `json:"expires_in"`
}

// Login authenticates a user and issues an access token
func (s *AuthService) Login(ctx context.Context, input *LoginInput) (*AuthResponse, error) {
	// 1. Find user by username
	user, err := s.userRepo.GetByUsername(ctx, input.Username)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}

	// 2. Check if user is active
	if !user.IsActive {
		return nil, ErrUserInactive
	}

	// 3. Verify password
	if !password.Verify(input.Password, user.Password) {
		return nil, ErrInvalidCredentials
	}

	// 4. Generate token
	token, err := jwt.GenerateAccessToken(user.ID, user.Username, user.Role, s.secret, s.expiryMins)
	if err != nil {
		return nil, err
	}

	s.log.Info("✅ User logged in", zap.String("username", user.Username), zap.String("role", user.Role))

	return &AuthResponse{
		User:        user.ToResponse(),
		AccessToken: token,
		ExpiresIn:   s.expiryMins * 60,
	}, nil
}

// CreateUser registers a staff account with a hashed password
func (s *AuthService) CreateUser(ctx context.Context, input *CreateUserInput) (*models.User, error) {
	exists, err := s.userRepo.ExistsByUsername(ctx, input.Username)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, ErrUserAlreadyExists
	}

	hashed, err := password.Hash(input.Password)
	if err != nil {
		return nil, err
	}

	user := &models.User{
		Username: input.Username,
		FullName: input.FullName,
		Password: hashed,
		Role:     input.Role,
		IsActive: true,
	}
	if err := s.userRepo.Create(ctx, user); err != nil {
		return nil, err
	}

	s.log.Info("✅ User created", zap.String("username", user.Username))
	return user, nil
}

// GetProfile returns the signed-in user
func (s *AuthService) GetProfile(ctx context.Context, userID uint) (*models.UserResponse, error) {
	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}
	return user.ToResponse(), nil
}
