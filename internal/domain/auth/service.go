package auth

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/crypto/bcrypt"

	"papyrus/internal/core/apperror"
	"papyrus/internal/core/entity"
	"papyrus/internal/domain/account"
	"papyrus/internal/infrastructure/storage/postgres"
	"papyrus/internal/infrastructure/storage/postgres/account_repo"
)

// ServiceConfig holds auth service configuration.
type ServiceConfig struct {
	PasswordMinLength int
}

// DefaultServiceConfig returns default configuration.
func DefaultServiceConfig() ServiceConfig {
	return ServiceConfig{PasswordMinLength: 8}
}

// RegisterRequest is the payload for user registration.
type RegisterRequest struct {
	Email       string `json:"email" binding:"required"`
	DisplayName string `json:"displayName" binding:"required"`
	Password    string `json:"password" binding:"required"`
}

// TokenResponse is an issued access token.
type TokenResponse struct {
	AccessToken string    `json:"accessToken"`
	ExpiresAt   time.Time `json:"expiresAt"`
	UserID      int64     `json:"userId"`
	Email       string    `json:"email"`
	IsAdmin     bool      `json:"isAdmin"`
}

// Service provides login and registration on top of the user store.
type Service struct {
	factory    *postgres.SessionFactory
	reg        *entity.Registry
	jwtService *JWTService
	config     ServiceConfig
}

// NewService creates a new auth service.
func NewService(factory *postgres.SessionFactory, reg *entity.Registry, jwtService *JWTService, config ServiceConfig) *Service {
	return &Service{
		factory:    factory,
		reg:        reg,
		jwtService: jwtService,
		config:     config,
	}
}

// Login verifies credentials and issues an access token.
func (s *Service) Login(ctx context.Context, email, password string) (*TokenResponse, error) {
	session := s.factory.NewSession()
	defer session.Close(ctx)

	user, err := account_repo.Users(session, s.reg).GetByEmail(ctx, email)
	if err != nil {
		if apperror.IsNotFound(err) {
			return nil, apperror.NewUnauthorized("invalid credentials")
		}
		return nil, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, apperror.NewUnauthorized("invalid credentials")
	}

	token, expiresAt, err := s.jwtService.GenerateAccessToken(user.ID, user.Email, user.RoleNames(), user.IsAdmin)
	if err != nil {
		return nil, fmt.Errorf("issue token: %w", err)
	}

	return &TokenResponse{
		AccessToken: token,
		ExpiresAt:   expiresAt,
		UserID:      user.ID,
		Email:       user.Email,
		IsAdmin:     user.IsAdmin,
	}, nil
}

// Register creates a new user account.
func (s *Service) Register(ctx context.Context, req RegisterRequest) (*account.User, error) {
	if len(req.Password) < s.config.PasswordMinLength {
		return nil, apperror.NewValidation(
			fmt.Sprintf("password must be at least %d characters", s.config.PasswordMinLength),
		).WithDetail("field", "password")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	user := &account.User{
		Email:        req.Email,
		DisplayName:  req.DisplayName,
		PasswordHash: string(hash),
	}

	err = s.factory.RunInTransaction(ctx, func(ctx context.Context) error {
		session := postgres.MustSession(ctx)
		users := account_repo.Users(session, s.reg)

		existing, err := users.GetByEmail(ctx, req.Email)
		if err != nil && !apperror.IsNotFound(err) {
			return err
		}
		if existing != nil && err == nil {
			return apperror.NewConflict("email already registered").WithDetail("email", req.Email)
		}

		return users.Create(ctx, user)
	})
	if err != nil {
		return nil, err
	}
	return user, nil
}
