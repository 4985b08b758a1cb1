package service

import (
	"context"
	"errors"
	"strings"

	"github.com/rs/zerolog"

	"comfygate/internal/apperr"
	"comfygate/internal/config"
	"comfygate/internal/ids"
	"comfygate/internal/models"
	"comfygate/internal/repository"
	"comfygate/internal/security"
)

type AuthService struct {
	users *repository.UserRepository
	cfg   *config.AppConfig
	log   zerolog.Logger
}

func NewAuthService(users *repository.UserRepository, cfg *config.AppConfig, log zerolog.Logger) *AuthService {
	return &AuthService{
		users: users,
		cfg:   cfg,
		log:   log,
	}
}

type RegisterInput struct {
	Email       string
	Password    string
	DisplayName string
}

type AuthResult struct {
	AccessToken string
	User        models.User
}

func (s *AuthService) Register(ctx context.Context, input RegisterInput) (AuthResult, error) {
	input.Email = strings.TrimSpace(strings.ToLower(input.Email))
	if input.Email == "" || input.Password == "" {
		return AuthResult{}, apperr.New(apperr.KindValidation, "email and password required")
	}

	if _, err := s.users.FindByEmail(ctx, input.Email); err == nil {
		return AuthResult{}, apperr.New(apperr.KindValidation, "email already registered")
	} else if !errors.Is(err, repository.ErrUserNotFound) {
		return AuthResult{}, apperr.Wrap(apperr.KindStorage, "look up email", err)
	}

	passwordHash, err := security.HashPassword(input.Password)
	if err != nil {
		return AuthResult{}, apperr.Wrap(apperr.KindStorage, "hash password", err)
	}

	user := models.User{
		ID:           ids.New(),
		Email:        input.Email,
		PasswordHash: passwordHash,
		DisplayName:  input.DisplayName,
		Role:         models.UserRoleEditor,
		Status:       models.UserStatusActive,
	}

	if err := s.users.Create(ctx, user); err != nil {
		return AuthResult{}, apperr.Wrap(apperr.KindStorage, "create user", err)
	}

	return s.issueToken(user)
}

type LoginInput struct {
	Email    string
	Password string
}

func (s *AuthService) Login(ctx context.Context, input LoginInput) (AuthResult, error) {
	input.Email = strings.TrimSpace(strings.ToLower(input.Email))

	user, err := s.users.FindByEmail(ctx, input.Email)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return AuthResult{}, apperr.New(apperr.KindValidation, "invalid credentials")
		}
		return AuthResult{}, apperr.Wrap(apperr.KindStorage, "look up user", err)
	}

	if user.Status != models.UserStatusActive {
		return AuthResult{}, apperr.New(apperr.KindPermission, "account suspended")
	}

	ok, err := security.VerifyPassword(input.Password, user.PasswordHash)
	if err != nil || !ok {
		return AuthResult{}, apperr.New(apperr.KindValidation, "invalid credentials")
	}

	return s.issueToken(user)
}

func (s *AuthService) issueToken(user models.User) (AuthResult, error) {
	token, err := security.GenerateAccessToken(
		s.cfg.Security.JWTSecret,
		user.ID,
		string(user.Role),
		s.cfg.Security.JWTTTL,
	)
	if err != nil {
		return AuthResult{}, apperr.Wrap(apperr.KindStorage, "issue token", err)
	}

	return AuthResult{
		AccessToken: token,
		User:        user,
	}, nil
}
