package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/vasapolrittideah/taskdash-api/services/auth-service/internal/model"
	"github.com/vasapolrittideah/taskdash-api/services/auth-service/internal/repository"
	authtypes "github.com/vasapolrittideah/taskdash-api/services/auth-service/pkg/types"
	"github.com/vasapolrittideah/taskdash-api/shared/security"
)

// AuthUsecase defines the interface for authentication-related use cases.
type AuthUsecase interface {
	Register(ctx context.Context, params RegisterParams) (*model.User, error)
	Login(ctx context.Context, params LoginParams) (*LoginResult, error)
	RefreshToken(ctx context.Context, refreshToken string) (*authtypes.Tokens, error)
	GetProfile(ctx context.Context, userID string) (*model.User, error)
	Logout(ctx context.Context, userID string) error
}

// LoginParams defines the parameters for user login.
type LoginParams struct {
	Email    string
	Password string
}

// RegisterParams defines the parameters for user registration.
type RegisterParams struct {
	Name      string
	Email     string
	Password  string
	Field     string
	Education string
}

// LoginResult is a signed-in user together with the pair issued for the session.
type LoginResult struct {
	User   *model.User
	Tokens *authtypes.Tokens
}

var (
	ErrInvalidInput       = errors.New("invalid input")
	ErrUserAlreadyExists  = errors.New("user already exists")
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrUserNotFound       = errors.New("user not found")
)

type authUsecase struct {
	userRepo repository.UserRepository
	hasher   security.PasswordHasher
	tokens   TokenUsecase
}

func NewAuthUsecase(
	userRepo repository.UserRepository,
	hasher security.PasswordHasher,
	tokens TokenUsecase,
) AuthUsecase {
	return &authUsecase{
		userRepo: userRepo,
		hasher:   hasher,
		tokens:   tokens,
	}
}

func (u *authUsecase) Register(ctx context.Context, params RegisterParams) (*model.User, error) {
	if isBlank(params.Name) || isBlank(params.Email) || isBlank(params.Password) {
		return nil, fmt.Errorf("%w: name, email and password are required", ErrInvalidInput)
	}

	if _, err := u.userRepo.GetUserByEmail(ctx, params.Email); err == nil {
		return nil, ErrUserAlreadyExists
	} else if !errors.Is(err, repository.ErrUserNotFound) {
		return nil, err
	}

	passwordHash, err := u.hasher.Hash(params.Password)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user, err := u.userRepo.CreateUser(ctx, &model.User{
		Name:         params.Name,
		Email:        params.Email,
		PasswordHash: passwordHash,
		Field:        params.Field,
		Education:    params.Education,
	})
	if err != nil {
		if errors.Is(err, repository.ErrDuplicateEmail) {
			return nil, ErrUserAlreadyExists
		}

		return nil, err
	}

	return user, nil
}

func (u *authUsecase) Login(ctx context.Context, params LoginParams) (*LoginResult, error) {
	if isBlank(params.Email) || isBlank(params.Password) {
		return nil, fmt.Errorf("%w: email and password are required", ErrInvalidInput)
	}

	user, err := u.userRepo.GetUserByEmail(ctx, params.Email)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, ErrInvalidCredentials
		}

		return nil, err
	}

	if ok, err := u.hasher.Verify(params.Password, user.PasswordHash); err != nil {
		return nil, fmt.Errorf("failed to verify password: %w", err)
	} else if !ok {
		return nil, ErrInvalidCredentials
	}

	tokens, err := u.tokens.Issue(ctx, user)
	if err != nil {
		return nil, err
	}
	user.RefreshToken = tokens.RefreshToken

	return &LoginResult{User: user, Tokens: tokens}, nil
}

func (u *authUsecase) RefreshToken(ctx context.Context, refreshToken string) (*authtypes.Tokens, error) {
	if refreshToken == "" {
		return nil, ErrInvalidRefreshToken
	}

	return u.tokens.Rotate(ctx, refreshToken)
}

func (u *authUsecase) GetProfile(ctx context.Context, userID string) (*model.User, error) {
	user, err := u.userRepo.GetUser(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, ErrUserNotFound
		}

		return nil, err
	}

	return user, nil
}

func (u *authUsecase) Logout(ctx context.Context, userID string) error {
	if err := u.tokens.Revoke(ctx, userID); err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return ErrUserNotFound
		}

		return err
	}

	return nil
}

func isBlank(s string) bool {
	return strings.TrimSpace(s) == ""
}
