package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/vasapolrittideah/taskdash-api/services/auth-service/internal/config"
	"github.com/vasapolrittideah/taskdash-api/services/auth-service/internal/model"
	"github.com/vasapolrittideah/taskdash-api/services/auth-service/internal/repository"
	authtypes "github.com/vasapolrittideah/taskdash-api/services/auth-service/pkg/types"
	"github.com/vasapolrittideah/taskdash-api/shared/auth"
)

var (
	ErrInvalidAccessToken  = errors.New("invalid access token")
	ErrInvalidRefreshToken = errors.New("invalid refresh token")
	ErrRefreshTokenReused  = errors.New("refresh token reused")
)

// TokenUsecase issues, verifies and rotates access/refresh token pairs.
type TokenUsecase interface {
	// Issue mints a new pair for user and stores the refresh token, replacing any prior one.
	Issue(ctx context.Context, user *model.User) (*authtypes.Tokens, error)
	VerifyAccess(ctx context.Context, token string) (*authtypes.AccessClaims, error)
	// Rotate exchanges a refresh token for a new pair. A refresh token is accepted once.
	Rotate(ctx context.Context, refreshToken string) (*authtypes.Tokens, error)
	// Revoke invalidates the stored refresh token of the user.
	Revoke(ctx context.Context, userID string) error
}

// SecurityNotifier is told about events that suggest a stolen session.
type SecurityNotifier interface {
	RefreshTokenReused(ctx context.Context, user *model.User) error
}

type tokenUsecase struct {
	userRepo repository.UserRepository
	jwtAuth  auth.JWTAuthenticator
	tokenCfg config.TokenConfig
	notifier SecurityNotifier
	logger   *zerolog.Logger
}

func NewTokenUsecase(
	userRepo repository.UserRepository,
	jwtAuth auth.JWTAuthenticator,
	tokenCfg config.TokenConfig,
	notifier SecurityNotifier,
	logger *zerolog.Logger,
) TokenUsecase {
	return &tokenUsecase{
		userRepo: userRepo,
		jwtAuth:  jwtAuth,
		tokenCfg: tokenCfg,
		notifier: notifier,
		logger:   logger,
	}
}

func (u *tokenUsecase) Issue(ctx context.Context, user *model.User) (*authtypes.Tokens, error) {
	tokens, err := u.generateTokens(user)
	if err != nil {
		return nil, err
	}

	if err := u.userRepo.SetRefreshToken(ctx, user.ID.Hex(), tokens.RefreshToken); err != nil {
		return nil, err
	}

	return tokens, nil
}

func (u *tokenUsecase) VerifyAccess(_ context.Context, token string) (*authtypes.AccessClaims, error) {
	if token == "" {
		return nil, ErrInvalidAccessToken
	}

	var claims authtypes.AccessClaims
	if _, err := u.jwtAuth.ValidateTokenWithClaims(token, u.tokenCfg.AccessTokenSecret, &claims); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidAccessToken, err)
	}
	if claims.UserID == "" {
		return nil, ErrInvalidAccessToken
	}

	return &claims, nil
}

func (u *tokenUsecase) Rotate(ctx context.Context, refreshToken string) (*authtypes.Tokens, error) {
	if refreshToken == "" {
		return nil, ErrInvalidRefreshToken
	}

	var claims authtypes.RefreshClaims
	if _, err := u.jwtAuth.ValidateTokenWithClaims(refreshToken, u.tokenCfg.RefreshTokenSecret, &claims); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidRefreshToken, err)
	}
	if claims.UserID == "" {
		return nil, ErrInvalidRefreshToken
	}

	user, err := u.userRepo.GetUser(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, ErrInvalidRefreshToken
		}

		return nil, err
	}

	if user.RefreshToken == "" {
		// Logged out or revoked.
		return nil, ErrInvalidRefreshToken
	}
	if user.RefreshToken != refreshToken {
		return nil, u.handleReuse(ctx, user, claims.ID)
	}

	tokens, err := u.generateTokens(user)
	if err != nil {
		return nil, err
	}

	swapped, err := u.userRepo.SwapRefreshToken(ctx, claims.UserID, refreshToken, tokens.RefreshToken)
	if err != nil {
		return nil, err
	}
	if !swapped {
		// A concurrent rotation of the same token won.
		return nil, u.handleReuse(ctx, user, claims.ID)
	}

	return tokens, nil
}

func (u *tokenUsecase) Revoke(ctx context.Context, userID string) error {
	return u.userRepo.ClearRefreshToken(ctx, userID)
}

func (u *tokenUsecase) handleReuse(ctx context.Context, user *model.User, tokenID string) error {
	userID := user.ID.Hex()

	u.logger.Warn().
		Str("user_id", userID).
		Str("jti", tokenID).
		Bool("revoke", u.tokenCfg.RevokeOnReuse).
		Msg("superseded refresh token presented")

	if u.notifier != nil {
		if err := u.notifier.RefreshTokenReused(ctx, user); err != nil {
			u.logger.Error().Err(err).Str("user_id", userID).Msg("failed to send refresh token reuse alert")
		}
	}

	if u.tokenCfg.RevokeOnReuse {
		if err := u.userRepo.ClearRefreshToken(ctx, userID); err != nil {
			u.logger.Error().Err(err).Str("user_id", userID).Msg("failed to revoke session after refresh token reuse")
		}
	}

	return ErrRefreshTokenReused
}

func (u *tokenUsecase) generateTokens(user *model.User) (*authtypes.Tokens, error) {
	now := time.Now()
	userID := user.ID.Hex()

	accessToken, err := u.jwtAuth.GenerateToken(authtypes.AccessClaims{
		UserID:           userID,
		Email:            user.Email,
		Name:             user.Name,
		RegisteredClaims: u.registeredClaims(now, u.tokenCfg.AccessTokenExpiresIn),
	}, u.tokenCfg.AccessTokenSecret)
	if err != nil {
		return nil, fmt.Errorf("failed to sign access token: %w", err)
	}

	refreshToken, err := u.jwtAuth.GenerateToken(authtypes.RefreshClaims{
		UserID:           userID,
		RegisteredClaims: u.registeredClaims(now, u.tokenCfg.RefreshTokenExpiresIn),
	}, u.tokenCfg.RefreshTokenSecret)
	if err != nil {
		return nil, fmt.Errorf("failed to sign refresh token: %w", err)
	}

	return &authtypes.Tokens{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
	}, nil
}

func (u *tokenUsecase) registeredClaims(now time.Time, expiresIn time.Duration) jwt.RegisteredClaims {
	return jwt.RegisteredClaims{
		ID:        uuid.NewString(),
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(expiresIn)),
		NotBefore: jwt.NewNumericDate(now),
		Issuer:    u.jwtAuth.Issuer(),
		Audience:  jwt.ClaimStrings{u.jwtAuth.Audience()},
	}
}
