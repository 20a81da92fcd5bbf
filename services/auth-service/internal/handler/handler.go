package handler

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/vasapolrittideah/taskdash-api/services/auth-service/internal/session"
	"github.com/vasapolrittideah/taskdash-api/services/auth-service/internal/upload"
	"github.com/vasapolrittideah/taskdash-api/services/auth-service/internal/usecase"
	"github.com/vasapolrittideah/taskdash-api/shared/validation"
)

// HealthCheck reports whether the service's dependencies are reachable.
type HealthCheck func(ctx context.Context) error

type authHTTPHandler struct {
	authUsecase  usecase.AuthUsecase
	faceUsecase  usecase.FaceUsecase
	tokenUsecase usecase.TokenUsecase
	binder       *session.Binder
	uploads      *upload.Store
	validator    *validation.Validator
	healthCheck  HealthCheck
	logger       *zerolog.Logger
}

func newAuthHTTPHandler(
	authUsecase usecase.AuthUsecase,
	faceUsecase usecase.FaceUsecase,
	tokenUsecase usecase.TokenUsecase,
	binder *session.Binder,
	uploads *upload.Store,
	validator *validation.Validator,
	healthCheck HealthCheck,
	logger *zerolog.Logger,
) *authHTTPHandler {
	return &authHTTPHandler{
		authUsecase:  authUsecase,
		faceUsecase:  faceUsecase,
		tokenUsecase: tokenUsecase,
		binder:       binder,
		uploads:      uploads,
		validator:    validator,
		healthCheck:  healthCheck,
		logger:       logger,
	}
}
