package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rs/zerolog/hlog"

	"github.com/vasapolrittideah/taskdash-api/services/auth-service/internal/payload"
	"github.com/vasapolrittideah/taskdash-api/services/auth-service/internal/upload"
	"github.com/vasapolrittideah/taskdash-api/services/auth-service/internal/usecase"
	"github.com/vasapolrittideah/taskdash-api/shared/provider"
	"github.com/vasapolrittideah/taskdash-api/shared/validation"
)

const maxJSONBodyBytes = 1 << 20

var (
	errMalformedBody = errors.New("malformed request body")
	errRateLimited   = errors.New("rate limit exceeded")
	errUnauthorized  = errors.New("unauthorized")
)

func writeJSON(w http.ResponseWriter, status int, body payload.Response) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeSuccess(w http.ResponseWriter, status int, message string, data any) {
	writeJSON(w, status, payload.Response{Success: true, Message: message, Data: data})
}

// writeError translates err into a status and a client safe message. Details of
// unexpected errors are logged and never returned.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, message := classifyError(err)

	logger := hlog.FromRequest(r)
	if status >= http.StatusInternalServerError {
		logger.Error().Err(err).Int("status", status).Msg("request failed")
	} else {
		logger.Debug().Err(err).Int("status", status).Msg("request rejected")
	}

	writeJSON(w, status, payload.Response{Success: false, Message: message})
}

func classifyError(err error) (int, string) {
	var (
		validationErr  *validation.Error
		recognitionErr *provider.RecognitionError
	)

	switch {
	case errors.As(err, &validationErr):
		return http.StatusBadRequest, validationErr.Error()
	case errors.Is(err, errMalformedBody):
		return http.StatusBadRequest, "Invalid request body"
	case errors.Is(err, upload.ErrImageTooLarge):
		return http.StatusBadRequest, "Image is too large"
	case errors.Is(err, usecase.ErrInvalidInput):
		return http.StatusBadRequest, "Missing required fields"
	case errors.Is(err, usecase.ErrImageRequired):
		return http.StatusBadRequest, "Face image is required"
	case errors.Is(err, usecase.ErrUserIDRequired):
		return http.StatusBadRequest, "User ID is required"
	case errors.Is(err, upload.ErrEmptyImage):
		return http.StatusBadRequest, "Face image is required"
	case errors.Is(err, upload.ErrUnsupportedImage):
		return http.StatusBadRequest, "Only JPEG and PNG images are allowed"
	case errors.Is(err, usecase.ErrUserAlreadyExists):
		return http.StatusConflict, "User with email already exists"
	case errors.Is(err, usecase.ErrInvalidCredentials):
		return http.StatusUnauthorized, "Invalid email or password"
	case errors.Is(err, usecase.ErrInvalidRefreshToken), errors.Is(err, usecase.ErrRefreshTokenReused):
		return http.StatusUnauthorized, "Invalid refresh token"
	case errors.Is(err, usecase.ErrInvalidAccessToken), errors.Is(err, errUnauthorized):
		return http.StatusUnauthorized, "Unauthorized request"
	case errors.Is(err, provider.ErrFaceNotRecognized):
		return http.StatusUnauthorized, "Face not recognized"
	case errors.Is(err, usecase.ErrUserNotFound):
		return http.StatusNotFound, "User not found"
	case errors.Is(err, errRateLimited):
		return http.StatusTooManyRequests, "Too many requests, please try again later"
	case errors.As(err, &recognitionErr):
		status := recognitionErr.StatusCode
		if status < http.StatusBadRequest {
			status = http.StatusBadGateway
		}
		message := recognitionErr.Message
		if message == "" {
			message = "Face recognition failed"
		}
		return status, message
	case errors.Is(err, provider.ErrBadRecognitionResponse):
		return http.StatusBadGateway, "Face recognition failed"
	case errors.Is(err, provider.ErrRecognitionUnavailable):
		return http.StatusServiceUnavailable, "Face recognition service unavailable"
	default:
		return http.StatusInternalServerError, "Something went wrong"
	}
}

// decodeJSON decodes the request body into dst.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBodyBytes)

	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return errors.Join(errMalformedBody, err)
	}

	return nil
}
