package handler

import (
	"encoding/json"
	"errors"
	"io"
	"mime"
	"net/http"

	"github.com/rs/zerolog/hlog"

	"github.com/vasapolrittideah/taskdash-api/services/auth-service/internal/payload"
	"github.com/vasapolrittideah/taskdash-api/services/auth-service/internal/usecase"
)

func (h *authHTTPHandler) register(w http.ResponseWriter, r *http.Request) {
	var req payload.RegisterRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if err := h.validator.Struct(req); err != nil {
		writeError(w, r, err)
		return
	}

	user, err := h.authUsecase.Register(r.Context(), usecase.RegisterParams{
		Name:      req.Name,
		Email:     req.Email,
		Password:  req.Password,
		Field:     req.Field,
		Education: req.Education,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeSuccess(w, http.StatusCreated, "User registered successfully", user)
}

func (h *authHTTPHandler) login(w http.ResponseWriter, r *http.Request) {
	var req payload.LoginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if err := h.validator.Struct(req); err != nil {
		writeError(w, r, err)
		return
	}

	result, err := h.authUsecase.Login(r.Context(), usecase.LoginParams{
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}

	h.binder.Attach(w, result.Tokens)
	writeSuccess(w, http.StatusOK, "User logged in successfully", payload.LoginResponse{
		User:         result.User,
		AccessToken:  result.Tokens.AccessToken,
		RefreshToken: result.Tokens.RefreshToken,
	})
}

func (h *authHTTPHandler) refreshToken(w http.ResponseWriter, r *http.Request) {
	defer removeMultipartForm(r)

	token := h.binder.ExtractRefreshToken(r, func() string {
		return refreshTokenFromBody(w, r)
	})
	if token == "" {
		writeJSON(w, http.StatusUnauthorized, payload.Response{Message: "Refresh token is required"})
		return
	}

	tokens, err := h.authUsecase.RefreshToken(r.Context(), token)
	if err != nil {
		writeError(w, r, err)
		return
	}

	h.binder.Attach(w, tokens)
	writeSuccess(w, http.StatusOK, "Access token refreshed", payload.RefreshTokenResponse{
		AccessToken:  tokens.AccessToken,
		RefreshToken: tokens.RefreshToken,
	})
}

// refreshTokenFromBody reads refreshToken from a JSON or form encoded body. A body that
// cannot be read yields no token.
func refreshTokenFromBody(w http.ResponseWriter, r *http.Request) string {
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBodyBytes)

	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	switch mediaType {
	case "application/x-www-form-urlencoded", "multipart/form-data":
		return r.PostFormValue("refreshToken")
	}

	var req payload.RefreshTokenRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		if !errors.Is(err, io.EOF) {
			hlog.FromRequest(r).Debug().Err(err).Msg("unreadable refresh token body")
		}
		return ""
	}

	return req.RefreshToken
}

func (h *authHTTPHandler) profile(w http.ResponseWriter, r *http.Request) {
	claims, ok := ClaimsFromContext(r.Context())
	if !ok {
		writeError(w, r, errUnauthorized)
		return
	}

	user, err := h.authUsecase.GetProfile(r.Context(), claims.UserID)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeSuccess(w, http.StatusOK, "", user)
}

func (h *authHTTPHandler) logout(w http.ResponseWriter, r *http.Request) {
	claims, ok := ClaimsFromContext(r.Context())
	if !ok {
		writeError(w, r, errUnauthorized)
		return
	}

	if err := h.authUsecase.Logout(r.Context(), claims.UserID); err != nil {
		writeError(w, r, err)
		return
	}

	h.binder.Clear(w)
	writeSuccess(w, http.StatusOK, "User logged out successfully", nil)
}

func (h *authHTTPHandler) health(w http.ResponseWriter, r *http.Request) {
	if h.healthCheck != nil {
		if err := h.healthCheck(r.Context()); err != nil {
			hlog.FromRequest(r).Warn().Err(err).Msg("health check failed")
			writeJSON(w, http.StatusServiceUnavailable, payload.Response{Message: "unhealthy"})
			return
		}
	}

	writeSuccess(w, http.StatusOK, "ok", nil)
}
