package payload

import (
	"github.com/vasapolrittideah/taskdash-api/services/auth-service/internal/model"
)

type RegisterRequest struct {
	Name      string `json:"name"      validate:"required,notblank"`
	Email     string `json:"email"     validate:"required,notblank"`
	Password  string `json:"password"  validate:"required,notblank"`
	Field     string `json:"field"     validate:"omitempty,max=100"`
	Education string `json:"education" validate:"omitempty,max=200"`
}

type LoginRequest struct {
	Email    string `json:"email"    validate:"required,notblank"`
	Password string `json:"password" validate:"required"`
}

type LoginResponse struct {
	User         *model.User `json:"user"`
	AccessToken  string      `json:"accessToken"`
	RefreshToken string      `json:"refreshToken"`
}

// RefreshTokenRequest is optional; browsers send the token in a cookie instead.
type RefreshTokenRequest struct {
	RefreshToken string `json:"refreshToken"`
}

type RefreshTokenResponse struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

type FaceLoginResponse struct {
	User        model.PublicUser `json:"user"`
	AccessToken string           `json:"accessToken"`
}

// Response is the envelope of every JSON response.
type Response struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	Data    any    `json:"data,omitempty"`
}
