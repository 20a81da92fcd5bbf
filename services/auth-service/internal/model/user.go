package model

import (
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
)

const (
	DefaultTheme          = "dark"
	DefaultViewPreference = "kanban"
	DefaultField          = "Others"
)

// User represents a registered dashboard user.
type User struct {
	ID             bson.ObjectID `bson:"_id,omitempty"           json:"_id"`
	Name           string        `bson:"name"                    json:"name"`
	Email          string        `bson:"email"                   json:"email"`
	PasswordHash   string        `bson:"password_hash"           json:"-"`
	RefreshToken   string        `bson:"refresh_token,omitempty" json:"-"`
	ThemeSettings  string        `bson:"theme_settings"          json:"themeSettings"`
	ViewPreference string        `bson:"view_preference"         json:"viewPreference"`
	Field          string        `bson:"field"                   json:"field"`
	Education      string        `bson:"education,omitempty"     json:"education,omitempty"`
	CreatedAt      time.Time     `bson:"created_at"              json:"createdAt"`
	UpdatedAt      time.Time     `bson:"updated_at"              json:"updatedAt"`
}

// ApplyDefaults fills the profile preferences a new user starts with.
func (u *User) ApplyDefaults() {
	if u.ThemeSettings == "" {
		u.ThemeSettings = DefaultTheme
	}
	if u.ViewPreference == "" {
		u.ViewPreference = DefaultViewPreference
	}
	if u.Field == "" {
		u.Field = DefaultField
	}
}

// PublicUser is the minimal identity projection returned by face login.
type PublicUser struct {
	ID    string `json:"_id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

// Public returns the minimal identity projection of u.
func (u *User) Public() PublicUser {
	return PublicUser{
		ID:    u.ID.Hex(),
		Name:  u.Name,
		Email: u.Email,
	}
}
