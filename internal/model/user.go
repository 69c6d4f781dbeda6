package model

import (
	"time"

	"gorm.io/datatypes"
)

const (
	ThemeLight  = "light"
	ThemeDark   = "dark"
	ThemeSystem = "system"

	ViewGrid = "grid"
	ViewList = "list"
)

type UserPreferences struct {
	Theme       string `json:"theme"`
	DefaultView string `json:"default_view"`
}

func DefaultPreferences() UserPreferences {
	return UserPreferences{Theme: ThemeLight, DefaultView: ViewGrid}
}

type User struct {
	ID           uint                                `gorm:"primaryKey" json:"id"`
	Name         string                              `gorm:"size:64;not null" json:"name"`
	Email        string                              `gorm:"size:128;not null;uniqueIndex" json:"email"`
	PasswordHash string                              `gorm:"size:255;not null" json:"-"`
	Avatar       string                              `gorm:"size:512" json:"avatar"`
	Preferences  datatypes.JSONType[UserPreferences] `json:"preferences"`
	CreatedAt    time.Time                           `json:"created_at"`
	UpdatedAt    time.Time                           `json:"updated_at"`
}

type RefreshToken struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	UserID    uint      `gorm:"not null;index" json:"user_id"`
	TokenHash string    `gorm:"size:64;not null;uniqueIndex" json:"-"`
	ExpiresAt time.Time `gorm:"not null" json:"expires_at"`
	CreatedAt time.Time `json:"created_at"`
}
