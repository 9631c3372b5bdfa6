package model

import (
	"errors"
	"fmt"
	"time"
)

// View modes for the dashboard.
const (
	ViewList  = "list"
	ViewBoard = "board"
)

// Theme values.
const (
	ThemeLight = "light"
	ThemeDark  = "dark"
)

// Preferences holds per-user dashboard settings.
type Preferences struct {
	Theme              string `json:"theme"`
	DefaultView        string `json:"default_view"`
	EmailNotifications bool   `json:"email_notifications"`
}

// DefaultPreferences returns the preferences given to a new profile.
func DefaultPreferences() Preferences {
	return Preferences{
		Theme:              ThemeLight,
		DefaultView:        ViewList,
		EmailNotifications: true,
	}
}

// ErrInvalidPreferences is wrapped by preference validation failures.
var ErrInvalidPreferences = errors.New("invalid preferences")

// Validate checks the enumerated fields.
func (p Preferences) Validate() error {
	if p.Theme != ThemeLight && p.Theme != ThemeDark {
		return fmt.Errorf("%w: unknown theme %q", ErrInvalidPreferences, p.Theme)
	}
	if p.DefaultView != ViewList && p.DefaultView != ViewBoard {
		return fmt.Errorf("%w: unknown view %q", ErrInvalidPreferences, p.DefaultView)
	}
	return nil
}

// UserProfile is the identity record created on first sign-in.
type UserProfile struct {
	UID         string      `json:"uid" db:"uid"`
	DisplayName string      `json:"display_name" db:"display_name"`
	Email       string      `json:"email" db:"email"`
	PhotoURL    string      `json:"photo_url" db:"photo_url"`
	CreatedAt   time.Time   `json:"created_at" db:"created_at"`
	LastLogin   time.Time   `json:"last_login" db:"last_login"`
	Preferences Preferences `json:"preferences" db:"-"`
}

// Session binds an opaque bearer token to a signed-in user.
type Session struct {
	Token     string    `json:"token" db:"token"`
	UserID    string    `json:"user_id" db:"user_id"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}
