package models

import (
	"strings"
	"time"
)

// User represents a user in the system
type User struct {
	ID        string    `bson:"-" json:"id"`
	Name      string    `bson:"name" json:"name"`
	Email     string    `bson:"email" json:"email"`
	Password  string    `bson:"password" json:"password"`
	IsAdmin   bool      `bson:"isAdmin" json:"isAdmin"`
	CreatedAt time.Time `bson:"createdAt" json:"createdAt"`
}

// PublicUser is the user profile returned to clients
type PublicUser struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	IsAdmin   bool      `json:"isAdmin"`
	CreatedAt time.Time `json:"createdAt,omitempty"`
}

func (u *User) GetID() string   { return u.ID }
func (u *User) SetID(id string) { u.ID = id }

// Prepare fills creation defaults
func (u *User) Prepare(_ int, now time.Time) {
	u.Email = NormalizeEmail(u.Email)
	if u.CreatedAt.IsZero() {
		u.CreatedAt = now
	}
}

// Validate checks the required user fields
func (u *User) Validate() error {
	switch {
	case strings.TrimSpace(u.Name) == "":
		return &ValidationError{Field: "name", Message: "name is required"}
	case u.Email == "" || !strings.Contains(u.Email, "@"):
		return &ValidationError{Field: "email", Message: "a valid email is required"}
	case u.Password == "":
		return &ValidationError{Field: "password", Message: "password is required"}
	}
	return nil
}

// Public strips the password hash
func (u *User) Public() PublicUser {
	return PublicUser{
		ID:        u.ID,
		Name:      u.Name,
		Email:     u.Email,
		IsAdmin:   u.IsAdmin,
		CreatedAt: u.CreatedAt,
	}
}

// NormalizeEmail lowercases and trims an address so lookups are case-insensitive
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
