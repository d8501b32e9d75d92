package domain

import (
	"fmt"
	"time"
)

// User is the ownership principal. Every project, document, chunk and
// conversation belongs to exactly one user.
type User struct {
	ID        string
	Email     string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// NewUser creates a new User instance
func NewUser(id, email string, createdAt time.Time) *User {
	return &User{
		ID:        id,
		Email:     email,
		CreatedAt: createdAt,
		UpdatedAt: createdAt,
	}
}

// ValidateUser validates a User instance
func ValidateUser(u *User) error {
	if u == nil {
		return fmt.Errorf("user cannot be nil")
	}

	if u.ID == "" {
		return fmt.Errorf("user ID is required")
	}

	if u.Email == "" {
		return fmt.Errorf("user Email is required")
	}

	return nil
}
