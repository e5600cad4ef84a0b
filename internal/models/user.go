package models

import (
	"errors"
	"strings"
	"time"
)

// ErrInvalidRole is returned by ParseRole for unknown role strings.
var ErrInvalidRole = errors.New("invalid role")

// Role is the platform role of a user. The set is closed; the string value is only the wire/storage form.
type Role string

const (
	RoleGuest Role = "guest"
	RoleAdmin Role = "admin"
	RoleHost  Role = "host"
)

// ParseRole converts a wire string to a Role.
func ParseRole(s string) (Role, error) {
	switch Role(strings.ToLower(strings.TrimSpace(s))) {
	case RoleGuest:
		return RoleGuest, nil
	case RoleAdmin:
		return RoleAdmin, nil
	case RoleHost:
		return RoleHost, nil
	}
	return "", ErrInvalidRole
}

// IsStaff reports whether the role may run webinars (Host or Admin).
func (r Role) IsStaff() bool {
	return r == RoleHost || r == RoleAdmin
}

// User represents a platform user identified by mobile number.
type User struct {
	ID               int64      `json:"id"`
	Mobile           string     `json:"mobile"`
	Name             string     `json:"name"`
	Email            string     `json:"email,omitempty"`
	City             string     `json:"city,omitempty"`
	State            string     `json:"state,omitempty"`
	Country          string     `json:"country,omitempty"`
	Role             Role       `json:"role"`
	PasswordHash     string     `json:"-"`
	IsMobileVerified bool       `json:"is_mobile_verified"`
	IsEmailVerified  bool       `json:"is_email_verified"`
	IsActive         bool       `json:"is_active"`
	CreatedAt        time.Time  `json:"created_at"`
	LastLoginAt      *time.Time `json:"last_login_at,omitempty"`
}
