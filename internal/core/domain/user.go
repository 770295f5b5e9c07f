package domain

import (
	"strings"
	"time"
)

type Role string

const (
	RoleManager  Role = "manager"
	RoleEmployee Role = "employee"
)

func (r Role) Valid() bool {
	return r == RoleManager || r == RoleEmployee
}

const (
	MinUsernameLength = 3
	MinPasswordLength = 6
	// MaxPasswordLength is the bcrypt input limit, in bytes.
	MaxPasswordLength = 72
)

// PasswordProblem returns what is wrong with a candidate password, or "".
func PasswordProblem(password string) string {
	switch {
	case len(password) < MinPasswordLength:
		return "must be at least 6 characters"
	case len(password) > MaxPasswordLength:
		return "must be at most 72 bytes"
	}
	return ""
}

type User struct {
	ID           int64
	Username     string
	PasswordHash string
	Email        string
	Role         Role
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Principal is the authenticated caller carried in a request context.
type Principal struct {
	UserID   int64
	Username string
	Role     Role
}

func (p Principal) IsManager() bool {
	return p.Role == RoleManager
}

// NewUser holds the input for registration and employee creation.
type NewUser struct {
	Username string
	Password string
	Email    string
	Role     Role
}

func (n NewUser) Validate() error {
	v := ValidationErrors{}
	if len(strings.TrimSpace(n.Username)) < MinUsernameLength {
		v.Add("username", "username must be at least 3 characters")
	}
	if problem := PasswordProblem(n.Password); problem != "" {
		v.Add("password", "password "+problem)
	}
	if n.Email != "" && !LooksLikeEmail(n.Email) {
		v.Add("email", "invalid email format")
	}
	if n.Role != "" && !n.Role.Valid() {
		v.Add("role", "invalid role")
	}
	return v.Err()
}

// UserPatch is a partial update; empty strings leave fields unchanged.
type UserPatch struct {
	Username string
	Password string
	Email    string
	Role     Role
}

func (p UserPatch) Validate() error {
	v := ValidationErrors{}
	if p.Username != "" && len(strings.TrimSpace(p.Username)) < MinUsernameLength {
		v.Add("username", "username must be at least 3 characters")
	}
	if p.Password != "" {
		if problem := PasswordProblem(p.Password); problem != "" {
			v.Add("password", "password "+problem)
		}
	}
	if p.Email != "" && !LooksLikeEmail(p.Email) {
		v.Add("email", "invalid email format")
	}
	if p.Role != "" && !p.Role.Valid() {
		v.Add("role", "invalid role")
	}
	return v.Err()
}
