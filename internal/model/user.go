package model

import (
	"net/mail"
	"regexp"
	"strings"
	"time"

	"github.com/iliyamo/patient-records/internal/apperr"
)

// Role is the privilege level of a user account.
type Role string

const (
	RoleSuperAdmin Role = "SuperAdmin"
	RoleAdmin      Role = "Admin"
	RoleDoctor     Role = "Doctor"
)

// rank orders roles for elevation checks. Doctor ranks lowest and may
// create nobody; ownership of patients is a separate relation.
var rank = map[Role]int{
	RoleDoctor:     1,
	RoleAdmin:      2,
	RoleSuperAdmin: 3,
}

// ParseRole accepts a role name in any letter case.
func ParseRole(s string) (Role, error) {
	s = strings.TrimSpace(s)
	for r := range rank {
		if strings.EqualFold(s, string(r)) {
			return r, nil
		}
	}
	return "", apperr.With(apperr.InvalidRoleValue, "role", s).Errorf("unknown role %q", s)
}

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	_, ok := rank[r]
	return ok
}

// CanCreate reports whether a user with role r may create, or manage, a
// user with role target. SuperAdmin manages everyone, Admin manages Admin
// and Doctor, Doctor manages nobody.
func (r Role) CanCreate(target Role) bool {
	if !target.Valid() {
		return false
	}
	switch r {
	case RoleSuperAdmin:
		return true
	case RoleAdmin:
		return rank[target] <= rank[RoleAdmin]
	default:
		return false
	}
}

// User mirrors the `users` table. PasswordHash never leaves the service
// layer; handlers render users through their own response type.
type User struct {
	ID            uint64
	Username      string
	Email         string
	PasswordHash  string
	Role          Role
	IsDeactivated bool
	DateCreated   time.Time
	DateEdited    time.Time
}

var usernamePattern = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9_.-]{2,31}$`)

// NormalizeAccount trims username and email, lower-cases the email and
// checks both formats. Usernames are 3 to 32 characters from letters,
// digits, '_', '.' and '-', starting with a letter.
func NormalizeAccount(username, email string) (string, string, error) {
	username = strings.TrimSpace(username)
	email = strings.ToLower(strings.TrimSpace(email))
	if !usernamePattern.MatchString(username) {
		return "", "", apperr.With(apperr.InvalidInput, "field", "username").Errorf("username must be 3-32 letters, digits, '_', '.' or '-' and start with a letter")
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return "", "", apperr.With(apperr.InvalidInput, "field", "email").Errorf("email is not a valid address")
	}
	return username, email, nil
}

// RefreshToken models a row of `refresh_tokens`. Only the SHA-256 hex
// digest of the token is stored. A user has at most one row.
type RefreshToken struct {
	ID          uint64
	UserID      uint64
	TokenHash   string
	Expiry      time.Time
	DateCreated time.Time
}

// ExpiredAt reports whether the token is no longer redeemable at t.
func (t *RefreshToken) ExpiredAt(now time.Time) bool {
	return !now.Before(t.Expiry)
}
