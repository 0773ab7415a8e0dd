package model

import "time"

// Staff roles carried in the access token's role claim.
const (
	RoleAdmin   = "ADMIN"
	RoleOfficer = "OFFICER"
)

// User is a staff account from the users table. Students do not log
// in with a password; they look up their application by id and email.
type User struct {
	ID           uint64
	Email        string
	PasswordHash string
	Role         string
	IsActive     bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// RefreshToken models a row of refresh_tokens. Only the SHA-256 hash
// of the raw token is stored.
type RefreshToken struct {
	ID        uint64
	UserID    uint64
	TokenHash string
	ExpiresAt time.Time
	RevokedAt *time.Time
	CreatedAt time.Time
}
