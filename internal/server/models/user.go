// Package models holds the persistent entities of the service.
package models

import "time"

// Role is the closed set of privilege levels a user can hold.
type Role string

const (
	RoleUser  Role = "USER"
	RoleAdmin Role = "ADMIN"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	return r == RoleUser || r == RoleAdmin
}

// User is a registered account. Email is unique across all users and serves
// as the login handle. PasswordHash is a bcrypt digest; the plaintext is
// never stored.
type User struct {
	ID           string
	Email        string
	Name         string
	PasswordHash string
	Role         Role
	CreatedAt    time.Time
}
