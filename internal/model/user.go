// Package model defines the data structures used throughout the application.
package model

import "time"

// User represents a registered account.
//
// An account is created either by email/password registration or by the first
// Google sign-in. PasswordHash and GoogleID are both optional, but at least one
// of them is always set: the service layer never creates a user without a way
// to sign back in.
//
// WHY json:"-" ON PasswordHash?
// The hash must never leave the server, not even by accident when a handler
// encodes a *User directly. Handlers still respond with PublicUser.
type User struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Email        string    `json:"email"` // always stored lowercased
	PasswordHash string    `json:"-"`
	GoogleID     string    `json:"googleId,omitempty"`
	Avatar       string    `json:"avatar,omitempty"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// PublicUser is the redacted view returned by the auth endpoints.
type PublicUser struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Email  string `json:"email"`
	Avatar string `json:"avatar,omitempty"`
}

// Public returns the redacted view of u.
func (u *User) Public() PublicUser {
	return PublicUser{
		ID:     u.ID,
		Name:   u.Name,
		Email:  u.Email,
		Avatar: u.Avatar,
	}
}
