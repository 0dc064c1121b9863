// Package model defines the data structures used throughout the application.
package model

import "time"

// Account is a signed-in identity recorded in the account registry.
//
// One row exists per (Provider, ProviderUserID) pair: signing in with Google
// and with GitHub as the same person yields two accounts. ID is our own xid
// and is what the session token carries as its subject.
type Account struct {
	ID             string    `json:"id"             db:"id"`
	Provider       string    `json:"provider"       db:"provider"`         // "github" or "google"
	ProviderUserID string    `json:"providerUserId" db:"provider_user_id"` // stable id at the provider
	Login          string    `json:"login"          db:"login"`            // may be empty (Google has none)
	Name           string    `json:"name"           db:"name"`
	Email          string    `json:"email"          db:"email"`
	AvatarURL      string    `json:"avatarUrl"      db:"avatar_url"`
	CreatedAt      time.Time `json:"createdAt"      db:"created_at"`
	UpdatedAt      time.Time `json:"updatedAt"      db:"updated_at"`
}

// DisplayName is the account's name, falling back to its email.
func (a *Account) DisplayName() string {
	if a.Name != "" {
		return a.Name
	}
	return a.Email
}
