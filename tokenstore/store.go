package tokenstore

import "github.com/BikyaITI/bikya-go-client/identity"

// Tokens is the persisted credential set. Field names match the storage keys
// the browser client used, so a session written by either client restores in
// the other.
type Tokens struct {
	AccessToken  string             `json:"token"`
	RefreshToken string             `json:"refreshToken"`
	User         *identity.Identity `json:"user,omitempty"`
}

// Repo persists the credential set across process restarts. Implementations
// perform no validation; they are pure storage.
type Repo interface {
	// Save atomically replaces the stored credential set.
	Save(tokens *Tokens) error
	// Get returns the stored credential set, or nil when nothing is stored.
	Get() (*Tokens, error)
	// Clear removes any stored credentials. Safe to call when already empty.
	Clear() error
}
