// internal/session/session.go
//
// Shared types for the auth session: the adapter state machine, the
// normalized user profile, and the token held between refreshes.

package session

import (
	"errors"
	"time"
)

// ErrAuthenticationRequired is returned whenever a caller needs a token and
// none can be produced, including after a failed refresh. Callers should
// react by starting the login flow.
var ErrAuthenticationRequired = errors.New("session: authentication required")

// State is the adapter lifecycle state.
type State int

const (
	StateUninitialized State = iota
	StateInitializing
	StateAuthenticated
	StateAnonymous
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateInitializing:
		return "initializing"
	case StateAuthenticated:
		return "authenticated"
	case StateAnonymous:
		return "anonymous"
	}
	return "unknown"
}

// User is the profile extracted from the identity token.
type User struct {
	ID        string `json:"id"`
	Username  string `json:"username"`
	Email     string `json:"email,omitempty"`
	FirstName string `json:"firstName,omitempty"`
	LastName  string `json:"lastName,omitempty"`
	FullName  string `json:"fullName,omitempty"`
}

// DisplayName returns the best human-readable name available.
func (u User) DisplayName() string {
	if u.FullName != "" {
		return u.FullName
	}
	if u.Username != "" {
		return u.Username
	}
	return u.Email
}

// Token is the credential pair held by the adapter and persisted between
// runs so a session survives restarts.
type Token struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token,omitempty"`
	Expiry       time.Time `json:"expiry"`
}

// ExpiresWithin reports whether the token expires within margin of now.
// Tokens without an expiry are treated as already stale.
func (t *Token) ExpiresWithin(margin time.Duration, now time.Time) bool {
	if t == nil || t.AccessToken == "" || t.Expiry.IsZero() {
		return true
	}
	return now.Add(margin).After(t.Expiry)
}
