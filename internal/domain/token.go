package domain

import "time"

// AccessToken is a server-side session record. Only the digest of the raw
// bearer token is stored; the raw value exists solely in the client cookie.
type AccessToken struct {
	ID        string
	TokenHash string
	UserID    int64
	Scope     []string
	ExpiresAt time.Time
	Revoked   bool
	CreatedAt time.Time
}

// Active reports whether the token grants access at the given instant.
func (t *AccessToken) Active(now time.Time) bool {
	return t != nil && !t.Revoked && t.ExpiresAt.After(now)
}
