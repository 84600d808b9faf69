package models

import "time"

type AccessToken struct {
	Token     string    `json:"access_token"`
	ExpiresAt time.Time `json:"expires_at"`
}

// ValidFor reports whether the token is still usable for at least skew.
func (t *AccessToken) ValidFor(now time.Time, skew time.Duration) bool {
	if t == nil || t.Token == "" {
		return false
	}
	return now.Add(skew).Before(t.ExpiresAt)
}
