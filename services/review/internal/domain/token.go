package domain

import "time"

// TokenState is a user's OAuth credential pair for the external directory.
type TokenState struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	ExpiresAt    time.Time `json:"expires_at"`
}

// ExpiredAt reports whether the access token is unusable at now. skew treats a
// token that expires within that margin as already expired.
func (t TokenState) ExpiredAt(now time.Time, skew time.Duration) bool {
	if t.AccessToken == "" {
		return true
	}
	if t.ExpiresAt.IsZero() {
		return false
	}
	return !now.Add(skew).Before(t.ExpiresAt)
}
