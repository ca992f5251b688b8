package domain

import "time"

// TokenPair is what a login or refresh hands back.
type TokenPair struct {
	AccessToken      string
	RefreshToken     string
	TokenType        string // "Bearer"
	AccessExpiresAt  time.Time
	RefreshExpiresAt time.Time
	Scopes           []string
	SessionID        string
}

// Principal is a decoded token's identity.
type Principal struct {
	UserID    string
	Scopes    []string
	Secret    string // secret salt snapshot
	SessionID string
	ExpiresAt time.Time
}

// HasScopes reports whether every scope in required was granted.
func (p Principal) HasScopes(required ...string) bool {
	have := make(map[string]struct{}, len(p.Scopes))
	for _, s := range p.Scopes {
		have[s] = struct{}{}
	}
	for _, s := range required {
		if _, ok := have[s]; !ok {
			return false
		}
	}
	return true
}
