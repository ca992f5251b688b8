package domain

import "time"

// FederatedIdentity links an account at an external OpenID provider to one
// local user. Both sides of the link are unique.
type FederatedIdentity struct {
	ID         string
	Provider   string // e.g. "steam"
	ExternalID string
	UserID     string
	CreatedAt  time.Time
}
