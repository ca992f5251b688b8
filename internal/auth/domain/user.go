package domain

import "time"

type User struct {
	ID           string
	Username     string
	Email        string // stored lowercased
	PasswordHash string // argon2id PHC string

	// SecretSalt is the per-account revocation nonce. Every token embeds the
	// value current at issue time; rotating it revokes all of them.
	SecretSalt string

	IsActivated bool
	IsSuperuser bool
	Roles       []Role // in assignment order

	LastLoginAt *time.Time
	LastSeenAt  *time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// HasRole reports whether the user holds the role tagged tag.
func (u User) HasRole(tag string) bool {
	for _, r := range u.Roles {
		if r.Tag == tag {
			return true
		}
	}
	return false
}

// RoleTags lists the user's role tags in assignment order.
func (u User) RoleTags() []string {
	tags := make([]string, len(u.Roles))
	for i, r := range u.Roles {
		tags[i] = r.Tag
	}
	return tags
}
