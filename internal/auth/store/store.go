package store

import (
	"context"
	"errors"
	"time"

	"github.com/aussiebroadwan/tavern/internal/auth/domain"
)

var (
	ErrNotFound      = errors.New("store: not found")
	ErrAlreadyExists = errors.New("store: already exists")
)

// Store is the durable account store. Concrete drivers (sqlite) implement
// this. It exposes sub-repositories so a Tx-scoped Store can hand out the same
// repos bound to the transaction, and so nested transactions cannot be started
// by accident.
type Store interface {
	Users() Users
	Roles() Roles
	Scopes() Scopes
	FederatedIdentities() FederatedIdentities

	ApplyMigrations() error

	// Tx starts a read/write transaction and returns a Tx-scoped Store.
	// The caller MUST call Commit() or Rollback() on the returned Tx.
	Tx(ctx context.Context) (Tx, error)

	// WithTx runs fn in a transaction, committing when fn returns nil and
	// rolling back otherwise.
	WithTx(ctx context.Context, fn func(tx Tx) error) error

	Close() error
	Ping(ctx context.Context) error
}

// Tx is a transactional store. It embeds the same repos but adds Commit/Rollback.
type Tx interface {
	Store
	Commit() error
	Rollback() error
}

type Users interface {
	// GetUserByID returns a user with roles and their scopes loaded.
	GetUserByID(ctx context.Context, id string) (domain.User, error)
	GetUserByUsername(ctx context.Context, username string) (domain.User, error)
	// GetUserByEmail matches case-insensitively.
	GetUserByEmail(ctx context.Context, email string) (domain.User, error)

	// CreateUser inserts the user and assigns u.Roles in order. A username or
	// email collision is ErrAlreadyExists, without saying which.
	CreateUser(ctx context.Context, u domain.User) error

	// UpdatePassword sets a new hash and secret salt together.
	UpdatePassword(ctx context.Context, userID, passwordHash, secretSalt string) error
	UpdateSecretSalt(ctx context.Context, userID, secretSalt string) error
	// UpdateEmail returns ErrAlreadyExists when another account owns email.
	UpdateEmail(ctx context.Context, userID, email string) error
	SetActivated(ctx context.Context, userID string, activated bool) error

	// TouchLastLogin sets both last_login_at and last_seen_at.
	TouchLastLogin(ctx context.Context, userID string, at time.Time) error
	TouchLastSeen(ctx context.Context, userID string, at time.Time) error
	// TouchUpdated sets updated_at. Resending an activation code uses it to
	// restart the pruning window.
	TouchUpdated(ctx context.Context, userID string, at time.Time) error

	// AssignRole appends roleID to the user's roles; assigning a held role
	// is a no-op.
	AssignRole(ctx context.Context, userID, roleID string) error
	RemoveRole(ctx context.Context, userID, roleID string) error

	// DeleteUnactivatedBefore removes never-activated accounts not updated
	// since cutoff and reports how many went.
	DeleteUnactivatedBefore(ctx context.Context, cutoff time.Time) (int64, error)

	// IsEmpty returns true if there are no users.
	IsEmpty(ctx context.Context) (bool, error)
}

type Roles interface {
	// GetRoleByID and GetRoleByTag load the role's scopes in order.
	GetRoleByID(ctx context.Context, id string) (domain.Role, error)
	GetRoleByTag(ctx context.Context, tag string) (domain.Role, error)
	ListAll(ctx context.Context) ([]domain.Role, error)

	// CreateRole inserts r and links r.Scopes, which must already exist.
	CreateRole(ctx context.Context, r domain.Role) error

	// UpdateRoleScopes replaces the role's scopes with scopeIDs, keeping the
	// given order.
	UpdateRoleScopes(ctx context.Context, roleID string, scopeIDs []string) error

	IsEmpty(ctx context.Context) (bool, error)
}

type Scopes interface {
	// CreateScope returns ErrAlreadyExists for a duplicate (namespace, action).
	CreateScope(ctx context.Context, s domain.Scope) error
	GetScope(ctx context.Context, namespace, action string) (domain.Scope, error)
	ListAll(ctx context.Context) ([]domain.Scope, error)
}

type FederatedIdentities interface {
	GetByExternalID(ctx context.Context, provider, externalID string) (domain.FederatedIdentity, error)
	GetByUserID(ctx context.Context, userID string) (domain.FederatedIdentity, error)

	// CreateIdentity returns ErrAlreadyExists when either the external id or
	// the user is already linked.
	CreateIdentity(ctx context.Context, fi domain.FederatedIdentity) error
}

// Ephemeral is the TTL key-value store behind verification codes. Missing and
// expired keys both read as ErrNotFound.
type Ephemeral interface {
	// Set stores value under key and expires it after ttl, which must be positive.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Get(ctx context.Context, key string) ([]byte, error)
	// GetDelete reads and removes key in one atomic step.
	GetDelete(ctx context.Context, key string) ([]byte, error)
	Delete(ctx context.Context, key string) error

	Ping(ctx context.Context) error
	Close() error
}
