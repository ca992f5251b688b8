package sqlite

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/aussiebroadwan/tavern/internal/auth/domain"
)

const userColumns = `id, username, email, password_hash, secret_salt, is_activated,
	is_superuser, last_login_at, last_seen_at, created_at, updated_at`

type usersRepo struct {
	db dbtx
}

func (r *usersRepo) GetUserByID(ctx context.Context, id string) (domain.User, error) {
	return r.getOne(ctx, `SELECT `+userColumns+` FROM users WHERE id = ?`, id)
}

func (r *usersRepo) GetUserByUsername(ctx context.Context, username string) (domain.User, error) {
	return r.getOne(ctx, `SELECT `+userColumns+` FROM users WHERE username = ?`, username)
}

func (r *usersRepo) GetUserByEmail(ctx context.Context, email string) (domain.User, error) {
	return r.getOne(ctx, `SELECT `+userColumns+` FROM users WHERE email = ?`, strings.ToLower(email))
}

func (r *usersRepo) getOne(ctx context.Context, query string, arg any) (domain.User, error) {
	u, err := scanUser(r.db.QueryRowContext(ctx, query, arg))
	if err != nil {
		return domain.User{}, mapNotFound(err)
	}

	u.Roles, err = loadUserRoles(ctx, r.db, u.ID)
	if err != nil {
		return domain.User{}, err
	}
	return u, nil
}

func scanUser(row *sql.Row) (domain.User, error) {
	var (
		u         domain.User
		lastLogin sql.NullTime
		lastSeen  sql.NullTime
	)
	err := row.Scan(
		&u.ID, &u.Username, &u.Email, &u.PasswordHash, &u.SecretSalt,
		&u.IsActivated, &u.IsSuperuser, &lastLogin, &lastSeen,
		&u.CreatedAt, &u.UpdatedAt,
	)
	if err != nil {
		return domain.User{}, err
	}
	u.LastLoginAt = mapNullTimePtr(lastLogin)
	u.LastSeenAt = mapNullTimePtr(lastSeen)
	return u, nil
}

// loadUserRoles returns the user's roles in assignment order, each with its
// scopes loaded.
func loadUserRoles(ctx context.Context, db dbtx, userID string) ([]domain.Role, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT r.id, r.tag, r.name, r.created_at, r.updated_at
		FROM user_roles ur
		JOIN roles r ON r.id = ur.role_id
		WHERE ur.user_id = ?
		ORDER BY ur.position`, userID)
	if err != nil {
		return nil, err
	}

	roles, err := scanRoles(rows)
	if err != nil {
		return nil, err
	}

	for i := range roles {
		roles[i].Scopes, err = loadRoleScopes(ctx, db, roles[i].ID)
		if err != nil {
			return nil, err
		}
	}
	return roles, nil
}

func (r *usersRepo) CreateUser(ctx context.Context, u domain.User) error {
	createdAt := u.CreatedAt
	if createdAt.IsZero() {
		createdAt = now()
	}
	updatedAt := u.UpdatedAt
	if updatedAt.IsZero() {
		updatedAt = createdAt
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO users (`+userColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		u.ID, u.Username, strings.ToLower(u.Email), u.PasswordHash, u.SecretSalt,
		u.IsActivated, u.IsSuperuser,
		mapOptionalTime(u.LastLoginAt), mapOptionalTime(u.LastSeenAt),
		createdAt.UTC(), updatedAt.UTC(),
	)
	if err != nil {
		return mapConstraint(err)
	}

	for _, role := range u.Roles {
		if err := r.AssignRole(ctx, u.ID, role.ID); err != nil {
			return err
		}
	}
	return nil
}

func (r *usersRepo) UpdatePassword(ctx context.Context, userID, passwordHash, secretSalt string) error {
	return expectOne(r.db.ExecContext(ctx,
		`UPDATE users SET password_hash = ?, secret_salt = ?, updated_at = ? WHERE id = ?`,
		passwordHash, secretSalt, now(), userID))
}

func (r *usersRepo) UpdateSecretSalt(ctx context.Context, userID, secretSalt string) error {
	return expectOne(r.db.ExecContext(ctx,
		`UPDATE users SET secret_salt = ?, updated_at = ? WHERE id = ?`,
		secretSalt, now(), userID))
}

func (r *usersRepo) UpdateEmail(ctx context.Context, userID, email string) error {
	return expectOne(r.db.ExecContext(ctx,
		`UPDATE users SET email = ?, updated_at = ? WHERE id = ?`,
		strings.ToLower(email), now(), userID))
}

func (r *usersRepo) SetActivated(ctx context.Context, userID string, activated bool) error {
	return expectOne(r.db.ExecContext(ctx,
		`UPDATE users SET is_activated = ?, updated_at = ? WHERE id = ?`,
		activated, now(), userID))
}

func (r *usersRepo) TouchLastLogin(ctx context.Context, userID string, at time.Time) error {
	return expectOne(r.db.ExecContext(ctx,
		`UPDATE users SET last_login_at = ?, last_seen_at = ? WHERE id = ?`,
		at.UTC(), at.UTC(), userID))
}

func (r *usersRepo) TouchLastSeen(ctx context.Context, userID string, at time.Time) error {
	return expectOne(r.db.ExecContext(ctx,
		`UPDATE users SET last_seen_at = ? WHERE id = ?`, at.UTC(), userID))
}

func (r *usersRepo) TouchUpdated(ctx context.Context, userID string, at time.Time) error {
	return expectOne(r.db.ExecContext(ctx,
		`UPDATE users SET updated_at = ? WHERE id = ?`, at.UTC(), userID))
}

func (r *usersRepo) AssignRole(ctx context.Context, userID, roleID string) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT OR IGNORE INTO user_roles (user_id, role_id, position)
		SELECT ?, ?, COALESCE(MAX(position), -1) + 1
		FROM user_roles WHERE user_id = ?`,
		userID, roleID, userID)
	return mapConstraint(err)
}

func (r *usersRepo) RemoveRole(ctx context.Context, userID, roleID string) error {
	return expectOne(r.db.ExecContext(ctx,
		`DELETE FROM user_roles WHERE user_id = ? AND role_id = ?`, userID, roleID))
}

func (r *usersRepo) DeleteUnactivatedBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM users WHERE is_activated = 0 AND is_superuser = 0 AND updated_at < ?`,
		cutoff.UTC())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (r *usersRepo) IsEmpty(ctx context.Context) (bool, error) {
	var count int64
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM users`).Scan(&count); err != nil {
		return false, err
	}
	return count == 0, nil
}
