package sqlite

import (
	"context"
	"database/sql"

	"github.com/aussiebroadwan/tavern/internal/auth/domain"
	"github.com/aussiebroadwan/tavern/internal/auth/store"
)

type rolesRepo struct {
	db dbtx
}

func (r *rolesRepo) GetRoleByID(ctx context.Context, id string) (domain.Role, error) {
	return r.getOne(ctx, `SELECT id, tag, name, created_at, updated_at FROM roles WHERE id = ?`, id)
}

func (r *rolesRepo) GetRoleByTag(ctx context.Context, tag string) (domain.Role, error) {
	return r.getOne(ctx, `SELECT id, tag, name, created_at, updated_at FROM roles WHERE tag = ?`, tag)
}

func (r *rolesRepo) getOne(ctx context.Context, query string, arg any) (domain.Role, error) {
	var role domain.Role
	err := r.db.QueryRowContext(ctx, query, arg).
		Scan(&role.ID, &role.Tag, &role.Name, &role.CreatedAt, &role.UpdatedAt)
	if err != nil {
		return domain.Role{}, mapNotFound(err)
	}

	role.Scopes, err = loadRoleScopes(ctx, r.db, role.ID)
	if err != nil {
		return domain.Role{}, err
	}
	return role, nil
}

func (r *rolesRepo) ListAll(ctx context.Context) ([]domain.Role, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, tag, name, created_at, updated_at FROM roles ORDER BY id`)
	if err != nil {
		return nil, err
	}

	roles, err := scanRoles(rows)
	if err != nil {
		return nil, err
	}

	for i := range roles {
		roles[i].Scopes, err = loadRoleScopes(ctx, r.db, roles[i].ID)
		if err != nil {
			return nil, err
		}
	}
	return roles, nil
}

func (r *rolesRepo) CreateRole(ctx context.Context, role domain.Role) error {
	createdAt := role.CreatedAt
	if createdAt.IsZero() {
		createdAt = now()
	}

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO roles (id, tag, name, created_at, updated_at) VALUES (?, ?, ?, ?, ?)`,
		role.ID, role.Tag, role.Name, createdAt.UTC(), createdAt.UTC())
	if err != nil {
		return mapConstraint(err)
	}

	return r.insertScopes(ctx, role.ID, scopeIDs(role.Scopes))
}

func (r *rolesRepo) UpdateRoleScopes(ctx context.Context, roleID string, ids []string) error {
	if err := expectOne(r.db.ExecContext(ctx,
		`UPDATE roles SET updated_at = ? WHERE id = ?`, now(), roleID)); err != nil {
		return err
	}

	if _, err := r.db.ExecContext(ctx, `DELETE FROM role_scopes WHERE role_id = ?`, roleID); err != nil {
		return err
	}
	return r.insertScopes(ctx, roleID, ids)
}

func (r *rolesRepo) insertScopes(ctx context.Context, roleID string, ids []string) error {
	for i, id := range ids {
		_, err := r.db.ExecContext(ctx,
			`INSERT OR IGNORE INTO role_scopes (role_id, scope_id, position) VALUES (?, ?, ?)`,
			roleID, id, i)
		if err != nil {
			return mapConstraint(err)
		}
	}
	return nil
}

func (r *rolesRepo) IsEmpty(ctx context.Context) (bool, error) {
	var count int64
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM roles`).Scan(&count); err != nil {
		return false, err
	}
	return count == 0, nil
}

func scanRoles(rows *sql.Rows) ([]domain.Role, error) {
	defer rows.Close()

	var roles []domain.Role
	for rows.Next() {
		var role domain.Role
		if err := rows.Scan(&role.ID, &role.Tag, &role.Name, &role.CreatedAt, &role.UpdatedAt); err != nil {
			return nil, err
		}
		roles = append(roles, role)
	}
	return roles, rows.Err()
}

// loadRoleScopes returns a role's scopes in the order they were assigned.
func loadRoleScopes(ctx context.Context, db dbtx, roleID string) ([]domain.Scope, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT s.id, s.namespace, s.action, s.description
		FROM role_scopes rs
		JOIN scopes s ON s.id = rs.scope_id
		WHERE rs.role_id = ?
		ORDER BY rs.position`, roleID)
	if err != nil {
		return nil, err
	}
	return scanScopes(rows)
}

func scopeIDs(scopes []domain.Scope) []string {
	ids := make([]string, 0, len(scopes))
	for _, s := range scopes {
		ids = append(ids, s.ID)
	}
	return ids
}

var _ store.Roles = (*rolesRepo)(nil)
