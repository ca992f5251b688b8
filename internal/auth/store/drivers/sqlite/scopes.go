package sqlite

import (
	"context"
	"database/sql"

	"github.com/aussiebroadwan/tavern/internal/auth/domain"
)

type scopesRepo struct {
	db dbtx
}

func (r *scopesRepo) CreateScope(ctx context.Context, s domain.Scope) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO scopes (id, namespace, action, description) VALUES (?, ?, ?, ?)`,
		s.ID, s.Namespace, s.Action, s.Description)
	return mapConstraint(err)
}

func (r *scopesRepo) GetScope(ctx context.Context, namespace, action string) (domain.Scope, error) {
	var s domain.Scope
	err := r.db.QueryRowContext(ctx,
		`SELECT id, namespace, action, description FROM scopes WHERE namespace = ? AND action = ?`,
		namespace, action).Scan(&s.ID, &s.Namespace, &s.Action, &s.Description)
	if err != nil {
		return domain.Scope{}, mapNotFound(err)
	}
	return s, nil
}

func (r *scopesRepo) ListAll(ctx context.Context) ([]domain.Scope, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, namespace, action, description FROM scopes ORDER BY id`)
	if err != nil {
		return nil, err
	}
	return scanScopes(rows)
}

func scanScopes(rows *sql.Rows) ([]domain.Scope, error) {
	defer rows.Close()

	var scopes []domain.Scope
	for rows.Next() {
		var s domain.Scope
		if err := rows.Scan(&s.ID, &s.Namespace, &s.Action, &s.Description); err != nil {
			return nil, err
		}
		scopes = append(scopes, s)
	}
	return scopes, rows.Err()
}
