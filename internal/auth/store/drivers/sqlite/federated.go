package sqlite

import (
	"context"

	"github.com/aussiebroadwan/tavern/internal/auth/domain"
)

type federatedRepo struct {
	db dbtx
}

func (r *federatedRepo) GetByExternalID(ctx context.Context, provider, externalID string) (domain.FederatedIdentity, error) {
	return r.getOne(ctx, `
		SELECT id, provider, external_id, user_id, created_at
		FROM federated_identities WHERE provider = ? AND external_id = ?`,
		provider, externalID)
}

func (r *federatedRepo) GetByUserID(ctx context.Context, userID string) (domain.FederatedIdentity, error) {
	return r.getOne(ctx, `
		SELECT id, provider, external_id, user_id, created_at
		FROM federated_identities WHERE user_id = ?`,
		userID)
}

func (r *federatedRepo) getOne(ctx context.Context, query string, args ...any) (domain.FederatedIdentity, error) {
	var fi domain.FederatedIdentity
	err := r.db.QueryRowContext(ctx, query, args...).
		Scan(&fi.ID, &fi.Provider, &fi.ExternalID, &fi.UserID, &fi.CreatedAt)
	if err != nil {
		return domain.FederatedIdentity{}, mapNotFound(err)
	}
	return fi, nil
}

func (r *federatedRepo) CreateIdentity(ctx context.Context, fi domain.FederatedIdentity) error {
	createdAt := fi.CreatedAt
	if createdAt.IsZero() {
		createdAt = now()
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO federated_identities (id, provider, external_id, user_id, created_at)
		VALUES (?, ?, ?, ?, ?)`,
		fi.ID, fi.Provider, fi.ExternalID, fi.UserID, createdAt.UTC())
	return mapConstraint(err)
}
