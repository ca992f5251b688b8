package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/aussiebroadwan/tavern/internal/auth/domain"
	"github.com/aussiebroadwan/tavern/internal/auth/store"
	"github.com/aussiebroadwan/tavern/pkg/idx"
	"github.com/aussiebroadwan/tavern/pkg/slogx"
)

type RolesService struct {
	Store    store.Store
	Resolver *ScopeResolver
}

// GetRoleByTag fetches a role with its scopes.
func (s *RolesService) GetRoleByTag(ctx context.Context, tag string) (domain.Role, error) {
	role, err := s.Store.Roles().GetRoleByTag(ctx, tag)
	if errors.Is(err, store.ErrNotFound) {
		return domain.Role{}, ErrRoleNotFound
	}
	return role, err
}

// ListAll returns all roles in the system.
func (s *RolesService) ListAll(ctx context.Context) ([]domain.Role, error) {
	return s.Store.Roles().ListAll(ctx)
}

// UpdateRoleScopes replaces a role's scopes. Holders see the change on their
// next refresh. Duplicates are dropped and order is kept.
func (s *RolesService) UpdateRoleScopes(ctx context.Context, tag string, scopes []string) (domain.Role, error) {
	var updated domain.Role

	err := s.Store.WithTx(ctx, func(tx store.Tx) error {
		role, err := tx.Roles().GetRoleByTag(ctx, tag)
		if errors.Is(err, store.ErrNotFound) {
			return ErrRoleNotFound
		}
		if err != nil {
			return err
		}

		ids := make([]string, 0, len(scopes))
		seen := make(map[string]struct{}, len(scopes))
		for _, raw := range scopes {
			parsed, err := domain.ParseScope(raw)
			if err != nil {
				return invalidInput(fmt.Errorf("%q: %w", raw, err))
			}
			sc, err := tx.Scopes().GetScope(ctx, parsed.Namespace, parsed.Action)
			if errors.Is(err, store.ErrNotFound) {
				return fmt.Errorf("%w: %s", ErrUnknownScope, parsed)
			}
			if err != nil {
				return err
			}
			if _, dup := seen[sc.ID]; dup {
				continue
			}
			seen[sc.ID] = struct{}{}
			ids = append(ids, sc.ID)
		}

		if err := tx.Roles().UpdateRoleScopes(ctx, role.ID, ids); err != nil {
			return err
		}
		updated, err = tx.Roles().GetRoleByID(ctx, role.ID)
		return err
	})
	if err != nil {
		return domain.Role{}, err
	}

	slogx.FromContext(ctx).Info("role scopes updated",
		slog.String("role", tag),
		slog.Any("scopes", updated.ScopeStrings()),
	)
	return updated, nil
}

// SeedRoles creates the scope catalog and the reserved roles with their
// default scopes. Anything already present is left alone, so it is safe to
// run on every start.
func (s *RolesService) SeedRoles(ctx context.Context) error {
	l := slogx.FromContext(ctx)

	return s.Store.WithTx(ctx, func(tx store.Tx) error {
		byName := make(map[string]domain.Scope, len(s.Resolver.Catalog))
		for _, sc := range s.Resolver.Catalog {
			existing, err := tx.Scopes().GetScope(ctx, sc.Namespace, sc.Action)
			switch {
			case err == nil:
				byName[sc.String()] = existing
				continue
			case !errors.Is(err, store.ErrNotFound):
				return err
			}

			sc.ID = idx.New().String()
			if err := tx.Scopes().CreateScope(ctx, sc); err != nil {
				return fmt.Errorf("create scope %s: %w", sc, err)
			}
			byName[sc.String()] = sc
		}

		for _, def := range domain.ReservedRoles {
			_, err := tx.Roles().GetRoleByTag(ctx, def.Tag)
			switch {
			case err == nil:
				continue
			case !errors.Is(err, store.ErrNotFound):
				return err
			}

			role := domain.Role{ID: idx.New().String(), Tag: def.Tag, Name: def.Name}
			for _, sc := range s.Resolver.DefaultScopesForRole(def.Tag) {
				role.Scopes = append(role.Scopes, byName[sc.String()])
			}
			if err := tx.Roles().CreateRole(ctx, role); err != nil {
				return fmt.Errorf("create role %s: %w", def.Tag, err)
			}
			l.Info("seeded role", slog.String("role", def.Tag), slog.Int("scopes", len(role.Scopes)))
		}
		return nil
	})
}
