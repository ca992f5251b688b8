package service

import "github.com/aussiebroadwan/tavern/internal/auth/domain"

// ScopeResolver turns role assignments into the scope set a token carries.
type ScopeResolver struct {
	// Catalog is everything an admin role is seeded with.
	Catalog []domain.Scope
	// Members is the allow-list seeded into the user and vip roles.
	Members []string
}

func NewScopeResolver() *ScopeResolver {
	return &ScopeResolver{Catalog: domain.ScopeCatalog, Members: domain.MemberScopes}
}

// EffectiveScopes returns the deduplicated union of the roles' scopes in role
// order. Holding the banned role yields no scopes at all, whatever else is held.
func (r *ScopeResolver) EffectiveScopes(roles []domain.Role) []string {
	for _, role := range roles {
		if role.Tag == domain.RoleBanned {
			return []string{}
		}
	}

	seen := make(map[string]struct{})
	out := make([]string, 0)
	for _, role := range roles {
		for _, s := range role.Scopes {
			key := s.String()
			if _, ok := seen[key]; ok {
				continue
			}
			seen[key] = struct{}{}
			out = append(out, key)
		}
	}
	return out
}

// DefaultScopesForRole is the seed scope set for a reserved role tag. It is
// only consulted when creating roles; login always reads the stored scopes.
func (r *ScopeResolver) DefaultScopesForRole(tag string) []domain.Scope {
	switch tag {
	case domain.RoleAdmin:
		return append([]domain.Scope(nil), r.Catalog...)
	case domain.RoleUser, domain.RoleVIP:
		allowed := make(map[string]struct{}, len(r.Members))
		for _, s := range r.Members {
			allowed[s] = struct{}{}
		}
		out := make([]domain.Scope, 0, len(r.Members))
		for _, s := range r.Catalog {
			if _, ok := allowed[s.String()]; ok {
				out = append(out, s)
			}
		}
		return out
	default:
		return []domain.Scope{}
	}
}
