package domain

import "time"

// Reserved role tags. Resolution treats these specially; see the scope
// resolver in the service package.
const (
	RoleAdmin  = "admin"
	RoleUser   = "user"
	RoleVIP    = "vip"
	RoleBanned = "banned"
)

// ReservedRoles are created on bootstrap in this order.
var ReservedRoles = []RoleDefinition{
	{Tag: RoleAdmin, Name: "Administrator"},
	{Tag: RoleUser, Name: "Member"},
	{Tag: RoleVIP, Name: "Supporter"},
	{Tag: RoleBanned, Name: "Banned"},
}

type Role struct {
	ID        string
	Tag       string
	Name      string
	Scopes    []Scope // in assignment order
	CreatedAt time.Time
	UpdatedAt time.Time
}

// ScopeStrings returns the role's scopes in "namespace:action" form.
func (r Role) ScopeStrings() []string {
	out := make([]string, len(r.Scopes))
	for i, s := range r.Scopes {
		out[i] = s.String()
	}
	return out
}

type RoleDefinition struct {
	Tag  string
	Name string
}
