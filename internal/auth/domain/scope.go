package domain

import (
	"errors"
	"regexp"
	"strings"
)

// ErrInvalidScope reports a scope string that is not "namespace:action".
var ErrInvalidScope = errors.New("domain: invalid scope")

var scopePattern = regexp.MustCompile(`^[a-z][a-z0-9_-]*:[a-z][a-z0-9_-]*$`)

// Scope is a (namespace, action) permission, unique as a pair.
type Scope struct {
	ID          string
	Namespace   string
	Action      string
	Description string
}

func (s Scope) String() string { return s.Namespace + ":" + s.Action }

// ParseScope splits "namespace:action".
func ParseScope(raw string) (Scope, error) {
	raw = strings.TrimSpace(raw)
	if !scopePattern.MatchString(raw) {
		return Scope{}, ErrInvalidScope
	}
	ns, action, _ := strings.Cut(raw, ":")
	return Scope{Namespace: ns, Action: action}, nil
}

// ScopeCatalog is every scope the platform knows about. Admin roles are seeded
// with all of it.
var ScopeCatalog = []Scope{
	{Namespace: "users", Action: "me", Description: "Read own profile"},
	{Namespace: "users", Action: "update", Description: "Update own profile"},
	{Namespace: "users", Action: "password", Description: "Change own password"},
	{Namespace: "users", Action: "email", Description: "Change own email address"},
	{Namespace: "users", Action: "connect", Description: "Link a federated identity"},
	{Namespace: "threads", Action: "create", Description: "Create forum threads"},
	{Namespace: "threads", Action: "update", Description: "Edit own forum threads"},
	{Namespace: "posts", Action: "create", Description: "Create forum posts"},
	{Namespace: "posts", Action: "update", Description: "Edit own forum posts"},
	{Namespace: "messages", Action: "send", Description: "Send chat messages"},

	{Namespace: "users", Action: "list", Description: "List accounts"},
	{Namespace: "users", Action: "ban", Description: "Ban and unban accounts"},
	{Namespace: "users", Action: "delete", Description: "Delete accounts"},
	{Namespace: "roles", Action: "read", Description: "Read roles and their scopes"},
	{Namespace: "roles", Action: "manage", Description: "Edit role scopes"},
	{Namespace: "threads", Action: "delete", Description: "Delete any thread"},
	{Namespace: "posts", Action: "delete", Description: "Delete any post"},
	{Namespace: "servers", Action: "manage", Description: "Administer game servers"},
	{Namespace: "payments", Action: "manage", Description: "Administer subscriptions"},
}

// MemberScopes is the self-service and content-creation allow-list granted to
// the user and vip roles.
var MemberScopes = []string{
	"users:me",
	"users:update",
	"users:password",
	"users:email",
	"users:connect",
	"threads:create",
	"threads:update",
	"posts:create",
	"posts:update",
	"messages:send",
}
