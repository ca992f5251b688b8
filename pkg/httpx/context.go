package httpx

import "context"

type ctxKey string

const (
	CtxKeyUserID    ctxKey = "user_id"
	CtxKeyScopes    ctxKey = "scopes"
	CtxKeySessionID ctxKey = "session_id"
)

// Identity is what a successful bearer check leaves in the request context.
type Identity struct {
	UserID    string
	SessionID string
	Scopes    []string
}

func ContextWithIdentity(ctx context.Context, id Identity) context.Context {
	ctx = context.WithValue(ctx, CtxKeyUserID, id.UserID)
	ctx = context.WithValue(ctx, CtxKeySessionID, id.SessionID)
	ctx = context.WithValue(ctx, CtxKeyScopes, id.Scopes)
	return ctx
}

// IdentityFromContext reports false when the request was not authenticated.
func IdentityFromContext(ctx context.Context) (Identity, bool) {
	userID, ok := ctx.Value(CtxKeyUserID).(string)
	if !ok || userID == "" {
		return Identity{}, false
	}
	sid, _ := ctx.Value(CtxKeySessionID).(string)
	scopes, _ := ctx.Value(CtxKeyScopes).([]string)
	return Identity{UserID: userID, SessionID: sid, Scopes: scopes}, true
}
