package shared

import "context"

type (
	sessionContextKey   struct{}
	principalContextKey struct{}
)

// Role names.
const (
	RoleAdmin   = "admin"
	RoleManager = "manager"
	RoleVendor  = "vendor"
)

// Principal is the authenticated user attached to a request.
type Principal struct {
	UserID          int64    `json:"id"`
	Email           string   `json:"email"`
	FullName        string   `json:"full_name"`
	Role            string   `json:"role"`
	SalespersonCode string   `json:"salesperson_code"`
	Permissions     []string `json:"permissions"`
	// Via is "session" for cookie logins and "bearer" for hosted-auth tokens.
	Via string `json:"-"`
}

// IsVendor reports whether the principal only sees its own records.
func (p Principal) IsVendor() bool {
	return p.Role == RoleVendor
}

// ContextWithSession stores the session in context.
func ContextWithSession(ctx context.Context, sess *Session) context.Context {
	return context.WithValue(ctx, sessionContextKey{}, sess)
}

// SessionFromContext extracts the session from context.
func SessionFromContext(ctx context.Context) *Session {
	sess, _ := ctx.Value(sessionContextKey{}).(*Session)
	return sess
}

// ContextWithPrincipal stores the authenticated principal.
func ContextWithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, principalContextKey{}, p)
}

// PrincipalFromContext returns the authenticated principal, if any.
func PrincipalFromContext(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(principalContextKey{}).(Principal)
	return p, ok
}
