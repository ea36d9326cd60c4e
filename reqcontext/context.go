// Package reqcontext carries per-request authorization data. The request
// transport writes it once; everything downstream receives roles as explicit
// values, keeping the authorization and route resolvers pure.
package reqcontext

import "context"

// Context key type to avoid collisions
type contextKey string

const (
	// RolesCtxKey is the key for the full set of roles the caller's token
	// carries.
	RolesCtxKey contextKey = "roles"
	// EffectiveRoleCtxKey is the key for the single role the caller elected
	// to act as for this request.
	EffectiveRoleCtxKey contextKey = "effective_role"
)

// AnonymousRole is the role assigned to unauthenticated callers. Grants for
// it must be configured explicitly like any other role.
const AnonymousRole = "anonymous"

// SetRoles stores the caller's full role set in the context.
func SetRoles(ctx context.Context, roles []string) context.Context {
	return context.WithValue(ctx, RolesCtxKey, roles)
}

// Roles returns the caller's full role set, or just anonymous when the
// transport never authenticated the request.
func Roles(ctx context.Context) []string {
	if roles, ok := ctx.Value(RolesCtxKey).([]string); ok && len(roles) > 0 {
		return roles
	}
	return []string{AnonymousRole}
}

// SetEffectiveRole stores the single role the caller acts as.
func SetEffectiveRole(ctx context.Context, role string) context.Context {
	return context.WithValue(ctx, EffectiveRoleCtxKey, role)
}

// EffectiveRole returns the role the caller acts as for this request.
func EffectiveRole(ctx context.Context) string {
	if role, ok := ctx.Value(EffectiveRoleCtxKey).(string); ok && role != "" {
		return role
	}
	return AnonymousRole
}
