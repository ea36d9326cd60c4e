// Package authorization builds the permission index from the declarative
// role grants and answers (entity, operation) → roles lookups. The index is
// immutable after construction; configuration reload builds a fresh resolver
// and swaps it wholesale so in-flight work never sees a half-updated grant.
package authorization

import (
	"sort"

	"github.com/weiplanet/data-api-builder/config"
)

// Resolver is the precomputed (entity, operation) → role-set index.
type Resolver struct {
	grants map[string]map[Operation][]string
}

// NewResolver reads the full entity/action/role configuration once and
// produces an O(1)-per-lookup index. Roles are case-sensitive; duplicate
// grants collapse.
func NewResolver(cfg *config.RuntimeConfig) *Resolver {
	r := &Resolver{grants: make(map[string]map[Operation][]string, len(cfg.Entities))}

	for entityName, entity := range cfg.Entities {
		sets := make(map[Operation]map[string]bool)
		for _, perm := range entity.Permissions {
			for _, action := range perm.Actions {
				for _, op := range expandAction(action, entity.Source.Type) {
					if sets[op] == nil {
						sets[op] = make(map[string]bool)
					}
					sets[op][perm.Role] = true
				}
			}
		}

		ops := make(map[Operation][]string, len(sets))
		for op, roleSet := range sets {
			roles := make([]string, 0, len(roleSet))
			for role := range roleSet {
				roles = append(roles, role)
			}
			sort.Strings(roles)
			ops[op] = roles
		}
		r.grants[entityName] = ops
	}

	return r
}

// expandAction maps a configured action name onto operations. "*" grants
// everything meaningful for the source type.
func expandAction(action string, source config.SourceType) []Operation {
	if action == "*" {
		if source == config.SourceStoredProcedure {
			return []Operation{OpExecute}
		}
		return tableOperations
	}
	return []Operation{Operation(action)}
}

// RolesAuthorizedFor returns the roles granted an operation on an entity.
// A missing entry is a data condition, not an error: the result is simply
// empty. The returned slice is a copy.
func (r *Resolver) RolesAuthorizedFor(entity string, op Operation) []string {
	if r == nil {
		return nil
	}
	roles := r.grants[entity][op.normalize()]
	if len(roles) == 0 {
		return nil
	}
	out := make([]string, len(roles))
	copy(out, roles)
	return out
}

// IsAuthorized reports whether a specific caller role may perform an
// operation on an entity. The role is passed explicitly; the resolver holds
// no request state.
func (r *Resolver) IsAuthorized(role, entity string, op Operation) bool {
	if r == nil {
		return false
	}
	for _, granted := range r.grants[entity][op.normalize()] {
		if granted == role {
			return true
		}
	}
	return false
}
