// Package catalog is the boundary to the SQL server's role catalog. The
// gateway asks it a single question: does a role with this name exist.
package catalog

import "context"

// Catalog answers role-existence queries. Implementations must be
// side-effect-free; the authenticator treats the answer as authoritative.
type Catalog interface {
	RoleExists(ctx context.Context, name string) bool
}

// Static is an in-memory catalog over a fixed set of role names.
type Static struct {
	roles map[string]struct{}
}

// NewStatic creates a catalog containing the given role names.
func NewStatic(roles []string) *Static {
	m := make(map[string]struct{}, len(roles))
	for _, r := range roles {
		m[r] = struct{}{}
	}
	return &Static{roles: m}
}

// RoleExists reports whether the named role is in the catalog. Matching is
// exact and case-sensitive.
func (s *Static) RoleExists(_ context.Context, name string) bool {
	_, ok := s.roles[name]
	return ok
}
