// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Shelfkeep Contributors

package access

import (
	"log/slog"
	"sort"

	"github.com/gobwas/glob"
	"github.com/samber/oops"
)

// Policy maps roles to compiled permission patterns. It is immutable after
// construction and safe for concurrent use.
type Policy struct {
	roles map[string][]compiledPermission
}

// compiledPermission holds a permission pattern and its compiled glob.
type compiledPermission struct {
	pattern string
	glob    glob.Glob
}

// NewPolicy compiles roles. A nil or empty map yields an open policy.
//
// Returns error if any permission pattern fails to compile.
func NewPolicy(roles map[string][]string) (*Policy, error) {
	compiled := make(map[string][]compiledPermission, len(roles))
	for role, perms := range roles {
		if role == "" {
			return nil, oops.In("access").Code("INVALID_ROLE").New("role cannot be empty")
		}
		list := make([]compiledPermission, 0, len(perms))
		for _, p := range perms {
			g, err := glob.Compile(p, ':')
			if err != nil {
				return nil, oops.In("access").
					Code("INVALID_PERMISSION_PATTERN").
					With("role", role).
					With("pattern", p).
					Wrap(err)
			}
			list = append(list, compiledPermission{pattern: p, glob: g})
		}
		compiled[role] = list
	}
	return &Policy{roles: compiled}, nil
}

// Enabled implements Checker.
func (p *Policy) Enabled() bool {
	return p != nil && len(p.roles) > 0
}

// Allowed implements Checker. Unknown and empty roles are denied once the
// policy is enabled.
func (p *Policy) Allowed(role, perm string) bool {
	if !p.Enabled() {
		return true
	}
	perms, ok := p.roles[role]
	if !ok {
		slog.Debug("permission denied for unknown role", "role", role, "permission", perm)
		return false
	}
	for _, cp := range perms {
		if cp.glob.Match(perm) {
			return true
		}
	}
	slog.Debug("permission denied", "role", role, "permission", perm)
	return false
}

// Roles returns the configured role names, sorted.
func (p *Policy) Roles() []string {
	if p == nil {
		return nil
	}
	names := make([]string, 0, len(p.roles))
	for r := range p.roles {
		names = append(names, r)
	}
	sort.Strings(names)
	return names
}

// Patterns returns the raw patterns granted to role.
func (p *Policy) Patterns(role string) []string {
	if p == nil {
		return nil
	}
	perms := p.roles[role]
	out := make([]string, len(perms))
	for i, cp := range perms {
		out[i] = cp.pattern
	}
	return out
}

var _ Checker = (*Policy)(nil)
