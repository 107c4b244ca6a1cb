// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Shelfkeep Contributors

package access

import "context"

type roleKey struct{}

// WithRole returns a context carrying the caller's resolved role.
func WithRole(ctx context.Context, role string) context.Context {
	return context.WithValue(ctx, roleKey{}, role)
}

// RoleFromContext returns the role stored by WithRole.
func RoleFromContext(ctx context.Context) (string, bool) {
	v, ok := ctx.Value(roleKey{}).(string)
	return v, ok
}
