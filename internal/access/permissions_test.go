// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Shelfkeep Contributors

package access_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shelfkeep/shelfkeep/internal/access"
)

func TestDefaultRoles(t *testing.T) {
	roles := access.DefaultRoles()

	require.Contains(t, roles, "editor")
	require.Contains(t, roles, "admin")
	assert.Contains(t, roles["admin"], "**")

	// Admin includes every editor permission
	for _, perm := range roles["editor"] {
		assert.Contains(t, roles["admin"], perm, "admin should include editor permission: %s", perm)
	}
}

func TestDefaultRoles_Grants(t *testing.T) {
	policy, err := access.NewPolicy(access.DefaultRoles())
	require.NoError(t, err)

	tests := []struct {
		role string
		perm string
		want bool
	}{
		{"admin", access.PermCatalogWrite, true},
		{"admin", access.PermItemWrite, true},
		{"admin", access.PermImageWrite, true},
		{"editor", access.PermItemWrite, true},
		{"editor", access.PermImageWrite, true},
		{"editor", access.PermCatalogWrite, false},
		{"user", access.PermItemWrite, false},
	}
	for _, tt := range tests {
		t.Run(tt.role+" "+tt.perm, func(t *testing.T) {
			assert.Equal(t, tt.want, policy.Allowed(tt.role, tt.perm))
		})
	}
}
