// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Shelfkeep Contributors

package access

// Route permissions checked by the gate.
const (
	PermCatalogWrite = "catalog:write"
	PermItemWrite    = "item:write"
	PermImageWrite   = "image:write"
)

// Permission groups. Roles compose these rather than inheriting.

var editorPowers = []string{
	"item:*",
	"image:*",
}

var adminPowers = []string{
	"**",
}

// DefaultRoles returns the built-in role set used when roles are enabled
// without an explicit table: admins may do anything, editors may change
// items and their images but not catalogs.
func DefaultRoles() map[string][]string {
	return map[string][]string{
		"editor": compose(editorPowers),
		"admin":  compose(editorPowers, adminPowers),
	}
}

// compose merges multiple permission slices into one.
func compose(groups ...[]string) []string {
	total := 0
	for _, g := range groups {
		total += len(g)
	}
	result := make([]string, 0, total)
	for _, g := range groups {
		result = append(result, g...)
	}
	return result
}
