// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Shelfkeep Contributors

// Package access decides which roles may perform which mutations.
//
// Permissions are "resource:action" strings such as "catalog:write". A role
// is granted a list of glob patterns matched with ':' as the separator, so
// "*:write" covers every resource and "**" covers everything.
//
// A Policy with no roles is open: any caller that passed the session gate is
// allowed. This keeps role checks optional for deployments that only need
// "is this token valid".
package access

// Checker answers permission questions for the HTTP gate.
type Checker interface {
	// Enabled reports whether role checks apply at all.
	Enabled() bool
	// Allowed reports whether role holds perm.
	Allowed(role, perm string) bool
}
