// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Shelfkeep Contributors

// Package auth provides credential checking and session tokens for the
// catalog API.
//
// # Domain Types
//
// Domain types should be created using their constructors:
//   - NewUser - creates a User with a validated login and password hash
//   - NewTokenRecord - creates a TokenRecord with a validated owner and expiry
//
// A user holds at most one token row. The store enforces this with a unique
// constraint on the owner, and the login flow treats a conflict on insert
// as "another request issued first" and reuses that token.
//
// # Services
//
//   - SessionValidator - classifies presented tokens; the gate for every
//     mutating catalog route
//   - CredentialValidator - checks login/password pairs, upgrading legacy hashes
//   - LoginOrchestrator - issues or reuses the user's token
//   - Service - wires the above over one TokenStore and UserRepository
//
// Every store failure is surfaced as an error for which IsStoreError is true.
// Callers must treat it as "not authorized".
package auth
