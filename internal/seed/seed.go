// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Shelfkeep Contributors

// Package seed loads users seed files and applies them to the user store.
//
// A seed file is YAML:
//
//	version: 1.0.0
//	users:
//	  - login: admin
//	    password: change-me
//	    role: admin
//	  - login: legacy
//	    password_hash: 5f4dcc3b5aa765d61d8327deb882cf99
//
// Each user carries either a plaintext password, hashed with argon2id on
// apply, or a password_hash stored verbatim for accounts imported from an
// older user table.
package seed

import (
	"github.com/Masterminds/semver/v3"
	"github.com/samber/oops"
	"gopkg.in/yaml.v3"

	"github.com/shelfkeep/shelfkeep/internal/auth"
)

// SupportedVersions is the semver constraint a seed file version must meet.
const SupportedVersions = "^1"

// File is a parsed users seed file.
type File struct {
	Version string `json:"version" yaml:"version" jsonschema:"minLength=1,description=Seed format version (semver)"`
	Users   []User `json:"users" yaml:"users" jsonschema:"minItems=1"`
}

// User is one account entry in a seed file.
type User struct {
	Login        string `json:"login" yaml:"login" jsonschema:"minLength=3,maxLength=64,pattern=^[a-zA-Z][a-zA-Z0-9_.-]*$"`
	Password     string `json:"password,omitempty" yaml:"password,omitempty" jsonschema:"minLength=1"`
	PasswordHash string `json:"password_hash,omitempty" yaml:"password_hash,omitempty" jsonschema:"minLength=1"`
	Role         string `json:"role,omitempty" yaml:"role,omitempty" jsonschema:"minLength=1"`
}

// Parse decodes and validates a seed file. Schema validation runs first so
// structural mistakes are reported against the published schema.
func Parse(data []byte) (*File, error) {
	if err := ValidateSchema(data); err != nil {
		return nil, oops.Code("SEED_INVALID").Wrap(err)
	}

	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, oops.Code("SEED_INVALID").Wrapf(err, "invalid YAML")
	}
	if err := f.Validate(); err != nil {
		return nil, err
	}
	return &f, nil
}

// Validate checks the rules the schema cannot express: the version
// constraint, one credential per user, and unique logins.
func (f *File) Validate() error {
	if err := checkVersion(f.Version); err != nil {
		return err
	}

	seen := make(map[string]int, len(f.Users))
	for i, u := range f.Users {
		if err := auth.ValidateLogin(u.Login); err != nil {
			return oops.Code("SEED_INVALID").With("index", i).Wrap(err)
		}
		if (u.Password == "") == (u.PasswordHash == "") {
			return oops.Code("SEED_INVALID").
				With("login", u.Login).
				Errorf("user %q must set exactly one of password or password_hash", u.Login)
		}
		if prev, dup := seen[u.Login]; dup {
			return oops.Code("SEED_INVALID").
				With("login", u.Login).
				With("first", prev).
				With("index", i).
				Errorf("login %q appears more than once", u.Login)
		}
		seen[u.Login] = i
	}
	return nil
}

func checkVersion(raw string) error {
	v, err := semver.StrictNewVersion(raw)
	if err != nil {
		return oops.Code("SEED_BAD_VERSION").
			With("version", raw).
			Wrapf(err, "version %q is not semver", raw)
	}
	c, err := semver.NewConstraint(SupportedVersions)
	if err != nil {
		return oops.Code("SEED_BAD_VERSION").Wrap(err)
	}
	if !c.Check(v) {
		return oops.Code("SEED_UNSUPPORTED_VERSION").
			With("version", raw).
			With("supported", SupportedVersions).
			Errorf("seed version %s is not supported (want %s)", raw, SupportedVersions)
	}
	return nil
}
