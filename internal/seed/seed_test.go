// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Shelfkeep Contributors

package seed_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shelfkeep/shelfkeep/internal/seed"
	"github.com/shelfkeep/shelfkeep/pkg/errutil"
)

func TestParse(t *testing.T) {
	f, err := seed.Parse([]byte(`
version: 1.4.2
users:
  - login: admin
    password: secret
    role: admin
  - login: clerk
    password_hash: abc
`))
	require.NoError(t, err)
	assert.Equal(t, "1.4.2", f.Version)
	require.Len(t, f.Users, 2)
	assert.Equal(t, seed.User{Login: "admin", Password: "secret", Role: "admin"}, f.Users[0])
	assert.Equal(t, "abc", f.Users[1].PasswordHash)
	assert.Empty(t, f.Users[1].Role)
}

func TestParse_Errors(t *testing.T) {
	tests := []struct {
		name     string
		doc      string
		wantCode string
	}{
		{
			name:     "schema failure",
			doc:      "version: 1.0.0\nusers: []\n",
			wantCode: "SEED_INVALID",
		},
		{
			name:     "not strict semver",
			doc:      "version: \"1.0\"\nusers:\n  - login: admin\n    password: x\n",
			wantCode: "SEED_BAD_VERSION",
		},
		{
			name:     "future major",
			doc:      "version: 2.0.0\nusers:\n  - login: admin\n    password: x\n",
			wantCode: "SEED_UNSUPPORTED_VERSION",
		},
		{
			name:     "pre-release major",
			doc:      "version: 0.9.0\nusers:\n  - login: admin\n    password: x\n",
			wantCode: "SEED_UNSUPPORTED_VERSION",
		},
		{
			name:     "no credential",
			doc:      "version: 1.0.0\nusers:\n  - login: admin\n",
			wantCode: "SEED_INVALID",
		},
		{
			name:     "both credentials",
			doc:      "version: 1.0.0\nusers:\n  - login: admin\n    password: x\n    password_hash: y\n",
			wantCode: "SEED_INVALID",
		},
		{
			name:     "duplicate login",
			doc:      "version: 1.0.0\nusers:\n  - login: admin\n    password: x\n  - login: admin\n    password: y\n",
			wantCode: "SEED_INVALID",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f, err := seed.Parse([]byte(tt.doc))
			assert.Nil(t, f)
			errutil.AssertErrorCode(t, err, tt.wantCode)
		})
	}
}

func TestFile_ValidateDuplicateContext(t *testing.T) {
	f := &seed.File{
		Version: "1.0.0",
		Users: []seed.User{
			{Login: "admin", Password: "x"},
			{Login: "clerk", Password: "y"},
			{Login: "admin", Password: "z"},
		},
	}
	err := f.Validate()
	errutil.AssertErrorCode(t, err, "SEED_INVALID")
	errutil.AssertErrorContext(t, err, "login", "admin")
	errutil.AssertErrorContext(t, err, "first", 0)
	errutil.AssertErrorContext(t, err, "index", 2)
}
