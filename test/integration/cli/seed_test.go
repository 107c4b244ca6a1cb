// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Shelfkeep Contributors

//go:build integration

package cli_test

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2" //nolint:revive // ginkgo convention
	. "github.com/onsi/gomega"    //nolint:revive // gomega convention
)

const seedYAML = `version: "1.0.0"
users:
  - login: admin
    password: s3cret
    role: admin
  - login: clerk
    password: hunter2
    role: editor
`

func writeSeed(content string) string {
	path := filepath.Join(GinkgoT().TempDir(), "users.yaml")
	Expect(os.WriteFile(path, []byte(content), 0o600)).To(Succeed())
	return path
}

var _ = Describe("Seed Command", func() {
	var ctx context.Context

	BeforeEach(func() {
		ctx = context.Background()
		cleanupDatabase(ctx, env.pool)
	})

	Describe("User seeding", func() {
		It("creates every listed user with a hashed password", func() {
			output, err := env.shelfkeep("seed", writeSeed(seedYAML)).CombinedOutput()
			Expect(err).NotTo(HaveOccurred(), "seed command failed: %s", string(output))
			Expect(string(output)).To(ContainSubstring("Created 2 user(s): admin, clerk"))

			var role, hash string
			err = env.pool.QueryRow(ctx,
				"SELECT role, password_hash FROM users WHERE login = $1", "clerk",
			).Scan(&role, &hash)
			Expect(err).NotTo(HaveOccurred())
			Expect(role).To(Equal("editor"))
			Expect(hash).To(HavePrefix("$argon2id$"))
		})

		It("is idempotent", func() {
			path := writeSeed(seedYAML)
			output, err := env.shelfkeep("seed", path).CombinedOutput()
			Expect(err).NotTo(HaveOccurred(), "first seed failed: %s", string(output))

			output, err = env.shelfkeep("seed", path).CombinedOutput()
			Expect(err).NotTo(HaveOccurred(), "second seed failed: %s", string(output))
			Expect(string(output)).To(ContainSubstring("Skipped 2 existing user(s): admin, clerk"))

			var count int
			Expect(env.pool.QueryRow(ctx, "SELECT count(*) FROM users").Scan(&count)).To(Succeed())
			Expect(count).To(Equal(2))
		})
	})

	Describe("User creation", func() {
		It("creates a user from the password environment variable", func() {
			cmd := env.shelfkeep("user", "create", "--login", "owner", "--role", "admin")
			cmd.Env = append(cmd.Env, "SHELFKEEP_PASSWORD=pa55word")

			output, err := cmd.CombinedOutput()
			Expect(err).NotTo(HaveOccurred(), "user create failed: %s", string(output))
			Expect(string(output)).To(ContainSubstring("Created user owner"))

			output, err = env.shelfkeep("user", "create", "--login", "owner", "--password", "x").CombinedOutput()
			Expect(err).To(HaveOccurred())
			Expect(string(output)).To(ContainSubstring("owner"))
		})
	})

	Describe("Error handling", func() {
		It("rejects a seed file with an unsupported version", func() {
			output, err := env.shelfkeep("seed", writeSeed(`version: "2.0.0"
users:
  - login: admin
    password: s3cret
`)).CombinedOutput()
			Expect(err).To(HaveOccurred())
			Expect(string(output)).To(ContainSubstring("2.0.0"))
		})

		It("fails when DATABASE_URL is missing", func() {
			cmd := exec.CommandContext(ctx, "go", "run", ".", "seed", writeSeed(seedYAML))
			cmd.Dir = cmdDir
			cmd.Env = append(os.Environ(), "DATABASE_URL=")

			output, err := cmd.CombinedOutput()
			Expect(err).To(HaveOccurred())
			Expect(string(output)).To(ContainSubstring("DATABASE_URL"))
		})
	})
})
