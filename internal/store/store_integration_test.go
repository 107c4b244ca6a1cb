// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Shelfkeep Contributors

//go:build integration

package store_test

import (
	"context"
	"time"

	. "github.com/onsi/ginkgo/v2" //nolint:revive // ginkgo convention
	. "github.com/onsi/gomega"    //nolint:revive // gomega convention

	"github.com/shelfkeep/shelfkeep/internal/store"
	"github.com/shelfkeep/shelfkeep/internal/store/pgtest"
)

var _ = Describe("Store", Ordered, func() {
	var (
		ctx context.Context
		db  *pgtest.Database
	)

	BeforeAll(func() {
		ctx = context.Background()
		var err error
		db, err = pgtest.Start(ctx)
		Expect(err).NotTo(HaveOccurred())
		DeferCleanup(func() { db.Terminate(ctx) })
	})

	Describe("Migrator", func() {
		It("walks the full up/down cycle", func() {
			migrator, err := store.NewMigrator(db.URL)
			Expect(err).NotTo(HaveOccurred())
			defer migrator.Close()

			version, dirty, err := migrator.Version()
			Expect(err).NotTo(HaveOccurred())
			Expect(version).To(BeZero())
			Expect(dirty).To(BeFalse())

			Expect(migrator.Up()).To(Succeed())
			status, err := migrator.Status()
			Expect(err).NotTo(HaveOccurred())
			Expect(status.Version).To(Equal(uint(2)))
			Expect(status.Name).To(Equal("000002_catalog"))
			Expect(status.Pending).To(BeEmpty())

			Expect(migrator.Steps(-1)).To(Succeed())
			version, _, err = migrator.Version()
			Expect(err).NotTo(HaveOccurred())
			Expect(version).To(Equal(uint(1)))

			Expect(migrator.Down()).To(Succeed())
			version, _, err = migrator.Version()
			Expect(err).NotTo(HaveOccurred())
			Expect(version).To(BeZero())

			Expect(migrator.Up()).To(Succeed())
		})
	})

	Describe("Connect", func() {
		It("returns a pool that answers health checks", func() {
			pool, err := store.Connect(ctx, db.URL, store.ConnectOptions{MaxConns: 4, Retries: 2})
			Expect(err).NotTo(HaveOccurred())
			defer pool.Close()

			Expect(store.NewHealthChecker(pool, time.Second).Check(ctx)).To(Succeed())

			var n int
			Expect(pool.QueryRow(ctx, `SELECT count(*) FROM users`).Scan(&n)).To(Succeed())
			Expect(n).To(BeZero())
		})

		It("gives up on an unreachable database", func() {
			_, err := store.Connect(ctx, "postgres://nobody@127.0.0.1:1/none?connect_timeout=1",
				store.ConnectOptions{Retries: 1, Backoff: 10 * time.Millisecond})
			Expect(err).To(HaveOccurred())
		})
	})
})
