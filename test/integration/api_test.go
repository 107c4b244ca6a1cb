// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Shelfkeep Contributors

//go:build integration

package integration

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"sync/atomic"
	"time"

	. "github.com/onsi/ginkgo/v2" //nolint:revive // ginkgo convention
	. "github.com/onsi/gomega"    //nolint:revive // gomega convention

	"github.com/shelfkeep/shelfkeep/internal/access"
	"github.com/shelfkeep/shelfkeep/internal/auth"
	authpg "github.com/shelfkeep/shelfkeep/internal/auth/postgres"
	"github.com/shelfkeep/shelfkeep/internal/catalog"
	catalogpg "github.com/shelfkeep/shelfkeep/internal/catalog/postgres"
	"github.com/shelfkeep/shelfkeep/internal/web"
)

// pngBytes is a 1x1 transparent PNG.
var pngBytes = []byte{
	0x89, 0x50, 0x4e, 0x47, 0x0d, 0x0a, 0x1a, 0x0a, 0x00, 0x00, 0x00, 0x0d,
	0x49, 0x48, 0x44, 0x52, 0x00, 0x00, 0x00, 0x01, 0x00, 0x00, 0x00, 0x01,
	0x08, 0x06, 0x00, 0x00, 0x00, 0x1f, 0x15, 0xc4, 0x89, 0x00, 0x00, 0x00,
	0x0a, 0x49, 0x44, 0x41, 0x54, 0x78, 0x9c, 0x63, 0x00, 0x01, 0x00, 0x00,
	0x05, 0x00, 0x01, 0x0d, 0x0a, 0x2d, 0xb4, 0x00, 0x00, 0x00, 0x00, 0x49,
	0x45, 0x4e, 0x44, 0xae, 0x42, 0x60, 0x82,
}

// testClock is a settable auth.Clock.
type testClock struct{ now atomic.Int64 }

func newTestClock() *testClock {
	c := &testClock{}
	c.now.Store(time.Now().UnixNano())
	return c
}

func (c *testClock) Now() time.Time { return time.Unix(0, c.now.Load()) }

func (c *testClock) Advance(d time.Duration) { c.now.Add(int64(d)) }

type loginBody struct {
	Token string `json:"token"`
	Role  string `json:"role"`
}

// apiEnv wires the real repositories behind an in-process HTTP server.
type apiEnv struct {
	ctx    context.Context
	clock  *testClock
	users  *authpg.UserRepository
	hasher *auth.Argon2idHasher
	http   *httptest.Server
}

func newAPIEnv(ctx context.Context, tokenTTL time.Duration) *apiEnv {
	env := &apiEnv{
		ctx:    ctx,
		clock:  newTestClock(),
		users:  authpg.NewUserRepository(pool),
		hasher: auth.NewArgon2idHasher(),
	}

	authSvc, err := auth.NewAuthService(authpg.NewTokenRepository(pool), env.users, env.hasher,
		auth.WithClock(env.clock.Now),
		auth.WithTokenTTL(tokenTTL),
		auth.WithPruneOnValidate(true),
	)
	Expect(err).NotTo(HaveOccurred())

	images, err := catalog.NewImageStore(GinkgoT().TempDir(), catalog.DefaultMaxImageBytes)
	Expect(err).NotTo(HaveOccurred())
	catSvc, err := catalog.NewService(catalogpg.NewCatalogRepository(pool), catalogpg.NewItemRepository(pool), images, nil)
	Expect(err).NotTo(HaveOccurred())

	policy, err := access.NewPolicy(access.DefaultRoles())
	Expect(err).NotTo(HaveOccurred())

	server, err := web.NewServer("127.0.0.1:0", authSvc, catSvc, web.Options{Access: policy})
	Expect(err).NotTo(HaveOccurred())

	env.http = httptest.NewServer(server.Handler())
	DeferCleanup(env.http.Close)
	return env
}

func (e *apiEnv) createUser(login, password, role string) {
	hash, err := e.hasher.Hash(password, login)
	Expect(err).NotTo(HaveOccurred())
	user, err := auth.NewUser(login, hash, role)
	Expect(err).NotTo(HaveOccurred())
	Expect(e.users.Create(e.ctx, user)).To(Succeed())
}

func (e *apiEnv) do(method, path string, form url.Values) *http.Response {
	target := e.http.URL + path
	if form != nil {
		target += "?" + form.Encode()
	}
	req, err := http.NewRequestWithContext(e.ctx, method, target, nil)
	Expect(err).NotTo(HaveOccurred())
	resp, err := e.http.Client().Do(req)
	Expect(err).NotTo(HaveOccurred())
	DeferCleanup(resp.Body.Close)
	return resp
}

func (e *apiEnv) login(form url.Values) (*http.Response, loginBody) {
	resp := e.do(http.MethodPost, "/api/v1/auth", form)
	var body loginBody
	if resp.StatusCode == http.StatusOK {
		Expect(json.NewDecoder(resp.Body).Decode(&body)).To(Succeed())
	}
	return resp, body
}

func decode[T any](resp *http.Response) T {
	var v T
	Expect(json.NewDecoder(resp.Body).Decode(&v)).To(Succeed())
	return v
}

func id(v int64) string { return strconv.FormatInt(v, 10) }

var _ = Describe("Catalog API", func() {
	var env *apiEnv

	BeforeEach(func() {
		ctx := context.Background()
		truncateAll(ctx)
		env = newAPIEnv(ctx, time.Hour)
		env.createUser("admin", "s3cret", "admin")
		env.createUser("clerk", "hunter2", "editor")
	})

	Describe("Login", func() {
		It("issues one token per user and reuses it", func() {
			resp, first := env.login(url.Values{"login": {"admin"}, "password": {"s3cret"}})
			Expect(resp.StatusCode).To(Equal(http.StatusOK))
			Expect(first.Token).NotTo(BeEmpty())
			Expect(first.Role).To(Equal("admin"))

			_, second := env.login(url.Values{"login": {"admin"}, "password": {"s3cret"}})
			Expect(second.Token).To(Equal(first.Token))

			var count int
			Expect(pool.QueryRow(env.ctx, "SELECT count(*) FROM tokens").Scan(&count)).To(Succeed())
			Expect(count).To(Equal(1))
		})

		It("accepts a live token in place of credentials", func() {
			_, issued := env.login(url.Values{"login": {"clerk"}, "password": {"hunter2"}})

			resp, body := env.login(url.Values{"token": {issued.Token}})
			Expect(resp.StatusCode).To(Equal(http.StatusOK))
			Expect(body.Token).To(Equal(issued.Token))
			Expect(body.Role).To(Equal("editor"))
		})

		It("rejects a wrong password with 401", func() {
			resp, _ := env.login(url.Values{"login": {"admin"}, "password": {"nope"}})
			Expect(resp.StatusCode).To(Equal(http.StatusUnauthorized))
		})

		It("rejects an unknown token with 403", func() {
			resp, _ := env.login(url.Values{"token": {"not-a-token"}})
			Expect(resp.StatusCode).To(Equal(http.StatusForbidden))
		})

		It("rejects and prunes an expired token", func() {
			_, issued := env.login(url.Values{"login": {"admin"}, "password": {"s3cret"}})
			env.clock.Advance(2 * time.Hour)

			resp, _ := env.login(url.Values{"token": {issued.Token}})
			Expect(resp.StatusCode).To(Equal(http.StatusForbidden))

			Eventually(func() int {
				var count int
				Expect(pool.QueryRow(env.ctx, "SELECT count(*) FROM tokens").Scan(&count)).To(Succeed())
				return count
			}).Should(BeZero())

			_, renewed := env.login(url.Values{"login": {"admin"}, "password": {"s3cret"}})
			Expect(renewed.Token).NotTo(Equal(issued.Token))
		})
	})

	Describe("Catalog lifecycle", func() {
		var adminToken, clerkToken string

		BeforeEach(func() {
			_, a := env.login(url.Values{"login": {"admin"}, "password": {"s3cret"}})
			_, c := env.login(url.Values{"login": {"clerk"}, "password": {"hunter2"}})
			adminToken, clerkToken = a.Token, c.Token
		})

		It("gates writes on a valid token and role", func() {
			resp := env.do(http.MethodPost, "/api/v1/catalog", url.Values{"name": {"Tools"}})
			Expect(resp.StatusCode).To(Equal(http.StatusUnauthorized))

			resp = env.do(http.MethodPost, "/api/v1/catalog", url.Values{"name": {"Tools"}, "token": {clerkToken}})
			Expect(resp.StatusCode).To(Equal(http.StatusForbidden))

			resp = env.do(http.MethodPost, "/api/v1/catalog", url.Values{"name": {"Tools"}, "token": {adminToken}})
			Expect(resp.StatusCode).To(Equal(http.StatusCreated))
		})

		It("stores items, their images, and cascades deletes", func() {
			resp := env.do(http.MethodPost, "/api/v1/catalog", url.Values{"name": {"Tools"}, "token": {adminToken}})
			Expect(resp.StatusCode).To(Equal(http.StatusCreated))
			created := decode[catalog.Catalog](resp)

			resp = env.do(http.MethodPost, "/api/v1/catalog/"+id(created.ID), url.Values{
				"name": {"Hammer"}, "price": {"12.50"}, "amount": {"3"}, "token": {clerkToken},
			})
			Expect(resp.StatusCode).To(Equal(http.StatusCreated))
			item := decode[catalog.Item](resp)
			Expect(item.Price).To(Equal(12.5))
			Expect(item.ImageName).To(BeNil())

			By("uploading an image")
			var body bytes.Buffer
			mw := multipart.NewWriter(&body)
			part, err := mw.CreateFormFile("image", "hammer.png")
			Expect(err).NotTo(HaveOccurred())
			_, err = part.Write(pngBytes)
			Expect(err).NotTo(HaveOccurred())
			Expect(mw.Close()).To(Succeed())

			itemPath := "/api/v1/catalog/" + id(created.ID) + "/" + id(item.ID)
			req, err := http.NewRequestWithContext(env.ctx, http.MethodPost,
				env.http.URL+itemPath+"/upload?token="+url.QueryEscape(clerkToken), &body)
			Expect(err).NotTo(HaveOccurred())
			req.Header.Set("Content-Type", mw.FormDataContentType())
			upload, err := env.http.Client().Do(req)
			Expect(err).NotTo(HaveOccurred())
			DeferCleanup(upload.Body.Close)
			Expect(upload.StatusCode).To(Equal(http.StatusOK))

			By("fetching it back")
			resp = env.do(http.MethodGet, itemPath+"/image", nil)
			Expect(resp.StatusCode).To(Equal(http.StatusOK))
			got, err := io.ReadAll(resp.Body)
			Expect(err).NotTo(HaveOccurred())
			Expect(got).To(Equal(pngBytes))

			resp = env.do(http.MethodGet, itemPath, nil)
			fetched := decode[catalog.Item](resp)
			Expect(fetched.ImageName).NotTo(BeNil())
			Expect(fetched.ImageURL).To(HaveSuffix(itemPath + "/image"))

			By("deleting the catalog")
			resp = env.do(http.MethodDelete, "/api/v1/catalog", url.Values{"id": {id(created.ID)}, "token": {adminToken}})
			Expect(resp.StatusCode).To(Equal(http.StatusNoContent))

			resp = env.do(http.MethodGet, itemPath, nil)
			Expect(resp.StatusCode).To(Equal(http.StatusNotFound))
		})

		It("renames and renumbers a catalog", func() {
			resp := env.do(http.MethodPost, "/api/v1/catalog", url.Values{"name": {"Paint"}, "token": {adminToken}})
			created := decode[catalog.Catalog](resp)

			resp = env.do(http.MethodPut, "/api/v1/catalog/"+id(created.ID), url.Values{
				"name": {"Paints"}, "newId": {"42"}, "token": {adminToken},
			})
			Expect(resp.StatusCode).To(Equal(http.StatusNoContent))

			resp = env.do(http.MethodGet, "/api/v1/catalog", nil)
			Expect(decode[[]catalog.Catalog](resp)).To(Equal([]catalog.Catalog{{ID: 42, Name: "Paints"}}))
		})
	})
})
