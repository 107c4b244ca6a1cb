// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Shelfkeep Contributors

package web

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/samber/oops"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"

	"github.com/shelfkeep/shelfkeep/internal/auth"
	"github.com/shelfkeep/shelfkeep/internal/catalog"
	"github.com/shelfkeep/shelfkeep/internal/logging"
)

// fakeAuth maps tokens to roles.
type fakeAuth struct {
	mu        sync.Mutex
	tokens    map[string]string
	err       error
	loginRes  auth.Result
	loginErr  error
	lastLogin auth.LoginRequest
	panicMsg  string
}

func newFakeAuth() *fakeAuth {
	return &fakeAuth{tokens: map[string]string{"good": "admin"}}
}

func (f *fakeAuth) Login(_ context.Context, req auth.LoginRequest) (auth.Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.panicMsg != "" {
		panic(f.panicMsg)
	}
	f.lastLogin = req
	return f.loginRes, f.loginErr
}

func (f *fakeAuth) IsValid(_ context.Context, token string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return false, f.err
	}
	_, ok := f.tokens[token]
	return ok, nil
}

func (f *fakeAuth) ResolveRole(_ context.Context, token string) (string, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return "", false, f.err
	}
	role, ok := f.tokens[token]
	return role, ok, nil
}

type observed struct {
	method string
	route  string
	status int
}

type fakeRecorder struct {
	mu       sync.Mutex
	requests []observed
	uploaded int64
}

func (r *fakeRecorder) ObserveRequest(method, route string, status int, _ time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.requests = append(r.requests, observed{method: method, route: route, status: status})
}

func (r *fakeRecorder) ObserveUpload(n int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.uploaded += n
}

func (r *fakeRecorder) last() observed {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.requests) == 0 {
		return observed{}
	}
	return r.requests[len(r.requests)-1]
}

func missing(kind string) error {
	return oops.Code(kind + "_NOT_FOUND").Wrap(catalog.ErrNotFound)
}

func window[T any](rows []T, page catalog.Page) []T {
	out := make([]T, 0)
	for i := page.Offset; i < len(rows) && len(out) < page.Limit; i++ {
		out = append(out, rows[i])
	}
	return out
}

// memCatalogs is an in-memory catalog.CatalogRepository.
type memCatalogs struct {
	mu       sync.Mutex
	rows     map[int64]string
	next     int64
	err      error
	lastPage catalog.Page
}

func (m *memCatalogs) exists(id int64) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.rows[id]
	return ok
}

func (m *memCatalogs) List(_ context.Context, page catalog.Page) ([]catalog.Catalog, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastPage = page
	if m.err != nil {
		return nil, m.err
	}
	all := make([]catalog.Catalog, 0, len(m.rows))
	for id, name := range m.rows {
		all = append(all, catalog.Catalog{ID: id, Name: name})
	}
	sort.Slice(all, func(i, j int) bool { return all[i].ID < all[j].ID })
	return window(all, page), nil
}

func (m *memCatalogs) Create(_ context.Context, name string) (*catalog.Catalog, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.next++
	m.rows[m.next] = name
	return &catalog.Catalog{ID: m.next, Name: name}, nil
}

func (m *memCatalogs) Update(_ context.Context, id int64, upd catalog.CatalogUpdate) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	name, ok := m.rows[id]
	if !ok {
		return missing("CATALOG")
	}
	if upd.Name != nil {
		name = *upd.Name
	}
	if upd.NewID != nil && *upd.NewID != id {
		if _, taken := m.rows[*upd.NewID]; taken {
			return oops.Code("CATALOG_CONFLICT").Wrap(catalog.ErrConflict)
		}
		delete(m.rows, id)
		id = *upd.NewID
	}
	m.rows[id] = name
	return nil
}

func (m *memCatalogs) Delete(_ context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.rows[id]; !ok {
		return missing("CATALOG")
	}
	delete(m.rows, id)
	return nil
}

// memItems is an in-memory catalog.ItemRepository.
type memItems struct {
	mu       sync.Mutex
	catalogs *memCatalogs
	rows     map[int64]catalog.Item
	next     int64
}

func (m *memItems) List(_ context.Context, catalogID int64, page catalog.Page) ([]catalog.Item, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var all []catalog.Item
	for _, item := range m.rows {
		if item.CatalogID == catalogID {
			all = append(all, item)
		}
	}
	sort.Slice(all, func(i, j int) bool { return all[i].ID < all[j].ID })
	return window(all, page), nil
}

func (m *memItems) Get(_ context.Context, catalogID, id int64) (*catalog.Item, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	item, ok := m.rows[id]
	if !ok || item.CatalogID != catalogID {
		return nil, missing("ITEM")
	}
	return &item, nil
}

func (m *memItems) Create(_ context.Context, item *catalog.Item) error {
	if !m.catalogs.exists(item.CatalogID) {
		return missing("CATALOG")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.next++
	item.ID = m.next
	m.rows[item.ID] = *item
	return nil
}

func (m *memItems) Update(_ context.Context, catalogID, id int64, upd catalog.ItemUpdate) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	item, ok := m.rows[id]
	if !ok || item.CatalogID != catalogID {
		return missing("ITEM")
	}
	if upd.Name != nil {
		item.Name = *upd.Name
	}
	if upd.Price != nil {
		item.Price = *upd.Price
	}
	if upd.Amount != nil {
		item.Amount = *upd.Amount
	}
	if upd.NewCatalogID != nil {
		item.CatalogID = *upd.NewCatalogID
	}
	if upd.NewID != nil && *upd.NewID != id {
		if _, taken := m.rows[*upd.NewID]; taken {
			return oops.Code("ITEM_CONFLICT").Wrap(catalog.ErrConflict)
		}
		delete(m.rows, id)
		item.ID = *upd.NewID
	}
	m.rows[item.ID] = item
	return nil
}

func (m *memItems) Delete(_ context.Context, catalogID, id int64) (*catalog.Item, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	item, ok := m.rows[id]
	if !ok || item.CatalogID != catalogID {
		return nil, missing("ITEM")
	}
	delete(m.rows, id)
	return &item, nil
}

func (m *memItems) SetImage(_ context.Context, catalogID, id int64, imageName string) (*string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	item, ok := m.rows[id]
	if !ok || item.CatalogID != catalogID {
		return nil, missing("ITEM")
	}
	previous := item.ImageName
	item.ImageName = &imageName
	m.rows[id] = item
	return previous, nil
}

// lockedBuffer is a bytes.Buffer safe for a logger and a reader.
type lockedBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *lockedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *lockedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

// entries decodes every JSON log line.
func (b *lockedBuffer) entries(t *testing.T) []map[string]any {
	t.Helper()
	var out []map[string]any
	for _, line := range bytes.Split([]byte(b.String()), []byte("\n")) {
		if len(bytes.TrimSpace(line)) == 0 {
			continue
		}
		var entry map[string]any
		require.NoError(t, json.Unmarshal(line, &entry))
		out = append(out, entry)
	}
	return out
}

type fixture struct {
	t        *testing.T
	auth     *fakeAuth
	catalogs *memCatalogs
	items    *memItems
	recorder *fakeRecorder
	logs     *lockedBuffer
	server   *Server
}

func newFixture(t *testing.T, opts Options) *fixture {
	t.Helper()
	f := &fixture{
		t:        t,
		auth:     newFakeAuth(),
		catalogs: &memCatalogs{rows: map[int64]string{}},
		recorder: &fakeRecorder{},
		logs:     &lockedBuffer{},
	}
	f.items = &memItems{catalogs: f.catalogs, rows: map[int64]catalog.Item{}}

	logger := logging.Setup("shelfkeep", "test", logging.FormatJSON, slog.LevelDebug, f.logs)
	images := catalog.NewImageStoreFs(afero.NewMemMapFs(), opts.MaxUploadBytes)
	svc, err := catalog.NewService(f.catalogs, f.items, images, logger)
	require.NoError(t, err)

	if opts.Recorder == nil {
		opts.Recorder = f.recorder
	}
	opts.Logger = logger
	f.server, err = NewServer("127.0.0.1:0", f.auth, svc, opts)
	require.NoError(t, err)
	return f
}

func (f *fixture) do(method, target string, body io.Reader, header http.Header) *httptest.ResponseRecorder {
	f.t.Helper()
	req := httptest.NewRequest(method, target, body)
	for k, vs := range header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	rec := httptest.NewRecorder()
	f.server.Handler().ServeHTTP(rec, req)
	return rec
}

func (f *fixture) seedCatalog(name string) int64 {
	f.t.Helper()
	c, err := f.catalogs.Create(context.Background(), name)
	require.NoError(f.t, err)
	return c.ID
}

func (f *fixture) seedItem(catalogID int64, name string) int64 {
	f.t.Helper()
	item := &catalog.Item{CatalogID: catalogID, Name: name, Price: 1, Amount: 1}
	require.NoError(f.t, f.items.Create(context.Background(), item))
	return item.ID
}

func decodeJSON[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), "body: %s", rec.Body.String())
	return v
}

func errorMessage(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	return decodeJSON[errorResponse](t, rec).Error
}

var errStoreDown = errors.New("store down")
