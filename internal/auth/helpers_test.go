// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Shelfkeep Contributors

package auth_test

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/shelfkeep/shelfkeep/internal/auth"
)

// memTokenStore is an in-memory TokenStore that enforces the same
// uniqueness rules as the tokens table.
type memTokenStore struct {
	mu      sync.Mutex
	byUser  map[int64]auth.TokenRecord
	inserts int
}

func newMemTokenStore() *memTokenStore {
	return &memTokenStore{byUser: make(map[int64]auth.TokenRecord)}
}

func (s *memTokenStore) FindByToken(_ context.Context, token string) (*auth.TokenRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, rec := range s.byUser {
		if rec.Token == token {
			r := rec
			return &r, nil
		}
	}
	return nil, auth.ErrNotFound
}

func (s *memTokenStore) FindByUser(_ context.Context, userID int64) (*auth.TokenRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.byUser[userID]
	if !ok {
		return nil, auth.ErrNotFound
	}
	return &rec, nil
}

func (s *memTokenStore) Insert(_ context.Context, record *auth.TokenRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.byUser[record.UserID]; ok {
		return auth.ErrConflict
	}
	for _, rec := range s.byUser {
		if rec.Token == record.Token {
			return auth.ErrConflict
		}
	}
	s.byUser[record.UserID] = *record
	s.inserts++
	return nil
}

func (s *memTokenStore) Delete(_ context.Context, userID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.byUser, userID)
	return nil
}

func (s *memTokenStore) DeleteExpired(_ context.Context, userID int64, now time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.byUser[userID]
	if !ok || !rec.Expire.Before(now) {
		return false, nil
	}
	delete(s.byUser, userID)
	return true, nil
}

func (s *memTokenStore) PurgeExpired(_ context.Context, now time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for id, rec := range s.byUser {
		if rec.Expire.Before(now) {
			delete(s.byUser, id)
			n++
		}
	}
	return n, nil
}

func (s *memTokenStore) put(rec auth.TokenRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.byUser[rec.UserID] = rec
}

func (s *memTokenStore) rows() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.byUser)
}

func (s *memTokenStore) insertCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inserts
}

// memUserRepo is an in-memory UserRepository backed by a token store for
// role lookups.
type memUserRepo struct {
	mu     sync.Mutex
	users  map[string]*auth.User
	nextID int64
	tokens *memTokenStore
}

func newMemUserRepo(tokens *memTokenStore) *memUserRepo {
	return &memUserRepo{users: make(map[string]*auth.User), tokens: tokens}
}

func (r *memUserRepo) Create(_ context.Context, user *auth.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.users[user.Login]; ok {
		return auth.ErrConflict
	}
	r.nextID++
	user.ID = r.nextID
	u := *user
	r.users[user.Login] = &u
	return nil
}

func (r *memUserRepo) GetByID(_ context.Context, id int64) (*auth.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.ID == id {
			c := *u
			return &c, nil
		}
	}
	return nil, auth.ErrNotFound
}

func (r *memUserRepo) GetByLogin(_ context.Context, login string) (*auth.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[login]
	if !ok {
		return nil, auth.ErrNotFound
	}
	c := *u
	return &c, nil
}

func (r *memUserRepo) RoleByToken(ctx context.Context, token string) (string, error) {
	rec, err := r.tokens.FindByToken(ctx, token)
	if err != nil {
		return "", err
	}
	u, err := r.GetByID(ctx, rec.UserID)
	if err != nil {
		return "", err
	}
	return u.Role, nil
}

func (r *memUserRepo) UpdatePasswordHash(_ context.Context, id int64, passwordHash string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.ID == id {
			u.PasswordHash = passwordHash
			return nil
		}
	}
	return auth.ErrNotFound
}

// plainHasher is a fast reversible stand-in for argon2id so concurrency
// tests do not allocate 64 MB per goroutine.
type plainHasher struct{}

func (plainHasher) Hash(password, login string) (string, error) {
	if password == "" {
		return "", auth.ErrEmptyPassword
	}
	return "plain$" + login + "$" + password, nil
}

func (plainHasher) Verify(password, login, hash string) (bool, error) {
	return hash == "plain$"+login+"$"+password, nil
}

func (plainHasher) NeedsUpgrade(hash string) bool {
	return !strings.HasPrefix(hash, "plain$")
}

// fakeClock is a settable time source.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock(t time.Time) *fakeClock {
	return &fakeClock{now: t}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

var epoch = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
