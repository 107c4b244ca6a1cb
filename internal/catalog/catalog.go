// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Shelfkeep Contributors

// Package catalog holds the catalog and item domain: types, repository
// contracts, the image store, and the service the HTTP layer drives.
package catalog

import (
	"context"
	"errors"

	"github.com/samber/oops"
)

// Sentinel errors matched with errors.Is through oops wrapping.
var (
	ErrNotFound = errors.New("not found")
	ErrConflict = errors.New("conflict")
	ErrInvalid  = errors.New("invalid input")
)

// Paging defaults.
const (
	DefaultCatalogLimit = 1000
	DefaultItemLimit    = 10
	// MaxPageLimit caps any requested limit.
	MaxPageLimit = 1000
)

// Catalog is a named group of items.
type Catalog struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// Item is a stocked product inside a catalog.
type Item struct {
	ID        int64   `json:"id"`
	CatalogID int64   `json:"catalog_id"`
	Name      string  `json:"name"`
	Price     float64 `json:"price"`
	Amount    int     `json:"amount"`
	ImageName *string `json:"image_name"`
	ImageURL  string  `json:"image_url,omitempty"`
}

// Page selects a window of rows.
type Page struct {
	Offset int
	Limit  int
}

// Normalize fills zero or negative fields from defaultLimit and clamps the
// limit to MaxPageLimit.
func (p Page) Normalize(defaultLimit int) Page {
	if p.Offset < 0 {
		p.Offset = 0
	}
	if p.Limit <= 0 {
		p.Limit = defaultLimit
	}
	if p.Limit > MaxPageLimit {
		p.Limit = MaxPageLimit
	}
	return p
}

// CatalogUpdate lists the catalog fields to change. Nil fields are left alone.
type CatalogUpdate struct {
	Name  *string
	NewID *int64
}

// IsEmpty reports whether the update changes nothing.
func (u CatalogUpdate) IsEmpty() bool {
	return u.Name == nil && u.NewID == nil
}

// ItemUpdate lists the item fields to change. Nil fields are left alone.
type ItemUpdate struct {
	NewID        *int64
	NewCatalogID *int64
	Name         *string
	Price        *float64
	Amount       *int
}

// IsEmpty reports whether the update changes nothing.
func (u ItemUpdate) IsEmpty() bool {
	return u.NewID == nil && u.NewCatalogID == nil && u.Name == nil && u.Price == nil && u.Amount == nil
}

// Validate rejects negative values.
func (u ItemUpdate) Validate() error {
	switch {
	case u.NewID != nil && *u.NewID <= 0:
		return invalid("newId must be positive")
	case u.NewCatalogID != nil && *u.NewCatalogID <= 0:
		return invalid("newCatalogId must be positive")
	case u.Price != nil && *u.Price < 0:
		return invalid("price must not be negative")
	case u.Amount != nil && *u.Amount < 0:
		return invalid("amount must not be negative")
	}
	return nil
}

// CatalogRepository persists catalogs.
type CatalogRepository interface {
	List(ctx context.Context, page Page) ([]Catalog, error)
	// Create returns the stored catalog with its generated id.
	Create(ctx context.Context, name string) (*Catalog, error)
	// Update returns ErrNotFound when id is absent and ErrConflict when NewID is taken.
	Update(ctx context.Context, id int64, upd CatalogUpdate) error
	// Delete returns ErrNotFound when id is absent. Items cascade.
	Delete(ctx context.Context, id int64) error
}

// ItemRepository persists items.
type ItemRepository interface {
	List(ctx context.Context, catalogID int64, page Page) ([]Item, error)
	Get(ctx context.Context, catalogID, id int64) (*Item, error)
	// Create fills item.ID. An unknown catalog is ErrNotFound.
	Create(ctx context.Context, item *Item) error
	Update(ctx context.Context, catalogID, id int64, upd ItemUpdate) error
	// Delete removes the item and returns it so its image can be removed.
	Delete(ctx context.Context, catalogID, id int64) (*Item, error)
	// SetImage records imageName and returns the name it replaced, if any.
	SetImage(ctx context.Context, catalogID, id int64, imageName string) (previous *string, err error)
}

func invalid(reason string) error {
	return oops.Code("CATALOG_INVALID_INPUT").
		With("reason", reason).
		Wrapf(ErrInvalid, "%s", reason)
}

// InvalidReason returns the client-facing reason carried by an ErrInvalid
// error, or "" for any other error.
func InvalidReason(err error) string {
	if !errors.Is(err, ErrInvalid) {
		return ""
	}
	if oopsErr, ok := oops.AsOops(err); ok {
		if reason, ok := oopsErr.Context()["reason"].(string); ok {
			return reason
		}
	}
	return ErrInvalid.Error()
}
