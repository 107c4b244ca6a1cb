// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Shelfkeep Contributors

package catalog

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"

	"github.com/samber/oops"
)

// Service coordinates the repositories with the image store.
type Service struct {
	catalogs CatalogRepository
	items    ItemRepository
	images   *ImageStore
	logger   *slog.Logger
}

// NewService creates a Service. A nil logger uses slog.Default.
func NewService(catalogs CatalogRepository, items ItemRepository, images *ImageStore, logger *slog.Logger) (*Service, error) {
	if catalogs == nil {
		return nil, oops.Code("CATALOG_INVALID_CONFIG").Errorf("catalog repository is required")
	}
	if items == nil {
		return nil, oops.Code("CATALOG_INVALID_CONFIG").Errorf("item repository is required")
	}
	if images == nil {
		return nil, oops.Code("CATALOG_INVALID_CONFIG").Errorf("image store is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{catalogs: catalogs, items: items, images: images, logger: logger}, nil
}

// ListCatalogs returns a page of catalogs.
func (s *Service) ListCatalogs(ctx context.Context, page Page) ([]Catalog, error) {
	return s.catalogs.List(ctx, page.Normalize(DefaultCatalogLimit))
}

// CreateCatalog adds a catalog.
func (s *Service) CreateCatalog(ctx context.Context, name string) (*Catalog, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, invalid("name not specified")
	}
	return s.catalogs.Create(ctx, name)
}

// UpdateCatalog renames and/or renumbers a catalog.
func (s *Service) UpdateCatalog(ctx context.Context, id int64, upd CatalogUpdate) error {
	if upd.IsEmpty() {
		return invalid("nothing to update")
	}
	if upd.NewID != nil && *upd.NewID <= 0 {
		return invalid("newId must be positive")
	}
	return s.catalogs.Update(ctx, id, upd)
}

// DeleteCatalog removes a catalog and, through the foreign key, its items.
func (s *Service) DeleteCatalog(ctx context.Context, id int64) error {
	return s.catalogs.Delete(ctx, id)
}

// ListItems returns a page of a catalog's items.
func (s *Service) ListItems(ctx context.Context, catalogID int64, page Page) ([]Item, error) {
	return s.items.List(ctx, catalogID, page.Normalize(DefaultItemLimit))
}

// GetItem returns one item.
func (s *Service) GetItem(ctx context.Context, catalogID, id int64) (*Item, error) {
	return s.items.Get(ctx, catalogID, id)
}

// AddItem creates an item in catalogID.
func (s *Service) AddItem(ctx context.Context, item *Item) error {
	item.Name = strings.TrimSpace(item.Name)
	switch {
	case item.Name == "":
		return invalid("name not specified")
	case item.Price < 0:
		return invalid("price must not be negative")
	case item.Amount < 0:
		return invalid("amount must not be negative")
	}
	return s.items.Create(ctx, item)
}

// UpdateItem changes the supplied fields of an item.
func (s *Service) UpdateItem(ctx context.Context, catalogID, id int64, upd ItemUpdate) error {
	if upd.IsEmpty() {
		return invalid("nothing to update")
	}
	if err := upd.Validate(); err != nil {
		return err
	}
	return s.items.Update(ctx, catalogID, id, upd)
}

// DeleteItem removes an item and then its image file.
func (s *Service) DeleteItem(ctx context.Context, catalogID, id int64) error {
	item, err := s.items.Delete(ctx, catalogID, id)
	if err != nil {
		return err
	}
	if item.ImageName != nil {
		s.removeImage(ctx, *item.ImageName)
	}
	return nil
}

// UploadImage stores r as the item's image, replacing any previous one.
func (s *Service) UploadImage(ctx context.Context, catalogID, id int64, r io.Reader) (string, error) {
	name, err := s.images.Save(r)
	if err != nil {
		return "", err
	}

	previous, err := s.items.SetImage(ctx, catalogID, id, name)
	if err != nil {
		s.removeImage(ctx, name)
		return "", err
	}
	if previous != nil && *previous != name {
		s.removeImage(ctx, *previous)
	}
	return name, nil
}

// OpenImage returns the item's image file.
func (s *Service) OpenImage(ctx context.Context, catalogID, id int64) (io.ReadSeekCloser, string, error) {
	item, err := s.items.Get(ctx, catalogID, id)
	if err != nil {
		return nil, "", err
	}
	if item.ImageName == nil {
		return nil, "", oops.Code("IMAGE_NOT_FOUND").
			With("catalog_id", catalogID).
			With("id", id).
			Wrap(ErrNotFound)
	}
	f, err := s.images.Open(*item.ImageName)
	if err != nil {
		return nil, "", err
	}
	return f, *item.ImageName, nil
}

func (s *Service) removeImage(ctx context.Context, name string) {
	if err := s.images.Remove(name); err != nil {
		s.logger.WarnContext(ctx, "failed to remove image file", "name", name, "error", err)
	}
}

// IsNotFound reports whether err means a missing catalog, item, or image.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
