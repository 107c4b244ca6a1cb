// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Shelfkeep Contributors

package postgres

import (
	"context"

	"github.com/samber/oops"

	"github.com/shelfkeep/shelfkeep/internal/catalog"
)

// CatalogRepository implements catalog.CatalogRepository using PostgreSQL.
type CatalogRepository struct {
	pool poolIface
}

// NewCatalogRepository creates a new CatalogRepository.
func NewCatalogRepository(pool poolIface) *CatalogRepository {
	return &CatalogRepository{pool: pool}
}

// List returns catalogs ordered by id.
func (r *CatalogRepository) List(ctx context.Context, page catalog.Page) ([]catalog.Catalog, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, name FROM catalog
		ORDER BY id
		OFFSET $1 LIMIT $2
	`, page.Offset, page.Limit)
	if err != nil {
		return nil, oops.Code("CATALOG_LIST_FAILED").
			With("operation", "list catalogs").
			Wrap(err)
	}
	defer rows.Close()

	catalogs := make([]catalog.Catalog, 0)
	for rows.Next() {
		var c catalog.Catalog
		if err := rows.Scan(&c.ID, &c.Name); err != nil {
			return nil, oops.Code("CATALOG_SCAN_FAILED").
				With("operation", "scan catalog row").
				Wrap(err)
		}
		catalogs = append(catalogs, c)
	}
	if err := rows.Err(); err != nil {
		return nil, oops.Code("CATALOG_ROWS_ERROR").
			With("operation", "iterate catalog rows").
			Wrap(err)
	}
	return catalogs, nil
}

// Create inserts a catalog.
func (r *CatalogRepository) Create(ctx context.Context, name string) (*catalog.Catalog, error) {
	c := &catalog.Catalog{Name: name}
	err := r.pool.QueryRow(ctx, `
		INSERT INTO catalog (name) VALUES ($1)
		RETURNING id
	`, name).Scan(&c.ID)
	if isUniqueViolation(err) {
		// A manual renumber can collide with the id sequence.
		return nil, oops.Code("CATALOG_CONFLICT").Wrap(catalog.ErrConflict)
	}
	if err != nil {
		return nil, oops.Code("CATALOG_CREATE_FAILED").
			With("operation", "insert catalog").
			Wrap(err)
	}
	return c, nil
}

// Update applies the supplied fields. Renumbering cascades to items.
func (r *CatalogRepository) Update(ctx context.Context, id int64, upd catalog.CatalogUpdate) error {
	var set setClause
	if upd.Name != nil {
		set.add("name", *upd.Name)
	}
	if upd.NewID != nil {
		set.add("id", *upd.NewID)
	}
	ph := set.where(id)

	result, err := r.pool.Exec(ctx, `UPDATE catalog SET `+set.String()+` WHERE id = `+ph[0], set.args...)
	if isUniqueViolation(err) {
		return oops.Code("CATALOG_CONFLICT").
			With("id", id).
			Wrap(catalog.ErrConflict)
	}
	if err != nil {
		return oops.Code("CATALOG_UPDATE_FAILED").
			With("operation", "update catalog").
			With("id", id).
			Wrap(err)
	}
	if result.RowsAffected() == 0 {
		return oops.Code("CATALOG_NOT_FOUND").
			With("id", id).
			Wrap(catalog.ErrNotFound)
	}
	return nil
}

// Delete removes a catalog.
func (r *CatalogRepository) Delete(ctx context.Context, id int64) error {
	result, err := r.pool.Exec(ctx, `DELETE FROM catalog WHERE id = $1`, id)
	if err != nil {
		return oops.Code("CATALOG_DELETE_FAILED").
			With("operation", "delete catalog").
			With("id", id).
			Wrap(err)
	}
	if result.RowsAffected() == 0 {
		return oops.Code("CATALOG_NOT_FOUND").
			With("id", id).
			Wrap(catalog.ErrNotFound)
	}
	return nil
}

// Compile-time interface check.
var _ catalog.CatalogRepository = (*CatalogRepository)(nil)
