// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Shelfkeep Contributors

package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/samber/oops"

	"github.com/shelfkeep/shelfkeep/internal/catalog"
)

// ItemRepository implements catalog.ItemRepository using PostgreSQL.
type ItemRepository struct {
	pool poolIface
}

// NewItemRepository creates a new ItemRepository.
func NewItemRepository(pool poolIface) *ItemRepository {
	return &ItemRepository{pool: pool}
}

// List returns a catalog's items ordered by id.
func (r *ItemRepository) List(ctx context.Context, catalogID int64, page catalog.Page) ([]catalog.Item, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, catalog_id, name, price, amount, image_name
		FROM items
		WHERE catalog_id = $1
		ORDER BY id
		OFFSET $2 LIMIT $3
	`, catalogID, page.Offset, page.Limit)
	if err != nil {
		return nil, oops.Code("ITEM_LIST_FAILED").
			With("operation", "list items").
			With("catalog_id", catalogID).
			Wrap(err)
	}
	defer rows.Close()

	items := make([]catalog.Item, 0)
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, oops.Code("ITEM_SCAN_FAILED").
				With("operation", "scan item row").
				Wrap(err)
		}
		items = append(items, *item)
	}
	if err := rows.Err(); err != nil {
		return nil, oops.Code("ITEM_ROWS_ERROR").
			With("operation", "iterate item rows").
			Wrap(err)
	}
	return items, nil
}

// Get returns one item.
func (r *ItemRepository) Get(ctx context.Context, catalogID, id int64) (*catalog.Item, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, catalog_id, name, price, amount, image_name
		FROM items
		WHERE catalog_id = $1 AND id = $2
	`, catalogID, id)

	item, err := scanItem(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, notFound(catalogID, id)
	}
	if err != nil {
		return nil, oops.Code("ITEM_GET_FAILED").
			With("operation", "get item").
			With("catalog_id", catalogID).
			With("id", id).
			Wrap(err)
	}
	return item, nil
}

// Create inserts an item and fills its ID.
func (r *ItemRepository) Create(ctx context.Context, item *catalog.Item) error {
	err := r.pool.QueryRow(ctx, `
		INSERT INTO items (catalog_id, name, price, amount)
		VALUES ($1, $2, $3, $4)
		RETURNING id
	`, item.CatalogID, item.Name, item.Price, item.Amount).Scan(&item.ID)
	if isForeignKeyViolation(err) {
		return oops.Code("CATALOG_NOT_FOUND").
			With("catalog_id", item.CatalogID).
			Wrap(catalog.ErrNotFound)
	}
	if isUniqueViolation(err) {
		return oops.Code("ITEM_CONFLICT").Wrap(catalog.ErrConflict)
	}
	if err != nil {
		return oops.Code("ITEM_CREATE_FAILED").
			With("operation", "insert item").
			With("catalog_id", item.CatalogID).
			Wrap(err)
	}
	return nil
}

// Update applies the supplied fields.
func (r *ItemRepository) Update(ctx context.Context, catalogID, id int64, upd catalog.ItemUpdate) error {
	var set setClause
	if upd.NewID != nil {
		set.add("id", *upd.NewID)
	}
	if upd.NewCatalogID != nil {
		set.add("catalog_id", *upd.NewCatalogID)
	}
	if upd.Name != nil {
		set.add("name", *upd.Name)
	}
	if upd.Price != nil {
		set.add("price", *upd.Price)
	}
	if upd.Amount != nil {
		set.add("amount", *upd.Amount)
	}
	ph := set.where(catalogID, id)

	result, err := r.pool.Exec(ctx,
		`UPDATE items SET `+set.String()+` WHERE catalog_id = `+ph[0]+` AND id = `+ph[1],
		set.args...)
	switch {
	case isForeignKeyViolation(err):
		return oops.Code("CATALOG_NOT_FOUND").
			With("catalog_id", upd.NewCatalogID).
			Wrap(catalog.ErrNotFound)
	case isUniqueViolation(err):
		return oops.Code("ITEM_CONFLICT").
			With("id", upd.NewID).
			Wrap(catalog.ErrConflict)
	case err != nil:
		return oops.Code("ITEM_UPDATE_FAILED").
			With("operation", "update item").
			With("catalog_id", catalogID).
			With("id", id).
			Wrap(err)
	}
	if result.RowsAffected() == 0 {
		return notFound(catalogID, id)
	}
	return nil
}

// Delete removes an item and returns its last state.
func (r *ItemRepository) Delete(ctx context.Context, catalogID, id int64) (*catalog.Item, error) {
	row := r.pool.QueryRow(ctx, `
		DELETE FROM items
		WHERE catalog_id = $1 AND id = $2
		RETURNING id, catalog_id, name, price, amount, image_name
	`, catalogID, id)

	item, err := scanItem(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, notFound(catalogID, id)
	}
	if err != nil {
		return nil, oops.Code("ITEM_DELETE_FAILED").
			With("operation", "delete item").
			With("catalog_id", catalogID).
			With("id", id).
			Wrap(err)
	}
	return item, nil
}

// SetImage records a new image name and returns the previous one. The old
// value is read in the same statement so concurrent uploads each see the
// name they replaced.
func (r *ItemRepository) SetImage(ctx context.Context, catalogID, id int64, imageName string) (*string, error) {
	var previous *string
	err := r.pool.QueryRow(ctx, `
		UPDATE items AS i SET image_name = $3
		FROM (SELECT id, image_name FROM items WHERE catalog_id = $1 AND id = $2 FOR UPDATE) AS old
		WHERE i.id = old.id
		RETURNING old.image_name
	`, catalogID, id, imageName).Scan(&previous)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, notFound(catalogID, id)
	}
	if err != nil {
		return nil, oops.Code("ITEM_SET_IMAGE_FAILED").
			With("operation", "set item image").
			With("catalog_id", catalogID).
			With("id", id).
			Wrap(err)
	}
	return previous, nil
}

func notFound(catalogID, id int64) error {
	return oops.Code("ITEM_NOT_FOUND").
		With("catalog_id", catalogID).
		With("id", id).
		Wrap(catalog.ErrNotFound)
}

// scanItem scans a single row into an Item.
// Callers are responsible for handling pgx.ErrNoRows.
func scanItem(row pgx.Row) (*catalog.Item, error) {
	var item catalog.Item
	err := row.Scan(&item.ID, &item.CatalogID, &item.Name, &item.Price, &item.Amount, &item.ImageName)
	if err != nil {
		return nil, err //nolint:wrapcheck // callers wrap with context-specific info
	}
	return &item, nil
}

// Compile-time interface check.
var _ catalog.ItemRepository = (*ItemRepository)(nil)
