// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Shelfkeep Contributors

// Package postgres implements the catalog repositories on PostgreSQL.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// poolIface is the subset of *pgxpool.Pool the repositories use. It is also
// satisfied by pgxmock.PgxPoolIface.
type poolIface interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func pgCode(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code
	}
	return ""
}

func isUniqueViolation(err error) bool { return pgCode(err) == pgerrcode.UniqueViolation }

func isForeignKeyViolation(err error) bool { return pgCode(err) == pgerrcode.ForeignKeyViolation }

// setClause accumulates "col = $n" assignments for a partial UPDATE.
type setClause struct {
	cols []string
	args []any
}

func (s *setClause) add(col string, v any) {
	s.args = append(s.args, v)
	s.cols = append(s.cols, fmt.Sprintf("%s = $%d", col, len(s.args)))
}

// where appends the WHERE arguments and returns their placeholders.
func (s *setClause) where(vals ...any) []string {
	ph := make([]string, len(vals))
	for i, v := range vals {
		s.args = append(s.args, v)
		ph[i] = fmt.Sprintf("$%d", len(s.args))
	}
	return ph
}

func (s *setClause) String() string {
	return strings.Join(s.cols, ", ")
}
