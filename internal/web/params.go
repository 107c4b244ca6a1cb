// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Shelfkeep Contributors

package web

import (
	"fmt"
	"math"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/shelfkeep/shelfkeep/internal/catalog"
)

// paramError is a client mistake in a path, query, or form parameter.
type paramError struct {
	name string
}

func (e *paramError) Error() string {
	return fmt.Sprintf("%s is not a valid number", e.name)
}

// formValue returns a query or form parameter and whether it was present.
func formValue(r *http.Request, name string) (string, bool) {
	if r.Form == nil {
		_ = r.ParseForm() //nolint:errcheck // a bad body leaves the query values usable
	}
	values, ok := r.Form[name]
	if !ok || len(values) == 0 {
		return "", false
	}
	return values[0], true
}

// pathID parses a positive id from a route parameter.
func pathID(r *http.Request, name string) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil || id <= 0 {
		return 0, &paramError{name: name}
	}
	return id, nil
}

// requiredID parses a positive id from a query or form parameter.
func requiredID(r *http.Request, name string) (int64, error) {
	raw, _ := formValue(r, name)
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, &paramError{name: name}
	}
	return id, nil
}

func optionalInt64(r *http.Request, name string) (*int64, error) {
	raw, ok := formValue(r, name)
	if !ok {
		return nil, nil
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return nil, &paramError{name: name}
	}
	return &v, nil
}

func optionalInt(r *http.Request, name string) (*int, error) {
	raw, ok := formValue(r, name)
	if !ok {
		return nil, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return nil, &paramError{name: name}
	}
	return &v, nil
}

func optionalFloat(r *http.Request, name string) (*float64, error) {
	raw, ok := formValue(r, name)
	if !ok {
		return nil, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return nil, &paramError{name: name}
	}
	return &v, nil
}

func optionalString(r *http.Request, name string) *string {
	raw, ok := formValue(r, name)
	if !ok {
		return nil
	}
	return &raw
}

// pageParams reads offset and limit. Missing values are left zero for the
// service to default.
func pageParams(r *http.Request) (catalog.Page, error) {
	var page catalog.Page
	offset, err := optionalInt(r, "offset")
	if err != nil {
		return page, err
	}
	limit, err := optionalInt(r, "limit")
	if err != nil {
		return page, err
	}
	if offset != nil {
		if *offset < 0 {
			return page, &paramError{name: "offset"}
		}
		page.Offset = *offset
	}
	if limit != nil {
		if *limit < 0 {
			return page, &paramError{name: "limit"}
		}
		page.Limit = *limit
	}
	return page, nil
}

func badRequest(w http.ResponseWriter, err error) {
	writeError(w, http.StatusBadRequest, err.Error())
}
