// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Shelfkeep Contributors

package web

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/shelfkeep/shelfkeep/internal/catalog"
	"github.com/shelfkeep/shelfkeep/pkg/errutil"
)

const (
	msgNotFound = "Not found"
	msgInternal = "Internal server error"
	msgConflict = "Conflict"
	msgTooLarge = "Image too large"
)

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	//nolint:errcheck // the client may have gone away
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

// internalError logs err and replies with a generic 500.
func (s *Server) internalError(w http.ResponseWriter, r *http.Request, msg string, err error) {
	errutil.LogErrorContext(r.Context(), s.logger, msg, err)
	writeError(w, http.StatusInternalServerError, msgInternal)
}

// authFailure replies 500 for an Authenticator error, which the
// Authenticator has already logged.
func authFailure(w http.ResponseWriter) {
	writeError(w, http.StatusInternalServerError, msgInternal)
}

// serviceError maps catalog errors onto status codes.
func (s *Server) serviceError(w http.ResponseWriter, r *http.Request, operation string, err error) {
	switch {
	case errors.Is(err, catalog.ErrNotFound):
		writeError(w, http.StatusNotFound, msgNotFound)
	case errors.Is(err, catalog.ErrInvalid):
		writeError(w, http.StatusBadRequest, catalog.InvalidReason(err))
	case errors.Is(err, catalog.ErrConflict):
		writeError(w, http.StatusConflict, msgConflict)
	case errors.Is(err, catalog.ErrImageTooLarge):
		writeError(w, http.StatusRequestEntityTooLarge, msgTooLarge)
	default:
		s.internalError(w, r, operation+" failed", err)
	}
}

func handleNotFound(w http.ResponseWriter, _ *http.Request) {
	writeError(w, http.StatusNotFound, msgNotFound)
}
