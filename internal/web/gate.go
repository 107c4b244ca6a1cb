// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Shelfkeep Contributors

package web

import (
	"mime"
	"net/http"
	"strings"

	"github.com/shelfkeep/shelfkeep/internal/access"
)

// requireToken admits requests carrying a valid session token. When role
// checks are enabled, the token owner's role must also hold perm. Any store
// failure fails closed with a 500.
func (s *Server) requireToken(perm string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			token := tokenFromRequest(r)

			ok, err := s.auth.IsValid(ctx, token)
			if err != nil {
				authFailure(w)
				return
			}
			if !ok {
				writeError(w, http.StatusUnauthorized, http.StatusText(http.StatusUnauthorized))
				return
			}

			if s.access != nil && s.access.Enabled() {
				role, found, err := s.auth.ResolveRole(ctx, token)
				if err != nil {
					authFailure(w)
					return
				}
				if !found {
					writeError(w, http.StatusUnauthorized, http.StatusText(http.StatusUnauthorized))
					return
				}
				if !s.access.Allowed(role, perm) {
					writeError(w, http.StatusForbidden, http.StatusText(http.StatusForbidden))
					return
				}
				ctx = access.WithRole(ctx, role)
			}

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// tokenFromRequest reads the token query parameter, then a bearer
// Authorization header, then a url-encoded form field.
func tokenFromRequest(r *http.Request) string {
	if token := r.URL.Query().Get("token"); token != "" {
		return token
	}
	if header := r.Header.Get("Authorization"); header != "" {
		scheme, token, ok := strings.Cut(header, " ")
		if ok && strings.EqualFold(scheme, "Bearer") {
			return strings.TrimSpace(token)
		}
	}
	if isURLEncodedForm(r) {
		return r.PostFormValue("token")
	}
	return ""
}

func isURLEncodedForm(r *http.Request) bool {
	mediaType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	return err == nil && mediaType == "application/x-www-form-urlencoded"
}
