// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Shelfkeep Contributors

package web

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/shelfkeep/shelfkeep/internal/auth"
	"github.com/shelfkeep/shelfkeep/internal/catalog"
)

// multipartMemory is how much of an upload is buffered in memory before
// spilling to a temp file.
const multipartMemory = 1 << 20

type loginResponse struct {
	Token string `json:"token"`
	Role  string `json:"role"`
}

type uploadResponse struct {
	ImageName string `json:"image_name"`
	ImageURL  string `json:"image_url"`
}

func handleVersion(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"ver": "v1"})
}

func (s *Server) handleAuth(w http.ResponseWriter, r *http.Request) {
	token, _ := formValue(r, "token")
	login, _ := formValue(r, "login")
	password, _ := formValue(r, "password")

	res, err := s.auth.Login(r.Context(), auth.LoginRequest{
		Token:    token,
		Login:    login,
		Password: password,
	})
	if err != nil {
		authFailure(w)
		return
	}
	if !res.Granted {
		status := res.Status
		if status == 0 {
			status = http.StatusUnauthorized
		}
		writeError(w, status, http.StatusText(status))
		return
	}
	writeJSON(w, http.StatusOK, loginResponse{Token: res.Token, Role: res.Role})
}

func (s *Server) handleListCatalogs(w http.ResponseWriter, r *http.Request) {
	page, err := pageParams(r)
	if err != nil {
		badRequest(w, err)
		return
	}
	catalogs, err := s.catalog.ListCatalogs(r.Context(), page)
	if err != nil {
		s.serviceError(w, r, "list catalogs", err)
		return
	}
	writeJSON(w, http.StatusOK, catalogs)
}

func (s *Server) handleCreateCatalog(w http.ResponseWriter, r *http.Request) {
	name, _ := formValue(r, "name")
	created, err := s.catalog.CreateCatalog(r.Context(), name)
	if err != nil {
		s.serviceError(w, r, "create catalog", err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (s *Server) handleDeleteCatalog(w http.ResponseWriter, r *http.Request) {
	id, err := requiredID(r, "id")
	if err != nil {
		badRequest(w, err)
		return
	}
	if err := s.catalog.DeleteCatalog(r.Context(), id); err != nil {
		s.serviceError(w, r, "delete catalog", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleUpdateCatalog(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "catalog_id")
	if err != nil {
		badRequest(w, err)
		return
	}
	newID, err := optionalInt64(r, "newId")
	if err != nil {
		badRequest(w, err)
		return
	}
	upd := catalog.CatalogUpdate{Name: optionalString(r, "name"), NewID: newID}
	if err := s.catalog.UpdateCatalog(r.Context(), id, upd); err != nil {
		s.serviceError(w, r, "update catalog", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleListItems(w http.ResponseWriter, r *http.Request) {
	catalogID, err := pathID(r, "catalog_id")
	if err != nil {
		badRequest(w, err)
		return
	}
	page, err := pageParams(r)
	if err != nil {
		badRequest(w, err)
		return
	}
	items, err := s.catalog.ListItems(r.Context(), catalogID, page)
	if err != nil {
		s.serviceError(w, r, "list items", err)
		return
	}
	for i := range items {
		items[i].ImageURL = imageURL(r, items[i].CatalogID, items[i].ID)
	}
	writeJSON(w, http.StatusOK, items)
}

func (s *Server) handleAddItem(w http.ResponseWriter, r *http.Request) {
	catalogID, err := pathID(r, "catalog_id")
	if err != nil {
		badRequest(w, err)
		return
	}
	price, err := optionalFloat(r, "price")
	if err != nil {
		badRequest(w, err)
		return
	}
	amount, err := optionalInt(r, "amount")
	if err != nil {
		badRequest(w, err)
		return
	}
	name, _ := formValue(r, "name")

	item := &catalog.Item{CatalogID: catalogID, Name: name}
	if price != nil {
		item.Price = *price
	}
	if amount != nil {
		item.Amount = *amount
	}
	if err := s.catalog.AddItem(r.Context(), item); err != nil {
		s.serviceError(w, r, "add item", err)
		return
	}
	item.ImageURL = imageURL(r, item.CatalogID, item.ID)
	writeJSON(w, http.StatusCreated, item)
}

func (s *Server) handleGetItem(w http.ResponseWriter, r *http.Request) {
	catalogID, id, ok := itemPath(w, r)
	if !ok {
		return
	}
	item, err := s.catalog.GetItem(r.Context(), catalogID, id)
	if err != nil {
		s.serviceError(w, r, "get item", err)
		return
	}
	item.ImageURL = imageURL(r, item.CatalogID, item.ID)
	writeJSON(w, http.StatusOK, item)
}

func (s *Server) handleUpdateItem(w http.ResponseWriter, r *http.Request) {
	catalogID, id, ok := itemPath(w, r)
	if !ok {
		return
	}

	var (
		upd catalog.ItemUpdate
		err error
	)
	if upd.NewID, err = optionalInt64(r, "newId"); err != nil {
		badRequest(w, err)
		return
	}
	if upd.NewCatalogID, err = optionalInt64(r, "newCatalogId"); err != nil {
		badRequest(w, err)
		return
	}
	if upd.Price, err = optionalFloat(r, "price"); err != nil {
		badRequest(w, err)
		return
	}
	if upd.Amount, err = optionalInt(r, "amount"); err != nil {
		badRequest(w, err)
		return
	}
	upd.Name = optionalString(r, "name")

	if err := s.catalog.UpdateItem(r.Context(), catalogID, id, upd); err != nil {
		s.serviceError(w, r, "update item", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleDeleteItem(w http.ResponseWriter, r *http.Request) {
	catalogID, id, ok := itemPath(w, r)
	if !ok {
		return
	}
	if err := s.catalog.DeleteItem(r.Context(), catalogID, id); err != nil {
		s.serviceError(w, r, "delete item", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	catalogID, id, ok := itemPath(w, r)
	if !ok {
		return
	}

	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			writeError(w, http.StatusRequestEntityTooLarge, msgTooLarge)
			return
		}
		writeError(w, http.StatusBadRequest, "can't upload file")
		return
	}
	defer func() {
		_ = r.MultipartForm.RemoveAll() //nolint:errcheck // temp file cleanup
	}()

	file, header, err := r.FormFile("image")
	if err != nil {
		writeError(w, http.StatusBadRequest, "can't upload file")
		return
	}
	defer func() {
		_ = file.Close() //nolint:errcheck // read-only
	}()

	name, err := s.catalog.UploadImage(r.Context(), catalogID, id, file)
	if err != nil {
		s.serviceError(w, r, "upload image", err)
		return
	}
	s.recorder.ObserveUpload(header.Size)
	writeJSON(w, http.StatusOK, uploadResponse{ImageName: name, ImageURL: imageURL(r, catalogID, id)})
}

func (s *Server) handleImage(w http.ResponseWriter, r *http.Request) {
	catalogID, id, ok := itemPath(w, r)
	if !ok {
		return
	}
	image, name, err := s.catalog.OpenImage(r.Context(), catalogID, id)
	if err != nil {
		s.serviceError(w, r, "open image", err)
		return
	}
	defer func() {
		_ = image.Close() //nolint:errcheck // read-only
	}()

	// Names are never reused, so the bytes behind one never change.
	w.Header().Set("Cache-Control", "public, max-age=86400, immutable")
	http.ServeContent(w, r, name, time.Time{}, image)
}

// itemPath parses catalog_id and id, replying 400 on failure.
func itemPath(w http.ResponseWriter, r *http.Request) (catalogID, id int64, ok bool) {
	catalogID, err := pathID(r, "catalog_id")
	if err != nil {
		badRequest(w, err)
		return 0, 0, false
	}
	id, err = pathID(r, "id")
	if err != nil {
		badRequest(w, err)
		return 0, 0, false
	}
	return catalogID, id, true
}

// imageURL builds the absolute image link for an item from the request's
// scheme and host.
func imageURL(r *http.Request, catalogID, id int64) string {
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	if proto := r.Header.Get("X-Forwarded-Proto"); proto == "http" || proto == "https" {
		scheme = proto
	}
	return fmt.Sprintf("%s://%s/api/v1/catalog/%d/%d/image", scheme, r.Host, catalogID, id)
}
