// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Shelfkeep Contributors

package catalog

import (
	"errors"
	"io"
	"io/fs"
	"os"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
	"github.com/spf13/afero"
)

// DefaultMaxImageBytes caps uploads when no limit is configured.
const DefaultMaxImageBytes = 10 << 20

// ErrImageTooLarge is returned by Save when the upload exceeds the limit.
var ErrImageTooLarge = errors.New("image too large")

// ImageStore keeps uploaded item images as flat files named by ULID.
type ImageStore struct {
	fs       afero.Fs
	maxBytes int64
}

// NewImageStore creates an ImageStore rooted at dir on the OS filesystem,
// creating the directory if needed.
func NewImageStore(dir string, maxBytes int64) (*ImageStore, error) {
	osFs := afero.NewOsFs()
	if err := osFs.MkdirAll(dir, 0o750); err != nil {
		return nil, oops.Code("IMAGE_DIR_FAILED").With("dir", dir).Wrap(err)
	}
	return NewImageStoreFs(afero.NewBasePathFs(osFs, dir), maxBytes), nil
}

// NewImageStoreFs creates an ImageStore over an arbitrary filesystem.
func NewImageStoreFs(fsys afero.Fs, maxBytes int64) *ImageStore {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxImageBytes
	}
	return &ImageStore{fs: fsys, maxBytes: maxBytes}
}

// Save writes r to a new file and returns its generated name. Partial files
// are removed on failure.
func (s *ImageStore) Save(r io.Reader) (string, error) {
	name := ulid.Make().String()

	f, err := s.fs.OpenFile(name, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o640)
	if err != nil {
		return "", oops.Code("IMAGE_SAVE_FAILED").With("name", name).Wrap(err)
	}

	// One extra byte tells an exact-limit upload from an oversized one.
	n, copyErr := io.Copy(f, io.LimitReader(r, s.maxBytes+1))
	closeErr := f.Close()

	switch {
	case copyErr != nil:
		s.discard(name)
		return "", oops.Code("IMAGE_SAVE_FAILED").With("name", name).Wrap(copyErr)
	case n > s.maxBytes:
		s.discard(name)
		return "", oops.Code("IMAGE_TOO_LARGE").With("max_bytes", s.maxBytes).Wrap(ErrImageTooLarge)
	case n == 0:
		s.discard(name)
		return "", invalid("image is empty")
	case closeErr != nil:
		s.discard(name)
		return "", oops.Code("IMAGE_SAVE_FAILED").With("name", name).Wrap(closeErr)
	}
	return name, nil
}

// Open returns the named image. Names that are not ULIDs never touch the
// filesystem.
func (s *ImageStore) Open(name string) (afero.File, error) {
	if !validImageName(name) {
		return nil, oops.Code("IMAGE_NOT_FOUND").With("name", name).Wrap(ErrNotFound)
	}
	f, err := s.fs.Open(name)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, oops.Code("IMAGE_NOT_FOUND").With("name", name).Wrap(ErrNotFound)
	}
	if err != nil {
		return nil, oops.Code("IMAGE_OPEN_FAILED").With("name", name).Wrap(err)
	}
	return f, nil
}

// Remove deletes the named image. A missing file is not an error.
func (s *ImageStore) Remove(name string) error {
	if !validImageName(name) {
		return nil
	}
	if err := s.fs.Remove(name); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return oops.Code("IMAGE_REMOVE_FAILED").With("name", name).Wrap(err)
	}
	return nil
}

func (s *ImageStore) discard(name string) {
	_ = s.fs.Remove(name) //nolint:errcheck // best effort cleanup of a partial file
}

func validImageName(name string) bool {
	_, err := ulid.ParseStrict(name)
	return err == nil
}
