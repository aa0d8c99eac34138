// Package mmapcache implements the memory-mapped image cache collaborator
// (spec §6.2): a handle over a file whose content is the format
// collaborator's laid-out image, keyed by the input's SHA-256, backed by
// github.com/edsrzf/mmap-go — the same mmap binding a PE-analysis tool in
// the example pack (saferwall-pe) depends on for mapping scanned binaries.
package mmapcache

import (
	"os"
	"path/filepath"

	"github.com/edsrzf/mmap-go"
	"github.com/pkg/errors"
)

// Cache is a handle over a memory-mapped, on-disk copy of a laid-out image.
type Cache struct {
	file    *os.File
	region  mmap.MMap
	path    string
	keep    bool
	existed bool
}

// Open returns a Cache for the image keyed by sha256, under directory dir.
// On a cache miss, layout is called to populate the backing file's
// content. If keep is false, the backing file is removed when Close is
// called (spec §6.2: "removed iff the cache flag is false").
func Open(dir, sha256Hex string, size int, keep bool, layout func(w *os.File) error) (*Cache, error) {
	path := filepath.Join(dir, sha256Hex+".img")

	_, statErr := os.Stat(path)
	existed := statErr == nil

	flags := os.O_RDWR | os.O_CREATE
	f, err := os.OpenFile(path, flags, 0o600)
	if err != nil {
		return nil, errors.WithStack(err)
	}

	if !existed {
		if err := f.Truncate(int64(size)); err != nil {
			f.Close()
			os.Remove(path)
			return nil, errors.WithStack(err)
		}
		if layout != nil {
			if err := layout(f); err != nil {
				f.Close()
				os.Remove(path)
				return nil, errors.WithStack(err)
			}
		}
	}

	region, err := mmap.Map(f, mmap.RDWR, 0)
	if err != nil {
		f.Close()
		if !existed {
			os.Remove(path)
		}
		return nil, errors.WithStack(err)
	}

	return &Cache{file: f, region: region, path: path, keep: keep, existed: existed}, nil
}

// Bytes returns the mapped region.
func (c *Cache) Bytes() []byte { return c.region }

// Close unmaps and closes the backing file, removing it iff the cache
// flag was false.
func (c *Cache) Close() error {
	var unmapErr, closeErr, removeErr error
	unmapErr = c.region.Unmap()
	closeErr = c.file.Close()
	if !c.keep {
		removeErr = os.Remove(c.path)
	}
	if unmapErr != nil {
		return errors.WithStack(unmapErr)
	}
	if closeErr != nil {
		return errors.WithStack(closeErr)
	}
	if removeErr != nil && !os.IsNotExist(removeErr) {
		return errors.WithStack(removeErr)
	}
	return nil
}
