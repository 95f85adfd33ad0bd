package store

import (
	"errors"
	"fmt"
	"os"
	"path"
	"strings"
	"time"

	"github.com/go-git/go-billy/v5"
	"github.com/haatos/simple-release/internal"
)

// BlobStore keeps package archives on a billy filesystem. Uploads land in a
// partial file at the root and are renamed into place once verified.
type BlobStore struct {
	fs  billy.Filesystem
	now func() time.Time
}

func NewBlobStore(fs billy.Filesystem) *BlobStore {
	return &BlobStore{fs: fs, now: time.Now}
}

func (bs *BlobStore) Location(name, version string) string {
	return bs.fs.Join(name, version, fmt.Sprintf("%s-%s.pkg", name, version))
}

func (bs *BlobStore) CreatePartial(id string) (billy.File, error) {
	return bs.fs.OpenFile(internal.PartialUploadPrefix+id, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
}

// Commit moves a verified partial upload to location.
func (bs *BlobStore) Commit(partial, location string) error {
	if _, err := bs.fs.Stat(location); err == nil {
		return ErrConflict
	} else if !errors.Is(err, os.ErrNotExist) {
		return err
	}
	if dir := path.Dir(location); dir != "." {
		if err := bs.fs.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	return bs.fs.Rename(partial, location)
}

func (bs *BlobStore) Remove(name string) error {
	err := bs.fs.Remove(name)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return err
}

func (bs *BlobStore) Open(location string) (billy.File, error) {
	return bs.fs.Open(location)
}

// RemoveStalePartials deletes partial uploads older than maxAge and returns
// how many were removed.
func (bs *BlobStore) RemoveStalePartials(maxAge time.Duration) (int, error) {
	entries, err := bs.fs.ReadDir("/")
	if err != nil {
		return 0, err
	}
	cutoff := bs.now().Add(-maxAge)
	removed := 0
	var errs []error
	for _, e := range entries {
		if e.IsDir() || !strings.HasPrefix(e.Name(), internal.PartialUploadPrefix) {
			continue
		}
		if e.ModTime().After(cutoff) {
			continue
		}
		if err := bs.fs.Remove(e.Name()); err != nil {
			errs = append(errs, err)
			continue
		}
		removed++
	}
	return removed, errors.Join(errs...)
}
