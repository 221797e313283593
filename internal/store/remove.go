package store

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

// RemoveDir deletes path and everything below it. A plain os.RemoveAll is
// tried first; if that fails, every entry in the tree is made writable and
// the removal is retried once. A path that does not exist is not an error.
func RemoveDir(path string) error {
	return removeDir(path, os.RemoveAll)
}

// removeDir runs the two removal tiers with removeAll as the deleting call.
func removeDir(path string, removeAll func(string) error) error {
	firstErr := removeAll(path)
	if firstErr == nil {
		return nil
	}

	forceWritable(path)
	if err := removeAll(path); err != nil {
		return fmt.Errorf("store: remove %s: %w", path, errors.Join(firstErr, err))
	}
	return nil
}

// forceWritable adds owner write and execute bits to every directory and
// owner write to every file under root, so entries created read-only can be
// unlinked. Errors are ignored; the retried removal reports what is left.
func forceWritable(root string) {
	_ = filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return nil
		}
		mode := info.Mode().Perm() | 0o200
		if d.IsDir() {
			mode |= 0o500
		}
		_ = os.Chmod(p, mode)
		return nil
	})
}
