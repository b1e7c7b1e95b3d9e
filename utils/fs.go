// Package utils provides small file system and formatting helpers.
package utils

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
)

// ErrNotADirectory is returned when a path exists, but is not a directory.
var ErrNotADirectory = errors.New("not a directory")

// EnsureDirectory ensures that the given directory exists and that it has the
// given permissions set. Missing parent directories are created with the
// same permissions.
func EnsureDirectory(path string, perm os.FileMode) error {
	info, err := os.Stat(path)
	switch {
	case os.IsNotExist(err):
		if err := os.MkdirAll(path, perm); err != nil {
			return fmt.Errorf("could not create dir %s: %w", path, err)
		}
		return nil
	case err != nil:
		return fmt.Errorf("failed to access %s: %w", path, err)
	case !info.IsDir():
		return fmt.Errorf("%w: %s", ErrNotADirectory, path)
	}

	if info.Mode().Perm() != perm && runtime.GOOS != "windows" {
		return os.Chmod(path, perm)
	}
	return nil
}

// EnsureParent ensures that the directory of the given file exists. Existing
// directories are left untouched.
func EnsureParent(file string, perm os.FileMode) error {
	dir := filepath.Dir(file)
	info, err := os.Stat(dir)
	switch {
	case err == nil && info.IsDir():
		return nil
	case err == nil:
		return fmt.Errorf("%w: %s", ErrNotADirectory, dir)
	default:
		return EnsureDirectory(dir, perm)
	}
}
