// Package fsx is the filesystem collaborator the rest of the engine
// depends on: exists, read, write, stat, list, create, delete. Every
// component talks to an FS rather than the os package directly, so tests
// inject an in-memory afero filesystem and production injects the real
// one.
package fsx

import (
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/spf13/afero"
)

// Stat is the subset of os.FileInfo the rest of the engine needs,
// exposing mtime in milliseconds the way the data model's FileRecord
// does.
type Stat struct {
	info fs.FileInfo
}

// MTimeMs returns the file's modification time in milliseconds since the
// epoch.
func (s Stat) MTimeMs() int64 { return s.info.ModTime().UnixMilli() }

// IsDirectory reports whether the stat target is a directory.
func (s Stat) IsDirectory() bool { return s.info.IsDir() }

// Size returns the file size in bytes.
func (s Stat) Size() int64 { return s.info.Size() }

// FS is the filesystem collaborator contract.
type FS struct {
	afero.Fs
	Root string
}

// NewOS wraps the real OS filesystem rooted at root.
func NewOS(root string) *FS {
	return &FS{Fs: afero.NewOsFs(), Root: root}
}

// NewMem builds an in-memory filesystem for tests.
func NewMem(root string) *FS {
	return &FS{Fs: afero.NewMemMapFs(), Root: root}
}

// Exists reports whether path exists.
func (f *FS) Exists(path string) bool {
	_, err := f.Fs.Stat(path)
	return err == nil
}

// ReadFile reads the entire file at path.
func (f *FS) ReadFile(path string) ([]byte, error) {
	return afero.ReadFile(f.Fs, path)
}

// WriteFile writes data to path, creating parent directories as needed.
func (f *FS) WriteFile(path string, data []byte, perm os.FileMode) error {
	if err := f.Fs.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return afero.WriteFile(f.Fs, path, data, perm)
}

// StatPath stats path, returning the Stat wrapper.
func (f *FS) StatPath(path string) (Stat, error) {
	info, err := f.Fs.Stat(path)
	if err != nil {
		return Stat{}, err
	}
	return Stat{info: info}, nil
}

// ReadDir lists the immediate entries of dir, sorted by name.
func (f *FS) ReadDir(dir string) ([]os.FileInfo, error) {
	entries, err := afero.ReadDir(f.Fs, dir)
	if err != nil {
		return nil, err
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })
	return entries, nil
}

// ListFiles walks root recursively, returning every regular file path
// for which skip returns false.
func (f *FS) ListFiles(root string, skip func(path string, isDir bool) bool) ([]string, error) {
	var out []string
	err := afero.Walk(f.Fs, root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if skip != nil && skip(path, info.IsDir()) {
			if info.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if !info.IsDir() {
			out = append(out, path)
		}
		return nil
	})
	return out, err
}

// CreateDir makes dir and all missing parents.
func (f *FS) CreateDir(dir string) error {
	return f.Fs.MkdirAll(dir, 0o755)
}

// DeleteFile removes path.
func (f *FS) DeleteFile(path string) error {
	return f.Fs.Remove(path)
}

// Now is overridable in tests; production uses time.Now.
var Now = time.Now
