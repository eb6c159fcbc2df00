// Package pathutil converts between absolute and relative paths.
//
// The engine indexes everything by relative, forward-slash path (the
// canonical identifier from the data model). Absolute paths are accepted
// at API boundaries and converted in; this package is that conversion
// layer.
package pathutil

import (
	"path/filepath"
	"strings"
)

// ToRelative converts an absolute path to one relative to rootDir, with
// forward slashes regardless of OS. An already-relative input comes back
// with forward slashes; an empty input or empty rootDir returns the input
// unchanged; a path outside rootDir falls back to the cleaned absolute path.
func ToRelative(absPath, rootDir string) string {
	if absPath == "" || rootDir == "" {
		return absPath
	}

	if !filepath.IsAbs(absPath) {
		return ToSlash(absPath)
	}

	cleanAbs := filepath.Clean(absPath)
	cleanRoot := filepath.Clean(rootDir)

	relPath, err := filepath.Rel(cleanRoot, cleanAbs)
	if err != nil {
		return ToSlash(cleanAbs)
	}

	if relPath == ".." || strings.HasPrefix(relPath, ".."+string(filepath.Separator)) {
		return ToSlash(cleanAbs)
	}

	return ToSlash(relPath)
}

// ToAbsolute joins a relative path back onto rootDir. A path that is
// already absolute is cleaned and returned unchanged.
func ToAbsolute(relOrAbsPath, rootDir string) string {
	if filepath.IsAbs(relOrAbsPath) {
		return filepath.Clean(relOrAbsPath)
	}
	return filepath.Clean(filepath.Join(rootDir, relOrAbsPath))
}

// ToSlash normalizes OS-specific separators to forward slashes, the
// canonical form stored throughout the index.
func ToSlash(p string) string {
	return filepath.ToSlash(p)
}
