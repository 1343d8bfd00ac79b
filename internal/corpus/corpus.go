// Package corpus discovers student papers in an input directory and derives
// the identifier each paper's outputs are filed under.
package corpus

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// ErrInputDirMissing is returned when the papers directory does not exist.
var ErrInputDirMissing = errors.New("input folder not found")

// Entry is one candidate input file.
type Entry struct {
	Name string // File name without directory
	Path string // Absolute path
}

// List returns the regular, non-hidden files in dir sorted by name.
// Symlinks are followed; subdirectories and names starting with "." are ignored.
func List(dir string) ([]Entry, error) {
	info, err := os.Stat(dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrInputDirMissing, dir)
		}
		return nil, fmt.Errorf("failed to stat input folder: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%w: %s is not a directory", ErrInputDirMissing, dir)
	}

	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve input folder: %w", err)
	}

	dirEntries, err := os.ReadDir(abs)
	if err != nil {
		return nil, fmt.Errorf("failed to read input folder: %w", err)
	}

	var entries []Entry
	for _, de := range dirEntries {
		if IsHidden(de.Name()) {
			continue
		}
		path := filepath.Join(abs, de.Name())
		info, err := os.Stat(path)
		if err != nil || !info.Mode().IsRegular() {
			continue
		}
		entries = append(entries, Entry{Name: de.Name(), Path: path})
	}

	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Name < entries[j].Name
	})

	return entries, nil
}

// NewEntry builds an Entry for a single path, e.g. one reported by a watcher.
func NewEntry(path string) (Entry, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return Entry{}, err
	}
	return Entry{Name: filepath.Base(abs), Path: abs}, nil
}

// IsHidden reports whether a file name is hidden by the dot-prefix convention.
func IsHidden(name string) bool {
	return strings.HasPrefix(name, ".")
}
