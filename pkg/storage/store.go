package storage

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"cagedfetch/pkg/errors"
)

// Store is the durable home of extracted members. Files are written
// atomically (temp file + rename) under their derived name, and the
// directory is scanned on startup so re-runs can detect what is already
// present.
type Store struct {
	dir   string
	saved map[string]bool
}

// NewStore creates the output directory if needed and scans it for
// previously saved tables.
func NewStore(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}

	s := &Store{
		dir:   dir,
		saved: make(map[string]bool),
	}

	if err := s.scanExisting(); err != nil {
		return nil, fmt.Errorf("failed to scan existing files: %w", err)
	}

	return s, nil
}

// scanExisting records the delimited-text files already in the store.
func (s *Store) scanExisting() error {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return fmt.Errorf("failed to read directory: %w", err)
	}

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(entry.Name()))
		if ext == ".csv" || ext == ".txt" {
			s.saved[entry.Name()] = true
		}
	}

	return nil
}

// Exists reports whether a file with the given name is already stored.
func (s *Store) Exists(name string) bool {
	if s.saved[name] {
		return true
	}
	if _, err := os.Stat(filepath.Join(s.dir, name)); err == nil {
		s.saved[name] = true
		return true
	}
	return false
}

// Save writes the reader's content under name, atomically.
func (s *Store) Save(r io.Reader, name string) error {
	target := filepath.Join(s.dir, name)
	tempFile := target + ".tmp"

	out, err := os.Create(tempFile)
	if err != nil {
		return errors.Storage("create", target, err)
	}

	_, copyErr := io.Copy(out, r)
	closeErr := out.Close()

	if copyErr != nil {
		os.Remove(tempFile)
		return errors.Storage("write", target, copyErr)
	}
	if closeErr != nil {
		os.Remove(tempFile)
		return errors.Storage("close", target, closeErr)
	}

	if err := os.Rename(tempFile, target); err != nil {
		os.Remove(tempFile)
		return errors.Storage("rename", target, err)
	}

	s.saved[name] = true
	return nil
}

// SaveFrom copies an extracted file from its scratch location into the
// store under name.
func (s *Store) SaveFrom(srcPath, name string) error {
	src, err := os.Open(srcPath)
	if err != nil {
		return errors.Storage("open", srcPath, err)
	}
	defer src.Close()

	return s.Save(src, name)
}

// Dir returns the store's directory.
func (s *Store) Dir() string {
	return s.dir
}

// Count returns the number of stored files.
func (s *Store) Count() int {
	return len(s.saved)
}

// Files returns the stored file names in ascending order.
func (s *Store) Files() []string {
	names := make([]string, 0, len(s.saved))
	for name := range s.saved {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
