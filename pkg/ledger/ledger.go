package ledger

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"cagedfetch/pkg/logger"
)

// Key builds the folder key for a year/month pair, e.g. "2024/202401".
func Key(year, month string) string {
	return year + "/" + month
}

// Ledger records which year/month folders have been fully ingested. Keys
// are persisted one per line in an append-only text file, so a run that is
// interrupted resumes past everything already committed.
type Ledger struct {
	path   string
	keys   map[string]bool
	logger logger.Logger
}

// Open loads the ledger at path, creating parent directories as needed.
// A missing ledger file is an empty ledger, not an error.
func Open(path string, log logger.Logger) (*Ledger, error) {
	if log == nil {
		log = logger.GetLogger()
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create ledger directory: %w", err)
	}

	l := &Ledger{
		path:   path,
		keys:   make(map[string]bool),
		logger: log,
	}

	file, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return l, nil
		}
		return nil, fmt.Errorf("failed to open ledger file: %w", err)
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		key := strings.TrimSpace(scanner.Text())
		if key != "" {
			l.keys[key] = true
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read ledger file: %w", err)
	}

	log.WithFields(map[string]interface{}{
		"path":    path,
		"entries": len(l.keys),
	}).Info("Ledger loaded")

	return l, nil
}

// Has reports whether key was committed in this run or any previous one.
func (l *Ledger) Has(key string) bool {
	return l.keys[key]
}

// Commit appends key durably and makes it visible to subsequent Has calls.
// Committing an already-present key is a no-op.
func (l *Ledger) Commit(key string) error {
	if l.keys[key] {
		return nil
	}

	file, err := os.OpenFile(l.path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("failed to open ledger for append: %w", err)
	}

	if _, err := fmt.Fprintln(file, key); err != nil {
		file.Close()
		return fmt.Errorf("failed to append ledger entry: %w", err)
	}
	if err := file.Sync(); err != nil {
		file.Close()
		return fmt.Errorf("failed to sync ledger file: %w", err)
	}
	if err := file.Close(); err != nil {
		return fmt.Errorf("failed to close ledger file: %w", err)
	}

	l.keys[key] = true
	l.logger.WithField("folder", key).Info("Folder committed to ledger")

	return nil
}

// Keys returns all committed keys in ascending order.
func (l *Ledger) Keys() []string {
	keys := make([]string, 0, len(l.keys))
	for k := range l.keys {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Len returns the number of committed keys.
func (l *Ledger) Len() int {
	return len(l.keys)
}

// Path returns the location of the ledger file.
func (l *Ledger) Path() string {
	return l.path
}
