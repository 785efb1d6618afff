package facts

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"
)

// Store is a filesystem-backed daily fact cache. The directory is the index:
// one file per local date, named <root>/<YYYY-MM-DD>.txt, holding the fact
// string verbatim.
type Store struct {
	fs   afero.Fs
	root string
}

// NewStore creates a fact store rooted at the given cache directory
func NewStore(fs afero.Fs, root string) *Store {
	return &Store{fs: fs, root: root}
}

// Load reads the cached fact for the given date. Missing, unreadable or
// empty entries are all reported as a miss.
func (s *Store) Load(date string) (string, bool) {
	data, err := afero.ReadFile(s.fs, s.path(date))
	if err != nil {
		return "", false
	}
	fact := string(data)
	if strings.TrimSpace(fact) == "" {
		return "", false
	}
	return fact, true
}

// Save writes the fact for the given date, creating the cache directory if
// needed. Only the fact service writes, so a plain truncate-write is enough.
func (s *Store) Save(date, fact string) error {
	if err := s.fs.MkdirAll(s.root, 0o755); err != nil {
		return fmt.Errorf("failed to create cache dir: %w", err)
	}
	if err := afero.WriteFile(s.fs, s.path(date), []byte(fact), 0o644); err != nil {
		return fmt.Errorf("failed to write cache entry: %w", err)
	}
	return nil
}

func (s *Store) path(date string) string {
	return filepath.Join(s.root, date+".txt")
}
