package grf

import (
	"fmt"
	"sort"

	"go.uber.org/multierr"
)

// Set layers several archives. Lookups go to the first archive that holds
// the path, so earlier archives patch later ones.
type Set struct {
	archives []*Archive
}

// OpenSet opens every path in priority order. On failure the archives
// opened so far are closed.
func OpenSet(paths ...string) (*Set, error) {
	s := &Set{}
	for _, p := range paths {
		a, err := Open(p)
		if err != nil {
			return nil, multierr.Append(err, s.Close())
		}
		s.archives = append(s.archives, a)
	}
	return s, nil
}

// Len returns the number of archives in the set.
func (s *Set) Len() int {
	return len(s.archives)
}

// Contains reports whether any archive holds path.
func (s *Set) Contains(path string) bool {
	for _, a := range s.archives {
		if a.Contains(path) {
			return true
		}
	}
	return false
}

// Read reads path from the first archive that holds it.
func (s *Set) Read(path string) ([]byte, error) {
	for _, a := range s.archives {
		if a.Contains(path) {
			return a.Read(path)
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrNotFound, path)
}

// List returns the union of all archive listings, sorted.
func (s *Set) List() []string {
	seen := make(map[string]bool)
	for _, a := range s.archives {
		for p := range a.fileList {
			seen[p] = true
		}
	}
	out := make([]string, 0, len(seen))
	for p := range seen {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

// Close closes every archive and returns the combined error.
func (s *Set) Close() error {
	var err error
	for _, a := range s.archives {
		err = multierr.Append(err, a.Close())
	}
	s.archives = nil
	return err
}
