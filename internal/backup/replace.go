package backup

import (
	"errors"
	"fmt"
	"os"
)

// sidecars are the sqlite files that belong to a database path.
var sidecars = []string{"-wal", "-shm"}

// Swap is a pending replacement of a database file. The previous file is
// kept beside the new one until Commit, so Rollback can always put it back.
type Swap struct {
	path    string
	prev    string
	hadPrev bool
}

// Replace installs data at path. The caller must have closed the store.
func Replace(path string, data []byte) (*Swap, error) {
	s := &Swap{path: path, prev: path + ".prev"}

	_ = os.Remove(s.prev)
	switch err := os.Rename(path, s.prev); {
	case err == nil:
		s.hadPrev = true
	case errors.Is(err, os.ErrNotExist):
	default:
		return nil, fmt.Errorf("keep previous store: %w", err)
	}
	removeSidecars(path)

	if err := writeFileAtomic(path, data, 0o600); err != nil {
		if rbErr := s.Rollback(); rbErr != nil {
			return nil, fmt.Errorf("%w (rollback: %v)", err, rbErr)
		}
		return nil, err
	}
	return s, nil
}

// Commit discards the previous file once the new one has been verified.
func (s *Swap) Commit() {
	if s.hadPrev {
		_ = os.Remove(s.prev)
	}
}

// Rollback puts the previous file back in place.
func (s *Swap) Rollback() error {
	removeSidecars(s.path)
	if !s.hadPrev {
		if err := os.Remove(s.path); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("remove new store: %w", err)
		}
		return nil
	}
	if err := os.Rename(s.prev, s.path); err != nil {
		return fmt.Errorf("restore previous store: %w", err)
	}
	return nil
}

func removeSidecars(path string) {
	for _, suffix := range sidecars {
		_ = os.Remove(path + suffix)
	}
}
