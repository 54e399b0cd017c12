package state

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/rs/zerolog"

	"github.com/pagewatchhq/pagewatch/pkg/types"
)

const StateFileName = "state.json"

// Store holds the durable per-target records. The in-memory map is
// authoritative; every mutation is flushed to disk as a whole document via
// write-to-temp-then-rename, so a crash mid-save leaves the previous file
// intact. A single mutex serializes writers, which also guarantees at most
// one in-progress write per target identity.
type Store struct {
	path   string
	logger zerolog.Logger

	mu     sync.Mutex
	states map[string]types.TargetState
}

// Path returns the state file location inside a data directory.
func Path(dir string) string {
	return filepath.Join(dir, StateFileName)
}

// Open loads the state file at path. A missing file is a fresh start, not
// an error. An unreadable or corrupt file degrades to empty state with a
// warning: the watcher keeps running and re-seeds baselines on the next
// successful observations.
func Open(path string, logger zerolog.Logger) *Store {
	s := &Store{
		path:   path,
		logger: logger,
		states: make(map[string]types.TargetState),
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			logger.Warn().Err(err).Str("path", path).Msg("state file unreadable, starting from empty state")
		}
		return s
	}

	if err := json.Unmarshal(data, &s.states); err != nil {
		logger.Warn().Err(err).Str("path", path).Msg("state file corrupt, starting from empty state")
		s.states = make(map[string]types.TargetState)
		return s
	}

	for id, st := range s.states {
		if st.LastPresent == "" {
			st.LastPresent = types.PresenceUnknown
			s.states[id] = st
		}
	}
	return s
}

// Get returns the record for a target identity, or a fresh Unknown record
// when the identity has not been seen before.
func (s *Store) Get(identity string) types.TargetState {
	s.mu.Lock()
	defer s.mu.Unlock()

	st, ok := s.states[identity]
	if !ok {
		return types.TargetState{LastPresent: types.PresenceUnknown}
	}
	return st
}

// Put replaces the record for one identity and persists the full mapping.
// On save failure the in-memory update is kept: it remains authoritative
// until the next successful save.
func (s *Store) Put(identity string, st types.TargetState) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.states[identity] = st
	return s.saveLocked()
}

// Snapshot returns a copy of all records, keyed by identity.
func (s *Store) Snapshot() map[string]types.TargetState {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make(map[string]types.TargetState, len(s.states))
	for id, st := range s.states {
		out[id] = st
	}
	return out
}

func (s *Store) saveLocked() error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return fmt.Errorf("ensure state dir: %w", err)
	}

	data, err := json.MarshalIndent(s.states, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal state: %w", err)
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("write temp state file %q: %w", tmp, err)
	}

	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("commit state file %q: %w", s.path, err)
	}

	return nil
}
