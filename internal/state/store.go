package state

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/google/renameio/v2"
	"github.com/rs/zerolog"

	"github.com/wiktac/node-agent/internal/log"
)

// Store reads and writes the state document at a fixed path. Mutations are
// serialized under a lock so concurrent appends from the HTTP API and the
// agent loop cannot lose entries.
type Store struct {
	mu     sync.Mutex
	path   string
	logger zerolog.Logger
}

// NewStore creates a store backed by the file at path. The file does not
// need to exist yet.
func NewStore(path string) *Store {
	return &Store{
		path:   path,
		logger: log.WithComponent("state"),
	}
}

// Path returns the location of the backing file.
func (s *Store) Path() string {
	return s.path
}

// Load reads the document from disk. A missing, unreadable or corrupt file
// yields a fresh empty document, never an error.
func (s *Store) Load() *Document {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if !os.IsNotExist(err) {
			s.logger.Warn().
				Err(err).
				Str("path", s.path).
				Str("event", "state.read_failed").
				Msg("state file unreadable, starting fresh")
		}
		return NewDocument()
	}

	doc := NewDocument()
	if err := json.Unmarshal(data, doc); err != nil {
		s.logger.Warn().
			Err(err).
			Str("path", s.path).
			Str("event", "state.corrupt").
			Msg("state file corrupt, starting fresh")
		return NewDocument()
	}
	doc.normalize()
	return doc
}

// Save writes the document atomically: temp file, fsync, rename. The data
// directory is created if missing.
func (s *Store) Save(doc *Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.save(doc)
}

// Mutate loads the latest document, applies fn and saves the result, all
// under the store lock. Rebasing on the latest file keeps entries appended
// by another writer between a caller's read and its write.
func (s *Store) Mutate(fn func(*Document)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc := s.Load()
	fn(doc)
	return s.save(doc)
}

func (s *Store) save(doc *Document) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("encode state: %w", err)
	}
	if err := renameio.WriteFile(s.path, data, 0o644); err != nil {
		return fmt.Errorf("write state file: %w", err)
	}
	return nil
}
