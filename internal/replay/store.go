package replay

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/spf13/afero"
)

// Store is the persistence abstraction for the metadata aggregate.
// Implementations write the whole aggregate on every Save.
type Store interface {
	// Load returns the persisted aggregate. A missing document yields
	// defaults and a nil error; an unreadable or corrupt one yields
	// defaults and an error wrapping ErrPersistence.
	Load() (*Aggregate, error)

	// Save overwrites the persisted document with a.
	Save(a *Aggregate) error
}

// FileStore keeps the aggregate as one JSON document, replaced atomically
// through a temp file in the same directory.
type FileStore struct {
	fs       afero.Fs
	path     string
	attempts uint
	delay    time.Duration
}

// NewFileStore returns a store for the document at path on fs.
func NewFileStore(fs afero.Fs, path string) *FileStore {
	return &FileStore{fs: fs, path: path, attempts: 3, delay: 50 * time.Millisecond}
}

// Path returns the document location.
func (s *FileStore) Path() string { return s.path }

// Load implements Store.Load.
func (s *FileStore) Load() (*Aggregate, error) {
	data, err := afero.ReadFile(s.fs, s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return DefaultAggregate(), nil
		}
		return DefaultAggregate(), fmt.Errorf("%w: read %s: %w", ErrPersistence, s.path, err)
	}
	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return DefaultAggregate(), fmt.Errorf("%w: decode %s: %w", ErrPersistence, s.path, err)
	}
	return AggregateFromDocument(doc), nil
}

// Save implements Store.Save. Transient write failures are retried.
func (s *FileStore) Save(a *Aggregate) error {
	payload, err := json.MarshalIndent(a.Document(), "", "  ")
	if err != nil {
		return fmt.Errorf("%w: encode: %w", ErrPersistence, err)
	}
	err = retry.Do(
		func() error { return s.writeAtomic(payload) },
		retry.Attempts(s.attempts),
		retry.Delay(s.delay),
		retry.LastErrorOnly(true),
	)
	if err != nil {
		return fmt.Errorf("%w: write %s: %w", ErrPersistence, s.path, err)
	}
	return nil
}

func (s *FileStore) writeAtomic(payload []byte) error {
	dir := filepath.Dir(s.path)
	if err := s.fs.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	tmp, err := afero.TempFile(s.fs, dir, "."+filepath.Base(s.path)+".tmp-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer s.fs.Remove(tmpName)

	if _, err := tmp.Write(payload); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return s.fs.Rename(tmpName, s.path)
}

// InMemoryStore is an in-memory implementation of Store. It round-trips
// through the JSON document so it exercises the same encoding as FileStore.
type InMemoryStore struct {
	mu    sync.Mutex
	data  []byte
	saves int
	err   error
}

// NewInMemoryStore returns an empty in-memory store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{}
}

// Load implements Store.Load.
func (s *InMemoryStore) Load() (*Aggregate, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.data == nil {
		return DefaultAggregate(), nil
	}
	var doc Document
	if err := json.Unmarshal(s.data, &doc); err != nil {
		return DefaultAggregate(), fmt.Errorf("%w: %w", ErrPersistence, err)
	}
	return AggregateFromDocument(doc), nil
}

// Save implements Store.Save.
func (s *InMemoryStore) Save(a *Aggregate) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	data, err := json.Marshal(a.Document())
	if err != nil {
		return fmt.Errorf("%w: %w", ErrPersistence, err)
	}
	s.data = data
	s.saves++
	return nil
}

// Saves returns how many times Save succeeded.
func (s *InMemoryStore) Saves() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saves
}

// FailWith makes subsequent saves return err; nil restores normal behaviour.
func (s *InMemoryStore) FailWith(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.err = err
}
