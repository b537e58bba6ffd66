package journal

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	bolt "go.etcd.io/bbolt"

	"tooldispatch/internal/domain"
)

const (
	dispatchesBucketName = "dispatches"
	idsBucketName        = "dispatch_ids"
)

// ErrNotFound is returned by Get for an unknown entry id.
var ErrNotFound = errors.New("journal entry not found")

// Store persists dispatch records. Entries are keyed by an insertion
// sequence so iteration order is recording order.
type Store struct {
	mu     sync.RWMutex
	db     *bolt.DB
	path   string
	now    func() time.Time
	closed bool
}

func Open(path string) (*Store, error) {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		return nil, fmt.Errorf("journal path is required")
	}
	if err := os.MkdirAll(filepath.Dir(trimmed), 0o755); err != nil {
		return nil, fmt.Errorf("ensure journal dir: %w", err)
	}
	base, err := bolt.Open(trimmed, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("open journal db: %w", err)
	}
	if err := base.Update(func(tx *bolt.Tx) error {
		for _, name := range []string{dispatchesBucketName, idsBucketName} {
			if _, err := tx.CreateBucketIfNotExists([]byte(name)); err != nil {
				return fmt.Errorf("create %s bucket: %w", name, err)
			}
		}
		return nil
	}); err != nil {
		_ = base.Close()
		return nil, err
	}
	return &Store{db: base, path: trimmed, now: time.Now}, nil
}

func (s *Store) Path() string { return s.path }

func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return s.db.Close()
}

// Record appends entry, assigning an id and timestamp when missing.
// Recording an id twice is rejected.
func (s *Store) Record(entry domain.JournalEntry) (domain.JournalEntry, error) {
	if strings.TrimSpace(entry.ID) == "" {
		entry.ID = uuid.NewString()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = s.now().UTC()
	}
	payload, err := json.Marshal(entry)
	if err != nil {
		return domain.JournalEntry{}, fmt.Errorf("encode journal entry: %w", err)
	}

	err = s.update(func(tx *bolt.Tx) error {
		entries := tx.Bucket([]byte(dispatchesBucketName))
		ids := tx.Bucket([]byte(idsBucketName))
		if ids.Get([]byte(entry.ID)) != nil {
			return fmt.Errorf("journal entry %s already exists", entry.ID)
		}
		seq, err := entries.NextSequence()
		if err != nil {
			return fmt.Errorf("next sequence: %w", err)
		}
		key := sequenceKey(seq)
		if err := entries.Put(key, payload); err != nil {
			return fmt.Errorf("write journal entry: %w", err)
		}
		return ids.Put([]byte(entry.ID), key)
	})
	if err != nil {
		return domain.JournalEntry{}, err
	}
	return entry, nil
}

// List returns up to limit entries, newest first. A limit of zero or less
// returns every entry.
func (s *Store) List(limit int) ([]domain.JournalEntry, error) {
	out := []domain.JournalEntry{}
	err := s.view(func(tx *bolt.Tx) error {
		cursor := tx.Bucket([]byte(dispatchesBucketName)).Cursor()
		for key, value := cursor.Last(); key != nil; key, value = cursor.Prev() {
			if limit > 0 && len(out) >= limit {
				return nil
			}
			entry, err := decodeEntry(value)
			if err != nil {
				return err
			}
			out = append(out, entry)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Store) Get(id string) (domain.JournalEntry, error) {
	var entry domain.JournalEntry
	err := s.view(func(tx *bolt.Tx) error {
		key := tx.Bucket([]byte(idsBucketName)).Get([]byte(id))
		if key == nil {
			return ErrNotFound
		}
		value := tx.Bucket([]byte(dispatchesBucketName)).Get(key)
		if value == nil {
			return ErrNotFound
		}
		var err error
		entry, err = decodeEntry(value)
		return err
	})
	return entry, err
}

func (s *Store) view(fn func(*bolt.Tx) error) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return domain.ErrJournalClosed
	}
	return s.db.View(fn)
}

func (s *Store) update(fn func(*bolt.Tx) error) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return domain.ErrJournalClosed
	}
	return s.db.Update(fn)
}

func sequenceKey(seq uint64) []byte {
	key := make([]byte, 8)
	binary.BigEndian.PutUint64(key, seq)
	return key
}

func decodeEntry(value []byte) (domain.JournalEntry, error) {
	var entry domain.JournalEntry
	if err := json.Unmarshal(value, &entry); err != nil {
		return domain.JournalEntry{}, fmt.Errorf("decode journal entry: %w", err)
	}
	return entry, nil
}
