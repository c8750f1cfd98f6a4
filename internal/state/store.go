// Package state owns the process-wide persisted snapshot: business
// connections, chat bindings, per-user watch settings, and the cached
// catalog and portfolios.
//
// The snapshot is loaded once at startup and guarded by a single mutex, so
// concurrent command handling and watch ticks never interleave a
// read-modify-write. Every mutation is written through to disk synchronously
// with write-to-temp-then-rename, so a crash can never leave a partially
// written state file behind.
package state

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"sync"

	"github.com/nvoronin/go-gift-analyst/internal/domain"
)

// Store is the exclusive owner of the StateSnapshot. All access goes through
// its methods; reads return copies so callers can never alias the guarded
// maps. Store is safe for concurrent use.
type Store struct {
	path string

	mu   sync.Mutex
	snap *domain.StateSnapshot
}

// Open loads the snapshot from path, or starts with an empty snapshot when
// the file does not exist yet. A present-but-unreadable file is an error:
// silently discarding existing state would drop every user's connection.
func Open(path string) (*Store, error) {
	s := &Store{path: path, snap: domain.NewStateSnapshot()}

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return s, nil
	case err != nil:
		return nil, fmt.Errorf("read state file: %w", err)
	}

	if err := json.Unmarshal(data, s.snap); err != nil {
		return nil, fmt.Errorf("parse state file %s: %w", path, err)
	}
	s.snap.Normalize()
	return s, nil
}

// saveLocked persists the snapshot. Callers must hold s.mu.
func (s *Store) saveLocked() error {
	data, err := json.MarshalIndent(s.snap, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal state: %w", err)
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("write state temp file: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("replace state file: %w", err)
	}
	return nil
}

// mutate runs fn under the lock and writes the result through to disk.
func (s *Store) mutate(fn func(*domain.StateSnapshot)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(s.snap)
	return s.saveLocked()
}

// SetConnection records (or replaces) a user's business connection id.
func (s *Store) SetConnection(userID int64, connectionID string) error {
	return s.mutate(func(snap *domain.StateSnapshot) {
		snap.Connections[userID] = connectionID
	})
}

// Connection returns the user's business connection id, if any.
func (s *Store) Connection(userID int64) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.snap.Connections[userID]
	return id, ok
}

// SetChat records the user's last-known private chat for push delivery.
func (s *Store) SetChat(userID, chatID int64) error {
	return s.mutate(func(snap *domain.StateSnapshot) {
		snap.Chats[userID] = chatID
	})
}

// Chat returns the user's last-known chat binding, if any.
func (s *Store) Chat(userID int64) (int64, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.snap.Chats[userID]
	return id, ok
}

// SetSettings overwrites the user's watch settings wholesale.
func (s *Store) SetSettings(userID int64, st domain.UserSettings) error {
	return s.mutate(func(snap *domain.StateSnapshot) {
		snap.Settings[userID] = st
	})
}

// Settings returns the user's watch settings, or the zero defaults when the
// user never ran /watch.
func (s *Store) Settings(userID int64) domain.UserSettings {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snap.Settings[userID]
}

// ReplaceCatalog swaps the cached catalog wholesale, keyed by gift id.
func (s *Store) ReplaceCatalog(entries []domain.GiftCatalogEntry) error {
	return s.mutate(func(snap *domain.StateSnapshot) {
		m := make(map[string]domain.GiftCatalogEntry, len(entries))
		for _, e := range entries {
			m[e.ID] = e
		}
		snap.LastCatalog = m
	})
}

// Catalog returns a copy of the cached catalog. The copy may be stale;
// callers that need freshness refresh through CatalogService first.
func (s *Store) Catalog() map[string]domain.GiftCatalogEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]domain.GiftCatalogEntry, len(s.snap.LastCatalog))
	for k, v := range s.snap.LastCatalog {
		out[k] = v
	}
	return out
}

// SetPortfolio caches the latest portfolio fetch for a user.
func (s *Store) SetPortfolio(userID int64, p domain.PortfolioSnapshot) error {
	return s.mutate(func(snap *domain.StateSnapshot) {
		snap.LastPortfolio[userID] = p
	})
}

// Portfolio returns the cached portfolio for a user, if any.
func (s *Store) Portfolio(userID int64) (domain.PortfolioSnapshot, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.snap.LastPortfolio[userID]
	return p, ok
}

// Snapshot returns a deep copy of the current state, for tests and
// diagnostics.
func (s *Store) Snapshot() domain.StateSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := domain.StateSnapshot{
		Connections:   make(map[int64]string, len(s.snap.Connections)),
		Chats:         make(map[int64]int64, len(s.snap.Chats)),
		Settings:      make(map[int64]domain.UserSettings, len(s.snap.Settings)),
		LastCatalog:   make(map[string]domain.GiftCatalogEntry, len(s.snap.LastCatalog)),
		LastPortfolio: make(map[int64]domain.PortfolioSnapshot, len(s.snap.LastPortfolio)),
	}
	for k, v := range s.snap.Connections {
		out.Connections[k] = v
	}
	for k, v := range s.snap.Chats {
		out.Chats[k] = v
	}
	for k, v := range s.snap.Settings {
		out.Settings[k] = v
	}
	for k, v := range s.snap.LastCatalog {
		out.LastCatalog[k] = v
	}
	for k, v := range s.snap.LastPortfolio {
		cp := v
		cp.Gifts = append([]domain.GiftRecord(nil), v.Gifts...)
		out.LastPortfolio[k] = cp
	}
	return out
}
