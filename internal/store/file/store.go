// Package file implements domain.PositionStore as a single JSON file on
// disk. It is the default backend; PostgreSQL is opt-in via configuration.
package file

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/alanyoungcy/dlmmbot/internal/domain"
)

// Store keeps all positions in one JSON document, rewritten atomically on
// every mutation. Suited to the handful of positions the bot manages.
type Store struct {
	mu   sync.Mutex
	path string
}

func New(path string) *Store {
	return &Store{path: path}
}

// Load returns every persisted position. A missing file is an empty store.
func (s *Store) Load(ctx context.Context) ([]domain.Position, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.readAll()
}

// Get returns a single position by its position address.
func (s *Store) Get(ctx context.Context, positionAddress string) (domain.Position, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	positions, err := s.readAll()
	if err != nil {
		return domain.Position{}, err
	}
	for _, pos := range positions {
		if pos.PositionAddress == positionAddress {
			return pos, nil
		}
	}
	return domain.Position{}, fmt.Errorf("file store: position %s: %w", positionAddress, domain.ErrNotFound)
}

// Save upserts a position keyed by its position address.
func (s *Store) Save(ctx context.Context, pos domain.Position) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	positions, err := s.readAll()
	if err != nil {
		return err
	}

	replaced := false
	for i := range positions {
		if positions[i].PositionAddress == pos.PositionAddress {
			positions[i] = pos
			replaced = true
			break
		}
	}
	if !replaced {
		positions = append(positions, pos)
	}
	return s.writeAll(positions)
}

// Remove deletes a position. Removing an absent position is a no-op.
func (s *Store) Remove(ctx context.Context, positionAddress string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	positions, err := s.readAll()
	if err != nil {
		return err
	}

	kept := positions[:0]
	for _, pos := range positions {
		if pos.PositionAddress != positionAddress {
			kept = append(kept, pos)
		}
	}
	if len(kept) == len(positions) {
		return nil
	}
	return s.writeAll(kept)
}

func (s *Store) readAll() ([]domain.Position, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("file store: read %s: %w", s.path, err)
	}
	if len(data) == 0 {
		return nil, nil
	}

	var positions []domain.Position
	if err := json.Unmarshal(data, &positions); err != nil {
		return nil, fmt.Errorf("file store: decode %s: %w", s.path, err)
	}
	return positions, nil
}

// writeAll rewrites the whole file through a temp file and rename so a crash
// mid-write never leaves a truncated store behind.
func (s *Store) writeAll(positions []domain.Position) error {
	sort.Slice(positions, func(i, j int) bool {
		return positions[i].OpenedAt.Before(positions[j].OpenedAt)
	})

	data, err := json.MarshalIndent(positions, "", "  ")
	if err != nil {
		return fmt.Errorf("file store: encode positions: %w", err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("file store: create %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(s.path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("file store: create temp file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("file store: write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("file store: close temp file: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("file store: replace %s: %w", s.path, err)
	}
	return nil
}

// Compile-time interface check.
var _ domain.PositionStore = (*Store)(nil)
