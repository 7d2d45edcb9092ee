package domain

import "context"

// PositionStore persists positions. Writes are last-write-wins; there are no
// transactional guarantees across positions.
type PositionStore interface {
	// Load returns every persisted position.
	Load(ctx context.Context) ([]Position, error)
	// Get returns a single position by its position address. Returns
	// ErrNotFound when absent.
	Get(ctx context.Context, positionAddress string) (Position, error)
	// Save upserts a position keyed by its position address.
	Save(ctx context.Context, pos Position) error
	// Remove deletes a position. Removing an absent position is a no-op.
	Remove(ctx context.Context, positionAddress string) error
}
