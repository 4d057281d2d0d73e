// Package priority maps user identifiers to integer priority levels. The
// backing store is loaded and saved as one unit; last writer wins, which is
// acceptable for rare staff-only edits.
package priority

import (
	"context"

	"stashkeeper/internal/observability"
)

// Well-known levels. Any positive integer is valid; these are the ones staff
// tooling offers by default.
const (
	LevelDefault = 1
	LevelHigh    = 2
	LevelAdmin   = 3
)

// BlobStore persists the whole user→level map as a single unit. There is no
// partial-write guarantee.
type BlobStore interface {
	Load(ctx context.Context) (map[string]int, error)
	Save(ctx context.Context, users map[string]int) error
}

// Directory answers priority lookups and applies staff edits.
type Directory struct {
	store        BlobStore
	defaultLevel int
}

// NewDirectory returns a Directory over store. Users absent from the store
// get defaultLevel.
func NewDirectory(store BlobStore, defaultLevel int) *Directory {
	if defaultLevel < 1 {
		defaultLevel = LevelDefault
	}
	return &Directory{store: store, defaultLevel: defaultLevel}
}

// DefaultLevel returns the level applied to users absent from the directory.
func (d *Directory) DefaultLevel() int { return d.defaultLevel }

// Get returns the user's priority level, or the default if the user is absent
// or the store is unreadable. Lookups never fail the caller's operation.
func (d *Directory) Get(ctx context.Context, userID string) int {
	users, err := d.store.Load(ctx)
	if err != nil {
		observability.Logger.Warn("priority directory unreadable, using default",
			"user_id", userID, "error", err)
		return d.defaultLevel
	}
	if level, ok := users[userID]; ok {
		return level
	}
	return d.defaultLevel
}

// SetMany assigns level to every listed user.
func (d *Directory) SetMany(ctx context.Context, userIDs []string, level int) error {
	users, err := d.store.Load(ctx)
	if err != nil {
		return err
	}
	for _, id := range userIDs {
		users[id] = level
	}
	return d.store.Save(ctx, users)
}

// RemoveMany deletes every listed user from the directory; they revert to the
// default level.
func (d *Directory) RemoveMany(ctx context.Context, userIDs []string) error {
	users, err := d.store.Load(ctx)
	if err != nil {
		return err
	}
	for _, id := range userIDs {
		delete(users, id)
	}
	return d.store.Save(ctx, users)
}

// ListAll returns the full directory.
func (d *Directory) ListAll(ctx context.Context) (map[string]int, error) {
	return d.store.Load(ctx)
}

// Clear empties the directory.
func (d *Directory) Clear(ctx context.Context) error {
	return d.store.Save(ctx, map[string]int{})
}
