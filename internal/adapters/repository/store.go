// Package repository persists named calibration profiles.
package repository

import (
	"context"
	"time"

	"github.com/okian/padcal/internal/domain/profile"
)

// Entry describes one stored profile.
type Entry struct {
	Name     string    `json:"name"`
	Format   string    `json:"format"`
	Size     int64     `json:"size"`
	Modified time.Time `json:"modified"`
}

// Store provides read/write access to saved profiles.
type Store interface {
	// Save writes prof under name, replacing any previous version, and
	// marks it last used.
	Save(ctx context.Context, name string, prof profile.Profile) error

	// Load reads the profile stored under name and marks it last used.
	// Returns ErrNotFound if there is none.
	Load(ctx context.Context, name string) (profile.Profile, error)

	// Read is Load without touching the last used marker.
	Read(ctx context.Context, name string) (profile.Profile, error)

	// List returns every stored profile ordered by name.
	List(ctx context.Context) ([]Entry, error)

	// Delete removes a stored profile.
	Delete(ctx context.Context, name string) error

	// LastUsed returns the name most recently saved or loaded.
	LastUsed(ctx context.Context) (string, bool)
}
