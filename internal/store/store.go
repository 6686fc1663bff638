// Package store provides the memory storage interface and SQLite implementation.
package store

import (
	"context"
	"time"

	"github.com/tv7/C-Claw/internal/model"
)

// InsertParams holds parameters for storing a memory.
type InsertParams struct {
	Owner    string
	Content  string
	Sector   model.Sector
	TopicKey string
}

// SweepResult reports what one decay-and-prune pass did.
type SweepResult struct {
	ID         string    `json:"id"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
	Decayed    int64     `json:"decayed"`
	Pruned     int64     `json:"pruned"`
}

// Store defines the memory storage interface.
type Store interface {
	// Insert appends a new memory with initial salience and both timestamps set to now.
	Insert(ctx context.Context, p InsertParams) (*model.Memory, error)

	// SearchByKeywords runs an owner-scoped OR-prefix full-text search,
	// best match first. It never returns a nil slice.
	SearchByKeywords(ctx context.Context, owner string, keywords []string, limit int) ([]model.Memory, error)

	// Recent returns the most recently accessed memories, newest first.
	Recent(ctx context.Context, owner string, limit int) ([]model.Memory, error)

	// Reinforce bumps salience and accessed_at in a single statement and
	// returns the memory as stored afterwards.
	Reinforce(ctx context.Context, id int64) (*model.Memory, error)

	// DecayAndPrune ages every memory outside the grace window and deletes
	// the ones that fall below the floor.
	DecayAndPrune(ctx context.Context) (*SweepResult, error)

	// ForOwner lists memories by salience, then recency.
	ForOwner(ctx context.Context, owner string, limit int) ([]model.Memory, error)

	// ClearOwner deletes every memory of owner and returns how many went.
	ClearOwner(ctx context.Context, owner string) (int64, error)

	// Close closes the store.
	Close() error
}
