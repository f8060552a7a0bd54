package ports

import (
	"context"

	"github.com/kondrei/TalkieMartin-BE/domain/memory"
)

// MemoryRepository defines the interface for memory persistence
// This is a port in hexagonal architecture - the domain doesn't know about the implementation
type MemoryRepository interface {
	// BeginTransaction opens a unit of work for one coordinator call
	BeginTransaction(ctx context.Context) (Transaction, error)

	// FindByTitle retrieves a memory by its title, NOT_FOUND when absent
	FindByTitle(ctx context.Context, title string) (*memory.Record, error)

	// Find returns records in stable creation order. A limit of 0 means no limit.
	Find(ctx context.Context, skip, limit int) ([]memory.Record, error)

	// Count returns the total number of records
	Count(ctx context.Context) (int, error)
}

// Transaction is a metadata unit of work. Writes are staged and applied
// atomically by Commit. Abort is idempotent and a no-op after Commit, so
// callers can always defer it.
type Transaction interface {
	// Insert stages a new record. A title collision is reported as
	// DUPLICATE_KEY either here or at Commit.
	Insert(ctx context.Context, record *memory.Record) error

	// FindByTitle reads the committed record with strong consistency
	FindByTitle(ctx context.Context, title string) (*memory.Record, error)

	// AppendContentItems stages an atomic append to the record's content
	// list and returns the record as it will look after commit.
	AppendContentItems(ctx context.Context, title string, items []memory.ContentItem) (*memory.Record, error)

	// FindAndDelete reads the record, claims it for deletion and stages its
	// removal. While the claim holds, appends fail with CONFLICT; a record
	// that changed since the read fails the claim with CONFLICT.
	FindAndDelete(ctx context.Context, title string) (*memory.Record, error)

	// Commit applies all staged writes atomically. An error for which
	// errors.IsOutcomeUnknown holds means the writes may have been applied.
	Commit(ctx context.Context) error

	// Abort discards staged writes and releases a delete claim that did
	// not commit
	Abort(ctx context.Context) error
}

// Cache defines the interface for caching
type Cache interface {
	// Get retrieves a value from cache
	Get(ctx context.Context, key string) (interface{}, bool)

	// Set stores a value in cache with TTL in seconds
	Set(ctx context.Context, key string, value interface{}, ttl int) error

	// Delete removes a value from cache
	Delete(ctx context.Context, key string) error

	// Clear removes all values from cache
	Clear(ctx context.Context) error
}
