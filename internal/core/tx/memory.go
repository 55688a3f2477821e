package tx

import (
	"context"
	"sync"
)

// MemoryManager is an in-process Manager for tests and local development.
// A single mutex serializes all transactions, which mirrors the commit-step
// serialization the guard protocol relies on: two concurrent mutation
// requests against the same entities are applied one after the other.
//
// Serialization is all it provides: repository writes inside fn apply
// immediately and are not rolled back when fn returns an error, so a
// failure partway through leaves earlier writes in place. Tests must not
// rely on the memory stack for rollback semantics; only the Postgres
// manager is atomic.
type MemoryManager struct {
	mu sync.Mutex
}

type memTxKey struct{}

// NewMemoryManager creates a serializing in-memory transaction manager.
func NewMemoryManager() *MemoryManager {
	return &MemoryManager{}
}

// RunInTransaction executes fn while holding the manager lock.
// Nested calls reuse the held lock via a context marker.
func (m *MemoryManager) RunInTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if ctx.Value(memTxKey{}) != nil {
		return fn(ctx)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return fn(context.WithValue(ctx, memTxKey{}, struct{}{}))
}

// ReadOnly behaves like RunInTransaction; the memory store has no
// read-only mode.
func (m *MemoryManager) ReadOnly(ctx context.Context, fn func(ctx context.Context) error) error {
	return m.RunInTransaction(ctx, fn)
}

var _ ReadOnlyManager = (*MemoryManager)(nil)
