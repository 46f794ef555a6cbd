package store

import (
	"context"
	"sort"
	"sync"

	"github.com/note89/sitehooks/pkg/schema"
)

// MemoryStore is an in-process Store used when no database is configured.
type MemoryStore struct {
	mu          sync.RWMutex
	dispatches  map[string]*DispatchRecord
	invocations []*InvocationRecord
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{dispatches: make(map[string]*DispatchRecord)}
}

func (m *MemoryStore) AppendDispatch(_ context.Context, d *DispatchRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.dispatches[d.ID]; exists {
		return schema.NewErrorf(schema.ErrCodeConflict, "dispatch %q already recorded", d.ID)
	}
	cp := *d
	cp.StartedAt = timeOrNow(cp.StartedAt)
	m.dispatches[d.ID] = &cp
	return nil
}

func (m *MemoryStore) AppendInvocation(_ context.Context, inv *InvocationRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	inv.ID = int64(len(m.invocations) + 1)
	cp := *inv
	m.invocations = append(m.invocations, &cp)
	return nil
}

func (m *MemoryStore) GetDispatch(_ context.Context, id string) (*DispatchRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	d, ok := m.dispatches[id]
	if !ok {
		return nil, schema.NewErrorf(schema.ErrCodeNotFound, "dispatch %q not found", id)
	}
	cp := *d
	return &cp, nil
}

func (m *MemoryStore) ListDispatches(_ context.Context, filter DispatchFilter) ([]*DispatchRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []*DispatchRecord
	for _, d := range m.dispatches {
		if filter.API != "" && d.API != filter.API {
			continue
		}
		if filter.FailedOnly && d.Error == "" {
			continue
		}
		if !filter.Since.IsZero() && d.StartedAt.Before(filter.Since) {
			continue
		}
		cp := *d
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].StartedAt.Equal(out[j].StartedAt) {
			return out[i].StartedAt.After(out[j].StartedAt)
		}
		return out[i].ID < out[j].ID
	})
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

func (m *MemoryStore) ListInvocations(_ context.Context, dispatchID string) ([]*InvocationRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []*InvocationRecord
	for _, inv := range m.invocations {
		if inv.DispatchID == dispatchID {
			cp := *inv
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *MemoryStore) Ping(context.Context) error    { return nil }
func (m *MemoryStore) Migrate(context.Context) error { return nil }
func (m *MemoryStore) Close() error                  { return nil }

var _ Store = (*MemoryStore)(nil)
