package session

import (
	"context"
	"slices"
	"sync"
	"time"

	"smartrecipe/internal/recipe"
)

type memoryEntry struct {
	snap    recipe.Snapshot
	expires time.Time
}

// Memory is an in-process Store. Entries expire ttl after their last write.
type Memory struct {
	mu      sync.RWMutex
	entries map[string]memoryEntry
	ttl     time.Duration
	now     func() time.Time
}

// NewMemory creates a new Memory store. A zero ttl keeps entries forever.
func NewMemory(ttl time.Duration) *Memory {
	return &Memory{entries: make(map[string]memoryEntry), ttl: ttl, now: time.Now}
}

// Load returns a copy of the stored snapshot.
func (m *Memory) Load(ctx context.Context, id string) (*recipe.Snapshot, error) {
	m.mu.RLock()
	e, ok := m.entries[id]
	m.mu.RUnlock()
	observe(MemoryStore, "load", nil)

	if !ok || (m.ttl > 0 && m.now().After(e.expires)) {
		return nil, nil
	}
	snap := recipe.Snapshot{
		Recipes:     slices.Clone(e.snap.Recipes),
		Ingredients: slices.Clone(e.snap.Ingredients),
	}
	return &snap, nil
}

// Save replaces the session's snapshot.
func (m *Memory) Save(ctx context.Context, id string, snap *recipe.Snapshot) error {
	e := memoryEntry{
		snap: recipe.Snapshot{
			Recipes:     slices.Clone(snap.Recipes),
			Ingredients: slices.Clone(snap.Ingredients),
		},
		expires: m.now().Add(m.ttl),
	}

	m.mu.Lock()
	m.entries[id] = e
	m.sweep()
	m.mu.Unlock()

	observe(MemoryStore, "save", nil)
	return nil
}

// sweep drops expired entries. Caller holds mu.
func (m *Memory) sweep() {
	if m.ttl <= 0 {
		return
	}
	now := m.now()
	for id, e := range m.entries {
		if now.After(e.expires) {
			delete(m.entries, id)
		}
	}
}

func (m *Memory) Ping(ctx context.Context) error { return nil }

func (m *Memory) Close() error { return nil }
