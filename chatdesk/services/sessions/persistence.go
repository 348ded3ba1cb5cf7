package sessions

import (
	"context"
	"sync"
)

// Persistence loads and saves the whole store state. Load returns (nil, nil)
// when nothing has been saved yet.
type Persistence interface {
	Load(ctx context.Context) (*StoreState, error)
	Save(ctx context.Context, state StoreState) error
}

// MemoryPersistence keeps the last saved state in memory.
type MemoryPersistence struct {
	mu    sync.Mutex
	state *StoreState
	saves int
}

func NewMemoryPersistence(initial *StoreState) *MemoryPersistence {
	m := &MemoryPersistence{}
	if initial != nil {
		c := initial.Clone()
		m.state = &c
	}
	return m
}

func (m *MemoryPersistence) Load(context.Context) (*StoreState, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state == nil {
		return nil, nil
	}
	c := m.state.Clone()
	return &c, nil
}

func (m *MemoryPersistence) Save(_ context.Context, state StoreState) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c := state.Clone()
	m.state = &c
	m.saves++
	return nil
}

// Saves reports how many times Save has been called.
func (m *MemoryPersistence) Saves() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saves
}

type nopPersistence struct{}

func (nopPersistence) Load(context.Context) (*StoreState, error) { return nil, nil }
func (nopPersistence) Save(context.Context, StoreState) error    { return nil }
