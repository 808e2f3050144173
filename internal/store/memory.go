package store

import (
	"context"
	"sync"
)

// Memory keeps the slot in process memory only.
type Memory struct {
	mu     sync.RWMutex
	token  string
	closed bool
}

func NewMemory() *Memory { return &Memory{} }

// NewMemoryWith returns a Memory pre-populated with token, as if a previous
// run had saved it.
func NewMemoryWith(token string) *Memory { return &Memory{token: token} }

func (m *Memory) Load(ctx context.Context) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return "", ErrClosed
	}
	return m.token, nil
}

func (m *Memory) Save(ctx context.Context, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}
	m.token = token
	return nil
}

func (m *Memory) Clear(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}
	m.token = ""
	return nil
}

func (m *Memory) Close() error {
	m.mu.Lock()
	m.closed = true
	m.mu.Unlock()
	return nil
}
