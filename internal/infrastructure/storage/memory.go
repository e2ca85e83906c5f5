package storage

import (
	"context"
	"sync"
)

// Memory keeps a value in memory. Errors set with SetSaveErr or
// SetLoadErr are returned instead of touching the value.
type Memory[T any] struct {
	mu      sync.Mutex
	value   T
	saves   int
	saveErr error
	loadErr error
}

func NewMemory[T any](initial T) *Memory[T] {
	return &Memory[T]{value: initial}
}

func (m *Memory[T]) Load(ctx context.Context) (T, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.loadErr != nil {
		var zero T
		return zero, m.loadErr
	}
	return m.value, nil
}

func (m *Memory[T]) Save(ctx context.Context, v T) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.saveErr != nil {
		return m.saveErr
	}
	m.value = v
	m.saves++
	return nil
}

// Saves returns how many successful saves happened.
func (m *Memory[T]) Saves() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saves
}

func (m *Memory[T]) SetSaveErr(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.saveErr = err
}

func (m *Memory[T]) SetLoadErr(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.loadErr = err
}
