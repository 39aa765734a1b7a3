package catalog

import (
	"context"
	"errors"
)

// State is a source of raw catalog bytes.
type State interface {
	Load(ctx context.Context) ([]byte, error)
}

// MemoryState is a simple in-memory implementation for testing
type MemoryState struct {
	data []byte
	err  error
}

func NewMemoryState(data []byte) *MemoryState {
	return &MemoryState{data: data}
}

func NewMemoryStateWithError() *MemoryState {
	return &MemoryState{err: errors.New("not found")}
}

func (m *MemoryState) Load(ctx context.Context) ([]byte, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.data, nil
}
