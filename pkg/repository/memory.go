package repository

import (
	"context"
	"sync"

	"github.com/m-mizutani/goerr/v2"
)

// Memory keeps namespaces in process memory
type Memory struct {
	mu   sync.RWMutex
	data map[string][]byte
}

// NewMemory creates an empty in-memory repository
func NewMemory() *Memory {
	return &Memory{
		data: make(map[string][]byte),
	}
}

func (m *Memory) Get(ctx context.Context, namespace string) ([]byte, error) {
	if err := validateNamespace(namespace); err != nil {
		return nil, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	data, ok := m.data[namespace]
	if !ok {
		return nil, goerr.Wrap(ErrNotFound, "namespace is not stored", goerr.V("namespace", namespace))
	}
	return append([]byte(nil), data...), nil
}

func (m *Memory) Put(ctx context.Context, namespace string, data []byte) error {
	if err := validateNamespace(namespace); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[namespace] = append([]byte(nil), data...)
	return nil
}

func (m *Memory) Delete(ctx context.Context, namespace string) error {
	if err := validateNamespace(namespace); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, namespace)
	return nil
}
