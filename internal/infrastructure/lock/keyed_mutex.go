// Package lock implementa la exclusión mutua por (tenant, producto) que exige el libro de stock:
// en proceso (KeyedMutex) o distribuida sobre Redis (RedisLocker).
package lock

import (
	"context"
	"fmt"
	"sync"

	"github.com/jhoicas/stock-ledger/internal/domain"
)

type keyedEntry struct {
	sem  chan struct{}
	refs int
}

// KeyedMutex un semáforo binario por clave; claves distintas no se bloquean entre sí.
// Las entradas se eliminan cuando nadie las usa.
type KeyedMutex struct {
	mu      sync.Mutex
	entries map[string]*keyedEntry
}

// NewKeyedMutex construye el locker en memoria.
func NewKeyedMutex() *KeyedMutex {
	return &KeyedMutex{entries: make(map[string]*keyedEntry)}
}

// Lock espera el bloqueo de key o hasta que ctx termine (domain.ErrLockTimeout).
func (m *KeyedMutex) Lock(ctx context.Context, key string) (func(), error) {
	m.mu.Lock()
	e, ok := m.entries[key]
	if !ok {
		e = &keyedEntry{sem: make(chan struct{}, 1)}
		m.entries[key] = e
	}
	e.refs++
	m.mu.Unlock()

	select {
	case e.sem <- struct{}{}:
	case <-ctx.Done():
		m.release(key, e)
		return nil, fmt.Errorf("lock %s: %w: %w", key, domain.ErrLockTimeout, ctx.Err())
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			<-e.sem
			m.release(key, e)
		})
	}, nil
}

func (m *KeyedMutex) release(key string, e *keyedEntry) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e.refs--
	if e.refs == 0 {
		delete(m.entries, key)
	}
}

// Len cantidad de claves con bloqueos tomados o en espera.
func (m *KeyedMutex) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}
