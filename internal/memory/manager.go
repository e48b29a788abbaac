// Package memory enforces per-document and global in-flight memory budgets
// for document fills. Reservations are tracked by request id and must be
// released when processing finishes.
package memory

import (
	"fmt"
	"sync"

	"github.com/right-flow/docguard/internal/errors"
)

// Manager tracks byte reservations against two caps: the size of any single
// document and the running total across all in-flight documents. Safe for
// concurrent use.
type Manager struct {
	maxPerDocument int64
	maxTotal       int64

	mu           sync.Mutex
	reservations map[string]int64
	inUse        int64
}

// Config carries the manager options from the configuration surface.
type Config struct {
	MaxPerDocument int64
	MaxTotal       int64
}

// New creates a Manager. Caps must be positive and the per-document cap may
// not exceed the global one.
func New(cfg Config) (*Manager, error) {
	if cfg.MaxPerDocument <= 0 || cfg.MaxTotal <= 0 {
		return nil, errors.NewConfigError("INVALID_CONFIG",
			fmt.Sprintf("memory caps must be positive: perDocument=%d total=%d",
				cfg.MaxPerDocument, cfg.MaxTotal))
	}
	if cfg.MaxPerDocument > cfg.MaxTotal {
		return nil, errors.NewConfigError("INVALID_CONFIG",
			fmt.Sprintf("per-document cap %d exceeds total cap %d", cfg.MaxPerDocument, cfg.MaxTotal))
	}

	return &Manager{
		maxPerDocument: cfg.MaxPerDocument,
		maxTotal:       cfg.MaxTotal,
		reservations:   make(map[string]int64),
	}, nil
}

// Allocate reserves bytes for requestID. On failure nothing is recorded and
// the running total is unchanged. Re-allocating an id that already holds a
// reservation replaces it, with the old reservation refunded first.
func (m *Manager) Allocate(requestID string, bytes int64) error {
	if bytes <= 0 {
		return errors.NewResourceError(errors.CodeMemoryExceeded, "allocation size must be positive").
			WithContext("requestId", requestID).
			WithContext("bytes", bytes).
			WithComponent("memory")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if bytes > m.maxPerDocument {
		return errors.NewResourceError(errors.CodeMemoryExceeded, "document exceeds per-document memory budget").
			WithContext("requestId", requestID).
			WithContext("bytes", bytes).
			WithContext("maxPerDocument", m.maxPerDocument).
			WithComponent("memory")
	}

	projected := m.inUse - m.reservations[requestID] + bytes
	if projected > m.maxTotal {
		return errors.NewResourceError(errors.CodeMemoryExceeded, "global memory budget exhausted").
			WithContext("requestId", requestID).
			WithContext("bytes", bytes).
			WithContext("inUse", m.inUse).
			WithContext("maxTotal", m.maxTotal).
			WithComponent("memory")
	}

	m.inUse = projected
	m.reservations[requestID] = bytes

	return nil
}

// Release removes requestID's reservation. Unknown ids are a no-op so the
// caller can release unconditionally on every exit path.
func (m *Manager) Release(requestID string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if bytes, ok := m.reservations[requestID]; ok {
		m.inUse -= bytes
		delete(m.reservations, requestID)
	}
}

// InUse returns the sum of all active reservations.
func (m *Manager) InUse() int64 {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.inUse
}

// Available returns the remaining global budget.
func (m *Manager) Available() int64 {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.maxTotal - m.inUse
}

// ActiveReservations returns the number of in-flight reservations.
func (m *Manager) ActiveReservations() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	return len(m.reservations)
}
