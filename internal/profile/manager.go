// Package profile holds the session-wide user profile: the attributes the
// Profile Service has inferred from conversation history.
package profile

import (
	"fmt"
	"math"
	"strings"
	"sync"

	"github.com/kalambet/kaiwa/internal/chat"
)

// Store defines the persistence operations the Manager can use. Implemented
// by storage.Store; a nil store keeps the profile purely in memory.
type Store interface {
	ReplaceProfile(attrs []chat.ProfileAttribute) error
	GetProfile() ([]chat.ProfileAttribute, error)
	DeleteProfileKey(key string) error
}

// Manager owns the current profile. Each successful refresh replaces the
// attribute list wholesale; attributes absent from the new list are dropped.
type Manager struct {
	store Store

	mu    sync.RWMutex
	attrs []chat.ProfileAttribute
}

// NewManager creates an empty in-memory Manager.
func NewManager() *Manager {
	return &Manager{}
}

// NewManagerWithStore creates a Manager backed by a persistent store,
// seeded with whatever profile the store already holds.
func NewManagerWithStore(store Store) (*Manager, error) {
	attrs, err := store.GetProfile()
	if err != nil {
		return nil, fmt.Errorf("loading stored profile: %w", err)
	}
	return &Manager{store: store, attrs: attrs}, nil
}

// List returns a copy of the current attributes in their service-given order.
func (m *Manager) List() []chat.ProfileAttribute {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]chat.ProfileAttribute, len(m.attrs))
	copy(out, m.attrs)
	return out
}

// Summary renders the profile as a compact string, one attribute per line
// in "key: value (NN%)" form. Empty profile yields "".
func (m *Manager) Summary() string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var sb strings.Builder
	for i, a := range m.attrs {
		if i > 0 {
			sb.WriteByte('\n')
		}
		fmt.Fprintf(&sb, "%s: %s (%d%%)", a.Key, a.Value, int(math.Round(a.Confidence*100)))
	}
	return sb.String()
}

// Replace swaps the whole profile for attrs. Persistence is best effort:
// a store failure never rolls back the in-memory update.
func (m *Manager) Replace(attrs []chat.ProfileAttribute) {
	cp := make([]chat.ProfileAttribute, len(attrs))
	copy(cp, attrs)

	m.mu.Lock()
	defer m.mu.Unlock()

	m.attrs = cp
	if m.store != nil {
		m.store.ReplaceProfile(cp)
	}
}

// Delete removes every attribute with the given key. Deleting an absent
// key is a no-op; no service call is ever made.
func (m *Manager) Delete(key string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	kept := m.attrs[:0]
	for _, a := range m.attrs {
		if a.Key != key {
			kept = append(kept, a)
		}
	}
	m.attrs = kept
	if m.store != nil {
		m.store.DeleteProfileKey(key)
	}
}
