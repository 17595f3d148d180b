package adapter

import (
	"sync"
)

// Delegate receives normalized ad events for one placement.
// Callbacks run on partner goroutines and must not block.
type Delegate interface {
	OnImpression(h *AdHandle)
	OnClick(h *AdHandle)
	OnReward(h *AdHandle, amount int, label string)
	OnDismiss(h *AdHandle, err error)
}

// registryEntry binds a placement to its current handle and delegate.
// gate is held for reading while a delegate callback runs and for
// writing while the entry is cleared.
type registryEntry struct {
	handle   *AdHandle
	delegate Delegate

	gate    sync.RWMutex
	cleared bool
}

// PlacementRegistry maps mediation placements to the handle and delegate
// of their current load. At most one non-terminal handle is held per
// placement.
type PlacementRegistry struct {
	mu      sync.RWMutex
	entries map[string]*registryEntry
}

// NewPlacementRegistry creates an empty registry
func NewPlacementRegistry() *PlacementRegistry {
	return &PlacementRegistry{
		entries: make(map[string]*registryEntry),
	}
}

// Register binds handle and delegate to placementID. It fails with
// ErrLoadInProgress while the placement holds a non-terminal handle.
func (r *PlacementRegistry) Register(placementID string, handle *AdHandle, delegate Delegate) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if existing, ok := r.entries[placementID]; ok && existing.handle != nil && !existing.handle.State().IsTerminal() {
		return newError(OpLoad, placementID, ErrLoadInProgress, nil)
	}
	r.entries[placementID] = &registryEntry{handle: handle, delegate: delegate}
	return nil
}

// Lookup returns the delegate registered for placementID
func (r *PlacementRegistry) Lookup(placementID string) (Delegate, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	entry, ok := r.entries[placementID]
	if !ok || entry.delegate == nil {
		return nil, false
	}
	return entry.delegate, true
}

// Handle returns the handle registered for placementID
func (r *PlacementRegistry) Handle(placementID string) (*AdHandle, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	entry, ok := r.entries[placementID]
	if !ok || entry.handle == nil {
		return nil, false
	}
	return entry.handle, true
}

// Clear removes the entry for placementID. It waits for an in-flight
// delegate callback of that entry to return, so it must not be called
// from inside one. Clearing an absent placement is a no-op.
func (r *PlacementRegistry) Clear(placementID string) {
	r.mu.Lock()
	entry, ok := r.entries[placementID]
	if ok {
		delete(r.entries, placementID)
	}
	r.mu.Unlock()

	if ok {
		entry.close()
	}
}

// Len returns the number of registered placements
func (r *PlacementRegistry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}

// clearHandle removes the placement entry only if it still belongs to h
func (r *PlacementRegistry) clearHandle(h *AdHandle) {
	placementID := h.Placement()

	r.mu.Lock()
	entry, ok := r.entries[placementID]
	if ok && entry.handle == h {
		delete(r.entries, placementID)
	} else {
		ok = false
	}
	r.mu.Unlock()

	if ok {
		entry.close()
	}
}

// deliver runs fn with the delegate registered for h. It returns false when
// the placement was cleared or now belongs to a different handle.
func (r *PlacementRegistry) deliver(h *AdHandle, fn func(Delegate)) bool {
	r.mu.RLock()
	entry, ok := r.entries[h.Placement()]
	r.mu.RUnlock()

	if !ok || entry.handle != h || entry.delegate == nil {
		return false
	}

	entry.gate.RLock()
	defer entry.gate.RUnlock()
	if entry.cleared {
		return false
	}
	fn(entry.delegate)
	return true
}

func (e *registryEntry) close() {
	e.gate.Lock()
	e.cleared = true
	e.gate.Unlock()
}
