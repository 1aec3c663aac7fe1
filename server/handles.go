package server

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rendlang/rend/core"
)

// handle is a server-side reference to an interpreter value. The cell
// is an indefinite API handle, so the value stays rooted against the
// collector until released.
type handle struct {
	id        string
	cell      *core.Cell
	typeName  string
	display   string
	sessionID string
	created   time.Time
	lastUsed  time.Time
}

// HandleStore maps opaque string IDs to rooted interpreter values.
// Releases go through the worker because freeing a root touches
// interpreter state.
type HandleStore struct {
	mu      sync.RWMutex
	handles map[string]*handle
	nextID  atomic.Uint64
	worker  *InterpWorker
}

// NewHandleStore creates a new handle store.
func NewHandleStore(worker *InterpWorker) *HandleStore {
	return &HandleStore{
		handles: make(map[string]*handle),
		worker:  worker,
	}
}

// Create registers a rooted cell and returns an opaque handle ID.
// Must be called with a cell made on the worker goroutine.
func (s *HandleStore) Create(cell *core.Cell, typeName, display, sessionID string) string {
	id := fmt.Sprintf("h-%d", s.nextID.Add(1))

	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	s.handles[id] = &handle{
		id:        id,
		cell:      cell,
		typeName:  typeName,
		display:   display,
		sessionID: sessionID,
		created:   now,
		lastUsed:  now,
	}
	return id
}

// Lookup retrieves the cell for a handle ID.
func (s *HandleStore) Lookup(id string) (*core.Cell, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	h, ok := s.handles[id]
	if !ok {
		return nil, false
	}
	h.lastUsed = time.Now()
	return h.cell, true
}

// Release removes a handle and frees its root.
func (s *HandleStore) Release(id string) {
	s.mu.Lock()
	h, ok := s.handles[id]
	if ok {
		delete(s.handles, id)
	}
	s.mu.Unlock()

	if ok {
		s.free(h)
	}
}

// ReleaseSession releases all handles owned by a session.
func (s *HandleStore) ReleaseSession(sessionID string) {
	s.mu.Lock()
	var victims []*handle
	for id, h := range s.handles {
		if h.sessionID == sessionID {
			victims = append(victims, h)
			delete(s.handles, id)
		}
	}
	s.mu.Unlock()

	for _, h := range victims {
		s.free(h)
	}
}

// Sweep removes handles that haven't been accessed within the TTL.
func (s *HandleStore) Sweep(ttl time.Duration) int {
	cutoff := time.Now().Add(-ttl)

	s.mu.Lock()
	var victims []*handle
	for id, h := range s.handles {
		if h.lastUsed.Before(cutoff) {
			victims = append(victims, h)
			delete(s.handles, id)
		}
	}
	s.mu.Unlock()

	for _, h := range victims {
		s.free(h)
	}
	return len(victims)
}

// free releases the root on the worker goroutine.
func (s *HandleStore) free(h *handle) {
	s.worker.Do(func(in *core.Interp) interface{} {
		in.Release(h.cell)
		return nil
	})
}

// StartSweeper runs periodic TTL sweeps in the background. Returns a
// stop function.
func (s *HandleStore) StartSweeper(interval, ttl time.Duration) func() {
	ticker := time.NewTicker(interval)
	done := make(chan struct{})
	go func() {
		for {
			select {
			case <-ticker.C:
				s.Sweep(ttl)
			case <-done:
				ticker.Stop()
				return
			}
		}
	}()
	return func() { close(done) }
}
