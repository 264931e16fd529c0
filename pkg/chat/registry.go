package chat

import "sync"

// Registry is the authoritative set of connected sessions.
//
// Membership changes are serialized by a single mutex. The capacity check
// and the insertion happen under the same critical section, so the size never
// exceeds the capacity.
type Registry struct {
	mu       sync.Mutex
	capacity int
	sessions map[SessionID]*Session
}

// NewRegistry creates an empty registry holding at most capacity sessions.
func NewRegistry(capacity int) *Registry {
	return &Registry{
		capacity: capacity,
		sessions: make(map[SessionID]*Session, capacity),
	}
}

// TryAdd registers s unless the registry is full.
func (r *Registry) TryAdd(s *Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if len(r.sessions) >= r.capacity {
		return ErrCapacityExceeded
	}
	r.sessions[s.ID()] = s
	return nil
}

// Remove unregisters the session with id and reports whether it was present.
func (r *Registry) Remove(id SessionID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.sessions[id]; !ok {
		return false
	}
	delete(r.sessions, id)
	return true
}

// Snapshot returns the current members. The slice is owned by the caller.
func (r *Registry) Snapshot() []*Session {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]*Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		out = append(out, s)
	}
	return out
}

func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

func (r *Registry) Capacity() int {
	return r.capacity
}
