package session

import "sync"

// Registry indexes live sessions by ID.
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	opts     []Option
}

// NewRegistry creates an empty registry. opts apply to every session it
// creates.
func NewRegistry(opts ...Option) *Registry {
	return &Registry{sessions: make(map[string]*Session), opts: opts}
}

// Create starts and registers a new session.
func (r *Registry) Create() *Session {
	s := New(r.opts...)
	r.mu.Lock()
	r.sessions[s.ID()] = s
	r.mu.Unlock()
	return s
}

// Get returns the session with id, if any.
func (r *Registry) Get(id string) (*Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sessions[id]
	return s, ok
}

// Delete forgets a session and cancels its in-flight enrichment.
func (r *Registry) Delete(id string) {
	r.mu.Lock()
	s, ok := r.sessions[id]
	delete(r.sessions, id)
	r.mu.Unlock()
	if ok {
		s.Close()
	}
}

// Len reports how many sessions are registered.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}
