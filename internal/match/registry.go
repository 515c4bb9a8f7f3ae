package match

import "sync"

// Registry holds the live Match records. The map lock is only held for
// lookups; per-match mutation goes through each record's own lock so
// unrelated matches never serialize on each other.
type Registry struct {
	mu      sync.RWMutex
	matches map[string]*Match
}

func NewRegistry() *Registry {
	return &Registry{matches: make(map[string]*Match)}
}

func (r *Registry) Create(leftPlayer, rightPlayer, tournamentID string) *Match {
	m := New(leftPlayer, rightPlayer, tournamentID)
	r.mu.Lock()
	r.matches[m.ID] = m
	r.mu.Unlock()
	return m
}

func (r *Registry) Get(id string) (*Match, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	m, ok := r.matches[id]
	return m, ok
}

// Remove evicts a record from memory. Finished matches stay registered so
// their result can still be read over HTTP; Remove exists for operational
// cleanup and tests.
func (r *Registry) Remove(id string) {
	r.mu.Lock()
	delete(r.matches, id)
	r.mu.Unlock()
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.matches)
}
