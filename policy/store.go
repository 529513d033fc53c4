package policy

import "sync/atomic"

// Store holds the current Policy snapshot behind an atomic pointer.
// Readers take the snapshot once per request and keep using it;
// Swap only affects requests that start after it.
type Store struct {
	p atomic.Pointer[Policy]
}

func NewStore(p *Policy) *Store {
	s := &Store{}
	s.p.Store(p)
	return s
}

// Current returns the active snapshot.
func (s *Store) Current() *Policy {
	return s.p.Load()
}

// Swap atomically replaces the active snapshot for future requests.
func (s *Store) Swap(p *Policy) {
	if p == nil {
		return
	}
	s.p.Store(p)
}
