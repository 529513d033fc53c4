package gate

import (
	"sort"
	"sync"

	"github.com/navbuddy/navbuddy/paths"
)

// PathLocks serializes requests that touch the same canonical path.
// Acquisition is all-or-nothing and non-blocking: contention on any
// path yields a ConflictError instead of waiting, so two
// simultaneously-approved destructive operations can never interleave.
type PathLocks struct {
	mu   sync.Mutex
	held map[string]string // canonical path -> holding request ID
}

func NewPathLocks() *PathLocks {
	return &PathLocks{held: map[string]string{}}
}

// Acquire claims every path for requestID, returning a release func.
func (l *PathLocks) Acquire(requestID string, cps []paths.Canonical) (func(), error) {
	uniq := make([]string, 0, len(cps))
	seen := map[string]bool{}
	for _, c := range cps {
		p := c.String()
		if p == "" || seen[p] {
			continue
		}
		seen[p] = true
		uniq = append(uniq, p)
	}
	sort.Strings(uniq)

	l.mu.Lock()
	defer l.mu.Unlock()

	for _, p := range uniq {
		if holder, ok := l.held[p]; ok && holder != requestID {
			return nil, &ConflictError{Path: p}
		}
	}
	for _, p := range uniq {
		l.held[p] = requestID
	}
	return func() {
		l.mu.Lock()
		defer l.mu.Unlock()
		for _, p := range uniq {
			if l.held[p] == requestID {
				delete(l.held, p)
			}
		}
	}, nil
}
