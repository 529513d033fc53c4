package intent

import "strings"

const (
	maxSnapshotListings = 50
	maxSnapshotBytes    = 8 * 1024
)

// Snapshot is the bounded navigation context sent to the oracle: the
// working directory plus the most recent listings the user has seen.
type Snapshot struct {
	WorkingDir     string   `json:"working_dir,omitempty"`
	RecentListings []string `json:"recent_listings,omitempty"`
}

// bounded trims the snapshot so a huge directory can never blow up the
// prompt. Keeps the most recent listings.
func (s Snapshot) bounded() Snapshot {
	out := Snapshot{WorkingDir: strings.TrimSpace(s.WorkingDir)}
	listings := s.RecentListings
	if len(listings) > maxSnapshotListings {
		listings = listings[len(listings)-maxSnapshotListings:]
	}
	total := 0
	for _, l := range listings {
		l = strings.TrimSpace(l)
		if l == "" {
			continue
		}
		if total+len(l) > maxSnapshotBytes {
			break
		}
		total += len(l)
		out.RecentListings = append(out.RecentListings, l)
	}
	return out
}
