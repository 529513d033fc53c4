package pathutil

import (
	"os"
	"path/filepath"
	"strings"
)

// ExpandHomePath expands a leading ~ and lexically cleans the path.
func ExpandHomePath(p string) string {
	p = strings.TrimSpace(p)
	if p == "" {
		return ""
	}
	if p == "~" || strings.HasPrefix(p, "~/") {
		home, err := os.UserHomeDir()
		if err != nil || strings.TrimSpace(home) == "" {
			return filepath.Clean(p)
		}
		if p == "~" {
			return filepath.Clean(home)
		}
		return filepath.Clean(filepath.Join(home, strings.TrimPrefix(p, "~/")))
	}
	return filepath.Clean(p)
}

// WithinDir reports whether cand is base itself or a descendant of it.
// Both paths must already be absolute and cleaned.
func WithinDir(base, cand string) bool {
	rel, err := filepath.Rel(base, cand)
	if err != nil {
		return false
	}
	if rel == "." {
		return true
	}
	if rel == ".." || strings.HasPrefix(rel, ".."+string(os.PathSeparator)) {
		return false
	}
	return true
}

// Depth returns the number of path segments of cand below base, or -1
// when cand is not within base.
func Depth(base, cand string) int {
	if !WithinDir(base, cand) {
		return -1
	}
	rel, err := filepath.Rel(base, cand)
	if err != nil {
		return -1
	}
	if rel == "." {
		return 0
	}
	return len(strings.Split(rel, string(os.PathSeparator)))
}
