// Package paths is the sole gate between arbitrary path strings and
// real filesystem paths. Every component routes through Resolve before
// a path may be touched.
package paths

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/navbuddy/navbuddy/internal/pathutil"
	"github.com/navbuddy/navbuddy/policy"
)

// Canonical is a fully resolved, symlink-expanded absolute path that
// has passed every policy check. Only Canonical values reach the
// execution stage.
type Canonical string

func (c Canonical) String() string { return string(c) }

// Rule identifies which policy rule denied a path. Denials surface the
// rule, never a generic "denied".
type Rule string

const (
	RuleOutsideAllowedRoot Rule = "outside_allowed_root"
	RuleExcludedByPattern  Rule = "excluded_by_pattern"
	RuleDepthExceeded      Rule = "depth_exceeded"
	RuleUnreadablePath     Rule = "unreadable_path"
	RuleSymlinkEscape      Rule = "symlink_escape"
)

type ResolutionError struct {
	Rule    Rule
	Path    string
	Pattern string
	Err     error
}

func (e *ResolutionError) Error() string {
	msg := fmt.Sprintf("path %q denied by rule %s", e.Path, e.Rule)
	if e.Pattern != "" {
		msg += fmt.Sprintf(" (pattern %q)", e.Pattern)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ResolutionError) Unwrap() error { return e.Err }

// Resolve canonicalizes raw and validates it against pol. All checks
// must pass; the first failure short-circuits. Resolving an
// already-canonical in-policy path returns it unchanged.
func Resolve(raw string, pol *policy.Policy) (Canonical, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", &ResolutionError{Rule: RuleUnreadablePath, Path: raw, Err: errors.New("empty path")}
	}

	expanded := pathutil.ExpandHomePath(raw)
	abs, err := filepath.Abs(expanded)
	if err != nil {
		return "", &ResolutionError{Rule: RuleUnreadablePath, Path: raw, Err: err}
	}
	lexical := filepath.Clean(abs)

	canon, err := canonicalize(lexical)
	if err != nil {
		return "", &ResolutionError{Rule: RuleUnreadablePath, Path: raw, Err: err}
	}

	// With symlink-follow off, a literal path inside an allowed root
	// whose real target lands outside every root is an escape attempt.
	if !pol.FollowSymlinks() && canon != lexical {
		_, lexicalIn := pol.RootFor(lexical)
		_, canonIn := pol.RootFor(canon)
		if lexicalIn && !canonIn {
			return "", &ResolutionError{Rule: RuleSymlinkEscape, Path: raw, Err: fmt.Errorf("resolves to %q", canon)}
		}
	}

	root, ok := pol.RootFor(canon)
	if !ok {
		return "", &ResolutionError{Rule: RuleOutsideAllowedRoot, Path: raw}
	}

	if d := pathutil.Depth(root, canon); d > pol.MaxDepth() {
		return "", &ResolutionError{Rule: RuleDepthExceeded, Path: raw, Err: fmt.Errorf("depth %d exceeds max %d", d, pol.MaxDepth())}
	}

	rel, err := filepath.Rel(root, canon)
	if err != nil {
		return "", &ResolutionError{Rule: RuleUnreadablePath, Path: raw, Err: err}
	}
	if rel != "." {
		for _, seg := range strings.Split(rel, string(os.PathSeparator)) {
			if pat, hit := pol.Excluded(seg); hit {
				return "", &ResolutionError{Rule: RuleExcludedByPattern, Path: raw, Pattern: pat}
			}
		}
	}
	if pat, hit := pol.Excluded(filepath.ToSlash(canon)); hit {
		return "", &ResolutionError{Rule: RuleExcludedByPattern, Path: raw, Pattern: pat}
	}

	return Canonical(canon), nil
}

// ResolveAll resolves every raw path, failing on the first denial so a
// proposal is validated in one pass or not at all.
func ResolveAll(raws []string, pol *policy.Policy) ([]Canonical, error) {
	out := make([]Canonical, 0, len(raws))
	for _, r := range raws {
		c, err := Resolve(r, pol)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, nil
}

// canonicalize resolves symlinks on the longest existing prefix so
// that not-yet-existing targets (move/copy destinations) still get a
// canonical form. Permission failures are reported, not skipped.
func canonicalize(lexical string) (string, error) {
	p := lexical
	var suffix []string
	for {
		resolved, err := filepath.EvalSymlinks(p)
		if err == nil {
			if len(suffix) == 0 {
				return resolved, nil
			}
			parts := append([]string{resolved}, reverse(suffix)...)
			return filepath.Join(parts...), nil
		}
		if !os.IsNotExist(err) {
			return "", err
		}
		dir, base := filepath.Split(p)
		if dir != string(os.PathSeparator) {
			dir = strings.TrimRight(dir, string(os.PathSeparator))
		}
		if dir == "" || base == "" || dir == p {
			return "", fmt.Errorf("cannot canonicalize %q", lexical)
		}
		suffix = append(suffix, base)
		p = dir
	}
}

func reverse(s []string) []string {
	out := make([]string, len(s))
	for i, v := range s {
		out[len(s)-1-i] = v
	}
	return out
}
