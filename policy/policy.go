package policy

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gobwas/glob"
	"github.com/navbuddy/navbuddy/intent"
	"github.com/navbuddy/navbuddy/internal/pathutil"
)

const DefaultConfirmTimeout = 2 * time.Minute

// Config is the raw, unvalidated policy shape as it comes out of the
// configuration file. Load turns it into a Policy or fails.
type Config struct {
	AllowedRoots     []string      `mapstructure:"allowed_roots" yaml:"allowed_roots"`
	ExcludedPatterns []string      `mapstructure:"excluded_patterns" yaml:"excluded_patterns"`
	MaxDepth         int           `mapstructure:"max_depth" yaml:"max_depth"`
	FollowSymlinks   bool          `mapstructure:"follow_symlinks" yaml:"follow_symlinks"`
	ConfirmOps       []string      `mapstructure:"confirm_ops" yaml:"confirm_ops"`
	ConfirmTimeout   time.Duration `mapstructure:"confirm_timeout" yaml:"confirm_timeout"`
}

// ConfigurationError is fatal at startup: the process must not run with
// an invalid policy.
type ConfigurationError struct {
	Field  string
	Reason string
	Err    error
}

func (e *ConfigurationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("invalid policy: %s: %s: %v", e.Field, e.Reason, e.Err)
	}
	return fmt.Sprintf("invalid policy: %s: %s", e.Field, e.Reason)
}

func (e *ConfigurationError) Unwrap() error { return e.Err }

type compiledPattern struct {
	src string
	g   glob.Glob
}

// Policy is an immutable snapshot of the sandboxing configuration.
// All fields are validated by Load; nothing mutates after that. A
// policy change means loading a new Policy and swapping it in a Store.
type Policy struct {
	roots          []string
	patterns       []compiledPattern
	maxDepth       int
	followSymlinks bool
	confirmOps     map[intent.OpKind]bool
	confirmTimeout time.Duration
	loadedAt       time.Time
}

// Load validates cfg in full and returns an immutable Policy. It fails
// fast: a malformed policy never degrades to allow-everything.
func Load(cfg Config) (*Policy, error) {
	if len(cfg.AllowedRoots) == 0 {
		return nil, &ConfigurationError{Field: "allowed_roots", Reason: "at least one allowed root is required"}
	}
	if cfg.MaxDepth < 0 {
		return nil, &ConfigurationError{Field: "max_depth", Reason: fmt.Sprintf("must be >= 0, got %d", cfg.MaxDepth)}
	}

	p := &Policy{
		maxDepth:       cfg.MaxDepth,
		followSymlinks: cfg.FollowSymlinks,
		confirmOps:     map[intent.OpKind]bool{},
		confirmTimeout: cfg.ConfirmTimeout,
		loadedAt:       time.Now().UTC(),
	}
	if p.confirmTimeout <= 0 {
		p.confirmTimeout = DefaultConfirmTimeout
	}

	seen := map[string]bool{}
	for _, raw := range cfg.AllowedRoots {
		root := pathutil.ExpandHomePath(raw)
		if root == "" {
			return nil, &ConfigurationError{Field: "allowed_roots", Reason: "empty root entry"}
		}
		abs, err := filepath.Abs(root)
		if err != nil {
			return nil, &ConfigurationError{Field: "allowed_roots", Reason: fmt.Sprintf("cannot absolutize %q", raw), Err: err}
		}
		canon, err := filepath.EvalSymlinks(abs)
		if err != nil {
			return nil, &ConfigurationError{Field: "allowed_roots", Reason: fmt.Sprintf("root %q does not resolve", raw), Err: err}
		}
		fi, err := os.Stat(canon)
		if err != nil {
			return nil, &ConfigurationError{Field: "allowed_roots", Reason: fmt.Sprintf("cannot stat root %q", raw), Err: err}
		}
		if !fi.IsDir() {
			return nil, &ConfigurationError{Field: "allowed_roots", Reason: fmt.Sprintf("root %q is not a directory", raw)}
		}
		f, err := os.Open(canon)
		if err != nil {
			return nil, &ConfigurationError{Field: "allowed_roots", Reason: fmt.Sprintf("root %q is not readable", raw), Err: err}
		}
		_ = f.Close()
		if !seen[canon] {
			seen[canon] = true
			p.roots = append(p.roots, canon)
		}
	}

	for _, pat := range cfg.ExcludedPatterns {
		pat = strings.TrimSpace(pat)
		if pat == "" {
			continue
		}
		g, err := glob.Compile(pat, '/')
		if err != nil {
			return nil, &ConfigurationError{Field: "excluded_patterns", Reason: fmt.Sprintf("pattern %q does not compile", pat), Err: err}
		}
		p.patterns = append(p.patterns, compiledPattern{src: pat, g: g})
	}

	for _, s := range cfg.ConfirmOps {
		kind, err := intent.ParseOpKind(s)
		if err != nil {
			return nil, &ConfigurationError{Field: "confirm_ops", Reason: err.Error()}
		}
		p.confirmOps[kind] = true
	}

	return p, nil
}

// AllowedRoots returns a copy of the canonical allowed roots.
func (p *Policy) AllowedRoots() []string {
	out := make([]string, len(p.roots))
	copy(out, p.roots)
	return out
}

func (p *Policy) MaxDepth() int                 { return p.maxDepth }
func (p *Policy) FollowSymlinks() bool          { return p.followSymlinks }
func (p *Policy) ConfirmTimeout() time.Duration { return p.confirmTimeout }
func (p *Policy) LoadedAt() time.Time           { return p.loadedAt }

// RequiresConfirmation reports whether kind must not execute without an
// explicit approval signal. Destructive and system tiers always do.
func (p *Policy) RequiresConfirmation(kind intent.OpKind) bool {
	if kind.AlwaysConfirm() {
		return true
	}
	return p.confirmOps[kind]
}

// ConfirmOps returns the configured confirmation-required kinds.
func (p *Policy) ConfirmOps() []intent.OpKind {
	out := make([]intent.OpKind, 0, len(p.confirmOps))
	for _, k := range intent.Kinds() {
		if p.confirmOps[k] {
			out = append(out, k)
		}
	}
	return out
}

// Excluded matches name (a single path segment or a full slash path)
// against the excluded patterns, returning the first matching pattern.
func (p *Policy) Excluded(name string) (string, bool) {
	name = filepath.ToSlash(name)
	for _, cp := range p.patterns {
		if cp.g.Match(name) {
			return cp.src, true
		}
	}
	return "", false
}

// ExcludedPatterns returns the pattern sources, for display.
func (p *Policy) ExcludedPatterns() []string {
	out := make([]string, 0, len(p.patterns))
	for _, cp := range p.patterns {
		out = append(out, cp.src)
	}
	return out
}

// RootFor returns the allowed root that canon lives under. With nested
// roots the nearest (longest) one wins, so depth is measured from it.
func (p *Policy) RootFor(canon string) (string, bool) {
	best := ""
	for _, root := range p.roots {
		if pathutil.WithinDir(root, canon) && len(root) > len(best) {
			best = root
		}
	}
	return best, best != ""
}
