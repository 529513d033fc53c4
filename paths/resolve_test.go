package paths

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/navbuddy/navbuddy/policy"
)

func testPolicy(t *testing.T, root string, cfg policy.Config) *policy.Policy {
	t.Helper()
	if len(cfg.AllowedRoots) == 0 {
		cfg.AllowedRoots = []string{root}
	}
	if cfg.MaxDepth == 0 {
		cfg.MaxDepth = 10
	}
	pol, err := policy.Load(cfg)
	if err != nil {
		t.Fatalf("policy.Load: %v", err)
	}
	return pol
}

func tmpRoot(t *testing.T) string {
	t.Helper()
	dir, err := filepath.EvalSymlinks(t.TempDir())
	if err != nil {
		t.Fatalf("EvalSymlinks: %v", err)
	}
	return dir
}

func mustWrite(t *testing.T, path string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("MkdirAll: %v", err)
	}
	if err := os.WriteFile(path, []byte("x"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
}

func denialRule(t *testing.T, err error) Rule {
	t.Helper()
	if err == nil {
		t.Fatal("expected denial, got nil error")
	}
	var rerr *ResolutionError
	if !errors.As(err, &rerr) {
		t.Fatalf("expected ResolutionError, got %T: %v", err, err)
	}
	return rerr.Rule
}

func TestResolveAllowsAndDenies(t *testing.T) {
	root := tmpRoot(t)
	outside := tmpRoot(t)

	mustWrite(t, filepath.Join(root, "docs", "report.md"))
	mustWrite(t, filepath.Join(root, "docs", "report.tmp"))
	mustWrite(t, filepath.Join(root, ".git", "config"))
	mustWrite(t, filepath.Join(root, "a", "b", "c", "deep.txt"))
	mustWrite(t, filepath.Join(outside, "elsewhere.txt"))

	pol := testPolicy(t, root, policy.Config{
		ExcludedPatterns: []string{"*.tmp", ".git"},
		MaxDepth:         3,
	})

	cases := []struct {
		name     string
		raw      string
		wantRule Rule
	}{
		{"allowed_file", filepath.Join(root, "docs", "report.md"), ""},
		{"allowed_root_itself", root, ""},
		{"dotdot_inside_root", filepath.Join(root, "docs", "..", "docs", "report.md"), ""},
		{"nonexistent_destination", filepath.Join(root, "docs", "new-name.md"), ""},
		{"outside_root", filepath.Join(outside, "elsewhere.txt"), RuleOutsideAllowedRoot},
		{"dotdot_escape", filepath.Join(root, "..", "elsewhere"), RuleOutsideAllowedRoot},
		{"excluded_suffix", filepath.Join(root, "docs", "report.tmp"), RuleExcludedByPattern},
		{"excluded_segment_midpath", filepath.Join(root, ".git", "config"), RuleExcludedByPattern},
		{"too_deep", filepath.Join(root, "a", "b", "c", "deep.txt"), RuleDepthExceeded},
		{"empty", "   ", RuleUnreadablePath},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			canon, err := Resolve(tc.raw, pol)
			if tc.wantRule == "" {
				if err != nil {
					t.Fatalf("Resolve(%q): %v", tc.raw, err)
				}
				if canon == "" {
					t.Fatal("empty canonical path")
				}
				return
			}
			if got := denialRule(t, err); got != tc.wantRule {
				t.Fatalf("rule = %s, want %s", got, tc.wantRule)
			}
		})
	}
}

func TestResolveIdempotent(t *testing.T) {
	root := tmpRoot(t)
	mustWrite(t, filepath.Join(root, "docs", "report.md"))
	pol := testPolicy(t, root, policy.Config{})

	first, err := Resolve(filepath.Join(root, "docs", "report.md"), pol)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	second, err := Resolve(first.String(), pol)
	if err != nil {
		t.Fatalf("Resolve(canonical): %v", err)
	}
	if first != second {
		t.Fatalf("not idempotent: %q != %q", first, second)
	}
}

func TestResolveSymlinkEscape(t *testing.T) {
	root := tmpRoot(t)
	outside := tmpRoot(t)
	mustWrite(t, filepath.Join(outside, "target.txt"))

	link := filepath.Join(root, "innocent.txt")
	if err := os.Symlink(filepath.Join(outside, "target.txt"), link); err != nil {
		t.Skipf("symlink unsupported: %v", err)
	}

	pol := testPolicy(t, root, policy.Config{FollowSymlinks: false})
	_, err := Resolve(link, pol)
	if got := denialRule(t, err); got != RuleSymlinkEscape {
		t.Fatalf("rule = %s, want %s", got, RuleSymlinkEscape)
	}

	// With follow enabled the target is still outside every root.
	pol = testPolicy(t, root, policy.Config{FollowSymlinks: true})
	_, err = Resolve(link, pol)
	if got := denialRule(t, err); got != RuleOutsideAllowedRoot {
		t.Fatalf("rule = %s, want %s", got, RuleOutsideAllowedRoot)
	}
}

func TestResolveSymlinkWithinRoot(t *testing.T) {
	root := tmpRoot(t)
	mustWrite(t, filepath.Join(root, "docs", "report.md"))
	link := filepath.Join(root, "shortcut.md")
	if err := os.Symlink(filepath.Join(root, "docs", "report.md"), link); err != nil {
		t.Skipf("symlink unsupported: %v", err)
	}

	pol := testPolicy(t, root, policy.Config{FollowSymlinks: false})
	canon, err := Resolve(link, pol)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if canon.String() != filepath.Join(root, "docs", "report.md") {
		t.Fatalf("canon = %q, want the link target", canon)
	}
}

func TestResolveDepthFromNearestRoot(t *testing.T) {
	parent := tmpRoot(t)
	nested := filepath.Join(parent, "projects", "app")
	mustWrite(t, filepath.Join(nested, "pkg", "deep.go"))

	// deep.go sits 4 segments below parent but only 2 below the nested
	// root; depth must be measured from the nearest one.
	pol := testPolicy(t, parent, policy.Config{
		AllowedRoots: []string{parent, nested},
		MaxDepth:     2,
	})

	if _, err := Resolve(filepath.Join(nested, "pkg", "deep.go"), pol); err != nil {
		t.Fatalf("Resolve under nested root: %v", err)
	}

	_, err := Resolve(filepath.Join(parent, "projects", "app", "pkg", "util", "stray", "too-deep.go"), pol)
	if got := denialRule(t, err); got != RuleDepthExceeded {
		t.Fatalf("rule = %s, want %s", got, RuleDepthExceeded)
	}
}

func TestResolveAllFailsFast(t *testing.T) {
	root := tmpRoot(t)
	outside := tmpRoot(t)
	mustWrite(t, filepath.Join(root, "ok.txt"))
	mustWrite(t, filepath.Join(outside, "bad.txt"))

	pol := testPolicy(t, root, policy.Config{})
	got, err := ResolveAll([]string{
		filepath.Join(root, "ok.txt"),
		filepath.Join(outside, "bad.txt"),
	}, pol)
	if err == nil {
		t.Fatal("expected denial")
	}
	if got != nil {
		t.Fatalf("partial results leaked: %v", got)
	}
}
