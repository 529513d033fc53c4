package policy

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/navbuddy/navbuddy/intent"
)

func tmpRoot(t *testing.T) string {
	t.Helper()
	dir, err := filepath.EvalSymlinks(t.TempDir())
	if err != nil {
		t.Fatalf("EvalSymlinks: %v", err)
	}
	return dir
}

func TestLoadRejectsInvalidConfig(t *testing.T) {
	root := tmpRoot(t)
	file := filepath.Join(root, "plain.txt")
	if err := os.WriteFile(file, []byte("x"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	cases := []struct {
		name      string
		cfg       Config
		wantField string
	}{
		{
			name:      "no_roots",
			cfg:       Config{},
			wantField: "allowed_roots",
		},
		{
			name:      "negative_depth",
			cfg:       Config{AllowedRoots: []string{root}, MaxDepth: -1},
			wantField: "max_depth",
		},
		{
			name:      "missing_root",
			cfg:       Config{AllowedRoots: []string{filepath.Join(root, "nope")}, MaxDepth: 3},
			wantField: "allowed_roots",
		},
		{
			name:      "root_is_file",
			cfg:       Config{AllowedRoots: []string{file}, MaxDepth: 3},
			wantField: "allowed_roots",
		},
		{
			name:      "bad_pattern",
			cfg:       Config{AllowedRoots: []string{root}, MaxDepth: 3, ExcludedPatterns: []string{"[unclosed"}},
			wantField: "excluded_patterns",
		},
		{
			name:      "unknown_confirm_op",
			cfg:       Config{AllowedRoots: []string{root}, MaxDepth: 3, ConfirmOps: []string{"format"}},
			wantField: "confirm_ops",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Load(tc.cfg)
			if err == nil {
				t.Fatal("expected error, got nil")
			}
			var cerr *ConfigurationError
			if !errors.As(err, &cerr) {
				t.Fatalf("expected ConfigurationError, got %T: %v", err, err)
			}
			if cerr.Field != tc.wantField {
				t.Fatalf("field = %q, want %q", cerr.Field, tc.wantField)
			}
		})
	}
}

func TestLoadDefaultsAndAccessors(t *testing.T) {
	root := tmpRoot(t)
	pol, err := Load(Config{
		AllowedRoots:     []string{root, root}, // duplicates collapse
		ExcludedPatterns: []string{"*.tmp", ".git", ""},
		MaxDepth:         4,
		ConfirmOps:       []string{"move"},
	})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if got := pol.AllowedRoots(); len(got) != 1 || got[0] != root {
		t.Fatalf("AllowedRoots = %v, want [%s]", got, root)
	}
	if got := pol.ExcludedPatterns(); len(got) != 2 {
		t.Fatalf("ExcludedPatterns = %v, want 2 entries", got)
	}
	if pol.ConfirmTimeout() != DefaultConfirmTimeout {
		t.Fatalf("ConfirmTimeout = %v, want default %v", pol.ConfirmTimeout(), DefaultConfirmTimeout)
	}
	if got := pol.ConfirmOps(); len(got) != 1 || got[0] != intent.OpMove {
		t.Fatalf("ConfirmOps = %v, want [move]", got)
	}
}

func TestRequiresConfirmation(t *testing.T) {
	root := tmpRoot(t)
	pol, err := Load(Config{AllowedRoots: []string{root}, MaxDepth: 3, ConfirmOps: []string{"move"}})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	cases := []struct {
		kind intent.OpKind
		want bool
	}{
		{intent.OpRead, false},
		{intent.OpList, false},
		{intent.OpSearch, false},
		{intent.OpCopy, false},
		{intent.OpMove, true},    // configured
		{intent.OpDelete, true},  // destructive tier
		{intent.OpExecute, true}, // system tier
	}
	for _, tc := range cases {
		t.Run(string(tc.kind), func(t *testing.T) {
			if got := pol.RequiresConfirmation(tc.kind); got != tc.want {
				t.Fatalf("RequiresConfirmation(%s) = %v, want %v", tc.kind, got, tc.want)
			}
		})
	}
}

func TestExcluded(t *testing.T) {
	root := tmpRoot(t)
	pol, err := Load(Config{
		AllowedRoots:     []string{root},
		ExcludedPatterns: []string{"*.tmp", ".git", "secret*"},
		MaxDepth:         3,
	})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	cases := []struct {
		name    string
		in      string
		wantPat string
		wantHit bool
	}{
		{"tmp_suffix", "report.tmp", "*.tmp", true},
		{"git_dir", ".git", ".git", true},
		{"prefix", "secret_notes.md", "secret*", true},
		{"clean", "report.md", "", false},
		{"slash_separator_not_crossed", "a/b.tmp", "", false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			pat, hit := pol.Excluded(tc.in)
			if hit != tc.wantHit || pat != tc.wantPat {
				t.Fatalf("Excluded(%q) = (%q, %v), want (%q, %v)", tc.in, pat, hit, tc.wantPat, tc.wantHit)
			}
		})
	}
}

func TestRootForNearestWhenRootsNest(t *testing.T) {
	parent := tmpRoot(t)
	nested := filepath.Join(parent, "projects")
	if err := os.MkdirAll(nested, 0o755); err != nil {
		t.Fatalf("MkdirAll: %v", err)
	}

	// Config order lists the outer root first; the nested root must
	// still win for paths under it.
	pol, err := Load(Config{AllowedRoots: []string{parent, nested}, MaxDepth: 3})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	cases := []struct {
		name string
		in   string
		want string
	}{
		{"under_nested", filepath.Join(nested, "app", "main.go"), nested},
		{"nested_itself", nested, nested},
		{"under_parent_only", filepath.Join(parent, "misc.txt"), parent},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			root, ok := pol.RootFor(tc.in)
			if !ok || root != tc.want {
				t.Fatalf("RootFor(%q) = (%q, %v), want %q", tc.in, root, ok, tc.want)
			}
		})
	}
}

func TestStoreSwap(t *testing.T) {
	root := tmpRoot(t)
	p1, err := Load(Config{AllowedRoots: []string{root}, MaxDepth: 2})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	p2, err := Load(Config{AllowedRoots: []string{root}, MaxDepth: 7})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	store := NewStore(p1)
	if store.Current().MaxDepth() != 2 {
		t.Fatalf("MaxDepth = %d, want 2", store.Current().MaxDepth())
	}
	store.Swap(p2)
	if store.Current().MaxDepth() != 7 {
		t.Fatalf("MaxDepth after swap = %d, want 7", store.Current().MaxDepth())
	}
}

func TestWatcherReload(t *testing.T) {
	root := tmpRoot(t)
	cfgFile := filepath.Join(root, "config.yaml")
	if err := os.WriteFile(cfgFile, []byte("v1"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	p1, err := Load(Config{AllowedRoots: []string{root}, MaxDepth: 2})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	store := NewStore(p1)

	depth := 5
	loadErr := error(nil)
	w, err := NewWatcher(cfgFile, store, func() (*Policy, error) {
		if loadErr != nil {
			return nil, loadErr
		}
		return Load(Config{AllowedRoots: []string{root}, MaxDepth: depth})
	}, nil)
	if err != nil {
		t.Fatalf("NewWatcher: %v", err)
	}
	defer w.Close()

	if err := os.WriteFile(cfgFile, []byte("v2"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	waitFor(t, func() bool { return store.Current().MaxDepth() == 5 })

	// A failing reload keeps the previous snapshot.
	loadErr = errors.New("broken config")
	if err := os.WriteFile(cfgFile, []byte("v3"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	time.Sleep(300 * time.Millisecond)
	if got := store.Current().MaxDepth(); got != 5 {
		t.Fatalf("MaxDepth after failed reload = %d, want 5", got)
	}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}
