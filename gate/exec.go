package gate

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/navbuddy/navbuddy/intent"
	"github.com/navbuddy/navbuddy/paths"
	"github.com/navbuddy/navbuddy/policy"
)

// ExecConfig bounds every executor. Zero values take the defaults.
type ExecConfig struct {
	ReadMaxBytes     int64
	ListMaxEntries   int
	SearchMaxFiles   int
	SearchMaxMatches int
	CommandTimeout   time.Duration
	CommandMaxOutput int
}

func (c ExecConfig) withDefaults() ExecConfig {
	if c.ReadMaxBytes <= 0 {
		c.ReadMaxBytes = 256 * 1024
	}
	if c.ListMaxEntries <= 0 {
		c.ListMaxEntries = 500
	}
	if c.SearchMaxFiles <= 0 {
		c.SearchMaxFiles = 1000
	}
	if c.SearchMaxMatches <= 0 {
		c.SearchMaxMatches = 100
	}
	if c.CommandTimeout <= 0 {
		c.CommandTimeout = 30 * time.Second
	}
	if c.CommandMaxOutput <= 0 {
		c.CommandMaxOutput = 256 * 1024
	}
	return c
}

// outcome is what an executor hands back to the pipeline. Batches are
// best-effort: items carry per-item errors, failed flags the whole
// request as Failed when any item failed.
type outcome struct {
	affected []string
	items    []ItemResult
	output   string
	failed   bool
	errMsg   string
}

func (o *outcome) item(it ItemResult) {
	o.items = append(o.items, it)
	if it.OK {
		o.affected = append(o.affected, it.Path)
	} else {
		o.failed = true
		if o.errMsg == "" {
			o.errMsg = it.Error
		}
	}
}

func execute(ctx context.Context, va ValidatedAction, cfg ExecConfig, pol *policy.Policy) outcome {
	cfg = cfg.withDefaults()
	switch va.Proposal.Kind {
	case intent.OpRead:
		return execRead(va, cfg)
	case intent.OpList:
		return execList(va, cfg)
	case intent.OpSearch:
		return execSearch(ctx, va, cfg, pol)
	case intent.OpMove:
		return execTransfer(va, cfg, false)
	case intent.OpCopy:
		return execTransfer(va, cfg, true)
	case intent.OpDelete:
		return execDelete(va)
	case intent.OpExecute:
		return execCommand(ctx, va, cfg)
	default:
		return outcome{failed: true, errMsg: fmt.Sprintf("unknown operation kind: %s", va.Proposal.Kind)}
	}
}

func execRead(va ValidatedAction, cfg ExecConfig) outcome {
	var o outcome
	var sb strings.Builder
	for _, src := range va.Sources {
		p := src.String()
		fi, err := os.Stat(p)
		if err != nil {
			o.item(ItemResult{Path: p, Error: err.Error()})
			continue
		}
		if fi.IsDir() {
			o.item(ItemResult{Path: p, Error: "is a directory"})
			continue
		}
		f, err := os.Open(p)
		if err != nil {
			o.item(ItemResult{Path: p, Error: err.Error()})
			continue
		}
		data, err := io.ReadAll(io.LimitReader(f, cfg.ReadMaxBytes))
		_ = f.Close()
		if err != nil {
			o.item(ItemResult{Path: p, Error: err.Error()})
			continue
		}
		if len(va.Sources) > 1 {
			fmt.Fprintf(&sb, "==> %s <==\n", p)
		}
		sb.Write(data)
		if len(data) > 0 && data[len(data)-1] != '\n' {
			sb.WriteByte('\n')
		}
		o.item(ItemResult{Path: p, OK: true})
	}
	o.output = sb.String()
	return o
}

func execList(va ValidatedAction, cfg ExecConfig) outcome {
	var o outcome
	var sb strings.Builder
	for _, src := range va.Sources {
		p := src.String()
		entries, err := os.ReadDir(p)
		if err != nil {
			o.item(ItemResult{Path: p, Error: err.Error()})
			continue
		}
		if len(va.Sources) > 1 {
			fmt.Fprintf(&sb, "%s:\n", p)
		}
		shown := entries
		if len(shown) > cfg.ListMaxEntries {
			shown = shown[:cfg.ListMaxEntries]
		}
		for _, e := range shown {
			var size int64
			if fi, err := e.Info(); err == nil {
				size = fi.Size()
			}
			marker := ""
			if e.IsDir() {
				marker = "/"
			}
			fmt.Fprintf(&sb, "%s%s\t%d\n", e.Name(), marker, size)
		}
		if len(entries) > cfg.ListMaxEntries {
			fmt.Fprintf(&sb, "... %d more entries\n", len(entries)-cfg.ListMaxEntries)
		}
		o.item(ItemResult{Path: p, OK: true})
	}
	o.output = sb.String()
	return o
}

func execSearch(ctx context.Context, va ValidatedAction, cfg ExecConfig, pol *policy.Policy) outcome {
	var o outcome
	query := strings.ToLower(va.Proposal.Query)
	var matches []string
	scanned := 0

	for _, src := range va.Sources {
		root := src.String()
		err := filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if err != nil {
				// Unreadable entries are skipped, not fatal.
				return nil
			}
			// The walk must not surface anything the resolver would
			// deny: excluded names, entries past the depth bound,
			// symlink escapes. Every walked path goes back through it.
			if p != root {
				if _, rerr := paths.Resolve(p, pol); rerr != nil {
					if d.IsDir() {
						return fs.SkipDir
					}
					return nil
				}
			}
			if d.IsDir() {
				return nil
			}
			if scanned >= cfg.SearchMaxFiles || len(matches) >= cfg.SearchMaxMatches {
				return fs.SkipAll
			}
			scanned++
			if nameOnlyMatch(d.Name(), va.Proposal.Pattern) {
				matches = append(matches, p)
				return nil
			}
			data, rerr := os.ReadFile(p)
			if rerr != nil {
				return nil
			}
			if strings.Contains(strings.ToLower(string(data)), query) {
				matches = append(matches, p)
			}
			return nil
		})
		if err != nil && ctx.Err() != nil {
			o.item(ItemResult{Path: root, Error: ctx.Err().Error()})
			continue
		}
		o.item(ItemResult{Path: root, OK: true})
	}

	var sb strings.Builder
	for _, m := range matches {
		sb.WriteString(m)
		sb.WriteByte('\n')
	}
	fmt.Fprintf(&sb, "%d match(es) in %d file(s) scanned\n", len(matches), scanned)
	o.output = sb.String()
	return o
}

// nameOnlyMatch applies the optional filename pattern from the
// proposal, a simple shell pattern, to the basename.
func nameOnlyMatch(name, pattern string) bool {
	pattern = strings.TrimSpace(pattern)
	if pattern == "" {
		return false
	}
	ok, err := filepath.Match(pattern, name)
	return err == nil && ok
}

// execTransfer handles move and copy. Destinations are the canonical
// per-item paths captured at validation time; an existing destination
// is a per-item failure, never a silent overwrite.
func execTransfer(va ValidatedAction, cfg ExecConfig, keepSource bool) outcome {
	var o outcome
	for i, src := range va.Sources {
		dest := va.Destination
		if len(va.ItemDests) == len(va.Sources) {
			dest = va.ItemDests[i]
		}
		sp, dp := src.String(), dest.String()

		if _, err := os.Lstat(dp); err == nil {
			o.item(ItemResult{Path: sp, Destination: dp, Error: fmt.Sprintf("destination already exists: %s", dp)})
			continue
		}
		var err error
		if keepSource {
			err = copyPath(sp, dp, cfg.ReadMaxBytes)
		} else {
			err = os.Rename(sp, dp)
		}
		if err != nil {
			o.item(ItemResult{Path: sp, Destination: dp, Error: err.Error()})
			continue
		}
		o.item(ItemResult{Path: sp, Destination: dp, OK: true})
		o.affected = append(o.affected, dp)
	}
	return o
}

func copyPath(src, dest string, _ int64) error {
	fi, err := os.Stat(src)
	if err != nil {
		return err
	}
	if fi.IsDir() {
		return copyDir(src, dest)
	}
	return copyFile(src, dest, fi.Mode())
}

func copyFile(src, dest string, mode os.FileMode) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(dest, os.O_CREATE|os.O_EXCL|os.O_WRONLY, mode.Perm())
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		_ = os.Remove(dest)
		return err
	}
	return out.Close()
}

func copyDir(src, dest string) error {
	return filepath.WalkDir(src, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(src, p)
		if err != nil {
			return err
		}
		target := filepath.Join(dest, rel)
		if d.IsDir() {
			fi, err := d.Info()
			if err != nil {
				return err
			}
			return os.MkdirAll(target, fi.Mode().Perm())
		}
		if d.Type()&fs.ModeSymlink != 0 {
			return fmt.Errorf("refusing to copy symlink %q", p)
		}
		fi, err := d.Info()
		if err != nil {
			return err
		}
		return copyFile(p, target, fi.Mode())
	})
}

func execDelete(va ValidatedAction) outcome {
	var o outcome
	for _, src := range va.Sources {
		p := src.String()
		fi, err := os.Lstat(p)
		if err != nil {
			o.item(ItemResult{Path: p, Error: err.Error()})
			continue
		}
		if fi.IsDir() && !va.Proposal.Recursive {
			o.item(ItemResult{Path: p, Error: "is a directory (recursive delete not requested)"})
			continue
		}
		if fi.IsDir() {
			err = os.RemoveAll(p)
		} else {
			err = os.Remove(p)
		}
		if err != nil {
			o.item(ItemResult{Path: p, Error: err.Error()})
			continue
		}
		o.item(ItemResult{Path: p, OK: true})
	}
	return o
}

// execCommand runs the proposed command with the validated directory as
// working dir. System-tier: it only ever runs after confirmation.
func execCommand(ctx context.Context, va ValidatedAction, cfg ExecConfig) outcome {
	var o outcome
	if len(va.Sources) == 0 {
		return outcome{failed: true, errMsg: "execute requires a working directory"}
	}
	workDir := va.Sources[0].String()
	fi, err := os.Stat(workDir)
	if err != nil || !fi.IsDir() {
		return outcome{failed: true, errMsg: fmt.Sprintf("working directory unavailable: %s", workDir)}
	}

	cctx, cancel := context.WithTimeout(ctx, cfg.CommandTimeout)
	defer cancel()

	cmd := exec.CommandContext(cctx, "/bin/sh", "-c", va.Proposal.Command)
	cmd.Dir = workDir
	out, err := cmd.CombinedOutput()
	if len(out) > cfg.CommandMaxOutput {
		out = out[:cfg.CommandMaxOutput]
	}
	o.output = string(out)
	if err != nil {
		o.item(ItemResult{Path: workDir, Error: err.Error()})
		return o
	}
	o.item(ItemResult{Path: workDir, OK: true})
	return o
}
