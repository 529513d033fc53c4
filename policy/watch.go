package policy

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/fsnotify/fsnotify"
)

// Watcher reloads the policy file on change and swaps the new snapshot
// into the store. A reload that fails validation keeps the previous
// snapshot; readers never see a half-valid policy.
type Watcher struct {
	store  *Store
	load   func() (*Policy, error)
	log    *slog.Logger
	fsw    *fsnotify.Watcher
	target string
	done   chan struct{}
}

// NewWatcher watches path. load must re-read and fully validate the
// policy file (typically a closure over the config loader).
func NewWatcher(path string, store *Store, load func() (*Policy, error), log *slog.Logger) (*Watcher, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, fmt.Errorf("missing policy file path")
	}
	if store == nil || load == nil {
		return nil, fmt.Errorf("watcher requires a store and a loader")
	}
	if log == nil {
		log = slog.Default()
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	// Watch the directory: editors replace files by rename, which drops
	// a watch on the file itself.
	if err := fsw.Add(filepath.Dir(path)); err != nil {
		_ = fsw.Close()
		return nil, err
	}
	w := &Watcher{
		store:  store,
		load:   load,
		log:    log,
		fsw:    fsw,
		target: filepath.Clean(path),
		done:   make(chan struct{}),
	}
	go w.loop()
	return w, nil
}

func (w *Watcher) loop() {
	defer close(w.done)
	for {
		select {
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if filepath.Clean(ev.Name) != w.target {
				continue
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			w.reload()
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.log.Warn("policy_watch_error", "error", err.Error())
		}
	}
}

func (w *Watcher) reload() {
	p, err := w.load()
	if err != nil {
		w.log.Warn("policy_reload_error", "error", err.Error())
		return
	}
	w.store.Swap(p)
	w.log.Info("policy_reloaded",
		"allowed_roots", len(p.AllowedRoots()),
		"excluded_patterns", len(p.ExcludedPatterns()),
		"max_depth", p.MaxDepth(),
	)
}

func (w *Watcher) Close() error {
	err := w.fsw.Close()
	<-w.done
	return err
}
