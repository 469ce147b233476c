package skills

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// watchDebounce coalesces a burst of filesystem events (an editor writing a
// SKILL.md in several syscalls) into a single re-scan.
const watchDebounce = 200 * time.Millisecond

// Watcher observes a set of DiscoverySource roots and incrementally
// re-indexes the touched skill directory when its files change, instead of
// re-scanning the whole root.
type Watcher struct {
	log     *slog.Logger
	idx     *SkillIndex
	sources []DiscoverySource
	fsw     *fsnotify.Watcher

	mu      sync.Mutex
	pending map[string]*time.Timer

	stopCh chan struct{}
	doneCh chan struct{}
}

// NewWatcher constructs a Watcher over idx's sources. The caller must still
// call idx.DiscoverAll once before Start to populate the initial index.
// Each root and each skill directory already under it is watched. A skill
// directory created later causes one reload when it appears in the root;
// changes to the files inside it after that are not observed.
func NewWatcher(log *slog.Logger, idx *SkillIndex, sources []DiscoverySource) (*Watcher, error) {
	if log == nil {
		log = slog.Default()
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	for _, src := range sources {
		if err := fsw.Add(src.Root); err != nil {
			log.Warn("watch: cannot watch skills root", "root", src.Root, "err", err)
		}
		// fsnotify does not recurse, so each skill directory is added too.
		dirEntries, err := os.ReadDir(src.Root)
		if err != nil {
			continue
		}
		for _, de := range dirEntries {
			if !de.IsDir() || strings.HasPrefix(de.Name(), ".") {
				continue
			}
			if err := fsw.Add(filepath.Join(src.Root, de.Name())); err != nil {
				log.Warn("watch: cannot watch skill directory", "dir", de.Name(), "err", err)
			}
		}
	}
	return &Watcher{
		log:     log,
		idx:     idx,
		sources: sources,
		fsw:     fsw,
		pending: make(map[string]*time.Timer),
		stopCh:  make(chan struct{}),
		doneCh:  make(chan struct{}),
	}, nil
}

// Start runs the watch loop until ctx is cancelled or Stop is called.
func (w *Watcher) Start(ctx context.Context) {
	go w.run(ctx)
}

// Stop halts the watch loop and releases the underlying fsnotify handle.
func (w *Watcher) Stop() {
	close(w.stopCh)
	<-w.doneCh
	w.fsw.Close()
}

func (w *Watcher) run(ctx context.Context) {
	defer close(w.doneCh)
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stopCh:
			return
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			w.handleEvent(ev)
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.log.Warn("watch: fsnotify error", "err", err)
		}
	}
}

// handleEvent maps a changed path back to its owning skill directory (one
// level below the watched root) and debounces a re-load of just that skill.
func (w *Watcher) handleEvent(ev fsnotify.Event) {
	skillDir, priority, ok := w.ownerOf(ev.Name)
	if !ok {
		return
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if t, exists := w.pending[skillDir]; exists {
		t.Stop()
	}
	w.pending[skillDir] = time.AfterFunc(watchDebounce, func() {
		w.mu.Lock()
		delete(w.pending, skillDir)
		w.mu.Unlock()
		w.idx.loadAndStore(skillDir, priority)
	})
}

func (w *Watcher) ownerOf(path string) (dir string, priority int, ok bool) {
	for _, src := range w.sources {
		rel, err := filepath.Rel(src.Root, path)
		if err != nil || strings.HasPrefix(rel, "..") {
			continue
		}
		parts := strings.Split(filepath.ToSlash(rel), "/")
		if len(parts) == 0 || strings.HasPrefix(parts[0], ".") {
			continue
		}
		return filepath.Join(src.Root, parts[0]), src.Priority, true
	}
	return "", 0, false
}
