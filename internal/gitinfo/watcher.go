package gitinfo

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
)

// ///////////////////////////////////////////////
// HeadWatcher
// ///////////////////////////////////////////////

// headPollInterval is the stat interval used when fsnotify is unavailable.
var headPollInterval = 2 * time.Second

// HeadWatcher reports branch switches in a repository by watching its HEAD
// file with fsnotify, falling back to polling.
type HeadWatcher struct {
	// workspace is the path the branch is resolved from.
	workspace string
	// head is the absolute path of the HEAD file.
	head string
	// onChange receives each new branch name.
	onChange func(branch string)
	// events coalesces change signals; buffered to 1.
	events chan struct{}
	// done is closed by [HeadWatcher.Close].
	done chan struct{}
	// fsw is nil when polling.
	fsw     *fsnotify.Watcher
	once    sync.Once
	polling atomic.Bool
	// pollInterval is the duration between stat calls in polling mode.
	pollInterval time.Duration
	log          *slog.Logger
}

// WatchHead starts watching the repository containing workspace. onChange
// is called from a background goroutine with the new branch whenever it
// differs from the last one seen.
func WatchHead(workspace string, log *slog.Logger, onChange func(branch string)) (*HeadWatcher, error) {
	dir, err := gitDir(workspace)
	if err != nil {
		return nil, fmt.Errorf("locate git dir: %w", err)
	}
	w := &HeadWatcher{
		workspace:    workspace,
		head:         filepath.Join(dir, "HEAD"),
		onChange:     onChange,
		events:       make(chan struct{}, 1),
		done:         make(chan struct{}),
		pollInterval: headPollInterval,
		log:          log,
	}

	go w.dispatch(Branch(workspace))

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		log.Info("fsnotify unavailable, polling HEAD", "error", err)
		w.startPolling()
		return w, nil
	}
	// git replaces HEAD by renaming HEAD.lock, so watch the directory.
	if err := fsw.Add(dir); err != nil {
		log.Info("cannot watch git dir, polling HEAD", "path", dir, "error", err)
		fsw.Close()
		w.startPolling()
		return w, nil
	}
	w.fsw = fsw
	go w.watch()
	return w, nil
}

// Polling reports whether the watcher is using polling instead of fsnotify.
func (w *HeadWatcher) Polling() bool {
	return w.polling.Load()
}

// Close stops the watcher and releases resources.
func (w *HeadWatcher) Close() error {
	var err error
	w.once.Do(func() {
		close(w.done)
		if w.fsw != nil {
			if closeErr := w.fsw.Close(); closeErr != nil {
				err = fmt.Errorf("closing fsnotify watcher: %w", closeErr)
			}
		}
	})
	return err
}

func (w *HeadWatcher) startPolling() {
	w.polling.Store(true)
	go w.poll()
}

func (w *HeadWatcher) watch() {
	fsw := w.fsw
	for {
		select {
		case <-w.done:
			return
		case event, ok := <-fsw.Events:
			if !ok {
				return
			}
			if filepath.Base(event.Name) == "HEAD" &&
				(event.Has(fsnotify.Write) || event.Has(fsnotify.Create) || event.Has(fsnotify.Rename)) {
				w.notify()
			}
		case err, ok := <-fsw.Errors:
			if !ok {
				return
			}
			w.log.Info("fsnotify error, switching to polling", "error", err)
			fsw.Close()
			w.startPolling()
			return
		}
	}
}

func (w *HeadWatcher) poll() {
	var lastMod time.Time
	if info, err := os.Stat(w.head); err == nil {
		lastMod = info.ModTime()
	}

	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-w.done:
			return
		case <-ticker.C:
			info, err := os.Stat(w.head)
			if err != nil {
				continue
			}
			if info.ModTime().After(lastMod) {
				lastMod = info.ModTime()
				w.notify()
			}
		}
	}
}

// dispatch re-reads the branch on every signal and reports real changes.
func (w *HeadWatcher) dispatch(last string) {
	for {
		select {
		case <-w.done:
			return
		case <-w.events:
			branch := Branch(w.workspace)
			if branch == last {
				continue
			}
			w.log.Debug("git branch changed", "from", last, "to", branch)
			last = branch
			w.onChange(branch)
		}
	}
}

// notify coalesces rapid successive changes into one pending signal.
func (w *HeadWatcher) notify() {
	select {
	case w.events <- struct{}{}:
	default:
	}
}
