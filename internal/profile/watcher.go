package profile

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"gestured/internal/engine"
	"gestured/internal/logging"
)

// DefaultDebounce is how long the profile directory must stay quiet after
// a change before the watcher reloads.
const DefaultDebounce = 500 * time.Millisecond

// WatcherConfig configures a profile watcher.
type WatcherConfig struct {
	// Dir is the profile directory. It is created if missing.
	Dir string

	// Application is the application id profiles are matched against.
	// Empty applies only universal profiles.
	Application string

	// Debounce is the quiet period before a reload.
	Debounce time.Duration

	// Logger receives watcher logs. Nil selects the default logger.
	Logger *slog.Logger
}

// Watcher keeps the engine's zone set in sync with a directory of profile
// documents. Edits are debounced so an editor writing several files
// triggers one reload; an invalid reload keeps the previous zone set.
type Watcher struct {
	cfg WatcherConfig
	eng *engine.Engine
	fsw *fsnotify.Watcher
	log *slog.Logger

	mu       sync.Mutex
	profiles []*Profile
	lastErr  error
	dirty    bool
	dirtyAt  time.Time

	done     chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// NewWatcher creates a watcher applying profiles from cfg.Dir to eng.
func NewWatcher(cfg WatcherConfig, eng *engine.Engine) *Watcher {
	if cfg.Debounce <= 0 {
		cfg.Debounce = DefaultDebounce
	}
	log := cfg.Logger
	if log == nil {
		log = logging.Default().WithComponent("profiles").Logger
	}
	return &Watcher{
		cfg:  cfg,
		eng:  eng,
		log:  log,
		done: make(chan struct{}),
	}
}

// Start performs the initial load and begins watching the directory. A
// failed initial load is an error: the daemon should not come up quietly
// with a broken profile set.
func (w *Watcher) Start() error {
	if err := os.MkdirAll(w.cfg.Dir, 0755); err != nil {
		return fmt.Errorf("profile: %w", err)
	}
	if err := w.Reload(); err != nil {
		return fmt.Errorf("profile: initial load: %w", err)
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("profile: %w", err)
	}
	if err := fsw.Add(w.cfg.Dir); err != nil {
		fsw.Close()
		return fmt.Errorf("profile: %w", err)
	}
	w.fsw = fsw

	w.wg.Add(2)
	go w.eventLoop()
	go w.debounceLoop()

	w.log.Info("watching profile directory", "dir", w.cfg.Dir)
	return nil
}

// Stop shuts the watcher down. The last applied zone set stays on the
// engine. Repeated calls are no-ops.
func (w *Watcher) Stop() error {
	var err error
	w.stopOnce.Do(func() {
		close(w.done)
		w.wg.Wait()
		if w.fsw != nil {
			err = w.fsw.Close()
		}
	})
	return err
}

// Profiles returns the last successfully loaded profile set.
func (w *Watcher) Profiles() []*Profile {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := make([]*Profile, len(w.profiles))
	copy(out, w.profiles)
	return out
}

// LastError returns the error from the most recent reload attempt, nil
// when it succeeded.
func (w *Watcher) LastError() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.lastErr
}

// Reload loads the profile directory and applies the matching zones to
// the engine. On failure the previous zone set is left in place.
func (w *Watcher) Reload() error {
	w.mu.Lock()
	w.dirty = false
	w.mu.Unlock()

	profiles, err := LoadDir(w.cfg.Dir)
	if err != nil {
		w.setErr(err)
		return err
	}
	zones := ZonesFor(profiles, w.cfg.Application)
	if err := w.eng.ReplaceZones(zones); err != nil {
		w.setErr(err)
		return err
	}

	w.mu.Lock()
	w.profiles = profiles
	w.lastErr = nil
	w.mu.Unlock()

	w.log.Info("profiles applied", "profiles", len(profiles), "zones", len(zones))
	return nil
}

func (w *Watcher) setErr(err error) {
	w.mu.Lock()
	w.lastErr = err
	w.mu.Unlock()
}

// eventLoop marks the directory dirty on any profile file change.
func (w *Watcher) eventLoop() {
	defer w.wg.Done()

	for {
		select {
		case <-w.done:
			return

		case ev, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			if !strings.HasSuffix(ev.Name, ".json") {
				continue
			}
			w.mu.Lock()
			w.dirty = true
			w.dirtyAt = time.Now()
			w.mu.Unlock()

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.log.Warn("profile watch error", "error", err)
		}
	}
}

// debounceLoop reloads once the directory has been quiet long enough.
func (w *Watcher) debounceLoop() {
	defer w.wg.Done()

	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-w.done:
			return

		case now := <-ticker.C:
			w.mu.Lock()
			due := w.dirty && now.Sub(w.dirtyAt) >= w.cfg.Debounce
			w.mu.Unlock()
			if !due {
				continue
			}
			if err := w.Reload(); err != nil {
				w.log.Error("profile reload failed, keeping previous zones", "error", err)
			}
		}
	}
}
