package confloader

import (
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce is the quiet period that folds an editor's save burst
// into one notification.
const DefaultDebounce = 100 * time.Millisecond

// Watcher reports changes to individual files. It watches their parent
// directories, so files replaced by rename are still seen, and ignores
// events for any other file in those directories.
type Watcher struct {
	fsw      *fsnotify.Watcher
	logger   *slog.Logger
	debounce time.Duration

	mu        sync.Mutex
	files     map[string]*time.Timer // pending notification per file, nil when idle
	callbacks []func(string)

	done    chan struct{}
	stopped sync.Once
	loop    sync.WaitGroup
}

// WatcherOption configures a Watcher.
type WatcherOption func(*Watcher)

// WithWatcherLogger sets the watcher's logger. The default is slog.Default.
func WithWatcherLogger(l *slog.Logger) WatcherOption {
	return func(w *Watcher) { w.logger = l }
}

// WithDebounce replaces DefaultDebounce. Zero notifies on every event.
func WithDebounce(d time.Duration) WatcherOption {
	return func(w *Watcher) { w.debounce = d }
}

// NewWatcher returns an idle watcher. Call Watch, OnChange, then
// StartAsync.
func NewWatcher(opts ...WatcherOption) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	w := &Watcher{
		fsw:      fsw,
		logger:   slog.Default(),
		debounce: DefaultDebounce,
		files:    make(map[string]*time.Timer),
		done:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w, nil
}

// Watch adds path to the watched set. The file itself need not exist
// yet, but its directory must.
func (w *Watcher) Watch(path string) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return err
	}
	if err := w.fsw.Add(filepath.Dir(abs)); err != nil {
		return err
	}

	w.mu.Lock()
	if _, ok := w.files[abs]; !ok {
		w.files[abs] = nil
	}
	w.mu.Unlock()

	w.logger.Debug("watching config file", "file", abs)
	return nil
}

// OnChange registers fn to run with the absolute path of a changed file.
// Callbacks run on a timer goroutine, one file at a time.
func (w *Watcher) OnChange(fn func(path string)) {
	w.mu.Lock()
	w.callbacks = append(w.callbacks, fn)
	w.mu.Unlock()
}

// StartAsync starts the event loop in a goroutine.
func (w *Watcher) StartAsync() {
	w.loop.Add(1)
	go func() {
		defer w.loop.Done()
		w.run()
	}()
}

// Stop ends the event loop and cancels pending notifications. It is safe
// to call more than once.
func (w *Watcher) Stop() error {
	var err error
	w.stopped.Do(func() {
		close(w.done)
		err = w.fsw.Close()
		w.loop.Wait()

		w.mu.Lock()
		for name, t := range w.files {
			if t != nil {
				t.Stop()
				w.files[name] = nil
			}
		}
		w.mu.Unlock()
	})
	return err
}

func (w *Watcher) run() {
	w.logger.Info("config watcher started")
	defer w.logger.Info("config watcher stopped")

	for {
		select {
		case <-w.done:
			return
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if ev.Has(fsnotify.Write) || ev.Has(fsnotify.Create) {
				w.changed(ev.Name)
			}
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.logger.Error("config watcher error", "error", err)
		}
	}
}

// changed schedules a notification for name if it is watched, pushing
// back one that is already pending.
func (w *Watcher) changed(name string) {
	abs, err := filepath.Abs(name)
	if err != nil {
		return
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	t, watched := w.files[abs]
	switch {
	case !watched:
		return
	case w.debounce <= 0:
		go w.notify(abs)
	case t != nil:
		t.Reset(w.debounce)
	default:
		w.files[abs] = time.AfterFunc(w.debounce, func() {
			w.mu.Lock()
			w.files[abs] = nil
			w.mu.Unlock()
			w.notify(abs)
		})
	}
}

func (w *Watcher) notify(path string) {
	select {
	case <-w.done:
		return
	default:
	}

	w.mu.Lock()
	cbs := append([]func(string)(nil), w.callbacks...)
	w.mu.Unlock()

	w.logger.Debug("config file changed", "file", path)
	for _, fn := range cbs {
		fn(path)
	}
}
