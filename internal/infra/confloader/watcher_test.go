package confloader

import (
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"
)

// settle gives fsnotify time to register the directory before writes.
const settle = 100 * time.Millisecond

func startWatcher(t *testing.T, debounce time.Duration) (*Watcher, string, chan string) {
	t.Helper()

	path := filepath.Join(t.TempDir(), "tokstash.yaml")
	if err := os.WriteFile(path, []byte("log:\n  level: info\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	w, err := NewWatcher(WithDebounce(debounce))
	if err != nil {
		t.Fatalf("NewWatcher() error = %v", err)
	}
	t.Cleanup(func() { _ = w.Stop() })
	if err := w.Watch(path); err != nil {
		t.Fatalf("Watch() error = %v", err)
	}

	changes := make(chan string, 16)
	w.OnChange(func(p string) { changes <- p })
	w.StartAsync()
	time.Sleep(settle)
	return w, path, changes
}

func TestWatcher_ReportsWrite(t *testing.T) {
	_, path, changes := startWatcher(t, 0)

	if err := os.WriteFile(path, []byte("log:\n  level: debug\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	select {
	case got := <-changes:
		want, _ := filepath.Abs(path)
		if got != want {
			t.Errorf("path = %q, want %q", got, want)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no change reported")
	}
}

func TestWatcher_ReportsReplaceByRename(t *testing.T) {
	_, path, changes := startWatcher(t, 50*time.Millisecond)

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, []byte("log:\n  level: warn\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	if err := os.Rename(tmp, path); err != nil {
		t.Fatal(err)
	}

	select {
	case <-changes:
	case <-time.After(2 * time.Second):
		t.Fatal("rename over the watched file not reported")
	}
}

func TestWatcher_IgnoresOtherFiles(t *testing.T) {
	_, path, changes := startWatcher(t, 0)

	other := filepath.Join(filepath.Dir(path), "notes.txt")
	if err := os.WriteFile(other, []byte("x"), 0o600); err != nil {
		t.Fatal(err)
	}

	select {
	case got := <-changes:
		t.Errorf("change reported for %q", got)
	case <-time.After(300 * time.Millisecond):
	}
}

func TestWatcher_DebounceFoldsBurst(t *testing.T) {
	_, path, changes := startWatcher(t, 200*time.Millisecond)

	for i := 0; i < 4; i++ {
		if err := os.WriteFile(path, []byte("log:\n  level: error\n"), 0o600); err != nil {
			t.Fatal(err)
		}
		time.Sleep(20 * time.Millisecond)
	}
	time.Sleep(600 * time.Millisecond)

	if n := len(changes); n != 1 {
		t.Errorf("got %d notifications, want 1", n)
	}
}

func TestWatcher_StopCancelsPending(t *testing.T) {
	w, path, changes := startWatcher(t, 300*time.Millisecond)

	if err := os.WriteFile(path, []byte("log:\n  level: debug\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	time.Sleep(50 * time.Millisecond)
	if err := w.Stop(); err != nil {
		t.Fatalf("Stop() error = %v", err)
	}
	time.Sleep(500 * time.Millisecond)

	if n := len(changes); n != 0 {
		t.Errorf("got %d notifications after Stop, want 0", n)
	}
}

func TestWatcher_StopTwice(t *testing.T) {
	w, err := NewWatcher()
	if err != nil {
		t.Fatalf("NewWatcher() error = %v", err)
	}
	if err := w.Stop(); err != nil {
		t.Fatalf("Stop() error = %v", err)
	}
	if err := w.Stop(); err != nil {
		t.Errorf("second Stop() error = %v", err)
	}
}

func TestWatcher_WatchMissingDir(t *testing.T) {
	w, err := NewWatcher()
	if err != nil {
		t.Fatalf("NewWatcher() error = %v", err)
	}
	defer w.Stop()

	if err := w.Watch(filepath.Join(t.TempDir(), "absent", "tokstash.yaml")); err == nil {
		t.Error("Watch() succeeded for a missing directory")
	}
}

func TestWatcher_AllCallbacksRun(t *testing.T) {
	w, err := NewWatcher()
	if err != nil {
		t.Fatalf("NewWatcher() error = %v", err)
	}
	defer w.Stop()

	var calls atomic.Int32
	for i := 0; i < 3; i++ {
		w.OnChange(func(string) { calls.Add(1) })
	}
	w.notify("/etc/tokstash.yaml")

	if n := calls.Load(); n != 3 {
		t.Errorf("calls = %d, want 3", n)
	}
}
