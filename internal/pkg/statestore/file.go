package statestore

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// File persists state as a single JSON document and watches it with
// fsnotify, so a write by another folioview process shows up as change
// events here. Writes are atomic (temp file + rename).
type File struct {
	path   string
	logger *zap.Logger

	mu       sync.Mutex
	values   map[string]string
	watchers map[int]chan Event
	nextID   int
	closed   bool

	fsw *fsnotify.Watcher
}

// OpenFile loads (or creates) the state file at path.
func OpenFile(path string, logger *zap.Logger) (*File, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, err
	}

	f := &File{
		path:     path,
		logger:   logger,
		values:   make(map[string]string),
		watchers: make(map[int]chan Event),
	}
	if err := f.loadLocked(); err != nil {
		return nil, err
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := fsw.Add(filepath.Dir(path)); err != nil {
		_ = fsw.Close()
		return nil, err
	}
	f.fsw = fsw
	go f.watchLoop()

	return f, nil
}

func (f *File) Get(_ context.Context, key string) (string, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	v, ok := f.values[key]
	return v, ok, nil
}

func (f *File) Set(_ context.Context, key, value string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.values[key] = value
	if err := f.persistLocked(); err != nil {
		return err
	}
	f.notifyLocked(Event{Key: key, Value: value})
	return nil
}

func (f *File) Delete(_ context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.values[key]; !ok {
		return nil
	}
	delete(f.values, key)
	if err := f.persistLocked(); err != nil {
		return err
	}
	f.notifyLocked(Event{Key: key})
	return nil
}

func (f *File) Watch(ctx context.Context) (<-chan Event, error) {
	f.mu.Lock()
	id := f.nextID
	f.nextID++
	ch := make(chan Event, 16)
	f.watchers[id] = ch
	f.mu.Unlock()

	go func() {
		<-ctx.Done()
		f.mu.Lock()
		if w, ok := f.watchers[id]; ok {
			delete(f.watchers, id)
			close(w)
		}
		f.mu.Unlock()
	}()

	return ch, nil
}

func (f *File) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return nil
	}
	f.closed = true
	for id, ch := range f.watchers {
		delete(f.watchers, id)
		close(ch)
	}
	if f.fsw != nil {
		return f.fsw.Close()
	}
	return nil
}

// watchLoop reacts to external writes of the state file. Our own writes
// update the in-memory map before touching disk, so the reload diff is
// empty for them and no spurious events fire.
func (f *File) watchLoop() {
	for {
		select {
		case ev, ok := <-f.fsw.Events:
			if !ok {
				return
			}
			if filepath.Clean(ev.Name) != filepath.Clean(f.path) {
				continue
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Rename) {
				continue
			}
			f.reload()
		case err, ok := <-f.fsw.Errors:
			if !ok {
				return
			}
			f.logger.Warn("State file watcher error", zap.Error(err))
		}
	}
}

func (f *File) reload() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return
	}

	previous := f.values
	f.values = make(map[string]string)
	if err := f.loadLocked(); err != nil {
		f.logger.Warn("State file reload failed", zap.Error(err))
		f.values = previous
		return
	}

	for key, value := range f.values {
		if previous[key] != value {
			f.notifyLocked(Event{Key: key, Value: value})
		}
	}
	for key := range previous {
		if _, still := f.values[key]; !still {
			f.notifyLocked(Event{Key: key})
		}
	}
}

func (f *File) loadLocked() error {
	data, err := os.ReadFile(f.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return err
	}
	if len(data) == 0 {
		return nil
	}
	return json.Unmarshal(data, &f.values)
}

func (f *File) persistLocked() error {
	data, err := json.MarshalIndent(f.values, "", "  ")
	if err != nil {
		return err
	}
	tmp := f.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return err
	}
	return os.Rename(tmp, f.path)
}

func (f *File) notifyLocked(ev Event) {
	for _, ch := range f.watchers {
		select {
		case ch <- ev:
		default:
		}
	}
}
