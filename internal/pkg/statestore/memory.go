package statestore

import (
	"context"
	"sync"
)

// Memory is an in-process Store used by tests and as a fallback when no
// durable backend is configured. Watchers in the same process still get
// change events, so cross-tab logic is exercisable without a real store.
type Memory struct {
	mu       sync.Mutex
	values   map[string]string
	watchers map[int]chan Event
	nextID   int
	closed   bool
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		values:   make(map[string]string),
		watchers: make(map[int]chan Event),
	}
}

func (m *Memory) Get(_ context.Context, key string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.values[key]
	return v, ok, nil
}

func (m *Memory) Set(_ context.Context, key, value string) error {
	m.mu.Lock()
	m.values[key] = value
	m.notifyLocked(Event{Key: key, Value: value})
	m.mu.Unlock()
	return nil
}

func (m *Memory) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	if _, ok := m.values[key]; ok {
		delete(m.values, key)
		m.notifyLocked(Event{Key: key})
	}
	m.mu.Unlock()
	return nil
}

func (m *Memory) Watch(ctx context.Context) (<-chan Event, error) {
	m.mu.Lock()
	id := m.nextID
	m.nextID++
	ch := make(chan Event, 16)
	m.watchers[id] = ch
	m.mu.Unlock()

	go func() {
		<-ctx.Done()
		m.mu.Lock()
		if w, ok := m.watchers[id]; ok {
			delete(m.watchers, id)
			close(w)
		}
		m.mu.Unlock()
	}()

	return ch, nil
}

func (m *Memory) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil
	}
	m.closed = true
	for id, ch := range m.watchers {
		delete(m.watchers, id)
		close(ch)
	}
	return nil
}

// notifyLocked fans an event out without blocking on slow watchers.
func (m *Memory) notifyLocked(ev Event) {
	for _, ch := range m.watchers {
		select {
		case ch <- ev:
		default:
		}
	}
}
