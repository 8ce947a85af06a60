package storage

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

type memorySpace struct {
	mu       sync.RWMutex
	data     map[string][]byte
	watchers map[string][]*memoryWatch
}

type memoryWatch struct {
	origin string
	ch     chan Change
}

// Memory is an in-process KV. Several Memory handles may share one space
// (see Attach), each acting as its own context for change notification.
type Memory struct {
	space  *memorySpace
	origin string
}

func NewMemory() *Memory {
	return &Memory{
		space: &memorySpace{
			data:     make(map[string][]byte),
			watchers: make(map[string][]*memoryWatch),
		},
		origin: uuid.NewString(),
	}
}

// Attach opens another context on the same underlying space.
func (m *Memory) Attach() *Memory {
	return &Memory{space: m.space, origin: uuid.NewString()}
}

func (m *Memory) Origin() string { return m.origin }

func (m *Memory) Get(_ context.Context, key string) ([]byte, error) {
	m.space.mu.RLock()
	defer m.space.mu.RUnlock()
	v, ok := m.space.data[key]
	if !ok {
		return nil, ErrNotFound
	}
	return append([]byte(nil), v...), nil
}

func (m *Memory) Set(_ context.Context, key string, value []byte) error {
	m.space.mu.Lock()
	m.space.data[key] = append([]byte(nil), value...)
	watchers := append([]*memoryWatch(nil), m.space.watchers[key]...)
	m.space.mu.Unlock()

	m.notify(key, value, watchers)
	return nil
}

func (m *Memory) SetNX(ctx context.Context, key string, value []byte) (bool, error) {
	m.space.mu.Lock()
	if _, ok := m.space.data[key]; ok {
		m.space.mu.Unlock()
		return false, nil
	}
	m.space.data[key] = append([]byte(nil), value...)
	watchers := append([]*memoryWatch(nil), m.space.watchers[key]...)
	m.space.mu.Unlock()

	m.notify(key, value, watchers)
	return true, nil
}

func (m *Memory) Delete(_ context.Context, key string) error {
	m.space.mu.Lock()
	defer m.space.mu.Unlock()
	delete(m.space.data, key)
	return nil
}

// Watch reports writes to key made through other handles until ctx ends.
// Slow readers lose notifications rather than block writers.
func (m *Memory) Watch(ctx context.Context, key string) (<-chan Change, error) {
	w := &memoryWatch{origin: m.origin, ch: make(chan Change, 64)}

	m.space.mu.Lock()
	m.space.watchers[key] = append(m.space.watchers[key], w)
	m.space.mu.Unlock()

	go func() {
		<-ctx.Done()
		m.space.mu.Lock()
		list := m.space.watchers[key]
		for i, other := range list {
			if other == w {
				m.space.watchers[key] = append(list[:i:i], list[i+1:]...)
				break
			}
		}
		close(w.ch)
		m.space.mu.Unlock()
	}()

	return w.ch, nil
}

func (m *Memory) notify(key string, value []byte, watchers []*memoryWatch) {
	if len(watchers) == 0 {
		return
	}
	m.space.mu.RLock()
	defer m.space.mu.RUnlock()
	for _, w := range watchers {
		if w.origin == m.origin {
			continue
		}
		if !m.stillWatching(key, w) {
			continue
		}
		select {
		case w.ch <- Change{Key: key, Value: append([]byte(nil), value...), Origin: m.origin}:
		default:
		}
	}
}

func (m *Memory) stillWatching(key string, w *memoryWatch) bool {
	for _, other := range m.space.watchers[key] {
		if other == w {
			return true
		}
	}
	return false
}
