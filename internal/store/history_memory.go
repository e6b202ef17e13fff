package store

import (
	"context"
	"sync"
	"time"

	"github.com/GregMSThompson/agent-bridge/internal/models"
)

const defaultMemoryCapacity = 200

// MemoryHistory keeps the most recent messages of each session in a ring
// buffer. It is used for local runs and tests.
type MemoryHistory struct {
	mu       sync.RWMutex
	capacity int
	sessions map[string]*ring
	now      func() time.Time
}

type ring struct {
	buf   []models.Message
	start int
	size  int
}

func (r *ring) push(msg models.Message) {
	if r.size < len(r.buf) {
		r.buf[(r.start+r.size)%len(r.buf)] = msg
		r.size++
		return
	}
	r.buf[r.start] = msg
	r.start = (r.start + 1) % len(r.buf)
}

func (r *ring) items() []models.Message {
	out := make([]models.Message, 0, r.size)
	for i := 0; i < r.size; i++ {
		out = append(out, r.buf[(r.start+i)%len(r.buf)])
	}
	return out
}

func NewMemoryHistory(capacity int) *MemoryHistory {
	if capacity <= 0 {
		capacity = defaultMemoryCapacity
	}
	return &MemoryHistory{
		capacity: capacity,
		sessions: make(map[string]*ring),
		now:      time.Now,
	}
}

func memoryKey(owner, sessionID string) string {
	return owner + "\x00" + sessionID
}

func (m *MemoryHistory) Append(ctx context.Context, owner, sessionID string, msgs ...models.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := memoryKey(owner, sessionID)
	r, ok := m.sessions[key]
	if !ok {
		r = &ring{buf: make([]models.Message, m.capacity)}
		m.sessions[key] = r
	}
	for _, msg := range msgs {
		prepare(&msg)
		r.push(msg)
	}
	return nil
}

func (m *MemoryHistory) List(ctx context.Context, owner, sessionID string, limit int) ([]models.Message, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	r, ok := m.sessions[memoryKey(owner, sessionID)]
	if !ok {
		return []models.Message{}, nil
	}

	now := m.now()
	all := r.items()
	live := all[:0]
	for _, msg := range all {
		if !msg.ExpiresAt.IsZero() && !msg.ExpiresAt.After(now) {
			continue
		}
		live = append(live, msg)
	}
	if limit > 0 && len(live) > limit {
		live = live[len(live)-limit:]
	}
	return live, nil
}
