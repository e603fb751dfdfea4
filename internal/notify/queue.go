package notify

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Defaults for the in-memory queue.
const (
	DefaultMaxItems = 5
	DefaultTimeout  = 5 * time.Second
)

// Item is one queued notification.
type Item struct {
	ID        string    `json:"id"`
	Title     string    `json:"title,omitempty"`
	Message   string    `json:"message"`
	Status    Status    `json:"status"`
	CreatedAt time.Time `json:"createdAt"`
}

// Queue keeps the most recent notifications, newest first, for a UI to poll.
// Items drop off after their timeout or when the queue overflows.
// Call Close when the owner shuts down to stop pending expiry timers.
type Queue struct {
	mu             sync.Mutex
	items          []Item
	timers         map[string]*time.Timer
	maxItems       int
	defaultTimeout time.Duration
	closed         bool
}

// NewQueue creates a queue. Non-positive arguments fall back to the defaults.
func NewQueue(maxItems int, defaultTimeout time.Duration) *Queue {
	if maxItems <= 0 {
		maxItems = DefaultMaxItems
	}
	if defaultTimeout <= 0 {
		defaultTimeout = DefaultTimeout
	}
	return &Queue{
		timers:         make(map[string]*time.Timer),
		maxItems:       maxItems,
		defaultTimeout: defaultTimeout,
	}
}

// Notify queues a message and schedules its removal.
func (q *Queue) Notify(message string, opts Options) string {
	item := Item{
		ID:        uuid.NewString(),
		Title:     opts.Title,
		Message:   message,
		Status:    opts.Status,
		CreatedAt: time.Now(),
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = q.defaultTimeout
	}

	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return item.ID
	}

	q.items = append([]Item{item}, q.items...)
	for len(q.items) > q.maxItems {
		dropped := q.items[len(q.items)-1]
		q.items = q.items[:len(q.items)-1]
		q.stopTimerLocked(dropped.ID)
	}
	q.timers[item.ID] = time.AfterFunc(timeout, func() { q.Remove(item.ID) })
	return item.ID
}

// List returns a copy of the queued items, newest first.
func (q *Queue) List() []Item {
	q.mu.Lock()
	defer q.mu.Unlock()
	return append([]Item{}, q.items...)
}

// Remove drops an item. It reports whether the item was present.
func (q *Queue) Remove(id string) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	for i, it := range q.items {
		if it.ID == id {
			q.items = append(q.items[:i], q.items[i+1:]...)
			q.stopTimerLocked(id)
			return true
		}
	}
	return false
}

// Clear drops every item.
func (q *Queue) Clear() {
	q.mu.Lock()
	defer q.mu.Unlock()
	for id := range q.timers {
		q.stopTimerLocked(id)
	}
	q.items = nil
}

// Close clears the queue and ignores later notifications.
func (q *Queue) Close() {
	q.Clear()
	q.mu.Lock()
	q.closed = true
	q.mu.Unlock()
}

func (q *Queue) stopTimerLocked(id string) {
	if t, ok := q.timers[id]; ok {
		t.Stop()
		delete(q.timers, id)
	}
}
