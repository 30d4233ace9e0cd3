package notify

import (
	"sync"
	"time"

	"envmon_dashboard/internal/models"
)

// Notifier accepts operator-facing toasts.
type Notifier interface {
	Notify(n models.Notification)
}

// Nop drops every notification.
type Nop struct{}

func (Nop) Notify(models.Notification) {}

const defaultBuffer = 16

// Broadcaster fans notifications out to subscribers. Delivery never blocks:
// a subscriber whose buffer is full misses the toast.
type Broadcaster struct {
	mu     sync.RWMutex
	subs   map[int]chan models.Notification
	nextID int
	buffer int
	now    func() time.Time
}

var _ Notifier = (*Broadcaster)(nil)

// NewBroadcaster creates a broadcaster with the given per-subscriber buffer.
func NewBroadcaster(buffer int) *Broadcaster {
	if buffer <= 0 {
		buffer = defaultBuffer
	}
	return &Broadcaster{
		subs:   make(map[int]chan models.Notification),
		buffer: buffer,
		now:    time.Now,
	}
}

// Subscribe returns a receive channel and a cancel func. The channel is
// closed by cancel; cancel is idempotent.
func (b *Broadcaster) Subscribe() (<-chan models.Notification, func()) {
	ch := make(chan models.Notification, b.buffer)

	b.mu.Lock()
	id := b.nextID
	b.nextID++
	b.subs[id] = ch
	b.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subs, id)
			b.mu.Unlock()
			close(ch)
		})
	}
}

// Notify delivers n to every subscriber without blocking.
func (b *Broadcaster) Notify(n models.Notification) {
	if n.At.IsZero() {
		n.At = b.now().UTC()
	}
	if n.Level == "" {
		n.Level = models.LevelInfo
	}

	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, ch := range b.subs {
		select {
		case ch <- n:
		default:
		}
	}
}

// Subscribers returns the number of live subscriptions.
func (b *Broadcaster) Subscribers() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}
