package notify

import (
	"sync"

	"go.uber.org/zap"

	"github.com/stayloop/pulse/internal/models"
	"github.com/stayloop/pulse/pkg/logger"
	"github.com/stayloop/pulse/pkg/metrics"
)

// Handler receives one inserted notification row.
type Handler func(models.Notification)

type subscriber struct {
	id uint64
	fn Handler
}

// Bridge dispatches inserted notification rows to per-user subscribers.
//
// It is the in-process analog of a server-side filtered change feed: one
// logical channel per user, delivering insert events in push order. Delivery
// is at-least-once from the caller's perspective; the bridge itself performs
// no deduplication.
type Bridge struct {
	mu     sync.RWMutex
	subs   map[string][]subscriber
	nextID uint64
	log    *zap.Logger
}

// NewBridge constructs a subscription bridge.
func NewBridge() *Bridge {
	return &Bridge{
		subs: make(map[string][]subscriber),
		log:  logger.WithModule("notify.bridge"),
	}
}

// Subscribe registers fn for rows addressed to userID and returns an
// unsubscribe function. The unsubscribe function is idempotent; after it
// returns, fn is never invoked again.
//
// An empty userID (no authenticated session) is a deliberate no-op, not an
// error: the returned unsubscribe is callable and does nothing.
func (b *Bridge) Subscribe(userID string, fn Handler) func() {
	if userID == "" || fn == nil {
		return func() {}
	}

	b.mu.Lock()
	b.nextID++
	id := b.nextID
	b.subs[userID] = append(b.subs[userID], subscriber{id: id, fn: fn})
	b.mu.Unlock()

	metrics.ActiveSubscribers.Inc()

	var once sync.Once
	return func() {
		once.Do(func() {
			b.remove(userID, id)
			metrics.ActiveSubscribers.Dec()
		})
	}
}

// Publish delivers an inserted row to every subscriber registered for its
// user, synchronously and in subscription order. Rows carrying an
// unrecognised type are dropped at this boundary with a warning rather than
// handed to subscribers.
func (b *Bridge) Publish(n models.Notification) {
	if !n.Type.Valid() {
		metrics.NotificationsDropped.Inc()
		b.log.Warn("dropping event with unrecognised type",
			zap.String("id", n.ID),
			zap.String("type", string(n.Type)),
		)
		return
	}

	b.mu.RLock()
	targets := make([]Handler, 0, len(b.subs[n.UserID]))
	for _, sub := range b.subs[n.UserID] {
		targets = append(targets, sub.fn)
	}
	b.mu.RUnlock()

	for _, fn := range targets {
		fn(n)
		metrics.NotificationsDelivered.WithLabelValues("feed").Inc()
	}
}

func (b *Bridge) remove(userID string, id uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()

	subs := b.subs[userID]
	for i, sub := range subs {
		if sub.id == id {
			b.subs[userID] = append(subs[:i], subs[i+1:]...)
			break
		}
	}
	if len(b.subs[userID]) == 0 {
		delete(b.subs, userID)
	}
}
