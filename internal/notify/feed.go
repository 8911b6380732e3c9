package notify

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/stayloop/pulse/internal/models"
	"github.com/stayloop/pulse/pkg/logger"
)

const defaultAlertBuffer = 16

// Alert is the transient user-facing signal raised once per live arrival.
// Destructive marks the presentation used for error-typed notifications.
type Alert struct {
	Notification models.Notification
	Destructive  bool
}

// Feed combines the Store and the Bridge into a single per-session façade:
// it loads the initial notification list, merges live insert events, tracks
// the unread count, and exposes mark-read mutators.
//
// The feed exclusively owns its in-memory list and unread counter for the
// lifetime of one authenticated session. The remote store is the source of
// truth; this state is a cache converging on it through the fetch and live
// event paths. All local mutations are serialized under one mutex, so
// logically concurrent events are applied one at a time in arrival order; a
// refresh racing a live event resolves to whichever applies last.
type Feed struct {
	store  *Store
	bridge *Bridge
	userID string
	log    *zap.Logger

	mu          sync.Mutex
	items       []models.Notification
	unread      int
	started     bool
	closed      bool
	unsubscribe func()
	closeOnce   sync.Once
	alerts      chan Alert
}

// NewFeed constructs a session feed for the given user. An empty userID
// yields a feed that stays empty and never subscribes.
func NewFeed(store *Store, bridge *Bridge, userID string) *Feed {
	return &Feed{
		store:  store,
		bridge: bridge,
		userID: userID,
		log:    logger.WithModule("notify.feed"),
		alerts: make(chan Alert, defaultAlertBuffer),
	}
}

// Start performs the initial fetch, derives the unread count, and opens the
// live subscription. A fetch failure still leaves the feed ready, with an
// empty list. Start is a no-op after the first call.
func (f *Feed) Start(ctx context.Context) {
	f.mu.Lock()
	if f.started || f.closed {
		f.mu.Unlock()
		return
	}
	f.started = true
	f.mu.Unlock()

	rows := f.store.FetchAll(ctx, f.userID)

	f.mu.Lock()
	f.items = rows
	f.unread = countUnread(rows)
	f.mu.Unlock()

	// Subscribe after the initial list is installed so live arrivals always
	// land on top of the fetched state.
	unsub := f.bridge.Subscribe(f.userID, f.apply)

	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		unsub()
		return
	}
	f.unsubscribe = unsub
	f.mu.Unlock()
}

// Refresh re-runs the initial fetch path on demand, fully replacing the local
// list and recomputing the unread count from the fresh rows.
func (f *Feed) Refresh(ctx context.Context) {
	rows := f.store.FetchAll(ctx, f.userID)

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return
	}
	f.items = rows
	f.unread = countUnread(rows)
}

// Notifications returns a snapshot of the local list, newest first.
func (f *Feed) Notifications() []models.Notification {
	f.mu.Lock()
	defer f.mu.Unlock()

	out := make([]models.Notification, len(f.items))
	copy(out, f.items)
	return out
}

// UnreadCount returns the current unread counter.
func (f *Feed) UnreadCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.unread
}

// Alerts exposes the transient per-arrival alerts. When the consumer lags,
// alerts are dropped; list and unread state are still applied.
func (f *Feed) Alerts() <-chan Alert {
	return f.alerts
}

// MarkAsRead marks one notification read in the store and optimistically
// patches the local entry regardless of the store outcome. The unread
// counter decrements by one, floored at zero. There is no rollback on store
// failure; local state converges on the next refresh.
func (f *Feed) MarkAsRead(ctx context.Context, id string) {
	f.store.MarkRead(ctx, id)

	f.mu.Lock()
	defer f.mu.Unlock()

	for i := range f.items {
		if f.items[i].ID == id {
			f.items[i].IsRead = true
			break
		}
	}
	if f.unread > 0 {
		f.unread--
	}
}

// MarkAllRead marks every notification read in the store and flips the whole
// local list, zeroing the unread counter.
func (f *Feed) MarkAllRead(ctx context.Context) {
	f.store.MarkAllRead(ctx, f.userID)

	f.mu.Lock()
	defer f.mu.Unlock()

	for i := range f.items {
		f.items[i].IsRead = true
	}
	f.unread = 0
}

// Close releases the live subscription exactly once and discards the session
// state. It is safe to call multiple times; events arriving after Close are
// not applied.
func (f *Feed) Close() {
	f.closeOnce.Do(func() {
		f.mu.Lock()
		f.closed = true
		f.items = nil
		f.unread = 0
		close(f.alerts)
		unsub := f.unsubscribe
		f.mu.Unlock()

		if unsub != nil {
			unsub()
		}
	})
}

// apply merges one live insert event: prepend (arrival order, no re-sort),
// bump the unread counter, and raise the alert. Redelivered ids are merged
// idempotently and ignored.
func (f *Feed) apply(n models.Notification) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.closed {
		return
	}

	for i := range f.items {
		if f.items[i].ID == n.ID {
			f.log.Debug("ignoring duplicate event", zap.String("id", n.ID))
			return
		}
	}

	f.items = append([]models.Notification{n}, f.items...)
	if !n.IsRead {
		f.unread++
	}

	select {
	case f.alerts <- Alert{Notification: n, Destructive: n.Type == models.TypeError}:
	default:
		f.log.Warn("alert consumer lagging; dropping alert", zap.String("id", n.ID))
	}
}

func countUnread(rows []models.Notification) int {
	unread := 0
	for _, row := range rows {
		if !row.IsRead {
			unread++
		}
	}
	return unread
}
