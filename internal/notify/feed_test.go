package notify

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/stayloop/pulse/internal/models"
)

func seedNotification(t *testing.T, store *Store, userID, title string, read bool) *models.Notification {
	t.Helper()

	created := store.Create(context.Background(), &models.Notification{
		UserID:  userID,
		Title:   title,
		Message: "seeded for test",
	})
	require.NotNil(t, created)

	if read {
		require.True(t, store.MarkRead(context.Background(), created.ID))
		created.IsRead = true
	}
	return created
}

func TestFeedInitialLoadDerivesUnreadCount(t *testing.T) {
	store, _ := mustStore(t)
	bridge := NewBridge()
	ctx := context.Background()

	seedNotification(t, store, "alice", "one", false)
	seedNotification(t, store, "alice", "two", false)
	seedNotification(t, store, "alice", "three", true)
	seedNotification(t, store, "someone-else", "not hers", false)

	feed := NewFeed(store, bridge, "alice")
	defer feed.Close()
	feed.Start(ctx)

	require.Len(t, feed.Notifications(), 3)
	require.Equal(t, 2, feed.UnreadCount())
}

func TestFeedWithoutUserStaysEmpty(t *testing.T) {
	store, _ := mustStore(t)
	bridge := NewBridge()

	feed := NewFeed(store, bridge, "")
	defer feed.Close()
	feed.Start(context.Background())

	require.Empty(t, feed.Notifications())
	require.Zero(t, feed.UnreadCount())
}

func TestFeedInitialLoadSurvivesStoreFailure(t *testing.T) {
	store, db := mustStore(t)
	bridge := NewBridge()

	seedNotification(t, store, "alice", "unreachable", false)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	require.NoError(t, sqlDB.Close())

	feed := NewFeed(store, bridge, "alice")
	defer feed.Close()

	require.NotPanics(t, func() { feed.Start(context.Background()) })
	require.Empty(t, feed.Notifications())
	require.Zero(t, feed.UnreadCount())
}

func TestFeedPrependsLiveEventsInArrivalOrder(t *testing.T) {
	store, _ := mustStore(t)
	bridge := NewBridge()
	ctx := context.Background()

	feed := NewFeed(store, bridge, "alice")
	defer feed.Close()
	feed.Start(ctx)

	bridge.Publish(models.Notification{
		BaseModel: models.BaseModel{ID: "e1"},
		UserID:    "alice",
		Title:     "first",
		Type:      models.TypeInfo,
	})
	bridge.Publish(models.Notification{
		BaseModel: models.BaseModel{ID: "e2"},
		UserID:    "alice",
		Title:     "second",
		Type:      models.TypeInfo,
	})

	items := feed.Notifications()
	require.Len(t, items, 2)
	require.Equal(t, "e2", items[0].ID, "later arrival sits at the head")
	require.Equal(t, "e1", items[1].ID)
	require.Equal(t, 2, feed.UnreadCount())
}

func TestFeedUnreadBadgeScenario(t *testing.T) {
	store, _ := mustStore(t)
	bridge := NewBridge()
	ctx := context.Background()

	feed := NewFeed(store, bridge, "alice")
	defer feed.Close()
	feed.Start(ctx)
	require.Zero(t, feed.UnreadCount())

	created := store.Create(ctx, &models.Notification{
		UserID:  "alice",
		Title:   "Post Approved",
		Message: "Your post went live",
	})
	require.NotNil(t, created)
	bridge.Publish(*created)

	require.Equal(t, 1, feed.UnreadCount())
	items := feed.Notifications()
	require.Equal(t, created.ID, items[0].ID)

	feed.MarkAsRead(ctx, created.ID)
	require.Zero(t, feed.UnreadCount())
	items = feed.Notifications()
	require.True(t, items[0].IsRead)

	// Read state never reverses from this subsystem's operations.
	feed.Refresh(ctx)
	for _, item := range feed.Notifications() {
		require.True(t, item.IsRead)
	}
}

func TestFeedMergesDuplicateEventsIdempotently(t *testing.T) {
	store, _ := mustStore(t)
	bridge := NewBridge()

	feed := NewFeed(store, bridge, "alice")
	defer feed.Close()
	feed.Start(context.Background())

	event := models.Notification{
		BaseModel: models.BaseModel{ID: "dup"},
		UserID:    "alice",
		Title:     "once only",
		Type:      models.TypeInfo,
	}
	bridge.Publish(event)
	bridge.Publish(event)

	require.Len(t, feed.Notifications(), 1)
	require.Equal(t, 1, feed.UnreadCount())
}

func TestFeedMarkAsReadIsOptimistic(t *testing.T) {
	store, db := mustStore(t)
	bridge := NewBridge()
	ctx := context.Background()

	created := seedNotification(t, store, "alice", "flaky", false)

	feed := NewFeed(store, bridge, "alice")
	defer feed.Close()
	feed.Start(ctx)
	require.Equal(t, 1, feed.UnreadCount())

	// Kill the store; the local flip must still happen.
	sqlDB, err := db.DB()
	require.NoError(t, err)
	require.NoError(t, sqlDB.Close())

	feed.MarkAsRead(ctx, created.ID)
	require.Zero(t, feed.UnreadCount())
	require.True(t, feed.Notifications()[0].IsRead)

	// The floor holds even when the id is unknown.
	feed.MarkAsRead(ctx, "missing")
	require.Zero(t, feed.UnreadCount())
}

func TestFeedMarkAllRead(t *testing.T) {
	store, _ := mustStore(t)
	bridge := NewBridge()
	ctx := context.Background()

	seedNotification(t, store, "alice", "one", false)
	seedNotification(t, store, "alice", "two", false)

	feed := NewFeed(store, bridge, "alice")
	defer feed.Close()
	feed.Start(ctx)
	require.Equal(t, 2, feed.UnreadCount())

	feed.MarkAllRead(ctx)
	require.Zero(t, feed.UnreadCount())
	for _, item := range feed.Notifications() {
		require.True(t, item.IsRead)
	}
	require.EqualValues(t, 0, store.CountUnread(ctx, "alice"))
}

func TestFeedRefreshReplacesLocalState(t *testing.T) {
	store, _ := mustStore(t)
	bridge := NewBridge()
	ctx := context.Background()

	feed := NewFeed(store, bridge, "alice")
	defer feed.Close()
	feed.Start(ctx)

	bridge.Publish(models.Notification{
		BaseModel: models.BaseModel{ID: "ghost"},
		UserID:    "alice",
		Title:     "never persisted",
		Type:      models.TypeInfo,
	})
	require.Len(t, feed.Notifications(), 1)

	seedNotification(t, store, "alice", "durable", false)

	feed.Refresh(ctx)
	items := feed.Notifications()
	require.Len(t, items, 1)
	require.Equal(t, "durable", items[0].Title)
	require.Equal(t, 1, feed.UnreadCount())
}

func TestFeedAlertsMapSeverity(t *testing.T) {
	store, _ := mustStore(t)
	bridge := NewBridge()

	feed := NewFeed(store, bridge, "alice")
	defer feed.Close()
	feed.Start(context.Background())

	bridge.Publish(models.Notification{
		BaseModel: models.BaseModel{ID: "a1"},
		UserID:    "alice",
		Title:     "all good",
		Type:      models.TypeSuccess,
	})
	bridge.Publish(models.Notification{
		BaseModel: models.BaseModel{ID: "a2"},
		UserID:    "alice",
		Title:     "publish failed",
		Type:      models.TypeError,
	})

	select {
	case alert := <-feed.Alerts():
		require.Equal(t, "a1", alert.Notification.ID)
		require.False(t, alert.Destructive)
	case <-time.After(time.Second):
		t.Fatal("expected first alert")
	}

	select {
	case alert := <-feed.Alerts():
		require.Equal(t, "a2", alert.Notification.ID)
		require.True(t, alert.Destructive)
	case <-time.After(time.Second):
		t.Fatal("expected second alert")
	}
}

func TestFeedCloseReleasesSubscriptionExactlyOnce(t *testing.T) {
	store, _ := mustStore(t)
	bridge := NewBridge()

	feed := NewFeed(store, bridge, "alice")
	feed.Start(context.Background())

	feed.Close()
	require.NotPanics(t, feed.Close)

	// Events after teardown are discarded.
	bridge.Publish(models.Notification{
		BaseModel: models.BaseModel{ID: "late"},
		UserID:    "alice",
		Type:      models.TypeInfo,
	})
	require.Empty(t, feed.Notifications())
	require.Zero(t, feed.UnreadCount())

	_, open := <-feed.Alerts()
	require.False(t, open, "alert channel closes on teardown")
}
