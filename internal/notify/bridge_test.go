package notify

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/stayloop/pulse/internal/models"
)

func TestBridgePublishReachesUserSubscribers(t *testing.T) {
	bridge := NewBridge()

	var aliceGot []string
	unsubAlice := bridge.Subscribe("alice", func(n models.Notification) {
		aliceGot = append(aliceGot, n.ID)
	})
	defer unsubAlice()

	var bobGot []string
	unsubBob := bridge.Subscribe("bob", func(n models.Notification) {
		bobGot = append(bobGot, n.ID)
	})
	defer unsubBob()

	bridge.Publish(models.Notification{
		BaseModel: models.BaseModel{ID: "n1"},
		UserID:    "alice",
		Type:      models.TypeInfo,
	})
	bridge.Publish(models.Notification{
		BaseModel: models.BaseModel{ID: "n2"},
		UserID:    "alice",
		Type:      models.TypeSuccess,
	})

	require.Equal(t, []string{"n1", "n2"}, aliceGot, "push order preserved")
	require.Empty(t, bobGot, "events stay scoped to the addressed user")
}

func TestBridgeUnsubscribeStopsDelivery(t *testing.T) {
	bridge := NewBridge()

	calls := 0
	unsub := bridge.Subscribe("alice", func(models.Notification) {
		calls++
	})

	bridge.Publish(models.Notification{
		BaseModel: models.BaseModel{ID: "n1"},
		UserID:    "alice",
		Type:      models.TypeInfo,
	})
	require.Equal(t, 1, calls)

	unsub()

	// Synthetic event after teardown must not reach the callback.
	bridge.Publish(models.Notification{
		BaseModel: models.BaseModel{ID: "n2"},
		UserID:    "alice",
		Type:      models.TypeInfo,
	})
	require.Equal(t, 1, calls)

	// Unsubscribe is idempotent.
	require.NotPanics(t, unsub)
}

func TestBridgeSubscribeWithoutUserIsNoOp(t *testing.T) {
	bridge := NewBridge()

	unsub := bridge.Subscribe("", func(models.Notification) {
		t.Fatal("callback must never fire for an empty user id")
	})
	require.NotNil(t, unsub)
	require.NotPanics(t, unsub)

	unsub = bridge.Subscribe("alice", nil)
	require.NotNil(t, unsub)
	require.NotPanics(t, unsub)
}

func TestBridgeDropsUnrecognisedTypes(t *testing.T) {
	bridge := NewBridge()

	calls := 0
	unsub := bridge.Subscribe("alice", func(models.Notification) {
		calls++
	})
	defer unsub()

	bridge.Publish(models.Notification{
		BaseModel: models.BaseModel{ID: "n1"},
		UserID:    "alice",
		Type:      models.NotificationType("celebration"),
	})
	require.Zero(t, calls)

	bridge.Publish(models.Notification{
		BaseModel: models.BaseModel{ID: "n2"},
		UserID:    "alice",
		Type:      models.TypeError,
	})
	require.Equal(t, 1, calls)
}

func TestBridgeRedeliversDuplicates(t *testing.T) {
	bridge := NewBridge()

	calls := 0
	unsub := bridge.Subscribe("alice", func(models.Notification) {
		calls++
	})
	defer unsub()

	event := models.Notification{
		BaseModel: models.BaseModel{ID: "n1"},
		UserID:    "alice",
		Type:      models.TypeInfo,
	}
	bridge.Publish(event)
	bridge.Publish(event)

	// The bridge is at-least-once; deduplication is the feed's concern.
	require.Equal(t, 2, calls)
}
