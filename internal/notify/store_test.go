package notify

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/stayloop/pulse/internal/database/testutil"
	"github.com/stayloop/pulse/internal/models"
)

func mustStore(t *testing.T) (*Store, *gorm.DB) {
	t.Helper()

	db := testutil.MustOpenTestDB(t)
	store, err := NewStore(db)
	require.NoError(t, err)
	return store, db
}

func TestStoreCreateAndFetchAll(t *testing.T) {
	store, _ := mustStore(t)
	ctx := context.Background()

	first := store.Create(ctx, &models.Notification{
		UserID:  "user-1",
		Title:   "Post Approved",
		Message: "Your beach resort campaign post was approved",
		Type:    models.TypeSuccess,
	})
	require.NotNil(t, first)
	require.NotEmpty(t, first.ID)
	require.False(t, first.IsRead)
	require.False(t, first.CreatedAt.IsZero())

	second := store.Create(ctx, &models.Notification{
		BaseModel: models.BaseModel{CreatedAt: first.CreatedAt.Add(time.Second)},
		UserID:    "user-1",
		Title:     "New Comment",
		Message:   "A reviewer left feedback on your calendar",
	})
	require.NotNil(t, second)
	require.Equal(t, models.TypeInfo, second.Type, "type defaults to info")

	rows := store.FetchAll(ctx, "user-1")
	require.Len(t, rows, 2)
	require.Equal(t, second.ID, rows[0].ID, "newest first")
	require.Equal(t, first.ID, rows[1].ID)

	require.Empty(t, store.FetchAll(ctx, "user-2"))
	require.Empty(t, store.FetchAll(ctx, ""))
}

func TestStoreCreateForcesUnread(t *testing.T) {
	store, _ := mustStore(t)
	ctx := context.Background()

	now := time.Now().UTC()
	created := store.Create(ctx, &models.Notification{
		UserID:  "user-1",
		Title:   "Weekly Report",
		Message: "Your analytics digest is ready",
		IsRead:  true,
		ReadAt:  &now,
	})
	require.NotNil(t, created)
	require.False(t, created.IsRead)
	require.Nil(t, created.ReadAt)
}

func TestStoreMarkRead(t *testing.T) {
	store, db := mustStore(t)
	ctx := context.Background()

	created := store.Create(ctx, &models.Notification{
		UserID:  "user-1",
		Title:   "Approval Needed",
		Message: "A post is waiting for review",
		Type:    models.TypeWarning,
	})
	require.NotNil(t, created)

	require.True(t, store.MarkRead(ctx, created.ID))

	var row models.Notification
	require.NoError(t, db.First(&row, "id = ?", created.ID).Error)
	require.True(t, row.IsRead)
	require.NotNil(t, row.ReadAt)

	// A second call leaves the original read timestamp untouched.
	firstReadAt := *row.ReadAt
	require.True(t, store.MarkRead(ctx, created.ID))
	require.NoError(t, db.First(&row, "id = ?", created.ID).Error)
	require.True(t, row.IsRead)
	require.Equal(t, firstReadAt.Unix(), row.ReadAt.Unix())
}

func TestStoreMarkAllReadIsIdempotent(t *testing.T) {
	store, _ := mustStore(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		require.NotNil(t, store.Create(ctx, &models.Notification{
			UserID:  "user-1",
			Title:   "Update",
			Message: "Something happened",
		}))
	}
	require.EqualValues(t, 3, store.CountUnread(ctx, "user-1"))

	require.True(t, store.MarkAllRead(ctx, "user-1"))
	require.EqualValues(t, 0, store.CountUnread(ctx, "user-1"))

	require.True(t, store.MarkAllRead(ctx, "user-1"))
	require.EqualValues(t, 0, store.CountUnread(ctx, "user-1"))
}

func TestStoreDelete(t *testing.T) {
	store, _ := mustStore(t)
	ctx := context.Background()

	created := store.Create(ctx, &models.Notification{
		UserID:  "user-1",
		Title:   "Old News",
		Message: "This can go",
	})
	require.NotNil(t, created)

	require.True(t, store.Delete(ctx, created.ID))
	require.Empty(t, store.FetchAll(ctx, "user-1"))
	require.Nil(t, store.Get(ctx, created.ID))
}

func TestStoreFailureYieldsNeutralValues(t *testing.T) {
	store, db := mustStore(t)
	ctx := context.Background()

	created := store.Create(ctx, &models.Notification{
		UserID:  "user-1",
		Title:   "Doomed",
		Message: "The connection is about to die",
	})
	require.NotNil(t, created)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	require.NoError(t, sqlDB.Close())

	rows := store.FetchAll(ctx, "user-1")
	require.NotNil(t, rows)
	require.Empty(t, rows)

	require.Nil(t, store.Create(ctx, &models.Notification{
		UserID:  "user-1",
		Title:   "Nope",
		Message: "Will not persist",
	}))
	require.False(t, store.MarkRead(ctx, created.ID))
	require.False(t, store.MarkAllRead(ctx, "user-1"))
	require.False(t, store.Delete(ctx, created.ID))
	require.EqualValues(t, 0, store.CountUnread(ctx, "user-1"))
}

func TestNewStoreRequiresDatabase(t *testing.T) {
	_, err := NewStore(nil)
	require.Error(t, err)
}
