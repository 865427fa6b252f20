package sandbox

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/bnema/notifications-feed-cli/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()

	store, err := OpenStore(context.Background(), "")
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func storedNote(id, userID string, kind domain.Kind, at time.Time) domain.Notification {
	return domain.Notification{
		ID:           domain.NotificationID(id),
		Kind:         kind,
		Message:      "message " + id,
		TargetUserID: userID,
		Timestamp:    at,
	}
}

func TestStoreListRecentReturnsNewestFirstPerUser(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := openTestStore(t)
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	require.NoError(t, store.Insert(ctx, storedNote("a", "7", domain.KindInfo, base)))
	require.NoError(t, store.Insert(ctx, storedNote("b", "7", domain.KindWarning, base.Add(time.Minute))))
	require.NoError(t, store.Insert(ctx, storedNote("c", "8", domain.KindInfo, base.Add(2*time.Minute))))
	require.NoError(t, store.Insert(ctx, storedNote("d", "7", domain.KindError, base.Add(3*time.Minute))))

	list, err := store.ListRecent(ctx, "7", 2)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, domain.NotificationID("d"), list[0].ID)
	assert.Equal(t, domain.NotificationID("b"), list[1].ID)
	assert.Equal(t, domain.KindWarning, list[1].Kind)
	assert.True(t, list[0].Timestamp.Equal(base.Add(3*time.Minute)))
	assert.Nil(t, list[0].Action)
}

func TestStoreMarkAllReadOnlyTouchesOwner(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := openTestStore(t)
	now := time.Now()

	require.NoError(t, store.Insert(ctx, storedNote("a", "7", domain.KindInfo, now)))
	require.NoError(t, store.Insert(ctx, storedNote("b", "7", domain.KindInfo, now)))
	require.NoError(t, store.Insert(ctx, storedNote("c", "8", domain.KindInfo, now)))

	updated, err := store.MarkAllRead(ctx, "7")
	require.NoError(t, err)
	assert.Equal(t, int64(2), updated)

	again, err := store.MarkAllRead(ctx, "7")
	require.NoError(t, err)
	assert.Zero(t, again)

	other, err := store.ListRecent(ctx, "8", 10)
	require.NoError(t, err)
	require.Len(t, other, 1)
	assert.False(t, other[0].IsRead)
}

func TestStoreAcceptInviteAddsMembershipAndDropsInvites(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := openTestStore(t)
	now := time.Now()

	first := storedNote("i1", "7", domain.KindTeamInvite, now)
	first.Action = &domain.ActionContext{ProjectID: "42", ProjectName: "Apollo"}
	second := storedNote("i2", "7", domain.KindTeamInvite, now.Add(time.Second))
	second.Action = &domain.ActionContext{ProjectID: "42", ProjectName: "Apollo"}
	require.NoError(t, store.Insert(ctx, first))
	require.NoError(t, store.Insert(ctx, second))
	require.NoError(t, store.Insert(ctx, storedNote("n1", "7", domain.KindInfo, now)))

	list, err := store.ListRecent(ctx, "7", 10)
	require.NoError(t, err)
	require.NotNil(t, list[0].Action)
	assert.Equal(t, "Apollo", list[0].Action.ProjectName)

	name, err := store.AcceptInvite(ctx, "7", "42", now)
	require.NoError(t, err)
	assert.Equal(t, "Apollo", name)

	member, err := store.IsMember(ctx, "42", "7")
	require.NoError(t, err)
	assert.True(t, member)

	list, err = store.ListRecent(ctx, "7", 10)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, domain.NotificationID("n1"), list[0].ID)

	_, err = store.AcceptInvite(ctx, "7", "42", now)
	require.ErrorIs(t, err, ErrInviteNotFound)
}

func TestStoreAcceptInviteOfAnotherUserIsNotFound(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := openTestStore(t)

	invite := storedNote("i1", "8", domain.KindTeamInvite, time.Now())
	invite.Action = &domain.ActionContext{ProjectID: "42"}
	require.NoError(t, store.Insert(ctx, invite))

	_, err := store.AcceptInvite(ctx, "7", "42", time.Now())
	require.ErrorIs(t, err, ErrInviteNotFound)

	member, err := store.IsMember(ctx, "42", "7")
	require.NoError(t, err)
	assert.False(t, member)
}

func TestStorePersistsToFile(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "sandbox.db")

	store, err := OpenStore(ctx, path)
	require.NoError(t, err)
	require.NoError(t, store.Insert(ctx, storedNote("a", "7", domain.KindSuccess, time.Now())))
	require.NoError(t, store.Close())

	reopened, err := OpenStore(ctx, path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = reopened.Close() })

	list, err := reopened.ListRecent(ctx, "7", 10)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, domain.KindSuccess, list[0].Kind)
}
