package file

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/bnema/notifications-feed-cli/internal/domain"
	"github.com/pelletier/go-toml/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStoreRejectsInvalidKeys(t *testing.T) {
	t.Parallel()

	store := NewStore(t.TempDir())
	testCases := []struct {
		name    string
		key     string
		wantErr string
	}{
		{name: "empty", key: "", wantErr: "credential key is empty"},
		{name: "whitespace", key: "   ", wantErr: "credential key is empty"},
		{name: "missing user", key: "sessions/localhost_5000", wantErr: "invalid credential key"},
		{name: "empty server", key: "sessions//alice", wantErr: "invalid credential key"},
		{name: "foreign prefix", key: "tokens/localhost_5000/alice", wantErr: "invalid credential key"},
		{name: "traversal", key: "../sessions/alice", wantErr: "invalid credential key"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			err := store.Put(context.Background(), tc.key, "value")
			require.Error(t, err)
			assert.ErrorContains(t, err, tc.wantErr)
		})
	}
}

func TestStorePutWritesKeyringFileByServerAndUser(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	store := NewStore(dir)
	store.now = func() time.Time { return time.Date(2026, 3, 1, 12, 0, 0, 500, time.UTC) }

	require.NoError(t, store.Put(context.Background(), "sessions/localhost_5000/alice", "  eyJhbGciOi.token.sig\n"))

	got, err := store.Get(context.Background(), "sessions/localhost_5000/alice")
	require.NoError(t, err)
	assert.Equal(t, "eyJhbGciOi.token.sig", got)

	assert.Equal(t, filepath.Join(dir, "sessions.toml"), store.Path())
	info, err := os.Stat(store.Path())
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(storeFileMode), info.Mode().Perm())

	data, err := os.ReadFile(store.Path())
	require.NoError(t, err)
	var file keyringFile
	require.NoError(t, toml.Unmarshal(data, &file))
	entry := file.Servers["localhost_5000"].Users["alice"]
	assert.Equal(t, "eyJhbGciOi.token.sig", entry.Token)
	assert.True(t, entry.SavedAt.Equal(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)))
}

func TestStoreKeepsServersApart(t *testing.T) {
	t.Parallel()

	store := NewStore(t.TempDir())
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, "sessions/localhost_5000/alice", "local-token"))
	require.NoError(t, store.Put(ctx, "sessions/notify.example.com/alice", "remote-token"))
	require.NoError(t, store.Put(ctx, "sessions/localhost_5000/bob", "bob-token"))

	require.NoError(t, store.Delete(ctx, "sessions/localhost_5000/alice"))

	_, err := store.Get(ctx, "sessions/localhost_5000/alice")
	require.ErrorIs(t, err, domain.ErrSecretNotFound)

	remote, err := store.Get(ctx, "sessions/notify.example.com/alice")
	require.NoError(t, err)
	assert.Equal(t, "remote-token", remote)

	bob, err := store.Get(ctx, "sessions/localhost_5000/bob")
	require.NoError(t, err)
	assert.Equal(t, "bob-token", bob)
}

func TestStoreGetMissingReturnsSecretNotFound(t *testing.T) {
	t.Parallel()

	store := NewStore(t.TempDir())
	ctx := context.Background()

	_, err := store.Get(ctx, "sessions/localhost_5000/nobody")
	require.ErrorIs(t, err, domain.ErrSecretNotFound)

	require.NoError(t, store.Put(ctx, "sessions/localhost_5000/alice", "token"))
	_, err = store.Get(ctx, "sessions/localhost_5000/nobody")
	require.ErrorIs(t, err, domain.ErrSecretNotFound)
}

func TestStoreRejectsEmptyValue(t *testing.T) {
	t.Parallel()

	store := NewStore(t.TempDir())

	err := store.Put(context.Background(), "sessions/localhost_5000/alice", "   ")
	require.Error(t, err)
}

func TestStoreDeleteLastEntryRemovesFile(t *testing.T) {
	t.Parallel()

	store := NewStore(t.TempDir())
	ctx := context.Background()
	key := "sessions/localhost_5000/alice"

	require.NoError(t, store.Delete(ctx, key))
	require.NoError(t, store.Put(ctx, key, "token"))
	require.NoError(t, store.Delete(ctx, key))
	require.NoError(t, store.Delete(ctx, key))

	_, err := os.Stat(store.Path())
	assert.True(t, os.IsNotExist(err))
}

func TestStoreReportsCorruptFile(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "sessions.toml"), []byte("servers = [oops"), 0o600))

	_, err := NewStore(dir).Get(context.Background(), "sessions/localhost_5000/alice")
	require.Error(t, err)
	assert.NotErrorIs(t, err, domain.ErrSecretNotFound)
	assert.ErrorContains(t, err, "decode credentials file")
}
