package chain

import (
	"context"
	"errors"
	"fmt"
	"testing"

	passstore "github.com/bnema/notifications-feed-cli/internal/adapters/credentials/pass"
	"github.com/bnema/notifications-feed-cli/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

const tokenKey = "localhost_5000/alice"

type mockCredentialStore struct {
	mock.Mock
}

func newMockCredentialStore(t *testing.T) *mockCredentialStore {
	m := &mockCredentialStore{}
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

func (m *mockCredentialStore) Get(ctx context.Context, key string) (string, error) {
	args := m.Called(ctx, key)
	return args.String(0), args.Error(1)
}

func (m *mockCredentialStore) Put(ctx context.Context, key string, value string) error {
	return m.Called(ctx, key, value).Error(0)
}

func (m *mockCredentialStore) Delete(ctx context.Context, key string) error {
	return m.Called(ctx, key).Error(0)
}

func newChain(t *testing.T) (*Store, *mockCredentialStore, *mockCredentialStore) {
	t.Helper()

	primary := newMockCredentialStore(t)
	fallback := newMockCredentialStore(t)
	store, err := NewStore(primary, fallback)
	require.NoError(t, err)
	return store, primary, fallback
}

func TestNewStoreRejectsNilBackends(t *testing.T) {
	t.Parallel()

	_, err := NewStore(nil, &mockCredentialStore{})
	require.ErrorIs(t, err, errNilPrimaryStore)

	_, err = NewStore(&mockCredentialStore{}, nil)
	require.ErrorIs(t, err, errNilFallbackStore)
}

func TestGetUsesPrimaryWhenItSucceeds(t *testing.T) {
	t.Parallel()

	store, primary, _ := newChain(t)
	primary.On("Get", mock.Anything, tokenKey).Return("from-pass", nil).Once()

	value, err := store.Get(context.Background(), tokenKey)
	require.NoError(t, err)
	assert.Equal(t, "from-pass", value)
}

func TestGetFallsBackWhenPrimaryFails(t *testing.T) {
	t.Parallel()

	store, primary, fallback := newChain(t)
	primary.On("Get", mock.Anything, tokenKey).Return("", passstore.ErrUnavailable).Once()
	fallback.On("Get", mock.Anything, tokenKey).Return("from-file", nil).Once()

	value, err := store.Get(context.Background(), tokenKey)
	require.NoError(t, err)
	assert.Equal(t, "from-file", value)
}

func TestGetMissingEverywhereIsSecretNotFound(t *testing.T) {
	t.Parallel()

	store, primary, fallback := newChain(t)
	primary.On("Get", mock.Anything, tokenKey).Return("", fmt.Errorf("pass get: %w", domain.ErrSecretNotFound)).Once()
	fallback.On("Get", mock.Anything, tokenKey).Return("", fmt.Errorf("file get: %w", domain.ErrSecretNotFound)).Once()

	_, err := store.Get(context.Background(), tokenKey)
	require.ErrorIs(t, err, domain.ErrSecretNotFound)
	assert.NotContains(t, err.Error(), "primary backend")
}

func TestGetCombinesBackendFailures(t *testing.T) {
	t.Parallel()

	store, primary, fallback := newChain(t)
	primary.On("Get", mock.Anything, tokenKey).Return("", errors.New("pass failed")).Once()
	fallback.On("Get", mock.Anything, tokenKey).Return("", errors.New("file failed")).Once()

	_, err := store.Get(context.Background(), tokenKey)
	require.Error(t, err)
	assert.ErrorContains(t, err, "primary backend get failed: pass failed")
	assert.ErrorContains(t, err, "fallback backend get failed: file failed")
}

func TestGetDoesNotFallBackOnCancellation(t *testing.T) {
	t.Parallel()

	store, primary, _ := newChain(t)
	primary.On("Get", mock.Anything, tokenKey).Return("", context.Canceled).Once()

	_, err := store.Get(context.Background(), tokenKey)
	require.ErrorIs(t, err, context.Canceled)
}

func TestPutFallsBackWhenPrimaryFails(t *testing.T) {
	t.Parallel()

	store, primary, fallback := newChain(t)
	primary.On("Put", mock.Anything, tokenKey, "tok").Return(passstore.ErrUnavailable).Once()
	fallback.On("Put", mock.Anything, tokenKey, "tok").Return(nil).Once()

	require.NoError(t, store.Put(context.Background(), tokenKey, "tok"))
}

func TestPutSkipsFallbackWhenPrimarySucceeds(t *testing.T) {
	t.Parallel()

	store, primary, _ := newChain(t)
	primary.On("Put", mock.Anything, tokenKey, "tok").Return(nil).Once()

	require.NoError(t, store.Put(context.Background(), tokenKey, "tok"))
}

func TestDeleteClearsBothBackends(t *testing.T) {
	t.Parallel()

	store, primary, fallback := newChain(t)
	primary.On("Delete", mock.Anything, tokenKey).Return(nil).Once()
	fallback.On("Delete", mock.Anything, tokenKey).Return(nil).Once()

	require.NoError(t, store.Delete(context.Background(), tokenKey))
}

func TestDeleteToleratesMissingPass(t *testing.T) {
	t.Parallel()

	store, primary, fallback := newChain(t)
	primary.On("Delete", mock.Anything, tokenKey).Return(passstore.ErrUnavailable).Once()
	fallback.On("Delete", mock.Anything, tokenKey).Return(nil).Once()

	require.NoError(t, store.Delete(context.Background(), tokenKey))
}

func TestDeleteReportsBackendFailure(t *testing.T) {
	t.Parallel()

	store, primary, fallback := newChain(t)
	primary.On("Delete", mock.Anything, tokenKey).Return(errors.New("gpg locked")).Once()
	fallback.On("Delete", mock.Anything, tokenKey).Return(nil).Once()

	err := store.Delete(context.Background(), tokenKey)
	require.Error(t, err)
	assert.ErrorContains(t, err, "gpg locked")
}
