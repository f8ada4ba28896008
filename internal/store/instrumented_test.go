package store

import (
	"context"
	"errors"
	"testing"

	"github.com/chinmina/catalog-token-bridge/internal/token"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockStore is a mock implementation of TokenStore for testing.
type mockStore struct {
	getValue token.Record
	getFound bool
	getError error
	setError error
	invError error
	closeErr error
	getCalls int
	setCalls int
	invCalls int
}

func (m *mockStore) Get(ctx context.Context, key string) (token.Record, bool, error) {
	m.getCalls++
	return m.getValue, m.getFound, m.getError
}

func (m *mockStore) Set(ctx context.Context, key string, record token.Record) error {
	m.setCalls++
	return m.setError
}

func (m *mockStore) Invalidate(ctx context.Context, key string) error {
	m.invCalls++
	return m.invError
}

func (m *mockStore) Close() error {
	return m.closeErr
}

func TestInstrumented_Get_Hit(t *testing.T) {
	mock := &mockStore{
		getValue: token.Record{"accessToken": "abc"},
		getFound: true,
	}

	instrumented := NewInstrumented(mock, "test")

	record, found, err := instrumented.Get(context.Background(), token.StoreKey)

	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, token.Record{"accessToken": "abc"}, record)
	assert.Equal(t, 1, mock.getCalls)
}

func TestInstrumented_Get_Miss(t *testing.T) {
	mock := &mockStore{}

	instrumented := NewInstrumented(mock, "test")

	record, found, err := instrumented.Get(context.Background(), token.StoreKey)

	require.NoError(t, err)
	assert.False(t, found)
	assert.Nil(t, record)
	assert.Equal(t, 1, mock.getCalls)
}

func TestInstrumented_Get_Error(t *testing.T) {
	expectedErr := errors.New("store error")
	mock := &mockStore{getError: expectedErr}

	instrumented := NewInstrumented(mock, "test")

	_, found, err := instrumented.Get(context.Background(), token.StoreKey)

	assert.Equal(t, expectedErr, err)
	assert.False(t, found)
}

func TestInstrumented_Set(t *testing.T) {
	mock := &mockStore{}
	instrumented := NewInstrumented(mock, "test")

	err := instrumented.Set(context.Background(), token.StoreKey, token.Record{})

	require.NoError(t, err)
	assert.Equal(t, 1, mock.setCalls)

	expectedErr := errors.New("set error")
	mock.setError = expectedErr

	err = instrumented.Set(context.Background(), token.StoreKey, token.Record{})
	assert.Equal(t, expectedErr, err)
	assert.Equal(t, 2, mock.setCalls)
}

func TestInstrumented_Invalidate(t *testing.T) {
	mock := &mockStore{}
	instrumented := NewInstrumented(mock, "test")

	require.NoError(t, instrumented.Invalidate(context.Background(), token.StoreKey))
	assert.Equal(t, 1, mock.invCalls)

	expectedErr := errors.New("invalidate error")
	mock.invError = expectedErr

	assert.Equal(t, expectedErr, instrumented.Invalidate(context.Background(), token.StoreKey))
}

func TestInstrumented_Close(t *testing.T) {
	expectedErr := errors.New("close error")
	instrumented := NewInstrumented(&mockStore{closeErr: expectedErr}, "test")

	assert.Equal(t, expectedErr, instrumented.Close())
}
