package storage

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStore_RoundTrip(t *testing.T) {
	ctx := context.Background()
	s := NewMemory()

	t.Run("missing_record_is_first_run", func(t *testing.T) {
		blob, ok, err := s.Get(ctx, "session")
		require.NoError(t, err)
		assert.False(t, ok)
		assert.Nil(t, blob)
	})

	t.Run("set_then_get", func(t *testing.T) {
		require.NoError(t, s.Set(ctx, "session", []byte(`{"accessToken":"t"}`)))
		blob, ok, err := s.Get(ctx, "session")
		require.NoError(t, err)
		assert.True(t, ok)
		assert.JSONEq(t, `{"accessToken":"t"}`, string(blob))
	})

	t.Run("remove_clears_record", func(t *testing.T) {
		require.NoError(t, s.Remove(ctx, "session"))
		_, ok, err := s.Get(ctx, "session")
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("caller_cannot_mutate_stored_blob", func(t *testing.T) {
		in := []byte(`{"theme":"dark"}`)
		require.NoError(t, s.Set(ctx, "ui", in))
		in[2] = 'X'
		blob, ok, err := s.Get(ctx, "ui")
		require.NoError(t, err)
		require.True(t, ok)
		assert.JSONEq(t, `{"theme":"dark"}`, string(blob))
	})
}

func TestFileStore_RoundTrip(t *testing.T) {
	ctx := context.Background()
	s, err := NewFile(t.TempDir())
	require.NoError(t, err)

	_, ok, err := s.Get(ctx, "wallet")
	require.NoError(t, err)
	assert.False(t, ok, "empty dir is a valid first-run state")

	require.NoError(t, s.Set(ctx, "wallet", []byte(`{"balances":{}}`)))
	blob, ok, err := s.Get(ctx, "wallet")
	require.NoError(t, err)
	require.True(t, ok)
	assert.JSONEq(t, `{"balances":{}}`, string(blob))

	require.NoError(t, s.Remove(ctx, "wallet"))
	_, ok, err = s.Get(ctx, "wallet")
	require.NoError(t, err)
	assert.False(t, ok)

	// Removing an absent record is not an error.
	require.NoError(t, s.Remove(ctx, "wallet"))
}

func TestFileStore_RejectsEmptyDir(t *testing.T) {
	_, err := NewFile("")
	assert.Error(t, err)
}
