package storage

import (
	"context"
	"testing"

	"github.com/go-redis/redismock/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRedisStore_Get(t *testing.T) {
	ctx := context.Background()
	client, mock := redismock.NewClientMock()
	s := NewRedis(client)

	t.Run("hit", func(t *testing.T) {
		mock.ExpectGet("flowex:state:session").SetVal(`{"accessToken":"t"}`)
		blob, ok, err := s.Get(ctx, "session")
		require.NoError(t, err)
		assert.True(t, ok)
		assert.JSONEq(t, `{"accessToken":"t"}`, string(blob))
	})

	t.Run("miss_is_first_run", func(t *testing.T) {
		mock.ExpectGet("flowex:state:wallet").RedisNil()
		blob, ok, err := s.Get(ctx, "wallet")
		require.NoError(t, err)
		assert.False(t, ok)
		assert.Nil(t, blob)
	})

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRedisStore_SetRemove(t *testing.T) {
	ctx := context.Background()
	client, mock := redismock.NewClientMock()
	s := NewRedis(client)

	mock.ExpectSet("flowex:state:ui", []byte(`{"theme":"dark"}`), 0).SetVal("OK")
	require.NoError(t, s.Set(ctx, "ui", []byte(`{"theme":"dark"}`)))

	mock.ExpectDel("flowex:state:ui").SetVal(1)
	require.NoError(t, s.Remove(ctx, "ui"))

	require.NoError(t, mock.ExpectationsWereMet())
}
