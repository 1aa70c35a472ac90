package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/go-redis/redismock/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func exercise(t *testing.T, kv KV) {
	t.Helper()
	ctx := context.Background()

	_, err := kv.Get(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, kv.Put(ctx, "a", []byte("one")))
	require.NoError(t, kv.Put(ctx, "a", []byte("two")))
	v, err := kv.Get(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, "two", string(v))

	require.NoError(t, kv.Delete(ctx, "a"))
	_, err = kv.Get(ctx, "a")
	assert.ErrorIs(t, err, ErrNotFound)
	require.NoError(t, kv.Delete(ctx, "a"), "deleting a missing key is fine")

	type view struct {
		Symbol string `json:"symbol"`
		Zoom   int    `json:"zoom"`
	}
	require.NoError(t, PutJSON(ctx, kv, "view", view{"EURUSD", 80}))
	var got view
	require.NoError(t, GetJSON(ctx, kv, "view", &got))
	assert.Equal(t, view{"EURUSD", 80}, got)
}

func TestMemory(t *testing.T) {
	t.Parallel()
	exercise(t, NewMemory())
}

func TestSQLite(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "prefs.db")
	kv, err := NewSQLite(path)
	require.NoError(t, err)
	exercise(t, kv)

	require.NoError(t, kv.Put(context.Background(), "keep", []byte("x")))
	require.NoError(t, kv.Close())

	reopened, err := NewSQLite(path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = reopened.Close() })
	v, err := reopened.Get(context.Background(), "keep")
	require.NoError(t, err)
	assert.Equal(t, "x", string(v), "values survive a restart")

	_, err = NewSQLite("")
	assert.Error(t, err)
}

func TestRedisGet(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		setup   func(m redismock.ClientMock)
		want    string
		wantErr error
	}{
		{
			name:  "hit",
			setup: func(m redismock.ClientMock) { m.ExpectGet("tradedesk:view").SetVal(`{"a":1}`) },
			want:  `{"a":1}`,
		},
		{
			name:    "miss",
			setup:   func(m redismock.ClientMock) { m.ExpectGet("tradedesk:view").RedisNil() },
			wantErr: ErrNotFound,
		},
		{
			name:    "error",
			setup:   func(m redismock.ClientMock) { m.ExpectGet("tradedesk:view").SetErr(errors.New("down")) },
			wantErr: errors.New("down"),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			client, mock := redismock.NewClientMock()
			tt.setup(mock)
			kv := NewRedis(client, "")

			v, err := kv.Get(context.Background(), "view")
			switch {
			case errors.Is(tt.wantErr, ErrNotFound):
				assert.ErrorIs(t, err, ErrNotFound)
			case tt.wantErr != nil:
				assert.ErrorContains(t, err, tt.wantErr.Error())
			default:
				require.NoError(t, err)
				assert.Equal(t, tt.want, string(v))
			}
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestRedisPutDelete(t *testing.T) {
	t.Parallel()

	client, mock := redismock.NewClientMock()
	kv := NewRedis(client, "desk")

	mock.ExpectSet("desk:extras:forex", []byte(`["USDCHF"]`), 0).SetVal("OK")
	mock.ExpectDel("desk:extras:forex").SetVal(1)

	require.NoError(t, kv.Put(context.Background(), "extras:forex", []byte(`["USDCHF"]`)))
	require.NoError(t, kv.Delete(context.Background(), "extras:forex"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestOpen(t *testing.T) {
	t.Parallel()

	kv, err := Open(context.Background(), Config{})
	require.NoError(t, err)
	assert.IsType(t, &Memory{}, kv)

	kv, err = Open(context.Background(), Config{Driver: "sqlite", Path: filepath.Join(t.TempDir(), "s.db")})
	require.NoError(t, err)
	assert.IsType(t, &SQLite{}, kv)
	require.NoError(t, kv.Close())

	_, err = Open(context.Background(), Config{Driver: "etcd"})
	assert.Error(t, err)
}
