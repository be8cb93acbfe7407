package kv

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"worker/core/errs"
)

func openMemory(t *testing.T) *Store {
	t.Helper()
	s, err := Open(Options{InMemory: true, Logger: zerolog.Nop()})
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestStore_PutGetDelete(t *testing.T) {
	ctx := context.Background()
	s := openMemory(t)

	require.NoError(t, s.Put(ctx, "docs/a", []byte(`{"n":1}`), "application/json"))

	entry, err := s.Get(ctx, "docs/a")
	require.NoError(t, err)
	assert.Equal(t, `{"n":1}`, string(entry.Value))
	assert.Equal(t, "application/json", entry.ContentType)

	require.NoError(t, s.Put(ctx, "docs/a", []byte("plain"), ""))
	entry, err = s.Get(ctx, "docs/a")
	require.NoError(t, err)
	assert.Equal(t, "plain", string(entry.Value))
	assert.Empty(t, entry.ContentType)

	require.NoError(t, s.Delete(ctx, "docs/a"))
	_, err = s.Get(ctx, "docs/a")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, s.Delete(ctx, "docs/a"), ErrNotFound)
}

func TestStore_EmptyValue(t *testing.T) {
	ctx := context.Background()
	s := openMemory(t)

	require.NoError(t, s.Put(ctx, "empty", nil, "text/plain"))
	entry, err := s.Get(ctx, "empty")
	require.NoError(t, err)
	assert.Empty(t, entry.Value)
	assert.Equal(t, "text/plain", entry.ContentType)
}

func TestStore_List(t *testing.T) {
	ctx := context.Background()
	s := openMemory(t)
	for _, k := range []string{"b/2", "a/1", "b/1", "c"} {
		require.NoError(t, s.Put(ctx, k, []byte(k), ""))
	}

	keys, err := s.List(ctx, "b/", 0)
	require.NoError(t, err)
	assert.Equal(t, []string{"b/1", "b/2"}, keys)

	keys, err = s.List(ctx, "", 2)
	require.NoError(t, err)
	assert.Equal(t, []string{"a/1", "b/1"}, keys)
}

func TestStore_InvalidKey(t *testing.T) {
	s := openMemory(t)
	err := s.Put(context.Background(), "", []byte("x"), "")
	require.Error(t, err)
	assert.Equal(t, errs.KV, errs.From(err).Kind())
	assert.Equal(t, "kv error: key must not be empty", err.Error())
}

func TestStore_CanceledContext(t *testing.T) {
	s := openMemory(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, s.Put(ctx, "k", []byte("v"), ""), context.Canceled)
	_, err := s.Get(ctx, "k")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestStore_Persistent(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	s, err := Open(Options{Path: dir, SyncWrites: true})
	require.NoError(t, err)
	require.NoError(t, s.Put(ctx, "kept", []byte("across restarts"), "text/plain"))
	require.NoError(t, s.Close())

	s, err = Open(Options{Path: dir})
	require.NoError(t, err)
	defer s.Close()
	entry, err := s.Get(ctx, "kept")
	require.NoError(t, err)
	assert.Equal(t, "across restarts", string(entry.Value))
}

func TestOpen_RequiresPath(t *testing.T) {
	_, err := Open(Options{})
	require.Error(t, err)
	assert.Equal(t, errs.KV, errs.From(err).Kind())
}
