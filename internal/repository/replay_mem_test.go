package repository

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInMemReplayReserve(t *testing.T) {
	store := NewInMemReplayStore(time.Hour)
	ctx := context.Background()
	digest := []byte{0x01, 0x02, 0x03}

	ok, err := store.Reserve(ctx, digest)
	require.NoError(t, err)
	assert.True(t, ok)

	// Same digest is refused while the reservation lives.
	ok, err = store.Reserve(ctx, digest)
	require.NoError(t, err)
	assert.False(t, ok)

	// A different digest is unaffected.
	ok, err = store.Reserve(ctx, []byte{0xaa})
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestInMemReplayRelease(t *testing.T) {
	store := NewInMemReplayStore(time.Hour)
	ctx := context.Background()
	digest := []byte{0x0f, 0x0e}

	ok, err := store.Reserve(ctx, digest)
	require.NoError(t, err)
	require.True(t, ok)

	// An aborted batch hands the digest back.
	require.NoError(t, store.Release(ctx, digest))

	ok, err = store.Reserve(ctx, digest)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestInMemReplayExpiry(t *testing.T) {
	store := NewInMemReplayStore(20 * time.Millisecond)
	ctx := context.Background()
	digest := []byte{0x42}

	ok, err := store.Reserve(ctx, digest)
	require.NoError(t, err)
	require.True(t, ok)

	time.Sleep(40 * time.Millisecond)

	// The reservation lapsed, so the digest is reusable.
	ok, err = store.Reserve(ctx, digest)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestInMemReplayDefaultTTL(t *testing.T) {
	store := NewInMemReplayStore(0)
	assert.Equal(t, time.Hour, store.ttl)
}
