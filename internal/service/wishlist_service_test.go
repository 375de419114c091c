package service

import (
	"context"
	"testing"

	"marketplace-service/internal/apperr"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWishlist(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	svc := NewWishlistService(f.store, Timeouts{})
	user := uuid.New()
	p := f.product(t, "10", 1, nil)

	added, err := svc.Add(ctx, user, p.ID)
	require.NoError(t, err)
	assert.True(t, added)

	added, err = svc.Add(ctx, user, p.ID)
	require.NoError(t, err)
	assert.False(t, added)

	_, err = svc.Add(ctx, user, uuid.New())
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))

	ok, err := svc.Contains(ctx, user, p.ID)
	require.NoError(t, err)
	assert.True(t, ok)

	entries, err := svc.List(ctx, user)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, p.ID, entries[0].Product.ID)

	require.NoError(t, svc.Remove(ctx, user, p.ID))
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(svc.Remove(ctx, user, p.ID)))
}

func TestWishlistClear(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	svc := NewWishlistService(f.store, Timeouts{})
	user, other := uuid.New(), uuid.New()

	for i := 0; i < 3; i++ {
		_, err := svc.Add(ctx, user, f.product(t, "10", 1, nil).ID)
		require.NoError(t, err)
	}
	kept := f.product(t, "10", 1, nil)
	_, err := svc.Add(ctx, other, kept.ID)
	require.NoError(t, err)

	n, err := svc.Clear(ctx, user)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	entries, err := svc.List(ctx, user)
	require.NoError(t, err)
	assert.Empty(t, entries)

	n, err = svc.Clear(ctx, user)
	require.NoError(t, err)
	assert.Zero(t, n)

	in, err := svc.Contains(ctx, other, kept.ID)
	require.NoError(t, err)
	assert.True(t, in)
}
