package service

import (
	"context"
	"testing"

	"marketplace-service/internal/apperr"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// buyer returns a user with a settled order for the product.
func (f *fixture) buyer(t *testing.T, productID uuid.UUID) uuid.UUID {
	t.Helper()
	user := uuid.New()
	_, intent := f.checkout(t, user, productID, 1, "")
	_, err := f.settlement.Settle(context.Background(), intent)
	require.NoError(t, err)
	return user
}

func TestUpsertReviewRecomputesRating(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.product(t, "30", 10, nil)
	alice, bob := f.buyer(t, p.ID), f.buyer(t, p.ID)

	res, err := f.catalog.UpsertReview(ctx, alice, p.ID, ReviewInput{Rating: 5, Comment: "great"})
	require.NoError(t, err)
	assert.True(t, dec("5").Equal(res.Ratings))

	res, err = f.catalog.UpsertReview(ctx, bob, p.ID, ReviewInput{Rating: 2, Comment: "meh"})
	require.NoError(t, err)
	assert.True(t, dec("3.5").Equal(res.Ratings), res.Ratings.String())

	first, err := f.catalog.UpsertReview(ctx, alice, p.ID, ReviewInput{Rating: 4, Comment: "still good"})
	require.NoError(t, err)
	assert.True(t, dec("3").Equal(first.Ratings), first.Ratings.String())

	reviews, err := f.catalog.ListReviews(ctx, p.ID)
	require.NoError(t, err)
	require.Len(t, reviews, 2)
	assert.Equal(t, alice, reviews[0].UserID)
	assert.Equal(t, "still good", reviews[0].Comment)

	got, err := f.store.GetProduct(ctx, p.ID)
	require.NoError(t, err)
	assert.True(t, dec("3").Equal(got.Ratings))
	assert.Contains(t, f.cache.invalidated, p.ID)
}

func TestUpsertReviewRequiresPurchase(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.product(t, "30", 10, nil)

	_, err := f.catalog.UpsertReview(ctx, uuid.New(), p.ID, ReviewInput{Rating: 5, Comment: "never bought"})
	assert.Equal(t, apperr.KindForbidden, apperr.KindOf(err))

	pending := uuid.New()
	f.checkout(t, pending, p.ID, 1, "")
	_, err = f.catalog.UpsertReview(ctx, pending, p.ID, ReviewInput{Rating: 5, Comment: "unpaid"})
	assert.Equal(t, apperr.KindForbidden, apperr.KindOf(err))

	_, err = f.catalog.UpsertReview(ctx, pending, uuid.New(), ReviewInput{Rating: 5, Comment: "x"})
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))

	_, err = f.catalog.UpsertReview(ctx, pending, p.ID, ReviewInput{Rating: 6, Comment: "x"})
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))
	_, err = f.catalog.UpsertReview(ctx, pending, p.ID, ReviewInput{Rating: 3, Comment: "  "})
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))

	reviews, err := f.catalog.ListReviews(ctx, p.ID)
	require.NoError(t, err)
	assert.Empty(t, reviews)
}

func TestDeleteReview(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.product(t, "30", 10, nil)
	alice, bob := f.buyer(t, p.ID), f.buyer(t, p.ID)

	_, err := f.catalog.UpsertReview(ctx, alice, p.ID, ReviewInput{Rating: 5, Comment: "great"})
	require.NoError(t, err)
	_, err = f.catalog.UpsertReview(ctx, bob, p.ID, ReviewInput{Rating: 1, Comment: "bad"})
	require.NoError(t, err)

	res, err := f.catalog.DeleteReview(ctx, bob, p.ID)
	require.NoError(t, err)
	assert.True(t, dec("5").Equal(res.Ratings))

	_, err = f.catalog.DeleteReview(ctx, bob, p.ID)
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))

	res, err = f.catalog.DeleteReview(ctx, alice, p.ID)
	require.NoError(t, err)
	assert.True(t, res.Ratings.IsZero())
}
