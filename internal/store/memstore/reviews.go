package memstore

import (
	"context"
	"sort"

	"marketplace-service/internal/apperr"
	"marketplace-service/internal/models"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

func (q *queries) UpsertReview(ctx context.Context, r *models.Review) error {
	defer q.lock()()
	if err := q.write("UpsertReview"); err != nil {
		return err
	}
	if _, ok := q.d.products[r.ProductID]; !ok {
		return apperr.NotFound("Product not found")
	}

	now := q.s.now()
	for id, existing := range q.d.reviews {
		if existing.ProductID == r.ProductID && existing.UserID == r.UserID {
			r.ID = id
			r.CreatedAt = existing.CreatedAt
			r.UpdatedAt = now
			q.d.reviews[id] = *r
			return nil
		}
	}

	newID(&r.ID)
	r.CreatedAt = now
	r.UpdatedAt = now
	q.d.reviews[r.ID] = *r
	return nil
}

func (q *queries) DeleteReview(ctx context.Context, productID, userID uuid.UUID) error {
	defer q.lock()()
	if err := q.write("DeleteReview"); err != nil {
		return err
	}
	for id, r := range q.d.reviews {
		if r.ProductID == productID && r.UserID == userID {
			delete(q.d.reviews, id)
			return nil
		}
	}
	return apperr.NotFound("Review not found")
}

func (q *queries) ListReviews(ctx context.Context, productID uuid.UUID) ([]models.Review, error) {
	defer q.lock()()
	out := []models.Review{}
	for _, r := range q.d.reviews {
		if r.ProductID == productID {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UpdatedAt.After(out[j].UpdatedAt) })
	return out, nil
}

func (q *queries) RecomputeRating(ctx context.Context, productID uuid.UUID) (decimal.Decimal, error) {
	defer q.lock()()
	if err := q.write("RecomputeRating"); err != nil {
		return decimal.Zero, err
	}
	p, ok := q.d.products[productID]
	if !ok {
		return decimal.Zero, apperr.NotFound("Product not found")
	}

	var ratings []decimal.Decimal
	for _, r := range q.d.reviews {
		if r.ProductID == productID {
			ratings = append(ratings, decimal.NewFromInt(int64(r.Rating)))
		}
	}
	p.Ratings = average(ratings)
	p.UpdatedAt = q.s.now()
	q.d.products[productID] = p
	return p.Ratings, nil
}

func (q *queries) HasPurchased(ctx context.Context, userID, productID uuid.UUID) (bool, error) {
	defer q.lock()()
	for _, o := range q.d.orders {
		if o.BuyerID != userID || o.PaidAt == nil {
			continue
		}
		for _, it := range o.Items {
			if it.ProductID == productID {
				return true, nil
			}
		}
	}
	return false, nil
}

// average is the mean rounded to two places, zero for no values.
func average(values []decimal.Decimal) decimal.Decimal {
	if len(values) == 0 {
		return decimal.Zero
	}
	return decimal.Sum(values[0], values[1:]...).Div(decimal.NewFromInt(int64(len(values)))).Round(2)
}
