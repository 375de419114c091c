package store

import (
	"context"

	"marketplace-service/internal/models"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
)

const reviewColumns = `id, product_id, user_id, rating, comment, created_at, updated_at`

// UpsertReview inserts the user's review or overwrites the existing one
func (q *queries) UpsertReview(ctx context.Context, r *models.Review) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	query := `
		INSERT INTO reviews (id, product_id, user_id, rating, comment)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (product_id, user_id)
		DO UPDATE SET rating = EXCLUDED.rating, comment = EXCLUDED.comment, updated_at = NOW()
		RETURNING id, created_at, updated_at`

	return q.ext.QueryRowxContext(ctx, query,
		r.ID, r.ProductID, r.UserID, r.Rating, r.Comment,
	).Scan(&r.ID, &r.CreatedAt, &r.UpdatedAt)
}

// DeleteReview removes the user's review of the product
func (q *queries) DeleteReview(ctx context.Context, productID, userID uuid.UUID) error {
	res, err := q.ext.ExecContext(ctx,
		"DELETE FROM reviews WHERE product_id = $1 AND user_id = $2", productID, userID)
	if err != nil {
		return err
	}
	return expectOne(res, "Review")
}

// ListReviews returns the product's reviews, newest first
func (q *queries) ListReviews(ctx context.Context, productID uuid.UUID) ([]models.Review, error) {
	reviews := []models.Review{}
	err := sqlx.SelectContext(ctx, q.ext, &reviews,
		"SELECT "+reviewColumns+" FROM reviews WHERE product_id = $1 ORDER BY updated_at DESC", productID)
	return reviews, err
}

// RecomputeRating writes the average review rating onto the product
func (q *queries) RecomputeRating(ctx context.Context, productID uuid.UUID) (decimal.Decimal, error) {
	var rating decimal.Decimal
	err := q.ext.QueryRowxContext(ctx, `
		UPDATE products
		SET ratings = COALESCE((SELECT ROUND(AVG(rating), 2) FROM reviews WHERE product_id = $1), 0),
			updated_at = NOW()
		WHERE id = $1
		RETURNING ratings`, productID).Scan(&rating)
	return rating, notFound(err, "Product")
}

// HasPurchased reports whether the user has a paid order containing the product
func (q *queries) HasPurchased(ctx context.Context, userID, productID uuid.UUID) (bool, error) {
	var bought bool
	err := sqlx.GetContext(ctx, q.ext, &bought, `
		SELECT EXISTS(
			SELECT 1
			FROM order_items oi
			JOIN orders o ON o.id = oi.order_id
			WHERE o.buyer_id = $1 AND oi.product_id = $2 AND o.paid_at IS NOT NULL
		)`, userID, productID)
	return bought, err
}
