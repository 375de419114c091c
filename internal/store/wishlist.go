package store

import (
	"context"

	"marketplace-service/internal/models"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

// AddWishlistItem saves a product for a user
func (q *queries) AddWishlistItem(ctx context.Context, w *models.WishlistItem) error {
	if w.ID == uuid.Nil {
		w.ID = uuid.New()
	}
	err := q.ext.QueryRowxContext(ctx, `
		INSERT INTO wishlists (id, user_id, product_id) VALUES ($1, $2, $3)
		RETURNING created_at`,
		w.ID, w.UserID, w.ProductID,
	).Scan(&w.CreatedAt)
	return duplicate(err, "Product already in wishlist")
}

// RemoveWishlistItem deletes a saved product
func (q *queries) RemoveWishlistItem(ctx context.Context, userID, productID uuid.UUID) error {
	res, err := q.ext.ExecContext(ctx,
		"DELETE FROM wishlists WHERE user_id = $1 AND product_id = $2", userID, productID)
	if err != nil {
		return err
	}
	return expectOne(res, "Wishlist item")
}

// HasWishlistItem reports whether the user saved the product
func (q *queries) HasWishlistItem(ctx context.Context, userID, productID uuid.UUID) (bool, error) {
	var exists bool
	err := sqlx.GetContext(ctx, q.ext, &exists,
		"SELECT EXISTS(SELECT 1 FROM wishlists WHERE user_id = $1 AND product_id = $2)", userID, productID)
	return exists, err
}

// ListWishlist returns the user's saved products, newest first
func (q *queries) ListWishlist(ctx context.Context, userID uuid.UUID) ([]WishlistEntry, error) {
	entries := []WishlistEntry{}
	err := sqlx.SelectContext(ctx, q.ext, &entries, `
		SELECT
			w.id AS wishlist_id,
			w.created_at AS added_at,
			p.id AS "product.id",
			p.name AS "product.name",
			p.description AS "product.description",
			p.category AS "product.category",
			p.price AS "product.price",
			p.stock AS "product.stock",
			p.vendor_id AS "product.vendor_id",
			p.images AS "product.images",
			p.ratings AS "product.ratings",
			p.created_at AS "product.created_at",
			p.updated_at AS "product.updated_at"
		FROM wishlists w
		JOIN products p ON p.id = w.product_id
		WHERE w.user_id = $1
		ORDER BY w.created_at DESC`, userID)
	return entries, err
}

// ClearWishlist deletes every saved product of the user
func (q *queries) ClearWishlist(ctx context.Context, userID uuid.UUID) (int, error) {
	res, err := q.ext.ExecContext(ctx, "DELETE FROM wishlists WHERE user_id = $1", userID)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	return int(n), err
}
