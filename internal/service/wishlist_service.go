package service

import (
	"context"

	"marketplace-service/internal/apperr"
	"marketplace-service/internal/models"
	"marketplace-service/internal/store"

	"github.com/google/uuid"
)

// WishlistService manages products saved by a user
type WishlistService struct {
	store    store.Store
	timeouts Timeouts
}

// NewWishlistService creates a new wishlist service
func NewWishlistService(st store.Store, timeouts Timeouts) *WishlistService {
	return &WishlistService{store: st, timeouts: timeouts}
}

// Add saves a product. Adding a product already on the list is not an error;
// added reports whether a new row was written.
func (s *WishlistService) Add(ctx context.Context, userID, productID uuid.UUID) (added bool, err error) {
	ctx, cancel := s.timeouts.query(ctx)
	defer cancel()

	if _, err := s.store.GetProduct(ctx, productID); err != nil {
		return false, err
	}

	err = s.store.AddWishlistItem(ctx, &models.WishlistItem{UserID: userID, ProductID: productID})
	if apperr.Is(err, apperr.KindDuplicate) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// Remove drops a product from the list
func (s *WishlistService) Remove(ctx context.Context, userID, productID uuid.UUID) error {
	ctx, cancel := s.timeouts.query(ctx)
	defer cancel()
	return s.store.RemoveWishlistItem(ctx, userID, productID)
}

// List returns the saved products, newest first
func (s *WishlistService) List(ctx context.Context, userID uuid.UUID) ([]store.WishlistEntry, error) {
	ctx, cancel := s.timeouts.query(ctx)
	defer cancel()
	return s.store.ListWishlist(ctx, userID)
}

// Contains reports whether the product is on the list
func (s *WishlistService) Contains(ctx context.Context, userID, productID uuid.UUID) (bool, error) {
	ctx, cancel := s.timeouts.query(ctx)
	defer cancel()
	return s.store.HasWishlistItem(ctx, userID, productID)
}

// Clear empties the list and returns how many products were removed
func (s *WishlistService) Clear(ctx context.Context, userID uuid.UUID) (int, error) {
	ctx, cancel := s.timeouts.query(ctx)
	defer cancel()
	return s.store.ClearWishlist(ctx, userID)
}
