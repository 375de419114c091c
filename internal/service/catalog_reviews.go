package service

import (
	"context"
	"strings"

	"marketplace-service/internal/apperr"
	"marketplace-service/internal/models"
	"marketplace-service/internal/store"
	"marketplace-service/internal/util"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// ReviewInput is a buyer's rating of a product
type ReviewInput struct {
	Rating  int    `json:"rating" binding:"required,min=1,max=5"`
	Comment string `json:"comment" binding:"required"`
}

// ReviewResult is the written review and the product's recomputed rating
type ReviewResult struct {
	Review  *models.Review  `json:"review,omitempty"`
	Ratings decimal.Decimal `json:"ratings"`
}

// UpsertReview records the user's review of a purchased product. A second
// review by the same user replaces the first.
func (s *CatalogService) UpsertReview(ctx context.Context, userID, productID uuid.UUID, in ReviewInput) (*ReviewResult, error) {
	ctx, span := util.StartSpan(ctx, "CatalogService.UpsertReview", "product_id", productID.String())
	defer span.End()

	comment := strings.TrimSpace(in.Comment)
	if in.Rating < 1 || in.Rating > 5 {
		return nil, apperr.Validation("Rating must be between 1 and 5")
	}
	if comment == "" {
		return nil, apperr.Validation("Comment is required")
	}

	ctx, cancel := s.timeouts.tx(ctx)
	defer cancel()

	result := &ReviewResult{}
	err := s.store.WithTx(ctx, func(q store.Queries) error {
		if _, err := q.LockProduct(ctx, productID); err != nil {
			return err
		}
		bought, err := q.HasPurchased(ctx, userID, productID)
		if err != nil {
			return err
		}
		if !bought {
			return apperr.Forbidden("You can only review a product you've purchased.")
		}

		review := &models.Review{ProductID: productID, UserID: userID, Rating: in.Rating, Comment: comment}
		if err := q.UpsertReview(ctx, review); err != nil {
			return err
		}
		rating, err := q.RecomputeRating(ctx, productID)
		if err != nil {
			return err
		}
		result.Review = review
		result.Ratings = rating
		return nil
	})
	if err != nil {
		util.SpanError(span, err)
		return nil, err
	}

	s.invalidate(productID)
	s.logger.Info("Review saved",
		zap.String("product_id", productID.String()),
		zap.String("user_id", userID.String()),
		zap.Int("rating", in.Rating))
	return result, nil
}

// DeleteReview removes the user's review and recomputes the product rating
func (s *CatalogService) DeleteReview(ctx context.Context, userID, productID uuid.UUID) (*ReviewResult, error) {
	ctx, span := util.StartSpan(ctx, "CatalogService.DeleteReview", "product_id", productID.String())
	defer span.End()

	ctx, cancel := s.timeouts.tx(ctx)
	defer cancel()

	result := &ReviewResult{}
	err := s.store.WithTx(ctx, func(q store.Queries) error {
		if _, err := q.LockProduct(ctx, productID); err != nil {
			return err
		}
		if err := q.DeleteReview(ctx, productID, userID); err != nil {
			return err
		}
		rating, err := q.RecomputeRating(ctx, productID)
		if err != nil {
			return err
		}
		result.Ratings = rating
		return nil
	})
	if err != nil {
		util.SpanError(span, err)
		return nil, err
	}

	s.invalidate(productID)
	return result, nil
}

// ListReviews returns an existing product's reviews, newest first
func (s *CatalogService) ListReviews(ctx context.Context, productID uuid.UUID) ([]models.Review, error) {
	ctx, cancel := s.timeouts.query(ctx)
	defer cancel()

	if _, err := s.store.GetProduct(ctx, productID); err != nil {
		return nil, err
	}
	return s.store.ListReviews(ctx, productID)
}
