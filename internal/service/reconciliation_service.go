package service

import (
	"context"
	"strings"
	"time"

	"marketplace-service/internal/apperr"
	"marketplace-service/internal/models"
	"marketplace-service/internal/store"
	"marketplace-service/internal/util"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ReconciliationService exposes the settlement anomaly queue to operators
type ReconciliationService struct {
	store    store.Store
	timeouts Timeouts
	logger   *zap.Logger
	now      func() time.Time
}

// NewReconciliationService creates a new reconciliation service
func NewReconciliationService(st store.Store, timeouts Timeouts) *ReconciliationService {
	return &ReconciliationService{
		store:    st,
		timeouts: timeouts,
		logger:   util.GetLogger(),
		now:      time.Now,
	}
}

// List returns queued items, oldest first
func (s *ReconciliationService) List(ctx context.Context, openOnly bool) ([]models.ReconciliationItem, error) {
	ctx, cancel := s.timeouts.query(ctx)
	defer cancel()
	return s.store.ListReconciliationItems(ctx, openOnly)
}

// Resolve closes an open item with an operator note
func (s *ReconciliationService) Resolve(ctx context.Context, adminID, id uuid.UUID, note string) (*models.ReconciliationItem, error) {
	ctx, span := util.StartSpan(ctx, "ReconciliationService.Resolve", "item_id", id.String())
	defer span.End()

	note = strings.TrimSpace(note)
	if note == "" {
		return nil, apperr.Validation("Resolution note is required")
	}

	ctx, cancel := s.timeouts.tx(ctx)
	defer cancel()

	var item *models.ReconciliationItem
	err := s.store.WithTx(ctx, func(q store.Queries) error {
		r, err := q.LockReconciliationItem(ctx, id)
		if err != nil {
			return err
		}
		if r.ResolvedAt != nil {
			return apperr.Conflict("Reconciliation item is already resolved")
		}

		now := s.now().UTC()
		r.ResolvedAt = &now
		r.ResolvedBy = &adminID
		r.ResolutionNote = note
		if err := q.ResolveReconciliationItem(ctx, r); err != nil {
			return err
		}
		item = r
		return nil
	})
	if err != nil {
		util.SpanError(span, err)
		return nil, err
	}

	s.logger.Info("Reconciliation item resolved",
		zap.String("item_id", item.ID.String()),
		zap.String("kind", item.Kind),
		zap.String("admin_id", adminID.String()))
	return item, nil
}
