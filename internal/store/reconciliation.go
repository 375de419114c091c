package store

import (
	"context"

	"marketplace-service/internal/models"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

const reconciliationColumns = `id, kind, order_id, product_id, variant_id, coupon_id, requested, available, detail,
	created_at, resolved_at, resolved_by, resolution_note`

// CreateReconciliationItem queues a settlement anomaly
func (q *queries) CreateReconciliationItem(ctx context.Context, r *models.ReconciliationItem) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	return q.ext.QueryRowxContext(ctx, `
		INSERT INTO reconciliation_items (id, kind, order_id, product_id, variant_id, coupon_id, requested, available, detail)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING created_at`,
		r.ID, r.Kind, r.OrderID, r.ProductID, r.VariantID, r.CouponID, r.Requested, r.Available, r.Detail,
	).Scan(&r.CreatedAt)
}

// ListReconciliationItems lists queued anomalies, oldest first
func (q *queries) ListReconciliationItems(ctx context.Context, openOnly bool) ([]models.ReconciliationItem, error) {
	query := "SELECT " + reconciliationColumns + " FROM reconciliation_items"
	if openOnly {
		query += " WHERE resolved_at IS NULL"
	}
	query += " ORDER BY created_at"

	items := []models.ReconciliationItem{}
	err := sqlx.SelectContext(ctx, q.ext, &items, query)
	return items, err
}

// LockReconciliationItem reads a queue row FOR UPDATE
func (q *queries) LockReconciliationItem(ctx context.Context, id uuid.UUID) (*models.ReconciliationItem, error) {
	var r models.ReconciliationItem
	err := sqlx.GetContext(ctx, q.ext, &r,
		"SELECT "+reconciliationColumns+" FROM reconciliation_items WHERE id = $1 FOR UPDATE", id)
	if err != nil {
		return nil, notFound(err, "Reconciliation item")
	}
	return &r, nil
}

// ResolveReconciliationItem records who closed the item and how
func (q *queries) ResolveReconciliationItem(ctx context.Context, r *models.ReconciliationItem) error {
	res, err := q.ext.ExecContext(ctx, `
		UPDATE reconciliation_items SET resolved_at = $1, resolved_by = $2, resolution_note = $3
		WHERE id = $4`,
		r.ResolvedAt, r.ResolvedBy, r.ResolutionNote, r.ID)
	if err != nil {
		return err
	}
	return expectOne(res, "Reconciliation item")
}
