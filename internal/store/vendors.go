package store

import (
	"context"
	"time"

	"marketplace-service/internal/models"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

const vendorColumns = `id, user_id, store_name, store_description, store_logo, business_email, business_phone,
	business_address, commission_rate, total_sales, total_commission, pending_balance, paid_balance, status,
	approved_by, approved_at, created_at`

const saleColumns = `id, vendor_id, order_id, order_item_id, product_id, quantity, sale_amount, commission_rate,
	commission_amount, vendor_earnings, payout_status, payout_id, sale_date`

const payoutColumns = `id, vendor_id, amount, payment_method, transaction_id, notes, status, requested_at,
	processed_at, processed_by`

// CreateVendor registers a vendor; one per user
func (q *queries) CreateVendor(ctx context.Context, v *models.Vendor) error {
	if v.ID == uuid.Nil {
		v.ID = uuid.New()
	}
	err := q.ext.QueryRowxContext(ctx, `
		INSERT INTO vendors (id, user_id, store_name, store_description, store_logo, business_email,
			business_phone, business_address, commission_rate, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING created_at`,
		v.ID, v.UserID, v.StoreName, v.StoreDescription, v.StoreLogo, v.BusinessEmail,
		v.BusinessPhone, v.BusinessAddress, v.CommissionRate, v.Status,
	).Scan(&v.CreatedAt)
	return duplicate(err, "You are already registered as a vendor")
}

// UpdateVendorProfile rewrites the vendor-editable profile fields only
func (q *queries) UpdateVendorProfile(ctx context.Context, v *models.Vendor) error {
	res, err := q.ext.ExecContext(ctx, `
		UPDATE vendors
		SET store_name = $1, store_description = $2, store_logo = $3, business_email = $4,
			business_phone = $5, business_address = $6
		WHERE id = $7`,
		v.StoreName, v.StoreDescription, v.StoreLogo, v.BusinessEmail, v.BusinessPhone, v.BusinessAddress, v.ID)
	if err != nil {
		return err
	}
	return expectOne(res, "Vendor")
}

// UpdateVendorStatus writes the admin-controlled fields
func (q *queries) UpdateVendorStatus(ctx context.Context, v *models.Vendor) error {
	res, err := q.ext.ExecContext(ctx, `
		UPDATE vendors SET status = $1, commission_rate = $2, approved_by = $3, approved_at = $4
		WHERE id = $5`,
		v.Status, v.CommissionRate, v.ApprovedBy, v.ApprovedAt, v.ID)
	if err != nil {
		return err
	}
	return expectOne(res, "Vendor")
}

// GetVendor retrieves a vendor by ID
func (q *queries) GetVendor(ctx context.Context, id uuid.UUID) (*models.Vendor, error) {
	var v models.Vendor
	err := sqlx.GetContext(ctx, q.ext, &v, "SELECT "+vendorColumns+" FROM vendors WHERE id = $1", id)
	if err != nil {
		return nil, notFound(err, "Vendor")
	}
	return &v, nil
}

// GetVendorByUser retrieves the vendor owned by a user
func (q *queries) GetVendorByUser(ctx context.Context, userID uuid.UUID) (*models.Vendor, error) {
	var v models.Vendor
	err := sqlx.GetContext(ctx, q.ext, &v, "SELECT "+vendorColumns+" FROM vendors WHERE user_id = $1", userID)
	if err != nil {
		return nil, notFound(err, "Vendor")
	}
	return &v, nil
}

// LockVendor reads a vendor row FOR UPDATE
func (q *queries) LockVendor(ctx context.Context, id uuid.UUID) (*models.Vendor, error) {
	var v models.Vendor
	err := sqlx.GetContext(ctx, q.ext, &v, "SELECT "+vendorColumns+" FROM vendors WHERE id = $1 FOR UPDATE", id)
	if err != nil {
		return nil, notFound(err, "Vendor")
	}
	return &v, nil
}

// ListVendors lists vendors, optionally filtered by status
func (q *queries) ListVendors(ctx context.Context, status string) ([]models.Vendor, error) {
	vendors := []models.Vendor{}
	var err error
	if status == "" {
		err = sqlx.SelectContext(ctx, q.ext, &vendors,
			"SELECT "+vendorColumns+" FROM vendors ORDER BY created_at DESC")
	} else {
		err = sqlx.SelectContext(ctx, q.ext, &vendors,
			"SELECT "+vendorColumns+" FROM vendors WHERE status = $1 ORDER BY created_at DESC", status)
	}
	return vendors, err
}

// AdjustVendorBalances adds the deltas to the running totals
func (q *queries) AdjustVendorBalances(ctx context.Context, id uuid.UUID, d BalanceDelta) error {
	res, err := q.ext.ExecContext(ctx, `
		UPDATE vendors
		SET pending_balance = pending_balance + $1, paid_balance = paid_balance + $2,
			total_sales = total_sales + $3, total_commission = total_commission + $4
		WHERE id = $5`,
		d.Pending, d.Paid, d.Sales, d.Commission, id)
	if err != nil {
		return err
	}
	return expectOne(res, "Vendor")
}

// CreateVendorSale inserts an immutable commission split row
func (q *queries) CreateVendorSale(ctx context.Context, s *models.VendorSale) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	err := q.ext.QueryRowxContext(ctx, `
		INSERT INTO vendor_sales (id, vendor_id, order_id, order_item_id, product_id, quantity, sale_amount,
			commission_rate, commission_amount, vendor_earnings, payout_status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING sale_date`,
		s.ID, s.VendorID, s.OrderID, s.OrderItemID, s.ProductID, s.Quantity, s.SaleAmount,
		s.CommissionRate, s.CommissionAmount, s.VendorEarnings, s.PayoutStatus,
	).Scan(&s.SaleDate)
	return duplicate(err, "Sale already recorded for this order item")
}

// ListPendingSales returns the vendor's unpaid sales, oldest first
func (q *queries) ListPendingSales(ctx context.Context, vendorID uuid.UUID) ([]models.VendorSale, error) {
	sales := []models.VendorSale{}
	err := sqlx.SelectContext(ctx, q.ext, &sales,
		"SELECT "+saleColumns+" FROM vendor_sales WHERE vendor_id = $1 AND payout_status = 'pending' ORDER BY sale_date, id",
		vendorID)
	return sales, err
}

// ListSalesByOrder returns every vendor sale recorded for an order
func (q *queries) ListSalesByOrder(ctx context.Context, orderID uuid.UUID) ([]models.VendorSale, error) {
	sales := []models.VendorSale{}
	err := sqlx.SelectContext(ctx, q.ext, &sales,
		"SELECT "+saleColumns+" FROM vendor_sales WHERE order_id = $1 ORDER BY sale_date, id", orderID)
	return sales, err
}

// ListRecentSales returns the latest sales of a vendor
func (q *queries) ListRecentSales(ctx context.Context, vendorID uuid.UUID, limit int) ([]models.VendorSale, error) {
	sales := []models.VendorSale{}
	err := sqlx.SelectContext(ctx, q.ext, &sales,
		"SELECT "+saleColumns+" FROM vendor_sales WHERE vendor_id = $1 ORDER BY sale_date DESC LIMIT $2",
		vendorID, limit)
	return sales, err
}

// MarkSalesPaid tags the given pending sales with a payout
func (q *queries) MarkSalesPaid(ctx context.Context, ids []uuid.UUID, payoutID uuid.UUID) error {
	if len(ids) == 0 {
		return nil
	}
	query, args, err := sqlx.In(
		"UPDATE vendor_sales SET payout_status = 'paid', payout_id = ? WHERE payout_status = 'pending' AND id IN (?)",
		payoutID, ids)
	if err != nil {
		return err
	}
	_, err = q.ext.ExecContext(ctx, q.ext.Rebind(query), args...)
	return err
}

// VendorStats aggregates the vendor dashboard figures
func (q *queries) VendorStats(ctx context.Context, vendorID uuid.UUID, monthStart time.Time) (*models.VendorStats, error) {
	var stats models.VendorStats
	err := sqlx.GetContext(ctx, q.ext, &stats, `
		SELECT
			(SELECT COUNT(*) FROM products WHERE vendor_id = v.id) AS total_products,
			(SELECT COUNT(DISTINCT order_id) FROM vendor_sales WHERE vendor_id = v.id) AS total_orders,
			v.total_sales,
			v.pending_balance,
			v.paid_balance,
			(SELECT COALESCE(SUM(vendor_earnings), 0) FROM vendor_sales
				WHERE vendor_id = v.id AND sale_date >= $2) AS this_month_sales
		FROM vendors v WHERE v.id = $1`, vendorID, monthStart)
	if err != nil {
		return nil, notFound(err, "Vendor")
	}
	return &stats, nil
}

// CreatePayout inserts a payout request
func (q *queries) CreatePayout(ctx context.Context, p *models.VendorPayout) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return q.ext.QueryRowxContext(ctx, `
		INSERT INTO vendor_payouts (id, vendor_id, amount, payment_method, notes, status)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING requested_at`,
		p.ID, p.VendorID, p.Amount, p.PaymentMethod, p.Notes, p.Status,
	).Scan(&p.RequestedAt)
}

// GetPayout retrieves a payout by ID
func (q *queries) GetPayout(ctx context.Context, id uuid.UUID) (*models.VendorPayout, error) {
	var p models.VendorPayout
	err := sqlx.GetContext(ctx, q.ext, &p, "SELECT "+payoutColumns+" FROM vendor_payouts WHERE id = $1", id)
	if err != nil {
		return nil, notFound(err, "Payout")
	}
	return &p, nil
}

// LockPayout reads a payout row FOR UPDATE
func (q *queries) LockPayout(ctx context.Context, id uuid.UUID) (*models.VendorPayout, error) {
	var p models.VendorPayout
	err := sqlx.GetContext(ctx, q.ext, &p,
		"SELECT "+payoutColumns+" FROM vendor_payouts WHERE id = $1 FOR UPDATE", id)
	if err != nil {
		return nil, notFound(err, "Payout")
	}
	return &p, nil
}

// UpdatePayout writes the processing outcome of a payout
func (q *queries) UpdatePayout(ctx context.Context, p *models.VendorPayout) error {
	res, err := q.ext.ExecContext(ctx, `
		UPDATE vendor_payouts
		SET status = $1, transaction_id = $2, notes = $3, processed_at = $4, processed_by = $5
		WHERE id = $6`,
		p.Status, p.TransactionID, p.Notes, p.ProcessedAt, p.ProcessedBy, p.ID)
	if err != nil {
		return err
	}
	return expectOne(res, "Payout")
}

// ListPayouts lists a vendor's payouts, newest first
func (q *queries) ListPayouts(ctx context.Context, vendorID uuid.UUID) ([]models.VendorPayout, error) {
	payouts := []models.VendorPayout{}
	err := sqlx.SelectContext(ctx, q.ext, &payouts,
		"SELECT "+payoutColumns+" FROM vendor_payouts WHERE vendor_id = $1 ORDER BY requested_at DESC", vendorID)
	return payouts, err
}
