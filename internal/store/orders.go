package store

import (
	"context"
	"time"

	"marketplace-service/internal/apperr"
	"marketplace-service/internal/models"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

const orderColumns = `id, buyer_id, coupon_id, coupon_code, subtotal, discount, total, paid_at,
	ship_full_name, ship_email, ship_phone, ship_address, ship_city, ship_state, ship_country, ship_postal_code,
	created_at`

const paymentColumns = `id, order_id, intent_id, amount, currency, status, created_at, updated_at`

// CreateOrder creates a new order and its items
func (q *queries) CreateOrder(ctx context.Context, order *models.Order) error {
	if order.ID == uuid.Nil {
		order.ID = uuid.New()
	}
	query := `
		INSERT INTO orders (id, buyer_id, coupon_id, coupon_code, subtotal, discount, total,
			ship_full_name, ship_email, ship_phone, ship_address, ship_city, ship_state, ship_country, ship_postal_code)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
		RETURNING created_at`

	s := order.ShippingInfo
	err := q.ext.QueryRowxContext(ctx, query,
		order.ID, order.BuyerID, order.CouponID, order.CouponCode, order.Subtotal, order.Discount, order.Total,
		s.FullName, s.Email, s.Phone, s.Address, s.City, s.State, s.Country, s.PostalCode,
	).Scan(&order.CreatedAt)
	if err != nil {
		return err
	}

	for i := range order.Items {
		item := &order.Items[i]
		if item.ID == uuid.Nil {
			item.ID = uuid.New()
		}
		item.OrderID = order.ID

		_, err := q.ext.ExecContext(ctx, `
			INSERT INTO order_items (id, order_id, product_id, variant_id, vendor_id, product_name, quantity, unit_price)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
			item.ID, item.OrderID, item.ProductID, item.VariantID, item.VendorID, item.ProductName, item.Quantity, item.UnitPrice)
		if err != nil {
			return err
		}
	}
	return nil
}

// GetOrder retrieves an order with its items
func (q *queries) GetOrder(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	return q.loadOrder(ctx, "SELECT "+orderColumns+" FROM orders WHERE id = $1", id)
}

// LockOrder reads an order row FOR UPDATE
func (q *queries) LockOrder(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	return q.loadOrder(ctx, "SELECT "+orderColumns+" FROM orders WHERE id = $1 FOR UPDATE", id)
}

func (q *queries) loadOrder(ctx context.Context, query string, id uuid.UUID) (*models.Order, error) {
	var order models.Order
	if err := sqlx.GetContext(ctx, q.ext, &order, query, id); err != nil {
		return nil, notFound(err, "Order")
	}

	items, err := q.orderItems(ctx, id)
	if err != nil {
		return nil, err
	}
	order.Items = items
	return &order, nil
}

func (q *queries) orderItems(ctx context.Context, orderID uuid.UUID) ([]models.OrderItem, error) {
	items := []models.OrderItem{}
	err := sqlx.SelectContext(ctx, q.ext, &items, `
		SELECT id, order_id, product_id, variant_id, vendor_id, product_name, quantity, unit_price
		FROM order_items WHERE order_id = $1 ORDER BY product_id, variant_id`, orderID)
	return items, err
}

// ListOrdersByBuyer retrieves orders for a buyer, newest first
func (q *queries) ListOrdersByBuyer(ctx context.Context, buyerID uuid.UUID) ([]models.Order, error) {
	orders := []models.Order{}
	err := sqlx.SelectContext(ctx, q.ext, &orders,
		"SELECT "+orderColumns+" FROM orders WHERE buyer_id = $1 ORDER BY created_at DESC", buyerID)
	if err != nil {
		return nil, err
	}

	for i := range orders {
		items, err := q.orderItems(ctx, orders[i].ID)
		if err != nil {
			return nil, err
		}
		orders[i].Items = items
	}
	return orders, nil
}

// MarkOrderPaid stamps paid_at if it is still unset
func (q *queries) MarkOrderPaid(ctx context.Context, id uuid.UUID, at time.Time) error {
	res, err := q.ext.ExecContext(ctx,
		"UPDATE orders SET paid_at = $1 WHERE id = $2 AND paid_at IS NULL", at, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return apperr.Conflict("Order is already paid")
	}
	return nil
}

// CreatePayment creates a new payment record
func (q *queries) CreatePayment(ctx context.Context, payment *models.Payment) error {
	if payment.ID == uuid.Nil {
		payment.ID = uuid.New()
	}
	query := `
		INSERT INTO payments (id, order_id, intent_id, amount, currency, status)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at, updated_at`

	err := q.ext.QueryRowxContext(ctx, query,
		payment.ID, payment.OrderID, payment.IntentID, payment.Amount, payment.Currency, payment.Status,
	).Scan(&payment.CreatedAt, &payment.UpdatedAt)
	return duplicate(err, "Payment already exists for this order")
}

// GetPaymentByOrder retrieves the payment for an order
func (q *queries) GetPaymentByOrder(ctx context.Context, orderID uuid.UUID) (*models.Payment, error) {
	var payment models.Payment
	err := sqlx.GetContext(ctx, q.ext, &payment,
		"SELECT "+paymentColumns+" FROM payments WHERE order_id = $1", orderID)
	if err != nil {
		return nil, notFound(err, "Payment")
	}
	return &payment, nil
}

// LockPaymentByIntent reads a payment by gateway intent id FOR UPDATE
func (q *queries) LockPaymentByIntent(ctx context.Context, intentID string) (*models.Payment, error) {
	var payment models.Payment
	err := sqlx.GetContext(ctx, q.ext, &payment,
		"SELECT "+paymentColumns+" FROM payments WHERE intent_id = $1 FOR UPDATE", intentID)
	if err != nil {
		return nil, notFound(err, "Payment")
	}
	return &payment, nil
}

// UpdatePaymentStatus updates payment status
func (q *queries) UpdatePaymentStatus(ctx context.Context, id uuid.UUID, status string) error {
	res, err := q.ext.ExecContext(ctx,
		"UPDATE payments SET status = $1, updated_at = NOW() WHERE id = $2", status, id)
	if err != nil {
		return err
	}
	return expectOne(res, "Payment")
}
