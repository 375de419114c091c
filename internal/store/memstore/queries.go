package memstore

import (
	"context"
	"sort"
	"strings"
	"time"

	"marketplace-service/internal/apperr"
	"marketplace-service/internal/models"
	"marketplace-service/internal/store"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type queries struct {
	s    *Store
	d    *dataset
	inTx bool
}

func (q *queries) lock() func() {
	if q.inTx {
		return func() {}
	}
	q.s.mu.Lock()
	return q.s.mu.Unlock
}

func (q *queries) write(op string) error {
	q.s.writes.Add(1)
	return q.s.failures[op]
}

func newID(id *uuid.UUID) {
	if *id == uuid.Nil {
		*id = uuid.New()
	}
}

func sameID(a, b *uuid.UUID) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

// catalog

func (q *queries) CreateProduct(ctx context.Context, p *models.Product) error {
	defer q.lock()()
	if err := q.write("CreateProduct"); err != nil {
		return err
	}
	newID(&p.ID)
	p.CreatedAt = q.s.now()
	p.UpdatedAt = p.CreatedAt
	if p.Images == nil {
		p.Images = models.Images{}
	}
	q.d.products[p.ID] = *p
	return nil
}

func (q *queries) UpdateProduct(ctx context.Context, p *models.Product) error {
	defer q.lock()()
	if err := q.write("UpdateProduct"); err != nil {
		return err
	}
	old, ok := q.d.products[p.ID]
	if !ok {
		return apperr.NotFound("Product not found")
	}
	p.CreatedAt = old.CreatedAt
	p.Ratings = old.Ratings
	p.UpdatedAt = q.s.now()
	q.d.products[p.ID] = *p
	return nil
}

func (q *queries) DeleteProduct(ctx context.Context, id uuid.UUID) error {
	defer q.lock()()
	if err := q.write("DeleteProduct"); err != nil {
		return err
	}
	if _, ok := q.d.products[id]; !ok {
		return apperr.NotFound("Product not found")
	}
	if q.productOrdered(id) {
		return apperr.Conflict("Product has orders")
	}
	delete(q.d.products, id)
	for vid, v := range q.d.variants {
		if v.ProductID == id {
			delete(q.d.variants, vid)
		}
	}
	for wid, w := range q.d.wishlist {
		if w.ProductID == id {
			delete(q.d.wishlist, wid)
		}
	}
	for rid, r := range q.d.reviews {
		if r.ProductID == id {
			delete(q.d.reviews, rid)
		}
	}
	return nil
}

func (q *queries) GetProduct(ctx context.Context, id uuid.UUID) (*models.Product, error) {
	defer q.lock()()
	p, ok := q.d.products[id]
	if !ok {
		return nil, apperr.NotFound("Product not found")
	}
	return &p, nil
}

func (q *queries) GetProductsByIDs(ctx context.Context, ids []uuid.UUID) ([]models.Product, error) {
	defer q.lock()()
	out := []models.Product{}
	seen := map[uuid.UUID]bool{}
	for _, id := range ids {
		if p, ok := q.d.products[id]; ok && !seen[id] {
			seen[id] = true
			out = append(out, p)
		}
	}
	return out, nil
}

func (q *queries) ListProducts(ctx context.Context, f store.ProductFilter) ([]models.Product, int, error) {
	defer q.lock()()
	f = f.Normalize()
	search := strings.ToLower(f.Search)

	matched := []models.Product{}
	for _, p := range q.d.products {
		if f.Category != "" && p.Category != f.Category {
			continue
		}
		if search != "" && !strings.Contains(strings.ToLower(p.Name), search) &&
			!strings.Contains(strings.ToLower(p.Description), search) {
			continue
		}
		if f.VendorID != nil && !sameID(p.VendorID, f.VendorID) {
			continue
		}
		matched = append(matched, p)
	}
	sort.Slice(matched, func(i, j int) bool { return matched[i].CreatedAt.After(matched[j].CreatedAt) })

	total := len(matched)
	if f.Offset >= total {
		return []models.Product{}, total, nil
	}
	end := f.Offset + f.Limit
	if end > total {
		end = total
	}
	return matched[f.Offset:end], total, nil
}

func (q *queries) ListCategories(ctx context.Context) ([]string, error) {
	defer q.lock()()
	set := map[string]bool{}
	for _, p := range q.d.products {
		set[p.Category] = true
	}
	out := make([]string, 0, len(set))
	for c := range set {
		out = append(out, c)
	}
	sort.Strings(out)
	return out, nil
}

func (q *queries) LockProduct(ctx context.Context, id uuid.UUID) (*models.Product, error) {
	return q.GetProduct(ctx, id)
}

func (q *queries) SetProductStock(ctx context.Context, id uuid.UUID, stock int) error {
	defer q.lock()()
	if err := q.write("SetProductStock"); err != nil {
		return err
	}
	p, ok := q.d.products[id]
	if !ok {
		return apperr.NotFound("Product not found")
	}
	if stock < 0 {
		return apperr.Validation("stock must not be negative")
	}
	p.Stock = stock
	p.UpdatedAt = q.s.now()
	q.d.products[id] = p
	return nil
}

func (q *queries) variantClash(v *models.Variant) bool {
	for _, other := range q.d.variants {
		if other.ID == v.ID {
			continue
		}
		if other.SKU == v.SKU {
			return true
		}
		if other.ProductID == v.ProductID && other.Size == v.Size && other.Color == v.Color {
			return true
		}
	}
	return false
}

func (q *queries) CreateVariant(ctx context.Context, v *models.Variant) error {
	defer q.lock()()
	if err := q.write("CreateVariant"); err != nil {
		return err
	}
	newID(&v.ID)
	if q.variantClash(v) {
		return apperr.Duplicate("Variant with this SKU or size/color already exists")
	}
	v.CreatedAt = q.s.now()
	v.UpdatedAt = v.CreatedAt
	if v.Images == nil {
		v.Images = models.Images{}
	}
	q.d.variants[v.ID] = *v
	return nil
}

func (q *queries) UpdateVariant(ctx context.Context, v *models.Variant) error {
	defer q.lock()()
	if err := q.write("UpdateVariant"); err != nil {
		return err
	}
	old, ok := q.d.variants[v.ID]
	if !ok {
		return apperr.NotFound("Variant not found")
	}
	if q.variantClash(v) {
		return apperr.Duplicate("Variant with this SKU or size/color already exists")
	}
	v.CreatedAt = old.CreatedAt
	v.UpdatedAt = q.s.now()
	q.d.variants[v.ID] = *v
	return nil
}

func (q *queries) DeleteVariant(ctx context.Context, id uuid.UUID) error {
	defer q.lock()()
	if err := q.write("DeleteVariant"); err != nil {
		return err
	}
	if _, ok := q.d.variants[id]; !ok {
		return apperr.NotFound("Variant not found")
	}
	if q.variantOrdered(id) {
		return apperr.Conflict("Variant has orders")
	}
	delete(q.d.variants, id)
	return nil
}

// productOrdered mirrors the RESTRICT foreign keys from order_items and
// vendor_sales, including order lines of the product's variants.
func (q *queries) productOrdered(id uuid.UUID) bool {
	for _, o := range q.d.orders {
		for _, it := range o.Items {
			if it.ProductID == id {
				return true
			}
			if it.VariantID != nil {
				if v, ok := q.d.variants[*it.VariantID]; ok && v.ProductID == id {
					return true
				}
			}
		}
	}
	for _, sale := range q.d.sales {
		if sale.ProductID == id {
			return true
		}
	}
	return false
}

func (q *queries) variantOrdered(id uuid.UUID) bool {
	for _, o := range q.d.orders {
		for _, it := range o.Items {
			if sameID(it.VariantID, &id) {
				return true
			}
		}
	}
	return false
}

func (q *queries) GetVariant(ctx context.Context, id uuid.UUID) (*models.Variant, error) {
	defer q.lock()()
	v, ok := q.d.variants[id]
	if !ok {
		return nil, apperr.NotFound("Variant not found")
	}
	return &v, nil
}

func (q *queries) ListVariants(ctx context.Context, productID uuid.UUID, f store.VariantFilter) ([]models.Variant, error) {
	defer q.lock()()
	out := []models.Variant{}
	for _, v := range q.d.variants {
		if v.ProductID != productID {
			continue
		}
		if f.Size != "" && v.Size != f.Size {
			continue
		}
		if f.Color != "" && v.Color != f.Color {
			continue
		}
		out = append(out, v)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].IsDefault != out[j].IsDefault {
			return out[i].IsDefault
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

func (q *queries) ClearDefaultVariants(ctx context.Context, productID, keep uuid.UUID) error {
	defer q.lock()()
	if err := q.write("ClearDefaultVariants"); err != nil {
		return err
	}
	for id, v := range q.d.variants {
		if v.ProductID == productID && id != keep && v.IsDefault {
			v.IsDefault = false
			q.d.variants[id] = v
		}
	}
	return nil
}

func (q *queries) LockVariant(ctx context.Context, id uuid.UUID) (*models.Variant, error) {
	return q.GetVariant(ctx, id)
}

func (q *queries) SetVariantStock(ctx context.Context, id uuid.UUID, stock int) error {
	defer q.lock()()
	if err := q.write("SetVariantStock"); err != nil {
		return err
	}
	v, ok := q.d.variants[id]
	if !ok {
		return apperr.NotFound("Variant not found")
	}
	if stock < 0 {
		return apperr.Validation("stock must not be negative")
	}
	v.Stock = stock
	v.UpdatedAt = q.s.now()
	q.d.variants[id] = v
	return nil
}

// orders

func (q *queries) CreateOrder(ctx context.Context, o *models.Order) error {
	defer q.lock()()
	if err := q.write("CreateOrder"); err != nil {
		return err
	}
	newID(&o.ID)
	o.CreatedAt = q.s.now()
	items := make([]models.OrderItem, len(o.Items))
	for i := range o.Items {
		newID(&o.Items[i].ID)
		o.Items[i].OrderID = o.ID
		items[i] = o.Items[i]
	}
	stored := *o
	stored.Items = items
	q.d.orders[o.ID] = stored
	return nil
}

func (q *queries) copyOrder(o models.Order) *models.Order {
	items := make([]models.OrderItem, len(o.Items))
	copy(items, o.Items)
	sort.Slice(items, func(i, j int) bool {
		return items[i].ProductID.String() < items[j].ProductID.String()
	})
	o.Items = items
	return &o
}

func (q *queries) GetOrder(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	defer q.lock()()
	o, ok := q.d.orders[id]
	if !ok {
		return nil, apperr.NotFound("Order not found")
	}
	return q.copyOrder(o), nil
}

func (q *queries) LockOrder(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	return q.GetOrder(ctx, id)
}

func (q *queries) ListOrdersByBuyer(ctx context.Context, buyerID uuid.UUID) ([]models.Order, error) {
	defer q.lock()()
	out := []models.Order{}
	for _, o := range q.d.orders {
		if o.BuyerID == buyerID {
			out = append(out, *q.copyOrder(o))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (q *queries) MarkOrderPaid(ctx context.Context, id uuid.UUID, at time.Time) error {
	defer q.lock()()
	if err := q.write("MarkOrderPaid"); err != nil {
		return err
	}
	o, ok := q.d.orders[id]
	if !ok {
		return apperr.NotFound("Order not found")
	}
	if o.PaidAt != nil {
		return apperr.Conflict("Order is already paid")
	}
	o.PaidAt = &at
	q.d.orders[id] = o
	return nil
}

func (q *queries) CreatePayment(ctx context.Context, p *models.Payment) error {
	defer q.lock()()
	if err := q.write("CreatePayment"); err != nil {
		return err
	}
	newID(&p.ID)
	for _, other := range q.d.payments {
		if other.OrderID == p.OrderID || other.IntentID == p.IntentID {
			return apperr.Duplicate("Payment already exists for this order")
		}
	}
	p.CreatedAt = q.s.now()
	p.UpdatedAt = p.CreatedAt
	q.d.payments[p.ID] = *p
	return nil
}

func (q *queries) GetPaymentByOrder(ctx context.Context, orderID uuid.UUID) (*models.Payment, error) {
	defer q.lock()()
	for _, p := range q.d.payments {
		if p.OrderID == orderID {
			return &p, nil
		}
	}
	return nil, apperr.NotFound("Payment not found")
}

func (q *queries) LockPaymentByIntent(ctx context.Context, intentID string) (*models.Payment, error) {
	defer q.lock()()
	for _, p := range q.d.payments {
		if p.IntentID == intentID {
			return &p, nil
		}
	}
	return nil, apperr.NotFound("Payment not found")
}

func (q *queries) UpdatePaymentStatus(ctx context.Context, id uuid.UUID, status string) error {
	defer q.lock()()
	if err := q.write("UpdatePaymentStatus"); err != nil {
		return err
	}
	p, ok := q.d.payments[id]
	if !ok {
		return apperr.NotFound("Payment not found")
	}
	p.Status = status
	p.UpdatedAt = q.s.now()
	q.d.payments[id] = p
	return nil
}

// coupons

func (q *queries) codeTaken(c *models.Coupon) bool {
	for _, other := range q.d.coupons {
		if other.ID != c.ID && other.Code == c.Code {
			return true
		}
	}
	return false
}

func (q *queries) CreateCoupon(ctx context.Context, c *models.Coupon) error {
	defer q.lock()()
	if err := q.write("CreateCoupon"); err != nil {
		return err
	}
	newID(&c.ID)
	c.Code = strings.ToUpper(c.Code)
	if q.codeTaken(c) {
		return apperr.Duplicate("Coupon code already exists")
	}
	c.CreatedAt = q.s.now()
	q.d.coupons[c.ID] = *c
	return nil
}

func (q *queries) UpdateCoupon(ctx context.Context, c *models.Coupon) error {
	defer q.lock()()
	if err := q.write("UpdateCoupon"); err != nil {
		return err
	}
	old, ok := q.d.coupons[c.ID]
	if !ok {
		return apperr.NotFound("Coupon not found")
	}
	c.Code = strings.ToUpper(c.Code)
	if q.codeTaken(c) {
		return apperr.Duplicate("Coupon code already exists")
	}
	c.UsedCount = old.UsedCount
	c.CreatedAt = old.CreatedAt
	c.CreatedBy = old.CreatedBy
	q.d.coupons[c.ID] = *c
	return nil
}

func (q *queries) DeleteCoupon(ctx context.Context, id uuid.UUID) error {
	defer q.lock()()
	if err := q.write("DeleteCoupon"); err != nil {
		return err
	}
	if _, ok := q.d.coupons[id]; !ok {
		return apperr.NotFound("Coupon not found")
	}
	delete(q.d.coupons, id)
	for uid, u := range q.d.usages {
		if u.CouponID == id {
			delete(q.d.usages, uid)
		}
	}
	return nil
}

func (q *queries) GetCoupon(ctx context.Context, id uuid.UUID) (*models.Coupon, error) {
	defer q.lock()()
	c, ok := q.d.coupons[id]
	if !ok {
		return nil, apperr.NotFound("Coupon not found")
	}
	return &c, nil
}

func (q *queries) GetCouponByCode(ctx context.Context, code string) (*models.Coupon, error) {
	defer q.lock()()
	code = strings.ToUpper(strings.TrimSpace(code))
	for _, c := range q.d.coupons {
		if c.Code == code {
			return &c, nil
		}
	}
	return nil, apperr.NotFound("Coupon not found")
}

func (q *queries) LockCoupon(ctx context.Context, id uuid.UUID) (*models.Coupon, error) {
	return q.GetCoupon(ctx, id)
}

func (q *queries) ListCoupons(ctx context.Context) ([]models.Coupon, error) {
	defer q.lock()()
	out := []models.Coupon{}
	for _, c := range q.d.coupons {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (q *queries) ListAvailableCoupons(ctx context.Context, at time.Time) ([]models.Coupon, error) {
	defer q.lock()()
	out := []models.Coupon{}
	for _, c := range q.d.coupons {
		if c.Usable(at) && !c.Exhausted() {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ValidUntil.Before(out[j].ValidUntil) })
	return out, nil
}

func (q *queries) IncrementCouponUsage(ctx context.Context, id uuid.UUID) error {
	defer q.lock()()
	if err := q.write("IncrementCouponUsage"); err != nil {
		return err
	}
	c, ok := q.d.coupons[id]
	if !ok {
		return apperr.NotFound("Coupon not found")
	}
	c.UsedCount++
	q.d.coupons[id] = c
	return nil
}

func (q *queries) HasRedeemedCoupon(ctx context.Context, couponID, userID uuid.UUID) (bool, error) {
	defer q.lock()()
	for _, u := range q.d.usages {
		if u.CouponID == couponID && u.UserID == userID {
			return true, nil
		}
	}
	return false, nil
}

func (q *queries) CreateCouponUsage(ctx context.Context, u *models.CouponUsage) error {
	defer q.lock()()
	if err := q.write("CreateCouponUsage"); err != nil {
		return err
	}
	newID(&u.ID)
	for _, other := range q.d.usages {
		if other.CouponID == u.CouponID && other.UserID == u.UserID && other.OrderID == u.OrderID {
			return apperr.Duplicate("Coupon already used for this order")
		}
	}
	u.UsedAt = q.s.now()
	q.d.usages[u.ID] = *u
	return nil
}

// vendors

func (q *queries) CreateVendor(ctx context.Context, v *models.Vendor) error {
	defer q.lock()()
	if err := q.write("CreateVendor"); err != nil {
		return err
	}
	newID(&v.ID)
	for _, other := range q.d.vendors {
		if other.UserID == v.UserID {
			return apperr.Duplicate("You are already registered as a vendor")
		}
	}
	v.CreatedAt = q.s.now()
	q.d.vendors[v.ID] = *v
	return nil
}

func (q *queries) UpdateVendorProfile(ctx context.Context, v *models.Vendor) error {
	defer q.lock()()
	if err := q.write("UpdateVendorProfile"); err != nil {
		return err
	}
	cur, ok := q.d.vendors[v.ID]
	if !ok {
		return apperr.NotFound("Vendor not found")
	}
	cur.StoreName = v.StoreName
	cur.StoreDescription = v.StoreDescription
	cur.StoreLogo = v.StoreLogo
	cur.BusinessEmail = v.BusinessEmail
	cur.BusinessPhone = v.BusinessPhone
	cur.BusinessAddress = v.BusinessAddress
	q.d.vendors[v.ID] = cur
	return nil
}

func (q *queries) UpdateVendorStatus(ctx context.Context, v *models.Vendor) error {
	defer q.lock()()
	if err := q.write("UpdateVendorStatus"); err != nil {
		return err
	}
	cur, ok := q.d.vendors[v.ID]
	if !ok {
		return apperr.NotFound("Vendor not found")
	}
	cur.Status = v.Status
	cur.CommissionRate = v.CommissionRate
	cur.ApprovedBy = v.ApprovedBy
	cur.ApprovedAt = v.ApprovedAt
	q.d.vendors[v.ID] = cur
	return nil
}

func (q *queries) GetVendor(ctx context.Context, id uuid.UUID) (*models.Vendor, error) {
	defer q.lock()()
	v, ok := q.d.vendors[id]
	if !ok {
		return nil, apperr.NotFound("Vendor not found")
	}
	return &v, nil
}

func (q *queries) GetVendorByUser(ctx context.Context, userID uuid.UUID) (*models.Vendor, error) {
	defer q.lock()()
	for _, v := range q.d.vendors {
		if v.UserID == userID {
			return &v, nil
		}
	}
	return nil, apperr.NotFound("Vendor not found")
}

func (q *queries) LockVendor(ctx context.Context, id uuid.UUID) (*models.Vendor, error) {
	return q.GetVendor(ctx, id)
}

func (q *queries) ListVendors(ctx context.Context, status string) ([]models.Vendor, error) {
	defer q.lock()()
	out := []models.Vendor{}
	for _, v := range q.d.vendors {
		if status == "" || v.Status == status {
			out = append(out, v)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (q *queries) AdjustVendorBalances(ctx context.Context, id uuid.UUID, d store.BalanceDelta) error {
	defer q.lock()()
	if err := q.write("AdjustVendorBalances"); err != nil {
		return err
	}
	v, ok := q.d.vendors[id]
	if !ok {
		return apperr.NotFound("Vendor not found")
	}
	pending := v.PendingBalance.Add(d.Pending)
	if pending.IsNegative() {
		return apperr.Conflict("pending balance must not be negative")
	}
	v.PendingBalance = pending
	v.PaidBalance = v.PaidBalance.Add(d.Paid)
	v.TotalSales = v.TotalSales.Add(d.Sales)
	v.TotalCommission = v.TotalCommission.Add(d.Commission)
	q.d.vendors[id] = v
	return nil
}

func (q *queries) CreateVendorSale(ctx context.Context, s *models.VendorSale) error {
	defer q.lock()()
	if err := q.write("CreateVendorSale"); err != nil {
		return err
	}
	newID(&s.ID)
	for _, other := range q.d.sales {
		if other.OrderItemID == s.OrderItemID && other.VendorID == s.VendorID {
			return apperr.Duplicate("Sale already recorded for this order item")
		}
	}
	s.SaleDate = q.s.now()
	q.d.sales[s.ID] = *s
	return nil
}

func sortSales(sales []models.VendorSale) {
	sort.Slice(sales, func(i, j int) bool {
		if !sales[i].SaleDate.Equal(sales[j].SaleDate) {
			return sales[i].SaleDate.Before(sales[j].SaleDate)
		}
		return sales[i].ID.String() < sales[j].ID.String()
	})
}

func (q *queries) ListPendingSales(ctx context.Context, vendorID uuid.UUID) ([]models.VendorSale, error) {
	defer q.lock()()
	out := []models.VendorSale{}
	for _, s := range q.d.sales {
		if s.VendorID == vendorID && s.PayoutStatus == models.SalePayoutPending {
			out = append(out, s)
		}
	}
	sortSales(out)
	return out, nil
}

func (q *queries) ListSalesByOrder(ctx context.Context, orderID uuid.UUID) ([]models.VendorSale, error) {
	defer q.lock()()
	out := []models.VendorSale{}
	for _, s := range q.d.sales {
		if s.OrderID == orderID {
			out = append(out, s)
		}
	}
	sortSales(out)
	return out, nil
}

func (q *queries) ListRecentSales(ctx context.Context, vendorID uuid.UUID, limit int) ([]models.VendorSale, error) {
	defer q.lock()()
	out := []models.VendorSale{}
	for _, s := range q.d.sales {
		if s.VendorID == vendorID {
			out = append(out, s)
		}
	}
	sortSales(out)
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (q *queries) MarkSalesPaid(ctx context.Context, ids []uuid.UUID, payoutID uuid.UUID) error {
	defer q.lock()()
	if err := q.write("MarkSalesPaid"); err != nil {
		return err
	}
	for _, id := range ids {
		s, ok := q.d.sales[id]
		if !ok || s.PayoutStatus != models.SalePayoutPending {
			continue
		}
		pid := payoutID
		s.PayoutStatus = models.SalePayoutPaid
		s.PayoutID = &pid
		q.d.sales[id] = s
	}
	return nil
}

func (q *queries) VendorStats(ctx context.Context, vendorID uuid.UUID, monthStart time.Time) (*models.VendorStats, error) {
	defer q.lock()()
	v, ok := q.d.vendors[vendorID]
	if !ok {
		return nil, apperr.NotFound("Vendor not found")
	}
	stats := &models.VendorStats{
		TotalSales:     v.TotalSales,
		PendingBalance: v.PendingBalance,
		PaidBalance:    v.PaidBalance,
		ThisMonthSales: decimal.Zero,
	}
	for _, p := range q.d.products {
		if p.VendorID != nil && *p.VendorID == vendorID {
			stats.TotalProducts++
		}
	}
	orders := map[uuid.UUID]bool{}
	for _, s := range q.d.sales {
		if s.VendorID != vendorID {
			continue
		}
		orders[s.OrderID] = true
		if !s.SaleDate.Before(monthStart) {
			stats.ThisMonthSales = stats.ThisMonthSales.Add(s.VendorEarnings)
		}
	}
	stats.TotalOrders = len(orders)
	return stats, nil
}

func (q *queries) CreatePayout(ctx context.Context, p *models.VendorPayout) error {
	defer q.lock()()
	if err := q.write("CreatePayout"); err != nil {
		return err
	}
	newID(&p.ID)
	p.RequestedAt = q.s.now()
	q.d.payouts[p.ID] = *p
	return nil
}

func (q *queries) GetPayout(ctx context.Context, id uuid.UUID) (*models.VendorPayout, error) {
	defer q.lock()()
	p, ok := q.d.payouts[id]
	if !ok {
		return nil, apperr.NotFound("Payout not found")
	}
	return &p, nil
}

func (q *queries) LockPayout(ctx context.Context, id uuid.UUID) (*models.VendorPayout, error) {
	return q.GetPayout(ctx, id)
}

func (q *queries) UpdatePayout(ctx context.Context, p *models.VendorPayout) error {
	defer q.lock()()
	if err := q.write("UpdatePayout"); err != nil {
		return err
	}
	cur, ok := q.d.payouts[p.ID]
	if !ok {
		return apperr.NotFound("Payout not found")
	}
	cur.Status = p.Status
	cur.TransactionID = p.TransactionID
	cur.Notes = p.Notes
	cur.ProcessedAt = p.ProcessedAt
	cur.ProcessedBy = p.ProcessedBy
	q.d.payouts[p.ID] = cur
	return nil
}

func (q *queries) ListPayouts(ctx context.Context, vendorID uuid.UUID) ([]models.VendorPayout, error) {
	defer q.lock()()
	out := []models.VendorPayout{}
	for _, p := range q.d.payouts {
		if p.VendorID == vendorID {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].RequestedAt.After(out[j].RequestedAt) })
	return out, nil
}

// reconciliation

func (q *queries) CreateReconciliationItem(ctx context.Context, r *models.ReconciliationItem) error {
	defer q.lock()()
	if err := q.write("CreateReconciliationItem"); err != nil {
		return err
	}
	newID(&r.ID)
	r.CreatedAt = q.s.now()
	q.d.recon[r.ID] = *r
	return nil
}

func (q *queries) ListReconciliationItems(ctx context.Context, openOnly bool) ([]models.ReconciliationItem, error) {
	defer q.lock()()
	out := []models.ReconciliationItem{}
	for _, r := range q.d.recon {
		if openOnly && r.ResolvedAt != nil {
			continue
		}
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (q *queries) LockReconciliationItem(ctx context.Context, id uuid.UUID) (*models.ReconciliationItem, error) {
	defer q.lock()()
	r, ok := q.d.recon[id]
	if !ok {
		return nil, apperr.NotFound("Reconciliation item not found")
	}
	return &r, nil
}

func (q *queries) ResolveReconciliationItem(ctx context.Context, r *models.ReconciliationItem) error {
	defer q.lock()()
	if err := q.write("ResolveReconciliationItem"); err != nil {
		return err
	}
	cur, ok := q.d.recon[r.ID]
	if !ok {
		return apperr.NotFound("Reconciliation item not found")
	}
	cur.ResolvedAt = r.ResolvedAt
	cur.ResolvedBy = r.ResolvedBy
	cur.ResolutionNote = r.ResolutionNote
	q.d.recon[r.ID] = cur
	return nil
}

// wishlist

func (q *queries) AddWishlistItem(ctx context.Context, w *models.WishlistItem) error {
	defer q.lock()()
	if err := q.write("AddWishlistItem"); err != nil {
		return err
	}
	newID(&w.ID)
	for _, other := range q.d.wishlist {
		if other.UserID == w.UserID && other.ProductID == w.ProductID {
			return apperr.Duplicate("Product already in wishlist")
		}
	}
	w.CreatedAt = q.s.now()
	q.d.wishlist[w.ID] = *w
	return nil
}

func (q *queries) RemoveWishlistItem(ctx context.Context, userID, productID uuid.UUID) error {
	defer q.lock()()
	if err := q.write("RemoveWishlistItem"); err != nil {
		return err
	}
	for id, w := range q.d.wishlist {
		if w.UserID == userID && w.ProductID == productID {
			delete(q.d.wishlist, id)
			return nil
		}
	}
	return apperr.NotFound("Wishlist item not found")
}

func (q *queries) HasWishlistItem(ctx context.Context, userID, productID uuid.UUID) (bool, error) {
	defer q.lock()()
	for _, w := range q.d.wishlist {
		if w.UserID == userID && w.ProductID == productID {
			return true, nil
		}
	}
	return false, nil
}

func (q *queries) ListWishlist(ctx context.Context, userID uuid.UUID) ([]store.WishlistEntry, error) {
	defer q.lock()()
	out := []store.WishlistEntry{}
	for _, w := range q.d.wishlist {
		if w.UserID != userID {
			continue
		}
		p, ok := q.d.products[w.ProductID]
		if !ok {
			continue
		}
		out = append(out, store.WishlistEntry{WishlistID: w.ID, AddedAt: w.CreatedAt, Product: p})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].AddedAt.After(out[j].AddedAt) })
	return out, nil
}

func (q *queries) ClearWishlist(ctx context.Context, userID uuid.UUID) (int, error) {
	defer q.lock()()
	if err := q.write("ClearWishlist"); err != nil {
		return 0, err
	}
	n := 0
	for id, w := range q.d.wishlist {
		if w.UserID == userID {
			delete(q.d.wishlist, id)
			n++
		}
	}
	return n, nil
}
