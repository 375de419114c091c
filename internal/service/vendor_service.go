package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"marketplace-service/internal/apperr"
	"marketplace-service/internal/models"
	"marketplace-service/internal/store"
	"marketplace-service/internal/util"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const recentSalesLimit = 10

// VendorService manages vendors, their dashboard and payouts
type VendorService struct {
	store          store.Store
	eventPublisher EventPublisher
	defaultRate    decimal.Decimal
	timeouts       Timeouts
	logger         *zap.Logger
	now            func() time.Time
}

// NewVendorService creates a new vendor service
func NewVendorService(st store.Store, eventPublisher EventPublisher, defaultRate decimal.Decimal, timeouts Timeouts) *VendorService {
	return &VendorService{
		store:          st,
		eventPublisher: eventPublisher,
		defaultRate:    defaultRate,
		timeouts:       timeouts,
		logger:         util.GetLogger(),
		now:            time.Now,
	}
}

// VendorInput is the vendor-editable profile
type VendorInput struct {
	StoreName        string           `json:"store_name" binding:"required,max=255"`
	StoreDescription string           `json:"store_description"`
	StoreLogo        *models.ImageRef `json:"store_logo"`
	BusinessEmail    string           `json:"business_email" binding:"required,email"`
	BusinessPhone    string           `json:"business_phone"`
	BusinessAddress  string           `json:"business_address"`
}

func (in VendorInput) apply(v *models.Vendor) {
	v.StoreName = strings.TrimSpace(in.StoreName)
	v.StoreDescription = in.StoreDescription
	v.StoreLogo = models.NullImage{Image: in.StoreLogo}
	v.BusinessEmail = in.BusinessEmail
	v.BusinessPhone = in.BusinessPhone
	v.BusinessAddress = in.BusinessAddress
}

// Register creates a pending vendor for the user
func (s *VendorService) Register(ctx context.Context, userID uuid.UUID, in VendorInput) (*models.Vendor, error) {
	ctx, span := util.StartSpan(ctx, "VendorService.Register", "user_id", userID.String())
	defer span.End()

	if strings.TrimSpace(in.StoreName) == "" {
		return nil, apperr.Validation("Store name is required")
	}

	v := &models.Vendor{
		UserID:          userID,
		CommissionRate:  s.defaultRate,
		TotalSales:      decimal.Zero,
		TotalCommission: decimal.Zero,
		PendingBalance:  decimal.Zero,
		PaidBalance:     decimal.Zero,
		Status:          models.VendorStatusPending,
	}
	in.apply(v)

	ctx, cancel := s.timeouts.query(ctx)
	defer cancel()

	if err := s.store.CreateVendor(ctx, v); err != nil {
		return nil, err
	}

	s.logger.Info("Vendor registered", zap.String("vendor_id", v.ID.String()), zap.String("user_id", userID.String()))
	return v, nil
}

// GetMine returns the caller's vendor profile
func (s *VendorService) GetMine(ctx context.Context, userID uuid.UUID) (*models.Vendor, error) {
	ctx, cancel := s.timeouts.query(ctx)
	defer cancel()
	return s.store.GetVendorByUser(ctx, userID)
}

// UpdateProfile rewrites the caller's profile. Balances, rate and status are untouched.
func (s *VendorService) UpdateProfile(ctx context.Context, userID uuid.UUID, in VendorInput) (*models.Vendor, error) {
	ctx, cancel := s.timeouts.query(ctx)
	defer cancel()

	v, err := s.store.GetVendorByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	in.apply(v)
	if v.StoreName == "" {
		return nil, apperr.Validation("Store name is required")
	}

	if err := s.store.UpdateVendorProfile(ctx, v); err != nil {
		return nil, err
	}
	return s.store.GetVendor(ctx, v.ID)
}

// DashboardStats aggregates the caller's sales figures
func (s *VendorService) DashboardStats(ctx context.Context, userID uuid.UUID) (*models.VendorStats, error) {
	ctx, span := util.StartSpan(ctx, "VendorService.DashboardStats", "user_id", userID.String())
	defer span.End()

	ctx, cancel := s.timeouts.query(ctx)
	defer cancel()

	v, err := s.store.GetVendorByUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	monthStart := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)

	stats, err := s.store.VendorStats(ctx, v.ID, monthStart)
	if err != nil {
		return nil, err
	}
	stats.RecentSales, err = s.store.ListRecentSales(ctx, v.ID, recentSalesLimit)
	if err != nil {
		return nil, err
	}
	return stats, nil
}

// RequestPayout reserves amount from the vendor's pending balance
func (s *VendorService) RequestPayout(ctx context.Context, userID uuid.UUID, amount decimal.Decimal, method, notes string) (*models.VendorPayout, error) {
	ctx, span := util.StartSpan(ctx, "VendorService.RequestPayout", "user_id", userID.String())
	defer span.End()

	amount = util.RoundMoney(amount)
	if !amount.IsPositive() {
		return nil, apperr.Validation("Amount must be greater than 0")
	}
	if strings.TrimSpace(method) == "" {
		return nil, apperr.Validation("Payment method is required")
	}

	ctx, cancel := s.timeouts.tx(ctx)
	defer cancel()

	var payout *models.VendorPayout
	var vendor *models.Vendor
	err := s.store.WithTx(ctx, func(q store.Queries) error {
		v, err := q.GetVendorByUser(ctx, userID)
		if err != nil {
			return err
		}
		if v.Status != models.VendorStatusActive {
			return apperr.Forbidden("Only active vendors can request payouts")
		}

		v, err = q.LockVendor(ctx, v.ID)
		if err != nil {
			return err
		}
		if amount.GreaterThan(v.PendingBalance) {
			return apperr.Conflict("Insufficient balance")
		}

		payout = &models.VendorPayout{
			VendorID:      v.ID,
			Amount:        amount,
			PaymentMethod: method,
			Notes:         notes,
			Status:        models.PayoutStatusPending,
		}
		if err := q.CreatePayout(ctx, payout); err != nil {
			return err
		}
		vendor = v
		return q.AdjustVendorBalances(ctx, v.ID, store.BalanceDelta{Pending: amount.Neg()})
	})
	if err != nil {
		util.SpanError(span, err)
		return nil, err
	}

	util.PayoutsTotal.WithLabelValues(models.PayoutStatusPending).Inc()
	s.logger.Info("Payout requested",
		zap.String("payout_id", payout.ID.String()),
		zap.String("vendor_id", vendor.ID.String()),
		zap.String("amount", amount.StringFixed(2)))

	s.publishPayout(ctx, models.EventTypePayoutRequested, vendor, payout)
	return payout, nil
}

// ListPayouts lists the caller's payouts
func (s *VendorService) ListPayouts(ctx context.Context, userID uuid.UUID) ([]models.VendorPayout, error) {
	ctx, cancel := s.timeouts.query(ctx)
	defer cancel()

	v, err := s.store.GetVendorByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	return s.store.ListPayouts(ctx, v.ID)
}

// ProcessPayoutInput is the admin decision on a payout
type ProcessPayoutInput struct {
	Status        string `json:"status" binding:"required,oneof=processing completed failed"`
	TransactionID string `json:"transaction_id"`
	Notes         string `json:"notes"`
}

// ProcessPayout moves a payout forward. Completing it credits paid_balance
// and tags the oldest pending sales that fit in the amount; failing it returns
// the amount to pending_balance.
func (s *VendorService) ProcessPayout(ctx context.Context, adminID, payoutID uuid.UUID, in ProcessPayoutInput) (*models.VendorPayout, error) {
	ctx, span := util.StartSpan(ctx, "VendorService.ProcessPayout", "payout_id", payoutID.String())
	defer span.End()

	switch in.Status {
	case models.PayoutStatusProcessing, models.PayoutStatusCompleted, models.PayoutStatusFailed:
	default:
		return nil, apperr.Validation("Status must be processing, completed or failed")
	}

	ctx, cancel := s.timeouts.tx(ctx)
	defer cancel()

	var payout *models.VendorPayout
	var vendor *models.Vendor
	err := s.store.WithTx(ctx, func(q store.Queries) error {
		p, err := q.LockPayout(ctx, payoutID)
		if err != nil {
			return err
		}
		if p.Terminal() {
			return apperr.Conflict(fmt.Sprintf("Payout is already %s", p.Status))
		}

		v, err := q.LockVendor(ctx, p.VendorID)
		if err != nil {
			return err
		}

		switch in.Status {
		case models.PayoutStatusCompleted:
			if err := q.AdjustVendorBalances(ctx, v.ID, store.BalanceDelta{Paid: p.Amount}); err != nil {
				return err
			}
			if err := s.settleSales(ctx, q, v.ID, p); err != nil {
				return err
			}
		case models.PayoutStatusFailed:
			if err := q.AdjustVendorBalances(ctx, v.ID, store.BalanceDelta{Pending: p.Amount}); err != nil {
				return err
			}
		}

		now := s.now().UTC()
		p.Status = in.Status
		if in.TransactionID != "" {
			p.TransactionID = in.TransactionID
		}
		if in.Notes != "" {
			p.Notes = in.Notes
		}
		p.ProcessedAt = &now
		p.ProcessedBy = &adminID
		if err := q.UpdatePayout(ctx, p); err != nil {
			return err
		}

		payout, vendor = p, v
		return nil
	})
	if err != nil {
		util.SpanError(span, err)
		return nil, err
	}

	util.PayoutsTotal.WithLabelValues(payout.Status).Inc()
	s.logger.Info("Payout processed",
		zap.String("payout_id", payout.ID.String()),
		zap.String("status", payout.Status),
		zap.String("admin_id", adminID.String()))

	s.publishPayout(ctx, models.EventTypePayoutProcessed, vendor, payout)
	return payout, nil
}

// settleSales marks pending sales paid in sale-date order while their running
// earnings stay within the payout amount.
func (s *VendorService) settleSales(ctx context.Context, q store.Queries, vendorID uuid.UUID, p *models.VendorPayout) error {
	sales, err := q.ListPendingSales(ctx, vendorID)
	if err != nil {
		return err
	}

	ids := make([]uuid.UUID, 0, len(sales))
	cumulative := decimal.Zero
	for _, sale := range sales {
		next := cumulative.Add(sale.VendorEarnings)
		if next.GreaterThan(p.Amount) {
			break
		}
		cumulative = next
		ids = append(ids, sale.ID)
	}

	return q.MarkSalesPaid(ctx, ids, p.ID)
}

// ListVendors lists vendors for admins, optionally by status
func (s *VendorService) ListVendors(ctx context.Context, status string) ([]models.Vendor, error) {
	if status != "" && !validVendorStatus(status) {
		return nil, apperr.Validation("Invalid vendor status")
	}
	ctx, cancel := s.timeouts.query(ctx)
	defer cancel()
	return s.store.ListVendors(ctx, status)
}

// VendorStatusInput is the admin decision on a vendor
type VendorStatusInput struct {
	Status         string           `json:"status" binding:"required,oneof=pending active suspended rejected"`
	CommissionRate *decimal.Decimal `json:"commission_rate"`
}

// UpdateStatus approves, suspends or rejects a vendor and optionally sets its rate
func (s *VendorService) UpdateStatus(ctx context.Context, adminID, vendorID uuid.UUID, in VendorStatusInput) (*models.Vendor, error) {
	ctx, span := util.StartSpan(ctx, "VendorService.UpdateStatus", "vendor_id", vendorID.String())
	defer span.End()

	if !validVendorStatus(in.Status) {
		return nil, apperr.Validation("Invalid vendor status")
	}
	if in.CommissionRate != nil && (in.CommissionRate.IsNegative() || in.CommissionRate.GreaterThan(hundred)) {
		return nil, apperr.Validation("Commission rate must be between 0 and 100")
	}

	ctx, cancel := s.timeouts.tx(ctx)
	defer cancel()

	var vendor *models.Vendor
	err := s.store.WithTx(ctx, func(q store.Queries) error {
		v, err := q.LockVendor(ctx, vendorID)
		if err != nil {
			return err
		}

		v.Status = in.Status
		if in.CommissionRate != nil {
			v.CommissionRate = util.RoundMoney(*in.CommissionRate)
		}
		if in.Status == models.VendorStatusActive {
			now := s.now().UTC()
			v.ApprovedBy = &adminID
			v.ApprovedAt = &now
		}

		if err := q.UpdateVendorStatus(ctx, v); err != nil {
			return err
		}
		vendor = v
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Vendor status updated",
		zap.String("vendor_id", vendor.ID.String()),
		zap.String("status", vendor.Status),
		zap.String("admin_id", adminID.String()))

	if s.eventPublisher != nil {
		pctx, cancel := detached()
		defer cancel()
		if err := s.eventPublisher.PublishVendorStatusChanged(pctx, &models.VendorStatusChangedEvent{
			BaseEvent:   models.NewBaseEvent(models.EventTypeVendorStatusChanged),
			VendorID:    vendor.ID,
			VendorEmail: vendor.BusinessEmail,
			StoreName:   vendor.StoreName,
			Status:      vendor.Status,
		}); err != nil {
			s.logger.Error("Failed to publish VendorStatusChanged event", zap.Error(err))
		}
	}

	return vendor, nil
}

// StorePage is the public view of an active vendor
type StorePage struct {
	Vendor   *models.Vendor   `json:"vendor"`
	Products []models.Product `json:"products"`
	Total    int              `json:"total"`
}

// Store returns an active vendor and its products
func (s *VendorService) Store(ctx context.Context, vendorID uuid.UUID, limit, offset int) (*StorePage, error) {
	ctx, cancel := s.timeouts.query(ctx)
	defer cancel()

	v, err := s.store.GetVendor(ctx, vendorID)
	if err != nil {
		return nil, err
	}
	if v.Status != models.VendorStatusActive {
		return nil, apperr.NotFound("Vendor not found")
	}

	products, total, err := s.store.ListProducts(ctx, store.ProductFilter{VendorID: &v.ID, Limit: limit, Offset: offset})
	if err != nil {
		return nil, err
	}
	return &StorePage{Vendor: v, Products: products, Total: total}, nil
}

func validVendorStatus(status string) bool {
	switch status {
	case models.VendorStatusPending, models.VendorStatusActive, models.VendorStatusSuspended, models.VendorStatusRejected:
		return true
	}
	return false
}

func (s *VendorService) publishPayout(ctx context.Context, eventType string, v *models.Vendor, p *models.VendorPayout) {
	if s.eventPublisher == nil {
		return
	}
	pctx, cancel := detached()
	defer cancel()

	if err := s.eventPublisher.PublishPayout(pctx, &models.PayoutEvent{
		BaseEvent:   models.NewBaseEvent(eventType),
		PayoutID:    p.ID,
		VendorID:    v.ID,
		VendorEmail: v.BusinessEmail,
		StoreName:   v.StoreName,
		Amount:      p.Amount,
		Status:      p.Status,
	}); err != nil {
		s.logger.Error("Failed to publish payout event", zap.Error(err))
	}
}
