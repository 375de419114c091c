package api

import (
	"net/http"

	"marketplace-service/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type validateCouponRequest struct {
	Code      string          `json:"code" binding:"required"`
	CartTotal decimal.Decimal `json:"cart_total"`
}

type recordUsageRequest struct {
	CouponID uuid.UUID       `json:"coupon_id" binding:"required"`
	OrderID  uuid.UUID       `json:"order_id" binding:"required"`
	Discount decimal.Decimal `json:"discount"`
}

func (h *Handler) validateCoupon(c *gin.Context) {
	var req validateCouponRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	quote, err := h.coupons.Validate(c.Request.Context(), callerFrom(c).UserID, req.Code, req.CartTotal)
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, gin.H{
		"coupon":         quote.Coupon,
		"discount":       quote.Discount,
		"original_total": quote.OriginalTotal,
		"final_total":    quote.FinalTotal,
	})
}

func (h *Handler) recordCouponUsage(c *gin.Context) {
	var req recordUsageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	usage, err := h.coupons.RecordUsage(c.Request.Context(), callerFrom(c).UserID, req.CouponID, req.OrderID, req.Discount)
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusCreated, gin.H{"usage": usage})
}

func (h *Handler) availableCoupons(c *gin.Context) {
	coupons, err := h.coupons.ListAvailable(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, gin.H{"coupons": coupons})
}

func (h *Handler) createCoupon(c *gin.Context) {
	var in service.CouponInput
	if err := c.ShouldBindJSON(&in); err != nil {
		respondBindError(c, err)
		return
	}

	coupon, err := h.coupons.Create(c.Request.Context(), callerFrom(c).UserID, in)
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusCreated, gin.H{"coupon": coupon})
}

func (h *Handler) listCoupons(c *gin.Context) {
	coupons, err := h.coupons.List(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, gin.H{"coupons": coupons})
}

func (h *Handler) updateCoupon(c *gin.Context) {
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	var patch service.CouponPatch
	if err := c.ShouldBindJSON(&patch); err != nil {
		respondBindError(c, err)
		return
	}

	coupon, err := h.coupons.Update(c.Request.Context(), id, patch)
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, gin.H{"coupon": coupon})
}

func (h *Handler) deleteCoupon(c *gin.Context) {
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	if err := h.coupons.Delete(c.Request.Context(), id); err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, gin.H{"message": "Coupon deleted"})
}
