package api

import (
	"net/http"
	"strconv"

	"marketplace-service/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

type payoutRequest struct {
	Amount        decimal.Decimal `json:"amount"`
	PaymentMethod string          `json:"payment_method" binding:"required"`
	Notes         string          `json:"notes"`
}

func (h *Handler) registerVendor(c *gin.Context) {
	var in service.VendorInput
	if err := c.ShouldBindJSON(&in); err != nil {
		respondBindError(c, err)
		return
	}

	vendor, err := h.vendors.Register(c.Request.Context(), callerFrom(c).UserID, in)
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusCreated, gin.H{"vendor": vendor})
}

func (h *Handler) myVendor(c *gin.Context) {
	vendor, err := h.vendors.GetMine(c.Request.Context(), callerFrom(c).UserID)
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, gin.H{"vendor": vendor})
}

func (h *Handler) updateVendor(c *gin.Context) {
	var in service.VendorInput
	if err := c.ShouldBindJSON(&in); err != nil {
		respondBindError(c, err)
		return
	}

	vendor, err := h.vendors.UpdateProfile(c.Request.Context(), callerFrom(c).UserID, in)
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, gin.H{"vendor": vendor})
}

func (h *Handler) vendorDashboard(c *gin.Context) {
	stats, err := h.vendors.DashboardStats(c.Request.Context(), callerFrom(c).UserID)
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, gin.H{"stats": stats})
}

func (h *Handler) requestPayout(c *gin.Context) {
	var req payoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	payout, err := h.vendors.RequestPayout(c.Request.Context(), callerFrom(c).UserID, req.Amount, req.PaymentMethod, req.Notes)
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusCreated, gin.H{"payout": payout})
}

func (h *Handler) vendorPayouts(c *gin.Context) {
	payouts, err := h.vendors.ListPayouts(c.Request.Context(), callerFrom(c).UserID)
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, gin.H{"payouts": payouts})
}

func (h *Handler) listVendors(c *gin.Context) {
	vendors, err := h.vendors.ListVendors(c.Request.Context(), c.Query("status"))
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, gin.H{"vendors": vendors})
}

func (h *Handler) updateVendorStatus(c *gin.Context) {
	id, ok := uuidParam(c, "vendorId")
	if !ok {
		return
	}
	var in service.VendorStatusInput
	if err := c.ShouldBindJSON(&in); err != nil {
		respondBindError(c, err)
		return
	}

	vendor, err := h.vendors.UpdateStatus(c.Request.Context(), callerFrom(c).UserID, id, in)
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, gin.H{"vendor": vendor})
}

func (h *Handler) processPayout(c *gin.Context) {
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	var in service.ProcessPayoutInput
	if err := c.ShouldBindJSON(&in); err != nil {
		respondBindError(c, err)
		return
	}

	payout, err := h.vendors.ProcessPayout(c.Request.Context(), callerFrom(c).UserID, id, in)
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, gin.H{"payout": payout})
}

func (h *Handler) vendorStore(c *gin.Context) {
	id, ok := uuidParam(c, "vendorId")
	if !ok {
		return
	}
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))

	page, err := h.vendors.Store(c.Request.Context(), id, limit, offset)
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, gin.H{"vendor": page.Vendor, "products": page.Products, "total": page.Total})
}
