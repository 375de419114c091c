package api

import (
	"net/http"

	"marketplace-service/internal/apperr"
	"marketplace-service/internal/models"
	"marketplace-service/internal/service"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// orderView adds the derived status to an order
type orderView struct {
	*models.Order
	Status string `json:"status"`
}

func viewOrder(o *models.Order) orderView {
	return orderView{Order: o, Status: o.Status()}
}

// checkout handles order creation
func (h *Handler) checkout(c *gin.Context) {
	var req service.CheckoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}
	req.IdempotencyKey = c.GetHeader("Idempotency-Key")

	caller := callerFrom(c)
	resp, err := h.orders.Checkout(c.Request.Context(), caller.UserID, &req)
	if err != nil {
		respondError(c, err)
		return
	}

	status := http.StatusCreated
	if resp.Replayed {
		status = http.StatusOK
	}
	respond(c, status, gin.H{
		"order":         viewOrder(resp.Order),
		"payment":       resp.Payment,
		"client_secret": resp.ClientSecret,
		"replayed":      resp.Replayed,
	})
}

// myOrders lists the caller's orders
func (h *Handler) myOrders(c *gin.Context) {
	orders, err := h.orders.ListMyOrders(c.Request.Context(), callerFrom(c).UserID)
	if err != nil {
		respondError(c, err)
		return
	}

	views := make([]orderView, 0, len(orders))
	for i := range orders {
		views = append(views, viewOrder(&orders[i]))
	}
	respond(c, http.StatusOK, gin.H{"orders": views})
}

// getOrder handles get order by ID
func (h *Handler) getOrder(c *gin.Context) {
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}

	order, payment, err := h.orders.GetOrder(c.Request.Context(), id, callerFrom(c))
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, gin.H{"order": viewOrder(order), "payment": payment})
}

// paymentWebhook receives signed gateway events. The raw body is verified
// before it is decoded.
func (h *Handler) paymentWebhook(c *gin.Context) {
	payload, err := c.GetRawData()
	if err != nil {
		respondError(c, apperr.Validation("Unable to read request body"))
		return
	}

	result, err := h.payments.HandleWebhook(c.Request.Context(), payload, c.GetHeader(h.signatureHeader))
	if err != nil {
		if apperr.Is(err, apperr.KindSignatureInvalid) {
			h.logger.Warn("Rejected webhook with invalid signature",
				zap.String("client_ip", c.ClientIP()),
				zap.String("reason", apperr.Message(err)))
		}
		respondError(c, err)
		return
	}

	respond(c, http.StatusOK, gin.H{"received": true, "result": result})
}
