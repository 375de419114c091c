package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

type resolveRequest struct {
	Note string `json:"note" binding:"required"`
}

// listReconciliation lists open items; ?all=true includes resolved ones
func (h *Handler) listReconciliation(c *gin.Context) {
	items, err := h.reconciliation.List(c.Request.Context(), c.Query("all") != "true")
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, gin.H{"items": items})
}

func (h *Handler) resolveReconciliation(c *gin.Context) {
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	var req resolveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	item, err := h.reconciliation.Resolve(c.Request.Context(), callerFrom(c).UserID, id, req.Note)
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, gin.H{"item": item})
}
