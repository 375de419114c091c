package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

func (h *Handler) listWishlist(c *gin.Context) {
	entries, err := h.wishlist.List(c.Request.Context(), callerFrom(c).UserID)
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, gin.H{"wishlist": entries, "count": len(entries)})
}

func (h *Handler) addToWishlist(c *gin.Context) {
	id, ok := uuidParam(c, "productId")
	if !ok {
		return
	}
	added, err := h.wishlist.Add(c.Request.Context(), callerFrom(c).UserID, id)
	if err != nil {
		respondError(c, err)
		return
	}
	if !added {
		respond(c, http.StatusOK, gin.H{"message": "Product already in wishlist"})
		return
	}
	respond(c, http.StatusCreated, gin.H{"message": "Product added to wishlist"})
}

func (h *Handler) removeFromWishlist(c *gin.Context) {
	id, ok := uuidParam(c, "productId")
	if !ok {
		return
	}
	if err := h.wishlist.Remove(c.Request.Context(), callerFrom(c).UserID, id); err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, gin.H{"message": "Product removed from wishlist"})
}

func (h *Handler) checkWishlist(c *gin.Context) {
	id, ok := uuidParam(c, "productId")
	if !ok {
		return
	}
	in, err := h.wishlist.Contains(c.Request.Context(), callerFrom(c).UserID, id)
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, gin.H{"in_wishlist": in})
}

func (h *Handler) clearWishlist(c *gin.Context) {
	removed, err := h.wishlist.Clear(c.Request.Context(), callerFrom(c).UserID)
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, gin.H{"message": "Wishlist cleared", "removed": removed})
}
