package api

import (
	"net/http"
	"strconv"

	"marketplace-service/internal/apperr"
	"marketplace-service/internal/service"
	"marketplace-service/internal/store"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

func (h *Handler) listProducts(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))

	page, err := h.catalog.ListProducts(c.Request.Context(), store.ProductFilter{
		Category: c.Query("category"),
		Search:   c.Query("search"),
		Limit:    limit,
		Offset:   offset,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, gin.H{
		"products": page.Products,
		"total":    page.Total,
		"limit":    page.Limit,
		"offset":   page.Offset,
	})
}

func (h *Handler) listCategories(c *gin.Context) {
	categories, err := h.catalog.ListCategories(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, gin.H{"categories": categories})
}

func (h *Handler) getProduct(c *gin.Context) {
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	product, err := h.catalog.GetProduct(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, gin.H{"product": product})
}

func (h *Handler) createProduct(c *gin.Context) {
	var in service.ProductInput
	if err := c.ShouldBindJSON(&in); err != nil {
		respondBindError(c, err)
		return
	}
	product, err := h.catalog.CreateProduct(c.Request.Context(), in)
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusCreated, gin.H{"product": product})
}

func (h *Handler) updateProduct(c *gin.Context) {
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	var patch service.ProductPatch
	if err := c.ShouldBindJSON(&patch); err != nil {
		respondBindError(c, err)
		return
	}
	product, err := h.catalog.UpdateProduct(c.Request.Context(), id, patch)
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, gin.H{"product": product})
}

func (h *Handler) deleteProduct(c *gin.Context) {
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	if err := h.catalog.DeleteProduct(c.Request.Context(), id); err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, gin.H{"message": "Product deleted"})
}

func (h *Handler) listVariants(c *gin.Context) {
	id, ok := uuidParam(c, "productId")
	if !ok {
		return
	}
	variants, err := h.catalog.ListVariants(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, gin.H{"variants": variants})
}

func (h *Handler) findVariant(c *gin.Context) {
	id, ok := uuidParam(c, "productId")
	if !ok {
		return
	}
	variant, err := h.catalog.FindVariant(c.Request.Context(), id, c.Query("size"), c.Query("color"))
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, gin.H{"variant": variant})
}

func (h *Handler) getVariant(c *gin.Context) {
	id, ok := uuidParam(c, "variantId")
	if !ok {
		return
	}
	variant, err := h.catalog.GetVariant(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, gin.H{"variant": variant})
}

func (h *Handler) addVariant(c *gin.Context) {
	id, ok := uuidParam(c, "productId")
	if !ok {
		return
	}
	var in service.VariantInput
	if err := c.ShouldBindJSON(&in); err != nil {
		respondBindError(c, err)
		return
	}
	variant, err := h.catalog.AddVariant(c.Request.Context(), id, in)
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusCreated, gin.H{"variant": variant})
}

func (h *Handler) updateVariant(c *gin.Context) {
	id, ok := uuidParam(c, "variantId")
	if !ok {
		return
	}
	var patch service.VariantPatch
	if err := c.ShouldBindJSON(&patch); err != nil {
		respondBindError(c, err)
		return
	}
	variant, err := h.catalog.UpdateVariant(c.Request.Context(), id, patch)
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, gin.H{"variant": variant})
}

func (h *Handler) deleteVariant(c *gin.Context) {
	id, ok := uuidParam(c, "variantId")
	if !ok {
		return
	}
	if err := h.catalog.DeleteVariant(c.Request.Context(), id); err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, gin.H{"message": "Variant deleted"})
}

func (h *Handler) featuredProducts(c *gin.Context) {
	products, err := h.catalog.ListFeatured(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, gin.H{"products": products})
}

func (h *Handler) newArrivals(c *gin.Context) {
	products, err := h.catalog.ListNewArrivals(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, gin.H{"products": products})
}

func (h *Handler) relatedProducts(c *gin.Context) {
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	products, err := h.catalog.ListRelated(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, gin.H{"products": products})
}

func (h *Handler) listReviews(c *gin.Context) {
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	reviews, err := h.catalog.ListReviews(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, gin.H{"reviews": reviews})
}

func (h *Handler) upsertReview(c *gin.Context) {
	id, ok := uuidParam(c, "productId")
	if !ok {
		return
	}
	var in service.ReviewInput
	if err := c.ShouldBindJSON(&in); err != nil {
		respondBindError(c, err)
		return
	}
	result, err := h.catalog.UpsertReview(c.Request.Context(), callerFrom(c).UserID, id, in)
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, gin.H{"message": "Review posted", "review": result.Review, "ratings": result.Ratings})
}

func (h *Handler) deleteReview(c *gin.Context) {
	id, ok := uuidParam(c, "productId")
	if !ok {
		return
	}
	result, err := h.catalog.DeleteReview(c.Request.Context(), callerFrom(c).UserID, id)
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, gin.H{"message": "Review deleted", "ratings": result.Ratings})
}

func (h *Handler) adminProducts(c *gin.Context) {
	f := store.AdminProductFilter{
		Search:   c.Query("search"),
		Category: c.Query("category"),
		SortBy:   c.Query("sort_by"),
		Asc:      c.Query("sort_order") == "asc",
	}
	f.Page, _ = strconv.Atoi(c.DefaultQuery("page", "1"))
	f.Limit, _ = strconv.Atoi(c.DefaultQuery("limit", "10"))

	var err error
	if f.MinPrice, err = decimalQuery(c, "min_price"); err != nil {
		respondError(c, err)
		return
	}
	if f.MaxPrice, err = decimalQuery(c, "max_price"); err != nil {
		respondError(c, err)
		return
	}
	if f.MinStock, err = intQuery(c, "min_stock"); err != nil {
		respondError(c, err)
		return
	}
	if f.MaxStock, err = intQuery(c, "max_stock"); err != nil {
		respondError(c, err)
		return
	}

	page, err := h.catalog.ListProductsAdmin(c.Request.Context(), f)
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, gin.H{
		"products":    page.Products,
		"total":       page.Total,
		"page":        page.Page,
		"limit":       page.Limit,
		"total_pages": page.TotalPages,
	})
}

func (h *Handler) productStatistics(c *gin.Context) {
	stats, err := h.catalog.Statistics(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, gin.H{"statistics": stats})
}

func (h *Handler) allVariants(c *gin.Context) {
	variants, err := h.catalog.ListAllVariants(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, gin.H{"variants": variants, "count": len(variants)})
}

func (h *Handler) variantOptions(dim store.VariantDimension, key string) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := uuidParam(c, "productId")
		if !ok {
			return
		}
		options, err := h.catalog.AvailableOptions(c.Request.Context(), id, dim)
		if err != nil {
			respondError(c, err)
			return
		}
		respond(c, http.StatusOK, gin.H{key: options})
	}
}

func decimalQuery(c *gin.Context, name string) (*decimal.Decimal, error) {
	raw := c.Query(name)
	if raw == "" {
		return nil, nil
	}
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return nil, apperr.Validationf("Invalid %s", name)
	}
	return &d, nil
}

func intQuery(c *gin.Context, name string) (*int, error) {
	raw := c.Query(name)
	if raw == "" {
		return nil, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return nil, apperr.Validationf("Invalid %s", name)
	}
	return &n, nil
}
