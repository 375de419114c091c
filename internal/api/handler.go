package api

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"marketplace-service/internal/models"
	"marketplace-service/internal/service"
	"marketplace-service/internal/store"
	"marketplace-service/internal/util"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// Pinger reports whether a dependency is reachable
type Pinger interface {
	Ping(ctx context.Context) error
}

// Services are the use cases exposed over HTTP
type Services struct {
	Orders         *service.OrderService
	Payments       *service.PaymentService
	Coupons        *service.CouponService
	Vendors        *service.VendorService
	Catalog        *service.CatalogService
	Wishlist       *service.WishlistService
	Reconciliation *service.ReconciliationService
	Database       Pinger
}

// Options configures the HTTP surface
type Options struct {
	JWTSecret       string
	SignatureHeader string
	AllowedOrigins  []string
}

// Handler contains HTTP handlers
type Handler struct {
	orders         *service.OrderService
	payments       *service.PaymentService
	coupons        *service.CouponService
	vendors        *service.VendorService
	catalog        *service.CatalogService
	wishlist       *service.WishlistService
	reconciliation *service.ReconciliationService
	database       Pinger

	jwtSecret       []byte
	signatureHeader string
	allowedOrigins  []string
	logger          *zap.Logger
}

// NewHandler creates a new HTTP handler
func NewHandler(svc Services, opts Options) *Handler {
	if opts.SignatureHeader == "" {
		opts.SignatureHeader = "Stripe-Signature"
	}
	return &Handler{
		orders:          svc.Orders,
		payments:        svc.Payments,
		coupons:         svc.Coupons,
		vendors:         svc.Vendors,
		catalog:         svc.Catalog,
		wishlist:        svc.Wishlist,
		reconciliation:  svc.Reconciliation,
		database:        svc.Database,
		jwtSecret:       []byte(opts.JWTSecret),
		signatureHeader: opts.SignatureHeader,
		allowedOrigins:  opts.AllowedOrigins,
		logger:          util.GetLogger(),
	}
}

// SetupRoutes sets up HTTP routes
func (h *Handler) SetupRoutes(router *gin.Engine) {
	router.Use(gin.Recovery())
	router.Use(cors.New(h.corsConfig()))
	router.Use(prometheusMiddleware())
	router.Use(accessLog(h.logger))

	router.GET("/health", h.healthCheck)
	router.GET("/ready", h.readinessCheck)

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := router.Group("/api/v1")

	// The gateway authenticates with its signature, not a bearer token.
	v1.POST("/payment/webhook", h.paymentWebhook)

	public := v1.Group("")
	{
		public.GET("/product/all", h.listProducts)
		public.GET("/product/categories", h.listCategories)
		public.GET("/product/featured", h.featuredProducts)
		public.GET("/product/new-arrivals", h.newArrivals)
		public.GET("/product/:id", h.getProduct)
		public.GET("/product/:id/related", h.relatedProducts)
		public.GET("/product/:id/reviews", h.listReviews)

		public.GET("/variant/product/:productId", h.listVariants)
		public.GET("/variant/find/:productId", h.findVariant)
		public.GET("/variant/sizes/:productId", h.variantOptions(store.DimensionSize, "sizes"))
		public.GET("/variant/colors/:productId", h.variantOptions(store.DimensionColor, "colors"))
		public.GET("/variant/:variantId", h.getVariant)

		public.GET("/vendor/store/:vendorId", h.vendorStore)
	}

	authed := v1.Group("", h.authMiddleware())
	{
		authed.POST("/order/checkout", h.checkout)
		authed.GET("/order/me", h.myOrders)
		authed.GET("/order/:id", h.getOrder)

		authed.POST("/coupon/validate", h.validateCoupon)
		authed.POST("/coupon/record-usage", h.recordCouponUsage)
		authed.GET("/coupon/available", h.availableCoupons)

		authed.POST("/vendor/register", h.registerVendor)
		authed.GET("/vendor/me", h.myVendor)
		authed.PUT("/vendor/update", h.updateVendor)
		authed.GET("/vendor/dashboard-stats", h.vendorDashboard)
		authed.POST("/vendor/request-payout", h.requestPayout)
		authed.GET("/vendor/payouts", h.vendorPayouts)

		authed.GET("/wishlist", h.listWishlist)
		authed.POST("/wishlist/add/:productId", h.addToWishlist)
		authed.DELETE("/wishlist/remove/:productId", h.removeFromWishlist)
		authed.GET("/wishlist/check/:productId", h.checkWishlist)
		authed.DELETE("/wishlist/clear", h.clearWishlist)

		authed.PUT("/product/review/:productId", h.upsertReview)
		authed.DELETE("/product/review/:productId", h.deleteReview)
	}

	admin := v1.Group("", h.authMiddleware(), requireRole(models.RoleAdmin))
	{
		admin.POST("/coupon/admin/create", h.createCoupon)
		admin.GET("/coupon/admin/all", h.listCoupons)
		admin.PUT("/coupon/admin/update/:id", h.updateCoupon)
		admin.DELETE("/coupon/admin/delete/:id", h.deleteCoupon)

		admin.GET("/vendor/admin/all", h.listVendors)
		admin.PUT("/vendor/admin/update-status/:vendorId", h.updateVendorStatus)
		admin.PUT("/vendor/admin/process-payout/:id", h.processPayout)

		admin.POST("/product/admin/create", h.createProduct)
		admin.PUT("/product/admin/update/:id", h.updateProduct)
		admin.DELETE("/product/admin/delete/:id", h.deleteProduct)
		admin.GET("/product/admin/all", h.adminProducts)
		admin.GET("/product/admin/statistics", h.productStatistics)

		admin.GET("/variant/admin/all", h.allVariants)
		admin.POST("/variant/admin/add/:productId", h.addVariant)
		admin.PUT("/variant/admin/update/:variantId", h.updateVariant)
		admin.DELETE("/variant/admin/delete/:variantId", h.deleteVariant)

		admin.GET("/admin/reconciliation", h.listReconciliation)
		admin.PUT("/admin/reconciliation/:id/resolve", h.resolveReconciliation)
	}
}

func (h *Handler) corsConfig() cors.Config {
	cfg := cors.Config{
		AllowMethods:  []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type", "Authorization", "Idempotency-Key"},
		ExposeHeaders: []string{"Content-Length"},
		MaxAge:        12 * time.Hour,
	}

	var origins []string
	for _, o := range h.allowedOrigins {
		o = strings.TrimSpace(o)
		if o == "*" {
			cfg.AllowAllOrigins = true
			return cfg
		}
		if o != "" {
			origins = append(origins, o)
		}
	}
	if len(origins) == 0 {
		cfg.AllowAllOrigins = true
		return cfg
	}
	cfg.AllowOrigins = origins
	cfg.AllowCredentials = true
	return cfg
}

// healthCheck handles health check requests
func (h *Handler) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "healthy",
		"time":   time.Now().Unix(),
	})
}

// readinessCheck reports ready only while the database answers
func (h *Handler) readinessCheck(c *gin.Context) {
	if h.database != nil {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()
		if err := h.database.Ping(ctx); err != nil {
			h.logger.Warn("Readiness check failed", zap.Error(err))
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status": "unavailable",
				"time":   time.Now().Unix(),
			})
			return
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"status": "ready",
		"time":   time.Now().Unix(),
	})
}

// prometheusMiddleware collects HTTP metrics
func prometheusMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(c.Writer.Status())
		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}

		util.HTTPRequestDuration.WithLabelValues(c.Request.Method, path, status).Observe(duration)
		util.HTTPRequestsTotal.WithLabelValues(c.Request.Method, path, status).Inc()
	}
}

// accessLog writes one structured line per request
func accessLog(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		if raw := c.Request.URL.RawQuery; raw != "" {
			path = path + "?" + raw
		}

		c.Next()

		logger.Info("HTTP request",
			zap.Int("status", c.Writer.Status()),
			zap.String("method", c.Request.Method),
			zap.String("path", path),
			zap.String("client_ip", c.ClientIP()),
			zap.Duration("latency", time.Since(start)),
		)
	}
}
