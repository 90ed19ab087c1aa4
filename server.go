package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"bitbucket.org/ovenworks/bakehouse_backend/config"
	"bitbucket.org/ovenworks/bakehouse_backend/middlewares"
	"bitbucket.org/ovenworks/bakehouse_backend/models"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

const defaultPort = "8080"

// RateLimiter is a simple fixed-window limiter backed by redis.
type RateLimiter struct {
	client *redis.Client
	limit  int64
	window time.Duration
}

func NewRateLimiter(client *redis.Client, limit int64, window time.Duration) *RateLimiter {
	return &RateLimiter{
		client: client,
		limit:  limit,
		window: window,
	}
}

func (rl *RateLimiter) RateLimitMiddleware(c *gin.Context) {
	key := "rate:" + c.ClientIP()

	exists, err := rl.client.Exists(c.Request.Context(), key).Result()
	if err != nil {
		// Redis trouble must not take the API down.
		c.Next()
		return
	}

	if exists == 0 {
		if err := rl.client.Set(c.Request.Context(), key, 1, rl.window).Err(); err != nil {
			c.Next()
			return
		}
		c.Next()
		return
	}

	count, err := rl.client.Incr(c.Request.Context(), key).Result()
	if err != nil {
		c.Next()
		return
	}

	if count > rl.limit {
		c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
			"error": fmt.Sprintf("rate limit exceeded, try again in %d seconds", int(rl.window.Seconds())),
		})
		return
	}

	c.Next()
}

func customNotFoundHandler(c *gin.Context) {
	c.JSON(http.StatusNotFound, gin.H{"error": "route not found"})
}

// customErrorLogger logs only requests that accumulated gin errors.
func customErrorLogger(logger *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) > 0 {
			logger.Error(c.Errors.String())
		}
	}
}

func splitAndTrim(csv string) []string {
	if strings.TrimSpace(csv) == "" {
		return nil
	}
	parts := strings.Split(csv, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

func registerRoutes(r *gin.Engine, conv *models.ConversionService) {
	auth := r.Group("/auth")
	{
		auth.POST("/login", loginHandler())
		auth.POST("/logout", middlewares.RequireAuth(), logoutHandler())
		auth.POST("/register", middlewares.RequireAuth(), middlewares.RequireAdmin(), registerUserHandler())
	}

	api := r.Group("/api/v1", middlewares.RequireAuth())

	units := api.Group("/units")
	{
		units.GET("", listUnitsHandler(conv))
		units.POST("", middlewares.RequireAdmin(), createUnitHandler(conv))
		units.PUT("/:id", middlewares.RequireAdmin(), updateUnitHandler(conv))
		units.DELETE("/:id", middlewares.RequireAdmin(), deleteUnitHandler(conv))
	}

	conversions := api.Group("/unit-conversions")
	{
		conversions.GET("", listUnitConversionsHandler(conv))
		conversions.POST("", middlewares.RequireAdmin(), createUnitConversionHandler(conv))
		conversions.PUT("/:id", middlewares.RequireAdmin(), updateUnitConversionHandler(conv))
		conversions.DELETE("/:id", middlewares.RequireAdmin(), deleteUnitConversionHandler(conv))
	}
	api.POST("/convert", convertQuantityHandler(conv))

	items := api.Group("/inventory-items")
	{
		items.GET("", listInventoryItemsHandler())
		items.GET("/low-stock", listLowStockHandler())
		items.GET("/:id", getInventoryItemHandler())
		items.POST("", createInventoryItemHandler())
		items.PUT("/:id", updateInventoryItemHandler())
		items.DELETE("/:id", deleteInventoryItemHandler())
		items.POST("/:id/receive", receiveStockHandler())
		items.POST("/:id/consume", consumeStockHandler())
	}
	api.GET("/stock-movements", listStockMovementsHandler())

	products := api.Group("/products")
	{
		products.GET("", listProductsHandler())
		products.GET("/:id", getProductHandler())
		products.POST("", createProductHandler())
		products.PUT("/:id", updateProductHandler())
		products.DELETE("/:id", deleteProductHandler())
		products.GET("/:id/cost", productCostHandler(conv))
		products.POST("/:id/recalculate-cost", recalculateProductCostHandler(conv))
	}

	purchases := api.Group("/purchases")
	{
		purchases.GET("", listPurchasesHandler())
		purchases.POST("", createPurchaseHandler(conv))
	}

	suppliers := api.Group("/suppliers")
	{
		suppliers.GET("", listSuppliersHandler())
		suppliers.POST("", createSupplierHandler())
		suppliers.PUT("/:id", updateSupplierHandler())
		suppliers.DELETE("/:id", deleteSupplierHandler())
	}

	categories := api.Group("/item-categories")
	{
		categories.GET("", listItemCategoriesHandler())
		categories.POST("", createItemCategoryHandler())
		categories.PUT("/:id", updateItemCategoryHandler())
		categories.DELETE("/:id", deleteItemCategoryHandler())
	}

	audit := api.Group("/audit-logs", middlewares.RequireAdmin())
	{
		audit.GET("", listAuditLogsHandler())
		audit.GET("/export", exportAuditLogsHandler())
		audit.GET("/compliance-report", complianceReportHandler())
	}
}

func main() {
	port := os.Getenv("API_PORT")
	if port == "" {
		// Cloud Run standard env var.
		port = os.Getenv("PORT")
	}
	if port == "" {
		port = defaultPort
	}

	logger := config.GetLogger()

	// Cloud Run sends SIGTERM on revision shutdown; handle it for graceful drain.
	sigCtx, stopSignals := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stopSignals()

	// Start the HTTP server ASAP so the platform considers the revision healthy.
	// Until the database is ready, app endpoints return 503.
	r := gin.New()
	r.Use(func(c *gin.Context) {
		if c.Request.URL.Path == "/healthz" {
			c.Status(http.StatusNoContent)
			c.Abort()
			return
		}
		if config.GetDB() == nil {
			c.AbortWithStatus(http.StatusServiceUnavailable)
			return
		}
		c.Next()
	})

	r.GET("/healthz", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	corsConfig := cors.DefaultConfig()
	// In production, require an explicit allowlist via CORS_ALLOWED_ORIGINS.
	allowedOrigins := strings.TrimSpace(os.Getenv("CORS_ALLOWED_ORIGINS"))
	if strings.EqualFold(strings.TrimSpace(os.Getenv("GO_ENV")), "production") {
		if allowedOrigins == "" {
			corsConfig.AllowOrigins = []string{}
		} else {
			corsConfig.AllowOrigins = splitAndTrim(allowedOrigins)
		}
	} else {
		corsConfig.AllowAllOrigins = true
	}
	corsConfig.AddAllowMethods("GET", "POST", "PUT", "DELETE", "OPTIONS")
	corsConfig.AddAllowHeaders("Origin", "Content-Type", "Authorization", "X-Correlation-Id")
	corsConfig.AddExposeHeaders("Content-Length", "Content-Disposition", "X-Correlation-Id")
	corsConfig.AllowCredentials = true
	r.Use(cors.New(corsConfig))

	// Optional rate limiting.
	// Env: RATE_LIMIT_ENABLED, RATE_LIMIT_WINDOW_SECONDS, RATE_LIMIT_MAX_REQUESTS.
	if strings.EqualFold(strings.TrimSpace(os.Getenv("RATE_LIMIT_ENABLED")), "true") {
		client := redis.NewClient(&redis.Options{Addr: os.Getenv("REDIS_ADDRESS")})
		limit := int64(600)
		if v := strings.TrimSpace(os.Getenv("RATE_LIMIT_MAX_REQUESTS")); v != "" {
			if n, err := strconv.ParseInt(v, 10, 64); err == nil && n > 0 {
				limit = n
			}
		}
		windowSec := int64(60)
		if v := strings.TrimSpace(os.Getenv("RATE_LIMIT_WINDOW_SECONDS")); v != "" {
			if n, err := strconv.ParseInt(v, 10, 64); err == nil && n > 0 {
				windowSec = n
			}
		}
		rateLimiter := NewRateLimiter(client, limit, time.Duration(windowSec)*time.Second)
		r.Use(rateLimiter.RateLimitMiddleware)
	}

	r.Use(middlewares.SessionMiddleware())
	r.Use(middlewares.AuthMiddleware())
	r.Use(customErrorLogger(logger))
	r.Use(gin.Recovery())

	conv := models.NewConversionService(10 * time.Minute)
	registerRoutes(r, conv)
	r.NoRoute(customNotFoundHandler)

	srv := &http.Server{
		Addr:    ":" + port,
		Handler: r,
	}
	serverErrCh := make(chan error, 1)
	go func() {
		// ListenAndServe returns http.ErrServerClosed on graceful shutdown.
		serverErrCh <- srv.ListenAndServe()
	}()

	// Connect dependencies after the port is open.
	config.ConnectDatabaseWithRetry()
	config.ConnectRedisWithRetry()

	db := config.GetDB()
	sqlDB, _ := db.DB()
	defer func() {
		if sqlDB != nil {
			_ = sqlDB.Close()
		}
	}()
	// AutoMigrate can run DDL that blocks tables; allow running migrations as a
	// separate job instead.
	if !strings.EqualFold(strings.TrimSpace(os.Getenv("SKIP_MIGRATIONS")), "true") {
		models.MigrateTable()
	} else {
		logger.WithFields(logrus.Fields{"field": "migrations"}).Warn("SKIP_MIGRATIONS=true; skipping AutoMigrate on startup")
	}

	// Warm the conversion snapshot; failures degrade to lazy loading.
	if err := conv.Refresh(context.Background()); err != nil {
		logger.WithFields(logrus.Fields{"field": "conversions"}).Warn("initial conversion snapshot load failed: " + err.Error())
	}

	// Materialize in-transaction audit intents after commit.
	processorCtx, cancelProcessor := context.WithCancel(context.Background())
	defer cancelProcessor()
	if shouldRunAuditOutboxProcessor() {
		go NewAuditOutboxProcessor(db, logger).Run(processorCtx)
	}

	logger.WithFields(logrus.Fields{
		"info": "Connection Established",
	}).Info("listening on http://localhost:", port)
	log.Println("Server started successfully")

	// Block until shutdown or server error.
	select {
	case <-sigCtx.Done():
		// graceful shutdown below
	case err := <-serverErrCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithFields(logrus.Fields{"field": "http"}).Error("server stopped unexpectedly: " + err.Error())
		}
	}

	// Stop background workers first so they don't start new work while draining.
	cancelProcessor()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.WithFields(logrus.Fields{"field": "http"}).Error("graceful shutdown failed: " + err.Error())
	}

	if rdb := config.GetRedisDB(); rdb != nil {
		_ = rdb.Close()
	}
}
