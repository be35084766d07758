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

	"bitbucket.org/auditdesk/audit_backend/config"
	"bitbucket.org/auditdesk/audit_backend/middlewares"
	"bitbucket.org/auditdesk/audit_backend/models"
	"bitbucket.org/auditdesk/audit_backend/utils"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const defaultPort = "8080"

var tracer = otel.Tracer("audit-backend")

// Define a struct to represent the rate limiter.
type RateLimiter struct {
	client *redis.Client
	limit  int64
	window time.Duration
}

func customNotFoundHandler(c *gin.Context) {
	c.JSON(http.StatusNotFound, gin.H{"error": "route not found", "code": utils.ErrCodeNotFound})
}

func main() {
	port := os.Getenv("API_PORT")
	if port == "" {
		port = os.Getenv("PORT")
	}
	if port == "" {
		port = defaultPort
	}

	logger := config.GetLogger()

	sigCtx, stopSignals := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stopSignals()

	// Listen before dependencies are up; the readiness gate answers 503 until then.
	r := newRouter(logger)
	srv := &http.Server{
		Addr:    ":" + port,
		Handler: r,
	}
	serverErrCh := make(chan error, 1)
	go func() {
		// ListenAndServe returns http.ErrServerClosed on graceful shutdown.
		serverErrCh <- srv.ListenAndServe()
	}()

	config.ConnectDatabaseWithRetry()

	db := config.GetDB()
	sqlDB, _ := db.DB()
	defer func() {
		if sqlDB != nil {
			_ = sqlDB.Close()
		}
	}()
	// AutoMigrate can hold table locks; run it as a separate job when SKIP_MIGRATIONS=true.
	if !strings.EqualFold(strings.TrimSpace(os.Getenv("SKIP_MIGRATIONS")), "true") {
		if err := models.MigrateTable(); err != nil {
			logger.WithFields(logrus.Fields{"field": "migrations"}).Fatal(err.Error())
		}
	} else {
		logger.WithFields(logrus.Fields{"field": "migrations"}).Warn("SKIP_MIGRATIONS=true; skipping AutoMigrate on startup")
	}

	if err := db.Exec("SET SESSION TRANSACTION ISOLATION LEVEL READ COMMITTED").Error; err != nil {
		logger.WithFields(logrus.Fields{"field": "database"}).Warn("failed to set isolation level: " + err.Error())
	}

	// Queued audit entries are published when Pub/Sub is configured; leftovers
	// from an earlier configuration are still written to histories.
	var publishAudit AuditPublishFunc
	if config.AuditOutboxEnabled() {
		publishAudit = config.PublishAuditMessage
	}
	go NewAuditOutboxProcessor(logger, publishAudit).Run(sigCtx)

	// Redis only backs the cache and the import lock; serve without it until it connects.
	go config.ConnectRedisWithRetry()

	logger.WithFields(logrus.Fields{
		"info": "Connection Established",
	}).Info("listening on port ", port)
	log.Println("Server started successfully")

	select {
	case <-sigCtx.Done():
	case err := <-serverErrCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithFields(logrus.Fields{"field": "http"}).Error("server stopped unexpectedly: " + err.Error())
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.WithFields(logrus.Fields{"field": "http"}).Error("graceful shutdown failed: " + err.Error())
	}

	if rdb := config.GetRedisDB(); rdb != nil {
		_ = rdb.Close()
	}
}

func newRouter(logger *logrus.Logger) *gin.Engine {
	r := gin.New()
	// Correlation IDs: generate once per request and attach to context.
	r.Use(func(c *gin.Context) {
		cid := c.GetHeader("x-correlation-id")
		if cid == "" {
			cid = uuid.NewString()
		}
		c.Header("x-correlation-id", cid)
		c.Request = c.Request.WithContext(utils.SetCorrelationIdInContext(c.Request.Context(), cid))
		c.Next()
	})
	r.Use(tracingMiddleware())
	r.Use(func(c *gin.Context) {
		if c.Request.URL.Path == "/healthz" {
			c.Status(http.StatusNoContent)
			c.Abort()
			return
		}
		if config.GetDB() == nil {
			c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{"error": "service is starting", "code": utils.ErrCodeStoreUnavailable})
			return
		}
		c.Next()
	})
	r.GET("/healthz", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	corsConfig := cors.DefaultConfig()
	// production requires an explicit allowlist, other environments allow all
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
	corsConfig.AddAllowMethods("GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS")
	corsConfig.AddAllowHeaders("token", "Origin", "Content-Type", "Authorization", "X-Group-Id", "X-Correlation-Id")
	corsConfig.AddExposeHeaders("Content-Length", "Content-Disposition")
	corsConfig.AllowCredentials = true
	r.Use(cors.New(corsConfig))

	// RATE_LIMIT_ENABLED=true, RATE_LIMIT_WINDOW_SECONDS=60, RATE_LIMIT_MAX_REQUESTS=600
	if strings.EqualFold(strings.TrimSpace(os.Getenv("RATE_LIMIT_ENABLED")), "true") {
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
		rateLimiter := NewRateLimiter(limit, time.Duration(windowSec)*time.Second)
		r.Use(rateLimiter.RateLimitMiddleware)
	}

	r.Use(middlewares.AuthMiddleware())
	r.Use(customErrorLogger(logger))
	r.Use(gin.Recovery())

	registerRoutes(r)
	r.NoRoute(customNotFoundHandler)
	return r
}

func registerRoutes(r *gin.Engine) {
	api := r.Group("/api", middlewares.RequireUser())

	schedules := api.Group("/schedules")
	schedules.GET("", listSchedulesHandler())
	schedules.POST("", createScheduleHandler())
	schedules.GET("/page", paginateSchedulesHandler())
	schedules.GET("/tree", middlewares.RequireTenant(), scheduleTreeHandler())
	schedules.POST("/import", importSchedulesHandler())
	schedules.GET("/import/template", scheduleImportTemplateHandler())
	schedules.GET("/:id", getScheduleHandler())
	schedules.PUT("/:id", updateScheduleHandler())
	schedules.DELETE("/:id", deleteScheduleHandler())
	schedules.PATCH("/:id/active", toggleScheduleHandler())

	renames := api.Group("/rename-schedules", middlewares.RequireTenant())
	renames.GET("", listRenameSchedulesHandler())
	renames.PUT("", upsertRenameScheduleHandler())
	renames.DELETE("/:scheduleId", deleteRenameScheduleHandler())

	states := api.Group("/states")
	states.GET("", listStatesHandler())
	states.POST("", createStateHandler())
	states.GET("/all", listAllStatesHandler())
	states.GET("/page", paginateStatesHandler())
	states.GET("/:id", getStateHandler())
	states.PUT("/:id", updateStateHandler())
	states.DELETE("/:id", deleteStateHandler())
	states.PATCH("/:id/active", toggleStateHandler())

	cities := api.Group("/cities")
	cities.GET("", listCitiesHandler())
	cities.POST("", createCityHandler())
	cities.GET("/all", listAllCitiesHandler())
	cities.GET("/page", paginateCitiesHandler())
	cities.GET("/:id", getCityHandler())
	cities.PUT("/:id", updateCityHandler())
	cities.DELETE("/:id", deleteCityHandler())
	cities.PATCH("/:id/active", toggleCityHandler())

	taxRates := api.Group("/tax-rates")
	taxRates.GET("", listTaxRatesHandler())
	taxRates.POST("", createTaxRateHandler())
	taxRates.GET("/all", listAllTaxRatesHandler())
	taxRates.GET("/page", paginateTaxRatesHandler())
	taxRates.GET("/:id", getTaxRateHandler())
	taxRates.PUT("/:id", updateTaxRateHandler())
	taxRates.DELETE("/:id", deleteTaxRateHandler())
	taxRates.PATCH("/:id/active", toggleTaxRateHandler())

	accountTypes := api.Group("/account-types")
	accountTypes.GET("", listAccountTypesHandler())
	accountTypes.POST("", createAccountTypeHandler())
	accountTypes.GET("/:id", getAccountTypeHandler())
	accountTypes.PUT("/:id", updateAccountTypeHandler())
	accountTypes.DELETE("/:id", deleteAccountTypeHandler())
	accountTypes.PATCH("/:id/active", toggleAccountTypeHandler())

	api.GET("/histories", listHistoriesHandler())
	api.GET("/session", sessionHandler())
}

// tracingMiddleware opens a server span per request so otelgorm query spans nest under it.
func tracingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		name := c.FullPath()
		if name == "" {
			name = "unmatched"
		}
		ctx, span := tracer.Start(c.Request.Context(), c.Request.Method+" "+name, trace.WithSpanKind(trace.SpanKindServer))
		defer span.End()
		if cid, ok := utils.GetCorrelationIdFromContext(ctx); ok {
			span.SetAttributes(attribute.String("correlation_id", cid))
		}
		c.Request = c.Request.WithContext(ctx)
		c.Next()
		span.SetAttributes(attribute.Int("http.status_code", c.Writer.Status()))
	}
}

// customErrorLogger is a custom Gin middleware that logs only errors
func customErrorLogger(logger *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) > 0 {
			cid, _ := utils.GetCorrelationIdFromContext(c.Request.Context())
			logger.WithFields(logrus.Fields{
				"method":         c.Request.Method,
				"path":           c.Request.URL.Path,
				"status":         c.Writer.Status(),
				"correlation_id": cid,
			}).Error(c.Errors.String())
		}
	}
}

// NewRateLimiter uses the shared redis client; without one every request passes.
func NewRateLimiter(limit int64, window time.Duration) *RateLimiter {
	return &RateLimiter{
		client: config.GetRedisDB(),
		limit:  limit,
		window: window,
	}
}

// Middleware function to check rate limits.
func (rl *RateLimiter) RateLimitMiddleware(c *gin.Context) {
	client := rl.client
	if client == nil {
		client = config.GetRedisDB()
	}
	if client == nil {
		c.Next()
		return
	}
	key := "RateLimit:" + c.ClientIP()

	count, err := client.Incr(c.Request.Context(), key).Result()
	if err != nil {
		// redis trouble never blocks traffic
		_ = c.Error(err)
		c.Next()
		return
	}
	if count == 1 {
		client.Expire(c.Request.Context(), key, rl.window)
	}

	if count > rl.limit {
		c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
			"error": fmt.Sprintf("Rate limit exceeded. Try again in %d seconds", int(rl.window.Seconds())),
			"code":  "RateLimited",
		})
		return
	}

	c.Next()
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
