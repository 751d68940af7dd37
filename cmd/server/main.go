package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"github.com/gotrip/booking-backend/internal/config"
	"github.com/gotrip/booking-backend/internal/database"
	"github.com/gotrip/booking-backend/internal/handlers"
	"github.com/gotrip/booking-backend/internal/metrics"
	"github.com/gotrip/booking-backend/internal/middleware"
	"github.com/gotrip/booking-backend/internal/services"
	"github.com/gotrip/booking-backend/pkg/jwt"
	"github.com/gotrip/booking-backend/pkg/notify"
	"github.com/gotrip/booking-backend/pkg/signature"
)

var (
	version   = "1.0.0"
	buildTime = "unknown"
)

func main() {
	// Initialize logger
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})
	logger.SetOutput(os.Stdout)

	logger.Info("Starting GoTrip Booking Engine")
	logger.Infof("Version: %s, Build Time: %s", version, buildTime)

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		logger.Fatalf("Failed to load configuration: %v", err)
	}

	// Set log level
	logLevel, err := logrus.ParseLevel(cfg.Server.LogLevel)
	if err != nil {
		logger.Warn("Invalid log level, using INFO")
		logLevel = logrus.InfoLevel
	}
	logger.SetLevel(logLevel)

	// Set Gin mode
	if cfg.Server.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	} else {
		gin.SetMode(gin.DebugMode)
	}

	// Initialize database connection
	logger.Info("Connecting to database...")
	db, err := database.NewConnection(cfg.Database)
	if err != nil {
		logger.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()
	logger.Info("Database connection established")

	// Initialize repositories
	bookingRepo := database.NewBookingRepository(db, logger)
	paymentRepo := database.NewPaymentRepository(db)
	coinRepo := database.NewCoinRepository(db)
	userRepo := database.NewUserRepository(db)
	stateRepo := database.NewCancellationStateRepository(db)

	// Initialize services
	logger.Info("Initializing services...")
	jwtService := jwt.NewService(cfg.JWT.Secret, cfg.JWT.AccessTokenExpiry)
	verifier := signature.NewVerifier(cfg.Payment.MerchantKey, cfg.Payment.MerchantToken)
	notifier := notify.NewLogNotifier(logger)

	coinLedger := services.NewCoinLedgerService(coinRepo, cfg.Coins, logger)
	reconciler := services.NewReconcilerService(paymentRepo, cfg.Payment.GatewayName, logger)
	bookingService := services.NewBookingService(
		bookingRepo, paymentRepo, userRepo, reconciler, coinLedger,
		verifier, notifier, cfg.Payment.GatewayName, logger,
	)
	cancellationService := services.NewCancellationService(
		bookingRepo, stateRepo, userRepo, coinLedger, notifier,
		cfg.Cancellation, logger,
	)

	// Initialize handlers
	bookingHandler := handlers.NewBookingHandler(bookingService, cancellationService)
	paymentHandler := handlers.NewPaymentHandler(bookingService)
	coinHandler := handlers.NewCoinHandler(coinLedger)

	// Setup router
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestID())
	router.Use(requestLogger(logger))

	router.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.CORS.AllowedOrigins,
		AllowMethods:     cfg.CORS.AllowedMethods,
		AllowHeaders:     cfg.CORS.AllowedHeaders,
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	// Health and metrics
	router.GET("/health", healthCheckHandler(db))
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// API routes
	v1 := router.Group("/api/v1")
	{
		// Payment gateway callback authenticates via signature, not JWT
		v1.POST("/payments/callback", paymentHandler.Callback)

		bookings := v1.Group("/bookings")
		bookings.Use(middleware.AuthMiddleware(jwtService))
		{
			bookings.POST("", bookingHandler.CreateBooking)
			bookings.GET("", bookingHandler.ListBookings)
			bookings.POST("/:id/cancel", bookingHandler.CancelBooking)
			bookings.POST("/:id/repair", bookingHandler.RepairCancellation)
		}

		coins := v1.Group("/coins")
		coins.Use(middleware.AuthMiddleware(jwtService))
		{
			coins.GET("", coinHandler.GetStatement)
		}
	}

	// Create HTTP server
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		logger.Infof("Server starting on port %s", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatalf("Failed to start server: %v", err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Errorf("Server forced to shutdown: %v", err)
	}

	logger.Info("Server exited successfully")
}

// requestLogger middleware for logging HTTP requests
func requestLogger(logger *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path

		c.Next()

		status := c.Writer.Status()
		metrics.HTTPRequestsTotal.WithLabelValues(
			c.Request.Method, c.FullPath(), strconv.Itoa(status),
		).Inc()

		fields := logrus.Fields{
			"method":     c.Request.Method,
			"path":       path,
			"status":     status,
			"latency_ms": time.Since(start).Milliseconds(),
			"client_ip":  c.ClientIP(),
		}
		if requestID, exists := c.Get(middleware.RequestIDKey); exists {
			fields["request_id"] = requestID
		}

		entry := logger.WithFields(fields)
		switch {
		case status >= 500:
			entry.Error("Request completed with server error")
		case status >= 400:
			entry.Warn("Request completed with client error")
		default:
			entry.Info("Request completed")
		}
	}
}

// healthCheckHandler returns a health check endpoint
func healthCheckHandler(db interface{ Ping() error }) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := db.Ping(); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status":   "unhealthy",
				"database": "unhealthy",
				"error":    err.Error(),
			})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"status":    "healthy",
			"database":  "healthy",
			"version":   version,
			"timestamp": time.Now().Unix(),
		})
	}
}
