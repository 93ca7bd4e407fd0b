package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/eventsphere/backend/internal/config"
	"github.com/eventsphere/backend/internal/handlers"
	"github.com/eventsphere/backend/internal/middleware"
	"github.com/eventsphere/backend/internal/models"
	"github.com/eventsphere/backend/internal/services"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
)

func main() {
	// Load environment variables
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	// Initialize configuration
	cfg := config.New()

	// Initialize database
	db, err := models.InitDB(cfg)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}

	// Run migrations
	if err := models.Migrate(db); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}

	// Initialize Redis
	redisClient := models.InitRedis(cfg)
	defer redisClient.Close()

	// Initialize services
	authService := services.NewAuthService(db, redisClient, cfg)
	userService := services.NewUserService(db)
	eventService := services.NewEventService(db)
	couponService := services.NewCouponService(db)
	passService := services.NewPassService(cfg)
	ticketService := services.NewTicketService(db, passService)
	emailService := services.NewEmailService(cfg)
	stripeProvider := services.NewStripeProvider(cfg)
	bookingService := services.NewBookingService(db, cfg, eventService, couponService, ticketService, stripeProvider)

	// Attach email delivery
	authService.AttachEmailService(emailService)
	bookingService.AttachEmailService(emailService)
	ticketService.AttachMailer(emailService)

	// Periodic cleanup for stale pending bookings
	if cfg.PendingBookingSweepEnabled {
		go func() {
			for {
				expired, err := bookingService.CleanupStalePending()
				if err != nil {
					log.Printf("Pending booking cleanup error: %v", err)
				} else if expired > 0 {
					log.Printf("Pending booking cleanup: marked %d stale bookings as failed", expired)
				}
				time.Sleep(5 * time.Minute)
			}
		}()
	}

	// Poll for pending payments as fallback if webhooks fail
	if cfg.PendingPaymentPollEnabled {
		go func() {
			for {
				confirmed, err := bookingService.CheckPendingPayments()
				if err != nil {
					log.Printf("Pending payment check error: %v", err)
				} else if confirmed > 0 {
					log.Printf("Pending payment check: confirmed %d payments", confirmed)
				}
				time.Sleep(cfg.PendingPaymentPollInterval)
			}
		}()
	}

	// Expired refresh token cleanup
	go func() {
		for {
			if err := authService.CleanupExpiredTokens(); err != nil {
				log.Printf("Refresh token cleanup error: %v", err)
			}
			time.Sleep(1 * time.Hour)
		}
	}()

	// Mark ended events as past
	go func() {
		for {
			marked, err := eventService.MarkPastEvents()
			if err != nil {
				log.Printf("Past event sweep error: %v", err)
			} else if marked > 0 {
				log.Printf("Past event sweep: marked %d events as past", marked)
			}
			time.Sleep(1 * time.Hour)
		}
	}()

	// Setup Gin router
	if cfg.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Logger())
	router.Use(gin.Recovery())
	router.Use(middleware.CORS(cfg))
	router.Use(middleware.RateLimiter(redisClient, cfg))

	// Initialize handlers
	authHandler := handlers.NewAuthHandler(authService)
	userHandler := handlers.NewUserHandler(bookingService, ticketService, userService)
	hostHandler := handlers.NewHostHandler(eventService, couponService, ticketService)
	publicHandler := handlers.NewPublicHandler(eventService, couponService)
	stripeHandler := handlers.NewStripeHandler(bookingService, cfg)

	// Health check outside API group (no /api/v1 prefix)
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "healthy"})
	})

	// Setup routes
	api := router.Group("/api/v1")
	{
		api.GET("/health", func(c *gin.Context) {
			c.JSON(http.StatusOK, gin.H{"status": "healthy"})
		})

		// Catch-all OPTIONS handler for CORS preflight requests
		api.OPTIONS("/*path", func(c *gin.Context) {
			c.Status(http.StatusNoContent)
		})

		// Public routes
		public := api.Group("/public")
		{
			public.GET("/events", publicHandler.GetUpcomingEvents)
			public.GET("/events/:id", publicHandler.GetEvent)
			public.POST("/coupons/preview", publicHandler.PreviewCoupon)
		}

		// Auth routes
		auth := api.Group("/auth")
		{
			auth.POST("/register", authHandler.Register)
			auth.POST("/login", authHandler.Login)
			auth.POST("/refresh", authHandler.RefreshToken)
			auth.POST("/logout", middleware.Auth(authService), authHandler.Logout)
			auth.GET("/me", middleware.Auth(authService), authHandler.Me)
		}

		// User routes
		user := api.Group("/user")
		user.Use(middleware.Auth(authService))
		{
			user.PUT("/profile", userHandler.UpdateProfile)
			user.GET("/bookings", userHandler.GetBookings)
			user.POST("/bookings", userHandler.CreateBooking)
			user.GET("/bookings/:id", userHandler.GetBooking)
			user.POST("/bookings/:id/confirm-payment", userHandler.ConfirmBookingPayment)
			user.DELETE("/bookings/:id", userHandler.CancelBooking)
			user.GET("/tickets", userHandler.GetTickets)
		}

		// Host routes
		host := api.Group("/host")
		host.Use(middleware.Auth(authService))
		host.Use(middleware.HostOnly())
		{
			host.GET("/dashboard", hostHandler.GetDashboard)

			// Event management
			host.GET("/events", hostHandler.GetEvents)
			host.POST("/events", hostHandler.CreateEvent)
			host.PUT("/events/:id", hostHandler.UpdateEvent)
			host.POST("/events/:id/cancel", hostHandler.CancelEvent)
			host.DELETE("/events/:id", hostHandler.DeleteEvent)
			host.GET("/events/:id/coupons", hostHandler.GetEventCoupons)

			// Coupon management
			host.POST("/coupons", hostHandler.CreateCoupon)
			host.PUT("/coupons/:id", hostHandler.UpdateCoupon)
			host.POST("/coupons/:id/deactivate", hostHandler.DeactivateCoupon)
			host.DELETE("/coupons/:id", hostHandler.DeleteCoupon)

			// Check-in
			host.GET("/tickets/:number/validate", hostHandler.ValidateTicket)
			host.POST("/tickets/:number/redeem", hostHandler.RedeemTicket)
		}

		// Payment webhooks
		api.POST("/stripe/webhook", stripeHandler.HandleWebhook)
	}

	// Start server
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown
	go func() {
		log.Printf("Starting server on port %s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	log.Println("Server exited")
}
