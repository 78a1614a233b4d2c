// File: horizon/main.go
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"horizon/config"
	"horizon/cron"
	"horizon/database"
	appointmentRepo "horizon/database/repository/appointment"
	"horizon/handlers"
	"horizon/middleware"
	"horizon/routes"
	"horizon/services/booking"
	"horizon/services/notification"
	"horizon/services/tasks"
	"horizon/utils"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"github.com/hibiken/asynq"
	"github.com/stripe/stripe-go/v76"
)

func main() {
	config.LoadConfig()
	logger := utils.GetLogger()

	database.InitDB()
	utils.InitCache()
	stripe.Key = config.AppConfig.StripeKey

	// Repositories.
	apptRepo := appointmentRepo.NewMongoAppointmentRepo()
	if ix, ok := apptRepo.(interface{ EnsureIndexes() error }); ok {
		if err := ix.EnsureIndexes(); err != nil {
			logger.Sugar().Fatalf("main: failed to ensure appointment indexes: %v", err)
		}
	}

	// Notification gateway.
	calendarSvc, err := notification.NewGoogleCalendarService(
		context.Background(),
		config.AppConfig.GoogleCredentialsFile,
		config.AppConfig.GoogleCalendarID,
	)
	if err != nil {
		logger.Sugar().Fatalf("main: failed to initialize calendar service: %v", err)
	}
	mailSvc := notification.NewSMTPMailService(
		config.AppConfig.SMTPHost,
		config.AppConfig.SMTPPort,
		config.AppConfig.SMTPUsername,
		config.AppConfig.SMTPPassword,
		config.AppConfig.SMTPFrom,
	)

	// Reminder queue.
	asynqClient := asynq.NewClient(utils.ReminderQueueOpt())
	defer asynqClient.Close()
	reminderScheduler := tasks.NewReminderScheduler(
		asynqClient,
		time.Duration(config.AppConfig.ReminderLeadHours)*time.Hour,
	)
	cron.InitReminderWorker(mailSvc)

	// Booking pipeline.
	bookingService := &booking.DefaultBookingService{
		Repo:           apptRepo,
		Sessions:       booking.NewStripeSessions(),
		Calendar:       calendarSvc,
		Mailer:         mailSvc,
		Reminders:      reminderScheduler,
		Logger:         logger,
		WebhookSecret:  config.AppConfig.StripeWebhookSecret,
		OperatorEmail:  config.AppConfig.OperatorEmail,
		FrontendURL:    config.AppConfig.FrontendURL,
		CheckoutAmount: config.AppConfig.CheckoutAmount,
		SlotDuration:   time.Duration(config.AppConfig.SlotDurationHours) * time.Hour,
	}

	appointmentHandler := handlers.NewAppointmentHandler(
		apptRepo,
		utils.GetCacheClient(),
		time.Duration(config.AppConfig.AvailabilityTTLSec)*time.Second,
		logger,
	)
	paymentHandler := handlers.NewPaymentHandler(bookingService, logger)

	// Create the Gin router.
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(utils.ErrorHandler())
	router.Use(gin.Logger())
	router.Use(middleware.RateLimitMiddleware())
	router.Use(cors.Default())

	routes.RegisterAppointmentRoutes(router, appointmentHandler)
	routes.RegisterPaymentRoutes(router, paymentHandler)
	routes.RegisterHealthRoute(router)

	utils.StartHealthMonitor(
		[]*redis.Client{utils.GetCacheClient()},
		database.MongoClient,
	)

	// Start the HTTP server.
	port := config.AppConfig.AppPort
	if port == "" {
		port = "8080"
	}
	srv := &http.Server{
		Addr:    "0.0.0.0:" + port,
		Handler: router,
	}

	logger.Sugar().Infof("Starting server on %s...", srv.Addr)
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Sugar().Fatalf("main: server failed to start: %v", err)
		}
	}()

	// Wait for an OS signal to gracefully shutdown.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Sugar().Info("main: server is shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Sugar().Fatalf("main: server forced to shutdown: %v", err)
	}

	logger.Sugar().Info("main: server stopped gracefully")
}
