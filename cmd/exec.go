package cmd

import (
	"context"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/pocketbase/pocketbase"
	"github.com/pocketbase/pocketbase/core"
	"github.com/pocketbase/pocketbase/plugins/migratecmd"
	pubnub "github.com/pubnub/go"

	"meetpoint/config"
	"meetpoint/handlers"
	"meetpoint/internal/geocode"
	"meetpoint/internal/places"
	"meetpoint/monitoring"
	"meetpoint/realtime"
	"meetpoint/security"
	"meetpoint/services"
	"meetpoint/store"
	"meetpoint/utils"

	_ "meetpoint/migrations"
)

func Start() error {
	app := pocketbase.New()

	// Load configuration
	cfg := config.LoadConfig()
	slog.Info("configuration loaded",
		"environment", cfg.Environment,
		"max_participants", cfg.MaxParticipants,
		"metrics", cfg.EnableMetrics,
	)

	// Initialize Redis
	redisClient := utils.NewRedisClient(cfg.RedisURL, cfg.RedisPassword, cfg.RedisDB)
	defer redisClient.Close()

	// Initialize PubNub
	var pn *pubnub.PubNub
	if cfg.PubNubPublishKey != "" {
		pnConfig := pubnub.NewConfig()
		pnConfig.PublishKey = cfg.PubNubPublishKey
		pnConfig.SubscribeKey = cfg.PubNubSubscribeKey
		pnConfig.SecretKey = cfg.PubNubSecretKey
		pn = pubnub.NewPubNub(pnConfig)
	}
	notifier := realtime.NewNotifier(pn)

	// Initialize providers
	placesClient := places.New(cfg.PlacesBaseURL, cfg.PlacesAPIKey, cfg.VenueSearchTimeout)
	geocoder := geocode.New(cfg.GeocodeBaseURL, cfg.PlacesAPIKey, cfg.VenueSearchTimeout)

	// Initialize services
	st := store.NewPocketBase(app)
	sessionService := services.NewSessionService(st, redisClient, notifier, cfg)
	venueService := services.NewVenueService(st, sessionService, placesClient, cfg)
	sessionService.BindVenueService(venueService)
	voteService := services.NewVoteService(st, sessionService)

	// Initialize handlers
	sessionHandler := handlers.NewSessionHandler(sessionService)
	venueHandler := handlers.NewVenueHandler(venueService, sessionService)
	voteHandler := handlers.NewVoteHandler(voteService)
	geocodeHandler := handlers.NewGeocodeHandler(geocoder)

	rateLimiter := security.NewRateLimiter(redisClient, cfg.RateLimitPerMinute)

	// Enable migrations
	migratecmd.MustRegister(app, app.RootCmd, migratecmd.Config{
		Automigrate: true,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Start background tasks
	go sessionService.CleanupInactiveSessions(ctx)

	if cfg.EnableMetrics {
		monitoring.NewMonitor(redisClient)
		go monitoring.ServeOps(cfg.MetricsPort, func() error {
			return utils.RedisHealthCheck(redisClient)
		})
	}

	// Setup graceful shutdown
	go handleShutdown(cancel)

	app.OnServe().BindFunc(func(e *core.ServeEvent) error {
		api := e.Router.Group("/api/v1")
		api.BindFunc(rateLimiter.Middleware())
		api.BindFunc(rateLimiter.AntiBotMiddleware())

		// Session endpoints
		api.POST("/sessions", sessionHandler.Create)
		api.POST("/sessions/{code}/join", sessionHandler.Join)
		api.GET("/sessions/{code}", sessionHandler.Get)
		api.POST("/sessions/{code}/location", sessionHandler.SetLocation)
		api.POST("/sessions/{code}/ready", sessionHandler.SetReady)
		api.POST("/sessions/{code}/midpoint-mode", sessionHandler.SetMidpointMode)
		api.POST("/sessions/{code}/lock", sessionHandler.SetLocked)
		api.POST("/sessions/{code}/leave", sessionHandler.Leave)
		api.DELETE("/sessions/{code}/participants/{participantId}", sessionHandler.Remove)
		api.DELETE("/sessions/{code}", sessionHandler.End)
		api.POST("/sessions/{code}/activity", sessionHandler.Touch)

		// Venue endpoints
		api.POST("/sessions/{code}/venues/refresh", venueHandler.Refresh)
		api.GET("/sessions/{code}/venues", venueHandler.List)
		api.POST("/sessions/{code}/venues/{venueId}/block", venueHandler.Block)

		// Vote endpoints
		api.POST("/sessions/{code}/votes", voteHandler.Cast)
		api.GET("/sessions/{code}/insights", voteHandler.Insights)
		api.GET("/history", voteHandler.History)

		// Geocoding
		api.POST("/geocode", geocodeHandler.Resolve)

		// Health check
		e.Router.GET("/health", func(e *core.RequestEvent) error {
			if err := utils.RedisHealthCheck(redisClient); err != nil {
				return e.JSON(503, map[string]string{
					"status": "unhealthy",
					"error":  err.Error(),
				})
			}
			return e.JSON(200, map[string]string{"status": "healthy"})
		})

		log.Println("Server routes registered")

		return e.Next()
	})

	return app.Start()
}

// handleShutdown handles graceful shutdown
func handleShutdown(cancel context.CancelFunc) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	<-sigChan
	log.Println("Shutdown signal received, cleaning up...")
	cancel()
}
