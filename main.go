package main

import (
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/joho/godotenv"

	"github.com/medreader/labreader-backend/database"
	"github.com/medreader/labreader-backend/internal/jobs"
	"github.com/medreader/labreader-backend/internal/models"
	"github.com/medreader/labreader-backend/internal/routes"
	"github.com/medreader/labreader-backend/internal/services"
	"github.com/medreader/labreader-backend/internal/storage"
)

func main() {
	// Load .env file for local development
	if os.Getenv("INSTANCE_CONNECTION_NAME") == "" {
		if err := godotenv.Load(".env"); err != nil {
			log.Println("⚠️  No .env file found - checking environment variables")
		}
	}

	// Initialize the durable session tier. Missing configuration
	// degrades to volatile-only sessions instead of crashing.
	store := buildSessionStore()
	storage.SetStore(store)

	// Initialize Telegram transport
	telegramService, err := services.NewTelegramService()
	if err != nil {
		log.Printf("⚠️  Telegram not configured - responses will be logged only: %v", err)
		telegramService = nil
	} else {
		log.Println("✅ Telegram service initialized")
	}

	// Analysis relay
	apiURL := os.Getenv("API_URL")
	if apiURL == "" {
		apiURL = "http://localhost:8000"
		log.Println("⚠️  API_URL not set - using http://localhost:8000")
	}
	relayService := services.NewRelayService(apiURL, services.DefaultRelayTimeout)

	// Wire the bot pipeline
	sessionManager := services.NewSessionManager(store)
	dedup := services.NewDeduplicator(services.DefaultDedupCapacity)
	bot := services.NewBotService(sessionManager, dedup, relayService, telegramService)

	// Sweep abandoned dialogs in the durable tier
	var cleanupJob *jobs.SessionCleanupJob
	if store != nil {
		cleanupJob = jobs.NewSessionCleanupJob(store)
		cleanupJob.Start()
	}

	log.Println("✅ All services initialized")

	// Create fiber app
	app := fiber.New(fiber.Config{
		AppName: "Lab Reader Backend v1.0.0",
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			code := fiber.StatusInternalServerError
			if e, ok := err.(*fiber.Error); ok {
				code = e.Code
			}
			return c.Status(code).JSON(fiber.Map{
				"error": err.Error(),
			})
		},
	})

	// Middleware
	app.Use(logger.New(logger.Config{
		Format: "[${time}] ${status} - ${latency} ${method} ${path}\n",
	}))
	app.Use(recover.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowHeaders: "Origin, Content-Type, Accept, Authorization",
		AllowMethods: "GET, POST, OPTIONS",
	}))

	// Setup routes
	routes.SetupRoutes(app, store, bot)

	// Get port from environment or use default
	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	// Handle graceful shutdown
	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-c
		log.Println("\n🛑 Gracefully shutting down...")
		if cleanupJob != nil {
			cleanupJob.Stop()
		}
		_ = app.Shutdown()
	}()

	// Start server
	log.Println("========================================")
	log.Printf("🚀 Lab Reader Backend starting on port %s", port)
	log.Printf("📊 Sessions: %s", storageMode())
	log.Printf("📱 Telegram: %s", telegramMode(telegramService))
	log.Printf("🔬 Analysis API: %s", apiURL)
	log.Println("========================================")

	log.Fatal(app.Listen(":" + port))
}

// buildSessionStore picks the durable tier by configuration:
// USE_MEMORY_STORE for tests, SESSION_BACKEND=redis for Redis,
// otherwise PostgreSQL when reachable. Returns nil when nothing is
// configured; the session manager then runs volatile-only.
func buildSessionStore() storage.Store {
	if os.Getenv("USE_MEMORY_STORE") == "true" {
		log.Println("⚠️  Using in-memory session storage (not for production!)")
		return storage.NewMemoryStore()
	}

	if os.Getenv("SESSION_BACKEND") == "redis" {
		redisURL := os.Getenv("REDIS_URL")
		if redisURL == "" {
			redisURL = "redis://localhost:6379/0"
		}
		store, err := storage.NewRedisStore(redisURL)
		if err != nil {
			log.Printf("⚠️  Redis unavailable - sessions are volatile-only this run: %v", err)
			return nil
		}
		log.Println("✅ Using Redis session storage")
		return store
	}

	if os.Getenv("DB_NAME") == "" && os.Getenv("INSTANCE_CONNECTION_NAME") == "" && os.Getenv("DB_PASS") == "" {
		log.Println("⚠️  No database configured - sessions are volatile-only this run")
		return nil
	}

	log.Println("📦 Connecting to PostgreSQL database...")
	if err := database.Connect(); err != nil {
		log.Printf("⚠️  Database unavailable - sessions are volatile-only this run: %v", err)
		return nil
	}

	log.Println("🔄 Running database migrations...")
	if err := database.DB.AutoMigrate(&models.Session{}); err != nil {
		log.Fatal("Failed to migrate database:", err)
	}
	log.Println("✅ Database migrations completed!")

	return storage.NewDatabaseStore(database.DB)
}

func storageMode() string {
	switch {
	case os.Getenv("USE_MEMORY_STORE") == "true":
		return "In-Memory (Testing)"
	case os.Getenv("SESSION_BACKEND") == "redis":
		return "Redis"
	case database.DB != nil:
		return "PostgreSQL Database"
	}
	return "Volatile only (no durable tier)"
}

func telegramMode(t *services.TelegramService) string {
	if t == nil {
		return "Not configured"
	}
	return "Configured"
}
