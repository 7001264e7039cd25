package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"ecosense/internal/assistant"
	"ecosense/internal/config"
	"ecosense/internal/database"
	"ecosense/internal/handlers"
	"ecosense/internal/identity"
	"ecosense/internal/repository"
	"ecosense/internal/router"
	"ecosense/internal/services"
	"ecosense/internal/websocket"
)

func main() {
	log.Println("🚀 Starting EcoSense Backend...")

	ctx := context.Background()

	// ──── Step 1: Load Environment Variables ────
	cfg := config.Load()
	log.Println("✓ Environment variables loaded")

	// ──── Step 2: Initialize PostgreSQL Connection Pool ────
	pool, err := database.NewPostgresPool(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("✗ PostgreSQL connection failed: %v", err)
	}
	defer pool.Close()
	log.Println("✓ PostgreSQL connected")

	// ──── Step 3: Initialize Redis Clients ────
	redisClients, err := database.NewRedisClients(cfg.RedisURL)
	if err != nil {
		log.Fatalf("✗ Redis connection failed: %v", err)
	}
	defer redisClients.Close()
	log.Println("✓ Redis connected")

	// ──── Step 4: Run Database Migrations ────
	if err := database.RunMigrations(ctx, pool, "migrations"); err != nil {
		log.Fatalf("✗ Database migration failed: %v", err)
	}
	log.Println("✓ Database migrations applied")

	// ──── Initialize Repositories ────
	userRepo := repository.NewUserRepo(pool)
	messageRepo := repository.NewMessageRepo(pool)

	// ──── Step 5: Initialize Assistant Provider ────
	var provider assistant.Provider
	switch cfg.AssistantProvider {
	case "gemini":
		gemini, err := assistant.NewGeminiProvider(ctx, cfg.GeminiAPIKey, cfg.AssistantConcurrentReqs)
		if err != nil {
			log.Fatalf("✗ Gemini client initialization failed: %v", err)
		}
		defer gemini.Close()
		provider = gemini
		log.Println("✓ Gemini Flash assistant initialized")
	case "openai":
		provider = assistant.NewOpenAIProvider(cfg.OpenAIAPIKey)
		log.Println("✓ OpenAI assistant initialized")
	default:
		provider = assistant.NewEchoProvider()
		log.Println("✓ Echo assistant initialized (no API key needed)")
	}

	// ──── Step 6: Initialize Session Auth ────
	var verifier identity.Verifier
	switch cfg.AuthMode {
	case "signed":
		verifier = identity.NewSignedTokenVerifier(userRepo, cfg.AuthSecret)
		log.Println("✓ Session auth: signed tokens")
	default:
		verifier = identity.NewPlaintextVerifier(userRepo)
		log.Println("✓ Session auth: plaintext sessions")
	}
	resolver := identity.NewResolver(verifier, cfg.AllowAnonymous, cfg.AnonymousUserID)
	if cfg.AllowAnonymous {
		log.Printf("✓ Anonymous fallback enabled (user %d)", cfg.AnonymousUserID)
	}

	// ──── Step 7: Start WebSocket Hub ────
	wsHub := websocket.NewHub(redisClients.PubSub)
	publisher := websocket.NewPublisher(redisClients.Cache)
	log.Println("✓ WebSocket hub started")

	// ──── Initialize Services ────
	sendLimiter := services.NewRedisSendLimiter(redisClients.Cache, cfg.SendsPerMinute, time.Minute)
	authService := services.NewAuthService(userRepo, cfg.AuthMode, cfg.AuthSecret)
	chatService := services.NewChatService(messageRepo, provider, sendLimiter, publisher)

	// ──── Initialize Handlers ────
	authHandler := handlers.NewAuthHandler(authService)
	chatHandler := handlers.NewChatHandler(chatService)
	userHandler := handlers.NewUserHandler(userRepo)

	// ──── Step 8: Start HTTP Server ────
	r := router.New(
		resolver,
		authHandler,
		chatHandler,
		userHandler,
		wsHub,
		cfg.FrontendURL,
	)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.Port),
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan

		log.Println("Shutting down...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		server.Shutdown(shutdownCtx)
	}()

	log.Printf("✓ EcoSense Backend ready on http://localhost:%s", cfg.Port)
	log.Printf("  API: http://localhost:%s/api", cfg.Port)
	log.Printf("  WS:  ws://localhost:%s/api/chat/ws", cfg.Port)

	if err := server.ListenAndServe(); err != http.ErrServerClosed {
		log.Fatalf("Server error: %v", err)
	}
}
