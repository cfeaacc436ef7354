// Package main provides the mechanics assistant server entry point.
package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/raidwise/mechanics-server/internal/api"
	"github.com/raidwise/mechanics-server/internal/docs"
	"github.com/raidwise/mechanics-server/internal/embedding"
	"github.com/raidwise/mechanics-server/internal/generator"
	mcpserver "github.com/raidwise/mechanics-server/internal/mcp"
	"github.com/raidwise/mechanics-server/internal/retrieval"
	"github.com/raidwise/mechanics-server/internal/storage"
	"github.com/raidwise/mechanics-server/internal/store"
)

func main() {
	// Load .env file if present (local development), ignore if missing (production)
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	// Create context that cancels on SIGTERM/SIGINT
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer cancel()

	// Configuration from environment
	qdrantHost := getEnv("QDRANT_HOST", "localhost")
	qdrantPort := getEnvInt("QDRANT_PORT", 6334)
	port := getEnv("PORT", "8080")
	docsDir := getEnv("DOCS_DIR", "docs/collections")
	rateLimit := getEnvInt("RATE_LIMIT_PER_MINUTE", 30)

	logger := slog.Default()

	// Initialize vector storage
	qdrant, err := storage.NewQdrantStorage(qdrantHost, qdrantPort)
	if err != nil {
		log.Fatalf("failed to connect to Qdrant: %v", err)
	}
	defer qdrant.Close()

	if err := qdrant.EnsureCollection(ctx, storage.VectorDimension); err != nil {
		log.Fatalf("failed to ensure collection: %v", err)
	}

	// Initialize OpenAI client, embedder and generator
	openaiClient, err := embedding.NewClient()
	if err != nil {
		log.Fatalf("failed to create OpenAI client: %v", err)
	}
	embedder := embedding.NewEmbedder(openaiClient, 0) // Use default batch size
	gen := generator.New(openaiClient)

	// Mechanic store loads lazily from the documents directory
	loader := docs.NewLoader(docsDir, logger)
	mechanics := store.New(loader, logger)

	engine := retrieval.NewEngine(mechanics, embedder, qdrant, logger)

	// Create MCP server
	server := mcpserver.NewServer(&mcpserver.Config{
		Engine:    engine,
		Generator: gen,
		Store:     mechanics,
		Storage:   qdrant,
	})

	// HTTP surface: landing, health, MCP transport, search + chat API
	mux := http.NewServeMux()
	mux.HandleFunc("/", mcpserver.NewLandingHandler())
	mux.HandleFunc("/health", mcpserver.NewHealthHandler(qdrant))
	mux.Handle("/mcp", mcpserver.NewHTTPHandler(server, nil))

	limiter := api.NewRateLimiter(rateLimit, time.Minute)
	cache := api.NewResponseCache(api.DefaultCacheSize, api.DefaultCacheTTL)
	apiHandler := api.NewHandler(engine, gen, cache, limiter, logger)
	apiHandler.RegisterRoutes(mux)

	// Check if running in server mode (HTTP) or stdio mode (local development)
	serverMode := getEnv("SERVER_MODE", "false") == "true"

	if serverMode {
		addr := "0.0.0.0:" + port
		log.Printf("Starting HTTP server on %s (MCP at /mcp, API at /api, health at /health)", addr)
		if err := http.ListenAndServe(addr, mux); err != nil {
			log.Fatalf("HTTP server error: %v", err)
		}
	} else {
		// Stdio mode: run MCP over stdin/stdout for local clients, with the
		// HTTP surface in the background for local testing
		go func() {
			addr := "0.0.0.0:" + port
			log.Printf("Starting HTTP server on %s", addr)
			if err := http.ListenAndServe(addr, mux); err != nil {
				log.Printf("HTTP server error: %v", err)
			}
		}()

		log.Println("Starting Raid Mechanics MCP Server (stdio mode)...")
		if err := server.Run(ctx); err != nil {
			log.Printf("server error: %v", err)
			os.Exit(1)
		}
	}
}

func getEnv(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if v := os.Getenv(key); v != "" {
		var i int
		if _, err := fmt.Sscanf(v, "%d", &i); err == nil {
			return i
		}
	}
	return defaultValue
}
