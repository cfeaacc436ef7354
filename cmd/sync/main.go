// Package main provides the sync CLI for mechanics corpus ingestion.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/raidwise/mechanics-server/internal/docs"
	"github.com/raidwise/mechanics-server/internal/embedding"
	"github.com/raidwise/mechanics-server/internal/indexer"
	"github.com/raidwise/mechanics-server/internal/storage"
)

var docsDir string

var rootCmd = &cobra.Command{
	Use:   "mechanics-sync",
	Short: "Mechanics corpus indexing tool",
	Long:  "CLI tool for managing the raid mechanics vector index in Qdrant",
}

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Index all collection documents into Qdrant",
	Long: `Loads collection documents, embeds every mechanic and upserts the vectors.

This command:
1. Connects to Qdrant and verifies health
2. Ensures the mechanics collection exists
3. Loads and validates collection YAML documents
4. Generates embeddings for each mechanic
5. Upserts mechanic vectors with metadata payloads

Point IDs are deterministic, so re-running sync updates records in place.

Environment variables:
  QDRANT_HOST    Qdrant hostname (default: localhost)
  QDRANT_PORT    Qdrant gRPC port (default: 6334)
  OPENAI_API_KEY OpenAI API key for embeddings (required)`,
	RunE: runSync,
}

var clearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Delete every vector from the index",
	RunE:  runClear,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&docsDir, "docs", "docs/collections", "directory of collection YAML documents")
	rootCmd.AddCommand(syncCmd)
	rootCmd.AddCommand(clearCmd)
}

func main() {
	// Load .env file if present (local development), ignore if missing (production)
	_ = godotenv.Load()

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func connect() (*storage.QdrantStorage, error) {
	qdrantHost := getEnv("QDRANT_HOST", "localhost")
	qdrantPort := getEnvInt("QDRANT_PORT", 6334)

	fmt.Printf("Connecting to Qdrant at %s:%d...\n", qdrantHost, qdrantPort)
	store, err := storage.NewQdrantStorage(qdrantHost, qdrantPort)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to Qdrant: %w", err)
	}
	return store, nil
}

func runSync(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	start := time.Now()

	fmt.Println("Starting sync...")
	fmt.Println()

	store, err := connect()
	if err != nil {
		return err
	}
	defer store.Close()

	if err := store.Health(ctx); err != nil {
		return fmt.Errorf("qdrant health check failed: %w", err)
	}
	fmt.Println("Qdrant healthy")

	if err := store.EnsureCollection(ctx, storage.VectorDimension); err != nil {
		return fmt.Errorf("failed to ensure collection: %w", err)
	}

	openaiClient, err := embedding.NewClient()
	if err != nil {
		return fmt.Errorf("failed to create embedding client: %w", err)
	}
	embedder := embedding.NewEmbedder(openaiClient, 0) // Use default batch size

	loader := docs.NewLoader(docsDir, slog.Default())
	pipeline := indexer.NewPipeline(loader, embedder, store, slog.Default())

	fmt.Println()
	fmt.Println("Indexing collection documents...")
	result, err := pipeline.IndexAll(ctx)
	if err != nil {
		return fmt.Errorf("indexing failed: %w", err)
	}

	fmt.Println()
	fmt.Println("Sync complete!")
	fmt.Printf("  Collections: %d/%d\n", result.SuccessfulCollections, result.TotalCollections)
	fmt.Printf("  Mechanics: %d\n", result.TotalMechanics)
	fmt.Printf("  Duration: %s\n", result.Duration.Round(time.Second))

	if len(result.FailedDocs) > 0 {
		fmt.Println()
		fmt.Println("Failed documents:")
		for _, failed := range result.FailedDocs {
			fmt.Printf("  - %s: %s\n", failed.Path, failed.Reason)
		}
	}

	fmt.Println()
	fmt.Printf("Total time: %s\n", time.Since(start).Round(time.Second))

	return nil
}

func runClear(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	store, err := connect()
	if err != nil {
		return err
	}
	defer store.Close()

	fmt.Println("Clearing index...")
	if err := store.DeleteAll(ctx); err != nil {
		return fmt.Errorf("failed to clear index: %w", err)
	}
	fmt.Println("Index cleared")
	return nil
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
