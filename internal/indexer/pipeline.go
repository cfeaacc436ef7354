// Package indexer builds the vector index from collection source documents.
package indexer

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/raidwise/mechanics-server/internal/docs"
	"github.com/raidwise/mechanics-server/internal/embedding"
	"github.com/raidwise/mechanics-server/internal/model"
	"github.com/raidwise/mechanics-server/internal/storage"
)

// IndexResult contains statistics about an indexing operation.
type IndexResult struct {
	TotalCollections      int
	SuccessfulCollections int
	TotalMechanics        int
	FailedDocs            []docs.FailedDoc
	Duration              time.Duration
}

// VectorStore is the slice of the storage layer the pipeline writes to.
type VectorStore interface {
	UpsertRecords(ctx context.Context, records []*storage.Record) error
}

// Pipeline orchestrates the full indexing process from source documents to
// vector storage.
type Pipeline struct {
	loader   *docs.Loader
	embedder embedding.Embedder
	storage  VectorStore
	logger   *slog.Logger
}

// NewPipeline creates an indexing pipeline with the given components.
func NewPipeline(loader *docs.Loader, embedder embedding.Embedder, store VectorStore, logger *slog.Logger) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{
		loader:   loader,
		embedder: embedder,
		storage:  store,
		logger:   logger,
	}
}

// IndexAll loads every collection document, embeds each mechanic and
// upserts the records. A failed collection is skipped; the rest still index.
func (p *Pipeline) IndexAll(ctx context.Context) (*IndexResult, error) {
	start := time.Now()

	loaded, err := p.loader.LoadAll()
	if err != nil {
		return nil, fmt.Errorf("load documents: %w", err)
	}

	result := &IndexResult{
		TotalCollections: len(loaded.Collections) + len(loaded.Failed),
		FailedDocs:       loaded.Failed,
	}
	p.logger.Info("Starting indexing", "collections", len(loaded.Collections), "rejected", len(loaded.Failed))

	for _, col := range loaded.Collections {
		mechanics, err := p.indexCollection(ctx, col)
		if err != nil {
			p.logger.Warn("Failed to index collection", "collection", col.ID, "error", err)
			result.FailedDocs = append(result.FailedDocs, docs.FailedDoc{
				Path:   col.ID,
				Reason: err.Error(),
			})
			continue
		}
		result.SuccessfulCollections++
		result.TotalMechanics += mechanics
	}

	result.Duration = time.Since(start)
	p.logger.Info("Indexing complete",
		"successful", result.SuccessfulCollections,
		"failed", len(result.FailedDocs),
		"mechanics", result.TotalMechanics,
		"duration", result.Duration,
	)

	return result, nil
}

// indexCollection embeds and upserts every mechanic in one collection.
// Returns the number of mechanics indexed.
func (p *Pipeline) indexCollection(ctx context.Context, col *model.Collection) (int, error) {
	var records []*storage.Record
	var texts []string

	for _, enc := range col.Encounters {
		for _, mech := range enc.Mechanics {
			records = append(records, buildRecord(col, enc, mech))
			texts = append(texts, EmbedText(col, enc, mech))
		}
	}
	if len(records) == 0 {
		return 0, nil
	}

	embeddings, err := p.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return 0, fmt.Errorf("embeddings: %w", err)
	}
	for i := range records {
		records[i].Embedding = embeddings[i]
	}

	if err := p.storage.UpsertRecords(ctx, records); err != nil {
		return 0, fmt.Errorf("store records: %w", err)
	}

	p.logger.Info("Indexed collection", "collection", col.Name, "mechanics", len(records))
	return len(records), nil
}

// buildRecord flattens the triple into the stored metadata projection.
func buildRecord(col *model.Collection, enc model.Encounter, mech model.Mechanic) *storage.Record {
	meta := storage.RecordMeta{
		MechanicName: mech.Name,
		MechanicType: string(mech.Type),
		Difficulty:   string(mech.Difficulty),
		ContestMode:  mech.ContestMode,
		ContestNotes: mech.ContestNotes,
		Related:      mech.Related,

		EncounterID:   enc.ID,
		EncounterName: enc.Name,
		EncounterType: string(enc.Type),

		CollectionID:   col.ID,
		CollectionName: col.Name,
		CollectionType: string(col.Type),
	}
	if enc.Order != nil {
		order := *enc.Order
		meta.EncounterOrder = &order
	}
	return &storage.Record{MechanicID: mech.ID, Meta: meta}
}

// EmbedText is the canonical text embedded for a mechanic: enough context
// that queries about the encounter or collection land on it.
func EmbedText(col *model.Collection, enc model.Encounter, mech model.Mechanic) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s. %s. %s. %s", col.Name, enc.Name, mech.Name, mech.Description)
	if mech.Solution != "" {
		fmt.Fprintf(&b, " Solution: %s", mech.Solution)
	}
	if len(mech.Tips) > 0 {
		fmt.Fprintf(&b, " Tips: %s", strings.Join(mech.Tips, " "))
	}
	return b.String()
}
