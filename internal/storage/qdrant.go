// Package storage wraps the Qdrant vector database: the similarity-search
// provider behind the retrieval engine.
package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"github.com/qdrant/go-client/qdrant"
)

// pointNamespace seeds deterministic UUIDv5 point IDs from mechanic IDs,
// so re-ingesting a mechanic overwrites its point in place.
var pointNamespace = uuid.MustParse("8f2b4c1e-5a97-4d36-9f0d-2f6c1b7a8e43")

// QdrantStorage wraps the Qdrant client with connection management and
// health checks.
type QdrantStorage struct {
	client *qdrant.Client
	host   string
	port   int
}

// NewQdrantStorage creates a new Qdrant client with health validation.
// It performs a health check with retry on startup and fails fast if Qdrant
// is unreachable.
func NewQdrantStorage(host string, port int) (*QdrantStorage, error) {
	client, err := qdrant.NewClient(&qdrant.Config{
		Host: host,
		Port: port,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create qdrant client: %w", err)
	}

	s := &QdrantStorage{client: client, host: host, port: port}

	ctx := context.Background()
	if err := s.healthCheckWithRetry(ctx); err != nil {
		client.Close()
		return nil, fmt.Errorf("%w: %v", ErrQdrantUnreachable, err)
	}

	return s, nil
}

// healthCheckWithRetry performs the startup health check with exponential
// backoff. Initial interval 500ms, max interval 10s, max elapsed 30s.
func (s *QdrantStorage) healthCheckWithRetry(ctx context.Context) error {
	exponentialBackoff := backoff.NewExponentialBackOff()
	exponentialBackoff.InitialInterval = 500 * time.Millisecond
	exponentialBackoff.MaxInterval = 10 * time.Second
	exponentialBackoff.MaxElapsedTime = 30 * time.Second

	return backoff.Retry(func() error {
		return s.Health(ctx)
	}, backoff.WithContext(exponentialBackoff, ctx))
}

// Health performs a single health check against Qdrant.
func (s *QdrantStorage) Health(ctx context.Context) error {
	result, err := s.client.HealthCheck(ctx)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	if result == nil || result.Title == "" {
		return fmt.Errorf("health check returned invalid response")
	}
	return nil
}

// EnsureCollection ensures the mechanics collection exists with the given
// vector dimension (cosine distance) and payload indexes for every
// filterable field. Idempotent.
func (s *QdrantStorage) EnsureCollection(ctx context.Context, dimension uint64) error {
	collections, err := s.client.ListCollections(ctx)
	if err != nil {
		return fmt.Errorf("failed to list collections: %w", err)
	}

	for _, name := range collections {
		if name == CollectionName {
			return nil
		}
	}

	err = s.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: CollectionName,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     dimension,
			Distance: qdrant.Distance_Cosine,
		}),
	})
	if err != nil {
		return fmt.Errorf("failed to create collection: %w", err)
	}

	if err := s.createPayloadIndexes(ctx); err != nil {
		return fmt.Errorf("failed to create payload indexes: %w", err)
	}

	return nil
}

// createPayloadIndexes creates indexes for the filterable payload fields.
// Without these, filtered queries fall back to full scans.
func (s *QdrantStorage) createPayloadIndexes(ctx context.Context) error {
	keywordFields := []string{
		"mechanic_id",
		"collection_name",
		"encounter_type",
		"mechanic_type",
		"difficulty",
	}

	for _, field := range keywordFields {
		_, err := s.client.CreateFieldIndex(ctx, &qdrant.CreateFieldIndexCollection{
			CollectionName: CollectionName,
			FieldName:      field,
			FieldType:      qdrant.FieldType_FieldTypeKeyword.Enum(),
		})
		if err != nil {
			return fmt.Errorf("failed to create index for field %s: %w", field, err)
		}
	}

	_, err := s.client.CreateFieldIndex(ctx, &qdrant.CreateFieldIndexCollection{
		CollectionName: CollectionName,
		FieldName:      "contest_mode",
		FieldType:      qdrant.FieldType_FieldTypeBool.Enum(),
	})
	if err != nil {
		return fmt.Errorf("failed to create index for field contest_mode: %w", err)
	}

	return nil
}

// DeleteAll removes every point by dropping and recreating the collection.
func (s *QdrantStorage) DeleteAll(ctx context.Context) error {
	if err := s.client.DeleteCollection(ctx, CollectionName); err != nil {
		return fmt.Errorf("failed to delete collection: %w", err)
	}
	return s.EnsureCollection(ctx, VectorDimension)
}

// DeleteByIDs removes the points for the given mechanic IDs.
func (s *QdrantStorage) DeleteByIDs(ctx context.Context, mechanicIDs []string) error {
	if len(mechanicIDs) == 0 {
		return nil
	}
	ids := make([]*qdrant.PointId, len(mechanicIDs))
	for i, id := range mechanicIDs {
		ids[i] = qdrant.NewIDUUID(pointID(id))
	}
	_, err := s.client.Delete(ctx, &qdrant.DeletePoints{
		CollectionName: CollectionName,
		Points:         qdrant.NewPointsSelector(ids...),
	})
	if err != nil {
		return fmt.Errorf("failed to delete points: %w", err)
	}
	return nil
}

// Close closes the Qdrant client connection.
func (s *QdrantStorage) Close() error {
	if s.client != nil {
		return s.client.Close()
	}
	return nil
}

// upsertWithRetry performs an upsert with exponential backoff retry.
func (s *QdrantStorage) upsertWithRetry(ctx context.Context, points []*qdrant.PointStruct) error {
	exponentialBackoff := backoff.NewExponentialBackOff()
	exponentialBackoff.InitialInterval = 500 * time.Millisecond
	exponentialBackoff.MaxInterval = 10 * time.Second
	exponentialBackoff.MaxElapsedTime = 30 * time.Second

	operation := func() error {
		_, err := s.client.Upsert(ctx, &qdrant.UpsertPoints{
			CollectionName: CollectionName,
			Points:         points,
		})
		return err
	}

	return backoff.Retry(operation, backoff.WithContext(exponentialBackoff, ctx))
}

// UpsertRecords stores mechanic vectors with their metadata payloads.
// Records are batched in groups of 100.
func (s *QdrantStorage) UpsertRecords(ctx context.Context, records []*Record) error {
	if len(records) == 0 {
		return nil
	}

	for i, rec := range records {
		if len(rec.Embedding) != VectorDimension {
			return fmt.Errorf("%w: record %d has %d dimensions, expected %d",
				ErrDimensionMismatch, i, len(rec.Embedding), VectorDimension)
		}
	}

	batchSize := 100
	for i := 0; i < len(records); i += batchSize {
		end := min(i+batchSize, len(records))
		batch := records[i:end]
		points := make([]*qdrant.PointStruct, len(batch))

		for j, rec := range batch {
			points[j] = &qdrant.PointStruct{
				Id:      qdrant.NewIDUUID(pointID(rec.MechanicID)),
				Vectors: qdrant.NewVectors(rec.Embedding...),
				Payload: qdrant.NewValueMap(buildPayload(rec)),
			}
		}

		if err := s.upsertWithRetry(ctx, points); err != nil {
			return fmt.Errorf("failed to upsert batch %d-%d: %w", i, end, err)
		}
	}

	return nil
}

// Query performs vector similarity search with an optional equality filter.
// Returns up to limit hits ordered by score descending.
func (s *QdrantStorage) Query(ctx context.Context, embedding []float32, limit int, filter Filter) ([]ScoredRecord, error) {
	if len(embedding) != VectorDimension {
		return nil, fmt.Errorf("%w: query has %d dimensions, expected %d",
			ErrDimensionMismatch, len(embedding), VectorDimension)
	}

	qdrantFilter := buildFilter(filter)

	results, err := s.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: CollectionName,
		Query:          qdrant.NewQuery(embedding...),
		Filter:         qdrantFilter,
		Limit:          qdrant.PtrOf(uint64(limit)),
		WithPayload:    qdrant.NewWithPayload(true),
		WithVectors:    qdrant.NewWithVectors(false),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to query mechanics: %w", err)
	}

	hits := make([]ScoredRecord, 0, len(results))
	for _, result := range results {
		meta, mechanicID := parsePayload(result.Payload)
		hits = append(hits, ScoredRecord{
			MechanicID: mechanicID,
			Score:      float64(result.Score),
			Meta:       meta,
		})
	}

	return hits, nil
}

// Count returns the number of points in the collection.
func (s *QdrantStorage) Count(ctx context.Context) (uint64, error) {
	collection, err := s.client.GetCollectionInfo(ctx, CollectionName)
	if err != nil {
		return 0, fmt.Errorf("failed to get collection info: %w", err)
	}
	return collection.GetPointsCount(), nil
}

// buildFilter converts the equality filter into Qdrant match conditions.
// Returns nil when no condition is set.
func buildFilter(f Filter) *qdrant.Filter {
	var must []*qdrant.Condition
	if f.CollectionName != "" {
		must = append(must, qdrant.NewMatch("collection_name", f.CollectionName))
	}
	if f.EncounterType != "" {
		must = append(must, qdrant.NewMatch("encounter_type", f.EncounterType))
	}
	if f.MechanicType != "" {
		must = append(must, qdrant.NewMatch("mechanic_type", f.MechanicType))
	}
	if f.Difficulty != "" {
		must = append(must, qdrant.NewMatch("difficulty", f.Difficulty))
	}
	if f.ContestModeOnly != nil {
		must = append(must, qdrant.NewMatchBool("contest_mode", *f.ContestModeOnly))
	}
	if len(must) == 0 {
		return nil
	}
	return &qdrant.Filter{Must: must}
}

// buildPayload flattens a record into the stored payload map.
func buildPayload(rec *Record) map[string]any {
	payload := map[string]any{
		"mechanic_id":     rec.MechanicID,
		"mechanic_name":   rec.Meta.MechanicName,
		"mechanic_type":   rec.Meta.MechanicType,
		"difficulty":      rec.Meta.Difficulty,
		"contest_mode":    rec.Meta.ContestMode,
		"contest_notes":   rec.Meta.ContestNotes,
		"encounter_id":    rec.Meta.EncounterID,
		"encounter_name":  rec.Meta.EncounterName,
		"encounter_type":  rec.Meta.EncounterType,
		"collection_id":   rec.Meta.CollectionID,
		"collection_name": rec.Meta.CollectionName,
		"collection_type": rec.Meta.CollectionType,
	}

	if rec.Meta.EncounterOrder != nil {
		payload["encounter_order"] = *rec.Meta.EncounterOrder
	}

	related := make([]interface{}, len(rec.Meta.Related))
	for i, r := range rec.Meta.Related {
		related[i] = r
	}
	payload["related"] = related

	return payload
}

// parsePayload rebuilds the metadata projection from a stored payload.
func parsePayload(payload map[string]*qdrant.Value) (RecordMeta, string) {
	meta := RecordMeta{
		MechanicName:   payload["mechanic_name"].GetStringValue(),
		MechanicType:   payload["mechanic_type"].GetStringValue(),
		Difficulty:     payload["difficulty"].GetStringValue(),
		ContestMode:    payload["contest_mode"].GetBoolValue(),
		ContestNotes:   payload["contest_notes"].GetStringValue(),
		EncounterID:    payload["encounter_id"].GetStringValue(),
		EncounterName:  payload["encounter_name"].GetStringValue(),
		EncounterType:  payload["encounter_type"].GetStringValue(),
		CollectionID:   payload["collection_id"].GetStringValue(),
		CollectionName: payload["collection_name"].GetStringValue(),
		CollectionType: payload["collection_type"].GetStringValue(),
	}

	// encounter_order is written only when the encounter defines an order,
	// so key presence is the definedness signal.
	if v, ok := payload["encounter_order"]; ok {
		order := int(v.GetIntegerValue())
		meta.EncounterOrder = &order
	}

	if relatedVal, ok := payload["related"]; ok && relatedVal.GetListValue() != nil {
		for _, val := range relatedVal.GetListValue().Values {
			meta.Related = append(meta.Related, val.GetStringValue())
		}
	}

	return meta, payload["mechanic_id"].GetStringValue()
}

// pointID derives the deterministic point UUID for a mechanic ID.
func pointID(mechanicID string) string {
	return uuid.NewSHA1(pointNamespace, []byte(mechanicID)).String()
}
