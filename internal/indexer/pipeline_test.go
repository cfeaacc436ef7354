package indexer

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/raidwise/mechanics-server/internal/docs"
	"github.com/raidwise/mechanics-server/internal/model"
	"github.com/raidwise/mechanics-server/internal/storage"
)

type fakeEmbedder struct {
	batchErr error
	calls    int
}

func (f *fakeEmbedder) Embed(_ context.Context, _ string) ([]float32, error) {
	return []float32{0.1, 0.2}, nil
}

func (f *fakeEmbedder) EmbedBatch(_ context.Context, texts []string) ([][]float32, error) {
	f.calls++
	if f.batchErr != nil {
		return nil, f.batchErr
	}
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = []float32{float32(i), 0.5}
	}
	return out, nil
}

type captureStore struct {
	records []*storage.Record
	err     error
}

func (c *captureStore) UpsertRecords(_ context.Context, records []*storage.Record) error {
	if c.err != nil {
		return c.err
	}
	c.records = append(c.records, records...)
	return nil
}

const dualityDoc = `id: duality
name: Duality
type: dungeon
encounters:
  - id: gahlran
    name: Gahlran
    type: boss
    order: 2
    mechanics:
      - id: gahlran-bells
        name: Bell Timing
        type: puzzle
        description: Stand in the bell ring as it tolls.
        solution: Count the tolls and move on the third.
        tips:
          - Bring a long-range weapon.
  - id: chests
    name: Hidden Chests
    type: secret
    mechanics:
      - id: hidden-chest
        name: Hidden Chest Route
        type: traversal
        description: Drop left after the first bell.
`

func docsDir(t *testing.T, files map[string]string) *docs.Loader {
	t.Helper()
	dir := t.TempDir()
	for name, content := range files {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
	}
	return docs.NewLoader(dir, nil)
}

func TestIndexAll(t *testing.T) {
	loader := docsDir(t, map[string]string{"duality.yaml": dualityDoc})
	embedder := &fakeEmbedder{}
	store := &captureStore{}

	result, err := NewPipeline(loader, embedder, store, nil).IndexAll(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, result.TotalCollections)
	assert.Equal(t, 1, result.SuccessfulCollections)
	assert.Equal(t, 2, result.TotalMechanics)
	assert.Empty(t, result.FailedDocs)
	assert.Equal(t, 1, embedder.calls, "one batch per collection")

	require.Len(t, store.records, 2)
	byID := map[string]*storage.Record{}
	for _, rec := range store.records {
		require.NotEmpty(t, rec.Embedding, "every record carries its embedding")
		byID[rec.MechanicID] = rec
	}

	bells := byID["gahlran-bells"]
	require.NotNil(t, bells)
	assert.Equal(t, "Bell Timing", bells.Meta.MechanicName)
	assert.Equal(t, "Duality", bells.Meta.CollectionName)
	require.NotNil(t, bells.Meta.EncounterOrder)
	assert.Equal(t, 2, *bells.Meta.EncounterOrder)

	chest := byID["hidden-chest"]
	require.NotNil(t, chest)
	assert.Nil(t, chest.Meta.EncounterOrder, "undefined order stays undefined")
}

func TestIndexAllSkipsFailedCollections(t *testing.T) {
	loader := docsDir(t, map[string]string{
		"duality.yaml": dualityDoc,
		"broken.yaml":  "id: broken\nname: Broken\ntype: dungeon\nencounters: []\n",
	})
	store := &captureStore{}

	result, err := NewPipeline(loader, &fakeEmbedder{}, store, nil).IndexAll(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 2, result.TotalCollections)
	assert.Equal(t, 1, result.SuccessfulCollections)
	require.Len(t, result.FailedDocs, 1)
	assert.Len(t, store.records, 2)
}

func TestIndexAllPropagatesUpsertFailure(t *testing.T) {
	loader := docsDir(t, map[string]string{"duality.yaml": dualityDoc})
	store := &captureStore{err: errors.New("qdrant down")}

	result, err := NewPipeline(loader, &fakeEmbedder{}, store, nil).IndexAll(context.Background())
	require.NoError(t, err, "a failed collection is reported, not fatal")
	assert.Equal(t, 0, result.SuccessfulCollections)
	require.Len(t, result.FailedDocs, 1)
	assert.Contains(t, result.FailedDocs[0].Reason, "qdrant down")
}

func TestEmbedTextComposition(t *testing.T) {
	order := 1
	col := &model.Collection{Name: "Duality"}
	enc := model.Encounter{Name: "Gahlran", Order: &order}
	mech := model.Mechanic{
		Name:        "Bell Timing",
		Description: "Stand in the ring.",
		Solution:    "Count the tolls.",
		Tips:        []string{"Bring range.", "Stay grouped."},
	}

	text := EmbedText(col, enc, mech)
	for _, want := range []string{
		"Duality", "Gahlran", "Bell Timing", "Stand in the ring.",
		"Solution: Count the tolls.",
		"Tips: Bring range. Stay grouped.",
	} {
		assert.Contains(t, text, want)
	}
	assert.True(t, strings.HasPrefix(text, "Duality. Gahlran. Bell Timing."))
}
