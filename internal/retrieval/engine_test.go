package retrieval

import (
	"context"
	"errors"
	"math"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/raidwise/mechanics-server/internal/model"
	"github.com/raidwise/mechanics-server/internal/storage"
	"github.com/raidwise/mechanics-server/internal/store"
)

// stubEmbedder returns a deterministic vector per text, or a fixed error.
type stubEmbedder struct {
	err error
}

func (s stubEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	if s.err != nil {
		return nil, s.err
	}
	return hashVector(text), nil
}

// hashVector is a toy text embedding: stable, and near-identical texts land
// near each other. Good enough for round-trip tests.
func hashVector(text string) []float32 {
	vec := make([]float32, 32)
	for i, ch := range text {
		vec[i%32] += float32(ch) / 1000.0
	}
	var norm float32
	for _, v := range vec {
		norm += v * v
	}
	if norm > 0 {
		inv := float32(1.0 / math.Sqrt(float64(norm)))
		for i := range vec {
			vec[i] *= inv
		}
	}
	return vec
}

// stubSearcher returns canned hits and records the query it saw.
type stubSearcher struct {
	hits      []storage.ScoredRecord
	err       error
	gotLimit  int
	gotFilter storage.Filter
}

func (s *stubSearcher) Query(_ context.Context, _ []float32, limit int, filter storage.Filter) ([]storage.ScoredRecord, error) {
	s.gotLimit = limit
	s.gotFilter = filter
	if s.err != nil {
		return nil, s.err
	}
	return s.hits, nil
}

// memoryIndex is an in-memory cosine-similarity searcher for round-trip
// tests, with the same filter semantics as the real provider.
type memoryIndex struct {
	records []*storage.Record
}

func (m *memoryIndex) Query(_ context.Context, embedding []float32, limit int, filter storage.Filter) ([]storage.ScoredRecord, error) {
	var hits []storage.ScoredRecord
	for _, rec := range m.records {
		if filter.CollectionName != "" && rec.Meta.CollectionName != filter.CollectionName {
			continue
		}
		hits = append(hits, storage.ScoredRecord{
			MechanicID: rec.MechanicID,
			Score:      float64(cosine(embedding, rec.Embedding)),
			Meta:       rec.Meta,
		})
	}
	sort.Slice(hits, func(i, j int) bool { return hits[i].Score > hits[j].Score })
	if len(hits) > limit {
		hits = hits[:limit]
	}
	return hits, nil
}

func cosine(a, b []float32) float32 {
	if len(a) != len(b) {
		return 0
	}
	var dot, na, nb float32
	for i := range a {
		dot += a[i] * b[i]
		na += a[i] * a[i]
		nb += b[i] * b[i]
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (float32(math.Sqrt(float64(na))) * float32(math.Sqrt(float64(nb))))
}

func intPtr(n int) *int { return &n }

// dualityCorpus builds a store for the Duality collection with boss
// encounters at orders 2 and 5, plus an encounter with no defined order.
func dualityCorpus(t *testing.T) *store.MechanicStore {
	t.Helper()

	duality := &model.Collection{
		ID:   "duality",
		Name: "Duality",
		Type: model.CollectionDungeon,
		Encounters: []model.Encounter{
			{
				ID: "entrance", Name: "Entrance", Type: model.EncounterOpening, Order: intPtr(1),
				Mechanics: []model.Mechanic{
					{ID: "nightmare-intro", Name: "Nightmare Realm Intro", Type: model.MechanicOther,
						Description: "Ring the bell to enter the nightmare realm."},
				},
			},
			{
				ID: "gahlran", Name: "Gahlran", Type: model.EncounterBoss, Order: intPtr(2),
				Mechanics: []model.Mechanic{
					{ID: "gahlran-flow", Name: "Gahlran Encounter Flow", Type: model.MechanicBoss,
						Description: "Alternate between realms, bait the stomp, ring bells to swap."},
					{ID: "gahlran-bells", Name: "Bell Timing", Type: model.MechanicPuzzle,
						Description: "Stand in the bell ring as it tolls or be killed."},
				},
			},
			{
				ID: "vault", Name: "Vault", Type: model.EncounterStandard, Order: intPtr(3),
				Mechanics: []model.Mechanic{
					{ID: "vault-symbols", Name: "Symbol Callouts", Type: model.MechanicSymbol,
						Description: "Call the glyphs above each bell and deposit in order."},
				},
			},
			{
				ID: "caiatl", Name: "Caiatl", Type: model.EncounterBoss, Order: intPtr(5),
				Mechanics: []model.Mechanic{
					{ID: "caiatl-strategy", Name: "Final Stand Strategy", Type: model.MechanicBoss,
						Description: "Break the psion shields, then burn during the standard bearer phase.",
						Solution:    "Split into bell teams of two.", Difficulty: model.DifficultyHard},
					{ID: "caiatl-adds", Name: "Psion Cleanup", Type: model.MechanicAddClear,
						Description: "Clear psions before they stack resonance."},
				},
			},
			{
				ID: "chests", Name: "Hidden Chests", Type: model.EncounterSecret,
				Mechanics: []model.Mechanic{
					{ID: "hidden-chest", Name: "Hidden Chest Route", Type: model.MechanicTraversal,
						Description: "Drop left after the first bell for the hidden chest."},
				},
			},
		},
	}
	require.NoError(t, duality.Validate())

	s := store.New(nil, nil)
	s.RegisterCollection(duality)
	return s
}

func hit(id string, score float64) storage.ScoredRecord {
	return storage.ScoredRecord{MechanicID: id, Score: score}
}

func TestRetrieve_ScoresStayWithinBounds(t *testing.T) {
	searcher := &stubSearcher{hits: []storage.ScoredRecord{
		hit("caiatl-strategy", 0.95), // flow keyword, boost would exceed 1.0
		hit("caiatl-adds", 0.90),
	}}
	engine := NewEngine(dualityCorpus(t), stubEmbedder{}, searcher, nil)

	results, err := engine.Retrieve(context.Background(), "caiatl tips", Options{})
	require.NoError(t, err)
	require.NotEmpty(t, results)

	for _, r := range results {
		assert.GreaterOrEqual(t, r.Score, 0.0)
		assert.LessOrEqual(t, r.Score, 1.0)
	}
	// The flow mechanic was clamped, not pushed past 1.0
	assert.Equal(t, 1.0, results[0].Score)
}

func TestRetrieve_FlowBucketAlwaysFirst(t *testing.T) {
	// Flow mechanic scores far below the non-flow one; it still leads.
	searcher := &stubSearcher{hits: []storage.ScoredRecord{
		hit("caiatl-adds", 0.95),
		hit("gahlran-flow", 0.40),
	}}
	engine := NewEngine(dualityCorpus(t), stubEmbedder{}, searcher, nil)

	results, err := engine.Retrieve(context.Background(), "psion shields", Options{})
	require.NoError(t, err)
	require.Len(t, results, 2)

	assert.Equal(t, "gahlran-flow", results[0].ID)
	assert.True(t, results[0].Flow)
	assert.InDelta(t, 0.70, results[0].Score, 1e-9) // 0.40 + flow boost
	assert.Equal(t, "caiatl-adds", results[1].ID)
	assert.Equal(t, 0.95, results[1].Score)
}

func TestRetrieve_TopKBound(t *testing.T) {
	searcher := &stubSearcher{hits: []storage.ScoredRecord{
		hit("nightmare-intro", 0.9),
		hit("gahlran-bells", 0.8),
		hit("vault-symbols", 0.7),
		hit("caiatl-adds", 0.6),
	}}
	engine := NewEngine(dualityCorpus(t), stubEmbedder{}, searcher, nil)

	results, err := engine.Retrieve(context.Background(), "bells", Options{TopK: 2})
	require.NoError(t, err)
	assert.Len(t, results, 2)
}

func TestRetrieve_AmplifiedProviderLimit(t *testing.T) {
	searcher := &stubSearcher{hits: []storage.ScoredRecord{hit("vault-symbols", 0.7)}}
	engine := NewEngine(dualityCorpus(t), stubEmbedder{}, searcher, nil)

	_, err := engine.Retrieve(context.Background(), "glyph order", Options{TopK: 5})
	require.NoError(t, err)
	assert.Equal(t, 10, searcher.gotLimit) // x2 without a collection filter

	_, err = engine.Retrieve(context.Background(), "glyph order", Options{
		TopK:   5,
		Filter: storage.Filter{CollectionName: "Duality"},
	})
	require.NoError(t, err)
	assert.Equal(t, 20, searcher.gotLimit) // x4 with a collection filter
}

func TestRetrieve_FinalBossTargetsMaxBossOrder(t *testing.T) {
	// Boss encounters sit at orders 2 and 5; "final boss" must resolve to 5.
	searcher := &stubSearcher{hits: []storage.ScoredRecord{
		hit("gahlran-bells", 0.80),   // order 2: dropped
		hit("caiatl-adds", 0.60),     // order 5: boosted
		hit("caiatl-strategy", 0.50), // order 5 + flow: boosted twice, clamped
		hit("hidden-chest", 0.55),    // no order: kept untouched
	}}
	engine := NewEngine(dualityCorpus(t), stubEmbedder{}, searcher, nil)

	results, err := engine.Retrieve(context.Background(), "how do I do the final boss of duality", Options{})
	require.NoError(t, err)

	ids := make(map[string]Result)
	for _, r := range results {
		ids[r.ID] = r
	}

	assert.NotContains(t, ids, "gahlran-bells", "differing defined order must be dropped")

	require.Contains(t, ids, "caiatl-adds")
	assert.InDelta(t, 1.0, ids["caiatl-adds"].Score, 1e-9) // 0.6 + 0.8 clamped

	require.Contains(t, ids, "caiatl-strategy")
	assert.Equal(t, 1.0, ids["caiatl-strategy"].Score) // clamped despite both boosts
	assert.True(t, ids["caiatl-strategy"].Flow)

	require.Contains(t, ids, "hidden-chest")
	assert.InDelta(t, 0.55, ids["hidden-chest"].Score, 1e-9)

	// Position invariant: every result has order 5 or no order at all.
	for _, r := range results {
		if r.Encounter.Order != nil {
			assert.Equal(t, 5, *r.Encounter.Order)
		}
	}
}

func TestRetrieve_SecondBossUnresolvedWithSingleBoss(t *testing.T) {
	onlyBoss := &model.Collection{
		ID: "spire", Name: "Spire of the Watcher", Type: model.CollectionDungeon,
		Encounters: []model.Encounter{
			{ID: "ascend", Name: "Ascend the Spire", Type: model.EncounterTraversal, Order: intPtr(1),
				Mechanics: []model.Mechanic{{ID: "wires", Name: "Wire Routing", Type: model.MechanicPuzzle, Description: "Connect the conduits."}}},
			{ID: "persys", Name: "Persys", Type: model.EncounterBoss, Order: intPtr(2),
				Mechanics: []model.Mechanic{{ID: "persys-dps", Name: "Damage Phase", Type: model.MechanicBoss, Description: "Vent the heat, then burn."}}},
		},
	}
	require.NoError(t, onlyBoss.Validate())
	s := store.New(nil, nil)
	s.RegisterCollection(onlyBoss)

	searcher := &stubSearcher{hits: []storage.ScoredRecord{
		hit("wires", 0.8),
		hit("persys-dps", 0.7),
	}}
	engine := NewEngine(s, stubEmbedder{}, searcher, nil)

	results, err := engine.Retrieve(context.Background(), "second boss of spire of the watcher", Options{})
	require.NoError(t, err)

	// Fewer than two boss encounters: position unresolved, nothing dropped
	// and nothing boosted.
	require.Len(t, results, 2)
	for _, r := range results {
		assert.LessOrEqual(t, r.Score, 0.8)
	}
}

func TestRetrieve_FallbackScansStore(t *testing.T) {
	searcher := &stubSearcher{} // provider returns nothing
	mechanics := dualityCorpus(t)
	engine := NewEngine(mechanics, stubEmbedder{}, searcher, nil)

	results, err := engine.Retrieve(context.Background(), "anything about duality", Options{
		Filter: storage.Filter{CollectionName: "Duality"},
	})
	require.NoError(t, err)

	// Every Duality mechanic comes back; all 7 are in the store.
	assert.Len(t, results, 7)

	for _, r := range results {
		assert.Equal(t, SourceStore, r.Source)
		if r.Flow {
			// Neutral 0.5 plus the flow boost.
			assert.InDelta(t, 0.8, r.Score, 1e-9)
		} else {
			assert.InDelta(t, 0.5, r.Score, 1e-9)
		}
	}

	// Flow bucket still leads the fallback set.
	assert.True(t, results[0].Flow)
}

func TestRetrieve_FallbackResolvesFinalBoss(t *testing.T) {
	searcher := &stubSearcher{}
	engine := NewEngine(dualityCorpus(t), stubEmbedder{}, searcher, nil)

	results, err := engine.Retrieve(context.Background(), "final boss of duality", Options{
		Filter: storage.Filter{CollectionName: "Duality"},
	})
	require.NoError(t, err)
	require.NotEmpty(t, results)

	for _, r := range results {
		if r.Encounter.Order != nil {
			assert.Equal(t, 5, *r.Encounter.Order)
		}
	}
}

func TestRetrieve_MetadataOnlyReconstruction(t *testing.T) {
	order := 4
	searcher := &stubSearcher{hits: []storage.ScoredRecord{
		{
			MechanicID: "ghost-mechanic",
			Score:      0.9,
			Meta: storage.RecordMeta{
				MechanicName:   "Deepsight Puzzle",
				MechanicType:   "puzzle",
				EncounterID:    "ecthar",
				EncounterName:  "Ecthar",
				EncounterType:  "boss",
				EncounterOrder: &order,
				CollectionID:   "gotd",
				CollectionName: "Ghosts of the Deep",
				CollectionType: "dungeon",
			},
		},
	}}
	// Empty store: nothing to resolve from, metadata is all we have.
	engine := NewEngine(store.New(nil, nil), stubEmbedder{}, searcher, nil)

	results, err := engine.Retrieve(context.Background(), "deepsight puzzle", Options{})
	require.NoError(t, err)
	require.Len(t, results, 1)

	r := results[0]
	assert.Equal(t, SourceMetadata, r.Source)
	assert.Equal(t, MetadataOnlyDescription, r.Mechanic.Description)
	assert.Equal(t, "Deepsight Puzzle", r.Mechanic.Name)
	assert.Equal(t, "Ghosts of the Deep", r.Collection.Name)
	require.NotNil(t, r.Encounter.Order)
	assert.Equal(t, 4, *r.Encounter.Order)
}

func TestRetrieve_ProviderErrorsWrapped(t *testing.T) {
	boom := errors.New("connection refused")

	engine := NewEngine(dualityCorpus(t), stubEmbedder{err: boom}, &stubSearcher{}, nil)
	_, err := engine.Retrieve(context.Background(), "anything", Options{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "retrieval failed")
	assert.ErrorIs(t, err, boom)

	engine = NewEngine(dualityCorpus(t), stubEmbedder{}, &stubSearcher{err: boom}, nil)
	_, err = engine.Retrieve(context.Background(), "anything", Options{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "retrieval failed")
	assert.ErrorIs(t, err, boom)
}

func TestRetrieve_RoundTripThroughIndex(t *testing.T) {
	mechanics := dualityCorpus(t)
	embedder := stubEmbedder{}

	// Index every store entry the way sync does: one vector per mechanic.
	index := &memoryIndex{}
	for _, entry := range mechanics.All() {
		vec, err := embedder.Embed(context.Background(), entry.Mechanic.Name+" "+entry.Mechanic.Description)
		require.NoError(t, err)
		order := entry.Encounter.Order
		index.records = append(index.records, &storage.Record{
			MechanicID: entry.Mechanic.ID,
			Embedding:  vec,
			Meta: storage.RecordMeta{
				MechanicName:   entry.Mechanic.Name,
				MechanicType:   string(entry.Mechanic.Type),
				EncounterID:    entry.Encounter.ID,
				EncounterName:  entry.Encounter.Name,
				EncounterType:  string(entry.Encounter.Type),
				EncounterOrder: order,
				CollectionID:   entry.Collection.ID,
				CollectionName: entry.Collection.Name,
				CollectionType: string(entry.Collection.Type),
			},
		})
	}

	engine := NewEngine(mechanics, embedder, index, nil)

	// Near-exact text lands the mechanic in the results.
	results, err := engine.Retrieve(context.Background(),
		"Symbol Callouts Call the glyphs above each bell", Options{})
	require.NoError(t, err)

	found := false
	for _, r := range results {
		if r.ID == "vault-symbols" {
			found = true
		}
	}
	assert.True(t, found, "ingested mechanic should be retrievable by its own text")
}
