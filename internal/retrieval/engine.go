// Package retrieval orchestrates the search pipeline: embed the query,
// run filtered similarity search, fall back to a direct store scan, apply
// position and flow boosts, and return a bounded, bucketed result list.
package retrieval

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/raidwise/mechanics-server/internal/model"
	"github.com/raidwise/mechanics-server/internal/query"
	"github.com/raidwise/mechanics-server/internal/storage"
	"github.com/raidwise/mechanics-server/internal/store"
)

const (
	// DefaultTopK is the result limit when the caller does not set one.
	DefaultTopK = 10

	// positionBoost is added to a result whose encounter order matches the
	// resolved target order. Empirical constant, kept as-is.
	positionBoost = 0.8

	// flowBoost is added to flow mechanics. Empirical constant, kept as-is.
	flowBoost = 0.3

	// maxScore clamps every boosted score.
	maxScore = 1.0

	// fallbackScore is the neutral score assigned to store-scan candidates
	// when the vector search returns nothing.
	fallbackScore = 0.5
)

// flowKeywords mark mechanics that describe overall encounter strategy.
// Matched case-insensitively against the mechanic name.
var flowKeywords = []string{"flow", "strategy", "progression", "overall encounter"}

// VectorSearcher is the narrow similarity-search interface the engine
// depends on. storage.QdrantStorage satisfies it.
type VectorSearcher interface {
	Query(ctx context.Context, embedding []float32, limit int, filter storage.Filter) ([]storage.ScoredRecord, error)
}

// Embedder converts text to a fixed-length vector.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Options control a single retrieval call.
type Options struct {
	Filter storage.Filter
	TopK   int
}

// Engine runs the retrieval pipeline. Provider failures are wrapped and
// surfaced; no retry happens at this level.
type Engine struct {
	store    *store.MechanicStore
	embedder Embedder
	searcher VectorSearcher
	logger   *slog.Logger
}

// NewEngine creates a retrieval engine over the given collaborators.
func NewEngine(mechanics *store.MechanicStore, embedder Embedder, searcher VectorSearcher, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		store:    mechanics,
		embedder: embedder,
		searcher: searcher,
		logger:   logger,
	}
}

// Retrieve answers a free-text query with an ordered result list of length
// at most opts.TopK. Flow mechanics always precede the rest, regardless of
// score.
func (e *Engine) Retrieve(ctx context.Context, rawQuery string, opts Options) ([]Result, error) {
	topK := opts.TopK
	if topK <= 0 {
		topK = DefaultTopK
	}

	if err := e.store.EnsureLoaded(ctx); err != nil {
		e.logger.Warn("Mechanic store load failed, continuing with vector metadata only", "error", err)
	}

	intent := query.Interpret(rawQuery)
	finalHint := query.DetectFinal(rawQuery)

	// Collection intent from the query only narrows when the caller did not
	// already filter explicitly.
	filter := opts.Filter
	if filter.CollectionName == "" && intent.CollectionName != "" {
		filter.CollectionName = intent.CollectionName
	}

	var targetOrder *int
	if intent.Position != nil && filter.CollectionName != "" {
		targetOrder = e.resolveTargetOrder(filter.CollectionName, intent.Position)
	}

	embedding, err := e.embedder.Embed(ctx, rawQuery)
	if err != nil {
		return nil, fmt.Errorf("retrieval failed: embed query: %w", err)
	}

	// Position and flow filtering happen after search, so over-fetch to keep
	// the candidate pool large enough.
	amplified := topK * 2
	if filter.CollectionName != "" {
		amplified = topK * 4
	}

	hits, err := e.searcher.Query(ctx, embedding, amplified, filter)
	if err != nil {
		return nil, fmt.Errorf("retrieval failed: vector search: %w", err)
	}

	var candidates []Result
	usedFallback := false

	if len(hits) == 0 && filter.CollectionName != "" {
		// Vector index is empty or out of sync for this collection; serve
		// directly from the store at a neutral score.
		candidates = e.fallbackCandidates(filter.CollectionName)
		usedFallback = true
		e.logger.Info("Vector search empty, using store fallback",
			"collection", filter.CollectionName, "candidates", len(candidates))

		if targetOrder == nil && finalHint.Detected {
			targetOrder = maxOrder(candidates, e.finalBossOnly(intent, finalHint))
		}
	} else {
		candidates = e.resolveHits(hits)
	}

	if targetOrder == nil && finalHint.Detected && !usedFallback {
		targetOrder = maxOrder(candidates, e.finalBossOnly(intent, finalHint))
	}

	results := applyPositionFilter(candidates, targetOrder)

	flow, other := splitFlow(results)
	sort.SliceStable(flow, func(i, j int) bool { return flow[i].Score > flow[j].Score })
	sort.SliceStable(other, func(i, j int) bool { return other[i].Score > other[j].Score })

	final := append(flow, other...)
	if len(final) > topK {
		final = final[:topK]
	}
	return final, nil
}

// resolveTargetOrder turns a position spec into a concrete encounter order
// by scanning the store for the collection. Returns nil when the position
// cannot be resolved (e.g. "second boss" with a single boss encounter).
func (e *Engine) resolveTargetOrder(collectionName string, spec *query.PositionSpec) *int {
	if spec.OrderNumber != nil {
		n := *spec.OrderNumber
		return &n
	}

	orders := e.encounterOrders(collectionName, spec.IsBossQuery)
	if len(orders) == 0 {
		return nil
	}

	if spec.Position == query.PositionFinal {
		max := orders[len(orders)-1]
		return &max
	}

	n := spec.Position.Ordinal()
	if n == 0 || len(orders) < n {
		return nil
	}
	nth := orders[n-1]
	return &nth
}

// encounterOrders returns the defined orders of distinct encounters in the
// collection, ascending, optionally restricted to boss-type encounters.
func (e *Engine) encounterOrders(collectionName string, bossOnly bool) []int {
	seen := make(map[string]bool)
	var orders []int
	for _, entry := range e.store.All() {
		if !strings.EqualFold(entry.Collection.Name, collectionName) {
			continue
		}
		if bossOnly && entry.Encounter.Type != model.EncounterBoss {
			continue
		}
		if entry.Encounter.Order == nil || seen[entry.Encounter.ID] {
			continue
		}
		seen[entry.Encounter.ID] = true
		orders = append(orders, *entry.Encounter.Order)
	}
	sort.Ints(orders)
	return orders
}

// fallbackCandidates builds results for every store mechanic in the
// collection at the neutral fallback score.
func (e *Engine) fallbackCandidates(collectionName string) []Result {
	var out []Result
	for _, entry := range e.store.All() {
		if strings.EqualFold(entry.Collection.Name, collectionName) {
			out = append(out, resultFromEntry(entry, fallbackScore))
		}
	}
	return out
}

// resolveHits turns provider hits into results, preferring the live store
// and degrading to payload metadata when the store has no entry yet.
func (e *Engine) resolveHits(hits []storage.ScoredRecord) []Result {
	out := make([]Result, 0, len(hits))
	for _, hit := range hits {
		if entry, ok := e.store.Get(hit.MechanicID); ok {
			out = append(out, resultFromEntry(entry, hit.Score))
			continue
		}
		out = append(out, resultFromMeta(hit.MechanicID, hit.Score, hit.Meta))
	}
	return out
}

// finalBossOnly decides whether the late max-order pass is restricted to
// boss encounters, preferring the parsed intent over the literal hint.
func (e *Engine) finalBossOnly(intent query.Intent, hint query.FinalHint) bool {
	if intent.Position != nil && intent.Position.Position == query.PositionFinal {
		return intent.Position.IsBossQuery
	}
	return hint.BossOnly
}

// applyPositionFilter enforces the resolved target order: exact matches are
// boosted, differing defined orders are dropped, undefined orders pass
// through untouched (order data may be genuinely absent).
func applyPositionFilter(candidates []Result, targetOrder *int) []Result {
	if targetOrder == nil {
		return candidates
	}
	out := make([]Result, 0, len(candidates))
	for _, r := range candidates {
		switch {
		case r.Encounter.Order == nil:
			out = append(out, r)
		case *r.Encounter.Order == *targetOrder:
			r.Score = clamp(r.Score + positionBoost)
			out = append(out, r)
		}
	}
	return out
}

// maxOrder finds the highest defined encounter order among the results,
// optionally restricted to boss encounters. Returns nil when none is
// defined.
func maxOrder(results []Result, bossOnly bool) *int {
	var best *int
	for _, r := range results {
		if bossOnly && r.Encounter.Type != model.EncounterBoss {
			continue
		}
		if r.Encounter.Order == nil {
			continue
		}
		if best == nil || *r.Encounter.Order > *best {
			v := *r.Encounter.Order
			best = &v
		}
	}
	return best
}

// splitFlow boosts flow mechanics and segregates them from the rest. Flow
// mechanics are never interleaved with others, whatever the scores.
func splitFlow(results []Result) (flow, other []Result) {
	for _, r := range results {
		if isFlowMechanic(r.Mechanic.Name) {
			r.Flow = true
			r.Score = clamp(r.Score + flowBoost)
			flow = append(flow, r)
		} else {
			other = append(other, r)
		}
	}
	return flow, other
}

// isFlowMechanic reports whether the mechanic name signals overall
// encounter strategy rather than a specific sub-puzzle.
func isFlowMechanic(name string) bool {
	lower := strings.ToLower(name)
	for _, kw := range flowKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

func clamp(score float64) float64 {
	if score > maxScore {
		return maxScore
	}
	return score
}
