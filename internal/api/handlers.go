package api

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/raidwise/mechanics-server/internal/generator"
	"github.com/raidwise/mechanics-server/internal/prompt"
	"github.com/raidwise/mechanics-server/internal/retrieval"
	"github.com/raidwise/mechanics-server/internal/storage"
)

// Handler serves the search and chat endpoints.
type Handler struct {
	engine  *retrieval.Engine
	gen     *generator.Generator
	cache   *ResponseCache
	limiter *RateLimiter
	logger  *slog.Logger
}

// NewHandler wires the API over the retrieval engine and generator.
func NewHandler(engine *retrieval.Engine, gen *generator.Generator, cache *ResponseCache, limiter *RateLimiter, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{engine: engine, gen: gen, cache: cache, limiter: limiter, logger: logger}
}

// RegisterRoutes mounts the endpoints on the mux, gated by the rate limiter.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.Handle("POST /api/search", h.limiter.Middleware(http.HandlerFunc(h.handleSearch)))
	mux.Handle("POST /api/chat", h.limiter.Middleware(http.HandlerFunc(h.handleChat)))
}

func (h *Handler) handleSearch(w http.ResponseWriter, r *http.Request) {
	var req SearchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(req.Query) == "" {
		writeError(w, http.StatusBadRequest, "query is required")
		return
	}

	key := cacheKey(req)
	if cached, ok := h.cache.Get(key); ok {
		resp := cached.(SearchResponse)
		resp.Cached = true
		writeJSON(w, http.StatusOK, resp)
		return
	}

	results, err := h.engine.Retrieve(r.Context(), req.Query, retrieval.Options{
		Filter: toStorageFilter(req.Filters),
		TopK:   req.Limit,
	})
	if err != nil {
		h.logger.Error("Search failed", "error", err)
		writeError(w, http.StatusBadGateway, "search failed")
		return
	}

	resp := SearchResponse{Results: toItems(results)}
	h.cache.Set(key, resp)
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) handleChat(w http.ResponseWriter, r *http.Request) {
	var req ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(req.Query) == "" {
		writeError(w, http.StatusBadRequest, "query is required")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no") // Disable nginx buffering

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	ctx := r.Context()

	results, err := h.engine.Retrieve(ctx, req.Query, retrieval.Options{
		Filter: toStorageFilter(req.Filters),
	})
	if err != nil {
		h.logger.Error("Chat retrieval failed", "error", err)
		h.writeSSE(w, flusher, SSEEvent{Event: "error", Data: SSEErrorData{Message: "retrieval failed"}})
		return
	}

	mechContext := prompt.Assemble(results)

	err = h.gen.GenerateStream(ctx, prompt.SystemPrompt, req.History, mechContext, req.Query, func(chunk string) error {
		// Each produced chunk is forwarded immediately; a write error
		// means the client went away, which aborts generation.
		return h.writeSSE(w, flusher, SSEEvent{Event: "chunk", Data: SSEChunkData{Text: chunk}})
	})
	if err != nil {
		if ctx.Err() != nil {
			h.logger.Info("Chat client disconnected mid-stream")
			return
		}
		h.logger.Error("Chat generation failed", "error", err)
		h.writeSSE(w, flusher, SSEEvent{Event: "error", Data: SSEErrorData{Message: "generation failed"}})
		return
	}

	h.writeSSE(w, flusher, SSEEvent{Event: "done", Data: map[string]int{"results": len(results)}})
}

func (h *Handler) writeSSE(w http.ResponseWriter, flusher http.Flusher, event SSEEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "data: %s\n\n", payload); err != nil {
		return err
	}
	flusher.Flush()
	return nil
}

func toStorageFilter(f SearchFilters) storage.Filter {
	return storage.Filter{
		CollectionName:  f.Collection,
		EncounterType:   f.EncounterType,
		MechanicType:    f.MechanicType,
		Difficulty:      f.Difficulty,
		ContestModeOnly: f.ContestModeOnly,
	}
}

func toItems(results []retrieval.Result) []SearchResultItem {
	items := make([]SearchResultItem, 0, len(results))
	for _, r := range results {
		items = append(items, SearchResultItem{
			MechanicID:   r.Mechanic.ID,
			Name:         r.Mechanic.Name,
			Type:         string(r.Mechanic.Type),
			Description:  r.Mechanic.Description,
			Solution:     r.Mechanic.Solution,
			Tips:         r.Mechanic.Tips,
			Difficulty:   string(r.Mechanic.Difficulty),
			Encounter:    r.Encounter.Name,
			EncounterOrd: r.Encounter.Order,
			Collection:   r.Collection.Name,
			Score:        r.Score,
			Flow:         r.Flow,
		})
	}
	return items
}

func cacheKey(req SearchRequest) string {
	contest := ""
	if req.Filters.ContestModeOnly != nil {
		contest = fmt.Sprintf("%t", *req.Filters.ContestModeOnly)
	}
	return fmt.Sprintf("%s|%s|%s|%s|%s|%s|%d",
		strings.ToLower(strings.TrimSpace(req.Query)),
		req.Filters.Collection, req.Filters.EncounterType, req.Filters.MechanicType,
		req.Filters.Difficulty, contest, req.Limit)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// DefaultCacheTTL bounds how long identical searches are served from cache.
const DefaultCacheTTL = 5 * time.Minute

// DefaultCacheSize keeps the response cache tiny; repeat queries cluster
// heavily around a handful of popular questions.
const DefaultCacheSize = 32
