// Package api exposes the HTTP surface: a search endpoint returning ranked
// results with a cache-hit flag, and a chat endpoint streaming answers over
// SSE. Both sit behind a fixed-window rate limiter.
package api

import "github.com/raidwise/mechanics-server/internal/generator"

// SearchFilters are the caller-supplied equality filters.
type SearchFilters struct {
	Collection      string `json:"collection,omitempty"`
	EncounterType   string `json:"encounterType,omitempty"`
	MechanicType    string `json:"mechanicType,omitempty"`
	Difficulty      string `json:"difficulty,omitempty"`
	ContestModeOnly *bool  `json:"contestModeOnly,omitempty"`
}

// SearchRequest is the body of POST /api/search.
type SearchRequest struct {
	Query   string        `json:"query"`
	Filters SearchFilters `json:"filters"`
	Limit   int           `json:"limit,omitempty"`
}

// SearchResponse carries ranked results plus whether they came from the
// response cache.
type SearchResponse struct {
	Results []SearchResultItem `json:"results"`
	Cached  bool               `json:"cached"`
}

// SearchResultItem is one ranked hit in wire form.
type SearchResultItem struct {
	MechanicID   string   `json:"mechanicId"`
	Name         string   `json:"name"`
	Type         string   `json:"type"`
	Description  string   `json:"description"`
	Solution     string   `json:"solution,omitempty"`
	Tips         []string `json:"tips,omitempty"`
	Difficulty   string   `json:"difficulty,omitempty"`
	Encounter    string   `json:"encounter"`
	EncounterOrd *int     `json:"encounterOrder,omitempty"`
	Collection   string   `json:"collection"`
	Score        float64  `json:"score"`
	Flow         bool     `json:"flow"`
}

// ChatRequest is the body of POST /api/chat.
type ChatRequest struct {
	Query   string              `json:"query"`
	History []generator.Message `json:"history"`
	Filters SearchFilters       `json:"filters"`
}

// SSEEvent is one server-sent event on the chat stream.
type SSEEvent struct {
	// Event type: "chunk" for partial text, "done" when the answer is
	// complete, "error" on failure.
	Event string `json:"event"`
	Data  any    `json:"data"`
}

// SSEChunkData is the payload for "chunk" events.
type SSEChunkData struct {
	Text string `json:"text"`
}

// SSEErrorData is the payload for "error" events.
type SSEErrorData struct {
	Message string `json:"message"`
}
