// Package mcp exposes the mechanics assistant as MCP tools.
package mcp

// SearchMechanicsInput defines the input for the search_mechanics tool.
type SearchMechanicsInput struct {
	// Query is the semantic search query.
	Query string `json:"query" jsonschema:"required,description=The question or phrase to search mechanics for"`
	// Collection restricts results to one dungeon or raid by display name.
	Collection string `json:"collection,omitempty" jsonschema:"description=Collection (dungeon/raid) display name filter"`
	// EncounterType filters by encounter category (opening/encounter/boss/secret/traversal).
	EncounterType string `json:"encounter_type,omitempty" jsonschema:"description=Encounter category filter"`
	// MechanicType filters by mechanic category (puzzle/boss/traversal/add-clear/symbol/plate/other).
	MechanicType string `json:"mechanic_type,omitempty" jsonschema:"description=Mechanic category filter"`
	// Difficulty filters by difficulty rating (easy/medium/hard/expert).
	Difficulty string `json:"difficulty,omitempty" jsonschema:"description=Difficulty filter"`
	// MaxResults caps the result list.
	MaxResults int `json:"max_results,omitempty" jsonschema:"minimum=1,maximum=20,default=10,description=Maximum number of mechanics to return"`
}

// SearchMechanicsOutput contains the ranked search results.
type SearchMechanicsOutput struct {
	Results []MechanicResult `json:"results"`
	// Message provides informational context (e.g., "No matching mechanics found").
	Message string `json:"message,omitempty"`
}

// MechanicResult is a single mechanic match.
type MechanicResult struct {
	MechanicID  string  `json:"mechanic_id"`
	Name        string  `json:"name"`
	Type        string  `json:"type"`
	Description string  `json:"description"`
	Solution    string  `json:"solution,omitempty"`
	Encounter   string  `json:"encounter"`
	Collection  string  `json:"collection"`
	Score       float64 `json:"score"`
	// Flow marks mechanics describing the overall encounter strategy.
	Flow bool `json:"flow"`
}

// AskMechanicsInput defines the input for the ask_mechanics tool.
type AskMechanicsInput struct {
	// Query is the natural-language question.
	Query string `json:"query" jsonschema:"required,description=The question about game mechanics"`
	// Collection optionally narrows retrieval to one dungeon or raid.
	Collection string `json:"collection,omitempty" jsonschema:"description=Collection (dungeon/raid) display name filter"`
}

// AskMechanicsOutput contains the generated answer.
type AskMechanicsOutput struct {
	Answer string `json:"answer"`
	// Sources lists the mechanics the answer drew on.
	Sources []string `json:"sources"`
}

// ListCollectionsInput takes no parameters.
type ListCollectionsInput struct{}

// ListCollectionsOutput lists the loaded collection display names.
type ListCollectionsOutput struct {
	Collections []string `json:"collections"`
	Count       int      `json:"count"`
}

// StatusInput takes no parameters.
type StatusInput struct{}

// StatusOutput describes the index state.
type StatusOutput struct {
	IndexedVectors uint64 `json:"indexed_vectors"`
	StoreMechanics int    `json:"store_mechanics"`
	Collections    int    `json:"collections"`
}
