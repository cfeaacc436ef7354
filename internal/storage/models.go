package storage

// Record is the persisted unit in Qdrant: one point per mechanic, carrying
// the embedding plus a flattened metadata projection of the owning
// encounter and collection. The projection is enough to rebuild a degraded
// search result after a process restart, before the mechanic store reloads.
type Record struct {
	MechanicID string
	Embedding  []float32
	Meta       RecordMeta
}

// RecordMeta is the flattened payload stored alongside each vector.
// Description, solution and tips stay out of the payload; a result rebuilt
// from metadata alone carries a placeholder description instead.
type RecordMeta struct {
	MechanicName string
	MechanicType string
	Difficulty   string
	ContestMode  bool
	ContestNotes string
	Related      []string

	EncounterID    string
	EncounterName  string
	EncounterType  string
	EncounterOrder *int

	CollectionID   string
	CollectionName string
	CollectionType string
}

// ScoredRecord is a search hit: mechanic ID, cosine similarity score and the
// stored metadata projection.
type ScoredRecord struct {
	MechanicID string
	Score      float64
	Meta       RecordMeta
}

// Filter restricts a vector query with equality conditions. Zero values mean
// unfiltered. Encounter order is deliberately not filterable provider-side;
// the retrieval engine applies it after search.
type Filter struct {
	CollectionName  string
	EncounterType   string
	MechanicType    string
	Difficulty      string
	ContestModeOnly *bool
}

// CollectionName is the single Qdrant collection for all mechanics.
const CollectionName = "mechanics"

// VectorDimension is the embedding size for text-embedding-3-small.
const VectorDimension = 1536
