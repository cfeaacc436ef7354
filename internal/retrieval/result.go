package retrieval

import (
	"github.com/raidwise/mechanics-server/internal/model"
	"github.com/raidwise/mechanics-server/internal/storage"
	"github.com/raidwise/mechanics-server/internal/store"
)

// Source says where a result's mechanic data came from.
type Source int

const (
	// SourceStore means the full triple was resolved from the live
	// mechanic store.
	SourceStore Source = iota
	// SourceMetadata means the store had no entry (cold start) and the
	// result was rebuilt from the vector's stored metadata alone. Its
	// description is MetadataOnlyDescription.
	SourceMetadata
)

// MetadataOnlyDescription replaces the mechanic description when a result
// is reconstructed from vector metadata before the store has loaded.
const MetadataOnlyDescription = "(full description unavailable - rebuilt from index metadata)"

// Result is one ranked search hit. Score is in [0,1] and mutated by
// boosting; Flow marks mechanics that describe overall encounter strategy.
type Result struct {
	ID         string
	Score      float64
	Source     Source
	Flow       bool
	Mechanic   model.Mechanic
	Encounter  model.Encounter
	Collection model.Collection
}

// resultFromEntry builds a full result from a live store entry.
func resultFromEntry(e store.Entry, score float64) Result {
	return Result{
		ID:         e.Mechanic.ID,
		Score:      score,
		Source:     SourceStore,
		Mechanic:   e.Mechanic,
		Encounter:  e.Encounter,
		Collection: e.Collection,
	}
}

// resultFromMeta rebuilds a degraded result from the flattened payload.
func resultFromMeta(id string, score float64, meta storage.RecordMeta) Result {
	return Result{
		ID:     id,
		Score:  score,
		Source: SourceMetadata,
		Mechanic: model.Mechanic{
			ID:           id,
			Name:         meta.MechanicName,
			Description:  MetadataOnlyDescription,
			Type:         model.MechanicType(meta.MechanicType),
			Difficulty:   model.Difficulty(meta.Difficulty),
			ContestMode:  meta.ContestMode,
			ContestNotes: meta.ContestNotes,
			Related:      meta.Related,
		},
		Encounter: model.Encounter{
			ID:    meta.EncounterID,
			Name:  meta.EncounterName,
			Type:  model.EncounterType(meta.EncounterType),
			Order: meta.EncounterOrder,
		},
		Collection: model.Collection{
			ID:   meta.CollectionID,
			Name: meta.CollectionName,
			Type: model.CollectionType(meta.CollectionType),
		},
	}
}
