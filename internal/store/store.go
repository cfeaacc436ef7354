// Package store holds the in-memory mechanic index: the ground truth for
// full mechanic/encounter/collection metadata, keyed by mechanic ID.
package store

import (
	"context"
	"log/slog"
	"sync"

	"github.com/raidwise/mechanics-server/internal/model"
)

// Entry is the full triple behind a mechanic ID. Every mechanic belongs to
// exactly one encounter, which belongs to exactly one collection.
type Entry struct {
	Mechanic   model.Mechanic
	Encounter  model.Encounter
	Collection model.Collection
}

// CorpusLoader supplies the source collections for the initial load.
// docs.Loader satisfies this via a small adapter in the caller.
type CorpusLoader interface {
	Load(ctx context.Context) ([]*model.Collection, error)
}

// MechanicStore is a process-lifetime index of all known mechanics. It is
// populated lazily once per process and updated incrementally through
// Register. It never evicts; growth is bounded by the corpus size.
//
// The original runtime tolerated a double-load race under cooperative
// scheduling. Go handlers run in parallel, so the mutex below is required;
// registration stays idempotent (last write wins) either way.
type MechanicStore struct {
	mu      sync.RWMutex
	entries map[string]Entry
	loaded  bool
	loader  CorpusLoader
	logger  *slog.Logger
}

// New creates an empty store. loader may be nil, in which case EnsureLoaded
// is a no-op and the store is populated only through Register.
func New(loader CorpusLoader, logger *slog.Logger) *MechanicStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &MechanicStore{
		entries: make(map[string]Entry),
		loader:  loader,
		logger:  logger,
	}
}

// EnsureLoaded populates the store from the corpus loader. It is idempotent:
// after the first successful load it returns immediately. A load failure
// leaves the store unloaded so a later call can retry.
func (s *MechanicStore) EnsureLoaded(ctx context.Context) error {
	s.mu.RLock()
	loaded := s.loaded
	s.mu.RUnlock()
	if loaded || s.loader == nil {
		return nil
	}

	collections, err := s.loader.Load(ctx)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.loaded {
		return nil
	}
	for _, col := range collections {
		s.registerCollectionLocked(col)
	}
	s.loaded = true
	s.logger.Info("Mechanic store loaded", "collections", len(collections), "mechanics", len(s.entries))
	return nil
}

// Register upserts one mechanic with its owning encounter and collection.
// Last registration for a given mechanic ID wins.
func (s *MechanicStore) Register(mech model.Mechanic, enc model.Encounter, col model.Collection) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[mech.ID] = Entry{Mechanic: mech, Encounter: enc, Collection: col}
}

// RegisterCollection upserts every mechanic in the collection.
func (s *MechanicStore) RegisterCollection(col *model.Collection) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.registerCollectionLocked(col)
}

func (s *MechanicStore) registerCollectionLocked(col *model.Collection) {
	for _, enc := range col.Encounters {
		// Entries carry the owning encounter without its sibling mechanics;
		// the full list lives on the collection.
		flat := enc
		flat.Mechanics = nil
		for _, mech := range enc.Mechanics {
			s.entries[mech.ID] = Entry{Mechanic: mech, Encounter: flat, Collection: *col}
		}
	}
}

// Get returns the triple for a mechanic ID.
func (s *MechanicStore) Get(id string) (Entry, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.entries[id]
	return e, ok
}

// All returns a snapshot of every entry. Order is unspecified.
func (s *MechanicStore) All() []Entry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Entry, 0, len(s.entries))
	for _, e := range s.entries {
		out = append(out, e)
	}
	return out
}

// Len reports the number of indexed mechanics.
func (s *MechanicStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// CollectionNames returns the distinct collection names present in the store.
func (s *MechanicStore) CollectionNames() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	seen := make(map[string]bool)
	var names []string
	for _, e := range s.entries {
		if !seen[e.Collection.Name] {
			seen[e.Collection.Name] = true
			names = append(names, e.Collection.Name)
		}
	}
	return names
}
