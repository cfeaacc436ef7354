// Package model defines the mechanics data model: collections of encounters,
// each holding the individual mechanics that make up the retrievable corpus.
package model

// CollectionType distinguishes the two top-level activity kinds.
type CollectionType string

const (
	CollectionDungeon CollectionType = "dungeon"
	CollectionRaid    CollectionType = "raid"
)

// EncounterType categorizes an encounter within a collection.
type EncounterType string

const (
	EncounterOpening   EncounterType = "opening"
	EncounterStandard  EncounterType = "encounter"
	EncounterBoss      EncounterType = "boss"
	EncounterSecret    EncounterType = "secret"
	EncounterTraversal EncounterType = "traversal"
)

// MechanicType categorizes an individual mechanic.
type MechanicType string

const (
	MechanicPuzzle    MechanicType = "puzzle"
	MechanicBoss      MechanicType = "boss"
	MechanicTraversal MechanicType = "traversal"
	MechanicAddClear  MechanicType = "add-clear"
	MechanicSymbol    MechanicType = "symbol"
	MechanicPlate     MechanicType = "plate"
	MechanicOther     MechanicType = "other"
)

// Difficulty rates how hard a mechanic is to execute.
type Difficulty string

const (
	DifficultyEasy   Difficulty = "easy"
	DifficultyMedium Difficulty = "medium"
	DifficultyHard   Difficulty = "hard"
	DifficultyExpert Difficulty = "expert"
)

// Collection is a dungeon or raid: the top-level grouping of encounters.
// Immutable once loaded.
type Collection struct {
	ID          string         `yaml:"id"`
	Name        string         `yaml:"name"`
	Type        CollectionType `yaml:"type"`
	Description string         `yaml:"description"`
	Encounters  []Encounter    `yaml:"encounters"`
}

// Encounter is a discrete challenge within a collection. Order establishes
// the sequence position; it is optional and not guaranteed unique or
// contiguous.
type Encounter struct {
	ID          string        `yaml:"id"`
	Name        string        `yaml:"name"`
	Description string        `yaml:"description"`
	Type        EncounterType `yaml:"type"`
	Order       *int          `yaml:"order,omitempty"`
	Mechanics   []Mechanic    `yaml:"mechanics"`
}

// Mechanic is the atomic retrievable unit: a single puzzle or boss behavior
// within an encounter. IDs are globally unique across the corpus.
type Mechanic struct {
	ID           string       `yaml:"id"`
	Name         string       `yaml:"name"`
	Description  string       `yaml:"description"`
	Type         MechanicType `yaml:"type"`
	Solution     string       `yaml:"solution,omitempty"`
	Tips         []string     `yaml:"tips,omitempty"`
	Difficulty   Difficulty   `yaml:"difficulty,omitempty"`
	ContestMode  bool         `yaml:"contest_mode,omitempty"`
	ContestNotes string       `yaml:"contest_notes,omitempty"`
	Related      []string     `yaml:"related,omitempty"`
}
