package model

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrMissingID   = errors.New("missing required id")
	ErrMissingName = errors.New("missing required name")
)

var collectionTypes = map[CollectionType]bool{
	CollectionDungeon: true,
	CollectionRaid:    true,
}

var encounterTypes = map[EncounterType]bool{
	EncounterOpening:   true,
	EncounterStandard:  true,
	EncounterBoss:      true,
	EncounterSecret:    true,
	EncounterTraversal: true,
}

var mechanicTypes = map[MechanicType]bool{
	MechanicPuzzle:    true,
	MechanicBoss:      true,
	MechanicTraversal: true,
	MechanicAddClear:  true,
	MechanicSymbol:    true,
	MechanicPlate:     true,
	MechanicOther:     true,
}

var difficulties = map[Difficulty]bool{
	DifficultyEasy:   true,
	DifficultyMedium: true,
	DifficultyHard:   true,
	DifficultyExpert: true,
}

// Validate checks a collection document against the schema. Mechanic IDs
// must be unique within the document; cross-document uniqueness is enforced
// by the store's last-write-wins registration.
func (c *Collection) Validate() error {
	if strings.TrimSpace(c.ID) == "" {
		return fmt.Errorf("collection: %w", ErrMissingID)
	}
	if strings.TrimSpace(c.Name) == "" {
		return fmt.Errorf("collection %s: %w", c.ID, ErrMissingName)
	}
	if !collectionTypes[c.Type] {
		return fmt.Errorf("collection %s: invalid type %q", c.ID, c.Type)
	}
	if len(c.Encounters) == 0 {
		return fmt.Errorf("collection %s: at least one encounter is required", c.ID)
	}

	seenMechanics := make(map[string]string)
	for i, enc := range c.Encounters {
		if strings.TrimSpace(enc.ID) == "" {
			return fmt.Errorf("collection %s: encounter %d: %w", c.ID, i, ErrMissingID)
		}
		if strings.TrimSpace(enc.Name) == "" {
			return fmt.Errorf("encounter %s: %w", enc.ID, ErrMissingName)
		}
		if !encounterTypes[enc.Type] {
			return fmt.Errorf("encounter %s: invalid type %q", enc.ID, enc.Type)
		}
		for j, mech := range enc.Mechanics {
			if strings.TrimSpace(mech.ID) == "" {
				return fmt.Errorf("encounter %s: mechanic %d: %w", enc.ID, j, ErrMissingID)
			}
			if strings.TrimSpace(mech.Name) == "" {
				return fmt.Errorf("mechanic %s: %w", mech.ID, ErrMissingName)
			}
			if !mechanicTypes[mech.Type] {
				return fmt.Errorf("mechanic %s: invalid type %q", mech.ID, mech.Type)
			}
			if mech.Difficulty != "" && !difficulties[mech.Difficulty] {
				return fmt.Errorf("mechanic %s: invalid difficulty %q", mech.ID, mech.Difficulty)
			}
			if owner, dup := seenMechanics[mech.ID]; dup {
				return fmt.Errorf("mechanic %s: duplicate id (already under encounter %s)", mech.ID, owner)
			}
			seenMechanics[mech.ID] = enc.ID
		}
	}
	return nil
}
