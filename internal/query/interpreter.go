// Package query parses free-text questions for a target collection name and
// a target-encounter position descriptor. Matching is literal and
// table-driven: ordered lists of (phrase, result) pairs, first match wins.
package query

import "strings"

// Position names which encounter ordinal a query is asking about.
type Position string

const (
	PositionFirst  Position = "first"
	PositionSecond Position = "second"
	PositionThird  Position = "third"
	PositionFinal  Position = "final"
)

// PositionSpec is the parsed position intent. OrderNumber is set only when
// the order can be assumed directly (plain "second encounter" style
// queries); boss-qualified and final positions are resolved dynamically
// against the store.
type PositionSpec struct {
	Position    Position
	OrderNumber *int
	IsBossQuery bool
}

// Intent is the interpreter's output. Either field may be absent.
type Intent struct {
	CollectionName string // canonical display name, "" when not detected
	Position       *PositionSpec
}

// collectionAliases maps every known spelling (lowercase) to the canonical
// display name. Substring match against the query, first entry wins.
var collectionAliases = []struct {
	alias     string
	canonical string
}{
	{"duality", "Duality"},
	{"grasp of avarice", "Grasp of Avarice"},
	{"spire of the watcher", "Spire of the Watcher"},
	{"ghosts of the deep", "Ghosts of the Deep"},
	{"warlord's ruin", "Warlord's Ruin"},
	{"warlords ruin", "Warlord's Ruin"},
	{"prophecy", "Prophecy"},
	{"pit of heresy", "Pit of Heresy"},
	{"shattered throne", "Shattered Throne"},
	{"vault of glass", "Vault of Glass"},
	{"king's fall", "King's Fall"},
	{"kings fall", "King's Fall"},
	{"last wish", "Last Wish"},
	{"deep stone crypt", "Deep Stone Crypt"},
	{"garden of salvation", "Garden of Salvation"},
	{"vow of the disciple", "Vow of the Disciple"},
	{"crota's end", "Crota's End"},
	{"crotas end", "Crota's End"},
	{"root of nightmares", "Root of Nightmares"},
	{"salvation's edge", "Salvation's Edge"},
	{"salvations edge", "Salvation's Edge"},
}

// positionPhrases is evaluated in priority order: final before ordinals,
// boss-qualified before encounter-qualified. No combination of multiple
// position phrases in one query is supported.
var positionPhrases = []struct {
	phrases []string
	spec    PositionSpec
}{
	{[]string{"final boss", "last boss"}, PositionSpec{Position: PositionFinal, IsBossQuery: true}},
	{[]string{"final encounter", "last encounter"}, PositionSpec{Position: PositionFinal}},
	{[]string{"first boss", "1st boss"}, PositionSpec{Position: PositionFirst, IsBossQuery: true}},
	{[]string{"second boss", "2nd boss"}, PositionSpec{Position: PositionSecond, IsBossQuery: true}},
	{[]string{"third boss", "3rd boss"}, PositionSpec{Position: PositionThird, IsBossQuery: true}},
	{[]string{"first encounter", "1st encounter"}, PositionSpec{Position: PositionFirst, OrderNumber: intPtr(1)}},
	{[]string{"second encounter", "2nd encounter"}, PositionSpec{Position: PositionSecond, OrderNumber: intPtr(2)}},
	{[]string{"third encounter", "3rd encounter"}, PositionSpec{Position: PositionThird, OrderNumber: intPtr(3)}},
}

// finalBossPhrases feed the retrieval engine's redundant final-query flag.
var finalBossPhrases = []string{"final boss", "last boss"}
var finalAnyPhrases = []string{"final boss", "last boss", "final encounter"}

// Interpret extracts collection and position intent from a raw query.
func Interpret(q string) Intent {
	lower := strings.ToLower(q)
	intent := Intent{}

	for _, entry := range collectionAliases {
		if strings.Contains(lower, entry.alias) {
			intent.CollectionName = entry.canonical
			break
		}
	}

	for _, entry := range positionPhrases {
		if containsAny(lower, entry.phrases) {
			spec := entry.spec
			if spec.OrderNumber != nil {
				n := *spec.OrderNumber
				spec.OrderNumber = &n
			}
			intent.Position = &spec
			break
		}
	}

	return intent
}

// FinalHint reports whether the query literally asks about a final/last
// encounter, independent of full interpretation. Used by the retrieval
// engine's late target-order fallback.
type FinalHint struct {
	Detected bool
	BossOnly bool
}

// DetectFinal checks the query for the literal final/last phrases.
func DetectFinal(q string) FinalHint {
	lower := strings.ToLower(q)
	if containsAny(lower, finalBossPhrases) {
		return FinalHint{Detected: true, BossOnly: true}
	}
	if containsAny(lower, finalAnyPhrases) {
		return FinalHint{Detected: true}
	}
	return FinalHint{}
}

// Ordinal returns the 1-based ordinal for first/second/third positions and
// 0 for final.
func (p Position) Ordinal() int {
	switch p {
	case PositionFirst:
		return 1
	case PositionSecond:
		return 2
	case PositionThird:
		return 3
	default:
		return 0
	}
}

func containsAny(s string, phrases []string) bool {
	for _, p := range phrases {
		if strings.Contains(s, p) {
			return true
		}
	}
	return false
}

func intPtr(n int) *int { return &n }
