// Package prompt renders ranked retrieval results into the context block
// fed to the answer generator, and owns the fixed system prompt.
package prompt

import (
	"fmt"
	"strings"

	"github.com/raidwise/mechanics-server/internal/retrieval"
)

// EmptyContext is returned when retrieval produced no results. Callers and
// the generator both rely on this exact placeholder, not an empty string.
const EmptyContext = "No relevant mechanics found in the knowledge base."

// SystemPrompt frames every generation call.
const SystemPrompt = `You are a knowledgeable raid and dungeon mechanics assistant for a game community.
Answer questions using only the mechanic context provided with each message.
Mechanics in the ENCOUNTER FLOW section describe the overall strategy of an
encounter; treat them as the primary source and lead your answer with them.
If the context does not cover the question, say so instead of guessing.`

// Assemble renders the ranked results into a structured text block: a
// preamble, a FLOW section for encounter-flow mechanics, then an OTHER
// section. No length truncation happens here; bounding the generator's
// input window is the caller's concern.
func Assemble(results []retrieval.Result) string {
	if len(results) == 0 {
		return EmptyContext
	}

	var flow, other []retrieval.Result
	for _, r := range results {
		if r.Flow {
			flow = append(flow, r)
		} else {
			other = append(other, r)
		}
	}

	var b strings.Builder
	b.WriteString("Mechanics context. Encounter-flow mechanics are the most important; they describe how the whole encounter is played.\n")

	if len(flow) > 0 {
		b.WriteString("\n=== ENCOUNTER FLOW MECHANICS ===\n")
		for _, r := range flow {
			writeResult(&b, r, true)
		}
	}

	if len(other) > 0 {
		b.WriteString("\n=== OTHER MECHANICS ===\n")
		for _, r := range other {
			writeResult(&b, r, false)
		}
	}

	return b.String()
}

func writeResult(b *strings.Builder, r retrieval.Result, flow bool) {
	marker := ""
	if flow {
		marker = " [FLOW]"
	}
	fmt.Fprintf(b, "\n[%s > %s] %s%s (%s)\n", r.Collection.Name, r.Encounter.Name, r.Mechanic.Name, marker, r.Mechanic.Type)
	fmt.Fprintf(b, "%s\n", r.Mechanic.Description)

	if r.Mechanic.Solution != "" {
		fmt.Fprintf(b, "Solution: %s\n", r.Mechanic.Solution)
	}
	for _, tip := range r.Mechanic.Tips {
		fmt.Fprintf(b, "Tip: %s\n", tip)
	}
	if r.Mechanic.Difficulty != "" {
		fmt.Fprintf(b, "Difficulty: %s\n", r.Mechanic.Difficulty)
	}
	if r.Mechanic.ContestMode {
		notes := r.Mechanic.ContestNotes
		if notes == "" {
			notes = "applies in contest mode"
		}
		fmt.Fprintf(b, "Contest mode: %s\n", notes)
	}
	fmt.Fprintf(b, "Relevance: %.0f%%\n", r.Score*100)
}
