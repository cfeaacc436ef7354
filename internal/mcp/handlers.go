package mcp

import (
	"context"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/raidwise/mechanics-server/internal/generator"
	"github.com/raidwise/mechanics-server/internal/prompt"
	"github.com/raidwise/mechanics-server/internal/retrieval"
	"github.com/raidwise/mechanics-server/internal/storage"
	"github.com/raidwise/mechanics-server/internal/store"
)

// makeSearchHandler creates the search_mechanics tool handler. It runs the
// full retrieval pipeline: interpretation, filtered vector search with
// fallback, position/flow boosting and bucketed ordering.
func makeSearchHandler(engine *retrieval.Engine) func(
	context.Context, *mcp.CallToolRequest, SearchMechanicsInput,
) (*mcp.CallToolResult, SearchMechanicsOutput, error) {
	return func(ctx context.Context, req *mcp.CallToolRequest, input SearchMechanicsInput) (
		*mcp.CallToolResult, SearchMechanicsOutput, error,
	) {
		results, err := engine.Retrieve(ctx, input.Query, retrieval.Options{
			Filter: storage.Filter{
				CollectionName: input.Collection,
				EncounterType:  input.EncounterType,
				MechanicType:   input.MechanicType,
				Difficulty:     input.Difficulty,
			},
			TopK: input.MaxResults,
		})
		if err != nil {
			return nil, SearchMechanicsOutput{}, fmt.Errorf("search failed: %w", err)
		}

		out := make([]MechanicResult, 0, len(results))
		for _, r := range results {
			out = append(out, MechanicResult{
				MechanicID:  r.Mechanic.ID,
				Name:        r.Mechanic.Name,
				Type:        string(r.Mechanic.Type),
				Description: r.Mechanic.Description,
				Solution:    r.Mechanic.Solution,
				Encounter:   r.Encounter.Name,
				Collection:  r.Collection.Name,
				Score:       r.Score,
				Flow:        r.Flow,
			})
		}

		if len(out) == 0 {
			return nil, SearchMechanicsOutput{
				Results: []MechanicResult{},
				Message: "No matching mechanics found. Try broader search terms.",
			}, nil
		}

		return nil, SearchMechanicsOutput{Results: out}, nil
	}
}

// makeAskHandler creates the ask_mechanics tool handler: retrieve, assemble
// context, generate a complete answer.
func makeAskHandler(engine *retrieval.Engine, gen *generator.Generator) func(
	context.Context, *mcp.CallToolRequest, AskMechanicsInput,
) (*mcp.CallToolResult, AskMechanicsOutput, error) {
	return func(ctx context.Context, req *mcp.CallToolRequest, input AskMechanicsInput) (
		*mcp.CallToolResult, AskMechanicsOutput, error,
	) {
		results, err := engine.Retrieve(ctx, input.Query, retrieval.Options{
			Filter: storage.Filter{CollectionName: input.Collection},
		})
		if err != nil {
			return nil, AskMechanicsOutput{}, fmt.Errorf("retrieval failed: %w", err)
		}

		mechContext := prompt.Assemble(results)

		answer, err := gen.Generate(ctx, prompt.SystemPrompt, nil, mechContext, input.Query)
		if err != nil {
			return nil, AskMechanicsOutput{}, fmt.Errorf("generation failed: %w", err)
		}

		sources := make([]string, 0, len(results))
		for _, r := range results {
			sources = append(sources, fmt.Sprintf("%s > %s > %s", r.Collection.Name, r.Encounter.Name, r.Mechanic.Name))
		}

		return nil, AskMechanicsOutput{Answer: answer, Sources: sources}, nil
	}
}

// makeListHandler creates the list_collections tool handler.
func makeListHandler(mechanics *store.MechanicStore) func(
	context.Context, *mcp.CallToolRequest, ListCollectionsInput,
) (*mcp.CallToolResult, ListCollectionsOutput, error) {
	return func(ctx context.Context, req *mcp.CallToolRequest, input ListCollectionsInput) (
		*mcp.CallToolResult, ListCollectionsOutput, error,
	) {
		if err := mechanics.EnsureLoaded(ctx); err != nil {
			return nil, ListCollectionsOutput{}, fmt.Errorf("failed to load corpus: %w", err)
		}
		names := mechanics.CollectionNames()
		return nil, ListCollectionsOutput{Collections: names, Count: len(names)}, nil
	}
}

// makeStatusHandler creates the get_index_status tool handler.
func makeStatusHandler(qdrant *storage.QdrantStorage, mechanics *store.MechanicStore) func(
	context.Context, *mcp.CallToolRequest, StatusInput,
) (*mcp.CallToolResult, StatusOutput, error) {
	return func(ctx context.Context, req *mcp.CallToolRequest, input StatusInput) (
		*mcp.CallToolResult, StatusOutput, error,
	) {
		count, err := qdrant.Count(ctx)
		if err != nil {
			return nil, StatusOutput{}, fmt.Errorf("qdrant_error: failed to get collection info: %w", err)
		}
		if err := mechanics.EnsureLoaded(ctx); err != nil {
			return nil, StatusOutput{}, fmt.Errorf("failed to load corpus: %w", err)
		}

		return nil, StatusOutput{
			IndexedVectors: count,
			StoreMechanics: mechanics.Len(),
			Collections:    len(mechanics.CollectionNames()),
		}, nil
	}
}
