package agent

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/arlobrandt/loomgraph/internal/llmclient"
)

type relatePromptData struct {
	ExistingNodesBlock string
	Chunks             []Chunk
}

// runRelationshipAnalysis is stage 2: for each chunk, identify the most
// relevant existing node and the relationship to it.
func runRelationshipAnalysis(ctx context.Context, client llmclient.Client, model, existingNodesBlock string, chunks []Chunk) (RelationshipAnalysisResult, string, string, error) {
	if len(chunks) == 0 {
		return RelationshipAnalysisResult{}, "", "", nil
	}

	prompt, err := renderTemplate(relateTemplate, relatePromptData{
		ExistingNodesBlock: existingNodesBlock,
		Chunks:             chunks,
	})
	if err != nil {
		return RelationshipAnalysisResult{}, "", "", err
	}

	schema, err := schemaFor[RelationshipAnalysisResult]()
	if err != nil {
		return RelationshipAnalysisResult{}, prompt, "", err
	}

	raw, err := client.CallStructured(ctx, prompt, schema, model)
	if err != nil {
		return RelationshipAnalysisResult{}, prompt, "", fmt.Errorf("agent: relationship analysis stage: %w", err)
	}

	var result RelationshipAnalysisResult
	if err := json.Unmarshal(raw, &result); err != nil {
		return RelationshipAnalysisResult{}, prompt, string(raw), fmt.Errorf("agent: relationship analysis stage: decode response: %w", err)
	}
	return result, prompt, string(raw), nil
}
