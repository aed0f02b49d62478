package agent

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/arlobrandt/loomgraph/internal/llmclient"
)

type decidePromptData struct {
	ExistingNodesBlock string
	Analyses           []RelationshipAnalysis
}

// runIntegrationDecision is stage 3: turn each complete chunk's
// relationship analysis into a CREATE or APPEND decision.
func runIntegrationDecision(ctx context.Context, client llmclient.Client, model, existingNodesBlock string, analyses []RelationshipAnalysis) (IntegrationResult, string, string, error) {
	if len(analyses) == 0 {
		return IntegrationResult{}, "", "", nil
	}

	prompt, err := renderTemplate(decideTemplate, decidePromptData{
		ExistingNodesBlock: existingNodesBlock,
		Analyses:           analyses,
	})
	if err != nil {
		return IntegrationResult{}, "", "", err
	}

	schema, err := schemaFor[IntegrationResult]()
	if err != nil {
		return IntegrationResult{}, prompt, "", err
	}

	raw, err := client.CallStructured(ctx, prompt, schema, model)
	if err != nil {
		return IntegrationResult{}, prompt, "", fmt.Errorf("agent: integration decision stage: %w", err)
	}

	var result IntegrationResult
	if err := json.Unmarshal(raw, &result); err != nil {
		return IntegrationResult{}, prompt, string(raw), fmt.Errorf("agent: integration decision stage: decode response: %w", err)
	}
	return result, prompt, string(raw), nil
}

// filterComplete drops incomplete chunks and returns only the analyses
// whose correlated chunk was marked complete, per spec's stage 2→3
// handoff transform.
func filterComplete(chunks []Chunk, analyses []RelationshipAnalysis) []RelationshipAnalysis {
	complete := make(map[string]bool, len(chunks))
	for _, c := range chunks {
		if c.IsComplete {
			complete[c.Name] = true
		}
	}
	out := make([]RelationshipAnalysis, 0, len(analyses))
	for _, a := range analyses {
		if complete[a.Name] {
			out = append(out, a)
		}
	}
	return out
}
