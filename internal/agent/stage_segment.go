package agent

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/arlobrandt/loomgraph/internal/llmclient"
)

type segmentPromptData struct {
	TranscriptHistory string
	Segment           string
}

// runSegmentation is stage 1: split the incoming segment into coherent
// thought-unit chunks. Returns the rendered prompt and raw response
// alongside the parsed result so the caller can debug-log them.
func runSegmentation(ctx context.Context, client llmclient.Client, model, transcriptHistory, segment string) (SegmentationResult, string, string, error) {
	prompt, err := renderTemplate(segmentTemplate, segmentPromptData{
		TranscriptHistory: transcriptHistory,
		Segment:           segment,
	})
	if err != nil {
		return SegmentationResult{}, "", "", err
	}

	schema, err := schemaFor[SegmentationResult]()
	if err != nil {
		return SegmentationResult{}, prompt, "", err
	}

	raw, err := client.CallStructured(ctx, prompt, schema, model)
	if err != nil {
		return SegmentationResult{}, prompt, "", fmt.Errorf("agent: segmentation stage: %w", err)
	}

	var result SegmentationResult
	if err := json.Unmarshal(raw, &result); err != nil {
		return SegmentationResult{}, prompt, string(raw), fmt.Errorf("agent: segmentation stage: decode response: %w", err)
	}
	return result, prompt, string(raw), nil
}
