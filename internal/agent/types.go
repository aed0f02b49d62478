// Package agent implements the three-stage LLM workflow — segmentation,
// relationship analysis, integration decision — that turns one
// processable text segment into a list of graph mutations.
//
// The stage-3 field vocabulary and cross-call continuity behavior follow
// original_source/tree_manager/LLM_engine/tree_action_decider.py; a Runner
// threads typed state between the three sequential steps.
package agent

// NoRelevantNode is the sentinel relevant_node_name value stage 2 uses when
// a chunk has no clear connection to any existing node.
const NoRelevantNode = "NO_RELEVANT_NODE"

// RootSentinel is the NeighbourConceptName value stage 3 uses on a CREATE
// to mean "attach to the root node" rather than naming a specific existing
// node.
const RootSentinel = "ROOT"

// Decision actions.
const (
	ActionCreate = "CREATE"
	ActionAppend = "APPEND"
)

// Chunk is a stage-1 segmentation unit: a coherent thought extracted from
// the input transcript segment. Name is a correlation key threaded
// unchanged through stages 2 and 3.
type Chunk struct {
	Name       string `json:"name" jsonschema:"required,description=A short stable identifier for this chunk, used to correlate it across stages"`
	Text       string `json:"text" jsonschema:"required,description=The verbatim or lightly cleaned transcript text belonging to this chunk"`
	IsComplete bool   `json:"is_complete" jsonschema:"required,description=False if this chunk appears to trail off mid-thought and should be fed back as an incomplete remainder"`
}

// SegmentationResult is stage 1's structured output.
type SegmentationResult struct {
	Chunks []Chunk `json:"chunks" jsonschema:"required,description=Ordered list of coherent thought units extracted from the segment"`
}

// RelationshipAnalysis is stage 2's per-chunk output.
type RelationshipAnalysis struct {
	Name              string `json:"name" jsonschema:"required,description=Must equal the corresponding chunk's name"`
	Text              string `json:"text" jsonschema:"required,description=The chunk text, carried through for stage 3 convenience"`
	Reasoning         string `json:"reasoning" jsonschema:"required,description=Brief justification for the chosen relevant node and relationship"`
	RelevantNodeName  string `json:"relevant_node_name" jsonschema:"required,description=An existing node title this chunk relates to, or the sentinel NO_RELEVANT_NODE"`
	Relationship      string `json:"relationship" jsonschema:"description=A short verb phrase describing the relationship to the relevant node, or empty if none"`
}

// RelationshipAnalysisResult is stage 2's structured output.
type RelationshipAnalysisResult struct {
	Analyses []RelationshipAnalysis `json:"analyses" jsonschema:"required"`
}

// IntegrationDecision is stage 3's per-chunk output. Field names and JSON
// tags are adopted verbatim from tree_action_decider.py's NodeAction.
type IntegrationDecision struct {
	// RelevantTranscriptExtract is the portion of the original transcript
	// this decision is grounded in, carried through for the background
	// rewriter's transcript-excerpt window.
	RelevantTranscriptExtract string `json:"relevant_transcript_extract" jsonschema:"required"`

	// IsNewNode selects CREATE vs APPEND semantics: true means a new node
	// must be created, false means existing content should be appended.
	IsNewNode bool `json:"is_new_node" jsonschema:"required"`

	// ConceptName is the node's title: for CREATE, the new node's title;
	// for APPEND, the target node's title (pre-fuzzy-resolution).
	ConceptName string `json:"concept_name" jsonschema:"required"`

	// NeighbourConceptName is the node to attach to: the parent for
	// CREATE, or the sentinel RootSentinel to attach under the root.
	// Unused (empty) for APPEND.
	NeighbourConceptName string `json:"neighbour_concept_name,omitempty"`

	// RelationshipToNeighbour labels the edge to NeighbourConceptName.
	RelationshipToNeighbour string `json:"relationship_to_neighbour,omitempty"`

	// UpdatedSummaryOfNode is the node's new one-line summary after this
	// decision is applied.
	UpdatedSummaryOfNode string `json:"updated_summary_of_node" jsonschema:"required"`

	// MarkdownContentToAppend is the Markdown body carried by this
	// decision: the new node's initial content for CREATE, or the content
	// to append for APPEND.
	MarkdownContentToAppend string `json:"markdown_content_to_append" jsonschema:"required"`

	// IsComplete mirrors the originating chunk's completeness; stage 3
	// only ever sees complete chunks; retained for debug-log fidelity.
	IsComplete bool `json:"is_complete"`
}

// Action reports whether this decision is a CREATE or an APPEND.
func (d IntegrationDecision) Action() string {
	if d.IsNewNode {
		return ActionCreate
	}
	return ActionAppend
}

// IntegrationResult is stage 3's structured output.
type IntegrationResult struct {
	Decisions []IntegrationDecision `json:"decisions" jsonschema:"required"`
}

// RunResult is StagedAgent's public contract output: the full list of
// decisions produced by one run, plus any trailing incomplete chunk text
// the caller should feed back into StreamBuffer as an incomplete remainder.
type RunResult struct {
	Decisions          []IntegrationDecision
	IncompleteRemainder string
}
