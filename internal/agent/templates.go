package agent

import (
	"bytes"
	"fmt"
	"text/template"
)

// segmentTemplate, relateTemplate, and decideTemplate are parsed once, at
// package initialisation, into package-level variables shared by every
// Runner, grounded on kadirpekel-hector's
// direct text/template use for prompt rendering — the only templating
// approach evidenced anywhere in the example pack.

const segmentTemplateSrc = `You are segmenting a transcript excerpt into coherent thought units.

Transcript history (context only, do not re-segment):
{{.TranscriptHistory}}

New segment to split into chunks:
{{.Segment}}

Split the new segment into an ordered list of chunks, each a single coherent
thought. Mark the final chunk's "is_complete" false if it trails off
mid-thought; the caller will feed the remainder back to you next time.

Respond as JSON matching this example shape exactly:
{
  "chunks": [
    {"name": "chunk-1", "text": "...", "is_complete": true}
  ]
}
`

const relateTemplateSrc = `You are analysing how each transcript chunk relates to the existing
knowledge graph.

Existing nodes:
{{.ExistingNodesBlock}}

Chunks to analyse:
{{range .Chunks}}- [{{.Name}}] {{.Text}}
{{end}}
For each chunk, decide which existing node (by exact title) it most relates
to, or use the sentinel "NO_RELEVANT_NODE" if none apply. Give a short verb
phrase describing the relationship, or leave it empty if there is none.

Respond as JSON matching this example shape exactly:
{
  "analyses": [
    {"name": "chunk-1", "text": "...", "reasoning": "...", "relevant_node_name": "...", "relationship": "..."}
  ]
}
`

const decideTemplateSrc = `You are deciding how to integrate each chunk into the knowledge graph.

Existing nodes:
{{.ExistingNodesBlock}}

Chunks with relationship analysis (only complete chunks are included):
{{range .Analyses}}- [{{.Name}}] relevant_node={{.RelevantNodeName}} relationship={{.Relationship}}
  text: {{.Text}}
  reasoning: {{.Reasoning}}
{{end}}
For each chunk decide: create a new node (is_new_node=true) or append to an
existing one (is_new_node=false). For a new node, name its parent via
neighbour_concept_name (use the sentinel "ROOT" to attach under the root) and
describe the edge via relationship_to_neighbour. Always give an updated
one-line summary and the Markdown content body.

Respond as JSON matching this example shape exactly:
{
  "decisions": [
    {
      "relevant_transcript_extract": "...",
      "is_new_node": true,
      "concept_name": "...",
      "neighbour_concept_name": "ROOT",
      "relationship_to_neighbour": "relates to",
      "updated_summary_of_node": "...",
      "markdown_content_to_append": "...",
      "is_complete": true
    }
  ]
}
`

var (
	segmentTemplate = template.Must(template.New("segment").Parse(segmentTemplateSrc))
	relateTemplate  = template.Must(template.New("relate").Parse(relateTemplateSrc))
	decideTemplate  = template.Must(template.New("decide").Parse(decideTemplateSrc))
)

func renderTemplate(t *template.Template, data any) (string, error) {
	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("agent: render template %s: %w", t.Name(), err)
	}
	return buf.String(), nil
}
