package agent

import "testing"

func TestFilterCompleteDropsIncompleteChunks(t *testing.T) {
	t.Parallel()

	chunks := []Chunk{
		{Name: "a", IsComplete: true},
		{Name: "b", IsComplete: false},
	}
	analyses := []RelationshipAnalysis{
		{Name: "a"},
		{Name: "b"},
	}

	got := filterComplete(chunks, analyses)
	if len(got) != 1 || got[0].Name != "a" {
		t.Fatalf("filterComplete = %+v, want only chunk a", got)
	}
}
