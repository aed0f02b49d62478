package fuzzy

import "testing"

func TestRatio_Identical(t *testing.T) {
	if r := Ratio("Project Planning", "Project Planning"); r != 1 {
		t.Errorf("Ratio identical = %v, want 1", r)
	}
}

func TestRatio_CaseInsensitive(t *testing.T) {
	if r := Ratio("project planning", "PROJECT PLANNING"); r != 1 {
		t.Errorf("Ratio case-insensitive = %v, want 1", r)
	}
}

func TestRatio_Typo(t *testing.T) {
	r := Ratio("Project Plannng", "Project Planning")
	if !Matches(r, DefaultThreshold) {
		t.Errorf("Ratio(%q) = %v, want >= %v", "Project Plannng", r, DefaultThreshold)
	}
}

func TestRatio_Unrelated(t *testing.T) {
	r := Ratio("Project Planning", "Entirely Different Topic")
	if Matches(r, DefaultThreshold) {
		t.Errorf("Ratio(unrelated) = %v, want < %v", r, DefaultThreshold)
	}
}

func TestBestMatch(t *testing.T) {
	candidates := []string{"Entity Recognition", "Sentiment Analysis", "Project Planning"}
	idx, ratio := BestMatch("Project Plannng", candidates)
	if idx != 2 {
		t.Fatalf("BestMatch index = %d, want 2", idx)
	}
	if !Matches(ratio, DefaultThreshold) {
		t.Errorf("BestMatch ratio = %v, want >= %v", ratio, DefaultThreshold)
	}
}

func TestBestMatch_Empty(t *testing.T) {
	idx, ratio := BestMatch("anything", nil)
	if idx != -1 || ratio != 0 {
		t.Errorf("BestMatch(empty) = (%d, %v), want (-1, 0)", idx, ratio)
	}
}

func TestMatches_DefaultThresholdFallback(t *testing.T) {
	if !Matches(0.65, 0) {
		t.Error("Matches(0.65, 0) should use DefaultThreshold and return true")
	}
	if Matches(0.5, 0) {
		t.Error("Matches(0.5, 0) should use DefaultThreshold and return false")
	}
}
