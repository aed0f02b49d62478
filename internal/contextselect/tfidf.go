package contextselect

import (
	"context"
	"math"
	"regexp"
	"strings"

	"github.com/arlobrandt/loomgraph/internal/graph"
)

// defaultRelevanceThreshold is the minimum cosine similarity a candidate
// must clear to be included in the relevance quota.
const defaultRelevanceThreshold = 0.01

var tokenRE = regexp.MustCompile(`[a-z0-9]+`)

// englishStopwords is a small general-purpose stopword set; domain words
// can be layered on top via TFIDFRanker.DomainStopwords.
var englishStopwords = map[string]struct{}{
	"a": {}, "an": {}, "the": {}, "and": {}, "or": {}, "but": {}, "if": {}, "is": {},
	"are": {}, "was": {}, "were": {}, "be": {}, "been": {}, "being": {}, "to": {},
	"of": {}, "in": {}, "on": {}, "for": {}, "with": {}, "as": {}, "at": {}, "by": {},
	"it": {}, "this": {}, "that": {}, "these": {}, "those": {}, "from": {}, "we": {},
	"you": {}, "i": {}, "they": {}, "he": {}, "she": {}, "it's": {}, "not": {}, "so": {},
	"than": {}, "then": {}, "there": {}, "what": {}, "which": {}, "who": {}, "will": {},
}

// TFIDFRanker implements Ranker over unigram+bigram TF-IDF vectors with
// cosine similarity, falling back to a keyword-overlap score when the
// corpus yields an empty vocabulary.
type TFIDFRanker struct {
	// DomainStopwords supplements englishStopwords with vocabulary
	// specific to this deployment (e.g. filler words common in the
	// transcribed domain).
	DomainStopwords map[string]struct{}

	// Threshold overrides defaultRelevanceThreshold.
	Threshold float64
}

var _ Ranker = (*TFIDFRanker)(nil)

// Rank implements Ranker.
func (r *TFIDFRanker) Rank(_ context.Context, query string, candidates []*graph.Node) ([]ScoredNode, error) {
	threshold := r.Threshold
	if threshold <= 0 {
		threshold = defaultRelevanceThreshold
	}

	docs := make([]map[string]int, len(candidates))
	for i, n := range candidates {
		docs[i] = r.termFreq(weightedText(n))
	}

	df := documentFrequency(docs)
	if len(df) == 0 {
		return r.keywordOverlapFallback(query, candidates), nil
	}

	idf := inverseDocFreq(df, len(docs))
	queryVec := tfidfVector(r.termFreq(query), idf)

	out := make([]ScoredNode, 0, len(candidates))
	for i, n := range candidates {
		docVec := tfidfVector(docs[i], idf)
		score := cosineSimilarity(queryVec, docVec)
		if score >= threshold {
			out = append(out, ScoredNode{Node: n, Score: score})
		}
	}
	return out, nil
}

// weightedText builds the document text for TF-IDF weighting: title x3,
// summary x2, first 500 chars of content x1.
func weightedText(n *graph.Node) string {
	content := n.Content
	if len(content) > 500 {
		content = content[:500]
	}
	var b strings.Builder
	for i := 0; i < 3; i++ {
		b.WriteString(n.Title)
		b.WriteString(" ")
	}
	for i := 0; i < 2; i++ {
		b.WriteString(n.Summary)
		b.WriteString(" ")
	}
	b.WriteString(content)
	return b.String()
}

func (r *TFIDFRanker) termFreq(text string) map[string]int {
	tokens := tokenize(text, r.stopwords())
	tf := make(map[string]int, len(tokens))
	for _, tok := range tokens {
		tf[tok]++
	}
	for i := 0; i+1 < len(tokens); i++ {
		bigram := tokens[i] + "_" + tokens[i+1]
		tf[bigram]++
	}
	return tf
}

func (r *TFIDFRanker) stopwords() map[string]struct{} {
	if len(r.DomainStopwords) == 0 {
		return englishStopwords
	}
	merged := make(map[string]struct{}, len(englishStopwords)+len(r.DomainStopwords))
	for w := range englishStopwords {
		merged[w] = struct{}{}
	}
	for w := range r.DomainStopwords {
		merged[w] = struct{}{}
	}
	return merged
}

func tokenize(text string, stop map[string]struct{}) []string {
	raw := tokenRE.FindAllString(strings.ToLower(text), -1)
	out := make([]string, 0, len(raw))
	for _, tok := range raw {
		if _, skip := stop[tok]; skip {
			continue
		}
		out = append(out, tok)
	}
	return out
}

func documentFrequency(docs []map[string]int) map[string]int {
	df := map[string]int{}
	for _, doc := range docs {
		for term := range doc {
			df[term]++
		}
	}
	return df
}

func inverseDocFreq(df map[string]int, numDocs int) map[string]float64 {
	idf := make(map[string]float64, len(df))
	for term, count := range df {
		idf[term] = math.Log(float64(numDocs+1) / float64(count+1))
	}
	return idf
}

func tfidfVector(tf map[string]int, idf map[string]float64) map[string]float64 {
	vec := make(map[string]float64, len(tf))
	for term, freq := range tf {
		vec[term] = float64(freq) * idf[term]
	}
	return vec
}

func cosineSimilarity(a, b map[string]float64) float64 {
	var dot, magA, magB float64
	for term, va := range a {
		dot += va * b[term]
		magA += va * va
	}
	for _, vb := range b {
		magB += vb * vb
	}
	if magA == 0 || magB == 0 {
		return 0
	}
	return dot / (math.Sqrt(magA) * math.Sqrt(magB))
}

// keywordOverlapFallback scores candidates by raw keyword overlap when
// the TF-IDF vocabulary is empty: title matches count 3x, summary
// matches count 1x, normalized by |query tokens|.
func (r *TFIDFRanker) keywordOverlapFallback(query string, candidates []*graph.Node) []ScoredNode {
	queryTokens := tokenize(query, r.stopwords())
	if len(queryTokens) == 0 {
		return nil
	}
	queryTokenSet := make(map[string]struct{}, len(queryTokens))
	for _, t := range queryTokens {
		queryTokenSet[t] = struct{}{}
	}

	out := make([]ScoredNode, 0, len(candidates))
	for _, n := range candidates {
		titleTokens := tokenize(n.Title, r.stopwords())
		summaryTokens := tokenize(n.Summary, r.stopwords())

		var score float64
		for _, t := range titleTokens {
			if _, ok := queryTokenSet[t]; ok {
				score += 3
			}
		}
		for _, t := range summaryTokens {
			if _, ok := queryTokenSet[t]; ok {
				score += 1
			}
		}
		score /= float64(len(queryTokens))
		if score > 0 {
			out = append(out, ScoredNode{Node: n, Score: score})
		}
	}
	return out
}
