// Package streambuf adapts an arbitrarily chunked transcript into
// processable text segments: it accumulates incoming chunks and decides,
// per call, whether the accumulated text is ready to hand off to the rest
// of the pipeline or whether it should keep buffering.
//
// The eviction-on-every-call shape follows
// internal/agent/orchestrator.UtteranceBuffer (sync.RWMutex, compaction to
// a fresh backing slice on trim), generalized from a fixed-count/fixed-age
// eviction policy to the size/sentence-boundary emission policy described
// below.
package streambuf

import (
	"regexp"
	"strings"
	"sync"
)

// Config tunes a Buffer's emission policy. Zero values are replaced with
// defaults by NewBuffer.
type Config struct {
	// Threshold is the accumulated-size at which buffered text is emitted.
	// Default 500.
	Threshold int

	// HardCeiling is the safety-escape size: a single add_text call whose
	// combined buffer would exceed this always emits. Default 6000.
	HardCeiling int

	// HistoryMultiplier sizes the rolling transcript-history window as a
	// multiple of Threshold. Default 3.
	HistoryMultiplier int
}

func (c Config) withDefaults() Config {
	if c.Threshold <= 0 {
		c.Threshold = 500
	}
	if c.HardCeiling <= 0 {
		c.HardCeiling = 6000
	}
	if c.HistoryMultiplier <= 0 {
		c.HistoryMultiplier = 3
	}
	return c
}

// abbreviations lists trailing-dot tokens that must not, by themselves,
// count as a sentence terminator. Matched case-insensitively with a
// trailing period.
var abbreviations = []string{
	"dr", "mr", "ms", "mrs", "prof", "inc", "ltd", "etc", "vs", "i.e", "e.g",
}

// sentenceEndRE finds a run of non-terminator characters followed by a
// single sentence terminator (., !, or ?) not itself followed by another
// terminator (so "..." isn't counted three times).
var sentenceEndRE = regexp.MustCompile(`[^.!?]*[.!?](?:[^.!?]|$)`)

// Buffer accumulates transcript chunks and emits processable segments. All
// methods are safe for concurrent use: a voice-source producer and the
// pipeline consumer may both call into the same Buffer.
type Buffer struct {
	cfg Config

	mu                 sync.Mutex
	textBuffer         strings.Builder
	transcriptHistory  strings.Builder
	incompleteRemainder string
	firstProcessing    bool
}

// NewBuffer constructs a Buffer. A zero Config uses the default
// thresholds (threshold 500, hard ceiling 6000, history multiplier 3).
func NewBuffer(cfg Config) *Buffer {
	return &Buffer{
		cfg:             cfg.withDefaults(),
		firstProcessing: true,
	}
}

// AddText appends chunk and returns a text segment ready for downstream
// processing, or ("", false) if the buffer must keep accumulating. Empty
// or whitespace-only chunks are a no-op that leaves state unchanged.
func (b *Buffer) AddText(chunk string) (segment string, ready bool) {
	if strings.TrimSpace(chunk) == "" {
		return "", false
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	b.appendHistory(chunk)

	justConsumedRemainder := false
	if b.incompleteRemainder != "" {
		chunk = b.incompleteRemainder + chunk
		b.incompleteRemainder = ""
		justConsumedRemainder = true
	}

	combinedLen := b.textBuffer.Len() + len(chunk)
	if combinedLen >= b.cfg.HardCeiling {
		b.textBuffer.WriteString(chunk)
		return b.drain(), true
	}

	immediate := len(chunk) >= b.cfg.Threshold ||
		countSentenceEnds(chunk) >= 2 ||
		justConsumedRemainder

	b.textBuffer.WriteString(chunk)
	if immediate {
		return b.drain(), true
	}
	if b.textBuffer.Len() >= b.cfg.Threshold {
		return b.drain(), true
	}
	return "", false
}

// SetIncompleteRemainder pushes text back into the buffer for the next
// AddText call, as the agent does when a stage-1 chunk trails mid-thought.
func (b *Buffer) SetIncompleteRemainder(remainder string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.incompleteRemainder = remainder
}

// Flush forces emission of whatever is currently buffered, bypassing the
// size threshold. Used by ChunkProcessor.Finalize to drain remaining text
// at shutdown. Returns ("", false) if nothing is buffered.
func (b *Buffer) Flush() (segment string, ready bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.textBuffer.Len() == 0 && b.incompleteRemainder == "" {
		return "", false
	}
	pending := b.incompleteRemainder + b.textBuffer.String()
	b.incompleteRemainder = ""
	b.textBuffer.Reset()
	return pending, true
}

// TranscriptHistory returns the current rolling transcript window, used
// purely as prompt context — it is not part of the graph's authoritative
// state.
func (b *Buffer) TranscriptHistory() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.transcriptHistory.String()
}

// drain returns the current buffer contents and resets it. Must be called
// with b.mu held.
func (b *Buffer) drain() string {
	out := b.textBuffer.String()
	b.textBuffer.Reset()
	b.firstProcessing = false
	return out
}

// appendHistory appends chunk to the rolling transcript history and
// truncates from the left to stay within HistoryMultiplier * Threshold
// runes. Must be called with b.mu held.
func (b *Buffer) appendHistory(chunk string) {
	b.transcriptHistory.WriteString(chunk)
	limit := b.cfg.HistoryMultiplier * b.cfg.Threshold
	r := []rune(b.transcriptHistory.String())
	if len(r) <= limit {
		return
	}
	trimmed := string(r[len(r)-limit:])
	b.transcriptHistory.Reset()
	b.transcriptHistory.WriteString(trimmed)
}

// countSentenceEnds counts terminator-ending runs in text that are not
// immediately preceded by a recognised abbreviation token, so "Dr. Smith"
// does not itself count as a sentence end.
func countSentenceEnds(text string) int {
	matches := sentenceEndRE.FindAllString(text, -1)
	count := 0
	afterAbbrev := false
	for _, m := range matches {
		trimmed := strings.TrimRight(strings.TrimSpace(m), ".!?")
		if isAbbreviation(trimmed) {
			afterAbbrev = true
			continue
		}
		// A bare terminator right after a dotted abbreviation ("e.g"
		// matched, then ". ") is that abbreviation's own trailing dot.
		if trimmed == "" && afterAbbrev {
			afterAbbrev = false
			continue
		}
		afterAbbrev = false
		count++
	}
	return count
}

// isAbbreviation reports whether the final word of s (case-insensitively)
// matches a known abbreviation that should not trigger a sentence-end
// count on its own.
func isAbbreviation(s string) bool {
	fields := strings.Fields(s)
	if len(fields) == 0 {
		return false
	}
	last := strings.ToLower(fields[len(fields)-1])
	for _, abbr := range abbreviations {
		if last == abbr {
			return true
		}
	}
	return false
}
