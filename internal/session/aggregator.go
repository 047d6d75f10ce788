package session

import (
	"strings"
	"sync"

	"github.com/ddallabenetta/meet-transcriber-v3/internal/transcription"
)

// Aggregator accumulates live transcript segments in arrival order for the
// duration of a recording session. Drain returns the accumulated text
// without clearing it; Reset starts a fresh session.
type Aggregator struct {
	mu       sync.Mutex
	parts    []string
	language string
}

// NewAggregator creates an empty live transcript aggregator
func NewAggregator() *Aggregator {
	return &Aggregator{}
}

// OnSegments appends a batch of recognized segments. Empty-text segments
// are skipped. The batch language overwrites the session language, so the
// stored value reflects the most recent detection.
func (a *Aggregator) OnSegments(batch transcription.Batch) {
	a.mu.Lock()
	defer a.mu.Unlock()

	for _, seg := range batch.Segments {
		text := strings.TrimSpace(seg.Text)
		if text == "" {
			continue
		}
		a.parts = append(a.parts, text)
	}
	if batch.Language != "" {
		a.language = batch.Language
	}
}

// Drain returns the accumulated transcript joined with single spaces, plus
// the detected language. The accumulated state is left intact, so calling
// Drain twice yields the same text.
func (a *Aggregator) Drain() (string, string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return strings.Join(a.parts, " "), a.language
}

// Reset discards all accumulated segments and the detected language
func (a *Aggregator) Reset() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.parts = nil
	a.language = ""
}

// Len returns the number of accumulated segments
func (a *Aggregator) Len() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.parts)
}
