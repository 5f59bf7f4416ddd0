package llm

import (
	"strings"
	"time"
)

// ApiStream represents a stream of API response chunks
type ApiStream <-chan ApiStreamChunk

// ApiStreamChunk represents different types of streaming responses
type ApiStreamChunk interface {
	Type() string
}

// ApiStreamTextChunk represents text content in the stream
type ApiStreamTextChunk struct {
	Text string `json:"text"`
}

func (c ApiStreamTextChunk) Type() string { return "text" }

// ApiStreamErrorChunk reports a mid-stream failure. The stream is closed
// after an error chunk; no further text chunks follow.
type ApiStreamErrorChunk struct {
	Err error `json:"-"`
}

func (c ApiStreamErrorChunk) Type() string { return "error" }

// ApiStreamUsageChunk represents token usage information
type ApiStreamUsageChunk struct {
	InputTokens  int `json:"inputTokens"`
	OutputTokens int `json:"outputTokens"`
}

func (c ApiStreamUsageChunk) Type() string { return "usage" }

// StreamCollector helps collect and aggregate stream chunks
type StreamCollector struct {
	TextChunks []string
	Usage      *ApiStreamUsageChunk
	Err        error
	StartTime  time.Time
	EndTime    time.Time
}

// NewStreamCollector creates a new stream collector
func NewStreamCollector() *StreamCollector {
	return &StreamCollector{
		TextChunks: make([]string, 0),
		StartTime:  time.Now(),
	}
}

// Collect processes a stream chunk and adds it to the collector
func (sc *StreamCollector) Collect(chunk ApiStreamChunk) {
	switch c := chunk.(type) {
	case ApiStreamTextChunk:
		sc.TextChunks = append(sc.TextChunks, c.Text)
	case ApiStreamErrorChunk:
		sc.Err = c.Err
		sc.EndTime = time.Now()
	case ApiStreamUsageChunk:
		sc.Usage = &c
		sc.EndTime = time.Now()
	}
}

// GetFullText returns the complete text from all text chunks
func (sc *StreamCollector) GetFullText() string {
	var b strings.Builder
	for _, chunk := range sc.TextChunks {
		b.WriteString(chunk)
	}
	return b.String()
}

// GetDuration returns the total duration of the stream
func (sc *StreamCollector) GetDuration() time.Duration {
	if sc.EndTime.IsZero() {
		return time.Since(sc.StartTime)
	}
	return sc.EndTime.Sub(sc.StartTime)
}
