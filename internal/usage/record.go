// Package usage implements the Usage & Metrics Sink: an append-only token
// usage writer and a rolling, per-model metrics aggregate the router
// consults for latency- and load-aware strategies.
package usage

import "time"

// RequestType identifies what kind of call a Token Usage Record accounts for.
type RequestType string

// Request types recorded against token usage.
const (
	RequestTypeCompletion          RequestType = "completion"
	RequestTypeStreamingCompletion RequestType = "streaming_completion"
	RequestTypeEmbedding           RequestType = "embedding"
)

// Record is a single, write-only Token Usage Record. The core never reads
// these back in the request path — only the sink's in-memory metrics and
// offline reporting consume them.
type Record struct {
	UserID           string
	ModelID          string
	ProviderName     string
	PromptTokens     int
	CompletionTokens int
	RequestType      RequestType
	Timestamp        time.Time
}
