// Package tokenizer estimates token counts for completion and embedding
// requests. GPT-family models get an exact BPE count via tiktoken-go; every
// other vendor falls back to a length/4 heuristic, which is close enough for
// cost estimation and context-window checks.
package tokenizer

import (
	"strings"
	"sync"

	"github.com/pkoukk/tiktoken-go"
)

// fallbackDivisor is the characters-per-token ratio used when no exact
// encoder is available for a model family.
const fallbackDivisor = 4

var (
	mu       sync.Mutex
	encoders = map[string]*tiktoken.Tiktoken{}
)

// Count estimates the number of tokens in text for the given model ID.
// GPT-family model IDs (gpt-4*, gpt-3.5*, text-embedding-*, o1*, o3*) use an
// exact cl100k_base/o200k_base BPE encoding; everything else uses the
// len(text)/4 estimate.
func Count(text, modelID string) int {
	if text == "" {
		return 0
	}
	if enc := encoderFor(modelID); enc != nil {
		return len(enc.Encode(text, nil, nil))
	}
	return fallbackCount(text)
}

func fallbackCount(text string) int {
	n := len(text) / fallbackDivisor
	if n == 0 {
		return 1
	}
	return n
}

// encoderFor returns a cached tiktoken encoder for modelID, or nil if the
// model isn't a GPT-family model tiktoken-go recognizes.
func encoderFor(modelID string) *tiktoken.Tiktoken {
	if !isGPTFamily(modelID) {
		return nil
	}

	mu.Lock()
	defer mu.Unlock()
	if enc, ok := encoders[modelID]; ok {
		return enc
	}

	enc, err := tiktoken.EncodingForModel(modelID)
	if err != nil {
		// Unknown GPT-family variant (e.g. a dated snapshot tiktoken-go
		// hasn't indexed yet) — fall back to the base chat encoding.
		enc, err = tiktoken.GetEncoding("cl100k_base")
		if err != nil {
			encoders[modelID] = nil
			return nil
		}
	}
	encoders[modelID] = enc
	return enc
}

func isGPTFamily(modelID string) bool {
	id := strings.ToLower(modelID)
	switch {
	case strings.HasPrefix(id, "gpt-"),
		strings.HasPrefix(id, "o1"),
		strings.HasPrefix(id, "o3"),
		strings.HasPrefix(id, "o4"),
		strings.HasPrefix(id, "text-embedding-"),
		strings.HasPrefix(id, "chatgpt-"):
		return true
	default:
		return false
	}
}

// CountMessages sums the estimated token count across a set of message
// bodies, plus a small fixed overhead per message for role/formatting
// tokens — mirrors the per-message overhead OpenAI's own counting guidance
// describes, without requiring the exact chat-format encoding rules.
func CountMessages(bodies []string, modelID string) int {
	const perMessageOverhead = 4
	total := 0
	for _, b := range bodies {
		total += Count(b, modelID) + perMessageOverhead
	}
	return total
}
