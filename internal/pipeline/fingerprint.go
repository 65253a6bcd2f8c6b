package pipeline

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/llmgw/core/providers"
)

// fingerprint builds the request fingerprint the cache and single-flight
// guard key on: providerName + modelId + normalized messages + the sampling
// parameters that change the response, per §4.1 step 2.
func fingerprint(providerName string, req providers.Request) string {
	var b strings.Builder
	b.WriteString(providerName)
	b.WriteByte('|')
	b.WriteString(req.Model)
	b.WriteByte('|')
	for _, m := range req.Messages {
		b.WriteString(m.Role)
		b.WriteByte(':')
		b.WriteString(normalizeContent(m.Content))
		b.WriteByte('\n')
	}
	b.WriteByte('|')
	if req.Temperature != nil {
		fmt.Fprintf(&b, "t=%g", *req.Temperature)
	}
	if req.TopP != nil {
		fmt.Fprintf(&b, "p=%g", *req.TopP)
	}
	if req.MaxTokens != nil {
		fmt.Fprintf(&b, "m=%d", *req.MaxTokens)
	}
	for _, t := range req.Tools {
		b.WriteString(t.Function.Name)
		b.WriteByte(';')
	}

	sum := sha256.Sum256([]byte(b.String()))
	return hex.EncodeToString(sum[:])
}

// normalizeContent trims surrounding whitespace and collapses inner runs of
// whitespace to one space so two semantically
// identical messages fingerprint identically regardless of incidental
// formatting differences from the client.
func normalizeContent(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// cacheable reports whether a request is eligible for the response cache:
// only requests with an explicit temperature of exactly 0, per §4.9's TTL
// rule (long when temperature==0, otherwise caching is disabled entirely).
func cacheable(req providers.Request) bool {
	return req.Temperature != nil && *req.Temperature == 0
}
