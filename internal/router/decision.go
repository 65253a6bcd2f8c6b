package router

import "time"

// Strategy names the rule set used to resolve a Routing Decision.
type Strategy string

// Strategy constants, per spec §4.5.
const (
	StrategyDirect            Strategy = "direct"
	StrategyCostOptimized     Strategy = "cost_optimized"
	StrategyLatencyOptimized  Strategy = "latency_optimized"
	StrategyQualityOptimized  Strategy = "quality_optimized"
	StrategyLoadBalanced      Strategy = "load_balanced"
	StrategyContentBased      Strategy = "content_based"
	StrategyUserPreference    Strategy = "user_preference"
	StrategyExperimental      Strategy = "experimental"
)

// Decision is an immutable Routing Decision record.
type Decision struct {
	OriginalModelID       string
	SelectedModelID       string
	Strategy              Strategy
	UserID                string
	RequestDigest         string
	EstimatedPromptTokens int
	IsFallback            bool
	FallbackReason        string
	LatencyMs             float64
	Timestamp             time.Time
}

// requestDigest returns the first 100 characters of text, per §3's
// RequestDigest definition ("first 100 chars of last user message, or
// empty").
func requestDigest(text string) string {
	r := []rune(text)
	if len(r) > 100 {
		r = r[:100]
	}
	return string(r)
}
