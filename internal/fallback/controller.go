// Package fallback implements the Fallback Controller (C8): deterministic
// fallback-model selection driven by classified error, bounded by a
// per-request attempt counter, plus the per-provider circuit breaker that
// removes an entire provider's models from candidacy while it is open.
package fallback

import (
	"sync"

	"github.com/llmgw/core/internal/circuitbreaker"
	"github.com/llmgw/core/internal/gwerrors"
)

// Rule is a Fallback Rule: modelId -> (orderedFallbackModels, errorClasses).
type Rule struct {
	ModelID        string
	FallbackModels []string
	ErrorClasses   []gwerrors.Class
}

// matches reports whether class is one of the rule's eligible error classes.
// An empty ErrorClasses list matches every error class, mirroring a
// fallback rule configured without explicit error_codes.
func (r Rule) matches(class gwerrors.Class) bool {
	if len(r.ErrorClasses) == 0 {
		return true
	}
	for _, c := range r.ErrorClasses {
		if c == class {
			return true
		}
	}
	return false
}

// Controller resolves fallback eligibility and guards per-provider circuit
// breakers. Safe for concurrent use.
type Controller struct {
	maxAttempts int

	mu    sync.RWMutex
	rules map[string]Rule

	breakers   map[string]*circuitbreaker.CircuitBreaker
	breakersMu sync.Mutex

	providerOf func(modelID string) string
}

// New builds a Controller. providerOf maps a model id to its owning
// provider name, used to evaluate circuit-breaker eligibility for
// candidate models. maxAttempts defaults to 3 per spec §4.6.
func New(rules []Rule, maxAttempts int, providerOf func(modelID string) string) *Controller {
	if maxAttempts <= 0 {
		maxAttempts = 3
	}
	byModel := make(map[string]Rule, len(rules))
	for _, r := range rules {
		byModel[r.ModelID] = r
	}
	return &Controller{
		maxAttempts: maxAttempts,
		rules:       byModel,
		breakers:    make(map[string]*circuitbreaker.CircuitBreaker),
		providerOf:  providerOf,
	}
}

// MaxAttempts returns the configured maxFallbackAttempts.
func (c *Controller) MaxAttempts() int { return c.maxAttempts }

// NextModel returns the next fallback candidate for modelID given err's
// classification, or ("", false) if no rule matches, the class is not
// retryable-relevant for this rule, or every configured fallback is
// currently provider-circuit-open.
func (c *Controller) NextModel(modelID string, err error) (string, bool) {
	class := gwerrors.ClassOf(err)

	c.mu.RLock()
	rule, ok := c.rules[modelID]
	c.mu.RUnlock()
	if !ok || !rule.matches(class) {
		return "", false
	}

	for _, candidate := range rule.FallbackModels {
		if c.Allow(candidate) {
			return candidate, true
		}
	}
	return "", false
}

// Allow reports whether modelID's owning provider's circuit breaker
// currently permits calls.
func (c *Controller) Allow(modelID string) bool {
	if c.providerOf == nil {
		return true
	}
	cb := c.breakerFor(c.providerOf(modelID))
	return cb.Allow()
}

// RecordSuccess notifies the breaker for modelID's provider of a success.
func (c *Controller) RecordSuccess(modelID string) {
	if c.providerOf == nil {
		return
	}
	c.breakerFor(c.providerOf(modelID)).RecordSuccess()
}

// RecordFailure notifies the breaker for modelID's provider of a failure.
func (c *Controller) RecordFailure(modelID string) {
	if c.providerOf == nil {
		return
	}
	c.breakerFor(c.providerOf(modelID)).RecordFailure()
}

func (c *Controller) breakerFor(providerName string) *circuitbreaker.CircuitBreaker {
	c.breakersMu.Lock()
	defer c.breakersMu.Unlock()
	cb, ok := c.breakers[providerName]
	if !ok {
		cb = circuitbreaker.New(0, 0, 0) // teacher defaults: 5 failures, 1 success, 30s
		c.breakers[providerName] = cb
	}
	return cb
}
