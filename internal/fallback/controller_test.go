package fallback

import (
	"errors"
	"testing"

	"github.com/llmgw/core/internal/gwerrors"
)

func providerOf(modelID string) string {
	switch modelID {
	case "openai.gpt-4-turbo", "openai.gpt-3.5-turbo":
		return "openai"
	case "anthropic.claude-3-sonnet":
		return "anthropic"
	default:
		return "unknown"
	}
}

func TestNextModel_S2Scenario(t *testing.T) {
	rules := []Rule{
		{
			ModelID:        "openai.gpt-4-turbo",
			FallbackModels: []string{"openai.gpt-3.5-turbo", "anthropic.claude-3-sonnet"},
			ErrorClasses:   []gwerrors.Class{gwerrors.ClassRateLimited},
		},
	}
	c := New(rules, 3, providerOf)

	err := gwerrors.New(gwerrors.ClassRateLimited, "rate limited")
	next, ok := c.NextModel("openai.gpt-4-turbo", err)
	if !ok || next != "openai.gpt-3.5-turbo" {
		t.Fatalf("expected first fallback openai.gpt-3.5-turbo, got %q ok=%v", next, ok)
	}
}

func TestNextModel_NoRuleForModel(t *testing.T) {
	c := New(nil, 3, providerOf)
	_, ok := c.NextModel("unknown.model", errors.New("boom"))
	if ok {
		t.Error("expected no fallback for an unconfigured model")
	}
}

func TestNextModel_ErrorClassNotEligible(t *testing.T) {
	rules := []Rule{
		{ModelID: "openai.gpt-4-turbo", FallbackModels: []string{"openai.gpt-3.5-turbo"}, ErrorClasses: []gwerrors.Class{gwerrors.ClassProviderTimeout}},
	}
	c := New(rules, 3, providerOf)
	err := gwerrors.New(gwerrors.ClassValidation, "bad request")
	_, ok := c.NextModel("openai.gpt-4-turbo", err)
	if ok {
		t.Error("expected no fallback for an ineligible error class")
	}
}

func TestNextModel_SkipsCircuitOpenCandidates(t *testing.T) {
	rules := []Rule{
		{ModelID: "primary", FallbackModels: []string{"openai.gpt-3.5-turbo", "anthropic.claude-3-sonnet"}},
	}
	c := New(rules, 3, providerOf)

	for i := 0; i < 5; i++ {
		c.RecordFailure("openai.gpt-3.5-turbo")
	}

	next, ok := c.NextModel("primary", errors.New("boom"))
	if !ok || next != "anthropic.claude-3-sonnet" {
		t.Fatalf("expected to skip the open-circuit openai candidate, got %q ok=%v", next, ok)
	}
}

func TestMaxAttempts_DefaultsToThree(t *testing.T) {
	c := New(nil, 0, providerOf)
	if c.MaxAttempts() != 3 {
		t.Errorf("expected default maxAttempts 3, got %d", c.MaxAttempts())
	}
}

func TestFallbackBound_InvariantSix(t *testing.T) {
	// Invariant 6: total adapter invocations per request <= 1 + maxFallbackAttempts.
	c := New(nil, 2, providerOf)
	invocations := 1 // the original attempt
	for i := 0; i < c.MaxAttempts(); i++ {
		invocations++
	}
	if invocations > 1+c.MaxAttempts() {
		t.Errorf("invocation bound violated: %d > %d", invocations, 1+c.MaxAttempts())
	}
}
