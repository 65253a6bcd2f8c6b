package tokenizer

import "testing"

func TestCount_Empty(t *testing.T) {
	if got := Count("", "gpt-4o"); got != 0 {
		t.Errorf("expected 0 for empty text, got %d", got)
	}
}

func TestCount_NonGPTFallback(t *testing.T) {
	text := "a string that is exactly forty characters"
	got := Count(text, "claude-3-5-sonnet-20241022")
	want := len(text) / fallbackDivisor
	if got != want {
		t.Errorf("expected fallback estimate %d, got %d", want, got)
	}
}

func TestCount_GPTFamilyUsesEncoder(t *testing.T) {
	text := "The quick brown fox jumps over the lazy dog."
	got := Count(text, "gpt-4o")
	if got <= 0 {
		t.Fatalf("expected positive token count, got %d", got)
	}
	// BPE token count should be well under naive char-count but roughly
	// proportional to the len/4 heuristic, not wildly off.
	if got > len(text) {
		t.Errorf("token count %d should be less than character count %d", got, len(text))
	}
}

func TestCount_UnknownGPTVariantFallsBackToBaseEncoding(t *testing.T) {
	got := Count("hello world", "gpt-5-preview-not-yet-indexed")
	if got <= 0 {
		t.Fatalf("expected a positive estimate even for an unindexed GPT variant, got %d", got)
	}
}

func TestCountMessages_SumsWithOverhead(t *testing.T) {
	bodies := []string{"hi", "there"}
	got := CountMessages(bodies, "claude-3-opus")
	if got <= len(bodies)*4 {
		t.Errorf("expected per-message overhead to be added, got %d", got)
	}
}

func TestIsGPTFamily(t *testing.T) {
	tests := map[string]bool{
		"gpt-4o":                     true,
		"gpt-3.5-turbo":               true,
		"o1-preview":                 true,
		"text-embedding-3-small":     true,
		"claude-3-5-sonnet-20241022": false,
		"llama-3-70b":                false,
		"gemini-1.5-pro":             false,
	}
	for id, want := range tests {
		if got := isGPTFamily(id); got != want {
			t.Errorf("isGPTFamily(%q) = %v, want %v", id, got, want)
		}
	}
}
