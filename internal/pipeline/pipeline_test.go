package pipeline

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/llmgw/core/internal/cache"
	"github.com/llmgw/core/internal/fallback"
	"github.com/llmgw/core/internal/gwerrors"
	"github.com/llmgw/core/internal/router"
	"github.com/llmgw/core/internal/usage"
	"github.com/llmgw/core/providers"
)

type fakeProvider struct {
	name string

	calls atomic.Int32

	resp *providers.Response
	err  error

	streamChunks []providers.StreamChunk
	streamErr    error

	embedResp *providers.EmbeddingResponse
	embedErr  error
}

func (f *fakeProvider) Name() string               { return f.name }
func (f *fakeProvider) SupportedModels() []string   { return nil }
func (f *fakeProvider) SupportsModel(string) bool   { return true }
func (f *fakeProvider) Models() []providers.ModelInfo { return nil }

func (f *fakeProvider) Complete(_ context.Context, _ providers.Request) (*providers.Response, error) {
	f.calls.Add(1)
	if f.err != nil {
		return nil, f.err
	}
	return f.resp, nil
}

func (f *fakeProvider) CompleteStream(_ context.Context, _ providers.Request) (<-chan providers.StreamChunk, error) {
	if f.streamErr != nil {
		return nil, f.streamErr
	}
	ch := make(chan providers.StreamChunk, len(f.streamChunks))
	for _, c := range f.streamChunks {
		ch <- c
	}
	close(ch)
	return ch, nil
}

func (f *fakeProvider) Embed(_ context.Context, _ providers.EmbeddingRequest) (*providers.EmbeddingResponse, error) {
	if f.embedErr != nil {
		return nil, f.embedErr
	}
	return f.embedResp, nil
}

func modelDescriptors() []router.ModelDescriptor {
	return []router.ModelDescriptor{
		{
			ID: "openai.gpt-4-turbo", ProviderName: "openai", ProviderModelID: "gpt-4-turbo",
			ContextWindow: 128000, Capabilities: router.Capabilities{Completion: true, Streaming: true},
			TokenPriceInput: 10, TokenPriceOutput: 30,
		},
		{
			ID: "openai.gpt-3.5-turbo", ProviderName: "openai", ProviderModelID: "gpt-3.5-turbo",
			ContextWindow: 16000, Capabilities: router.Capabilities{Completion: true, Streaming: true},
			TokenPriceInput: 0.5, TokenPriceOutput: 1.5,
		},
		{
			ID: "anthropic.claude-3-sonnet", ProviderName: "anthropic", ProviderModelID: "claude-3-sonnet",
			ContextWindow: 200000, Capabilities: router.Capabilities{Completion: true, Streaming: true},
			TokenPriceInput: 3, TokenPriceOutput: 15,
		},
		{
			ID: "openai.text-embedding-3-small", ProviderName: "openai", ProviderModelID: "text-embedding-3-small",
			ContextWindow: 8000, Capabilities: router.Capabilities{Embedding: true},
		},
	}
}

func newTestRouter() *router.Router {
	return router.New(modelDescriptors(), nil, router.Config{}, usage.NewMetricsStore(), nil, nil, 1)
}

func providerOfFromRouter(r *router.Router) func(string) string {
	return func(modelID string) string {
		if m, ok := r.Describe(modelID); ok {
			return m.ProviderName
		}
		return ""
	}
}

func simpleRequest(model string) providers.Request {
	return providers.Request{
		Model:    model,
		Messages: []providers.Message{{Role: providers.RoleUser, Content: "hello there"}},
	}
}

func TestComplete_Success(t *testing.T) {
	r := newTestRouter()
	fb := fallback.New(nil, 3, providerOfFromRouter(r))
	sink := usage.NewSink(nil)
	openai := &fakeProvider{name: "openai", resp: &providers.Response{ID: "r1", Usage: providers.Usage{PromptTokens: 5, CompletionTokens: 10}}}
	lookup := func(name string) (providers.Provider, bool) {
		if name == "openai" {
			return openai, true
		}
		return nil, false
	}

	p := New(lookup, r, fb, sink, nil, false)
	resp, decision, err := p.Complete(context.Background(), simpleRequest("openai.gpt-4-turbo"), "user-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.Provider != "openai" {
		t.Errorf("expected provider set on response, got %q", resp.Provider)
	}
	if decision.SelectedModelID != "openai.gpt-4-turbo" {
		t.Errorf("unexpected decision: %+v", decision)
	}
	if openai.calls.Load() != 1 {
		t.Errorf("expected exactly 1 adapter call, got %d", openai.calls.Load())
	}
	m := sink.Metrics.Metrics([]string{"openai.gpt-4-turbo"})["openai.gpt-4-turbo"]
	if m.SuccessCount != 1 {
		t.Errorf("expected SuccessCount 1, got %d", m.SuccessCount)
	}
}

// TestComplete_S2FallbackOnRateLimit mirrors the spec's literal fallback
// scenario: the primary model is rate limited, the rule's first fallback
// model succeeds, and exactly two adapter invocations occur.
func TestComplete_S2FallbackOnRateLimit(t *testing.T) {
	r := newTestRouter()
	rules := []fallback.Rule{
		{ModelID: "openai.gpt-4-turbo", FallbackModels: []string{"openai.gpt-3.5-turbo", "anthropic.claude-3-sonnet"}, ErrorClasses: []gwerrors.Class{gwerrors.ClassRateLimited}},
	}
	fb := fallback.New(rules, 3, providerOfFromRouter(r))
	sink := usage.NewSink(nil)

	primary := &fakeProvider{name: "openai", err: gwerrors.New(gwerrors.ClassRateLimited, "RateLimited")}

	calls := 0
	lookup := func(name string) (providers.Provider, bool) {
		if name != "openai" {
			return nil, false
		}
		calls++
		if calls == 1 {
			return primary, true
		}
		return &fakeProvider{name: "openai", resp: &providers.Response{ID: "r2", Usage: providers.Usage{PromptTokens: 5, CompletionTokens: 8}}}, true
	}

	p := New(lookup, r, fb, sink, nil, false)
	resp, decision, err := p.Complete(context.Background(), simpleRequest("openai.gpt-4-turbo"), "user-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if decision.SelectedModelID != "openai.gpt-3.5-turbo" {
		t.Errorf("expected fallback to select openai.gpt-3.5-turbo, got %q", decision.SelectedModelID)
	}
	if resp.ID != "r2" {
		t.Errorf("expected the fallback model's response, got %+v", resp)
	}
}

func TestComplete_FallbackBoundRespected(t *testing.T) {
	r := newTestRouter()
	rules := []fallback.Rule{
		{ModelID: "openai.gpt-4-turbo", FallbackModels: []string{"openai.gpt-3.5-turbo"}, ErrorClasses: []gwerrors.Class{gwerrors.ClassProviderTimeout}},
	}
	fb := fallback.New(rules, 1, providerOfFromRouter(r))
	sink := usage.NewSink(nil)

	var totalCalls atomic.Int32
	failing := func(name string) providers.Provider {
		return &fakeProvider{name: name, err: gwerrors.New(gwerrors.ClassProviderTimeout, "timeout")}
	}
	lookup := func(name string) (providers.Provider, bool) {
		totalCalls.Add(1)
		return failing(name), true
	}

	p := New(lookup, r, fb, sink, nil, false)
	_, _, err := p.Complete(context.Background(), simpleRequest("openai.gpt-4-turbo"), "")
	if err == nil {
		t.Fatal("expected error once fallback is exhausted")
	}
	// 1 initial + 1 fallback = 2 adapter lookups, bounded by maxFallbackAttempts=1.
	if totalCalls.Load() != 2 {
		t.Errorf("expected exactly 2 adapter invocations (1+maxFallbackAttempts), got %d", totalCalls.Load())
	}
}

func TestComplete_ContextLengthExceeded(t *testing.T) {
	r := router.New([]router.ModelDescriptor{
		{ID: "openai.gpt-4-turbo", ProviderName: "openai", ProviderModelID: "gpt-4-turbo", ContextWindow: 10, Capabilities: router.Capabilities{Completion: true}},
	}, nil, router.Config{}, usage.NewMetricsStore(), nil, nil, 1)
	fb := fallback.New(nil, 3, providerOfFromRouter(r))
	sink := usage.NewSink(nil)
	lookup := func(string) (providers.Provider, bool) { return &fakeProvider{name: "openai"}, true }

	p := New(lookup, r, fb, sink, nil, false)
	req := simpleRequest("openai.gpt-4-turbo")
	big := 50
	req.MaxTokens = &big
	_, _, err := p.Complete(context.Background(), req, "")
	if gwerrors.ClassOf(err) != gwerrors.ClassContextLengthExceeded {
		t.Fatalf("expected ContextLengthExceeded, got %v", err)
	}
}

func TestComplete_CacheHitAvoidsSecondCall(t *testing.T) {
	r := newTestRouter()
	fb := fallback.New(nil, 3, providerOfFromRouter(r))
	sink := usage.NewSink(nil)
	openai := &fakeProvider{name: "openai", resp: &providers.Response{ID: "cached", Usage: providers.Usage{PromptTokens: 1, CompletionTokens: 1}}}
	lookup := func(string) (providers.Provider, bool) { return openai, true }

	respCache := cache.NewMemory(10, time.Hour)
	p := New(lookup, r, fb, sink, respCache, false)

	req := simpleRequest("openai.gpt-4-turbo")
	zero := 0.0
	req.Temperature = &zero

	if _, _, err := p.Complete(context.Background(), req, ""); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, _, err := p.Complete(context.Background(), req, ""); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if openai.calls.Load() != 1 {
		t.Errorf("expected the second identical temperature=0 call to hit the cache, got %d adapter calls", openai.calls.Load())
	}
}

func TestStream_ForwardsChunksAndAccountsTokens(t *testing.T) {
	r := newTestRouter()
	fb := fallback.New(nil, 3, providerOfFromRouter(r))
	sink := usage.NewSink(nil)
	openai := &fakeProvider{name: "openai", streamChunks: []providers.StreamChunk{
		{Choices: []providers.StreamChoice{{Delta: providers.MessageDelta{Content: "hello "}}}},
		{Choices: []providers.StreamChoice{{Delta: providers.MessageDelta{Content: "world"}, FinishReason: "stop"}}},
	}}
	lookup := func(string) (providers.Provider, bool) { return openai, true }

	p := New(lookup, r, fb, sink, nil, false)
	out, decision, err := p.Stream(context.Background(), simpleRequest("openai.gpt-4-turbo"), "user-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if decision.SelectedModelID != "openai.gpt-4-turbo" {
		t.Errorf("unexpected decision: %+v", decision)
	}

	var received []providers.StreamChunk
	for chunk := range out {
		received = append(received, chunk)
	}
	if len(received) != 2 {
		t.Fatalf("expected 2 forwarded chunks, got %d", len(received))
	}
	if received[1].Choices[0].FinishReason != "stop" {
		t.Errorf("expected terminal chunk to carry finish_reason, got %+v", received[1])
	}

	// No wait is needed: the channel close happens after metrics/usage are
	// recorded.
	m := sink.Metrics.Metrics([]string{"openai.gpt-4-turbo"})["openai.gpt-4-turbo"]
	if m.SuccessCount != 1 {
		t.Errorf("expected SuccessCount 1 after stream completion, got %d", m.SuccessCount)
	}
}

func TestStream_SubscribeErrorFallsBack(t *testing.T) {
	r := newTestRouter()
	rules := []fallback.Rule{
		{ModelID: "openai.gpt-4-turbo", FallbackModels: []string{"openai.gpt-3.5-turbo"}, ErrorClasses: []gwerrors.Class{gwerrors.ClassProviderUnavailable}},
	}
	fb := fallback.New(rules, 3, providerOfFromRouter(r))
	sink := usage.NewSink(nil)

	calls := 0
	lookup := func(name string) (providers.Provider, bool) {
		calls++
		if calls == 1 {
			return &fakeProvider{name: name, streamErr: gwerrors.New(gwerrors.ClassProviderUnavailable, "down")}, true
		}
		return &fakeProvider{name: name, streamChunks: []providers.StreamChunk{
			{Choices: []providers.StreamChoice{{Delta: providers.MessageDelta{Content: "ok"}, FinishReason: "stop"}}},
		}}, true
	}

	p := New(lookup, r, fb, sink, nil, false)
	out, decision, err := p.Stream(context.Background(), simpleRequest("openai.gpt-4-turbo"), "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if decision.SelectedModelID != "openai.gpt-3.5-turbo" {
		t.Errorf("expected fallback before first chunk, got %q", decision.SelectedModelID)
	}
	var n int
	for range out {
		n++
	}
	if n != 1 {
		t.Errorf("expected 1 chunk from the fallback model, got %d", n)
	}
}

func TestEmbed_Success(t *testing.T) {
	r := newTestRouter()
	sink := usage.NewSink(nil)
	openai := &fakeProvider{name: "openai", embedResp: &providers.EmbeddingResponse{
		Data:  []providers.Embedding{{Embedding: []float64{0.1, 0.2}, Index: 0}},
		Usage: providers.EmbeddingUsage{PromptTokens: 3, TotalTokens: 3},
	}}
	lookup := func(string) (providers.Provider, bool) { return openai, true }

	p := NewEmbedding(lookup, r, sink, false)
	resp, _, err := p.Embed(context.Background(), providers.EmbeddingRequest{Model: "openai.text-embedding-3-small", Input: "hello"}, "user-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(resp.Data) != 1 {
		t.Fatalf("expected 1 embedding, got %d", len(resp.Data))
	}
}

func TestEmbed_RejectsHeterogeneousArray(t *testing.T) {
	r := newTestRouter()
	sink := usage.NewSink(nil)
	lookup := func(string) (providers.Provider, bool) { return &fakeProvider{name: "openai"}, true }

	p := NewEmbedding(lookup, r, sink, false)
	_, _, err := p.Embed(context.Background(), providers.EmbeddingRequest{
		Model: "openai.text-embedding-3-small",
		Input: []interface{}{"a", 5},
	}, "")
	if gwerrors.ClassOf(err) != gwerrors.ClassValidation {
		t.Fatalf("expected ValidationError for a heterogeneous array, got %v", err)
	}
}

func TestEmbed_RejectsEmptyArray(t *testing.T) {
	r := newTestRouter()
	sink := usage.NewSink(nil)
	lookup := func(string) (providers.Provider, bool) { return &fakeProvider{name: "openai"}, true }

	p := NewEmbedding(lookup, r, sink, false)
	_, _, err := p.Embed(context.Background(), providers.EmbeddingRequest{
		Model: "openai.text-embedding-3-small",
		Input: []string{},
	}, "")
	if gwerrors.ClassOf(err) != gwerrors.ClassValidation {
		t.Fatalf("expected ValidationError for an empty array, got %v", err)
	}
}

func TestComplete_PropagatesNonRetryableErrorWithoutFallback(t *testing.T) {
	r := newTestRouter()
	rules := []fallback.Rule{
		{ModelID: "openai.gpt-4-turbo", FallbackModels: []string{"openai.gpt-3.5-turbo"}, ErrorClasses: []gwerrors.Class{gwerrors.ClassProviderTimeout}},
	}
	fb := fallback.New(rules, 3, providerOfFromRouter(r))
	sink := usage.NewSink(nil)
	openai := &fakeProvider{name: "openai", err: gwerrors.New(gwerrors.ClassValidation, "bad request")}
	calls := 0
	lookup := func(string) (providers.Provider, bool) {
		calls++
		return openai, true
	}

	p := New(lookup, r, fb, sink, nil, false)
	_, _, err := p.Complete(context.Background(), simpleRequest("openai.gpt-4-turbo"), "")
	if !errors.Is(err, openai.err) && gwerrors.ClassOf(err) != gwerrors.ClassValidation {
		t.Fatalf("expected the validation error to propagate untouched, got %v", err)
	}
	if calls != 1 {
		t.Errorf("expected no fallback attempt for a non-matching error class, got %d calls", calls)
	}
}
