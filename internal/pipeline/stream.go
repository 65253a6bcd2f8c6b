package pipeline

import (
	"context"
	"time"

	"github.com/llmgw/core/internal/gwerrors"
	"github.com/llmgw/core/internal/logging"
	"github.com/llmgw/core/internal/router"
	"github.com/llmgw/core/internal/tokenizer"
	"github.com/llmgw/core/internal/usage"
	"github.com/llmgw/core/providers"
)

// Stream runs the streaming Completion Pipeline (§4.6 streaming path) and
// returns a channel of Chunks plus the Routing Decision that selected the
// producing model. Fallback is only attempted while establishing the
// subscription (adapter.CompleteStream itself failing); once a channel is
// open and being forwarded downstream, any later error is surfaced as a
// terminal stream error without retry, per Open Question 3: a client may
// already have received partial output by then.
func (p *CompletionPipeline) Stream(ctx context.Context, req providers.Request, userID string) (<-chan providers.StreamChunk, router.Decision, error) {
	req.Stream = true
	if err := req.Validate(); err != nil {
		return nil, router.Decision{}, gwerrors.Wrap(gwerrors.ClassValidation, "invalid streaming completion request", err)
	}
	promptTokens := estimatePromptTokens(req)

	decision, model, adapter, inbound, err := p.subscribe(ctx, req, userID, promptTokens, 0)
	if err != nil {
		return nil, decision, err
	}

	out := make(chan providers.StreamChunk)
	go p.forward(ctx, inbound, out, decision, model, userID, promptTokens)
	return out, decision, nil
}

// subscribe resolves a model and opens its stream, retrying through the
// Fallback Controller while the failure happens before any channel exists.
func (p *CompletionPipeline) subscribe(ctx context.Context, req providers.Request, userID string, promptTokens, fallbackAttempt int) (router.Decision, router.ModelDescriptor, providers.Provider, <-chan providers.StreamChunk, error) {
	decision, model, adapter, err := p.resolve(req, userID, promptTokens)
	if err != nil {
		return decision, model, adapter, nil, err
	}
	if model.ContextWindow > 0 && promptTokens+maxTokensOf(req) > model.ContextWindow {
		return decision, model, adapter, nil, gwerrors.New(gwerrors.ClassContextLengthExceeded, "prompt plus max_tokens exceeds model context window")
	}

	sp, ok := adapter.(providers.StreamProvider)
	if !ok {
		return decision, model, adapter, nil, gwerrors.New(gwerrors.ClassProviderUnavailable, "provider does not support streaming: "+model.ProviderName)
	}

	vendorReq := req
	vendorReq.Model = model.ProviderModelID
	inbound, callErr := sp.CompleteStream(ctx, vendorReq)
	if callErr != nil {
		p.Sink.Metrics.RecordFailure(decision.SelectedModelID, model.ProviderName)
		p.Fallback.RecordFailure(decision.SelectedModelID)

		nextModel, ok := p.Fallback.NextModel(decision.SelectedModelID, callErr)
		if ok && fallbackAttempt < p.Fallback.MaxAttempts() {
			fbReq := req
			fbReq.Model = nextModel
			return p.subscribe(ctx, fbReq, userID, promptTokens, fallbackAttempt+1)
		}
		return decision, model, adapter, nil, callErr
	}
	return decision, model, adapter, inbound, nil
}

// forward relays chunks from inbound to out, accounting completion tokens
// as they arrive, and writes the Token Usage Record and Model Metrics once
// the stream ends (gracefully or with a terminal error).
func (p *CompletionPipeline) forward(ctx context.Context, inbound <-chan providers.StreamChunk, out chan<- providers.StreamChunk, decision router.Decision, model router.ModelDescriptor, userID string, promptTokens int) {
	log := logging.FromContext(ctx)
	defer close(out)

	start := time.Now()
	completionTokens := 0
	streamErr := drainInto(ctx, inbound, out, func(chunk providers.StreamChunk) {
		for _, choice := range chunk.Choices {
			if choice.Delta.Content != "" {
				completionTokens += tokenizer.Count(choice.Delta.Content, model.ProviderModelID)
			}
		}
	})

	latency := time.Since(start)
	if streamErr != nil {
		p.Sink.Metrics.RecordFailure(decision.SelectedModelID, model.ProviderName)
		p.Fallback.RecordFailure(decision.SelectedModelID)
		log.Error("stream terminated with error", "model", decision.SelectedModelID, "error", streamErr.Error())
	} else {
		p.Fallback.RecordSuccess(decision.SelectedModelID)
		cost := model.TokenPriceInput*float64(promptTokens)/1000.0 + model.TokenPriceOutput*float64(completionTokens)/1000.0
		p.Sink.Metrics.RecordSuccess(decision.SelectedModelID, model.ProviderName, latency, cost)
		if userID != "" {
			p.Router.History().RecordSelection(userID, decision.SelectedModelID)
		}
	}

	p.writeUsageBestEffort(ctx, usage.Record{
		UserID:           userID,
		ModelID:          decision.SelectedModelID,
		ProviderName:     model.ProviderName,
		PromptTokens:     promptTokens,
		CompletionTokens: completionTokens,
		RequestType:      usage.RequestTypeStreamingCompletion,
		Timestamp:        time.Now(),
	})
}

// drainInto forwards every chunk from inbound to out, invoking onChunk for
// each one before forwarding it, until inbound closes, ctx is cancelled, or
// a chunk carries a terminal Error. Cancellation propagates to whichever
// side is waiting so neither the producer nor the consumer can block
// forever on a stalled peer.
func drainInto(ctx context.Context, inbound <-chan providers.StreamChunk, out chan<- providers.StreamChunk, onChunk func(providers.StreamChunk)) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case chunk, ok := <-inbound:
			if !ok {
				return nil
			}
			onChunk(chunk)
			select {
			case out <- chunk:
			case <-ctx.Done():
				return ctx.Err()
			}
			if chunk.Error != nil {
				return chunk.Error
			}
		}
	}
}
