package pipeline

import (
	"context"
	"time"

	"github.com/llmgw/core/internal/gwerrors"
	"github.com/llmgw/core/internal/router"
	"github.com/llmgw/core/internal/tokenizer"
	"github.com/llmgw/core/internal/usage"
	"github.com/llmgw/core/providers"
)

// EmbeddingPipeline implements the Embedding Pipeline (C7): validate ->
// route -> invoke -> account, unary only. Routing is restricted by the
// Router itself to Direct and CostOptimized (§4.7).
type EmbeddingPipeline struct {
	Providers          ProviderLookup
	Router             *router.Router
	Sink               *usage.Sink
	EnableSmartRouting bool
}

// NewEmbedding builds an EmbeddingPipeline from its collaborators.
func NewEmbedding(lookup ProviderLookup, r *router.Router, sink *usage.Sink, smartRouting bool) *EmbeddingPipeline {
	return &EmbeddingPipeline{Providers: lookup, Router: r, Sink: sink, EnableSmartRouting: smartRouting}
}

// Embed validates, routes and invokes a single embedding request, then
// accounts its token usage and metrics. Input ordering is preserved end to
// end: adapters receive and return the same []string order the caller gave.
func (p *EmbeddingPipeline) Embed(ctx context.Context, req providers.EmbeddingRequest, userID string) (*providers.EmbeddingResponse, router.Decision, error) {
	inputs, err := normalizeEmbeddingInput(req.Input)
	if err != nil {
		return nil, router.Decision{}, err
	}

	promptTokens := tokenizer.CountMessages(inputs, req.Model)

	var decision router.Decision
	if p.EnableSmartRouting {
		decision, err = p.Router.Select(router.SelectParams{
			RequestedModelID: req.Model,
			UserID:           userID,
			PromptTokens:     promptTokens,
			RequestType:      router.RequestTypeEmbedding,
		})
		if err != nil {
			return nil, decision, err
		}
	} else {
		decision = router.Decision{
			OriginalModelID: req.Model,
			SelectedModelID: req.Model,
			Strategy:        router.StrategyDirect,
			UserID:          userID,
			Timestamp:       time.Now(),
		}
	}

	model, ok := p.Router.Describe(decision.SelectedModelID)
	if !ok {
		return nil, decision, gwerrors.New(gwerrors.ClassModelNotFound, "model not found: "+decision.SelectedModelID)
	}
	adapter, ok := p.Providers(model.ProviderName)
	if !ok {
		return nil, decision, gwerrors.New(gwerrors.ClassModelNotFound, "no provider registered: "+model.ProviderName)
	}
	ep, ok := adapter.(providers.EmbeddingProvider)
	if !ok {
		return nil, decision, gwerrors.New(gwerrors.ClassProviderUnavailable, "provider does not support embeddings: "+model.ProviderName)
	}

	vendorReq := req
	vendorReq.Model = model.ProviderModelID
	vendorReq.Input = inputs

	start := time.Now()
	resp, callErr := ep.Embed(ctx, vendorReq)
	latency := time.Since(start)

	if callErr != nil {
		p.Sink.Metrics.RecordFailure(decision.SelectedModelID, model.ProviderName)
		p.writeUsage(ctx, usage.Record{
			UserID:       userID,
			ModelID:      decision.SelectedModelID,
			ProviderName: model.ProviderName,
			RequestType:  usage.RequestTypeEmbedding,
			Timestamp:    time.Now(),
		})
		return nil, decision, callErr
	}

	cost := model.TokenPriceInput * float64(resp.Usage.PromptTokens) / 1000.0
	p.Sink.Metrics.RecordSuccess(decision.SelectedModelID, model.ProviderName, latency, cost)
	p.writeUsage(ctx, usage.Record{
		UserID:           userID,
		ModelID:          decision.SelectedModelID,
		ProviderName:     model.ProviderName,
		PromptTokens:     resp.Usage.PromptTokens,
		CompletionTokens: 0,
		RequestType:      usage.RequestTypeEmbedding,
		Timestamp:        time.Now(),
	})

	resp.Model = decision.SelectedModelID
	return resp, decision, nil
}

func (p *EmbeddingPipeline) writeUsage(ctx context.Context, rec usage.Record) {
	_ = p.Sink.Writer.Write(ctx, rec)
}

// normalizeEmbeddingInput accepts a string or a non-empty ordered sequence
// of strings and rejects everything else, including a heterogeneous array
// (Open Question 4: mixed arrays are a ValidationError, not a best-effort
// coercion).
func normalizeEmbeddingInput(input interface{}) ([]string, error) {
	switch v := input.(type) {
	case string:
		if v == "" {
			return nil, gwerrors.New(gwerrors.ClassValidation, "input must not be empty")
		}
		return []string{v}, nil
	case []string:
		if len(v) == 0 {
			return nil, gwerrors.New(gwerrors.ClassValidation, "input array must not be empty")
		}
		return v, nil
	case []interface{}:
		if len(v) == 0 {
			return nil, gwerrors.New(gwerrors.ClassValidation, "input array must not be empty")
		}
		out := make([]string, len(v))
		for i, elem := range v {
			s, ok := elem.(string)
			if !ok {
				return nil, gwerrors.New(gwerrors.ClassValidation, "input array must contain only strings, found a heterogeneous element")
			}
			out[i] = s
		}
		return out, nil
	default:
		return nil, gwerrors.New(gwerrors.ClassValidation, "input must be a string or an array of strings")
	}
}
