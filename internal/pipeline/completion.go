// Package pipeline implements the Completion Pipeline (C6) and Embedding
// Pipeline (C7): validate -> route -> invoke -> account -> fallback, for
// unary and streaming completions and unary embeddings. Grounded on
// Gateway.Route/RouteStream/Embed, generalized to go through the Model
// Router (internal/router) and Fallback Controller (internal/fallback)
// instead of the teacher's fixed strategy modes.
package pipeline

import (
	"context"
	"time"

	"github.com/llmgw/core/internal/cache"
	"github.com/llmgw/core/internal/fallback"
	"github.com/llmgw/core/internal/gwerrors"
	"github.com/llmgw/core/internal/logging"
	"github.com/llmgw/core/internal/router"
	"github.com/llmgw/core/internal/tokenizer"
	"github.com/llmgw/core/internal/usage"
	"github.com/llmgw/core/providers"
)

// ProviderLookup resolves a provider by its registered name.
type ProviderLookup func(providerName string) (providers.Provider, bool)

const defaultMaxTokensEstimate = 1000

// CompletionPipeline wires together the Model Router, the Fallback
// Controller, the Usage & Metrics Sink and an optional response cache into
// the request-processing path described by spec §4.6.
type CompletionPipeline struct {
	Providers    ProviderLookup
	Router       *router.Router
	Fallback     *fallback.Controller
	Sink         *usage.Sink
	Cache        cache.Cache // nil disables the response cache entirely
	SingleFlight *cache.SingleFlight[*providers.Response]

	// EnableSmartRouting gates whether the Router participates at all; when
	// false the pipeline resolves req.Model directly (after alias
	// resolution) exactly as the legacy Gateway.Route path does.
	EnableSmartRouting bool
}

// New builds a CompletionPipeline from its collaborators.
func New(lookup ProviderLookup, r *router.Router, fb *fallback.Controller, sink *usage.Sink, respCache cache.Cache, smartRouting bool) *CompletionPipeline {
	return &CompletionPipeline{
		Providers:          lookup,
		Router:             r,
		Fallback:           fb,
		Sink:               sink,
		Cache:              respCache,
		SingleFlight:       cache.NewSingleFlight[*providers.Response](),
		EnableSmartRouting: smartRouting,
	}
}

// Complete runs the unary Completion Pipeline and returns both the response
// and the Routing Decision that selected it (the last decision recorded, if
// the request fell back one or more times).
func (p *CompletionPipeline) Complete(ctx context.Context, req providers.Request, userID string) (*providers.Response, router.Decision, error) {
	if err := req.Validate(); err != nil {
		return nil, router.Decision{}, gwerrors.Wrap(gwerrors.ClassValidation, "invalid completion request", err)
	}
	estimatedPromptTokens := estimatePromptTokens(req)
	return p.attempt(ctx, req, userID, estimatedPromptTokens, 0)
}

func (p *CompletionPipeline) attempt(ctx context.Context, req providers.Request, userID string, promptTokens, fallbackAttempt int) (*providers.Response, router.Decision, error) {
	log := logging.FromContext(ctx)

	decision, model, adapter, err := p.resolve(req, userID, promptTokens)
	if err != nil {
		return nil, decision, err
	}
	if model.ContextWindow > 0 && promptTokens+maxTokensOf(req) > model.ContextWindow {
		return nil, decision, gwerrors.New(gwerrors.ClassContextLengthExceeded, "prompt plus max_tokens exceeds model context window")
	}

	vendorReq := req
	vendorReq.Model = model.ProviderModelID
	fp := fingerprint(model.ProviderName, vendorReq)
	useCache := p.Cache != nil && cacheable(vendorReq)

	if useCache {
		if cached, ok := p.Cache.Get(fp); ok {
			return cached, decision, nil
		}
	}

	start := time.Now()
	resp, callErr := p.invoke(ctx, adapter, vendorReq, fp)
	latency := time.Since(start)

	if callErr != nil {
		p.Sink.Metrics.RecordFailure(decision.SelectedModelID, model.ProviderName)
		p.Fallback.RecordFailure(decision.SelectedModelID)

		nextModel, ok := p.Fallback.NextModel(decision.SelectedModelID, callErr)
		if ok && fallbackAttempt < p.Fallback.MaxAttempts() {
			log.Info("falling back",
				"from_model", decision.SelectedModelID,
				"to_model", nextModel,
				"reason", callErr.Error(),
			)
			fbReq := req
			fbReq.Model = nextModel
			return p.attempt(ctx, fbReq, userID, promptTokens, fallbackAttempt+1)
		}
		p.writeUsageBestEffort(ctx, usage.Record{
			UserID:           userID,
			ModelID:          decision.SelectedModelID,
			ProviderName:     model.ProviderName,
			RequestType:      usage.RequestTypeCompletion,
			Timestamp:        time.Now(),
		})
		return nil, decision, callErr
	}

	p.Fallback.RecordSuccess(decision.SelectedModelID)
	cost := model.TokenPriceInput*float64(resp.Usage.PromptTokens)/1000.0 + model.TokenPriceOutput*float64(resp.Usage.CompletionTokens)/1000.0
	p.Sink.Metrics.RecordSuccess(decision.SelectedModelID, model.ProviderName, latency, cost)
	p.writeUsageBestEffort(ctx, usage.Record{
		UserID:           userID,
		ModelID:          decision.SelectedModelID,
		ProviderName:     model.ProviderName,
		PromptTokens:     resp.Usage.PromptTokens,
		CompletionTokens: resp.Usage.CompletionTokens,
		RequestType:      usage.RequestTypeCompletion,
		Timestamp:        time.Now(),
	})
	if userID != "" {
		p.Router.History().RecordSelection(userID, decision.SelectedModelID)
	}

	if resp.Object == "" {
		resp.Object = "chat.completion"
	}
	if resp.Created == 0 {
		resp.Created = time.Now().Unix()
	}
	resp.Provider = model.ProviderName
	if resp.Model == "" {
		resp.Model = decision.SelectedModelID
	}

	if useCache && resp.Object == "chat.completion" {
		p.Cache.Set(fp, resp)
	}

	return resp, decision, nil
}

// invoke runs the vendor call through the single-flight guard when one is
// configured, so concurrent callers for an identical fingerprint share one
// adapter round trip.
func (p *CompletionPipeline) invoke(ctx context.Context, adapter providers.Provider, vendorReq providers.Request, fp string) (*providers.Response, error) {
	if p.SingleFlight == nil {
		return adapter.Complete(ctx, vendorReq)
	}
	resp, err, _ := p.SingleFlight.Do(fp, func() (*providers.Response, error) {
		return adapter.Complete(ctx, vendorReq)
	})
	return resp, err
}

// resolve runs alias resolution + the Model Router (or the direct legacy
// path when smart routing is disabled) and looks up the owning provider.
func (p *CompletionPipeline) resolve(req providers.Request, userID string, promptTokens int) (router.Decision, router.ModelDescriptor, providers.Provider, error) {
	var decision router.Decision
	if p.EnableSmartRouting {
		var err error
		decision, err = p.Router.Select(router.SelectParams{
			RequestedModelID: req.Model,
			UserID:           userID,
			PromptTokens:     promptTokens,
			MaxTokens:        maxTokensOf(req),
			LastUserMessage:  lastUserMessage(req),
			RequestType:      router.RequestTypeCompletion,
		})
		if err != nil {
			return router.Decision{}, router.ModelDescriptor{}, nil, err
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
		return decision, router.ModelDescriptor{}, nil, gwerrors.New(gwerrors.ClassModelNotFound, "model not found: "+decision.SelectedModelID)
	}
	adapter, ok := p.Providers(model.ProviderName)
	if !ok {
		return decision, model, nil, gwerrors.New(gwerrors.ClassModelNotFound, "no provider registered: "+model.ProviderName)
	}
	return decision, model, adapter, nil
}

func (p *CompletionPipeline) writeUsageBestEffort(ctx context.Context, rec usage.Record) {
	log := logging.FromContext(ctx)
	if err := p.Sink.Writer.Write(ctx, rec); err != nil {
		log.Error("token usage write failed", "model", rec.ModelID, "error", err.Error())
	}
}

func estimatePromptTokens(req providers.Request) int {
	bodies := make([]string, 0, len(req.Messages))
	for _, m := range req.Messages {
		bodies = append(bodies, m.Content)
	}
	return tokenizer.CountMessages(bodies, req.Model)
}

func maxTokensOf(req providers.Request) int {
	if req.MaxTokens != nil {
		return *req.MaxTokens
	}
	if req.MaxCompletionTokens != nil {
		return *req.MaxCompletionTokens
	}
	return defaultMaxTokensEstimate
}

func lastUserMessage(req providers.Request) string {
	for i := len(req.Messages) - 1; i >= 0; i-- {
		if req.Messages[i].Role == providers.RoleUser {
			return req.Messages[i].Content
		}
	}
	return ""
}
