package aigateway

import (
	"fmt"
	"strings"
	"time"

	"github.com/llmgw/core/internal/cache"
	"github.com/llmgw/core/internal/fallback"
	"github.com/llmgw/core/internal/gwerrors"
	"github.com/llmgw/core/internal/pipeline"
	"github.com/llmgw/core/internal/router"
	"github.com/llmgw/core/internal/usage"
	"github.com/llmgw/core/models"
	"github.com/redis/go-redis/v9"
)

// smartRouting holds the Core collaborators the Completion/Embedding
// Pipelines need: Model Router, Fallback Controller, Usage & Metrics Sink
// and Response Cache. Built lazily from Config.ModelMappings/Routing and
// rebuilt whenever the config or provider set changes, the same way
// getStrategy rebuilds the legacy strategy.
type smartRouting struct {
	router     *router.Router
	fallback   *fallback.Controller
	sink       *usage.Sink
	cache      cache.Cache
	completion *pipeline.CompletionPipeline
	embedding  *pipeline.EmbeddingPipeline
}

// buildSmartRouting lazily constructs the Core pipeline collaborators from
// the current config and registered providers. Call with g.mu held.
func (g *Gateway) buildSmartRouting() (*smartRouting, error) {
	if g.smart != nil {
		return g.smart, nil
	}
	if len(g.config.ModelMappings) == 0 {
		return nil, fmt.Errorf("smart routing requires at least one model mapping")
	}

	descriptors := ModelDescriptorsFromMappings(g.config.ModelMappings, g.catalog)
	rtr := router.New(descriptors, g.config.Aliases, RouterConfigFromRouting(g.config.Routing), usage.NewMetricsStore(), nil, nil, time.Now().UnixNano())

	providerOf := make(map[string]string, len(descriptors))
	for _, d := range descriptors {
		providerOf[d.ID] = d.ProviderName
	}
	rules := make([]fallback.Rule, len(g.config.Fallbacks.Rules))
	for i, r := range g.config.Fallbacks.Rules {
		rules[i] = fallback.Rule{
			ModelID:        r.ModelID,
			FallbackModels: r.FallbackModels,
			ErrorClasses:   errorClassesFromCodes(r.ErrorCodes),
		}
	}
	fbCtl := fallback.New(rules, g.config.Fallbacks.MaxFallbackAttempts, func(modelID string) string {
		return providerOf[modelID]
	})

	sink := usage.NewSink(g.usageWriter())
	respCache := g.buildCache()

	lookup := g.GetProvider
	comp := pipeline.New(lookup, rtr, fbCtl, sink, respCache, true)
	emb := pipeline.NewEmbedding(lookup, rtr, sink, true)

	g.smart = &smartRouting{
		router:     rtr,
		fallback:   fbCtl,
		sink:       sink,
		cache:      respCache,
		completion: comp,
		embedding:  emb,
	}
	return g.smart, nil
}

// usageWriter returns the SQLite token-usage store when
// TokenUsage.StorageProvider is "sqlite" and the store opens. Every other
// value, "postgres" included, and a failed SQLite open yield a no-op writer.
func (g *Gateway) usageWriter() usage.Writer {
	switch g.config.TokenUsage.StorageProvider {
	case "sqlite":
		store, err := usage.NewSQLiteStore("ferrogw_usage.db")
		if err != nil {
			return usage.NoopWriter{}
		}
		return store
	case "postgres":
		return usage.NoopWriter{}
	default:
		return usage.NoopWriter{}
	}
}

// buildCache constructs the Response Cache (C9) backend selected by
// Config.Cache. Memory is the default; redis requires a reachable address.
func (g *Gateway) buildCache() cache.Cache {
	ttl := time.Duration(g.config.Cache.TTLSeconds) * time.Second
	if ttl <= 0 {
		ttl = time.Hour
	}
	switch g.config.Cache.Backend {
	case "redis":
		client := redis.NewClient(&redis.Options{Addr: g.config.Cache.RedisAddr})
		return cache.NewRedis(client, ttl, g.config.Cache.KeyPrefix)
	default:
		capacity := g.config.Cache.Capacity
		if capacity <= 0 {
			capacity = 1000
		}
		return cache.NewMemory(capacity, ttl)
	}
}

// ModelDescriptorsFromMappings converts the config's ModelMappings into the
// router's ModelDescriptor shape, enriching context window and capability
// flags from the model catalog when a matching "provider/model-id" entry
// exists, and falling back to a name-based heuristic otherwise (chat
// capability assumed, embedding only when the id mentions "embed").
// Exported so gwctl's route dry-run command builds the identical Router a
// live gateway would, without duplicating the conversion.
func ModelDescriptorsFromMappings(mappings []ModelMapping, catalog models.Catalog) []router.ModelDescriptor {
	out := make([]router.ModelDescriptor, 0, len(mappings))
	for _, m := range mappings {
		d := router.ModelDescriptor{
			ID:               m.ID,
			ProviderName:     m.ProviderName,
			ProviderModelID:  m.ProviderModelID,
			ContextWindow:    m.ContextWindow,
			TokenPriceInput:  m.Properties.TokenPriceInputPerM / 1000.0,
			TokenPriceOutput: m.Properties.TokenPriceOutputPerM / 1000.0,
			QualityRank:      m.Properties.QualityRank,
		}

		catModel, found := catalog.Get(m.ProviderName + "/" + m.ProviderModelID)
		switch {
		case found:
			if d.ContextWindow == 0 {
				d.ContextWindow = catModel.ContextWindow
			}
			d.Capabilities = router.Capabilities{
				Completion:      catModel.Mode == models.ModeChat || catModel.Mode == "",
				Embedding:       catModel.Mode == models.ModeEmbedding,
				Streaming:       catModel.Capabilities.Streaming,
				FunctionCalling: catModel.Capabilities.FunctionCalling,
				Vision:          catModel.Capabilities.Vision,
			}
		default:
			isEmbedding := strings.Contains(strings.ToLower(m.ID), "embed")
			d.Capabilities = router.Capabilities{
				Completion: !isEmbedding,
				Embedding:  isEmbedding,
				Streaming:  !isEmbedding,
			}
		}
		out = append(out, d)
	}
	return out
}

// RouterConfigFromRouting mirrors the root RoutingConfig fields into
// router.Config, kept as a separate conversion so internal/router never
// imports the root package (avoids an import cycle).
func RouterConfigFromRouting(r RoutingConfig) router.Config {
	return router.Config{
		EnableLoadBalancing:           r.EnableLoadBalancing,
		EnableLatencyOptimizedRouting: r.EnableLatencyOptimizedRouting,
		EnableCostOptimizedRouting:    r.EnableCostOptimizedRouting,
		EnableContentBasedRouting:     r.EnableContentBasedRouting,
		EnableExperimentalRouting:     r.EnableExperimentalRouting,
		ExperimentalSamplingRate:      r.ExperimentalSamplingRate,
		ExperimentalModels:            r.ExperimentalModels,
	}
}

// errorClassesFromCodes maps the config's string error codes (as they
// appear in fallback rules) onto the typed gwerrors.Class taxonomy. Unknown
// codes are dropped rather than rejected, so a rule can name codes from a
// newer spec revision without failing validation.
func errorClassesFromCodes(codes []string) []gwerrors.Class {
	out := make([]gwerrors.Class, 0, len(codes))
	for _, c := range codes {
		switch c {
		case "rate_limited":
			out = append(out, gwerrors.ClassRateLimited)
		case "provider_timeout":
			out = append(out, gwerrors.ClassProviderTimeout)
		case "provider_unavailable":
			out = append(out, gwerrors.ClassProviderUnavailable)
		case "provider_server_error":
			out = append(out, gwerrors.ClassProviderServerError)
		case "provider_auth":
			out = append(out, gwerrors.ClassProviderAuth)
		}
	}
	return out
}
