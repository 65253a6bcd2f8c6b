package aigateway

// Config holds the configuration for the AI Gateway.
type Config struct {
	// Strategy defines how requests are routed (e.g., single, fallback, loadbalance).
	// This is the legacy strategy-based routing path; gateways that set
	// Routing.EnableSmartRouting route through the model router instead.
	Strategy StrategyConfig `json:"strategy" yaml:"strategy"`
	// Targets is a list of provider targets to route requests to.
	Targets []Target `json:"targets" yaml:"targets"`
	// Plugins configuration (optional).
	Plugins []PluginConfig `json:"plugins,omitempty" yaml:"plugins,omitempty"`

	// ModelMappings declares the canonical alias → provider-model bindings
	// the router resolves against. This is the only model-mapping namespace:
	// Config has no separate LLMRouting or Routing mapping fields, and
	// ValidateConfig rejects a duplicate id within it.
	ModelMappings []ModelMapping `json:"model_mappings,omitempty" yaml:"model_mappings,omitempty"`
	// Routing configures the smart model router (strategy selection,
	// content-based and experimental routing toggles).
	Routing RoutingConfig `json:"routing,omitempty" yaml:"routing,omitempty"`
	// Fallbacks configures the fallback controller.
	Fallbacks FallbacksConfig `json:"fallbacks,omitempty" yaml:"fallbacks,omitempty"`
	// Monitoring configures the health monitor's polling cadence and
	// alerting thresholds.
	Monitoring MonitoringConfig `json:"monitoring,omitempty" yaml:"monitoring,omitempty"`
	// TokenUsage configures the usage sink's storage backend and retention.
	TokenUsage TokenUsageConfig `json:"token_usage,omitempty" yaml:"token_usage,omitempty"`
	// RateLimiting configures the inbound token-bucket limiter.
	RateLimiting RateLimitingConfig `json:"rate_limiting,omitempty" yaml:"rate_limiting,omitempty"`

	// Aliases is a simple string-to-string model name substitution applied
	// before routing, independent of the smart router's ModelMappings. It
	// exists for callers on the legacy strategy-based path who just want
	// "my-embed" to mean "text-embedding-3-small" without opting into the
	// full router.
	Aliases map[string]string `json:"aliases,omitempty" yaml:"aliases,omitempty"`

	// Cache configures the completion response cache (C9).
	Cache CacheConfig `json:"cache,omitempty" yaml:"cache,omitempty"`
}

// CacheConfig selects and sizes the completion response cache backend.
type CacheConfig struct {
	// Backend is "memory" (default) or "redis".
	Backend string `json:"backend,omitempty" yaml:"backend,omitempty"`
	// Capacity bounds the in-memory LRU's entry count. Ignored for redis.
	Capacity int `json:"capacity,omitempty" yaml:"capacity,omitempty"`
	// TTLSeconds is the cache entry lifetime for temperature=0 responses.
	// Defaults to 3600 (1h) per the response cache's "long when deterministic" rule.
	TTLSeconds int `json:"ttl_seconds,omitempty" yaml:"ttl_seconds,omitempty"`
	// RedisAddr is the "host:port" of the Redis server (backend=redis only).
	RedisAddr string `json:"redis_addr,omitempty" yaml:"redis_addr,omitempty"`
	// KeyPrefix namespaces cache keys in a shared Redis instance.
	KeyPrefix string `json:"key_prefix,omitempty" yaml:"key_prefix,omitempty"`
}

// ModelMapping binds a canonical alias to a provider-hosted model and its
// routing-relevant metadata. It generalizes the bare Config.Aliases
// map[string]string with provider and pricing metadata.
type ModelMapping struct {
	// ID is the alias callers request (e.g. "fast", "smart-writer").
	ID string `json:"id" yaml:"id"`
	// ProviderName is the registered provider this alias resolves to.
	ProviderName string `json:"provider_name" yaml:"provider_name"`
	// ProviderModelID is the vendor's own model identifier.
	ProviderModelID string `json:"provider_model_id" yaml:"provider_model_id"`
	// DisplayName is a human-readable label surfaced by /models.
	DisplayName string `json:"display_name,omitempty" yaml:"display_name,omitempty"`
	// ContextWindow is the model's maximum input+output token count.
	ContextWindow int `json:"context_window,omitempty" yaml:"context_window,omitempty"`
	// Properties carries routing-relevant pricing and quality metadata.
	Properties ModelMappingProperties `json:"properties,omitempty" yaml:"properties,omitempty"`
}

// ModelMappingProperties holds the typed routing metadata for a model
// mapping — typed fields instead of a map[string]string so the cost and
// quality routers can compare values without parsing.
type ModelMappingProperties struct {
	TokenPriceInputPerM  float64 `json:"token_price_input_per_m,omitempty" yaml:"token_price_input_per_m,omitempty"`
	TokenPriceOutputPerM float64 `json:"token_price_output_per_m,omitempty" yaml:"token_price_output_per_m,omitempty"`
	// QualityRank is a 0-100 score used by QualityOptimized routing; higher
	// is better.
	QualityRank int `json:"quality_rank,omitempty" yaml:"quality_rank,omitempty"`
}

// RoutingConfig toggles the smart routing strategies of the model router.
type RoutingConfig struct {
	EnableSmartRouting            bool `json:"enable_smart_routing,omitempty" yaml:"enable_smart_routing,omitempty"`
	EnableLoadBalancing           bool `json:"enable_load_balancing,omitempty" yaml:"enable_load_balancing,omitempty"`
	EnableLatencyOptimizedRouting bool `json:"enable_latency_optimized_routing,omitempty" yaml:"enable_latency_optimized_routing,omitempty"`
	EnableCostOptimizedRouting    bool `json:"enable_cost_optimized_routing,omitempty" yaml:"enable_cost_optimized_routing,omitempty"`
	EnableContentBasedRouting     bool `json:"enable_content_based_routing,omitempty" yaml:"enable_content_based_routing,omitempty"`
	EnableExperimentalRouting     bool `json:"enable_experimental_routing,omitempty" yaml:"enable_experimental_routing,omitempty"`
	// ExperimentalSamplingRate is the fraction (0-1) of eligible requests
	// diverted to ExperimentalModels.
	ExperimentalSamplingRate float64  `json:"experimental_sampling_rate,omitempty" yaml:"experimental_sampling_rate,omitempty"`
	ExperimentalModels       []string `json:"experimental_models,omitempty" yaml:"experimental_models,omitempty"`
}

// FallbacksConfig configures the fallback controller.
type FallbacksConfig struct {
	EnableFallbacks     bool           `json:"enable_fallbacks,omitempty" yaml:"enable_fallbacks,omitempty"`
	MaxFallbackAttempts int            `json:"max_fallback_attempts,omitempty" yaml:"max_fallback_attempts,omitempty"`
	Rules               []FallbackRule `json:"rules,omitempty" yaml:"rules,omitempty"`
}

// FallbackRule maps a model, on a given set of error codes, to an ordered
// list of models to retry against.
type FallbackRule struct {
	ModelID        string   `json:"model_id" yaml:"model_id"`
	FallbackModels []string `json:"fallback_models" yaml:"fallback_models"`
	ErrorCodes     []string `json:"error_codes,omitempty" yaml:"error_codes,omitempty"`
}

// MonitoringConfig configures the health monitor.
type MonitoringConfig struct {
	HealthCheckIntervalMinutes     int `json:"health_check_interval_minutes,omitempty" yaml:"health_check_interval_minutes,omitempty"`
	ConsecutiveFailuresBeforeAlert int `json:"consecutive_failures_before_alert,omitempty" yaml:"consecutive_failures_before_alert,omitempty"`
}

// TokenUsageConfig configures the usage sink.
type TokenUsageConfig struct {
	StorageProvider     string `json:"storage_provider,omitempty" yaml:"storage_provider,omitempty"` // "sqlite" persists; any other value ("postgres", "none", unset) discards records
	DataRetentionPeriod string `json:"data_retention_period,omitempty" yaml:"data_retention_period,omitempty"` // e.g. "720h"
}

// RateLimitingConfig configures the inbound token-bucket rate limiter.
type RateLimitingConfig struct {
	TokenLimit                 int `json:"token_limit,omitempty" yaml:"token_limit,omitempty"`
	TokensPerPeriod             int `json:"tokens_per_period,omitempty" yaml:"tokens_per_period,omitempty"`
	ReplenishmentPeriodSeconds   int `json:"replenishment_period_seconds,omitempty" yaml:"replenishment_period_seconds,omitempty"`
	QueueLimit                   int `json:"queue_limit,omitempty" yaml:"queue_limit,omitempty"`
}

// StrategyConfig defines the routing strategy.
type StrategyConfig struct {
	Mode       StrategyMode `json:"mode" yaml:"mode"`
	Conditions []Condition  `json:"conditions,omitempty" yaml:"conditions,omitempty"` // For conditional routing
}

// StrategyMode represents the routing strategy mode.
type StrategyMode string

// StrategyMode constants define the supported routing strategies.
const (
	ModeSingle      StrategyMode = "single"
	ModeFallback    StrategyMode = "fallback"
	ModeLoadBalance StrategyMode = "loadbalance"
	ModeConditional StrategyMode = "conditional"
)

// Condition represents a condition for conditional routing.
type Condition struct {
	Key       string `json:"key" yaml:"key"`
	Value     string `json:"value" yaml:"value"`
	TargetKey string `json:"target_key" yaml:"target_key"`
}

// Target represents a specific provider target.
type Target struct {
	// VirtualKey is the unique identifier for the provider (or a virtual key in the vault).
	VirtualKey string `json:"virtual_key" yaml:"virtual_key"`
	// Weight is used for load balancing.
	Weight float64 `json:"weight,omitempty" yaml:"weight,omitempty"`
	// Retry configuration for this target.
	Retry *RetryConfig `json:"retry,omitempty" yaml:"retry,omitempty"`
	// CircuitBreaker configuration for this target (optional).
	CircuitBreaker *CircuitBreakerConfig `json:"circuit_breaker,omitempty" yaml:"circuit_breaker,omitempty"`
}

// RetryConfig defines retry behavior.
type RetryConfig struct {
	Attempts int `json:"attempts" yaml:"attempts"`
}

// CircuitBreakerConfig configures the per-provider circuit breaker.
type CircuitBreakerConfig struct {
	// FailureThreshold is the number of consecutive failures before the circuit
	// opens. Defaults to 5.
	FailureThreshold int `json:"failure_threshold" yaml:"failure_threshold"`
	// SuccessThreshold is the number of consecutive successes in half-open state
	// required to close the circuit. Defaults to 1.
	SuccessThreshold int `json:"success_threshold" yaml:"success_threshold"`
	// Timeout is the duration the circuit stays open before transitioning to
	// half-open (e.g. "30s"). Defaults to "30s".
	Timeout string `json:"timeout" yaml:"timeout"`
}

// PluginConfig holds plugin configuration.
type PluginConfig struct {
	Name    string                 `json:"name" yaml:"name"`
	Type    string                 `json:"type" yaml:"type"`
	Stage   string                 `json:"stage" yaml:"stage"`
	Enabled bool                   `json:"enabled" yaml:"enabled"`
	Config  map[string]interface{} `json:"config" yaml:"config"`
}
