// Package router implements the Model Router (C5): strategy-driven
// selection of a concrete model for a logical request. Content-based routing
// consults the Content Classifier in internal/classifier.
package router

import (
	"math/rand"
	"sort"
	"sync"
	"time"

	"github.com/llmgw/core/internal/classifier"
	"github.com/llmgw/core/internal/gwerrors"
	"github.com/llmgw/core/internal/health"
	"github.com/llmgw/core/internal/usage"
)

// contentSpecialty keys into Config.ContentSpecialty.
const (
	SpecialtyCode     = "code"
	SpecialtyMath     = "math"
	SpecialtyCreative = "creative"
)

// Config toggles the smart-routing strategies, mirroring the root
// RoutingConfig fields one-for-one (kept as a separate type so this
// package never imports the root package and risks an import cycle).
type Config struct {
	EnableLoadBalancing           bool
	EnableLatencyOptimizedRouting bool
	EnableCostOptimizedRouting    bool
	EnableContentBasedRouting     bool
	EnableExperimentalRouting     bool
	ExperimentalSamplingRate      float64
	ExperimentalModels            []string

	// ContentSpecialty maps a classifier signal (SpecialtyCode/Math/Creative)
	// to an ordered list of preferred model IDs.
	ContentSpecialty map[string][]string
	// PerModelStrategy optionally pins a requested model id to a specific
	// strategy, overriding the global toggles (step 3b).
	PerModelStrategy map[string]Strategy
}

// SelectParams carries one routing request's inputs.
type SelectParams struct {
	RequestedModelID string
	UserID           string
	PromptTokens     int
	MaxTokens        int
	LastUserMessage  string
	RequestType      RequestType
	// PreferredStrategy is an explicit per-call strategy override (step 3a).
	// Empty means "no explicit preference".
	PreferredStrategy Strategy
}

// Router selects a concrete model for a logical request. Safe for
// concurrent use; reads a read-mostly snapshot of models/aliases that is
// atomically swapped on Reload.
type Router struct {
	mu       sync.RWMutex
	models   map[string]ModelDescriptor
	aliases  map[string]string
	cfg      Config

	metrics *usage.MetricsStore
	health  *health.Monitor
	history *UserHistory

	randMu sync.Mutex
	rand   *rand.Rand
}

// New builds a Router. seed fixes the Experimental strategy's PRNG so
// tests are deterministic; production callers should pass a
// time-derived seed.
func New(models []ModelDescriptor, aliases map[string]string, cfg Config, metrics *usage.MetricsStore, healthMon *health.Monitor, history *UserHistory, seed int64) *Router {
	byID := make(map[string]ModelDescriptor, len(models))
	for _, m := range models {
		byID[m.ID] = m
	}
	if aliases == nil {
		aliases = map[string]string{}
	}
	if history == nil {
		history = NewUserHistory()
	}
	return &Router{
		models:  byID,
		aliases: aliases,
		cfg:     cfg,
		metrics: metrics,
		health:  healthMon,
		history: history,
		rand:    rand.New(rand.NewSource(seed)),
	}
}

// Reload atomically swaps the model/alias snapshot, for configuration
// refresh (§4.2's "atomic swap supported on config reload").
func (r *Router) Reload(models []ModelDescriptor, aliases map[string]string) {
	byID := make(map[string]ModelDescriptor, len(models))
	for _, m := range models {
		byID[m.ID] = m
	}
	if aliases == nil {
		aliases = map[string]string{}
	}
	r.mu.Lock()
	r.models = byID
	r.aliases = aliases
	r.mu.Unlock()
}

// History exposes the router's UserHistory tracker so the pipeline can
// record a successful selection after the fact.
func (r *Router) History() *UserHistory { return r.history }

// Describe returns the current descriptor for a gateway-unique model id, the
// lookup the pipeline needs after Select to find the owning provider and its
// vendor-specific model id.
func (r *Router) Describe(id string) (ModelDescriptor, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	m, ok := r.models[id]
	return m, ok
}

// Select runs the Model Router pipeline and returns a Routing Decision.
// The Router is infallible for selection except for NoEligibleModel: it
// may downgrade any strategy to Direct, but it never returns a model id
// outside the candidate set.
func (r *Router) Select(p SelectParams) (Decision, error) {
	start := time.Now()

	r.mu.RLock()
	models := r.models
	aliases := r.aliases
	r.mu.RUnlock()

	// 1. Alias resolution.
	originalID := p.RequestedModelID
	resolvedID := originalID
	if canonical, ok := aliases[originalID]; ok {
		resolvedID = canonical
	}

	// 2. Capability filter.
	candidates := candidatesFor(models, p.RequestType)
	if len(candidates) == 0 {
		return Decision{}, gwerrors.New(gwerrors.ClassNoEligibleModel, "no model satisfies the requested capability")
	}

	requested, requestedKnown := models[resolvedID]

	// 3. Strategy selection (first match wins).
	strategy := r.chooseStrategy(p, resolvedID, requestedKnown)

	// 4. Resolution per strategy.
	selectedID := r.resolve(strategy, resolvedID, requested, requestedKnown, candidates, p)

	// 5. Guard: selected id must be an actual candidate.
	if _, ok := indexByID(candidates, selectedID); !ok {
		selectedID = resolvedID
		strategy = StrategyDirect
	}

	decision := Decision{
		OriginalModelID:       originalID,
		SelectedModelID:       selectedID,
		Strategy:              strategy,
		UserID:                p.UserID,
		RequestDigest:         requestDigest(p.LastUserMessage),
		EstimatedPromptTokens: p.PromptTokens,
		LatencyMs:             float64(time.Since(start).Microseconds()) / 1000.0,
		Timestamp:             time.Now(),
	}
	return decision, nil
}

func candidatesFor(models map[string]ModelDescriptor, rt RequestType) []ModelDescriptor {
	var out []ModelDescriptor
	for _, m := range models {
		if m.Capabilities.supports(rt) {
			out = append(out, m)
		}
	}
	// Deterministic order for reproducible tie-breaks in tests.
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func indexByID(candidates []ModelDescriptor, id string) (ModelDescriptor, bool) {
	for _, c := range candidates {
		if c.ID == id {
			return c, true
		}
	}
	return ModelDescriptor{}, false
}

func (r *Router) chooseStrategy(p SelectParams, resolvedID string, requestedKnown bool) Strategy {
	// SelectModelForEmbedding supports only Direct and CostOptimized (§4.7);
	// every other toggle, per-model override and content/history signal is
	// ignored for embedding requests.
	if p.RequestType == RequestTypeEmbedding {
		if r.cfg.EnableCostOptimizedRouting {
			return StrategyCostOptimized
		}
		return StrategyDirect
	}
	if p.PreferredStrategy != "" && p.PreferredStrategy != StrategyDirect {
		return p.PreferredStrategy
	}
	if s, ok := r.cfg.PerModelStrategy[resolvedID]; ok {
		return s
	}
	if r.cfg.EnableContentBasedRouting {
		if specialty, ok := classify(p.LastUserMessage); ok {
			if models := r.cfg.ContentSpecialty[specialty]; len(models) > 0 {
				return StrategyContentBased
			}
		}
	}
	switch {
	case r.cfg.EnableLoadBalancing:
		return StrategyLoadBalanced
	case r.cfg.EnableLatencyOptimizedRouting:
		return StrategyLatencyOptimized
	case r.cfg.EnableCostOptimizedRouting:
		return StrategyCostOptimized
	case r.cfg.EnableExperimentalRouting:
		return StrategyExperimental
	default:
		return StrategyDirect
	}
}

// classify maps the last user message to the first specialty it flags, in
// code > math > creative priority order.
func classify(text string) (string, bool) {
	if text == "" {
		return "", false
	}
	result := classifier.Classify(text)
	switch {
	case result.ContainsCode:
		return SpecialtyCode, true
	case result.ContainsMath:
		return SpecialtyMath, true
	case result.IsCreativeRequest:
		return SpecialtyCreative, true
	default:
		return "", false
	}
}

func (r *Router) resolve(strategy Strategy, resolvedID string, requested ModelDescriptor, requestedKnown bool, candidates []ModelDescriptor, p SelectParams) string {
	switch strategy {
	case StrategyCostOptimized:
		return r.resolveCostOptimized(resolvedID, candidates, p)
	case StrategyLatencyOptimized:
		return r.resolveLatencyOptimized(resolvedID, requested, candidates)
	case StrategyQualityOptimized:
		return r.resolveQualityOptimized(resolvedID, requested, requestedKnown, candidates)
	case StrategyLoadBalanced:
		return r.resolveLoadBalanced(resolvedID, requested, candidates)
	case StrategyContentBased:
		return r.resolveContentBased(resolvedID, candidates, p)
	case StrategyUserPreference:
		return r.resolveUserPreference(resolvedID, p.UserID, candidates)
	case StrategyExperimental:
		return r.resolveExperimental(resolvedID)
	default:
		return resolvedID
	}
}

func (r *Router) resolveCostOptimized(resolvedID string, candidates []ModelDescriptor, p SelectParams) string {
	maxTokens := p.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 1000
	}
	needed := p.PromptTokens + maxTokens

	best := ""
	bestCost := 0.0
	bestQuality := -1
	for _, c := range candidates {
		if c.ContextWindow < needed {
			continue
		}
		cost := c.TokenPriceInput*float64(p.PromptTokens)/1000.0 + c.TokenPriceOutput*float64(maxTokens)/1000.0
		switch {
		case best == "":
			best, bestCost, bestQuality = c.ID, cost, c.QualityRank
		case cost < bestCost:
			best, bestCost, bestQuality = c.ID, cost, c.QualityRank
		case cost == bestCost && c.QualityRank > bestQuality:
			best, bestCost, bestQuality = c.ID, cost, c.QualityRank
		}
	}
	if best == "" {
		return resolvedID
	}
	return best
}

func (r *Router) resolveLatencyOptimized(resolvedID string, requested ModelDescriptor, candidates []ModelDescriptor) string {
	sameProvider := filterByProvider(candidates, requested.ProviderName)
	if len(sameProvider) == 0 {
		return resolvedID
	}
	best := ""
	bestLatency := 0.0
	for _, c := range sameProvider {
		lat := r.metrics.Latency(c.ID)
		if best == "" || lat < bestLatency {
			best, bestLatency = c.ID, lat
		}
	}
	return best
}

func (r *Router) resolveQualityOptimized(resolvedID string, requested ModelDescriptor, requestedKnown bool, candidates []ModelDescriptor) string {
	minQuality := 0
	if requestedKnown {
		minQuality = requested.QualityRank
	}
	best := ""
	bestQuality := -1
	bestCost := 0.0
	for _, c := range candidates {
		if c.QualityRank < minQuality {
			continue
		}
		cost := c.TokenPriceInput + c.TokenPriceOutput
		switch {
		case best == "":
			best, bestQuality, bestCost = c.ID, c.QualityRank, cost
		case c.QualityRank > bestQuality:
			best, bestQuality, bestCost = c.ID, c.QualityRank, cost
		case c.QualityRank == bestQuality && cost < bestCost:
			best, bestQuality, bestCost = c.ID, c.QualityRank, cost
		}
	}
	if best == "" {
		return resolvedID
	}
	return best
}

func (r *Router) resolveLoadBalanced(resolvedID string, requested ModelDescriptor, candidates []ModelDescriptor) string {
	if r.health != nil {
		if rec, ok := r.health.Status(requested.ProviderName); ok && rec.Status != health.StatusHealthy {
			healthyCandidates := r.filterHealthyProviders(candidates)
			if len(healthyCandidates) > 0 {
				return r.randomPick(healthyCandidates).ID
			}
			return resolvedID
		}
	}

	sameProvider := filterByProvider(candidates, requested.ProviderName)
	if len(sameProvider) == 0 {
		return resolvedID
	}
	best := ""
	bestThroughput := int64(-1)
	if r.metrics != nil {
		ids := make([]string, len(sameProvider))
		for i, c := range sameProvider {
			ids[i] = c.ID
		}
		throughputs := r.metrics.Throughput(ids)
		for _, c := range sameProvider {
			t := throughputs[c.ID]
			if best == "" || t < bestThroughput {
				best, bestThroughput = c.ID, t
			}
		}
	}
	if best == "" {
		return sameProvider[0].ID
	}
	return best
}

func (r *Router) resolveContentBased(resolvedID string, candidates []ModelDescriptor, p SelectParams) string {
	specialty, ok := classify(p.LastUserMessage)
	if !ok {
		return resolvedID
	}
	for _, preferredID := range r.cfg.ContentSpecialty[specialty] {
		if _, ok := indexByID(candidates, preferredID); ok {
			return preferredID
		}
	}
	return resolvedID
}

func (r *Router) resolveUserPreference(resolvedID, userID string, candidates []ModelDescriptor) string {
	if r.history != nil {
		if pref, ok := r.history.Preferred(userID); ok {
			if _, ok := indexByID(candidates, pref); ok {
				return pref
			}
		}
		if freq, ok := r.history.MostFrequent(userID); ok {
			if _, ok := indexByID(candidates, freq); ok {
				return freq
			}
		}
	}
	return resolvedID
}

func (r *Router) resolveExperimental(resolvedID string) string {
	if len(r.cfg.ExperimentalModels) == 0 {
		return resolvedID
	}
	r.randMu.Lock()
	roll := r.rand.Float64()
	idx := r.rand.Intn(len(r.cfg.ExperimentalModels))
	r.randMu.Unlock()

	if roll >= r.cfg.ExperimentalSamplingRate {
		return resolvedID
	}
	return r.cfg.ExperimentalModels[idx]
}

func (r *Router) filterHealthyProviders(candidates []ModelDescriptor) []ModelDescriptor {
	var out []ModelDescriptor
	for _, c := range candidates {
		if r.health == nil {
			out = append(out, c)
			continue
		}
		if rec, ok := r.health.Status(c.ProviderName); !ok || rec.Status == health.StatusHealthy {
			out = append(out, c)
		}
	}
	return out
}

func (r *Router) randomPick(candidates []ModelDescriptor) ModelDescriptor {
	r.randMu.Lock()
	idx := r.rand.Intn(len(candidates))
	r.randMu.Unlock()
	return candidates[idx]
}

func filterByProvider(candidates []ModelDescriptor, providerName string) []ModelDescriptor {
	var out []ModelDescriptor
	for _, c := range candidates {
		if c.ProviderName == providerName {
			out = append(out, c)
		}
	}
	return out
}
