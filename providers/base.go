package providers

import (
	"fmt"
	"strings"

	"github.com/llmgw/core/internal/gwerrors"
)

// Base provides common fields and methods shared by REST-based provider
// implementations. Embed this struct to avoid repeating name, apiKey, and
// baseURL handling across providers.
type Base struct {
	name    string
	apiKey  string
	baseURL string
}

// Name returns the provider name.
func (b *Base) Name() string { return b.name }

// BaseURL returns the provider base URL, satisfying the ProxiableProvider interface.
func (b *Base) BaseURL() string { return b.baseURL }

// classifyVendorError maps a vendor HTTP status code and response body onto
// the gateway's error taxonomy, so the fallback controller and the HTTP
// surface can act on transient-vs-terminal vendor failures instead of an
// opaque wrapped error. body is only consulted to disambiguate 400s that
// vendors overload for both context-length and content-filter rejections.
func classifyVendorError(status int, body string) gwerrors.Class {
	lower := strings.ToLower(body)
	switch {
	case status == 401 || status == 403:
		return gwerrors.ClassProviderAuth
	case status == 429:
		return gwerrors.ClassRateLimited
	case status == 400 && (strings.Contains(lower, "context_length") || strings.Contains(lower, "maximum context length") || strings.Contains(lower, "too many tokens")):
		return gwerrors.ClassContextLengthExceeded
	case status == 400 && (strings.Contains(lower, "content_filter") || strings.Contains(lower, "content management policy") || strings.Contains(lower, "safety")):
		return gwerrors.ClassContentFiltered
	case status == 408 || status == 504:
		return gwerrors.ClassProviderTimeout
	case status == 502 || status == 503:
		return gwerrors.ClassProviderUnavailable
	case status >= 500:
		return gwerrors.ClassProviderServerError
	case status >= 400:
		return gwerrors.ClassProviderClientError
	default:
		return gwerrors.ClassInternal
	}
}

// VendorError builds a classified gwerrors.Error for a non-2xx vendor
// response. Every REST-based adapter embeds Base and calls this instead of
// fmt.Errorf so a rate limit, an auth failure, and a dropped connection
// surface as distinct, fallback-eligible classes rather than one opaque
// "request failed" string.
func (b *Base) VendorError(status int, message string) error {
	class := classifyVendorError(status, message)
	return gwerrors.New(class, fmt.Sprintf("%s API error (%d): %s", b.name, status, message))
}

// VendorUnavailable classifies a transport-level failure (dial error,
// timeout, context cancellation) reaching a vendor endpoint.
func (b *Base) VendorUnavailable(err error) error {
	return gwerrors.Wrap(gwerrors.ClassProviderUnavailable, b.name+" request failed", err)
}

// ModelsFromList builds a ModelInfo slice from a list of model IDs.
// Provider Models() implementations call this to avoid repetitive boilerplate.
func ModelsFromList(providerName string, ids []string) []ModelInfo {
	models := make([]ModelInfo, len(ids))
	for i, id := range ids {
		models[i] = ModelInfo{
			ID:      id,
			Object:  "model",
			OwnedBy: providerName,
		}
	}
	return models
}

// ProviderSource is a read-only view over a collection of registered providers.
// Both *Registry and *Gateway implement this interface, enabling registry
// consolidation: handlers that only need to read provider info can accept
// a ProviderSource instead of a concrete *Registry.
type ProviderSource interface {
	Get(name string) (Provider, bool)
	List() []string
	AllModels() []ModelInfo
	FindByModel(model string) (Provider, bool)
}
