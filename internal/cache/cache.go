// Package cache provides the Cache interface used by the completion
// pipeline's response cache. The in-process implementation is Memory.
package cache

import "github.com/llmgw/core/providers"

// Cache defines the interface for response caching.
type Cache interface {
	Get(key string) (*providers.Response, bool)
	Set(key string, resp *providers.Response)
	Delete(key string)
	Len() int
	Clear()
}
