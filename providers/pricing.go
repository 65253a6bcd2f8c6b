package providers

// ModelPricing holds per-token prices in USD per 1 million tokens.
type ModelPricing struct {
	InputPer1M  float64
	OutputPer1M float64
}

// PricingTable maps "provider/model" keys to pricing data.
// Prices are in USD per 1 million tokens (as listed on public pricing pages).
// This table is best-effort and may lag behind provider price changes.
var PricingTable = map[string]ModelPricing{
	// OpenAI
	"openai/gpt-4o":                 {InputPer1M: 2.50, OutputPer1M: 10.00},
	"openai/gpt-4o-mini":            {InputPer1M: 0.15, OutputPer1M: 0.60},
	"openai/gpt-4-turbo":            {InputPer1M: 10.00, OutputPer1M: 30.00},
	"openai/gpt-4":                  {InputPer1M: 30.00, OutputPer1M: 60.00},
	"openai/gpt-3.5-turbo":          {InputPer1M: 0.50, OutputPer1M: 1.50},
	"openai/text-embedding-3-small": {InputPer1M: 0.02, OutputPer1M: 0.00},
	"openai/text-embedding-3-large": {InputPer1M: 0.13, OutputPer1M: 0.00},
	"openai/text-embedding-ada-002": {InputPer1M: 0.10, OutputPer1M: 0.00},

	// Anthropic
	"anthropic/claude-3-5-sonnet-20241022": {InputPer1M: 3.00, OutputPer1M: 15.00},
	"anthropic/claude-3-5-haiku-20241022":  {InputPer1M: 0.80, OutputPer1M: 4.00},
	"anthropic/claude-3-opus-20240229":     {InputPer1M: 15.00, OutputPer1M: 75.00},
	"anthropic/claude-3-sonnet-20240229":   {InputPer1M: 3.00, OutputPer1M: 15.00},
	"anthropic/claude-3-haiku-20240307":    {InputPer1M: 0.25, OutputPer1M: 1.25},

	// Cohere
	"cohere/command-r-plus": {InputPer1M: 2.50, OutputPer1M: 10.00},
	"cohere/command-r":      {InputPer1M: 0.15, OutputPer1M: 0.60},
	"cohere/command":        {InputPer1M: 1.00, OutputPer1M: 2.00},

	// Hugging Face Inference Providers (router rates vary by backing
	// provider; these track the router's own billed-token rate, not a
	// third-party partner's price list).
	"huggingface/meta-llama/Llama-3.3-70B-Instruct":    {InputPer1M: 0.35, OutputPer1M: 0.40},
	"huggingface/mistralai/Mixtral-8x7B-Instruct-v0.1": {InputPer1M: 0.24, OutputPer1M: 0.24},
	"huggingface/Qwen/Qwen2.5-72B-Instruct":            {InputPer1M: 0.35, OutputPer1M: 0.40},
	"huggingface/deepseek-ai/DeepSeek-V3":              {InputPer1M: 0.27, OutputPer1M: 1.10},
}

// EstimateCost returns the estimated cost in USD for a completed response.
// It looks up pricing by "provider/model" key and falls back to zero if
// the model is not in the pricing table.
func EstimateCost(provider, model string, usage Usage) float64 {
	key := provider + "/" + model
	p, ok := PricingTable[key]
	if !ok {
		return 0
	}
	inputCost := float64(usage.PromptTokens) / 1_000_000 * p.InputPer1M
	outputCost := float64(usage.CompletionTokens) / 1_000_000 * p.OutputPer1M
	return inputCost + outputCost
}
