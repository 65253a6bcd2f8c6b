package router

// Capabilities describes what request types a model can serve.
type Capabilities struct {
	Completion      bool
	Embedding       bool
	Streaming       bool
	FunctionCalling bool
	Vision          bool
}

// ModelDescriptor is the router's view of a routable model — the typed
// fields the design notes call for in place of a Dictionary<string,string>
// properties bag.
type ModelDescriptor struct {
	ID               string
	ProviderName     string
	ProviderModelID  string
	ContextWindow    int
	Capabilities     Capabilities
	TokenPriceInput  float64 // per 1k tokens
	TokenPriceOutput float64 // per 1k tokens
	QualityRank      int     // 0-100, higher is better
}

// RequestType identifies what a routing request is for, used by the
// capability filter.
type RequestType string

// Request types the router filters candidates against.
const (
	RequestTypeCompletion RequestType = "completion"
	RequestTypeEmbedding  RequestType = "embedding"
)

func (c Capabilities) supports(rt RequestType) bool {
	switch rt {
	case RequestTypeCompletion:
		return c.Completion
	case RequestTypeEmbedding:
		return c.Embedding
	default:
		return false
	}
}
