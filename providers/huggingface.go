package providers

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// DiscoverModels fetches the live, account-scoped catalog of models the
// router will currently resolve, supplementing the static SupportedModels
// fallback list.
func (p *HuggingFaceProvider) DiscoverModels(ctx context.Context) ([]ModelInfo, error) {
	return discoverOpenAICompatibleModels(ctx, p.httpClient, p.baseURL+"/models", p.apiKey, p.name)
}

// HuggingFaceProvider implements the Provider interface against the Hugging
// Face Inference Providers router, which exposes an OpenAI-compatible chat
// completions endpoint in front of whichever backend (TGI, vLLM, a partner
// inference provider) actually serves the requested model.
type HuggingFaceProvider struct {
	Base
	httpClient *http.Client
}

// NewHuggingFace creates a new Hugging Face provider.
func NewHuggingFace(apiKey string, baseURL string) (*HuggingFaceProvider, error) {
	if baseURL == "" {
		baseURL = "https://router.huggingface.co/v1"
	}
	baseURL = strings.TrimRight(baseURL, "/")

	return &HuggingFaceProvider{
		Base:       Base{name: "huggingface", apiKey: apiKey, baseURL: baseURL},
		httpClient: &http.Client{},
	}, nil
}

// AuthHeaders implements ProxiableProvider.
func (p *HuggingFaceProvider) AuthHeaders() map[string]string {
	return map[string]string{"Authorization": "Bearer " + p.apiKey}
}

// SupportedModels returns the static list of widely used router-hosted models.
// DiscoverModels provides the live, account-scoped catalog.
func (p *HuggingFaceProvider) SupportedModels() []string {
	return []string{
		"meta-llama/Llama-3.3-70B-Instruct",
		"mistralai/Mixtral-8x7B-Instruct-v0.1",
		"Qwen/Qwen2.5-72B-Instruct",
		"deepseek-ai/DeepSeek-V3",
	}
}

// SupportsModel returns true for any "namespace/model" identifier, since the
// router resolves arbitrary Hub repo IDs rather than a fixed model prefix set.
func (p *HuggingFaceProvider) SupportsModel(model string) bool {
	return strings.Contains(model, "/")
}

// Models returns structured model metadata for the /v1/models endpoint.
func (p *HuggingFaceProvider) Models() []ModelInfo {
	return ModelsFromList(p.name, p.SupportedModels())
}

type huggingFaceRequest struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	Temperature *float64  `json:"temperature,omitempty"`
	TopP        *float64  `json:"top_p,omitempty"`
	MaxTokens   *int      `json:"max_tokens,omitempty"`
	Stop        []string  `json:"stop,omitempty"`
	Stream      bool      `json:"stream,omitempty"`
}

type huggingFaceChoice struct {
	Index        int     `json:"index"`
	Message      Message `json:"message"`
	FinishReason string  `json:"finish_reason"`
}

type huggingFaceUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

type huggingFaceResponse struct {
	ID      string              `json:"id"`
	Model   string              `json:"model"`
	Choices []huggingFaceChoice `json:"choices"`
	Usage   huggingFaceUsage    `json:"usage"`
}

type huggingFaceErrorResponse struct {
	Error string `json:"error"`
}

func (p *HuggingFaceProvider) buildRequest(req Request, stream bool) ([]byte, error) {
	hfReq := huggingFaceRequest{
		Model:       req.Model,
		Messages:    req.Messages,
		Temperature: req.Temperature,
		TopP:        req.TopP,
		MaxTokens:   req.MaxTokens,
		Stop:        req.Stop,
		Stream:      stream,
	}
	return json.Marshal(hfReq)
}

func (p *HuggingFaceProvider) newHTTPRequest(ctx context.Context, body []byte) (*http.Request, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+p.apiKey)
	httpReq.Header.Set("Content-Type", "application/json")
	return httpReq, nil
}

func (p *HuggingFaceProvider) readVendorError(respBody []byte, status int) error {
	var errResp huggingFaceErrorResponse
	if json.Unmarshal(respBody, &errResp) == nil && errResp.Error != "" {
		return p.VendorError(status, errResp.Error)
	}
	return p.VendorError(status, string(respBody))
}

// Complete sends a chat completion request and returns the full response.
func (p *HuggingFaceProvider) Complete(ctx context.Context, req Request) (*Response, error) {
	body, err := p.buildRequest(req, false)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := p.newHTTPRequest(ctx, body)
	if err != nil {
		return nil, err
	}

	httpResp, err := p.httpClient.Do(httpReq)
	if err != nil {
		return nil, p.VendorUnavailable(err)
	}
	defer func() { _ = httpResp.Body.Close() }()

	respBody, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if httpResp.StatusCode != http.StatusOK {
		return nil, p.readVendorError(respBody, httpResp.StatusCode)
	}

	var hfResp huggingFaceResponse
	if err := json.Unmarshal(respBody, &hfResp); err != nil {
		return nil, fmt.Errorf("failed to unmarshal response: %w", err)
	}

	choices := make([]Choice, len(hfResp.Choices))
	for i, c := range hfResp.Choices {
		choices[i] = Choice{
			Index:        c.Index,
			Message:      c.Message,
			FinishReason: c.FinishReason,
		}
	}

	return &Response{
		ID:      hfResp.ID,
		Model:   req.Model,
		Choices: choices,
		Usage: Usage{
			PromptTokens:     hfResp.Usage.PromptTokens,
			CompletionTokens: hfResp.Usage.CompletionTokens,
			TotalTokens:      hfResp.Usage.TotalTokens,
		},
	}, nil
}

type huggingFaceStreamDelta struct {
	Role    string `json:"role,omitempty"`
	Content string `json:"content,omitempty"`
}

type huggingFaceStreamChoice struct {
	Index        int                    `json:"index"`
	Delta        huggingFaceStreamDelta `json:"delta"`
	FinishReason string                 `json:"finish_reason,omitempty"`
}

type huggingFaceStreamChunk struct {
	ID      string                    `json:"id"`
	Model   string                    `json:"model"`
	Choices []huggingFaceStreamChoice `json:"choices"`
}

// CompleteStream sends a streaming chat completion request to Hugging Face.
func (p *HuggingFaceProvider) CompleteStream(ctx context.Context, req Request) (<-chan StreamChunk, error) {
	body, err := p.buildRequest(req, true)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := p.newHTTPRequest(ctx, body)
	if err != nil {
		return nil, err
	}

	httpResp, err := p.httpClient.Do(httpReq)
	if err != nil {
		return nil, p.VendorUnavailable(err)
	}

	if httpResp.StatusCode != http.StatusOK {
		defer func() { _ = httpResp.Body.Close() }()
		respBody, _ := io.ReadAll(httpResp.Body)
		return nil, p.readVendorError(respBody, httpResp.StatusCode)
	}

	ch := make(chan StreamChunk)
	go func() {
		defer close(ch)
		defer func() { _ = httpResp.Body.Close() }()

		scanner := bufio.NewScanner(httpResp.Body)
		for scanner.Scan() {
			line := scanner.Text()
			if !strings.HasPrefix(line, "data: ") {
				continue
			}
			data := strings.TrimPrefix(line, "data: ")
			if data == SSEDone {
				return
			}

			var chunk huggingFaceStreamChunk
			if json.Unmarshal([]byte(data), &chunk) != nil {
				continue
			}

			streamChoices := make([]StreamChoice, len(chunk.Choices))
			for i, c := range chunk.Choices {
				streamChoices[i] = StreamChoice{
					Index:        c.Index,
					Delta:        MessageDelta{Role: c.Delta.Role, Content: c.Delta.Content},
					FinishReason: c.FinishReason,
				}
			}
			ch <- StreamChunk{
				ID:      chunk.ID,
				Model:   chunk.Model,
				Choices: streamChoices,
			}
		}
		if err := scanner.Err(); err != nil {
			ch <- StreamChunk{Error: err}
		}
	}()

	return ch, nil
}
