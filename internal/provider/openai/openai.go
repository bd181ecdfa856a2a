package openai

import (
	"context"
	"errors"
	"math"
	"net/http"

	goopenai "github.com/sashabaranov/go-openai"

	"github.com/vnmchuo/prompt-optimizer/internal/provider"
	"github.com/vnmchuo/prompt-optimizer/internal/registry"
)

// Client speaks the OpenAI chat-completions protocol, which DashScope,
// DeepSeek, Moonshot and Zhipu all implement under their own base URLs.
type Client struct {
	transport http.RoundTripper
}

func New(transport http.RoundTripper) *Client {
	return &Client{transport: transport}
}

func (c *Client) Complete(ctx context.Context, cfg registry.RequestConfig, messages []provider.Message) (*provider.Response, error) {
	oc := goopenai.DefaultConfig(cfg.Credential)
	oc.BaseURL = cfg.Endpoint
	oc.HTTPClient = provider.HTTPClient(cfg, c.transport)
	client := goopenai.NewClientWithConfig(oc)

	resp, err := client.CreateChatCompletion(ctx, mapRequest(cfg, messages))
	if err != nil {
		return nil, mapError(cfg.ProviderID, err)
	}

	out := &provider.Response{
		ID:           resp.ID,
		InputTokens:  resp.Usage.PromptTokens,
		OutputTokens: resp.Usage.CompletionTokens,
		Model:        resp.Model,
		Provider:     cfg.ProviderID,
	}
	if len(resp.Choices) > 0 {
		out.Content = resp.Choices[0].Message.Content
	}
	return out, nil
}

func mapRequest(cfg registry.RequestConfig, messages []provider.Message) goopenai.ChatCompletionRequest {
	if cfg.MergeSystemPrompt {
		messages = provider.MergeSystem(messages)
	}

	msgs := make([]goopenai.ChatCompletionMessage, len(messages))
	for i, m := range messages {
		msgs[i] = goopenai.ChatCompletionMessage{
			Role:    m.Role,
			Content: m.Content,
		}
	}

	req := goopenai.ChatCompletionRequest{
		Model:     cfg.Model,
		Messages:  msgs,
		MaxTokens: cfg.MaxTokens,
		// omitempty drops stream:false from the body; absent means non-streaming.
		Stream: false,
	}
	if cfg.Temperature != nil {
		req.Temperature = float32(*cfg.Temperature)
		// omitempty would also drop an explicit 0, leaving the provider default.
		if req.Temperature == 0 {
			req.Temperature = math.SmallestNonzeroFloat32
		}
	}
	return req
}

func mapError(providerID string, err error) error {
	var apiErr *goopenai.APIError
	if errors.As(err, &apiErr) && apiErr.HTTPStatusCode != 0 {
		return &provider.APIError{Provider: providerID, Status: apiErr.HTTPStatusCode, Body: apiErr.Message}
	}
	var reqErr *goopenai.RequestError
	if errors.As(err, &reqErr) && reqErr.HTTPStatusCode != 0 {
		return &provider.APIError{Provider: providerID, Status: reqErr.HTTPStatusCode, Body: reqErr.Error()}
	}
	return err
}
