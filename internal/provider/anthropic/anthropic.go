package anthropic

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/vnmchuo/prompt-optimizer/internal/provider"
	"github.com/vnmchuo/prompt-optimizer/internal/registry"
)

const defaultMaxTokens = 4096

type Client struct {
	transport http.RoundTripper
}

type messagesRequest struct {
	Model       string    `json:"model"`
	MaxTokens   int       `json:"max_tokens"`
	System      string    `json:"system,omitempty"`
	Messages    []message `json:"messages"`
	Temperature *float64  `json:"temperature,omitempty"`
	Stream      bool      `json:"stream"`
}

type message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type messagesResponse struct {
	ID      string         `json:"id"`
	Content []contentBlock `json:"content"`
	Model   string         `json:"model"`
	Usage   usage          `json:"usage"`
}

type contentBlock struct {
	Type string `json:"type"`
	Text string `json:"text,omitempty"`
}

type usage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

func New(transport http.RoundTripper) *Client {
	return &Client{transport: transport}
}

func (c *Client) Complete(ctx context.Context, cfg registry.RequestConfig, messages []provider.Message) (*provider.Response, error) {
	body, err := json.Marshal(mapRequest(cfg, messages))
	if err != nil {
		return nil, err
	}

	url := fmt.Sprintf("%s/messages", cfg.Endpoint)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}

	resp, err := provider.HTTPClient(cfg, c.transport).Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return nil, &provider.APIError{Provider: cfg.ProviderID, Status: resp.StatusCode, Body: string(respBody)}
	}

	var mr messagesResponse
	if err := json.NewDecoder(resp.Body).Decode(&mr); err != nil {
		return nil, fmt.Errorf("decode anthropic response: %w", err)
	}

	var text strings.Builder
	for _, block := range mr.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
		}
	}

	return &provider.Response{
		ID:           mr.ID,
		Content:      text.String(),
		InputTokens:  mr.Usage.InputTokens,
		OutputTokens: mr.Usage.OutputTokens,
		Model:        mr.Model,
		Provider:     cfg.ProviderID,
	}, nil
}

// mapRequest lifts system turns into the top-level system field; the
// messages API only accepts user and assistant roles.
func mapRequest(cfg registry.RequestConfig, messages []provider.Message) messagesRequest {
	var system []string
	var out []message

	for _, m := range messages {
		if m.Role == provider.RoleSystem {
			system = append(system, m.Content)
			continue
		}
		role := provider.RoleUser
		if m.Role == provider.RoleAssistant {
			role = provider.RoleAssistant
		}
		out = append(out, message{Role: role, Content: m.Content})
	}

	maxTokens := cfg.MaxTokens
	if maxTokens == 0 {
		maxTokens = defaultMaxTokens
	}

	req := messagesRequest{
		Model:       cfg.Model,
		MaxTokens:   maxTokens,
		System:      strings.Join(system, "\n\n"),
		Messages:    out,
		Temperature: cfg.Temperature,
	}
	if cfg.MergeSystemPrompt {
		merged := provider.MergeSystem(messages)
		req.System = ""
		req.Messages = req.Messages[:0]
		for _, m := range merged {
			req.Messages = append(req.Messages, message{Role: m.Role, Content: m.Content})
		}
	}
	return req
}
