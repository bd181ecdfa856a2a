package gemini

import (
	"context"
	"net/http"
	"strings"

	"google.golang.org/genai"

	"github.com/vnmchuo/prompt-optimizer/internal/provider"
	"github.com/vnmchuo/prompt-optimizer/internal/registry"
)

type Client struct {
	transport http.RoundTripper
}

func New(transport http.RoundTripper) *Client {
	return &Client{transport: transport}
}

// statusRecorder remembers the last upstream status so SDK errors can be
// reported with the HTTP code the classifier expects.
type statusRecorder struct {
	base   http.RoundTripper
	status int
}

func (s *statusRecorder) RoundTrip(req *http.Request) (*http.Response, error) {
	resp, err := s.base.RoundTrip(req)
	if err == nil {
		s.status = resp.StatusCode
	}
	return resp, err
}

func (c *Client) Complete(ctx context.Context, cfg registry.RequestConfig, messages []provider.Message) (*provider.Response, error) {
	recorder := &statusRecorder{base: &provider.HeaderTransport{Headers: cfg.Headers, Base: c.transport}}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:     cfg.Credential,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: &http.Client{Transport: recorder},
		HTTPOptions: genai.HTTPOptions{
			BaseURL: cfg.Endpoint + "/",
		},
	})
	if err != nil {
		return nil, err
	}

	contents, gc := mapRequest(cfg, messages)
	res, err := client.Models.GenerateContent(ctx, cfg.Model, contents, gc)
	if err != nil {
		if recorder.status >= http.StatusBadRequest {
			return nil, &provider.APIError{Provider: cfg.ProviderID, Status: recorder.status, Body: err.Error()}
		}
		return nil, err
	}

	out := &provider.Response{
		Model:    cfg.Model,
		Provider: cfg.ProviderID,
	}
	if res == nil {
		return out, nil
	}
	if len(res.Candidates) > 0 && res.Candidates[0].Content != nil {
		var text strings.Builder
		for _, p := range res.Candidates[0].Content.Parts {
			if p != nil && p.Text != "" {
				text.WriteString(p.Text)
			}
		}
		out.Content = text.String()
	}
	if res.UsageMetadata != nil {
		out.InputTokens = int(res.UsageMetadata.PromptTokenCount)
		out.OutputTokens = int(res.UsageMetadata.CandidatesTokenCount)
	}
	return out, nil
}

func mapRequest(cfg registry.RequestConfig, messages []provider.Message) ([]*genai.Content, *genai.GenerateContentConfig) {
	if cfg.MergeSystemPrompt {
		messages = provider.MergeSystem(messages)
	}

	gc := &genai.GenerateContentConfig{}
	var system []string
	contents := make([]*genai.Content, 0, len(messages))
	for _, m := range messages {
		switch m.Role {
		case provider.RoleSystem:
			system = append(system, m.Content)
			continue
		case provider.RoleAssistant:
			contents = append(contents, &genai.Content{Role: "model", Parts: []*genai.Part{{Text: m.Content}}})
		default:
			contents = append(contents, &genai.Content{Role: "user", Parts: []*genai.Part{{Text: m.Content}}})
		}
	}

	if len(system) > 0 {
		gc.SystemInstruction = &genai.Content{Parts: []*genai.Part{{Text: strings.Join(system, "\n\n")}}}
	}
	if cfg.Temperature != nil {
		gc.Temperature = genai.Ptr(float32(*cfg.Temperature))
	}
	if cfg.MaxTokens > 0 {
		gc.MaxOutputTokens = int32(cfg.MaxTokens)
	}
	return contents, gc
}
