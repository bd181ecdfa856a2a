package registry

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vnmchuo/prompt-optimizer/internal/failure"
)

type staticCredentials map[string]string

func (c staticCredentials) APIKey(providerID string) string { return c[providerID] }

func allCredentials(r *Registry) staticCredentials {
	c := staticCredentials{}
	for _, p := range r.Providers() {
		c[p.ID] = "key-" + p.ID
	}
	return c
}

func loadBuiltin(t *testing.T) *Registry {
	t.Helper()
	r, err := Load("", nil)
	require.NoError(t, err)
	return r
}

func TestLoad_Builtin(t *testing.T) {
	r := loadBuiltin(t)

	ids := []string{}
	for _, p := range r.Providers() {
		ids = append(ids, p.ID)
	}
	assert.Equal(t, []string{"qwen", "deepseek", "kimi", "zhipu", "openai", "anthropic", "gemini"}, ids)

	p, ok := r.Provider("local")
	require.True(t, ok, "local should alias qwen")
	assert.Equal(t, "qwen", p.ID)
}

func TestLoad_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalog.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
providers:
  - id: custom
    base_url: http://localhost:9999/v1
    default_model: m1
    models:
      - key: m1
        name: Model One
`), 0o600))

	r, err := Load(path, map[string]ProviderSettings{"custom": {BaseURL: "http://override/v1", MaxTokens: 77}})
	require.NoError(t, err)

	p, ok := r.Provider("custom")
	require.True(t, ok)
	assert.Equal(t, DialectOpenAI, p.Dialect)
	assert.Equal(t, "Authorization", p.AuthHeader)
	assert.Equal(t, "CUSTOM", p.CredentialEnv)
	assert.Equal(t, "http://override/v1", p.BaseURL)
	assert.Equal(t, 77, p.DefaultMaxTokens)
}

func TestNew_RejectsBadDefaultModel(t *testing.T) {
	_, err := New(&Catalog{Providers: []ProviderDescriptor{{ID: "p", DefaultModel: "missing"}}}, nil)
	assert.Error(t, err)
}

func TestRecommended(t *testing.T) {
	r := loadBuiltin(t)

	rec := r.Recommended()

	require.Len(t, rec, 3)
	assert.Equal(t, "deepseek", rec[0].Provider)
	assert.Equal(t, "qwen", rec[1].Provider)
	assert.Equal(t, "zhipu", rec[2].Provider)
}

func TestResolve_EveryCatalogPair(t *testing.T) {
	r := loadBuiltin(t)
	res := NewResolver(r, allCredentials(r), nil)

	for _, p := range r.Providers() {
		for _, m := range r.Models(p.ID) {
			cfg, err := res.Resolve(p.ID, m.Key)
			require.NoError(t, err, "%s/%s", p.ID, m.Key)
			assert.NotEmpty(t, cfg.Endpoint, "%s/%s", p.ID, m.Key)
			assert.NotEmpty(t, cfg.Credential, "%s/%s", p.ID, m.Key)
			assert.NotEmpty(t, cfg.Model, "%s/%s", p.ID, m.Key)
			assert.LessOrEqual(t, cfg.MaxTokens, 8192)
		}
	}
}

func TestResolve_UnknownProvider(t *testing.T) {
	r := loadBuiltin(t)
	res := NewResolver(r, allCredentials(r), nil)

	_, err := res.Resolve("unknown-provider", "any")

	fe, ok := failure.As(err)
	require.True(t, ok)
	assert.Equal(t, failure.KindUnknownProvider, fe.Kind)
}

func TestResolve_UnknownModel(t *testing.T) {
	r := loadBuiltin(t)
	res := NewResolver(r, allCredentials(r), nil)

	_, err := res.Resolve("qwen", "gpt-4o")

	fe, ok := failure.As(err)
	require.True(t, ok)
	assert.Equal(t, failure.KindUnknownModel, fe.Kind)
}

func TestResolve_MissingCredential(t *testing.T) {
	r := loadBuiltin(t)
	res := NewResolver(r, staticCredentials{}, nil)

	_, err := res.Resolve("qwen", "qwen-plus")

	fe, ok := failure.As(err)
	require.True(t, ok)
	assert.Equal(t, failure.KindMissingCredential, fe.Kind)
	assert.Contains(t, fe.Message, "DASHSCOPE_API_KEY")
}

func TestResolve_Headers(t *testing.T) {
	r := loadBuiltin(t)
	res := NewResolver(r, staticCredentials{"qwen": "sk-q", "anthropic": "sk-a"}, nil)

	q, err := res.Resolve("qwen", "qwen-plus")
	require.NoError(t, err)
	assert.Equal(t, "Bearer sk-q", q.Headers.Get("Authorization"))
	assert.Equal(t, "https://dashscope.aliyuncs.com/compatible-mode/v1", q.Endpoint)
	assert.Equal(t, "qwen-plus", q.Model)
	require.NotNil(t, q.Temperature)
	assert.Equal(t, 0.7, *q.Temperature)

	a, err := res.Resolve("anthropic", "claude-sonnet")
	require.NoError(t, err)
	assert.Equal(t, "sk-a", a.Headers.Get("x-api-key"))
	assert.Equal(t, "2023-06-01", a.Headers.Get("anthropic-version"))
	assert.Empty(t, a.Headers.Get("Authorization"))
	assert.Equal(t, "claude-sonnet-4-5", a.Model)
}

func TestResolve_WireFallbackWarns(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))
	r := loadBuiltin(t)
	res := NewResolver(r, allCredentials(r), logger)

	cfg, err := res.Resolve("deepseek", "deepseek-coder")

	require.NoError(t, err)
	assert.Equal(t, "deepseek-chat", cfg.Model)
	assert.Contains(t, buf.String(), "level=WARN")
	assert.Contains(t, buf.String(), "deepseek-coder")
}

func TestResolve_Overrides(t *testing.T) {
	r := loadBuiltin(t)
	res := NewResolver(r, allCredentials(r), nil)

	fixed, err := res.Resolve("kimi", "kimi-k2.5")
	require.NoError(t, err)
	require.NotNil(t, fixed.Temperature)
	assert.Equal(t, 1.0, *fixed.Temperature)
	assert.True(t, fixed.TemperatureFixed)

	override := 0.2
	same := fixed.WithTemperature(&override)
	assert.Equal(t, 1.0, *same.Temperature, "fixed temperature must win")

	omitted, err := res.Resolve("kimi", "kimi-k2-thinking")
	require.NoError(t, err)
	assert.Nil(t, omitted.Temperature)

	reasoner, err := res.Resolve("deepseek", "deepseek-reasoner")
	require.NoError(t, err)
	assert.True(t, reasoner.MergeSystemPrompt)
	assert.NotEmpty(t, reasoner.Hints)

	plain, err := res.Resolve("qwen", "qwen-max")
	require.NoError(t, err)
	adjusted := plain.WithTemperature(&override)
	assert.Equal(t, 0.2, *adjusted.Temperature)
	assert.Equal(t, 0.7, *plain.Temperature, "WithTemperature must not alter the receiver")
}

func TestResolve_FreshConfigPerCall(t *testing.T) {
	r := loadBuiltin(t)
	res := NewResolver(r, allCredentials(r), nil)

	a, err := res.Resolve("qwen", "qwen-plus")
	require.NoError(t, err)
	a.Headers.Set("Authorization", "tampered")

	b, err := res.Resolve("qwen", "qwen-plus")
	require.NoError(t, err)
	assert.Equal(t, "Bearer key-qwen", b.Headers.Get("Authorization"))
}
