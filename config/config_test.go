package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vnmchuo/prompt-optimizer/internal/registry"
)

func setRequired(t *testing.T) {
	t.Setenv("POSTGRES_DSN", "postgres://localhost/test")
	t.Setenv("REDIS_ADDR", "localhost:6379")
}

func TestLoad_Defaults(t *testing.T) {
	setRequired(t)

	cfg, err := Load()

	require.NoError(t, err)
	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "qwen", cfg.DefaultProvider)
	assert.Equal(t, "qwen-plus", cfg.DefaultModel)
	assert.Equal(t, 60*time.Second, cfg.ProviderTimeout)
	assert.Equal(t, uint(0), cfg.ProviderMaxRetries)
	assert.Equal(t, int64(30), cfg.RateLimitRPM)
	assert.False(t, cfg.Production())
}

func TestLoad_Overrides(t *testing.T) {
	setRequired(t)
	t.Setenv("APP_ENV", "Production")
	t.Setenv("PROVIDER_TIMEOUT", "15s")
	t.Setenv("PROVIDER_MAX_RETRIES", "2")
	t.Setenv("RATE_LIMIT_RPM", "5")

	cfg, err := Load()

	require.NoError(t, err)
	assert.True(t, cfg.Production())
	assert.Equal(t, 15*time.Second, cfg.ProviderTimeout)
	assert.Equal(t, uint(2), cfg.ProviderMaxRetries)
	assert.Equal(t, int64(5), cfg.RateLimitRPM)
}

func TestLoad_Invalid(t *testing.T) {
	tests := map[string]map[string]string{
		"missing postgres": {"POSTGRES_DSN": ""},
		"missing redis":    {"REDIS_ADDR": ""},
		"bad timeout":      {"PROVIDER_TIMEOUT": "soon"},
		"negative retries": {"PROVIDER_MAX_RETRIES": "-1"},
		"zero rpm":         {"RATE_LIMIT_RPM": "0"},
	}
	for name, env := range tests {
		t.Run(name, func(t *testing.T) {
			setRequired(t)
			for k, v := range env {
				t.Setenv(k, v)
			}

			_, err := Load()
			assert.Error(t, err)
		})
	}
}

func TestLoadProviders(t *testing.T) {
	setRequired(t)
	t.Setenv("DASHSCOPE_API_KEY", " sk-qwen ")
	t.Setenv("DASHSCOPE_BASE_URL", "http://proxy.internal/v1")
	t.Setenv("DEEPSEEK_TEMPERATURE", "0.1")
	t.Setenv("DEEPSEEK_MAX_TOKENS", "1024")

	cfg, err := Load()
	require.NoError(t, err)
	cat, err := registry.ReadCatalog("")
	require.NoError(t, err)

	settings, err := cfg.LoadProviders(cat)

	require.NoError(t, err)
	assert.Equal(t, "sk-qwen", cfg.APIKey("qwen"))
	assert.Equal(t, "", cfg.APIKey("kimi"))
	assert.Equal(t, "http://proxy.internal/v1", settings["qwen"].BaseURL)
	require.NotNil(t, settings["deepseek"].Temperature)
	assert.Equal(t, 0.1, *settings["deepseek"].Temperature)
	assert.Equal(t, 1024, settings["deepseek"].MaxTokens)

	reg, err := registry.New(cat, settings)
	require.NoError(t, err)
	cfgReq, err := registry.NewResolver(reg, cfg, nil).Resolve("qwen", "qwen-plus")
	require.NoError(t, err)
	assert.Equal(t, "http://proxy.internal/v1", cfgReq.Endpoint)
	assert.Equal(t, "Bearer sk-qwen", cfgReq.Headers.Get("Authorization"))
}

func TestLoadProviders_InvalidNumber(t *testing.T) {
	setRequired(t)
	t.Setenv("KIMI_MAX_TOKENS", "lots")

	cfg, err := Load()
	require.NoError(t, err)
	cat, err := registry.ReadCatalog("")
	require.NoError(t, err)

	_, err = cfg.LoadProviders(cat)
	assert.ErrorContains(t, err, "KIMI_MAX_TOKENS")
}
