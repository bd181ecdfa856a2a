package registry

import (
	_ "embed"
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/vnmchuo/prompt-optimizer/internal/failure"
)

//go:embed catalog.yaml
var builtinCatalog []byte

const (
	DialectOpenAI    = "openai"
	DialectAnthropic = "anthropic"
	DialectGemini    = "gemini"

	wildcard = "*"
)

type ProviderDescriptor struct {
	ID                 string            `yaml:"id"`
	Name               string            `yaml:"name"`
	Aliases            []string          `yaml:"aliases"`
	Dialect            string            `yaml:"dialect"`
	BaseURL            string            `yaml:"base_url"`
	AuthHeader         string            `yaml:"auth_header"`
	AuthTemplate       string            `yaml:"auth_template"`
	ExtraHeaders       map[string]string `yaml:"extra_headers"`
	CredentialEnv      string            `yaml:"credential_env"`
	DefaultModel       string            `yaml:"default_model"`
	DefaultTemperature float64           `yaml:"default_temperature"`
	DefaultMaxTokens   int               `yaml:"default_max_tokens"`
	WireModels         map[string]string `yaml:"wire_models"`
	ModelList          []ModelDescriptor `yaml:"models"`
	ErrorHints         []failure.Hint    `yaml:"error_hints"`

	models map[string]ModelDescriptor
}

type ModelDescriptor struct {
	Key         string `yaml:"key"`
	Name        string `yaml:"name"`
	Provider    string `yaml:"-"`
	WireName    string `yaml:"wire_name"`
	Recommended bool   `yaml:"recommended"`
	Reason      string `yaml:"reason"`
}

// Override adjusts request parameters for a (provider, model) pair. "*"
// matches any provider or model.
type Override struct {
	Provider          string   `yaml:"provider"`
	Model             string   `yaml:"model"`
	FixedTemperature  *float64 `yaml:"fixed_temperature"`
	OmitTemperature   bool     `yaml:"omit_temperature"`
	MaxTokensCap      int      `yaml:"max_tokens_cap"`
	MergeSystemPrompt bool     `yaml:"merge_system_prompt"`
}

func (o Override) matches(providerID, model string) bool {
	return (o.Provider == wildcard || o.Provider == providerID) && (o.Model == wildcard || o.Model == model)
}

type Catalog struct {
	Providers []ProviderDescriptor `yaml:"providers"`
	Overrides []Override           `yaml:"overrides"`
}

// ProviderSettings are deployment-level adjustments applied once when the
// registry is built. Zero values leave the catalog untouched.
type ProviderSettings struct {
	BaseURL     string
	Temperature *float64
	MaxTokens   int
}

// Registry is the read-only provider catalog. It is safe for concurrent use
// because nothing mutates it after New returns.
type Registry struct {
	providers map[string]*ProviderDescriptor
	aliases   map[string]string
	order     []string
	overrides []Override
}

// Load parses the catalog at path, or the embedded catalog when path is "".
func Load(path string, settings map[string]ProviderSettings) (*Registry, error) {
	cat, err := ReadCatalog(path)
	if err != nil {
		return nil, err
	}
	return New(cat, settings)
}

func ReadCatalog(path string) (*Catalog, error) {
	data := builtinCatalog
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read catalog %s: %w", path, err)
		}
		data = b
	}
	return ParseCatalog(data)
}

func ParseCatalog(data []byte) (*Catalog, error) {
	var cat Catalog
	if err := yaml.Unmarshal(data, &cat); err != nil {
		return nil, fmt.Errorf("failed to parse catalog: %w", err)
	}
	return &cat, nil
}

func New(cat *Catalog, settings map[string]ProviderSettings) (*Registry, error) {
	r := &Registry{
		providers: make(map[string]*ProviderDescriptor, len(cat.Providers)),
		aliases:   make(map[string]string),
		overrides: append([]Override(nil), cat.Overrides...),
	}

	for i := range cat.Providers {
		p := cat.Providers[i]
		if p.ID == "" {
			return nil, fmt.Errorf("catalog provider %d has no id", i)
		}
		if _, dup := r.providers[p.ID]; dup {
			return nil, fmt.Errorf("duplicate provider %q", p.ID)
		}
		if p.Dialect == "" {
			p.Dialect = DialectOpenAI
		}
		if p.AuthHeader == "" {
			p.AuthHeader = "Authorization"
		}
		if p.AuthTemplate == "" {
			p.AuthTemplate = "Bearer {key}"
		}
		if p.CredentialEnv == "" {
			p.CredentialEnv = strings.ToUpper(p.ID)
		}

		if s, ok := settings[p.ID]; ok {
			if s.BaseURL != "" {
				p.BaseURL = s.BaseURL
			}
			if s.Temperature != nil {
				p.DefaultTemperature = *s.Temperature
			}
			if s.MaxTokens > 0 {
				p.DefaultMaxTokens = s.MaxTokens
			}
		}

		p.ModelList = append([]ModelDescriptor(nil), p.ModelList...)
		p.models = make(map[string]ModelDescriptor, len(p.ModelList))
		for j := range p.ModelList {
			m := p.ModelList[j]
			m.Provider = p.ID
			p.ModelList[j] = m
			p.models[m.Key] = m
		}
		if _, ok := p.models[p.DefaultModel]; !ok {
			return nil, fmt.Errorf("provider %q default model %q is not in its model list", p.ID, p.DefaultModel)
		}

		r.providers[p.ID] = &p
		r.order = append(r.order, p.ID)
		for _, a := range p.Aliases {
			r.aliases[a] = p.ID
		}
	}

	return r, nil
}

// Provider returns the descriptor for id or one of its aliases.
func (r *Registry) Provider(id string) (*ProviderDescriptor, bool) {
	if canonical, ok := r.aliases[id]; ok {
		id = canonical
	}
	p, ok := r.providers[id]
	return p, ok
}

func (p *ProviderDescriptor) Model(key string) (ModelDescriptor, bool) {
	m, ok := p.models[key]
	return m, ok
}

// Providers lists descriptors in catalog order.
func (r *Registry) Providers() []*ProviderDescriptor {
	out := make([]*ProviderDescriptor, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.providers[id])
	}
	return out
}

// Models lists the models of a provider in catalog order.
func (r *Registry) Models(providerID string) []ModelDescriptor {
	p, ok := r.Provider(providerID)
	if !ok {
		return nil
	}
	return append([]ModelDescriptor(nil), p.ModelList...)
}

// Recommended returns the models flagged as recommended, sorted by provider
// then key.
func (r *Registry) Recommended() []ModelDescriptor {
	var out []ModelDescriptor
	for _, p := range r.Providers() {
		for _, m := range p.ModelList {
			if m.Recommended {
				out = append(out, m)
			}
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Provider != out[j].Provider {
			return out[i].Provider < out[j].Provider
		}
		return out[i].Key < out[j].Key
	})
	return out
}

func (r *Registry) overridesFor(providerID, model string) []Override {
	var out []Override
	for _, o := range r.overrides {
		if o.matches(providerID, model) {
			out = append(out, o)
		}
	}
	return out
}
