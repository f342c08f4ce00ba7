package llm

import (
	"fmt"
	"net/http"
	"os"
	"sort"
	"time"

	. "github.com/roelfdiedericks/aiorch/internal/logging"
)

// CredentialEnv maps each family to the environment variable holding its
// credential. For ollama the "credential" is the server URL.
var CredentialEnv = map[string]string{
	FamilyGroq:      "GROQ_API_KEY",
	FamilyGoogle:    "GEMINI_API_KEY",
	FamilyAnthropic: "ANTHROPIC_API_KEY",
	FamilyXAI:       "XAI_API_KEY",
	FamilyOpenAI:    "OPENAI_API_KEY",
	FamilyOllama:    "OLLAMA_URL",
}

// Credentials maps a family to its credential. Empty values count as absent.
type Credentials map[string]string

// CredentialsFromEnv reads every known credential variable with getenv
// (os.Getenv when nil).
func CredentialsFromEnv(getenv func(string) string) Credentials {
	if getenv == nil {
		getenv = os.Getenv
	}
	creds := make(Credentials)
	for family, env := range CredentialEnv {
		if v := getenv(env); v != "" {
			creds[family] = v
		}
	}
	return creds
}

// AdapterOptions are shared across adapters; zero values select defaults.
type AdapterOptions struct {
	Temperature float32
	MaxTokens   int
	Timeout     time.Duration     // per attempt; 0 = rely on ctx only
	BaseURLs    map[string]string // family -> endpoint override
	HTTPClient  *http.Client
}

const (
	DefaultTemperature = 0.2
	DefaultMaxTokens   = 4096
)

func (o AdapterOptions) temperature() float32 {
	if o.Temperature <= 0 {
		return DefaultTemperature
	}
	return o.Temperature
}

func (o AdapterOptions) maxTokens() int {
	if o.MaxTokens <= 0 {
		return DefaultMaxTokens
	}
	return o.MaxTokens
}

func (o AdapterOptions) baseURL(family string) string {
	return o.BaseURLs[family]
}

func (o AdapterOptions) httpClient() *http.Client {
	if o.HTTPClient != nil {
		return o.HTTPClient
	}
	return &http.Client{Timeout: o.Timeout}
}

// NewAdapter creates the adapter for family.
func NewAdapter(family, credential string, opts AdapterOptions) (Adapter, error) {
	switch family {
	case FamilyGroq:
		return NewOpenAIAdapter(FamilyGroq, credential, withDefaultURL(opts, FamilyGroq, GroqBaseURL))
	case FamilyOpenAI:
		return NewOpenAIAdapter(FamilyOpenAI, credential, opts)
	case FamilyGoogle:
		return NewGeminiAdapter(credential, opts)
	case FamilyAnthropic:
		return NewAnthropicAdapter(credential, opts)
	case FamilyXAI:
		return NewXAIAdapter(credential, opts)
	case FamilyOllama:
		return NewOllamaAdapter(credential, opts)
	default:
		return nil, fmt.Errorf("unknown provider family: %s", family)
	}
}

func withDefaultURL(opts AdapterOptions, family, url string) AdapterOptions {
	if opts.baseURL(family) != "" {
		return opts
	}
	urls := make(map[string]string, len(opts.BaseURLs)+1)
	for k, v := range opts.BaseURLs {
		urls[k] = v
	}
	urls[family] = url
	opts.BaseURLs = urls
	return opts
}

// BuildPool creates one adapter per family that has a credential. Families
// without one are left out on purpose: their models stay in the catalog and
// the router skips them. Each degraded family is logged once.
func BuildPool(families []string, creds Credentials, opts AdapterOptions) Pool {
	pool := make(Pool)

	uniq := make(map[string]bool, len(families))
	for _, f := range families {
		uniq[f] = true
	}
	sorted := make([]string, 0, len(uniq))
	for f := range uniq {
		sorted = append(sorted, f)
	}
	sort.Strings(sorted)

	for _, family := range sorted {
		cred := creds[family]
		if cred == "" {
			L_info("provider: no credential, models will be skipped", "family", family, "env", CredentialEnv[family])
			continue
		}
		adapter, err := NewAdapter(family, cred, opts)
		if err != nil {
			L_warn("provider: failed to create adapter", "family", family, "error", err)
			continue
		}
		pool[family] = adapter
		L_debug("provider: ready", "family", family)
	}

	return pool
}
