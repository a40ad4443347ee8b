package translate

import (
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

// EngineType represents the type of translation engine to use.
type EngineType string

const (
	// EngineDoubao uses the Volcengine Ark (Doubao) chat-completions API.
	EngineDoubao EngineType = "doubao"
	// EngineZhipu uses the Zhipu GLM chat-completions API.
	EngineZhipu EngineType = "zhipu"
	// EngineOpenAI uses the OpenAI chat-completions API.
	EngineOpenAI EngineType = "openai"
	// EngineOllama uses a local Ollama server through its OpenAI-compatible API.
	EngineOllama EngineType = "ollama"
	// EngineLibreTranslate uses a LibreTranslate server.
	EngineLibreTranslate EngineType = "libretranslate"
)

// MinAPIKeyLength is the shortest key accepted as plausibly real.
const MinAPIKeyLength = 11

// Config holds configuration for creating a Translator instance.
type Config struct {
	// Engine specifies which translation engine to use.
	Engine EngineType `yaml:"engine"`
	// BaseURL overrides the engine's default endpoint.
	BaseURL string `yaml:"base_url"`
	// APIKey authenticates against keyed engines.
	APIKey string `yaml:"api_key"`
	// Model overrides the engine's default model.
	Model string `yaml:"model"`
	// Temperature is sent only when non-zero.
	Temperature float64 `yaml:"temperature"`
	// MaxTokens is sent only when non-zero.
	MaxTokens int `yaml:"max_tokens"`
	// Prompt is the system prompt template; see BuildSystemPrompt.
	Prompt string `yaml:"prompt"`
	// Retries bounds retries of throttled or failed requests. Negative
	// disables retrying; zero means DefaultMaxRetries.
	Retries int `yaml:"retries"`
	// HTTPTimeout bounds a single HTTP round trip.
	HTTPTimeout time.Duration `yaml:"http_timeout"`
}

type preset struct {
	baseURL     string
	model       string
	temperature float64
	maxTokens   int
	needsKey    bool
}

var presets = map[EngineType]preset{
	EngineDoubao: {
		baseURL:  "https://ark.cn-beijing.volces.com/api/v3",
		model:    "doubao-1-5-lite-32k-250115",
		needsKey: true,
	},
	EngineZhipu: {
		baseURL:     "https://open.bigmodel.cn/api/paas/v4",
		model:       "glm-4-flash",
		temperature: 0.8,
		maxTokens:   4095,
		needsKey:    true,
	},
	EngineOpenAI: {
		baseURL:  "https://api.openai.com/v1",
		model:    "gpt-4o-mini",
		needsKey: true,
	},
	EngineOllama: {
		baseURL: "http://localhost:11434/v1",
		model:   "qwen2.5:7b",
	},
	EngineLibreTranslate: {
		baseURL: DefaultLibreTranslateURL,
	},
}

// WithDefaults fills unset fields from the engine preset.
func (c Config) WithDefaults() Config {
	p, ok := presets[c.Engine]
	if !ok {
		return c
	}
	if c.BaseURL == "" {
		c.BaseURL = p.baseURL
	}
	if c.Model == "" {
		c.Model = p.model
	}
	if c.Temperature == 0 {
		c.Temperature = p.temperature
	}
	if c.MaxTokens == 0 {
		c.MaxTokens = p.maxTokens
	}
	if c.Prompt == "" {
		c.Prompt = DefaultPrompt
	}
	if c.Retries == 0 {
		c.Retries = DefaultMaxRetries
	}
	if c.HTTPTimeout == 0 {
		c.HTTPTimeout = DefaultHTTPTimeout
	}
	return c
}

// NeedsKey reports whether the engine requires an API key.
func (e EngineType) NeedsKey() bool {
	return presets[e].needsKey
}

// KeyEnvVar returns the provider-specific environment variable holding the
// engine's API key, or "" for keyless engines.
func (e EngineType) KeyEnvVar() string {
	if !e.NeedsKey() {
		return ""
	}
	return strings.ToUpper(string(e)) + "_API_KEY"
}

// NewTranslator creates a new Translator instance based on the configuration.
func NewTranslator(cfg Config, logger *logrus.Logger) (Translator, error) {
	if logger == nil {
		logger = logrus.New()
	}
	if _, ok := presets[cfg.Engine]; !ok {
		logger.WithFields(logrus.Fields{
			"engine": cfg.Engine,
		}).Error("Unknown translation engine")
		return nil, fmt.Errorf("unknown translation engine: %s", cfg.Engine)
	}
	cfg = cfg.WithDefaults()

	if err := CheckKey(cfg.Engine, cfg.APIKey); err != nil {
		return nil, err
	}

	logger.WithFields(logrus.Fields{
		"engine":   cfg.Engine,
		"base_url": cfg.BaseURL,
		"model":    cfg.Model,
		"api_key":  MaskKey(cfg.APIKey),
	}).Info("Creating translator instance")

	switch cfg.Engine {
	case EngineLibreTranslate:
		return NewLibreTranslateClient(cfg.BaseURL, cfg.APIKey, logger), nil
	default:
		return NewChatClient(cfg, logger), nil
	}
}

// ParseEngineType parses a string into an EngineType.
// Returns an error if the string is not a valid engine type.
func ParseEngineType(s string) (EngineType, error) {
	e := EngineType(strings.ToLower(strings.TrimSpace(s)))
	switch e {
	case "ark", "volcengine":
		return EngineDoubao, nil
	case "glm", "bigmodel":
		return EngineZhipu, nil
	}
	if _, ok := presets[e]; ok {
		return e, nil
	}
	return "", fmt.Errorf("unknown engine type: %s (supported: doubao, zhipu, openai, ollama, libretranslate)", s)
}
