// Package config holds the single configuration object every entry point
// builds and passes down: built-in defaults, then an optional YAML file,
// then environment variables, then command-line flags.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/dasmlab/pdftrans/pkg/convert"
	"github.com/dasmlab/pdftrans/pkg/domain"
	"github.com/dasmlab/pdftrans/pkg/translate"
)

// Environment variables read by ApplyEnv.
const (
	EnvSourceLang      = "PDFTRANS_SOURCE_LANG"
	EnvTargetLang      = "PDFTRANS_TARGET_LANG"
	EnvParagraphEngine = "PDFTRANS_PARAGRAPH_ENGINE"
	EnvParagraphAPIKey = "PDFTRANS_PARAGRAPH_API_KEY"
	EnvTableEngine     = "PDFTRANS_TABLE_ENGINE"
	EnvTableAPIKey     = "PDFTRANS_TABLE_API_KEY"
	EnvConcurrency     = "PDFTRANS_CONCURRENCY"
	EnvCallTimeout     = "PDFTRANS_CALL_TIMEOUT"
	EnvConverter       = "PDFTRANS_CONVERTER"
	EnvLogLevel        = "PDFTRANS_LOG_LEVEL"
)

// Default values.
const (
	DefaultSourceLang      = "en"
	DefaultTargetLang      = "zh"
	DefaultConcurrency     = 16
	DefaultJobTTL          = 30 * time.Minute
	DefaultCleanupInterval = time.Minute
	DefaultHTTPPort        = 8080
	DefaultGRPCPort        = 50051
	DefaultMaxUploadMB     = 100
	DefaultPreviewSize     = 10

	// ChineseFont and ChineseFontSize are applied to Chinese output when no
	// font is configured.
	ChineseFont     = "宋体"
	ChineseFontSize = 10.5
)

// Concurrency caps in-flight provider calls per phase.
type Concurrency struct {
	Paragraphs int `yaml:"paragraphs"`
	Tables     int `yaml:"tables"`
}

// Output controls the written document.
type Output struct {
	// Dir is where the CLI writes results; empty means next to the input.
	Dir      string  `yaml:"dir"`
	FontName string  `yaml:"font_name"`
	FontSize float64 `yaml:"font_size"`
	// Preview is the number of source paragraphs kept for preview.
	Preview int `yaml:"preview"`
}

// Server configures the long-running front-end.
type Server struct {
	HTTPPort        int           `yaml:"http_port"`
	GRPCPort        int           `yaml:"grpc_port"`
	JobTTL          time.Duration `yaml:"job_ttl"`
	CleanupInterval time.Duration `yaml:"cleanup_interval"`
	MaxUploadMB     int64         `yaml:"max_upload_mb"`
	WorkDir         string        `yaml:"work_dir"`
}

// Config is the complete configuration of a translation run.
type Config struct {
	SourceLang string `yaml:"source_lang"`
	TargetLang string `yaml:"target_lang"`

	// Paragraph is the provider for body paragraphs.
	Paragraph translate.Config `yaml:"paragraph_provider"`
	// Table is the provider for table cells. Unset fields fall back to
	// Paragraph; an unset engine means "same provider as paragraphs".
	Table translate.Config `yaml:"table_provider"`

	Concurrency Concurrency   `yaml:"concurrency"`
	CallTimeout time.Duration `yaml:"call_timeout"`

	Converter convert.Config `yaml:"converter"`
	Output    Output         `yaml:"output"`
	Server    Server         `yaml:"server"`

	LogLevel string `yaml:"log_level"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		SourceLang: DefaultSourceLang,
		TargetLang: DefaultTargetLang,
		Paragraph:  translate.Config{Engine: translate.EngineDoubao},
		Concurrency: Concurrency{
			Paragraphs: DefaultConcurrency,
			Tables:     DefaultConcurrency,
		},
		CallTimeout: translate.DefaultCallTimeout,
		Converter: convert.Config{
			Engine:  convert.EnginePDF2Docx,
			Timeout: convert.DefaultTimeout,
		},
		Output: Output{Preview: DefaultPreviewSize},
		Server: Server{
			HTTPPort:        DefaultHTTPPort,
			GRPCPort:        DefaultGRPCPort,
			JobTTL:          DefaultJobTTL,
			CleanupInterval: DefaultCleanupInterval,
			MaxUploadMB:     DefaultMaxUploadMB,
		},
		LogLevel: "info",
	}
}

// Load returns the defaults overlaid with the YAML file at path. An empty
// path skips the file.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, domain.ConfigError(fmt.Sprintf("reading %s", path), err)
	}
	if err := cfg.decode(data); err != nil {
		return nil, domain.ConfigError(fmt.Sprintf("parsing %s", path), err)
	}
	return cfg, nil
}

func (c *Config) decode(data []byte) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(c); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

// LookupFunc looks up an environment variable; os.LookupEnv fits.
type LookupFunc func(key string) (string, bool)

// ApplyEnv overlays environment variables. Explicit keys come from the
// PDFTRANS_*_API_KEY variables; see ResolveKeys for the engine fallbacks.
func (c *Config) ApplyEnv(lookup LookupFunc) error {
	get := func(key string) string {
		v, _ := lookup(key)
		return strings.TrimSpace(v)
	}

	if v := get(EnvSourceLang); v != "" {
		c.SourceLang = v
	}
	if v := get(EnvTargetLang); v != "" {
		c.TargetLang = v
	}
	if v := get(EnvParagraphEngine); v != "" {
		e, err := translate.ParseEngineType(v)
		if err != nil {
			return domain.ConfigError(EnvParagraphEngine, err)
		}
		c.Paragraph.Engine = e
	}
	if v := get(EnvTableEngine); v != "" {
		e, err := translate.ParseEngineType(v)
		if err != nil {
			return domain.ConfigError(EnvTableEngine, err)
		}
		c.Table.Engine = e
	}
	if v := get(EnvConcurrency); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return domain.ConfigError(EnvConcurrency, err)
		}
		c.Concurrency.Paragraphs, c.Concurrency.Tables = n, n
	}
	if v := get(EnvCallTimeout); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return domain.ConfigError(EnvCallTimeout, err)
		}
		c.CallTimeout = d
	}
	if v := get(EnvConverter); v != "" {
		e, err := convert.ParseEngine(v)
		if err != nil {
			return domain.ConfigError(EnvConverter, err)
		}
		c.Converter.Engine = e
	}
	if v := get(EnvLogLevel); v != "" {
		c.LogLevel = v
	}

	if v := get(EnvParagraphAPIKey); v != "" {
		c.Paragraph.APIKey = v
	}
	if v := get(EnvTableAPIKey); v != "" {
		c.Table.APIKey = v
	}
	return nil
}

// ResolveKeys fills API keys that are still empty from the engine's own
// variable, such as DOUBAO_API_KEY. Call it once the engines are final.
func (c *Config) ResolveKeys(lookup LookupFunc) {
	fromEnv := func(e translate.EngineType) string {
		if e.KeyEnvVar() == "" {
			return ""
		}
		v, _ := lookup(e.KeyEnvVar())
		return strings.TrimSpace(v)
	}
	if e, err := translate.ParseEngineType(string(c.Paragraph.Engine)); err == nil {
		c.Paragraph.Engine = e
	}
	if e, err := translate.ParseEngineType(string(c.Table.Engine)); err == nil {
		c.Table.Engine = e
	}
	if c.Paragraph.APIKey == "" {
		c.Paragraph.APIKey = fromEnv(c.Paragraph.Engine)
	}
	// A table provider on the paragraph engine inherits its key.
	if c.Table.APIKey == "" && c.Table.Engine != "" && c.Table.Engine != c.Paragraph.Engine {
		c.Table.APIKey = fromEnv(c.Table.Engine)
	}
}

// ParagraphProvider returns the provider configuration for paragraphs.
func (c *Config) ParagraphProvider() translate.Config {
	return c.Paragraph
}

// TableProvider returns the provider configuration for table cells, filled
// from the paragraph provider where unset. Connection details are only
// inherited when both use the same engine.
func (c *Config) TableProvider() translate.Config {
	t := c.Table
	p := c.Paragraph
	if t.Engine == "" {
		t.Engine = p.Engine
	}
	if t.Engine == p.Engine {
		if t.BaseURL == "" {
			t.BaseURL = p.BaseURL
		}
		if t.APIKey == "" {
			t.APIKey = p.APIKey
		}
		if t.Model == "" {
			t.Model = p.Model
		}
		if t.Temperature == 0 {
			t.Temperature = p.Temperature
		}
		if t.MaxTokens == 0 {
			t.MaxTokens = p.MaxTokens
		}
	}
	if t.Prompt == "" {
		t.Prompt = p.Prompt
	}
	if t.Retries == 0 {
		t.Retries = p.Retries
	}
	if t.HTTPTimeout == 0 {
		t.HTTPTimeout = p.HTTPTimeout
	}
	return t
}

// OutputFont returns the default font to set on the output document, or an
// empty name when the document's font should stay as converted.
func (c *Config) OutputFont() (string, float64) {
	if c.Output.FontName != "" {
		return c.Output.FontName, c.Output.FontSize
	}
	if translate.NewLanguageMapper().ToBackendCode(c.TargetLang) == "zh" {
		size := c.Output.FontSize
		if size <= 0 {
			size = ChineseFontSize
		}
		return ChineseFont, size
	}
	return "", 0
}

// CheckKeys verifies that every keyed provider has a plausible API key.
func (c *Config) CheckKeys() error {
	p := c.ParagraphProvider()
	if err := translate.CheckKey(p.Engine, p.APIKey); err != nil {
		return fmt.Errorf("paragraph provider: %w", err)
	}
	t := c.TableProvider()
	if err := translate.CheckKey(t.Engine, t.APIKey); err != nil {
		return fmt.Errorf("table provider: %w", err)
	}
	return nil
}

// Validate checks the whole configuration and normalizes engine aliases.
// All problems are ValidationErrors.
func (c *Config) Validate() error {
	lm := translate.NewLanguageMapper()
	if !lm.Valid(c.SourceLang) {
		return domain.ValidationError(fmt.Sprintf("invalid source language %q", c.SourceLang), nil)
	}
	if !lm.Valid(c.TargetLang) {
		return domain.ValidationError(fmt.Sprintf("invalid target language %q", c.TargetLang), nil)
	}
	e, err := translate.ParseEngineType(string(c.Paragraph.Engine))
	if err != nil {
		return domain.ValidationError("paragraph provider", err)
	}
	c.Paragraph.Engine = e
	if c.Table.Engine != "" {
		if e, err = translate.ParseEngineType(string(c.Table.Engine)); err != nil {
			return domain.ValidationError("table provider", err)
		}
		c.Table.Engine = e
	}
	ce, err := convert.ParseEngine(string(c.Converter.Engine))
	if err != nil {
		return domain.ValidationError("converter", err)
	}
	c.Converter.Engine = ce
	if c.Concurrency.Paragraphs < 1 || c.Concurrency.Tables < 1 {
		return domain.ValidationError(fmt.Sprintf("concurrency must be at least 1 (paragraphs=%d, tables=%d)",
			c.Concurrency.Paragraphs, c.Concurrency.Tables), nil)
	}
	if c.CallTimeout <= 0 {
		return domain.ValidationError(fmt.Sprintf("call timeout must be positive, got %s", c.CallTimeout), nil)
	}
	if c.Converter.Timeout <= 0 {
		return domain.ValidationError(fmt.Sprintf("converter timeout must be positive, got %s", c.Converter.Timeout), nil)
	}
	if c.Output.FontSize < 0 {
		return domain.ValidationError(fmt.Sprintf("font size must not be negative, got %g", c.Output.FontSize), nil)
	}
	return c.CheckKeys()
}
