package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dasmlab/pdftrans/pkg/convert"
	"github.com/dasmlab/pdftrans/pkg/domain"
	"github.com/dasmlab/pdftrans/pkg/translate"
)

const testKey = "sk-0123456789abcdef"

func env(vars map[string]string) LookupFunc {
	return func(key string) (string, bool) {
		v, ok := vars[key]
		return v, ok
	}
}

func writeFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "pdftrans.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestDefault(t *testing.T) {
	cfg := Default()
	assert.Equal(t, "en", cfg.SourceLang)
	assert.Equal(t, "zh", cfg.TargetLang)
	assert.Equal(t, translate.EngineDoubao, cfg.Paragraph.Engine)
	assert.Equal(t, translate.EngineDoubao, cfg.TableProvider().Engine)
	assert.Equal(t, 16, cfg.Concurrency.Paragraphs)
	assert.Equal(t, 16, cfg.Concurrency.Tables)
	assert.Equal(t, 60*time.Second, cfg.CallTimeout)
	assert.Equal(t, convert.EnginePDF2Docx, cfg.Converter.Engine)
	assert.Equal(t, 30*time.Minute, cfg.Server.JobTTL)
}

func TestLoad(t *testing.T) {
	path := writeFile(t, `
source_lang: de
target_lang: en
paragraph_provider:
  engine: zhipu
  api_key: `+testKey+`
table_provider:
  engine: ollama
  model: llama3
concurrency:
  paragraphs: 4
call_timeout: 30s
converter:
  engine: builtin
server:
  job_ttl: 5m
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "de", cfg.SourceLang)
	assert.Equal(t, translate.EngineZhipu, cfg.Paragraph.Engine)
	assert.Equal(t, translate.EngineOllama, cfg.Table.Engine)
	assert.Equal(t, 4, cfg.Concurrency.Paragraphs)
	assert.Equal(t, 16, cfg.Concurrency.Tables, "unset fields keep defaults")
	assert.Equal(t, 30*time.Second, cfg.CallTimeout)
	assert.Equal(t, convert.EngineBuiltin, cfg.Converter.Engine)
	assert.Equal(t, convert.DefaultTimeout, cfg.Converter.Timeout)
	assert.Equal(t, 5*time.Minute, cfg.Server.JobTTL)
	require.NoError(t, cfg.Validate())
}

func TestLoadEmptyPath(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoadErrors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
	assert.True(t, domain.IsType(err, domain.ErrorTypeConfig))

	_, err = Load(writeFile(t, "source_lang: [unterminated"))
	require.Error(t, err)
	assert.True(t, domain.IsType(err, domain.ErrorTypeConfig))

	_, err = Load(writeFile(t, "sauce_lang: en\n"))
	require.Error(t, err, "unknown keys are rejected")
}

func TestApplyEnv(t *testing.T) {
	cfg := Default()
	err := cfg.ApplyEnv(env(map[string]string{
		EnvSourceLang:    "fr",
		EnvTargetLang:    "ja",
		EnvConcurrency:   "8",
		EnvCallTimeout:   "90s",
		EnvConverter:     "soffice",
		EnvLogLevel:      "debug",
		"DOUBAO_API_KEY": testKey,
	}))
	require.NoError(t, err)
	assert.Empty(t, cfg.Paragraph.APIKey, "engine keys wait for ResolveKeys")
	cfg.ResolveKeys(env(map[string]string{"DOUBAO_API_KEY": testKey}))

	assert.Equal(t, "fr", cfg.SourceLang)
	assert.Equal(t, "ja", cfg.TargetLang)
	assert.Equal(t, 8, cfg.Concurrency.Paragraphs)
	assert.Equal(t, 8, cfg.Concurrency.Tables)
	assert.Equal(t, 90*time.Second, cfg.CallTimeout)
	assert.Equal(t, convert.EngineLibreOffice, cfg.Converter.Engine)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, testKey, cfg.Paragraph.APIKey)
	assert.Equal(t, testKey, cfg.TableProvider().APIKey, "same engine shares the key")
}

func TestApplyEnvKeyPrecedence(t *testing.T) {
	vars := env(map[string]string{
		EnvParagraphAPIKey: "sk-paragraph-key",
		EnvTableEngine:     "zhipu",
		"DOUBAO_API_KEY":   "sk-doubao-generic",
		"ZHIPU_API_KEY":    "sk-zhipu-generic",
	})
	cfg := Default()
	require.NoError(t, cfg.ApplyEnv(vars))
	cfg.ResolveKeys(vars)
	assert.Equal(t, "sk-paragraph-key", cfg.Paragraph.APIKey)
	assert.Equal(t, translate.EngineZhipu, cfg.TableProvider().Engine)
	assert.Equal(t, "sk-zhipu-generic", cfg.TableProvider().APIKey)

	vars = env(map[string]string{
		EnvTableAPIKey:   "sk-table-key-123",
		"DOUBAO_API_KEY": "sk-doubao-generic",
	})
	cfg = Default()
	require.NoError(t, cfg.ApplyEnv(vars))
	cfg.ResolveKeys(vars)
	assert.Equal(t, "sk-doubao-generic", cfg.Paragraph.APIKey)
	assert.Equal(t, "sk-table-key-123", cfg.TableProvider().APIKey)
}

func TestResolveKeysFollowsFinalEngine(t *testing.T) {
	vars := env(map[string]string{
		"DOUBAO_API_KEY": "sk-doubao-generic",
		"ZHIPU_API_KEY":  "sk-zhipu-generic",
	})
	cfg := Default()
	require.NoError(t, cfg.ApplyEnv(vars))
	cfg.Paragraph.Engine = translate.EngineZhipu
	cfg.ResolveKeys(vars)
	assert.Equal(t, "sk-zhipu-generic", cfg.Paragraph.APIKey)

	cfg = Default()
	cfg.Paragraph.APIKey = "sk-from-yaml-file"
	cfg.ResolveKeys(vars)
	assert.Equal(t, "sk-from-yaml-file", cfg.Paragraph.APIKey, "configured keys win")

	cfg = Default()
	cfg.Paragraph.Engine = translate.EngineOllama
	cfg.ResolveKeys(vars)
	assert.Empty(t, cfg.Paragraph.APIKey, "keyless engines get no key")
}

func TestApplyEnvInvalid(t *testing.T) {
	for _, vars := range []map[string]string{
		{EnvConcurrency: "many"},
		{EnvCallTimeout: "soon"},
		{EnvParagraphEngine: "argos"},
		{EnvConverter: "acrobat"},
	} {
		err := Default().ApplyEnv(env(vars))
		require.Error(t, err, vars)
		assert.True(t, domain.IsType(err, domain.ErrorTypeConfig), vars)
	}
}

func TestTableProviderFallback(t *testing.T) {
	cfg := Default()
	cfg.Paragraph = translate.Config{
		Engine:  translate.EngineOpenAI,
		APIKey:  testKey,
		Model:   "gpt-4o",
		Prompt:  "Translate {{source}} to {{target}}.",
		Retries: 5,
	}

	tp := cfg.TableProvider()
	assert.Equal(t, cfg.Paragraph, tp)

	cfg.Table = translate.Config{Engine: translate.EngineOllama}
	tp = cfg.TableProvider()
	assert.Equal(t, translate.EngineOllama, tp.Engine)
	assert.Empty(t, tp.APIKey, "keys are not shared across engines")
	assert.Empty(t, tp.Model)
	assert.Equal(t, cfg.Paragraph.Prompt, tp.Prompt)
	assert.Equal(t, 5, tp.Retries)
}

func TestOutputFont(t *testing.T) {
	cfg := Default()
	name, size := cfg.OutputFont()
	assert.Equal(t, ChineseFont, name)
	assert.Equal(t, ChineseFontSize, size)

	cfg.TargetLang = "zh-Hans"
	name, _ = cfg.OutputFont()
	assert.Equal(t, ChineseFont, name)

	cfg.TargetLang = "de"
	name, size = cfg.OutputFont()
	assert.Empty(t, name)
	assert.Zero(t, size)

	cfg.Output.FontName = "Arial"
	cfg.Output.FontSize = 11
	name, size = cfg.OutputFont()
	assert.Equal(t, "Arial", name)
	assert.Equal(t, 11.0, size)
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		cfg := Default()
		cfg.Paragraph.APIKey = testKey
		return cfg
	}
	require.NoError(t, valid().Validate())

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"source language", func(c *Config) { c.SourceLang = "" }},
		{"target language", func(c *Config) { c.TargetLang = "not a language" }},
		{"paragraph engine", func(c *Config) { c.Paragraph.Engine = "argos" }},
		{"table engine", func(c *Config) { c.Table.Engine = "argos" }},
		{"converter", func(c *Config) { c.Converter.Engine = "acrobat" }},
		{"concurrency", func(c *Config) { c.Concurrency.Tables = 0 }},
		{"call timeout", func(c *Config) { c.CallTimeout = 0 }},
		{"converter timeout", func(c *Config) { c.Converter.Timeout = -time.Second }},
		{"missing key", func(c *Config) { c.Paragraph.APIKey = "" }},
		{"short key", func(c *Config) { c.Paragraph.APIKey = "sk-123" }},
		{"table key", func(c *Config) { c.Table = translate.Config{Engine: translate.EngineZhipu} }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.True(t, domain.IsType(err, domain.ErrorTypeValidation), err.Error())
		})
	}
}

func TestValidateNormalizesAliases(t *testing.T) {
	cfg := Default()
	cfg.Paragraph = translate.Config{Engine: "ark", APIKey: testKey}
	cfg.Table = translate.Config{Engine: "ollama"}
	cfg.Converter.Engine = "mupdf"
	require.NoError(t, cfg.Validate())
	assert.Equal(t, translate.EngineDoubao, cfg.Paragraph.Engine)
	assert.Equal(t, convert.EngineBuiltin, cfg.Converter.Engine)
}
