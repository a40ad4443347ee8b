package translate

import (
	"strings"
	"testing"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dasmlab/pdftrans/pkg/domain"
)

func TestParseEngineType(t *testing.T) {
	tests := []struct {
		in   string
		want EngineType
	}{
		{"doubao", EngineDoubao},
		{"Ark", EngineDoubao},
		{"ZHIPU", EngineZhipu},
		{"glm", EngineZhipu},
		{" openai ", EngineOpenAI},
		{"ollama", EngineOllama},
		{"LibreTranslate", EngineLibreTranslate},
	}
	for _, tt := range tests {
		got, err := ParseEngineType(tt.in)
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}

	_, err := ParseEngineType("argos")
	assert.Error(t, err)
}

func TestWithDefaults(t *testing.T) {
	cfg := Config{Engine: EngineDoubao}.WithDefaults()
	assert.Equal(t, "https://ark.cn-beijing.volces.com/api/v3", cfg.BaseURL)
	assert.Equal(t, "doubao-1-5-lite-32k-250115", cfg.Model)
	assert.Equal(t, DefaultPrompt, cfg.Prompt)
	assert.Equal(t, DefaultMaxRetries, cfg.Retries)

	custom := Config{Engine: EngineZhipu, Model: "glm-4-plus", Temperature: 0.2}.WithDefaults()
	assert.Equal(t, "glm-4-plus", custom.Model)
	assert.Equal(t, 0.2, custom.Temperature)
	assert.Equal(t, 4095, custom.MaxTokens)
}

func TestNewTranslator(t *testing.T) {
	logger, hook := test.NewNullLogger()

	tr, err := NewTranslator(Config{Engine: EngineOllama}, logger)
	require.NoError(t, err)
	assert.IsType(t, &ChatClient{}, tr)

	tr, err = NewTranslator(Config{Engine: EngineLibreTranslate}, logger)
	require.NoError(t, err)
	assert.IsType(t, &LibreTranslateClient{}, tr)

	_, err = NewTranslator(Config{Engine: EngineDoubao, APIKey: "short"}, logger)
	require.Error(t, err)
	assert.True(t, domain.IsType(err, domain.ErrorTypeValidation))

	_, err = NewTranslator(Config{Engine: "argos"}, logger)
	assert.Error(t, err)

	tr, err = NewTranslator(Config{Engine: EngineOpenAI, APIKey: "sk-abcdefghijklmnop"}, logger)
	require.NoError(t, err)
	assert.Equal(t, "openai", tr.Name())
	for _, e := range hook.AllEntries() {
		if key, ok := e.Data["api_key"].(string); ok {
			assert.NotContains(t, key, "efghijkl")
		}
	}
}

func TestCredentials(t *testing.T) {
	assert.Equal(t, "sk-a...mnop", MaskKey("sk-abcdefghijklmnop"))
	assert.Equal(t, "****", MaskKey("short"))
	assert.Equal(t, "", MaskKey(""))

	assert.NoError(t, CheckKey(EngineOllama, ""))
	assert.Error(t, CheckKey(EngineZhipu, ""))
	assert.Error(t, CheckKey(EngineZhipu, "0123456789"))
	assert.NoError(t, CheckKey(EngineZhipu, "0123456789a"))

	assert.Equal(t, "DOUBAO_API_KEY", EngineDoubao.KeyEnvVar())
	assert.Equal(t, "", EngineLibreTranslate.KeyEnvVar())
}

func TestLanguageMapper(t *testing.T) {
	lm := NewLanguageMapper()
	assert.Equal(t, "en", lm.ToBackendCode("EN"))
	assert.Equal(t, "zh", lm.ToBackendCode("zh-CN"))
	assert.Equal(t, "en", lm.ToBackendCode("en_US"))
	assert.Equal(t, "Chinese", lm.DisplayName("zh"))
	assert.Equal(t, "French", lm.DisplayName("fr-CA"))
	assert.True(t, lm.Valid("ja"))
	assert.False(t, lm.Valid(""))
	assert.False(t, lm.Valid("not a tag"))
}

func TestPromptHelpers(t *testing.T) {
	p := BuildSystemPrompt("{{source}} -> {{target}}", "English", "German")
	assert.Equal(t, "English -> German", p)

	assert.Equal(t, "答案", CleanResponse("<THINK>x</THINK> 答案 "))
	assert.Equal(t, "", CleanResponse("<think>never closed"))
	assert.Equal(t, "İSTANBUL İZMİR", CleanResponse("İSTANBUL İZMİR<think>devam"))
	assert.Equal(t, "ȺȺȺȺȺȺȺȺ", CleanResponse("ȺȺȺȺȺȺȺȺ<think>"))
	assert.Equal(t, "ȺȺ ok", CleanResponse("ȺȺ<Think>a</think> ok<THINK>b"))

	assert.True(t, IsPlaceholder("Please provide the text you want translated.", "   x"))
	assert.True(t, IsPlaceholder("  ", "Hello"))
	assert.False(t, IsPlaceholder("你好", "Hello"))
	assert.False(t, IsPlaceholder(strings.Repeat("nothing to translate ", 10), "Hello"))
	assert.False(t, IsPlaceholder("Please provide the text to be translated", "请提供需要翻译的文本"))
}
