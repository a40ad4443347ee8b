package translate

import (
	"context"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/language/display"
)

// Translator defines the interface for translation backends.
// This abstraction allows us to switch between chat-completion providers
// (Doubao, Zhipu, OpenAI, Ollama) and LibreTranslate without changing the
// pipeline that drives them.
type Translator interface {
	// Translate translates text from source language to target language.
	// sourceLang and targetLang are ISO 639-1 codes (e.g., "en", "zh").
	// Errors are returned as-is; the passthrough policy lives in Adapter.
	Translate(ctx context.Context, text, sourceLang, targetLang string) (string, error)

	// CheckHealth verifies that the translation backend is reachable and
	// accepts the configured credentials.
	CheckHealth(ctx context.Context) error

	// Name identifies the backend in logs and metrics.
	Name() string
}

// LanguageMapper handles conversion between user-supplied language tags and
// the codes and names the backends expect.
type LanguageMapper struct{}

// NewLanguageMapper creates a new language mapper instance.
func NewLanguageMapper() *LanguageMapper {
	return &LanguageMapper{}
}

// ToBackendCode converts a BCP 47 tag to its base ISO 639 code.
// Examples:
//   - "EN" -> "en"
//   - "zh-CN" -> "zh"
//   - "en_US" -> "en"
//
// Unparseable input falls back to the lowercased prefix before any "-" or "_".
func (lm *LanguageMapper) ToBackendCode(tag string) string {
	t, err := language.Parse(strings.ReplaceAll(tag, "_", "-"))
	if err != nil {
		lang := strings.ToLower(tag)
		if idx := strings.IndexAny(lang, "-_"); idx >= 0 {
			lang = lang[:idx]
		}
		return lang
	}
	base, _ := t.Base()
	return base.String()
}

// DisplayName returns the English name of the language, e.g. "zh" -> "Chinese".
// It returns the code itself when x/text has no name for it.
func (lm *LanguageMapper) DisplayName(code string) string {
	t, err := language.Parse(strings.ReplaceAll(code, "_", "-"))
	if err != nil {
		return code
	}
	base, _ := t.Base()
	if name := display.English.Languages().Name(language.Make(base.String())); name != "" {
		return name
	}
	return code
}

// Valid reports whether tag parses as a BCP 47 language tag.
func (lm *LanguageMapper) Valid(tag string) bool {
	if tag == "" {
		return false
	}
	_, err := language.Parse(strings.ReplaceAll(tag, "_", "-"))
	return err == nil
}
