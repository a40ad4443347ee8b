package translate

import (
	"regexp"
	"strings"
)

// DefaultPrompt is the system prompt template. {{source}} and {{target}} are
// replaced by English language names.
const DefaultPrompt = `You are a professional translator. Translate the text supplied by the user from {{source}} into {{target}}, using natural, idiomatic {{target}}.
Rules:
1. Output only the translation. Do not add explanations, notes, quotes or a thinking process.
2. Keep numbers, units, names, code and symbols as they are, and keep the line breaks of the original.
3. If the text needs no translation, return it unchanged.`

// BuildSystemPrompt fills the language placeholders of tmpl.
func BuildSystemPrompt(tmpl, sourceName, targetName string) string {
	if tmpl == "" {
		tmpl = DefaultPrompt
	}
	return strings.NewReplacer("{{source}}", sourceName, "{{target}}", targetName).Replace(tmpl)
}

var (
	thinkBlock = regexp.MustCompile(`(?is)<think>.*?</think>`)
	thinkOpen  = regexp.MustCompile(`(?is)<think>.*$`)
)

// CleanResponse strips reasoning blocks and surrounding whitespace from a
// model response. An unterminated <think> block means the model never got
// to the answer, so everything from it on is dropped.
func CleanResponse(s string) string {
	s = thinkBlock.ReplaceAllString(s, "")
	s = thinkOpen.ReplaceAllString(s, "")
	return strings.TrimSpace(s)
}

// placeholders are replies models give instead of a translation when the
// input has nothing to translate.
var placeholders = []string{
	"请提供需要翻译的文本",
	"请提供需要翻译的内容",
	"请提供要翻译的文本",
	"请提供您需要翻译的文本",
	"没有需要翻译的内容",
	"没有需要翻译的文本",
	"无需翻译",
	"please provide the text",
	"please provide text",
	"nothing to translate",
	"no text to translate",
	"no text provided",
}

// IsPlaceholder reports whether reply is filler rather than a translation
// of source. Only short replies qualify so a real translation that happens
// to quote one of the phrases is kept, and a source that is itself such a
// phrase is expected to come back as one.
func IsPlaceholder(reply, source string) bool {
	norm := strings.ToLower(strings.TrimSpace(reply))
	if norm == "" {
		return true
	}
	if len([]rune(norm)) > 80 || containsPlaceholder(strings.ToLower(source)) {
		return false
	}
	return containsPlaceholder(norm)
}

func containsPlaceholder(s string) bool {
	for _, p := range placeholders {
		if strings.Contains(s, p) {
			return true
		}
	}
	return false
}
