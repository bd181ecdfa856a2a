package normalize

import (
	"regexp"
	"strings"
)

// prefixes are checked in order; bold variants come before their plain
// forms so "**Optimized prompt:**" is not half-stripped. ASCII letters match
// case-insensitively. Chinese labels appear with both full- and half-width
// colons.
var prefixes = []string{
	"**优化后的提示词：**",
	"**优化后的提示词:**",
	"**优化后的提示词**：",
	"**优化后的提示词**:",
	"**优化结果：**",
	"**优化结果:**",
	"**优化后的内容：**",
	"**AI优化结果：**",
	"**优化建议：**",
	"**优化版本：**",
	"**Optimized prompt:**",
	"**Optimized prompt**:",
	"**Improved prompt:**",
	"**Improved prompt**:",
	"**Optimized result:**",
	"**Optimized result**:",
	"以下是优化后的提示词：",
	"以下是优化后的提示词:",
	"优化后的提示词：",
	"优化后的提示词:",
	"优化结果：",
	"优化结果:",
	"优化后的内容：",
	"优化后的内容:",
	"AI优化结果：",
	"AI优化结果:",
	"优化建议：",
	"优化建议:",
	"优化版本：",
	"优化版本:",
	"Here is the optimized prompt:",
	"Optimized prompt:",
	"Improved prompt:",
	"Optimized result:",
}

// Normalize trims raw provider output and removes at most one known
// boilerplate lead-in. The input is returned trimmed but otherwise intact
// when stripping would leave nothing, or would expose another lead-in, so
// Normalize(Normalize(x)) == Normalize(x) and non-empty input stays
// non-empty.
func Normalize(raw string) string {
	text := strings.TrimSpace(raw)
	p, ok := match(text)
	if !ok {
		return text
	}
	rest := strings.TrimSpace(text[len(p):])
	if rest == "" {
		return text
	}
	if _, again := match(rest); again {
		return text
	}
	return rest
}

func match(text string) (string, bool) {
	for _, p := range prefixes {
		if len(text) >= len(p) && strings.EqualFold(text[:len(p)], p) {
			return p, true
		}
	}
	return "", false
}

var (
	thinkBlock = regexp.MustCompile(`(?s)<think>.*?</think>`)
	thinkOpen  = regexp.MustCompile(`(?s)<think>.*$`)
)

// StripReasoning removes <think> blocks emitted by reasoning models,
// including an unterminated trailing one.
func StripReasoning(raw string) string {
	out := thinkBlock.ReplaceAllString(raw, "")
	out = thinkOpen.ReplaceAllString(out, "")
	return strings.TrimSpace(out)
}
