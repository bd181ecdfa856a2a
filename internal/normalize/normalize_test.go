package normalize

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"plain text", "  # Role: Editor\n## Goal\nFix typos  ", "# Role: Editor\n## Goal\nFix typos"},
		{"chinese prefix", "优化后的提示词：\n# Role: 翻译", "# Role: 翻译"},
		{"bold prefix", "**优化结果：** 请写一封邮件", "请写一封邮件"},
		{"english prefix", "Optimized prompt:\n\nYou are a tutor.", "You are a tutor."},
		{"bold english", "**Optimized Prompt:** Be brief.", "Be brief."},
		{"only first prefix", "优化结果：内容 优化结果：保留", "内容 优化结果：保留"},
		{"prefix only stays", "优化结果：", "优化结果："},
		{"stacked prefixes kept", "**优化结果：**优化结果：正文", "**优化结果：**优化结果：正文"},
		{"internal header untouched", "# Title\n优化结果：inside", "# Title\n优化结果：inside"},
		{"lowercase english", "optimized result: Write tests first.", "Write tests first."},
		{"upper case english", "OPTIMIZED PROMPT: Shout less.", "Shout less."},
		{"colon outside bold", "**Optimized Prompt**: You are a chef.", "You are a chef."},
		{"half-width chinese colon", "优化后的提示词: 请总结", "请总结"},
		{"bold half-width chinese", "**优化后的提示词**: 请翻译", "请翻译"},
		{"empty", "   ", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Normalize(tt.in))
		})
	}
}

func TestNormalize_IdempotentAndNonEmpty(t *testing.T) {
	inputs := []string{
		"x",
		"优化后的提示词：A",
		"**优化后的提示词：**",
		"**Optimized prompt:** Optimized prompt: twice",
		"Optimized prompt: **优化结果：** mixed",
		"Here is the optimized prompt:\n\n# Role\n- keep",
		"\n\n\t优化版本：  多余空白  \n",
		"<think>hmm</think>answer",
		"optimized result: optimized prompt: stacked",
		"**Optimized Prompt**: 优化结果: mixed",
	}
	for _, in := range inputs {
		once := Normalize(in)
		assert.Equal(t, once, Normalize(once), "idempotence for %q", in)
		assert.NotEmpty(t, once, "non-empty for %q", in)
	}
}

func TestStripReasoning(t *testing.T) {
	assert.Equal(t, "final answer", StripReasoning("<think>\nchain\n</think>\nfinal answer"))
	assert.Equal(t, "a b", StripReasoning("a<think>x</think> b<think>unterminated"))
	assert.Equal(t, "", StripReasoning("<think>only thoughts</think>"))
	assert.Equal(t, "untouched", StripReasoning("untouched"))
}
