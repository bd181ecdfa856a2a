package submission

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBuild_AllFieldsAbsent(t *testing.T) {
	assert.Equal(t, "", Build(ModeNormal, Fields{}))
	assert.Equal(t, "", Build(ModeProfessional, Fields{}))
	assert.Equal(t, "", Build("", Fields{Normal: NormalFields{Objective: "   "}}))
}

func TestBuildNormal_ObjectiveOnly(t *testing.T) {
	fields := Fields{Normal: NormalFields{Objective: "Write a product launch email"}}

	first := Build(ModeNormal, fields)
	second := Build(ModeNormal, fields)

	assert.Equal(t, "Objective: Write a product launch email", first)
	assert.Equal(t, first, second)
	assert.NotContains(t, first, "\n")
}

func TestBuildNormal_AllFields(t *testing.T) {
	got := BuildNormal(NormalFields{
		Objective: "Summarise the report",
		Context:   "Quarterly sales data",
		Style:     "professional",
		Tone:      "calm",
		Format:    "list",
		Examples:  "- revenue up 4%",
	})

	want := strings.Join([]string{
		"Objective: Summarise the report",
		"Context: Quarterly sales data",
		"Requirements: use a professional and formal style, keep a calm and rational tone",
		"Output format: a list",
		"Examples: - revenue up 4%",
	}, "\n\n")
	assert.Equal(t, want, got)
}

func TestBuildNormal_StyleOrToneAlone(t *testing.T) {
	assert.Equal(t, "Requirements: use a casual style", BuildNormal(NormalFields{Style: "casual"}))
	assert.Equal(t, "Requirements: keep a wry tone", BuildNormal(NormalFields{Tone: "wry"}))
}

func TestBuildProfessional_Order(t *testing.T) {
	got := BuildProfessional(ProfessionalFields{
		Role:        "Senior copywriter",
		Background:  "B2B SaaS",
		Task:        "Draft a landing page",
		Format:      "Markdown",
		OutputStyle: "Concise",
		Constraints: []string{"under 300 words", " ", "no jargon"},
		Examples:    []string{"Example A", "Example B"},
		Variables: []Variable{
			{Name: "product", Description: "product name"},
			{Name: "", Description: "ignored"},
			{Name: "audience", Description: "target buyer"},
		},
	})

	want := strings.Join([]string{
		"Role: Senior copywriter",
		"Background: B2B SaaS",
		"Task: Draft a landing page",
		"Output format: Markdown",
		"Output style: Concise",
		"Constraints: under 300 words; no jargon",
		"Examples:\nExample A\nExample B",
		"Variables: product: product name, audience: target buyer",
	}, "\n\n")
	assert.Equal(t, want, got)
}

func TestBuildProfessional_OmitsEmpty(t *testing.T) {
	got := BuildProfessional(ProfessionalFields{Task: "Translate", Constraints: []string{""}})

	assert.Equal(t, "Task: Translate", got)
}

func TestBuild_UnknownModeIsNormal(t *testing.T) {
	fields := Fields{
		Normal:       NormalFields{Objective: "a"},
		Professional: ProfessionalFields{Task: "b"},
	}

	assert.Equal(t, "Objective: a", Build("freestyle", fields))
	assert.Equal(t, "Task: b", Build(ModeProfessional, fields))
}
