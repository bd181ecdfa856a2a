// Package submission assembles structured editor fields into the single
// instruction string sent for optimization. Output depends only on the
// field values.
package submission

import (
	"strings"
)

type Mode string

const (
	ModeNormal       Mode = "normal"
	ModeProfessional Mode = "professional"
)

// NormalFields are the template fields of the simple editor.
type NormalFields struct {
	Objective string `json:"objective"`
	Context   string `json:"context"`
	Style     string `json:"style"`
	Tone      string `json:"tone"`
	Format    string `json:"format"`
	Examples  string `json:"examples"`
}

type Variable struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

// ProfessionalFields are the role/background/task fields of the advanced
// editor. Variables keep caller order.
type ProfessionalFields struct {
	Role        string     `json:"role"`
	Background  string     `json:"background"`
	Task        string     `json:"task"`
	Format      string     `json:"format"`
	OutputStyle string     `json:"outputStyle"`
	Constraints []string   `json:"constraints"`
	Examples    []string   `json:"examples"`
	Variables   []Variable `json:"variables"`
}

type Fields struct {
	Normal       NormalFields       `json:"normal"`
	Professional ProfessionalFields `json:"professional"`
}

const (
	blockSeparator      = "\n\n"
	constraintSeparator = "; "
	variableSeparator   = ", "
)

var styleLabels = map[string]string{
	"professional": "professional and formal",
	"casual":       "casual",
	"friendly":     "friendly",
	"creative":     "creative and vivid",
	"academic":     "academically rigorous",
}

var toneLabels = map[string]string{
	"neutral":      "neutral and objective",
	"enthusiastic": "enthusiastic",
	"calm":         "calm and rational",
	"humorous":     "light and humorous",
	"serious":      "serious",
}

var formatLabels = map[string]string{
	"paragraph": "paragraphs",
	"list":      "a list",
	"steps":     "step-by-step instructions",
	"qa":        "questions and answers",
	"table":     "a table",
}

// Build renders fields for mode. Unknown modes are treated as normal.
func Build(mode Mode, fields Fields) string {
	if mode == ModeProfessional {
		return BuildProfessional(fields.Professional)
	}
	return BuildNormal(fields.Normal)
}

func BuildNormal(f NormalFields) string {
	var blocks []string

	if v := clean(f.Objective); v != "" {
		blocks = append(blocks, "Objective: "+v)
	}
	if v := clean(f.Context); v != "" {
		blocks = append(blocks, "Context: "+v)
	}

	style, tone := clean(f.Style), clean(f.Tone)
	if style != "" || tone != "" {
		var parts []string
		if style != "" {
			parts = append(parts, "use a "+label(styleLabels, style)+" style")
		}
		if tone != "" {
			parts = append(parts, "keep a "+label(toneLabels, tone)+" tone")
		}
		blocks = append(blocks, "Requirements: "+strings.Join(parts, ", "))
	}

	if v := clean(f.Format); v != "" {
		blocks = append(blocks, "Output format: "+label(formatLabels, v))
	}
	if v := clean(f.Examples); v != "" {
		blocks = append(blocks, "Examples: "+v)
	}

	return strings.Join(blocks, blockSeparator)
}

func BuildProfessional(f ProfessionalFields) string {
	var blocks []string

	add := func(heading, value string) {
		if v := clean(value); v != "" {
			blocks = append(blocks, heading+": "+v)
		}
	}

	add("Role", f.Role)
	add("Background", f.Background)
	add("Task", f.Task)
	add("Output format", f.Format)
	add("Output style", f.OutputStyle)

	if constraints := nonEmpty(f.Constraints); len(constraints) > 0 {
		blocks = append(blocks, "Constraints: "+strings.Join(constraints, constraintSeparator))
	}
	if examples := nonEmpty(f.Examples); len(examples) > 0 {
		blocks = append(blocks, "Examples:\n"+strings.Join(examples, "\n"))
	}

	var vars []string
	for _, v := range f.Variables {
		name := clean(v.Name)
		if name == "" {
			continue
		}
		vars = append(vars, name+": "+clean(v.Description))
	}
	if len(vars) > 0 {
		blocks = append(blocks, "Variables: "+strings.Join(vars, variableSeparator))
	}

	return strings.Join(blocks, blockSeparator)
}

func clean(s string) string {
	return strings.TrimSpace(s)
}

func label(labels map[string]string, value string) string {
	if l, ok := labels[value]; ok {
		return l
	}
	return value
}

func nonEmpty(values []string) []string {
	var out []string
	for _, v := range values {
		if v = clean(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}
