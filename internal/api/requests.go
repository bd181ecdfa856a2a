package api

import (
	"strings"

	"github.com/vnmchuo/prompt-optimizer/internal/optimizer"
	"github.com/vnmchuo/prompt-optimizer/internal/provider"
	"github.com/vnmchuo/prompt-optimizer/internal/submission"
)

// targetFields is embedded in every request. modelType and modelName are
// accepted as aliases of provider and model.
type targetFields struct {
	Provider    string   `json:"provider"`
	ModelType   string   `json:"modelType"`
	Model       string   `json:"model"`
	ModelName   string   `json:"modelName"`
	Temperature *float64 `json:"temperature"`
}

func (t targetFields) target() optimizer.Target {
	return optimizer.Target{
		Provider:    firstNonEmpty(t.Provider, t.ModelType),
		Model:       firstNonEmpty(t.Model, t.ModelName),
		Temperature: t.Temperature,
	}
}

type editorInput struct {
	Mode   submission.Mode   `json:"mode"`
	Fields submission.Fields `json:"fields"`
}

type optimizeRequest struct {
	Prompt         string       `json:"prompt"`
	OriginalPrompt string       `json:"originalPrompt"`
	Requirement    string       `json:"requirement"`
	Mode           string       `json:"mode"`
	Editor         *editorInput `json:"editor"`
	targetFields
}

// instruction returns the text to optimize and the editor mode. A literal
// prompt wins over structured editor fields.
func (r optimizeRequest) instruction() (string, string) {
	prompt := firstNonEmpty(r.Prompt, r.OriginalPrompt)
	mode := r.Mode
	if r.Editor != nil {
		if mode == "" {
			mode = string(r.Editor.Mode)
		}
		if strings.TrimSpace(prompt) == "" {
			prompt = submission.Build(r.Editor.Mode, r.Editor.Fields)
		}
	}
	return prompt, mode
}

type generateRequest struct {
	UserInfo          string   `json:"userInfo"`
	TargetDescription string   `json:"targetDescription"`
	WritingStyle      string   `json:"writingStyle"`
	Tone              string   `json:"tone"`
	OutputFormat      string   `json:"outputFormat"`
	Examples          string   `json:"examples"`
	Tags              []string `json:"tags"`
	targetFields
}

type refineRequest struct {
	OriginalPrompt      string             `json:"originalPrompt"`
	CurrentPrompt       string             `json:"currentPrompt"`
	UserFeedback        string             `json:"userFeedback"`
	ConversationHistory []provider.Message `json:"conversationHistory"`
	OptimizationMode    string             `json:"optimizationMode"`
	targetFields
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
