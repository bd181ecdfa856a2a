// Package refine runs feedback rounds over a caller-held conversation. The
// engine keeps no session state; every round receives the full history and
// returns a new one.
package refine

import (
	"context"
	"fmt"
	"strings"

	"github.com/vnmchuo/prompt-optimizer/internal/failure"
	"github.com/vnmchuo/prompt-optimizer/internal/optimizer"
	"github.com/vnmchuo/prompt-optimizer/internal/provider"
)

type Mode string

const (
	ModeOptimize Mode = "optimize"
	ModeRewrite  Mode = "rewrite"
)

// Session is the caller-held state of one refinement conversation. After a
// successful round History has an even length and Round == len(History)/2.
type Session struct {
	OriginalInstruction string             `json:"originalPrompt"`
	CurrentInstruction  string             `json:"currentPrompt"`
	History             []provider.Message `json:"conversationHistory"`
	Round               int                `json:"round"`
}

// Completer is the slice of optimizer.Service the engine needs.
type Completer interface {
	Optimize(ctx context.Context, req optimizer.OptimizeRequest) optimizer.Result
	Complete(ctx context.Context, operation string, target optimizer.Target, messages []provider.Message) optimizer.Result
}

type StartRequest struct {
	Instruction string
	Requirement string
	Mode        string
	optimizer.Target
}

type RefineRequest struct {
	OriginalInstruction string
	CurrentInstruction  string
	Feedback            string
	History             []provider.Message
	Mode                Mode
	optimizer.Target
}

type RefineResult struct {
	Success             bool
	OptimizedPrompt     string
	ConversationHistory []provider.Message
	Round               int
	ProcessingTime      float64
	Provider            string
	Model               string
	Error               *failure.Error
}

type Engine struct {
	completer Completer
}

func NewEngine(c Completer) *Engine {
	return &Engine{completer: c}
}

// Start performs the first optimization and seeds a session from it. On
// failure the returned session is the initial one (round 0, no history).
func (e *Engine) Start(ctx context.Context, req StartRequest) (Session, optimizer.Result) {
	session := Session{OriginalInstruction: req.Instruction}

	instruction := req.Instruction
	if r := strings.TrimSpace(req.Requirement); r != "" && strings.TrimSpace(instruction) != "" {
		instruction += "\n\nAdditional requirement: " + r
	}

	res := e.completer.Optimize(ctx, optimizer.OptimizeRequest{
		Prompt: instruction,
		Mode:   req.Mode,
		Target: req.Target,
	})
	if !res.Success {
		return session, res
	}

	session.CurrentInstruction = res.Content
	session.History = []provider.Message{
		{Role: provider.RoleUser, Content: instruction},
		{Role: provider.RoleAssistant, Content: res.Content},
	}
	session.Round = 1
	return session, res
}

// Refine runs one feedback round. The caller's history is never modified;
// on failure the result echoes it back unchanged with its round.
func (e *Engine) Refine(ctx context.Context, req RefineRequest) RefineResult {
	unchanged := RefineResult{
		ConversationHistory: req.History,
		Round:               len(req.History) / 2,
		Provider:            req.Provider,
		Model:               req.Model,
	}

	if fe := validate(req); fe != nil {
		unchanged.Error = fe
		return unchanged
	}

	turn := provider.Message{Role: provider.RoleUser, Content: userTurn(req)}

	messages := make([]provider.Message, 0, len(req.History)+2)
	messages = append(messages, provider.Message{Role: provider.RoleSystem, Content: optimizer.RefineSystemPrompt()})
	messages = append(messages, req.History...)
	messages = append(messages, turn)

	res := e.completer.Complete(ctx, optimizer.OperationRefine, req.Target, messages)
	if !res.Success {
		unchanged.Error = res.Error
		unchanged.Provider, unchanged.Model = res.Provider, res.Model
		unchanged.ProcessingTime = res.ProcessingTime
		return unchanged
	}

	history := make([]provider.Message, 0, len(req.History)+2)
	history = append(history, req.History...)
	history = append(history, turn, provider.Message{Role: provider.RoleAssistant, Content: res.Content})

	return RefineResult{
		Success:             true,
		OptimizedPrompt:     res.Content,
		ConversationHistory: history,
		Round:               len(history) / 2,
		ProcessingTime:      res.ProcessingTime,
		Provider:            res.Provider,
		Model:               res.Model,
	}
}

// Apply folds a successful result back into s and returns the next session.
func (s Session) Apply(res RefineResult) Session {
	if !res.Success {
		return s
	}
	s.CurrentInstruction = res.OptimizedPrompt
	s.History = res.ConversationHistory
	s.Round = res.Round
	return s
}

func userTurn(req RefineRequest) string {
	feedback := strings.TrimSpace(req.Feedback)
	if req.Mode == ModeRewrite {
		return fmt.Sprintf("The user wants the prompt regenerated from scratch:\n%s\n\nWrite a completely new prompt that meets these requirements.", feedback)
	}
	return fmt.Sprintf("Current prompt version:\n%s\n\nUser feedback and requested changes:\n%s\n\nImprove this prompt according to the feedback.", req.CurrentInstruction, feedback)
}

func validate(req RefineRequest) *failure.Error {
	if strings.TrimSpace(req.Feedback) == "" {
		return failure.EmptyFeedback()
	}
	if fe := optimizer.ValidateText("feedback", req.Feedback); fe != nil {
		return fe
	}
	if fe := optimizer.ValidateText("originalPrompt", req.OriginalInstruction); fe != nil {
		return fe
	}

	switch req.Mode {
	case "", ModeOptimize:
		if fe := optimizer.ValidateText("currentPrompt", req.CurrentInstruction); fe != nil {
			return fe
		}
	case ModeRewrite:
	default:
		return failure.InvalidInput(fmt.Sprintf("unsupported optimization mode: %s", req.Mode))
	}

	if fe := optimizer.ValidateTemperature(req.Temperature); fe != nil {
		return fe
	}
	return ValidateHistory(req.History)
}

// ValidateHistory checks that history is a sequence of complete rounds:
// alternating user and assistant turns starting with the user.
func ValidateHistory(history []provider.Message) *failure.Error {
	if len(history)%2 != 0 {
		return failure.InvalidInput("conversation history must contain complete user/assistant rounds")
	}
	for i, m := range history {
		want := provider.RoleUser
		if i%2 == 1 {
			want = provider.RoleAssistant
		}
		if m.Role != want {
			return failure.InvalidInput(fmt.Sprintf("conversation history entry %d must have role %s", i, want))
		}
	}
	return nil
}
