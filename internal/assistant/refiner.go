package assistant

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/berth-dev/slipway/prompts"
)

// ReadyMarker in a model reply means it has enough to write the build prompt.
const ReadyMarker = "REFINED PROMPT READY"

const (
	refineTemperature  = 0.7
	extractTemperature = 0.3

	notConfiguredReply = "AI refinement is not configured. Your messages are being collected; " +
		"type /build when you are ready."
	emptyReply = "I'm having trouble processing that. Could you try rephrasing?"
)

// Reply is the assistant's answer to one user turn.
type Reply struct {
	Text  string
	Ready bool
}

// Refiner runs the clarifying-question conversation.
type Refiner struct {
	llm    Completer
	logger *zap.Logger
}

// NewRefiner creates a Refiner. llm may be nil.
func NewRefiner(llm Completer, logger *zap.Logger) *Refiner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Refiner{llm: llm, logger: logger}
}

// Configured reports whether a model is available.
func (r *Refiner) Configured() bool { return r.llm != nil }

// IsReady reports whether reply carries ReadyMarker, ignoring case.
func IsReady(reply string) bool {
	return strings.Contains(strings.ToLower(reply), strings.ToLower(ReadyMarker))
}

// Reply answers text given the conversation so far. Readiness is only
// reported; the build prompt is extracted by Finalize.
func (r *Refiner) Reply(ctx context.Context, history []Message, text string) (Reply, error) {
	if r.llm == nil {
		return Reply{Text: notConfiguredReply}, nil
	}

	msgs := make([]Message, 0, len(history)+2)
	msgs = append(msgs, Message{Role: RoleSystem, Content: prompts.RefineSystem})
	msgs = append(msgs, history...)
	msgs = append(msgs, Message{Role: RoleUser, Content: text})

	out, err := r.llm.Complete(ctx, msgs, refineTemperature)
	if err != nil {
		if ctx.Err() != nil {
			return Reply{}, err
		}
		r.logger.Warn("refinement reply", zap.Error(err))
		return Reply{Text: emptyReply}, nil
	}

	return Reply{Text: out, Ready: IsReady(out)}, nil
}

// Finalize returns the build prompt for the conversation. Without a model,
// or when extraction fails, it is the user turns joined by blank lines. The
// error is non-nil only when ctx ended.
func (r *Refiner) Finalize(ctx context.Context, history []Message) (string, error) {
	if r.llm != nil {
		prompt, err := r.extract(ctx, history)
		if err == nil && prompt != "" {
			return prompt, nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", ctxErr
		}
		if err != nil {
			r.logger.Warn("extract refined prompt, using user turns", zap.Error(err))
		}
	}
	return JoinUserTurns(history), nil
}

func (r *Refiner) extract(ctx context.Context, history []Message) (string, error) {
	msgs := make([]Message, 0, len(history)+2)
	msgs = append(msgs, Message{Role: RoleSystem, Content: prompts.ExtractSystem})
	msgs = append(msgs, history...)
	msgs = append(msgs, Message{Role: RoleUser, Content: prompts.Extract})

	out, err := r.llm.Complete(ctx, msgs, extractTemperature)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(out), nil
}

// JoinUserTurns concatenates the user messages of history.
func JoinUserTurns(history []Message) string {
	var parts []string
	for _, m := range history {
		if m.Role == RoleUser {
			parts = append(parts, m.Content)
		}
	}
	return strings.Join(parts, "\n\n")
}
