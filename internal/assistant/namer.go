package assistant

import (
	"context"
	"regexp"
	"strings"
	"unicode"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/berth-dev/slipway/prompts"
)

const (
	// MaxNameLength keeps repository names short enough for Windows paths.
	MaxNameLength = 30
	// MaxDescriptionLength is the longest description GitHub accepts.
	MaxDescriptionLength = 350

	namingTemperature  = 0.9
	fallbackNameWords  = 4
	namingSystemPrompt = "You are a creative naming assistant. You generate short, memorable, fun repository names."
	describeSystem     = "You are a technical writer. You generate concise, professional repository descriptions."
)

var (
	nameSpaces    = regexp.MustCompile(`[\s_]+`)
	nameInvalid   = regexp.MustCompile(`[^a-z0-9-]`)
	nameHyphens   = regexp.MustCompile(`-+`)
	descControl   = regexp.MustCompile(`[\x00-\x1f\x7f-\x9f]`)
	descSpaceRuns = regexp.MustCompile(`\s+`)
)

// Namer suggests repository names and descriptions.
type Namer struct {
	llm    Completer
	logger *zap.Logger
}

// NewNamer creates a Namer. llm may be nil, in which case names are derived
// from the prompt text.
func NewNamer(llm Completer, logger *zap.Logger) *Namer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Namer{llm: llm, logger: logger}
}

// Suggest returns a repository name and description for prompt. It never
// fails; model errors fall back to prompt-derived values.
func (n *Namer) Suggest(ctx context.Context, prompt string) (name, description string) {
	name = n.ask(ctx, namingSystemPrompt, prompts.Naming, prompt, SanitizeName)
	if name == "" {
		name = NameFromPrompt(prompt)
	}
	description = n.ask(ctx, describeSystem, prompts.Description, prompt, SanitizeDescription)
	if description == "" {
		description = SanitizeDescription(prompt)
	}
	return name, description
}

func (n *Namer) ask(ctx context.Context, system, template, prompt string, clean func(string) string) string {
	if n.llm == nil {
		return ""
	}
	msgs := []Message{
		{Role: RoleSystem, Content: system},
		{Role: RoleUser, Content: strings.TrimSpace(template) + " " + prompt},
	}
	raw, err := n.llm.Complete(ctx, msgs, namingTemperature)
	if err != nil {
		n.logger.Warn("generate repository metadata", zap.Error(err))
		return ""
	}
	return clean(raw)
}

// SanitizeName turns raw model output into a valid repository name:
// lowercase letters, digits and single hyphens, at most MaxNameLength long.
func SanitizeName(raw string) string {
	s := strings.Trim(strings.TrimSpace(raw), `"'`)
	s = strings.ToLower(strings.TrimSpace(s))
	s = nameSpaces.ReplaceAllString(s, "-")
	s = nameInvalid.ReplaceAllString(s, "")
	s = nameHyphens.ReplaceAllString(s, "-")
	s = strings.Trim(s, "-")
	if len(s) > MaxNameLength {
		s = strings.TrimRight(s[:MaxNameLength], "-")
	}
	return s
}

// SanitizeDescription removes quotes, control characters, symbols and extra
// whitespace, and truncates to MaxDescriptionLength.
func SanitizeDescription(raw string) string {
	s := strings.Trim(strings.TrimSpace(raw), `"'`)
	s = descSpaceRuns.ReplaceAllString(s, " ")
	s = descControl.ReplaceAllString(s, "")
	s = strings.Map(func(r rune) rune {
		if r < 128 || unicode.IsLetter(r) || unicode.IsDigit(r) || unicode.IsSpace(r) {
			return r
		}
		return -1
	}, s)
	s = strings.TrimSpace(s)

	runes := []rune(s)
	if len(runes) > MaxDescriptionLength {
		s = strings.TrimRight(string(runes[:MaxDescriptionLength-3]), " ") + "..."
	}
	return s
}

// NameFromPrompt derives a name from the first words of prompt, or returns
// "project-<random>" when nothing usable is left.
func NameFromPrompt(prompt string) string {
	words := strings.Fields(prompt)
	if len(words) > fallbackNameWords {
		words = words[:fallbackNameWords]
	}
	if name := SanitizeName(strings.Join(words, " ")); name != "" {
		return name
	}
	return "project-" + strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
}
