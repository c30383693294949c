// command.go builds the generator command line.
package execute

import (
	"strings"
)

// CommandConfig describes how to invoke the generator CLI.
type CommandConfig struct {
	Command    string   // e.g. "copilot"
	Flags      []string // always passed
	PromptFlag string   // e.g. "-p"; ignored when PromptViaStdin
	ModelFlag  string   // e.g. "--model"
	Template   string   // prepended to the user prompt when non-empty

	PromptViaStdin bool
}

// FullPrompt returns the prompt the generator actually sees.
func (c CommandConfig) FullPrompt(prompt string) string {
	tmpl := strings.TrimSpace(c.Template)
	if tmpl == "" {
		return prompt
	}
	return tmpl + "\n\n" + prompt
}

// Spec builds the SpawnSpec for req run inside dir.
func (c CommandConfig) Spec(dir string, req Request) SpawnSpec {
	full := c.FullPrompt(req.Prompt)

	argv := []string{c.Command}
	spec := SpawnSpec{Dir: dir}
	if c.PromptViaStdin {
		spec.Stdin = full
	} else {
		argv = append(argv, c.PromptFlag, full)
	}
	argv = append(argv, c.Flags...)
	if req.Model != "" && c.ModelFlag != "" {
		argv = append(argv, c.ModelFlag, req.Model)
	}
	spec.Argv = argv
	return spec
}
