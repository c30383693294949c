// Package prompts holds the text templates compiled into the slipway binary.
package prompts

import _ "embed"

// BuildPreamble is prepended to every build prompt unless build.template overrides it.
//
//go:embed build/preamble.md
var BuildPreamble string

//go:embed assistant/refine_system.md
var RefineSystem string

//go:embed assistant/extract_system.md
var ExtractSystem string

//go:embed assistant/extract.md
var Extract string

//go:embed assistant/naming.md
var Naming string

//go:embed assistant/description.md
var Description string

// GitIgnore seeds .gitignore in a work dir that has none before publishing.
//
//go:embed git/gitignore
var GitIgnore string
