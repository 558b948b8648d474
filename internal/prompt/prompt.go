// Package prompt assembles completion prompts and wraps the language
// model behind a small Completer interface.
package prompt

import (
	"context"
	"fmt"
	"strings"
)

// Completer produces a text completion for a prompt. Implementations
// wrap an external language model.
type Completer interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// NoContextPlaceholder fills the context block when the retrieval
// gate decided the question needs no documents. The block is always
// present so the prompt keeps one shape on both paths.
const NoContextPlaceholder = "(no document context was retrieved for this question)"

// Build assembles the final prompt from a context block and the
// question. Pass an empty contextBlock to get the placeholder.
func Build(contextBlock, question string) string {
	if strings.TrimSpace(contextBlock) == "" {
		contextBlock = NoContextPlaceholder
	}

	var b strings.Builder
	b.WriteString("Use the context below to answer the question. ")
	b.WriteString("If the context does not contain the answer, say so instead of guessing.\n\n")
	fmt.Fprintf(&b, "Context:\n%s\n\n", contextBlock)
	fmt.Fprintf(&b, "Question:\n%s", question)
	return b.String()
}
