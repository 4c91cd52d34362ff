package story

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/dgnsrekt/aistudio/internal/llm"
)

// DefaultInstruction is used when a rewrite job carries no instruction.
const DefaultInstruction = "Rewrite this text."

// ErrEmptyInput is returned when there is nothing to rewrite.
var ErrEmptyInput = errors.New("input text is empty")

// PromptStyle selects how RewritePrompt frames the instruction.
type PromptStyle string

const (
	// PromptSections labels the instruction and the source text.
	PromptSections PromptStyle = ""
	// PromptInline follows the instruction with the text, as the web form
	// has always sent it.
	PromptInline PromptStyle = "inline"
)

// RewritePrompt builds the prompt for a one-shot rewrite. Unknown styles
// use PromptSections.
func RewritePrompt(source, instruction string, style PromptStyle) string {
	instruction = strings.TrimSpace(instruction)
	if instruction == "" {
		instruction = DefaultInstruction
	}
	if style == PromptInline {
		return fmt.Sprintf("%s\n\nText to process: %s", instruction, source)
	}
	return fmt.Sprintf("INSTRUCTION:\n%s\n\nSOURCE TEXT TO REWRITE:\n%s", instruction, source)
}

// Rewrite sends source through a single LLM call. The returned error wraps
// llm.ErrMissingCredential or llm.ErrEmptyResponse when the caller should
// fall back to the source text.
func Rewrite(ctx context.Context, client llm.Client, source, instruction string, style PromptStyle) (string, error) {
	source = strings.TrimSpace(source)
	if source == "" {
		return "", ErrEmptyInput
	}
	if client == nil {
		return "", llm.ErrMissingCredential
	}

	out, err := client.Generate(ctx, RewritePrompt(source, instruction, style))
	if err != nil {
		return "", fmt.Errorf("rewrite: %w", err)
	}
	out = strings.TrimSpace(out)
	if out == "" {
		return "", fmt.Errorf("rewrite: %w", llm.ErrEmptyResponse)
	}
	return out, nil
}
