package generate

import (
	"context"
	"fmt"
	"strings"
)

// ModelConfig selects and tunes the model behind a generation call.
type ModelConfig struct {
	Model       string  `json:"model"`
	Temperature float64 `json:"temperature"`
	MaxTokens   *int    `json:"max_tokens,omitempty"`
}

// DefaultModelConfig returns the standard generation settings.
func DefaultModelConfig() ModelConfig {
	return ModelConfig{Model: "gpt-4", Temperature: 0.1}
}

// Request asks for one policy generation. RetryContext and
// PreviousErrors are populated on retry attempts so the model can fix
// what the validator rejected.
type Request struct {
	SessionID        string
	RequirementsText string
	Model            ModelConfig
	RetryContext     string
	PreviousErrors   []string
}

// Result is the outcome of one generation call.
type Result struct {
	Success        bool
	PolicyContent  string
	ErrorMessage   string
	ModelUsed      string
	TokensUsed     *int
	GenerationTime float64
}

// Successful reports whether the call produced usable policy text.
func (r Result) Successful() bool {
	return r.Success && r.PolicyContent != ""
}

// StreamSink receives generated text chunks as they arrive.
type StreamSink func(chunk string)

// Generator is the external text-generation collaborator. Both
// methods block until generation completes; errors are reported in the
// Result, not as Go errors, so callers treat them as data.
type Generator interface {
	Generate(ctx context.Context, req Request) Result
	GenerateStream(ctx context.Context, req Request, sink StreamSink) Result
}

// RetryContext carries what the model needs to repair a rejected
// policy.
type RetryContext struct {
	OriginalRequirements string
	PreviousPolicy       string
	ValidationErrors     []string
	RetryCount           int
}

// PromptContext renders the retry context as generation prompt text.
func (c RetryContext) PromptContext() string {
	var errs strings.Builder
	for _, e := range c.ValidationErrors {
		fmt.Fprintf(&errs, "- %s\n", e)
	}
	parts := []string{
		fmt.Sprintf("Previous attempt generated this policy:\n%s", c.PreviousPolicy),
		fmt.Sprintf("Validation failed with these errors:\n%s", strings.TrimRight(errs.String(), "\n")),
		"Please fix these issues and generate a corrected policy.",
	}
	return strings.Join(parts, "\n\n")
}
