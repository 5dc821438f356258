// Package ports defines the interfaces that separate the host application
// from the provider infrastructure. Implementations live under
// infrastructure/; host code should depend only on these types.
package ports

import (
	"context"
)

// Message roles accepted by the chat capability. Any other role is rejected
// at call time with a message-structure error.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// ChatMessage is a single turn in a chat conversation.
type ChatMessage struct {
	// Role identifies the speaker: RoleSystem, RoleUser, or RoleAssistant.
	Role string `json:"role"`
	// Content is the message text. Must be non-empty.
	Content string `json:"content"`
}

// AnalysisResult is the structured output of the Analyze capability.
// Analysis is advisory: when the upstream model returns something that
// cannot be parsed, clients fill this with neutral fallback values rather
// than failing the call.
type AnalysisResult struct {
	// Sentiment is one of "positive", "negative", "neutral", or "mixed".
	Sentiment string `json:"sentiment"`
	// Score is the sentiment confidence in [0, 1].
	Score float64 `json:"score"`
	// Keywords are salient terms extracted from the text.
	Keywords []string `json:"keywords"`
	// Categories are broad topical labels for the text.
	Categories []string `json:"categories"`
	// Language is a normalized BCP 47 base language tag, or "unknown".
	Language string `json:"language"`
	// Raw holds the original analyzed text when the model output could not
	// be parsed, so callers can tell a fallback from a real result.
	Raw string `json:"raw,omitempty"`
}

// ProviderClient is the capability set every provider variant must support.
// Implementations own an immutable configuration; callers needing different
// parameters must construct a new client through the factory.
type ProviderClient interface {
	// Complete sends a single-turn prompt and returns the generated text.
	// A blank prompt fails with ErrEmptyInput.
	Complete(ctx context.Context, prompt string) (string, error)

	// Chat sends an ordered conversation and returns the assistant reply.
	// An empty sequence fails with ErrEmptyInput; a malformed entry fails
	// with a message-structure error naming the offending index.
	Chat(ctx context.Context, messages []ChatMessage) (string, error)

	// Analyze runs a fixed sentiment/keyword/category analysis over text.
	// Malformed upstream output degrades to a neutral fallback result
	// instead of returning an error.
	Analyze(ctx context.Context, text string) (*AnalysisResult, error)

	// TestConnection issues a lightweight read-only probe with a short
	// fixed timeout. Unreachable or non-2xx upstreams yield (false, nil);
	// a non-nil error means the client itself is misconfigured.
	TestConnection(ctx context.Context) (bool, error)

	// Provider returns the provider id this client was built for.
	Provider() string

	// Model returns the configured model name.
	Model() string
}
