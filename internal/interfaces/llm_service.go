package interfaces

import (
	"context"
)

// Message represents a single message in a chat conversation
type Message struct {
	// Role identifies the message sender: "user", "assistant", or "system"
	Role string

	// Content contains the text content of the message
	Content string
}

// LLMService is the text-generation collaborator used for query expansion
// and synthesis. Callers must tolerate a disabled service and fall back to
// deterministic templates.
type LLMService interface {
	// Chat generates a completion from the conversation history. The messages
	// slice contains system prompts, user messages, and prior assistant turns
	// in chronological order.
	Chat(ctx context.Context, messages []Message) (string, error)

	// Enabled reports whether the service can generate completions. Disabled
	// services return an error from Chat without any network activity.
	Enabled() bool

	// Provider returns the provider identifier ("claude", "gemini", "disabled")
	Provider() string

	// HealthCheck verifies connectivity and authentication
	HealthCheck(ctx context.Context) error

	// Close releases provider resources
	Close() error
}
