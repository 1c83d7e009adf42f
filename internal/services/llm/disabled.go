package llm

import (
	"context"
	"fmt"

	"github.com/vestigolabs/vestigo/internal/interfaces"
)

// DisabledService is the no-op LLM implementation used when no provider is
// configured. Callers check Enabled() and fall back to template output.
type DisabledService struct{}

// NewDisabledService creates the no-op LLM service.
func NewDisabledService() *DisabledService {
	return &DisabledService{}
}

// Chat always fails; callers should check Enabled() first.
func (s *DisabledService) Chat(ctx context.Context, messages []interfaces.Message) (string, error) {
	return "", fmt.Errorf("llm provider is disabled")
}

// Enabled reports that no completions are available.
func (s *DisabledService) Enabled() bool {
	return false
}

// Provider returns the provider identifier.
func (s *DisabledService) Provider() string {
	return "disabled"
}

// HealthCheck always succeeds; there is nothing to probe.
func (s *DisabledService) HealthCheck(ctx context.Context) error {
	return nil
}

// Close is a no-op.
func (s *DisabledService) Close() error {
	return nil
}
