package llm

import (
	"fmt"

	"github.com/ternarybob/arbor"
	"github.com/vestigolabs/vestigo/internal/common"
	"github.com/vestigolabs/vestigo/internal/interfaces"
)

// NewLLMService creates the LLM service implementation selected by
// llm.provider. A provider with no API key degrades to the disabled
// service rather than failing startup.
func NewLLMService(cfg *common.LLMConfig, logger arbor.ILogger) (interfaces.LLMService, error) {
	switch cfg.Provider {
	case "claude":
		if cfg.Claude.APIKey == "" {
			logger.Warn().Msg("Claude provider selected but no API key configured, LLM features disabled")
			return NewDisabledService(), nil
		}
		return NewClaudeService(&cfg.Claude, logger)

	case "gemini":
		if cfg.Gemini.APIKey == "" {
			logger.Warn().Msg("Gemini provider selected but no API key configured, LLM features disabled")
			return NewDisabledService(), nil
		}
		return NewGeminiService(&cfg.Gemini, logger)

	case "disabled", "":
		return NewDisabledService(), nil

	default:
		return nil, fmt.Errorf("unsupported llm provider '%s': must be 'claude', 'gemini', or 'disabled'", cfg.Provider)
	}
}
