package llm

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/ternarybob/arbor"
	"github.com/vestigolabs/vestigo/internal/common"
	"github.com/vestigolabs/vestigo/internal/interfaces"
)

// ClaudeService implements the LLMService interface using the Anthropic API.
type ClaudeService struct {
	config    *common.ClaudeConfig
	logger    arbor.ILogger
	client    *anthropic.Client
	timeout   time.Duration
	maxTokens int
}

// convertMessagesToClaude converts []interfaces.Message to Claude MessageParam
// format. System messages are extracted separately for the System parameter;
// the first one wins. Returns the user/assistant messages, the system text,
// and an error when the history is unusable.
func convertMessagesToClaude(messages []interfaces.Message) ([]anthropic.MessageParam, string, error) {
	if len(messages) == 0 {
		return nil, "", fmt.Errorf("messages cannot be empty")
	}

	hasUserMessage := false
	for _, msg := range messages {
		if msg.Role == "user" {
			hasUserMessage = true
			break
		}
	}
	if !hasUserMessage {
		return nil, "", fmt.Errorf("at least one message must have role 'user'")
	}

	claudeMessages := make([]anthropic.MessageParam, 0, len(messages))
	var systemText string
	for _, msg := range messages {
		if msg.Role == "system" {
			if systemText == "" {
				systemText = msg.Content
			}
			continue
		}

		switch msg.Role {
		case "assistant":
			claudeMessages = append(claudeMessages, anthropic.NewAssistantMessage(
				anthropic.NewTextBlock(msg.Content),
			))
		default:
			// Unknown roles are treated as user input.
			claudeMessages = append(claudeMessages, anthropic.NewUserMessage(
				anthropic.NewTextBlock(msg.Content),
			))
		}
	}

	return claudeMessages, systemText, nil
}

// NewClaudeService creates a Claude-backed LLM service from configuration.
// The API key must already be resolved (config value or ANTHROPIC_API_KEY
// via the config loader).
func NewClaudeService(claudeConfig *common.ClaudeConfig, logger arbor.ILogger) (*ClaudeService, error) {
	if claudeConfig.APIKey == "" {
		return nil, fmt.Errorf("Anthropic API key is required for the claude provider (set ANTHROPIC_API_KEY or llm.claude.api_key)")
	}

	model := claudeConfig.Model
	if model == "" {
		model = "claude-haiku-3-5-20241022"
		claudeConfig.Model = model
	}

	timeout := claudeConfig.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}

	maxTokens := claudeConfig.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 4096
	}

	client := anthropic.NewClient(
		option.WithAPIKey(claudeConfig.APIKey),
	)

	service := &ClaudeService{
		config:    claudeConfig,
		logger:    logger,
		client:    &client,
		timeout:   timeout,
		maxTokens: maxTokens,
	}

	logger.Debug().
		Str("model", model).
		Dur("timeout", timeout).
		Int("max_tokens", maxTokens).
		Msg("Claude LLM service initialized")

	return service, nil
}

// Chat generates a completion for the given conversation history.
func (s *ClaudeService) Chat(ctx context.Context, messages []interfaces.Message) (string, error) {
	if len(messages) == 0 {
		return "", fmt.Errorf("messages cannot be empty for chat completion")
	}

	timeoutCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	startTime := time.Now()
	response, err := s.generateCompletion(timeoutCtx, messages)
	if err != nil {
		s.logger.Warn().
			Err(err).
			Int("message_count", len(messages)).
			Msg("Claude chat completion failed")
		return "", fmt.Errorf("chat completion failed: %w", err)
	}

	s.logger.Debug().
		Int("message_count", len(messages)).
		Int("response_length", len(response)).
		Dur("duration", time.Since(startTime)).
		Msg("Claude chat completion completed")

	return response, nil
}

// Enabled reports that this provider performs real completions.
func (s *ClaudeService) Enabled() bool {
	return true
}

// Provider returns the provider identifier.
func (s *ClaudeService) Provider() string {
	return "claude"
}

// HealthCheck exercises the API with a minimal probe.
func (s *ClaudeService) HealthCheck(ctx context.Context) error {
	if s.client == nil {
		return fmt.Errorf("Claude client is not initialized")
	}

	probeCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	response, err := s.generateCompletion(probeCtx, []interfaces.Message{
		{Role: "user", Content: "ping"},
	})
	if err != nil {
		return fmt.Errorf("Claude health check failed: %w", err)
	}
	if len(strings.TrimSpace(response)) == 0 {
		return fmt.Errorf("Claude health check returned empty response")
	}

	return nil
}

// Close releases the client.
func (s *ClaudeService) Close() error {
	s.client = nil
	return nil
}

func (s *ClaudeService) generateCompletion(ctx context.Context, messages []interfaces.Message) (string, error) {
	claudeMessages, systemText, err := convertMessagesToClaude(messages)
	if err != nil {
		return "", fmt.Errorf("failed to convert messages to Claude format: %w", err)
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(s.config.Model),
		MaxTokens: int64(s.maxTokens),
		Messages:  claudeMessages,
	}

	if systemText != "" {
		params.System = []anthropic.TextBlockParam{
			{Text: systemText},
		}
	}

	resp, err := s.client.Messages.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("Claude API call failed: %w", err)
	}

	var response strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			response.WriteString(block.Text)
		}
	}

	if response.Len() == 0 {
		return "", fmt.Errorf("no response generated from Claude API")
	}

	return response.String(), nil
}
