package llm

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/vestigolabs/vestigo/internal/common"
	"github.com/vestigolabs/vestigo/internal/interfaces"
	"google.golang.org/genai"
)

// GeminiService implements the LLMService interface using the Google Gemini API.
type GeminiService struct {
	config  *common.GeminiConfig
	logger  arbor.ILogger
	client  *genai.Client
	timeout time.Duration
}

// convertMessagesToGemini converts []interfaces.Message to Gemini Content
// format. System messages are extracted separately for SystemInstruction;
// the first one wins.
func convertMessagesToGemini(messages []interfaces.Message) ([]*genai.Content, string, error) {
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

	contents := make([]*genai.Content, 0, len(messages))
	var systemText string
	for _, msg := range messages {
		if msg.Role == "system" {
			if systemText == "" {
				systemText = msg.Content
			}
			continue
		}

		var geminiRole string
		switch msg.Role {
		case "assistant":
			geminiRole = genai.RoleModel
		default:
			geminiRole = genai.RoleUser
		}

		contents = append(contents, &genai.Content{
			Role:  geminiRole,
			Parts: []*genai.Part{genai.NewPartFromText(msg.Content)},
		})
	}

	return contents, systemText, nil
}

// NewGeminiService creates a Gemini-backed LLM service from configuration.
func NewGeminiService(geminiConfig *common.GeminiConfig, logger arbor.ILogger) (*GeminiService, error) {
	if geminiConfig.APIKey == "" {
		return nil, fmt.Errorf("Google API key is required for the gemini provider (set GEMINI_API_KEY or llm.gemini.api_key)")
	}

	if geminiConfig.Model == "" {
		geminiConfig.Model = "gemini-3-flash-preview"
	}

	timeout := geminiConfig.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}

	client, err := genai.NewClient(context.Background(), &genai.ClientConfig{
		APIKey:  geminiConfig.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize genai client: %w", err)
	}

	service := &GeminiService{
		config:  geminiConfig,
		logger:  logger,
		client:  client,
		timeout: timeout,
	}

	logger.Debug().
		Str("model", geminiConfig.Model).
		Dur("timeout", timeout).
		Msg("Gemini LLM service initialized")

	return service, nil
}

// Chat generates a completion for the given conversation history.
func (s *GeminiService) Chat(ctx context.Context, messages []interfaces.Message) (string, error) {
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
			Msg("Gemini chat completion failed")
		return "", fmt.Errorf("chat completion failed: %w", err)
	}

	s.logger.Debug().
		Int("message_count", len(messages)).
		Int("response_length", len(response)).
		Dur("duration", time.Since(startTime)).
		Msg("Gemini chat completion completed")

	return response, nil
}

// Enabled reports that this provider performs real completions.
func (s *GeminiService) Enabled() bool {
	return true
}

// Provider returns the provider identifier.
func (s *GeminiService) Provider() string {
	return "gemini"
}

// HealthCheck exercises the API with a minimal probe.
func (s *GeminiService) HealthCheck(ctx context.Context) error {
	if s.client == nil {
		return fmt.Errorf("genai client is not initialized")
	}

	probeCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	response, err := s.generateCompletion(probeCtx, []interfaces.Message{
		{Role: "user", Content: "ping"},
	})
	if err != nil {
		return fmt.Errorf("Gemini health check failed: %w", err)
	}
	if len(strings.TrimSpace(response)) == 0 {
		return fmt.Errorf("Gemini health check returned empty response")
	}

	return nil
}

// Close releases the client.
func (s *GeminiService) Close() error {
	s.client = nil
	return nil
}

func (s *GeminiService) generateCompletion(ctx context.Context, messages []interfaces.Message) (string, error) {
	geminiContents, systemText, err := convertMessagesToGemini(messages)
	if err != nil {
		return "", fmt.Errorf("failed to convert messages to Gemini format: %w", err)
	}

	config := &genai.GenerateContentConfig{}
	if systemText != "" {
		config.SystemInstruction = genai.NewContentFromText(systemText, genai.RoleUser)
	}

	resp, err := s.client.Models.GenerateContent(ctx, s.config.Model, geminiContents, config)
	if err != nil {
		return "", fmt.Errorf("Gemini API call failed: %w", err)
	}

	// Take the first candidate that yields non-empty text.
	var response strings.Builder
	if resp != nil {
		for _, candidate := range resp.Candidates {
			if candidate.Content == nil {
				continue
			}
			for _, part := range candidate.Content.Parts {
				if part.Text != "" {
					response.WriteString(part.Text)
				}
			}
			if response.Len() > 0 {
				break
			}
		}
	}

	if response.Len() == 0 {
		return "", fmt.Errorf("no response generated from Gemini API")
	}

	return response.String(), nil
}
