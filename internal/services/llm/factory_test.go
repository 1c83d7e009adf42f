package llm

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"
	"github.com/vestigolabs/vestigo/internal/common"
	"github.com/vestigolabs/vestigo/internal/interfaces"
)

func testLogger() arbor.ILogger {
	return arbor.NewLogger()
}

func TestNewLLMService_Disabled(t *testing.T) {
	svc, err := NewLLMService(&common.LLMConfig{Provider: "disabled"}, testLogger())
	require.NoError(t, err)

	assert.False(t, svc.Enabled())
	assert.Equal(t, "disabled", svc.Provider())
	assert.NoError(t, svc.HealthCheck(context.Background()))

	_, err = svc.Chat(context.Background(), []interfaces.Message{{Role: "user", Content: "hi"}})
	assert.Error(t, err)
}

func TestNewLLMService_EmptyProviderDefaultsToDisabled(t *testing.T) {
	svc, err := NewLLMService(&common.LLMConfig{}, testLogger())
	require.NoError(t, err)
	assert.False(t, svc.Enabled())
}

func TestNewLLMService_MissingKeyDegradesToDisabled(t *testing.T) {
	for _, provider := range []string{"claude", "gemini"} {
		svc, err := NewLLMService(&common.LLMConfig{Provider: provider}, testLogger())
		require.NoError(t, err, provider)
		assert.False(t, svc.Enabled(), provider)
		assert.Equal(t, "disabled", svc.Provider(), provider)
	}
}

func TestNewLLMService_UnknownProvider(t *testing.T) {
	_, err := NewLLMService(&common.LLMConfig{Provider: "openai"}, testLogger())
	assert.Error(t, err)
}

func TestNewClaudeService_Configured(t *testing.T) {
	svc, err := NewClaudeService(&common.ClaudeConfig{
		APIKey:  "test-key",
		Timeout: 30 * time.Second,
	}, testLogger())
	require.NoError(t, err)

	assert.True(t, svc.Enabled())
	assert.Equal(t, "claude", svc.Provider())
	assert.Equal(t, "claude-haiku-3-5-20241022", svc.config.Model)
	assert.NoError(t, svc.Close())
}

func TestConvertMessagesToClaude(t *testing.T) {
	messages := []interfaces.Message{
		{Role: "system", Content: "be brief"},
		{Role: "user", Content: "hello"},
		{Role: "assistant", Content: "hi"},
		{Role: "user", Content: "more"},
	}

	converted, systemText, err := convertMessagesToClaude(messages)
	require.NoError(t, err)

	assert.Equal(t, "be brief", systemText)
	assert.Len(t, converted, 3)
}

func TestConvertMessagesToClaude_RequiresUserMessage(t *testing.T) {
	_, _, err := convertMessagesToClaude([]interfaces.Message{
		{Role: "system", Content: "be brief"},
	})
	assert.Error(t, err)

	_, _, err = convertMessagesToClaude(nil)
	assert.Error(t, err)
}

func TestConvertMessagesToGemini(t *testing.T) {
	messages := []interfaces.Message{
		{Role: "system", Content: "be brief"},
		{Role: "user", Content: "hello"},
		{Role: "assistant", Content: "hi"},
	}

	contents, systemText, err := convertMessagesToGemini(messages)
	require.NoError(t, err)

	assert.Equal(t, "be brief", systemText)
	require.Len(t, contents, 2)
	assert.Equal(t, "user", contents[0].Role)
	assert.Equal(t, "model", contents[1].Role)
}
