package llm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractJSON_Plain(t *testing.T) {
	var out struct {
		Summary string `json:"summary"`
	}
	err := ExtractJSON(`{"summary": "ok"}`, &out)
	require.NoError(t, err)
	assert.Equal(t, "ok", out.Summary)
}

func TestExtractJSON_WrappedInProse(t *testing.T) {
	text := "Here is the result:\n```json\n{\"summary\": \"wrapped\", \"findings\": [\"a\", \"b\"]}\n```\nLet me know if you need more."

	var out struct {
		Summary  string   `json:"summary"`
		Findings []string `json:"findings"`
	}
	err := ExtractJSON(text, &out)
	require.NoError(t, err)
	assert.Equal(t, "wrapped", out.Summary)
	assert.Equal(t, []string{"a", "b"}, out.Findings)
}

func TestExtractJSON_NoObject(t *testing.T) {
	var out map[string]any
	assert.Error(t, ExtractJSON("no json here", &out))
	assert.Error(t, ExtractJSON("} backwards {", &out))
}

func TestExtractJSON_Malformed(t *testing.T) {
	var out map[string]any
	assert.Error(t, ExtractJSON(`{"summary": }`, &out))
}
