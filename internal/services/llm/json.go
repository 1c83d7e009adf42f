package llm

import (
	"encoding/json"
	"fmt"
	"strings"
)

// ExtractJSON pulls the first JSON object out of a model response and
// unmarshals it into out. Model output often wraps the object in prose or
// code fences, so the parse window runs from the first '{' to the last '}'.
func ExtractJSON(text string, out any) error {
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start == -1 || end == -1 || end < start {
		return fmt.Errorf("no JSON object found in response")
	}

	if err := json.Unmarshal([]byte(text[start:end+1]), out); err != nil {
		return fmt.Errorf("failed to parse JSON from response: %w", err)
	}
	return nil
}
