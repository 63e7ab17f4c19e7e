package openai

import (
	"encoding/json"
	"fmt"
	"strings"

	"partsync-backend/internal/llm"
)

// Message represents an OpenAI chat message.
type Message struct {
	Role    string
	Content string
}

const systemPromptClassify = `You are a part catalog classification engine.
For every part key in the user message, produce a short trade description and
assign exactly one category from the list below. Respond with a JSON array of
objects {"key","description","category","isManual"} and nothing else. Use
isManual=false for every item. Keep descriptions under 120 characters.`

// BuildClassifyPrompt creates the chat messages for one classification batch.
// The category list is enumerated in the system message; the batch items are
// serialized as JSON in the user message.
func BuildClassifyPrompt(categories []string, items []llm.BatchItem) []Message {
	var sb strings.Builder
	sb.WriteString(systemPromptClassify)
	sb.WriteString("\n\nAllowed categories:\n")
	for _, c := range categories {
		fmt.Fprintf(&sb, "- %s\n", c)
	}
	if len(categories) == 0 {
		sb.WriteString("- Uncategorized\n")
	}

	return []Message{
		{Role: "system", Content: sb.String()},
		{Role: "user", Content: buildBatchPayload(items)},
	}
}

func buildBatchPayload(items []llm.BatchItem) string {
	data, err := json.Marshal(items)
	if err != nil {
		// BatchItem has only string fields; marshal cannot fail in practice.
		return "[]"
	}
	return fmt.Sprintf("Classify these parts:\n%s", string(data))
}
