// Package llm implements the drafting collaborator on top of hosted LLM
// APIs. Two providers are supported behind the same interface; the
// engine neither knows nor cares which one is configured.
package llm

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/scribeops/scribe/internal/collab"
)

const promptVersion = "v1"

const systemPrompt = `You are a helpful open-source community assistant. Given a question from a community forum, draft a concise, friendly answer grounded in the project's documentation.

Rules:
1. Answer only what was asked; do not speculate beyond the question
2. Cite the documentation pages you relied on
3. If you cannot answer from documentation, say so and lower your confidence
4. Never include personal information, credentials, or destructive commands
5. Plain text only, no markdown formatting

Output as JSON only, no other text:
{
  "answer": "the drafted reply",
  "citations": ["doc page or URL", "..."],
  "confidence": 0.0-1.0 how well the documentation supports this answer
}`

// Provider names accepted by New.
const (
	ProviderAnthropic = "anthropic"
	ProviderOpenAI    = "openai"
)

// New returns a drafter for the named provider.
func New(provider, apiKey, model string) (collab.Drafter, error) {
	switch provider {
	case ProviderAnthropic:
		return NewAnthropicDrafter(apiKey, model), nil
	case ProviderOpenAI:
		return NewOpenAIDrafter(apiKey, model), nil
	default:
		return nil, fmt.Errorf("unknown llm provider %q", provider)
	}
}

// draftPayload is the JSON shape both providers are prompted to emit.
type draftPayload struct {
	Answer     string   `json:"answer"`
	Citations  []string `json:"citations"`
	Confidence float64  `json:"confidence"`
}

func userPrompt(item collab.Item) string {
	return fmt.Sprintf("Topic: %s\nTitle: %s\n\n%s", item.Topic, item.Title, item.Body)
}

// parseDraft decodes the model's JSON output into a Draft. Confidence is
// clamped to [0,1].
func parseDraft(content string) (collab.Draft, error) {
	content = cleanJSONResponse(content)

	var parsed draftPayload
	if err := json.Unmarshal([]byte(content), &parsed); err != nil {
		return collab.Draft{}, fmt.Errorf("failed to parse response: %w, content: %s", err, content)
	}
	if strings.TrimSpace(parsed.Answer) == "" {
		return collab.Draft{}, fmt.Errorf("empty answer in response")
	}

	confidence := parsed.Confidence
	if confidence < 0 {
		confidence = 0
	}
	if confidence > 1 {
		confidence = 1
	}

	return collab.Draft{
		Text:       parsed.Answer,
		Citations:  parsed.Citations,
		Confidence: confidence,
	}, nil
}

// cleanJSONResponse strips markdown code fences some models wrap around
// JSON output.
func cleanJSONResponse(content string) string {
	content = strings.TrimSpace(content)
	content = strings.TrimPrefix(content, "```json")
	content = strings.TrimPrefix(content, "```")
	content = strings.TrimSuffix(content, "```")
	return strings.TrimSpace(content)
}
