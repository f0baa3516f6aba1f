package llm

import (
	"context"
	"fmt"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/scribeops/scribe/internal/collab"
)

const defaultAnthropicModel = string(anthropic.ModelClaudeHaiku4_5)

// AnthropicDrafter drafts answers via the Anthropic Messages API.
type AnthropicDrafter struct {
	client *anthropic.Client
	model  anthropic.Model
}

var _ collab.Drafter = (*AnthropicDrafter)(nil)

// NewAnthropicDrafter builds a drafter; model may be empty to use the
// default.
func NewAnthropicDrafter(apiKey, model string) *AnthropicDrafter {
	if model == "" {
		model = defaultAnthropicModel
	}
	client := anthropic.NewClient(option.WithAPIKey(apiKey))
	return &AnthropicDrafter{
		client: &client,
		model:  anthropic.Model(model),
	}
}

// Draft implements collab.Drafter.
func (d *AnthropicDrafter) Draft(ctx context.Context, item collab.Item) (collab.Draft, error) {
	resp, err := d.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     d.model,
		MaxTokens: 1024,
		System: []anthropic.TextBlockParam{
			{Text: systemPrompt},
		},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(userPrompt(item))),
		},
	})
	if err != nil {
		return collab.Draft{}, fmt.Errorf("anthropic API error: %w", err)
	}

	if len(resp.Content) == 0 {
		return collab.Draft{}, fmt.Errorf("no response from anthropic")
	}

	return parseDraft(resp.Content[0].Text)
}
