package llm

import (
	"context"
	"fmt"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/scribeops/scribe/internal/collab"
)

const defaultOpenAIModel = string(openai.ChatModelGPT4oMini)

// OpenAIDrafter drafts answers via the OpenAI chat completions API.
type OpenAIDrafter struct {
	client *openai.Client
	model  openai.ChatModel
}

var _ collab.Drafter = (*OpenAIDrafter)(nil)

// NewOpenAIDrafter builds a drafter; model may be empty to use the
// default.
func NewOpenAIDrafter(apiKey, model string) *OpenAIDrafter {
	if model == "" {
		model = defaultOpenAIModel
	}
	client := openai.NewClient(option.WithAPIKey(apiKey))
	return &OpenAIDrafter{
		client: &client,
		model:  openai.ChatModel(model),
	}
}

// Draft implements collab.Drafter.
func (d *OpenAIDrafter) Draft(ctx context.Context, item collab.Item) (collab.Draft, error) {
	resp, err := d.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: d.model,
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(systemPrompt),
			openai.UserMessage(userPrompt(item)),
		},
	})
	if err != nil {
		return collab.Draft{}, fmt.Errorf("openai API error: %w", err)
	}

	if len(resp.Choices) == 0 {
		return collab.Draft{}, fmt.Errorf("no response from openai")
	}

	return parseDraft(resp.Choices[0].Message.Content)
}
