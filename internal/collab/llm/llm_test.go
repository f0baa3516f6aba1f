package llm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCleanJSONResponse(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"plain", `{"answer":"x"}`, `{"answer":"x"}`},
		{"fenced", "```json\n{\"answer\":\"x\"}\n```", `{"answer":"x"}`},
		{"bare fence", "```\n{\"answer\":\"x\"}\n```", `{"answer":"x"}`},
		{"whitespace", "  {\"answer\":\"x\"}  ", `{"answer":"x"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, cleanJSONResponse(tt.input))
		})
	}
}

func TestParseDraft(t *testing.T) {
	draft, err := parseDraft(`{"answer":"Use --config.","citations":["docs/config.md"],"confidence":0.85}`)
	require.NoError(t, err)

	assert.Equal(t, "Use --config.", draft.Text)
	assert.Equal(t, []string{"docs/config.md"}, draft.Citations)
	assert.InDelta(t, 0.85, draft.Confidence, 1e-9)
}

func TestParseDraft_ClampsConfidence(t *testing.T) {
	high, err := parseDraft(`{"answer":"a","confidence":1.7}`)
	require.NoError(t, err)
	assert.Equal(t, 1.0, high.Confidence)

	low, err := parseDraft(`{"answer":"a","confidence":-0.2}`)
	require.NoError(t, err)
	assert.Equal(t, 0.0, low.Confidence)
}

func TestParseDraft_RejectsEmptyAnswer(t *testing.T) {
	_, err := parseDraft(`{"answer":"   ","confidence":0.5}`)
	assert.Error(t, err)
}

func TestParseDraft_RejectsMalformedJSON(t *testing.T) {
	_, err := parseDraft(`not json at all`)
	assert.Error(t, err)
}

func TestNew_ProviderSelection(t *testing.T) {
	anthropic, err := New(ProviderAnthropic, "key", "")
	require.NoError(t, err)
	assert.IsType(t, &AnthropicDrafter{}, anthropic)

	openai, err := New(ProviderOpenAI, "key", "")
	require.NoError(t, err)
	assert.IsType(t, &OpenAIDrafter{}, openai)

	_, err = New("groq", "key", "")
	assert.Error(t, err)
}
