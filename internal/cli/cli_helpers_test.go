package cli

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/scribeops/scribe/internal/model"
	"github.com/scribeops/scribe/internal/store"
)

// seedDB creates a database with one pending request and returns the
// database path and the request.
func seedDB(t *testing.T) (string, *model.Request) {
	t.Helper()

	path := filepath.Join(t.TempDir(), "scribe.db")
	st, err := store.Open(path)
	require.NoError(t, err)
	defer st.Close()

	req, err := st.CreateFromDraft(context.Background(), store.NewRequest{
		SourceItemID:    "t3_seed1",
		Topic:           "golang",
		SourceTitle:     "How do I cancel a goroutine?",
		SourceAuthor:    "gopher11",
		SourceURL:       "https://reddit.example/t3_seed1",
		DraftText:       "Pass a context and select on ctx.Done().",
		Citations:       []string{"https://go.dev/blog/context"},
		Confidence:      0.9,
		Verdict:         model.VerdictPass,
		ModerationScore: 1.0,
		ModerationFlags: []string{},
		Actor:           "coordinator",
	})
	require.NoError(t, err)
	return path, req
}

// execute runs the CLI with args and returns combined output.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()

	cmd := NewRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}
