package gate

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPlainText(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{
			name: "empty",
			in:   "",
			want: "",
		},
		{
			name: "plain text unchanged",
			in:   "Just a normal answer.",
			want: "Just a normal answer.",
		},
		{
			name: "bold and italic stripped",
			in:   "Use **errors.Is** for *sentinel* checks and __never__ compare _strings_.",
			want: "Use errors.Is for sentinel checks and never compare strings.",
		},
		{
			name: "inline code stripped",
			in:   "Run `go test ./...` first.",
			want: "Run go test ./... first.",
		},
		{
			name: "header flattened",
			in:   "# Installing Packages\n\nUse pip.",
			want: "Installing Packages\n\nUse pip.",
		},
		{
			name: "link keeps text and url",
			in:   "See [the docs](https://docs.python.org) for details.",
			want: "See the docs (https://docs.python.org) for details.",
		},
		{
			name: "lists become bullets",
			in:   "1. Open a terminal\n2. Install it\n- check the output",
			want: "• Open a terminal\n• Install it\n• check the output",
		},
		{
			name: "code fence unwrapped",
			in:   "Example:\n```\nimport requests\n```",
			want: "Example:\nimport requests",
		},
		{
			name: "blank runs collapsed",
			in:   "First.\n\n\n\nSecond.",
			want: "First.\n\nSecond.",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, PlainText(tt.in))
		})
	}
}
