package gate

import (
	"regexp"
	"strings"
)

var (
	codeFenceRe   = regexp.MustCompile("(?s)```(.*?)```")
	inlineCodeRe  = regexp.MustCompile("`([^`]+)`")
	headerRe      = regexp.MustCompile(`(?m)^#{1,6}\s*(.+)$`)
	boldStarRe    = regexp.MustCompile(`\*\*([^*]+)\*\*`)
	italicStarRe  = regexp.MustCompile(`\*([^*]+)\*`)
	boldUnderRe   = regexp.MustCompile(`__([^_]+)__`)
	italicUnderRe = regexp.MustCompile(`_([^_]+)_`)
	linkRe        = regexp.MustCompile(`\[([^\]]+)\]\(([^)]+)\)`)
	bulletRe      = regexp.MustCompile(`(?m)^\s*[-*+]\s+`)
	numberedRe    = regexp.MustCompile(`(?m)^\s*\d+\.\s+`)
	leftoverRe    = regexp.MustCompile("[*_~`]")
	blankRunsRe   = regexp.MustCompile(`\n\s*\n\s*\n+`)
	edgeSpaceRe   = regexp.MustCompile(`(?m)^[ \t]+|[ \t]+$`)
)

// PlainText strips markdown formatting from an answer before it is
// published: the platform renders replies as plain text, so headers,
// emphasis, links, and lists are flattened while their content is kept.
func PlainText(text string) string {
	if text == "" {
		return text
	}

	text = codeFenceRe.ReplaceAllStringFunc(text, func(block string) string {
		return strings.TrimSpace(strings.ReplaceAll(block, "```", ""))
	})
	text = inlineCodeRe.ReplaceAllString(text, "$1")
	text = headerRe.ReplaceAllString(text, "$1\n")
	text = boldStarRe.ReplaceAllString(text, "$1")
	text = italicStarRe.ReplaceAllString(text, "$1")
	text = boldUnderRe.ReplaceAllString(text, "$1")
	text = italicUnderRe.ReplaceAllString(text, "$1")
	text = linkRe.ReplaceAllString(text, "$1 ($2)")
	text = bulletRe.ReplaceAllString(text, "• ")
	text = numberedRe.ReplaceAllString(text, "• ")
	text = leftoverRe.ReplaceAllString(text, "")
	text = blankRunsRe.ReplaceAllString(text, "\n\n")
	text = edgeSpaceRe.ReplaceAllString(text, "")

	return strings.TrimSpace(text)
}
