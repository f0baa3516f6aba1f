// Package moderation implements the moderation collaborator as a local
// lexicon scanner: flagged keywords, PII patterns, and a hard blocklist.
package moderation

import (
	"context"
	"regexp"
	"strings"

	"github.com/scribeops/scribe/internal/collab"
	"github.com/scribeops/scribe/internal/model"
)

// Default keyword lists. Flagged keywords drop the safety score and
// surface to the reviewer; blocked terms reject the draft outright.
var (
	defaultFlaggedKeywords = []string{
		"personal information",
		"private details",
		"phone number",
		"email address",
		"password",
		"ssn",
		"social security number",
		"credit card",
		"unsafe command",
	}

	defaultBlockedTerms = []string{
		"rm -rf /",
		"disable your antivirus",
		"send me your credentials",
	}
)

// PII patterns checked against the draft text. Regex matching produces
// false positives; a match flags, it does not block.
var piiPatterns = map[string]*regexp.Regexp{
	"phone_number":  regexp.MustCompile(`(?i)\b(?:\+?\d{1,3}[-.\s]?)?\(?\d{3}\)?[-.\s]?\d{3}[-.\s]?\d{4}\b`),
	"email_address": regexp.MustCompile(`(?i)\b[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}\b`),
}

const (
	flagPenalty  = 0.2
	blockedScore = 0.0
)

// Lexicon scores drafts against keyword and PII lists.
type Lexicon struct {
	flagged []string
	blocked []string
}

var _ collab.Moderator = (*Lexicon)(nil)

// New returns a Lexicon with the default lists. Extra flagged keywords
// and blocked terms extend, not replace, the defaults.
func New(extraFlagged, extraBlocked []string) *Lexicon {
	return &Lexicon{
		flagged: append(append([]string{}, defaultFlaggedKeywords...), extraFlagged...),
		blocked: append(append([]string{}, defaultBlockedTerms...), extraBlocked...),
	}
}

// Score classifies text. A blocked term yields BLOCKED with score 0; any
// flagged keyword or PII match yields FLAGGED with a reduced score;
// otherwise PASS with score 1.
func (l *Lexicon) Score(_ context.Context, text string) (collab.Screening, error) {
	lower := strings.ToLower(text)

	for _, term := range l.blocked {
		if strings.Contains(lower, strings.ToLower(term)) {
			return collab.Screening{
				Verdict: model.VerdictBlocked,
				Score:   blockedScore,
				Flags:   []string{"blocked:" + term},
			}, nil
		}
	}

	var flags []string
	for _, keyword := range l.flagged {
		if strings.Contains(lower, strings.ToLower(keyword)) {
			flags = append(flags, "keyword:"+keyword)
		}
	}
	for name, pattern := range piiPatterns {
		if pattern.MatchString(text) {
			flags = append(flags, "pii:"+name)
		}
	}

	if len(flags) == 0 {
		return collab.Screening{Verdict: model.VerdictPass, Score: 1.0}, nil
	}

	score := 1.0 - flagPenalty*float64(len(flags))
	if score < 0.1 {
		score = 0.1
	}
	return collab.Screening{
		Verdict: model.VerdictFlagged,
		Score:   score,
		Flags:   flags,
	}, nil
}
