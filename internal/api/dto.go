package api

import (
	"time"

	"github.com/scribeops/scribe/internal/model"
)

type RequestResponse struct {
	ID              string   `json:"id"`
	SourceItemID    string   `json:"source_item_id"`
	Topic           string   `json:"topic"`
	SourceTitle     string   `json:"source_title"`
	SourceBody      string   `json:"source_body,omitempty"`
	SourceAuthor    string   `json:"source_author,omitempty"`
	SourceURL       string   `json:"source_url,omitempty"`
	DraftText       string   `json:"draft_text"`
	Citations       []string `json:"citations"`
	Confidence      float64  `json:"confidence"`
	Verdict         string   `json:"verdict"`
	ModerationScore float64  `json:"moderation_score"`
	ModerationFlags []string `json:"moderation_flags"`
	State           string   `json:"state"`
	FinalText       string   `json:"final_text,omitempty"`
	PublishedRef    string   `json:"published_ref,omitempty"`
	PublishAttempts int      `json:"publish_attempts"`
	CreatedAt       string   `json:"created_at"`
	UpdatedAt       string   `json:"updated_at"`
	DecidedBy       string   `json:"decided_by,omitempty"`
	DecidedAt       string   `json:"decided_at,omitempty"`
}

type PendingResponse struct {
	Requests []RequestResponse `json:"requests"`
	Total    int               `json:"total"`
}

type AuditEntryResponse struct {
	FromState string `json:"from_state,omitempty"`
	ToState   string `json:"to_state"`
	Actor     string `json:"actor"`
	Note      string `json:"note,omitempty"`
	At        string `json:"at"`
}

type HistoryResponse struct {
	RequestID string               `json:"request_id"`
	Entries   []AuditEntryResponse `json:"entries"`
}

type DecisionRequest struct {
	Decision   string `json:"decision" binding:"required"`
	EditedText string `json:"edited_text"`
	Reviewer   string `json:"reviewer" binding:"required"`
	Note       string `json:"note"`
}

type StatsResponse struct {
	ByState   map[string]int `json:"by_state"`
	Total     int            `json:"total"`
	Published int            `json:"published"`
	Rejected  int            `json:"rejected"`
	Failed    int            `json:"failed"`
	WindowSec int64          `json:"window_sec"`
}

func toRequestResponse(r *model.Request) RequestResponse {
	return RequestResponse{
		ID:              r.ID,
		SourceItemID:    r.SourceItemID,
		Topic:           r.Topic,
		SourceTitle:     r.SourceTitle,
		SourceBody:      r.SourceBody,
		SourceAuthor:    r.SourceAuthor,
		SourceURL:       r.SourceURL,
		DraftText:       r.DraftText,
		Citations:       r.Citations,
		Confidence:      r.Confidence,
		Verdict:         string(r.Verdict),
		ModerationScore: r.ModerationScore,
		ModerationFlags: r.ModerationFlags,
		State:           string(r.State),
		FinalText:       r.FinalText,
		PublishedRef:    r.PublishedRef,
		PublishAttempts: r.PublishAttempts,
		CreatedAt:       r.CreatedAt.Format(time.RFC3339),
		UpdatedAt:       r.UpdatedAt.Format(time.RFC3339),
		DecidedBy:       r.DecidedBy,
		DecidedAt:       formatOptional(r.DecidedAt),
	}
}

func formatOptional(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(time.RFC3339)
}
