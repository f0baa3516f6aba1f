package collab

import (
	"context"
	"fmt"
	"log/slog"
)

// DryRunPlatform logs would-be publishes instead of performing them.
// Returned references are deterministic per source item so repeated
// publish attempts stay idempotent.
type DryRunPlatform struct {
	Logger *slog.Logger
}

var _ Platform = (*DryRunPlatform)(nil)

func (d *DryRunPlatform) Publish(_ context.Context, sourceItemID, text string) (string, error) {
	if d.Logger != nil {
		d.Logger.Info("dry run, skipping publish",
			"source_item_id", sourceItemID,
			"chars", len(text))
	}
	return fmt.Sprintf("dryrun:%s", sourceItemID), nil
}
