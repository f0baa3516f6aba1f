package engine

import (
	"errors"
	"fmt"
)

// OrphanedItemError reports that a source item was admitted but no
// request could be created for it. Nothing is persisted for the item;
// the poller re-admits it once the orphan timeout passes.
type OrphanedItemError struct {
	SourceItemID string
	Err          error
}

func (e *OrphanedItemError) Error() string {
	return fmt.Sprintf("item %s orphaned: %v", e.SourceItemID, e.Err)
}

func (e *OrphanedItemError) Unwrap() error { return e.Err }

// IsOrphanedItem reports whether err marks a source item as orphaned.
func IsOrphanedItem(err error) bool {
	var oe *OrphanedItemError
	return errors.As(err, &oe)
}
