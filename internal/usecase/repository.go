package usecase

import (
	"context"

	"github.com/mithun50/luma-cli/internal/domain"
)

// EventRepository keeps recent change events for late-joining clients.
type EventRepository interface {
	AppendEvent(ctx context.Context, ev domain.ChangeEvent) (domain.EventRecord, error)
	// ListEvents pages forward from the record after id from ("" = oldest).
	// next is the cursor for the following page, "" at the end.
	ListEvents(ctx context.Context, from string, limit int) (events []domain.EventRecord, next string, err error)
	// Recent returns up to n newest events, oldest first; n <= 0 means all.
	Recent(n int) []domain.EventRecord
}
