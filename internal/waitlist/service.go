// internal/waitlist/service.go
package waitlist

import (
	"context"

	"github.com/jmoiron/sqlx"
)

// Service defines the interface for the waitlist queue.
type Service interface {
	Enqueue(ctx context.Context, copyID, userRef, contact string) (*Entry, error)
	// EnqueueTx enqueues inside a caller-owned transaction, so a failed loan
	// request and its waitlist entry commit atomically.
	EnqueueTx(ctx context.Context, tx *sqlx.Tx, copyID, userRef, contact string) (*Entry, error)
	// List returns entries oldest first, optionally filtered by copy.
	List(ctx context.Context, copyID string) ([]*Entry, error)
	// NotifyNext marks the oldest waiting entry for the copy as notified and
	// returns it. Returns (nil, nil) when nobody is waiting.
	NotifyNext(ctx context.Context, tx *sqlx.Tx, copyID string) (*Entry, error)
	MarkNotified(ctx context.Context, id string) error
}
