// internal/catalog/service.go
package catalog

import (
	"context"

	"github.com/jmoiron/sqlx"
)

// Service defines the interface for the catalog: copy storage plus the
// aggregation engine that derives logical items from copy rows.
type Service interface {
	CreateCopy(ctx context.Context, input CopyInput) (*CopyRecord, error)
	GetCopy(ctx context.Context, id string) (*CopyRecord, error)
	UpdateCopy(ctx context.Context, id string, patch CopyPatch) error
	ListCopies(ctx context.Context) ([]*CopyRecord, error)

	// ResolveLogicalItem aggregates the copy's whole group. Pure read.
	ResolveLogicalItem(ctx context.Context, copyID string) (*LogicalItem, error)
	// ListLogicalItems aggregates every copy into its group. Pure read.
	ListLogicalItems(ctx context.Context) ([]*LogicalItem, error)
	CategorySummary(ctx context.Context) (map[string]CategoryTotals, error)

	// LockCopy reads the copy row under the transaction's row lock.
	// Mutators must base availability decisions on this read, never on a
	// value fetched before the transaction began.
	LockCopy(ctx context.Context, tx *sqlx.Tx, id string) (*CopyRecord, error)
	// AdjustStock is the single primitive through which counters change.
	// It re-reads under the lock, clamps Borrowed at zero, rejects a
	// negative Available with ErrConflict and recomputes the availability
	// state.
	AdjustStock(ctx context.Context, tx *sqlx.Tx, id string, availDelta, borrowedDelta int) (*CopyRecord, error)
	// GroupCopies returns all copies sharing the record's grouping key,
	// through tx when non-nil (locked for retirement).
	GroupCopies(ctx context.Context, tx *sqlx.Tx, rec *CopyRecord) ([]*CopyRecord, error)
}
