// internal/retirement/service.go
package retirement

import "context"

// Service defines the interface for retiring logical items. Retiring deletes
// every copy in the group plus its favorites and waitlist entries, but never
// its loans; loans keep dangling copy ids on purpose so the audit trail
// survives.
type Service interface {
	Retire(ctx context.Context, copyRef string, input RetireInput) (*HistoryRecord, error)
	GetHistory(ctx context.Context, id string) (*HistoryRecord, error)
	ListHistory(ctx context.Context) ([]*HistoryRecord, error)
}
