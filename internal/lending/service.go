// internal/lending/service.go
package lending

import "context"

// Service defines the interface for the loan state machine. The two creation
// paths are separate operations so transition legality stays explicit per
// entry point: RequestLoan creates a Pending loan without touching stock,
// CreateManualLoan creates an Approved loan and decrements stock immediately.
type Service interface {
	RequestLoan(ctx context.Context, req LoanRequest) (*RequestOutcome, error)
	CreateManualLoan(ctx context.Context, req LoanRequest) (*LoanRecord, error)
	Approve(ctx context.Context, loanID string) (*LoanRecord, error)
	Reject(ctx context.Context, loanID string) (*LoanRecord, error)
	Return(ctx context.Context, loanID string) (*LoanRecord, error)
	GetLoan(ctx context.Context, id string) (*LoanRecord, error)
	// ListLoans returns loans enriched with borrower and copy summaries;
	// either summary is nil when its row no longer exists.
	ListLoans(ctx context.Context, filter LoanFilter) ([]*LoanView, error)
}
