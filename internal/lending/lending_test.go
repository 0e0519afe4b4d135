// internal/lending/lending_test.go
package lending

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"

	"prestalib/internal/catalog"
	"prestalib/internal/errs"
	"prestalib/internal/resolver"
	"prestalib/internal/storage"
	"prestalib/internal/waitlist"
)

type testEnv struct {
	store    *storage.Store
	catalog  catalog.Service
	waitlist waitlist.Service
	lending  Service
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	store, err := storage.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	require.NoError(t, store.Migrate(context.Background()))

	cat := catalog.NewService(store, zerolog.Nop())
	wl := waitlist.NewService(store, zerolog.Nop())
	res := resolver.New(store)
	return &testEnv{
		store:    store,
		catalog:  cat,
		waitlist: wl,
		lending:  NewService(store, cat, wl, res, zerolog.Nop(), rate.NewLimiter(rate.Inf, 0)),
	}
}

func (e *testEnv) createCopy(t *testing.T, input catalog.CopyInput) *catalog.CopyRecord {
	t.Helper()
	rec, err := e.catalog.CreateCopy(context.Background(), input)
	require.NoError(t, err)
	return rec
}

func (e *testEnv) counters(t *testing.T, id string) (available, borrowed int, state string) {
	t.Helper()
	rec, err := e.catalog.GetCopy(context.Background(), id)
	require.NoError(t, err)
	return rec.Available, rec.Borrowed, rec.AvailabilityState
}

// Walks the full lifecycle on an equipment copy with two units: request,
// approve twice, overflow to the waitlist, return, notify.
func TestEquipmentLendingLifecycle(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	rec := env.createCopy(t, catalog.CopyInput{Title: "Proyector", Category: "Equipo", TotalStock: 2})

	// Equipment needs a borrower.
	_, err := env.lending.RequestLoan(ctx, LoanRequest{Element: rec.ID})
	assert.ErrorIs(t, err, errs.ErrValidation)

	outcome, err := env.lending.RequestLoan(ctx, LoanRequest{Element: rec.ID, Borrower: "ana"})
	require.NoError(t, err)
	require.NotNil(t, outcome.Loan)
	assert.Equal(t, StatusPending, outcome.Loan.Status)

	// Requesting does not reserve stock.
	available, borrowed, _ := env.counters(t, rec.ID)
	assert.Equal(t, 2, available)
	assert.Equal(t, 0, borrowed)

	first, err := env.lending.Approve(ctx, outcome.Loan.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusApproved, first.Status)
	available, borrowed, state := env.counters(t, rec.ID)
	assert.Equal(t, 1, available)
	assert.Equal(t, 1, borrowed)
	assert.Equal(t, catalog.AvailabilityAvailable, state)

	second, err := env.lending.RequestLoan(ctx, LoanRequest{Element: rec.ID, Borrower: "beto"})
	require.NoError(t, err)
	_, err = env.lending.Approve(ctx, second.Loan.ID)
	require.NoError(t, err)
	available, borrowed, state = env.counters(t, rec.ID)
	assert.Equal(t, 0, available)
	assert.Equal(t, 2, borrowed)
	assert.Equal(t, catalog.AvailabilityLoaned, state)

	// Stock exhausted: the third request lands on the waitlist.
	third, err := env.lending.RequestLoan(ctx, LoanRequest{Element: rec.ID, Borrower: "carla"})
	require.NoError(t, err)
	assert.Nil(t, third.Loan)
	require.NotNil(t, third.Waitlisted)
	assert.Equal(t, waitlist.StatusWaiting, third.Waitlisted.Status)

	// Returning frees a unit and notifies the queue head.
	returned, err := env.lending.Return(ctx, first.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusReturned, returned.Status)
	require.NotNil(t, returned.ReturnedAt)
	available, borrowed, _ = env.counters(t, rec.ID)
	assert.Equal(t, 1, available)
	assert.Equal(t, 1, borrowed)

	entries, err := env.waitlist.List(ctx, rec.ID)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, waitlist.StatusNotified, entries[0].Status)
}

func TestBookLoanNeedsNoBorrower(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	rec := env.createCopy(t, catalog.CopyInput{Title: "El Aleph", Category: "Libros", TotalStock: 1})

	outcome, err := env.lending.RequestLoan(ctx, LoanRequest{Element: rec.ID})
	require.NoError(t, err)
	require.NotNil(t, outcome.Loan)
	assert.Empty(t, outcome.Loan.Borrower)
}

func TestRequestLoanResolvesTitleReference(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	rec := env.createCopy(t, catalog.CopyInput{Title: "Ficciones", Category: "Libros", TotalStock: 1})

	outcome, err := env.lending.RequestLoan(ctx, LoanRequest{Element: "ficciones"})
	require.NoError(t, err)
	require.NotNil(t, outcome.Loan)
	assert.Equal(t, rec.ID, outcome.Loan.CopyID)

	_, err = env.lending.RequestLoan(ctx, LoanRequest{Element: "no existe"})
	assert.ErrorIs(t, err, errs.ErrNotFound)
}

func TestApproveReturnRoundTripRestoresCounters(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	rec := env.createCopy(t, catalog.CopyInput{Title: "Sofía", Category: "Libros", TotalStock: 3})

	outcome, err := env.lending.RequestLoan(ctx, LoanRequest{Element: rec.ID})
	require.NoError(t, err)
	_, err = env.lending.Approve(ctx, outcome.Loan.ID)
	require.NoError(t, err)
	_, err = env.lending.Return(ctx, outcome.Loan.ID)
	require.NoError(t, err)

	available, borrowed, state := env.counters(t, rec.ID)
	assert.Equal(t, 3, available)
	assert.Equal(t, 0, borrowed)
	assert.Equal(t, catalog.AvailabilityAvailable, state)
}

func TestIllegalTransitionsLeaveCountersUntouched(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	rec := env.createCopy(t, catalog.CopyInput{Title: "Kafka", Category: "Libros", TotalStock: 2})

	pending, err := env.lending.RequestLoan(ctx, LoanRequest{Element: rec.ID})
	require.NoError(t, err)

	// Returning a pending loan.
	_, err = env.lending.Return(ctx, pending.Loan.ID)
	assert.ErrorIs(t, err, errs.ErrInvalidState)

	approved, err := env.lending.Approve(ctx, pending.Loan.ID)
	require.NoError(t, err)

	// Rejecting an approved loan.
	_, err = env.lending.Reject(ctx, approved.ID)
	assert.ErrorIs(t, err, errs.ErrInvalidState)
	// Approving twice.
	_, err = env.lending.Approve(ctx, approved.ID)
	assert.ErrorIs(t, err, errs.ErrInvalidState)

	rejected, err := env.lending.RequestLoan(ctx, LoanRequest{Element: rec.ID})
	require.NoError(t, err)
	_, err = env.lending.Reject(ctx, rejected.Loan.ID)
	require.NoError(t, err)
	// Approving a rejected loan.
	_, err = env.lending.Approve(ctx, rejected.Loan.ID)
	assert.ErrorIs(t, err, errs.ErrInvalidState)

	available, borrowed, _ := env.counters(t, rec.ID)
	assert.Equal(t, 1, available)
	assert.Equal(t, 1, borrowed)
}

func TestApproveConflictWhenStockExhausted(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	rec := env.createCopy(t, catalog.CopyInput{Title: "Único", Category: "Libros", TotalStock: 1})

	first, err := env.lending.RequestLoan(ctx, LoanRequest{Element: rec.ID})
	require.NoError(t, err)
	second, err := env.lending.RequestLoan(ctx, LoanRequest{Element: rec.ID})
	require.NoError(t, err)

	_, err = env.lending.Approve(ctx, first.Loan.ID)
	require.NoError(t, err)

	_, err = env.lending.Approve(ctx, second.Loan.ID)
	assert.ErrorIs(t, err, errs.ErrConflict)

	// The losing loan is still pending and counters are consistent.
	loan, err := env.lending.GetLoan(ctx, second.Loan.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusPending, loan.Status)
	available, borrowed, _ := env.counters(t, rec.ID)
	assert.Equal(t, 0, available)
	assert.Equal(t, 1, borrowed)
}

func TestManualLoanDecrementsImmediately(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	rec := env.createCopy(t, catalog.CopyInput{Title: "Manual", Category: "Equipo", TotalStock: 1})

	loan, err := env.lending.CreateManualLoan(ctx, LoanRequest{Element: rec.ID, Borrower: "ana"})
	require.NoError(t, err)
	assert.Equal(t, StatusApproved, loan.Status)

	available, borrowed, state := env.counters(t, rec.ID)
	assert.Equal(t, 0, available)
	assert.Equal(t, 1, borrowed)
	assert.Equal(t, catalog.AvailabilityLoaned, state)

	// Depleted stock fails the manual path outright, no waitlist fallback.
	_, err = env.lending.CreateManualLoan(ctx, LoanRequest{Element: rec.ID, Borrower: "beto"})
	assert.ErrorIs(t, err, errs.ErrConflict)
}

func TestListLoansFilters(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	rec := env.createCopy(t, catalog.CopyInput{Title: "Listado", Category: "Libros", TotalStock: 5})

	a, err := env.lending.RequestLoan(ctx, LoanRequest{Element: rec.ID})
	require.NoError(t, err)
	_, err = env.lending.RequestLoan(ctx, LoanRequest{Element: rec.ID})
	require.NoError(t, err)
	_, err = env.lending.Approve(ctx, a.Loan.ID)
	require.NoError(t, err)

	pending, err := env.lending.ListLoans(ctx, LoanFilter{Status: StatusPending})
	require.NoError(t, err)
	assert.Len(t, pending, 1)

	approved, err := env.lending.ListLoans(ctx, LoanFilter{Status: StatusApproved, CopyID: rec.ID})
	require.NoError(t, err)
	require.Len(t, approved, 1)
	assert.Equal(t, a.Loan.ID, approved[0].ID)

	all, err := env.lending.ListLoans(ctx, LoanFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func insertUser(t *testing.T, store *storage.Store, id, nombre, documento, username string) {
	t.Helper()
	now := time.Now().UTC()
	query := store.Rebind(`INSERT INTO usuarios (id, nombre, documento, correo, username, password, salt, role, creado_en, actualizado_en)
		VALUES (?, ?, ?, '', ?, 'x', '', 'user', ?, ?)`)
	_, err := store.DB.Exec(query, id, nombre, documento, username, now, now)
	require.NoError(t, err)
}

func TestListLoansEnrichedSummaries(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	insertUser(t, env.store, "u-1", "Marta Gómez", "CC-9", "marta")
	rec := env.createCopy(t, catalog.CopyInput{Title: "Enciclopedia", Category: "Libros", InventoryCode: "ENC-1", TotalStock: 2})

	member, err := env.lending.CreateManualLoan(ctx, LoanRequest{Element: rec.ID, Borrower: "marta"})
	require.NoError(t, err)
	walkIn, err := env.lending.CreateManualLoan(ctx, LoanRequest{Element: rec.ID, Borrower: "Pedro de la Calle"})
	require.NoError(t, err)

	views, err := env.lending.ListLoans(ctx, LoanFilter{})
	require.NoError(t, err)
	require.Len(t, views, 2)

	byID := map[string]*LoanView{}
	for _, view := range views {
		byID[view.ID] = view
	}

	enriched := byID[member.ID]
	require.NotNil(t, enriched.User)
	assert.Equal(t, "marta", enriched.User.Username)
	assert.Equal(t, "CC-9", enriched.User.Document)
	require.NotNil(t, enriched.Copy)
	assert.Equal(t, "Enciclopedia", enriched.Copy.Title)
	assert.Equal(t, "ENC-1", enriched.Copy.InventoryCode)

	// Walk-in borrowers keep their raw reference and get no member summary.
	assert.Nil(t, byID[walkIn.ID].User)
	assert.Equal(t, "Pedro de la Calle", byID[walkIn.ID].Borrower)
}

// A loan whose copy has been retired still lists; its element summary is
// null rather than an error.
func TestListLoansWithRetiredCopy(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	rec := env.createCopy(t, catalog.CopyInput{Title: "Efímero", Category: "Libros", TotalStock: 1})
	loan, err := env.lending.CreateManualLoan(ctx, LoanRequest{Element: rec.ID, Borrower: "ana"})
	require.NoError(t, err)

	_, err = env.store.DB.Exec(env.store.Rebind(`DELETE FROM libros WHERE id = ?`), rec.ID)
	require.NoError(t, err)

	views, err := env.lending.ListLoans(ctx, LoanFilter{})
	require.NoError(t, err)
	require.Len(t, views, 1)
	assert.Equal(t, loan.ID, views[0].ID)
	assert.Equal(t, rec.ID, views[0].CopyID)
	assert.Nil(t, views[0].Copy)
}

// Concurrent approvals must never oversell: with two units and five pending
// loans exactly two approvals succeed.
func TestConcurrentApprovalsRespectStock(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	rec := env.createCopy(t, catalog.CopyInput{Title: "Concurrente", Category: "Libros", TotalStock: 2})

	loanIDs := make([]string, 5)
	for i := range loanIDs {
		outcome, err := env.lending.RequestLoan(ctx, LoanRequest{Element: rec.ID})
		require.NoError(t, err)
		loanIDs[i] = outcome.Loan.ID
	}

	var wg sync.WaitGroup
	var successes, conflicts atomic.Int32
	for _, id := range loanIDs {
		wg.Add(1)
		go func(loanID string) {
			defer wg.Done()
			_, err := env.lending.Approve(ctx, loanID)
			switch {
			case err == nil:
				successes.Add(1)
			case errs.HTTPStatus(err) == 409:
				conflicts.Add(1)
			default:
				t.Errorf("unexpected approve error: %v", err)
			}
		}(id)
	}
	wg.Wait()

	assert.Equal(t, int32(2), successes.Load())
	assert.Equal(t, int32(3), conflicts.Load())

	available, borrowed, state := env.counters(t, rec.ID)
	assert.Equal(t, 0, available)
	assert.Equal(t, 2, borrowed)
	assert.Equal(t, catalog.AvailabilityLoaned, state)
}
