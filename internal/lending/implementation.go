// internal/lending/implementation.go
package lending

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/doug-martin/goqu/v9"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"

	"prestalib/internal/catalog"
	"prestalib/internal/errs"
	"prestalib/internal/resolver"
	"prestalib/internal/storage"
	"prestalib/internal/waitlist"
)

type service struct {
	store       *storage.Store
	catalog     catalog.Service
	waitlist    waitlist.Service
	resolver    *resolver.Resolver
	logger      zerolog.Logger
	tracer      trace.Tracer
	rateLimiter *rate.Limiter
}

// NewService creates the loan state machine. A nil limiter falls back to the
// default request limit; tests pass rate.NewLimiter(rate.Inf, 0).
func NewService(store *storage.Store, cat catalog.Service, wl waitlist.Service, res *resolver.Resolver, logger zerolog.Logger, limiter *rate.Limiter) Service {
	if limiter == nil {
		limiter = rate.NewLimiter(rate.Every(time.Second), 20)
	}
	return &service{
		store:       store,
		catalog:     cat,
		waitlist:    wl,
		resolver:    res,
		logger:      logger.With().Str("component", "lending").Logger(),
		tracer:      otel.Tracer("prestalib/lending"),
		rateLimiter: limiter,
	}
}

const loanColumns = `id, id_elemento, id_usuario, fecha_prestamo, fecha_devolucion, observaciones, estado, creado_en, actualizado_en`

// requireBorrower enforces the business rule that every category except books
// needs a borrower reference.
func requireBorrower(copy *catalog.CopyRecord, borrower string) error {
	if !copy.IsBookCategory() && borrower == "" {
		return fmt.Errorf("%w: id_usuario is required for category %q", errs.ErrValidation, copy.Category)
	}
	return nil
}

func (s *service) RequestLoan(ctx context.Context, req LoanRequest) (*RequestOutcome, error) {
	ctx, span := s.tracer.Start(ctx, "lending.request",
		trace.WithAttributes(attribute.String("loan.element", req.Element)),
	)
	defer span.End()

	if !s.rateLimiter.Allow() {
		return nil, fmt.Errorf("%w: too many loan requests", errs.ErrConflict)
	}

	copyID, err := s.resolver.ResolveCopyID(ctx, req.Element)
	if err != nil {
		return nil, err
	}
	borrower, err := s.resolver.ResolveBorrower(ctx, req.Borrower)
	if err != nil {
		return nil, err
	}

	outcome := &RequestOutcome{}
	err = s.store.WithTx(ctx, func(tx *sqlx.Tx) error {
		copy, err := s.catalog.LockCopy(ctx, tx, copyID)
		if err != nil {
			return err
		}
		if err := requireBorrower(copy, borrower); err != nil {
			return err
		}

		// No stock left: land on the waitlist instead of failing.
		if copy.Available <= 0 {
			entry, err := s.waitlist.EnqueueTx(ctx, tx, copy.ID, borrower, "")
			if err != nil {
				return err
			}
			outcome.Waitlisted = entry
			return nil
		}

		loan, err := s.insertLoan(ctx, tx, copy.ID, borrower, req.Notes, StatusPending)
		if err != nil {
			return err
		}
		outcome.Loan = loan
		return nil
	})
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	if outcome.Waitlisted != nil {
		span.SetAttributes(attribute.Bool("loan.waitlisted", true))
		s.logger.Info().Str("copy_id", copyID).Str("entry_id", outcome.Waitlisted.ID).Msg("request landed on waitlist")
	} else {
		s.logger.Info().Str("copy_id", copyID).Str("loan_id", outcome.Loan.ID).Msg("loan requested")
	}
	return outcome, nil
}

func (s *service) CreateManualLoan(ctx context.Context, req LoanRequest) (*LoanRecord, error) {
	ctx, span := s.tracer.Start(ctx, "lending.manual",
		trace.WithAttributes(attribute.String("loan.element", req.Element)),
	)
	defer span.End()

	copyID, err := s.resolver.ResolveCopyID(ctx, req.Element)
	if err != nil {
		return nil, err
	}
	borrower, err := s.resolver.ResolveBorrower(ctx, req.Borrower)
	if err != nil {
		return nil, err
	}

	var loan *LoanRecord
	err = s.store.WithTx(ctx, func(tx *sqlx.Tx) error {
		copy, err := s.catalog.LockCopy(ctx, tx, copyID)
		if err != nil {
			return err
		}
		if err := requireBorrower(copy, borrower); err != nil {
			return err
		}
		if _, err := s.catalog.AdjustStock(ctx, tx, copy.ID, -1, 1); err != nil {
			return err
		}
		loan, err = s.insertLoan(ctx, tx, copy.ID, borrower, req.Notes, StatusApproved)
		return err
	})
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	s.logger.Info().Str("copy_id", copyID).Str("loan_id", loan.ID).Msg("manual loan created")
	return loan, nil
}

func (s *service) Approve(ctx context.Context, loanID string) (*LoanRecord, error) {
	ctx, span := s.tracer.Start(ctx, "lending.approve",
		trace.WithAttributes(attribute.String("loan.id", loanID)),
	)
	defer span.End()

	var loan *LoanRecord
	err := s.store.WithTx(ctx, func(tx *sqlx.Tx) error {
		var err error
		loan, err = s.lockLoan(ctx, tx, loanID)
		if err != nil {
			return err
		}
		if loan.Status != StatusPending {
			return fmt.Errorf("%w: cannot approve a %s loan", errs.ErrInvalidState, loan.Status)
		}

		copy, err := s.catalog.LockCopy(ctx, tx, loan.CopyID)
		if err != nil {
			return err
		}
		// Borrower rule may have been relaxed at request time by a later
		// category edit; re-check before committing stock.
		if err := requireBorrower(copy, loan.Borrower); err != nil {
			return err
		}
		if _, err := s.catalog.AdjustStock(ctx, tx, loan.CopyID, -1, 1); err != nil {
			return err
		}

		loan.Status = StatusApproved
		return s.updateLoan(ctx, tx, loan)
	})
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	s.logger.Info().Str("loan_id", loanID).Msg("loan approved")
	return loan, nil
}

func (s *service) Reject(ctx context.Context, loanID string) (*LoanRecord, error) {
	ctx, span := s.tracer.Start(ctx, "lending.reject",
		trace.WithAttributes(attribute.String("loan.id", loanID)),
	)
	defer span.End()

	var loan *LoanRecord
	err := s.store.WithTx(ctx, func(tx *sqlx.Tx) error {
		var err error
		loan, err = s.lockLoan(ctx, tx, loanID)
		if err != nil {
			return err
		}
		if loan.Status != StatusPending {
			return fmt.Errorf("%w: cannot reject a %s loan", errs.ErrInvalidState, loan.Status)
		}

		loan.Status = StatusRejected
		return s.updateLoan(ctx, tx, loan)
	})
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	s.logger.Info().Str("loan_id", loanID).Msg("loan rejected")
	return loan, nil
}

func (s *service) Return(ctx context.Context, loanID string) (*LoanRecord, error) {
	ctx, span := s.tracer.Start(ctx, "lending.return",
		trace.WithAttributes(attribute.String("loan.id", loanID)),
	)
	defer span.End()

	var notifiedEntry string
	var loan *LoanRecord
	err := s.store.WithTx(ctx, func(tx *sqlx.Tx) error {
		var err error
		loan, err = s.lockLoan(ctx, tx, loanID)
		if err != nil {
			return err
		}
		if loan.Status != StatusApproved {
			return fmt.Errorf("%w: cannot return a %s loan", errs.ErrInvalidState, loan.Status)
		}

		if _, err := s.catalog.AdjustStock(ctx, tx, loan.CopyID, 1, -1); err != nil {
			return err
		}

		now := time.Now().UTC()
		loan.Status = StatusReturned
		loan.ReturnedAt = &now
		if err := s.updateLoan(ctx, tx, loan); err != nil {
			return err
		}

		// Notification rides the same transaction as the counter update so
		// the queue can never advance on a rolled-back return.
		entry, err := s.waitlist.NotifyNext(ctx, tx, loan.CopyID)
		if err != nil {
			return err
		}
		if entry != nil {
			notifiedEntry = entry.ID
		}
		return nil
	})
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	event := s.logger.Info().Str("loan_id", loanID).Str("copy_id", loan.CopyID)
	if notifiedEntry != "" {
		event = event.Str("notified_entry", notifiedEntry)
	}
	event.Msg("loan returned")
	return loan, nil
}

func (s *service) GetLoan(ctx context.Context, id string) (*LoanRecord, error) {
	var loan LoanRecord
	query := s.store.Rebind(`SELECT ` + loanColumns + ` FROM prestamos WHERE id = ?`)
	if err := s.store.DB.GetContext(ctx, &loan, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: loan %s", errs.ErrNotFound, id)
		}
		return nil, fmt.Errorf("get loan: %w", err)
	}
	return &loan, nil
}

func (s *service) ListLoans(ctx context.Context, filter LoanFilter) ([]*LoanView, error) {
	ds := goqu.Dialect(s.store.GoquDialect()).
		From("prestamos").
		Select(
			goqu.C("id"), goqu.C("id_elemento"), goqu.C("id_usuario"),
			goqu.C("fecha_prestamo"), goqu.C("fecha_devolucion"),
			goqu.C("observaciones"), goqu.C("estado"),
			goqu.C("creado_en"), goqu.C("actualizado_en"),
		).
		Order(goqu.C("creado_en").Desc(), goqu.C("id").Desc())
	if filter.Status != "" {
		ds = ds.Where(goqu.C("estado").Eq(filter.Status))
	}
	if filter.CopyID != "" {
		ds = ds.Where(goqu.C("id_elemento").Eq(filter.CopyID))
	}
	if filter.Borrower != "" {
		ds = ds.Where(goqu.C("id_usuario").Eq(filter.Borrower))
	}

	query, _, err := ds.ToSQL()
	if err != nil {
		return nil, fmt.Errorf("build loan query: %w", err)
	}

	loans := []*LoanRecord{}
	if err := s.store.DB.SelectContext(ctx, &loans, query); err != nil {
		return nil, fmt.Errorf("list loans: %w", err)
	}

	copies, err := s.copySummaries(ctx, loans)
	if err != nil {
		return nil, err
	}
	borrowers, err := s.borrowerSummaries(ctx, loans)
	if err != nil {
		return nil, err
	}

	views := make([]*LoanView, 0, len(loans))
	for _, loan := range loans {
		views = append(views, &LoanView{
			LoanRecord: *loan,
			User:       borrowers[loan.Borrower],
			Copy:       copies[loan.CopyID],
		})
	}
	return views, nil
}

// copySummaries fetches the copies still backing the given loans. Retired
// copies are simply absent from the map.
func (s *service) copySummaries(ctx context.Context, loans []*LoanRecord) (map[string]*ElementSummary, error) {
	ids := []string{}
	seen := map[string]bool{}
	for _, loan := range loans {
		if !seen[loan.CopyID] {
			seen[loan.CopyID] = true
			ids = append(ids, loan.CopyID)
		}
	}
	summaries := map[string]*ElementSummary{}
	if len(ids) == 0 {
		return summaries, nil
	}

	query, _, err := goqu.Dialect(s.store.GoquDialect()).
		From("libros").
		Select(goqu.C("id"), goqu.C("titulo"), goqu.C("categoria"), goqu.C("codigo_inventario"), goqu.C("estado_disponibilidad")).
		Where(goqu.C("id").In(ids)).
		ToSQL()
	if err != nil {
		return nil, fmt.Errorf("build copy summary query: %w", err)
	}

	rows := []*ElementSummary{}
	if err := s.store.DB.SelectContext(ctx, &rows, query); err != nil {
		return nil, fmt.Errorf("copy summaries: %w", err)
	}
	for _, row := range rows {
		summaries[row.ID] = row
	}
	return summaries, nil
}

// borrowerSummaries fetches the members behind the given loans' borrower
// references. Walk-in references match no member and stay out of the map.
func (s *service) borrowerSummaries(ctx context.Context, loans []*LoanRecord) (map[string]*BorrowerSummary, error) {
	refs := []string{}
	seen := map[string]bool{}
	for _, loan := range loans {
		if loan.Borrower != "" && !seen[loan.Borrower] {
			seen[loan.Borrower] = true
			refs = append(refs, loan.Borrower)
		}
	}
	summaries := map[string]*BorrowerSummary{}
	if len(refs) == 0 {
		return summaries, nil
	}

	query, _, err := goqu.Dialect(s.store.GoquDialect()).
		From("usuarios").
		Select(goqu.C("id"), goqu.C("nombre"), goqu.C("documento"), goqu.C("username")).
		Where(goqu.C("id").In(refs)).
		ToSQL()
	if err != nil {
		return nil, fmt.Errorf("build borrower summary query: %w", err)
	}

	rows := []*BorrowerSummary{}
	if err := s.store.DB.SelectContext(ctx, &rows, query); err != nil {
		return nil, fmt.Errorf("borrower summaries: %w", err)
	}
	for _, row := range rows {
		summaries[row.ID] = row
	}
	return summaries, nil
}

func (s *service) lockLoan(ctx context.Context, tx *sqlx.Tx, id string) (*LoanRecord, error) {
	var loan LoanRecord
	query := s.store.Rebind(`SELECT ` + loanColumns + ` FROM prestamos WHERE id = ?` + s.store.LockSuffix())
	if err := tx.GetContext(ctx, &loan, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: loan %s", errs.ErrNotFound, id)
		}
		return nil, fmt.Errorf("lock loan: %w", err)
	}
	return &loan, nil
}

func (s *service) insertLoan(ctx context.Context, tx *sqlx.Tx, copyID, borrower, notes, status string) (*LoanRecord, error) {
	now := time.Now().UTC()
	loan := &LoanRecord{
		ID:        uuid.NewString(),
		CopyID:    copyID,
		Borrower:  borrower,
		LoanDate:  now,
		Notes:     notes,
		Status:    status,
		CreatedAt: now,
		UpdatedAt: now,
	}
	query := s.store.Rebind(`INSERT INTO prestamos (` + loanColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if _, err := tx.ExecContext(ctx, query,
		loan.ID, loan.CopyID, loan.Borrower, loan.LoanDate, loan.ReturnedAt,
		loan.Notes, loan.Status, loan.CreatedAt, loan.UpdatedAt); err != nil {
		return nil, fmt.Errorf("insert loan: %w", err)
	}
	return loan, nil
}

func (s *service) updateLoan(ctx context.Context, tx *sqlx.Tx, loan *LoanRecord) error {
	loan.UpdatedAt = time.Now().UTC()
	query := s.store.Rebind(`UPDATE prestamos SET estado = ?, fecha_devolucion = ?, actualizado_en = ? WHERE id = ?`)
	if _, err := tx.ExecContext(ctx, query, loan.Status, loan.ReturnedAt, loan.UpdatedAt, loan.ID); err != nil {
		return fmt.Errorf("update loan: %w", err)
	}
	return nil
}
