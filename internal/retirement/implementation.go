// internal/retirement/implementation.go
package retirement

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/doug-martin/goqu/v9"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	jsoniter "github.com/json-iterator/go"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"prestalib/internal/catalog"
	"prestalib/internal/errs"
	"prestalib/internal/resolver"
	"prestalib/internal/storage"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

type service struct {
	store    *storage.Store
	catalog  catalog.Service
	resolver *resolver.Resolver
	logger   zerolog.Logger
	tracer   trace.Tracer
}

func NewService(store *storage.Store, cat catalog.Service, res *resolver.Resolver, logger zerolog.Logger) Service {
	return &service{
		store:    store,
		catalog:  cat,
		resolver: res,
		logger:   logger.With().Str("component", "retirement").Logger(),
		tracer:   otel.Tracer("prestalib/retirement"),
	}
}

const historyColumns = `id, id_elemento_original, titulo, autor, isbn, codigo_inventario, categoria,
	snapshot, motivo, eliminado_por, eliminado_en, prestamos_relacionados, favoritos_relacionados`

func (s *service) Retire(ctx context.Context, copyRef string, input RetireInput) (*HistoryRecord, error) {
	ctx, span := s.tracer.Start(ctx, "retirement.retire",
		trace.WithAttributes(attribute.String("copy.ref", copyRef)),
	)
	defer span.End()

	copyID, err := s.resolver.ResolveCopyID(ctx, copyRef)
	if err != nil {
		return nil, err
	}
	actor, err := s.resolver.ResolveBorrower(ctx, input.Actor)
	if err != nil {
		return nil, err
	}

	var record *HistoryRecord
	var retiredCopies int
	err = s.store.WithTx(ctx, func(tx *sqlx.Tx) error {
		representative, err := s.catalog.LockCopy(ctx, tx, copyID)
		if err != nil {
			return err
		}
		group, err := s.catalog.GroupCopies(ctx, tx, representative)
		if err != nil {
			return err
		}

		copyIDs := make([]string, 0, len(group))
		snapshot := Snapshot{CopyIDs: copyIDs}
		for _, rec := range group {
			snapshot.TotalStock += rec.TotalStock
			snapshot.Available += rec.Available
			snapshot.Borrowed += rec.Borrowed
			snapshot.CopyCount++
			copyIDs = append(copyIDs, rec.ID)
		}
		snapshot.CopyIDs = copyIDs
		retiredCopies = snapshot.CopyCount

		relatedLoans, err := s.countReferences(ctx, tx, "prestamos", copyIDs)
		if err != nil {
			return err
		}
		relatedFavorites, err := s.countReferences(ctx, tx, "favoritos", copyIDs)
		if err != nil {
			return err
		}
		snapshot.RelatedWaiting, err = s.countReferences(ctx, tx, "waitlist", copyIDs)
		if err != nil {
			return err
		}

		snapshotJSON, err := json.Marshal(snapshot)
		if err != nil {
			return fmt.Errorf("marshal snapshot: %w", err)
		}

		record = &HistoryRecord{
			ID:               uuid.NewString(),
			OriginalCopyID:   representative.ID,
			Title:            representative.Title,
			Author:           representative.Author,
			ISBN:             representative.ISBN,
			InventoryCode:    representative.InventoryCode,
			Category:         representative.Category,
			Snapshot:         string(snapshotJSON),
			Reason:           input.Reason,
			DeletedBy:        actor,
			DeletedAt:        time.Now().UTC(),
			RelatedLoans:     relatedLoans,
			RelatedFavorites: relatedFavorites,
		}
		insert := s.store.Rebind(`INSERT INTO historial (` + historyColumns + `)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
		if _, err := tx.ExecContext(ctx, insert,
			record.ID, record.OriginalCopyID, record.Title, record.Author, record.ISBN,
			record.InventoryCode, record.Category, record.Snapshot, record.Reason,
			record.DeletedBy, record.DeletedAt, record.RelatedLoans, record.RelatedFavorites); err != nil {
			return fmt.Errorf("insert history record: %w", err)
		}

		// Favorites and waitlist entries die with the item; loans survive
		// with dangling copy ids.
		for _, table := range []string{"favoritos", "waitlist"} {
			if err := s.deleteReferences(ctx, tx, table, "id_elemento", copyIDs); err != nil {
				return err
			}
		}
		if err := s.deleteReferences(ctx, tx, "libros", "id", copyIDs); err != nil {
			return err
		}
		return nil
	})
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	span.SetAttributes(attribute.Int("retired.copies", retiredCopies))
	s.logger.Info().
		Str("history_id", record.ID).
		Str("copy_id", record.OriginalCopyID).
		Int("prestamos_relacionados", record.RelatedLoans).
		Msg("logical item retired")
	return record, nil
}

func (s *service) countReferences(ctx context.Context, tx *sqlx.Tx, table string, copyIDs []string) (int, error) {
	query, _, err := goqu.Dialect(s.store.GoquDialect()).
		From(table).
		Select(goqu.COUNT("*")).
		Where(goqu.C("id_elemento").In(copyIDs)).
		ToSQL()
	if err != nil {
		return 0, fmt.Errorf("build count query for %s: %w", table, err)
	}
	var count int
	if err := tx.GetContext(ctx, &count, query); err != nil {
		return 0, fmt.Errorf("count %s references: %w", table, err)
	}
	return count, nil
}

func (s *service) deleteReferences(ctx context.Context, tx *sqlx.Tx, table, column string, copyIDs []string) error {
	query, _, err := goqu.Dialect(s.store.GoquDialect()).
		Delete(table).
		Where(goqu.C(column).In(copyIDs)).
		ToSQL()
	if err != nil {
		return fmt.Errorf("build delete query for %s: %w", table, err)
	}
	if _, err := tx.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("delete from %s: %w", table, err)
	}
	return nil
}

func (s *service) GetHistory(ctx context.Context, id string) (*HistoryRecord, error) {
	var record HistoryRecord
	query := s.store.Rebind(`SELECT ` + historyColumns + ` FROM historial WHERE id = ?`)
	if err := s.store.DB.GetContext(ctx, &record, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: history record %s", errs.ErrNotFound, id)
		}
		return nil, fmt.Errorf("get history record: %w", err)
	}
	return &record, nil
}

func (s *service) ListHistory(ctx context.Context) ([]*HistoryRecord, error) {
	records := []*HistoryRecord{}
	query := `SELECT ` + historyColumns + ` FROM historial ORDER BY eliminado_en DESC, id`
	if err := s.store.DB.SelectContext(ctx, &records, query); err != nil {
		return nil, fmt.Errorf("list history: %w", err)
	}
	return records, nil
}
