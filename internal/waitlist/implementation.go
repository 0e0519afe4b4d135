// internal/waitlist/implementation.go
package waitlist

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog"

	"prestalib/internal/errs"
	"prestalib/internal/storage"
)

type service struct {
	store  *storage.Store
	logger zerolog.Logger
}

// NewService creates a waitlist service backed by the given store.
func NewService(store *storage.Store, logger zerolog.Logger) Service {
	return &service{
		store:  store,
		logger: logger.With().Str("component", "waitlist").Logger(),
	}
}

const entryColumns = `seq, id, id_elemento, id_usuario, contacto, estado, creado_en, actualizado_en`

func (s *service) Enqueue(ctx context.Context, copyID, userRef, contact string) (*Entry, error) {
	var entry *Entry
	err := s.store.WithTx(ctx, func(tx *sqlx.Tx) error {
		var err error
		entry, err = s.EnqueueTx(ctx, tx, copyID, userRef, contact)
		return err
	})
	return entry, err
}

func (s *service) EnqueueTx(ctx context.Context, tx *sqlx.Tx, copyID, userRef, contact string) (*Entry, error) {
	if strings.TrimSpace(copyID) == "" {
		return nil, fmt.Errorf("%w: id_elemento is required", errs.ErrValidation)
	}

	now := time.Now().UTC()
	entry := &Entry{
		ID:        uuid.NewString(),
		CopyID:    copyID,
		UserRef:   strings.TrimSpace(userRef),
		Contact:   strings.TrimSpace(contact),
		Status:    StatusWaiting,
		CreatedAt: now,
		UpdatedAt: now,
	}

	query := s.store.Rebind(`INSERT INTO waitlist (id, id_elemento, id_usuario, contacto, estado, creado_en, actualizado_en)
		VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if _, err := tx.ExecContext(ctx, query,
		entry.ID, entry.CopyID, entry.UserRef, entry.Contact, entry.Status,
		entry.CreatedAt, entry.UpdatedAt); err != nil {
		return nil, fmt.Errorf("insert waitlist entry: %w", err)
	}

	seqQuery := s.store.Rebind(`SELECT seq FROM waitlist WHERE id = ?`)
	if err := tx.GetContext(ctx, &entry.Seq, seqQuery, entry.ID); err != nil {
		return nil, fmt.Errorf("read waitlist seq: %w", err)
	}

	s.logger.Info().Str("entry_id", entry.ID).Str("copy_id", copyID).Int64("seq", entry.Seq).Msg("waitlist entry enqueued")
	return entry, nil
}

func (s *service) List(ctx context.Context, copyID string) ([]*Entry, error) {
	entries := []*Entry{}
	if copyID == "" {
		query := `SELECT ` + entryColumns + ` FROM waitlist ORDER BY seq`
		if err := s.store.DB.SelectContext(ctx, &entries, query); err != nil {
			return nil, fmt.Errorf("list waitlist: %w", err)
		}
		return entries, nil
	}

	query := s.store.Rebind(`SELECT ` + entryColumns + ` FROM waitlist WHERE id_elemento = ? ORDER BY seq`)
	if err := s.store.DB.SelectContext(ctx, &entries, query, copyID); err != nil {
		return nil, fmt.Errorf("list waitlist: %w", err)
	}
	return entries, nil
}

func (s *service) NotifyNext(ctx context.Context, tx *sqlx.Tx, copyID string) (*Entry, error) {
	var entry Entry
	query := s.store.Rebind(`SELECT ` + entryColumns + ` FROM waitlist
		WHERE id_elemento = ? AND estado = ?
		ORDER BY seq LIMIT 1` + s.store.LockSuffix())
	err := tx.GetContext(ctx, &entry, query, copyID, StatusWaiting)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("next waitlist entry: %w", err)
	}

	entry.Status = StatusNotified
	entry.UpdatedAt = time.Now().UTC()
	update := s.store.Rebind(`UPDATE waitlist SET estado = ?, actualizado_en = ? WHERE id = ?`)
	if _, err := tx.ExecContext(ctx, update, entry.Status, entry.UpdatedAt, entry.ID); err != nil {
		return nil, fmt.Errorf("mark waitlist entry notified: %w", err)
	}

	s.logger.Info().Str("entry_id", entry.ID).Str("copy_id", copyID).Msg("waitlist entry notified")
	return &entry, nil
}

func (s *service) MarkNotified(ctx context.Context, id string) error {
	return s.store.WithTx(ctx, func(tx *sqlx.Tx) error {
		query := s.store.Rebind(`SELECT ` + entryColumns + ` FROM waitlist WHERE id = ?` + s.store.LockSuffix())
		var entry Entry
		if err := tx.GetContext(ctx, &entry, query, id); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return fmt.Errorf("%w: waitlist entry %s", errs.ErrNotFound, id)
			}
			return fmt.Errorf("get waitlist entry: %w", err)
		}
		if entry.Status != StatusWaiting {
			return fmt.Errorf("%w: entry %s is already %s", errs.ErrInvalidState, id, entry.Status)
		}

		update := s.store.Rebind(`UPDATE waitlist SET estado = ?, actualizado_en = ? WHERE id = ?`)
		if _, err := tx.ExecContext(ctx, update, StatusNotified, time.Now().UTC(), id); err != nil {
			return fmt.Errorf("mark waitlist entry notified: %w", err)
		}
		return nil
	})
}
