// internal/catalog/implementation.go
package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/doug-martin/goqu/v9"
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

// NewService creates a catalog service backed by the given store.
func NewService(store *storage.Store, logger zerolog.Logger) Service {
	return &service{
		store:  store,
		logger: logger.With().Str("component", "catalog").Logger(),
	}
}

const copyColumns = `id, titulo, autor, isbn, editorial, anio_publicacion, categoria,
	subcategoria, descripcion, estado_disponibilidad, estado_elemento, stock,
	cantidad_disponible, cantidad_prestado, codigo_inventario, creado_en, actualizado_en`

func stateForCounters(available, borrowed int) string {
	switch {
	case available > 0:
		return AvailabilityAvailable
	case borrowed > 0:
		return AvailabilityLoaned
	default:
		return AvailabilityDepleted
	}
}

func (s *service) CreateCopy(ctx context.Context, input CopyInput) (*CopyRecord, error) {
	if strings.TrimSpace(input.Title) == "" {
		return nil, fmt.Errorf("%w: titulo is required", errs.ErrValidation)
	}
	if input.TotalStock < 0 {
		return nil, fmt.Errorf("%w: stock must not be negative", errs.ErrValidation)
	}

	available := input.TotalStock
	borrowed := 0
	if input.Available != nil || input.Borrowed != nil {
		if input.Borrowed != nil {
			borrowed = *input.Borrowed
		}
		if input.Available != nil {
			available = *input.Available
		} else {
			available = input.TotalStock - borrowed
		}
	}
	if available < 0 || borrowed < 0 {
		return nil, fmt.Errorf("%w: counters must not be negative", errs.ErrValidation)
	}
	if available+borrowed != input.TotalStock {
		return nil, fmt.Errorf("%w: cantidad_disponible + cantidad_prestado must equal stock", errs.ErrValidation)
	}

	condition := strings.TrimSpace(input.Condition)
	if condition == "" {
		condition = "Buen estado"
	}
	now := time.Now().UTC()
	rec := &CopyRecord{
		ID:                uuid.NewString(),
		Title:             strings.TrimSpace(input.Title),
		Author:            strings.TrimSpace(input.Author),
		ISBN:              strings.TrimSpace(input.ISBN),
		Publisher:         strings.TrimSpace(input.Publisher),
		PublishedYear:     input.PublishedYear,
		Category:          strings.TrimSpace(input.Category),
		Subcategory:       strings.TrimSpace(input.Subcategory),
		Description:       input.Description,
		AvailabilityState: stateForCounters(available, borrowed),
		Condition:         condition,
		TotalStock:        input.TotalStock,
		Available:         available,
		Borrowed:          borrowed,
		InventoryCode:     strings.TrimSpace(input.InventoryCode),
		CreatedAt:         now,
		UpdatedAt:         now,
	}

	query := s.store.Rebind(`INSERT INTO libros (` + copyColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	_, err := s.store.DB.ExecContext(ctx, query,
		rec.ID, rec.Title, rec.Author, rec.ISBN, rec.Publisher, rec.PublishedYear,
		rec.Category, rec.Subcategory, rec.Description, rec.AvailabilityState,
		rec.Condition, rec.TotalStock, rec.Available, rec.Borrowed,
		rec.InventoryCode, rec.CreatedAt, rec.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("insert copy: %w", err)
	}

	s.logger.Info().Str("copy_id", rec.ID).Str("titulo", rec.Title).Int("stock", rec.TotalStock).Msg("copy created")
	return rec, nil
}

func (s *service) GetCopy(ctx context.Context, id string) (*CopyRecord, error) {
	var rec CopyRecord
	query := s.store.Rebind(`SELECT ` + copyColumns + ` FROM libros WHERE id = ?`)
	if err := s.store.DB.GetContext(ctx, &rec, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: copy %s", errs.ErrNotFound, id)
		}
		return nil, fmt.Errorf("get copy: %w", err)
	}
	return &rec, nil
}

func (s *service) UpdateCopy(ctx context.Context, id string, patch CopyPatch) error {
	return s.store.WithTx(ctx, func(tx *sqlx.Tx) error {
		rec, err := s.LockCopy(ctx, tx, id)
		if err != nil {
			return err
		}

		applyString := func(dst *string, src *string) {
			if src != nil {
				*dst = strings.TrimSpace(*src)
			}
		}
		applyString(&rec.Title, patch.Title)
		applyString(&rec.Author, patch.Author)
		applyString(&rec.ISBN, patch.ISBN)
		applyString(&rec.Publisher, patch.Publisher)
		applyString(&rec.Category, patch.Category)
		applyString(&rec.Subcategory, patch.Subcategory)
		applyString(&rec.Condition, patch.Condition)
		applyString(&rec.InventoryCode, patch.InventoryCode)
		if patch.Description != nil {
			rec.Description = *patch.Description
		}
		if patch.PublishedYear != nil {
			rec.PublishedYear = *patch.PublishedYear
		}
		if patch.TotalStock != nil {
			rec.TotalStock = *patch.TotalStock
		}
		if patch.Borrowed != nil {
			rec.Borrowed = *patch.Borrowed
		}
		if patch.Available != nil {
			rec.Available = *patch.Available
		} else if patch.TotalStock != nil || patch.Borrowed != nil {
			rec.Available = rec.TotalStock - rec.Borrowed
		}

		if strings.TrimSpace(rec.Title) == "" {
			return fmt.Errorf("%w: titulo is required", errs.ErrValidation)
		}
		if rec.Available < 0 || rec.Borrowed < 0 || rec.TotalStock < 0 {
			return fmt.Errorf("%w: counters must not be negative", errs.ErrValidation)
		}
		if rec.Available+rec.Borrowed != rec.TotalStock {
			return fmt.Errorf("%w: cantidad_disponible + cantidad_prestado must equal stock", errs.ErrValidation)
		}
		rec.AvailabilityState = stateForCounters(rec.Available, rec.Borrowed)
		rec.UpdatedAt = time.Now().UTC()

		query := s.store.Rebind(`UPDATE libros SET
			titulo = ?, autor = ?, isbn = ?, editorial = ?, anio_publicacion = ?,
			categoria = ?, subcategoria = ?, descripcion = ?, estado_disponibilidad = ?,
			estado_elemento = ?, stock = ?, cantidad_disponible = ?, cantidad_prestado = ?,
			codigo_inventario = ?, actualizado_en = ?
			WHERE id = ?`)
		_, err = tx.ExecContext(ctx, query,
			rec.Title, rec.Author, rec.ISBN, rec.Publisher, rec.PublishedYear,
			rec.Category, rec.Subcategory, rec.Description, rec.AvailabilityState,
			rec.Condition, rec.TotalStock, rec.Available, rec.Borrowed,
			rec.InventoryCode, rec.UpdatedAt, rec.ID)
		if err != nil {
			return fmt.Errorf("update copy: %w", err)
		}
		return nil
	})
}

func (s *service) ListCopies(ctx context.Context) ([]*CopyRecord, error) {
	recs := []*CopyRecord{}
	query := `SELECT ` + copyColumns + ` FROM libros ORDER BY creado_en, id`
	if err := s.store.DB.SelectContext(ctx, &recs, query); err != nil {
		return nil, fmt.Errorf("list copies: %w", err)
	}
	return recs, nil
}

func (s *service) ResolveLogicalItem(ctx context.Context, copyID string) (*LogicalItem, error) {
	rec, err := s.GetCopy(ctx, copyID)
	if err != nil {
		return nil, err
	}
	group, err := s.GroupCopies(ctx, nil, rec)
	if err != nil {
		return nil, err
	}
	return aggregate(group), nil
}

func (s *service) ListLogicalItems(ctx context.Context) ([]*LogicalItem, error) {
	recs, err := s.ListCopies(ctx)
	if err != nil {
		return nil, err
	}

	items := []*LogicalItem{}
	byKey := map[string]*LogicalItem{}
	for _, rec := range recs {
		key := rec.GroupKey()
		item, ok := byKey[key]
		if !ok {
			item = &LogicalItem{CopyRecord: *rec}
			item.CopyIDs = []string{}
			byKey[key] = item
			items = append(items, item)
		} else {
			item.TotalStock += rec.TotalStock
			item.Available += rec.Available
			item.Borrowed += rec.Borrowed
		}
		item.CopyCount++
		item.CopyIDs = append(item.CopyIDs, rec.ID)
		item.AvailabilityState = stateForCounters(item.Available, item.Borrowed)
	}
	return items, nil
}

func (s *service) CategorySummary(ctx context.Context) (map[string]CategoryTotals, error) {
	query, _, err := goqu.Dialect(s.store.GoquDialect()).
		From("libros").
		Select(
			goqu.C("categoria"),
			goqu.SUM(goqu.C("stock")).As("total"),
			goqu.SUM(goqu.C("cantidad_disponible")).As("disponible"),
			goqu.SUM(goqu.C("cantidad_prestado")).As("prestado"),
		).
		GroupBy(goqu.C("categoria")).
		ToSQL()
	if err != nil {
		return nil, fmt.Errorf("build summary query: %w", err)
	}

	rows := []struct {
		Category  string `db:"categoria"`
		Total     int    `db:"total"`
		Available int    `db:"disponible"`
		Borrowed  int    `db:"prestado"`
	}{}
	if err := s.store.DB.SelectContext(ctx, &rows, query); err != nil {
		return nil, fmt.Errorf("category summary: %w", err)
	}

	summary := map[string]CategoryTotals{}
	for _, row := range rows {
		summary[row.Category] = CategoryTotals{
			Total:     row.Total,
			Available: row.Available,
			Borrowed:  row.Borrowed,
		}
	}
	return summary, nil
}

func (s *service) LockCopy(ctx context.Context, tx *sqlx.Tx, id string) (*CopyRecord, error) {
	var rec CopyRecord
	query := s.store.Rebind(`SELECT ` + copyColumns + ` FROM libros WHERE id = ?` + s.store.LockSuffix())
	if err := tx.GetContext(ctx, &rec, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: copy %s", errs.ErrNotFound, id)
		}
		return nil, fmt.Errorf("lock copy: %w", err)
	}
	return &rec, nil
}

func (s *service) AdjustStock(ctx context.Context, tx *sqlx.Tx, id string, availDelta, borrowedDelta int) (*CopyRecord, error) {
	rec, err := s.LockCopy(ctx, tx, id)
	if err != nil {
		return nil, err
	}

	newAvailable := rec.Available + availDelta
	newBorrowed := rec.Borrowed + borrowedDelta
	if newBorrowed < 0 {
		newBorrowed = 0
	}
	if newAvailable < 0 {
		return nil, fmt.Errorf("%w: no stock available for copy %s", errs.ErrConflict, id)
	}

	rec.Available = newAvailable
	rec.Borrowed = newBorrowed
	rec.TotalStock = newAvailable + newBorrowed
	rec.AvailabilityState = stateForCounters(newAvailable, newBorrowed)
	rec.UpdatedAt = time.Now().UTC()

	query := s.store.Rebind(`UPDATE libros SET
		stock = ?, cantidad_disponible = ?, cantidad_prestado = ?,
		estado_disponibilidad = ?, actualizado_en = ?
		WHERE id = ?`)
	if _, err := tx.ExecContext(ctx, query,
		rec.TotalStock, rec.Available, rec.Borrowed,
		rec.AvailabilityState, rec.UpdatedAt, rec.ID); err != nil {
		return nil, fmt.Errorf("adjust stock: %w", err)
	}

	s.logger.Debug().
		Str("copy_id", id).
		Int("disponible", rec.Available).
		Int("prestado", rec.Borrowed).
		Str("estado", rec.AvailabilityState).
		Msg("stock adjusted")
	return rec, nil
}

func (s *service) GroupCopies(ctx context.Context, tx *sqlx.Tx, rec *CopyRecord) ([]*CopyRecord, error) {
	var (
		query string
		args  []interface{}
	)
	if code := strings.TrimSpace(rec.InventoryCode); code != "" {
		query = `SELECT ` + copyColumns + ` FROM libros WHERE TRIM(codigo_inventario) = ? ORDER BY creado_en, id`
		args = []interface{}{code}
	} else {
		query = `SELECT ` + copyColumns + ` FROM libros
			WHERE TRIM(codigo_inventario) = ''
			AND LOWER(TRIM(titulo)) = ? AND LOWER(TRIM(autor)) = ? AND LOWER(TRIM(isbn)) = ?
			ORDER BY creado_en, id`
		args = []interface{}{normalize(rec.Title), normalize(rec.Author), normalize(rec.ISBN)}
	}

	group := []*CopyRecord{}
	if tx != nil {
		query += s.store.LockSuffix()
		if err := tx.SelectContext(ctx, &group, s.store.Rebind(query), args...); err != nil {
			return nil, fmt.Errorf("group copies: %w", err)
		}
		return group, nil
	}
	if err := s.store.DB.SelectContext(ctx, &group, s.store.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("group copies: %w", err)
	}
	return group, nil
}

func aggregate(group []*CopyRecord) *LogicalItem {
	item := &LogicalItem{CopyRecord: *group[0]}
	item.CopyIDs = []string{}
	item.TotalStock, item.Available, item.Borrowed = 0, 0, 0
	for _, rec := range group {
		item.TotalStock += rec.TotalStock
		item.Available += rec.Available
		item.Borrowed += rec.Borrowed
		item.CopyCount++
		item.CopyIDs = append(item.CopyIDs, rec.ID)
	}
	item.AvailabilityState = stateForCounters(item.Available, item.Borrowed)
	return item
}
