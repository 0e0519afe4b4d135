// internal/resolver/resolver.go

// Package resolver translates the loose references accepted by the API into
// canonical row ids. Loan requests may name a copy by id, inventory code or
// title, and a borrower by user id, document number or username.
package resolver

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"prestalib/internal/errs"
	"prestalib/internal/storage"
)

type Resolver struct {
	store *storage.Store
}

func New(store *storage.Store) *Resolver {
	return &Resolver{store: store}
}

// ResolveCopyID resolves ref to a copy id. Precedence: exact id, exact
// inventory code, exact title, then id substring. Code and title matches
// prefer a copy with stock still available so a loan lands on a lendable row.
func (r *Resolver) ResolveCopyID(ctx context.Context, ref string) (string, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return "", fmt.Errorf("%w: empty copy reference", errs.ErrValidation)
	}

	const preferAvailable = ` ORDER BY CASE WHEN cantidad_disponible > 0 THEN 0 ELSE 1 END, creado_en, id LIMIT 1`
	queries := []struct {
		query string
		arg   string
	}{
		{`SELECT id FROM libros WHERE id = ? LIMIT 1`, ref},
		{`SELECT id FROM libros WHERE TRIM(codigo_inventario) = ? AND TRIM(codigo_inventario) <> ''` + preferAvailable, ref},
		{`SELECT id FROM libros WHERE LOWER(TRIM(titulo)) = ?` + preferAvailable, strings.ToLower(ref)},
		{`SELECT id FROM libros WHERE id LIKE ? ORDER BY creado_en, id LIMIT 1`, "%" + ref + "%"},
	}

	for _, q := range queries {
		var id string
		err := r.store.DB.GetContext(ctx, &id, r.store.Rebind(q.query), q.arg)
		if err == nil {
			return id, nil
		}
		if !errors.Is(err, sql.ErrNoRows) {
			return "", fmt.Errorf("resolve copy: %w", err)
		}
	}
	return "", fmt.Errorf("%w: no copy matches %q", errs.ErrNotFound, ref)
}

// ResolveBorrower resolves ref to a user id when a matching member exists.
// Unmatched references are returned verbatim so walk-in borrowers can be
// recorded by name.
func (r *Resolver) ResolveBorrower(ctx context.Context, ref string) (string, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return "", nil
	}

	queries := []string{
		`SELECT id FROM usuarios WHERE id = ? LIMIT 1`,
		`SELECT id FROM usuarios WHERE documento = ? LIMIT 1`,
		`SELECT id FROM usuarios WHERE username = ? LIMIT 1`,
	}
	for _, q := range queries {
		var id string
		err := r.store.DB.GetContext(ctx, &id, r.store.Rebind(q), ref)
		if err == nil {
			return id, nil
		}
		if !errors.Is(err, sql.ErrNoRows) {
			return "", fmt.Errorf("resolve borrower: %w", err)
		}
	}
	return ref, nil
}
