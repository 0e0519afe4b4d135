// internal/seed/seed.go

// Package seed loads a usable starting data set: an admin account and a
// handful of catalog copies. Running it against a non-empty database is a
// no-op per table.
package seed

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"prestalib/internal/catalog"
	"prestalib/internal/members"
	"prestalib/internal/storage"
)

func intPtr(v int) *int { return &v }

// Run seeds members and copies. Existing rows win; nothing is overwritten.
func Run(ctx context.Context, store *storage.Store, logger zerolog.Logger) error {
	logger = logger.With().Str("component", "seed").Logger()

	var userCount int
	if err := store.DB.GetContext(ctx, &userCount, `SELECT COUNT(1) FROM usuarios`); err != nil {
		return fmt.Errorf("count users: %w", err)
	}
	if userCount == 0 {
		svc := members.NewService(store, logger, rate.NewLimiter(rate.Inf, 0))
		admin, err := svc.RegisterMember(ctx, members.MemberInput{
			Name:     "Administrador",
			Document: "0000",
			Username: "admin",
			Password: "admin",
			Role:     "admin",
		})
		if err != nil {
			return fmt.Errorf("seed admin: %w", err)
		}
		logger.Info().Str("member_id", admin.ID).Msg("admin account created")
	}

	var copyCount int
	if err := store.DB.GetContext(ctx, &copyCount, `SELECT COUNT(1) FROM libros`); err != nil {
		return fmt.Errorf("count copies: %w", err)
	}
	if copyCount > 0 {
		return nil
	}

	svc := catalog.NewService(store, logger)
	samples := []catalog.CopyInput{
		{Title: "Cien años de soledad", Author: "Gabriel García Márquez", ISBN: "978-0307474728", Category: "Libros", TotalStock: 3},
		{Title: "Cien años de soledad", Author: "Gabriel García Márquez", ISBN: "978-0307474728", Category: "Libros", TotalStock: 2},
		{Title: "El Aleph", Author: "Jorge Luis Borges", Category: "Libros", TotalStock: 1},
		{Title: "Proyector Epson X41", Category: "Equipos", InventoryCode: "EQ-PROJ-01", TotalStock: 2},
		{Title: "Portátil Lenovo T14", Category: "Equipos", InventoryCode: "EQ-LAP-03", TotalStock: 1, Available: intPtr(0), Borrowed: intPtr(1)},
	}
	for _, input := range samples {
		if _, err := svc.CreateCopy(ctx, input); err != nil {
			return fmt.Errorf("seed copy %q: %w", input.Title, err)
		}
	}
	logger.Info().Int("copies", len(samples)).Msg("sample catalog created")
	return nil
}
