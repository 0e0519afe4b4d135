// internal/catalog/catalog_test.go
package catalog

import (
	"context"
	"fmt"
	"testing"

	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"prestalib/internal/errs"
	"prestalib/internal/storage"
)

func newTestService(t *testing.T) (Service, *storage.Store) {
	t.Helper()
	store, err := storage.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	require.NoError(t, store.Migrate(context.Background()))
	return NewService(store, zerolog.Nop()), store
}

func intPtr(v int) *int { return &v }

func TestCreateCopyDefaultsFullStockAvailable(t *testing.T) {
	svc, _ := newTestService(t)

	rec, err := svc.CreateCopy(context.Background(), CopyInput{Title: "El Quijote", TotalStock: 3})
	require.NoError(t, err)

	assert.Equal(t, 3, rec.TotalStock)
	assert.Equal(t, 3, rec.Available)
	assert.Equal(t, 0, rec.Borrowed)
	assert.Equal(t, AvailabilityAvailable, rec.AvailabilityState)
	assert.Equal(t, "Buen estado", rec.Condition)
}

func TestCreateCopyExplicitCounters(t *testing.T) {
	svc, _ := newTestService(t)

	rec, err := svc.CreateCopy(context.Background(), CopyInput{
		Title:      "Proyector Epson",
		Category:   "Equipos",
		TotalStock: 2,
		Available:  intPtr(0),
		Borrowed:   intPtr(2),
	})
	require.NoError(t, err)
	assert.Equal(t, AvailabilityLoaned, rec.AvailabilityState)

	got, err := svc.GetCopy(context.Background(), rec.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, got.Borrowed)
	assert.Equal(t, 0, got.Available)
}

func TestCreateCopyValidation(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	cases := []struct {
		name  string
		input CopyInput
	}{
		{"missing title", CopyInput{TotalStock: 1}},
		{"negative stock", CopyInput{Title: "x", TotalStock: -1}},
		{"negative counter", CopyInput{Title: "x", TotalStock: 1, Available: intPtr(-1), Borrowed: intPtr(2)}},
		{"counters exceed stock", CopyInput{Title: "x", TotalStock: 1, Available: intPtr(1), Borrowed: intPtr(1)}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.CreateCopy(ctx, tc.input)
			assert.ErrorIs(t, err, errs.ErrValidation)
		})
	}
}

func TestGetCopyNotFound(t *testing.T) {
	svc, _ := newTestService(t)

	_, err := svc.GetCopy(context.Background(), "missing")
	assert.ErrorIs(t, err, errs.ErrNotFound)
}

func TestUpdateCopyRecomputesAvailability(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	rec, err := svc.CreateCopy(ctx, CopyInput{Title: "Cien años de soledad", TotalStock: 1})
	require.NoError(t, err)

	require.NoError(t, svc.UpdateCopy(ctx, rec.ID, CopyPatch{
		TotalStock: intPtr(2),
		Borrowed:   intPtr(2),
	}))

	got, err := svc.GetCopy(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, got.Available)
	assert.Equal(t, AvailabilityLoaned, got.AvailabilityState)

	err = svc.UpdateCopy(ctx, rec.ID, CopyPatch{Available: intPtr(5)})
	assert.ErrorIs(t, err, errs.ErrValidation)
}

func TestAdjustStockConflictWhenDepleted(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()

	rec, err := svc.CreateCopy(ctx, CopyInput{Title: "Rayuela", TotalStock: 1})
	require.NoError(t, err)

	err = store.WithTx(ctx, func(tx *sqlx.Tx) error {
		_, err := svc.AdjustStock(ctx, tx, rec.ID, -1, 1)
		return err
	})
	require.NoError(t, err)

	err = store.WithTx(ctx, func(tx *sqlx.Tx) error {
		_, err := svc.AdjustStock(ctx, tx, rec.ID, -1, 1)
		return err
	})
	assert.ErrorIs(t, err, errs.ErrConflict)

	got, err := svc.GetCopy(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, got.Available)
	assert.Equal(t, 1, got.Borrowed)
	assert.Equal(t, AvailabilityLoaned, got.AvailabilityState)
}

func TestAdjustStockClampsBorrowedAtZero(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()

	rec, err := svc.CreateCopy(ctx, CopyInput{Title: "Pedro Páramo", TotalStock: 2})
	require.NoError(t, err)

	err = store.WithTx(ctx, func(tx *sqlx.Tx) error {
		adjusted, err := svc.AdjustStock(ctx, tx, rec.ID, 1, -1)
		if err != nil {
			return err
		}
		assert.Equal(t, 0, adjusted.Borrowed)
		assert.Equal(t, 3, adjusted.Available)
		return nil
	})
	require.NoError(t, err)
}

func TestLogicalAggregationByInventoryCode(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	first, err := svc.CreateCopy(ctx, CopyInput{Title: "Atlas", InventoryCode: "INV-001", TotalStock: 1})
	require.NoError(t, err)
	_, err = svc.CreateCopy(ctx, CopyInput{Title: "Atlas segunda edición", InventoryCode: "INV-001", TotalStock: 2, Available: intPtr(0), Borrowed: intPtr(2)})
	require.NoError(t, err)
	_, err = svc.CreateCopy(ctx, CopyInput{Title: "Atlas", InventoryCode: "INV-002", TotalStock: 5})
	require.NoError(t, err)

	item, err := svc.ResolveLogicalItem(ctx, first.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, item.CopyCount)
	assert.Equal(t, 3, item.TotalStock)
	assert.Equal(t, 1, item.Available)
	assert.Equal(t, 2, item.Borrowed)
	assert.Equal(t, AvailabilityAvailable, item.AvailabilityState)
	assert.Len(t, item.CopyIDs, 2)
}

func TestLogicalAggregationNormalizesTitleTuple(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	a, err := svc.CreateCopy(ctx, CopyInput{Title: "La Odisea", Author: "Homero", TotalStock: 1})
	require.NoError(t, err)
	_, err = svc.CreateCopy(ctx, CopyInput{Title: "  la odisea ", Author: "HOMERO", TotalStock: 1})
	require.NoError(t, err)

	item, err := svc.ResolveLogicalItem(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, item.CopyCount)
	assert.Equal(t, 2, item.TotalStock)
}

func TestListLogicalItemsPartitionsCopies(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := svc.CreateCopy(ctx, CopyInput{Title: "Dune", Author: "Herbert", TotalStock: 1})
		require.NoError(t, err)
	}
	_, err := svc.CreateCopy(ctx, CopyInput{Title: "Fundación", Author: "Asimov", TotalStock: 4})
	require.NoError(t, err)

	items, err := svc.ListLogicalItems(ctx)
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, 3, items[0].CopyCount)
	assert.Equal(t, 1, items[1].CopyCount)
}

func TestCategorySummary(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.CreateCopy(ctx, CopyInput{Title: "a", Category: "Libros", TotalStock: 2})
	require.NoError(t, err)
	_, err = svc.CreateCopy(ctx, CopyInput{Title: "b", Category: "Libros", TotalStock: 3, Available: intPtr(1), Borrowed: intPtr(2)})
	require.NoError(t, err)
	_, err = svc.CreateCopy(ctx, CopyInput{Title: "c", Category: "Equipos", TotalStock: 1})
	require.NoError(t, err)

	summary, err := svc.CategorySummary(ctx)
	require.NoError(t, err)
	assert.Equal(t, CategoryTotals{Total: 5, Available: 3, Borrowed: 2}, summary["Libros"])
	assert.Equal(t, CategoryTotals{Total: 1, Available: 1, Borrowed: 0}, summary["Equipos"])
}

// Aggregation must conserve counters and assign every copy to exactly one
// logical item no matter how the copies are keyed.
func TestLogicalAggregationConservation(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		svc, _ := newTestService(t)
		ctx := context.Background()

		n := rapid.IntRange(1, 12).Draw(rt, "copies")
		wantStock, wantAvailable, wantBorrowed := 0, 0, 0
		for i := 0; i < n; i++ {
			stock := rapid.IntRange(0, 5).Draw(rt, fmt.Sprintf("stock%d", i))
			borrowed := rapid.IntRange(0, stock).Draw(rt, fmt.Sprintf("borrowed%d", i))
			input := CopyInput{
				Title:      rapid.SampledFrom([]string{"Alpha", "Beta", "Gamma"}).Draw(rt, fmt.Sprintf("title%d", i)),
				Author:     rapid.SampledFrom([]string{"", "Uno", "Dos"}).Draw(rt, fmt.Sprintf("author%d", i)),
				TotalStock: stock,
				Available:  intPtr(stock - borrowed),
				Borrowed:   intPtr(borrowed),
			}
			if rapid.Bool().Draw(rt, fmt.Sprintf("coded%d", i)) {
				input.InventoryCode = rapid.SampledFrom([]string{"C1", "C2"}).Draw(rt, fmt.Sprintf("code%d", i))
			}
			_, err := svc.CreateCopy(ctx, input)
			require.NoError(rt, err)
			wantStock += stock
			wantAvailable += stock - borrowed
			wantBorrowed += borrowed
		}

		items, err := svc.ListLogicalItems(ctx)
		require.NoError(rt, err)

		gotStock, gotAvailable, gotBorrowed, gotCopies := 0, 0, 0, 0
		seen := map[string]bool{}
		for _, item := range items {
			gotStock += item.TotalStock
			gotAvailable += item.Available
			gotBorrowed += item.Borrowed
			gotCopies += item.CopyCount
			require.Len(rt, item.CopyIDs, item.CopyCount)
			for _, id := range item.CopyIDs {
				require.False(rt, seen[id], "copy assigned to more than one logical item")
				seen[id] = true
			}
		}
		require.Equal(rt, n, gotCopies)
		require.Equal(rt, wantStock, gotStock)
		require.Equal(rt, wantAvailable, gotAvailable)
		require.Equal(rt, wantBorrowed, gotBorrowed)
	})
}
