// internal/waitlist/waitlist_test.go
package waitlist

import (
	"context"
	"testing"

	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

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

func TestEnqueueAssignsIncreasingSeq(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	first, err := svc.Enqueue(ctx, "copy-1", "ana", "ana@example.com")
	require.NoError(t, err)
	second, err := svc.Enqueue(ctx, "copy-1", "beto", "")
	require.NoError(t, err)

	assert.Less(t, first.Seq, second.Seq)
	assert.Equal(t, StatusWaiting, first.Status)
}

func TestNotifyNextIsFIFO(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()

	first, err := svc.Enqueue(ctx, "copy-1", "ana", "")
	require.NoError(t, err)
	_, err = svc.Enqueue(ctx, "copy-1", "beto", "")
	require.NoError(t, err)
	_, err = svc.Enqueue(ctx, "copy-2", "otro", "")
	require.NoError(t, err)

	var notified *Entry
	err = store.WithTx(ctx, func(tx *sqlx.Tx) error {
		var err error
		notified, err = svc.NotifyNext(ctx, tx, "copy-1")
		return err
	})
	require.NoError(t, err)
	require.NotNil(t, notified)
	assert.Equal(t, first.ID, notified.ID)
	assert.Equal(t, StatusNotified, notified.Status)

	// Second notification moves to the next waiting entry.
	err = store.WithTx(ctx, func(tx *sqlx.Tx) error {
		var err error
		notified, err = svc.NotifyNext(ctx, tx, "copy-1")
		return err
	})
	require.NoError(t, err)
	require.NotNil(t, notified)
	assert.Equal(t, "beto", notified.UserRef)

	// Queue for copy-1 exhausted.
	err = store.WithTx(ctx, func(tx *sqlx.Tx) error {
		var err error
		notified, err = svc.NotifyNext(ctx, tx, "copy-1")
		return err
	})
	require.NoError(t, err)
	assert.Nil(t, notified)
}

func TestMarkNotified(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	entry, err := svc.Enqueue(ctx, "copy-1", "ana", "")
	require.NoError(t, err)

	require.NoError(t, svc.MarkNotified(ctx, entry.ID))

	err = svc.MarkNotified(ctx, entry.ID)
	assert.ErrorIs(t, err, errs.ErrInvalidState)

	err = svc.MarkNotified(ctx, "missing")
	assert.ErrorIs(t, err, errs.ErrNotFound)
}

func TestListFiltersByCopy(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.Enqueue(ctx, "copy-1", "ana", "")
	require.NoError(t, err)
	_, err = svc.Enqueue(ctx, "copy-2", "beto", "")
	require.NoError(t, err)

	all, err := svc.List(ctx, "")
	require.NoError(t, err)
	assert.Len(t, all, 2)

	one, err := svc.List(ctx, "copy-2")
	require.NoError(t, err)
	require.Len(t, one, 1)
	assert.Equal(t, "beto", one[0].UserRef)
}

func TestEnqueueValidation(t *testing.T) {
	svc, _ := newTestService(t)

	_, err := svc.Enqueue(context.Background(), "  ", "ana", "")
	assert.ErrorIs(t, err, errs.ErrValidation)
}
