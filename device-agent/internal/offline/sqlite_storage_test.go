package offline

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/rei1089/ec-ring/device-agent/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSQLiteStorage_SurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "queue.db")
	ctx := context.Background()
	at := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)

	store, err := NewSQLiteStorage(path)
	require.NoError(t, err)
	require.NoError(t, store.RunMigrations())
	require.NoError(t, store.AppendScan(ctx, domain.ScanRecord{
		ID: "s-1", Barcode: "4901234567894", CapturedAt: at, UpdatedAt: at, Status: domain.StatusPending,
	}))
	require.NoError(t, store.Close())

	reopened, err := NewSQLiteStorage(path)
	require.NoError(t, err)
	t.Cleanup(func() { reopened.Close() })
	require.NoError(t, reopened.RunMigrations(), "migrations are idempotent")

	scans, err := reopened.ListScans(ctx)
	require.NoError(t, err)
	require.Len(t, scans, 1)
	assert.Equal(t, "s-1", scans[0].ID)
	assert.True(t, at.Equal(scans[0].CapturedAt))
}

func TestSQLiteStorage_DuplicateID(t *testing.T) {
	store := newSQLite(t)
	ctx := context.Background()
	rec := domain.CartItemRecord{ID: "c-1", ProductID: "prod-1", Quantity: 1, Status: domain.StatusPending}

	require.NoError(t, store.AppendCartItem(ctx, rec))
	assert.ErrorIs(t, store.AppendCartItem(ctx, rec), ErrDuplicateID)
}

func TestSQLiteStorage_TransitionIsCompareAndSet(t *testing.T) {
	store := newSQLite(t)
	ctx := context.Background()
	require.NoError(t, store.AppendScan(ctx, domain.ScanRecord{ID: "s-1", Barcode: "4901234567894", Status: domain.StatusPending}))

	ok, err := store.Transition(ctx, domain.LogScans, domain.Transition{ID: "s-1", From: domain.StatusPending, To: domain.StatusSynced})
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = store.Transition(ctx, domain.LogScans, domain.Transition{ID: "s-1", From: domain.StatusPending, To: domain.StatusFailed})
	require.NoError(t, err)
	assert.False(t, ok)

	status, found, err := store.Status(ctx, domain.LogScans, "s-1")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, domain.StatusSynced, status)
}

func TestSQLiteStorage_UnknownLog(t *testing.T) {
	store := newSQLite(t)
	ctx := context.Background()

	_, _, err := store.Status(ctx, "orders", "x")
	assert.ErrorIs(t, err, ErrUnknownLog)
	assert.ErrorIs(t, store.Delete(ctx, "orders", "x"), ErrUnknownLog)
	_, err = store.PruneTerminal(ctx, "orders", time.Now())
	assert.ErrorIs(t, err, ErrUnknownLog)
}
