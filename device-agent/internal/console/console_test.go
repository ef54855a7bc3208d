package console

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/rei1089/ec-ring/device-agent/internal/domain"
	"github.com/rei1089/ec-ring/device-agent/internal/offline"
	"github.com/rei1089/ec-ring/device-agent/internal/scanner"
	"github.com/rei1089/ec-ring/device-agent/internal/syncer"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type toggleProbe struct{ online bool }

func (p *toggleProbe) Online(context.Context) bool { return p.online }

type catalogRemote struct {
	products map[string]*domain.Product
	added    []string
}

func (r *catalogRemote) ResolveBarcode(_ context.Context, code string) (*domain.Product, error) {
	return r.products[code], nil
}

func (r *catalogRemote) AddCartItem(_ context.Context, productID string, _ int) error {
	r.added = append(r.added, productID)
	return nil
}

func setupConsole(t *testing.T) (*Console, *offline.Queue, *toggleProbe, *catalogRemote, *bytes.Buffer) {
	t.Helper()
	price := int64(198)
	remote := &catalogRemote{products: map[string]*domain.Product{
		"4901234567894": {ID: "p-1", Title: "Pocky", EstimatedPrice: &price},
	}}
	probe := &toggleProbe{}
	q := offline.NewQueue(offline.NewMemoryStorage(), nil, zap.NewNop())
	intake := scanner.NewIntake(q, remote, probe, nil, zap.NewNop())
	engine := syncer.NewEngine(q, remote, zap.NewNop())
	out := &bytes.Buffer{}
	return New(intake, engine, q, out, zap.NewNop()), q, probe, remote, out
}

func TestConsole_OfflineScanThenSync(t *testing.T) {
	c, q, probe, remote, out := setupConsole(t)
	ctx := context.Background()

	input := strings.NewReader("4901234567894\nadd p-1 2\nqueue\n")
	require.NoError(t, c.Run(ctx, input))
	assert.Contains(t, out.String(), "offline, queued as")
	assert.Contains(t, out.String(), "offline, cart item queued as")
	assert.Contains(t, out.String(), "scans (1)")
	assert.Contains(t, out.String(), "p-1 x2")

	probe.online = true
	out.Reset()
	require.NoError(t, c.Handle(ctx, "sync"))
	assert.Contains(t, out.String(), "scans 1 synced, 0 failed; cart items 1 synced, 0 failed")
	assert.Equal(t, []string{"p-1"}, remote.added)

	scans, err := q.Scans(ctx)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusSynced, scans[0].Status)
}

func TestConsole_OnlineScan(t *testing.T) {
	c, _, probe, _, out := setupConsole(t)
	probe.online = true

	require.NoError(t, c.Handle(context.Background(), "4901234567894"))
	assert.Equal(t, "EAN-13 4901234567894 -> Pocky (p-1) ~198 JPY\n", out.String())
}

func TestConsole_InvalidBarcodePrintedNotFatal(t *testing.T) {
	c, q, _, _, out := setupConsole(t)

	require.NoError(t, c.Run(context.Background(), strings.NewReader("4901234567890\n")))
	assert.Contains(t, out.String(), "error: invalid barcode")

	scans, err := q.Scans(context.Background())
	require.NoError(t, err)
	assert.Empty(t, scans)
}

func TestConsole_Usage(t *testing.T) {
	c, _, _, _, _ := setupConsole(t)
	ctx := context.Background()

	assert.ErrorIs(t, c.Handle(ctx, "add"), ErrUsage)
	assert.ErrorIs(t, c.Handle(ctx, "add p-1 many"), ErrUsage)
	assert.ErrorIs(t, c.Handle(ctx, "qty x"), ErrUsage)
	assert.ErrorIs(t, c.Handle(ctx, "prune soon"), ErrUsage)
	assert.NoError(t, c.Handle(ctx, "   "))
}

func TestConsole_QuantityAndRemove(t *testing.T) {
	c, q, _, _, _ := setupConsole(t)
	ctx := context.Background()

	id, err := q.EnqueueCartItem(ctx, "p-1", 1)
	require.NoError(t, err)

	require.NoError(t, c.Handle(ctx, "qty "+id+" 5"))
	items, err := q.CartItems(ctx)
	require.NoError(t, err)
	assert.Equal(t, 5, items[0].Quantity)

	require.NoError(t, c.Handle(ctx, "rm cart_items "+id))
	items, err = q.CartItems(ctx)
	require.NoError(t, err)
	assert.Empty(t, items)

	assert.ErrorIs(t, c.Handle(ctx, "rm orders "+id), offline.ErrUnknownLog)
}
