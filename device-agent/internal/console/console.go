// Package console implements the line-oriented command loop of the device
// agent: each input line is a scanned barcode or a command.
package console

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/rei1089/ec-ring/device-agent/internal/domain"
	"github.com/rei1089/ec-ring/device-agent/internal/offline"
	"github.com/rei1089/ec-ring/device-agent/internal/scanner"
	"github.com/rei1089/ec-ring/device-agent/internal/syncer"
	"go.uber.org/zap"
)

var ErrUsage = errors.New("usage")

const helpText = `commands:
  <barcode>                 scan a barcode
  add <productId> [qty]     add a product to the cart
  qty <recordId> <qty>      change a queued cart item (0 removes it)
  rm scans|cart_items <id>  drop a queued record
  sync                      upload pending records now
  queue                     list queued records
  prune <duration>          delete settled records older than duration
  help                      show this text
`

type Console struct {
	intake *scanner.Intake
	engine *syncer.Engine
	queue  *offline.Queue
	out    io.Writer
	log    *zap.Logger
}

func New(intake *scanner.Intake, engine *syncer.Engine, queue *offline.Queue, out io.Writer, log *zap.Logger) *Console {
	if log == nil {
		log = zap.NewNop()
	}
	return &Console{intake: intake, engine: engine, queue: queue, out: out, log: log}
}

// Run reads lines from in until EOF or ctx is done. Command errors are
// printed and do not stop the loop.
func (c *Console) Run(ctx context.Context, in io.Reader) error {
	lines := bufio.NewScanner(in)
	for lines.Scan() {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err := c.Handle(ctx, lines.Text()); err != nil {
			fmt.Fprintf(c.out, "error: %v\n", err)
		}
	}
	return lines.Err()
}

func (c *Console) Handle(ctx context.Context, line string) error {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return nil
	}

	switch strings.ToLower(fields[0]) {
	case "help", "?":
		fmt.Fprint(c.out, helpText)
		return nil
	case "add":
		return c.add(ctx, fields[1:])
	case "qty":
		return c.setQuantity(ctx, fields[1:])
	case "rm":
		return c.remove(ctx, fields[1:])
	case "sync":
		return c.sync(ctx)
	case "queue", "status":
		return c.list(ctx)
	case "prune":
		return c.prune(ctx, fields[1:])
	default:
		return c.scan(ctx, fields[0])
	}
}

func (c *Console) scan(ctx context.Context, raw string) error {
	res, err := c.intake.Scan(ctx, raw)
	if err != nil {
		return err
	}
	switch res.Outcome {
	case scanner.OutcomeResolved:
		fmt.Fprintf(c.out, "%s %s -> %s (%s)%s\n", res.Symbology, res.Barcode, res.Product.Title, res.Product.ID, priceSuffix(res.Product))
	case scanner.OutcomeNotFound:
		fmt.Fprintf(c.out, "%s %s -> not in catalog\n", res.Symbology, res.Barcode)
	case scanner.OutcomeQueued:
		fmt.Fprintf(c.out, "%s %s -> offline, queued as %s\n", res.Symbology, res.Barcode, res.QueueID)
	case scanner.OutcomeDuplicate:
		fmt.Fprintf(c.out, "%s ignored (repeat read)\n", res.Barcode)
	}
	return nil
}

func priceSuffix(p *domain.Product) string {
	if p.EstimatedPrice == nil {
		return ""
	}
	return fmt.Sprintf(" ~%d JPY", *p.EstimatedPrice)
}

func (c *Console) add(ctx context.Context, args []string) error {
	if len(args) < 1 || len(args) > 2 {
		return fmt.Errorf("%w: add <productId> [qty]", ErrUsage)
	}
	qty := 1
	if len(args) == 2 {
		n, err := strconv.Atoi(args[1])
		if err != nil {
			return fmt.Errorf("%w: quantity must be a number", ErrUsage)
		}
		qty = n
	}

	res, err := c.intake.AddToCart(ctx, args[0], qty)
	if err != nil {
		return err
	}
	if res.Outcome == scanner.OutcomeQueued {
		fmt.Fprintf(c.out, "offline, cart item queued as %s\n", res.QueueID)
		return nil
	}
	fmt.Fprintf(c.out, "added %d x %s\n", qty, args[0])
	return nil
}

func (c *Console) setQuantity(ctx context.Context, args []string) error {
	if len(args) != 2 {
		return fmt.Errorf("%w: qty <recordId> <qty>", ErrUsage)
	}
	n, err := strconv.Atoi(args[1])
	if err != nil {
		return fmt.Errorf("%w: quantity must be a number", ErrUsage)
	}
	if err := c.queue.SetCartItemQuantity(ctx, args[0], n); err != nil {
		return err
	}
	fmt.Fprintln(c.out, "ok")
	return nil
}

func (c *Console) remove(ctx context.Context, args []string) error {
	if len(args) != 2 {
		return fmt.Errorf("%w: rm scans|cart_items <id>", ErrUsage)
	}
	if err := c.queue.Remove(ctx, domain.Log(args[0]), args[1]); err != nil {
		return err
	}
	fmt.Fprintln(c.out, "ok")
	return nil
}

func (c *Console) sync(ctx context.Context) error {
	report, err := c.engine.Drain(ctx)
	PrintReport(c.out, report)
	return err
}

// PrintReport writes a human readable summary of a drain.
func PrintReport(w io.Writer, r syncer.Report) {
	fmt.Fprintf(w, "sync: scans %d synced, %d failed; cart items %d synced, %d failed\n",
		len(r.Scans.Synced), len(r.Scans.Failed), len(r.CartItems.Synced), len(r.CartItems.Failed))
	for _, f := range r.Scans.Failed {
		fmt.Fprintf(w, "  scan %s: %s\n", f.ID, f.Reason)
	}
	for _, f := range r.CartItems.Failed {
		fmt.Fprintf(w, "  cart item %s: %s\n", f.ID, f.Reason)
	}
}

func (c *Console) list(ctx context.Context) error {
	scans, err := c.queue.Scans(ctx)
	if err != nil {
		return err
	}
	items, err := c.queue.CartItems(ctx)
	if err != nil {
		return err
	}

	fmt.Fprintf(c.out, "scans (%d)\n", len(scans))
	for _, s := range scans {
		line := fmt.Sprintf("  %s %s %-7s %s", s.ID, s.CapturedAt.Format(time.RFC3339), s.Status, s.Barcode)
		if s.ResolvedProduct != nil {
			line += " -> " + s.ResolvedProduct.Title
		}
		if s.FailureReason != "" {
			line += " (" + s.FailureReason + ")"
		}
		fmt.Fprintln(c.out, line)
	}

	fmt.Fprintf(c.out, "cart items (%d)\n", len(items))
	for _, it := range items {
		line := fmt.Sprintf("  %s %s %-7s %s x%d", it.ID, it.CapturedAt.Format(time.RFC3339), it.Status, it.ProductID, it.Quantity)
		if it.FailureReason != "" {
			line += " (" + it.FailureReason + ")"
		}
		fmt.Fprintln(c.out, line)
	}
	return nil
}

func (c *Console) prune(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("%w: prune <duration>", ErrUsage)
	}
	d, err := time.ParseDuration(args[0])
	if err != nil || d < 0 {
		return fmt.Errorf("%w: duration like 24h", ErrUsage)
	}
	n, err := c.queue.Prune(ctx, d)
	if err != nil {
		return err
	}
	fmt.Fprintf(c.out, "pruned %d records\n", n)
	return nil
}
