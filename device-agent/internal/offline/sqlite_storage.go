package offline

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/rei1089/ec-ring/device-agent/internal/domain"
	_ "modernc.org/sqlite"
)

// SQLiteStorage keeps both logs in a single SQLite file on the device.
type SQLiteStorage struct {
	db *sql.DB
}

var _ Storage = (*SQLiteStorage)(nil)

// NewSQLiteStorage opens the database at dbPath. ":memory:" gives a private
// in-memory database, which is what the tests use.
func NewSQLiteStorage(dbPath string) (*SQLiteStorage, error) {
	dsn := dbPath
	if dbPath != ":memory:" {
		dsn = fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)", dbPath)
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// single writer; also keeps ":memory:" on one connection
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &SQLiteStorage{db: db}, nil
}

func (s *SQLiteStorage) RunMigrations() error {
	src, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("could not open embedded migrations: %w", err)
	}

	driver, err := sqlite.WithInstance(s.db, &sqlite.Config{})
	if err != nil {
		return fmt.Errorf("could not create migration driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", src, "sqlite", driver)
	if err != nil {
		return fmt.Errorf("could not create migrate instance: %w", err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("could not run migrations: %w", err)
	}

	return nil
}

func tableFor(log domain.Log) (string, error) {
	switch log {
	case domain.LogScans:
		return "offline_scans", nil
	case domain.LogCartItems:
		return "offline_cart_items", nil
	default:
		return "", ErrUnknownLog
	}
}

func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

func (s *SQLiteStorage) AppendScan(ctx context.Context, rec domain.ScanRecord) error {
	product, err := domain.MarshalProduct(rec.ResolvedProduct)
	if err != nil {
		return fmt.Errorf("failed to encode product: %w", err)
	}

	query := `
		INSERT INTO offline_scans (id, barcode, captured_at, updated_at, status, failure_reason, resolved_product)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`
	_, err = s.db.ExecContext(ctx, query,
		rec.ID,
		rec.Barcode,
		rec.CapturedAt.UnixMilli(),
		rec.UpdatedAt.UnixMilli(),
		string(rec.Status),
		rec.FailureReason,
		nullableText(product),
	)
	if isUniqueViolation(err) {
		return ErrDuplicateID
	}
	if err != nil {
		return fmt.Errorf("failed to insert scan: %w", err)
	}
	return nil
}

func (s *SQLiteStorage) AppendCartItem(ctx context.Context, rec domain.CartItemRecord) error {
	query := `
		INSERT INTO offline_cart_items (id, product_id, quantity, captured_at, updated_at, status, failure_reason)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`
	_, err := s.db.ExecContext(ctx, query,
		rec.ID,
		rec.ProductID,
		rec.Quantity,
		rec.CapturedAt.UnixMilli(),
		rec.UpdatedAt.UnixMilli(),
		string(rec.Status),
		rec.FailureReason,
	)
	if isUniqueViolation(err) {
		return ErrDuplicateID
	}
	if err != nil {
		return fmt.Errorf("failed to insert cart item: %w", err)
	}
	return nil
}

func (s *SQLiteStorage) ListScans(ctx context.Context) ([]domain.ScanRecord, error) {
	query := `
		SELECT id, barcode, captured_at, updated_at, status, failure_reason, resolved_product
		FROM offline_scans
		ORDER BY seq
	`
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query scans: %w", err)
	}
	defer rows.Close()

	records := make([]domain.ScanRecord, 0)
	for rows.Next() {
		var (
			rec                 domain.ScanRecord
			capturedAt, updated int64
			status              string
			product             sql.NullString
		)
		if err := rows.Scan(&rec.ID, &rec.Barcode, &capturedAt, &updated, &status, &rec.FailureReason, &product); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		rec.CapturedAt = time.UnixMilli(capturedAt).UTC()
		rec.UpdatedAt = time.UnixMilli(updated).UTC()
		rec.Status = domain.Status(status)
		if product.Valid {
			rec.ResolvedProduct, err = domain.UnmarshalProduct([]byte(product.String))
			if err != nil {
				return nil, fmt.Errorf("failed to decode product of %s: %w", rec.ID, err)
			}
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return records, nil
}

func (s *SQLiteStorage) ListCartItems(ctx context.Context) ([]domain.CartItemRecord, error) {
	query := `
		SELECT id, product_id, quantity, captured_at, updated_at, status, failure_reason
		FROM offline_cart_items
		ORDER BY seq
	`
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query cart items: %w", err)
	}
	defer rows.Close()

	records := make([]domain.CartItemRecord, 0)
	for rows.Next() {
		var (
			rec                 domain.CartItemRecord
			capturedAt, updated int64
			status              string
		)
		if err := rows.Scan(&rec.ID, &rec.ProductID, &rec.Quantity, &capturedAt, &updated, &status, &rec.FailureReason); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		rec.CapturedAt = time.UnixMilli(capturedAt).UTC()
		rec.UpdatedAt = time.UnixMilli(updated).UTC()
		rec.Status = domain.Status(status)
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return records, nil
}

func (s *SQLiteStorage) Status(ctx context.Context, log domain.Log, id string) (domain.Status, bool, error) {
	table, err := tableFor(log)
	if err != nil {
		return "", false, err
	}

	var status string
	err = s.db.QueryRowContext(ctx, "SELECT status FROM "+table+" WHERE id = ?", id).Scan(&status)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to query status: %w", err)
	}
	return domain.Status(status), true, nil
}

func (s *SQLiteStorage) Transition(ctx context.Context, log domain.Log, t domain.Transition) (bool, error) {
	var (
		res sql.Result
		err error
	)
	switch log {
	case domain.LogScans:
		product, encErr := domain.MarshalProduct(t.Product)
		if encErr != nil {
			return false, fmt.Errorf("failed to encode product: %w", encErr)
		}
		res, err = s.db.ExecContext(ctx, `
			UPDATE offline_scans
			SET status = ?, failure_reason = ?, updated_at = ?, resolved_product = COALESCE(?, resolved_product)
			WHERE id = ? AND status = ?
		`, string(t.To), t.Reason, t.At.UnixMilli(), nullableText(product), t.ID, string(t.From))
	case domain.LogCartItems:
		res, err = s.db.ExecContext(ctx, `
			UPDATE offline_cart_items
			SET status = ?, failure_reason = ?, updated_at = ?
			WHERE id = ? AND status = ?
		`, string(t.To), t.Reason, t.At.UnixMilli(), t.ID, string(t.From))
	default:
		return false, ErrUnknownLog
	}
	if err != nil {
		return false, fmt.Errorf("failed to update status: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read affected rows: %w", err)
	}
	return n == 1, nil
}

func (s *SQLiteStorage) SetCartItemQuantity(ctx context.Context, id string, quantity int, at time.Time) (bool, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE offline_cart_items
		SET quantity = ?, updated_at = ?
		WHERE id = ? AND status = 'pending'
	`, quantity, at.UnixMilli(), id)
	if err != nil {
		return false, fmt.Errorf("failed to update quantity: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read affected rows: %w", err)
	}
	return n == 1, nil
}

func (s *SQLiteStorage) Delete(ctx context.Context, log domain.Log, id string) error {
	table, err := tableFor(log)
	if err != nil {
		return err
	}
	if _, err := s.db.ExecContext(ctx, "DELETE FROM "+table+" WHERE id = ?", id); err != nil {
		return fmt.Errorf("failed to delete record: %w", err)
	}
	return nil
}

func (s *SQLiteStorage) PruneTerminal(ctx context.Context, log domain.Log, before time.Time) (int64, error) {
	table, err := tableFor(log)
	if err != nil {
		return 0, err
	}
	res, err := s.db.ExecContext(ctx,
		"DELETE FROM "+table+" WHERE status IN ('synced', 'failed') AND updated_at < ?",
		before.UnixMilli(),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to prune records: %w", err)
	}
	return res.RowsAffected()
}

func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}

func nullableText(b []byte) any {
	if b == nil {
		return nil
	}
	return string(b)
}
