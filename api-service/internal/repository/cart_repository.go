package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/rei1089/ec-ring/api-service/internal/domain"
)

const cartItemColumns = `id, cart_id, product_id, quantity, selected_offer_id, note, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCartItem(row rowScanner) (*domain.CartItem, error) {
	var item domain.CartItem
	err := row.Scan(
		&item.ID,
		&item.CartID,
		&item.ProductID,
		&item.Quantity,
		&item.SelectedOfferID,
		&item.Note,
		&item.CreatedAt,
		&item.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func (r *Repository) FindActiveCart(ctx context.Context, userID string) (*domain.Cart, error) {
	query := `SELECT id, user_id, status, created_at FROM carts WHERE user_id = $1 AND status = 'active'`

	var cart domain.Cart
	err := r.db.QueryRowContext(ctx, query, userID).Scan(&cart.ID, &cart.UserID, &cart.Status, &cart.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query active cart: %w", err)
	}
	return &cart, nil
}

// GetOrCreateActiveCart relies on the partial unique index on active carts,
// so concurrent first adds for one user end up in the same cart.
func (r *Repository) GetOrCreateActiveCart(ctx context.Context, userID string) (*domain.Cart, error) {
	insert := `INSERT INTO carts (id, user_id, status, created_at)
	           VALUES ($1, $2, 'active', NOW())
	           ON CONFLICT (user_id) WHERE status = 'active' DO NOTHING`
	if _, err := r.db.ExecContext(ctx, insert, uuid.New(), userID); err != nil {
		return nil, fmt.Errorf("insert cart: %w", err)
	}

	cart, err := r.FindActiveCart(ctx, userID)
	if err != nil {
		return nil, err
	}
	if cart == nil {
		return nil, ErrCartNotFound
	}
	return cart, nil
}

func (r *Repository) GetCart(ctx context.Context, cartID string) (*domain.Cart, error) {
	query := `SELECT id, user_id, status, created_at FROM carts WHERE id = $1`

	var cart domain.Cart
	err := r.db.QueryRowContext(ctx, query, cartID).Scan(&cart.ID, &cart.UserID, &cart.Status, &cart.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrCartNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query cart: %w", err)
	}
	return &cart, nil
}

func (r *Repository) AddItem(ctx context.Context, cartID string, item domain.NewCartItem) (*domain.CartItem, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	// serialize adds per cart so two requests cannot both insert the same line
	var locked string
	err = tx.QueryRowContext(ctx, `SELECT id FROM carts WHERE id = $1 FOR UPDATE`, cartID).Scan(&locked)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrCartNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("lock cart: %w", err)
	}

	var existingID string
	err = tx.QueryRowContext(ctx, `
		SELECT id FROM cart_items
		WHERE cart_id = $1 AND product_id = $2 AND selected_offer_id IS NOT DISTINCT FROM $3
		LIMIT 1`,
		cartID, item.ProductID, item.SelectedOfferID,
	).Scan(&existingID)

	var row *sql.Row
	switch {
	case errors.Is(err, sql.ErrNoRows):
		row = tx.QueryRowContext(ctx, `
			INSERT INTO cart_items (id, cart_id, product_id, quantity, selected_offer_id, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, NOW(), NOW())
			RETURNING `+cartItemColumns,
			uuid.New(), cartID, item.ProductID, item.Quantity, item.SelectedOfferID)
	case err != nil:
		return nil, fmt.Errorf("query existing cart item: %w", err)
	default:
		row = tx.QueryRowContext(ctx, `
			UPDATE cart_items SET quantity = quantity + $2, updated_at = NOW()
			WHERE id = $1
			RETURNING `+cartItemColumns,
			existingID, item.Quantity)
	}

	saved, err := scanCartItem(row)
	if err != nil {
		return nil, mapItemWriteError(err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return saved, nil
}

func (r *Repository) UpdateItem(ctx context.Context, itemID string, upd domain.CartItemUpdate) (*domain.CartItem, error) {
	sets := []string{"updated_at = NOW()"}
	args := []any{itemID}
	if upd.Quantity != nil {
		args = append(args, *upd.Quantity)
		sets = append(sets, fmt.Sprintf("quantity = $%d", len(args)))
	}
	if upd.Note != nil {
		args = append(args, *upd.Note)
		sets = append(sets, fmt.Sprintf("note = $%d", len(args)))
	}

	query := `UPDATE cart_items SET ` + strings.Join(sets, ", ") + ` WHERE id = $1 RETURNING ` + cartItemColumns
	item, err := scanCartItem(r.db.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrItemNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("update cart item: %w", err)
	}
	return item, nil
}

func (r *Repository) DeleteItem(ctx context.Context, itemID string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM cart_items WHERE id = $1`, itemID)
	if err != nil {
		return fmt.Errorf("delete cart item: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete cart item: %w", err)
	}
	if n == 0 {
		return ErrItemNotFound
	}
	return nil
}

// ListLines returns the cart's items in insertion order, joined with the
// product and the selected offer's price and shop.
func (r *Repository) ListLines(ctx context.Context, cartID string) ([]domain.CartLine, error) {
	query := `
		SELECT ci.id, ci.cart_id, ci.product_id, ci.quantity, ci.selected_offer_id, ci.note, ci.created_at, ci.updated_at,
		       p.id, p.title, p.brand, p.category, p.cover_image_url, p.description, p.weight_g,
		       o.price_jpy, s.name
		FROM cart_items ci
		JOIN products p ON p.id = ci.product_id
		LEFT JOIN offers o ON o.id = ci.selected_offer_id
		LEFT JOIN shops s ON s.id = o.shop_id
		WHERE ci.cart_id = $1
		ORDER BY ci.created_at, ci.id
	`

	rows, err := r.db.QueryContext(ctx, query, cartID)
	if err != nil {
		return nil, fmt.Errorf("query cart lines: %w", err)
	}
	defer rows.Close()

	lines := make([]domain.CartLine, 0)
	for rows.Next() {
		var (
			line   domain.CartLine
			weight sql.NullInt64
			price  sql.NullInt64
		)
		if err := rows.Scan(
			&line.Item.ID,
			&line.Item.CartID,
			&line.Item.ProductID,
			&line.Item.Quantity,
			&line.Item.SelectedOfferID,
			&line.Item.Note,
			&line.Item.CreatedAt,
			&line.Item.UpdatedAt,
			&line.Product.ID,
			&line.Product.Title,
			&line.Product.Brand,
			&line.Product.Category,
			&line.Product.CoverImageURL,
			&line.Product.Description,
			&weight,
			&price,
			&line.ShopName,
		); err != nil {
			return nil, fmt.Errorf("scan cart line: %w", err)
		}
		line.Product.WeightG = intPtr(weight)
		line.UnitPrice = int64Ptr(price)
		lines = append(lines, line)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return lines, nil
}

func mapItemWriteError(err error) error {
	code, constraint := pqCode(err)
	if code == pqForeignKeyViolation {
		if strings.Contains(constraint, "offer") {
			return ErrOfferNotFound
		}
		return ErrProductNotFound
	}
	return fmt.Errorf("write cart item: %w", err)
}
