package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/rei1089/ec-ring/api-service/internal/domain"
)

// FindProductByBarcode looks the code up in the barcode table. The estimated
// price is the cheapest priced offer for the product, if any.
func (r *Repository) FindProductByBarcode(ctx context.Context, code string) (*domain.Product, error) {
	query := `
		SELECT p.id, p.title, p.brand, p.category, p.cover_image_url, p.description, p.weight_g,
		       (SELECT MIN(o.price_jpy) FROM offers o WHERE o.product_id = p.id) AS estimated_price
		FROM barcodes b
		JOIN products p ON p.id = b.product_id
		WHERE b.code_value = $1
	`

	var (
		p        domain.Product
		weight   sql.NullInt64
		estPrice sql.NullInt64
	)
	err := r.db.QueryRowContext(ctx, query, code).Scan(
		&p.ID,
		&p.Title,
		&p.Brand,
		&p.Category,
		&p.CoverImageURL,
		&p.Description,
		&weight,
		&estPrice,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query product by barcode: %w", err)
	}

	p.WeightG = intPtr(weight)
	p.EstimatedPrice = int64Ptr(estPrice)
	return &p, nil
}

func intPtr(v sql.NullInt64) *int {
	if !v.Valid {
		return nil
	}
	n := int(v.Int64)
	return &n
}

func int64Ptr(v sql.NullInt64) *int64 {
	if !v.Valid {
		return nil
	}
	n := v.Int64
	return &n
}
