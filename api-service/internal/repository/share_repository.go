package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/rei1089/ec-ring/api-service/internal/domain"
)

func (r *Repository) CreateShare(ctx context.Context, share *domain.CartShare) error {
	query := `INSERT INTO cart_shares (id, cart_id, token, expires_at, created_by, created_at)
	          VALUES ($1, $2, $3, $4, $5, $6)`

	_, err := r.db.ExecContext(ctx, query,
		share.ID,
		share.CartID,
		share.Token,
		share.ExpiresAt,
		share.CreatedBy,
		share.CreatedAt)
	if err != nil {
		switch code, _ := pqCode(err); code {
		case pqUniqueViolation:
			return ErrDuplicateToken
		case pqForeignKeyViolation:
			return ErrCartNotFound
		}
		return fmt.Errorf("insert cart share: %w", err)
	}
	return nil
}

func (r *Repository) FindShareByToken(ctx context.Context, token string) (*domain.CartShare, error) {
	query := `SELECT id, cart_id, token, expires_at, created_by, created_at
	          FROM cart_shares WHERE token = $1`

	var s domain.CartShare
	err := r.db.QueryRowContext(ctx, query, token).Scan(
		&s.ID,
		&s.CartID,
		&s.Token,
		&s.ExpiresAt,
		&s.CreatedBy,
		&s.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrShareNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query cart share: %w", err)
	}
	return &s, nil
}
