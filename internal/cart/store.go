package cart

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/noah-isme/backend-dapur/internal/db"
)

// Store persists cart lines in Postgres.
type Store struct {
	db db.DBTX
}

// NewStore constructs a Store.
func NewStore(conn db.DBTX) *Store {
	return &Store{db: conn}
}

// Items returns the user's cart lines joined with current product data.
func (s *Store) Items(ctx context.Context, userID int64) ([]Item, error) {
	rows, err := s.db.Query(ctx, `
		SELECT c.product_id, p.name, p.price, p.image_url, p.is_active, c.quantity, c.created_at, c.updated_at
		FROM cart_items c
		JOIN products p ON p.id = c.product_id
		WHERE c.user_id = $1
		ORDER BY c.created_at, c.product_id`, userID)
	if err != nil {
		return nil, fmt.Errorf("query cart items: %w", err)
	}
	defer rows.Close()
	out := []Item{}
	for rows.Next() {
		var it Item
		if err := rows.Scan(&it.ProductID, &it.Name, &it.Price, &it.ImageURL, &it.IsActive, &it.Quantity, &it.CreatedAt, &it.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan cart item: %w", err)
		}
		out = append(out, it)
	}
	return out, rows.Err()
}

// Add inserts a line or increments an existing one, returning the new
// quantity. The conditional upsert leaves the row untouched and yields
// ErrQuantityLimit when the new quantity would exceed limit.
func (s *Store) Add(ctx context.Context, userID, productID int64, qty, limit int) (int, error) {
	var total int
	err := s.db.QueryRow(ctx, `
		INSERT INTO cart_items (user_id, product_id, quantity) VALUES ($1, $2, $3)
		ON CONFLICT (user_id, product_id)
		DO UPDATE SET quantity = cart_items.quantity + EXCLUDED.quantity, updated_at = now()
		WHERE cart_items.quantity + EXCLUDED.quantity <= $4
		RETURNING quantity`, userID, productID, qty, limit).Scan(&total)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, ErrQuantityLimit
	}
	if err != nil {
		return 0, fmt.Errorf("add cart item: %w", err)
	}
	return total, nil
}

// SetQuantity overwrites a line's quantity and reports whether the line existed.
func (s *Store) SetQuantity(ctx context.Context, userID, productID int64, qty int) (bool, error) {
	tag, err := s.db.Exec(ctx, `
		UPDATE cart_items SET quantity = $3, updated_at = now()
		WHERE user_id = $1 AND product_id = $2`, userID, productID, qty)
	if err != nil {
		return false, fmt.Errorf("update cart item: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// Remove deletes a line and reports whether it existed.
func (s *Store) Remove(ctx context.Context, userID, productID int64) (bool, error) {
	tag, err := s.db.Exec(ctx, `DELETE FROM cart_items WHERE user_id = $1 AND product_id = $2`, userID, productID)
	if err != nil {
		return false, fmt.Errorf("remove cart item: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// Clear empties the user's cart.
func (s *Store) Clear(ctx context.Context, userID int64) error {
	if _, err := s.db.Exec(ctx, `DELETE FROM cart_items WHERE user_id = $1`, userID); err != nil {
		return fmt.Errorf("clear cart: %w", err)
	}
	return nil
}
