package favorites

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/noah-isme/backend-dapur/internal/db"
)

// Favorite is a product a user has marked.
type Favorite struct {
	ProductID   int64           `json:"product_id"`
	Name        string          `json:"name"`
	Price       decimal.Decimal `json:"price"`
	ImageURL    string          `json:"image_url"`
	IsActive    bool            `json:"is_active"`
	FavoritedAt time.Time       `json:"favorited_at"`
}

// Store persists favorites in Postgres.
type Store struct {
	db db.DBTX
}

// NewStore constructs a Store.
func NewStore(conn db.DBTX) *Store {
	return &Store{db: conn}
}

// FavoriteProductIDs returns the set of product ids the user has favorited.
func (s *Store) FavoriteProductIDs(ctx context.Context, userID int64) (map[int64]struct{}, error) {
	rows, err := s.db.Query(ctx, `SELECT product_id FROM favorites WHERE user_id = $1`, userID)
	if err != nil {
		return nil, fmt.Errorf("query favorite ids: %w", err)
	}
	defer rows.Close()
	out := map[int64]struct{}{}
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan favorite id: %w", err)
		}
		out[id] = struct{}{}
	}
	return out, rows.Err()
}

// List returns the user's favorites, most recent first.
func (s *Store) List(ctx context.Context, userID int64) ([]Favorite, error) {
	rows, err := s.db.Query(ctx, `
		SELECT p.id, p.name, p.price, p.image_url, p.is_active, f.created_at
		FROM favorites f
		JOIN products p ON p.id = f.product_id
		WHERE f.user_id = $1
		ORDER BY f.created_at DESC, p.id`, userID)
	if err != nil {
		return nil, fmt.Errorf("query favorites: %w", err)
	}
	defer rows.Close()
	out := []Favorite{}
	for rows.Next() {
		var f Favorite
		if err := rows.Scan(&f.ProductID, &f.Name, &f.Price, &f.ImageURL, &f.IsActive, &f.FavoritedAt); err != nil {
			return nil, fmt.Errorf("scan favorite: %w", err)
		}
		out = append(out, f)
	}
	return out, rows.Err()
}

// Add marks a product; repeating it is a no-op.
func (s *Store) Add(ctx context.Context, userID, productID int64) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO favorites (user_id, product_id) VALUES ($1, $2)
		ON CONFLICT DO NOTHING`, userID, productID)
	if err != nil {
		if db.IsForeignKeyViolation(err) {
			return ErrProductNotFound
		}
		return fmt.Errorf("add favorite: %w", err)
	}
	return nil
}

// Remove unmarks a product and reports whether a row was deleted.
func (s *Store) Remove(ctx context.Context, userID, productID int64) (bool, error) {
	tag, err := s.db.Exec(ctx, `DELETE FROM favorites WHERE user_id = $1 AND product_id = $2`, userID, productID)
	if err != nil {
		return false, fmt.Errorf("remove favorite: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// Exists reports whether the product is among the user's favorites.
func (s *Store) Exists(ctx context.Context, userID, productID int64) (bool, error) {
	var ok bool
	err := s.db.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM favorites WHERE user_id = $1 AND product_id = $2)`, userID, productID).Scan(&ok)
	if err != nil {
		return false, fmt.Errorf("check favorite: %w", err)
	}
	return ok, nil
}
