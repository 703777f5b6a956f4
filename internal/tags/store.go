package tags

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/noah-isme/backend-dapur/internal/db"
)

var (
	// ErrProductNotFound is returned when tagging a product id that does not exist.
	ErrProductNotFound = errors.New("product not found")
	// ErrTagNotFound is returned when no tag matches a query.
	ErrTagNotFound = errors.New("tag not found")
)

// Store reads and writes tags in Postgres.
type Store struct {
	db db.Conn
}

// NewStore constructs a Store.
func NewStore(conn db.Conn) *Store {
	return &Store{db: conn}
}

// ResolveTag returns the tag a free-text query maps to. Candidates are narrowed
// in SQL and ranked with Best so exact matches win over containment.
func (s *Store) ResolveTag(ctx context.Context, query string) (Tag, MatchKind, error) {
	q := Normalize(query)
	if q == "" {
		return Tag{}, MatchNone, nil
	}
	rows, err := s.db.Query(ctx, `
		SELECT id, name FROM tags
		WHERE strpos(lower(name), $1) > 0 OR strpos($1, lower(name)) > 0
		ORDER BY id`, q)
	if err != nil {
		return Tag{}, MatchNone, fmt.Errorf("query tag candidates: %w", err)
	}
	candidates, err := collectTags(rows)
	if err != nil {
		return Tag{}, MatchNone, fmt.Errorf("scan tag candidates: %w", err)
	}
	tag, kind := Best(q, candidates)
	return tag, kind, nil
}

// ProductsByTag lists products carrying tagID, newest ids last.
func (s *Store) ProductsByTag(ctx context.Context, tagID int64, activeOnly bool, limit int) ([]ProductSummary, error) {
	rows, err := s.db.Query(ctx, `
		SELECT p.id, p.name, p.price, p.image_url, p.stock_quantity, p.description
		FROM products p
		JOIN product_tags pt ON pt.product_id = p.id
		WHERE pt.tag_id = $1 AND (NOT $2 OR p.is_active)
		ORDER BY p.id
		LIMIT $3`, tagID, activeOnly, limit)
	if err != nil {
		return nil, fmt.Errorf("query products by tag: %w", err)
	}
	defer rows.Close()
	out := []ProductSummary{}
	for rows.Next() {
		var p ProductSummary
		if err := rows.Scan(&p.ID, &p.Name, &p.Price, &p.ImageURL, &p.StockQuantity, &p.Description); err != nil {
			return nil, fmt.Errorf("scan product by tag: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// FindProducts resolves query to a tag and returns up to limit of its products.
func (s *Store) FindProducts(ctx context.Context, query string, activeOnly bool, limit int) ([]ProductSummary, MatchKind, error) {
	tag, kind, err := s.ResolveTag(ctx, query)
	if err != nil || kind == MatchNone {
		return []ProductSummary{}, kind, err
	}
	products, err := s.ProductsByTag(ctx, tag.ID, activeOnly, limit)
	return products, kind, err
}

// SimilarProducts returns active products sharing at least one tag with productID,
// ordered by the number of shared tags.
func (s *Store) SimilarProducts(ctx context.Context, productID int64, limit int) ([]SimilarProduct, error) {
	rows, err := s.db.Query(ctx, `
		SELECT p.id, p.name, p.price, p.image_url, count(*) AS common_tags
		FROM product_tags pt
		JOIN products p ON p.id = pt.product_id
		WHERE pt.tag_id IN (SELECT tag_id FROM product_tags WHERE product_id = $1)
		  AND p.id <> $1 AND p.is_active
		GROUP BY p.id, p.name, p.price, p.image_url
		ORDER BY common_tags DESC, p.id
		LIMIT $2`, productID, limit)
	if err != nil {
		return nil, fmt.Errorf("query similar products: %w", err)
	}
	defer rows.Close()
	out := []SimilarProduct{}
	for rows.Next() {
		var p SimilarProduct
		if err := rows.Scan(&p.ID, &p.Name, &p.Price, &p.ImageURL, &p.CommonTags); err != nil {
			return nil, fmt.Errorf("scan similar product: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// ProductTags lists the tags attached to a product.
func (s *Store) ProductTags(ctx context.Context, productID int64) ([]Tag, error) {
	rows, err := s.db.Query(ctx, `
		SELECT t.id, t.name FROM tags t
		JOIN product_tags pt ON pt.tag_id = t.id
		WHERE pt.product_id = $1
		ORDER BY t.name`, productID)
	if err != nil {
		return nil, fmt.Errorf("query product tags: %w", err)
	}
	return collectTags(rows)
}

// AttachTag finds or creates the tag (stored lowercased) and links it to the
// product. Linking twice is a no-op.
func (s *Store) AttachTag(ctx context.Context, productID int64, name string) (Tag, error) {
	var tag Tag
	err := db.WithTx(ctx, s.db, func(tx pgx.Tx) error {
		var err error
		tag, err = findOrCreateTag(ctx, tx, Normalize(name))
		if err != nil {
			return err
		}
		_, err = tx.Exec(ctx, `
			INSERT INTO product_tags (product_id, tag_id) VALUES ($1, $2)
			ON CONFLICT DO NOTHING`, productID, tag.ID)
		if err != nil {
			if db.IsForeignKeyViolation(err) {
				return ErrProductNotFound
			}
			return fmt.Errorf("link product tag: %w", err)
		}
		return nil
	})
	return tag, err
}

func findOrCreateTag(ctx context.Context, tx pgx.Tx, name string) (Tag, error) {
	var tag Tag
	err := tx.QueryRow(ctx, `SELECT id, name FROM tags WHERE lower(name) = $1 ORDER BY id LIMIT 1`, name).Scan(&tag.ID, &tag.Name)
	if err == nil {
		return tag, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return Tag{}, fmt.Errorf("find tag: %w", err)
	}
	err = tx.QueryRow(ctx, `
		INSERT INTO tags (name) VALUES ($1)
		ON CONFLICT (name) DO UPDATE SET name = EXCLUDED.name
		RETURNING id, name`, name).Scan(&tag.ID, &tag.Name)
	if err != nil {
		return Tag{}, fmt.Errorf("create tag: %w", err)
	}
	return tag, nil
}

func collectTags(rows pgx.Rows) ([]Tag, error) {
	defer rows.Close()
	out := []Tag{}
	for rows.Next() {
		var t Tag
		if err := rows.Scan(&t.ID, &t.Name); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}
