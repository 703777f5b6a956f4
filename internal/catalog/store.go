package catalog

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/noah-isme/backend-dapur/internal/common"
	"github.com/noah-isme/backend-dapur/internal/db"
)

// ErrProductNotFound is returned when a product id does not exist.
var ErrProductNotFound = errors.New("product not found")

const productColumns = `p.id, p.name, p.description, p.price, p.category_id, p.image_url, p.stock_quantity, p.is_active`

// Store reads catalog rows from Postgres.
type Store struct {
	db db.DBTX
}

// NewStore constructs a Store over a pool or transaction.
func NewStore(conn db.DBTX) *Store {
	return &Store{db: conn}
}

func scanProduct(row pgx.Row) (Product, error) {
	var (
		p          Product
		categoryID *int64
	)
	if err := row.Scan(&p.ID, &p.Name, &p.Description, &p.Price, &categoryID, &p.ImageURL, &p.StockQuantity, &p.IsActive); err != nil {
		return Product{}, err
	}
	if categoryID != nil {
		p.CategoryID = *categoryID
	}
	return p, nil
}

func collectProducts(rows pgx.Rows) ([]Product, error) {
	defer rows.Close()
	var out []Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// ProductsByIDs loads the products with the given ids regardless of their active flag.
// Unknown ids are simply absent from the result.
func (s *Store) ProductsByIDs(ctx context.Context, ids []int64) (map[int64]Product, error) {
	result := make(map[int64]Product, len(ids))
	if len(ids) == 0 {
		return result, nil
	}
	rows, err := s.db.Query(ctx, `SELECT `+productColumns+` FROM products p WHERE p.id = ANY($1)`, ids)
	if err != nil {
		return nil, fmt.Errorf("query products by ids: %w", err)
	}
	products, err := collectProducts(rows)
	if err != nil {
		return nil, fmt.Errorf("scan products by ids: %w", err)
	}
	for _, p := range products {
		result[p.ID] = p
	}
	return result, nil
}

// GetProduct returns a single product.
func (s *Store) GetProduct(ctx context.Context, id int64) (Product, error) {
	p, err := scanProduct(s.db.QueryRow(ctx, `SELECT `+productColumns+` FROM products p WHERE p.id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Product{}, ErrProductNotFound
		}
		return Product{}, fmt.Errorf("get product: %w", err)
	}
	return p, nil
}

func listFilter(params ListParams) (string, []any) {
	clauses := []string{"p.is_active"}
	var args []any
	if q := strings.TrimSpace(params.Query); q != "" {
		args = append(args, "%"+q+"%")
		clauses = append(clauses, fmt.Sprintf("(p.name ILIKE $%d OR p.description ILIKE $%d)", len(args), len(args)))
	}
	if params.CategoryID > 0 {
		args = append(args, params.CategoryID)
		clauses = append(clauses, fmt.Sprintf("p.category_id = $%d", len(args)))
	}
	return " WHERE " + strings.Join(clauses, " AND "), args
}

// ListProducts returns active products matching params along with the total count.
func (s *Store) ListProducts(ctx context.Context, params ListParams) ([]Product, int64, error) {
	where, args := listFilter(params)

	var total int64
	if err := s.db.QueryRow(ctx, `SELECT count(*) FROM products p`+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count products: %w", err)
	}

	args = append(args, params.Limit, common.Offset(params.Page, params.Limit))
	query := fmt.Sprintf(`SELECT %s FROM products p%s ORDER BY p.id LIMIT $%d OFFSET $%d`, productColumns, where, len(args)-1, len(args))
	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list products: %w", err)
	}
	items, err := collectProducts(rows)
	if err != nil {
		return nil, 0, fmt.Errorf("scan products: %w", err)
	}
	return items, total, nil
}

// ListCategories returns all categories ordered by name.
func (s *Store) ListCategories(ctx context.Context) ([]Category, error) {
	rows, err := s.db.Query(ctx, `SELECT id, name, slug, description FROM categories ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	defer rows.Close()
	var out []Category
	for rows.Next() {
		var c Category
		if err := rows.Scan(&c.ID, &c.Name, &c.Slug, &c.Description); err != nil {
			return nil, fmt.Errorf("scan category: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}
