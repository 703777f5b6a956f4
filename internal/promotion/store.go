package promotion

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/noah-isme/backend-dapur/internal/db"
)

// ErrNotFound is returned when a promotion id does not exist.
var ErrNotFound = errors.New("promotion not found")

const promotionColumns = `id, name, description, promotion_type, value, gift_product_id, min_quantity,
	min_order_amount, priority, is_active, start_date, end_date, created_at`

// ListFilter narrows the authoring list to promotions valid at Now.
type ListFilter struct {
	Now      time.Time
	IsActive *bool
	Type     Type
	Offset   int
	Limit    int
}

// Store persists promotions and their category/product scopes in Postgres.
type Store struct {
	conn db.Conn
}

// NewStore constructs a Store.
func NewStore(conn db.Conn) *Store {
	return &Store{conn: conn}
}

func scanPromotion(row pgx.Row) (Promotion, error) {
	var (
		p     Promotion
		value *int32
		kind  string
	)
	if err := row.Scan(&p.ID, &p.Name, &p.Description, &kind, &value, &p.GiftProductID, &p.MinQuantity,
		&p.MinOrderAmount, &p.Priority, &p.IsActive, &p.StartDate, &p.EndDate, &p.CreatedAt); err != nil {
		return Promotion{}, err
	}
	p.Type = Type(kind)
	if value != nil {
		v := int64(*value)
		p.Value = &v
	}
	p.CategoryIDs = []int64{}
	p.ProductIDs = []int64{}
	return p, nil
}

func (s *Store) queryPromotions(ctx context.Context, sql string, args ...any) ([]Promotion, error) {
	rows, err := s.conn.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Promotion
	for rows.Next() {
		p, err := scanPromotion(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if err := s.loadScopes(ctx, out); err != nil {
		return nil, err
	}
	return out, nil
}

// loadScopes fills CategoryIDs and ProductIDs for the given promotions with two batched queries.
func (s *Store) loadScopes(ctx context.Context, promotions []Promotion) error {
	if len(promotions) == 0 {
		return nil
	}
	ids := make([]int64, len(promotions))
	index := make(map[int64]int, len(promotions))
	for i, p := range promotions {
		ids[i] = p.ID
		index[p.ID] = i
	}
	scopes := []struct {
		sql    string
		assign func(p *Promotion, id int64)
	}{
		{`SELECT promotion_id, category_id FROM promotion_categories WHERE promotion_id = ANY($1) ORDER BY category_id`,
			func(p *Promotion, id int64) { p.CategoryIDs = append(p.CategoryIDs, id) }},
		{`SELECT promotion_id, product_id FROM promotion_products WHERE promotion_id = ANY($1) ORDER BY product_id`,
			func(p *Promotion, id int64) { p.ProductIDs = append(p.ProductIDs, id) }},
	}
	for _, scope := range scopes {
		rows, err := s.conn.Query(ctx, scope.sql, ids)
		if err != nil {
			return fmt.Errorf("load promotion scope: %w", err)
		}
		for rows.Next() {
			var promotionID, targetID int64
			if err := rows.Scan(&promotionID, &targetID); err != nil {
				rows.Close()
				return fmt.Errorf("scan promotion scope: %w", err)
			}
			if i, ok := index[promotionID]; ok {
				scope.assign(&promotions[i], targetID)
			}
		}
		rows.Close()
		if err := rows.Err(); err != nil {
			return fmt.Errorf("iterate promotion scope: %w", err)
		}
	}
	return nil
}

// ActivePromotions returns promotions flagged active whose validity window contains now.
func (s *Store) ActivePromotions(ctx context.Context, now time.Time) ([]Promotion, error) {
	out, err := s.queryPromotions(ctx, `SELECT `+promotionColumns+` FROM promotions
		WHERE is_active AND start_date <= $1 AND end_date >= $1
		ORDER BY priority DESC, id`, now)
	if err != nil {
		return nil, fmt.Errorf("active promotions: %w", err)
	}
	return out, nil
}

// List returns promotions valid at filter.Now, newest first within equal priority.
func (s *Store) List(ctx context.Context, filter ListFilter) ([]Promotion, error) {
	clauses := []string{"start_date <= $1", "end_date >= $1"}
	args := []any{filter.Now}
	if filter.IsActive != nil {
		args = append(args, *filter.IsActive)
		clauses = append(clauses, fmt.Sprintf("is_active = $%d", len(args)))
	}
	if filter.Type != "" {
		args = append(args, string(filter.Type))
		clauses = append(clauses, fmt.Sprintf("promotion_type = $%d", len(args)))
	}
	args = append(args, filter.Limit, filter.Offset)
	sql := fmt.Sprintf(`SELECT %s FROM promotions WHERE %s ORDER BY priority DESC, created_at DESC LIMIT $%d OFFSET $%d`,
		promotionColumns, strings.Join(clauses, " AND "), len(args)-1, len(args))
	out, err := s.queryPromotions(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("list promotions: %w", err)
	}
	return out, nil
}

// Get loads a promotion with its scopes.
func (s *Store) Get(ctx context.Context, id int64) (Promotion, error) {
	out, err := s.queryPromotions(ctx, `SELECT `+promotionColumns+` FROM promotions WHERE id = $1`, id)
	if err != nil {
		return Promotion{}, fmt.Errorf("get promotion: %w", err)
	}
	if len(out) == 0 {
		return Promotion{}, ErrNotFound
	}
	return out[0], nil
}

// Create inserts the promotion and its scope links in one transaction.
func (s *Store) Create(ctx context.Context, in CreateInput) (Promotion, error) {
	isActive := true
	if in.IsActive != nil {
		isActive = *in.IsActive
	}
	var id int64
	err := db.WithTx(ctx, s.conn, func(tx pgx.Tx) error {
		if err := tx.QueryRow(ctx, `INSERT INTO promotions
			(name, description, promotion_type, value, gift_product_id, min_quantity, min_order_amount,
			 start_date, end_date, is_active, priority)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
			RETURNING id`,
			in.Name, in.Description, string(in.Type), in.Value, in.GiftProductID, in.MinQuantity, in.MinOrderAmount,
			in.StartDate, in.EndDate, isActive, in.Priority,
		).Scan(&id); err != nil {
			return fmt.Errorf("insert promotion: %w", err)
		}
		if len(in.CategoryIDs) > 0 {
			if _, err := tx.Exec(ctx, `INSERT INTO promotion_categories (promotion_id, category_id)
				SELECT $1, unnest($2::bigint[]) ON CONFLICT DO NOTHING`, id, in.CategoryIDs); err != nil {
				return fmt.Errorf("insert promotion categories: %w", err)
			}
		}
		if len(in.ProductIDs) > 0 {
			if _, err := tx.Exec(ctx, `INSERT INTO promotion_products (promotion_id, product_id)
				SELECT $1, unnest($2::bigint[]) ON CONFLICT DO NOTHING`, id, in.ProductIDs); err != nil {
				return fmt.Errorf("insert promotion products: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return Promotion{}, err
	}
	return s.Get(ctx, id)
}

// Update applies the non-nil fields of in.
func (s *Store) Update(ctx context.Context, id int64, in UpdateInput) (Promotion, error) {
	tag, err := s.conn.Exec(ctx, `UPDATE promotions SET
			name = COALESCE($2, name),
			description = COALESCE($3, description),
			is_active = COALESCE($4, is_active),
			priority = COALESCE($5, priority)
		WHERE id = $1`, id, in.Name, in.Description, in.IsActive, in.Priority)
	if err != nil {
		return Promotion{}, fmt.Errorf("update promotion: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return Promotion{}, ErrNotFound
	}
	return s.Get(ctx, id)
}

// Delete removes the promotion together with its scope links.
func (s *Store) Delete(ctx context.Context, id int64) error {
	return db.WithTx(ctx, s.conn, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `DELETE FROM promotion_categories WHERE promotion_id = $1`, id); err != nil {
			return fmt.Errorf("delete promotion categories: %w", err)
		}
		if _, err := tx.Exec(ctx, `DELETE FROM promotion_products WHERE promotion_id = $1`, id); err != nil {
			return fmt.Errorf("delete promotion products: %w", err)
		}
		tag, err := tx.Exec(ctx, `DELETE FROM promotions WHERE id = $1`, id)
		if err != nil {
			return fmt.Errorf("delete promotion: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return ErrNotFound
		}
		return nil
	})
}
