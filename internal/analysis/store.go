package analysis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/noah-isme/backend-dapur/internal/db"
)

const recordColumns = `id, user_id, image_hash, detected_dish, confidence, ingredients, alternatives_found, created_at`

// Store persists analysis history in Postgres.
type Store struct {
	db db.DBTX
}

// NewStore constructs a Store.
func NewStore(conn db.DBTX) *Store {
	return &Store{db: conn}
}

func scanRecord(row pgx.Row) (Record, error) {
	var (
		r   Record
		raw []byte
	)
	if err := row.Scan(&r.ID, &r.UserID, &r.ImageHash, &r.DetectedDish, &r.Confidence, &raw, &r.AlternativesFound, &r.CreatedAt); err != nil {
		return Record{}, err
	}
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &r.Ingredients); err != nil {
			return Record{}, fmt.Errorf("decode ingredients: %w", err)
		}
	}
	return r, nil
}

// FindRecent returns the newest record for the same user and image hash created at or after since.
func (s *Store) FindRecent(ctx context.Context, userID int64, imageHash string, since time.Time) (Record, bool, error) {
	r, err := scanRecord(s.db.QueryRow(ctx, `
		SELECT `+recordColumns+` FROM dish_analysis_history
		WHERE user_id = $1 AND image_hash = $2 AND created_at >= $3
		ORDER BY created_at DESC LIMIT 1`, userID, imageHash, since))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Record{}, false, nil
		}
		return Record{}, false, fmt.Errorf("find recent analysis: %w", err)
	}
	return r, true, nil
}

// Insert stores a record and returns it with id and timestamp set.
func (s *Store) Insert(ctx context.Context, rec Record) (Record, error) {
	ingredients, err := json.Marshal(rec.Ingredients)
	if err != nil {
		return Record{}, fmt.Errorf("encode ingredients: %w", err)
	}
	out, err := scanRecord(s.db.QueryRow(ctx, `
		INSERT INTO dish_analysis_history (user_id, image_hash, detected_dish, confidence, ingredients, alternatives_found)
		VALUES ($1, $2, $3, $4, $5::jsonb, $6)
		RETURNING `+recordColumns,
		rec.UserID, rec.ImageHash, rec.DetectedDish, rec.Confidence, string(ingredients), rec.AlternativesFound))
	if err != nil {
		return Record{}, fmt.Errorf("insert analysis: %w", err)
	}
	return out, nil
}

// List returns a user's records, newest first.
func (s *Store) List(ctx context.Context, userID int64, filter HistoryFilter) ([]Record, error) {
	rows, err := s.db.Query(ctx, `
		SELECT `+recordColumns+` FROM dish_analysis_history
		WHERE user_id = $1 AND ($2::double precision IS NULL OR confidence >= $2)
		ORDER BY created_at DESC, id DESC
		OFFSET $3 LIMIT $4`, userID, filter.MinConfidence, filter.Offset, filter.Limit)
	if err != nil {
		return nil, fmt.Errorf("query analysis history: %w", err)
	}
	defer rows.Close()
	out := []Record{}
	for rows.Next() {
		r, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scan analysis: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// Counts returns the total, high-confidence and recent record counts for a user.
func (s *Store) Counts(ctx context.Context, userID int64, threshold float64, since time.Time) (total, high, recent int64, err error) {
	err = s.db.QueryRow(ctx, `
		SELECT count(*),
		       count(*) FILTER (WHERE confidence >= $2),
		       count(*) FILTER (WHERE created_at >= $3)
		FROM dish_analysis_history WHERE user_id = $1`, userID, threshold, since).Scan(&total, &high, &recent)
	if err != nil {
		return 0, 0, 0, fmt.Errorf("count analyses: %w", err)
	}
	return total, high, recent, nil
}

// Popular returns the user's most analysed dishes.
func (s *Store) Popular(ctx context.Context, userID int64, limit int) ([]PopularDish, error) {
	rows, err := s.db.Query(ctx, `
		SELECT detected_dish, count(*) AS n FROM dish_analysis_history
		WHERE user_id = $1
		GROUP BY detected_dish
		ORDER BY n DESC, detected_dish
		LIMIT $2`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("query popular dishes: %w", err)
	}
	defer rows.Close()
	out := []PopularDish{}
	for rows.Next() {
		var p PopularDish
		if err := rows.Scan(&p.DishName, &p.AnalysisCount); err != nil {
			return nil, fmt.Errorf("scan popular dish: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// Delete removes a user's record and reports whether it existed.
func (s *Store) Delete(ctx context.Context, userID, id int64) (bool, error) {
	tag, err := s.db.Exec(ctx, `DELETE FROM dish_analysis_history WHERE id = $1 AND user_id = $2`, id, userID)
	if err != nil {
		return false, fmt.Errorf("delete analysis: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}
