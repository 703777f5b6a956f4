package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	"github.com/noah-isme/backend-dapur/internal/app"
	"github.com/noah-isme/backend-dapur/internal/auth"
	"github.com/noah-isme/backend-dapur/internal/db"
	"github.com/noah-isme/backend-dapur/internal/obs"
)

type demoProduct struct {
	Name     string
	Category string
	Price    string
	Stock    int
	Tags     []string
}

var categories = []struct {
	Name string
	Slug string
}{
	{"Мясо и птица", "meat-poultry"},
	{"Молочные продукты", "dairy"},
	{"Овощи и зелень", "vegetables"},
	{"Бакалея", "grocery"},
	{"Специи", "spices"},
}

var products = []demoProduct{
	{"Курица охлаждённая", "meat-poultry", "289.90", 40, []string{"курица", "птица"}},
	{"Куриная грудка филе", "meat-poultry", "399.00", 25, []string{"курица", "куриная грудка", "птица"}},
	{"Фарш говяжий", "meat-poultry", "459.00", 30, []string{"фарш", "говядина"}},
	{"Бекон сырокопчёный", "meat-poultry", "249.00", 20, []string{"бекон"}},
	{"Сыр моцарелла", "dairy", "219.00", 35, []string{"сыр моцарелла", "сыр"}},
	{"Сыр пармезан", "dairy", "549.00", 15, []string{"сыр пармезан", "сыр"}},
	{"Сливочное масло 82%", "dairy", "189.00", 50, []string{"сливочное масло", "масло"}},
	{"Яйца куриные С1", "dairy", "119.00", 60, []string{"яйца"}},
	{"Томаты черри", "vegetables", "179.00", 40, []string{"помидоры", "томаты"}},
	{"Салат романо", "vegetables", "149.00", 25, []string{"салат романо", "салат"}},
	{"Лук репчатый", "vegetables", "39.90", 80, []string{"лук"}},
	{"Базилик свежий", "vegetables", "89.00", 20, []string{"базилик", "зелень"}},
	{"Спагетти", "grocery", "99.00", 70, []string{"спагетти", "паста"}},
	{"Рис для суши", "grocery", "159.00", 45, []string{"рис", "рис для суши"}},
	{"Мука пшеничная", "grocery", "69.00", 90, []string{"мука"}},
	{"Сахар", "grocery", "79.00", 90, []string{"сахар"}},
	{"Какао-порошок", "grocery", "229.00", 30, []string{"какао"}},
	{"Томатная паста", "grocery", "59.00", 60, []string{"томатная паста", "томатный соус"}},
	{"Оливковое масло", "grocery", "649.00", 25, []string{"оливковое масло", "масло"}},
	{"Соль морская", "spices", "49.00", 100, []string{"соль"}},
	{"Перец чёрный молотый", "spices", "69.00", 100, []string{"перец"}},
	{"Чеснок", "spices", "29.90", 70, []string{"чеснок"}},
}

func main() {
	_ = godotenv.Load()
	logger := obs.NewLogger(envOr("OBS_LOG_FORMAT", "console"), "info").With().Str("component", "seeder").Logger()

	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		logger.Fatal().Msg("DATABASE_URL is not set")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	if err := db.Migrate(dbURL, logger); err != nil {
		logger.Fatal().Err(err).Msg("migrate")
	}
	pool, err := db.NewPool(ctx, db.PoolConfig{URL: dbURL})
	if err != nil {
		logger.Fatal().Err(err).Msg("connect database")
	}
	defer pool.Close()

	var userIDs map[string]int64
	err = db.WithTx(ctx, pool, func(tx pgx.Tx) error {
		var err error
		if userIDs, err = seedUsers(ctx, tx, logger); err != nil {
			return err
		}
		catIDs, err := seedCategories(ctx, tx)
		if err != nil {
			return err
		}
		productIDs, err := seedProducts(ctx, tx, catIDs)
		if err != nil {
			return err
		}
		return seedPromotions(ctx, tx, catIDs, productIDs)
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("seed")
	}

	if secret := os.Getenv("JWT_SECRET"); secret != "" {
		printTokens(secret, os.Getenv("JWT_ISSUER"), userIDs, logger)
	}
	logger.Info().Msg("seeding completed")
}

func seedUsers(ctx context.Context, tx pgx.Tx, logger zerolog.Logger) (map[string]int64, error) {
	users := []struct {
		Name  string
		Email string
		Role  string
	}{
		{"Администратор", "admin@dapur.local", auth.RoleAdmin},
		{"Анна Кулинарова", "anna@example.com", "user"},
		{"Иван Поваренко", "ivan@example.com", "user"},
	}
	password := envOr("SEED_PASSWORD", "password123")
	hash, err := app.HashPassword(password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	ids := make(map[string]int64, len(users))
	for _, u := range users {
		var id int64
		err := tx.QueryRow(ctx, `
			INSERT INTO users (email, full_name, hashed_password, role)
			VALUES ($1, $2, $3, $4)
			ON CONFLICT (email) DO UPDATE SET full_name = EXCLUDED.full_name, role = EXCLUDED.role
			RETURNING id`, u.Email, u.Name, hash, u.Role).Scan(&id)
		if err != nil {
			return nil, fmt.Errorf("seed user %s: %w", u.Email, err)
		}
		ids[u.Email] = id
	}
	logger.Info().Int("count", len(users)).Msg("users seeded")
	return ids, nil
}

func seedCategories(ctx context.Context, tx pgx.Tx) (map[string]int64, error) {
	ids := make(map[string]int64, len(categories))
	for _, c := range categories {
		var id int64
		err := tx.QueryRow(ctx, `
			INSERT INTO categories (name, slug) VALUES ($1, $2)
			ON CONFLICT (slug) DO UPDATE SET name = EXCLUDED.name
			RETURNING id`, c.Name, c.Slug).Scan(&id)
		if err != nil {
			return nil, fmt.Errorf("seed category %s: %w", c.Slug, err)
		}
		ids[c.Slug] = id
	}
	return ids, nil
}

func seedProducts(ctx context.Context, tx pgx.Tx, catIDs map[string]int64) (map[string]int64, error) {
	ids := make(map[string]int64, len(products))
	for _, p := range products {
		var id int64
		err := tx.QueryRow(ctx, `SELECT id FROM products WHERE name = $1`, p.Name).Scan(&id)
		if errors.Is(err, pgx.ErrNoRows) {
			err = tx.QueryRow(ctx, `
				INSERT INTO products (name, price, category_id, stock_quantity)
				VALUES ($1, $2::numeric, $3, $4)
				RETURNING id`, p.Name, p.Price, catIDs[p.Category], p.Stock).Scan(&id)
		}
		if err != nil {
			return nil, fmt.Errorf("seed product %s: %w", p.Name, err)
		}
		ids[p.Name] = id

		for _, tag := range p.Tags {
			var tagID int64
			if err := tx.QueryRow(ctx, `
				INSERT INTO tags (name) VALUES (lower($1))
				ON CONFLICT (name) DO UPDATE SET name = EXCLUDED.name
				RETURNING id`, tag).Scan(&tagID); err != nil {
				return nil, fmt.Errorf("seed tag %s: %w", tag, err)
			}
			if _, err := tx.Exec(ctx, `
				INSERT INTO product_tags (product_id, tag_id) VALUES ($1, $2)
				ON CONFLICT DO NOTHING`, id, tagID); err != nil {
				return nil, fmt.Errorf("link tag %s: %w", tag, err)
			}
		}
	}
	return ids, nil
}

func seedPromotions(ctx context.Context, tx pgx.Tx, catIDs, productIDs map[string]int64) error {
	var existing int
	if err := tx.QueryRow(ctx, `SELECT count(*) FROM promotions`).Scan(&existing); err != nil {
		return err
	}
	if existing > 0 {
		return nil
	}
	start := time.Now().Add(-time.Hour)
	end := start.AddDate(0, 3, 0)

	var dairy int64
	if err := tx.QueryRow(ctx, `
		INSERT INTO promotions (name, description, promotion_type, value, min_quantity, priority, start_date, end_date)
		VALUES ('Молочная неделя', 'Скидка 15% на молочные продукты', 'percentage', 15, 1, 10, $1, $2)
		RETURNING id`, start, end).Scan(&dairy); err != nil {
		return err
	}
	if _, err := tx.Exec(ctx, `INSERT INTO promotion_categories (promotion_id, category_id) VALUES ($1, $2)`, dairy, catIDs["dairy"]); err != nil {
		return err
	}

	var chicken int64
	if err := tx.QueryRow(ctx, `
		INSERT INTO promotions (name, description, promotion_type, value, min_quantity, priority, start_date, end_date)
		VALUES ('Курица дешевле', 'Минус 50 на курицу от двух штук', 'fixed', 50, 2, 5, $1, $2)
		RETURNING id`, start, end).Scan(&chicken); err != nil {
		return err
	}
	for _, name := range []string{"Курица охлаждённая", "Куриная грудка филе"} {
		if _, err := tx.Exec(ctx, `INSERT INTO promotion_products (promotion_id, product_id) VALUES ($1, $2)`, chicken, productIDs[name]); err != nil {
			return err
		}
	}

	var gift int64
	if err := tx.QueryRow(ctx, `
		INSERT INTO promotions (name, description, promotion_type, gift_product_id, min_quantity, min_order_amount, priority, start_date, end_date)
		VALUES ('Базилик в подарок', 'Базилик бесплатно к заказу от 1000', 'gift', $1, 1, 100000, 1, $2, $3)
		RETURNING id`, productIDs["Базилик свежий"], start, end).Scan(&gift); err != nil {
		return err
	}
	_, err := tx.Exec(ctx, `INSERT INTO promotion_products (promotion_id, product_id) VALUES ($1, $2)`, gift, productIDs["Спагетти"])
	return err
}

func printTokens(secret, issuer string, userIDs map[string]int64, logger zerolog.Logger) {
	tokens, err := auth.NewTokens(auth.Config{Secret: secret, Issuer: issuer, AccessTTL: 24 * time.Hour})
	if err != nil {
		logger.Error().Err(err).Msg("token issuer")
		return
	}
	for email, id := range userIDs {
		token, _, err := tokens.Issue(id)
		if err != nil {
			logger.Error().Err(err).Str("email", email).Msg("issue demo token")
			continue
		}
		logger.Info().Str("email", email).Int64("user_id", id).Str("token", token).Msg("demo access token")
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
