package tags

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/noah-isme/backend-dapur/internal/cache"
	"github.com/noah-isme/backend-dapur/internal/common"
	"github.com/noah-isme/backend-dapur/internal/obs"
)

const (
	defaultLookupLimit  = 10
	defaultSimilarLimit = 5
	maxTagLength        = 100
)

// Index is the persistence surface behind tag lookups.
type Index interface {
	FindProducts(ctx context.Context, query string, activeOnly bool, limit int) ([]ProductSummary, MatchKind, error)
	SimilarProducts(ctx context.Context, productID int64, limit int) ([]SimilarProduct, error)
	ProductTags(ctx context.Context, productID int64) ([]Tag, error)
	AttachTag(ctx context.Context, productID int64, name string) (Tag, error)
}

// FavoritesLookup reports which products a user has favorited.
type FavoritesLookup interface {
	FavoriteProductIDs(ctx context.Context, userID int64) (map[int64]struct{}, error)
}

// WarmScheduler queues asynchronous cache warmups.
type WarmScheduler interface {
	WarmTags(ctx context.Context, queries []string) error
}

// Service maps ingredient names to purchasable products.
type Service struct {
	index        Index
	favorites    FavoritesLookup
	warmups      WarmScheduler
	cache        *cache.JSON
	logger       zerolog.Logger
	defaultLimit int
}

// ServiceConfig groups Service dependencies.
type ServiceConfig struct {
	Index        Index
	Favorites    FavoritesLookup
	Warmups      WarmScheduler
	Cache        *cache.JSON
	Logger       zerolog.Logger
	DefaultLimit int
}

// NewService constructs a Service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Index == nil {
		return nil, errors.New("tags: index is required")
	}
	limit := cfg.DefaultLimit
	if limit < 1 {
		limit = defaultLookupLimit
	}
	return &Service{
		index:        cfg.Index,
		favorites:    cfg.Favorites,
		warmups:      cfg.Warmups,
		cache:        cfg.Cache,
		logger:       cfg.Logger,
		defaultLimit: limit,
	}, nil
}

type cachedLookup struct {
	Match    MatchKind        `json:"match"`
	Products []ProductSummary `json:"products"`
}

// ProductsByTag returns active products for the tag query resolves to, with
// in_favorites set for userID. An unmatched query yields an empty list.
func (s *Service) ProductsByTag(ctx context.Context, query string, userID int64, limit int) ([]ProductSummary, error) {
	favs, err := s.favoriteSet(ctx, userID)
	if err != nil {
		return nil, err
	}
	products, err := s.lookup(ctx, query, s.limit(limit))
	if err != nil {
		return nil, err
	}
	return markFavorites(products, favs), nil
}

// ProductsByTags runs one lookup per tag and keeps only tags with results.
func (s *Service) ProductsByTags(ctx context.Context, queries []string, userID int64, limit int) (map[string][]ProductSummary, error) {
	groups, err := s.FindIngredientAlternatives(ctx, queries, userID, limit)
	if err != nil {
		return nil, err
	}
	out := make(map[string][]ProductSummary, len(groups))
	for _, g := range groups {
		out[g.Ingredient] = g.Products
	}
	return out, nil
}

// FindIngredientAlternatives returns, in input order, the products found for
// each ingredient. Blank, duplicate and unmatched ingredients are omitted.
func (s *Service) FindIngredientAlternatives(ctx context.Context, ingredients []string, userID int64, limit int) ([]IngredientAlternatives, error) {
	favs, err := s.favoriteSet(ctx, userID)
	if err != nil {
		return nil, err
	}
	limit = s.limit(limit)
	seen := make(map[string]struct{}, len(ingredients))
	out := []IngredientAlternatives{}
	for _, ingredient := range ingredients {
		key := Normalize(ingredient)
		if key == "" {
			continue
		}
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		products, err := s.lookup(ctx, ingredient, limit)
		if err != nil {
			return nil, err
		}
		if len(products) == 0 {
			continue
		}
		out = append(out, IngredientAlternatives{
			Ingredient: strings.TrimSpace(ingredient),
			Products:   markFavorites(products, favs),
		})
	}
	return out, nil
}

// SimilarProducts lists active products sharing tags with productID.
func (s *Service) SimilarProducts(ctx context.Context, productID, userID int64, limit int) ([]SimilarProduct, error) {
	if limit < 1 {
		limit = defaultSimilarLimit
	}
	favs, err := s.favoriteSet(ctx, userID)
	if err != nil {
		return nil, err
	}
	rows, err := s.index.SimilarProducts(ctx, productID, limit)
	if err != nil {
		return nil, fmt.Errorf("similar products: %w", err)
	}
	for i := range rows {
		_, rows[i].InFavorites = favs[rows[i].ID]
	}
	return rows, nil
}

// ProductTags lists a product's tags.
func (s *Service) ProductTags(ctx context.Context, productID int64) ([]Tag, error) {
	out, err := s.index.ProductTags(ctx, productID)
	if err != nil {
		return nil, fmt.Errorf("product tags: %w", err)
	}
	return out, nil
}

// AddTagToProduct attaches a tag, creating it when needed, and drops cached
// lookups. A warmup for the tag is queued when a scheduler is configured.
func (s *Service) AddTagToProduct(ctx context.Context, productID int64, name string) (Tag, error) {
	name = Normalize(name)
	if name == "" || len([]rune(name)) > maxTagLength {
		return Tag{}, common.Validation("invalid tag name", map[string]any{
			"fields": []common.FieldError{{Field: "tag_name", Rule: "required"}},
		})
	}
	tag, err := s.index.AttachTag(ctx, productID, name)
	if err != nil {
		if errors.Is(err, ErrProductNotFound) {
			return Tag{}, common.NotFound("product not found", err)
		}
		return Tag{}, fmt.Errorf("attach tag: %w", err)
	}
	if err := s.cache.DeletePrefix(ctx, cache.PrefixTagProducts); err != nil {
		s.logger.Warn().Err(err).Msg("tag cache invalidation failed")
	}
	if s.warmups != nil {
		if err := s.warmups.WarmTags(ctx, []string{tag.Name}); err != nil {
			s.logger.Warn().Err(err).Str("tag", tag.Name).Msg("schedule tag warmup failed")
		}
	}
	return tag, nil
}

// Warm primes the lookup cache for the given queries.
func (s *Service) Warm(ctx context.Context, queries []string) (int, error) {
	warmed := 0
	for _, q := range queries {
		if Normalize(q) == "" {
			continue
		}
		if err := s.cache.Delete(ctx, cache.KeyTagProducts(q, s.defaultLimit)); err != nil {
			return warmed, err
		}
		if _, err := s.lookup(ctx, q, s.defaultLimit); err != nil {
			return warmed, err
		}
		warmed++
	}
	return warmed, nil
}

func (s *Service) lookup(ctx context.Context, query string, limit int) ([]ProductSummary, error) {
	key := cache.KeyTagProducts(query, limit)
	var cached cachedLookup
	if ok, err := s.cache.Get(ctx, key, &cached); err == nil && ok {
		obs.ObserveTagLookup(string(cached.Match))
		return cloneProducts(cached.Products), nil
	}
	products, kind, err := s.index.FindProducts(ctx, query, true, limit)
	if err != nil {
		return nil, fmt.Errorf("find products for tag %q: %w", query, err)
	}
	if products == nil {
		products = []ProductSummary{}
	}
	obs.ObserveTagLookup(string(kind))
	s.logger.Debug().Str("query", query).Str("match", string(kind)).Int("products", len(products)).Msg("tag lookup")
	if err := s.cache.Set(ctx, key, cachedLookup{Match: kind, Products: products}); err != nil {
		s.logger.Warn().Err(err).Str("key", key).Msg("tag cache write failed")
	}
	return cloneProducts(products), nil
}

func (s *Service) favoriteSet(ctx context.Context, userID int64) (map[int64]struct{}, error) {
	if userID <= 0 || s.favorites == nil {
		return nil, nil
	}
	favs, err := s.favorites.FavoriteProductIDs(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("load favorites: %w", err)
	}
	return favs, nil
}

func (s *Service) limit(limit int) int {
	if limit < 1 {
		return s.defaultLimit
	}
	return limit
}

func markFavorites(products []ProductSummary, favs map[int64]struct{}) []ProductSummary {
	for i := range products {
		_, products[i].InFavorites = favs[products[i].ID]
	}
	return products
}

func cloneProducts(in []ProductSummary) []ProductSummary {
	out := make([]ProductSummary, len(in))
	copy(out, in)
	return out
}
