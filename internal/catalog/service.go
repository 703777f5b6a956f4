package catalog

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/noah-isme/backend-dapur/internal/cache"
	"github.com/noah-isme/backend-dapur/internal/common"
)

// Queries is the persistence surface the catalog service relies on.
type Queries interface {
	ProductsByIDs(ctx context.Context, ids []int64) (map[int64]Product, error)
	GetProduct(ctx context.Context, id int64) (Product, error)
	ListProducts(ctx context.Context, params ListParams) ([]Product, int64, error)
	ListCategories(ctx context.Context) ([]Category, error)
}

// Service orchestrates catalog queries and caching.
type Service struct {
	queries      Queries
	cache        *cache.JSON
	defaultLimit int
	maxLimit     int
}

// ServiceConfig groups Service dependencies.
type ServiceConfig struct {
	Queries      Queries
	Cache        *cache.JSON
	DefaultLimit int
	MaxLimit     int
}

// NewService constructs a Service instance.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Queries == nil {
		return nil, errors.New("catalog: queries provider is required")
	}
	defaultLimit := cfg.DefaultLimit
	if defaultLimit < 1 {
		defaultLimit = 20
	}
	maxLimit := cfg.MaxLimit
	if maxLimit < 1 {
		maxLimit = 100
	}
	if defaultLimit > maxLimit {
		defaultLimit = maxLimit
	}
	return &Service{
		queries:      cfg.Queries,
		cache:        cfg.Cache,
		defaultLimit: defaultLimit,
		maxLimit:     maxLimit,
	}, nil
}

// ParseListParams normalises raw query values into strongly typed filters.
func (s *Service) ParseListParams(values url.Values) (ListParams, error) {
	params := ListParams{Page: 1, Limit: s.defaultLimit}
	params.Query = strings.TrimSpace(values.Get("q"))

	if v := strings.TrimSpace(values.Get("category_id")); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil || id < 1 {
			return params, badRequest("category_id", "category_id must be a positive integer", err)
		}
		params.CategoryID = id
	}
	if v := strings.TrimSpace(values.Get("page")); v != "" {
		page, err := strconv.Atoi(v)
		if err != nil || page < 1 {
			return params, badRequest("page", "page must be a positive integer", err)
		}
		params.Page = page
	}
	if v := strings.TrimSpace(values.Get("limit")); v != "" {
		l, err := strconv.Atoi(v)
		if err != nil || l < 1 {
			return params, badRequest("limit", "limit must be a positive integer", err)
		}
		params.Limit = min(l, s.maxLimit)
	}
	return params, nil
}

// ProductsByIDs resolves products for pricing. Missing ids are absent from the map.
func (s *Service) ProductsByIDs(ctx context.Context, ids []int64) (map[int64]Product, error) {
	return s.queries.ProductsByIDs(ctx, ids)
}

// ListCategories returns all categories, served from cache when possible.
func (s *Service) ListCategories(ctx context.Context) ([]Category, error) {
	var cached []Category
	if ok, err := s.cache.Get(ctx, cache.KeyCategories, &cached); err == nil && ok {
		return cached, nil
	}
	rows, err := s.queries.ListCategories(ctx)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	if rows == nil {
		rows = []Category{}
	}
	_ = s.cache.Set(ctx, cache.KeyCategories, rows)
	return rows, nil
}

// ListProducts returns filtered product list with pagination metadata.
func (s *Service) ListProducts(ctx context.Context, params ListParams) (ProductListResult, error) {
	items, total, err := s.queries.ListProducts(ctx, params)
	if err != nil {
		return ProductListResult{}, fmt.Errorf("list products: %w", err)
	}
	if items == nil {
		items = []Product{}
	}
	return ProductListResult{Items: items, Total: total, Page: params.Page, Limit: params.Limit}, nil
}

// GetProduct returns a single product or a NOT_FOUND AppError.
func (s *Service) GetProduct(ctx context.Context, id int64) (Product, error) {
	p, err := s.queries.GetProduct(ctx, id)
	if err != nil {
		if errors.Is(err, ErrProductNotFound) {
			return Product{}, common.NotFound("product not found", err)
		}
		return Product{}, fmt.Errorf("get product: %w", err)
	}
	return p, nil
}

func badRequest(field, message string, err error) *common.AppError {
	return &common.AppError{
		Code:       "BAD_REQUEST",
		Message:    message,
		HTTPStatus: http.StatusBadRequest,
		Err:        err,
		Details:    map[string]any{"field": field},
	}
}
