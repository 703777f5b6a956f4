package promotion

import (
	"context"
	"errors"
	"fmt"
	"time"

	validator "github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"github.com/noah-isme/backend-dapur/internal/catalog"
	"github.com/noah-isme/backend-dapur/internal/common"
	"github.com/noah-isme/backend-dapur/internal/obs"
)

// CatalogLookup resolves product ids to catalog products.
type CatalogLookup interface {
	ProductsByIDs(ctx context.Context, ids []int64) (map[int64]catalog.Product, error)
}

// Repository is the persistence surface of the promotion service.
type Repository interface {
	ActivePromotions(ctx context.Context, now time.Time) ([]Promotion, error)
	List(ctx context.Context, filter ListFilter) ([]Promotion, error)
	Get(ctx context.Context, id int64) (Promotion, error)
	Create(ctx context.Context, in CreateInput) (Promotion, error)
	Update(ctx context.Context, id int64, in UpdateInput) (Promotion, error)
	Delete(ctx context.Context, id int64) error
}

// Service prices carts against active promotions and manages promotion definitions.
type Service struct {
	repo      Repository
	catalog   CatalogLookup
	validate  *validator.Validate
	logger    zerolog.Logger
	now       func() time.Time
	debugEval bool
}

// ServiceConfig groups Service dependencies.
type ServiceConfig struct {
	Repository Repository
	Catalog    CatalogLookup
	Validator  *validator.Validate
	Logger     zerolog.Logger
	Now        func() time.Time
	// LogEvaluations logs every promotion outcome at debug level.
	LogEvaluations bool
}

// NewService constructs a Service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Repository == nil {
		return nil, errors.New("promotion: repository is required")
	}
	if cfg.Catalog == nil {
		return nil, errors.New("promotion: catalog lookup is required")
	}
	v := cfg.Validator
	if v == nil {
		v = common.NewValidator()
	}
	RegisterValidation(v)
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &Service{
		repo:      cfg.Repository,
		catalog:   cfg.Catalog,
		validate:  v,
		logger:    cfg.Logger,
		now:       now,
		debugEval: cfg.LogEvaluations,
	}, nil
}

// CalculateCartDiscounts prices the items against the currently active promotions.
// Errors only come from loading promotions or products; the calculation itself never fails.
func (s *Service) CalculateCartDiscounts(ctx context.Context, items []CartItem, userID int64) (Result, error) {
	promotions, err := s.repo.ActivePromotions(ctx, s.now())
	if err != nil {
		obs.ObservePromotionCalculation("error")
		return Result{}, fmt.Errorf("load active promotions: %w", err)
	}

	ids := make([]int64, 0, len(items))
	seen := make(map[int64]struct{}, len(items))
	add := func(id int64) {
		if _, ok := seen[id]; ok || id <= 0 {
			return
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}
	for _, it := range items {
		add(it.ProductID)
	}
	for _, p := range promotions {
		if p.Type == TypeGift && p.GiftProductID != nil {
			add(*p.GiftProductID)
		}
	}

	products, err := s.catalog.ProductsByIDs(ctx, ids)
	if err != nil {
		obs.ObservePromotionCalculation("error")
		return Result{}, fmt.Errorf("load cart products: %w", err)
	}

	result := Calculate(items, promotions, products)
	s.report(ctx, userID, promotions, result)
	return result, nil
}

func (s *Service) report(ctx context.Context, userID int64, promotions []Promotion, result Result) {
	obs.ObservePromotionCalculation("ok")
	types := make(map[int64]Type, len(promotions))
	for _, p := range promotions {
		types[p.ID] = p.Type
	}
	logger := obs.WithTrace(ctx, s.logger)
	for _, ev := range result.Evaluations {
		if ev.Applied {
			obs.ObservePromotionApplied(string(types[ev.PromotionID]))
		}
		if s.debugEval {
			logger.Debug().
				Int64("user_id", userID).
				Int64("promotion_id", ev.PromotionID).
				Bool("applied", ev.Applied).
				Str("reason", ev.Reason).
				Msg("promotion evaluated")
		}
	}
	logger.Debug().
		Int64("user_id", userID).
		Int("lines", len(result.Items)).
		Int("applied", len(result.AppliedPromotions)).
		Str("discount", result.DiscountAmount.String()).
		Msg("cart discounts calculated")
}

// List returns promotions currently inside their validity window.
func (s *Service) List(ctx context.Context, filter ListFilter) ([]Promotion, error) {
	if filter.Type != "" && !filter.Type.Valid() {
		return nil, common.Validation("unknown promotion type", map[string]any{"field": "type"})
	}
	filter.Now = s.now()
	out, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, err
	}
	if out == nil {
		out = []Promotion{}
	}
	return out, nil
}

// ActiveForCart returns the promotions the discount engine would consider now.
func (s *Service) ActiveForCart(ctx context.Context) ([]Promotion, error) {
	out, err := s.repo.ActivePromotions(ctx, s.now())
	if err != nil {
		return nil, err
	}
	if out == nil {
		out = []Promotion{}
	}
	return Order(out), nil
}

// Get returns one promotion.
func (s *Service) Get(ctx context.Context, id int64) (Promotion, error) {
	p, err := s.repo.Get(ctx, id)
	return p, mapNotFound(err)
}

// Create validates and stores a new promotion.
func (s *Service) Create(ctx context.Context, in CreateInput) (Promotion, error) {
	if err := ValidateInput(s.validate, in); err != nil {
		return Promotion{}, err
	}
	in = in.normalize()
	if in.Type == TypeGift {
		products, err := s.catalog.ProductsByIDs(ctx, []int64{*in.GiftProductID})
		if err != nil {
			return Promotion{}, fmt.Errorf("resolve gift product: %w", err)
		}
		if _, ok := products[*in.GiftProductID]; !ok {
			return Promotion{}, common.Validation("gift product not found", map[string]any{"field": "gift_product_id"})
		}
	}
	p, err := s.repo.Create(ctx, in)
	if err != nil {
		return Promotion{}, err
	}
	s.logger.Info().Int64("promotion_id", p.ID).Str("type", string(p.Type)).Msg("promotion created")
	return p, nil
}

// Update changes name, description, activity or priority.
func (s *Service) Update(ctx context.Context, id int64, in UpdateInput) (Promotion, error) {
	if err := ValidateInput(s.validate, in); err != nil {
		return Promotion{}, err
	}
	if in.Empty() {
		return s.Get(ctx, id)
	}
	p, err := s.repo.Update(ctx, id, in)
	return p, mapNotFound(err)
}

// Delete removes a promotion and its scope links.
func (s *Service) Delete(ctx context.Context, id int64) error {
	if err := mapNotFound(s.repo.Delete(ctx, id)); err != nil {
		return err
	}
	s.logger.Info().Int64("promotion_id", id).Msg("promotion deleted")
	return nil
}

func mapNotFound(err error) error {
	if errors.Is(err, ErrNotFound) {
		return common.NotFound("promotion not found", err)
	}
	return err
}
