package cart

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	"github.com/noah-isme/backend-dapur/internal/catalog"
	"github.com/noah-isme/backend-dapur/internal/common"
	"github.com/noah-isme/backend-dapur/internal/pricing"
	"github.com/noah-isme/backend-dapur/internal/promotion"
)

// MaxQuantity caps a single cart line.
const MaxQuantity = 999

// ErrNotFound indicates the product is not in the cart.
var ErrNotFound = errors.New("item not found in cart")

// ErrInvalidInput is returned when the provided payload is invalid.
var ErrInvalidInput = errors.New("invalid input")

// ErrQuantityLimit is returned by Repository.Add when the line would exceed its limit.
var ErrQuantityLimit = errors.New("cart line quantity limit reached")

// Item is a stored cart line with live product data.
type Item struct {
	ProductID int64           `json:"product_id"`
	Name      string          `json:"name"`
	Price     decimal.Decimal `json:"price"`
	ImageURL  string          `json:"image_url"`
	IsActive  bool            `json:"is_active"`
	Quantity  int             `json:"quantity"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// View is the undiscounted cart summary.
type View struct {
	Items      []Item          `json:"items"`
	TotalItems int             `json:"total_items"`
	TotalPrice decimal.Decimal `json:"total_price"`
}

// Repository is the persistence surface used by Service.
type Repository interface {
	Items(ctx context.Context, userID int64) ([]Item, error)
	Add(ctx context.Context, userID, productID int64, qty, limit int) (int, error)
	SetQuantity(ctx context.Context, userID, productID int64, qty int) (bool, error)
	Remove(ctx context.Context, userID, productID int64) (bool, error)
	Clear(ctx context.Context, userID int64) error
}

// ProductLookup resolves a product before it is added to a cart.
type ProductLookup interface {
	GetProduct(ctx context.Context, id int64) (catalog.Product, error)
}

// Pricer runs the discount engine over cart items.
type Pricer interface {
	CalculateCartDiscounts(ctx context.Context, items []promotion.CartItem, userID int64) (promotion.Result, error)
}

// Service encapsulates cart domain operations.
type Service struct {
	repo     Repository
	products ProductLookup
	pricer   Pricer
}

// NewService constructs a Service.
func NewService(repo Repository, products ProductLookup, pricer Pricer) *Service {
	return &Service{repo: repo, products: products, pricer: pricer}
}

// View returns the cart with totals at undiscounted prices.
func (s *Service) View(ctx context.Context, userID int64) (View, error) {
	items, err := s.repo.Items(ctx, userID)
	if err != nil {
		return View{}, err
	}
	priced := make([]pricing.Item, 0, len(items))
	total := 0
	for _, it := range items {
		priced = append(priced, pricing.Item{Qty: it.Quantity, UnitPrice: it.Price})
		total += it.Quantity
	}
	return View{Items: items, TotalItems: total, TotalPrice: pricing.Subtotal(priced)}, nil
}

// Priced runs the stored cart through the discount engine.
func (s *Service) Priced(ctx context.Context, userID int64) (promotion.Result, error) {
	items, err := s.repo.Items(ctx, userID)
	if err != nil {
		return promotion.Result{}, err
	}
	req := make([]promotion.CartItem, 0, len(items))
	for _, it := range items {
		req = append(req, promotion.CartItem{ProductID: it.ProductID, Quantity: it.Quantity})
	}
	return s.pricer.CalculateCartDiscounts(ctx, req, userID)
}

// AddItem adds qty of an active product, incrementing an existing line. An
// increment that would take the line past MaxQuantity is rejected and leaves
// the line unchanged.
func (s *Service) AddItem(ctx context.Context, userID, productID int64, qty int) (int, error) {
	if qty <= 0 || qty > MaxQuantity {
		return 0, fmt.Errorf("quantity must be between 1 and %d: %w", MaxQuantity, ErrInvalidInput)
	}
	p, err := s.products.GetProduct(ctx, productID)
	if err != nil {
		if errors.Is(err, catalog.ErrProductNotFound) {
			return 0, fmt.Errorf("product not found: %w", ErrInvalidInput)
		}
		return 0, err
	}
	if !p.IsActive {
		return 0, fmt.Errorf("product not found: %w", ErrInvalidInput)
	}
	total, err := s.repo.Add(ctx, userID, productID, qty, MaxQuantity)
	if err != nil {
		if errors.Is(err, ErrQuantityLimit) {
			return 0, fmt.Errorf("quantity must not exceed %d: %w", MaxQuantity, ErrInvalidInput)
		}
		return 0, err
	}
	return total, nil
}

// UpdateQuantity sets a line's quantity; zero or less removes the line.
// It reports whether the line was removed.
func (s *Service) UpdateQuantity(ctx context.Context, userID, productID int64, qty int) (bool, error) {
	if qty > MaxQuantity {
		return false, fmt.Errorf("quantity must not exceed %d: %w", MaxQuantity, ErrInvalidInput)
	}
	if qty <= 0 {
		return true, s.RemoveItem(ctx, userID, productID)
	}
	ok, err := s.repo.SetQuantity(ctx, userID, productID, qty)
	if err != nil {
		return false, err
	}
	if !ok {
		return false, ErrNotFound
	}
	return false, nil
}

// RemoveItem deletes a line.
func (s *Service) RemoveItem(ctx context.Context, userID, productID int64) error {
	ok, err := s.repo.Remove(ctx, userID, productID)
	if err != nil {
		return err
	}
	if !ok {
		return ErrNotFound
	}
	return nil
}

// Clear empties the cart.
func (s *Service) Clear(ctx context.Context, userID int64) error {
	return s.repo.Clear(ctx, userID)
}

func mapError(err error) error {
	switch {
	case errors.Is(err, ErrNotFound):
		return common.NotFound("item not found in cart", err)
	case errors.Is(err, ErrInvalidInput):
		return common.NewAppError("BAD_REQUEST", err.Error(), http.StatusBadRequest, err)
	}
	return err
}
