package promotion

import (
	"time"

	"github.com/shopspring/decimal"
)

// Type enumerates the supported promotion kinds.
type Type string

const (
	TypePercentage Type = "percentage"
	TypeFixed      Type = "fixed"
	TypeGift       Type = "gift"
)

// Valid reports whether t is a known promotion type.
func (t Type) Valid() bool {
	switch t {
	case TypePercentage, TypeFixed, TypeGift:
		return true
	}
	return false
}

// Promotion is an active discount rule. Value is a percentage (1..100) for
// percentage promotions and an amount for fixed ones; gift promotions ignore it.
// MinOrderAmount is stored in minor units.
type Promotion struct {
	ID             int64     `json:"id"`
	Name           string    `json:"name"`
	Description    string    `json:"description"`
	Type           Type      `json:"promotion_type"`
	Value          *int64    `json:"value,omitempty"`
	GiftProductID  *int64    `json:"gift_product_id,omitempty"`
	MinQuantity    int       `json:"min_quantity"`
	MinOrderAmount int64     `json:"min_order_amount"`
	CategoryIDs    []int64   `json:"category_ids"`
	ProductIDs     []int64   `json:"product_ids"`
	Priority       int       `json:"priority"`
	IsActive       bool      `json:"is_active"`
	StartDate      time.Time `json:"start_date"`
	EndDate        time.Time `json:"end_date"`
	CreatedAt      time.Time `json:"created_at"`
}

// CartItem is a product/quantity pair submitted for pricing.
type CartItem struct {
	ProductID int64 `json:"product_id" validate:"required,gt=0"`
	Quantity  int   `json:"quantity" validate:"required,gt=0"`
}

// LineAnnotation records a promotion that touched a cart line.
type LineAnnotation struct {
	PromotionID     int64  `json:"promotion_id"`
	Name            string `json:"name"`
	Type            Type   `json:"type"`
	Value           *int64 `json:"value,omitempty"`
	GiftProductID   *int64 `json:"gift_product_id,omitempty"`
	GiftProductName string `json:"gift_product_name,omitempty"`
}

// Line is a priced cart line. DiscountPrice starts at Price and only decreases.
type Line struct {
	ProductID         int64            `json:"product_id"`
	Quantity          int              `json:"quantity"`
	Price             decimal.Decimal  `json:"price"`
	DiscountPrice     decimal.Decimal  `json:"discount_price"`
	AppliedPromotions []LineAnnotation `json:"applied_promotions"`
	CategoryID        int64            `json:"category_id,omitempty"`
}

// AppliedPromotion lists a promotion that changed at least one line.
type AppliedPromotion struct {
	PromotionID int64  `json:"promotion_id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

// Evaluation explains why a promotion did or did not take effect.
type Evaluation struct {
	PromotionID int64
	Applied     bool
	Reason      string
}

// Result is the priced cart.
type Result struct {
	Items             []Line             `json:"items"`
	TotalAmount       decimal.Decimal    `json:"total_amount"`
	DiscountAmount    decimal.Decimal    `json:"discount_amount"`
	FinalAmount       decimal.Decimal    `json:"final_amount"`
	AppliedPromotions []AppliedPromotion `json:"applied_promotions"`
	Evaluations       []Evaluation       `json:"-"`
}
