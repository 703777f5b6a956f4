package promotion

import (
	"sort"

	"github.com/shopspring/decimal"

	"github.com/noah-isme/backend-dapur/internal/catalog"
	"github.com/noah-isme/backend-dapur/internal/pricing"
)

// Evaluation reasons.
const (
	ReasonApplied       = "applied"
	ReasonMinOrder      = "min_order_amount"
	ReasonNoCandidates  = "no_candidates"
	ReasonMissingValue  = "missing_value"
	ReasonGiftUnknown   = "gift_product_unknown"
	ReasonNotBetter     = "not_better"
	ReasonUnknownType   = "unknown_type"
	ReasonDuplicateRule = "duplicate"
)

// Order returns a copy of promotions sorted by priority descending, ties broken by ascending id.
func Order(promotions []Promotion) []Promotion {
	ordered := make([]Promotion, len(promotions))
	copy(ordered, promotions)
	sort.SliceStable(ordered, func(i, j int) bool {
		if ordered[i].Priority != ordered[j].Priority {
			return ordered[i].Priority > ordered[j].Priority
		}
		return ordered[i].ID < ordered[j].ID
	})
	return ordered
}

// Calculate prices items against the active promotions. Items whose product
// is missing from products are dropped. Promotions are applied one after the
// other, each seeing the prices left by the previous ones, and a line price
// only changes when the new price is strictly lower. Calculate never fails.
func Calculate(items []CartItem, promotions []Promotion, products map[int64]catalog.Product) Result {
	lines := make([]Line, 0, len(items))
	for _, it := range items {
		product, ok := products[it.ProductID]
		if !ok || it.Quantity <= 0 {
			continue
		}
		lines = append(lines, Line{
			ProductID:         it.ProductID,
			Quantity:          it.Quantity,
			Price:             product.Price,
			DiscountPrice:     product.Price,
			AppliedPromotions: []LineAnnotation{},
			CategoryID:        product.CategoryID,
		})
	}

	result := Result{AppliedPromotions: []AppliedPromotion{}}
	seen := make(map[int64]struct{}, len(promotions))
	for _, promo := range Order(promotions) {
		if _, dup := seen[promo.ID]; dup {
			result.Evaluations = append(result.Evaluations, Evaluation{PromotionID: promo.ID, Reason: ReasonDuplicateRule})
			continue
		}
		seen[promo.ID] = struct{}{}

		reason := apply(lines, promo, products)
		applied := reason == ReasonApplied
		result.Evaluations = append(result.Evaluations, Evaluation{PromotionID: promo.ID, Applied: applied, Reason: reason})
		if applied {
			result.AppliedPromotions = append(result.AppliedPromotions, AppliedPromotion{
				PromotionID: promo.ID,
				Name:        promo.Name,
				Description: promo.Description,
			})
		}
	}

	summary := pricing.Compute(pricingItems(lines))
	result.Items = lines
	result.TotalAmount = summary.Subtotal
	result.DiscountAmount = summary.Discount
	result.FinalAmount = summary.Total
	return result
}

func pricingItems(lines []Line) []pricing.Item {
	items := make([]pricing.Item, len(lines))
	for i, l := range lines {
		items[i] = pricing.Item{Qty: l.Quantity, UnitPrice: l.Price, DiscountPrice: l.DiscountPrice}
	}
	return items
}

func minQuantity(p Promotion) int {
	if p.MinQuantity < 1 {
		return 1
	}
	return p.MinQuantity
}

func isGiftLine(l Line, p Promotion) bool {
	return p.GiftProductID != nil && l.ProductID == *p.GiftProductID
}

// apply mutates lines in place and reports the outcome.
func apply(lines []Line, p Promotion, products map[int64]catalog.Product) string {
	subtotal := decimal.Zero
	for _, l := range lines {
		subtotal = subtotal.Add(pricing.LineTotal(l.Price, l.Quantity))
	}
	if subtotal.LessThan(pricing.FromMinor(p.MinOrderAmount)) {
		return ReasonMinOrder
	}

	candidates := candidateLines(lines, p)
	if len(candidates) == 0 {
		return ReasonNoCandidates
	}

	switch p.Type {
	case TypePercentage:
		if p.Value == nil || *p.Value == 0 {
			return ReasonMissingValue
		}
		return lowerPrices(lines, candidates, p, func(price decimal.Decimal) decimal.Decimal {
			return pricing.PercentOff(price, *p.Value)
		})
	case TypeFixed:
		if p.Value == nil || *p.Value == 0 {
			return ReasonMissingValue
		}
		// Value is subtracted from the major-unit price as stored, unlike
		// MinOrderAmount which is converted from minor units.
		amount := decimal.NewFromInt(*p.Value)
		return lowerPrices(lines, candidates, p, func(price decimal.Decimal) decimal.Decimal {
			return pricing.AmountOff(price, amount)
		})
	case TypeGift:
		return applyGift(lines, candidates, p, products)
	default:
		return ReasonUnknownType
	}
}

// candidateLines returns indexes of lines in scope that also pass the quantity threshold.
// Category scope wins over product scope; the gift line is exempt from the quantity check.
func candidateLines(lines []Line, p Promotion) []int {
	var inScope func(Line) bool
	switch {
	case len(p.CategoryIDs) > 0:
		categories := idSet(p.CategoryIDs)
		inScope = func(l Line) bool {
			_, ok := categories[l.CategoryID]
			return ok
		}
	case len(p.ProductIDs) > 0:
		productIDs := idSet(p.ProductIDs)
		inScope = func(l Line) bool {
			_, ok := productIDs[l.ProductID]
			return ok || isGiftLine(l, p)
		}
	default:
		inScope = func(Line) bool { return true }
	}

	minQty := minQuantity(p)
	var out []int
	for i, l := range lines {
		if !inScope(l) {
			continue
		}
		if l.Quantity >= minQty || isGiftLine(l, p) {
			out = append(out, i)
		}
	}
	return out
}

func lowerPrices(lines []Line, candidates []int, p Promotion, price func(decimal.Decimal) decimal.Decimal) string {
	changed := false
	for _, i := range candidates {
		next := price(lines[i].Price)
		if !next.LessThan(lines[i].DiscountPrice) {
			continue
		}
		lines[i].DiscountPrice = next
		lines[i].AppliedPromotions = append(lines[i].AppliedPromotions, LineAnnotation{
			PromotionID: p.ID,
			Name:        p.Name,
			Type:        p.Type,
			Value:       p.Value,
		})
		changed = true
	}
	if !changed {
		return ReasonNotBetter
	}
	return ReasonApplied
}

func applyGift(lines []Line, candidates []int, p Promotion, products map[int64]catalog.Product) string {
	if p.GiftProductID == nil {
		return ReasonMissingValue
	}
	gift, ok := products[*p.GiftProductID]
	if !ok {
		return ReasonGiftUnknown
	}
	note := LineAnnotation{
		PromotionID:     p.ID,
		Name:            p.Name,
		Type:            TypeGift,
		GiftProductID:   p.GiftProductID,
		GiftProductName: gift.Name,
	}
	minQty := minQuantity(p)
	changed := false
	for _, i := range candidates {
		if lines[i].Quantity >= minQty {
			lines[i].AppliedPromotions = append(lines[i].AppliedPromotions, note)
			changed = true
		}
		if isGiftLine(lines[i], p) {
			lines[i].DiscountPrice = decimal.Zero
			lines[i].AppliedPromotions = append(lines[i].AppliedPromotions, note)
			changed = true
		}
	}
	if !changed {
		return ReasonNoCandidates
	}
	return ReasonApplied
}

func idSet(ids []int64) map[int64]struct{} {
	set := make(map[int64]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return set
}
