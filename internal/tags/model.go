package tags

import "github.com/shopspring/decimal"

// Tag is a free-text product label used to map ingredients to products.
type Tag struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// ProductSummary is a product offered as an ingredient alternative.
type ProductSummary struct {
	ID            int64           `json:"id"`
	Name          string          `json:"name"`
	Price         decimal.Decimal `json:"price"`
	ImageURL      string          `json:"image_url"`
	InFavorites   bool            `json:"in_favorites"`
	StockQuantity int             `json:"stock_quantity"`
	Description   string          `json:"description"`
}

// SimilarProduct is a product sharing tags with another product.
type SimilarProduct struct {
	ID          int64           `json:"id"`
	Name        string          `json:"name"`
	Price       decimal.Decimal `json:"price"`
	ImageURL    string          `json:"image_url"`
	InFavorites bool            `json:"in_favorites"`
	CommonTags  int             `json:"common_tags"`
}

// IngredientAlternatives groups the products found for one ingredient.
type IngredientAlternatives struct {
	Ingredient string           `json:"ingredient"`
	Products   []ProductSummary `json:"products"`
}
