// Package analysis turns a dish photo into purchasable ingredient suggestions
// and keeps a per-user history of those analyses.
package analysis

import (
	"time"

	"github.com/noah-isme/backend-dapur/internal/tags"
)

// Prediction is the classifier's best guess for an image.
type Prediction struct {
	Label      string
	Confidence float64
}

// Detection is a classified dish with the ingredients it usually needs.
type Detection struct {
	DishName              string
	Confidence            float64
	Message               string
	BasicIngredients      []string
	AdditionalIngredients []string
}

// Ingredients is the stored ingredient breakdown of an analysis.
type Ingredients struct {
	Basic      []string `json:"basic"`
	Additional []string `json:"additional"`
}

// Response is returned to the client after an analysis.
type Response struct {
	Success                bool                          `json:"success"`
	UserID                 int64                         `json:"user_id"`
	AnalysisID             int64                         `json:"analysis_id"`
	Duplicate              bool                          `json:"duplicate"`
	DetectedDish           string                        `json:"detected_dish"`
	Confidence             float64                       `json:"confidence"`
	Message                string                        `json:"message"`
	BasicIngredients       []string                      `json:"basic_ingredients"`
	AdditionalIngredients  []string                      `json:"additional_ingredients"`
	BasicAlternatives      []tags.IngredientAlternatives `json:"basic_alternatives"`
	AdditionalAlternatives []tags.IngredientAlternatives `json:"additional_alternatives"`
	Recommendations        []string                      `json:"recommendations"`
}

// Record is a stored analysis.
type Record struct {
	ID                int64       `json:"id"`
	UserID            int64       `json:"user_id"`
	ImageHash         string      `json:"-"`
	DetectedDish      string      `json:"detected_dish"`
	Confidence        float64     `json:"confidence"`
	Ingredients       Ingredients `json:"ingredients"`
	AlternativesFound int         `json:"alternatives_found"`
	CreatedAt         time.Time   `json:"created_at"`
}

// HistoryFilter narrows a history listing.
type HistoryFilter struct {
	Offset        int
	Limit         int
	MinConfidence *float64
}

// Stats summarises a user's analyses.
type Stats struct {
	TotalAnalyses          int64   `json:"total_analyses"`
	HighConfidenceAnalyses int64   `json:"high_confidence_analyses"`
	RecentWeekAnalyses     int64   `json:"recent_week_analyses"`
	SuccessRate            float64 `json:"success_rate"`
}

// PopularDish is a dish with its analysis count.
type PopularDish struct {
	DishName      string `json:"dish_name"`
	AnalysisCount int64  `json:"analysis_count"`
}

// CompletedEvent is published after a new analysis is stored.
type CompletedEvent struct {
	AnalysisID  int64    `json:"analysis_id"`
	UserID      int64    `json:"user_id"`
	Dish        string   `json:"dish"`
	Confidence  float64  `json:"confidence"`
	Ingredients []string `json:"ingredients"`
}
