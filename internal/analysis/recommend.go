package analysis

import (
	"fmt"

	"github.com/noah-isme/backend-dapur/internal/tags"
)

const (
	highConfidence     = 0.7
	mediumConfidence   = 0.3
	minRecommendations = 3
)

// Recommendations builds user-facing hints from a detection and how many of
// its ingredients were found in the catalog.
func Recommendations(d Detection, basicFound, additionalFound int) []string {
	var out []string
	switch {
	case d.Confidence > highConfidence:
		out = append(out, fmt.Sprintf("Высокая уверенность в определении блюда: %s", d.DishName))
	case d.Confidence > mediumConfidence:
		out = append(out, "Средняя уверенность в определении блюда. Проверьте предложенные ингредиенты")
	default:
		out = append(out, "Низкая уверенность в определении. Попробуйте другое изображение")
	}

	basicTotal := distinctIngredients(d.BasicIngredients)
	switch {
	case basicFound == basicTotal:
		out = append(out, "✅ Найдены все основные ингредиенты!")
	case basicFound > 0:
		out = append(out, fmt.Sprintf("🔍 Найдено %d из %d основных ингредиентов", basicFound, basicTotal))
	default:
		out = append(out, "❌ Основные ингредиенты не найдены в магазине")
	}

	if additionalFound > 0 {
		out = append(out, fmt.Sprintf("✨ Найдено %d дополнительных ингредиентов для улучшения блюда", additionalFound))
	}
	if hasIngredient(d.BasicIngredients, "соль") {
		out = append(out, "🧂 Для этого блюда понадобится соль")
	}
	if hasIngredient(d.BasicIngredients, "перец") {
		out = append(out, "🌶️ Не забудьте про перец для вкуса")
	}
	if len(out) < minRecommendations {
		out = append(out, "🍽️ Приятного аппетита!")
	}
	return out
}

// distinctIngredients counts non-blank ingredients after normalisation, the
// same way alternative lookups de-duplicate them.
func distinctIngredients(list []string) int {
	seen := make(map[string]struct{}, len(list))
	for _, item := range list {
		if key := tags.Normalize(item); key != "" {
			seen[key] = struct{}{}
		}
	}
	return len(seen)
}

func hasIngredient(list []string, name string) bool {
	for _, item := range list {
		if tags.Normalize(item) == name {
			return true
		}
	}
	return false
}
