package cache

import (
	"fmt"
	"strings"
)

// Key prefixes shared between the API and the worker.
const (
	PrefixTagProducts   = "tags:products:"
	PrefixAnalysisStats = "analysis:stats:"
	KeyCategories       = "catalog:categories"
)

// KeyTagProducts returns the key caching the products a normalised tag query resolves to.
func KeyTagProducts(query string, limit int) string {
	return fmt.Sprintf("%s%s:%d", PrefixTagProducts, strings.ToLower(strings.TrimSpace(query)), limit)
}

// KeyAnalysisStats returns the key caching dish analysis stats for a user.
func KeyAnalysisStats(userID int64) string {
	return fmt.Sprintf("%s%d", PrefixAnalysisStats, userID)
}
