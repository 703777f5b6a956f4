package ratelimit

import (
	"net/http"
	"strconv"

	"github.com/noah-isme/backend-dapur/internal/common"
)

// UserOrIP keys authenticated requests by user and anonymous ones by client IP.
func UserOrIP(prefix string) func(*http.Request) string {
	return func(r *http.Request) string {
		if id, ok := common.UserID(r.Context()); ok {
			return prefix + ":user:" + strconv.FormatInt(id, 10)
		}
		return prefix + ":ip:" + common.ClientIP(r)
	}
}
