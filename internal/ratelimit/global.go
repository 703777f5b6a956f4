package ratelimit

import (
	"net/http"
	"strconv"

	"github.com/rs/zerolog"
	limiter "github.com/ulule/limiter/v3"

	"github.com/noah-isme/backend-dapur/internal/common"
)

// Global applies a fixed-window per-IP limit to every request using ulule/limiter.
type Global struct {
	Limiter *limiter.Limiter
	Logger  zerolog.Logger
}

// NewGlobal builds a Global limiter from a formatted rate such as "300-M".
func NewGlobal(store limiter.Store, formatted string, logger zerolog.Logger) (*Global, error) {
	rate, err := limiter.NewRateFromFormatted(formatted)
	if err != nil {
		return nil, err
	}
	return &Global{Limiter: limiter.New(store, rate), Logger: logger}, nil
}

// Middleware rejects requests over the limit with 429. Store failures let
// traffic through.
func (g *Global) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx, err := g.Limiter.Get(r.Context(), common.ClientIP(r))
		if err != nil {
			g.Logger.Warn().Err(err).Msg("global rate limit unavailable")
			next.ServeHTTP(w, r)
			return
		}
		headers := w.Header()
		headers.Set("X-RateLimit-Limit", strconv.FormatInt(ctx.Limit, 10))
		headers.Set("X-RateLimit-Remaining", strconv.FormatInt(ctx.Remaining, 10))
		headers.Set("X-RateLimit-Reset", strconv.FormatInt(ctx.Reset, 10))
		if ctx.Reached {
			common.JSONError(w, http.StatusTooManyRequests, "RATE_LIMITED", "rate limit exceeded", nil)
			return
		}
		next.ServeHTTP(w, r)
	})
}
