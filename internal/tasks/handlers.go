package tasks

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"

	"github.com/noah-isme/backend-dapur/internal/analysis"
	"github.com/noah-isme/backend-dapur/internal/cache"
	"github.com/noah-isme/backend-dapur/internal/lock"
	"github.com/noah-isme/backend-dapur/internal/obs"
)

const warmLockKey = "tags:warm"

// StatsInvalidator drops cached analysis statistics.
type StatsInvalidator interface {
	InvalidateStats(ctx context.Context, userID int64) error
}

// CacheStatsInvalidator deletes cached statistics directly, for processes that
// do not run the full analysis service.
type CacheStatsInvalidator struct {
	Cache *cache.JSON
}

// InvalidateStats implements StatsInvalidator.
func (c CacheStatsInvalidator) InvalidateStats(ctx context.Context, userID int64) error {
	return c.Cache.Delete(ctx, cache.KeyAnalysisStats(userID))
}

// TagWarmer primes tag lookups.
type TagWarmer interface {
	Warm(ctx context.Context, queries []string) (int, error)
}

// Locker serialises warm-ups across workers.
type Locker interface {
	TryWithLock(ctx context.Context, key string, ttl time.Duration, fn func(context.Context) error) error
}

// Handlers processes worker tasks.
type Handlers struct {
	Stats   StatsInvalidator
	Warmer  TagWarmer
	Locker  Locker
	LockTTL time.Duration
	Logger  zerolog.Logger
}

// Register binds the handlers to mux.
func (h *Handlers) Register(mux *asynq.ServeMux) {
	mux.HandleFunc(TypeAnalysisCompleted, h.HandleAnalysisCompleted)
	mux.HandleFunc(TypeTagsWarm, h.HandleTagsWarm)
}

// HandleAnalysisCompleted refreshes caches touched by a new analysis.
func (h *Handlers) HandleAnalysisCompleted(ctx context.Context, t *asynq.Task) (err error) {
	defer func() { obs.ObserveBackgroundTask(TypeAnalysisCompleted, err) }()
	var evt analysis.CompletedEvent
	if err := json.Unmarshal(t.Payload(), &evt); err != nil {
		return fmt.Errorf("decode %s: %v: %w", TypeAnalysisCompleted, err, asynq.SkipRetry)
	}
	logger := h.Logger.With().Int64("analysis_id", evt.AnalysisID).Int64("user_id", evt.UserID).Logger()
	if err := h.Stats.InvalidateStats(ctx, evt.UserID); err != nil {
		return fmt.Errorf("invalidate stats: %w", err)
	}
	warmed, err := h.warm(ctx, evt.Ingredients)
	if err != nil {
		return err
	}
	logger.Info().Str("dish", evt.Dish).Int("warmed", warmed).Msg("analysis follow-up done")
	return nil
}

// HandleTagsWarm primes the tag lookup cache for the payload queries.
func (h *Handlers) HandleTagsWarm(ctx context.Context, t *asynq.Task) (err error) {
	defer func() { obs.ObserveBackgroundTask(TypeTagsWarm, err) }()
	var p TagsWarmPayload
	if err := json.Unmarshal(t.Payload(), &p); err != nil {
		return fmt.Errorf("decode %s: %v: %w", TypeTagsWarm, err, asynq.SkipRetry)
	}
	warmed, err := h.warm(ctx, p.Queries)
	if err != nil {
		return err
	}
	h.Logger.Info().Int("warmed", warmed).Msg("tag cache warmed")
	return nil
}

func (h *Handlers) warm(ctx context.Context, queries []string) (int, error) {
	if len(queries) == 0 || h.Warmer == nil {
		return 0, nil
	}
	run := func(ctx context.Context) (int, error) { return h.Warmer.Warm(ctx, queries) }
	if h.Locker == nil {
		return run(ctx)
	}
	var warmed int
	err := h.Locker.TryWithLock(ctx, warmLockKey, h.LockTTL, func(ctx context.Context) error {
		var err error
		warmed, err = run(ctx)
		return err
	})
	if errors.Is(err, lock.ErrHeld) {
		h.Logger.Debug().Msg("tag warm-up already running, skipping")
		return 0, nil
	}
	if err != nil {
		return warmed, fmt.Errorf("warm tags: %w", err)
	}
	return warmed, nil
}
