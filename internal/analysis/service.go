package analysis

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/noah-isme/backend-dapur/internal/cache"
	"github.com/noah-isme/backend-dapur/internal/common"
	"github.com/noah-isme/backend-dapur/internal/obs"
	"github.com/noah-isme/backend-dapur/internal/tags"
)

// ErrInvalidImage is returned when image_data is not valid base64 image content.
var ErrInvalidImage = errors.New("analysis: invalid image data")

const statsWindow = 7 * 24 * time.Hour

// AlternativeFinder resolves ingredient names to catalog products.
type AlternativeFinder interface {
	FindIngredientAlternatives(ctx context.Context, ingredients []string, userID int64, limit int) ([]tags.IngredientAlternatives, error)
}

// History is the persistence surface for analysis records.
type History interface {
	FindRecent(ctx context.Context, userID int64, imageHash string, since time.Time) (Record, bool, error)
	Insert(ctx context.Context, rec Record) (Record, error)
	List(ctx context.Context, userID int64, filter HistoryFilter) ([]Record, error)
	Counts(ctx context.Context, userID int64, threshold float64, since time.Time) (total, high, recent int64, err error)
	Popular(ctx context.Context, userID int64, limit int) ([]PopularDish, error)
	Delete(ctx context.Context, userID, id int64) (bool, error)
}

// Notifier publishes analysis lifecycle events.
type Notifier interface {
	AnalysisCompleted(ctx context.Context, evt CompletedEvent) error
}

// Service runs dish analyses and serves their history.
type Service struct {
	classifier      Classifier
	finder          AlternativeFinder
	history         History
	notifier        Notifier
	cache           *cache.JSON
	logger          zerolog.Logger
	now             func() time.Time
	basicLimit      int
	additionalLimit int
	dedupWindow     time.Duration
}

// ServiceConfig groups Service dependencies.
type ServiceConfig struct {
	Classifier      Classifier
	Finder          AlternativeFinder
	History         History
	Notifier        Notifier
	StatsCache      *cache.JSON
	Logger          zerolog.Logger
	Now             func() time.Time
	BasicLimit      int
	AdditionalLimit int
	DedupWindow     time.Duration
}

// NewService constructs a Service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Classifier == nil || cfg.Finder == nil || cfg.History == nil {
		return nil, errors.New("analysis: missing service dependency")
	}
	svc := &Service{
		classifier:      cfg.Classifier,
		finder:          cfg.Finder,
		history:         cfg.History,
		notifier:        cfg.Notifier,
		cache:           cfg.StatsCache,
		logger:          cfg.Logger,
		now:             cfg.Now,
		basicLimit:      cfg.BasicLimit,
		additionalLimit: cfg.AdditionalLimit,
		dedupWindow:     cfg.DedupWindow,
	}
	if svc.now == nil {
		svc.now = time.Now
	}
	if svc.basicLimit < 1 {
		svc.basicLimit = 5
	}
	if svc.additionalLimit < 1 {
		svc.additionalLimit = 3
	}
	if svc.dedupWindow <= 0 {
		svc.dedupWindow = time.Hour
	}
	return svc, nil
}

// DecodeImage accepts raw base64 or a data URL and returns the image bytes.
func DecodeImage(data string) ([]byte, error) {
	data = strings.TrimSpace(data)
	if i := strings.IndexByte(data, ','); i >= 0 {
		data = data[i+1:]
	}
	if data == "" {
		return nil, ErrInvalidImage
	}
	img, err := base64.StdEncoding.DecodeString(data)
	if err != nil {
		img, err = base64.RawStdEncoding.DecodeString(strings.TrimRight(data, "="))
	}
	if err != nil || len(img) == 0 {
		return nil, ErrInvalidImage
	}
	return img, nil
}

// Analyze classifies an image, finds ingredient alternatives, records history
// and returns recommendations. A classifier outage degrades to a low
// confidence fallback dish instead of failing the request.
func (s *Service) Analyze(ctx context.Context, userID int64, imageData string) (Response, error) {
	image, err := DecodeImage(imageData)
	if err != nil {
		obs.ObserveDishAnalysis("invalid")
		return Response{}, common.NewAppError("BAD_REQUEST", "invalid image data", http.StatusBadRequest, err)
	}
	logger := obs.WithTrace(ctx, s.logger)
	logger.Info().Int64("user_id", userID).Int("bytes", len(image)).Msg("analyzing image")

	result := "ok"
	var detection Detection
	pred, err := s.classifier.Classify(ctx, image)
	if err != nil {
		if !errors.Is(err, ErrClassifierUnavailable) {
			obs.ObserveDishAnalysis("error")
			return Response{}, fmt.Errorf("classify image: %w", err)
		}
		logger.Warn().Err(err).Msg("classifier unavailable, using fallback dish")
		detection = degradedDetection(err)
		result = "degraded"
	} else {
		detection = Detect(pred)
	}

	basic, err := s.finder.FindIngredientAlternatives(ctx, detection.BasicIngredients, userID, s.basicLimit)
	if err != nil {
		obs.ObserveDishAnalysis("error")
		return Response{}, fmt.Errorf("basic alternatives: %w", err)
	}
	additional, err := s.finder.FindIngredientAlternatives(ctx, detection.AdditionalIngredients, userID, s.additionalLimit)
	if err != nil {
		obs.ObserveDishAnalysis("error")
		return Response{}, fmt.Errorf("additional alternatives: %w", err)
	}

	resp := Response{
		Success:                true,
		UserID:                 userID,
		DetectedDish:           detection.DishName,
		Confidence:             detection.Confidence,
		Message:                detection.Message,
		BasicIngredients:       detection.BasicIngredients,
		AdditionalIngredients:  detection.AdditionalIngredients,
		BasicAlternatives:      basic,
		AdditionalAlternatives: additional,
		Recommendations:        Recommendations(detection, len(basic), len(additional)),
	}

	rec, created, err := s.record(ctx, userID, common.Sha256Hex(image), detection, len(basic)+len(additional))
	if err != nil {
		logger.Error().Err(err).Msg("could not store analysis history")
	} else {
		resp.AnalysisID = rec.ID
		resp.Duplicate = !created
	}
	if created {
		s.publish(ctx, logger, rec, detection)
	}

	obs.ObserveDishAnalysis(result)
	logger.Info().
		Int64("analysis_id", resp.AnalysisID).
		Str("dish", detection.DishName).
		Float64("confidence", detection.Confidence).
		Int("basic_found", len(basic)).
		Int("additional_found", len(additional)).
		Msg("analysis completed")
	return resp, nil
}

func (s *Service) record(ctx context.Context, userID int64, hash string, d Detection, found int) (Record, bool, error) {
	existing, ok, err := s.history.FindRecent(ctx, userID, hash, s.now().Add(-s.dedupWindow))
	if err != nil {
		return Record{}, false, err
	}
	if ok {
		return existing, false, nil
	}
	rec, err := s.history.Insert(ctx, Record{
		UserID:            userID,
		ImageHash:         hash,
		DetectedDish:      d.DishName,
		Confidence:        d.Confidence,
		Ingredients:       Ingredients{Basic: d.BasicIngredients, Additional: d.AdditionalIngredients},
		AlternativesFound: found,
	})
	if err != nil {
		return Record{}, false, err
	}
	return rec, true, nil
}

func (s *Service) publish(ctx context.Context, logger zerolog.Logger, rec Record, d Detection) {
	if err := s.InvalidateStats(ctx, rec.UserID); err != nil {
		logger.Warn().Err(err).Msg("stats cache invalidation failed")
	}
	if s.notifier == nil {
		return
	}
	evt := CompletedEvent{
		AnalysisID:  rec.ID,
		UserID:      rec.UserID,
		Dish:        d.DishName,
		Confidence:  d.Confidence,
		Ingredients: append(append([]string(nil), d.BasicIngredients...), d.AdditionalIngredients...),
	}
	if err := s.notifier.AnalysisCompleted(ctx, evt); err != nil {
		logger.Warn().Err(err).Int64("analysis_id", rec.ID).Msg("analysis event not published")
	}
}

// History lists a user's analyses.
func (s *Service) History(ctx context.Context, userID int64, filter HistoryFilter) ([]Record, error) {
	if filter.MinConfidence != nil && (*filter.MinConfidence < 0 || *filter.MinConfidence > 1) {
		return nil, common.NewAppError("BAD_REQUEST", "min_confidence must be between 0 and 1", http.StatusBadRequest, nil)
	}
	return s.history.List(ctx, userID, filter)
}

// Stats returns a user's analysis statistics, cached until the next analysis or deletion.
func (s *Service) Stats(ctx context.Context, userID int64) (Stats, error) {
	key := cache.KeyAnalysisStats(userID)
	var cached Stats
	if ok, err := s.cache.Get(ctx, key, &cached); err == nil && ok {
		return cached, nil
	}
	total, high, recent, err := s.history.Counts(ctx, userID, highConfidence, s.now().Add(-statsWindow))
	if err != nil {
		return Stats{}, err
	}
	stats := Stats{TotalAnalyses: total, HighConfidenceAnalyses: high, RecentWeekAnalyses: recent, SuccessRate: SuccessRate(high, total)}
	if err := s.cache.Set(ctx, key, stats); err != nil {
		s.logger.Warn().Err(err).Msg("stats cache write failed")
	}
	return stats, nil
}

// SuccessRate is the share of high-confidence analyses as a percentage rounded to two decimals.
func SuccessRate(high, total int64) float64 {
	if total <= 0 {
		return 0
	}
	rate := decimal.NewFromInt(high).Mul(decimal.NewFromInt(100)).Div(decimal.NewFromInt(total))
	return rate.Round(2).InexactFloat64()
}

// InvalidateStats drops the cached statistics for a user.
func (s *Service) InvalidateStats(ctx context.Context, userID int64) error {
	return s.cache.Delete(ctx, cache.KeyAnalysisStats(userID))
}

// Popular returns the user's most analysed dishes.
func (s *Service) Popular(ctx context.Context, userID int64, limit int) ([]PopularDish, error) {
	if limit < 1 {
		limit = 5
	}
	return s.history.Popular(ctx, userID, limit)
}

// Delete removes one of the user's analyses.
func (s *Service) Delete(ctx context.Context, userID, id int64) error {
	ok, err := s.history.Delete(ctx, userID, id)
	if err != nil {
		return err
	}
	if !ok {
		return common.NotFound("record not found", nil)
	}
	if err := s.InvalidateStats(ctx, userID); err != nil {
		s.logger.Warn().Err(err).Msg("stats cache invalidation failed")
	}
	return nil
}
