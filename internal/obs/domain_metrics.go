package obs

import (
	"fmt"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	domainOnce sync.Once

	// PromotionCalculations counts cart discount calculations by outcome.
	PromotionCalculations *prometheus.CounterVec
	// PromotionApplied counts promotions that changed at least one cart line, by type.
	PromotionApplied *prometheus.CounterVec
	// TagLookups counts tag resolution attempts by match kind (exact, partial, none).
	TagLookups *prometheus.CounterVec
	// DishAnalyses counts dish analysis requests by result.
	DishAnalyses *prometheus.CounterVec
	// ClassifierLatency records classifier round trips in milliseconds.
	ClassifierLatency prometheus.Histogram
	// BackgroundTasks counts processed worker tasks by type and result.
	BackgroundTasks *prometheus.CounterVec
)

// MustRegisterDomainMetrics initialises and registers domain-specific Prometheus collectors.
func MustRegisterDomainMetrics(namespace string, reg prometheus.Registerer) {
	domainOnce.Do(func() {
		if reg == nil {
			reg = prometheus.DefaultRegisterer
		}
		PromotionCalculations = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "promotion_calculations_total",
			Help:      "Cart discount calculations by result.",
		}, []string{"result"})
		PromotionApplied = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "promotion_applied_total",
			Help:      "Promotions applied to a cart, by promotion type.",
		}, []string{"type"})
		TagLookups = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tag_lookup_total",
			Help:      "Tag resolution attempts by match kind.",
		}, []string{"match"})
		DishAnalyses = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "dish_analysis_total",
			Help:      "Dish analysis requests by result.",
		}, []string{"result"})
		ClassifierLatency = prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "classifier_request_duration_ms",
			Help:      "Latency of dish classifier calls in milliseconds.",
			Buckets:   []float64{50, 100, 250, 500, 1000, 2500, 5000, 10000},
		})
		BackgroundTasks = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "background_tasks_total",
			Help:      "Background tasks processed by type and result.",
		}, []string{"type", "result"})

		register(reg, &PromotionCalculations)
		register(reg, &PromotionApplied)
		register(reg, &TagLookups)
		register(reg, &DishAnalyses)
		register(reg, &ClassifierLatency)
		register(reg, &BackgroundTasks)
	})
}

// The helpers below tolerate unregistered collectors so packages can record
// metrics in tests without a registry.

// ObservePromotionCalculation records the outcome of a cart calculation.
func ObservePromotionCalculation(result string) {
	if PromotionCalculations != nil {
		PromotionCalculations.WithLabelValues(result).Inc()
	}
}

// ObservePromotionApplied records a promotion of the given type taking effect.
func ObservePromotionApplied(promotionType string) {
	if PromotionApplied != nil {
		PromotionApplied.WithLabelValues(promotionType).Inc()
	}
}

// ObserveTagLookup records how a tag query was resolved.
func ObserveTagLookup(match string) {
	if TagLookups != nil {
		TagLookups.WithLabelValues(match).Inc()
	}
}

// ObserveDishAnalysis records a dish analysis outcome.
func ObserveDishAnalysis(result string) {
	if DishAnalyses != nil {
		DishAnalyses.WithLabelValues(result).Inc()
	}
}

// ObserveClassifierLatency records a classifier round trip.
func ObserveClassifierLatency(ms float64) {
	if ClassifierLatency != nil {
		ClassifierLatency.Observe(ms)
	}
}

// ObserveBackgroundTask records a processed worker task.
func ObserveBackgroundTask(taskType string, err error) {
	if BackgroundTasks == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	BackgroundTasks.WithLabelValues(taskType, result).Inc()
}

// register adds the collector to reg; when an equivalent collector already
// exists the pointer is swapped to the registered instance.
func register[T prometheus.Collector](reg prometheus.Registerer, collector *T) {
	if err := reg.Register(*collector); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(T); ok {
				*collector = existing
			}
			return
		}
		panic(fmt.Errorf("register metric: %w", err))
	}
}
