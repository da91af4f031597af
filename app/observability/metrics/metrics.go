package metrics

import (
	"log"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

// AppMetrics holds the application's metric instruments.
type AppMetrics struct {
	ResolutionsTotal        metric.Int64Counter
	PositionDurationSeconds metric.Float64Histogram
	PositionErrorsTotal     metric.Int64Counter
	SyncPushesTotal         metric.Int64Counter
	SyncFailuresTotal       metric.Int64Counter
}

var (
	appMetrics *AppMetrics
	once       sync.Once
)

// InitAppMetrics initializes the global metrics instruments ONLY ONCE.
// It gets the Meter from the globally configured MeterProvider, so calling
// it before a provider is installed yields no-op instruments.
func InitAppMetrics() {
	once.Do(func() {
		meter := otel.GetMeterProvider().Meter("MboaLocation")
		var err error
		m := &AppMetrics{}

		m.ResolutionsTotal, err = meter.Int64Counter(
			"location_resolutions_total",
			metric.WithDescription("Total number of location resolutions, by outcome"),
			metric.WithUnit("{resolution}"),
		)
		if err != nil {
			log.Fatalf("Metrics: Failed to create location_resolutions_total: %v", err)
		}

		m.PositionDurationSeconds, err = meter.Float64Histogram(
			"position_acquire_duration_seconds",
			metric.WithDescription("Duration of position source acquisitions in seconds"),
			metric.WithUnit("s"),
		)
		if err != nil {
			log.Fatalf("Metrics: Failed to create position_acquire_duration_seconds: %v", err)
		}

		m.PositionErrorsTotal, err = meter.Int64Counter(
			"position_acquire_errors_total",
			metric.WithDescription("Total number of failed position acquisitions"),
			metric.WithUnit("{error}"),
		)
		if err != nil {
			log.Fatalf("Metrics: Failed to create position_acquire_errors_total: %v", err)
		}

		m.SyncPushesTotal, err = meter.Int64Counter(
			"location_sync_pushes_total",
			metric.WithDescription("Total number of remote profile sync attempts"),
			metric.WithUnit("{push}"),
		)
		if err != nil {
			log.Fatalf("Metrics: Failed to create location_sync_pushes_total: %v", err)
		}

		m.SyncFailuresTotal, err = meter.Int64Counter(
			"location_sync_failures_total",
			metric.WithDescription("Total number of swallowed remote sync failures"),
			metric.WithUnit("{error}"),
		)
		if err != nil {
			log.Fatalf("Metrics: Failed to create location_sync_failures_total: %v", err)
		}

		log.Println("Application metrics instruments initialized.")
		appMetrics = m
	})
}

// Get returns the globally initialized AppMetrics instance, initializing
// lazily against the current global MeterProvider if needed.
func Get() *AppMetrics {
	if appMetrics == nil {
		InitAppMetrics()
	}
	return appMetrics
}
