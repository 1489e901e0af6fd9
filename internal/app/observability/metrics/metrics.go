package metrics

import (
	"log"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

// AppMetrics holds the application's metric instruments.
type AppMetrics struct {
	HTTPRequestsTotal         metric.Int64Counter
	GuardDecisionsTotal       metric.Int64Counter
	SessionRefreshesTotal     metric.Int64Counter
	VerificationChecksTotal   metric.Int64Counter
	VerificationFailsafeTotal metric.Int64Counter
	CacheInvalidationsTotal   metric.Int64Counter
	UpstreamRequestDuration   metric.Float64Histogram
}

var (
	appMetrics *AppMetrics
	once       sync.Once
)

// InitAppMetrics initializes the global metrics instruments ONLY ONCE.
// It gets the Meter from the globally configured MeterProvider.
func InitAppMetrics() {
	once.Do(func() {
		meter := otel.GetMeterProvider().Meter("folioview")
		var err error
		m := &AppMetrics{}

		m.HTTPRequestsTotal, err = meter.Int64Counter(
			"http_requests_total",
			metric.WithDescription("Total number of HTTP requests completed"),
			metric.WithUnit("{request}"),
		)
		if err != nil {
			log.Fatalf("Metrics: Failed to create http_requests_total: %v", err)
		}

		m.GuardDecisionsTotal, err = meter.Int64Counter(
			"guard_decisions_total",
			metric.WithDescription("Route guard navigation decisions by state"),
			metric.WithUnit("{decision}"),
		)
		if err != nil {
			log.Fatalf("Metrics: Failed to create guard_decisions_total: %v", err)
		}

		m.SessionRefreshesTotal, err = meter.Int64Counter(
			"session_refreshes_total",
			metric.WithDescription("Two-phase session refreshes started"),
			metric.WithUnit("{refresh}"),
		)
		if err != nil {
			log.Fatalf("Metrics: Failed to create session_refreshes_total: %v", err)
		}

		m.VerificationChecksTotal, err = meter.Int64Counter(
			"verification_checks_total",
			metric.WithDescription("Recovery-setup verification checks by outcome"),
			metric.WithUnit("{check}"),
		)
		if err != nil {
			log.Fatalf("Metrics: Failed to create verification_checks_total: %v", err)
		}

		m.VerificationFailsafeTotal, err = meter.Int64Counter(
			"verification_failsafe_total",
			metric.WithDescription("Verification calls that fell back to the fail-safe answer"),
			metric.WithUnit("{check}"),
		)
		if err != nil {
			log.Fatalf("Metrics: Failed to create verification_failsafe_total: %v", err)
		}

		m.CacheInvalidationsTotal, err = meter.Int64Counter(
			"cache_invalidations_total",
			metric.WithDescription("Identity-scoped cache invalidations by outcome"),
			metric.WithUnit("{invalidation}"),
		)
		if err != nil {
			log.Fatalf("Metrics: Failed to create cache_invalidations_total: %v", err)
		}

		m.UpstreamRequestDuration, err = meter.Float64Histogram(
			"upstream_request_duration_seconds",
			metric.WithDescription("Duration of folio API round trips in seconds"),
			metric.WithUnit("s"),
		)
		if err != nil {
			log.Fatalf("Metrics: Failed to create upstream_request_duration_seconds: %v", err)
		}

		appMetrics = m
	})
}

// Get returns the globally initialized AppMetrics instance, initializing
// against the current global MeterProvider on first use.
func Get() *AppMetrics {
	InitAppMetrics()
	return appMetrics
}
