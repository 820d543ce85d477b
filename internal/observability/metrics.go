package observability

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
)

const meterName = "notes-service"

type appMetricsSet struct {
	authLoginCounter   metric.Int64Counter
	authRefreshCounter metric.Int64Counter
	authLogoutCounter  metric.Int64Counter
	cacheCounter       metric.Int64Counter
}

var (
	metricsMu  sync.RWMutex
	appMetrics *appMetricsSet

	repoMetricsOnce sync.Once
	repoCounter     metric.Int64Counter
)

type MetricsConfig struct {
	Enabled     bool
	Endpoint    string
	Insecure    bool
	ServiceName string
	Environment string
}

// InitMetrics wires the OTLP metric exporter and registers the auth and
// cache counters. When disabled it installs an exporterless provider so
// recording calls stay cheap no-ops.
func InitMetrics(ctx context.Context, cfg MetricsConfig, logger *slog.Logger) (*sdkmetric.MeterProvider, error) {
	if !cfg.Enabled {
		mp := sdkmetric.NewMeterProvider()
		otel.SetMeterProvider(mp)
		logger.Info("otel metrics disabled")
		return mp, nil
	}

	opts := []otlpmetricgrpc.Option{otlpmetricgrpc.WithEndpoint(cfg.Endpoint)}
	if cfg.Insecure {
		opts = append(opts, otlpmetricgrpc.WithInsecure())
	}
	exporter, err := otlpmetricgrpc.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create otlp metric exporter: %w", err)
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(
			attribute.String("service.name", cfg.ServiceName),
			attribute.String("deployment.environment", cfg.Environment),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("create metric resource: %w", err)
	}

	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exporter)),
	)
	otel.SetMeterProvider(mp)

	meter := mp.Meter(meterName)
	loginCounter, err := meter.Int64Counter("auth.login.attempts")
	if err != nil {
		return nil, err
	}
	refreshCounter, err := meter.Int64Counter("auth.refresh.attempts")
	if err != nil {
		return nil, err
	}
	logoutCounter, err := meter.Int64Counter("auth.logout.attempts")
	if err != nil {
		return nil, err
	}
	cacheCounter, err := meter.Int64Counter("notes.cache.events")
	if err != nil {
		return nil, err
	}

	metricsMu.Lock()
	appMetrics = &appMetricsSet{
		authLoginCounter:   loginCounter,
		authRefreshCounter: refreshCounter,
		authLogoutCounter:  logoutCounter,
		cacheCounter:       cacheCounter,
	}
	metricsMu.Unlock()

	logger.Info("otel metrics initialized", "endpoint", cfg.Endpoint)
	return mp, nil
}

func RecordAuthLogin(status string) {
	record(func(m *appMetricsSet) metric.Int64Counter { return m.authLoginCounter }, "status", status)
}

func RecordAuthRefresh(status string) {
	record(func(m *appMetricsSet) metric.Int64Counter { return m.authRefreshCounter }, "status", status)
}

func RecordAuthLogout(status string) {
	record(func(m *appMetricsSet) metric.Int64Counter { return m.authLogoutCounter }, "status", status)
}

func RecordCacheEvent(event string) {
	record(func(m *appMetricsSet) metric.Int64Counter { return m.cacheCounter }, "event", event)
}

func record(pick func(*appMetricsSet) metric.Int64Counter, key, value string) {
	metricsMu.RLock()
	m := appMetrics
	metricsMu.RUnlock()
	if m == nil {
		return
	}
	pick(m).Add(context.Background(), 1, metric.WithAttributes(attribute.String(key, value)))
}

// RecordRepositoryOperation counts persistence-layer calls by entity,
// operation and outcome. Registered lazily so repositories work in tests
// without InitMetrics.
func RecordRepositoryOperation(ctx context.Context, entity, operation, outcome string) {
	repoMetricsOnce.Do(func() {
		counter, err := otel.Meter(meterName).Int64Counter("repository.operations")
		if err == nil {
			repoCounter = counter
		}
	})
	if repoCounter == nil {
		return
	}
	repoCounter.Add(ctx, 1, metric.WithAttributes(
		attribute.String("entity", entity),
		attribute.String("operation", operation),
		attribute.String("outcome", outcome),
	))
}
