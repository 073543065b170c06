package metrics

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Config configures the metrics provider.
type Config struct {
	Enabled          bool
	ExporterEndpoint string
	ExporterProtocol string
	ServiceName      string
	Environment      string
}

// Metrics exposes reconciliation instruments.
type Metrics struct {
	webhookEvents          metric.Int64Counter
	reconciliationFailures metric.Int64Counter
	notifications          metric.Int64Counter
	webhookDuration        metric.Float64Histogram
}

// NewProvider configures and registers the meter provider.
func NewProvider(lc fx.Lifecycle, cfg Config, log *zap.Logger) (metric.MeterProvider, error) {
	if !cfg.Enabled {
		provider := noop.NewMeterProvider()
		otel.SetMeterProvider(provider)
		return provider, nil
	}

	exporter, err := newExporter(cfg.ExporterProtocol, cfg.ExporterEndpoint)
	if err != nil {
		return nil, err
	}

	reader := sdkmetric.NewPeriodicReader(exporter, sdkmetric.WithInterval(10*time.Second))
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	otel.SetMeterProvider(provider)

	if lc != nil {
		lc.Append(fx.Hook{
			OnStop: func(ctx context.Context) error {
				if log != nil {
					log.Info("shutting down meter provider")
				}
				return provider.Shutdown(ctx)
			},
		})
	}

	if log != nil {
		log.Info("metrics initialized",
			zap.String("endpoint", cfg.ExporterEndpoint),
			zap.String("protocol", cfg.ExporterProtocol),
		)
	}

	return provider, nil
}

// New configures the domain metrics instruments.
func New(cfg Config, provider metric.MeterProvider) (*Metrics, error) {
	name := strings.TrimSpace(cfg.ServiceName)
	if name == "" {
		name = "entitlement"
	}
	meter := provider.Meter(name)

	webhookEvents, err := meter.Int64Counter("entitlement_webhook_events_total",
		metric.WithDescription("Processor events received, by kind and outcome."))
	if err != nil {
		return nil, err
	}
	failures, err := meter.Int64Counter("entitlement_reconciliation_failures_total",
		metric.WithDescription("Reconciliation errors, split into fatal and contained."))
	if err != nil {
		return nil, err
	}
	notifications, err := meter.Int64Counter("entitlement_notifications_total")
	if err != nil {
		return nil, err
	}
	duration, err := meter.Float64Histogram("entitlement_webhook_duration_seconds",
		metric.WithUnit("s"))
	if err != nil {
		return nil, err
	}

	return &Metrics{
		webhookEvents:          webhookEvents,
		reconciliationFailures: failures,
		notifications:          notifications,
		webhookDuration:        duration,
	}, nil
}

// NewNoop returns instruments backed by a no-op provider.
func NewNoop() *Metrics {
	m, _ := New(Config{}, noop.NewMeterProvider())
	return m
}

// RecordWebhookEvent counts one processed event.
func (m *Metrics) RecordWebhookEvent(ctx context.Context, eventKind, outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(
		attribute.String("provider", "stripe"),
		attribute.String("event_kind", strings.TrimSpace(eventKind)),
		attribute.String("outcome", strings.TrimSpace(outcome)),
	)
	m.webhookEvents.Add(ctx, 1, metric.WithAttributes(attrs...))
	m.webhookDuration.Record(ctx, elapsed.Seconds(), metric.WithAttributes(attrs...))
}

// RecordReconciliationFailure counts an engine error. Contained failures are
// acknowledged to the sender and only visible here and in logs.
func (m *Metrics) RecordReconciliationFailure(ctx context.Context, eventKind, reason string, fatal bool) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(
		attribute.String("event_kind", strings.TrimSpace(eventKind)),
		attribute.String("reason", strings.TrimSpace(reason)),
		attribute.Bool("fatal", fatal),
	)
	m.reconciliationFailures.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordNotification counts a dispatch attempt by template and result.
func (m *Metrics) RecordNotification(ctx context.Context, template, result string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(
		attribute.String("template", strings.TrimSpace(template)),
		attribute.String("result", strings.TrimSpace(result)),
	)
	m.notifications.Add(ctx, 1, metric.WithAttributes(attrs...))
}

func newExporter(protocol, endpoint string) (sdkmetric.Exporter, error) {
	protocol = strings.ToLower(strings.TrimSpace(protocol))
	switch protocol {
	case "http", "http/protobuf":
		opts := []otlpmetrichttp.Option{otlpmetrichttp.WithInsecure()}
		if endpoint != "" {
			opts = append(opts, otlpmetrichttp.WithEndpoint(endpoint))
		}
		return otlpmetrichttp.New(context.Background(), opts...)
	case "grpc", "grpc/protobuf", "":
		opts := []otlpmetricgrpc.Option{otlpmetricgrpc.WithInsecure()}
		if endpoint != "" {
			opts = append(opts, otlpmetricgrpc.WithEndpoint(endpoint))
		}
		return otlpmetricgrpc.New(context.Background(), opts...)
	default:
		return nil, fmt.Errorf("unsupported OTLP protocol %q", protocol)
	}
}

var allowedLabelKeys = map[attribute.Key]struct{}{
	"provider":    {},
	"event_kind":  {},
	"outcome":     {},
	"reason":      {},
	"fatal":       {},
	"template":    {},
	"result":      {},
	"route":       {},
	"method":      {},
	"status_code": {},
}

// FilterAttributes strips disallowed labels to keep metrics low-cardinality.
// Customer, subscription and event identifiers never become labels.
func FilterAttributes(attrs ...attribute.KeyValue) []attribute.KeyValue {
	filtered := make([]attribute.KeyValue, 0, len(attrs))
	for _, attr := range attrs {
		if _, ok := allowedLabelKeys[attr.Key]; !ok {
			continue
		}
		filtered = append(filtered, attr)
	}
	return filtered
}
