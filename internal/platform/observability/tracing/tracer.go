package tracing

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"go.opentelemetry.io/otel/trace"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

// Tracer wraps the OpenTelemetry setup so callers only deal with spans
type Tracer interface {
	Start(ctx context.Context, spanName string, opts ...trace.SpanStartOption) (context.Context, trace.Span)
	Close() error
}

// OTelTracer exports spans to an OTLP collector over gRPC
type OTelTracer struct {
	provider    *sdktrace.TracerProvider
	serviceName string
}

// NewTracer creates a tracer exporting to the given OTLP endpoint.
// An empty endpoint yields a no-op tracer.
func NewTracer(serviceName, serviceVersion, otelEndpoint string) (Tracer, error) {
	if otelEndpoint == "" {
		return NewNoOpTracer(), nil
	}

	exporter, err := newOTLPExporter(otelEndpoint)
	if err != nil {
		return nil, fmt.Errorf("failed to create OTLP exporter: %w", err)
	}

	res, err := resource.Merge(
		resource.Default(),
		resource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceNameKey.String(serviceName),
			semconv.ServiceVersionKey.String(serviceVersion),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	provider := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
	)

	otel.SetTracerProvider(provider)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	return &OTelTracer{provider: provider, serviceName: serviceName}, nil
}

// Start starts a new span
func (t *OTelTracer) Start(ctx context.Context, spanName string, opts ...trace.SpanStartOption) (context.Context, trace.Span) {
	return otel.Tracer(t.serviceName).Start(ctx, spanName, opts...)
}

// Close flushes and shuts down the provider
func (t *OTelTracer) Close() error {
	if t.provider != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return t.provider.Shutdown(ctx)
	}
	return nil
}

func newOTLPExporter(endpoint string) (sdktrace.SpanExporter, error) {
	conn, err := grpc.NewClient(endpoint,
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to OTEL collector: %w", err)
	}

	exporter, err := otlptracegrpc.New(
		context.Background(),
		otlptracegrpc.WithGRPCConn(conn),
	)
	if err != nil {
		conn.Close()
		return nil, err
	}
	return exporter, nil
}

// NoOpTracer does nothing; used when tracing is disabled
type NoOpTracer struct{}

// NewNoOpTracer creates a no-op tracer
func NewNoOpTracer() Tracer {
	return &NoOpTracer{}
}

func (n *NoOpTracer) Start(ctx context.Context, spanName string, opts ...trace.SpanStartOption) (context.Context, trace.Span) {
	return ctx, trace.SpanFromContext(ctx)
}

func (n *NoOpTracer) Close() error { return nil }

// AddSpanAttributes adds attributes to the span on the context, if any
func AddSpanAttributes(ctx context.Context, attrs ...attribute.KeyValue) {
	span := trace.SpanFromContext(ctx)
	if span.IsRecording() {
		span.SetAttributes(attrs...)
	}
}

// RecordError records an error on the current span
func RecordError(ctx context.Context, err error) {
	span := trace.SpanFromContext(ctx)
	if span.IsRecording() && err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
}

// Common attribute keys
var (
	HTTPMethodKey     = attribute.Key("http.method")
	HTTPURLKey        = attribute.Key("http.url")
	HTTPStatusCodeKey = attribute.Key("http.status_code")

	OrderIDKey   = attribute.Key("order.id")
	PaymentIDKey = attribute.Key("payment.id")
	PartnerIDKey = attribute.Key("partner.id")
)
