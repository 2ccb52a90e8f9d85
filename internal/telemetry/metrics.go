package telemetry

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metrics holds all application metrics
type Metrics struct {
	RequestCounter      metric.Int64Counter
	RequestDuration     metric.Float64Histogram
	IngestCounter       metric.Int64Counter
	IngestDuration      metric.Float64Histogram
	SearchDuration      metric.Float64Histogram
	EmbeddingCalls      metric.Int64Counter
	VectorStoreOps      metric.Int64Counter
	CircuitBreakerState metric.Int64Counter
}

// InitMetrics initializes all application metrics
func InitMetrics() (*Metrics, error) {
	meter := otel.Meter("embedding-gateway")

	requestCounter, err := meter.Int64Counter(
		"http.requests.total",
		metric.WithDescription("Total HTTP requests"),
	)
	if err != nil {
		return nil, err
	}

	requestDuration, err := meter.Float64Histogram(
		"http.request.duration",
		metric.WithDescription("HTTP request duration in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	ingestCounter, err := meter.Int64Counter(
		"ingest.documents.total",
		metric.WithDescription("Total documents ingested"),
	)
	if err != nil {
		return nil, err
	}

	ingestDuration, err := meter.Float64Histogram(
		"ingest.duration",
		metric.WithDescription("Document ingest duration in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	searchDuration, err := meter.Float64Histogram(
		"search.duration",
		metric.WithDescription("Search request duration in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	embeddingCalls, err := meter.Int64Counter(
		"encoder.calls.total",
		metric.WithDescription("Total embedding service calls"),
	)
	if err != nil {
		return nil, err
	}

	vectorStoreOps, err := meter.Int64Counter(
		"vectorstore.operations.total",
		metric.WithDescription("Total vector store operations"),
	)
	if err != nil {
		return nil, err
	}

	circuitBreakerState, err := meter.Int64Counter(
		"circuit_breaker.state_changes",
		metric.WithDescription("Circuit breaker state changes"),
	)
	if err != nil {
		return nil, err
	}

	return &Metrics{
		RequestCounter:      requestCounter,
		RequestDuration:     requestDuration,
		IngestCounter:       ingestCounter,
		IngestDuration:      ingestDuration,
		SearchDuration:      searchDuration,
		EmbeddingCalls:      embeddingCalls,
		VectorStoreOps:      vectorStoreOps,
		CircuitBreakerState: circuitBreakerState,
	}, nil
}

// RecordRequest records HTTP request metrics
func (m *Metrics) RecordRequest(method, path, status string, duration float64) {
	attrs := []attribute.KeyValue{
		attribute.String("http.method", method),
		attribute.String("http.path", path),
		attribute.String("http.status", status),
	}

	m.RequestCounter.Add(context.Background(), 1, metric.WithAttributes(attrs...))
	m.RequestDuration.Record(context.Background(), duration, metric.WithAttributes(attrs...))
}

// RecordIngest records one completed ingest
func (m *Metrics) RecordIngest(kind string, chunks int, duration float64, status string) {
	attrs := []attribute.KeyValue{
		attribute.String("ingest.kind", kind),
		attribute.Int("ingest.chunks", chunks),
		attribute.String("ingest.status", status),
	}

	m.IngestCounter.Add(context.Background(), 1, metric.WithAttributes(attrs...))
	m.IngestDuration.Record(context.Background(), duration, metric.WithAttributes(attrs...))
}

// RecordSearch records search latency by mode
func (m *Metrics) RecordSearch(mode string, duration float64, degraded bool) {
	attrs := []attribute.KeyValue{
		attribute.String("search.mode", mode),
		attribute.Bool("search.degraded", degraded),
	}

	m.SearchDuration.Record(context.Background(), duration, metric.WithAttributes(attrs...))
}

// RecordEmbeddingCall records an embedding service call
func (m *Metrics) RecordEmbeddingCall(operation string, success bool) {
	attrs := []attribute.KeyValue{
		attribute.String("encoder.operation", operation),
		attribute.Bool("encoder.success", success),
	}

	m.EmbeddingCalls.Add(context.Background(), 1, metric.WithAttributes(attrs...))
}

// RecordVectorStoreOp records a vector store operation
func (m *Metrics) RecordVectorStoreOp(operation string, success bool) {
	attrs := []attribute.KeyValue{
		attribute.String("vectorstore.operation", operation),
		attribute.Bool("vectorstore.success", success),
	}

	m.VectorStoreOps.Add(context.Background(), 1, metric.WithAttributes(attrs...))
}

// RecordCircuitBreakerState records circuit breaker state changes
func (m *Metrics) RecordCircuitBreakerState(service, state string) {
	attrs := []attribute.KeyValue{
		attribute.String("service", service),
		attribute.String("state", state),
	}

	m.CircuitBreakerState.Add(context.Background(), 1, metric.WithAttributes(attrs...))
}
