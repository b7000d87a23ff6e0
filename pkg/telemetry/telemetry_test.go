package telemetry

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"guestrisk/pkg/config"
)

func initInMemory(t *testing.T) (*Provider, *tracetest.InMemoryExporter) {
	t.Helper()
	exporter := tracetest.NewInMemoryExporter()
	provider, err := InitWithExporter(Config{ServiceName: "test", SampleRate: 1}, exporter)
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = provider.Shutdown(context.Background())
		reset()
	})
	return provider, exporter
}

func TestInit_Disabled(t *testing.T) {
	provider, err := Init(context.Background(), Config{Enabled: false, ServiceName: "test"})
	require.NoError(t, err)
	require.NotNil(t, provider)
	assert.NotNil(t, provider.Tracer())
	assert.NoError(t, provider.Shutdown(context.Background()))
	reset()
}

func TestInit_Enabled(t *testing.T) {
	// gRPC клиент подключается лениво, коллектор для Init не нужен
	provider, err := Init(context.Background(), Config{
		Enabled:     true,
		Endpoint:    "127.0.0.1:4317",
		ServiceName: "guestrisk-service",
		Version:     "1.0.0",
		Environment: "test",
		SampleRate:  1,
	})
	require.NoError(t, err)
	require.NotNil(t, provider.tp)
	assert.Same(t, provider, Get())

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	_ = provider.Shutdown(ctx)
	reset()
}

func TestServiceResource(t *testing.T) {
	res, err := serviceResource(Config{ServiceName: "guestrisk-service", Version: "1.2.0", Environment: "staging"})
	require.NoError(t, err)

	attrs := map[attribute.Key]string{}
	for _, kv := range res.Attributes() {
		attrs[kv.Key] = kv.Value.Emit()
	}
	assert.Equal(t, "guestrisk-service", attrs["service.name"])
	assert.Equal(t, "1.2.0", attrs["service.version"])
	assert.Equal(t, "staging", attrs["deployment.environment.name"])
}

func TestGet_Uninitialized(t *testing.T) {
	reset()

	provider := Get()
	require.NotNil(t, provider)
	assert.NotNil(t, provider.tracer)
}

func TestSampler(t *testing.T) {
	assert.Contains(t, sampler(1).Description(), "AlwaysOn")
	assert.Contains(t, sampler(0).Description(), "AlwaysOff")
	assert.Contains(t, sampler(0.5).Description(), "TraceIDRatioBased")
}

func TestStartSpan_Recorded(t *testing.T) {
	provider, exporter := initInMemory(t)

	ctx, span := StartSpan(context.Background(), "guestrisk.Simulate",
		WithAttributes(SimulationAttributes(1000, 150, 0.6, 0.9, 30000)...))
	SetAttributes(ctx, SummaryAttributes(0.3, 0.2, "InviteLess")...)
	AddEvent(ctx, "trials.completed", attribute.Int("count", 1000))
	SetError(ctx, errors.New("boom"))
	span.End()

	require.NoError(t, provider.ForceFlush(context.Background()))
	spans := exporter.GetSpans()
	require.Len(t, spans, 1)

	recorded := spans[0]
	assert.Equal(t, "guestrisk.Simulate", recorded.Name)
	assert.Equal(t, codes.Error, recorded.Status.Code)
	assert.Len(t, recorded.Events, 2) // событие + exception

	attrs := map[attribute.Key]attribute.Value{}
	for _, kv := range recorded.Attributes {
		attrs[kv.Key] = kv.Value
	}
	assert.Equal(t, int64(150), attrs[AttrInvitedCount].AsInt64())
	assert.Equal(t, "InviteLess", attrs[AttrRecommendation].AsString())
}

func TestFromConfig(t *testing.T) {
	cfg := &config.Config{
		App:     config.AppConfig{Version: "1.2.0", Environment: "staging"},
		Tracing: config.TracingConfig{Enabled: true, Endpoint: "otel:4317", ServiceName: "guestrisk-service", SampleRate: 0.25},
	}

	assert.Equal(t, Config{
		Enabled:     true,
		Endpoint:    "otel:4317",
		ServiceName: "guestrisk-service",
		Version:     "1.2.0",
		Environment: "staging",
		SampleRate:  0.25,
	}, FromConfig(cfg))
}

func TestProvider_Noop(t *testing.T) {
	provider := &Provider{tracer: noop.NewTracerProvider().Tracer("test")}

	assert.NotNil(t, provider.Tracer())
	assert.NoError(t, provider.Shutdown(context.Background()))
	assert.NoError(t, provider.ForceFlush(context.Background()))
}

func TestAttributes(t *testing.T) {
	assert.Len(t, SimulationAttributes(10, 20, 0.1, 0.2, 100), 5)
	assert.Len(t, SummaryAttributes(0.1, 0.2, "InviteAll"), 3)
	assert.Len(t, SweepAttributes(4, 130), 2)
}

func TestHTTPMiddleware(t *testing.T) {
	provider, exporter := initInMemory(t)

	handler := HTTPMiddleware(func(r *http.Request) string { return "/v1/simulations" })(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.True(t, trace.SpanFromContext(r.Context()).SpanContext().IsValid())
			w.WriteHeader(http.StatusBadGateway)
		}),
	)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/v1/simulations", nil))
	assert.Equal(t, http.StatusBadGateway, rec.Code)

	require.NoError(t, provider.ForceFlush(context.Background()))
	spans := exporter.GetSpans()
	require.Len(t, spans, 1)
	assert.Equal(t, "POST /v1/simulations", spans[0].Name)
	assert.Equal(t, codes.Error, spans[0].Status.Code)
}
