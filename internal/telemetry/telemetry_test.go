package telemetry

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
)

func TestInitWithoutEndpointIsNoop(t *testing.T) {
	shutdown, err := Init(context.Background(), "rotord", "")
	require.NoError(t, err)
	assert.NoError(t, shutdown(context.Background()))
}

func TestInitRequiresServiceName(t *testing.T) {
	_, err := Init(context.Background(), "", "localhost:4318")
	assert.Error(t, err)
}

func TestExporterOptions(t *testing.T) {
	tests := []struct {
		endpoint string
		wantLen  int
		wantErr  bool
	}{
		{endpoint: "localhost:4318", wantLen: 2},
		{endpoint: "http://collector:4318", wantLen: 2},
		{endpoint: "https://collector.example/v1/traces", wantLen: 2},
		{endpoint: "http://", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.endpoint, func(t *testing.T) {
			opts, err := exporterOptions(tt.endpoint)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Len(t, opts, tt.wantLen)
		})
	}
}

func TestMiddlewarePassesThrough(t *testing.T) {
	h := Middleware("rotord")(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusTeapot, rec.Code)
}

func TestParseEndpoint(t *testing.T) {
	ep, err := parseEndpoint("https://collector.example/v1/traces")
	require.NoError(t, err)
	assert.Equal(t, otlpEndpoint{host: "collector.example", path: "/v1/traces"}, ep)

	ep, err = parseEndpoint("localhost:4318")
	require.NoError(t, err)
	assert.Equal(t, otlpEndpoint{host: "localhost:4318", insecure: true}, ep)
}

func TestInitMetricsWithoutEndpointIsDisabled(t *testing.T) {
	mp, err := InitMetrics(context.Background(), "rotord", "")
	require.NoError(t, err)
	assert.Nil(t, mp)

	_, err = InitMetrics(context.Background(), "", "localhost:4318")
	assert.Error(t, err)
}

func TestNewMeterProviderTagsService(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	mp := NewMeterProvider("rotord", reader)
	t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })

	counter, err := mp.Meter("test").Int64Counter("gorotate_test_total")
	require.NoError(t, err)
	counter.Add(context.Background(), 2)

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))

	name, ok := rm.Resource.Set().Value(semconv.ServiceNameKey)
	require.True(t, ok)
	assert.Equal(t, attribute.StringValue("rotord"), name)
	require.Len(t, rm.ScopeMetrics, 1)
	assert.Equal(t, "gorotate_test_total", rm.ScopeMetrics[0].Metrics[0].Name)
}
