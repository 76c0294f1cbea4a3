package telemetry

import (
	"context"
	"intelhub/internal/config"
	"testing"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func TestInitMetricsWithoutEndpoint(t *testing.T) {
	before := otel.GetMeterProvider()
	shutdown := InitMetrics(context.Background(), "intelhub-test", config.MetricsConfig{})
	if err := shutdown(context.Background()); err != nil {
		t.Errorf("shutdown: %v", err)
	}
	if otel.GetMeterProvider() != before {
		t.Error("provider must stay untouched without an endpoint")
	}
}

func TestInitMetricsInstallsProvider(t *testing.T) {
	t.Cleanup(func() { otel.SetMeterProvider(noop.NewMeterProvider()) })

	// grpc 连接是惰性的，没有 collector 也能完成初始化
	shutdown := InitMetrics(context.Background(), "intelhub-test", config.MetricsConfig{Endpoint: "127.0.0.1:4317"})
	if _, ok := otel.GetMeterProvider().(*sdkmetric.MeterProvider); !ok {
		t.Fatalf("global provider = %T", otel.GetMeterProvider())
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_ = shutdown(ctx)
}

func TestNewMeterProviderRecords(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	mp := NewMeterProvider("intelhub-test", reader)
	defer mp.Shutdown(context.Background())

	counter, err := mp.Meter("test").Int64Counter("intelhub_test_total")
	if err != nil {
		t.Fatal(err)
	}
	counter.Add(context.Background(), 2)

	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatal(err)
	}
	if len(rm.ScopeMetrics) != 1 || rm.ScopeMetrics[0].Metrics[0].Name != "intelhub_test_total" {
		t.Fatalf("collected = %+v", rm.ScopeMetrics)
	}
	sum := rm.ScopeMetrics[0].Metrics[0].Data.(metricdata.Sum[int64])
	if sum.DataPoints[0].Value != 2 {
		t.Errorf("value = %d", sum.DataPoints[0].Value)
	}
	if v, ok := rm.Resource.Set().Value("service.name"); !ok || v.AsString() != "intelhub-test" {
		t.Errorf("service.name = %v", v)
	}
}
