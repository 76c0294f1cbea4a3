package telemetry

import (
	"context"
	"intelhub/internal/config"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	sdkresource "go.opentelemetry.io/otel/sdk/resource"
)

// Shutdown 退出前刷新并关闭指标导出
type Shutdown func(context.Context) error

func noopShutdown(context.Context) error { return nil }

// InitMetrics 安装全局 MeterProvider，按 Interval 推送到 OTLP gRPC collector。
// 服务里的计数器在构造时取全局 provider，所以必须先于服务创建调用。
func InitMetrics(ctx context.Context, service string, cfg config.MetricsConfig) Shutdown {
	if cfg.Endpoint == "" {
		slog.Info("metrics export disabled, no OTLP endpoint configured")
		return noopShutdown
	}

	ctxInit, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	exp, err := otlpmetricgrpc.New(ctxInit,
		otlpmetricgrpc.WithEndpoint(cfg.Endpoint),
		otlpmetricgrpc.WithInsecure(),
	)
	if err != nil {
		slog.Warn("metrics exporter init failed", "endpoint", cfg.Endpoint, "error", err)
		return noopShutdown
	}

	interval := cfg.Interval
	if interval <= 0 {
		interval = 10 * time.Second
	}
	reader := sdkmetric.NewPeriodicReader(exp, sdkmetric.WithInterval(interval))
	mp := NewMeterProvider(service, reader)
	otel.SetMeterProvider(mp)
	slog.Info("metrics initialized", "endpoint", cfg.Endpoint, "interval", interval)
	return mp.Shutdown
}

// NewMeterProvider 带服务名 resource 的 SDK provider，测试里配 ManualReader 使用
func NewMeterProvider(service string, reader sdkmetric.Reader) *sdkmetric.MeterProvider {
	res, err := sdkresource.Merge(sdkresource.Default(), sdkresource.NewSchemaless(
		attribute.String("service.name", service),
	))
	if err != nil {
		res = sdkresource.Default()
	}
	return sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader), sdkmetric.WithResource(res))
}
