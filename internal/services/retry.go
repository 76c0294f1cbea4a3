package services

import (
	"context"
	"intelhub/internal/apperr"
	"math/rand"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const (
	conflictAttempts = 3
	conflictDelay    = 20 * time.Millisecond
)

// serviceMetrics 冲突重试与入库结果计数
type serviceMetrics struct {
	retries  metric.Int64Counter
	ingested metric.Int64Counter
}

// newServiceMetrics 从当前全局 MeterProvider 取计数器
func newServiceMetrics() serviceMetrics {
	meter := otel.Meter("intelhub/services")
	retries, _ := meter.Int64Counter("intelhub_conflict_retries_total",
		metric.WithDescription("Units of work retried after a unique constraint conflict"))
	ingested, _ := meter.Int64Counter("intelhub_ingest_records_total",
		metric.WithDescription("Feed records processed by ingestion, by status"))
	return serviceMetrics{retries: retries, ingested: ingested}
}

// retryOnConflict 只在唯一约束冲突时重试整个工作单元。
// 并发写入同一自然键时，失败的一方重试后会读到对方已提交的行。
// 等待时间按 delay 指数增长并加全抖动。
func retryOnConflict[T any](ctx context.Context, retries metric.Int64Counter, op string, fn func() (T, error)) (T, error) {
	var zero T
	cur := conflictDelay
	var lastErr error
	for i := 0; i < conflictAttempts; i++ {
		v, err := fn()
		if err == nil || !apperr.Is(err, apperr.KindConflict) {
			return v, err
		}
		lastErr = err
		retries.Add(ctx, 1, metric.WithAttributes(attribute.String("op", op)))
		if i == conflictAttempts-1 {
			break
		}
		sleep := time.Duration(rand.Int63n(int64(cur) + 1))
		select {
		case <-ctx.Done():
			return zero, ctx.Err()
		case <-time.After(sleep):
		}
		cur *= 2
	}
	return zero, lastErr
}
