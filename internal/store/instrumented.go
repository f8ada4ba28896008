package store

import (
	"context"
	"sync"
	"time"

	"github.com/chinmina/catalog-token-bridge/internal/token"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

var (
	metricsOnce     sync.Once
	storeOperations metric.Int64Counter
	storeDuration   metric.Float64Histogram
)

func initMetrics() {
	metricsOnce.Do(func() {
		meter := otel.Meter("github.com/chinmina/catalog-token-bridge/internal/store")

		var err error
		storeOperations, err = meter.Int64Counter(
			"token_store.operations",
			metric.WithDescription("Total token store operations"),
		)
		if err != nil {
			otel.Handle(err)
		}

		storeDuration, err = meter.Float64Histogram(
			"token_store.operation.duration",
			metric.WithDescription("Token store operation duration"),
			metric.WithUnit("s"),
		)
		if err != nil {
			otel.Handle(err)
		}
	})
}

// Instrumented wraps a TokenStore with metrics instrumentation.
type Instrumented struct {
	wrapped   TokenStore
	storeType string
}

// NewInstrumented creates an instrumented store wrapper.
func NewInstrumented(wrapped TokenStore, storeType string) *Instrumented {
	initMetrics()
	return &Instrumented{
		wrapped:   wrapped,
		storeType: storeType,
	}
}

func (i *Instrumented) Get(ctx context.Context, key string) (token.Record, bool, error) {
	start := time.Now()

	record, found, err := i.wrapped.Get(ctx, key)

	status := "miss"
	if err != nil {
		status = "error"
	} else if found {
		status = "hit"
	}
	i.record(ctx, "get", status, time.Since(start))

	return record, found, err
}

func (i *Instrumented) Set(ctx context.Context, key string, record token.Record) error {
	start := time.Now()

	err := i.wrapped.Set(ctx, key, record)

	i.record(ctx, "set", outcome(err), time.Since(start))

	return err
}

func (i *Instrumented) Invalidate(ctx context.Context, key string) error {
	start := time.Now()

	err := i.wrapped.Invalidate(ctx, key)

	i.record(ctx, "invalidate", outcome(err), time.Since(start))

	return err
}

func (i *Instrumented) Close() error {
	return i.wrapped.Close()
}

func outcome(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}

func (i *Instrumented) record(ctx context.Context, operation, status string, duration time.Duration) {
	if storeOperations != nil {
		storeOperations.Add(ctx, 1,
			metric.WithAttributes(
				attribute.String("token_store.type", i.storeType),
				attribute.String("token_store.operation", operation),
				attribute.String("token_store.status", status),
			),
		)
	}

	if storeDuration != nil {
		storeDuration.Record(ctx, duration.Seconds(),
			metric.WithAttributes(
				attribute.String("token_store.type", i.storeType),
				attribute.String("token_store.operation", operation),
			),
		)
	}

	span := trace.SpanFromContext(ctx)
	span.SetAttributes(
		attribute.String("token_store.type", i.storeType),
		attribute.String("token_store."+operation+".status", status),
		attribute.Float64("token_store."+operation+".duration", duration.Seconds()),
	)
}
