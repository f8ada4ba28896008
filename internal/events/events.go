// Package events delivers advisory notifications about the token lifecycle.
// Nothing in the core depends on delivery: sinks are fire-and-forget.
package events

import (
	"context"
	"sync"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const (
	// RetrievingToken is emitted when a fresh token must be acquired.
	RetrievingToken = "RetrievingToken"

	// TokenReceived is emitted when a fresh token has been acquired.
	TokenReceived = "tokenReceived"
)

// Sink receives named events.
type Sink interface {
	Emit(ctx context.Context, name string)
}

// SinkFunc adapts a function to the Sink interface.
type SinkFunc func(ctx context.Context, name string)

func (f SinkFunc) Emit(ctx context.Context, name string) {
	f(ctx, name)
}

// Discard drops every event.
var Discard Sink = SinkFunc(func(context.Context, string) {})

// Multi fans each event out to every non-nil sink in order.
func Multi(sinks ...Sink) Sink {
	targets := make([]Sink, 0, len(sinks))
	for _, s := range sinks {
		if s != nil {
			targets = append(targets, s)
		}
	}

	return SinkFunc(func(ctx context.Context, name string) {
		for _, s := range targets {
			s.Emit(ctx, name)
		}
	})
}

// Log writes each event to the context logger at debug level.
func Log() Sink {
	return SinkFunc(func(ctx context.Context, name string) {
		zerolog.Ctx(ctx).Debug().Str("event", name).Msg("token lifecycle event")
	})
}

var (
	metricsOnce sync.Once
	eventCount  metric.Int64Counter
)

// Metrics counts each event by name.
func Metrics() Sink {
	metricsOnce.Do(func() {
		meter := otel.Meter("github.com/chinmina/catalog-token-bridge/internal/events")

		var err error
		eventCount, err = meter.Int64Counter(
			"token.lifecycle.events",
			metric.WithDescription("Token lifecycle events emitted"),
		)
		if err != nil {
			otel.Handle(err)
		}
	})

	return SinkFunc(func(ctx context.Context, name string) {
		if eventCount == nil {
			return
		}
		eventCount.Add(ctx, 1, metric.WithAttributes(attribute.String("event", name)))
	})
}

// Recorder keeps every event it receives. Safe for concurrent use.
type Recorder struct {
	mu     sync.Mutex
	events []string
}

func (r *Recorder) Emit(ctx context.Context, name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, name)
}

// Events returns the names received so far.
func (r *Recorder) Events() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.events...)
}
