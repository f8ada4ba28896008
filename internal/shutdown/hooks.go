// Package shutdown releases process resources in a predictable order.
package shutdown

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/rs/zerolog/log"
)

type hook struct {
	name string
	fn   func(context.Context) error
}

// Hooks runs cleanup functions in reverse order of registration, as deferred
// calls would. The zero value is ready to use.
type Hooks struct {
	hooks []hook
}

// Add registers a named hook. Nil hooks are ignored with a warning logged.
func (h *Hooks) Add(name string, fn func(context.Context) error) {
	if fn == nil {
		log.Warn().Str("hook", name).Msg("attempted to add nil shutdown hook; ignoring")
		return
	}

	log.Debug().Str("hook", name).Msg("adding shutdown hook")
	h.hooks = append(h.hooks, hook{name: name, fn: fn})
}

// AddClose registers closer.Close as a hook.
func (h *Hooks) AddClose(name string, closer io.Closer) {
	if closer == nil {
		log.Warn().Str("hook", name).Msg("attempted to add nil shutdown hook; ignoring")
		return
	}

	h.Add(name, func(context.Context) error { return closer.Close() })
}

// Run executes every registered hook, newest first, and clears the list so
// a second Run does nothing. A failing hook does not stop the rest; all
// failures are returned joined.
func (h *Hooks) Run(ctx context.Context) error {
	hooks := h.hooks
	h.hooks = nil

	var errs []error
	for i := len(hooks) - 1; i >= 0; i-- {
		hk := hooks[i]
		hookLog := log.Ctx(ctx).With().Str("hook", hk.name).Logger()

		hookLog.Info().Msg("shutdown started")
		if err := hk.fn(ctx); err != nil {
			hookLog.Warn().Err(err).Msg("shutdown failed")
			errs = append(errs, fmt.Errorf("%s: %w", hk.name, err))
			continue
		}
		hookLog.Info().Msg("shutdown complete")
	}

	return errors.Join(errs...)
}
