package watcher

import (
	"context"
	"time"

	"github.com/conneroisu/specto/internal/errors"
	"github.com/conneroisu/specto/internal/logging"
)

// Triggers consumes source until ctx is done and emits one value on the
// returned channel per (debounced) burst of actionable changes. Triggers
// that arrive before the previous one was received are merged into it.
//
// A fatal source error is sent on the error channel and ends the stream;
// recoverable ones are logged and skipped.
func Triggers(ctx context.Context, source Source, filter Filter, debounce time.Duration, logger logging.Logger) (<-chan struct{}, <-chan error) {
	if logger == nil {
		logger = logging.Nop()
	}
	logger = logger.WithComponent("watcher")

	triggers := make(chan struct{}, 1)
	fatal := make(chan error, 1)

	debouncer := NewDebouncer(debounce, func() {
		select {
		case triggers <- struct{}{}:
		default:
		}
	})

	go func() {
		defer debouncer.Stop()

		for {
			select {
			case <-ctx.Done():
				return

			case event := <-source.Events():
				if !filter.Actionable(event) {
					logger.Debug(ctx, "Ignoring change", "path", event.Path, "kind", event.Kind.String())
					continue
				}
				logger.Info(ctx, "File changed", "path", event.Path, "kind", event.Kind.String())
				debouncer.Trigger()

			case err := <-source.Errors():
				if errors.IsFatal(err) {
					logger.Error(ctx, err, "File watch failed")
					fatal <- err
					return
				}
				logger.Warn(ctx, err, "File watcher error")
			}
		}
	}()

	return triggers, fatal
}
