// Package coordinator wires change detection, the build serializer and the
// reload hub together.
//
// Each build cycle moves through
//
//	Idle -> Building -> Succeeded -> Notifying -> Idle
//	Idle -> Building -> Failed -> Idle
//
// and every successful build flushes the hub exactly once, before the next
// build can start.
package coordinator

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/conneroisu/specto/internal/build"
	"github.com/conneroisu/specto/internal/errors"
	"github.com/conneroisu/specto/internal/logging"
	"github.com/conneroisu/specto/internal/watcher"
)

// Notifier is the part of the reload hub the coordinator drives.
type Notifier interface {
	NotifyAll() int
	Pending() int
	Cycles() uint64
}

// Options configures a Coordinator. Builder, Hub and Source are required.
type Options struct {
	Builder  build.Builder
	Hub      Notifier
	Source   watcher.Source
	Filter   watcher.Filter
	Debounce time.Duration
	Logger   logging.Logger
}

// Coordinator owns one build pipeline for the lifetime of the process.
type Coordinator struct {
	opts       Options
	serializer *build.Serializer
	logger     logging.Logger
	state      atomic.Int32

	initialOnce sync.Once
	initial     build.Outcome
}

// New creates a coordinator. Nothing runs until InitialBuild or Run.
func New(opts Options) *Coordinator {
	if opts.Logger == nil {
		opts.Logger = logging.Nop()
	}

	c := &Coordinator{
		opts:   opts,
		logger: opts.Logger.WithComponent("coordinator"),
	}
	c.serializer = build.NewSerializer(opts.Builder, build.Hooks{
		Started:   c.buildStarted,
		Completed: c.buildCompleted,
	}, opts.Logger)

	return c
}

// InitialBuild runs the first build and waits for it. Later calls return
// the same outcome without building again.
func (c *Coordinator) InitialBuild(ctx context.Context) build.Outcome {
	c.initialOnce.Do(func() {
		c.logger.Info(ctx, "Running initial build")
		c.serializer.Request(ctx)
		c.serializer.Wait()
		c.initial, _ = c.serializer.Last()
	})
	return c.initial
}

// Run performs the initial build (if InitialBuild was not called) and then
// rebuilds on every trigger until ctx is done or the watch fails. A failed
// build never ends Run; only a fatal watch error does, and it is returned.
func (c *Coordinator) Run(ctx context.Context) error {
	c.InitialBuild(ctx)

	triggers, fatal := watcher.Triggers(ctx, c.opts.Source, c.opts.Filter, c.opts.Debounce, c.opts.Logger)

	for {
		select {
		case <-ctx.Done():
			// Cancelling ctx also kills a running compiler.
			c.serializer.Wait()
			return nil

		case err := <-fatal:
			c.serializer.Wait()
			return err

		case <-triggers:
			if !c.serializer.Request(ctx) {
				c.logger.Debug(ctx, "Build in progress, rebuild queued")
			}
		}
	}
}

// State returns the current cycle state.
func (c *Coordinator) State() State {
	return State(c.state.Load())
}

// Serializer exposes the build serializer, mainly for metrics.
func (c *Coordinator) Serializer() *build.Serializer {
	return c.serializer
}

func (c *Coordinator) setState(s State) {
	c.state.Store(int32(s))
}

func (c *Coordinator) buildStarted() {
	c.setState(StateBuilding)
}

func (c *Coordinator) buildCompleted(outcome build.Outcome) {
	ctx := context.Background()

	if !outcome.Success {
		c.setState(StateFailed)
		c.logger.Error(ctx, outcome.Err, "Build failed, keeping previous artifact",
			"duration_ms", outcome.Duration.Milliseconds(),
			"errors", len(outcome.Errors))
		for _, parsed := range outcome.Errors {
			c.logger.Debug(ctx, "Compiler error", "title", parsed.Title, "file", parsed.File)
		}
		if outcome.Err != nil && !errors.IsRecoverable(outcome.Err) {
			c.logger.Warn(ctx, outcome.Err, "Compiler could not be started, fix the setup and save a file to retry")
		}
		c.setState(StateIdle)
		return
	}

	c.setState(StateSucceeded)
	c.setState(StateNotifying)
	released := c.opts.Hub.NotifyAll()
	c.logger.Info(ctx, "Build succeeded",
		"artifact", outcome.ArtifactPath,
		"duration_ms", outcome.Duration.Milliseconds(),
		"reloaded", released)
	c.setState(StateIdle)
}
