package build

import (
	"context"
	"sync"
	"time"

	"github.com/conneroisu/specto/internal/logging"
)

// Hooks are called from the build goroutine. Completed runs once per
// finished build, before any follow-up build starts.
type Hooks struct {
	Started   func()
	Completed func(Outcome)
}

// Serializer guarantees that at most one build runs at a time. A request
// made while a build is running is recorded as a single owed follow-up;
// any number of such requests produce exactly one follow-up build.
type Serializer struct {
	builder Builder
	hooks   Hooks
	metrics *Metrics
	logger  logging.Logger

	mutex   sync.Mutex
	idle    *sync.Cond
	running bool
	owed    bool
	nextCtx context.Context
	last    Outcome
	hasLast bool
}

// NewSerializer wraps builder with the one-at-a-time policy.
func NewSerializer(builder Builder, hooks Hooks, logger logging.Logger) *Serializer {
	if logger == nil {
		logger = logging.Nop()
	}
	s := &Serializer{
		builder: builder,
		hooks:   hooks,
		metrics: NewMetrics(),
		logger:  logger.WithComponent("build"),
	}
	s.idle = sync.NewCond(&s.mutex)
	return s
}

// Request asks for a build without blocking. It returns true if a build
// started now and false if the request was folded into the follow-up owed
// to the build in flight.
func (s *Serializer) Request(ctx context.Context) bool {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if s.running {
		if s.owed {
			s.metrics.RecordCoalesced()
		}
		s.owed = true
		s.nextCtx = ctx
		return false
	}

	s.running = true
	go s.run(ctx)
	return true
}

// Wait blocks until no build is running and none is owed.
func (s *Serializer) Wait() {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	for s.running {
		s.idle.Wait()
	}
}

// Busy reports whether a build is running.
func (s *Serializer) Busy() bool {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	return s.running
}

// Last returns the outcome of the most recently completed build.
func (s *Serializer) Last() (Outcome, bool) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	return s.last, s.hasLast
}

// Metrics returns the serializer's build metrics.
func (s *Serializer) Metrics() *Metrics {
	return s.metrics
}

func (s *Serializer) run(ctx context.Context) {
	for {
		outcome := s.buildOnce(ctx)

		s.mutex.Lock()
		s.last = outcome
		s.hasLast = true
		s.mutex.Unlock()

		if s.hooks.Completed != nil {
			s.hooks.Completed(outcome)
		}

		s.mutex.Lock()
		if !s.owed {
			s.running = false
			s.idle.Broadcast()
			s.mutex.Unlock()
			return
		}
		s.owed = false
		ctx = s.nextCtx
		s.nextCtx = nil
		s.mutex.Unlock()

		s.logger.Debug(ctx, "Starting follow-up build")
	}
}

func (s *Serializer) buildOnce(ctx context.Context) Outcome {
	if s.hooks.Started != nil {
		s.hooks.Started()
	}

	perf := logging.StartOperation(s.logger, "build")
	outcome := s.builder.Build(ctx)
	if outcome.Duration == 0 {
		outcome.Duration = perf.Elapsed()
	}
	if outcome.FinishedAt.IsZero() {
		outcome.FinishedAt = time.Now()
	}
	s.metrics.RecordBuild(outcome)

	if outcome.Success {
		perf.End(ctx, "artifact", outcome.ArtifactPath)
	} else {
		perf.EndWithError(ctx, outcome.Err, "errors", len(outcome.Errors))
	}

	return outcome
}
