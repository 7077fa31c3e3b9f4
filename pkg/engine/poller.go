package engine

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// DefaultPollInterval is the reference interval between status queries.
const DefaultPollInterval = 2 * time.Second

// PollMetrics receives polling observations. *telemetry.Metrics
// satisfies it.
type PollMetrics interface {
	RecordTaskPoll()
	RecordTaskWait(class string, duration time.Duration)
	RecordPollTimeout(class string)
}

// TaskPoller blocks cooperatively until a remote asynchronous operation
// reaches a terminal state or a wall-clock budget elapses. It is purely
// observational: it retries only the read-only status query, never the
// mutation that started the task, because re-issuing a mutation could
// start a second conflicting operation.
type TaskPoller struct {
	tasks    TaskQuerier
	counter  RunningTaskCounter
	interval time.Duration
	logger   zerolog.Logger
	metrics  PollMetrics

	// sleep and now are injection points for tests.
	sleep func(ctx context.Context, d time.Duration) error
	now   func() time.Time
}

// PollerOption configures a TaskPoller.
type PollerOption func(*TaskPoller)

// WithPollerMetrics records a counter increment per status query.
func WithPollerMetrics(m PollMetrics) PollerOption {
	return func(p *TaskPoller) {
		p.metrics = m
	}
}

// NewTaskPoller creates a poller over the given task query surfaces.
// A non-positive interval falls back to DefaultPollInterval.
func NewTaskPoller(tasks TaskQuerier, counter RunningTaskCounter, interval time.Duration, logger zerolog.Logger, opts ...PollerOption) *TaskPoller {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	p := &TaskPoller{
		tasks:    tasks,
		counter:  counter,
		interval: interval,
		logger:   logger.With().Str("component", "task-poller").Logger(),
		sleep:    sleepContext,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// WaitForTask polls the status of a specific task until it reaches a
// terminal state or the budget elapses. A succeeded task returns nil; a
// failed task returns a task_failed error carrying the control plane's
// exit info; budget exhaustion returns a timeout error. Transient
// status-query failures are swallowed and treated as "still running"
// until the budget is spent.
func (p *TaskPoller) WaitForTask(ctx context.Context, handle TaskHandle, budget time.Duration) error {
	log := p.logger.With().Str("task", string(handle)).Logger()
	return p.poll(ctx, budget, func(ctx context.Context) (bool, error) {
		status, err := p.tasks.QueryTask(ctx, handle)
		if err != nil {
			return false, err
		}
		switch status.State {
		case TaskStateSucceeded:
			return true, nil
		case TaskStateFailed:
			return false, NewTaskFailedError(status.ExitInfo)
		default:
			log.Debug().Msg("task still running")
			return false, nil
		}
	})
}

// WaitForIdle polls a coarse scope until it reports no running tasks or
// the budget elapses. It serves control planes that return no task
// identifier for a mutation and only expose a per-node running-task
// query.
func (p *TaskPoller) WaitForIdle(ctx context.Context, scope TaskScope, budget time.Duration) error {
	log := p.logger.With().Str("node", scope.Node).Logger()
	return p.poll(ctx, budget, func(ctx context.Context) (bool, error) {
		count, err := p.counter.CountRunningTasks(ctx, scope)
		if err != nil {
			return false, err
		}
		if count > 0 {
			log.Debug().Int("running", count).Msg("node busy")
			return false, nil
		}
		return true, nil
	})
}

// poll runs the probe at the configured interval until it reports done,
// fails non-transiently, or the budget is exhausted. Transient probe
// errors count as "still running" until the deadline, after which the
// wait fails with a timeout wrapping the last transient error.
func (p *TaskPoller) poll(ctx context.Context, budget time.Duration, probe func(context.Context) (bool, error)) error {
	start := p.now()
	var lastTransient error

	for {
		if p.metrics != nil {
			p.metrics.RecordTaskPoll()
		}
		done, err := probe(ctx)
		if err != nil {
			if !IsTransient(err) {
				return err
			}
			lastTransient = err
			p.logger.Debug().Err(err).Msg("transient status query failure, continuing to poll")
		} else if done {
			return nil
		}

		if p.now().Sub(start) >= budget {
			return NewTimeoutError("polling budget exhausted", lastTransient)
		}

		if err := p.sleep(ctx, p.interval); err != nil {
			return NewTimeoutError("polling interrupted", err)
		}
	}
}

// sleepContext sleeps for d without blocking a worker thread past
// context cancellation.
func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
