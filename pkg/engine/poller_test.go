package engine

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

// fakeClock drives the poller's injected sleep/now hooks so tests run
// without real waiting.
type fakeClock struct {
	t time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Unix(1000, 0)}
}

func (c *fakeClock) install(p *TaskPoller) {
	p.now = func() time.Time { return c.t }
	p.sleep = func(_ context.Context, d time.Duration) error {
		c.t = c.t.Add(d)
		return nil
	}
}

// scriptedQuerier returns statuses (or errors) in order, then repeats
// the last entry.
type scriptedQuerier struct {
	statuses []TaskStatus
	errs     []error
	calls    int
}

func (q *scriptedQuerier) QueryTask(_ context.Context, _ TaskHandle) (TaskStatus, error) {
	i := q.calls
	q.calls++
	if i >= len(q.statuses) {
		i = len(q.statuses) - 1
	}
	var err error
	if i < len(q.errs) {
		err = q.errs[i]
	}
	return q.statuses[i], err
}

type scriptedCounter struct {
	counts []int
	calls  int
}

func (c *scriptedCounter) CountRunningTasks(_ context.Context, _ TaskScope) (int, error) {
	i := c.calls
	c.calls++
	if i >= len(c.counts) {
		i = len(c.counts) - 1
	}
	return c.counts[i], nil
}

func running() TaskStatus   { return TaskStatus{State: TaskStateRunning} }
func succeeded() TaskStatus { return TaskStatus{State: TaskStateSucceeded} }

func TestWaitForTaskSucceedsAfterNPolls(t *testing.T) {
	q := &scriptedQuerier{statuses: []TaskStatus{
		running(), running(), running(), running(), succeeded(),
	}}
	p := NewTaskPoller(q, nil, 2*time.Second, zerolog.Nop())
	clk := newFakeClock()
	clk.install(p)
	start := clk.t

	if err := p.WaitForTask(context.Background(), "task-1", 300*time.Second); err != nil {
		t.Fatalf("WaitForTask returned error: %v", err)
	}

	if q.calls != 5 {
		t.Errorf("expected 5 status queries, got %d", q.calls)
	}
	// The fifth query resolves after four sleeps, ~8s elapsed.
	if elapsed := clk.t.Sub(start); elapsed != 8*time.Second {
		t.Errorf("expected 8s elapsed, got %v", elapsed)
	}
}

func TestWaitForTaskFailurePropagatesExitInfo(t *testing.T) {
	q := &scriptedQuerier{statuses: []TaskStatus{
		running(), running(), running(),
		{State: TaskStateFailed, ExitInfo: "unable to allocate image"},
	}}
	p := NewTaskPoller(q, nil, 2*time.Second, zerolog.Nop())
	newFakeClock().install(p)

	err := p.WaitForTask(context.Background(), "task-1", 300*time.Second)
	if !IsTaskFailed(err) {
		t.Fatalf("expected task_failed error, got %v", err)
	}
	var re *ReconcileError
	if !asReconcileError(err, &re) || re.ExitInfo != "unable to allocate image" {
		t.Errorf("expected exit info preserved, got %v", err)
	}
}

func TestWaitForTaskTimeout(t *testing.T) {
	q := &scriptedQuerier{statuses: []TaskStatus{running()}}
	p := NewTaskPoller(q, nil, 2*time.Second, zerolog.Nop())
	clk := newFakeClock()
	clk.install(p)
	start := clk.t

	err := p.WaitForTask(context.Background(), "task-1", 10*time.Second)
	if !IsTimeout(err) {
		t.Fatalf("expected timeout error, got %v", err)
	}
	// Budget is checked after each query; the wait never overruns the
	// budget by more than one interval's slack.
	if elapsed := clk.t.Sub(start); elapsed > 12*time.Second {
		t.Errorf("wait overran budget: %v elapsed for 10s budget", elapsed)
	}
	if elapsed := clk.t.Sub(start); elapsed < 10*time.Second {
		t.Errorf("timeout returned before budget elapsed: %v", elapsed)
	}
}

func TestWaitForTaskSwallowsTransientQueryFailures(t *testing.T) {
	q := &scriptedQuerier{
		statuses: []TaskStatus{running(), {}, running(), succeeded()},
		errs: []error{
			nil,
			NewTransientError("connection reset", nil),
			nil,
			nil,
		},
	}
	p := NewTaskPoller(q, nil, 2*time.Second, zerolog.Nop())
	newFakeClock().install(p)

	if err := p.WaitForTask(context.Background(), "task-1", 300*time.Second); err != nil {
		t.Fatalf("transient query failure should not fail the wait: %v", err)
	}
	if q.calls != 4 {
		t.Errorf("expected 4 status queries, got %d", q.calls)
	}
}

func TestWaitForTaskTransientFailuresPastBudgetBecomeTimeout(t *testing.T) {
	q := &scriptedQuerier{
		statuses: []TaskStatus{{}},
		errs:     []error{NewTransientError("connection reset", nil)},
	}
	p := NewTaskPoller(q, nil, 2*time.Second, zerolog.Nop())
	newFakeClock().install(p)

	err := p.WaitForTask(context.Background(), "task-1", 6*time.Second)
	if !IsTimeout(err) {
		t.Fatalf("expected timeout, got %v", err)
	}
}

func TestWaitForTaskRejectedQueryFailurePropagates(t *testing.T) {
	q := &scriptedQuerier{
		statuses: []TaskStatus{{}},
		errs:     []error{NewRejectedError("permission denied", nil)},
	}
	p := NewTaskPoller(q, nil, 2*time.Second, zerolog.Nop())
	newFakeClock().install(p)

	err := p.WaitForTask(context.Background(), "task-1", 300*time.Second)
	if !IsRejected(err) {
		t.Fatalf("expected rejected error to propagate, got %v", err)
	}
	if q.calls != 1 {
		t.Errorf("expected polling to stop after rejection, got %d queries", q.calls)
	}
}

func TestWaitForIdleDrains(t *testing.T) {
	c := &scriptedCounter{counts: []int{3, 2, 1, 0}}
	p := NewTaskPoller(nil, c, 2*time.Second, zerolog.Nop())
	newFakeClock().install(p)

	err := p.WaitForIdle(context.Background(), TaskScope{Node: "hv01"}, 300*time.Second)
	if err != nil {
		t.Fatalf("WaitForIdle returned error: %v", err)
	}
	if c.calls != 4 {
		t.Errorf("expected 4 count queries, got %d", c.calls)
	}
}

// countingMetrics records polling observations for assertions.
type countingMetrics struct {
	polls        int
	waits        map[string]time.Duration
	pollTimeouts map[string]int
}

func newCountingMetrics() *countingMetrics {
	return &countingMetrics{
		waits:        make(map[string]time.Duration),
		pollTimeouts: make(map[string]int),
	}
}

func (m *countingMetrics) RecordTaskPoll() { m.polls++ }

func (m *countingMetrics) RecordTaskWait(class string, d time.Duration) { m.waits[class] = d }

func (m *countingMetrics) RecordPollTimeout(class string) { m.pollTimeouts[class]++ }

func TestWaitForTaskCountsStatusProbes(t *testing.T) {
	q := &scriptedQuerier{statuses: []TaskStatus{
		running(), running(), succeeded(),
	}}
	m := newCountingMetrics()
	p := NewTaskPoller(q, nil, 2*time.Second, zerolog.Nop(), WithPollerMetrics(m))
	newFakeClock().install(p)

	if err := p.WaitForTask(context.Background(), "task-1", 300*time.Second); err != nil {
		t.Fatalf("WaitForTask returned error: %v", err)
	}

	if m.polls != 3 {
		t.Errorf("expected 3 recorded probes, got %d", m.polls)
	}
	if m.polls != q.calls {
		t.Errorf("recorded probes (%d) diverge from issued queries (%d)", m.polls, q.calls)
	}
}

func TestNewTaskPollerDefaultsInterval(t *testing.T) {
	p := NewTaskPoller(nil, nil, 0, zerolog.Nop())
	if p.interval != DefaultPollInterval {
		t.Errorf("expected default interval %v, got %v", DefaultPollInterval, p.interval)
	}
}

// asReconcileError is a tiny test helper around errors.As.
func asReconcileError(err error, target **ReconcileError) bool {
	if err == nil {
		return false
	}
	re, ok := err.(*ReconcileError)
	if ok {
		*target = re
		return true
	}
	return false
}
