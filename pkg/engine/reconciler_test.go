package engine

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

// mockProvider records which operations run and in what order.
type mockProvider struct {
	calls []string

	createAck *MutationAck
	createErr error
	updateAck *MutationAck
	updateErr error
	deleteErr error
	snapshot  *RemoteSnapshot
	readErr   error
	defaults  ResourceConfig
}

func (m *mockProvider) Create(_ context.Context, _ ResourceConfig) (*MutationAck, error) {
	m.calls = append(m.calls, "create")
	return m.createAck, m.createErr
}

func (m *mockProvider) Update(_ context.Context, _ ResourceConfig, _ NormalizedOutput) (*MutationAck, error) {
	m.calls = append(m.calls, "update")
	return m.updateAck, m.updateErr
}

func (m *mockProvider) Delete(_ context.Context) error {
	m.calls = append(m.calls, "delete")
	return m.deleteErr
}

func (m *mockProvider) Read(_ context.Context) (*RemoteSnapshot, error) {
	m.calls = append(m.calls, "read")
	return m.snapshot, m.readErr
}

func (m *mockProvider) Defaults() ResourceConfig {
	return m.defaults
}

func newTestReconciler(q TaskQuerier) *Reconciler {
	poller := NewTaskPoller(q, nil, 2*time.Second, zerolog.Nop())
	newFakeClock().install(poller)
	return NewReconciler(poller, Budgets{}, zerolog.Nop())
}

func calledOps(calls []string) map[string]int {
	out := make(map[string]int)
	for _, c := range calls {
		out[c]++
	}
	return out
}

func TestReconcileCreateSynchronous(t *testing.T) {
	ops := &mockProvider{
		snapshot: &RemoteSnapshot{Exists: true, Fields: map[string]any{"vmid": 100}},
	}
	r := newTestReconciler(nil)

	out, err := r.Reconcile(context.Background(), ReconcileRequest{
		Phase:         PhaseCreate,
		ResourceID:    "vm.web01",
		ResourceType:  "vm",
		DesiredConfig: ResourceConfig{"name": "web01", "cores": 2},
	}, ops)
	if err != nil {
		t.Fatalf("Reconcile returned error: %v", err)
	}

	if got := calledOps(ops.calls); got["create"] != 1 || got["read"] != 1 || got["update"] != 0 || got["delete"] != 0 {
		t.Errorf("unexpected operation set: %v", ops.calls)
	}
	if out["vmid"] != 100 || out["name"] != "web01" || out["cores"] != 2 {
		t.Errorf("output missing merged fields: %v", out)
	}
}

func TestReconcileCreateAwaitsTask(t *testing.T) {
	q := &scriptedQuerier{statuses: []TaskStatus{running(), running(), succeeded()}}
	ops := &mockProvider{
		createAck: &MutationAck{Task: "UPID:hv01:0001"},
		snapshot:  &RemoteSnapshot{Exists: true, Fields: map[string]any{"vmid": 100}},
	}
	r := newTestReconciler(q)

	out, err := r.Reconcile(context.Background(), ReconcileRequest{
		Phase:         PhaseCreate,
		ResourceID:    "vm.web01",
		ResourceType:  "vm",
		DesiredConfig: ResourceConfig{"name": "web01"},
	}, ops)
	if err != nil {
		t.Fatalf("Reconcile returned error: %v", err)
	}
	if q.calls != 3 {
		t.Errorf("expected 3 task polls, got %d", q.calls)
	}
	if out["vmid"] != 100 {
		t.Errorf("expected normalized output after task, got %v", out)
	}
}

func TestReconcileCreateTaskFailureSkipsNormalize(t *testing.T) {
	q := &scriptedQuerier{statuses: []TaskStatus{
		running(), running(), running(),
		{State: TaskStateFailed, ExitInfo: "disk full"},
	}}
	ops := &mockProvider{createAck: &MutationAck{Task: "UPID:hv01:0002"}}
	r := newTestReconciler(q)

	_, err := r.Reconcile(context.Background(), ReconcileRequest{
		Phase:         PhaseCreate,
		ResourceID:    "vm.web01",
		ResourceType:  "vm",
		DesiredConfig: ResourceConfig{"name": "web01"},
	}, ops)
	if !IsTaskFailed(err) {
		t.Fatalf("expected task_failed, got %v", err)
	}
	if got := calledOps(ops.calls); got["read"] != 0 {
		t.Error("normalize read must not run after a failed task")
	}
}

func TestReconcileDeleteAbsentTargetSucceeds(t *testing.T) {
	ops := &mockProvider{deleteErr: NewNotFoundError("no such vm", nil)}
	r := newTestReconciler(nil)

	out, err := r.Reconcile(context.Background(), ReconcileRequest{
		Phase:           PhaseDelete,
		ResourceID:      "vm.web01",
		ResourceType:    "vm",
		PreviousOutput:  NormalizedOutput{"vmid": 100},
		DeleteRequested: true,
	}, ops)
	if err != nil {
		t.Fatalf("delete of absent target must succeed, got %v", err)
	}
	if !out.IsTerminal() {
		t.Errorf("expected terminal output, got %v", out)
	}
	if got := calledOps(ops.calls); got["create"] != 0 || got["update"] != 0 || got["read"] != 0 {
		t.Errorf("delete ran extra operations: %v", ops.calls)
	}
}

func TestReconcileUpdateUnsupportedDegradesToRead(t *testing.T) {
	ops := &mockProvider{
		updateErr: ErrUpdateUnsupported,
		snapshot:  &RemoteSnapshot{Exists: true, Fields: map[string]any{"digest": "abc"}},
	}
	r := newTestReconciler(nil)

	out, err := r.Reconcile(context.Background(), ReconcileRequest{
		Phase:          PhaseUpdate,
		ResourceID:     "acl.ops",
		ResourceType:   "acl",
		DesiredConfig:  ResourceConfig{"path": "/vms", "role": "PVEAdmin"},
		PreviousOutput: NormalizedOutput{"path": "/vms"},
	}, ops)
	if err != nil {
		t.Fatalf("unsupported update must not fail: %v", err)
	}
	if out["digest"] != "abc" || out["role"] != "PVEAdmin" {
		t.Errorf("expected fresh read merged with desired config, got %v", out)
	}
}

func TestReconcileUpdateWithoutPreviousOutput(t *testing.T) {
	ops := &mockProvider{
		defaults: ResourceConfig{"onboot": false},
		snapshot: &RemoteSnapshot{Exists: true, Fields: map[string]any{"vmid": 100}},
	}
	r := newTestReconciler(nil)

	out, err := r.Reconcile(context.Background(), ReconcileRequest{
		Phase:         PhaseUpdate,
		ResourceID:    "vm.web01",
		ResourceType:  "vm",
		DesiredConfig: ResourceConfig{"name": "web01"},
		// PreviousOutput deliberately missing: crash-recovery gap.
	}, ops)
	if err != nil {
		t.Fatalf("update without previous output must not fail: %v", err)
	}
	if out["vmid"] != 100 {
		t.Errorf("expected normalized output, got %v", out)
	}
}

func TestReconcileRejectsInvalidPhase(t *testing.T) {
	r := newTestReconciler(nil)
	_, err := r.Reconcile(context.Background(), ReconcileRequest{
		Phase:      Phase("recreate"),
		ResourceID: "vm.web01",
	}, &mockProvider{})
	if !IsRejected(err) {
		t.Fatalf("expected rejected error for invalid phase, got %v", err)
	}
}

func TestReconcileRecordsTaskWaitByClass(t *testing.T) {
	q := &scriptedQuerier{statuses: []TaskStatus{running(), succeeded()}}
	ops := &mockProvider{
		createAck: &MutationAck{Task: "UPID:hv01:0003", Class: ClassSlow},
		snapshot:  &RemoteSnapshot{Exists: true, Fields: map[string]any{"vmid": 100}},
	}
	m := newCountingMetrics()
	poller := NewTaskPoller(q, nil, 2*time.Second, zerolog.Nop())
	newFakeClock().install(poller)
	r := NewReconciler(poller, Budgets{}, zerolog.Nop(), WithReconcilerMetrics(m))

	_, err := r.Reconcile(context.Background(), ReconcileRequest{
		Phase:         PhaseCreate,
		ResourceID:    "vm.web01",
		ResourceType:  "vm",
		DesiredConfig: ResourceConfig{"name": "web01"},
	}, ops)
	if err != nil {
		t.Fatalf("Reconcile returned error: %v", err)
	}

	if _, ok := m.waits[string(ClassSlow)]; !ok {
		t.Errorf("expected a wait observation for class %q, got %v", ClassSlow, m.waits)
	}
	if len(m.pollTimeouts) != 0 {
		t.Errorf("successful wait must not record a timeout, got %v", m.pollTimeouts)
	}
}

func TestReconcileTimeoutCarriesTaskAndBudget(t *testing.T) {
	q := &scriptedQuerier{statuses: []TaskStatus{running()}}
	ops := &mockProvider{
		createAck: &MutationAck{Task: "UPID:hv01:0042", Class: ClassDefault},
	}
	m := newCountingMetrics()
	poller := NewTaskPoller(q, nil, 2*time.Second, zerolog.Nop())
	newFakeClock().install(poller)
	budgets := Budgets{Default: 10 * time.Second, Slow: 20 * time.Second, Download: 30 * time.Second}
	r := NewReconciler(poller, budgets, zerolog.Nop(), WithReconcilerMetrics(m))

	_, err := r.Reconcile(context.Background(), ReconcileRequest{
		Phase:         PhaseCreate,
		ResourceID:    "vm.web01",
		ResourceType:  "vm",
		DesiredConfig: ResourceConfig{"name": "web01"},
	}, ops)
	if !IsTimeout(err) {
		t.Fatalf("expected timeout error, got %v", err)
	}

	var re *ReconcileError
	if !asReconcileError(err, &re) {
		t.Fatalf("expected a classified error, got %v", err)
	}
	if re.Task != "UPID:hv01:0042" {
		t.Errorf("expected timeout to carry the task handle, got %q", re.Task)
	}
	if re.Budget != 10*time.Second {
		t.Errorf("expected timeout to carry the budget, got %v", re.Budget)
	}
	if m.pollTimeouts[string(ClassDefault)] != 1 {
		t.Errorf("expected one recorded timeout for class %q, got %v", ClassDefault, m.pollTimeouts)
	}
}

func TestReconcileFailedMutationReturnsNoOutput(t *testing.T) {
	ops := &mockProvider{createErr: NewRejectedError("duplicate vmid", nil)}
	r := newTestReconciler(nil)

	out, err := r.Reconcile(context.Background(), ReconcileRequest{
		Phase:         PhaseCreate,
		ResourceID:    "vm.web01",
		ResourceType:  "vm",
		DesiredConfig: ResourceConfig{"name": "web01"},
	}, ops)
	if !IsRejected(err) {
		t.Fatalf("expected rejected error, got %v", err)
	}
	if out != nil {
		t.Errorf("failed reconciliation must not emit partial output, got %v", out)
	}
}
