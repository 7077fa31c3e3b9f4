package engine

import (
	"errors"
	"fmt"
	"testing"
)

func TestErrorClassPredicates(t *testing.T) {
	cases := []struct {
		err   error
		check func(error) bool
		name  string
	}{
		{NewNotFoundError("gone", nil), IsNotFound, "not_found"},
		{NewTransientError("reset", nil), IsTransient, "transient"},
		{NewRejectedError("denied", nil), IsRejected, "rejected"},
		{NewTaskFailedError("exit 1"), IsTaskFailed, "task_failed"},
		{NewTimeoutError("budget", nil), IsTimeout, "timeout"},
	}

	for _, tc := range cases {
		if !tc.check(tc.err) {
			t.Errorf("%s predicate rejected its own class", tc.name)
		}
		// Predicates must see through wrapping.
		wrapped := fmt.Errorf("reconcile vm.web01: %w", tc.err)
		if !tc.check(wrapped) {
			t.Errorf("%s predicate failed on wrapped error", tc.name)
		}
	}

	if IsNotFound(NewRejectedError("denied", nil)) {
		t.Error("IsNotFound matched a rejected error")
	}
	if IsNotFound(errors.New("plain")) {
		t.Error("IsNotFound matched an unclassified error")
	}
}

func TestReconcileErrorContext(t *testing.T) {
	err := NewRejectedError("duplicate vmid", nil).
		WithResource("vm.web01").
		WithOperation("create")

	msg := err.Error()
	if msg != "[rejected] duplicate vmid (resource=vm.web01, operation=create)" {
		t.Errorf("unexpected message: %q", msg)
	}
}

func TestReconcileErrorUnwrap(t *testing.T) {
	cause := errors.New("connection refused")
	err := NewTransientError("status query failed", cause)

	if !errors.Is(err, cause) {
		t.Error("Unwrap chain lost the underlying cause")
	}
}

func TestPhaseValidate(t *testing.T) {
	for _, p := range []Phase{PhaseCreate, PhaseUpdate, PhaseDelete} {
		if err := p.Validate(); err != nil {
			t.Errorf("valid phase %s rejected: %v", p, err)
		}
	}
	if err := Phase("recreate").Validate(); err == nil {
		t.Error("invalid phase accepted")
	}
	if PhaseCreate.IsDestructive() || !PhaseDelete.IsDestructive() {
		t.Error("IsDestructive misclassifies phases")
	}
}
