package policy

import (
	"context"
	"testing"

	"github.com/openhyve/openhyve/pkg/engine"
	"github.com/rs/zerolog"
)

func TestNewEngine(t *testing.T) {
	logger := zerolog.New(nil).Level(zerolog.Disabled)
	eng, err := NewEngine(logger)
	if err != nil {
		t.Fatalf("Failed to create engine: %v", err)
	}

	if eng == nil {
		t.Fatal("Engine is nil")
	}

	// Check that built-in policies are loaded
	policies := eng.ListPolicies()
	if len(policies) == 0 {
		t.Fatal("No built-in policies loaded")
	}

	expectedPolicies := []string{
		"storage-teardown",
		"protected-resources",
		"production-teardown",
	}

	for _, expected := range expectedPolicies {
		found := false
		for _, p := range policies {
			if p.Name == expected {
				found = true
				break
			}
		}
		if !found {
			t.Errorf("Expected built-in policy not found: %s", expected)
		}
	}
}

func TestEvaluateTeardown_StoragePolicy(t *testing.T) {
	logger := zerolog.New(nil).Level(zerolog.Disabled)
	eng, err := NewEngine(logger)
	if err != nil {
		t.Fatalf("Failed to create engine: %v", err)
	}

	tests := []struct {
		name          string
		resource      *TeardownResource
		expectWarning bool
	}{
		{
			name: "vm tears down without a storage warning",
			resource: &TeardownResource{
				ID:              "vm.web01",
				Type:            "vm",
				Node:            "hv01",
				TeardownDefault: true,
				DeleteRequested: true,
			},
			expectWarning: false,
		},
		{
			name: "storage without opt-in passes silently",
			resource: &TeardownResource{
				ID:              "storage.backup-nfs",
				Type:            "storage",
				TeardownDefault: false,
				DeleteRequested: false,
			},
			expectWarning: false,
		},
		{
			name: "destructive storage removal warns",
			resource: &TeardownResource{
				ID:              "storage.backup-nfs",
				Type:            "storage",
				TeardownDefault: false,
				DeleteRequested: true,
			},
			expectWarning: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := eng.EvaluateTeardown(context.Background(), &TeardownInput{
				Resource: tt.resource,
			})
			if err != nil {
				t.Fatalf("Evaluation failed: %v", err)
			}

			// The storage policy never blocks, it only warns.
			if !result.Allowed {
				t.Errorf("Expected teardown to be allowed, violations: %+v", result.Violations)
			}

			foundWarning := false
			for _, w := range result.Warnings {
				if w.Policy == "storage-teardown" {
					foundWarning = true
					break
				}
			}
			if foundWarning != tt.expectWarning {
				t.Errorf("Expected warning=%v, got %v. Warnings: %+v",
					tt.expectWarning, foundWarning, result.Warnings)
			}
		})
	}
}

func TestEvaluateTeardown_ProtectedResource(t *testing.T) {
	logger := zerolog.New(nil).Level(zerolog.Disabled)
	eng, err := NewEngine(logger)
	if err != nil {
		t.Fatalf("Failed to create engine: %v", err)
	}

	tests := []struct {
		name          string
		input         *TeardownInput
		expectAllowed bool
	}{
		{
			name: "protection flag in config blocks teardown",
			input: &TeardownInput{
				Resource: &TeardownResource{
					ID:              "vm.db01",
					Type:            "vm",
					TeardownDefault: true,
					Config:          engine.ResourceConfig{"protection": true},
				},
			},
			expectAllowed: false,
		},
		{
			name: "protection flag in stored output blocks teardown",
			input: &TeardownInput{
				Resource: &TeardownResource{
					ID:              "vm.db01",
					Type:            "vm",
					TeardownDefault: true,
				},
				Output: engine.NormalizedOutput{"protection": "1"},
			},
			expectAllowed: false,
		},
		{
			name: "unprotected resource is allowed",
			input: &TeardownInput{
				Resource: &TeardownResource{
					ID:              "vm.web01",
					Type:            "vm",
					TeardownDefault: true,
					Config:          engine.ResourceConfig{"memory": 2048},
				},
			},
			expectAllowed: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := eng.EvaluateTeardown(context.Background(), tt.input)
			if err != nil {
				t.Fatalf("Evaluation failed: %v", err)
			}

			if result.Allowed != tt.expectAllowed {
				t.Errorf("Expected allowed=%v, got %v. Violations: %+v",
					tt.expectAllowed, result.Allowed, result.Violations)
			}
		})
	}
}

func TestEvaluateTeardown_ProductionWarning(t *testing.T) {
	logger := zerolog.New(nil).Level(zerolog.Disabled)
	eng, err := NewEngine(logger)
	if err != nil {
		t.Fatalf("Failed to create engine: %v", err)
	}

	result, err := eng.EvaluateTeardown(context.Background(), &TeardownInput{
		Resource: &TeardownResource{
			ID:              "vm.web01",
			Type:            "vm",
			TeardownDefault: true,
		},
		Context: &EvalContext{
			Environment: "production",
		},
	})
	if err != nil {
		t.Fatalf("Evaluation failed: %v", err)
	}

	// Production teardown warns but does not block
	if !result.Allowed {
		t.Errorf("Expected teardown to be allowed, violations: %+v", result.Violations)
	}

	foundWarning := false
	for _, w := range result.Warnings {
		if w.Policy == "production-teardown" {
			foundWarning = true
			break
		}
	}
	if !foundWarning {
		t.Errorf("Expected a production-teardown warning, got: %+v", result.Warnings)
	}
}

func TestEnableDisablePolicy(t *testing.T) {
	logger := zerolog.New(nil).Level(zerolog.Disabled)
	eng, err := NewEngine(logger)
	if err != nil {
		t.Fatalf("Failed to create engine: %v", err)
	}

	policyName := "protected-resources"

	// Disable the policy
	err = eng.DisablePolicy(policyName)
	if err != nil {
		t.Fatalf("Failed to disable policy: %v", err)
	}

	policy, err := eng.GetPolicy(policyName)
	if err != nil {
		t.Fatalf("Failed to get policy: %v", err)
	}

	if policy.Enabled {
		t.Error("Policy should be disabled")
	}

	// Evaluate a protected resource teardown. Should pass because the
	// gating policy is disabled.
	result, err := eng.EvaluateTeardown(context.Background(), &TeardownInput{
		Resource: &TeardownResource{
			ID:              "vm.db01",
			Type:            "vm",
			TeardownDefault: true,
			Config:          engine.ResourceConfig{"protection": true},
		},
	})
	if err != nil {
		t.Fatalf("Evaluation failed: %v", err)
	}

	for _, v := range result.Violations {
		if v.Policy == policyName {
			t.Error("Disabled policy should not generate violations")
		}
	}

	// Re-enable the policy
	err = eng.EnablePolicy(policyName)
	if err != nil {
		t.Fatalf("Failed to enable policy: %v", err)
	}

	policy, err = eng.GetPolicy(policyName)
	if err != nil {
		t.Fatalf("Failed to get policy: %v", err)
	}

	if !policy.Enabled {
		t.Error("Policy should be enabled")
	}
}

func TestReplacePolicies(t *testing.T) {
	logger := zerolog.New(nil).Level(zerolog.Disabled)
	eng, err := NewEngine(logger)
	if err != nil {
		t.Fatalf("Failed to create engine: %v", err)
	}

	initialCount := len(eng.ListPolicies())

	custom := Policy{
		Name:     "no-template-teardown",
		Severity: SeverityError,
		Enabled:  true,
		Rego: `package openhyve.policies.templates

import rego.v1

deny contains violation if {
	input.resource.config.template in [true, 1, "1"]
	violation := {
		"message": sprintf("Cannot tear down template %s", [input.resource.id]),
		"severity": "error",
		"resource": input.resource.id,
	}
}`,
	}

	if err := eng.ReplacePolicies(context.Background(), []Policy{custom}); err != nil {
		t.Fatalf("Failed to replace policies: %v", err)
	}

	if got := len(eng.ListPolicies()); got != initialCount+1 {
		t.Errorf("Expected %d policies after replace, got %d", initialCount+1, got)
	}

	result, err := eng.EvaluateTeardown(context.Background(), &TeardownInput{
		Resource: &TeardownResource{
			ID:              "vm.golden-image",
			Type:            "vm",
			TeardownDefault: true,
			Config:          engine.ResourceConfig{"template": true},
		},
	})
	if err != nil {
		t.Fatalf("Evaluation failed: %v", err)
	}

	if result.Allowed {
		t.Errorf("Expected custom policy to block teardown, violations: %+v", result.Violations)
	}
}

func TestListPolicies(t *testing.T) {
	logger := zerolog.New(nil).Level(zerolog.Disabled)
	eng, err := NewEngine(logger)
	if err != nil {
		t.Fatalf("Failed to create engine: %v", err)
	}

	policies := eng.ListPolicies()

	if len(policies) == 0 {
		t.Fatal("No policies returned")
	}

	for _, p := range policies {
		if p.Name == "" {
			t.Error("Policy has empty name")
		}
		if p.Rego == "" {
			t.Error("Policy has empty Rego code")
		}
		if p.CreatedAt.IsZero() {
			t.Error("Policy has zero CreatedAt")
		}
	}
}
