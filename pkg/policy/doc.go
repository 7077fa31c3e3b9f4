// Package policy provides Open Policy Agent (OPA) integration for OpenHyve.
//
// This package gates destructive teardown operations with Rego policies.
// It includes built-in policies for common safety requirements and
// supports custom policy loading with hot reload.
//
// # Architecture
//
// The policy system consists of three main components:
//
//  1. Engine - Compiles and evaluates Rego policies
//  2. Loader - Loads policies from files and directories
//  3. Built-in Policies - Pre-defined teardown safety policies
//
// # Usage
//
// Creating a policy engine:
//
//	logger := zerolog.New(os.Stdout)
//	engine, err := policy.NewEngine(logger)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
// Evaluating a teardown:
//
//	input := &policy.TeardownInput{
//	    Resource: &policy.TeardownResource{
//	        ID:              "storage.backup-nfs",
//	        Type:            "storage",
//	        TeardownDefault: false,
//	        DeleteRequested: false,
//	    },
//	}
//
//	result, err := engine.EvaluateTeardown(ctx, input)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	if !result.Allowed {
//	    for _, violation := range result.Violations {
//	        fmt.Printf("Policy %s violated: %s\n", violation.Policy, violation.Message)
//	    }
//	}
//
// Loading custom policies:
//
//	paths := []string{
//	    "/etc/openhyve/policies",
//	    "/opt/policies/custom.rego",
//	}
//
//	err = engine.LoadPolicies(ctx, paths)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
// # Built-in Policies
//
// The following policies are included by default:
//
//  1. storage-teardown - Warns when a storage definition is
//     destructively removed from the control plane
//  2. protected-resources - Blocks teardown of resources with
//     protection enabled in their configuration or stored output
//  3. production-teardown - Warns about teardowns in production
//
// # Custom Policies
//
// Custom policies can be written in Rego and loaded from files:
//
//	package custom.policies.templates
//
//	import rego.v1
//
//	deny contains violation if {
//	    input.resource.config.template in [true, 1, "1"]
//
//	    violation := {
//	        "message": sprintf("Cannot tear down template %s", [input.resource.id]),
//	        "severity": "error",
//	        "resource": input.resource.id,
//	    }
//	}
//
// # Severity Levels
//
// Violations have four severity levels:
//
//   - info: Informational messages
//   - warning: Issues that should be reviewed but don't block teardown
//   - error: Issues that block teardown
//   - critical: Severe issues that must never be overridden
//
// # Hot Reload
//
// The loader supports watching policy files for changes and reloading
// automatically:
//
//	loader := policy.NewLoader(logger)
//	err = loader.Watch(ctx, paths, func(policies []policy.Policy) error {
//	    return engine.ReplacePolicies(ctx, policies)
//	})
//
// # Performance
//
// Policies are compiled once and reused for multiple evaluations. The
// engine uses OPA's PreparedEvalQuery for optimal performance. Caching
// is implemented at both the loader and engine levels.
package policy
