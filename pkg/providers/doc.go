// Package providers implements engine.ProviderOps for each managed
// resource kind: virtual machines, containers, storage backends,
// pools, HA policies, ACL entries, node network interfaces, and
// content downloads. Each provider owns the field mapping between the
// desired configuration and its control-plane endpoints through typed
// parameter builders, keeping the engine free of endpoint paths and
// wire parameter names.
package providers
