package providers

import (
	"fmt"
	"sort"
	"sync"

	"github.com/openhyve/openhyve/pkg/engine"
	"github.com/openhyve/openhyve/pkg/proxmox"
)

// Factory builds a provider bound to one resource instance. The node
// names the cluster member that owns the resource; cluster-scoped
// kinds (pools, HA policies, ACL entries) ignore it. The configuration
// supplies the identity fields (vmid, pool id, storage id) the
// provider needs to address the resource.
type Factory func(client *proxmox.Client, node string, cfg engine.ResourceConfig) (engine.ProviderOps, error)

// Definition describes a registered resource kind.
type Definition struct {
	// Type is the resource type name used in manifests.
	Type string

	// New builds a provider instance for one resource.
	New Factory

	// TeardownDefault is whether a delete reconciliation issues the
	// destructive remote call when the manifest does not set
	// deleteRequested explicitly. Kinds whose teardown destroys data
	// held by other resources default to false.
	TeardownDefault bool
}

// Registry maps resource type names to provider definitions.
type Registry struct {
	mu          sync.RWMutex
	definitions map[string]Definition
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{definitions: make(map[string]Definition)}
}

// NewDefaultRegistry creates a registry with all built-in resource
// kinds registered.
func NewDefaultRegistry() *Registry {
	r := NewRegistry()
	for _, def := range builtins() {
		// Built-in type names are unique, Register cannot fail here.
		_ = r.Register(def)
	}
	return r
}

// Register adds a definition. Registering a type name twice is an
// error.
func (r *Registry) Register(def Definition) error {
	if def.Type == "" {
		return fmt.Errorf("provider definition has empty type")
	}
	if def.New == nil {
		return fmt.Errorf("provider definition %s has nil factory", def.Type)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.definitions[def.Type]; exists {
		return fmt.Errorf("provider type %s already registered", def.Type)
	}
	r.definitions[def.Type] = def
	return nil
}

// Lookup returns the definition for a type name.
func (r *Registry) Lookup(typeName string) (Definition, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	def, exists := r.definitions[typeName]
	if !exists {
		return Definition{}, engine.NewRejectedError(fmt.Sprintf("unknown resource type %q", typeName), nil)
	}
	return def, nil
}

// New builds a provider for one resource instance.
func (r *Registry) New(typeName string, client *proxmox.Client, node string, cfg engine.ResourceConfig) (engine.ProviderOps, error) {
	def, err := r.Lookup(typeName)
	if err != nil {
		return nil, err
	}
	return def.New(client, node, cfg)
}

// Types lists registered type names in sorted order.
func (r *Registry) Types() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.definitions))
	for name := range r.definitions {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func builtins() []Definition {
	return []Definition{
		{Type: "vm", New: NewVMProvider, TeardownDefault: true},
		{Type: "container", New: NewContainerProvider, TeardownDefault: true},
		{Type: "storage", New: NewStorageProvider, TeardownDefault: false},
		{Type: "pool", New: NewPoolProvider, TeardownDefault: true},
		{Type: "ha", New: NewHAProvider, TeardownDefault: true},
		{Type: "acl", New: NewACLProvider, TeardownDefault: true},
		{Type: "network", New: NewNetworkProvider, TeardownDefault: true},
		{Type: "download", New: NewDownloadProvider, TeardownDefault: true},
		{Type: "firewall", New: NewFirewallProvider, TeardownDefault: true},
	}
}
