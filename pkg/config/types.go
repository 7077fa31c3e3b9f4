package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/openhyve/openhyve/pkg/engine"
)

// Manifest is the top-level declarative description of the desired
// cluster state: where the control plane lives, how to authenticate,
// and the resources to reconcile.
type Manifest struct {
	// Endpoint is the control-plane API base URL
	// (e.g. "https://pve.example.com:8006").
	Endpoint string `yaml:"endpoint" json:"endpoint" validate:"required,url"`

	// Auth holds API token credentials.
	Auth AuthConfig `yaml:"auth" json:"auth" validate:"required"`

	// Environment names the deployment environment for policy
	// evaluation (e.g. "production").
	Environment string `yaml:"environment,omitempty" json:"environment,omitempty"`

	// Defaults are manifest-wide fallbacks applied to resources that
	// leave the corresponding field unset.
	Defaults Defaults `yaml:"defaults,omitempty" json:"defaults,omitempty"`

	// Policies configures teardown policy enforcement.
	Policies PolicyConfig `yaml:"policies,omitempty" json:"policies,omitempty"`

	// Resources are the resources to reconcile, in manifest order.
	Resources []ResourceSpec `yaml:"resources" json:"resources" validate:"required,min=1,dive"`
}

// AuthConfig holds API token credentials. The secret itself is never
// written into the manifest; it is resolved from an environment
// variable at load time.
type AuthConfig struct {
	// TokenID is the full API token identifier
	// (e.g. "automation@pve!hyve").
	TokenID string `yaml:"tokenId" json:"token_id" validate:"required"`

	// TokenSecretEnv names the environment variable holding the token
	// secret. Defaults to HYVE_TOKEN_SECRET.
	TokenSecretEnv string `yaml:"tokenSecretEnv,omitempty" json:"token_secret_env,omitempty"`

	// InsecureSkipVerify disables TLS certificate verification.
	InsecureSkipVerify bool `yaml:"insecureSkipVerify,omitempty" json:"insecure_skip_verify,omitempty"`
}

// DefaultTokenSecretEnv is the environment variable consulted when the
// manifest does not name one.
const DefaultTokenSecretEnv = "HYVE_TOKEN_SECRET"

// ResolveTokenSecret returns the token secret from the configured
// environment variable.
func (a AuthConfig) ResolveTokenSecret() (string, error) {
	envVar := a.TokenSecretEnv
	if envVar == "" {
		envVar = DefaultTokenSecretEnv
	}

	secret := os.Getenv(envVar)
	if secret == "" {
		return "", fmt.Errorf("token secret environment variable %s is not set", envVar)
	}

	return secret, nil
}

// APIToken returns the full token value in PVEAPIToken format.
func (a AuthConfig) APIToken() (string, error) {
	secret, err := a.ResolveTokenSecret()
	if err != nil {
		return "", err
	}
	return a.TokenID + "=" + secret, nil
}

// Defaults are manifest-wide fallbacks.
type Defaults struct {
	// Node is the node used by node-scoped resources that do not name
	// their own.
	Node string `yaml:"node,omitempty" json:"node,omitempty"`
}

// PolicyConfig configures teardown policy enforcement.
type PolicyConfig struct {
	// Enabled turns policy evaluation on. Defaults to true.
	Enabled *bool `yaml:"enabled,omitempty" json:"enabled,omitempty"`

	// Paths lists additional policy files or directories to load
	// alongside the built-ins.
	Paths []string `yaml:"paths,omitempty" json:"paths,omitempty"`

	// Watch enables hot reload of the policy paths.
	Watch bool `yaml:"watch,omitempty" json:"watch,omitempty"`
}

// IsEnabled reports whether policy evaluation is on.
func (p PolicyConfig) IsEnabled() bool {
	if p.Enabled == nil {
		return true
	}
	return *p.Enabled
}

// ResourceSpec describes one resource in the manifest.
type ResourceSpec struct {
	// ID is the unique manifest identity for this resource
	// (e.g. "vm.web01").
	ID string `yaml:"id" json:"id" validate:"required"`

	// Type is the resource type (vm, container, storage, pool, ha,
	// acl, network, download, firewall).
	Type string `yaml:"type" json:"type" validate:"required"`

	// Node is the cluster node for node-scoped resource types. Falls
	// back to the manifest default.
	Node string `yaml:"node,omitempty" json:"node,omitempty"`

	// DeleteRequested overrides the per-type teardown default. Nil
	// means the type default applies.
	DeleteRequested *bool `yaml:"deleteRequested,omitempty" json:"delete_requested,omitempty"`

	// Config is the resource-type-specific desired configuration.
	Config map[string]interface{} `yaml:"config,omitempty" json:"config,omitempty"`
}

// EngineConfig converts the resource's config map to the engine's type.
func (r ResourceSpec) EngineConfig() engine.ResourceConfig {
	if r.Config == nil {
		return engine.ResourceConfig{}
	}
	return engine.ResourceConfig(r.Config)
}

// applyDefaults fills manifest-wide fallbacks into resources.
func (m *Manifest) applyDefaults() {
	for i := range m.Resources {
		if m.Resources[i].Node == "" {
			m.Resources[i].Node = m.Defaults.Node
		}
	}
}

// checkUniqueIDs rejects duplicate resource identities.
func (m *Manifest) checkUniqueIDs() error {
	seen := make(map[string]struct{}, len(m.Resources))
	for _, r := range m.Resources {
		key := strings.TrimSpace(r.ID)
		if _, dup := seen[key]; dup {
			return fmt.Errorf("duplicate resource id: %s", r.ID)
		}
		seen[key] = struct{}{}
	}
	return nil
}

// Resource returns the resource entry with the given ID.
func (m *Manifest) Resource(id string) (*ResourceSpec, bool) {
	for i := range m.Resources {
		if m.Resources[i].ID == id {
			return &m.Resources[i], true
		}
	}
	return nil, false
}
