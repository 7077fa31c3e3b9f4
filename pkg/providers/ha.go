package providers

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/openhyve/openhyve/pkg/engine"
	"github.com/openhyve/openhyve/pkg/proxmox"
)

// haStates are the requested states the cluster resource manager
// accepts for a managed guest.
var haStates = map[string]bool{
	"started":  true,
	"stopped":  true,
	"disabled": true,
	"ignored":  true,
}

// HAProvider manages high-availability policies for guests. Policies
// are cluster scoped and keyed by service id ("vm:100", "ct:101").
type HAProvider struct {
	client *proxmox.Client
	sid    string
}

// NewHAProvider builds a provider for the policy named by the sid
// field of the configuration.
func NewHAProvider(client *proxmox.Client, _ string, cfg engine.ResourceConfig) (engine.ProviderOps, error) {
	sid, err := requireString(cfg, "sid")
	if err != nil {
		return nil, err
	}
	return &HAProvider{client: client, sid: sid}, nil
}

type haParams struct {
	State       string
	Group       string
	MaxRestart  int
	MaxRelocate int
	Comment     string
}

func haParamsFrom(cfg engine.ResourceConfig) (haParams, error) {
	p := haParams{
		State:       cfgString(cfg, "state"),
		Group:       cfgString(cfg, "group"),
		MaxRestart:  cfgInt(cfg, "max_restart"),
		MaxRelocate: cfgInt(cfg, "max_relocate"),
		Comment:     cfgString(cfg, "comment"),
	}
	if p.State != "" && !haStates[p.State] {
		return haParams{}, engine.NewRejectedError(fmt.Sprintf("invalid ha state %q", p.State), nil)
	}
	return p, nil
}

func (p haParams) form() *form {
	return newForm().
		setString("state", p.State).
		setString("group", p.Group).
		setInt("max_restart", p.MaxRestart).
		setInt("max_relocate", p.MaxRelocate).
		setString("comment", p.Comment)
}

// Create registers the guest with the resource manager.
func (p *HAProvider) Create(ctx context.Context, cfg engine.ResourceConfig) (*engine.MutationAck, error) {
	params, err := haParamsFrom(cfg)
	if err != nil {
		return nil, err
	}
	f := params.form().set("sid", p.sid)
	if err := p.client.Post(ctx, "/cluster/ha/resources", f.Values(), nil); err != nil {
		return nil, err
	}
	return nil, nil
}

// Update changes the policy in place.
func (p *HAProvider) Update(ctx context.Context, cfg engine.ResourceConfig, _ engine.NormalizedOutput) (*engine.MutationAck, error) {
	params, err := haParamsFrom(cfg)
	if err != nil {
		return nil, err
	}
	if err := p.client.Put(ctx, "/cluster/ha/resources/"+p.sid, params.form().Values(), nil); err != nil {
		return nil, err
	}
	return nil, nil
}

// Delete removes the policy. The guest itself is untouched.
func (p *HAProvider) Delete(ctx context.Context) error {
	return p.client.Delete(ctx, "/cluster/ha/resources/"+p.sid, nil, nil)
}

// Read fetches the current policy.
func (p *HAProvider) Read(ctx context.Context) (*engine.RemoteSnapshot, error) {
	var raw json.RawMessage
	if err := p.client.Get(ctx, "/cluster/ha/resources/"+p.sid, &raw); err != nil {
		if engine.IsNotFound(err) {
			return &engine.RemoteSnapshot{Exists: false}, nil
		}
		return nil, err
	}

	fields, err := decodeFields(raw)
	if err != nil {
		return nil, err
	}
	fields["sid"] = p.sid
	return &engine.RemoteSnapshot{Exists: true, Fields: fields}, nil
}

// Defaults returns the policy settings the resource manager assumes
// when unset.
func (p *HAProvider) Defaults() engine.ResourceConfig {
	return engine.ResourceConfig{
		"state":        "started",
		"max_restart":  1,
		"max_relocate": 1,
	}
}
