package providers

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/openhyve/openhyve/pkg/engine"
	"github.com/openhyve/openhyve/pkg/proxmox"
)

// NetworkProvider manages node network interfaces, typically Linux
// bridges. Interface changes are staged synchronously and then applied
// node-wide; the apply call returns no task handle, so completion is
// acknowledged by waiting for the node's task queue to drain.
type NetworkProvider struct {
	client *proxmox.Client
	node   string
	iface  string
}

// NewNetworkProvider builds a provider for the interface named by the
// iface field of the configuration.
func NewNetworkProvider(client *proxmox.Client, node string, cfg engine.ResourceConfig) (engine.ProviderOps, error) {
	iface, err := requireString(cfg, "iface")
	if err != nil {
		return nil, err
	}
	if node == "" {
		return nil, engine.NewRejectedError("network interface requires a node", nil)
	}
	return &NetworkProvider{client: client, node: node, iface: iface}, nil
}

type networkParams struct {
	Type      string
	Address   string
	Netmask   string
	Gateway   string
	BridgePts string
	VLANAware bool
	Autostart bool
	Comments  string
}

func networkParamsFrom(cfg engine.ResourceConfig) networkParams {
	return networkParams{
		Type:      cfgString(cfg, "type"),
		Address:   cfgString(cfg, "address"),
		Netmask:   cfgString(cfg, "netmask"),
		Gateway:   cfgString(cfg, "gateway"),
		BridgePts: cfgString(cfg, "bridge_ports"),
		VLANAware: cfgBool(cfg, "bridge_vlan_aware"),
		Autostart: cfgBool(cfg, "autostart"),
		Comments:  cfgString(cfg, "comments"),
	}
}

func (p networkParams) form() *form {
	f := newForm().
		setString("type", p.Type).
		setString("address", p.Address).
		setString("netmask", p.Netmask).
		setString("gateway", p.Gateway).
		setString("bridge_ports", p.BridgePts).
		setString("comments", p.Comments)
	if p.VLANAware {
		f.setBool("bridge_vlan_aware", true)
	}
	if p.Autostart {
		f.setBool("autostart", true)
	}
	return f
}

func (p *NetworkProvider) basePath() string {
	return fmt.Sprintf("/nodes/%s/network", p.node)
}

// apply commits staged interface changes and hands back an idle-wait
// acknowledgement.
func (p *NetworkProvider) apply(ctx context.Context) (*engine.MutationAck, error) {
	if err := p.client.Put(ctx, p.basePath(), nil, nil); err != nil {
		return nil, err
	}
	return &engine.MutationAck{
		IdleScope: &engine.TaskScope{Node: p.node},
		Class:     engine.ClassDefault,
	}, nil
}

// Create stages the interface and applies the node network
// configuration.
func (p *NetworkProvider) Create(ctx context.Context, cfg engine.ResourceConfig) (*engine.MutationAck, error) {
	params := networkParamsFrom(cfg)
	if params.Type == "" {
		return nil, engine.NewRejectedError(`missing required field "type"`, nil)
	}
	f := params.form().set("iface", p.iface)
	if err := p.client.Post(ctx, p.basePath(), f.Values(), nil); err != nil {
		return nil, err
	}
	return p.apply(ctx)
}

// Update stages changed fields and applies the node network
// configuration.
func (p *NetworkProvider) Update(ctx context.Context, cfg engine.ResourceConfig, _ engine.NormalizedOutput) (*engine.MutationAck, error) {
	f := networkParamsFrom(cfg).form()
	if err := p.client.Put(ctx, p.basePath()+"/"+p.iface, f.Values(), nil); err != nil {
		return nil, err
	}
	return p.apply(ctx)
}

// Delete removes the staged interface definition and applies the node
// network configuration.
func (p *NetworkProvider) Delete(ctx context.Context) error {
	if err := p.client.Delete(ctx, p.basePath()+"/"+p.iface, nil, nil); err != nil {
		return err
	}
	return p.client.Put(ctx, p.basePath(), nil, nil)
}

// Read fetches the current interface definition.
func (p *NetworkProvider) Read(ctx context.Context) (*engine.RemoteSnapshot, error) {
	var raw json.RawMessage
	if err := p.client.Get(ctx, p.basePath()+"/"+p.iface, &raw); err != nil {
		if engine.IsNotFound(err) {
			return &engine.RemoteSnapshot{Exists: false}, nil
		}
		return nil, err
	}

	fields, err := decodeFields(raw)
	if err != nil {
		return nil, err
	}
	fields["iface"] = p.iface
	fields["node"] = p.node
	return &engine.RemoteSnapshot{Exists: true, Fields: fields}, nil
}

// Defaults returns the interface settings assumed when neither the
// remote nor the manifest states them.
func (p *NetworkProvider) Defaults() engine.ResourceConfig {
	return engine.ResourceConfig{
		"type":      "bridge",
		"autostart": true,
	}
}
