package providers

import (
	"context"
	"encoding/json"
	"strconv"

	"github.com/openhyve/openhyve/pkg/engine"
	"github.com/openhyve/openhyve/pkg/proxmox"
)

// FirewallProvider manages cluster firewall rules, addressed by their
// position in the rule list. All operations are synchronous.
type FirewallProvider struct {
	client *proxmox.Client
	pos    int
}

// NewFirewallProvider builds a provider for the rule at the pos field
// of the configuration. Position zero is valid and means the head of
// the list, so absence is detected by type rather than value.
func NewFirewallProvider(client *proxmox.Client, _ string, cfg engine.ResourceConfig) (engine.ProviderOps, error) {
	if _, ok := cfg["pos"]; !ok {
		return nil, engine.NewRejectedError(`missing required field "pos"`, nil)
	}
	return &FirewallProvider{client: client, pos: cfgInt(cfg, "pos")}, nil
}

type firewallParams struct {
	Action  string
	Type    string
	Source  string
	Dest    string
	Proto   string
	DPort   string
	SPort   string
	Iface   string
	Comment string
	Enable  bool
	Log     string
}

func firewallParamsFrom(cfg engine.ResourceConfig) firewallParams {
	return firewallParams{
		Action:  cfgString(cfg, "action"),
		Type:    cfgString(cfg, "type"),
		Source:  cfgString(cfg, "source"),
		Dest:    cfgString(cfg, "dest"),
		Proto:   cfgString(cfg, "proto"),
		DPort:   cfgString(cfg, "dport"),
		SPort:   cfgString(cfg, "sport"),
		Iface:   cfgString(cfg, "iface"),
		Comment: cfgString(cfg, "comment"),
		Enable:  cfgBool(cfg, "enable"),
		Log:     cfgString(cfg, "log"),
	}
}

func (p firewallParams) form() *form {
	f := newForm().
		setString("action", p.Action).
		setString("type", p.Type).
		setString("source", p.Source).
		setString("dest", p.Dest).
		setString("proto", p.Proto).
		setString("dport", p.DPort).
		setString("sport", p.SPort).
		setString("iface", p.Iface).
		setString("comment", p.Comment).
		setString("log", p.Log)
	f.setBool("enable", p.Enable)
	return f
}

func (p *FirewallProvider) rulePath() string {
	return "/cluster/firewall/rules/" + strconv.Itoa(p.pos)
}

// Create inserts the rule at its position.
func (p *FirewallProvider) Create(ctx context.Context, cfg engine.ResourceConfig) (*engine.MutationAck, error) {
	params := firewallParamsFrom(cfg)
	if params.Action == "" || params.Type == "" {
		return nil, engine.NewRejectedError("firewall rule requires action and type", nil)
	}
	f := params.form().set("pos", strconv.Itoa(p.pos))
	if err := p.client.Post(ctx, "/cluster/firewall/rules", f.Values(), nil); err != nil {
		return nil, err
	}
	return nil, nil
}

// Update rewrites the rule at its position.
func (p *FirewallProvider) Update(ctx context.Context, cfg engine.ResourceConfig, _ engine.NormalizedOutput) (*engine.MutationAck, error) {
	f := firewallParamsFrom(cfg).form()
	if err := p.client.Put(ctx, p.rulePath(), f.Values(), nil); err != nil {
		return nil, err
	}
	return nil, nil
}

// Delete removes the rule at its position.
func (p *FirewallProvider) Delete(ctx context.Context) error {
	return p.client.Delete(ctx, p.rulePath(), nil, nil)
}

// Read fetches the rule at its position.
func (p *FirewallProvider) Read(ctx context.Context) (*engine.RemoteSnapshot, error) {
	var raw json.RawMessage
	if err := p.client.Get(ctx, p.rulePath(), &raw); err != nil {
		if engine.IsNotFound(err) {
			return &engine.RemoteSnapshot{Exists: false}, nil
		}
		return nil, err
	}

	fields, err := decodeFields(raw)
	if err != nil {
		return nil, err
	}
	fields["pos"] = p.pos
	return &engine.RemoteSnapshot{Exists: true, Fields: fields}, nil
}

// Defaults returns the rule settings assumed when neither the remote
// nor the manifest states them.
func (p *FirewallProvider) Defaults() engine.ResourceConfig {
	return engine.ResourceConfig{
		"type":   "in",
		"enable": true,
	}
}
