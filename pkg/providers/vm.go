package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/openhyve/openhyve/pkg/engine"
	"github.com/openhyve/openhyve/pkg/proxmox"
)

// VMProvider manages QEMU virtual machines on a single node. Creation
// and teardown are asynchronous task-backed operations; configuration
// updates apply synchronously.
type VMProvider struct {
	client *proxmox.Client
	node   string
	vmid   int
}

// NewVMProvider builds a provider for the virtual machine identified
// by the vmid field of the configuration.
func NewVMProvider(client *proxmox.Client, node string, cfg engine.ResourceConfig) (engine.ProviderOps, error) {
	vmid, err := requireInt(cfg, "vmid")
	if err != nil {
		return nil, err
	}
	if node == "" {
		return nil, engine.NewRejectedError("virtual machine requires a node", nil)
	}
	return &VMProvider{client: client, node: node, vmid: vmid}, nil
}

// vmParams is the wire mapping for QEMU guest configuration.
type vmParams struct {
	Name    string
	Cores   int
	Sockets int
	Memory  int
	OSType  string
	OnBoot  bool
	Agent   bool
	Net0    string
	SCSI0   string
	ISO     string
}

func vmParamsFrom(cfg engine.ResourceConfig) vmParams {
	return vmParams{
		Name:    cfgString(cfg, "name"),
		Cores:   cfgInt(cfg, "cores"),
		Sockets: cfgInt(cfg, "sockets"),
		Memory:  cfgInt(cfg, "memory"),
		OSType:  cfgString(cfg, "ostype"),
		OnBoot:  cfgBool(cfg, "onboot"),
		Agent:   cfgBool(cfg, "agent"),
		Net0:    cfgString(cfg, "net0"),
		SCSI0:   cfgString(cfg, "scsi0"),
		ISO:     cfgString(cfg, "iso"),
	}
}

func (p vmParams) form() *form {
	f := newForm().
		setString("name", p.Name).
		setInt("cores", p.Cores).
		setInt("sockets", p.Sockets).
		setInt("memory", p.Memory).
		setString("ostype", p.OSType).
		setString("net0", p.Net0).
		setString("scsi0", p.SCSI0)
	if p.OnBoot {
		f.setBool("onboot", true)
	}
	if p.Agent {
		f.set("agent", "1")
	}
	if p.ISO != "" {
		f.set("ide2", p.ISO+",media=cdrom")
	}
	return f
}

func (p *VMProvider) guestPath() string {
	return fmt.Sprintf("/nodes/%s/qemu/%d", p.node, p.vmid)
}

// Create provisions the guest, either from scratch or by cloning a
// template when the configuration names a clone source. Cloning moves
// disk images and needs the longer completion budget.
func (p *VMProvider) Create(ctx context.Context, cfg engine.ResourceConfig) (*engine.MutationAck, error) {
	var (
		raw   json.RawMessage
		class = engine.ClassDefault
	)

	if source := cfgInt(cfg, "clone"); source > 0 {
		f := newForm().
			set("newid", strconv.Itoa(p.vmid)).
			setString("name", cfgString(cfg, "name")).
			setString("storage", cfgString(cfg, "storage"))
		if cfgBool(cfg, "full") {
			f.setBool("full", true)
		}
		path := fmt.Sprintf("/nodes/%s/qemu/%d/clone", p.node, source)
		if err := p.client.Post(ctx, path, f.Values(), &raw); err != nil {
			return nil, err
		}
		class = engine.ClassSlow
	} else {
		f := vmParamsFrom(cfg).form().set("vmid", strconv.Itoa(p.vmid))
		if err := p.client.Post(ctx, fmt.Sprintf("/nodes/%s/qemu", p.node), f.Values(), &raw); err != nil {
			return nil, err
		}
	}

	task, err := decodeTaskHandle(raw)
	if err != nil {
		return nil, err
	}
	return &engine.MutationAck{Task: task, Class: class}, nil
}

// Update applies configuration changes in place. The config endpoint
// answers synchronously, so no completion wait is needed.
func (p *VMProvider) Update(ctx context.Context, cfg engine.ResourceConfig, _ engine.NormalizedOutput) (*engine.MutationAck, error) {
	f := vmParamsFrom(cfg).form()
	if err := p.client.Put(ctx, p.guestPath()+"/config", f.Values(), nil); err != nil {
		return nil, err
	}
	return nil, nil
}

// Delete removes the guest and purges it from job configurations.
// Removal completes asynchronously on the node; the accepted request
// is treated as teardown success.
func (p *VMProvider) Delete(ctx context.Context) error {
	params := newForm().setBool("purge", true).setBool("destroy-unreferenced-disks", true).Values()
	return p.client.Delete(ctx, p.guestPath(), params, nil)
}

// Read fetches the current guest configuration.
func (p *VMProvider) Read(ctx context.Context) (*engine.RemoteSnapshot, error) {
	var raw json.RawMessage
	if err := p.client.Get(ctx, p.guestPath()+"/config", &raw); err != nil {
		if engine.IsNotFound(err) {
			return &engine.RemoteSnapshot{Exists: false}, nil
		}
		return nil, err
	}

	fields, err := decodeFields(raw)
	if err != nil {
		return nil, err
	}
	fields["vmid"] = p.vmid
	fields["node"] = p.node
	return &engine.RemoteSnapshot{Exists: true, Fields: fields}, nil
}

// Defaults returns the guest settings assumed when neither the remote
// nor the manifest states them.
func (p *VMProvider) Defaults() engine.ResourceConfig {
	return engine.ResourceConfig{
		"cores":   1,
		"sockets": 1,
		"memory":  512,
		"ostype":  "l26",
		"onboot":  false,
	}
}
