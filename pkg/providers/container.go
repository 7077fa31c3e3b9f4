package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/openhyve/openhyve/pkg/engine"
	"github.com/openhyve/openhyve/pkg/proxmox"
)

// ContainerProvider manages LXC containers on a single node. Like
// virtual machines, creation and teardown run as node tasks while
// configuration changes apply synchronously.
type ContainerProvider struct {
	client *proxmox.Client
	node   string
	vmid   int
}

// NewContainerProvider builds a provider for the container identified
// by the vmid field of the configuration.
func NewContainerProvider(client *proxmox.Client, node string, cfg engine.ResourceConfig) (engine.ProviderOps, error) {
	vmid, err := requireInt(cfg, "vmid")
	if err != nil {
		return nil, err
	}
	if node == "" {
		return nil, engine.NewRejectedError("container requires a node", nil)
	}
	return &ContainerProvider{client: client, node: node, vmid: vmid}, nil
}

type containerParams struct {
	Hostname   string
	Cores      int
	Memory     int
	Swap       int
	RootFS     string
	Net0       string
	OnBoot     bool
	Unprivileg bool
}

func containerParamsFrom(cfg engine.ResourceConfig) containerParams {
	return containerParams{
		Hostname:   cfgString(cfg, "hostname"),
		Cores:      cfgInt(cfg, "cores"),
		Memory:     cfgInt(cfg, "memory"),
		Swap:       cfgInt(cfg, "swap"),
		RootFS:     cfgString(cfg, "rootfs"),
		Net0:       cfgString(cfg, "net0"),
		OnBoot:     cfgBool(cfg, "onboot"),
		Unprivileg: cfgBool(cfg, "unprivileged"),
	}
}

func (p containerParams) form() *form {
	f := newForm().
		setString("hostname", p.Hostname).
		setInt("cores", p.Cores).
		setInt("memory", p.Memory).
		setInt("swap", p.Swap).
		setString("rootfs", p.RootFS).
		setString("net0", p.Net0)
	if p.OnBoot {
		f.setBool("onboot", true)
	}
	if p.Unprivileg {
		f.setBool("unprivileged", true)
	}
	return f
}

func (p *ContainerProvider) guestPath() string {
	return fmt.Sprintf("/nodes/%s/lxc/%d", p.node, p.vmid)
}

// Create provisions the container from the template named in the
// configuration. The endpoint answers with a task handle.
func (p *ContainerProvider) Create(ctx context.Context, cfg engine.ResourceConfig) (*engine.MutationAck, error) {
	template, err := requireString(cfg, "ostemplate")
	if err != nil {
		return nil, err
	}

	f := containerParamsFrom(cfg).form().
		set("vmid", strconv.Itoa(p.vmid)).
		set("ostemplate", template).
		setString("storage", cfgString(cfg, "storage"))

	var raw json.RawMessage
	if err := p.client.Post(ctx, fmt.Sprintf("/nodes/%s/lxc", p.node), f.Values(), &raw); err != nil {
		return nil, err
	}

	task, err := decodeTaskHandle(raw)
	if err != nil {
		return nil, err
	}
	return &engine.MutationAck{Task: task, Class: engine.ClassDefault}, nil
}

// Update applies configuration changes synchronously. The template is
// immutable after creation and is not resent.
func (p *ContainerProvider) Update(ctx context.Context, cfg engine.ResourceConfig, _ engine.NormalizedOutput) (*engine.MutationAck, error) {
	f := containerParamsFrom(cfg).form()
	if err := p.client.Put(ctx, p.guestPath()+"/config", f.Values(), nil); err != nil {
		return nil, err
	}
	return nil, nil
}

// Delete removes the container and purges it from job configurations.
func (p *ContainerProvider) Delete(ctx context.Context) error {
	params := newForm().setBool("purge", true).setBool("destroy-unreferenced-disks", true).Values()
	return p.client.Delete(ctx, p.guestPath(), params, nil)
}

// Read fetches the current container configuration.
func (p *ContainerProvider) Read(ctx context.Context) (*engine.RemoteSnapshot, error) {
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

// Defaults returns the container settings assumed when neither the
// remote nor the manifest states them.
func (p *ContainerProvider) Defaults() engine.ResourceConfig {
	return engine.ResourceConfig{
		"cores":        1,
		"memory":       512,
		"swap":         512,
		"onboot":       false,
		"unprivileged": true,
	}
}
