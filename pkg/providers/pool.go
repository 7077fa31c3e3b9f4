package providers

import (
	"context"
	"encoding/json"

	"github.com/openhyve/openhyve/pkg/engine"
	"github.com/openhyve/openhyve/pkg/proxmox"
)

// PoolProvider manages cluster resource pools. Pools are cluster
// scoped and all operations are synchronous.
type PoolProvider struct {
	client *proxmox.Client
	poolid string
}

// NewPoolProvider builds a provider for the pool named by the poolid
// field of the configuration.
func NewPoolProvider(client *proxmox.Client, _ string, cfg engine.ResourceConfig) (engine.ProviderOps, error) {
	poolid, err := requireString(cfg, "poolid")
	if err != nil {
		return nil, err
	}
	return &PoolProvider{client: client, poolid: poolid}, nil
}

// Create registers the pool.
func (p *PoolProvider) Create(ctx context.Context, cfg engine.ResourceConfig) (*engine.MutationAck, error) {
	f := newForm().set("poolid", p.poolid).setString("comment", cfgString(cfg, "comment"))
	if err := p.client.Post(ctx, "/pools", f.Values(), nil); err != nil {
		return nil, err
	}
	return nil, nil
}

// Update changes the pool comment and membership.
func (p *PoolProvider) Update(ctx context.Context, cfg engine.ResourceConfig, _ engine.NormalizedOutput) (*engine.MutationAck, error) {
	f := newForm().
		setString("comment", cfgString(cfg, "comment")).
		setString("vms", cfgString(cfg, "vms")).
		setString("storage", cfgString(cfg, "storage"))
	if err := p.client.Put(ctx, "/pools/"+p.poolid, f.Values(), nil); err != nil {
		return nil, err
	}
	return nil, nil
}

// Delete removes the pool. Members must be detached first; the
// control plane rejects deletion of a populated pool.
func (p *PoolProvider) Delete(ctx context.Context) error {
	return p.client.Delete(ctx, "/pools/"+p.poolid, nil, nil)
}

// Read fetches the pool definition including its member list.
func (p *PoolProvider) Read(ctx context.Context) (*engine.RemoteSnapshot, error) {
	var raw json.RawMessage
	if err := p.client.Get(ctx, "/pools/"+p.poolid, &raw); err != nil {
		if engine.IsNotFound(err) {
			return &engine.RemoteSnapshot{Exists: false}, nil
		}
		return nil, err
	}

	fields, err := decodeFields(raw)
	if err != nil {
		return nil, err
	}
	fields["poolid"] = p.poolid
	return &engine.RemoteSnapshot{Exists: true, Fields: fields}, nil
}
