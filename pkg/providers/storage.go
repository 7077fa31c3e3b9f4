package providers

import (
	"context"
	"encoding/json"

	"github.com/openhyve/openhyve/pkg/engine"
	"github.com/openhyve/openhyve/pkg/proxmox"
)

// StorageProvider manages cluster storage backend definitions. All
// operations are synchronous. Removing a storage definition can strand
// the volumes it holds, so the registry defaults this kind to skipping
// the destructive call on teardown unless the manifest opts in.
type StorageProvider struct {
	client *proxmox.Client
	id     string
}

// NewStorageProvider builds a provider for the backend named by the
// storage field of the configuration.
func NewStorageProvider(client *proxmox.Client, _ string, cfg engine.ResourceConfig) (engine.ProviderOps, error) {
	id, err := requireString(cfg, "storage")
	if err != nil {
		return nil, err
	}
	return &StorageProvider{client: client, id: id}, nil
}

type storageParams struct {
	Type    string
	Path    string
	Server  string
	Export  string
	Content string
	Nodes   string
	Shared  bool
	Disable bool
}

func storageParamsFrom(cfg engine.ResourceConfig) storageParams {
	return storageParams{
		Type:    cfgString(cfg, "type"),
		Path:    cfgString(cfg, "path"),
		Server:  cfgString(cfg, "server"),
		Export:  cfgString(cfg, "export"),
		Content: cfgString(cfg, "content"),
		Nodes:   cfgString(cfg, "nodes"),
		Shared:  cfgBool(cfg, "shared"),
		Disable: cfgBool(cfg, "disable"),
	}
}

func (p storageParams) form(includeType bool) *form {
	f := newForm().
		setString("path", p.Path).
		setString("server", p.Server).
		setString("export", p.Export).
		setString("content", p.Content).
		setString("nodes", p.Nodes)
	if includeType {
		f.setString("type", p.Type)
	}
	if p.Shared {
		f.setBool("shared", true)
	}
	if p.Disable {
		f.setBool("disable", true)
	}
	return f
}

// Create registers the storage backend cluster-wide.
func (p *StorageProvider) Create(ctx context.Context, cfg engine.ResourceConfig) (*engine.MutationAck, error) {
	params := storageParamsFrom(cfg)
	if params.Type == "" {
		return nil, engine.NewRejectedError(`missing required field "type"`, nil)
	}
	f := params.form(true).set("storage", p.id)
	if err := p.client.Post(ctx, "/storage", f.Values(), nil); err != nil {
		return nil, err
	}
	return nil, nil
}

// Update changes the backend definition. The type is immutable and is
// not resent.
func (p *StorageProvider) Update(ctx context.Context, cfg engine.ResourceConfig, _ engine.NormalizedOutput) (*engine.MutationAck, error) {
	f := storageParamsFrom(cfg).form(false)
	if err := p.client.Put(ctx, "/storage/"+p.id, f.Values(), nil); err != nil {
		return nil, err
	}
	return nil, nil
}

// Delete removes the backend definition. Volumes on the backend are
// left in place.
func (p *StorageProvider) Delete(ctx context.Context) error {
	return p.client.Delete(ctx, "/storage/"+p.id, nil, nil)
}

// Read fetches the current backend definition.
func (p *StorageProvider) Read(ctx context.Context) (*engine.RemoteSnapshot, error) {
	var raw json.RawMessage
	if err := p.client.Get(ctx, "/storage/"+p.id, &raw); err != nil {
		if engine.IsNotFound(err) {
			return &engine.RemoteSnapshot{Exists: false}, nil
		}
		return nil, err
	}

	fields, err := decodeFields(raw)
	if err != nil {
		return nil, err
	}
	fields["storage"] = p.id
	return &engine.RemoteSnapshot{Exists: true, Fields: fields}, nil
}

// Defaults returns the backend settings assumed when neither the
// remote nor the manifest states them.
func (p *StorageProvider) Defaults() engine.ResourceConfig {
	return engine.ResourceConfig{
		"content": "images",
		"shared":  false,
		"disable": false,
	}
}
