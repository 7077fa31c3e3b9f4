package providers

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/openhyve/openhyve/pkg/engine"
	"github.com/openhyve/openhyve/pkg/proxmox"
)

// DownloadProvider fetches ISO images and container templates from a
// URL onto a node storage. Downloads run as node tasks with the
// extended completion budget. Replacing a downloaded file means
// deleting and re-downloading it, so the kind has no update.
type DownloadProvider struct {
	client   *proxmox.Client
	node     string
	storage  string
	content  string
	filename string
}

// NewDownloadProvider builds a provider for the file identified by the
// storage, content and filename fields of the configuration.
func NewDownloadProvider(client *proxmox.Client, node string, cfg engine.ResourceConfig) (engine.ProviderOps, error) {
	storage, err := requireString(cfg, "storage")
	if err != nil {
		return nil, err
	}
	filename, err := requireString(cfg, "filename")
	if err != nil {
		return nil, err
	}
	if node == "" {
		return nil, engine.NewRejectedError("download requires a node", nil)
	}

	content := cfgString(cfg, "content")
	if content == "" {
		content = "iso"
	}
	return &DownloadProvider{
		client:   client,
		node:     node,
		storage:  storage,
		content:  content,
		filename: filename,
	}, nil
}

func (p *DownloadProvider) volid() string {
	return fmt.Sprintf("%s:%s/%s", p.storage, p.content, p.filename)
}

func (p *DownloadProvider) storagePath() string {
	return fmt.Sprintf("/nodes/%s/storage/%s", p.node, p.storage)
}

// Create starts the download task.
func (p *DownloadProvider) Create(ctx context.Context, cfg engine.ResourceConfig) (*engine.MutationAck, error) {
	source, err := requireString(cfg, "url")
	if err != nil {
		return nil, err
	}

	f := newForm().
		set("content", p.content).
		set("filename", p.filename).
		set("url", source).
		setString("checksum", cfgString(cfg, "checksum")).
		setString("checksum-algorithm", cfgString(cfg, "checksum_algorithm"))

	var raw json.RawMessage
	if err := p.client.Post(ctx, p.storagePath()+"/download-url", f.Values(), &raw); err != nil {
		return nil, err
	}

	task, err := decodeTaskHandle(raw)
	if err != nil {
		return nil, err
	}
	return &engine.MutationAck{Task: task, Class: engine.ClassDownload}, nil
}

// Update is not supported; replace the file by deleting and
// re-creating it.
func (p *DownloadProvider) Update(context.Context, engine.ResourceConfig, engine.NormalizedOutput) (*engine.MutationAck, error) {
	return nil, engine.ErrUpdateUnsupported
}

// Delete removes the file from the storage.
func (p *DownloadProvider) Delete(ctx context.Context) error {
	return p.client.Delete(ctx, p.storagePath()+"/content/"+p.volid(), nil, nil)
}

// volume is one entry of a storage content listing.
type volume struct {
	VolID string `json:"volid"`
	Size  int64  `json:"size"`
}

// Read lists the storage content and looks for the managed file.
func (p *DownloadProvider) Read(ctx context.Context) (*engine.RemoteSnapshot, error) {
	var volumes []volume
	path := p.storagePath() + "/content?content=" + p.content
	if err := p.client.Get(ctx, path, &volumes); err != nil {
		if engine.IsNotFound(err) {
			return &engine.RemoteSnapshot{Exists: false}, nil
		}
		return nil, err
	}

	want := p.volid()
	for _, v := range volumes {
		if v.VolID == want {
			return &engine.RemoteSnapshot{Exists: true, Fields: map[string]any{
				"volid":   v.VolID,
				"size":    v.Size,
				"storage": p.storage,
				"node":    p.node,
			}}, nil
		}
	}
	return &engine.RemoteSnapshot{Exists: false}, nil
}
