package providers

import (
	"context"

	"github.com/openhyve/openhyve/pkg/engine"
	"github.com/openhyve/openhyve/pkg/proxmox"
)

// ACLProvider manages access-control entries. An entry is the tuple
// (path, role, principal); changing any part of the tuple addresses a
// different entry, so the kind has no in-place update. The control
// plane exposes set and unset through a single synchronous endpoint.
type ACLProvider struct {
	client    *proxmox.Client
	path      string
	roleid    string
	ugid      string
	propagate bool
}

// NewACLProvider builds a provider for the entry identified by the
// path, roleid and ugid fields of the configuration.
func NewACLProvider(client *proxmox.Client, _ string, cfg engine.ResourceConfig) (engine.ProviderOps, error) {
	path, err := requireString(cfg, "path")
	if err != nil {
		return nil, err
	}
	roleid, err := requireString(cfg, "roleid")
	if err != nil {
		return nil, err
	}
	ugid, err := requireString(cfg, "ugid")
	if err != nil {
		return nil, err
	}
	return &ACLProvider{
		client:    client,
		path:      path,
		roleid:    roleid,
		ugid:      ugid,
		propagate: cfgBool(cfg, "propagate"),
	}, nil
}

func (p *ACLProvider) form(remove bool) *form {
	f := newForm().
		set("path", p.path).
		set("roles", p.roleid).
		set("users", p.ugid).
		setBool("propagate", p.propagate)
	if remove {
		f.setBool("delete", true)
	}
	return f
}

// Create grants the role on the path.
func (p *ACLProvider) Create(ctx context.Context, _ engine.ResourceConfig) (*engine.MutationAck, error) {
	if err := p.client.Put(ctx, "/access/acl", p.form(false).Values(), nil); err != nil {
		return nil, err
	}
	return nil, nil
}

// Update is not supported; the entry tuple is its identity.
func (p *ACLProvider) Update(context.Context, engine.ResourceConfig, engine.NormalizedOutput) (*engine.MutationAck, error) {
	return nil, engine.ErrUpdateUnsupported
}

// Delete revokes the grant. The endpoint succeeds whether or not the
// entry exists.
func (p *ACLProvider) Delete(ctx context.Context) error {
	return p.client.Put(ctx, "/access/acl", p.form(true).Values(), nil)
}

// aclEntry is one row of the cluster access-control list.
type aclEntry struct {
	Path      string `json:"path"`
	RoleID    string `json:"roleid"`
	UGID      string `json:"ugid"`
	Type      string `json:"type"`
	Propagate int    `json:"propagate"`
}

// Read lists the cluster ACL and looks for the managed entry.
func (p *ACLProvider) Read(ctx context.Context) (*engine.RemoteSnapshot, error) {
	var entries []aclEntry
	if err := p.client.Get(ctx, "/access/acl", &entries); err != nil {
		if engine.IsNotFound(err) {
			return &engine.RemoteSnapshot{Exists: false}, nil
		}
		return nil, err
	}

	for _, e := range entries {
		if e.Path == p.path && e.RoleID == p.roleid && e.UGID == p.ugid {
			return &engine.RemoteSnapshot{Exists: true, Fields: map[string]any{
				"path":      e.Path,
				"roleid":    e.RoleID,
				"ugid":      e.UGID,
				"type":      e.Type,
				"propagate": e.Propagate == 1,
			}}, nil
		}
	}
	return &engine.RemoteSnapshot{Exists: false}, nil
}
