package providers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/openhyve/openhyve/pkg/engine"
	"github.com/openhyve/openhyve/pkg/proxmox"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *proxmox.Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return proxmox.NewClient(server.URL, "root@pam!ci=secret", proxmox.WithHTTPClient(server.Client()))
}

func TestVMCreateReturnsTaskAck(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/nodes/hv01/qemu" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		if err := r.ParseForm(); err != nil {
			t.Fatalf("parsing form: %v", err)
		}
		if got := r.PostForm.Get("vmid"); got != "100" {
			t.Errorf("vmid = %q, want 100", got)
		}
		if got := r.PostForm.Get("memory"); got != "2048" {
			t.Errorf("memory = %q, want 2048", got)
		}
		w.Write([]byte(`{"data": "UPID:hv01:0001:0002:0003:qmcreate:100:root@pam:"}`))
	})

	cfg := engine.ResourceConfig{"vmid": 100, "name": "web01", "memory": 2048}
	p, err := NewVMProvider(client, "hv01", cfg)
	if err != nil {
		t.Fatalf("NewVMProvider failed: %v", err)
	}

	ack, err := p.Create(context.Background(), cfg)
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if ack == nil || ack.Task == "" {
		t.Fatal("expected a task handle acknowledgement")
	}
	if ack.Class != engine.ClassDefault {
		t.Errorf("class = %v, want default", ack.Class)
	}
}

func TestVMCloneUsesSlowClass(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/nodes/hv01/qemu/9000/clone" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if err := r.ParseForm(); err != nil {
			t.Fatalf("parsing form: %v", err)
		}
		if got := r.PostForm.Get("newid"); got != "100" {
			t.Errorf("newid = %q, want 100", got)
		}
		w.Write([]byte(`{"data": "UPID:hv01:0001:0002:0003:qmclone:100:root@pam:"}`))
	})

	cfg := engine.ResourceConfig{"vmid": 100, "clone": 9000, "full": true}
	p, err := NewVMProvider(client, "hv01", cfg)
	if err != nil {
		t.Fatalf("NewVMProvider failed: %v", err)
	}

	ack, err := p.Create(context.Background(), cfg)
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if ack.Class != engine.ClassSlow {
		t.Errorf("class = %v, want slow", ack.Class)
	}
}

func TestVMReadAbsentGuest(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"message": "Configuration file 'nodes/hv01/qemu-server/100.conf' does not exist"}`, http.StatusInternalServerError)
	})

	cfg := engine.ResourceConfig{"vmid": 100}
	p, err := NewVMProvider(client, "hv01", cfg)
	if err != nil {
		t.Fatalf("NewVMProvider failed: %v", err)
	}

	snapshot, err := p.Read(context.Background())
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	if snapshot.Exists {
		t.Error("expected absent snapshot for missing guest")
	}
}

func TestVMDeletePurges(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodDelete || r.URL.Path != "/nodes/hv01/qemu/100" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		if got := r.URL.Query().Get("purge"); got != "1" {
			t.Errorf("purge = %q, want 1", got)
		}
		w.Write([]byte(`{"data": "UPID:hv01:0001:0002:0003:qmdestroy:100:root@pam:"}`))
	})

	p, err := NewVMProvider(client, "hv01", engine.ResourceConfig{"vmid": 100})
	if err != nil {
		t.Fatalf("NewVMProvider failed: %v", err)
	}
	if err := p.Delete(context.Background()); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
}

func TestVMRequiresIdentity(t *testing.T) {
	if _, err := NewVMProvider(nil, "hv01", engine.ResourceConfig{}); !engine.IsRejected(err) {
		t.Errorf("missing vmid: got %v, want rejected", err)
	}
	if _, err := NewVMProvider(nil, "", engine.ResourceConfig{"vmid": 100}); !engine.IsRejected(err) {
		t.Errorf("missing node: got %v, want rejected", err)
	}
}

func TestHARejectsInvalidState(t *testing.T) {
	p, err := NewHAProvider(nil, "", engine.ResourceConfig{"sid": "vm:100"})
	if err != nil {
		t.Fatalf("NewHAProvider failed: %v", err)
	}

	_, err = p.Create(context.Background(), engine.ResourceConfig{"sid": "vm:100", "state": "paused"})
	if !engine.IsRejected(err) {
		t.Errorf("invalid state: got %v, want rejected", err)
	}
}

func TestACLUpdateUnsupported(t *testing.T) {
	cfg := engine.ResourceConfig{"path": "/vms/100", "roleid": "PVEVMAdmin", "ugid": "ops@pve"}
	p, err := NewACLProvider(nil, "", cfg)
	if err != nil {
		t.Fatalf("NewACLProvider failed: %v", err)
	}

	_, err = p.Update(context.Background(), cfg, nil)
	if err != engine.ErrUpdateUnsupported {
		t.Errorf("Update error = %v, want ErrUpdateUnsupported", err)
	}
}

func TestACLReadFiltersEntries(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"data": [
			{"path": "/vms/100", "roleid": "PVEVMAdmin", "ugid": "ops@pve", "type": "user", "propagate": 1},
			{"path": "/vms/200", "roleid": "PVEVMAdmin", "ugid": "ops@pve", "type": "user", "propagate": 0}
		]}`))
	})

	cfg := engine.ResourceConfig{"path": "/vms/100", "roleid": "PVEVMAdmin", "ugid": "ops@pve"}
	p, err := NewACLProvider(client, "", cfg)
	if err != nil {
		t.Fatalf("NewACLProvider failed: %v", err)
	}

	snapshot, err := p.Read(context.Background())
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	if !snapshot.Exists {
		t.Fatal("expected matching entry to be found")
	}
	if got := snapshot.Fields["propagate"]; got != true {
		t.Errorf("propagate = %v, want true", got)
	}

	other := engine.ResourceConfig{"path": "/vms/300", "roleid": "PVEVMAdmin", "ugid": "ops@pve"}
	p, err = NewACLProvider(client, "", other)
	if err != nil {
		t.Fatalf("NewACLProvider failed: %v", err)
	}
	snapshot, err = p.Read(context.Background())
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	if snapshot.Exists {
		t.Error("expected no match for unmanaged path")
	}
}

func TestDownloadCreateUsesDownloadClass(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/nodes/hv01/storage/local/download-url" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		w.Write([]byte(`{"data": "UPID:hv01:0001:0002:0003:download:0:root@pam:"}`))
	})

	cfg := engine.ResourceConfig{
		"storage":  "local",
		"filename": "debian-12.iso",
		"url":      "https://example.com/debian-12.iso",
	}
	p, err := NewDownloadProvider(client, "hv01", cfg)
	if err != nil {
		t.Fatalf("NewDownloadProvider failed: %v", err)
	}

	ack, err := p.Create(context.Background(), cfg)
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if ack.Class != engine.ClassDownload {
		t.Errorf("class = %v, want download", ack.Class)
	}
}

func TestDownloadReadMatchesVolume(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"data": [
			{"volid": "local:iso/debian-12.iso", "size": 650117120},
			{"volid": "local:iso/ubuntu-24.04.iso", "size": 2048000000}
		]}`))
	})

	cfg := engine.ResourceConfig{"storage": "local", "filename": "debian-12.iso"}
	p, err := NewDownloadProvider(client, "hv01", cfg)
	if err != nil {
		t.Fatalf("NewDownloadProvider failed: %v", err)
	}

	snapshot, err := p.Read(context.Background())
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	if !snapshot.Exists {
		t.Fatal("expected volume to be found")
	}
	if got := snapshot.Fields["volid"]; got != "local:iso/debian-12.iso" {
		t.Errorf("volid = %v", got)
	}
}

func TestNetworkCreateAcksWithIdleScope(t *testing.T) {
	var applied bool
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPut && r.URL.Path == "/nodes/hv01/network" {
			applied = true
		}
		w.Write([]byte(`{"data": null}`))
	})

	cfg := engine.ResourceConfig{"iface": "vmbr1", "type": "bridge"}
	p, err := NewNetworkProvider(client, "hv01", cfg)
	if err != nil {
		t.Fatalf("NewNetworkProvider failed: %v", err)
	}

	ack, err := p.Create(context.Background(), cfg)
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if !applied {
		t.Error("expected node network configuration to be applied")
	}
	if ack.IdleScope == nil || ack.IdleScope.Node != "hv01" {
		t.Errorf("idle scope = %+v, want node hv01", ack.IdleScope)
	}
	if ack.Task != "" {
		t.Error("apply returns no task handle")
	}
}
