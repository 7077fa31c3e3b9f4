package providers

import (
	"testing"

	"github.com/openhyve/openhyve/pkg/engine"
)

func TestDefaultRegistryTypes(t *testing.T) {
	r := NewDefaultRegistry()

	want := []string{"acl", "container", "download", "firewall", "ha", "network", "pool", "storage", "vm"}
	got := r.Types()
	if len(got) != len(want) {
		t.Fatalf("Types() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Types()[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestRegistryRejectsDuplicates(t *testing.T) {
	r := NewRegistry()
	def := Definition{Type: "vm", New: NewVMProvider}

	if err := r.Register(def); err != nil {
		t.Fatalf("first Register failed: %v", err)
	}
	if err := r.Register(def); err == nil {
		t.Error("expected duplicate registration to fail")
	}
}

func TestRegistryUnknownTypeIsRejected(t *testing.T) {
	r := NewDefaultRegistry()

	_, err := r.Lookup("volume")
	if !engine.IsRejected(err) {
		t.Errorf("Lookup error = %v, want rejected", err)
	}
}

func TestRegistryTeardownDefaults(t *testing.T) {
	r := NewDefaultRegistry()

	storage, err := r.Lookup("storage")
	if err != nil {
		t.Fatalf("Lookup failed: %v", err)
	}
	if storage.TeardownDefault {
		t.Error("storage teardown must be opt-in")
	}

	vm, err := r.Lookup("vm")
	if err != nil {
		t.Fatalf("Lookup failed: %v", err)
	}
	if !vm.TeardownDefault {
		t.Error("vm teardown defaults to destructive")
	}
}

func TestRegistryValidatesDefinitions(t *testing.T) {
	r := NewRegistry()

	if err := r.Register(Definition{New: NewVMProvider}); err == nil {
		t.Error("expected empty type name to fail")
	}
	if err := r.Register(Definition{Type: "vm"}); err == nil {
		t.Error("expected nil factory to fail")
	}
}
