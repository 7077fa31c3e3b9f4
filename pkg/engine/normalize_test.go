package engine

import "testing"

func TestNormalizeRemoteWinsOverDesired(t *testing.T) {
	snapshot := &RemoteSnapshot{
		Exists: true,
		Fields: map[string]any{"cores": 4, "name": "web01"},
	}
	desired := ResourceConfig{"cores": 2, "name": "web01", "onboot": true}

	out := Normalize(snapshot, desired, nil)

	if out["cores"] != 4 {
		t.Errorf("expected remote value 4 for cores, got %v", out["cores"])
	}
	// Field the control plane did not echo back falls through to the
	// desired config, so the next reconciliation sees no drift.
	if out["onboot"] != true {
		t.Errorf("expected desired value for onboot, got %v", out["onboot"])
	}
}

func TestNormalizeDefaultsRankLast(t *testing.T) {
	snapshot := &RemoteSnapshot{Exists: true, Fields: map[string]any{"cores": 4}}
	desired := ResourceConfig{"memory": 2048}
	defaults := ResourceConfig{"cores": 1, "memory": 512, "ostype": "l26"}

	out := Normalize(snapshot, desired, defaults)

	if out["cores"] != 4 {
		t.Errorf("remote should beat default: got %v", out["cores"])
	}
	if out["memory"] != 2048 {
		t.Errorf("desired should beat default: got %v", out["memory"])
	}
	if out["ostype"] != "l26" {
		t.Errorf("default should fill absent field: got %v", out["ostype"])
	}
}

func TestNormalizeDegeneratesWithoutSnapshot(t *testing.T) {
	desired := ResourceConfig{"url": "http://example.test/disk.iso"}
	defaults := ResourceConfig{"verify": true}

	for _, snapshot := range []*RemoteSnapshot{nil, {Exists: false}} {
		out := Normalize(snapshot, desired, defaults)
		if out["url"] != "http://example.test/disk.iso" {
			t.Errorf("expected desired projection, got %v", out["url"])
		}
		if out["verify"] != true {
			t.Errorf("expected default projection, got %v", out["verify"])
		}
	}
}

func TestNormalizeKeysAreStableAcrossCalls(t *testing.T) {
	snapshot := &RemoteSnapshot{Exists: true, Fields: map[string]any{"cores": 4}}
	desired := ResourceConfig{"memory": 2048}

	first := Normalize(snapshot, desired, nil)
	second := Normalize(snapshot, desired, nil)

	if len(first) != len(second) {
		t.Fatalf("outputs differ in size: %d vs %d", len(first), len(second))
	}
	for k, v := range first {
		if second[k] != v {
			t.Errorf("key %q unstable: %v vs %v", k, v, second[k])
		}
	}
}
