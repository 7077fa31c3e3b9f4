package providers

import (
	"encoding/json"
	"testing"

	"github.com/openhyve/openhyve/pkg/engine"
)

func TestCfgIntAcceptsDecodedForms(t *testing.T) {
	cases := []struct {
		name string
		cfg  engine.ResourceConfig
		want int
	}{
		{"int", engine.ResourceConfig{"memory": 2048}, 2048},
		{"int64", engine.ResourceConfig{"memory": int64(2048)}, 2048},
		{"float64", engine.ResourceConfig{"memory": float64(2048)}, 2048},
		{"json number", engine.ResourceConfig{"memory": json.Number("2048")}, 2048},
		{"missing", engine.ResourceConfig{}, 0},
		{"wrong type", engine.ResourceConfig{"memory": "lots"}, 0},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := cfgInt(tc.cfg, "memory"); got != tc.want {
				t.Errorf("cfgInt = %d, want %d", got, tc.want)
			}
		})
	}
}

func TestCfgBoolAcceptsWireForms(t *testing.T) {
	cases := []struct {
		name string
		cfg  engine.ResourceConfig
		want bool
	}{
		{"bool", engine.ResourceConfig{"onboot": true}, true},
		{"one string", engine.ResourceConfig{"onboot": "1"}, true},
		{"true string", engine.ResourceConfig{"onboot": "true"}, true},
		{"zero string", engine.ResourceConfig{"onboot": "0"}, false},
		{"int", engine.ResourceConfig{"onboot": 1}, true},
		{"float", engine.ResourceConfig{"onboot": float64(0)}, false},
		{"missing", engine.ResourceConfig{}, false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := cfgBool(tc.cfg, "onboot"); got != tc.want {
				t.Errorf("cfgBool = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestFormOmitsUnsetFields(t *testing.T) {
	v := newForm().
		setString("name", "").
		setInt("cores", 0).
		setString("ostype", "l26").
		Values()

	if v.Has("name") || v.Has("cores") {
		t.Errorf("unset fields leaked into form: %v", v)
	}
	if got := v.Get("ostype"); got != "l26" {
		t.Errorf("ostype = %q", got)
	}
}

func TestFormEncodesBooleans(t *testing.T) {
	v := newForm().setBool("purge", true).setBool("onboot", false).Values()

	if got := v.Get("purge"); got != "1" {
		t.Errorf("purge = %q, want 1", got)
	}
	if got := v.Get("onboot"); got != "0" {
		t.Errorf("onboot = %q, want 0", got)
	}
}

func TestRequireFieldsReject(t *testing.T) {
	if _, err := requireString(engine.ResourceConfig{}, "storage"); !engine.IsRejected(err) {
		t.Errorf("requireString error = %v, want rejected", err)
	}
	if _, err := requireInt(engine.ResourceConfig{"vmid": -1}, "vmid"); !engine.IsRejected(err) {
		t.Errorf("requireInt error = %v, want rejected", err)
	}
}

func TestDecodeTaskHandle(t *testing.T) {
	handle, err := decodeTaskHandle(json.RawMessage(`"UPID:hv01:0001:0002:0003:qmcreate:100:root@pam:"`))
	if err != nil {
		t.Fatalf("decodeTaskHandle failed: %v", err)
	}
	if handle == "" {
		t.Error("expected non-empty handle")
	}

	if _, err := decodeTaskHandle(json.RawMessage(`""`)); !engine.IsRejected(err) {
		t.Errorf("empty handle: got %v, want rejected", err)
	}
	if _, err := decodeTaskHandle(json.RawMessage(`{"upid": "x"}`)); !engine.IsRejected(err) {
		t.Errorf("malformed handle: got %v, want rejected", err)
	}
}
