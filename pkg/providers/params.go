package providers

import (
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"

	"github.com/openhyve/openhyve/pkg/engine"
)

// form accumulates control-plane request parameters. The API encodes
// booleans as "1"/"0" and omits unset fields entirely rather than
// sending empty values.
type form struct {
	values url.Values
}

func newForm() *form {
	return &form{values: url.Values{}}
}

func (f *form) set(key, value string) *form {
	f.values.Set(key, value)
	return f
}

func (f *form) setString(key, value string) *form {
	if value != "" {
		f.values.Set(key, value)
	}
	return f
}

func (f *form) setInt(key string, value int) *form {
	if value != 0 {
		f.values.Set(key, strconv.Itoa(value))
	}
	return f
}

func (f *form) setBool(key string, value bool) *form {
	if value {
		f.values.Set(key, "1")
	} else {
		f.values.Set(key, "0")
	}
	return f
}

func (f *form) Values() url.Values {
	return f.values
}

// cfgString reads a string field from a resource configuration.
// Missing keys and non-string values yield the empty string.
func cfgString(cfg engine.ResourceConfig, key string) string {
	if v, ok := cfg[key].(string); ok {
		return v
	}
	return ""
}

// cfgInt reads an integer field. Manifest decoding can surface
// numbers as int, int64, float64 or json.Number depending on the
// source, so all are accepted.
func cfgInt(cfg engine.ResourceConfig, key string) int {
	switch v := cfg[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	case json.Number:
		n, err := v.Int64()
		if err != nil {
			return 0
		}
		return int(n)
	default:
		return 0
	}
}

// cfgBool reads a boolean field, accepting the API's "1"/"0" string
// form alongside native booleans.
func cfgBool(cfg engine.ResourceConfig, key string) bool {
	switch v := cfg[key].(type) {
	case bool:
		return v
	case string:
		return v == "1" || v == "true"
	case int:
		return v != 0
	case float64:
		return v != 0
	default:
		return false
	}
}

// requireString reads a mandatory string field, rejecting the
// reconciliation when it is absent.
func requireString(cfg engine.ResourceConfig, key string) (string, error) {
	v := cfgString(cfg, key)
	if v == "" {
		return "", engine.NewRejectedError(fmt.Sprintf("missing required field %q", key), nil)
	}
	return v, nil
}

// requireInt reads a mandatory positive integer field.
func requireInt(cfg engine.ResourceConfig, key string) (int, error) {
	v := cfgInt(cfg, key)
	if v <= 0 {
		return 0, engine.NewRejectedError(fmt.Sprintf("missing required field %q", key), nil)
	}
	return v, nil
}

// decodeFields converts a raw API payload into a snapshot field map.
func decodeFields(raw json.RawMessage) (map[string]any, error) {
	fields := make(map[string]any)
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, engine.NewRejectedError(fmt.Sprintf("malformed response payload: %v", err), nil)
	}
	return fields, nil
}

// decodeTaskHandle extracts the task handle returned by asynchronous
// mutation endpoints, which respond with a bare UPID string.
func decodeTaskHandle(raw json.RawMessage) (engine.TaskHandle, error) {
	var upid string
	if err := json.Unmarshal(raw, &upid); err != nil {
		return "", engine.NewRejectedError(fmt.Sprintf("malformed task handle payload: %v", err), nil)
	}
	if upid == "" {
		return "", engine.NewRejectedError("mutation accepted without a task handle", nil)
	}
	return engine.TaskHandle(upid), nil
}
