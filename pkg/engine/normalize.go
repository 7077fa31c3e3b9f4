package engine

// Normalize merges a fresh remote read with the caller's desired
// configuration and provider defaults into the stable output record.
//
// Per-field precedence: authoritative value from the remote read, else
// the desired-config value, else the provider's static default, else
// the field is absent. The desired-config fallback matters because
// control planes frequently do not echo back every field the caller
// set (optional flags they silently defaulted); without it the very
// next reconciliation would see spurious drift.
//
// A nil or non-existing snapshot degenerates to projecting desired
// config over defaults, which is the normalization for one-shot kinds
// whose only readable state is a verified marker. Fields that appeared
// in a previous output but resolve to nothing this call are dropped,
// not carried forward.
func Normalize(snapshot *RemoteSnapshot, desired, defaults ResourceConfig) NormalizedOutput {
	out := make(NormalizedOutput)

	for k, v := range defaults {
		out[k] = v
	}
	for k, v := range desired {
		out[k] = v
	}
	if snapshot != nil && snapshot.Exists {
		for k, v := range snapshot.Fields {
			out[k] = v
		}
	}

	return out
}
