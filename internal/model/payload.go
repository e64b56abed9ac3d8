package model

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Payload is the structured document attached to a versioned record.
//
// Values are restricted to strings, int64, bool, []any and nested
// map[string]any (CP-3). Floats and nulls are rejected at the
// serialization boundary: payloads describe configuration, and silent
// float rounding or null/absent ambiguity has no place in content that
// must compare byte-for-byte across tiers.
type Payload map[string]any

// Clone returns a deep copy of the payload. Copy-on-write drafts must
// never alias the ancestor's nested maps and slices.
func (p Payload) Clone() Payload {
	if p == nil {
		return nil
	}
	return clonePayloadMap(p)
}

func clonePayloadMap(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = clonePayloadValue(v)
	}
	return out
}

func clonePayloadValue(v any) any {
	switch val := v.(type) {
	case map[string]any:
		return clonePayloadMap(val)
	case Payload:
		return clonePayloadMap(val)
	case []any:
		out := make([]any, len(val))
		for i, elem := range val {
			out[i] = clonePayloadValue(elem)
		}
		return out
	default:
		return val
	}
}

// MarshalCanonicalJSON serializes the payload as RFC 8785 canonical
// JSON. Returns an error if the payload contains floats, nulls or
// unsupported types.
func (p Payload) MarshalCanonicalJSON() ([]byte, error) {
	return MarshalCanonical(map[string]any(p))
}

// DecodePayload parses stored JSON into a Payload.
//
// Numbers are decoded through json.Number and rejected unless they are
// integers, mirroring the canonical serialization rules. Callers map a
// failure here to ErrCodeSerialization: a row that no longer decodes
// signals a schema mismatch, not a transient fault.
func DecodePayload(data []byte) (Payload, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var raw map[string]any
	if err := dec.Decode(&raw); err != nil {
		return nil, fmt.Errorf("decode payload: %w", err)
	}

	out, err := normalizePayloadMap(raw)
	if err != nil {
		return nil, fmt.Errorf("decode payload: %w", err)
	}
	return out, nil
}

func normalizePayloadMap(m map[string]any) (map[string]any, error) {
	out := make(map[string]any, len(m))
	for k, v := range m {
		nv, err := normalizePayloadValue(v)
		if err != nil {
			return nil, fmt.Errorf("%q: %w", k, err)
		}
		out[k] = nv
	}
	return out, nil
}

func normalizePayloadValue(v any) (any, error) {
	switch val := v.(type) {
	case nil:
		return nil, fmt.Errorf("null is forbidden in payloads")
	case string, bool, int64:
		return val, nil
	case json.Number:
		n, err := val.Int64()
		if err != nil {
			return nil, fmt.Errorf("non-integer number %q is forbidden in payloads", val.String())
		}
		return n, nil
	case []any:
		out := make([]any, len(val))
		for i, elem := range val {
			nv, err := normalizePayloadValue(elem)
			if err != nil {
				return nil, fmt.Errorf("[%d]: %w", i, err)
			}
			out[i] = nv
		}
		return out, nil
	case map[string]any:
		return normalizePayloadMap(val)
	default:
		return nil, fmt.Errorf("unsupported payload type %T", v)
	}
}
