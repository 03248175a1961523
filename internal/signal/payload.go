package signal

import "fmt"

// Payload accessors. Sensor payloads are open maps decoded from JSON, so
// missing or differently-typed fields are normal and never an error.

// PayloadString returns payload[key] coerced to a string, or "" when the
// field is absent or not a string.
func PayloadString(payload map[string]interface{}, key string) string {
	if payload == nil {
		return ""
	}
	if v, ok := payload[key].(string); ok {
		return v
	}
	return ""
}

// PayloadMap returns payload[key] as a nested map, or nil when the field is
// absent or not a map.
func PayloadMap(payload map[string]interface{}, key string) map[string]interface{} {
	if payload == nil {
		return nil
	}
	if v, ok := payload[key].(map[string]interface{}); ok {
		return v
	}
	return nil
}

// PayloadStrings returns payload[key] as a string slice. JSON decoding
// produces []interface{}, so both slice shapes are accepted; non-string
// elements are stringified.
func PayloadStrings(payload map[string]interface{}, key string) []string {
	if payload == nil {
		return nil
	}
	switch v := payload[key].(type) {
	case []string:
		return v
	case []interface{}:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok {
				out = append(out, s)
			} else {
				out = append(out, fmt.Sprint(item))
			}
		}
		return out
	}
	return nil
}
