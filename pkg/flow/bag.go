package flow

import (
	"fmt"
	"time"
)

// EntityBag is the open field map spines fill during extraction. A field is
// "missing" when the key is absent or holds an empty string. Writes go
// through Set so the shared allowlist and value types are validated at write
// time, never on read.
type EntityBag map[string]any

// allowedFields is the cross-spine field allowlist. Spines may only populate
// fields named here; unknown keys are a programming error surfaced by Set.
var allowedFields = map[string]bool{
	"date":        true,
	"time":        true,
	"amount":      true,
	"email":       true,
	"phone":       true,
	"clientQuery": true,
	"clientId":    true,
	"invoiceId":   true,
	"bookingId":   true,
	"campaignId":  true,
	"slotId":      true,
	"staffId":     true,
	"service":     true,
	"channel":     true,
	"subject":     true,
	"message":     true,
	"name":        true,
	"notes":       true,
	"reason":      true,
	"metric":      true,
	"period":      true,
	"category":    true,
	"switchId":    true,
}

// Set validates the key against the allowlist and the value against the
// supported scalar types before writing.
func (b EntityBag) Set(key string, value any) error {
	if !allowedFields[key] {
		return fmt.Errorf("entity bag: field %q not in allowlist", key)
	}
	switch value.(type) {
	case string, float64, int, bool, time.Time:
	default:
		return fmt.Errorf("entity bag: field %q has unsupported type %T", key, value)
	}
	b[key] = value
	return nil
}

// Has reports whether key is present and non-empty.
func (b EntityBag) Has(key string) bool {
	v, ok := b[key]
	if !ok {
		return false
	}
	if s, isStr := v.(string); isStr && s == "" {
		return false
	}
	return true
}

// GetString returns the field as a string, or "" when absent or non-string.
func (b EntityBag) GetString(key string) string {
	if s, ok := b[key].(string); ok {
		return s
	}
	return ""
}

// GetFloat returns the field as a float64, accepting int values too.
func (b EntityBag) GetFloat(key string) (float64, bool) {
	switch v := b[key].(type) {
	case float64:
		return v, true
	case int:
		return float64(v), true
	}
	return 0, false
}

// GetTime returns the field as a time.Time.
func (b EntityBag) GetTime(key string) (time.Time, bool) {
	t, ok := b[key].(time.Time)
	return t, ok
}

// Clone returns a shallow copy of the bag.
func (b EntityBag) Clone() EntityBag {
	out := make(EntityBag, len(b))
	for k, v := range b {
		out[k] = v
	}
	return out
}

// Map converts the bag to a plain map for gate parameters and tool input.
func (b EntityBag) Map() map[string]any {
	out := make(map[string]any, len(b))
	for k, v := range b {
		if t, ok := v.(time.Time); ok {
			out[k] = t.Format(time.RFC3339)
			continue
		}
		out[k] = v
	}
	return out
}
