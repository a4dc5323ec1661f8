package memory

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"
)

// Reserved metadata keys. The pipeline carries these out-of-band and
// they always win over colliding caller-supplied keys.
const (
	metaKeyOwner     = "owner"
	metaKeyTags      = "tags"
	metaKeyTimestamp = "timestamp"
)

// tagSeparator delimits serialized tag lists in stored metadata.
const tagSeparator = ","

// Metadata is an open string-keyed map of caller-supplied values.
// Values are restricted to a closed set of primitive variants so they
// can be flattened to strings at the Index boundary and recovered
// symmetrically.
type Metadata map[string]Value

type valueKind int

const (
	kindString valueKind = iota
	kindNumber
	kindBool
	kindList
)

// Value is one metadata value: a string, number, bool, or string list.
// The zero Value encodes as the empty string.
type Value struct {
	kind valueKind
	str  string
	num  float64
	b    bool
	list []string
}

// StringValue wraps a string.
func StringValue(s string) Value { return Value{kind: kindString, str: s} }

// NumberValue wraps a number.
func NumberValue(f float64) Value { return Value{kind: kindNumber, num: f} }

// BoolValue wraps a bool.
func BoolValue(b bool) Value { return Value{kind: kindBool, b: b} }

// ListValue wraps a list of strings.
func ListValue(items ...string) Value {
	return Value{kind: kindList, list: append([]string(nil), items...)}
}

// Encode flattens the value to the string form stored in the index.
// Lists are joined with the same delimiter used for tags.
func (v Value) Encode() string {
	switch v.kind {
	case kindNumber:
		return strconv.FormatFloat(v.num, 'f', -1, 64)
	case kindBool:
		return strconv.FormatBool(v.b)
	case kindList:
		return strings.Join(v.list, tagSeparator)
	default:
		return v.str
	}
}

// MarshalJSON emits the native JSON form of the value.
func (v Value) MarshalJSON() ([]byte, error) {
	switch v.kind {
	case kindNumber:
		return json.Marshal(v.num)
	case kindBool:
		return json.Marshal(v.b)
	case kindList:
		return json.Marshal(v.list)
	default:
		return json.Marshal(v.str)
	}
}

// UnmarshalJSON accepts a JSON string, number, bool, or array of
// strings. Anything else is rejected.
func (v *Value) UnmarshalJSON(data []byte) error {
	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	switch t := raw.(type) {
	case string:
		*v = StringValue(t)
	case float64:
		*v = NumberValue(t)
	case bool:
		*v = BoolValue(t)
	case []any:
		items := make([]string, 0, len(t))
		for _, item := range t {
			s, ok := item.(string)
			if !ok {
				return fmt.Errorf("metadata list values must be strings, got %T", item)
			}
			items = append(items, s)
		}
		*v = ListValue(items...)
	default:
		return fmt.Errorf("unsupported metadata value type %T", t)
	}
	return nil
}

// NormalizeTags trims, lowercases, deduplicates, and sorts tags,
// dropping entries that are empty after trimming. Set semantics:
// insertion order is not preserved, and normalizing an already
// normalized set yields the same set.
func NormalizeTags(tags []string) []string {
	seen := make(map[string]struct{}, len(tags))
	out := make([]string, 0, len(tags))
	for _, tag := range tags {
		tag = strings.ToLower(strings.TrimSpace(tag))
		if tag == "" {
			continue
		}
		if _, dup := seen[tag]; dup {
			continue
		}
		seen[tag] = struct{}{}
		out = append(out, tag)
	}
	sort.Strings(out)
	return out
}

// serializeTags flattens a normalized tag set for storage.
func serializeTags(tags []string) string {
	return strings.Join(tags, tagSeparator)
}

// deserializeTags recovers a tag set from its stored form.
func deserializeTags(s string) []string {
	if s == "" {
		return []string{}
	}
	parts := strings.Split(s, tagSeparator)
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

// encodeStoredMetadata flattens caller metadata and overlays the
// reserved keys. Reserved keys win over caller collisions.
func encodeStoredMetadata(owner string, tags []string, createdAt time.Time, meta Metadata) map[string]string {
	stored := make(map[string]string, len(meta)+3)
	for k, v := range meta {
		stored[k] = v.Encode()
	}
	stored[metaKeyOwner] = owner
	stored[metaKeyTags] = serializeTags(tags)
	stored[metaKeyTimestamp] = createdAt.Format(time.RFC3339Nano)
	return stored
}

// decodeCallerMetadata strips the reserved keys from stored metadata.
// Stored values are flat strings, so recovered values are string-kind.
func decodeCallerMetadata(stored map[string]string) Metadata {
	meta := make(Metadata, len(stored))
	for k, v := range stored {
		switch k {
		case metaKeyOwner, metaKeyTags, metaKeyTimestamp:
			continue
		}
		meta[k] = StringValue(v)
	}
	return meta
}
