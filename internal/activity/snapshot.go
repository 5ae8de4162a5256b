// Relayhub - Collaboration Activity and Notification Pipeline
// Copyright 2026 Relayhub Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/relayhub/relayhub

package activity

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/goccy/go-json"
)

// ErrMissingID is returned when neither snapshot of an event carries an id.
var ErrMissingID = errors.New("snapshot has no id field")

// Snapshot is a partial view of one entity at a point in time.
//
// Field order is preserved from the wire JSON. The diff engine iterates
// fields in that order, which is what makes its output deterministic for
// a fixed input: two decodes of the same document always yield the same
// field sequence.
//
// Values are decoded as:
//   - JSON object  -> *Snapshot (nested)
//   - JSON array   -> []any (never diffed generically)
//   - JSON number  -> json.Number
//   - JSON string  -> string
//   - JSON bool    -> bool
//   - JSON null    -> nil
type Snapshot struct {
	keys   []string
	values map[string]any
}

// NewSnapshot builds a snapshot from ordered key/value pairs.
// Intended for tests and for the emitter's allow-list projection.
func NewSnapshot(pairs ...any) *Snapshot {
	if len(pairs)%2 != 0 {
		panic("activity.NewSnapshot: odd number of arguments")
	}
	s := &Snapshot{values: make(map[string]any, len(pairs)/2)}
	for i := 0; i < len(pairs); i += 2 {
		k, ok := pairs[i].(string)
		if !ok {
			panic("activity.NewSnapshot: key is not a string")
		}
		s.set(k, normalizeValue(pairs[i+1]))
	}
	return s
}

func (s *Snapshot) set(key string, value any) {
	if _, exists := s.values[key]; !exists {
		s.keys = append(s.keys, key)
	}
	s.values[key] = value
}

// Fields returns the field names in declared (wire) order.
func (s *Snapshot) Fields() []string {
	return s.keys
}

// Get returns the value for a field and whether the field is present.
func (s *Snapshot) Get(key string) (any, bool) {
	v, ok := s.values[key]
	return v, ok
}

// Len returns the number of fields.
func (s *Snapshot) Len() int {
	return len(s.keys)
}

// ID returns the entity id carried by the snapshot.
func (s *Snapshot) ID() (int64, error) {
	v, ok := s.values["id"]
	if !ok {
		return 0, ErrMissingID
	}
	n, ok := v.(json.Number)
	if !ok {
		return 0, fmt.Errorf("id field is %T, not a number", v)
	}
	id, err := n.Int64()
	if err != nil {
		return 0, fmt.Errorf("parse id: %w", err)
	}
	return id, nil
}

// String returns the string value of a field, or "" when absent or not a string.
func (s *Snapshot) String(key string) string {
	if v, ok := s.values[key]; ok {
		if str, ok := v.(string); ok {
			return str
		}
	}
	return ""
}

// Int64 returns the numeric value of a field, or 0 when absent or not a number.
func (s *Snapshot) Int64(key string) int64 {
	if v, ok := s.values[key]; ok {
		if n, ok := v.(json.Number); ok {
			if i, err := n.Int64(); err == nil {
				return i
			}
		}
	}
	return 0
}

// Project returns a copy restricted to the allowed fields, preserving
// field order. The id field always survives projection. A nil snapshot
// projects to nil.
func (s *Snapshot) Project(allow FieldSet) *Snapshot {
	if s == nil {
		return nil
	}
	out := &Snapshot{values: make(map[string]any, len(s.keys))}
	for _, k := range s.keys {
		if k == "id" || allow.Has(k) {
			out.set(k, s.values[k])
		}
	}
	return out
}

// Equal reports deep equality of two snapshots, ignoring field order.
// Used by handlers to short-circuit events whose net effect is nothing.
func (s *Snapshot) Equal(other *Snapshot) bool {
	if s == nil || other == nil {
		return s == other
	}
	if len(s.values) != len(other.values) {
		return false
	}
	for k, v := range s.values {
		ov, ok := other.values[k]
		if !ok || !valuesEqual(v, ov) {
			return false
		}
	}
	return true
}

func valuesEqual(a, b any) bool {
	switch av := a.(type) {
	case *Snapshot:
		bv, ok := b.(*Snapshot)
		return ok && av.Equal(bv)
	case []any:
		bv, ok := b.([]any)
		if !ok || len(av) != len(bv) {
			return false
		}
		for i := range av {
			if !valuesEqual(av[i], bv[i]) {
				return false
			}
		}
		return true
	default:
		return a == b
	}
}

// UnmarshalJSON decodes a JSON object preserving field order.
func (s *Snapshot) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	tok, err := dec.Token()
	if err != nil {
		return fmt.Errorf("decode snapshot: %w", err)
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return fmt.Errorf("decode snapshot: expected object, got %v", tok)
	}

	decoded, err := decodeObject(dec)
	if err != nil {
		return err
	}
	*s = *decoded
	return nil
}

// MarshalJSON encodes the snapshot with fields in declared order.
func (s *Snapshot) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range s.keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		kb, err := json.Marshal(k)
		if err != nil {
			return nil, err
		}
		buf.Write(kb)
		buf.WriteByte(':')
		vb, err := json.Marshal(s.values[k])
		if err != nil {
			return nil, fmt.Errorf("marshal field %q: %w", k, err)
		}
		buf.Write(vb)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// ParseSnapshot decodes a JSON document into a snapshot.
// An empty document returns nil, which signals pure creation or deletion.
func ParseSnapshot(data []byte) (*Snapshot, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, nil
	}
	var s Snapshot
	if err := s.UnmarshalJSON(data); err != nil {
		return nil, err
	}
	return &s, nil
}

// decodeObject consumes key/value pairs until the matching close brace.
// The opening brace must already have been consumed.
func decodeObject(dec *json.Decoder) (*Snapshot, error) {
	s := &Snapshot{values: make(map[string]any)}
	for {
		tok, err := dec.Token()
		if err != nil {
			return nil, fmt.Errorf("decode snapshot: %w", err)
		}
		if d, ok := tok.(json.Delim); ok && d == '}' {
			return s, nil
		}
		key, ok := tok.(string)
		if !ok {
			return nil, fmt.Errorf("decode snapshot: expected key, got %v", tok)
		}
		val, err := decodeValue(dec)
		if err != nil {
			return nil, err
		}
		s.set(key, val)
	}
}

func decodeValue(dec *json.Decoder) (any, error) {
	tok, err := dec.Token()
	if err != nil {
		return nil, fmt.Errorf("decode snapshot value: %w", err)
	}
	switch t := tok.(type) {
	case json.Delim:
		switch t {
		case '{':
			return decodeObject(dec)
		case '[':
			var list []any
			for dec.More() {
				v, err := decodeValue(dec)
				if err != nil {
					return nil, err
				}
				list = append(list, v)
			}
			if _, err := dec.Token(); err != nil { // consume ']'
				return nil, fmt.Errorf("decode snapshot list: %w", err)
			}
			return list, nil
		default:
			return nil, fmt.Errorf("decode snapshot: unexpected delimiter %v", t)
		}
	default:
		return tok, nil
	}
}

// normalizeValue coerces Go literals used in tests to the decoded forms.
func normalizeValue(v any) any {
	switch t := v.(type) {
	case int:
		return json.Number(fmt.Sprintf("%d", t))
	case int64:
		return json.Number(fmt.Sprintf("%d", t))
	case float64:
		return json.Number(fmt.Sprintf("%g", t))
	case []any:
		out := make([]any, len(t))
		for i := range t {
			out[i] = normalizeValue(t[i])
		}
		return out
	default:
		return v
	}
}

// truthy mirrors the loose presence semantics of the wire format:
// null, false, empty string, and numeric zero all read as "absent".
func truthy(v any) bool {
	switch t := v.(type) {
	case nil:
		return false
	case bool:
		return t
	case string:
		return t != ""
	case json.Number:
		return t != "0" && t != "0.0" && t != ""
	default:
		return true
	}
}
