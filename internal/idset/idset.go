// Package idset implements an ordered, duplicate-free set of int64 identifiers
// used for task assignment lists and quiz targets.
package idset

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Set keeps identifiers in insertion order. The zero value is an empty set.
type Set struct {
	ids []int64
}

// Of builds a set from ids, dropping duplicates and keeping first occurrence order.
func Of(ids ...int64) Set {
	var s Set
	for _, id := range ids {
		s.Add(id)
	}
	return s
}

// Add appends id if it is not already present. It reports whether the set changed.
func (s *Set) Add(id int64) bool {
	if s.Contains(id) {
		return false
	}
	s.ids = append(s.ids, id)
	return true
}

// Remove deletes id, preserving the order of the remaining elements.
func (s *Set) Remove(id int64) bool {
	for i, v := range s.ids {
		if v == id {
			s.ids = append(s.ids[:i:i], s.ids[i+1:]...)
			return true
		}
	}
	return false
}

func (s Set) Contains(id int64) bool {
	for _, v := range s.ids {
		if v == id {
			return true
		}
	}
	return false
}

func (s Set) Len() int { return len(s.ids) }

// IDs returns a copy of the identifiers in order.
func (s Set) IDs() []int64 {
	out := make([]int64, len(s.ids))
	copy(out, s.ids)
	return out
}

func (s Set) Equal(o Set) bool {
	if len(s.ids) != len(o.ids) {
		return false
	}
	for i := range s.ids {
		if s.ids[i] != o.ids[i] {
			return false
		}
	}
	return true
}

func (s Set) String() string {
	parts := make([]string, len(s.ids))
	for i, id := range s.ids {
		parts[i] = strconv.FormatInt(id, 10)
	}
	return "[" + strings.Join(parts, ", ") + "]"
}

// Parse reads a JSON array of integers or the bracketed comma-joined form
// "[1, 2, 3]". Blank input and "[]" yield an empty set.
func Parse(raw string) (Set, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" || raw == "[]" || raw == "null" {
		return Set{}, nil
	}
	raw = strings.TrimPrefix(raw, "[")
	raw = strings.TrimSuffix(raw, "]")

	var s Set
	for _, part := range strings.Split(raw, ",") {
		part = strings.Trim(strings.TrimSpace(part), `"`)
		if part == "" {
			continue
		}
		id, err := strconv.ParseInt(part, 10, 64)
		if err != nil {
			return Set{}, fmt.Errorf("parse id %q: %w", part, err)
		}
		s.Add(id)
	}
	return s, nil
}

func (s Set) MarshalJSON() ([]byte, error) {
	if s.ids == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(s.ids)
}

func (s *Set) UnmarshalJSON(data []byte) error {
	var ids []int64
	if err := json.Unmarshal(data, &ids); err != nil {
		// Accept the legacy string-encoded form as a JSON string.
		var str string
		if strErr := json.Unmarshal(data, &str); strErr != nil {
			return fmt.Errorf("decode id set: %w", err)
		}
		parsed, perr := Parse(str)
		if perr != nil {
			return perr
		}
		*s = parsed
		return nil
	}
	*s = Of(ids...)
	return nil
}

// Value stores the set as a JSON array.
func (s Set) Value() (driver.Value, error) {
	b, err := s.MarshalJSON()
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Scan reads a set stored as text or blob.
func (s *Set) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		*s = Set{}
		return nil
	case string:
		parsed, err := Parse(v)
		if err != nil {
			return err
		}
		*s = parsed
		return nil
	case []byte:
		parsed, err := Parse(string(v))
		if err != nil {
			return err
		}
		*s = parsed
		return nil
	default:
		return fmt.Errorf("scan id set: unsupported type %T", src)
	}
}
