// Package tags holds the resource tag model shared by the simulated EC2 and
// EFS backends. Tags keep the order the caller supplied them in, and a later
// tag with the same key replaces the earlier one.
package tags

import "strings"

// TagName is the standard AWS Name tag. EFS surfaces its value as the file
// system's Name field.
const TagName = "Name"

// filterPrefix is the EC2 filter namespace for tag filters ("tag:<key>").
const filterPrefix = "tag:"

// Tag is a single key/value resource tag.
type Tag struct {
	Key   string
	Value string
}

// Set is an ordered list of tags with unique keys.
type Set []Tag

// New builds a Set from tags, collapsing duplicate keys (last wins, first
// position kept).
func New(tags ...Tag) Set {
	var s Set
	for _, t := range tags {
		s = s.With(t.Key, t.Value)
	}
	return s
}

// With returns a copy of s with key set to value.
func (s Set) With(key, value string) Set {
	out := s.Clone()
	for i := range out {
		if out[i].Key == key {
			out[i].Value = value
			return out
		}
	}
	return append(out, Tag{Key: key, Value: value})
}

// Get returns the value for key and whether it was present.
func (s Set) Get(key string) (string, bool) {
	for _, t := range s {
		if t.Key == key {
			return t.Value, true
		}
	}
	return "", false
}

// Name returns the value of the Name tag, or "" when unset.
func (s Set) Name() string {
	v, _ := s.Get(TagName)
	return v
}

// Clone returns an independent copy of s.
func (s Set) Clone() Set {
	if s == nil {
		return nil
	}
	out := make(Set, len(s))
	copy(out, s)
	return out
}

// FilterKey reports whether filterName is a tag filter ("tag:<key>") and
// returns the tag key it addresses.
func FilterKey(filterName string) (string, bool) {
	if !strings.HasPrefix(filterName, filterPrefix) {
		return "", false
	}
	key := strings.TrimPrefix(filterName, filterPrefix)
	return key, key != ""
}
