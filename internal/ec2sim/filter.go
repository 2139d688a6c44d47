package ec2sim

import (
	"slices"
	"strconv"

	"github.com/nicholasgasior/efsim/internal/tags"
)

// filterValuesFunc returns the values a resource exposes under a filter
// name, and false when the resource type does not support that filter.
type filterValuesFunc func(name string) ([]string, bool)

// matchFilters reports whether a resource passes every filter. A filter
// matches when any of its values equals any of the resource's values for
// that name. "tag:<key>" filters are resolved against t.
func matchFilters(filters []Filter, values filterValuesFunc, t tags.Set) (bool, error) {
	for _, f := range filters {
		var have []string
		if key, ok := tags.FilterKey(f.Name); ok {
			if v, present := t.Get(key); present {
				have = []string{v}
			}
		} else {
			var known bool
			have, known = values(f.Name)
			if !known {
				return false, invalidFilter(f.Name)
			}
		}
		if !slices.ContainsFunc(f.Values, func(v string) bool { return slices.Contains(have, v) }) {
			return false, nil
		}
	}
	return true, nil
}

func boolString(b bool) string {
	return strconv.FormatBool(b)
}
