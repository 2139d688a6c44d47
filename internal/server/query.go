package server

import (
	"fmt"
	"net/url"
	"slices"
	"strconv"
	"strings"

	"github.com/nicholasgasior/efsim/internal/ec2sim"
	"github.com/nicholasgasior/efsim/internal/tags"
)

// query is a decoded AWS query-protocol request. Lists are flattened as
// Name.1, Name.2, ... and structures as Name.N.Member.
type query url.Values

func (q query) get(name string) string {
	return url.Values(q).Get(name)
}

// indices returns the sorted distinct N of every key of the form prefix.N
// or prefix.N.rest.
func (q query) indices(prefix string) []int {
	var out []int
	for key := range q {
		rest, ok := strings.CutPrefix(key, prefix+".")
		if !ok {
			continue
		}
		head, _, _ := strings.Cut(rest, ".")
		n, err := strconv.Atoi(head)
		if err != nil || slices.Contains(out, n) {
			continue
		}
		out = append(out, n)
	}
	slices.Sort(out)
	return out
}

// list returns the values of prefix.1, prefix.2, ... in index order.
func (q query) list(prefix string) []string {
	var out []string
	for _, n := range q.indices(prefix) {
		if v, ok := q[fmt.Sprintf("%s.%d", prefix, n)]; ok && len(v) > 0 {
			out = append(out, v[0])
		}
	}
	return out
}

// filters decodes Filter.N.Name / Filter.N.Value.M.
func (q query) filters() []ec2sim.Filter {
	var out []ec2sim.Filter
	for _, n := range q.indices("Filter") {
		out = append(out, ec2sim.Filter{
			Name:   q.get(fmt.Sprintf("Filter.%d.Name", n)),
			Values: q.list(fmt.Sprintf("Filter.%d.Value", n)),
		})
	}
	return out
}

// tagSpecs decodes TagSpecification.N.Tag.M.Key/Value for resourceType.
// Specifications without a ResourceType apply to any resource.
func (q query) tagSpecs(resourceType string) tags.Set {
	var out []tags.Tag
	for _, n := range q.indices("TagSpecification") {
		rt := q.get(fmt.Sprintf("TagSpecification.%d.ResourceType", n))
		if rt != "" && rt != resourceType {
			continue
		}
		prefix := fmt.Sprintf("TagSpecification.%d.Tag", n)
		for _, m := range q.indices(prefix) {
			key := q.get(fmt.Sprintf("%s.%d.Key", prefix, m))
			if key == "" {
				continue
			}
			out = append(out, tags.Tag{Key: key, Value: q.get(fmt.Sprintf("%s.%d.Value", prefix, m))})
		}
	}
	return tags.New(out...)
}
