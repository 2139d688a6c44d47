package server

import (
	"net/url"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/nicholasgasior/efsim/internal/ec2sim"
	"github.com/nicholasgasior/efsim/internal/tags"
)

func TestQueryList(t *testing.T) {
	q := query(url.Values{
		"GroupId.2":  {"sg-b"},
		"GroupId.10": {"sg-c"},
		"GroupId.1":  {"sg-a"},
		"GroupIds":   {"ignored"},
		"GroupId.x":  {"ignored"},
	})

	if diff := cmp.Diff([]string{"sg-a", "sg-b", "sg-c"}, q.list("GroupId")); diff != "" {
		t.Errorf("list mismatch (-want +got):\n%s", diff)
	}
	if got := q.list("SubnetId"); got != nil {
		t.Errorf("list of absent prefix = %v, want nil", got)
	}
}

func TestQueryFilters(t *testing.T) {
	q := query(url.Values{
		"Filter.1.Name":    {"vpc-id"},
		"Filter.1.Value.1": {"vpc-1"},
		"Filter.1.Value.2": {"vpc-2"},
		"Filter.2.Name":    {"tag:Name"},
		"Filter.2.Value.1": {"lab"},
	})

	want := []ec2sim.Filter{
		{Name: "vpc-id", Values: []string{"vpc-1", "vpc-2"}},
		{Name: "tag:Name", Values: []string{"lab"}},
	}
	if diff := cmp.Diff(want, q.filters()); diff != "" {
		t.Errorf("filters mismatch (-want +got):\n%s", diff)
	}
}

func TestQueryTagSpecs(t *testing.T) {
	q := query(url.Values{
		"TagSpecification.1.ResourceType": {"security-group"},
		"TagSpecification.1.Tag.1.Key":    {"Name"},
		"TagSpecification.1.Tag.1.Value":  {"web"},
		"TagSpecification.1.Tag.2.Key":    {"env"},
		"TagSpecification.1.Tag.2.Value":  {"dev"},
		"TagSpecification.2.ResourceType": {"vpc"},
		"TagSpecification.2.Tag.1.Key":    {"other"},
		"TagSpecification.2.Tag.1.Value":  {"x"},
	})

	want := tags.Set{{Key: "Name", Value: "web"}, {Key: "env", Value: "dev"}}
	if diff := cmp.Diff(want, q.tagSpecs("security-group")); diff != "" {
		t.Errorf("tags mismatch (-want +got):\n%s", diff)
	}
	if got := q.tagSpecs("subnet"); len(got) != 0 {
		t.Errorf("tags for unrelated resource = %v, want none", got)
	}
}
