package ec2sim

import (
	"slices"

	"github.com/nicholasgasior/efsim/internal/identity"
	"github.com/nicholasgasior/efsim/internal/tags"
)

// CreateSecurityGroupInput holds the parameters for CreateSecurityGroup.
// VPCID defaults to the default VPC.
type CreateSecurityGroupInput struct {
	GroupName   string
	Description string
	VPCID       string
	Tags        tags.Set
}

// CreateSecurityGroup creates a security group. Names are unique per VPC.
func (b *Backend) CreateSecurityGroup(in CreateSecurityGroupInput) (SecurityGroup, error) {
	if in.GroupName == "" {
		return SecurityGroup{}, missingParameter("GroupName")
	}
	if in.Description == "" {
		return SecurityGroup{}, missingParameter("GroupDescription")
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	vpcID := in.VPCID
	if vpcID == "" {
		vpc := b.defaultVPCLocked()
		if vpc == nil {
			return SecurityGroup{}, clientError("VPCIdNotSpecified", "No default VPC for this user")
		}
		vpcID = vpc.ID
	}
	if _, ok := b.vpcs[vpcID]; !ok {
		return SecurityGroup{}, vpcNotFound(vpcID)
	}
	if g := b.groupByNameLocked(vpcID, in.GroupName); g != nil {
		return SecurityGroup{}, clientError(CodeGroupDuplicate,
			"The security group '%s' already exists for VPC '%s'", in.GroupName, vpcID)
	}

	return b.createGroupLocked(vpcID, in.GroupName, in.Description, in.Tags).snapshot(), nil
}

func (b *Backend) createGroupLocked(vpcID, name, description string, t tags.Set) *SecurityGroup {
	id := identity.NewResourceID("sg")
	g := &SecurityGroup{
		ID:          id,
		ARN:         identity.SecurityGroupARN(b.region, b.accountID, id),
		Name:        name,
		Description: description,
		VPCID:       vpcID,
		OwnerID:     b.accountID,
		Tags:        t.Clone(),
	}
	b.groups[id] = g
	b.groupOrder = append(b.groupOrder, id)
	return g
}

func (b *Backend) groupByNameLocked(vpcID, name string) *SecurityGroup {
	for _, id := range b.groupOrder {
		g := b.groups[id]
		if g.VPCID == vpcID && g.Name == name {
			return g
		}
	}
	return nil
}

// DescribeSecurityGroups returns groups matching ids, names and filters, in
// creation order. Every requested id and name must exist.
func (b *Backend) DescribeSecurityGroups(ids, names []string, filters []Filter) ([]SecurityGroup, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for _, id := range ids {
		if _, ok := b.groups[id]; !ok {
			return nil, groupNotFound(id)
		}
	}
	for _, name := range names {
		found := slices.ContainsFunc(b.groupOrder, func(id string) bool { return b.groups[id].Name == name })
		if !found {
			return nil, groupNameNotFound(name)
		}
	}

	var out []SecurityGroup
	for _, id := range b.groupOrder {
		g := b.groups[id]
		if !matchIDs(ids, id) || (len(names) > 0 && !slices.Contains(names, g.Name)) {
			continue
		}
		ok, err := matchFilters(filters, g.filterValues, g.Tags)
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, g.snapshot())
		}
	}
	return out, nil
}

// SecurityGroups resolves ids to groups, preserving the order of ids. It
// fails on the first id that does not exist.
func (b *Backend) SecurityGroups(ids []string) ([]SecurityGroup, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	out := make([]SecurityGroup, 0, len(ids))
	for _, id := range ids {
		g, ok := b.groups[id]
		if !ok {
			return nil, groupNotFound(id)
		}
		out = append(out, g.snapshot())
	}
	return out, nil
}

// DefaultSecurityGroup returns the "default" group of a VPC.
func (b *Backend) DefaultSecurityGroup(vpcID string) (SecurityGroup, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if _, ok := b.vpcs[vpcID]; !ok {
		return SecurityGroup{}, vpcNotFound(vpcID)
	}
	g := b.groupByNameLocked(vpcID, defaultGroupName)
	if g == nil {
		return SecurityGroup{}, groupNameNotFound(defaultGroupName)
	}
	return g.snapshot(), nil
}

// DeleteSecurityGroup deletes a group by id, or by name in the default VPC
// when id is empty. A VPC's default group cannot be deleted, and a group
// attached to any network interface cannot be deleted.
func (b *Backend) DeleteSecurityGroup(id, name string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	var g *SecurityGroup
	switch {
	case id != "":
		g = b.groups[id]
		if g == nil {
			return groupNotFound(id)
		}
	case name != "":
		if vpc := b.defaultVPCLocked(); vpc != nil {
			g = b.groupByNameLocked(vpc.ID, name)
		}
		if g == nil {
			return groupNameNotFound(name)
		}
	default:
		return missingParameter("GroupId")
	}

	if g.Name == defaultGroupName {
		return clientError(CodeCannotDelete,
			"the specified group: \"%s\" name: \"%s\" cannot be deleted by a user", g.ID, g.Name)
	}
	for _, eniID := range b.eniOrder {
		if slices.Contains(b.enis[eniID].Groups, g.ID) {
			return clientError(CodeDependencyViolation, "resource %s has a dependent object", g.ID)
		}
	}

	delete(b.groups, g.ID)
	b.groupOrder = slices.DeleteFunc(b.groupOrder, func(s string) bool { return s == g.ID })
	return nil
}

func (g *SecurityGroup) snapshot() SecurityGroup {
	out := *g
	out.Tags = g.Tags.Clone()
	return out
}

func (g *SecurityGroup) filterValues(name string) ([]string, bool) {
	switch name {
	case "group-id":
		return []string{g.ID}, true
	case "group-name":
		return []string{g.Name}, true
	case "vpc-id":
		return []string{g.VPCID}, true
	case "description":
		return []string{g.Description}, true
	case "owner-id":
		return []string{g.OwnerID}, true
	}
	return nil, false
}
