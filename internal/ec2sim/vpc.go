package ec2sim

import (
	"net/netip"

	"github.com/nicholasgasior/efsim/internal/identity"
	"github.com/nicholasgasior/efsim/internal/tags"
)

// VPC and subnet netmasks must fall within this range.
const (
	minPrefixBits = 16
	maxPrefixBits = 28
)

// CreateVPCInput holds the parameters for CreateVPC.
type CreateVPCInput struct {
	CIDRBlock string
	Tags      tags.Set
}

// CreateVPC creates a VPC together with its default security group.
func (b *Backend) CreateVPC(in CreateVPCInput) (VPC, error) {
	if in.CIDRBlock == "" {
		return VPC{}, missingParameter("cidrBlock")
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	vpc, err := b.createVPCLocked(in.CIDRBlock, in.Tags)
	if err != nil {
		return VPC{}, err
	}
	return vpc.snapshot(), nil
}

func (b *Backend) createVPCLocked(cidr string, t tags.Set) (*VPC, error) {
	prefix, err := parseBlock(cidr)
	if err != nil {
		return nil, err
	}

	vpc := &VPC{
		ID:              identity.NewResourceID("vpc"),
		CIDRBlock:       prefix.String(),
		State:           "available",
		OwnerID:         b.accountID,
		DHCPOptionsID:   identity.NewResourceID("dopt"),
		InstanceTenancy: "default",
		Tags:            t.Clone(),
		prefix:          prefix,
	}
	b.vpcs[vpc.ID] = vpc
	b.vpcOrder = append(b.vpcOrder, vpc.ID)

	b.createGroupLocked(vpc.ID, defaultGroupName, defaultGroupDesc, nil)
	return vpc, nil
}

// DescribeVPCs returns VPCs matching ids and filters, in creation order.
// Every id in ids must exist.
func (b *Backend) DescribeVPCs(ids []string, filters []Filter) ([]VPC, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for _, id := range ids {
		if _, ok := b.vpcs[id]; !ok {
			return nil, vpcNotFound(id)
		}
	}

	var out []VPC
	for _, id := range b.vpcOrder {
		vpc := b.vpcs[id]
		if !matchIDs(ids, id) {
			continue
		}
		ok, err := matchFilters(filters, vpc.filterValues, vpc.Tags)
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, vpc.snapshot())
		}
	}
	return out, nil
}

// DefaultVPC returns the account's default VPC.
func (b *Backend) DefaultVPC() (VPC, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	vpc := b.defaultVPCLocked()
	if vpc == nil {
		return VPC{}, clientError("VPCIdNotSpecified", "No default VPC for this user")
	}
	return vpc.snapshot(), nil
}

func (b *Backend) defaultVPCLocked() *VPC {
	for _, id := range b.vpcOrder {
		if b.vpcs[id].IsDefault {
			return b.vpcs[id]
		}
	}
	return nil
}

func (v *VPC) snapshot() VPC {
	out := *v
	out.Tags = v.Tags.Clone()
	return out
}

func (v *VPC) filterValues(name string) ([]string, bool) {
	switch name {
	case "vpc-id":
		return []string{v.ID}, true
	case "cidr", "cidr-block", "cidrBlock":
		return []string{v.CIDRBlock}, true
	case "is-default", "isDefault":
		return []string{boolString(v.IsDefault)}, true
	case "state":
		return []string{v.State}, true
	case "owner-id":
		return []string{v.OwnerID}, true
	case "dhcp-options-id":
		return []string{v.DHCPOptionsID}, true
	}
	return nil, false
}

// parseBlock parses an IPv4 CIDR block in canonical form with a netmask
// between /16 and /28.
func parseBlock(cidr string) (netip.Prefix, error) {
	prefix, err := netip.ParsePrefix(cidr)
	if err != nil || !prefix.Addr().Is4() || prefix != prefix.Masked() {
		return netip.Prefix{}, invalidCIDR(cidr)
	}
	if prefix.Bits() < minPrefixBits || prefix.Bits() > maxPrefixBits {
		return netip.Prefix{}, clientError(CodeInvalidParameterValue,
			"The CIDR '%s' is invalid. Netmask must be between /%d and /%d.", cidr, minPrefixBits, maxPrefixBits)
	}
	return prefix, nil
}
