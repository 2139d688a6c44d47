package ec2sim

import (
	"github.com/nicholasgasior/efsim/internal/identity"
	"github.com/nicholasgasior/efsim/internal/tags"
)

// CreateSubnetInput holds the parameters for CreateSubnet.
type CreateSubnetInput struct {
	VPCID            string
	CIDRBlock        string
	AvailabilityZone string
	Tags             tags.Set
}

// CreateSubnet carves a subnet out of a VPC. The block must lie inside the
// VPC's block and must not overlap another subnet. The zone defaults to the
// region's first zone.
func (b *Backend) CreateSubnet(in CreateSubnetInput) (Subnet, error) {
	if in.VPCID == "" {
		return Subnet{}, missingParameter("vpcId")
	}
	if in.CIDRBlock == "" {
		return Subnet{}, missingParameter("cidrBlock")
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	vpc, ok := b.vpcs[in.VPCID]
	if !ok {
		return Subnet{}, vpcNotFound(in.VPCID)
	}

	zone := in.AvailabilityZone
	if zone == "" {
		zone = b.zoneName(0)
	}
	if b.zoneIndex(zone) < 0 {
		return Subnet{}, clientError(CodeInvalidParameterValue,
			"Value (%s) for parameter availabilityZone is invalid. Subnets can currently only be created in the following availability zones: %s through %s.",
			zone, b.zoneName(0), b.zoneName(zoneCount-1))
	}

	sn, err := b.createSubnetLocked(vpc, in.CIDRBlock, zone, in.Tags)
	if err != nil {
		return Subnet{}, err
	}
	return sn.snapshot(), nil
}

func (b *Backend) createSubnetLocked(vpc *VPC, cidr, zone string, t tags.Set) (*Subnet, error) {
	prefix, err := parseBlock(cidr)
	if err != nil {
		return nil, err
	}
	if prefix.Bits() < vpc.prefix.Bits() || !vpc.prefix.Contains(prefix.Addr()) {
		return nil, clientError(CodeSubnetRange, "The CIDR '%s' is invalid.", cidr)
	}
	for _, id := range b.subnetOrder {
		other := b.subnets[id]
		if other.VPCID == vpc.ID && other.pool.prefix.Overlaps(prefix) {
			return nil, clientError(CodeSubnetConflict, "The CIDR '%s' conflicts with another subnet", cidr)
		}
	}

	id := identity.NewResourceID("subnet")
	sn := &Subnet{
		ID:                 id,
		ARN:                identity.SubnetARN(b.region, b.accountID, id),
		VPCID:              vpc.ID,
		CIDRBlock:          prefix.String(),
		AvailabilityZone:   zone,
		AvailabilityZoneID: b.zoneID(b.zoneIndex(zone)),
		State:              "available",
		OwnerID:            b.accountID,
		Tags:               t.Clone(),
		pool:               newAddressPool(prefix),
	}
	b.subnets[id] = sn
	b.subnetOrder = append(b.subnetOrder, id)
	return sn, nil
}

// DescribeSubnets returns subnets matching ids and filters, in creation
// order. Every id in ids must exist.
func (b *Backend) DescribeSubnets(ids []string, filters []Filter) ([]Subnet, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for _, id := range ids {
		if _, ok := b.subnets[id]; !ok {
			return nil, subnetNotFound(id)
		}
	}

	var out []Subnet
	for _, id := range b.subnetOrder {
		sn := b.subnets[id]
		if !matchIDs(ids, id) {
			continue
		}
		ok, err := matchFilters(filters, sn.filterValues, sn.Tags)
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, sn.snapshot())
		}
	}
	return out, nil
}

// Subnet returns a single subnet by id.
func (b *Backend) Subnet(id string) (Subnet, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	sn, ok := b.subnets[id]
	if !ok {
		return Subnet{}, subnetNotFound(id)
	}
	return sn.snapshot(), nil
}

func (s *Subnet) snapshot() Subnet {
	out := *s
	out.AvailableIPAddressCount = s.pool.available()
	out.Tags = s.Tags.Clone()
	out.pool = nil
	return out
}

func (s *Subnet) filterValues(name string) ([]string, bool) {
	switch name {
	case "subnet-id":
		return []string{s.ID}, true
	case "vpc-id":
		return []string{s.VPCID}, true
	case "cidr", "cidr-block", "cidrBlock":
		return []string{s.CIDRBlock}, true
	case "availability-zone", "availabilityZone":
		return []string{s.AvailabilityZone}, true
	case "availability-zone-id":
		return []string{s.AvailabilityZoneID}, true
	case "default-for-az", "defaultForAz":
		return []string{boolString(s.DefaultForAZ)}, true
	case "state":
		return []string{s.State}, true
	case "owner-id":
		return []string{s.OwnerID}, true
	case "subnet-arn":
		return []string{s.ARN}, true
	}
	return nil, false
}
