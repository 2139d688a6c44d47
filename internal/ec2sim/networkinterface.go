package ec2sim

import (
	"net/netip"
	"slices"
	"strings"
	"time"

	"github.com/nicholasgasior/efsim/internal/identity"
	"github.com/nicholasgasior/efsim/internal/tags"
)

const (
	statusInUse       = "in-use"
	interfaceTypeENI  = "interface"
	defaultMACPrefix  = "0e"
	maxGroupsPerENI   = 16
	managedMessageFmt = "The network interface '%s' is managed by %s and cannot be changed directly."
)

// CreateNetworkInterfaceInput holds the parameters for CreateNetworkInterface.
// A non-empty RequesterID marks the interface as managed by that service.
type CreateNetworkInterfaceInput struct {
	SubnetID         string
	Description      string
	PrivateIPAddress string
	Groups           []string
	RequesterID      string
	Tags             tags.Set
}

// CreateNetworkInterface creates an interface in a subnet. Without Groups the
// VPC's default group is attached. Without PrivateIPAddress the lowest free
// address in the subnet is assigned.
func (b *Backend) CreateNetworkInterface(in CreateNetworkInterfaceInput) (NetworkInterface, error) {
	if in.SubnetID == "" {
		return NetworkInterface{}, missingParameter("subnetId")
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	sn, ok := b.subnets[in.SubnetID]
	if !ok {
		return NetworkInterface{}, subnetNotFound(in.SubnetID)
	}
	groups, err := b.resolveGroupsLocked(sn.VPCID, in.SubnetID, in.Groups)
	if err != nil {
		return NetworkInterface{}, err
	}

	id := identity.NewResourceID("eni")
	var addr netip.Addr
	if in.PrivateIPAddress != "" {
		addr, err = netip.ParseAddr(in.PrivateIPAddress)
		if err != nil {
			return NetworkInterface{}, clientError(CodeInvalidParameterValue,
				"Value (%s) for parameter privateIpAddress is invalid.", in.PrivateIPAddress)
		}
		if err := sn.pool.reserve(addr, id); err != nil {
			return NetworkInterface{}, err
		}
	} else {
		addr, err = sn.pool.allocate(id)
		if err != nil {
			return NetworkInterface{}, err
		}
	}

	eni := &NetworkInterface{
		ID:                 id,
		SubnetID:           sn.ID,
		VPCID:              sn.VPCID,
		AvailabilityZone:   sn.AvailabilityZone,
		AvailabilityZoneID: sn.AvailabilityZoneID,
		Description:        in.Description,
		PrivateIPAddress:   addr.String(),
		MACAddress:         macFromID(id),
		OwnerID:            b.accountID,
		RequesterID:        in.RequesterID,
		RequesterManaged:   in.RequesterID != "",
		InterfaceType:      interfaceTypeENI,
		Status:             statusInUse,
		SourceDestCheck:    true,
		Groups:             groups,
		Tags:               in.Tags.Clone(),
		CreatedAt:          time.Now().UTC(),
	}
	b.enis[id] = eni
	b.eniOrder = append(b.eniOrder, id)
	return eni.snapshot(), nil
}

// DescribeNetworkInterfaces returns interfaces matching ids and filters, in
// creation order. Every id in ids must exist.
func (b *Backend) DescribeNetworkInterfaces(ids []string, filters []Filter) ([]NetworkInterface, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for _, id := range ids {
		if _, ok := b.enis[id]; !ok {
			return nil, networkInterfaceNotFound(id)
		}
	}

	var out []NetworkInterface
	for _, id := range b.eniOrder {
		eni := b.enis[id]
		if !matchIDs(ids, id) {
			continue
		}
		ok, err := matchFilters(filters, b.eniFilterValues(eni), eni.Tags)
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, eni.snapshot())
		}
	}
	return out, nil
}

// GroupName returns the name of a security group, or "" if it is unknown.
// Used when rendering an interface's group set.
func (b *Backend) GroupName(id string) string {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if g, ok := b.groups[id]; ok {
		return g.Name
	}
	return ""
}

// ModifyNetworkInterfaceAttribute replaces the groups of a customer-managed
// interface. Requester-managed interfaces are rejected.
func (b *Backend) ModifyNetworkInterfaceAttribute(id string, groups []string) error {
	if len(groups) == 0 {
		return missingParameter("groupSet")
	}
	return b.setGroups(id, groups, false)
}

// SetNetworkInterfaceGroups replaces the groups of any interface, including
// requester-managed ones. It is the path services use to keep the interfaces
// they own in step with their own resources.
func (b *Backend) SetNetworkInterfaceGroups(id string, groups []string) error {
	return b.setGroups(id, groups, true)
}

func (b *Backend) setGroups(id string, groups []string, asRequester bool) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	eni, ok := b.enis[id]
	if !ok {
		return networkInterfaceNotFound(id)
	}
	if eni.RequesterManaged && !asRequester {
		return clientError(CodeOperationNotPermitted, managedMessageFmt, id, eni.RequesterID)
	}
	resolved, err := b.resolveGroupsLocked(eni.VPCID, eni.SubnetID, groups)
	if err != nil {
		return err
	}
	eni.Groups = resolved
	return nil
}

// DeleteNetworkInterface deletes a customer-managed interface.
func (b *Backend) DeleteNetworkInterface(id string) error {
	return b.deleteInterface(id, false)
}

// ReleaseNetworkInterface deletes any interface, including requester-managed
// ones, and returns its address to the subnet.
func (b *Backend) ReleaseNetworkInterface(id string) error {
	return b.deleteInterface(id, true)
}

func (b *Backend) deleteInterface(id string, asRequester bool) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	eni, ok := b.enis[id]
	if !ok {
		return networkInterfaceNotFound(id)
	}
	if eni.RequesterManaged && !asRequester {
		return clientError(CodeOperationNotPermitted, managedMessageFmt, id, eni.RequesterID)
	}

	if sn, ok := b.subnets[eni.SubnetID]; ok {
		if addr, err := netip.ParseAddr(eni.PrivateIPAddress); err == nil {
			sn.pool.release(addr)
		}
	}
	delete(b.enis, id)
	b.eniOrder = slices.DeleteFunc(b.eniOrder, func(s string) bool { return s == id })
	return nil
}

// resolveGroupsLocked validates a group list for an interface in vpcID.
// Duplicates are dropped keeping first occurrence; an empty list resolves
// to the VPC's default group.
func (b *Backend) resolveGroupsLocked(vpcID, subnetID string, groups []string) ([]string, error) {
	if len(groups) == 0 {
		g := b.groupByNameLocked(vpcID, defaultGroupName)
		if g == nil {
			return nil, groupNameNotFound(defaultGroupName)
		}
		return []string{g.ID}, nil
	}

	out := make([]string, 0, len(groups))
	for _, id := range groups {
		if slices.Contains(out, id) {
			continue
		}
		g, ok := b.groups[id]
		if !ok {
			return nil, groupNotFound(id)
		}
		if g.VPCID != vpcID {
			return nil, clientError(CodeInvalidParameter,
				"Security group %s and subnet %s belong to different networks.", id, subnetID)
		}
		out = append(out, id)
	}
	if len(out) > maxGroupsPerENI {
		return nil, clientError("SecurityGroupsPerInterfaceLimitExceeded",
			"The maximum number of security groups per interface has been reached.")
	}
	return out, nil
}

func (b *Backend) eniFilterValues(eni *NetworkInterface) filterValuesFunc {
	return func(name string) ([]string, bool) {
		switch name {
		case "network-interface-id":
			return []string{eni.ID}, true
		case "subnet-id":
			return []string{eni.SubnetID}, true
		case "vpc-id":
			return []string{eni.VPCID}, true
		case "availability-zone":
			return []string{eni.AvailabilityZone}, true
		case "description":
			return []string{eni.Description}, true
		case "private-ip-address", "addresses.private-ip-address":
			return []string{eni.PrivateIPAddress}, true
		case "mac-address":
			return []string{eni.MACAddress}, true
		case "requester-managed":
			return []string{boolString(eni.RequesterManaged)}, true
		case "requester-id":
			return []string{eni.RequesterID}, true
		case "status":
			return []string{eni.Status}, true
		case "owner-id":
			return []string{eni.OwnerID}, true
		case "interface-type":
			return []string{eni.InterfaceType}, true
		case "group-id":
			return slices.Clone(eni.Groups), true
		case "group-name":
			names := make([]string, 0, len(eni.Groups))
			for _, id := range eni.Groups {
				if g, ok := b.groups[id]; ok {
					names = append(names, g.Name)
				}
			}
			return names, true
		}
		return nil, false
	}
}

func (n *NetworkInterface) snapshot() NetworkInterface {
	out := *n
	out.Groups = slices.Clone(n.Groups)
	out.Tags = n.Tags.Clone()
	return out
}

// macFromID derives a stable, locally administered MAC from an interface id.
func macFromID(id string) string {
	hex := strings.TrimPrefix(id, "eni-")
	parts := []string{defaultMACPrefix}
	for i := 0; i+2 <= len(hex) && len(parts) < 6; i += 2 {
		parts = append(parts, hex[i:i+2])
	}
	return strings.Join(parts, ":")
}
