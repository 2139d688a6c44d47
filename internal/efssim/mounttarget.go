package efssim

import (
	"fmt"
	"net/http"
	"slices"

	"github.com/nicholasgasior/efsim/internal/apierr"
	"github.com/nicholasgasior/efsim/internal/ec2sim"
	"github.com/nicholasgasior/efsim/internal/identity"
)

// CreateMountTargetInput holds the parameters for CreateMountTarget.
type CreateMountTargetInput struct {
	FileSystemID   string
	SubnetID       string
	IPAddress      string
	SecurityGroups []string
}

// CreateMountTarget creates a mount target and its network interface. A file
// system gets at most one mount target per availability zone, and all of its
// mount targets must live in the same VPC. Without SecurityGroups the VPC's
// default group is used.
func (b *Backend) CreateMountTarget(in CreateMountTargetInput) (MountTarget, error) {
	if in.FileSystemID == "" {
		return MountTarget{}, badRequest("FileSystemId is required.")
	}
	if in.SubnetID == "" {
		return MountTarget{}, badRequest("SubnetId is required.")
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	fs, ok := b.fileSystems[resolveFileSystemID(in.FileSystemID)]
	if !ok {
		return MountTarget{}, fileSystemNotFound(in.FileSystemID)
	}
	subnet, err := b.network.Subnet(in.SubnetID)
	if err != nil {
		return MountTarget{}, translateNetworkError(err, in.SubnetID)
	}

	for _, id := range b.mtOrder {
		mt := b.mountTargets[id]
		if mt.FileSystemID != fs.ID {
			continue
		}
		if mt.VPCID != subnet.VPCID {
			return MountTarget{}, apierr.New(http.StatusConflict, CodeMountTargetConflict,
				"Subnet '%s' is not in VPC '%s' of the existing mount targets for file system '%s'.",
				subnet.ID, mt.VPCID, fs.ID)
		}
		if mt.AvailabilityZoneName == subnet.AvailabilityZone {
			return MountTarget{}, apierr.New(http.StatusConflict, CodeMountTargetConflict,
				"File system '%s' already has a mount target in availability zone '%s'.",
				fs.ID, subnet.AvailabilityZone)
		}
	}
	if fs.AvailabilityZoneName != "" && fs.AvailabilityZoneName != subnet.AvailabilityZone {
		return MountTarget{}, badRequest("One Zone file system '%s' can only have a mount target in '%s'.",
			fs.ID, fs.AvailabilityZoneName)
	}

	groups, err := b.resolveGroups(subnet.VPCID, in.SecurityGroups)
	if err != nil {
		return MountTarget{}, err
	}

	id := identity.NewResourceID("fsmt")
	eni, err := b.network.CreateNetworkInterface(ec2sim.CreateNetworkInterfaceInput{
		SubnetID:         subnet.ID,
		Description:      fmt.Sprintf("EFS mount target for %s (%s)", fs.ID, id),
		PrivateIPAddress: in.IPAddress,
		Groups:           groups,
		RequesterID:      requesterID,
	})
	if err != nil {
		return MountTarget{}, translateNetworkError(err, in.SubnetID)
	}

	mt := &MountTarget{
		ID:                   id,
		FileSystemID:         fs.ID,
		OwnerID:              b.accountID,
		SubnetID:             subnet.ID,
		VPCID:                subnet.VPCID,
		IPAddress:            eni.PrivateIPAddress,
		NetworkInterfaceID:   eni.ID,
		AvailabilityZoneName: subnet.AvailabilityZone,
		AvailabilityZoneID:   subnet.AvailabilityZoneID,
		LifeCycleState:       StateAvailable,
		SecurityGroups:       slices.Clone(eni.Groups),
	}
	b.mountTargets[id] = mt
	b.mtOrder = append(b.mtOrder, id)
	fs.NumberOfMountTargets++
	return mt.snapshot(), nil
}

// DescribeMountTargetsInput selects mount targets. Exactly one of
// MountTargetID, FileSystemID and AccessPointID must be set.
type DescribeMountTargetsInput struct {
	MountTargetID string
	FileSystemID  string
	AccessPointID string
	Marker        string
	MaxItems      int32
}

// MountTargetPage is one page of DescribeMountTargets results.
type MountTargetPage struct {
	MountTargets []MountTarget
	Marker       string
	NextMarker   string
}

// DescribeMountTargets lists mount targets in creation order.
func (b *Backend) DescribeMountTargets(in DescribeMountTargetsInput) (MountTargetPage, error) {
	selectors := 0
	for _, s := range []string{in.MountTargetID, in.FileSystemID, in.AccessPointID} {
		if s != "" {
			selectors++
		}
	}
	if selectors != 1 {
		return MountTargetPage{}, badRequest("Must specify exactly one mutually exclusive parameter.")
	}
	if in.AccessPointID != "" {
		return MountTargetPage{}, apierr.New(http.StatusNotFound, CodeAccessPointNotFound,
			"Access point '%s' does not exist.", in.AccessPointID)
	}

	b.mu.RLock()
	defer b.mu.RUnlock()

	var matched []string
	switch {
	case in.MountTargetID != "":
		if _, ok := b.mountTargets[in.MountTargetID]; !ok {
			return MountTargetPage{}, MountTargetNotFound(in.MountTargetID)
		}
		matched = []string{in.MountTargetID}
	default:
		fsID := resolveFileSystemID(in.FileSystemID)
		if _, ok := b.fileSystems[fsID]; !ok {
			return MountTargetPage{}, fileSystemNotFound(in.FileSystemID)
		}
		for _, id := range b.mtOrder {
			if b.mountTargets[id].FileSystemID == fsID {
				matched = append(matched, id)
			}
		}
	}

	page, next, err := paginate(matched, in.Marker, in.MaxItems)
	if err != nil {
		return MountTargetPage{}, err
	}
	out := MountTargetPage{Marker: in.Marker, NextMarker: next}
	for _, id := range page {
		out.MountTargets = append(out.MountTargets, b.mountTargets[id].snapshot())
	}
	return out, nil
}

// DeleteMountTarget deletes a mount target and releases its network
// interface.
func (b *Backend) DeleteMountTarget(id string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	mt, ok := b.mountTargets[id]
	if !ok {
		return MountTargetNotFound(id)
	}
	if err := b.network.ReleaseNetworkInterface(mt.NetworkInterfaceID); err != nil &&
		!apierr.HasCode(err, ec2sim.CodeNetworkInterfaceNotFound) {
		return fmt.Errorf("release network interface %s: %w", mt.NetworkInterfaceID, err)
	}

	delete(b.mountTargets, id)
	b.mtOrder = slices.DeleteFunc(b.mtOrder, func(s string) bool { return s == id })
	if fs, ok := b.fileSystems[mt.FileSystemID]; ok {
		fs.NumberOfMountTargets--
	}
	return nil
}

// DescribeMountTargetSecurityGroups returns a mount target's security groups
// in the order they were last set.
func (b *Backend) DescribeMountTargetSecurityGroups(id string) ([]string, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	mt, ok := b.mountTargets[id]
	if !ok {
		return nil, MountTargetNotFound(id)
	}
	return slices.Clone(mt.SecurityGroups), nil
}

// ModifyMountTargetSecurityGroups replaces a mount target's security groups.
// The unknown-id check comes before any validation of groups. The network
// interface is updated first; if EC2 rejects the change the mount target is
// left untouched, so the two never disagree.
func (b *Backend) ModifyMountTargetSecurityGroups(id string, groups []string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	mt, ok := b.mountTargets[id]
	if !ok {
		return MountTargetNotFound(id)
	}
	if len(groups) == 0 {
		return badRequest("At least one security group must be specified.")
	}

	resolved, err := b.resolveGroups(mt.VPCID, groups)
	if err != nil {
		return err
	}
	if err := b.network.SetNetworkInterfaceGroups(mt.NetworkInterfaceID, resolved); err != nil {
		return translateNetworkError(err, mt.SubnetID)
	}
	mt.SecurityGroups = resolved
	return nil
}

// resolveGroups validates a group list for a mount target in vpcID:
// duplicates are dropped keeping first occurrence, the count is capped, and
// every group must exist in vpcID. An empty list resolves to the VPC's
// default group.
func (b *Backend) resolveGroups(vpcID string, groups []string) ([]string, error) {
	if len(groups) == 0 {
		def, err := b.network.DefaultSecurityGroup(vpcID)
		if err != nil {
			return nil, translateNetworkError(err, "")
		}
		return []string{def.ID}, nil
	}

	var unique []string
	for _, g := range groups {
		if !slices.Contains(unique, g) {
			unique = append(unique, g)
		}
	}
	if len(unique) > b.maxGroups {
		return nil, securityGroupLimitExceeded(b.maxGroups)
	}

	found, err := b.network.SecurityGroups(unique)
	if err != nil {
		return nil, translateNetworkError(err, "")
	}
	for _, g := range found {
		if g.VPCID != vpcID {
			return nil, securityGroupNotFound(g.ID)
		}
	}
	return unique, nil
}

func (m *MountTarget) snapshot() MountTarget {
	out := *m
	out.SecurityGroups = slices.Clone(m.SecurityGroups)
	return out
}
