package aws

import (
	"context"
	"fmt"
	"slices"
	"strings"

	sdkaws "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	"github.com/aws/aws-sdk-go-v2/service/efs"
)

// Verification is the outcome of comparing a mount target's security groups
// with those attached to its network interface. Group lists are sorted.
type Verification struct {
	MountTargetID      string   `json:"mount_target_id"`
	NetworkInterfaceID string   `json:"network_interface_id"`
	MountTargetGroups  []string `json:"mount_target_groups"`
	InterfaceGroups    []string `json:"interface_groups"`
}

// InSync reports whether both sides carry the same set of groups.
func (v *Verification) InSync() bool {
	return slices.Equal(v.MountTargetGroups, v.InterfaceGroups)
}

// DriftError reports a mount target whose security groups differ from its
// network interface's.
type DriftError struct {
	MountTargetID      string
	NetworkInterfaceID string
	// MissingOnInterface are groups EFS reports that the interface lacks.
	MissingOnInterface []string
	// ExtraOnInterface are groups on the interface that EFS does not report.
	ExtraOnInterface []string
}

func (e *DriftError) Error() string {
	var parts []string
	if len(e.MissingOnInterface) > 0 {
		parts = append(parts, "missing on interface: "+strings.Join(e.MissingOnInterface, ", "))
	}
	if len(e.ExtraOnInterface) > 0 {
		parts = append(parts, "extra on interface: "+strings.Join(e.ExtraOnInterface, ", "))
	}
	return fmt.Sprintf("mount target %s security groups differ from network interface %s (%s)",
		e.MountTargetID, e.NetworkInterfaceID, strings.Join(parts, "; "))
}

// SecurityGroupVerifier checks from the outside, through the public EFS and
// EC2 APIs, that a mount target and its network interface agree on their
// security groups.
type SecurityGroupVerifier struct {
	efs MountTargetReader
	ec2 DescribeNetworkInterfacesAPI
}

// NewSecurityGroupVerifier creates a verifier with the given clients.
func NewSecurityGroupVerifier(efsClient MountTargetReader, ec2Client DescribeNetworkInterfacesAPI) *SecurityGroupVerifier {
	return &SecurityGroupVerifier{efs: efsClient, ec2: ec2Client}
}

// Verify describes the mount target, its security groups and its network
// interface. It returns the comparison and, when the sets differ, a
// *DriftError alongside it. Any API failure is returned wrapped with the
// failing call's name.
func (v *SecurityGroupVerifier) Verify(ctx context.Context, mountTargetID string) (*Verification, error) {
	mts, err := v.efs.DescribeMountTargets(ctx, &efs.DescribeMountTargetsInput{
		MountTargetId: sdkaws.String(mountTargetID),
	})
	if err != nil {
		return nil, fmt.Errorf("efs describe-mount-targets: %w", err)
	}
	if len(mts.MountTargets) == 0 {
		return nil, fmt.Errorf("efs describe-mount-targets: no mount target %s returned", mountTargetID)
	}
	eniID := sdkaws.ToString(mts.MountTargets[0].NetworkInterfaceId)
	if eniID == "" {
		return nil, fmt.Errorf("mount target %s has no network interface", mountTargetID)
	}

	sgs, err := v.efs.DescribeMountTargetSecurityGroups(ctx, &efs.DescribeMountTargetSecurityGroupsInput{
		MountTargetId: sdkaws.String(mountTargetID),
	})
	if err != nil {
		return nil, fmt.Errorf("efs describe-mount-target-security-groups: %w", err)
	}

	enis, err := v.ec2.DescribeNetworkInterfaces(ctx, &ec2.DescribeNetworkInterfacesInput{
		NetworkInterfaceIds: []string{eniID},
	})
	if err != nil {
		return nil, fmt.Errorf("ec2 describe-network-interfaces: %w", err)
	}
	if len(enis.NetworkInterfaces) == 0 {
		return nil, fmt.Errorf("ec2 describe-network-interfaces: no interface %s returned", eniID)
	}
	var eniGroups []string
	for _, g := range enis.NetworkInterfaces[0].Groups {
		eniGroups = append(eniGroups, sdkaws.ToString(g.GroupId))
	}

	res := &Verification{
		MountTargetID:      mountTargetID,
		NetworkInterfaceID: eniID,
		MountTargetGroups:  sortedSet(sgs.SecurityGroups),
		InterfaceGroups:    sortedSet(eniGroups),
	}
	if res.InSync() {
		return res, nil
	}
	return res, &DriftError{
		MountTargetID:      mountTargetID,
		NetworkInterfaceID: eniID,
		MissingOnInterface: difference(res.MountTargetGroups, res.InterfaceGroups),
		ExtraOnInterface:   difference(res.InterfaceGroups, res.MountTargetGroups),
	}
}

func sortedSet(in []string) []string {
	out := slices.Clone(in)
	slices.Sort(out)
	return slices.Compact(out)
}

// difference returns the members of a not in b. Both must be sorted.
func difference(a, b []string) []string {
	var out []string
	for _, s := range a {
		if _, found := slices.BinarySearch(b, s); !found {
			out = append(out, s)
		}
	}
	return out
}
