// Package aws provides thin wrappers around the AWS SDK clients the efsim
// CLI uses to talk to a running simulator (or to real AWS).
// This file defines narrow interfaces for the EFS mount-target operations.
// Each interface wraps exactly one AWS SDK method, enabling mock injection
// in tests.
package aws

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/service/efs"
)

// ---------------------------------------------------------------------------
// EFS mount target interfaces
// ---------------------------------------------------------------------------

// DescribeMountTargetsAPI defines the subset of the EFS API used for listing
// and describing mount targets. It also satisfies
// efs.DescribeMountTargetsAPIClient, so it can drive the SDK paginator.
type DescribeMountTargetsAPI interface {
	DescribeMountTargets(ctx context.Context, params *efs.DescribeMountTargetsInput, optFns ...func(*efs.Options)) (*efs.DescribeMountTargetsOutput, error)
}

// DescribeMountTargetSecurityGroupsAPI defines the subset of the EFS API used
// for reading a mount target's security groups.
type DescribeMountTargetSecurityGroupsAPI interface {
	DescribeMountTargetSecurityGroups(ctx context.Context, params *efs.DescribeMountTargetSecurityGroupsInput, optFns ...func(*efs.Options)) (*efs.DescribeMountTargetSecurityGroupsOutput, error)
}

// ModifyMountTargetSecurityGroupsAPI defines the subset of the EFS API used
// for replacing a mount target's security groups.
type ModifyMountTargetSecurityGroupsAPI interface {
	ModifyMountTargetSecurityGroups(ctx context.Context, params *efs.ModifyMountTargetSecurityGroupsInput, optFns ...func(*efs.Options)) (*efs.ModifyMountTargetSecurityGroupsOutput, error)
}

// MountTargetReader combines the two read calls the verifier makes against EFS.
type MountTargetReader interface {
	DescribeMountTargetsAPI
	DescribeMountTargetSecurityGroupsAPI
}

// ---------------------------------------------------------------------------
// Compile-time interface satisfaction checks
// ---------------------------------------------------------------------------

var (
	_ DescribeMountTargetsAPI              = (*efs.Client)(nil)
	_ DescribeMountTargetSecurityGroupsAPI = (*efs.Client)(nil)
	_ ModifyMountTargetSecurityGroupsAPI   = (*efs.Client)(nil)
	_ MountTargetReader                    = (*efs.Client)(nil)
	_ efs.DescribeMountTargetsAPIClient    = (DescribeMountTargetsAPI)(nil)
)
