package aws

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/service/ec2"
)

// DescribeNetworkInterfacesAPI defines the subset of the EC2 API used to read
// the security groups attached to a mount target's network interface.
type DescribeNetworkInterfacesAPI interface {
	DescribeNetworkInterfaces(ctx context.Context, params *ec2.DescribeNetworkInterfacesInput, optFns ...func(*ec2.Options)) (*ec2.DescribeNetworkInterfacesOutput, error)
}

// Compile-time check: ec2.Client satisfies the interface.
var _ DescribeNetworkInterfacesAPI = (*ec2.Client)(nil)
