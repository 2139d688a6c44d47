// Package identity builds and parses the identifiers the simulator hands
// out: resource ids, ARNs, request ids and the caller identity recovered from
// a SigV4 Authorization header.
package identity

import (
	"fmt"
	"strings"
)

// ARN is a parsed Amazon Resource Name.
type ARN struct {
	Partition string
	Service   string
	Region    string
	AccountID string
	Resource  string
}

// String renders the ARN in its canonical colon-separated form.
func (a ARN) String() string {
	return fmt.Sprintf("arn:%s:%s:%s:%s:%s", a.Partition, a.Service, a.Region, a.AccountID, a.Resource)
}

// ResourceID returns the trailing identifier of the resource field.
// For "file-system/fs-123" it returns "fs-123", for "root" it returns "root".
func (a ARN) ResourceID() string {
	segments := strings.Split(a.Resource, "/")
	return segments[len(segments)-1]
}

// ParseARN splits an ARN into its fields. The resource part may itself
// contain colons and slashes.
func ParseARN(arn string) (ARN, error) {
	if arn == "" {
		return ARN{}, fmt.Errorf("empty ARN")
	}

	parts := strings.SplitN(arn, ":", 6)
	if len(parts) < 6 {
		return ARN{}, fmt.Errorf("malformed ARN: expected at least 6 colon-separated fields, got %d", len(parts))
	}
	if parts[0] != "arn" {
		return ARN{}, fmt.Errorf("malformed ARN: must start with \"arn:\"")
	}
	if parts[5] == "" {
		return ARN{}, fmt.Errorf("malformed ARN: empty resource field")
	}

	a := ARN{
		Partition: parts[1],
		Service:   parts[2],
		Region:    parts[3],
		AccountID: parts[4],
		Resource:  parts[5],
	}
	if a.ResourceID() == "" {
		return ARN{}, fmt.Errorf("malformed ARN: empty trailing identifier")
	}
	return a, nil
}

const (
	efsService         = "elasticfilesystem"
	fileSystemResource = "file-system/"
)

// FileSystemARN returns the ARN of an EFS file system.
func FileSystemARN(region, accountID, fileSystemID string) string {
	return ARN{
		Partition: "aws",
		Service:   efsService,
		Region:    region,
		AccountID: accountID,
		Resource:  fileSystemResource + fileSystemID,
	}.String()
}

// FileSystemID returns the file system id named by an EFS file system ARN.
// The second return value is false for any other service or resource type.
func (a ARN) FileSystemID() (string, bool) {
	id, ok := strings.CutPrefix(a.Resource, fileSystemResource)
	if a.Service != efsService || !ok || id == "" || strings.Contains(id, "/") {
		return "", false
	}
	return id, true
}

// SubnetARN returns the ARN of an EC2 subnet.
func SubnetARN(region, accountID, subnetID string) string {
	return ARN{
		Partition: "aws",
		Service:   "ec2",
		Region:    region,
		AccountID: accountID,
		Resource:  "subnet/" + subnetID,
	}.String()
}

// SecurityGroupARN returns the ARN of an EC2 security group.
func SecurityGroupARN(region, accountID, groupID string) string {
	return ARN{
		Partition: "aws",
		Service:   "ec2",
		Region:    region,
		AccountID: accountID,
		Resource:  "security-group/" + groupID,
	}.String()
}

// UserARN returns the IAM user ARN the simulator reports for a caller.
func UserARN(accountID, userName string) string {
	return ARN{
		Partition: "aws",
		Service:   "iam",
		AccountID: accountID,
		Resource:  "user/" + userName,
	}.String()
}
