package efssim

import (
	"net/http"

	"github.com/nicholasgasior/efsim/internal/apierr"
	"github.com/nicholasgasior/efsim/internal/ec2sim"
)

// EFS error codes.
const (
	CodeBadRequest                 = "BadRequest"
	CodeFileSystemAlreadyExists    = "FileSystemAlreadyExists"
	CodeFileSystemNotFound         = "FileSystemNotFound"
	CodeFileSystemInUse            = "FileSystemInUse"
	CodeMountTargetNotFound        = "MountTargetNotFound"
	CodeMountTargetConflict        = "MountTargetConflict"
	CodeSubnetNotFound             = "SubnetNotFound"
	CodeSecurityGroupNotFound      = "SecurityGroupNotFound"
	CodeSecurityGroupLimitExceeded = "SecurityGroupLimitExceeded"
	CodeIPAddressInUse             = "IpAddressInUse"
	CodeNoFreeAddressesInSubnet    = "NoFreeAddressesInSubnet"
	CodeAccessPointNotFound        = "AccessPointNotFound"
)

func badRequest(format string, args ...any) *apierr.Error {
	return apierr.New(http.StatusBadRequest, CodeBadRequest, format, args...)
}

func fileSystemNotFound(id string) *apierr.Error {
	return apierr.New(http.StatusNotFound, CodeFileSystemNotFound, "File system '%s' does not exist.", id)
}

// MountTargetNotFound is the error for an unknown mount target id.
func MountTargetNotFound(id string) *apierr.Error {
	return apierr.New(http.StatusNotFound, CodeMountTargetNotFound, "Mount target '%s' does not exist.", id)
}

func fileSystemAlreadyExists(token, id string) *apierr.Error {
	return apierr.New(http.StatusConflict, CodeFileSystemAlreadyExists,
		"File system with creation token '%s' already exists.", token).With("FileSystemId", id)
}

func securityGroupNotFound(id string) *apierr.Error {
	return apierr.New(http.StatusBadRequest, CodeSecurityGroupNotFound, "Security group '%s' does not exist.", id)
}

func securityGroupLimitExceeded(limit int) *apierr.Error {
	return apierr.New(http.StatusBadRequest, CodeSecurityGroupLimitExceeded,
		"The number of security groups per mount target cannot exceed %d.", limit)
}

// translateNetworkError maps an EC2 error raised while provisioning or
// updating a mount target's network interface to the EFS error a caller of
// the EFS API would see. Unmapped errors pass through unchanged.
func translateNetworkError(err error, subnetID string) error {
	apiErr := apierr.As(err)
	switch apiErr.Code {
	case ec2sim.CodeSubnetNotFound:
		return apierr.New(http.StatusBadRequest, CodeSubnetNotFound, "The subnet ID '%s' does not exist", subnetID)
	case ec2sim.CodeGroupNotFound:
		return apierr.New(http.StatusBadRequest, CodeSecurityGroupNotFound, "%s", apiErr.Message)
	case ec2sim.CodeInvalidParameter:
		return apierr.New(http.StatusBadRequest, CodeSecurityGroupNotFound, "%s", apiErr.Message)
	case ec2sim.CodeAddressInUse:
		return apierr.New(http.StatusConflict, CodeIPAddressInUse, "%s", apiErr.Message)
	case ec2sim.CodeInsufficientAddresses:
		return apierr.New(http.StatusConflict, CodeNoFreeAddressesInSubnet, "%s", apiErr.Message)
	case ec2sim.CodeInvalidParameterValue:
		return apierr.New(http.StatusBadRequest, CodeBadRequest, "%s", apiErr.Message)
	}
	return err
}
