package ec2sim

import (
	"net/http"

	"github.com/nicholasgasior/efsim/internal/apierr"
)

// EC2 error codes returned by the backend. All EC2 client errors are
// rendered with HTTP 400.
const (
	CodeVPCNotFound              = "InvalidVpcID.NotFound"
	CodeSubnetNotFound           = "InvalidSubnetID.NotFound"
	CodeGroupNotFound            = "InvalidGroup.NotFound"
	CodeGroupDuplicate           = "InvalidGroup.Duplicate"
	CodeNetworkInterfaceNotFound = "InvalidNetworkInterfaceID.NotFound"
	CodeSubnetRange              = "InvalidSubnet.Range"
	CodeSubnetConflict           = "InvalidSubnet.Conflict"
	CodeDependencyViolation      = "DependencyViolation"
	CodeCannotDelete             = "CannotDelete"
	CodeInvalidParameter         = "InvalidParameter"
	CodeInvalidParameterValue    = "InvalidParameterValue"
	CodeMissingParameter         = "MissingParameter"
	CodeAddressInUse             = "InvalidIPAddress.InUse"
	CodeInsufficientAddresses    = "InsufficientFreeAddressesInSubnet"
	CodeOperationNotPermitted    = "OperationNotPermitted"
)

func clientError(code, format string, args ...any) *apierr.Error {
	return apierr.New(http.StatusBadRequest, code, format, args...)
}

func vpcNotFound(id string) *apierr.Error {
	return clientError(CodeVPCNotFound, "The vpc ID '%s' does not exist", id)
}

func subnetNotFound(id string) *apierr.Error {
	return clientError(CodeSubnetNotFound, "The subnet ID '%s' does not exist", id)
}

func groupNotFound(id string) *apierr.Error {
	return clientError(CodeGroupNotFound, "The security group '%s' does not exist", id)
}

func groupNameNotFound(name string) *apierr.Error {
	return clientError(CodeGroupNotFound, "The security group '%s' does not exist in default VPC", name)
}

func networkInterfaceNotFound(id string) *apierr.Error {
	return clientError(CodeNetworkInterfaceNotFound, "The networkInterface ID '%s' does not exist", id)
}

func missingParameter(name string) *apierr.Error {
	return clientError(CodeMissingParameter, "The request must contain the parameter %s", name)
}

func invalidCIDR(cidr string) *apierr.Error {
	return clientError(CodeInvalidParameterValue, "Value (%s) for parameter cidrBlock is invalid. This is not a valid CIDR block.", cidr)
}

func invalidFilter(name string) *apierr.Error {
	return clientError(CodeInvalidParameterValue, "The filter '%s' is invalid", name)
}
