// Package efssim is an in-memory model of the EFS control plane: file
// systems and their mount targets.
//
// Every mount target owns a requester-managed network interface in the
// simulated EC2 backend. The backend keeps the mount target's security
// groups and the interface's groups identical: any change goes to the
// interface first and is only recorded on the mount target once EC2 has
// accepted it.
//
// Lock order is always efssim then ec2sim; ec2sim never calls back.
package efssim

import (
	"sync"
	"time"

	"github.com/nicholasgasior/efsim/internal/ec2sim"
	"github.com/nicholasgasior/efsim/internal/tags"
)

// DefaultMaxSecurityGroups is the AWS limit on groups per mount target.
const DefaultMaxSecurityGroups = 5

// requesterID marks network interfaces created by this service.
const requesterID = "efs"

// Lifecycle states.
const (
	StateAvailable = "available"
)

// Performance and throughput modes.
const (
	PerformanceGeneralPurpose = "generalPurpose"
	PerformanceMaxIO          = "maxIO"
	ThroughputBursting        = "bursting"
	ThroughputProvisioned     = "provisioned"
	ThroughputElastic         = "elastic"
)

// emptyFileSystemBytes is the metered size EFS reports for a new file system.
const emptyFileSystemBytes = 6144

// Network is the slice of the EC2 service that mount targets need.
type Network interface {
	Subnet(id string) (ec2sim.Subnet, error)
	AvailabilityZoneID(zone string) (string, bool)
	SecurityGroups(ids []string) ([]ec2sim.SecurityGroup, error)
	DefaultSecurityGroup(vpcID string) (ec2sim.SecurityGroup, error)
	CreateNetworkInterface(in ec2sim.CreateNetworkInterfaceInput) (ec2sim.NetworkInterface, error)
	SetNetworkInterfaceGroups(id string, groups []string) error
	ReleaseNetworkInterface(id string) error
}

// Compile-time check: the EC2 backend satisfies Network.
var _ Network = (*ec2sim.Backend)(nil)

// FileSystem is an EFS file system.
type FileSystem struct {
	ID                           string
	ARN                          string
	CreationToken                string
	OwnerID                      string
	Name                         string
	CreationTime                 time.Time
	LifeCycleState               string
	NumberOfMountTargets         int32
	SizeInBytes                  int64
	PerformanceMode              string
	ThroughputMode               string
	ProvisionedThroughputInMibps float64
	Encrypted                    bool
	KMSKeyID                     string
	AvailabilityZoneName         string
	AvailabilityZoneID           string
	Backup                       bool
	Tags                         tags.Set
}

// MountTarget is a file system's endpoint in one subnet. SecurityGroups is
// ordered as the caller last supplied it.
type MountTarget struct {
	ID                   string
	FileSystemID         string
	OwnerID              string
	SubnetID             string
	VPCID                string
	IPAddress            string
	NetworkInterfaceID   string
	AvailabilityZoneName string
	AvailabilityZoneID   string
	LifeCycleState       string
	SecurityGroups       []string
}

// Options tunes a Backend.
type Options struct {
	// MaxSecurityGroups caps groups per mount target. Zero means
	// DefaultMaxSecurityGroups.
	MaxSecurityGroups int
}

// Backend is the simulated EFS service for one account and region.
type Backend struct {
	mu        sync.RWMutex
	region    string
	accountID string
	network   Network
	maxGroups int

	fileSystems  map[string]*FileSystem
	fsOrder      []string
	mountTargets map[string]*MountTarget
	mtOrder      []string
}

// New creates an empty EFS backend whose mount targets live in network.
func New(region, accountID string, network Network, opts Options) *Backend {
	maxGroups := opts.MaxSecurityGroups
	if maxGroups <= 0 {
		maxGroups = DefaultMaxSecurityGroups
	}
	return &Backend{
		region:       region,
		accountID:    accountID,
		network:      network,
		maxGroups:    maxGroups,
		fileSystems:  make(map[string]*FileSystem),
		mountTargets: make(map[string]*MountTarget),
	}
}

// MountTargetCount returns the number of mount targets across all file
// systems.
func (b *Backend) MountTargetCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.mountTargets)
}
