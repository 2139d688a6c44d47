// Package ec2sim is an in-memory model of the EC2 networking resources that
// EFS mount targets depend on: VPCs, subnets, security groups and network
// interfaces.
//
// A fresh Backend looks like a fresh AWS account: one default VPC with a
// default security group and one default subnet per availability zone.
// All methods are safe for concurrent use. Describe methods return copies;
// callers never hold references into backend state.
package ec2sim

import (
	"fmt"
	"net/netip"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/nicholasgasior/efsim/internal/tags"
)

const (
	defaultVPCCIDR    = "172.31.0.0/16"
	defaultGroupName  = "default"
	defaultGroupDesc  = "default VPC security group"
	defaultSubnetBits = 20
	zoneCount         = 6
)

// VPC is a virtual private cloud.
type VPC struct {
	ID              string
	CIDRBlock       string
	State           string
	IsDefault       bool
	OwnerID         string
	DHCPOptionsID   string
	InstanceTenancy string
	Tags            tags.Set

	prefix netip.Prefix
}

// Subnet is a range of addresses in a VPC, pinned to one availability zone.
type Subnet struct {
	ID                      string
	ARN                     string
	VPCID                   string
	CIDRBlock               string
	AvailabilityZone        string
	AvailabilityZoneID      string
	AvailableIPAddressCount int32
	DefaultForAZ            bool
	MapPublicIPOnLaunch     bool
	State                   string
	OwnerID                 string
	Tags                    tags.Set

	pool *addressPool
}

// SecurityGroup is a named set of access rules scoped to a VPC.
type SecurityGroup struct {
	ID          string
	ARN         string
	Name        string
	Description string
	VPCID       string
	OwnerID     string
	Tags        tags.Set
}

// NetworkInterface is a virtual NIC in a subnet. Interfaces created on behalf
// of another service (EFS mount targets) are RequesterManaged and can only be
// changed through that service.
type NetworkInterface struct {
	ID                 string
	SubnetID           string
	VPCID              string
	AvailabilityZone   string
	AvailabilityZoneID string
	Description        string
	PrivateIPAddress   string
	MACAddress         string
	OwnerID            string
	RequesterID        string
	RequesterManaged   bool
	InterfaceType      string
	Status             string
	SourceDestCheck    bool
	Groups             []string
	Tags               tags.Set
	CreatedAt          time.Time
}

// Filter is an EC2 describe filter. Values within a filter are ORed, filters
// are ANDed.
type Filter struct {
	Name   string
	Values []string
}

// Backend is the simulated EC2 service for one account and region.
type Backend struct {
	mu        sync.RWMutex
	region    string
	accountID string

	vpcs        map[string]*VPC
	vpcOrder    []string
	subnets     map[string]*Subnet
	subnetOrder []string
	groups      map[string]*SecurityGroup
	groupOrder  []string
	enis        map[string]*NetworkInterface
	eniOrder    []string
}

// New creates a Backend for region and accountID, bootstrapped with a
// default VPC, its default security group and a default subnet per zone.
func New(region, accountID string) *Backend {
	b := &Backend{
		region:    region,
		accountID: accountID,
		vpcs:      make(map[string]*VPC),
		subnets:   make(map[string]*Subnet),
		groups:    make(map[string]*SecurityGroup),
		enis:      make(map[string]*NetworkInterface),
	}
	b.bootstrapDefaultVPC()
	return b
}

// Region returns the region the backend simulates.
func (b *Backend) Region() string { return b.region }

// AccountID returns the account that owns every resource in the backend.
func (b *Backend) AccountID() string { return b.accountID }

func (b *Backend) bootstrapDefaultVPC() {
	vpc, err := b.createVPCLocked(defaultVPCCIDR, nil)
	if err != nil {
		panic(fmt.Sprintf("ec2sim: bootstrap default VPC: %v", err))
	}
	vpc.IsDefault = true

	base := vpc.prefix.Addr().As4()
	for i := 0; i < zoneCount; i++ {
		// 172.31.0.0/20, 172.31.16.0/20, 172.31.32.0/20, ...
		addr := base
		addr[2] = byte(i * 16)
		cidr := netip.PrefixFrom(netip.AddrFrom4(addr), defaultSubnetBits).String()
		sn, err := b.createSubnetLocked(vpc, cidr, b.zoneName(i), nil)
		if err != nil {
			panic(fmt.Sprintf("ec2sim: bootstrap default subnet %s: %v", cidr, err))
		}
		sn.DefaultForAZ = true
		sn.MapPublicIPOnLaunch = true
	}
}

// zoneName returns the name of the i-th availability zone, e.g. us-east-1a.
func (b *Backend) zoneName(i int) string {
	return b.region + string(rune('a'+i))
}

// zoneIndex returns the index of a zone name in this region, or -1.
func (b *Backend) zoneIndex(zone string) int {
	for i := 0; i < zoneCount; i++ {
		if b.zoneName(i) == zone {
			return i
		}
	}
	return -1
}

// zoneID returns the zone id for the i-th zone, e.g. use1-az1 for us-east-1a.
func (b *Backend) zoneID(i int) string {
	var abbrev strings.Builder
	for n, part := range strings.Split(b.region, "-") {
		if part == "" {
			continue
		}
		if n == 0 || (part[0] >= '0' && part[0] <= '9') {
			abbrev.WriteString(part)
			continue
		}
		abbrev.WriteByte(part[0])
	}
	return fmt.Sprintf("%s-az%d", abbrev.String(), i+1)
}

// matchIDs reports whether id passes an optional id list.
func matchIDs(ids []string, id string) bool {
	return len(ids) == 0 || slices.Contains(ids, id)
}

// AvailabilityZoneID returns the zone id for a zone name in this region.
func (b *Backend) AvailabilityZoneID(zone string) (string, bool) {
	i := b.zoneIndex(zone)
	if i < 0 {
		return "", false
	}
	return b.zoneID(i), true
}
