package efssim

import (
	"fmt"
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/nicholasgasior/efsim/internal/apierr"
	"github.com/nicholasgasior/efsim/internal/identity"
	"github.com/nicholasgasior/efsim/internal/tags"
)

const maxCreationTokenLen = 64

// CreateFileSystemInput holds the parameters for CreateFileSystem.
type CreateFileSystemInput struct {
	CreationToken                string
	PerformanceMode              string
	ThroughputMode               string
	ProvisionedThroughputInMibps float64
	Encrypted                    bool
	KMSKeyID                     string
	AvailabilityZoneName         string
	Backup                       bool
	Tags                         tags.Set
}

// CreateFileSystem creates a file system. Creation tokens are idempotency
// keys: reusing one fails with FileSystemAlreadyExists carrying the id of
// the existing file system.
func (b *Backend) CreateFileSystem(in CreateFileSystemInput) (FileSystem, error) {
	if err := b.validateCreateFileSystem(&in); err != nil {
		return FileSystem{}, err
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	for _, id := range b.fsOrder {
		if fs := b.fileSystems[id]; fs.CreationToken == in.CreationToken {
			return FileSystem{}, fileSystemAlreadyExists(in.CreationToken, fs.ID)
		}
	}

	id := identity.NewResourceID("fs")
	fs := &FileSystem{
		ID:                           id,
		ARN:                          identity.FileSystemARN(b.region, b.accountID, id),
		CreationToken:                in.CreationToken,
		OwnerID:                      b.accountID,
		Name:                         in.Tags.Name(),
		CreationTime:                 time.Now().UTC().Truncate(time.Second),
		LifeCycleState:               StateAvailable,
		SizeInBytes:                  emptyFileSystemBytes,
		PerformanceMode:              in.PerformanceMode,
		ThroughputMode:               in.ThroughputMode,
		ProvisionedThroughputInMibps: in.ProvisionedThroughputInMibps,
		Encrypted:                    in.Encrypted,
		KMSKeyID:                     in.KMSKeyID,
		AvailabilityZoneName:         in.AvailabilityZoneName,
		Backup:                       in.Backup,
		Tags:                         in.Tags.Clone(),
	}
	if in.AvailabilityZoneName != "" {
		fs.AvailabilityZoneID, _ = b.network.AvailabilityZoneID(in.AvailabilityZoneName)
	}
	b.fileSystems[id] = fs
	b.fsOrder = append(b.fsOrder, id)
	return fs.snapshot(), nil
}

// validateCreateFileSystem checks the input and fills in defaults.
func (b *Backend) validateCreateFileSystem(in *CreateFileSystemInput) error {
	if in.CreationToken == "" {
		return badRequest("CreationToken is required.")
	}
	if len(in.CreationToken) > maxCreationTokenLen {
		return badRequest("CreationToken must be at most %d characters.", maxCreationTokenLen)
	}

	switch in.PerformanceMode {
	case "":
		in.PerformanceMode = PerformanceGeneralPurpose
	case PerformanceGeneralPurpose, PerformanceMaxIO:
	default:
		return badRequest("Invalid PerformanceMode '%s'.", in.PerformanceMode)
	}

	switch in.ThroughputMode {
	case "":
		in.ThroughputMode = ThroughputBursting
	case ThroughputBursting, ThroughputProvisioned, ThroughputElastic:
	default:
		return badRequest("Invalid ThroughputMode '%s'.", in.ThroughputMode)
	}
	if in.ThroughputMode == ThroughputProvisioned && in.ProvisionedThroughputInMibps <= 0 {
		return badRequest("ProvisionedThroughputInMibps is required when ThroughputMode is provisioned.")
	}
	if in.ThroughputMode != ThroughputProvisioned && in.ProvisionedThroughputInMibps != 0 {
		return badRequest("ProvisionedThroughputInMibps can only be set when ThroughputMode is provisioned.")
	}

	if in.KMSKeyID != "" && !in.Encrypted {
		return badRequest("KmsKeyId can only be set on an encrypted file system.")
	}
	if in.Encrypted && in.KMSKeyID == "" {
		in.KMSKeyID = fmt.Sprintf("arn:aws:kms:%s:%s:alias/aws/elasticfilesystem", b.region, b.accountID)
	}

	if in.AvailabilityZoneName != "" {
		if _, ok := b.network.AvailabilityZoneID(in.AvailabilityZoneName); !ok {
			return badRequest("Availability zone '%s' is not valid in region %s.", in.AvailabilityZoneName, b.region)
		}
		if in.PerformanceMode == PerformanceMaxIO {
			return badRequest("One Zone file systems only support the generalPurpose performance mode.")
		}
	}
	return nil
}

// DescribeFileSystemsInput selects file systems. FileSystemID accepts an id
// or a file system ARN.
type DescribeFileSystemsInput struct {
	FileSystemID  string
	CreationToken string
	Marker        string
	MaxItems      int32
}

// FileSystemPage is one page of DescribeFileSystems results.
type FileSystemPage struct {
	FileSystems []FileSystem
	Marker      string
	NextMarker  string
}

// DescribeFileSystems lists file systems in creation order.
func (b *Backend) DescribeFileSystems(in DescribeFileSystemsInput) (FileSystemPage, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	id := resolveFileSystemID(in.FileSystemID)
	if id != "" {
		if _, ok := b.fileSystems[id]; !ok {
			return FileSystemPage{}, fileSystemNotFound(in.FileSystemID)
		}
	}

	var matched []string
	for _, fsID := range b.fsOrder {
		fs := b.fileSystems[fsID]
		if id != "" && fs.ID != id {
			continue
		}
		if in.CreationToken != "" && fs.CreationToken != in.CreationToken {
			continue
		}
		matched = append(matched, fsID)
	}

	page, next, err := paginate(matched, in.Marker, in.MaxItems)
	if err != nil {
		return FileSystemPage{}, err
	}
	out := FileSystemPage{Marker: in.Marker, NextMarker: next}
	for _, fsID := range page {
		out.FileSystems = append(out.FileSystems, b.fileSystems[fsID].snapshot())
	}
	return out, nil
}

// DeleteFileSystem deletes a file system that has no mount targets.
func (b *Backend) DeleteFileSystem(fileSystemID string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := resolveFileSystemID(fileSystemID)
	fs, ok := b.fileSystems[id]
	if !ok {
		return fileSystemNotFound(fileSystemID)
	}
	if fs.NumberOfMountTargets > 0 {
		return apierr.New(http.StatusConflict, CodeFileSystemInUse,
			"File system '%s' has mount targets created in it.", id)
	}

	delete(b.fileSystems, id)
	b.fsOrder = slices.DeleteFunc(b.fsOrder, func(s string) bool { return s == id })
	return nil
}

// resolveFileSystemID accepts either "fs-..." or a file system ARN. Any other
// ARN is returned unchanged so the lookup reports FileSystemNotFound.
func resolveFileSystemID(idOrARN string) string {
	if !strings.HasPrefix(idOrARN, "arn:") {
		return idOrARN
	}
	arn, err := identity.ParseARN(idOrARN)
	if err != nil {
		return idOrARN
	}
	if id, ok := arn.FileSystemID(); ok {
		return id
	}
	return idOrARN
}

func (f *FileSystem) snapshot() FileSystem {
	out := *f
	out.Tags = f.Tags.Clone()
	return out
}
