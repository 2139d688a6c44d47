package server

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/nicholasgasior/efsim/internal/apierr"
	"github.com/nicholasgasior/efsim/internal/efssim"
	"github.com/nicholasgasior/efsim/internal/tags"
)

const efsAPIVersion = "/" + EFSAPIVersion

// Wire shapes for the EFS restJson1 protocol. Field names follow the AWS
// model exactly since the SDK matches them by name.

type efsTag struct {
	Key   string `json:"Key"`
	Value string `json:"Value"`
}

type fileSystemSize struct {
	Value           int64 `json:"Value"`
	ValueInIA       int64 `json:"ValueInIA"`
	ValueInStandard int64 `json:"ValueInStandard"`
	ValueInArchive  int64 `json:"ValueInArchive"`
}

type fileSystemProtection struct {
	ReplicationOverwriteProtection string `json:"ReplicationOverwriteProtection"`
}

type fileSystemDescription struct {
	FileSystemID                 string               `json:"FileSystemId"`
	FileSystemArn                string               `json:"FileSystemArn"`
	CreationToken                string               `json:"CreationToken"`
	CreationTime                 int64                `json:"CreationTime"`
	OwnerID                      string               `json:"OwnerId"`
	Name                         string               `json:"Name,omitempty"`
	LifeCycleState               string               `json:"LifeCycleState"`
	NumberOfMountTargets         int32                `json:"NumberOfMountTargets"`
	SizeInBytes                  fileSystemSize       `json:"SizeInBytes"`
	PerformanceMode              string               `json:"PerformanceMode"`
	ThroughputMode               string               `json:"ThroughputMode"`
	ProvisionedThroughputInMibps *float64             `json:"ProvisionedThroughputInMibps,omitempty"`
	Encrypted                    bool                 `json:"Encrypted"`
	KmsKeyID                     string               `json:"KmsKeyId,omitempty"`
	AvailabilityZoneName         string               `json:"AvailabilityZoneName,omitempty"`
	AvailabilityZoneID           string               `json:"AvailabilityZoneId,omitempty"`
	FileSystemProtection         fileSystemProtection `json:"FileSystemProtection"`
	Tags                         []efsTag             `json:"Tags"`
}

type mountTargetDescription struct {
	MountTargetID        string `json:"MountTargetId"`
	FileSystemID         string `json:"FileSystemId"`
	SubnetID             string `json:"SubnetId"`
	VpcID                string `json:"VpcId"`
	LifeCycleState       string `json:"LifeCycleState"`
	IPAddress            string `json:"IpAddress"`
	NetworkInterfaceID   string `json:"NetworkInterfaceId"`
	AvailabilityZoneName string `json:"AvailabilityZoneName"`
	AvailabilityZoneID   string `json:"AvailabilityZoneId"`
	OwnerID              string `json:"OwnerId"`
}

type createFileSystemRequest struct {
	CreationToken                string   `json:"CreationToken"`
	PerformanceMode              string   `json:"PerformanceMode"`
	ThroughputMode               string   `json:"ThroughputMode"`
	ProvisionedThroughputInMibps *float64 `json:"ProvisionedThroughputInMibps"`
	Encrypted                    *bool    `json:"Encrypted"`
	KmsKeyID                     string   `json:"KmsKeyId"`
	AvailabilityZoneName         string   `json:"AvailabilityZoneName"`
	Backup                       *bool    `json:"Backup"`
	Tags                         []efsTag `json:"Tags"`
}

type createMountTargetRequest struct {
	FileSystemID   string   `json:"FileSystemId"`
	SubnetID       string   `json:"SubnetId"`
	IPAddress      string   `json:"IpAddress"`
	SecurityGroups []string `json:"SecurityGroups"`
}

type securityGroupsBody struct {
	SecurityGroups []string `json:"SecurityGroups"`
}

type describeFileSystemsResponse struct {
	Marker      string                  `json:"Marker,omitempty"`
	NextMarker  string                  `json:"NextMarker,omitempty"`
	FileSystems []fileSystemDescription `json:"FileSystems"`
}

type describeMountTargetsResponse struct {
	Marker       string                   `json:"Marker,omitempty"`
	NextMarker   string                   `json:"NextMarker,omitempty"`
	MountTargets []mountTargetDescription `json:"MountTargets"`
}


// efsResult is what an EFS handler produces on success. A nil body answers
// with the status alone.
type efsResult struct {
	status     int
	body       any
	resourceID string
}

type efsHandler func(c *gin.Context) (efsResult, error)

func (s *Server) mountEFSHandlers() {
	g := s.router.Group(efsAPIVersion)

	g.POST("/file-systems", s.efsOp("CreateFileSystem", s.handleCreateFileSystem))
	g.GET("/file-systems", s.efsOp("DescribeFileSystems", s.handleDescribeFileSystems))
	g.DELETE("/file-systems/:id", s.efsOp("DeleteFileSystem", s.handleDeleteFileSystem))

	g.POST("/mount-targets", s.efsOp("CreateMountTarget", s.handleCreateMountTarget))
	g.GET("/mount-targets", s.efsOp("DescribeMountTargets", s.handleDescribeMountTargets))
	g.DELETE("/mount-targets/:id", s.efsOp("DeleteMountTarget", s.handleDeleteMountTarget))
	g.GET("/mount-targets/:id/security-groups", s.efsOp("DescribeMountTargetSecurityGroups", s.handleDescribeMountTargetSecurityGroups))
	g.PUT("/mount-targets/:id/security-groups", s.efsOp("ModifyMountTargetSecurityGroups", s.handleModifyMountTargetSecurityGroups))
}

// efsOp wraps a handler with call recording and restJson1 error rendering.
func (s *Server) efsOp(operation string, h efsHandler) gin.HandlerFunc {
	return func(c *gin.Context) {
		cl := s.begin(c, serviceEFS, operation)
		c.Header("x-amzn-RequestId", cl.requestID)

		res, err := h(c)
		s.finish(cl, res.resourceID, err)
		if err != nil {
			writeEFSError(c, err)
			return
		}
		if res.body == nil {
			c.Status(res.status)
			return
		}
		c.JSON(res.status, res.body)
	}
}

func writeEFSError(c *gin.Context, err error) {
	apiErr := apierr.As(err)
	c.Header("X-Amzn-ErrorType", apiErr.Code)
	body := gin.H{"ErrorCode": apiErr.Code, "Message": apiErr.Message}
	for k, v := range apiErr.Extra {
		body[k] = v
	}
	c.JSON(apiErr.StatusCode, body)
}

func badBody() error {
	return apierr.New(http.StatusBadRequest, efssim.CodeBadRequest, "The request body could not be parsed.")
}

func (s *Server) handleCreateFileSystem(c *gin.Context) (efsResult, error) {
	var req createFileSystemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		return efsResult{}, badBody()
	}

	in := efssim.CreateFileSystemInput{
		CreationToken:        req.CreationToken,
		PerformanceMode:      req.PerformanceMode,
		ThroughputMode:       req.ThroughputMode,
		KMSKeyID:             req.KmsKeyID,
		AvailabilityZoneName: req.AvailabilityZoneName,
		Tags:                 fromEFSTags(req.Tags),
	}
	if req.ProvisionedThroughputInMibps != nil {
		in.ProvisionedThroughputInMibps = *req.ProvisionedThroughputInMibps
	}
	if req.Encrypted != nil {
		in.Encrypted = *req.Encrypted
	}
	if req.Backup != nil {
		in.Backup = *req.Backup
	}

	fs, err := s.efs.CreateFileSystem(in)
	if err != nil {
		return efsResult{}, err
	}
	return efsResult{status: http.StatusCreated, body: toFileSystemDescription(fs), resourceID: fs.ID}, nil
}

func (s *Server) handleDescribeFileSystems(c *gin.Context) (efsResult, error) {
	maxItems, err := maxItemsParam(c)
	if err != nil {
		return efsResult{}, err
	}
	page, err := s.efs.DescribeFileSystems(efssim.DescribeFileSystemsInput{
		FileSystemID:  c.Query("FileSystemId"),
		CreationToken: c.Query("CreationToken"),
		Marker:        c.Query("Marker"),
		MaxItems:      maxItems,
	})
	if err != nil {
		return efsResult{}, err
	}

	out := describeFileSystemsResponse{
		Marker:      page.Marker,
		NextMarker:  page.NextMarker,
		FileSystems: make([]fileSystemDescription, 0, len(page.FileSystems)),
	}
	for _, fs := range page.FileSystems {
		out.FileSystems = append(out.FileSystems, toFileSystemDescription(fs))
	}
	return efsResult{status: http.StatusOK, body: out}, nil
}

func (s *Server) handleDeleteFileSystem(c *gin.Context) (efsResult, error) {
	id := c.Param("id")
	if err := s.efs.DeleteFileSystem(id); err != nil {
		return efsResult{}, err
	}
	return efsResult{status: http.StatusNoContent, resourceID: id}, nil
}

func (s *Server) handleCreateMountTarget(c *gin.Context) (efsResult, error) {
	var req createMountTargetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		return efsResult{}, badBody()
	}
	mt, err := s.efs.CreateMountTarget(efssim.CreateMountTargetInput{
		FileSystemID:   req.FileSystemID,
		SubnetID:       req.SubnetID,
		IPAddress:      req.IPAddress,
		SecurityGroups: req.SecurityGroups,
	})
	if err != nil {
		return efsResult{}, err
	}
	return efsResult{status: http.StatusOK, body: toMountTargetDescription(mt), resourceID: mt.ID}, nil
}

func (s *Server) handleDescribeMountTargets(c *gin.Context) (efsResult, error) {
	maxItems, err := maxItemsParam(c)
	if err != nil {
		return efsResult{}, err
	}
	page, err := s.efs.DescribeMountTargets(efssim.DescribeMountTargetsInput{
		MountTargetID: c.Query("MountTargetId"),
		FileSystemID:  c.Query("FileSystemId"),
		AccessPointID: c.Query("AccessPointId"),
		Marker:        c.Query("Marker"),
		MaxItems:      maxItems,
	})
	if err != nil {
		return efsResult{}, err
	}

	out := describeMountTargetsResponse{
		Marker:       page.Marker,
		NextMarker:   page.NextMarker,
		MountTargets: make([]mountTargetDescription, 0, len(page.MountTargets)),
	}
	for _, mt := range page.MountTargets {
		out.MountTargets = append(out.MountTargets, toMountTargetDescription(mt))
	}
	return efsResult{status: http.StatusOK, body: out}, nil
}

func (s *Server) handleDeleteMountTarget(c *gin.Context) (efsResult, error) {
	id := c.Param("id")
	if err := s.efs.DeleteMountTarget(id); err != nil {
		return efsResult{}, err
	}
	return efsResult{status: http.StatusNoContent, resourceID: id}, nil
}

func (s *Server) handleDescribeMountTargetSecurityGroups(c *gin.Context) (efsResult, error) {
	groups, err := s.efs.DescribeMountTargetSecurityGroups(c.Param("id"))
	if err != nil {
		return efsResult{}, err
	}
	if groups == nil {
		groups = []string{}
	}
	return efsResult{status: http.StatusOK, body: securityGroupsBody{SecurityGroups: groups}}, nil
}

func (s *Server) handleModifyMountTargetSecurityGroups(c *gin.Context) (efsResult, error) {
	id := c.Param("id")
	var req securityGroupsBody
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			return efsResult{}, badBody()
		}
	}
	if err := s.efs.ModifyMountTargetSecurityGroups(id, req.SecurityGroups); err != nil {
		return efsResult{}, err
	}
	return efsResult{status: http.StatusNoContent, resourceID: id}, nil
}

func maxItemsParam(c *gin.Context) (int32, error) {
	raw := c.Query("MaxItems")
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.ParseInt(raw, 10, 32)
	if err != nil || n < 1 {
		return 0, apierr.New(http.StatusBadRequest, efssim.CodeBadRequest, "MaxItems must be a positive integer.")
	}
	return int32(n), nil
}

func toFileSystemDescription(fs efssim.FileSystem) fileSystemDescription {
	out := fileSystemDescription{
		FileSystemID:         fs.ID,
		FileSystemArn:        fs.ARN,
		CreationToken:        fs.CreationToken,
		CreationTime:         fs.CreationTime.Unix(),
		OwnerID:              fs.OwnerID,
		Name:                 fs.Name,
		LifeCycleState:       fs.LifeCycleState,
		NumberOfMountTargets: fs.NumberOfMountTargets,
		SizeInBytes: fileSystemSize{
			Value:           fs.SizeInBytes,
			ValueInStandard: fs.SizeInBytes,
		},
		PerformanceMode:      fs.PerformanceMode,
		ThroughputMode:       fs.ThroughputMode,
		Encrypted:            fs.Encrypted,
		KmsKeyID:             fs.KMSKeyID,
		AvailabilityZoneName: fs.AvailabilityZoneName,
		AvailabilityZoneID:   fs.AvailabilityZoneID,
		FileSystemProtection: fileSystemProtection{ReplicationOverwriteProtection: "ENABLED"},
		Tags:                 toEFSTags(fs.Tags),
	}
	if fs.ThroughputMode == efssim.ThroughputProvisioned {
		v := fs.ProvisionedThroughputInMibps
		out.ProvisionedThroughputInMibps = &v
	}
	return out
}

func toMountTargetDescription(mt efssim.MountTarget) mountTargetDescription {
	return mountTargetDescription{
		MountTargetID:        mt.ID,
		FileSystemID:         mt.FileSystemID,
		SubnetID:             mt.SubnetID,
		VpcID:                mt.VPCID,
		LifeCycleState:       mt.LifeCycleState,
		IPAddress:            mt.IPAddress,
		NetworkInterfaceID:   mt.NetworkInterfaceID,
		AvailabilityZoneName: mt.AvailabilityZoneName,
		AvailabilityZoneID:   mt.AvailabilityZoneID,
		OwnerID:              mt.OwnerID,
	}
}

func toEFSTags(set tags.Set) []efsTag {
	out := make([]efsTag, 0, len(set))
	for _, t := range set {
		out = append(out, efsTag{Key: t.Key, Value: t.Value})
	}
	return out
}

func fromEFSTags(in []efsTag) tags.Set {
	var out []tags.Tag
	for _, t := range in {
		out = append(out, tags.Tag{Key: t.Key, Value: t.Value})
	}
	return tags.New(out...)
}
