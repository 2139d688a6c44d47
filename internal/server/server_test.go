package server

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"slices"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	ec2types "github.com/aws/aws-sdk-go-v2/service/ec2/types"
	"github.com/aws/aws-sdk-go-v2/service/efs"
	efstypes "github.com/aws/aws-sdk-go-v2/service/efs/types"
	"github.com/aws/aws-sdk-go-v2/service/sts"
	"github.com/aws/smithy-go"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nicholasgasior/efsim/internal/logging"
)

const (
	testRegion    = "us-east-1"
	testAccount   = "123456789012"
	testAccessKey = "testing"
)

type testClients struct {
	server *Server
	url    string
	efs    *efs.Client
	ec2    *ec2.Client
	sts    *sts.Client
}

func newTestClients(t *testing.T, opts ...Option) *testClients {
	t.Helper()

	srv := New(Config{Region: testRegion, AccountID: testAccount}, opts...)
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)

	cfg := aws.Config{
		Region:           testRegion,
		Credentials:      credentials.NewStaticCredentialsProvider(testAccessKey, "testing", "testing"),
		RetryMaxAttempts: 1,
	}
	return &testClients{
		server: srv,
		url:    ts.URL,
		efs:    efs.NewFromConfig(cfg, func(o *efs.Options) { o.BaseEndpoint = aws.String(ts.URL) }),
		ec2:    ec2.NewFromConfig(cfg, func(o *ec2.Options) { o.BaseEndpoint = aws.String(ts.URL) }),
		sts:    sts.NewFromConfig(cfg, func(o *sts.Options) { o.BaseEndpoint = aws.String(ts.URL) }),
	}
}

// fileSystem creates a file system with the given token.
func (tc *testClients) fileSystem(t *testing.T, token string) *efs.CreateFileSystemOutput {
	t.Helper()
	out, err := tc.efs.CreateFileSystem(context.Background(), &efs.CreateFileSystemInput{
		CreationToken: aws.String(token),
	})
	require.NoError(t, err)
	return out
}

// firstSubnet returns the first subnet of a fresh account.
func (tc *testClients) firstSubnet(t *testing.T) ec2types.Subnet {
	t.Helper()
	out, err := tc.ec2.DescribeSubnets(context.Background(), &ec2.DescribeSubnetsInput{})
	require.NoError(t, err)
	require.NotEmpty(t, out.Subnets)
	return out.Subnets[0]
}

func (tc *testClients) firstSecurityGroup(t *testing.T) string {
	t.Helper()
	out, err := tc.ec2.DescribeSecurityGroups(context.Background(), &ec2.DescribeSecurityGroupsInput{})
	require.NoError(t, err)
	require.NotEmpty(t, out.SecurityGroups)
	return aws.ToString(out.SecurityGroups[0].GroupId)
}

func requireAPIError(t *testing.T, err error, code, message string) {
	t.Helper()
	require.Error(t, err)
	var apiErr smithy.APIError
	require.True(t, errors.As(err, &apiErr), "expected smithy.APIError, got %T: %v", err, err)
	assert.Equal(t, code, apiErr.ErrorCode())
	if message != "" {
		assert.Equal(t, message, apiErr.ErrorMessage())
	}
}

func TestDescribeMountTargetSecurityGroupsUnknown(t *testing.T) {
	tc := newTestClients(t)

	_, err := tc.efs.DescribeMountTargetSecurityGroups(context.Background(), &efs.DescribeMountTargetSecurityGroupsInput{
		MountTargetId: aws.String("mt-asdf1234asdf"),
	})
	requireAPIError(t, err, "MountTargetNotFound", "Mount target 'mt-asdf1234asdf' does not exist.")

	var notFound *efstypes.MountTargetNotFound
	assert.True(t, errors.As(err, &notFound), "expected typed MountTargetNotFound, got %T", err)
}

func TestDescribeMountTargetSecurityGroups(t *testing.T) {
	tc := newTestClients(t)
	ctx := context.Background()
	fs := tc.fileSystem(t, "foobarbaz")
	subnet := tc.firstSubnet(t)
	sg := tc.firstSecurityGroup(t)

	mt, err := tc.efs.CreateMountTarget(ctx, &efs.CreateMountTargetInput{
		FileSystemId:   fs.FileSystemId,
		SubnetId:       subnet.SubnetId,
		SecurityGroups: []string{sg},
	})
	require.NoError(t, err)

	out, err := tc.efs.DescribeMountTargetSecurityGroups(ctx, &efs.DescribeMountTargetSecurityGroupsInput{
		MountTargetId: mt.MountTargetId,
	})
	require.NoError(t, err)
	assert.Equal(t, []string{sg}, out.SecurityGroups)
}

func TestModifyMountTargetSecurityGroupsUnknown(t *testing.T) {
	tc := newTestClients(t)

	_, err := tc.efs.ModifyMountTargetSecurityGroups(context.Background(), &efs.ModifyMountTargetSecurityGroupsInput{
		MountTargetId:  aws.String("mt-asdf1234asdf"),
		SecurityGroups: []string{},
	})
	requireAPIError(t, err, "MountTargetNotFound", "Mount target 'mt-asdf1234asdf' does not exist.")
}

func TestModifyMountTargetSecurityGroups(t *testing.T) {
	tc := newTestClients(t)
	ctx := context.Background()
	fs := tc.fileSystem(t, "foobarbaz")
	subnet := tc.firstSubnet(t)
	sg := tc.firstSecurityGroup(t)

	mt, err := tc.efs.CreateMountTarget(ctx, &efs.CreateMountTargetInput{
		FileSystemId:   fs.FileSystemId,
		SubnetId:       subnet.SubnetId,
		SecurityGroups: []string{sg},
	})
	require.NoError(t, err)

	var groups []string
	for _, name := range []string{"sg-2", "sg-3"} {
		out, err := tc.ec2.CreateSecurityGroup(ctx, &ec2.CreateSecurityGroupInput{
			VpcId:       subnet.VpcId,
			GroupName:   aws.String(name),
			Description: aws.String(strings.ToUpper(name)),
		})
		require.NoError(t, err)
		groups = append(groups, aws.ToString(out.GroupId))
	}

	_, err = tc.efs.ModifyMountTargetSecurityGroups(ctx, &efs.ModifyMountTargetSecurityGroupsInput{
		MountTargetId:  mt.MountTargetId,
		SecurityGroups: groups,
	})
	require.NoError(t, err)

	out, err := tc.efs.DescribeMountTargetSecurityGroups(ctx, &efs.DescribeMountTargetSecurityGroupsInput{
		MountTargetId: mt.MountTargetId,
	})
	require.NoError(t, err)
	assert.Equal(t, groups, out.SecurityGroups)

	enis, err := tc.ec2.DescribeNetworkInterfaces(ctx, &ec2.DescribeNetworkInterfacesInput{
		NetworkInterfaceIds: []string{aws.ToString(mt.NetworkInterfaceId)},
	})
	require.NoError(t, err)
	require.Len(t, enis.NetworkInterfaces, 1)
	var attached []string
	for _, g := range enis.NetworkInterfaces[0].Groups {
		attached = append(attached, aws.ToString(g.GroupId))
	}
	assert.ElementsMatch(t, groups, attached)
	assert.Equal(t, "sg-2", aws.ToString(enis.NetworkInterfaces[0].Groups[0].GroupName))
}

func TestCreateMountTargetOverWire(t *testing.T) {
	tc := newTestClients(t)
	ctx := context.Background()
	fs := tc.fileSystem(t, "wire")
	subnet := tc.firstSubnet(t)

	mt, err := tc.efs.CreateMountTarget(ctx, &efs.CreateMountTargetInput{
		FileSystemId: fs.FileSystemId,
		SubnetId:     subnet.SubnetId,
	})
	require.NoError(t, err)
	assert.Equal(t, efstypes.LifeCycleStateAvailable, mt.LifeCycleState)
	assert.Equal(t, aws.ToString(subnet.VpcId), aws.ToString(mt.VpcId))
	assert.Equal(t, aws.ToString(subnet.AvailabilityZone), aws.ToString(mt.AvailabilityZoneName))
	assert.Equal(t, testAccount, aws.ToString(mt.OwnerId))

	desc, err := tc.efs.DescribeMountTargets(ctx, &efs.DescribeMountTargetsInput{FileSystemId: fs.FileSystemId})
	require.NoError(t, err)
	require.Len(t, desc.MountTargets, 1)
	if diff := cmp.Diff(aws.ToString(mt.MountTargetId), aws.ToString(desc.MountTargets[0].MountTargetId)); diff != "" {
		t.Errorf("mount target id mismatch (-created +described):\n%s", diff)
	}

	enis, err := tc.ec2.DescribeNetworkInterfaces(ctx, &ec2.DescribeNetworkInterfacesInput{
		Filters: []ec2types.Filter{{Name: aws.String("requester-managed"), Values: []string{"true"}}},
	})
	require.NoError(t, err)
	require.Len(t, enis.NetworkInterfaces, 1)
	eni := enis.NetworkInterfaces[0]
	assert.True(t, aws.ToBool(eni.RequesterManaged))
	assert.Equal(t, aws.ToString(mt.IpAddress), aws.ToString(eni.PrivateIpAddress))
	assert.Contains(t, aws.ToString(eni.Description), aws.ToString(mt.MountTargetId))

	_, err = tc.ec2.ModifyNetworkInterfaceAttribute(ctx, &ec2.ModifyNetworkInterfaceAttributeInput{
		NetworkInterfaceId: eni.NetworkInterfaceId,
		Groups:             []string{tc.firstSecurityGroup(t)},
	})
	requireAPIError(t, err, "OperationNotPermitted", "")
}

func TestFileSystemLifecycleOverWire(t *testing.T) {
	tc := newTestClients(t)
	ctx := context.Background()

	created, err := tc.efs.CreateFileSystem(ctx, &efs.CreateFileSystemInput{
		CreationToken: aws.String("lifecycle"),
		Encrypted:     aws.Bool(true),
		Tags:          []efstypes.Tag{{Key: aws.String("Name"), Value: aws.String("shared")}},
	})
	require.NoError(t, err)
	assert.Equal(t, "shared", aws.ToString(created.Name))
	assert.True(t, aws.ToBool(created.Encrypted))
	assert.Equal(t, efstypes.PerformanceModeGeneralPurpose, created.PerformanceMode)
	assert.WithinDuration(t, time.Now(), aws.ToTime(created.CreationTime), time.Minute)
	require.NotNil(t, created.SizeInBytes)
	assert.EqualValues(t, 6144, created.SizeInBytes.Value)

	_, err = tc.efs.CreateFileSystem(ctx, &efs.CreateFileSystemInput{CreationToken: aws.String("lifecycle")})
	var exists *efstypes.FileSystemAlreadyExists
	require.True(t, errors.As(err, &exists), "expected FileSystemAlreadyExists, got %v", err)
	assert.Equal(t, aws.ToString(created.FileSystemId), aws.ToString(exists.FileSystemId))

	desc, err := tc.efs.DescribeFileSystems(ctx, &efs.DescribeFileSystemsInput{CreationToken: aws.String("lifecycle")})
	require.NoError(t, err)
	require.Len(t, desc.FileSystems, 1)
	assert.Equal(t, aws.ToString(created.FileSystemArn), aws.ToString(desc.FileSystems[0].FileSystemArn))

	_, err = tc.efs.DeleteFileSystem(ctx, &efs.DeleteFileSystemInput{FileSystemId: created.FileSystemId})
	require.NoError(t, err)

	_, err = tc.efs.DescribeFileSystems(ctx, &efs.DescribeFileSystemsInput{FileSystemId: created.FileSystemId})
	var notFound *efstypes.FileSystemNotFound
	require.True(t, errors.As(err, &notFound), "expected FileSystemNotFound, got %v", err)
}

func TestDescribeFileSystemsPaginatorOverWire(t *testing.T) {
	tc := newTestClients(t)
	ctx := context.Background()
	for _, token := range []string{"a", "b", "c"} {
		tc.fileSystem(t, token)
	}

	p := efs.NewDescribeFileSystemsPaginator(tc.efs, &efs.DescribeFileSystemsInput{MaxItems: aws.Int32(2)})
	var tokens []string
	pages := 0
	for p.HasMorePages() {
		page, err := p.NextPage(ctx)
		require.NoError(t, err)
		pages++
		for _, fs := range page.FileSystems {
			tokens = append(tokens, aws.ToString(fs.CreationToken))
		}
	}
	assert.Equal(t, 2, pages)
	assert.Equal(t, []string{"a", "b", "c"}, tokens)
}

func TestEC2ErrorsOverWire(t *testing.T) {
	tc := newTestClients(t)
	ctx := context.Background()

	_, err := tc.ec2.DescribeSubnets(ctx, &ec2.DescribeSubnetsInput{SubnetIds: []string{"subnet-missing"}})
	requireAPIError(t, err, "InvalidSubnetID.NotFound", "")

	_, err = tc.ec2.DescribeNetworkInterfaces(ctx, &ec2.DescribeNetworkInterfacesInput{NetworkInterfaceIds: []string{"eni-missing"}})
	requireAPIError(t, err, "InvalidNetworkInterfaceID.NotFound", "")

	_, err = tc.ec2.CreateSecurityGroup(ctx, &ec2.CreateSecurityGroupInput{
		GroupName:   aws.String("default"),
		Description: aws.String("dup"),
	})
	requireAPIError(t, err, "InvalidGroup.Duplicate", "")
}

func TestEC2NetworkingOverWire(t *testing.T) {
	tc := newTestClients(t)
	ctx := context.Background()

	vpc, err := tc.ec2.CreateVpc(ctx, &ec2.CreateVpcInput{
		CidrBlock: aws.String("10.0.0.0/16"),
		TagSpecifications: []ec2types.TagSpecification{{
			ResourceType: ec2types.ResourceTypeVpc,
			Tags:         []ec2types.Tag{{Key: aws.String("Name"), Value: aws.String("lab")}},
		}},
	})
	require.NoError(t, err)
	vpcID := aws.ToString(vpc.Vpc.VpcId)

	vpcs, err := tc.ec2.DescribeVpcs(ctx, &ec2.DescribeVpcsInput{
		Filters: []ec2types.Filter{{Name: aws.String("tag:Name"), Values: []string{"lab"}}},
	})
	require.NoError(t, err)
	require.Len(t, vpcs.Vpcs, 1)
	assert.Equal(t, vpcID, aws.ToString(vpcs.Vpcs[0].VpcId))
	assert.False(t, aws.ToBool(vpcs.Vpcs[0].IsDefault))

	sn, err := tc.ec2.CreateSubnet(ctx, &ec2.CreateSubnetInput{
		VpcId:            aws.String(vpcID),
		CidrBlock:        aws.String("10.0.1.0/24"),
		AvailabilityZone: aws.String("us-east-1c"),
	})
	require.NoError(t, err)
	assert.EqualValues(t, 251, aws.ToInt32(sn.Subnet.AvailableIpAddressCount))

	eni, err := tc.ec2.CreateNetworkInterface(ctx, &ec2.CreateNetworkInterfaceInput{
		SubnetId:    sn.Subnet.SubnetId,
		Description: aws.String("manual"),
	})
	require.NoError(t, err)
	assert.Equal(t, "10.0.1.4", aws.ToString(eni.NetworkInterface.PrivateIpAddress))
	require.Len(t, eni.NetworkInterface.Groups, 1)
	assert.Equal(t, "default", aws.ToString(eni.NetworkInterface.Groups[0].GroupName))

	_, err = tc.ec2.DeleteSecurityGroup(ctx, &ec2.DeleteSecurityGroupInput{
		GroupId: eni.NetworkInterface.Groups[0].GroupId,
	})
	requireAPIError(t, err, "CannotDelete", "")

	_, err = tc.ec2.DeleteNetworkInterface(ctx, &ec2.DeleteNetworkInterfaceInput{
		NetworkInterfaceId: eni.NetworkInterface.NetworkInterfaceId,
	})
	require.NoError(t, err)
}

func TestGetCallerIdentityOverWire(t *testing.T) {
	tc := newTestClients(t)

	out, err := tc.sts.GetCallerIdentity(context.Background(), &sts.GetCallerIdentityInput{})
	require.NoError(t, err)
	assert.Equal(t, testAccount, aws.ToString(out.Account))
	assert.Equal(t, "arn:aws:iam::123456789012:user/"+testAccessKey, aws.ToString(out.Arn))
	assert.Equal(t, testAccessKey, aws.ToString(out.UserId))
}

func TestCallsAreLoggedAndAudited(t *testing.T) {
	calls := &lockedBuffer{}
	audit := &recordingAuditor{}
	tc := newTestClients(t, WithLogger(logging.NewLogger(calls, false)), WithAuditor(audit))
	ctx := context.Background()

	fs := tc.fileSystem(t, "audited")
	_, err := tc.efs.DescribeMountTargetSecurityGroups(ctx, &efs.DescribeMountTargetSecurityGroupsInput{
		MountTargetId: aws.String("fsmt-missing"),
	})
	require.Error(t, err)

	log := calls.String()
	assert.Contains(t, log, `"operation":"CreateFileSystem"`)
	assert.Contains(t, log, `"error_code":"MountTargetNotFound"`)

	entries := audit.snapshot()
	require.Len(t, entries, 1)
	assert.Equal(t, []string{"efs", "CreateFileSystem", aws.ToString(fs.FileSystemId), "arn:aws:iam::123456789012:user/" + testAccessKey}, entries[0])
}

func TestHealthAndMetrics(t *testing.T) {
	tc := newTestClients(t)
	tc.fileSystem(t, "metrics")

	resp, err := http.Get(tc.url + "/healthz")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = http.Get(tc.url + "/metrics")
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	require.NoError(t, err)
	assert.Contains(t, string(body), `efsim_api_calls_total{code="OK",operation="CreateFileSystem",service="efs"} 1`)
	assert.Contains(t, string(body), "efsim_mount_targets 0")
}

func TestUnknownEC2Action(t *testing.T) {
	tc := newTestClients(t)

	resp, err := http.PostForm(tc.url+"/", map[string][]string{
		"Action":  {"RunInstances"},
		"Version": {"2016-11-15"},
	})
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Contains(t, string(body), "<Code>InvalidAction</Code>")
}

func TestServeShutsDownOnCancel(t *testing.T) {
	srv := New(Config{Region: testRegion, AccountID: testAccount})
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Serve(ctx, ln) }()

	require.Eventually(t, func() bool {
		resp, err := http.Get("http://" + ln.Addr().String() + "/healthz")
		if err != nil {
			return false
		}
		resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 5*time.Second, 20*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("Serve did not return after cancel")
	}
}

type recordingAuditor struct {
	mu      sync.Mutex
	entries [][]string
}

func (r *recordingAuditor) LogCall(service, operation, resourceID, callerARN string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, []string{service, operation, resourceID, callerARN})
	return nil
}

func (r *recordingAuditor) snapshot() [][]string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.entries)
}

// lockedBuffer is a bytes.Buffer safe for the server goroutine to write
// while the test reads.
type lockedBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *lockedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *lockedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func (r *recordingAuditor) Close() error { return nil }
