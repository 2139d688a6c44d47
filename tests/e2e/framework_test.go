// Package e2e_test contains end-to-end workflow tests for the efsim CLI.
//
// These tests exercise the full pipeline in-process: the real cobra tree
// (cmd.NewRootCommand) drives real aws-sdk-go-v2 clients over HTTP against
// a real simulator (server.New) behind httptest. Nothing is stubbed; state
// is seeded through the same SDK calls a user would make.
package e2e_test

import (
	"bytes"
	"context"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	"github.com/aws/aws-sdk-go-v2/service/efs"

	"github.com/nicholasgasior/efsim/cmd"
	efsimaws "github.com/nicholasgasior/efsim/internal/aws"
	"github.com/nicholasgasior/efsim/internal/server"
)

const (
	e2eRegion  = "us-east-1"
	e2eAccount = "123456789012"
)

// ---------------------------------------------------------------------------
// testEnv: end-to-end test harness
// ---------------------------------------------------------------------------

// testEnv holds a running simulator and SDK clients pointed at it.
type testEnv struct {
	t      *testing.T
	url    string
	server *server.Server
	efs    *efs.Client
	ec2    *ec2.Client
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	t.Setenv("EFSIM_CONFIG_DIR", t.TempDir())
	t.Setenv("EFSIM_NO_SPINNER", "1")
	t.Setenv("AWS_ACCESS_KEY_ID", "")
	t.Setenv("AWS_CONFIG_FILE", "/nonexistent")
	t.Setenv("AWS_SHARED_CREDENTIALS_FILE", "/nonexistent")

	srv := server.New(server.Config{Region: e2eRegion, AccountID: e2eAccount})
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)

	cfg, err := efsimaws.NewConfig(context.Background(), ts.URL, e2eRegion)
	requireNoError(t, err)

	return &testEnv{
		t:      t,
		url:    ts.URL,
		server: srv,
		efs:    efs.NewFromConfig(cfg),
		ec2:    ec2.NewFromConfig(cfg),
	}
}

// RunCommand executes the efsim CLI against the simulator. It returns
// stdout, stderr, and any execution error.
func (e *testEnv) RunCommand(args ...string) (stdout, stderr string, err error) {
	e.t.Helper()
	outBuf := new(bytes.Buffer)
	errBuf := new(bytes.Buffer)
	root := cmd.NewRootCommand()
	root.SetOut(outBuf)
	root.SetErr(errBuf)
	root.SetArgs(append([]string{"--endpoint", e.url}, args...))
	execErr := root.Execute()
	return outBuf.String(), errBuf.String(), execErr
}

// ---------------------------------------------------------------------------
// Seeding helpers (public SDK calls only)
// ---------------------------------------------------------------------------

func (e *testEnv) fileSystem(token string) string {
	e.t.Helper()
	out, err := e.efs.CreateFileSystem(context.Background(), &efs.CreateFileSystemInput{
		CreationToken: aws.String(token),
	})
	requireNoError(e.t, err)
	return aws.ToString(out.FileSystemId)
}

// subnets returns the default subnets, one per AZ.
func (e *testEnv) subnets() []string {
	e.t.Helper()
	out, err := e.ec2.DescribeSubnets(context.Background(), &ec2.DescribeSubnetsInput{})
	requireNoError(e.t, err)
	var ids []string
	for _, s := range out.Subnets {
		ids = append(ids, aws.ToString(s.SubnetId))
	}
	if len(ids) < 2 {
		e.t.Fatalf("expected several default subnets, got %v", ids)
	}
	return ids
}

func (e *testEnv) securityGroup(name string) string {
	e.t.Helper()
	out, err := e.ec2.CreateSecurityGroup(context.Background(), &ec2.CreateSecurityGroupInput{
		GroupName:   aws.String(name),
		Description: aws.String("e2e " + name),
	})
	requireNoError(e.t, err)
	return aws.ToString(out.GroupId)
}

func (e *testEnv) mountTarget(fsID, subnetID string, groups ...string) string {
	e.t.Helper()
	out, err := e.efs.CreateMountTarget(context.Background(), &efs.CreateMountTargetInput{
		FileSystemId:   aws.String(fsID),
		SubnetId:       aws.String(subnetID),
		SecurityGroups: groups,
	})
	requireNoError(e.t, err)
	return aws.ToString(out.MountTargetId)
}

// ---------------------------------------------------------------------------
// Test assertion helpers
// ---------------------------------------------------------------------------

// assertContains verifies that output contains all expected substrings.
func assertContains(t *testing.T, label, output string, substrings []string) {
	t.Helper()
	for _, s := range substrings {
		if !strings.Contains(output, s) {
			t.Errorf("[%s] output missing %q\nfull output:\n%s", label, s, output)
		}
	}
}

// requireNoError calls t.Fatal if err is non-nil.
func requireNoError(t *testing.T, err error) {
	t.Helper()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
