package cmd

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/efs"

	efsimaws "github.com/nicholasgasior/efsim/internal/aws"
	"github.com/nicholasgasior/efsim/internal/logging"
)

// startServe runs "efsim serve" with args until the test ends and returns
// the endpoint it bound plus its stdout.
func startServe(t *testing.T, args ...string) (endpoint string, stdout func() string) {
	t.Helper()
	t.Setenv("EFSIM_CONFIG_DIR", t.TempDir())

	addrCh := make(chan string, 1)
	deps := &serveDeps{
		ready:            func(addr string) { addrCh <- addr },
		processLogOutput: []string{filepath.Join(t.TempDir(), "process.log")},
	}

	root := NewRootCommand()
	for _, c := range root.Commands() {
		if c.Name() == "serve" {
			root.RemoveCommand(c)
		}
	}
	root.AddCommand(newServeCommandWithDeps(deps))

	var out lockedWriter
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(append([]string{"serve", "--listen", "127.0.0.1:0"}, args...))

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- root.ExecuteContext(ctx) }()

	select {
	case addr := <-addrCh:
		endpoint = "http://" + addr
	case err := <-errCh:
		cancel()
		t.Fatalf("serve exited before listening: %v", err)
	case <-time.After(5 * time.Second):
		cancel()
		t.Fatal("serve did not start listening")
	}

	t.Cleanup(func() {
		cancel()
		select {
		case err := <-errCh:
			if err != nil {
				t.Errorf("serve returned %v after cancel", err)
			}
		case <-time.After(10 * time.Second):
			t.Error("serve did not shut down")
		}
	})
	return endpoint, out.String
}

func TestServeAnswersSDKClients(t *testing.T) {
	logDir := t.TempDir()
	endpoint, stdout := startServe(t, "--log-dir", logDir, "--account-id", "111122223333", "--region", "eu-west-1")

	if !strings.Contains(stdout(), "efsim listening on "+endpoint) {
		t.Errorf("startup banner missing endpoint:\n%s", stdout())
	}

	cfg, err := efsimaws.NewConfig(context.Background(), endpoint, "eu-west-1")
	if err != nil {
		t.Fatalf("NewConfig: %v", err)
	}
	client := efs.NewFromConfig(cfg)

	fs, err := client.CreateFileSystem(context.Background(), &efs.CreateFileSystemInput{
		CreationToken: aws.String("serve-test"),
	})
	if err != nil {
		t.Fatalf("CreateFileSystem: %v", err)
	}
	if !strings.Contains(aws.ToString(fs.FileSystemArn), ":eu-west-1:111122223333:") {
		t.Errorf("ARN %q does not reflect --region/--account-id", aws.ToString(fs.FileSystemArn))
	}

	calls, err := os.ReadFile(filepath.Join(logDir, logging.CallLogFile))
	if err != nil {
		t.Fatalf("call log not written: %v", err)
	}
	if !strings.Contains(string(calls), "CreateFileSystem") {
		t.Errorf("call log missing CreateFileSystem:\n%s", calls)
	}
	audit, err := os.ReadFile(filepath.Join(logDir, logging.AuditLogFile))
	if err != nil {
		t.Fatalf("audit log not written: %v", err)
	}
	if !strings.Contains(string(audit), aws.ToString(fs.FileSystemId)) {
		t.Errorf("audit log missing %s:\n%s", aws.ToString(fs.FileSystemId), audit)
	}
}

func TestServeJSONStartup(t *testing.T) {
	logDir := t.TempDir()
	endpoint, stdout := startServe(t, "--json", "--log-dir", logDir, "--no-audit")

	var got serveStartJSON
	if err := json.Unmarshal([]byte(stdout()), &got); err != nil {
		t.Fatalf("startup output is not JSON: %v\n%s", err, stdout())
	}
	if got.Endpoint != endpoint {
		t.Errorf("endpoint = %q, want %q", got.Endpoint, endpoint)
	}
	if got.LogDir != logDir {
		t.Errorf("log_dir = %q, want %q", got.LogDir, logDir)
	}
	if got.Region != "us-east-1" || got.AccountID != "123456789012" {
		t.Errorf("defaults not applied: %+v", got)
	}
	if _, err := os.Stat(filepath.Join(logDir, logging.AuditLogFile)); !os.IsNotExist(err) {
		t.Error("--no-audit must not create the audit log")
	}
}

func TestServeRejectsInvalidOverrides(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want string
	}{
		{"bad listen", []string{"--listen", "nowhere"}, "--listen"},
		{"bad account", []string{"--account-id", "42"}, "--account-id"},
		{"bad log dir", []string{"--log-dir", "relative"}, "--log-dir"},
		{"bad region", []string{"--region", "moon-1"}, "--region"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cmd := newServeCommandWithDeps(&serveDeps{
				ready: func(string) { t.Error("server must not start") },
			})
			_, _, err := executeRoot(t, cmd, append([]string{"serve"}, tt.args...)...)
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("expected error naming %s, got %v", tt.want, err)
			}
		})
	}
}
