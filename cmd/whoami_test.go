package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/nicholasgasior/efsim/internal/identity"
)

type mockResolver struct {
	owner *identity.Owner
	err   error
}

func (m *mockResolver) Resolve(ctx context.Context) (*identity.Owner, error) {
	return m.owner, m.err
}

func testOwner() *identity.Owner {
	return &identity.Owner{
		Name:      "alice",
		ARN:       identity.UserARN("123456789012", "alice"),
		AccountID: "123456789012",
		UserID:    "alice",
	}
}

func TestWhoamiHuman(t *testing.T) {
	cmd := newWhoamiCommandWithDeps(&whoamiDeps{resolver: &mockResolver{owner: testOwner()}})

	stdout, _, err := executeRoot(t, cmd, "whoami")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for _, want := range []string{"alice", "arn:aws:iam::123456789012:user/alice", "123456789012"} {
		if !strings.Contains(stdout, want) {
			t.Errorf("whoami output missing %q:\n%s", want, stdout)
		}
	}
}

func TestWhoamiJSON(t *testing.T) {
	cmd := newWhoamiCommandWithDeps(&whoamiDeps{resolver: &mockResolver{owner: testOwner()}})

	stdout, _, err := executeRoot(t, cmd, "--json", "whoami")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var got ownerJSON
	if err := json.Unmarshal([]byte(stdout), &got); err != nil {
		t.Fatalf("not JSON: %v\n%s", err, stdout)
	}
	if got.Name != "alice" || got.AccountID != "123456789012" {
		t.Errorf("got %+v", got)
	}
}

func TestWhoamiError(t *testing.T) {
	cmd := newWhoamiCommandWithDeps(&whoamiDeps{resolver: &mockResolver{err: errors.New("sts get-caller-identity: denied")}})

	_, _, err := executeRoot(t, cmd, "whoami")
	if err == nil || !strings.Contains(err.Error(), "denied") {
		t.Fatalf("expected resolver error, got %v", err)
	}
}
