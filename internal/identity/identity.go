package identity

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/service/sts"
)

// Owner is the caller identity as reported by STS GetCallerIdentity.
type Owner struct {
	Name      string
	ARN       string
	AccountID string
	UserID    string
}

// STSClient defines the subset of the STS API used for identity resolution.
// This interface enables mock injection for testing.
type STSClient interface {
	GetCallerIdentity(ctx context.Context, params *sts.GetCallerIdentityInput, optFns ...func(*sts.Options)) (*sts.GetCallerIdentityOutput, error)
}

// Resolver resolves the current AWS caller identity to an Owner.
type Resolver struct {
	client STSClient
}

// NewResolver creates a Resolver with the given STS client.
func NewResolver(client STSClient) *Resolver {
	return &Resolver{client: client}
}

// Resolve calls STS GetCallerIdentity and parses the returned ARN.
func (r *Resolver) Resolve(ctx context.Context) (*Owner, error) {
	out, err := r.client.GetCallerIdentity(ctx, &sts.GetCallerIdentityInput{})
	if err != nil {
		return nil, fmt.Errorf("sts get-caller-identity: %w", err)
	}

	if out.Arn == nil {
		return nil, fmt.Errorf("sts get-caller-identity returned nil ARN")
	}

	arn, err := ParseARN(*out.Arn)
	if err != nil {
		return nil, fmt.Errorf("parse caller ARN: %w", err)
	}

	owner := &Owner{
		Name:      arn.ResourceID(),
		ARN:       *out.Arn,
		AccountID: arn.AccountID,
	}
	if out.Account != nil {
		owner.AccountID = *out.Account
	}
	if out.UserId != nil {
		owner.UserID = *out.UserId
	}
	return owner, nil
}

// CallerFor returns the identity the simulator reports for a request signed
// with accessKeyID. Unsigned requests are attributed to "anonymous".
func CallerFor(accountID, accessKeyID string) Owner {
	name := accessKeyID
	if name == "" {
		name = "anonymous"
	}
	return Owner{
		Name:      name,
		ARN:       UserARN(accountID, name),
		AccountID: accountID,
		UserID:    name,
	}
}
